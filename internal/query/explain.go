package query

import (
	"fmt"
	"strings"

	"github.com/vthunder/recall/internal/model"
)

// Explanation traces one memory forward through the consolidation layers.
// Layers the memory never reached are nil/empty, not errors.
type Explanation struct {
	Memory  *model.Memory
	Daily   *model.DailyConsolidation
	Node    *model.KnowledgeNode
	Related []RelatedNode
	Wisdom  []*model.Wisdom
}

// RelatedNode is a neighbor in the knowledge graph, seen from the traced node
type RelatedNode struct {
	Topic string
	Edge  *model.KnowledgeEdge
}

// ExplainReasoning walks a memory's provenance chain: the raw record, the
// daily consolidation that absorbed it, the knowledge node distilled from
// it, and wisdom related to that node's topic
func (e *Engine) ExplainReasoning(memUUID string) (*Explanation, error) {
	memory, err := e.store.GetMemory(memUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to load memory: %w", err)
	}
	if memory == nil {
		return nil, fmt.Errorf("memory %s not found", memUUID)
	}

	exp := &Explanation{Memory: memory}

	exp.Daily, err = e.store.DailyConsolidationForMemory(memUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to trace daily consolidation: %w", err)
	}

	exp.Node, err = e.store.KnowledgeNodeForMemory(memUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to trace knowledge node: %w", err)
	}

	if exp.Node != nil {
		edges, err := e.store.EdgesForNode(exp.Node.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to trace edges: %w", err)
		}
		for _, edge := range edges {
			otherID := edge.FromNodeID
			if otherID == exp.Node.ID {
				otherID = edge.ToNodeID
			}
			other, err := e.store.KnowledgeNode(otherID)
			if err != nil || other == nil {
				continue
			}
			exp.Related = append(exp.Related, RelatedNode{Topic: other.Topic, Edge: edge})
		}

		if exp.Node.Topic != "" {
			exp.Wisdom, err = e.store.RelevantWisdom(exp.Node.Topic, 3)
			if err != nil {
				return nil, fmt.Errorf("failed to trace wisdom: %w", err)
			}
		}
	}
	return exp, nil
}

// Render formats an explanation as readable text, one section per layer
// the memory reached
func (exp *Explanation) Render() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Memory %s (%s):\n  %s\n",
		exp.Memory.UUID, exp.Memory.Timestamp.Format("2006-01-02 15:04"), exp.Memory.RawText)

	if exp.Daily != nil {
		fmt.Fprintf(&b, "\nConsolidated into %s (importance %.1f)", exp.Daily.Date, exp.Daily.ImportanceScore)
		if exp.Daily.Narrative != "" {
			fmt.Fprintf(&b, ":\n  %s", exp.Daily.Narrative)
		}
		b.WriteString("\n")
	}

	if exp.Node != nil {
		fmt.Fprintf(&b, "\nPart of knowledge node %q (confidence %.2f)\n", exp.Node.Topic, exp.Node.Confidence)
		for _, insight := range exp.Node.Insights {
			fmt.Fprintf(&b, "  - %s\n", insight)
		}
		for _, rel := range exp.Related {
			fmt.Fprintf(&b, "  %s %q (%.2f)\n", rel.Edge.Type, rel.Topic, rel.Edge.Strength)
		}
	}

	for _, w := range exp.Wisdom {
		fmt.Fprintf(&b, "\nContributed to %s: %s\n", w.Type, w.Content)
	}
	return b.String()
}
