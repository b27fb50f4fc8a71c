// Package knowledge builds the long-horizon layers: embedding clusters
// distilled into knowledge nodes, typed weighted edges between nodes, and
// wisdom extracted from months of accumulated patterns.
package knowledge

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/vthunder/recall/internal/llm"
	"github.com/vthunder/recall/internal/logging"
	"github.com/vthunder/recall/internal/model"
	"github.com/vthunder/recall/internal/store"
)

// Edge scoring constants
const (
	weightTopicOverlap  = 0.5
	weightPeopleOverlap = 0.3
	weightQASignal      = 0.2

	// minimum combined strength for an edge to be persisted
	EdgeStrengthThreshold = 0.3

	samePeopleOverlap   = 0.5
	sameTopicOverlap    = 0.7
	relatedTopicOverlap = 0.3
)

const maxClusterPromptMemories = 15

// Synthesizer distills memory clusters into the knowledge graph
type Synthesizer struct {
	store *store.Store
	llm   llm.Client
}

// New creates a knowledge synthesizer
func New(s *store.Store, client llm.Client) *Synthesizer {
	return &Synthesizer{store: s, llm: client}
}

const distillPrompt = `These related thoughts were captured over recent weeks:

%s

Distill them into structured knowledge. Respond with ONLY this JSON:
{
  "core_concept": "one-line name for the underlying theme",
  "key_insights": ["important realizations"],
  "decisions": ["decisions that were made"],
  "open_questions": ["questions still unanswered"],
  "practical_applications": ["how this knowledge can be applied"],
  "relationships": ["connections to other areas"]
}`

type distillation struct {
	CoreConcept           string   `json:"core_concept"`
	KeyInsights           []string `json:"key_insights"`
	Decisions             []string `json:"decisions"`
	OpenQuestions         []string `json:"open_questions"`
	PracticalApplications []string `json:"practical_applications"`
	Relationships         []string `json:"relationships"`
}

// BuildKnowledgeNodes clusters the last `days` of completed memories by
// embedding similarity, distills each coherent cluster into a node, and
// links the new nodes into the graph. Per-cluster failures are logged and
// skipped, never fatal to the batch.
func (k *Synthesizer) BuildKnowledgeNodes(days int) ([]*model.KnowledgeNode, error) {
	cutoff := time.Now().AddDate(0, 0, -days)
	memories, err := k.store.MemoriesSince(cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch memories: %w", err)
	}
	if len(memories) < MinClusterSize {
		logging.Info("knowledge", "only %d memories in window, nothing to cluster", len(memories))
		return nil, nil
	}

	embedded, embeddings := k.embedAll(memories)
	if len(embedded) < MinClusterSize {
		return nil, fmt.Errorf("too few embeddings available (%d)", len(embedded))
	}

	clusters := ClusterEmbeddings(embeddings)
	logging.Info("knowledge", "%d memories formed %d clusters", len(embedded), len(clusters))

	var nodes []*model.KnowledgeNode
	for _, cluster := range clusters {
		coherence := Coherence(cluster, embeddings)
		if coherence <= CoherenceThreshold {
			logging.Debug("knowledge", "cluster of %d rejected, coherence %.2f", len(cluster), coherence)
			continue
		}
		members := make([]*model.Memory, len(cluster))
		memberVecs := make([][]float64, len(cluster))
		for i, idx := range cluster {
			members[i] = embedded[idx]
			memberVecs[i] = embeddings[idx]
		}
		node, err := k.distillCluster(rankByCentroid(members, memberVecs), coherence)
		if err != nil {
			logging.Warn("knowledge", "skipping cluster of %d: %v", len(members), err)
			continue
		}
		if err := k.store.InsertKnowledgeNode(node); err != nil {
			return nodes, fmt.Errorf("failed to persist node %q: %w", node.Topic, err)
		}
		nodes = append(nodes, node)
	}

	if err := k.linkNodes(nodes); err != nil {
		return nodes, err
	}
	logging.Info("knowledge", "created %d knowledge nodes", len(nodes))
	return nodes, nil
}

// embedAll resolves an embedding per memory, reusing stored vectors and
// generating (and persisting) missing ones. Memories that cannot be
// embedded are dropped from clustering.
func (k *Synthesizer) embedAll(memories []*model.Memory) ([]*model.Memory, [][]float64) {
	var kept []*model.Memory
	var embeddings [][]float64

	for _, m := range memories {
		vec, err := k.store.Embedding(m.UUID)
		if err != nil {
			logging.Warn("knowledge", "embedding lookup for %s: %v", m.UUID, err)
		}
		if vec == nil {
			vec, err = k.llm.Embed(m.RawText)
			if err != nil {
				logging.Warn("knowledge", "embedding generation for %s: %v", m.UUID, err)
				continue
			}
			if err := k.store.StoreEmbedding(m.UUID, vec); err != nil {
				logging.Warn("knowledge", "failed to persist embedding for %s: %v", m.UUID, err)
			}
		}
		kept = append(kept, m)
		embeddings = append(embeddings, vec)
	}
	return kept, embeddings
}

// rankByCentroid orders cluster members by similarity to the cluster
// centroid so the prompt cap keeps the most representative thoughts
func rankByCentroid(members []*model.Memory, vecs [][]float64) []*model.Memory {
	centroid := llm.AverageEmbeddings(vecs)
	idx := make([]int, len(members))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return llm.CosineSimilarity(vecs[idx[a]], centroid) > llm.CosineSimilarity(vecs[idx[b]], centroid)
	})
	ranked := make([]*model.Memory, len(members))
	for i, j := range idx {
		ranked[i] = members[j]
	}
	return ranked
}

func (k *Synthesizer) distillCluster(members []*model.Memory, coherence float64) (*model.KnowledgeNode, error) {
	var lines []string
	capped := members
	if len(capped) > maxClusterPromptMemories {
		capped = capped[:maxClusterPromptMemories]
	}
	for _, m := range capped {
		line := m.Summary
		if line == "" {
			line = logging.Truncate(m.RawText, 150)
		}
		lines = append(lines, "- "+line)
	}

	response, err := k.llm.Generate(fmt.Sprintf(distillPrompt, strings.Join(lines, "\n")))
	if err != nil {
		return nil, fmt.Errorf("distillation failed: %w", err)
	}
	raw, err := llm.ExtractJSON(response)
	if err != nil {
		return nil, fmt.Errorf("no JSON in distillation response: %w", err)
	}
	var d distillation
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return nil, fmt.Errorf("malformed distillation: %w", err)
	}
	if d.CoreConcept == "" {
		return nil, fmt.Errorf("distillation missing core concept")
	}

	node := &model.KnowledgeNode{
		Topic:        d.CoreConcept,
		Summary:      d.CoreConcept,
		Insights:     d.KeyInsights,
		Decisions:    d.Decisions,
		Questions:    d.OpenQuestions,
		Applications: d.PracticalApplications,
		Confidence:   coherence,
	}
	if len(d.KeyInsights) > 0 {
		node.Summary = d.KeyInsights[0]
	}
	for _, m := range members {
		node.SourceMemoryIDs = append(node.SourceMemoryIDs, m.UUID)
		node.Connections.People = mergeUnique(node.Connections.People, m.Extracted.People)
		node.Connections.Projects = mergeUnique(node.Connections.Projects, m.Extracted.Projects)
		node.Connections.Topics = mergeUnique(node.Connections.Topics, m.Extracted.Topics)
	}
	return node, nil
}

// linkNodes scores every unordered pair of new nodes and persists edges
// above the strength threshold, recording related-node ids on both sides
func (k *Synthesizer) linkNodes(nodes []*model.KnowledgeNode) error {
	related := make(map[int64][]int64)

	for i := 0; i < len(nodes); i++ {
		for j := i + 1; j < len(nodes); j++ {
			edge := Relate(nodes[i], nodes[j])
			if edge.Strength <= EdgeStrengthThreshold {
				continue
			}
			if err := k.store.UpsertKnowledgeEdge(&edge); err != nil {
				return err
			}
			related[nodes[i].ID] = append(related[nodes[i].ID], nodes[j].ID)
			related[nodes[j].ID] = append(related[nodes[j].ID], nodes[i].ID)
		}
	}

	for _, n := range nodes {
		ids, ok := related[n.ID]
		if !ok {
			continue
		}
		sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })
		n.Connections.RelatedNodes = ids
		if err := k.store.UpdateNodeConnections(n.ID, n.Connections); err != nil {
			return err
		}
	}
	return nil
}

// Relate scores the relationship between two nodes: topic overlap, people
// overlap, and whether a question in one is answered by an insight in the
// other. Type is classified by priority.
func Relate(a, b *model.KnowledgeNode) model.KnowledgeEdge {
	topicOverlap := jaccard(a.Connections.Topics, b.Connections.Topics)
	peopleOverlap := jaccard(a.Connections.People, b.Connections.People)

	answers := questionAnswered(a.Questions, b.Insights) || questionAnswered(b.Questions, a.Insights)
	qa := 0.0
	if answers {
		qa = 1.0
	}

	strength := topicOverlap*weightTopicOverlap +
		peopleOverlap*weightPeopleOverlap +
		qa*weightQASignal

	var edgeType model.EdgeType
	switch {
	case answers:
		edgeType = model.EdgeAnswers
	case peopleOverlap > samePeopleOverlap:
		edgeType = model.EdgeSamePeople
	case topicOverlap > sameTopicOverlap:
		edgeType = model.EdgeSameTopic
	case topicOverlap > relatedTopicOverlap:
		edgeType = model.EdgeRelatedTopic
	default:
		edgeType = model.EdgeAssociated
	}

	return model.KnowledgeEdge{
		FromNodeID: a.ID,
		ToNodeID:   b.ID,
		Type:       edgeType,
		Strength:   strength,
	}
}

// questionAnswered approximates question-answered-by-insight: a question
// and an insight sharing at least two significant words
func questionAnswered(questions, insights []string) bool {
	for _, q := range questions {
		qWords := significantWords(q)
		for _, ins := range insights {
			shared := 0
			for w := range significantWords(ins) {
				if qWords[w] {
					shared++
					if shared >= 2 {
						return true
					}
				}
			}
		}
	}
	return false
}

func significantWords(text string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,!?\"'()")
		if len(w) > 3 {
			words[w] = true
		}
	}
	return words
}

func jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(a))
	for _, s := range a {
		set[strings.ToLower(s)] = true
	}
	shared := 0
	union := len(set)
	seen := make(map[string]bool, len(b))
	for _, s := range b {
		s = strings.ToLower(s)
		if seen[s] {
			continue
		}
		seen[s] = true
		if set[s] {
			shared++
		} else {
			union++
		}
	}
	return float64(shared) / float64(union)
}

func mergeUnique(dst, src []string) []string {
	seen := make(map[string]bool, len(dst))
	for _, s := range dst {
		seen[s] = true
	}
	for _, s := range src {
		if s != "" && !seen[s] {
			seen[s] = true
			dst = append(dst, s)
		}
	}
	return dst
}
