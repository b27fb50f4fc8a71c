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
)

// Wisdom extraction constants
const (
	minPrincipleWeeks      = 3
	minHeuristicGroup      = 2
	heuristicSuccessFloor  = 0.7
	positiveOutcomeFloor   = 0.8
	wisdomNodeConfidence   = 0.7
	maxWisdomConfidence    = 0.9
	evidenceDivisor        = 10.0
	productivityConfidence = 0.8
)

const principlePrompt = `The theme %q showed up positively across %d separate weeks of someone's captured thoughts.

Phrase this as a general principle they have learned. Respond with ONLY this JSON:
{
  "statement": "one-sentence principle",
  "applies_when": "when the principle applies",
  "exceptions": "when it does not"
}`

type principleDraft struct {
	Statement   string `json:"statement"`
	AppliesWhen string `json:"applies_when"`
	Exceptions  string `json:"exceptions"`
}

// ExtractWisdom mines the last `months` of weekly patterns and
// high-confidence knowledge nodes for durable principles and heuristics.
// All findings are appended; wisdom rows are never rewritten.
func (k *Synthesizer) ExtractWisdom(months int) ([]*model.Wisdom, error) {
	cutoff := time.Now().AddDate(0, -months, 0)

	weeks, err := k.store.WeeklyPatternsSince(cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to load weekly patterns: %w", err)
	}
	nodes, err := k.store.KnowledgeNodesSince(cutoff, wisdomNodeConfidence)
	if err != nil {
		return nil, fmt.Errorf("failed to load knowledge nodes: %w", err)
	}
	logging.Info("wisdom", "extracting from %d weeks and %d nodes", len(weeks), len(nodes))

	var found []*model.Wisdom
	found = append(found, k.themePrinciples(weeks)...)
	if p := productivityPrinciple(weeks); p != nil {
		found = append(found, p)
	}
	found = append(found, decisionHeuristics(nodes)...)

	for _, w := range found {
		w.LearnedDate = time.Now()
		if err := k.store.AppendWisdom(w); err != nil {
			return found, fmt.Errorf("failed to append wisdom: %w", err)
		}
	}
	logging.Info("wisdom", "learned %d new items", len(found))
	return found, nil
}

// themePrinciples promotes themes that recur positively in enough distinct
// weeks, asking the LLM to phrase each as a principle. LLM failures skip
// the candidate.
func (k *Synthesizer) themePrinciples(weeks []*model.WeeklyPattern) []*model.Wisdom {
	type themeEvidence struct {
		weeks       int
		occurrences int
	}
	themes := make(map[string]*themeEvidence)
	var order []string

	for _, w := range weeks {
		for _, theme := range w.RecurringThemes {
			if theme.Sentiment != "positive" {
				continue
			}
			te, ok := themes[theme.Theme]
			if !ok {
				te = &themeEvidence{}
				themes[theme.Theme] = te
				order = append(order, theme.Theme)
			}
			te.weeks++
			te.occurrences += theme.Occurrences
		}
	}

	var out []*model.Wisdom
	for _, name := range order {
		te := themes[name]
		if te.weeks < minPrincipleWeeks {
			continue
		}

		response, err := k.llm.Generate(fmt.Sprintf(principlePrompt, name, te.weeks))
		if err != nil {
			logging.Warn("wisdom", "principle phrasing for %q failed: %v", name, err)
			continue
		}
		raw, err := llm.ExtractJSON(response)
		if err != nil {
			logging.Warn("wisdom", "no JSON phrasing %q: %v", name, err)
			continue
		}
		var draft principleDraft
		if err := json.Unmarshal([]byte(raw), &draft); err != nil || draft.Statement == "" {
			logging.Warn("wisdom", "malformed principle for %q", name)
			continue
		}

		out = append(out, &model.Wisdom{
			Type:          model.WisdomPrinciple,
			Content:       draft.Statement,
			Context:       draft.AppliesWhen,
			Exceptions:    draft.Exceptions,
			Confidence:    evidenceConfidence(te.occurrences),
			EvidenceCount: te.occurrences,
		})
	}
	return out
}

// productivityPrinciple emits a principle when the same peak hour shows up
// in enough distinct weeks
func productivityPrinciple(weeks []*model.WeeklyPattern) *model.Wisdom {
	hourWeeks := make(map[int]int)
	for _, w := range weeks {
		seen := make(map[int]bool)
		for _, h := range w.Productivity.PeakHours {
			if !seen[h] {
				seen[h] = true
				hourWeeks[h]++
			}
		}
	}

	bestHour, bestWeeks := -1, 0
	for h, count := range hourWeeks {
		if count > bestWeeks || (count == bestWeeks && h < bestHour) {
			bestHour, bestWeeks = h, count
		}
	}
	if bestWeeks < minPrincipleWeeks {
		return nil
	}

	return &model.Wisdom{
		Type:          model.WisdomPrinciple,
		Content:       fmt.Sprintf("Deep work lands best around %d:00.", bestHour),
		Context:       "scheduling focused work",
		Confidence:    productivityConfidence,
		EvidenceCount: bestWeeks,
	}
}

// decisionHeuristics groups node decisions by a coarse key (first three
// words, lower-cased) and promotes groups with a strong positive-outcome
// rate. Outcome is approximated from the source node's confidence.
func decisionHeuristics(nodes []*model.KnowledgeNode) []*model.Wisdom {
	type group struct {
		total    int
		positive int
	}
	groups := make(map[string]*group)
	var order []string

	for _, n := range nodes {
		for _, decision := range n.Decisions {
			key := decisionKey(decision)
			if key == "" {
				continue
			}
			g, ok := groups[key]
			if !ok {
				g = &group{}
				groups[key] = g
				order = append(order, key)
			}
			g.total++
			if n.Confidence > positiveOutcomeFloor {
				g.positive++
			}
		}
	}

	var out []*model.Wisdom
	for _, key := range order {
		g := groups[key]
		if g.total < minHeuristicGroup {
			continue
		}
		rate := float64(g.positive) / float64(g.total)
		if rate <= heuristicSuccessFloor {
			continue
		}
		out = append(out, &model.Wisdom{
			Type:          model.WisdomHeuristic,
			Content:       fmt.Sprintf("When facing %s, follow similar approach as before", key),
			Context:       "recurring decision pattern",
			Confidence:    evidenceConfidence(g.total),
			EvidenceCount: g.total,
			SuccessRate:   rate,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].EvidenceCount > out[j].EvidenceCount })
	return out
}

func decisionKey(decision string) string {
	words := strings.Fields(strings.ToLower(decision))
	if len(words) == 0 {
		return ""
	}
	if len(words) > 3 {
		words = words[:3]
	}
	return strings.Join(words, " ")
}

func evidenceConfidence(evidence int) float64 {
	c := float64(evidence) / evidenceDivisor
	if c > maxWisdomConfidence {
		return maxWisdomConfidence
	}
	return c
}
