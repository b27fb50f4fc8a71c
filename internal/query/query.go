// Package query routes natural-language questions to the right
// consolidation layer and traces memories forward through the layers for
// provenance.
package query

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/vthunder/recall/internal/llm"
	"github.com/vthunder/recall/internal/logging"
	"github.com/vthunder/recall/internal/model"
	"github.com/vthunder/recall/internal/store"
)

// Type is the routing category for a query
type Type string

const (
	TypeTask           Type = "task_related"
	TypePerson         Type = "person_related"
	TypePattern        Type = "pattern_seeking"
	TypeWisdom         Type = "wisdom_seeking"
	TypeTemporal       Type = "temporal"
	TypeConceptual     Type = "conceptual"
	TypeSpecificRecent Type = "specific_recent"
)

// Classification keyword sets, checked in order; first match wins
var (
	taskKeywords     = []string{"task", "todo", "to-do", "to do", "need to", "action item", "remind"}
	personKeywords   = []string{"who", "person", "people", "talked", "meeting with", "told", "said"}
	patternKeywords  = []string{"pattern", "usually", "often", "tend to", "habit", "recurring", "typically"}
	wisdomKeywords   = []string{"principle", "lesson", "learned", "wisdom", "advice", "rule of thumb"}
	temporalKeywords = []string{"yesterday", "today", "last week", "this week", "last month", "ago", "when did"}
	conceptKeywords  = []string{"about", "concept", "understand", "related to", "topic", "know"}
)

// Classify buckets a free-text query. Categories are checked in a fixed
// priority order so a query matching several sets routes deterministically.
func Classify(query string) Type {
	q := strings.ToLower(query)

	ordered := []struct {
		keywords []string
		t        Type
	}{
		{taskKeywords, TypeTask},
		{personKeywords, TypePerson},
		{patternKeywords, TypePattern},
		{wisdomKeywords, TypeWisdom},
		{temporalKeywords, TypeTemporal},
		{conceptKeywords, TypeConceptual},
	}
	for _, c := range ordered {
		for _, kw := range c.keywords {
			if strings.Contains(q, kw) {
				return c.t
			}
		}
	}
	return TypeSpecificRecent
}

// Result carries whatever layers a query resolved against. Unused layers
// stay empty.
type Result struct {
	Type     Type
	Memories []store.SearchResult
	Tasks    []*model.Memory
	Patterns []*model.WeeklyPattern
	Nodes    []*model.KnowledgeNode
	Wisdom   []*model.Wisdom
	Dailies  []*model.DailyConsolidation
}

// Empty reports whether no layer produced anything
func (r *Result) Empty() bool {
	return len(r.Memories) == 0 && len(r.Tasks) == 0 && len(r.Patterns) == 0 &&
		len(r.Nodes) == 0 && len(r.Wisdom) == 0 && len(r.Dailies) == 0
}

// Engine answers queries against the layered store
type Engine struct {
	store *store.Store
	llm   llm.Client
}

// NewEngine creates a query engine
func NewEngine(s *store.Store, client llm.Client) *Engine {
	return &Engine{store: s, llm: client}
}

// Query classifies and routes one question. Layers that find nothing fall
// back to a merged memory search so a query never returns empty-handed
// while matching memories exist.
func (e *Engine) Query(query string, limit int) (*Result, error) {
	if limit <= 0 {
		limit = 10
	}
	result := &Result{Type: Classify(query)}
	term := searchTerm(query)

	var err error
	switch result.Type {
	case TypeTask:
		result.Tasks, err = e.store.OpenTasks(limit)
	case TypePattern:
		result.Patterns, err = e.store.SearchWeeklyPatterns(term, limit)
		if err == nil {
			result.Wisdom, err = e.store.RelevantWisdom(term, limit)
		}
	case TypeWisdom:
		result.Wisdom, err = e.store.RelevantWisdom(term, limit)
		if err == nil && len(result.Wisdom) == 0 {
			result.Wisdom, err = e.store.AllWisdom()
			if len(result.Wisdom) > limit {
				result.Wisdom = result.Wisdom[:limit]
			}
		}
	case TypeTemporal:
		start, end, ok := ParseWindow(query, time.Now())
		if ok {
			var memories []*model.Memory
			memories, err = e.store.MemoriesBetween(start, end)
			for _, m := range memories {
				result.Memories = append(result.Memories, store.SearchResult{Memory: m, Match: "temporal"})
			}
			if len(result.Memories) > limit {
				result.Memories = result.Memories[:limit]
			}
		}
	case TypeConceptual:
		result.Nodes, err = e.store.SearchKnowledgeNodes(term, limit)
		for _, n := range result.Nodes {
			if touchErr := e.store.TouchNode(n.ID); touchErr != nil {
				logging.Warn("query", "failed to touch node %d: %v", n.ID, touchErr)
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("query routing failed: %w", err)
	}

	// Federated fallback to raw memories
	if result.Empty() || result.Type == TypeSpecificRecent || result.Type == TypePerson {
		result.Memories, err = e.searchMemories(query, limit)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

// searchMemories merges semantic and keyword search: semantic hits first,
// keyword hits appended with uuid dedup
func (e *Engine) searchMemories(query string, limit int) ([]store.SearchResult, error) {
	var merged []store.SearchResult
	seen := make(map[string]bool)

	if vec, err := e.llm.Embed(query); err == nil {
		semantic, err := e.store.SearchSemantic(vec, limit)
		if err != nil {
			logging.Warn("query", "semantic search failed: %v", err)
		}
		for _, r := range semantic {
			seen[r.Memory.UUID] = true
			merged = append(merged, r)
		}
	} else {
		logging.Debug("query", "query embedding unavailable: %v", err)
	}

	keyword, err := e.store.SearchKeyword(query, limit)
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}
	for _, r := range keyword {
		if seen[r.Memory.UUID] {
			continue
		}
		merged = append(merged, r)
	}

	if len(merged) > limit {
		merged = merged[:limit]
	}
	if len(merged) == 0 {
		recent, err := e.store.RecentMemories(limit)
		if err != nil {
			return nil, err
		}
		for _, m := range recent {
			merged = append(merged, store.SearchResult{Memory: m, Match: "recent"})
		}
	}
	return merged, nil
}

// ParseWindow extracts a concrete time range from temporal phrasing.
// Returns ok=false when no known phrase is present.
func ParseWindow(query string, now time.Time) (time.Time, time.Time, bool) {
	q := strings.ToLower(query)
	day := func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	}

	switch {
	case strings.Contains(q, "yesterday"):
		start := day(now.AddDate(0, 0, -1))
		return start, start.Add(24*time.Hour - time.Nanosecond), true
	case strings.Contains(q, "today"):
		start := day(now)
		return start, now, true
	case strings.Contains(q, "last week"):
		return now.AddDate(0, 0, -7), now, true
	case strings.Contains(q, "this week"):
		weekday := int(now.Weekday())
		if weekday == 0 {
			weekday = 7 // Sunday
		}
		return day(now).AddDate(0, 0, 1-weekday), now, true
	case strings.Contains(q, "last month"):
		return now.AddDate(0, 0, -30), now, true
	}
	return time.Time{}, time.Time{}, false
}

var stopwords = map[string]bool{
	"what": true, "when": true, "where": true, "which": true, "about": true,
	"have": true, "does": true, "know": true, "did": true, "the": true,
	"was": true, "were": true, "tell": true, "show": true, "find": true,
	"that": true, "this": true, "with": true, "from": true, "should": true,
}

// searchTerm picks the most content-bearing word of a query for the
// LIKE-based layer searches
func searchTerm(query string) string {
	words := strings.Fields(strings.ToLower(query))
	var candidates []string
	for _, w := range words {
		w = strings.Trim(w, "?.!,\"'")
		if len(w) > 3 && !stopwords[w] {
			candidates = append(candidates, w)
		}
	}
	if len(candidates) == 0 {
		return strings.TrimSpace(query)
	}
	sort.SliceStable(candidates, func(i, j int) bool { return len(candidates[i]) > len(candidates[j]) })
	return candidates[0]
}
