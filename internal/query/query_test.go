package query

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vthunder/recall/internal/model"
	"github.com/vthunder/recall/internal/store"
)

type mockLLM struct {
	embedErr error
}

func (m *mockLLM) Generate(prompt string) (string, error) { return "", nil }

func (m *mockLLM) Embed(text string) ([]float64, error) {
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	return []float64{1, 0, 0}, nil
}

func setupEngine(t *testing.T) (*Engine, *store.Store, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "recall-query-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	s, err := store.Open(filepath.Join(tmpDir, "memory.db"))
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("failed to open store: %v", err)
	}
	return NewEngine(s, &mockLLM{}), s, func() {
		s.Close()
		os.RemoveAll(tmpDir)
	}
}

func seed(t *testing.T, s *store.Store, ts time.Time, text string, mutate func(*model.ExtractedData)) *model.Memory {
	t.Helper()
	m, err := s.InsertMemory(text, "text", ts)
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	var extracted model.ExtractedData
	if mutate != nil {
		mutate(&extracted)
	}
	if err := s.CompleteMemory(m.UUID, extracted, ""); err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	return m
}

func TestClassify(t *testing.T) {
	cases := []struct {
		query string
		want  Type
	}{
		{"what tasks do I have open", TypeTask},
		{"who did I meet on the rollout", TypePerson},
		{"what do I usually do on mondays", TypePattern},
		{"what lessons have I learned about shipping", TypeWisdom},
		{"what happened yesterday", TypeTemporal},
		{"what do I know about caching", TypeConceptual},
		{"search ranker results", TypeSpecificRecent},
		// task keywords outrank pattern keywords
		{"what todo items do I usually forget", TypeTask},
		// person keywords outrank temporal keywords
		{"who said that yesterday", TypePerson},
	}
	for _, tc := range cases {
		if got := Classify(tc.query); got != tc.want {
			t.Errorf("Classify(%q) = %s, want %s", tc.query, got, tc.want)
		}
	}
}

func TestParseWindow(t *testing.T) {
	now := time.Date(2025, 3, 12, 15, 30, 0, 0, time.Local) // a Wednesday

	start, end, ok := ParseWindow("what happened yesterday", now)
	if !ok {
		t.Fatal("yesterday should parse")
	}
	if start.Day() != 11 || start.Hour() != 0 {
		t.Errorf("yesterday should start at midnight of the 11th, got %s", start)
	}
	if end.Day() != 11 {
		t.Errorf("yesterday should end on the 11th, got %s", end)
	}

	start, _, ok = ParseWindow("notes from this week", now)
	if !ok {
		t.Fatal("this week should parse")
	}
	if start.Weekday() != time.Monday || start.Day() != 10 {
		t.Errorf("this week should start Monday the 10th, got %s", start)
	}

	start, _, ok = ParseWindow("ideas from last week", now)
	if !ok || !start.Equal(now.AddDate(0, 0, -7)) {
		t.Errorf("last week should reach 7 days back, got %s", start)
	}

	if _, _, ok := ParseWindow("the search ranker", now); ok {
		t.Error("non-temporal query should not parse a window")
	}
}

func TestSearchTerm(t *testing.T) {
	if got := searchTerm("what do I know about consolidation?"); got != "consolidation" {
		t.Errorf("expected the content word, got %q", got)
	}
	if got := searchTerm("did it go ok"); got != "did it go ok" {
		t.Errorf("all-stopword query should pass through, got %q", got)
	}
}

func TestQueryTasks(t *testing.T) {
	e, s, cleanup := setupEngine(t)
	defer cleanup()

	seed(t, s, time.Now(), "Need to file the quarterly report", func(ex *model.ExtractedData) {
		ex.Actionable = true
		ex.Urgency = "high"
	})
	seed(t, s, time.Now(), "Lunch was good", nil)

	result, err := e.Query("what tasks are still open", 10)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if result.Type != TypeTask {
		t.Errorf("expected task routing, got %s", result.Type)
	}
	if len(result.Tasks) != 1 {
		t.Fatalf("expected 1 open task, got %d", len(result.Tasks))
	}
	if result.Tasks[0].RawText != "Need to file the quarterly report" {
		t.Errorf("wrong task: %s", result.Tasks[0].RawText)
	}
}

func TestQueryFallsBackToMemories(t *testing.T) {
	e, s, cleanup := setupEngine(t)
	defer cleanup()

	seed(t, s, time.Now(), "Sketched the caching design", func(ex *model.ExtractedData) {
		ex.Topics = []string{"caching"}
	})

	// Conceptual query with no knowledge nodes yet
	result, err := e.Query("what do I know about caching", 10)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if result.Type != TypeConceptual {
		t.Errorf("expected conceptual routing, got %s", result.Type)
	}
	if len(result.Nodes) != 0 {
		t.Errorf("no nodes exist, got %d", len(result.Nodes))
	}
	if len(result.Memories) == 0 {
		t.Error("empty layer should fall back to memory search")
	}
}

func TestQueryMergeDedup(t *testing.T) {
	e, s, cleanup := setupEngine(t)
	defer cleanup()

	m := seed(t, s, time.Now(), "Prototype of the ranking service", nil)
	if err := s.StoreEmbedding(m.UUID, []float64{1, 0, 0}); err != nil {
		t.Logf("vector table unavailable, brute-force path covers this: %v", err)
	}

	result, err := e.Query("ranking service", 10)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	seen := make(map[string]int)
	for _, r := range result.Memories {
		seen[r.Memory.UUID]++
	}
	if seen[m.UUID] != 1 {
		t.Errorf("memory should appear exactly once after merge, got %d", seen[m.UUID])
	}
}

func TestExplainReasoningLayers(t *testing.T) {
	e, s, cleanup := setupEngine(t)
	defer cleanup()

	m := seed(t, s, time.Now(), "Decided on the caching approach", nil)

	// Memory only: downstream layers absent, no error
	exp, err := e.ExplainReasoning(m.UUID)
	if err != nil {
		t.Fatalf("explain failed: %v", err)
	}
	if exp.Memory == nil || exp.Daily != nil || exp.Node != nil || len(exp.Wisdom) != 0 {
		t.Errorf("expected memory-only trace, got %+v", exp)
	}

	// Add a daily consolidation referencing the memory
	daily := &model.DailyConsolidation{
		Date:            time.Now().Format("2006-01-02"),
		Narrative:       "Settled the caching question.",
		SourceMemoryIDs: []string{m.UUID},
	}
	if err := s.UpsertDailyConsolidation(daily); err != nil {
		t.Fatalf("upsert daily failed: %v", err)
	}

	// And a knowledge node with related wisdom
	node := &model.KnowledgeNode{
		Topic:           "caching strategy",
		SourceMemoryIDs: []string{m.UUID},
		Confidence:      0.85,
	}
	if err := s.InsertKnowledgeNode(node); err != nil {
		t.Fatalf("insert node failed: %v", err)
	}
	neighbor := &model.KnowledgeNode{Topic: "cdn configuration", Confidence: 0.8}
	if err := s.InsertKnowledgeNode(neighbor); err != nil {
		t.Fatalf("insert neighbor failed: %v", err)
	}
	if err := s.UpsertKnowledgeEdge(&model.KnowledgeEdge{
		FromNodeID: node.ID,
		ToNodeID:   neighbor.ID,
		Type:       model.EdgeRelatedTopic,
		Strength:   0.4,
	}); err != nil {
		t.Fatalf("upsert edge failed: %v", err)
	}
	if err := s.AppendWisdom(&model.Wisdom{
		Type:        model.WisdomPrinciple,
		Content:     "Cache at the edge first",
		Context:     "caching strategy decisions",
		Confidence:  0.8,
		LearnedDate: time.Now(),
	}); err != nil {
		t.Fatalf("append wisdom failed: %v", err)
	}

	exp, err = e.ExplainReasoning(m.UUID)
	if err != nil {
		t.Fatalf("explain failed: %v", err)
	}
	if exp.Daily == nil || exp.Daily.Narrative != "Settled the caching question." {
		t.Error("daily layer missing from trace")
	}
	if exp.Node == nil || exp.Node.Topic != "caching strategy" {
		t.Error("knowledge layer missing from trace")
	}
	if len(exp.Related) != 1 || exp.Related[0].Topic != "cdn configuration" {
		t.Errorf("graph neighbors missing from trace: %+v", exp.Related)
	}
	if len(exp.Wisdom) != 1 || exp.Wisdom[0].Content != "Cache at the edge first" {
		t.Errorf("wisdom layer missing from trace: %+v", exp.Wisdom)
	}

	if _, err := e.ExplainReasoning("no-such-uuid"); err == nil {
		t.Error("unknown memory should error")
	}
}
