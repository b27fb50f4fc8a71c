package consolidate

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vthunder/recall/internal/model"
	"github.com/vthunder/recall/internal/prompts"
	"github.com/vthunder/recall/internal/store"
)

type mockLLM struct {
	response string
	err      error
	calls    int
}

func (m *mockLLM) Generate(prompt string) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

func (m *mockLLM) Embed(text string) ([]float64, error) {
	return make([]float64, 4), nil
}

func setupConsolidator(t *testing.T) (*Consolidator, *store.Store, *mockLLM, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "recall-consolidate-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	s, err := store.Open(filepath.Join(tmpDir, "memory.db"))
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("failed to open store: %v", err)
	}
	pm, err := prompts.NewManager(filepath.Join(tmpDir, "prompts"))
	if err != nil {
		s.Close()
		os.RemoveAll(tmpDir)
		t.Fatalf("failed to create prompt manager: %v", err)
	}

	llm := &mockLLM{response: "A calm, productive day."}
	c := New(s, llm, pm)
	return c, s, llm, func() {
		s.Close()
		os.RemoveAll(tmpDir)
	}
}

func seedMemory(t *testing.T, s *store.Store, ts time.Time, text string, mutate func(*model.ExtractedData)) *model.Memory {
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
	got, err := s.GetMemory(m.UUID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	return got
}

func TestImportanceScore(t *testing.T) {
	cases := []struct {
		decisions, completed, questions, people, threads int
		want                                             float64
	}{
		{3, 4, 2, 5, 1, 3.9},   // 6 + 6 + 2 + 5 + 0.5 = 19.5 / 5
		{2, 3, 1, 4, 5, 3.2},   // 4 + 4.5 + 1 + 4 + 2.5 = 16 / 5
		{0, 0, 0, 10, 0, 1.0},  // people clamp at 5
		{100, 0, 0, 0, 0, 10},  // ceiling
		{0, 0, 0, 0, 0, 0},
	}
	for _, tc := range cases {
		got := ImportanceScore(tc.decisions, tc.completed, tc.questions, tc.people, tc.threads)
		if got != tc.want {
			t.Errorf("ImportanceScore(%d,%d,%d,%d,%d) = %v, want %v",
				tc.decisions, tc.completed, tc.questions, tc.people, tc.threads, got, tc.want)
		}
	}
}

func TestSegmentThreads(t *testing.T) {
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.Local)
	at := func(h, m int) time.Time { return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute) }

	memories := []*model.Memory{
		{UUID: "a", Timestamp: at(9, 0)},
		{UUID: "b", Timestamp: at(9, 10)},
		{UUID: "c", Timestamp: at(9, 50)},
		{UUID: "d", Timestamp: at(10, 0)},
	}

	threads := SegmentThreads(memories)
	if len(threads) != 2 {
		t.Fatalf("expected 2 threads, got %d", len(threads))
	}
	if threads[0].MemoryCount != 2 || threads[1].MemoryCount != 2 {
		t.Errorf("expected 2 memories per thread, got %d and %d",
			threads[0].MemoryCount, threads[1].MemoryCount)
	}
	if !threads[1].Start.Equal(at(9, 50)) {
		t.Errorf("second thread should start at 09:50, got %s", threads[1].Start.Format("15:04"))
	}
	if threads[0].MemoryIDs[0] != "a" || threads[1].MemoryIDs[0] != "c" {
		t.Errorf("thread membership wrong: %v / %v", threads[0].MemoryIDs, threads[1].MemoryIDs)
	}
}

func TestDominantTopicTieBreak(t *testing.T) {
	memories := []*model.Memory{
		{Extracted: model.ExtractedData{Topics: []string{"search", "caching"}}},
		{Extracted: model.ExtractedData{Topics: []string{"caching", "search"}}},
	}
	if got := dominantTopic(memories); got != "search" {
		t.Errorf("tie should break to first encountered, got %q", got)
	}
	if got := dominantTopic(nil); got != "general" {
		t.Errorf("no topics should yield general, got %q", got)
	}
}

func TestConsolidateDayIdempotent(t *testing.T) {
	c, s, llm, cleanup := setupConsolidator(t)
	defer cleanup()

	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.Local)
	seedMemory(t, s, day.Add(9*time.Hour), "Kicked off the index rebuild", func(e *model.ExtractedData) {
		e.Topics = []string{"search"}
	})
	seedMemory(t, s, day.Add(10*time.Hour), "Talked to Alice about rollout", func(e *model.ExtractedData) {
		e.People = []string{"Alice"}
	})

	first, err := c.ConsolidateDay(day, Options{})
	if err != nil {
		t.Fatalf("first consolidation failed: %v", err)
	}
	if first == nil {
		t.Fatal("expected a record")
	}
	if first.Narrative != "A calm, productive day." {
		t.Errorf("narrative not taken from synthesis: %q", first.Narrative)
	}
	if llm.calls != 1 {
		t.Fatalf("expected 1 synthesis call, got %d", llm.calls)
	}

	second, err := c.ConsolidateDay(day, Options{})
	if err != nil {
		t.Fatalf("second consolidation failed: %v", err)
	}
	if llm.calls != 1 {
		t.Errorf("repeat consolidation should not re-synthesize, got %d calls", llm.calls)
	}
	if second.Date != first.Date || second.Narrative != first.Narrative {
		t.Error("repeat consolidation should return the stored record")
	}
}

func TestConsolidateDayCustomPromptReSynthesizes(t *testing.T) {
	c, s, llm, cleanup := setupConsolidator(t)
	defer cleanup()

	day := time.Date(2025, 3, 11, 0, 0, 0, 0, time.Local)
	seedMemory(t, s, day.Add(9*time.Hour), "Wrote the migration runbook", nil)

	if _, err := c.ConsolidateDay(day, Options{}); err != nil {
		t.Fatalf("initial consolidation failed: %v", err)
	}

	llm.response = "Focused on operational readiness."
	record, err := c.ConsolidateDay(day, Options{CustomPrompt: "What was the operational focus?"})
	if err != nil {
		t.Fatalf("custom prompt consolidation failed: %v", err)
	}
	if llm.calls != 2 {
		t.Errorf("custom prompt should force re-synthesis, got %d calls", llm.calls)
	}
	if record.Narrative != "Focused on operational readiness." {
		t.Errorf("new narrative not stored: %q", record.Narrative)
	}

	// Upsert, never a duplicate row
	recent, err := s.RecentDailyConsolidations(10)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(recent) != 1 {
		t.Errorf("expected a single record for the date, got %d", len(recent))
	}
}

func TestConsolidateDaySynthesisFailure(t *testing.T) {
	c, s, llm, cleanup := setupConsolidator(t)
	defer cleanup()

	llm.err = errors.New("model unavailable")

	day := time.Date(2025, 3, 12, 0, 0, 0, 0, time.Local)
	m := seedMemory(t, s, day.Add(14*time.Hour), "Decided to defer the schema change", func(e *model.ExtractedData) {
		e.ThoughtType = model.ThoughtDecision
		e.Decisions = []model.Decision{{Decision: "defer schema change"}}
	})

	record, err := c.ConsolidateDay(day, Options{})
	if err != nil {
		t.Fatalf("consolidation should tolerate synthesis failure: %v", err)
	}
	if !strings.HasPrefix(record.Narrative, "Failed to generate synthesis: ") {
		t.Errorf("expected failure placeholder, got %q", record.Narrative)
	}
	if len(record.KeyDecisions) != 1 {
		t.Errorf("infrastructure should survive synthesis failure: %+v", record.KeyDecisions)
	}

	stored, err := s.DailyConsolidationByDate(day.Format("2006-01-02"))
	if err != nil || stored == nil {
		t.Fatalf("record not stored: %v", err)
	}
	if len(stored.SourceMemoryIDs) != 1 || stored.SourceMemoryIDs[0] != m.UUID {
		t.Errorf("provenance missing: %v", stored.SourceMemoryIDs)
	}
}

func TestConsolidateEmptyDay(t *testing.T) {
	c, _, llm, cleanup := setupConsolidator(t)
	defer cleanup()

	record, err := c.ConsolidateDay(time.Date(2025, 3, 13, 0, 0, 0, 0, time.Local), Options{})
	if err != nil {
		t.Fatalf("empty day should not error: %v", err)
	}
	if record != nil {
		t.Error("empty day should produce no record")
	}
	if llm.calls != 0 {
		t.Error("empty day should not call the model")
	}
}
