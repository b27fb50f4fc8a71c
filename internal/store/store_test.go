package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vthunder/recall/internal/model"
)

func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "recall-store-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}

	s, err := Open(filepath.Join(tmpDir, "memory.db"))
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("failed to open store: %v", err)
	}

	return s, func() {
		s.Close()
		os.RemoveAll(tmpDir)
	}
}

func TestMemoryLifecycle(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	m, err := s.InsertMemory("Decided to use SQLite for the prototype", "text", time.Now())
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if m.UUID == "" {
		t.Fatal("expected a uuid")
	}
	if m.Status != model.StatusPending {
		t.Errorf("expected pending, got %s", m.Status)
	}

	pending, err := s.PendingMemories(10)
	if err != nil {
		t.Fatalf("pending query failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending memory, got %d", len(pending))
	}

	extracted := model.ExtractedData{
		ThoughtType: model.ThoughtDecision,
		Summary:     "Chose SQLite",
		Decisions:   []model.Decision{{Decision: "use SQLite", Reason: "simple"}},
		Topics:      []string{"database"},
	}
	if err := s.CompleteMemory(m.UUID, extracted, ""); err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	got, err := s.GetMemory(m.UUID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Status != model.StatusCompleted {
		t.Errorf("expected completed, got %s", got.Status)
	}
	if got.ThoughtType != model.ThoughtDecision {
		t.Errorf("expected decision thought type, got %s", got.ThoughtType)
	}
	if len(got.Extracted.Decisions) != 1 || got.Extracted.Decisions[0].Decision != "use SQLite" {
		t.Errorf("extracted data did not round-trip: %+v", got.Extracted)
	}
	// Normalize must have filled defaults
	if got.Extracted.People == nil || got.Extracted.Actions == nil {
		t.Error("expected normalized empty slices, got nil")
	}
}

func TestMemoriesForDate(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	day := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	inDay, _ := s.InsertMemory("morning thought", "text", day.Add(9*time.Hour))
	outDay, _ := s.InsertMemory("next day thought", "text", day.Add(25*time.Hour))
	s.CompleteMemory(inDay.UUID, model.ExtractedData{}, "")
	s.CompleteMemory(outDay.UUID, model.ExtractedData{}, "")

	got, err := s.MemoriesForDate(day)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 memory in day, got %d", len(got))
	}
	if got[0].UUID != inDay.UUID {
		t.Errorf("wrong memory returned")
	}
}

func TestSearchKeyword(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	m, _ := s.InsertMemory("Met with Alice about the quarterly roadmap", "text", time.Now())
	s.CompleteMemory(m.UUID, model.ExtractedData{Summary: "roadmap sync"}, "")

	results, err := s.SearchKeyword("roadmap", 5)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Memory.UUID != m.UUID {
		t.Error("wrong memory returned")
	}
}

func TestSearchKeywordWithoutFTS(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	s.ftsAvailable = false // as when built without -tags sqlite_fts5

	m, err := s.InsertMemory("Sketched the consolidation pipeline", "text", time.Now())
	if err != nil {
		t.Fatalf("insert must work without the fts index: %v", err)
	}
	if err := s.CompleteMemory(m.UUID, model.ExtractedData{Summary: "pipeline sketch"}, ""); err != nil {
		t.Fatalf("complete must work without the fts index: %v", err)
	}

	results, err := s.SearchKeyword("consolidation", 10)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(results) != 1 || results[0].Memory.UUID != m.UUID {
		t.Fatalf("expected the LIKE fallback to find the memory, got %v", results)
	}
	if results[0].Match != "like" {
		t.Errorf("expected a like match, got %s", results[0].Match)
	}

	if err := s.Clear(); err != nil {
		t.Errorf("clear must work without the fts index: %v", err)
	}
}

func TestDailyConsolidationUpsert(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	c := &model.DailyConsolidation{
		Date:      "2026-08-30",
		Narrative: "first pass",
		MainTopics: []model.TopicSummary{
			{Topic: "planning", Count: 3, MemoryIDs: []string{"a", "b"}},
		},
		OpenQuestions:   []string{"what about caching?"},
		SourceMemoryIDs: []string{"a", "b", "c"},
		ImportanceScore: 3.9,
	}
	if err := s.UpsertDailyConsolidation(c); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	c.Narrative = "second pass"
	if err := s.UpsertDailyConsolidation(c); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	got, err := s.DailyConsolidationByDate("2026-08-30")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected a record")
	}
	if got.Narrative != "second pass" {
		t.Errorf("upsert did not replace narrative: %s", got.Narrative)
	}
	if got.ImportanceScore != 3.9 {
		t.Errorf("importance did not round-trip: %f", got.ImportanceScore)
	}
	if len(got.MainTopics) != 1 || got.MainTopics[0].Topic != "planning" {
		t.Errorf("topics did not round-trip: %+v", got.MainTopics)
	}
	if len(got.OpenQuestions) != 1 {
		t.Errorf("questions did not round-trip: %+v", got.OpenQuestions)
	}

	// Upsert must not create a second row
	stats, _ := s.Stats()
	if stats["daily_consolidations"] != 1 {
		t.Errorf("expected 1 daily row, got %d", stats["daily_consolidations"])
	}
}

func TestWeeklyPatternRoundTrip(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	w := &model.WeeklyPattern{
		WeekNumber:      35,
		Year:            2026,
		Insights:        "a busy week",
		Recommendations: []string{"protect 9am for creative work", "break tasks down"},
		RecurringThemes: []model.Theme{
			{Theme: "migration", Occurrences: 4, Trend: "increasing", Sentiment: "mixed"},
		},
	}
	if err := s.UpsertWeeklyPattern(w); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	got, err := s.WeeklyPattern(35, 2026)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected a record")
	}
	// Recommendations are order-sensitive
	if len(got.Recommendations) != 2 || got.Recommendations[0] != "protect 9am for creative work" {
		t.Errorf("recommendations did not round-trip in order: %+v", got.Recommendations)
	}
	if got.RecurringThemes[0].Trend != "increasing" {
		t.Errorf("themes did not round-trip: %+v", got.RecurringThemes)
	}
}

func TestKnowledgeEdgeUpsertByPair(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	a := &model.KnowledgeNode{Topic: "search", Confidence: 0.8}
	b := &model.KnowledgeNode{Topic: "indexing", Confidence: 0.9}
	if err := s.InsertKnowledgeNode(a); err != nil {
		t.Fatalf("insert node failed: %v", err)
	}
	if err := s.InsertKnowledgeNode(b); err != nil {
		t.Fatalf("insert node failed: %v", err)
	}

	e1 := &model.KnowledgeEdge{FromNodeID: a.ID, ToNodeID: b.ID, Type: model.EdgeRelatedTopic, Strength: 0.4}
	if err := s.UpsertKnowledgeEdge(e1); err != nil {
		t.Fatalf("upsert edge failed: %v", err)
	}

	// Same pair in reverse order must update, not duplicate
	e2 := &model.KnowledgeEdge{FromNodeID: b.ID, ToNodeID: a.ID, Type: model.EdgeSameTopic, Strength: 0.8}
	if err := s.UpsertKnowledgeEdge(e2); err != nil {
		t.Fatalf("reverse upsert failed: %v", err)
	}

	edges, err := s.EdgesForNode(a.ID)
	if err != nil {
		t.Fatalf("edges query failed: %v", err)
	}
	if len(edges) != 1 {
		t.Fatalf("expected 1 edge after pair upsert, got %d", len(edges))
	}
	if edges[0].Type != model.EdgeSameTopic || edges[0].Strength != 0.8 {
		t.Errorf("edge not replaced: %+v", edges[0])
	}
}

func TestWisdomAppendOnly(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	w := &model.Wisdom{
		Type:          model.WisdomPrinciple,
		Content:       "Mornings are for deep work",
		Confidence:    0.8,
		EvidenceCount: 4,
		LearnedDate:   time.Now(),
	}
	if err := s.AppendWisdom(w); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := s.AppendWisdom(w); err != nil {
		t.Fatalf("second append failed: %v", err)
	}

	all, err := s.AllWisdom()
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("wisdom should append, expected 2 rows, got %d", len(all))
	}

	hits, err := s.RelevantWisdom("deep work", 5)
	if err != nil {
		t.Fatalf("relevant query failed: %v", err)
	}
	if len(hits) != 2 {
		t.Errorf("expected 2 matches, got %d", len(hits))
	}
}
