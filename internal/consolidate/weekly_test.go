package consolidate

import (
	"testing"
	"time"

	"github.com/vthunder/recall/internal/model"
)

func TestClassifyTrend(t *testing.T) {
	cases := []struct {
		first, second int
		want          string
	}{
		{1, 3, "increasing"},
		{3, 1, "decreasing"},
		{2, 2, "stable"},
		{2, 3, "stable"}, // 3 is not > 2*1.5
		{0, 0, "stable"},
	}
	for _, tc := range cases {
		if got := ClassifyTrend(tc.first, tc.second); got != tc.want {
			t.Errorf("ClassifyTrend(%d, %d) = %q, want %q", tc.first, tc.second, got, tc.want)
		}
	}
}

func TestClassifySentiment(t *testing.T) {
	cases := []struct {
		pos, neg int
		want     string
	}{
		{3, 1, "positive"},
		{1, 3, "negative"},
		{2, 2, "mixed"},
		{2, 1, "mixed"}, // 2 is not > 2*1
		{0, 0, "mixed"},
	}
	for _, tc := range cases {
		if got := ClassifySentiment(tc.pos, tc.neg); got != tc.want {
			t.Errorf("ClassifySentiment(%d, %d) = %q, want %q", tc.pos, tc.neg, got, tc.want)
		}
	}
}

func TestWeekBounds(t *testing.T) {
	start, end := WeekBounds(11, 2025)
	if start.Weekday() != time.Monday {
		t.Errorf("week should start on Monday, got %s", start.Weekday())
	}
	if y, w := start.ISOWeek(); y != 2025 || w != 11 {
		t.Errorf("start should be in ISO week 11/2025, got %d/%d", w, y)
	}
	if got := end.Sub(start); got != 7*24*time.Hour {
		t.Errorf("expected a 7 day window, got %s", got)
	}
}

func TestIdentifyPatterns(t *testing.T) {
	c, s, llm, cleanup := setupConsolidator(t)
	defer cleanup()
	llm.response = "A week dominated by the migration."

	// 2025-03-10 is the Monday of ISO week 11
	monday := time.Date(2025, 3, 10, 0, 0, 0, 0, time.Local)

	seedMemory(t, s, monday.Add(9*time.Hour), "Started the data migration plan", func(e *model.ExtractedData) {
		e.Topics = []string{"migration"}
	})
	seedMemory(t, s, monday.AddDate(0, 0, 1).Add(10*time.Hour), "Migration dry run with Alice went well", func(e *model.ExtractedData) {
		e.Topics = []string{"migration"}
		e.People = []string{"Alice"}
	})
	seedMemory(t, s, monday.AddDate(0, 0, 2).Add(11*time.Hour), "Blocked on the migration, waiting for a schema review", func(e *model.ExtractedData) {
		e.Topics = []string{"migration"}
		e.People = []string{"Alice"}
	})
	seedMemory(t, s, monday.AddDate(0, 0, 3).Add(15*time.Hour), "Finished the rollout checklist", func(e *model.ExtractedData) {
		e.Actionable = true
		e.Completed = true
	})

	pattern, err := c.IdentifyPatterns(11, 2025, Options{})
	if err != nil {
		t.Fatalf("weekly analysis failed: %v", err)
	}
	if pattern == nil {
		t.Fatal("expected a pattern record")
	}

	if len(pattern.RecurringThemes) != 1 || pattern.RecurringThemes[0].Theme != "migration" {
		t.Fatalf("expected the migration theme, got %+v", pattern.RecurringThemes)
	}
	theme := pattern.RecurringThemes[0]
	if theme.Occurrences != 3 || theme.DaysPresent != 3 {
		t.Errorf("theme counts wrong: %+v", theme)
	}

	if pattern.Blockers.Count != 1 {
		t.Errorf("expected 1 blocker, got %d", pattern.Blockers.Count)
	}
	if pattern.Blockers.Resolved != 0 {
		t.Errorf("blocker should be unresolved, got %d resolved", pattern.Blockers.Resolved)
	}

	if len(pattern.Collaboration.FrequentCollaborators) != 1 ||
		pattern.Collaboration.FrequentCollaborators[0].Person != "Alice" {
		t.Errorf("expected Alice as the collaborator, got %+v", pattern.Collaboration.FrequentCollaborators)
	}
	if pattern.Collaboration.FrequentCollaborators[0].Days != 2 {
		t.Errorf("Alice appeared on 2 days, got %d", pattern.Collaboration.FrequentCollaborators[0].Days)
	}

	if pattern.Productivity.CompletionRate != 1.0 {
		t.Errorf("one actionable, one completed: rate should be 1.0, got %f", pattern.Productivity.CompletionRate)
	}

	if pattern.Insights != "A week dominated by the migration." {
		t.Errorf("insights not taken from synthesis: %q", pattern.Insights)
	}

	// Second run returns the stored record without re-synthesizing
	calls := llm.calls
	again, err := c.IdentifyPatterns(11, 2025, Options{})
	if err != nil {
		t.Fatalf("repeat analysis failed: %v", err)
	}
	if llm.calls != calls {
		t.Error("repeat analysis should not call the model")
	}
	if again.WeekNumber != 11 || again.Year != 2025 {
		t.Errorf("stored record keys wrong: %d/%d", again.WeekNumber, again.Year)
	}
}

func TestIdentifyPatternsEmptyWeek(t *testing.T) {
	c, _, llm, cleanup := setupConsolidator(t)
	defer cleanup()

	pattern, err := c.IdentifyPatterns(2, 2025, Options{})
	if err != nil {
		t.Fatalf("empty week should not error: %v", err)
	}
	if pattern != nil {
		t.Error("empty week should produce no record")
	}
	if llm.calls != 0 {
		t.Error("empty week should not call the model")
	}
}

func TestRecommendations(t *testing.T) {
	w := &model.WeeklyPattern{}
	w.Productivity.CompletionRate = 0.3
	w.Blockers.Count = 4
	w.Blockers.Resolved = 1
	w.Stress.Count = 8

	recs := recommendations(w)
	if len(recs) != 3 {
		t.Fatalf("expected 3 recommendations, got %d: %v", len(recs), recs)
	}

	quiet := recommendations(&model.WeeklyPattern{})
	if len(quiet) != 0 {
		t.Errorf("quiet week should produce no recommendations, got %v", quiet)
	}
}
