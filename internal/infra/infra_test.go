package infra

import (
	"testing"
	"time"

	"github.com/vthunder/recall/internal/model"
)

func mem(t *testing.T, ts time.Time, mutate func(*model.Memory)) *model.Memory {
	t.Helper()
	m := &model.Memory{
		UUID:      "mem-" + ts.Format("150405"),
		Timestamp: ts,
		RawText:   "placeholder",
		Status:    model.StatusCompleted,
	}
	m.Extracted.Normalize()
	if mutate != nil {
		mutate(m)
	}
	return m
}

func TestFindConnections(t *testing.T) {
	base := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	a := mem(t, base, func(m *model.Memory) {
		m.UUID = "a"
		m.Extracted.People = []string{"Alice"}
		m.Extracted.Topics = []string{"search", "infra"}
	})
	b := mem(t, base.Add(time.Hour), func(m *model.Memory) {
		m.UUID = "b"
		m.Extracted.People = []string{"Alice", "Bob"}
		m.Extracted.Topics = []string{"search"}
	})
	c := mem(t, base.Add(2*time.Hour), func(m *model.Memory) {
		m.UUID = "c"
		m.Extracted.People = []string{"Carol"}
		m.Extracted.Topics = []string{"lunch"}
	})

	conns := FindConnections([]*model.Memory{a, b, c})
	if len(conns) != 1 {
		t.Fatalf("expected 1 connection, got %d: %+v", len(conns), conns)
	}
	if conns[0].MemoryA != "a" || conns[0].MemoryB != "b" {
		t.Errorf("wrong pair: %+v", conns[0])
	}
	if conns[0].Strength != 2 {
		t.Errorf("shared Alice + search should give strength 2, got %d", conns[0].Strength)
	}
}

func TestTemporalGapDetection(t *testing.T) {
	base := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	memories := []*model.Memory{
		mem(t, base, nil),
		mem(t, base.Add(30*time.Minute), nil),  // 30min gap: not flagged
		mem(t, base.Add(120*time.Minute), nil), // 90min gap: flagged
	}

	p := TemporalOf(memories)
	if len(p.Gaps) != 1 {
		t.Fatalf("expected 1 gap, got %d", len(p.Gaps))
	}
	if p.Gaps[0].DurationMinutes != 90 {
		t.Errorf("expected 90 minute gap, got %f", p.Gaps[0].DurationMinutes)
	}
	if p.ByHour[9] != 2 {
		t.Errorf("hour histogram: %+v", p.ByHour)
	}
}

func TestQuestionsDeduplicated(t *testing.T) {
	base := time.Now()
	memories := []*model.Memory{
		mem(t, base, func(m *model.Memory) {
			m.Extracted.Questions = []model.Question{
				{Question: "should we ship early?"},
				{Question: "who owns QA?"},
			}
		}),
		mem(t, base.Add(time.Minute), func(m *model.Memory) {
			m.Extracted.Questions = []model.Question{{Question: "should we ship early?"}}
		}),
	}

	qs := QuestionsOf(memories)
	if len(qs) != 2 {
		t.Fatalf("expected 2 unique questions, got %v", qs)
	}
	if qs[0] != "should we ship early?" || qs[1] != "who owns QA?" {
		t.Errorf("insertion order not preserved: %v", qs)
	}
}

func TestDecisionsFromTypeAndData(t *testing.T) {
	base := time.Now()
	memories := []*model.Memory{
		mem(t, base, func(m *model.Memory) {
			m.ThoughtType = model.ThoughtDecision
			m.Summary = "go with option B"
		}),
		mem(t, base.Add(time.Minute), func(m *model.Memory) {
			m.Extracted.Decisions = []model.Decision{{Decision: "hire a contractor", Reason: "deadline"}}
		}),
	}

	ds := DecisionsOf(memories)
	if len(ds) != 2 {
		t.Fatalf("expected 2 decisions, got %+v", ds)
	}
	if ds[0].Decision != "go with option B" {
		t.Errorf("got %+v", ds[0])
	}
}

func TestRankTopics(t *testing.T) {
	base := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	memories := []*model.Memory{
		mem(t, base, func(m *model.Memory) { m.Extracted.Topics = []string{"search", "infra"} }),
		mem(t, base.Add(time.Hour), func(m *model.Memory) { m.Extracted.Topics = []string{"search"} }),
		mem(t, base.Add(2*time.Hour), func(m *model.Memory) { m.Extracted.Topics = []string{"search"} }),
	}

	ranks := RankTopics(memories)
	if ranks[0].Topic != "search" || ranks[0].Count != 3 {
		t.Errorf("top topic wrong: %+v", ranks[0])
	}
	if ranks[0].DurationHours != 2 {
		t.Errorf("expected 2 hour span, got %f", ranks[0].DurationHours)
	}
}

func TestExtractEmptyInput(t *testing.T) {
	bag := Extract(nil)
	if bag.MemoryCount != 0 {
		t.Errorf("expected empty bag")
	}
	if len(bag.Connections) != 0 || len(bag.Questions) != 0 {
		t.Errorf("expected no derived data")
	}
}
