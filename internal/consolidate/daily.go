package consolidate

import (
	"fmt"
	"sort"
	"time"

	"github.com/vthunder/recall/internal/infra"
	"github.com/vthunder/recall/internal/logging"
	"github.com/vthunder/recall/internal/model"
)

// ThreadGap starts a new thought thread when consecutive memories are
// further apart than this
const ThreadGap = 30 * time.Minute

// Importance score weights. These are fixed design constants; tests
// assert exact scores on fixture data.
const (
	weightDecisions   = 2.0
	weightCompleted   = 1.5
	weightQuestions   = 1.0
	weightPeople      = 1.0
	weightThreads     = 0.5
	peopleCap         = 5
	importanceDivisor = 5.0
	importanceCeiling = 10.0
)

const (
	maxDailyTopics       = 10
	maxDailyInteractions = 10
	maxOpenQuestions     = 20
	maxTopicMemoryRefs   = 5
	maxContextSnippets   = 3
)

// ImportanceScore ranks a day from its headline counts: weighted sum
// normalized by importanceDivisor and capped at importanceCeiling
func ImportanceScore(decisions, completedActions, questions, people, threads int) float64 {
	if people > peopleCap {
		people = peopleCap
	}
	score := (float64(decisions)*weightDecisions +
		float64(completedActions)*weightCompleted +
		float64(questions)*weightQuestions +
		float64(people)*weightPeople +
		float64(threads)*weightThreads) / importanceDivisor
	if score > importanceCeiling {
		return importanceCeiling
	}
	return score
}

// ConsolidateDay processes one calendar day of completed memories.
// With no custom prompt, an existing record is returned unchanged
// (at-most-once by default); a custom prompt forces re-synthesis and
// upsert. A day with no memories returns nil without writing.
func (c *Consolidator) ConsolidateDay(date time.Time, opts Options) (*model.DailyConsolidation, error) {
	dateKey := date.Format("2006-01-02")

	existing, err := c.store.DailyConsolidationByDate(dateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing consolidation: %w", err)
	}
	if existing != nil && opts.CustomPrompt == "" {
		logging.Debug("consolidate", "day %s already consolidated", dateKey)
		return existing, nil
	}

	memories, err := c.store.MemoriesForDate(date)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch memories for %s: %w", dateKey, err)
	}
	if len(memories) == 0 {
		logging.Info("consolidate", "no memories for %s", dateKey)
		return nil, nil
	}

	logging.Info("consolidate", "consolidating %d memories from %s", len(memories), dateKey)

	bag := infra.Extract(memories)
	threads := SegmentThreads(memories)
	energy := energyPattern(memories)
	completed := completedActions(memories)

	record := &model.DailyConsolidation{
		Date:             dateKey,
		KeyDecisions:     bag.Decisions,
		MainTopics:       mainTopics(bag, memories),
		EmotionalArc:     emotionalArc(bag.Emotions),
		Interactions:     interactions(bag, memories),
		Insights:         dayInsights(memories),
		CompletedActions: completed,
		OpenQuestions:    openQuestions(bag.Questions),
		EnergyPattern:    energy,
		ThoughtThreads:   threads,
		SourceMemoryIDs:  memoryIDs(memories),
	}
	record.ImportanceScore = ImportanceScore(
		len(bag.Decisions), len(completed), len(bag.Questions), len(bag.People), len(threads))

	if !opts.SkipSynthesis {
		record.Narrative = c.Synthesize(bag, memories, "daily", opts)
	}

	if err := c.store.UpsertDailyConsolidation(record); err != nil {
		return nil, fmt.Errorf("failed to store daily consolidation: %w", err)
	}
	return record, nil
}

// ConsolidateRecentDays runs daily consolidation for the past n days,
// skipping already-consolidated dates. Per-day failures are logged and
// counted, never propagated.
func (c *Consolidator) ConsolidateRecentDays(n int, opts Options) (processed, failed int) {
	for i := 1; i <= n; i++ {
		date := time.Now().AddDate(0, 0, -i)
		if _, err := c.ConsolidateDay(date, opts); err != nil {
			logging.Warn("consolidate", "day %s failed: %v", date.Format("2006-01-02"), err)
			failed++
			continue
		}
		processed++
	}
	return processed, failed
}

// SegmentThreads walks memories in time order and starts a new thread
// whenever the gap since the previous memory exceeds ThreadGap
func SegmentThreads(memories []*model.Memory) []model.ThoughtThread {
	var threads []model.ThoughtThread
	var current []*model.Memory

	flush := func() {
		if len(current) == 0 {
			return
		}
		threads = append(threads, model.ThoughtThread{
			Start:         current[0].Timestamp,
			End:           current[len(current)-1].Timestamp,
			MemoryCount:   len(current),
			DominantTopic: dominantTopic(current),
			MemoryIDs:     memoryIDs(current),
		})
		current = nil
	}

	for _, m := range memories {
		if len(current) > 0 && m.Timestamp.Sub(current[len(current)-1].Timestamp) > ThreadGap {
			flush()
		}
		current = append(current, m)
	}
	flush()
	return threads
}

// dominantTopic picks the most frequent topic tag within a thread, ties
// broken by first encounter; "general" when no memory carries topics
func dominantTopic(memories []*model.Memory) string {
	counts := make(map[string]int)
	var order []string
	for _, m := range memories {
		for _, topic := range m.Extracted.Topics {
			if counts[topic] == 0 {
				order = append(order, topic)
			}
			counts[topic]++
		}
	}
	best := "general"
	bestCount := 0
	for _, topic := range order {
		if counts[topic] > bestCount {
			best = topic
			bestCount = counts[topic]
		}
	}
	return best
}

func energyPattern(memories []*model.Memory) model.EnergyPattern {
	p := model.EnergyPattern{
		Hours:              make(map[int]model.HourActivity),
		MostProductiveHour: -1,
	}
	for _, m := range memories {
		hour := m.Timestamp.Hour()
		act := p.Hours[hour]
		act.Total++
		if m.Extracted.Actionable {
			act.Actionable++
			if m.Extracted.Completed {
				act.Completed++
			}
		}
		p.Hours[hour] = act
	}

	type hourCount struct {
		hour, total, completed int
	}
	var hours []hourCount
	for h, act := range p.Hours {
		hours = append(hours, hourCount{h, act.Total, act.Completed})
	}
	sort.Slice(hours, func(i, j int) bool {
		if hours[i].total != hours[j].total {
			return hours[i].total > hours[j].total
		}
		return hours[i].hour < hours[j].hour
	})
	for i := 0; i < len(hours) && i < 3; i++ {
		p.PeakHours = append(p.PeakHours, hours[i].hour)
	}

	bestCompleted := 0
	for _, hc := range hours {
		if hc.completed > bestCompleted {
			bestCompleted = hc.completed
			p.MostProductiveHour = hc.hour
		}
	}
	return p
}

func completedActions(memories []*model.Memory) []model.CompletedAction {
	var out []model.CompletedAction
	for _, m := range memories {
		if !m.Extracted.Actionable || !m.Extracted.Completed {
			continue
		}
		task := m.Summary
		if len(m.Extracted.Actions) > 0 {
			task = m.Extracted.Actions[0].Text
		}
		if task == "" {
			task = logging.Truncate(m.RawText, 100)
		}
		out = append(out, model.CompletedAction{
			Task:      task,
			Timestamp: m.Timestamp,
			MemoryID:  m.UUID,
		})
	}
	return out
}

func mainTopics(bag infra.Bag, memories []*model.Memory) []model.TopicSummary {
	topics := bag.Topics
	if len(topics) > maxDailyTopics {
		topics = topics[:maxDailyTopics]
	}
	out := make([]model.TopicSummary, 0, len(topics))
	for _, rank := range topics {
		summary := model.TopicSummary{Topic: rank.Topic, Count: rank.Count}
		for _, idx := range bag.TopicClusters[rank.Topic] {
			if len(summary.MemoryIDs) >= maxTopicMemoryRefs {
				break
			}
			summary.MemoryIDs = append(summary.MemoryIDs, memories[idx].UUID)
		}
		out = append(out, summary)
	}
	return out
}

func emotionalArc(emotions infra.Emotions) model.EmotionalArc {
	arc := model.EmotionalArc{Journey: emotions.Journey}

	unique := len(emotions.MoodCounts)
	total := len(emotions.Moods)
	switch {
	case total == 0:
		arc.Pattern = "stable"
	case unique == 1:
		arc.Pattern = "stable"
	case unique*2 > total:
		arc.Pattern = "volatile"
	default:
		arc.Pattern = "varied"
	}

	for i := 1; i < len(emotions.Moods); i++ {
		if emotions.Moods[i] != emotions.Moods[i-1] {
			arc.Shifts++
		}
	}

	best := 0
	for mood, count := range emotions.MoodCounts {
		if count > best || (count == best && arc.DominantMood == "") {
			best = count
			arc.DominantMood = mood
		}
	}
	return arc
}

func interactions(bag infra.Bag, memories []*model.Memory) []model.Interaction {
	out := make([]model.Interaction, 0, len(bag.People))
	for person, stats := range bag.People {
		inter := model.Interaction{Person: person, Count: stats.Count}
		contexts := stats.Contexts
		if len(contexts) > maxContextSnippets {
			contexts = contexts[:maxContextSnippets]
		}
		inter.Contexts = contexts
		for _, m := range memories {
			if len(inter.MemoryIDs) >= maxContextSnippets {
				break
			}
			for _, p := range m.Extracted.People {
				if p == person {
					inter.MemoryIDs = append(inter.MemoryIDs, m.UUID)
					break
				}
			}
		}
		out = append(out, inter)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Person < out[j].Person
	})
	if len(out) > maxDailyInteractions {
		out = out[:maxDailyInteractions]
	}
	return out
}

func dayInsights(memories []*model.Memory) []string {
	var insights []string
	seen := make(map[string]bool)
	for _, m := range memories {
		if m.ThoughtType == model.ThoughtIdea && m.Summary != "" && !seen[m.Summary] {
			seen[m.Summary] = true
			insights = append(insights, m.Summary)
		}
		for _, idea := range m.Extracted.Ideas {
			if idea.Idea == "" || seen[idea.Idea] {
				continue
			}
			seen[idea.Idea] = true
			insights = append(insights, idea.Idea)
		}
	}
	return insights
}

func openQuestions(questions []string) []string {
	if len(questions) > maxOpenQuestions {
		return questions[:maxOpenQuestions]
	}
	return questions
}

func memoryIDs(memories []*model.Memory) []string {
	ids := make([]string, len(memories))
	for i, m := range memories {
		ids[i] = m.UUID
	}
	return ids
}
