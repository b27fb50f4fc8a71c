// Package infra derives deterministic statistics from a set of memories.
// Everything here is a pure function of its input; no LLM calls.
package infra

import (
	"sort"
	"time"

	"github.com/vthunder/recall/internal/model"
)

// TemporalGap is the quiet-period threshold flagged in temporal patterns
const TemporalGap = 60 * time.Minute

// contextClip bounds stored per-person context snippets
const contextClip = 100

// Connection links two memories sharing people or topics. Strength counts
// the shared entities. The pairwise scan is O(n²) in period size, which is
// fine for a day or week of memories; knowledge clustering over larger
// windows uses embedding clustering instead, never this.
type Connection struct {
	MemoryA  string   `json:"memory_a"`
	MemoryB  string   `json:"memory_b"`
	Strength int      `json:"strength"`
	Shared   []string `json:"shared"`
}

// Gap is a quiet period between consecutive memories
type Gap struct {
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	DurationMinutes float64   `json:"duration_minutes"`
}

// TemporalPatterns holds activity histograms and quiet periods
type TemporalPatterns struct {
	ByHour map[int]int    `json:"by_hour"`
	ByDay  map[string]int `json:"by_day"`
	Gaps   []Gap          `json:"gaps"`
}

// PersonStats aggregates mentions of one person
type PersonStats struct {
	Count      int         `json:"count"`
	Contexts   []string    `json:"contexts"`
	Timestamps []time.Time `json:"timestamps"`
}

// TaskItem is an actionable item found in the period
type TaskItem struct {
	Task      string    `json:"task"`
	Urgency   string    `json:"urgency"`
	Completed bool      `json:"completed"`
	Timestamp time.Time `json:"timestamp"`
	MemoryID  string    `json:"memory_id"`
}

// Emotions aggregates mood observations in time order
type Emotions struct {
	Moods      []string          `json:"moods"`
	MoodCounts map[string]int    `json:"mood_counts"`
	Journey    []model.MoodPoint `json:"emotional_journey"`
}

// TopicRank is one topic with its frequency and active span
type TopicRank struct {
	Topic         string  `json:"topic"`
	Count         int     `json:"count"`
	DurationHours float64 `json:"duration_hours"`
}

// Bag is the full set of derived statistics for a memory set
type Bag struct {
	MemoryCount   int                     `json:"memory_count"`
	Connections   []Connection            `json:"connections"`
	TopicClusters map[string][]int        `json:"clusters"`
	Temporal      TemporalPatterns        `json:"temporal_patterns"`
	People        map[string]*PersonStats `json:"people"`
	Decisions     []model.Decision        `json:"decisions"`
	Questions     []string                `json:"questions"`
	Tasks         []TaskItem              `json:"tasks"`
	Emotions      Emotions                `json:"emotions"`
	Topics        []TopicRank             `json:"topics"`
}

// Extract computes the full infrastructure bag. Memories must be sorted
// by timestamp ascending; gap detection depends on that order.
func Extract(memories []*model.Memory) Bag {
	return Bag{
		MemoryCount:   len(memories),
		Connections:   FindConnections(memories),
		TopicClusters: ClusterByTopic(memories),
		Temporal:      TemporalOf(memories),
		People:        PeopleOf(memories),
		Decisions:     DecisionsOf(memories),
		Questions:     QuestionsOf(memories),
		Tasks:         TasksOf(memories),
		Emotions:      EmotionsOf(memories),
		Topics:        RankTopics(memories),
	}
}

// FindConnections scans every unordered pair for shared people or topics
func FindConnections(memories []*model.Memory) []Connection {
	var connections []Connection
	for i := 0; i < len(memories); i++ {
		for j := i + 1; j < len(memories); j++ {
			strength := 0
			var shared []string
			for _, p := range intersect(memories[i].Extracted.People, memories[j].Extracted.People) {
				strength++
				shared = append(shared, p)
			}
			for _, t := range intersect(memories[i].Extracted.Topics, memories[j].Extracted.Topics) {
				strength++
				shared = append(shared, t)
			}
			if strength > 0 {
				connections = append(connections, Connection{
					MemoryA:  memories[i].UUID,
					MemoryB:  memories[j].UUID,
					Strength: strength,
					Shared:   shared,
				})
			}
		}
	}
	return connections
}

// ClusterByTopic buckets memory indices by each topic they mention
func ClusterByTopic(memories []*model.Memory) map[string][]int {
	clusters := make(map[string][]int)
	for i, m := range memories {
		for _, topic := range m.Extracted.Topics {
			clusters[topic] = append(clusters[topic], i)
		}
	}
	return clusters
}

// TemporalOf builds hour/day histograms and flags gaps over TemporalGap
func TemporalOf(memories []*model.Memory) TemporalPatterns {
	p := TemporalPatterns{
		ByHour: make(map[int]int),
		ByDay:  make(map[string]int),
	}
	for i, m := range memories {
		p.ByHour[m.Timestamp.Hour()]++
		p.ByDay[m.Timestamp.Weekday().String()]++

		if i > 0 {
			gap := m.Timestamp.Sub(memories[i-1].Timestamp)
			if gap > TemporalGap {
				p.Gaps = append(p.Gaps, Gap{
					Start:           memories[i-1].Timestamp,
					End:             m.Timestamp,
					DurationMinutes: gap.Minutes(),
				})
			}
		}
	}
	return p
}

// PeopleOf aggregates per-person mention counts with context snippets
func PeopleOf(memories []*model.Memory) map[string]*PersonStats {
	people := make(map[string]*PersonStats)
	for _, m := range memories {
		for _, name := range m.Extracted.People {
			stats, ok := people[name]
			if !ok {
				stats = &PersonStats{}
				people[name] = stats
			}
			stats.Count++
			context := m.RawText
			if len(context) > contextClip {
				context = context[:contextClip]
			}
			stats.Contexts = append(stats.Contexts, context)
			stats.Timestamps = append(stats.Timestamps, m.Timestamp)
		}
	}
	return people
}

// DecisionsOf collects decisions from decision-typed memories and from
// extracted decision lists
func DecisionsOf(memories []*model.Memory) []model.Decision {
	var decisions []model.Decision
	seen := make(map[string]bool)
	for _, m := range memories {
		if m.ThoughtType == model.ThoughtDecision && len(m.Extracted.Decisions) == 0 {
			d := model.Decision{Decision: m.Summary}
			if d.Decision == "" {
				d.Decision = m.RawText
			}
			if !seen[d.Decision] {
				seen[d.Decision] = true
				decisions = append(decisions, d)
			}
		}
		for _, d := range m.Extracted.Decisions {
			if d.Decision == "" || seen[d.Decision] {
				continue
			}
			seen[d.Decision] = true
			decisions = append(decisions, d)
		}
	}
	return decisions
}

// QuestionsOf collects unique questions, insertion order preserved
func QuestionsOf(memories []*model.Memory) []string {
	var questions []string
	seen := make(map[string]bool)
	for _, m := range memories {
		for _, q := range m.Extracted.Questions {
			if q.Question == "" || seen[q.Question] {
				continue
			}
			seen[q.Question] = true
			questions = append(questions, q.Question)
		}
	}
	return questions
}

// TasksOf collects actionable items
func TasksOf(memories []*model.Memory) []TaskItem {
	var tasks []TaskItem
	for _, m := range memories {
		if !m.Extracted.Actionable {
			continue
		}
		task := m.Summary
		if len(m.Extracted.Actions) > 0 {
			task = m.Extracted.Actions[0].Text
		}
		if task == "" {
			task = m.RawText
		}
		tasks = append(tasks, TaskItem{
			Task:      task,
			Urgency:   m.Extracted.Urgency,
			Completed: m.Extracted.Completed,
			Timestamp: m.Timestamp,
			MemoryID:  m.UUID,
		})
	}
	return tasks
}

// EmotionsOf collects moods in time order
func EmotionsOf(memories []*model.Memory) Emotions {
	e := Emotions{MoodCounts: make(map[string]int)}
	for _, m := range memories {
		feeling := m.Extracted.Mood.Feeling
		if feeling == "" {
			continue
		}
		e.Moods = append(e.Moods, feeling)
		e.MoodCounts[feeling]++
		e.Journey = append(e.Journey, model.MoodPoint{Time: m.Timestamp, Feeling: feeling})
	}
	return e
}

// RankTopics orders topics by frequency, recording each topic's active span
func RankTopics(memories []*model.Memory) []TopicRank {
	type span struct {
		count       int
		first, last time.Time
	}
	spans := make(map[string]*span)
	var order []string
	for _, m := range memories {
		for _, topic := range m.Extracted.Topics {
			sp, ok := spans[topic]
			if !ok {
				sp = &span{first: m.Timestamp}
				spans[topic] = sp
				order = append(order, topic)
			}
			sp.count++
			sp.last = m.Timestamp
		}
	}

	ranks := make([]TopicRank, 0, len(order))
	for _, topic := range order {
		sp := spans[topic]
		ranks = append(ranks, TopicRank{
			Topic:         topic,
			Count:         sp.count,
			DurationHours: sp.last.Sub(sp.first).Hours(),
		})
	}
	sort.SliceStable(ranks, func(i, j int) bool { return ranks[i].Count > ranks[j].Count })
	return ranks
}

func intersect(a, b []string) []string {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	set := make(map[string]bool, len(a))
	for _, s := range a {
		set[s] = true
	}
	var out []string
	for _, s := range b {
		if set[s] {
			out = append(out, s)
			set[s] = false
		}
	}
	return out
}
