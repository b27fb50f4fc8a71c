package prompts

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/vthunder/recall/internal/model"
)

// Detection thresholds. Defaults carried from long use; change only with
// evidence they are wrong.
const (
	ThresholdHighStress         = 5
	ThresholdManyDecisions      = 10
	ThresholdLowCompletion      = 0.5
	ThresholdHeavyCollaboration = 8
	ThresholdCreativeBurst      = 5
	ThresholdHighVolatility     = 0.7
	ThresholdManyQuestions      = 10
)

var stressIndicators = []string{"stress", "anxious", "worried", "overwhelmed", "frustrated"}
var creativeIndicators = []string{"idea", "insight", "realized", "discovered", "breakthrough"}

// Context is the ephemeral descriptor computed per consolidation run.
// It is never persisted; recompute it for each batch.
type Context struct {
	MemoryCount         int
	StressCount         int
	DecisionCount       int
	TaskCount           int
	CompletedCount      int
	TaskCompletionRate  float64
	UniquePeople        []string
	PeopleMentioned     int
	CreativeInsights    int
	QuestionsRaised     int
	EmotionalVolatility float64

	HighStressPeriod   bool
	CollaborationHeavy bool
	CreativeBurst      bool

	// Optional pattern enrichment (from weekly data when available)
	PeakHours      []int
	StressTriggers map[string]int
}

// AnalyzeContext scans a memory batch against the fixed thresholds
func AnalyzeContext(memories []*model.Memory) Context {
	ctx := Context{MemoryCount: len(memories)}
	if len(memories) == 0 {
		return ctx
	}

	peopleSet := make(map[string]bool)
	var peopleOrder []string
	var moods []string

	for _, m := range memories {
		lower := strings.ToLower(m.RawText)
		if containsAny(lower, stressIndicators) {
			ctx.StressCount++
		}
		if containsAny(lower, creativeIndicators) {
			ctx.CreativeInsights++
		}

		if m.ThoughtType == model.ThoughtDecision || len(m.Extracted.Decisions) > 0 {
			ctx.DecisionCount++
		}
		if m.Extracted.Actionable {
			ctx.TaskCount++
			if m.Extracted.Completed {
				ctx.CompletedCount++
			}
		}
		for _, p := range m.Extracted.People {
			if !peopleSet[p] {
				peopleSet[p] = true
				peopleOrder = append(peopleOrder, p)
			}
		}
		ctx.QuestionsRaised += len(m.Extracted.Questions)
		if m.Extracted.Mood.Feeling != "" {
			moods = append(moods, m.Extracted.Mood.Feeling)
		}
	}

	ctx.UniquePeople = peopleOrder
	ctx.PeopleMentioned = len(peopleOrder)
	if ctx.TaskCount > 0 {
		ctx.TaskCompletionRate = float64(ctx.CompletedCount) / float64(ctx.TaskCount)
	}
	if len(moods) > 0 {
		unique := make(map[string]bool)
		for _, mood := range moods {
			unique[mood] = true
		}
		ctx.EmotionalVolatility = float64(len(unique)) / float64(len(moods))
	}

	ctx.HighStressPeriod = ctx.StressCount >= ThresholdHighStress
	ctx.CollaborationHeavy = ctx.PeopleMentioned >= ThresholdHeavyCollaboration
	ctx.CreativeBurst = ctx.CreativeInsights >= ThresholdCreativeBurst

	return ctx
}

// ShouldUseContextual reports whether any special condition warrants a
// contextual prompt instead of the period default. A logical OR across
// independently meaningful conditions, not a weighted score.
func (c Context) ShouldUseContextual() bool {
	return c.HighStressPeriod ||
		c.CollaborationHeavy ||
		c.CreativeBurst ||
		(c.TaskCount > 0 && c.TaskCompletionRate < ThresholdLowCompletion) ||
		c.DecisionCount >= ThresholdManyDecisions ||
		c.EmotionalVolatility > ThresholdHighVolatility
}

// SuggestFocus names the most pressing focus area for synthesis
func (c Context) SuggestFocus() string {
	switch {
	case c.HighStressPeriod:
		return "stress_management"
	case c.TaskCount > 0 && c.TaskCompletionRate < ThresholdLowCompletion:
		return "productivity_blockers"
	case c.DecisionCount >= ThresholdManyDecisions:
		return "decision_quality"
	case c.CollaborationHeavy:
		return "team_dynamics"
	case c.CreativeBurst:
		return "creative_exploration"
	case c.EmotionalVolatility > ThresholdHighVolatility:
		return "emotional_patterns"
	case c.QuestionsRaised > ThresholdManyQuestions:
		return "knowledge_gaps"
	default:
		return "balanced_review"
	}
}

// Variables projects the context for {{var}} template interpolation
func (c Context) Variables() map[string]string {
	now := time.Now()
	vars := map[string]string{
		"memory_count":    fmt.Sprintf("%d", c.MemoryCount),
		"stress_level":    fmt.Sprintf("%d", c.StressCount),
		"task_count":      fmt.Sprintf("%d", c.TaskCount),
		"completion_rate": fmt.Sprintf("%.0f%%", c.TaskCompletionRate*100),
		"people_count":    fmt.Sprintf("%d", c.PeopleMentioned),
		"decision_count":  fmt.Sprintf("%d", c.DecisionCount),
		"creative_count":  fmt.Sprintf("%d", c.CreativeInsights),
		"date":            now.Format("2006-01-02"),
		"day_name":        now.Weekday().String(),
		"focus_area":      c.SuggestFocus(),
	}
	if len(c.UniquePeople) > 0 {
		names := c.UniquePeople
		if len(names) > 5 {
			names = names[:5]
		}
		vars["people_list"] = strings.Join(names, ", ")
	}
	if len(c.PeakHours) > 0 {
		hours := c.PeakHours
		if len(hours) > 3 {
			hours = hours[:3]
		}
		parts := make([]string, len(hours))
		for i, h := range hours {
			parts[i] = fmt.Sprintf("%d", h)
		}
		vars["peak_hours"] = strings.Join(parts, ", ")
	}
	if len(c.StressTriggers) > 0 {
		triggers := make([]string, 0, len(c.StressTriggers))
		for t := range c.StressTriggers {
			triggers = append(triggers, t)
		}
		sort.Strings(triggers)
		if len(triggers) > 3 {
			triggers = triggers[:3]
		}
		vars["stress_triggers"] = strings.Join(triggers, ", ")
	}
	return vars
}

// value resolves numeric condition keys used in contextual rules
func (c Context) value(key string) (float64, bool) {
	switch key {
	case "memory_count":
		return float64(c.MemoryCount), true
	case "stress_count", "stress_level":
		return float64(c.StressCount), true
	case "decision_count":
		return float64(c.DecisionCount), true
	case "task_count":
		return float64(c.TaskCount), true
	case "completed_count":
		return float64(c.CompletedCount), true
	case "task_completion_rate", "completion_rate":
		// Only meaningful when tasks exist; a taskless day must not read
		// as a 0% completion rate.
		if c.TaskCount == 0 {
			return 0, false
		}
		return c.TaskCompletionRate, true
	case "people_mentioned", "people_count":
		return float64(c.PeopleMentioned), true
	case "creative_insights", "creative_count":
		return float64(c.CreativeInsights), true
	case "questions_raised":
		return float64(c.QuestionsRaised), true
	case "emotional_volatility":
		return c.EmotionalVolatility, true
	}
	return 0, false
}

// flag resolves boolean condition keys used in contextual rules
func (c Context) flag(key string) bool {
	switch key {
	case "high_stress_period":
		return c.HighStressPeriod
	case "collaboration_heavy":
		return c.CollaborationHeavy
	case "creative_burst":
		return c.CreativeBurst
	}
	return false
}

func containsAny(text string, indicators []string) bool {
	for _, ind := range indicators {
		if strings.Contains(text, ind) {
			return true
		}
	}
	return false
}
