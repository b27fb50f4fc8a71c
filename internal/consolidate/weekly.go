package consolidate

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/vthunder/recall/internal/infra"
	"github.com/vthunder/recall/internal/logging"
	"github.com/vthunder/recall/internal/model"
)

// Weekly analysis thresholds
const (
	minThemeOccurrences = 3
	trendRatio          = 1.5
	sentimentRatio      = 2
	maxCollaborators    = 5
	maxRecommendations  = 5
	highStressWeek      = 5
)

var blockerKeywords = []string{"blocked", "stuck", "waiting", "can't", "unable", "issue", "problem"}
var stressKeywords = []string{"stress", "anxious", "worried", "overwhelmed", "frustrated", "angry", "upset"}
var successKeywords = []string{"success", "achieved", "completed", "solved", "fixed", "great", "excellent", "breakthrough"}
var positiveKeywords = []string{"good", "great", "excellent", "success", "achieved", "solved", "fixed", "excited", "breakthrough"}
var negativeKeywords = []string{"bad", "problem", "issue", "failed", "stuck", "blocked", "frustrated", "worried"}
var resolutionKeywords = []string{"resolved", "fixed", "solved", "figured out", "unblocked"}

// ClassifyTrend compares a theme's mentions between the first and second
// half of the week
func ClassifyTrend(firstHalf, secondHalf int) string {
	switch {
	case float64(secondHalf) > float64(firstHalf)*trendRatio:
		return "increasing"
	case float64(firstHalf) > float64(secondHalf)*trendRatio:
		return "decreasing"
	default:
		return "stable"
	}
}

// ClassifySentiment compares positive and negative mention counts
func ClassifySentiment(positive, negative int) string {
	switch {
	case positive > sentimentRatio*negative && positive > 0:
		return "positive"
	case negative > sentimentRatio*positive && negative > 0:
		return "negative"
	default:
		return "mixed"
	}
}

// WeekBounds returns the [start, end) window of an ISO week
func WeekBounds(week, year int) (time.Time, time.Time) {
	// Jan 4 is always inside ISO week 1
	jan4 := time.Date(year, 1, 4, 0, 0, 0, 0, time.Local)
	weekday := int(jan4.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday
	}
	monday := jan4.AddDate(0, 0, 1-weekday)
	start := monday.AddDate(0, 0, (week-1)*7)
	return start, start.AddDate(0, 0, 7)
}

// IdentifyPatterns analyzes one ISO week of memories and stores the
// pattern record keyed by (week, year). Without a custom prompt an
// existing record is returned unchanged.
func (c *Consolidator) IdentifyPatterns(week, year int, opts Options) (*model.WeeklyPattern, error) {
	existing, err := c.store.WeeklyPattern(week, year)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing weekly pattern: %w", err)
	}
	if existing != nil && opts.CustomPrompt == "" {
		logging.Debug("consolidate", "week %d/%d already analyzed", week, year)
		return existing, nil
	}

	start, end := WeekBounds(week, year)
	memories, err := c.store.MemoriesBetween(start, end.Add(-time.Nanosecond))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch memories for week %d/%d: %w", week, year, err)
	}
	if len(memories) == 0 {
		logging.Info("consolidate", "no memories for week %d/%d", week, year)
		return nil, nil
	}

	logging.Info("consolidate", "analyzing %d memories from week %d/%d", len(memories), week, year)

	record := &model.WeeklyPattern{
		WeekNumber:      week,
		Year:            year,
		RecurringThemes: recurringThemes(memories),
		Productivity:    productivityPatterns(memories),
		Collaboration:   collaborationPatterns(memories),
		Decisions:       decisionPatterns(memories),
		Blockers:        blockerPatterns(memories),
		Creative:        creativePatterns(memories),
		Stress:          stressPatterns(memories),
		Success:         successPatterns(memories),
	}
	record.Recommendations = recommendations(record)
	record.SourceConsolidationIDs = c.sourceDailyIDs(start, end)

	if !opts.SkipSynthesis {
		bag := infra.Extract(memories)
		record.Insights = c.Synthesize(bag, memories, "weekly", opts)
	}

	if err := c.store.UpsertWeeklyPattern(record); err != nil {
		return nil, fmt.Errorf("failed to store weekly pattern: %w", err)
	}
	return record, nil
}

func (c *Consolidator) sourceDailyIDs(start, end time.Time) []int64 {
	dailies, err := c.store.DailyConsolidationsBetween(
		start.Format("2006-01-02"), end.AddDate(0, 0, -1).Format("2006-01-02"))
	if err != nil {
		logging.Warn("consolidate", "failed to link daily consolidations: %v", err)
		return nil
	}
	ids := make([]int64, 0, len(dailies))
	for _, d := range dailies {
		ids = append(ids, d.ID)
	}
	return ids
}

// recurringThemes finds topics mentioned at least minThemeOccurrences
// times, with trend and sentiment classification
func recurringThemes(memories []*model.Memory) []model.Theme {
	type themeData struct {
		count, firstHalf, secondHalf int
		positive, negative           int
		days                         map[string]bool
		contexts                     []string
	}

	half := len(memories) / 2
	themes := make(map[string]*themeData)
	var order []string

	for i, m := range memories {
		lower := strings.ToLower(m.RawText)
		for _, topic := range m.Extracted.Topics {
			td, ok := themes[topic]
			if !ok {
				td = &themeData{days: make(map[string]bool)}
				themes[topic] = td
				order = append(order, topic)
			}
			td.count++
			if i < half {
				td.firstHalf++
			} else {
				td.secondHalf++
			}
			td.days[m.Timestamp.Format("2006-01-02")] = true
			for _, kw := range positiveKeywords {
				if strings.Contains(lower, kw) {
					td.positive++
					break
				}
			}
			for _, kw := range negativeKeywords {
				if strings.Contains(lower, kw) {
					td.negative++
					break
				}
			}
			if len(td.contexts) < maxContextSnippets {
				td.contexts = append(td.contexts, logging.Truncate(m.RawText, 100))
			}
		}
	}

	var out []model.Theme
	for _, topic := range order {
		td := themes[topic]
		if td.count < minThemeOccurrences {
			continue
		}
		out = append(out, model.Theme{
			Theme:           topic,
			Occurrences:     td.count,
			Trend:           ClassifyTrend(td.firstHalf, td.secondHalf),
			Sentiment:       ClassifySentiment(td.positive, td.negative),
			DaysPresent:     len(td.days),
			ExampleContexts: td.contexts,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Occurrences > out[j].Occurrences })
	return out
}

func productivityPatterns(memories []*model.Memory) model.ProductivityPattern {
	p := model.ProductivityPattern{
		ByDay:  make(map[string]model.HourActivity),
		ByHour: make(map[int]model.HourActivity),
	}
	totalActionable, totalCompleted := 0, 0

	for _, m := range memories {
		day := m.Timestamp.Weekday().String()
		hour := m.Timestamp.Hour()

		dayAct := p.ByDay[day]
		hourAct := p.ByHour[hour]
		dayAct.Total++
		hourAct.Total++
		if m.Extracted.Actionable {
			dayAct.Actionable++
			hourAct.Actionable++
			totalActionable++
			if m.Extracted.Completed {
				dayAct.Completed++
				hourAct.Completed++
				totalCompleted++
			}
		}
		p.ByDay[day] = dayAct
		p.ByHour[hour] = hourAct
	}

	type hc struct{ hour, total int }
	var hours []hc
	for h, act := range p.ByHour {
		hours = append(hours, hc{h, act.Total})
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

	bestCompleted := -1
	for day, act := range p.ByDay {
		if act.Completed > bestCompleted ||
			(act.Completed == bestCompleted && day < p.MostProductiveDay) {
			bestCompleted = act.Completed
			p.MostProductiveDay = day
		}
	}

	if totalActionable > 0 {
		p.CompletionRate = float64(totalCompleted) / float64(totalActionable)
	}
	return p
}

func collaborationPatterns(memories []*model.Memory) model.CollaborationPattern {
	type personData struct {
		count int
		days  map[string]bool
		types map[string]int
	}
	people := make(map[string]*personData)

	total := 0
	for _, m := range memories {
		for _, name := range m.Extracted.People {
			pd, ok := people[name]
			if !ok {
				pd = &personData{days: make(map[string]bool), types: make(map[string]int)}
				people[name] = pd
			}
			pd.count++
			pd.days[m.Timestamp.Format("2006-01-02")] = true
			pd.types[string(m.ThoughtType)]++
			total++
		}
	}

	out := model.CollaborationPattern{TotalInteractions: total}
	for name, pd := range people {
		out.FrequentCollaborators = append(out.FrequentCollaborators, model.Collaborator{
			Person:       name,
			Interactions: pd.count,
			Days:         len(pd.days),
			ThoughtTypes: pd.types,
		})
	}
	sort.Slice(out.FrequentCollaborators, func(i, j int) bool {
		a, b := out.FrequentCollaborators[i], out.FrequentCollaborators[j]
		if a.Interactions != b.Interactions {
			return a.Interactions > b.Interactions
		}
		return a.Person < b.Person
	})
	if len(out.FrequentCollaborators) > maxCollaborators {
		out.FrequentCollaborators = out.FrequentCollaborators[:maxCollaborators]
	}
	return out
}

func decisionPatterns(memories []*model.Memory) model.DecisionPattern {
	p := model.DecisionPattern{PerDay: make(map[string]int), PeakHour: -1}
	hourCounts := make(map[int]int)
	contextCounts := make(map[string]int)
	var contextOrder []string

	for _, m := range memories {
		isDecision := m.ThoughtType == model.ThoughtDecision || len(m.Extracted.Decisions) > 0
		if !isDecision {
			continue
		}
		p.Total++
		p.PerDay[m.Timestamp.Weekday().String()]++
		hourCounts[m.Timestamp.Hour()]++
		for _, topic := range m.Extracted.Topics {
			if contextCounts[topic] == 0 {
				contextOrder = append(contextOrder, topic)
			}
			contextCounts[topic]++
		}
		if len(p.Samples) < maxContextSnippets {
			sample := m.Summary
			if sample == "" {
				sample = logging.Truncate(m.RawText, 100)
			}
			p.Samples = append(p.Samples, sample)
		}
	}

	best := 0
	for hour, count := range hourCounts {
		if count > best || (count == best && hour < p.PeakHour) {
			best = count
			p.PeakHour = hour
		}
	}

	sort.SliceStable(contextOrder, func(i, j int) bool {
		return contextCounts[contextOrder[i]] > contextCounts[contextOrder[j]]
	})
	if len(contextOrder) > 5 {
		contextOrder = contextOrder[:5]
	}
	p.TopContexts = contextOrder
	return p
}

func blockerPatterns(memories []*model.Memory) model.BlockerPattern {
	p := model.BlockerPattern{}
	themeCounts := make(map[string]int)
	var themeOrder []string

	for _, m := range memories {
		lower := strings.ToLower(m.RawText)
		if !containsAnyKeyword(lower, blockerKeywords) {
			continue
		}
		blocker := model.Blocker{
			Text:      logging.Truncate(m.RawText, 100),
			Timestamp: m.Timestamp,
			Resolved:  containsAnyKeyword(lower, resolutionKeywords),
		}
		p.Count++
		if blocker.Resolved {
			p.Resolved++
		}
		p.Blockers = append(p.Blockers, blocker)
		for _, topic := range m.Extracted.Topics {
			if themeCounts[topic] == 0 {
				themeOrder = append(themeOrder, topic)
			}
			themeCounts[topic]++
		}
	}

	sort.SliceStable(themeOrder, func(i, j int) bool {
		return themeCounts[themeOrder[i]] > themeCounts[themeOrder[j]]
	})
	if len(themeOrder) > 5 {
		themeOrder = themeOrder[:5]
	}
	p.Themes = themeOrder
	return p
}

func creativePatterns(memories []*model.Memory) model.CreativePattern {
	p := model.CreativePattern{PeakHour: -1}
	hourCounts := make(map[int]int)
	dayCounts := make(map[string]int)

	for _, m := range memories {
		if m.ThoughtType != model.ThoughtIdea && len(m.Extracted.Ideas) == 0 {
			continue
		}
		p.Total++
		hourCounts[m.Timestamp.Hour()]++
		dayCounts[m.Timestamp.Weekday().String()]++
	}

	best := 0
	for hour, count := range hourCounts {
		if count > best || (count == best && hour < p.PeakHour) {
			best = count
			p.PeakHour = hour
		}
	}
	best = 0
	for day, count := range dayCounts {
		if count > best || (count == best && day < p.PeakDay) {
			best = count
			p.PeakDay = day
		}
	}
	return p
}

func stressPatterns(memories []*model.Memory) model.StressPattern {
	p := model.StressPattern{Triggers: make(map[string]int), PeakHour: -1}
	hourCounts := make(map[int]int)

	for _, m := range memories {
		lower := strings.ToLower(m.RawText)
		hit := false
		for _, kw := range stressKeywords {
			if strings.Contains(lower, kw) {
				p.Triggers[kw]++
				hit = true
			}
		}
		if hit {
			p.Count++
			hourCounts[m.Timestamp.Hour()]++
		}
	}

	best := 0
	for hour, count := range hourCounts {
		if count > best || (count == best && hour < p.PeakHour) {
			best = count
			p.PeakHour = hour
		}
	}
	return p
}

func successPatterns(memories []*model.Memory) model.SuccessPattern {
	p := model.SuccessPattern{}
	dayCounts := make(map[string]int)

	for _, m := range memories {
		lower := strings.ToLower(m.RawText)
		if !containsAnyKeyword(lower, successKeywords) {
			continue
		}
		p.Count++
		dayCounts[m.Timestamp.Weekday().String()]++
		if len(p.Samples) < maxContextSnippets {
			p.Samples = append(p.Samples, logging.Truncate(m.RawText, 100))
		}
	}

	best := 0
	for day, count := range dayCounts {
		if count > best || (count == best && day < p.PeakDay) {
			best = count
			p.PeakDay = day
		}
	}
	return p
}

// recommendations is a rule list: each derived pattern is checked
// independently, max maxRecommendations emitted
func recommendations(w *model.WeeklyPattern) []string {
	var recs []string

	if w.Productivity.CompletionRate > 0 && w.Productivity.CompletionRate < 0.5 {
		recs = append(recs, "Task completion was below half. Break large tasks into smaller, finishable pieces.")
	}
	if w.Blockers.Count > 0 && w.Blockers.Resolved*2 < w.Blockers.Count {
		recs = append(recs, "Most blockers went unresolved. Schedule time to clear or escalate them.")
	}
	if w.Creative.Total > 0 && w.Creative.PeakHour >= 0 {
		recs = append(recs, fmt.Sprintf("Ideas cluster around %d:00. Protect that hour for creative work.", w.Creative.PeakHour))
	}
	if w.Stress.Count > highStressWeek {
		recs = append(recs, "Stress indicators appeared repeatedly. Plan recovery time next week.")
	}
	for _, theme := range w.RecurringThemes {
		if theme.Trend == "decreasing" && theme.Sentiment == "negative" {
			recs = append(recs, fmt.Sprintf("The %q theme is fading on a negative note. Decide whether to close it out or recommit.", theme.Theme))
			break
		}
	}
	if w.Collaboration.TotalInteractions > 0 && w.Collaboration.TotalInteractions < 7*2 {
		recs = append(recs, "Collaboration was light this week. Check in with the people you are waiting on.")
	}

	if len(recs) > maxRecommendations {
		recs = recs[:maxRecommendations]
	}
	return recs
}

func containsAnyKeyword(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
