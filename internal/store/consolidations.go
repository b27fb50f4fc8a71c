package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vthunder/recall/internal/model"
)

// UpsertDailyConsolidation writes one record keyed by date. Re-running a
// consolidation for the same date replaces the stored record so that
// overlapping job runs converge.
func (s *Store) UpsertDailyConsolidation(c *model.DailyConsolidation) error {
	if c.Date == "" {
		return fmt.Errorf("daily consolidation requires a date")
	}

	fields, err := marshalAll(
		c.KeyDecisions, c.MainTopics, c.EmotionalArc, c.Interactions,
		c.Insights, c.CompletedActions, c.OpenQuestions, c.EnergyPattern,
		c.ThoughtThreads, c.SourceMemoryIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal daily consolidation: %w", err)
	}

	res, err := s.db.Exec(`
		INSERT INTO daily_consolidations (
			date, narrative, key_decisions, main_topics, emotional_arc,
			interactions, insights, completed_actions, open_questions,
			energy_pattern, thought_threads, source_memory_ids, importance_score)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			narrative = excluded.narrative,
			key_decisions = excluded.key_decisions,
			main_topics = excluded.main_topics,
			emotional_arc = excluded.emotional_arc,
			interactions = excluded.interactions,
			insights = excluded.insights,
			completed_actions = excluded.completed_actions,
			open_questions = excluded.open_questions,
			energy_pattern = excluded.energy_pattern,
			thought_threads = excluded.thought_threads,
			source_memory_ids = excluded.source_memory_ids,
			importance_score = excluded.importance_score`,
		c.Date, c.Narrative, fields[0], fields[1], fields[2], fields[3],
		fields[4], fields[5], fields[6], fields[7], fields[8], fields[9],
		c.ImportanceScore)
	if err != nil {
		return fmt.Errorf("failed to upsert daily consolidation: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil && c.ID == 0 {
		c.ID = id
	}
	return nil
}

// DailyConsolidationByDate returns the stored record for date (YYYY-MM-DD),
// or nil if the day has not been consolidated
func (s *Store) DailyConsolidationByDate(date string) (*model.DailyConsolidation, error) {
	row := s.db.QueryRow(`
		SELECT id, date, narrative, key_decisions, main_topics, emotional_arc,
			interactions, insights, completed_actions, open_questions,
			energy_pattern, thought_threads, source_memory_ids, importance_score, created_at
		FROM daily_consolidations WHERE date = ?`, date)
	c, err := scanDaily(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

// RecentDailyConsolidations returns the latest records, newest first
func (s *Store) RecentDailyConsolidations(limit int) ([]*model.DailyConsolidation, error) {
	if limit <= 0 {
		limit = 7
	}
	rows, err := s.db.Query(`
		SELECT id, date, narrative, key_decisions, main_topics, emotional_arc,
			interactions, insights, completed_actions, open_questions,
			energy_pattern, thought_threads, source_memory_ids, importance_score, created_at
		FROM daily_consolidations ORDER BY date DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.DailyConsolidation
	for rows.Next() {
		c, err := scanDaily(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DailyConsolidationsBetween returns records with date in [start, end]
func (s *Store) DailyConsolidationsBetween(start, end string) ([]*model.DailyConsolidation, error) {
	rows, err := s.db.Query(`
		SELECT id, date, narrative, key_decisions, main_topics, emotional_arc,
			interactions, insights, completed_actions, open_questions,
			energy_pattern, thought_threads, source_memory_ids, importance_score, created_at
		FROM daily_consolidations WHERE date BETWEEN ? AND ? ORDER BY date ASC`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.DailyConsolidation
	for rows.Next() {
		c, err := scanDaily(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DailyConsolidationForMemory finds the daily record whose source set
// contains the given memory uuid (provenance lookup)
func (s *Store) DailyConsolidationForMemory(memUUID string) (*model.DailyConsolidation, error) {
	row := s.db.QueryRow(`
		SELECT id, date, narrative, key_decisions, main_topics, emotional_arc,
			interactions, insights, completed_actions, open_questions,
			energy_pattern, thought_threads, source_memory_ids, importance_score, created_at
		FROM daily_consolidations WHERE source_memory_ids LIKE ? LIMIT 1`,
		"%"+memUUID+"%")
	c, err := scanDaily(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

func scanDaily(row rowScanner) (*model.DailyConsolidation, error) {
	var c model.DailyConsolidation
	var narrative sql.NullString
	var importance sql.NullFloat64
	raw := make([]sql.NullString, 10)

	err := row.Scan(&c.ID, &c.Date, &narrative,
		&raw[0], &raw[1], &raw[2], &raw[3], &raw[4], &raw[5], &raw[6], &raw[7], &raw[8], &raw[9],
		&importance, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	c.Narrative = narrative.String
	c.ImportanceScore = importance.Float64

	if err := unmarshalAll(raw,
		&c.KeyDecisions, &c.MainTopics, &c.EmotionalArc, &c.Interactions,
		&c.Insights, &c.CompletedActions, &c.OpenQuestions, &c.EnergyPattern,
		&c.ThoughtThreads, &c.SourceMemoryIDs); err != nil {
		return nil, fmt.Errorf("corrupt daily consolidation %s: %w", c.Date, err)
	}
	return &c, nil
}

// UpsertWeeklyPattern writes one record keyed by (week number, year)
func (s *Store) UpsertWeeklyPattern(w *model.WeeklyPattern) error {
	if w.WeekNumber <= 0 || w.Year <= 0 {
		return fmt.Errorf("weekly pattern requires week number and year")
	}

	fields, err := marshalAll(
		w.Recommendations, w.RecurringThemes, w.Productivity, w.Collaboration,
		w.Decisions, w.Blockers, w.Creative, w.Stress, w.Success,
		w.SourceConsolidationIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal weekly pattern: %w", err)
	}

	res, err := s.db.Exec(`
		INSERT INTO weekly_patterns (
			week_number, year, insights, recommendations, recurring_themes,
			productivity_patterns, collaboration_patterns, decision_patterns,
			blocker_patterns, creative_patterns, stress_triggers,
			success_patterns, source_consolidation_ids)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(week_number, year) DO UPDATE SET
			insights = excluded.insights,
			recommendations = excluded.recommendations,
			recurring_themes = excluded.recurring_themes,
			productivity_patterns = excluded.productivity_patterns,
			collaboration_patterns = excluded.collaboration_patterns,
			decision_patterns = excluded.decision_patterns,
			blocker_patterns = excluded.blocker_patterns,
			creative_patterns = excluded.creative_patterns,
			stress_triggers = excluded.stress_triggers,
			success_patterns = excluded.success_patterns,
			source_consolidation_ids = excluded.source_consolidation_ids`,
		w.WeekNumber, w.Year, w.Insights, fields[0], fields[1], fields[2],
		fields[3], fields[4], fields[5], fields[6], fields[7], fields[8], fields[9])
	if err != nil {
		return fmt.Errorf("failed to upsert weekly pattern: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil && w.ID == 0 {
		w.ID = id
	}
	return nil
}

// WeeklyPattern returns the stored record for (week, year), or nil
func (s *Store) WeeklyPattern(week, year int) (*model.WeeklyPattern, error) {
	row := s.db.QueryRow(weeklyColumns+` WHERE week_number = ? AND year = ?`, week, year)
	w, err := scanWeekly(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return w, err
}

// WeeklyPatternsSince returns records created after cutoff, oldest first
func (s *Store) WeeklyPatternsSince(cutoff time.Time) ([]*model.WeeklyPattern, error) {
	rows, err := s.db.Query(weeklyColumns+`
		WHERE created_at > ? ORDER BY year ASC, week_number ASC`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.WeeklyPattern
	for rows.Next() {
		w, err := scanWeekly(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// SearchWeeklyPatterns finds records whose stored pattern text matches term
func (s *Store) SearchWeeklyPatterns(term string, limit int) ([]*model.WeeklyPattern, error) {
	if limit <= 0 {
		limit = 5
	}
	pattern := "%" + term + "%"
	rows, err := s.db.Query(weeklyColumns+`
		WHERE insights LIKE ? OR recurring_themes LIKE ? OR recommendations LIKE ?
		ORDER BY year DESC, week_number DESC LIMIT ?`,
		pattern, pattern, pattern, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.WeeklyPattern
	for rows.Next() {
		w, err := scanWeekly(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

const weeklyColumns = `
	SELECT id, week_number, year, insights, recommendations, recurring_themes,
		productivity_patterns, collaboration_patterns, decision_patterns,
		blocker_patterns, creative_patterns, stress_triggers, success_patterns,
		source_consolidation_ids, created_at
	FROM weekly_patterns`

func scanWeekly(row rowScanner) (*model.WeeklyPattern, error) {
	var w model.WeeklyPattern
	var insights sql.NullString
	raw := make([]sql.NullString, 10)

	err := row.Scan(&w.ID, &w.WeekNumber, &w.Year, &insights,
		&raw[0], &raw[1], &raw[2], &raw[3], &raw[4], &raw[5], &raw[6], &raw[7], &raw[8], &raw[9],
		&w.CreatedAt)
	if err != nil {
		return nil, err
	}
	w.Insights = insights.String

	if err := unmarshalAll(raw,
		&w.Recommendations, &w.RecurringThemes, &w.Productivity, &w.Collaboration,
		&w.Decisions, &w.Blockers, &w.Creative, &w.Stress, &w.Success,
		&w.SourceConsolidationIDs); err != nil {
		return nil, fmt.Errorf("corrupt weekly pattern %d/%d: %w", w.WeekNumber, w.Year, err)
	}
	return &w, nil
}

// marshalAll JSON-encodes each value, returning the encoded strings
func marshalAll(values ...any) ([]string, error) {
	out := make([]string, len(values))
	for i, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		out[i] = string(data)
	}
	return out, nil
}

// unmarshalAll decodes each stored column into the matching target
func unmarshalAll(raw []sql.NullString, targets ...any) error {
	if len(raw) != len(targets) {
		return fmt.Errorf("column/target count mismatch: %d vs %d", len(raw), len(targets))
	}
	for i, r := range raw {
		if !r.Valid || r.String == "" {
			continue
		}
		if err := json.Unmarshal([]byte(r.String), targets[i]); err != nil {
			return err
		}
	}
	return nil
}
