package store

import (
	"database/sql"
	"fmt"

	"github.com/vthunder/recall/internal/model"
)

// AppendWisdom stores a new wisdom item. Wisdom is append-only; repeated
// extraction runs add evidence as new rows rather than rewriting history.
func (s *Store) AppendWisdom(w *model.Wisdom) error {
	if w.Content == "" {
		return fmt.Errorf("wisdom requires content")
	}
	res, err := s.db.Exec(`
		INSERT INTO wisdom (type, content, context, exceptions, confidence,
			evidence_count, success_rate, learned_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(w.Type), w.Content, w.Context, w.Exceptions, w.Confidence,
		w.EvidenceCount, w.SuccessRate, w.LearnedDate)
	if err != nil {
		return fmt.Errorf("failed to append wisdom: %w", err)
	}
	w.ID, _ = res.LastInsertId()
	return nil
}

// AllWisdom returns every wisdom item, highest confidence first
func (s *Store) AllWisdom() ([]*model.Wisdom, error) {
	rows, err := s.db.Query(wisdomColumns + ` ORDER BY confidence DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectWisdom(rows)
}

// RelevantWisdom finds wisdom whose content or context matches term
func (s *Store) RelevantWisdom(term string, limit int) ([]*model.Wisdom, error) {
	if limit <= 0 {
		limit = 5
	}
	pattern := "%" + term + "%"
	rows, err := s.db.Query(wisdomColumns+`
		WHERE content LIKE ? OR context LIKE ?
		ORDER BY confidence DESC LIMIT ?`, pattern, pattern, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectWisdom(rows)
}

const wisdomColumns = `
	SELECT id, type, content, context, exceptions, confidence,
		evidence_count, times_applied, success_rate, learned_date
	FROM wisdom`

func collectWisdom(rows *sql.Rows) ([]*model.Wisdom, error) {
	var out []*model.Wisdom
	for rows.Next() {
		var w model.Wisdom
		var wType string
		var context, exceptions sql.NullString
		var successRate sql.NullFloat64
		var learned sql.NullTime
		if err := rows.Scan(&w.ID, &wType, &w.Content, &context, &exceptions,
			&w.Confidence, &w.EvidenceCount, &w.TimesApplied, &successRate, &learned); err != nil {
			return nil, err
		}
		w.Type = model.WisdomType(wType)
		w.Context = context.String
		w.Exceptions = exceptions.String
		w.SuccessRate = successRate.Float64
		if learned.Valid {
			w.LearnedDate = learned.Time
		}
		out = append(out, &w)
	}
	return out, rows.Err()
}
