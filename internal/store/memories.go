package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vthunder/recall/internal/model"
)

// InsertMemory records a new pending memory and returns it
func (s *Store) InsertMemory(rawText, source string, timestamp time.Time) (*model.Memory, error) {
	if rawText == "" {
		return nil, fmt.Errorf("empty memory text")
	}
	if source == "" {
		source = "text"
	}
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	m := &model.Memory{
		UUID:      uuid.NewString(),
		Timestamp: timestamp,
		RawText:   rawText,
		Source:    source,
		Status:    model.StatusPending,
		CreatedAt: time.Now(),
	}
	m.Extracted.Normalize()

	res, err := s.db.Exec(`
		INSERT INTO memories (uuid, timestamp, raw_text, source, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.UUID, m.Timestamp, m.RawText, m.Source, string(m.Status), m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert memory: %w", err)
	}
	m.ID, _ = res.LastInsertId()

	if s.ftsAvailable {
		if _, err := s.db.Exec(`INSERT INTO memories_fts (uuid, raw_text, summary) VALUES (?, ?, '')`,
			m.UUID, m.RawText); err != nil {
			return nil, fmt.Errorf("failed to index memory: %w", err)
		}
	}

	return m, nil
}

// GetMemory fetches a memory by its stable uuid
func (s *Store) GetMemory(memUUID string) (*model.Memory, error) {
	row := s.db.QueryRow(memoryColumns+" WHERE uuid = ?", memUUID)
	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return m, err
}

// PendingMemories returns up to limit memories awaiting extraction
func (s *Store) PendingMemories(limit int) ([]*model.Memory, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.queryMemories(memoryColumns+` WHERE status = ? ORDER BY timestamp ASC LIMIT ?`,
		string(model.StatusPending), limit)
}

// MarkProcessing transitions a memory from pending to processing
func (s *Store) MarkProcessing(memUUID string) error {
	_, err := s.db.Exec(`UPDATE memories SET status = ? WHERE uuid = ? AND status = ?`,
		string(model.StatusProcessing), memUUID, string(model.StatusPending))
	return err
}

// CompleteMemory stores extraction results and marks the memory completed.
// rawText may rewrite the stored text (voice notes after transcription);
// pass "" to keep the original.
func (s *Store) CompleteMemory(memUUID string, extracted model.ExtractedData, rawText string) error {
	extracted.Normalize()

	data, err := json.Marshal(extracted)
	if err != nil {
		return fmt.Errorf("failed to marshal extracted data: %w", err)
	}

	now := time.Now()
	if rawText != "" {
		_, err = s.db.Exec(`
			UPDATE memories SET raw_text = ?, thought_type = ?, summary = ?, status = ?,
				extracted_data = ?, actionable = ?, urgency = ?, completed = ?, processed_at = ?
			WHERE uuid = ?`,
			rawText, string(extracted.ThoughtType), extracted.Summary, string(model.StatusCompleted),
			string(data), extracted.Actionable, extracted.Urgency, extracted.Completed, now, memUUID)
	} else {
		_, err = s.db.Exec(`
			UPDATE memories SET thought_type = ?, summary = ?, status = ?,
				extracted_data = ?, actionable = ?, urgency = ?, completed = ?, processed_at = ?
			WHERE uuid = ?`,
			string(extracted.ThoughtType), extracted.Summary, string(model.StatusCompleted),
			string(data), extracted.Actionable, extracted.Urgency, extracted.Completed, now, memUUID)
	}
	if err != nil {
		return fmt.Errorf("failed to complete memory: %w", err)
	}

	// Keep the full-text index in sync
	if !s.ftsAvailable {
		return nil
	}
	if rawText != "" {
		_, err = s.db.Exec(`UPDATE memories_fts SET raw_text = ?, summary = ? WHERE uuid = ?`,
			rawText, extracted.Summary, memUUID)
	} else {
		_, err = s.db.Exec(`UPDATE memories_fts SET summary = ? WHERE uuid = ?`,
			extracted.Summary, memUUID)
	}
	return err
}

// FailMemory marks a memory failed with a reason
func (s *Store) FailMemory(memUUID, reason string) error {
	_, err := s.db.Exec(`UPDATE memories SET status = ?, error_message = ?, processed_at = ? WHERE uuid = ?`,
		string(model.StatusFailed), reason, time.Now(), memUUID)
	return err
}

// MarkTaskCompleted flags an actionable memory's task as done
func (s *Store) MarkTaskCompleted(memUUID string) error {
	_, err := s.db.Exec(`UPDATE memories SET completed = 1 WHERE uuid = ?`, memUUID)
	return err
}

// MemoriesForDate returns all completed memories within one calendar day,
// ascending by timestamp
func (s *Store) MemoriesForDate(date time.Time) ([]*model.Memory, error) {
	start := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	end := start.Add(24*time.Hour - time.Nanosecond)
	return s.MemoriesBetween(start, end)
}

// MemoriesBetween returns completed memories in [start, end], ascending
func (s *Store) MemoriesBetween(start, end time.Time) ([]*model.Memory, error) {
	return s.queryMemories(memoryColumns+`
		WHERE status = ? AND timestamp BETWEEN ? AND ?
		ORDER BY timestamp ASC`,
		string(model.StatusCompleted), start, end)
}

// MemoriesSince returns completed memories newer than cutoff, ascending
func (s *Store) MemoriesSince(cutoff time.Time) ([]*model.Memory, error) {
	return s.queryMemories(memoryColumns+`
		WHERE status = ? AND timestamp > ?
		ORDER BY timestamp ASC`,
		string(model.StatusCompleted), cutoff)
}

// RecentMemories returns the latest completed memories, newest first
func (s *Store) RecentMemories(limit int) ([]*model.Memory, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.queryMemories(memoryColumns+`
		WHERE status = ? ORDER BY timestamp DESC LIMIT ?`,
		string(model.StatusCompleted), limit)
}

// OpenTasks returns actionable, uncompleted memories ordered by urgency
func (s *Store) OpenTasks(limit int) ([]*model.Memory, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.queryMemories(memoryColumns+`
		WHERE status = ? AND actionable = 1 AND completed = 0
		ORDER BY CASE urgency WHEN 'high' THEN 0 WHEN 'normal' THEN 1 ELSE 2 END, timestamp DESC
		LIMIT ?`,
		string(model.StatusCompleted), limit)
}

const memoryColumns = `
	SELECT id, uuid, timestamp, raw_text, source, thought_type, summary, status,
		extracted_data, error_message, processed_at, created_at
	FROM memories`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMemory(row rowScanner) (*model.Memory, error) {
	var m model.Memory
	var thoughtType, summary, extracted, errMsg sql.NullString
	var processedAt sql.NullTime

	err := row.Scan(&m.ID, &m.UUID, &m.Timestamp, &m.RawText, &m.Source,
		&thoughtType, &summary, (*string)(&m.Status), &extracted, &errMsg,
		&processedAt, &m.CreatedAt)
	if err != nil {
		return nil, err
	}

	m.ThoughtType = model.ThoughtType(thoughtType.String)
	m.Summary = summary.String
	m.Error = errMsg.String
	if processedAt.Valid {
		t := processedAt.Time
		m.ProcessedAt = &t
	}
	if extracted.Valid && extracted.String != "" {
		if err := json.Unmarshal([]byte(extracted.String), &m.Extracted); err != nil {
			return nil, fmt.Errorf("corrupt extracted_data for %s: %w", m.UUID, err)
		}
	}
	m.Extracted.Normalize()
	return &m, nil
}

func (s *Store) queryMemories(query string, args ...any) ([]*model.Memory, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query memories: %w", err)
	}
	defer rows.Close()

	var memories []*model.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		memories = append(memories, m)
	}
	return memories, rows.Err()
}
