package store

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"

	"github.com/vthunder/recall/internal/llm"
	"github.com/vthunder/recall/internal/model"
)

// SearchResult is one ranked hit from keyword or semantic search
type SearchResult struct {
	Memory *model.Memory
	Score  float64
	Match  string // fts, like, semantic
}

// SearchKeyword runs full-text search over raw text and summaries,
// falling back to a LIKE scan when the FTS query cannot be parsed
// (punctuation-heavy natural language breaks fts5 syntax)
func (s *Store) SearchKeyword(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 10
	}
	if !s.ftsAvailable {
		return s.searchLike(query, limit)
	}

	rows, err := s.db.Query(`
		SELECT m.id, m.uuid, m.timestamp, m.raw_text, m.source, m.thought_type,
			m.summary, m.status, m.extracted_data, m.error_message, m.processed_at,
			m.created_at, rank
		FROM memories_fts f
		JOIN memories m ON m.uuid = f.uuid
		WHERE memories_fts MATCH ? AND m.status = 'completed'
		ORDER BY rank LIMIT ?`, ftsQuote(query), limit)
	if err != nil {
		return s.searchLike(query, limit)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var m model.Memory
		var rank float64
		sm, err := scanMemoryWithExtra(rows, &rank)
		if err != nil {
			return nil, err
		}
		m = *sm
		// fts5 rank is negative, more negative = better
		results = append(results, SearchResult{Memory: &m, Score: -rank, Match: "fts"})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return s.searchLike(query, limit)
	}
	return results, nil
}

// searchLike is the keyword fallback for queries FTS rejects
func (s *Store) searchLike(query string, limit int) ([]SearchResult, error) {
	pattern := "%" + query + "%"
	memories, err := s.queryMemories(memoryColumns+`
		WHERE status = 'completed' AND (raw_text LIKE ? OR summary LIKE ?)
		ORDER BY timestamp DESC LIMIT ?`, pattern, pattern, limit)
	if err != nil {
		return nil, err
	}
	results := make([]SearchResult, 0, len(memories))
	for _, m := range memories {
		results = append(results, SearchResult{Memory: m, Score: 0.5, Match: "like"})
	}
	return results, nil
}

// ftsQuote wraps each term in quotes so punctuation survives fts5 parsing
func ftsQuote(query string) string {
	terms := strings.Fields(query)
	for i, t := range terms {
		terms[i] = `"` + strings.ReplaceAll(t, `"`, "") + `"`
	}
	return strings.Join(terms, " ")
}

// StoreEmbedding persists a memory's embedding both as a JSON blob on the
// row (canonical) and in the vec0 table (index) when available
func (s *Store) StoreEmbedding(memUUID string, embedding []float64) error {
	if len(embedding) == 0 {
		return fmt.Errorf("empty embedding")
	}

	data, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}
	if _, err := s.db.Exec(`UPDATE memories SET embedding = ? WHERE uuid = ?`, data, memUUID); err != nil {
		return fmt.Errorf("failed to store embedding: %w", err)
	}

	if !s.vecAvailable || len(embedding) != EmbeddingDim {
		return nil
	}

	vec, err := sqlite_vec.SerializeFloat32(normalizeFloat32(float64ToFloat32(embedding)))
	if err != nil {
		return fmt.Errorf("failed to serialize vector: %w", err)
	}
	if _, err := s.db.Exec(`DELETE FROM memory_vec WHERE uuid = ?`, memUUID); err != nil {
		return fmt.Errorf("failed to replace vector: %w", err)
	}
	if _, err := s.db.Exec(`INSERT INTO memory_vec (uuid, embedding) VALUES (?, ?)`, memUUID, vec); err != nil {
		return fmt.Errorf("failed to insert vector: %w", err)
	}
	return nil
}

// Embedding returns a memory's stored embedding, or nil if absent
func (s *Store) Embedding(memUUID string) ([]float64, error) {
	var data []byte
	err := s.db.QueryRow(`SELECT embedding FROM memories WHERE uuid = ?`, memUUID).Scan(&data)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	var embedding []float64
	if err := json.Unmarshal(data, &embedding); err != nil {
		return nil, fmt.Errorf("corrupt embedding for %s: %w", memUUID, err)
	}
	return embedding, nil
}

// SearchSemantic returns the k nearest completed memories to the query
// vector by cosine similarity. Uses the vec0 index when loaded, otherwise
// scans stored embeddings.
func (s *Store) SearchSemantic(query []float64, k int) ([]SearchResult, error) {
	if k <= 0 {
		k = 10
	}
	if s.vecAvailable && len(query) == EmbeddingDim {
		return s.searchVec(query, k)
	}
	return s.searchScan(query, k)
}

func (s *Store) searchVec(query []float64, k int) ([]SearchResult, error) {
	vec, err := sqlite_vec.SerializeFloat32(normalizeFloat32(float64ToFloat32(query)))
	if err != nil {
		return nil, fmt.Errorf("failed to serialize query vector: %w", err)
	}

	rows, err := s.db.Query(`
		SELECT uuid, distance FROM memory_vec
		WHERE embedding MATCH ? AND k = ?
		ORDER BY distance`, vec, k)
	if err != nil {
		return nil, fmt.Errorf("vec search failed: %w", err)
	}
	defer rows.Close()

	type hit struct {
		uuid string
		dist float64
	}
	var hits []hit
	for rows.Next() {
		var h hit
		if err := rows.Scan(&h.uuid, &h.dist); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var results []SearchResult
	for _, h := range hits {
		m, err := s.GetMemory(h.uuid)
		if err != nil || m == nil || m.Status != model.StatusCompleted {
			continue
		}
		results = append(results, SearchResult{
			Memory: m,
			Score:  l2ToCosineSim(h.dist),
			Match:  "semantic",
		})
	}
	return results, nil
}

// searchScan is the brute-force fallback when sqlite-vec is unavailable
func (s *Store) searchScan(query []float64, k int) ([]SearchResult, error) {
	rows, err := s.db.Query(`SELECT uuid, embedding FROM memories
		WHERE status = 'completed' AND embedding IS NOT NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type scored struct {
		uuid string
		sim  float64
	}
	var all []scored
	for rows.Next() {
		var memUUID string
		var data []byte
		if err := rows.Scan(&memUUID, &data); err != nil {
			return nil, err
		}
		var emb []float64
		if json.Unmarshal(data, &emb) != nil {
			continue
		}
		all = append(all, scored{memUUID, llm.CosineSimilarity(query, emb)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(all, func(i, j int) bool { return all[i].sim > all[j].sim })
	if len(all) > k {
		all = all[:k]
	}

	var results []SearchResult
	for _, sc := range all {
		m, err := s.GetMemory(sc.uuid)
		if err != nil || m == nil {
			continue
		}
		results = append(results, SearchResult{Memory: m, Score: sc.sim, Match: "semantic"})
	}
	return results, nil
}

func scanMemoryWithExtra(rows rowScanner, extra *float64) (*model.Memory, error) {
	var m model.Memory
	var thoughtType, summary, extracted, errMsg []byte
	var processedAt any

	err := rows.Scan(&m.ID, &m.UUID, &m.Timestamp, &m.RawText, &m.Source,
		&thoughtType, &summary, (*string)(&m.Status), &extracted, &errMsg,
		&processedAt, &m.CreatedAt, extra)
	if err != nil {
		return nil, err
	}
	m.ThoughtType = model.ThoughtType(thoughtType)
	m.Summary = string(summary)
	m.Error = string(errMsg)
	if len(extracted) > 0 {
		if err := json.Unmarshal(extracted, &m.Extracted); err != nil {
			return nil, fmt.Errorf("corrupt extracted_data for %s: %w", m.UUID, err)
		}
	}
	m.Extracted.Normalize()
	return &m, nil
}

func float64ToFloat32(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}

// normalizeFloat32 scales a vector to unit length so L2 distance in the
// vec table maps onto cosine distance
func normalizeFloat32(v []float32) []float32 {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// l2ToCosineSim converts L2 distance between unit vectors to cosine
// similarity: d² = 2 - 2cos
func l2ToCosineSim(l2dist float64) float64 {
	return 1 - (l2dist*l2dist)/2
}
