package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vthunder/recall/internal/model"
)

// InsertKnowledgeNode persists a distilled node and assigns its ID
func (s *Store) InsertKnowledgeNode(n *model.KnowledgeNode) error {
	fields, err := marshalAll(n.Insights, n.Decisions, n.Questions,
		n.Applications, n.Connections, n.SourceMemoryIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal knowledge node: %w", err)
	}

	res, err := s.db.Exec(`
		INSERT INTO knowledge_nodes (topic, summary, insights, decisions,
			questions, applications, connections, source_memory_ids, confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.Topic, n.Summary, fields[0], fields[1], fields[2], fields[3],
		fields[4], fields[5], n.Confidence)
	if err != nil {
		return fmt.Errorf("failed to insert knowledge node: %w", err)
	}
	n.ID, _ = res.LastInsertId()
	return nil
}

// UpdateNodeConnections rewrites a node's connections (related_nodes links)
func (s *Store) UpdateNodeConnections(nodeID int64, conns model.NodeConnections) error {
	data, err := json.Marshal(conns)
	if err != nil {
		return fmt.Errorf("failed to marshal connections: %w", err)
	}
	_, err = s.db.Exec(`UPDATE knowledge_nodes SET connections = ? WHERE id = ?`, string(data), nodeID)
	return err
}

// TouchNode bumps a node's reference counter
func (s *Store) TouchNode(nodeID int64) error {
	_, err := s.db.Exec(`
		UPDATE knowledge_nodes
		SET times_referenced = times_referenced + 1, last_referenced = ?
		WHERE id = ?`, time.Now(), nodeID)
	return err
}

// KnowledgeNode fetches one node by id, or nil
func (s *Store) KnowledgeNode(id int64) (*model.KnowledgeNode, error) {
	row := s.db.QueryRow(nodeColumns+` WHERE id = ?`, id)
	n, err := scanNode(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return n, err
}

// KnowledgeNodesSince returns nodes created after cutoff with confidence
// of at least minConfidence
func (s *Store) KnowledgeNodesSince(cutoff time.Time, minConfidence float64) ([]*model.KnowledgeNode, error) {
	rows, err := s.db.Query(nodeColumns+`
		WHERE created_at > ? AND confidence >= ?
		ORDER BY confidence DESC`, cutoff, minConfidence)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectNodes(rows)
}

// SearchKnowledgeNodes finds nodes whose topic or summary matches term
func (s *Store) SearchKnowledgeNodes(term string, limit int) ([]*model.KnowledgeNode, error) {
	if limit <= 0 {
		limit = 5
	}
	pattern := "%" + term + "%"
	rows, err := s.db.Query(nodeColumns+`
		WHERE topic LIKE ? OR summary LIKE ? OR insights LIKE ?
		ORDER BY confidence DESC LIMIT ?`, pattern, pattern, pattern, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectNodes(rows)
}

// KnowledgeNodeForMemory finds the node whose source set contains the
// given memory uuid (provenance lookup)
func (s *Store) KnowledgeNodeForMemory(memUUID string) (*model.KnowledgeNode, error) {
	row := s.db.QueryRow(nodeColumns+` WHERE source_memory_ids LIKE ? LIMIT 1`,
		"%"+memUUID+"%")
	n, err := scanNode(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return n, err
}

// UpsertKnowledgeEdge writes an edge keyed by unordered node pair.
// Re-running knowledge synthesis over an overlapping window replaces the
// stored strength and type rather than inserting a duplicate row.
func (s *Store) UpsertKnowledgeEdge(e *model.KnowledgeEdge) error {
	from, to := e.FromNodeID, e.ToNodeID
	if from > to {
		from, to = to, from
	}
	_, err := s.db.Exec(`
		INSERT INTO knowledge_edges (from_node_id, to_node_id, relationship_type, strength)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(from_node_id, to_node_id) DO UPDATE SET
			relationship_type = excluded.relationship_type,
			strength = excluded.strength`,
		from, to, string(e.Type), e.Strength)
	if err != nil {
		return fmt.Errorf("failed to upsert knowledge edge: %w", err)
	}
	return nil
}

// EdgesForNode returns all edges touching a node
func (s *Store) EdgesForNode(nodeID int64) ([]*model.KnowledgeEdge, error) {
	rows, err := s.db.Query(`
		SELECT id, from_node_id, to_node_id, relationship_type, strength
		FROM knowledge_edges
		WHERE from_node_id = ? OR to_node_id = ?
		ORDER BY strength DESC`, nodeID, nodeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edges []*model.KnowledgeEdge
	for rows.Next() {
		var e model.KnowledgeEdge
		var edgeType string
		if err := rows.Scan(&e.ID, &e.FromNodeID, &e.ToNodeID, &edgeType, &e.Strength); err != nil {
			return nil, err
		}
		e.Type = model.EdgeType(edgeType)
		edges = append(edges, &e)
	}
	return edges, rows.Err()
}

const nodeColumns = `
	SELECT id, topic, summary, insights, decisions, questions, applications,
		connections, source_memory_ids, confidence, times_referenced,
		last_referenced, created_at
	FROM knowledge_nodes`

func scanNode(row rowScanner) (*model.KnowledgeNode, error) {
	var n model.KnowledgeNode
	var topic, summary sql.NullString
	var lastRef sql.NullTime
	raw := make([]sql.NullString, 6)

	err := row.Scan(&n.ID, &topic, &summary,
		&raw[0], &raw[1], &raw[2], &raw[3], &raw[4], &raw[5],
		&n.Confidence, &n.TimesReferenced, &lastRef, &n.CreatedAt)
	if err != nil {
		return nil, err
	}
	n.Topic = topic.String
	n.Summary = summary.String
	if lastRef.Valid {
		t := lastRef.Time
		n.LastReferenced = &t
	}

	if err := unmarshalAll(raw, &n.Insights, &n.Decisions, &n.Questions,
		&n.Applications, &n.Connections, &n.SourceMemoryIDs); err != nil {
		return nil, fmt.Errorf("corrupt knowledge node %d: %w", n.ID, err)
	}
	return &n, nil
}

func collectNodes(rows *sql.Rows) ([]*model.KnowledgeNode, error) {
	var nodes []*model.KnowledgeNode
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}
