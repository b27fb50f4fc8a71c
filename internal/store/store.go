// Package store provides SQLite persistence for memories and all
// consolidation artifacts (daily, weekly, knowledge graph, wisdom).
package store

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto() // registers the vec0 virtual table with go-sqlite3
}

// EmbeddingDim is the expected embedding dimensionality (nomic-embed-text)
const EmbeddingDim = 768

// Store wraps the SQLite database connection
type Store struct {
	db           *sql.DB
	path         string
	vecAvailable bool
	ftsAvailable bool
}

// Open opens or creates the memory database at dbPath
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Store{db: db, path: dbPath}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	// Check if sqlite-vec extension is available
	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		log.Printf("[store] sqlite-vec not available: %v — semantic search falls back to full scan", err)
	} else {
		log.Printf("[store] sqlite-vec %s loaded", vecVersion)
		s.vecAvailable = true
		if err := s.ensureVecTable(); err != nil {
			log.Printf("[store] vec init warning: %v", err)
			s.vecAvailable = false
		}
	}

	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the base schema and applies incremental migrations
func (s *Store) migrate() error {
	schema := `
	-- Schema version tracking
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Raw captured thoughts
	CREATE TABLE IF NOT EXISTS memories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		uuid TEXT UNIQUE NOT NULL,
		timestamp DATETIME NOT NULL,
		raw_text TEXT NOT NULL,
		source TEXT NOT NULL DEFAULT 'text',
		thought_type TEXT,
		summary TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		extracted_data TEXT,
		embedding BLOB,
		actionable BOOLEAN DEFAULT 0,
		urgency TEXT,
		completed BOOLEAN DEFAULT 0,
		error_message TEXT,
		processed_at DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_memories_status ON memories(status);
	CREATE INDEX IF NOT EXISTS idx_memories_timestamp ON memories(timestamp);
	CREATE INDEX IF NOT EXISTS idx_memories_actionable ON memories(actionable, completed, urgency DESC);

	-- One record per calendar date
	CREATE TABLE IF NOT EXISTS daily_consolidations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		date TEXT UNIQUE NOT NULL,
		narrative TEXT,
		key_decisions TEXT,
		main_topics TEXT,
		emotional_arc TEXT,
		interactions TEXT,
		insights TEXT,
		completed_actions TEXT,
		open_questions TEXT,
		energy_pattern TEXT,
		thought_threads TEXT,
		source_memory_ids TEXT,
		importance_score REAL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_daily_date ON daily_consolidations(date DESC);

	-- One record per (week number, year)
	CREATE TABLE IF NOT EXISTS weekly_patterns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		week_number INTEGER NOT NULL,
		year INTEGER NOT NULL,
		insights TEXT,
		recommendations TEXT,
		recurring_themes TEXT,
		productivity_patterns TEXT,
		collaboration_patterns TEXT,
		decision_patterns TEXT,
		blocker_patterns TEXT,
		creative_patterns TEXT,
		stress_triggers TEXT,
		success_patterns TEXT,
		source_consolidation_ids TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(week_number, year)
	);

	CREATE INDEX IF NOT EXISTS idx_weekly_week ON weekly_patterns(year DESC, week_number DESC);

	-- Distilled concepts from coherent memory clusters
	CREATE TABLE IF NOT EXISTS knowledge_nodes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		topic TEXT,
		summary TEXT,
		insights TEXT,
		decisions TEXT,
		questions TEXT,
		applications TEXT,
		connections TEXT,
		source_memory_ids TEXT,
		confidence REAL,
		times_referenced INTEGER DEFAULT 0,
		last_referenced DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_nodes_topic ON knowledge_nodes(topic);
	CREATE INDEX IF NOT EXISTS idx_nodes_confidence ON knowledge_nodes(confidence DESC);

	-- Typed weighted relationships, one row per unordered node pair
	CREATE TABLE IF NOT EXISTS knowledge_edges (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		from_node_id INTEGER NOT NULL,
		to_node_id INTEGER NOT NULL,
		relationship_type TEXT,
		strength REAL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(from_node_id, to_node_id),
		FOREIGN KEY (from_node_id) REFERENCES knowledge_nodes(id),
		FOREIGN KEY (to_node_id) REFERENCES knowledge_nodes(id)
	);

	CREATE INDEX IF NOT EXISTS idx_edges_from ON knowledge_edges(from_node_id);
	CREATE INDEX IF NOT EXISTS idx_edges_to ON knowledge_edges(to_node_id);

	-- Append-only principles and heuristics
	CREATE TABLE IF NOT EXISTS wisdom (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		type TEXT,
		content TEXT,
		context TEXT,
		exceptions TEXT,
		confidence REAL,
		evidence_count INTEGER,
		times_applied INTEGER DEFAULT 0,
		success_rate REAL,
		learned_date DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_wisdom_type ON wisdom(type);
	CREATE INDEX IF NOT EXISTS idx_wisdom_confidence ON wisdom(confidence DESC);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	// Full-text index over raw text and summaries. fts5 is compiled in
	// only with -tags sqlite_fts5; without it keyword search degrades to
	// LIKE scans.
	if _, err := s.db.Exec(`CREATE VIRTUAL TABLE IF NOT EXISTS memories_fts USING fts5(
		uuid UNINDEXED, raw_text, summary
	)`); err != nil {
		log.Printf("[store] FTS5 not available (rebuild with -tags sqlite_fts5) — keyword search falls back to LIKE: %v", err)
	} else {
		s.ftsAvailable = true
	}

	return s.runMigrations()
}

// runMigrations applies incremental migrations beyond the base schema
func (s *Store) runMigrations() error {
	var version int
	err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	migrations := []struct {
		version int
		apply   func() error
	}{
		// Future schema changes append here with the next version number.
	}

	for _, m := range migrations {
		if m.version <= version {
			continue
		}
		if err := m.apply(); err != nil {
			return fmt.Errorf("migration %d failed: %w", m.version, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", m.version, err)
		}
		log.Printf("[store] applied migration %d", m.version)
	}

	return nil
}

// ensureVecTable creates the vec0 virtual table for embedding search
func (s *Store) ensureVecTable() error {
	_, err := s.db.Exec(fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS memory_vec USING vec0(
			uuid TEXT PRIMARY KEY,
			embedding float[%d]
		)`, EmbeddingDim))
	if err != nil {
		return fmt.Errorf("failed to create vec table: %w", err)
	}
	return nil
}

// Stats returns row counts for every layer
func (s *Store) Stats() (map[string]int, error) {
	stats := make(map[string]int)
	tables := []string{
		"memories", "daily_consolidations", "weekly_patterns",
		"knowledge_nodes", "knowledge_edges", "wisdom",
	}
	for _, table := range tables {
		var count int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table, err)
		}
		stats[table] = count
	}
	return stats, nil
}

// Clear removes all data (used by tests and the reset command)
func (s *Store) Clear() error {
	tables := []string{
		"wisdom", "knowledge_edges", "knowledge_nodes",
		"weekly_patterns", "daily_consolidations", "memories",
	}
	if s.ftsAvailable {
		tables = append(tables, "memories_fts")
	}
	for _, table := range tables {
		if _, err := s.db.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	if s.vecAvailable {
		if _, err := s.db.Exec("DELETE FROM memory_vec"); err != nil {
			return fmt.Errorf("failed to clear memory_vec: %w", err)
		}
	}
	return nil
}
