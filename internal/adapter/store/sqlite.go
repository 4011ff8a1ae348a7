// Package store keeps setup-session history, CLI version records and the
// memory graph in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"oulipoly-plane/internal/domain"
)

// Compile-time interface checks.
var (
	_ domain.HistoryStore   = (*SQLiteStore)(nil)
	_ domain.VersionTracker = (*SQLiteStore)(nil)
	_ domain.MemoryStore    = (*SQLiteStore)(nil)
)

// SQLiteStore implements domain.HistoryStore, domain.VersionTracker and
// domain.MemoryStore.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the database at path and migrates the schema.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	// Single writer; avoids SQLITE_BUSY between the flow and the CLI.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history db: %w", err)
	}
	return &SQLiteStore{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS setup_sessions (
			id         TEXT PRIMARY KEY,
			cli        TEXT NOT NULL DEFAULT '',
			planner    TEXT NOT NULL DEFAULT '',
			outcome    TEXT NOT NULL,
			summary    TEXT NOT NULL DEFAULT '',
			started_at TEXT NOT NULL,
			ended_at   TEXT
		);
		CREATE TABLE IF NOT EXISTS setup_turns (
			session_id TEXT NOT NULL REFERENCES setup_sessions(id),
			seq        INTEGER NOT NULL,
			actions    TEXT NOT NULL DEFAULT '[]',
			feedback   TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			PRIMARY KEY (session_id, seq)
		);
		CREATE TABLE IF NOT EXISTS cli_versions (
			cli         TEXT NOT NULL,
			version     TEXT NOT NULL,
			path        TEXT NOT NULL DEFAULT '',
			detected_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_cli_versions_cli ON cli_versions(cli, detected_at);
		CREATE TABLE IF NOT EXISTS memory_nodes (
			id         TEXT PRIMARY KEY,
			node_type  TEXT NOT NULL,
			label      TEXT NOT NULL,
			data       TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS memory_edges (
			source_id  TEXT NOT NULL,
			target_id  TEXT NOT NULL,
			edge_type  TEXT NOT NULL,
			data       TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			PRIMARY KEY (source_id, target_id, edge_type)
		);
		CREATE INDEX IF NOT EXISTS idx_memory_nodes_type ON memory_nodes(node_type);
	`)
	return err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateSession(ctx context.Context, rec domain.SessionRecord) error {
	started := rec.StartedAt
	if started.IsZero() {
		started = s.now()
	}
	if rec.Outcome == "" {
		rec.Outcome = domain.OutcomeRunning
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO setup_sessions (id, cli, planner, outcome, summary, started_at) VALUES (?, ?, ?, ?, ?, ?)",
		string(rec.ID), rec.CLI, rec.Planner, string(rec.Outcome), rec.Summary, started.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("create session %s: %w", rec.ID, err)
	}
	return nil
}

func (s *SQLiteStore) RecordTurn(ctx context.Context, id domain.SessionHandle, turn domain.TurnRecord) error {
	created := turn.CreatedAt
	if created.IsZero() {
		created = s.now()
	}
	if turn.Actions == "" {
		turn.Actions = "[]"
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO setup_turns (session_id, seq, actions, feedback, created_at) VALUES (?, ?, ?, ?, ?)",
		string(id), turn.Seq, turn.Actions, turn.Feedback, created.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record turn %d of %s: %w", turn.Seq, id, err)
	}
	return nil
}

func (s *SQLiteStore) EndSession(ctx context.Context, id domain.SessionHandle, outcome domain.SessionOutcome, summary string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE setup_sessions SET outcome = ?, summary = ?, ended_at = ? WHERE id = ? AND ended_at IS NULL",
		string(outcome), summary, s.now().Format(time.RFC3339Nano), string(id),
	)
	if err != nil {
		return fmt.Errorf("end session %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NewDomainError("store.EndSession", domain.ErrNotFound, string(id))
	}
	return nil
}

// Recent returns the newest sessions first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]domain.SessionRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.cli, s.planner, s.outcome, s.summary, s.started_at, s.ended_at,
		       (SELECT COUNT(*) FROM setup_turns t WHERE t.session_id = s.id)
		FROM setup_sessions s
		ORDER BY s.started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.SessionRecord{}
	for rows.Next() {
		var (
			rec         domain.SessionRecord
			id, outcome string
			started     string
			ended       sql.NullString
		)
		if err := rows.Scan(&id, &rec.CLI, &rec.Planner, &outcome, &rec.Summary, &started, &ended, &rec.Turns); err != nil {
			return nil, err
		}
		rec.ID = domain.SessionHandle(id)
		rec.Outcome = domain.SessionOutcome(outcome)
		rec.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		if ended.Valid {
			t, _ := time.Parse(time.RFC3339Nano, ended.String)
			rec.EndedAt = &t
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Turns returns a session's turns in order.
func (s *SQLiteStore) Turns(ctx context.Context, id domain.SessionHandle) ([]domain.TurnRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT seq, actions, feedback, created_at FROM setup_turns WHERE session_id = ? ORDER BY seq", string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.TurnRecord{}
	for rows.Next() {
		var (
			t       domain.TurnRecord
			created string
		)
		if err := rows.Scan(&t.Seq, &t.Actions, &t.Feedback, &created); err != nil {
			return nil, err
		}
		t.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, t)
	}
	return out, rows.Err()
}

// RecordVersion appends a version row when it differs from the latest one
// and returns the latest version seen before this call.
func (s *SQLiteStore) RecordVersion(ctx context.Context, cli, version, path string) (string, error) {
	var prev string
	err := s.db.QueryRowContext(ctx,
		"SELECT version FROM cli_versions WHERE cli = ? ORDER BY detected_at DESC, rowid DESC LIMIT 1", cli,
	).Scan(&prev)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("read cli version: %w", err)
	}
	if prev == version {
		return prev, nil
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO cli_versions (cli, version, path, detected_at) VALUES (?, ?, ?, ?)",
		cli, version, path, s.now().Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("record cli version: %w", err)
	}
	return prev, nil
}

// UpsertNode creates the node or replaces its type, label and data.
func (s *SQLiteStore) UpsertNode(ctx context.Context, n domain.MemoryNode) error {
	if n.ID == "" {
		n.ID = domain.MemoryNodeID(n.Type, n.Label)
	}
	now := s.now().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memory_nodes (id, node_type, label, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			node_type = excluded.node_type,
			label = excluded.label,
			data = excluded.data,
			updated_at = excluded.updated_at`,
		n.ID, n.Type, n.Label, n.Data, now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert memory node %s: %w", n.ID, err)
	}
	return nil
}

func (s *SQLiteStore) AddEdge(ctx context.Context, e domain.MemoryEdge) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO memory_edges (source_id, target_id, edge_type, data, created_at) VALUES (?, ?, ?, ?, ?)",
		e.SourceID, e.TargetID, e.Type, e.Data, s.now().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("add memory edge %s -> %s: %w", e.SourceID, e.TargetID, err)
	}
	return nil
}

// Subgraph returns the nodes of types, ordered by type and label, and the
// edges whose both ends are among them.
func (s *SQLiteStore) Subgraph(ctx context.Context, types []string) (domain.MemorySnapshot, error) {
	snap := domain.MemorySnapshot{Nodes: []domain.MemoryNode{}, Edges: []domain.MemoryEdge{}}
	if len(types) == 0 {
		return snap, nil
	}
	marks := strings.TrimSuffix(strings.Repeat("?,", len(types)), ",")
	args := make([]any, len(types))
	for i, t := range types {
		args[i] = t
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, node_type, label, data, created_at, updated_at FROM memory_nodes WHERE node_type IN ("+marks+") ORDER BY node_type, label",
		args...)
	if err != nil {
		return snap, fmt.Errorf("query memory nodes: %w", err)
	}
	ids := map[string]bool{}
	for rows.Next() {
		var n domain.MemoryNode
		var created, updated string
		if err := rows.Scan(&n.ID, &n.Type, &n.Label, &n.Data, &created, &updated); err != nil {
			rows.Close()
			return snap, err
		}
		n.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		n.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
		ids[n.ID] = true
		snap.Nodes = append(snap.Nodes, n)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return snap, err
	}

	erows, err := s.db.QueryContext(ctx,
		"SELECT source_id, target_id, edge_type, data FROM memory_edges ORDER BY source_id, target_id, edge_type")
	if err != nil {
		return snap, fmt.Errorf("query memory edges: %w", err)
	}
	defer erows.Close()
	for erows.Next() {
		var e domain.MemoryEdge
		if err := erows.Scan(&e.SourceID, &e.TargetID, &e.Type, &e.Data); err != nil {
			return snap, err
		}
		if ids[e.SourceID] && ids[e.TargetID] {
			snap.Edges = append(snap.Edges, e)
		}
	}
	return snap, erows.Err()
}
