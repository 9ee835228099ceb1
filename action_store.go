package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"Scribe/pkg/types"
)

// ========================================
// Action Store (SQLite)
// ========================================

// ActionStore persists capture sessions and their semantic actions.
// Actions are stored as full JSON payloads keyed by action id, so a
// later patch to an already emitted action simply replaces the row.
type ActionStore struct {
	db     *sql.DB
	dbPath string

	// buffered write path
	writeBuffer    []Action
	writeBufferMu  sync.Mutex
	flushInterval  time.Duration
	flushThreshold int
	flushTicker    *time.Ticker
	stopChan       chan struct{}

	// prepared statements
	stmtUpsertAction  *sql.Stmt
	stmtInsertSession *sql.Stmt
	stmtUpdateSession *sql.Stmt
}

const storeSchemaSQL = `
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA cache_size = -64000;
PRAGMA temp_store = MEMORY;
PRAGMA foreign_keys = ON;

CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    url TEXT NOT NULL DEFAULT '',
    start_time INTEGER NOT NULL,
    end_time INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL DEFAULT 'recording',
    action_count INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL DEFAULT (strftime('%s','now') * 1000),
    updated_at INTEGER NOT NULL DEFAULT (strftime('%s','now') * 1000)
);

CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status, start_time DESC);

CREATE TABLE IF NOT EXISTS actions (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL,
    type TEXT NOT NULL,
    timestamp INTEGER NOT NULL,
    completed_at INTEGER NOT NULL DEFAULT 0,
    payload TEXT NOT NULL,
    FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_actions_session ON actions(session_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_actions_type ON actions(session_id, type);
`

// NewActionStore opens (or creates) the capture database under dataDir.
func NewActionStore(dataDir string) (*ActionStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "scribe.db")

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=-64000&_foreign_keys=ON")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite has a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	store := &ActionStore{
		db:             db,
		dbPath:         dbPath,
		writeBuffer:    make([]Action, 0, 256),
		flushInterval:  500 * time.Millisecond,
		flushThreshold: 200,
		stopChan:       make(chan struct{}),
	}

	if _, err := db.Exec(storeSchemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	if err := store.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	store.startBackgroundWriter()

	StoreLog().Str("path", dbPath).Msg("Action store opened")
	return store, nil
}

func (s *ActionStore) prepareStatements() error {
	var err error

	s.stmtUpsertAction, err = s.db.Prepare(`
		INSERT OR REPLACE INTO actions (id, session_id, type, timestamp, completed_at, payload)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare upsert action: %w", err)
	}

	s.stmtInsertSession, err = s.db.Prepare(`
		INSERT INTO sessions (id, name, url, start_time, end_time, status, action_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert session: %w", err)
	}

	s.stmtUpdateSession, err = s.db.Prepare(`
		UPDATE sessions SET
			end_time = ?, status = ?, action_count = ?, updated_at = ?
		WHERE id = ?
	`)
	if err != nil {
		return fmt.Errorf("prepare update session: %w", err)
	}

	return nil
}

func (s *ActionStore) startBackgroundWriter() {
	s.flushTicker = time.NewTicker(s.flushInterval)

	go func() {
		for {
			select {
			case <-s.flushTicker.C:
				s.Flush()
			case <-s.stopChan:
				s.flushTicker.Stop()
				s.Flush()
				return
			}
		}
	}()
}

// Close flushes any buffered actions and shuts the store down.
func (s *ActionStore) Close() error {
	close(s.stopChan)
	time.Sleep(100 * time.Millisecond)

	s.Flush()

	if s.stmtUpsertAction != nil {
		s.stmtUpsertAction.Close()
	}
	if s.stmtInsertSession != nil {
		s.stmtInsertSession.Close()
	}
	if s.stmtUpdateSession != nil {
		s.stmtUpdateSession.Close()
	}

	return s.db.Close()
}

// ========================================
// Action writes
// ========================================

// WriteAction buffers an action for the background writer. The same
// action id may be written again later with new fields; last write wins.
func (s *ActionStore) WriteAction(a Action) error {
	s.writeBufferMu.Lock()
	s.writeBuffer = append(s.writeBuffer, a)
	shouldFlush := len(s.writeBuffer) >= s.flushThreshold
	s.writeBufferMu.Unlock()

	if shouldFlush {
		go s.Flush()
	}
	return nil
}

// WriteActionDirect writes one action synchronously, bypassing the buffer.
func (s *ActionStore) WriteActionDirect(a Action) error {
	return s.writeActionsBatch([]Action{a})
}

// Flush drains the write buffer into a single transaction.
func (s *ActionStore) Flush() {
	s.writeBufferMu.Lock()
	if len(s.writeBuffer) == 0 {
		s.writeBufferMu.Unlock()
		return
	}
	actions := s.writeBuffer
	s.writeBuffer = make([]Action, 0, 256)
	s.writeBufferMu.Unlock()

	if err := s.writeActionsBatch(actions); err != nil {
		LogError("store").Err(err).Int("count", len(actions)).Msg("Failed to flush actions")
	}
}

func (s *ActionStore) writeActionsBatch(actions []Action) error {
	if len(actions) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt := tx.Stmt(s.stmtUpsertAction)

	for i := range actions {
		a := actions[i]
		payload, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("marshal action %s: %w", a.ID, err)
		}
		_, err = stmt.Exec(a.ID, a.SessionID, string(a.Type), a.Timestamp, a.CompletedAt, string(payload))
		if err != nil {
			return fmt.Errorf("write action %s: %w", a.ID, err)
		}
	}

	return tx.Commit()
}

// ========================================
// Session operations
// ========================================

// CreateSession inserts a new capture session row.
func (s *ActionStore) CreateSession(session *types.CaptureSession) error {
	_, err := s.stmtInsertSession.Exec(
		session.ID, session.Name, session.URL,
		session.StartTime, session.EndTime, session.Status, session.ActionCount,
	)
	return err
}

// UpdateSession writes back the mutable session fields.
func (s *ActionStore) UpdateSession(session *types.CaptureSession) error {
	_, err := s.stmtUpdateSession.Exec(
		session.EndTime, session.Status, session.ActionCount,
		time.Now().UnixMilli(), session.ID,
	)
	return err
}

// RenameSession changes a session's display name.
func (s *ActionStore) RenameSession(id, newName string) error {
	_, err := s.db.Exec(`UPDATE sessions SET name = ?, updated_at = ? WHERE id = ?`,
		newName, time.Now().UnixMilli(), id)
	return err
}

// GetSession returns one session, or nil when the id is unknown.
func (s *ActionStore) GetSession(id string) (*types.CaptureSession, error) {
	row := s.db.QueryRow(`
		SELECT id, name, url, start_time, end_time, status, action_count
		FROM sessions WHERE id = ?
	`, id)

	var session types.CaptureSession
	err := row.Scan(
		&session.ID, &session.Name, &session.URL,
		&session.StartTime, &session.EndTime, &session.Status, &session.ActionCount,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// ListSessions returns sessions newest first, optionally filtered by status.
func (s *ActionStore) ListSessions(status string, limit int) ([]types.CaptureSession, error) {
	query := `
		SELECT id, name, url, start_time, end_time, status, action_count
		FROM sessions
	`
	var args []interface{}

	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY start_time DESC`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []types.CaptureSession
	for rows.Next() {
		var session types.CaptureSession
		err := rows.Scan(
			&session.ID, &session.Name, &session.URL,
			&session.StartTime, &session.EndTime, &session.Status, &session.ActionCount,
		)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// DeleteSession removes a session; its actions go with it via the
// foreign key cascade. Buffered writes are flushed first so a freshly
// recorded session cannot resurrect deleted rows.
func (s *ActionStore) DeleteSession(id string) error {
	s.Flush()
	_, err := s.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	return err
}

// ========================================
// Action queries
// ========================================

// ListActions returns a session's actions in timeline order.
func (s *ActionStore) ListActions(sessionID string, limit int) ([]Action, error) {
	s.Flush()

	query := `SELECT payload FROM actions WHERE session_id = ? ORDER BY timestamp, id`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}

	rows, err := s.db.Query(query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actions []Action
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var a Action
		if err := json.Unmarshal([]byte(payload), &a); err != nil {
			return nil, fmt.Errorf("decode action payload: %w", err)
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

// QueryActions filters a session's actions and returns the raw stored
// payloads plus the total match count for paging.
func (s *ActionStore) QueryActions(q types.ActionQuery) (*types.ActionQueryResult, error) {
	s.Flush()

	conditions := []string{"session_id = ?"}
	args := []interface{}{q.SessionID}

	if len(q.Types) > 0 {
		placeholders := make([]string, len(q.Types))
		for i, t := range q.Types {
			placeholders[i] = "?"
			args = append(args, t)
		}
		conditions = append(conditions, fmt.Sprintf("type IN (%s)", strings.Join(placeholders, ",")))
	}
	if q.FromMs > 0 {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, q.FromMs)
	}
	if q.ToMs > 0 {
		conditions = append(conditions, "timestamp <= ?")
		args = append(args, q.ToMs)
	}

	where := strings.Join(conditions, " AND ")

	var total int
	countArgs := make([]interface{}, len(args))
	copy(countArgs, args)
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM actions WHERE `+where, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count actions: %w", err)
	}

	query := `SELECT payload FROM actions WHERE ` + where + ` ORDER BY timestamp, id`
	if q.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, q.Limit)
		if q.Offset > 0 {
			query += fmt.Sprintf(` OFFSET %d`, q.Offset)
		}
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := &types.ActionQueryResult{SessionID: q.SessionID, Total: total}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		result.Actions = append(result.Actions, json.RawMessage(payload))
	}
	return result, rows.Err()
}

// CountActions returns how many actions a session holds.
func (s *ActionStore) CountActions(sessionID string) (int64, error) {
	s.Flush()
	var n int64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM actions WHERE session_id = ?`, sessionID).Scan(&n)
	return n, err
}

// ========================================
// Maintenance
// ========================================

// CleanupOldSessions deletes completed sessions older than maxAge.
func (s *ActionStore) CleanupOldSessions(maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge).UnixMilli()
	res, err := s.db.Exec(`
		DELETE FROM sessions WHERE status != 'recording' AND start_time < ?
	`, cutoff)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// VacuumDatabase reclaims file space after large deletes.
func (s *ActionStore) VacuumDatabase() error {
	_, err := s.db.Exec(`VACUUM`)
	return err
}
