// Package ledger is the durable per-thread screening record: the ordered
// conversation, the cumulative applicant field map, the processed-message
// set and background check results, all in a single SQLite file.
package ledger

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/arxmedia/resume-screener/internal/extract"
	"github.com/arxmedia/resume-screener/internal/models"
)

// Store provides SQLite-backed persistence for screening threads.
type Store struct {
	db *sql.DB

	mu      sync.Mutex
	threads map[string]*sync.Mutex
}

// Open opens (creating if needed) the database at path and runs
// migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	if err := Migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	return &Store{db: db, threads: make(map[string]*sync.Mutex)}, nil
}

// New returns a Store bound to an existing database handle.
func New(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("new ledger: db is nil")
	}
	return &Store{db: db, threads: make(map[string]*sync.Mutex)}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// threadLock returns the mutex serializing read-merge-write cycles for
// one thread.
func (s *Store) threadLock(threadID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.threads[threadID]
	if !ok {
		m = &sync.Mutex{}
		s.threads[threadID] = m
	}
	return m
}

// Get returns the full state for a thread, creating an empty active
// record if the thread has not been seen before.
func (s *Store) Get(threadID string) (models.ThreadState, error) {
	if threadID == "" {
		return models.ThreadState{}, fmt.Errorf("get thread: empty thread ID")
	}

	lock := s.threadLock(threadID)
	lock.Lock()
	defer lock.Unlock()

	return s.getLocked(threadID)
}

func (s *Store) getLocked(threadID string) (models.ThreadState, error) {
	state, err := s.readThread(s.db, threadID)
	if errors.Is(err, sql.ErrNoRows) {
		now := time.Now().UTC()
		nowStr := now.Format(time.RFC3339Nano)
		_, err = s.db.Exec(
			`INSERT INTO threads (thread_id, status, fields, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
			threadID, models.StatusActive, "{}", nowStr, nowStr,
		)
		if err != nil {
			return models.ThreadState{}, fmt.Errorf("get thread: create: %w", err)
		}
		return models.ThreadState{
			ThreadID:  threadID,
			Status:    models.StatusActive,
			Fields:    models.Fields{},
			CreatedAt: now,
			UpdatedAt: now,
		}, nil
	}
	if err != nil {
		return models.ThreadState{}, err
	}

	state.Turns, err = s.readTurns(threadID)
	if err != nil {
		return models.ThreadState{}, err
	}
	return state, nil
}

// Lookup returns the state for an existing thread without creating one,
// with found reporting whether the thread exists.
func (s *Store) Lookup(threadID string) (models.ThreadState, bool, error) {
	if threadID == "" {
		return models.ThreadState{}, false, fmt.Errorf("lookup thread: empty thread ID")
	}

	lock := s.threadLock(threadID)
	lock.Lock()
	defer lock.Unlock()

	state, err := s.readThread(s.db, threadID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ThreadState{}, false, nil
	}
	if err != nil {
		return models.ThreadState{}, false, err
	}
	state.Turns, err = s.readTurns(threadID)
	if err != nil {
		return models.ThreadState{}, false, err
	}
	return state, true, nil
}

type querier interface {
	QueryRow(query string, args ...any) *sql.Row
}

func (s *Store) readThread(q querier, threadID string) (models.ThreadState, error) {
	var state models.ThreadState
	var fieldsJSON, createdStr, updatedStr string

	row := q.QueryRow(`SELECT thread_id, status, fields, created_at, updated_at FROM threads WHERE thread_id = ?`, threadID)
	err := row.Scan(&state.ThreadID, &state.Status, &fieldsJSON, &createdStr, &updatedStr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ThreadState{}, err
		}
		return models.ThreadState{}, fmt.Errorf("get thread: scan: %w", err)
	}

	if err := json.Unmarshal([]byte(fieldsJSON), &state.Fields); err != nil {
		return models.ThreadState{}, fmt.Errorf("get thread: decode fields: %w", err)
	}
	if state.Fields == nil {
		state.Fields = models.Fields{}
	}
	state.CreatedAt, err = time.Parse(time.RFC3339Nano, createdStr)
	if err != nil {
		return models.ThreadState{}, fmt.Errorf("get thread: parse created_at: %w", err)
	}
	state.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedStr)
	if err != nil {
		return models.ThreadState{}, fmt.Errorf("get thread: parse updated_at: %w", err)
	}
	return state, nil
}

func (s *Store) readTurns(threadID string) ([]models.ConversationTurn, error) {
	rows, err := s.db.Query(
		`SELECT role, content, disclosed, at FROM turns WHERE thread_id = ? ORDER BY at ASC, id ASC`,
		threadID,
	)
	if err != nil {
		return nil, fmt.Errorf("get thread: query turns: %w", err)
	}
	defer rows.Close()

	var turns []models.ConversationTurn
	for rows.Next() {
		var turn models.ConversationTurn
		var disclosed sql.NullString
		var atStr string
		if err := rows.Scan(&turn.Role, &turn.Content, &disclosed, &atStr); err != nil {
			return nil, fmt.Errorf("get thread: scan turn: %w", err)
		}
		if disclosed.Valid && disclosed.String != "" {
			if err := json.Unmarshal([]byte(disclosed.String), &turn.Disclosed); err != nil {
				return nil, fmt.Errorf("get thread: decode disclosed: %w", err)
			}
		}
		turn.Timestamp, err = time.Parse(time.RFC3339Nano, atStr)
		if err != nil {
			return nil, fmt.Errorf("get thread: parse turn at: %w", err)
		}
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get thread: turns rows: %w", err)
	}
	return turns, nil
}

// AppendTurn records one conversation turn and folds its disclosed
// fields into the thread's cumulative map in a single transaction. The
// updated state is returned. The thread record is created if absent.
func (s *Store) AppendTurn(threadID string, turn models.ConversationTurn) (models.ThreadState, error) {
	if threadID == "" {
		return models.ThreadState{}, fmt.Errorf("append turn: empty thread ID")
	}
	if turn.Role == "" {
		return models.ThreadState{}, fmt.Errorf("append turn: empty role")
	}

	lock := s.threadLock(threadID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := s.getLocked(threadID); err != nil {
		return models.ThreadState{}, fmt.Errorf("append turn: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return models.ThreadState{}, fmt.Errorf("append turn: begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	state, err := s.readThread(tx, threadID)
	if err != nil {
		return models.ThreadState{}, fmt.Errorf("append turn: %w", err)
	}

	// Completed threads are archived. The system turn recording the
	// confirmation reply is the only write still allowed.
	if state.Status == models.StatusComplete && turn.Role == models.RoleApplicant {
		return models.ThreadState{}, fmt.Errorf("append turn: thread %s is complete", threadID)
	}

	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now().UTC()
	}
	atStr := turn.Timestamp.UTC().Format(time.RFC3339Nano)

	var disclosedValue any
	if len(turn.Disclosed) > 0 {
		raw, err := json.Marshal(turn.Disclosed)
		if err != nil {
			return models.ThreadState{}, fmt.Errorf("append turn: encode disclosed: %w", err)
		}
		disclosedValue = string(raw)
	}

	_, err = tx.Exec(
		`INSERT INTO turns (thread_id, role, content, disclosed, at) VALUES (?, ?, ?, ?, ?)`,
		threadID, turn.Role, turn.Content, disclosedValue, atStr,
	)
	if err != nil {
		return models.ThreadState{}, fmt.Errorf("append turn: insert: %w", err)
	}

	merged := extract.Merge(state.Fields, turn.Disclosed)
	fieldsJSON, err := json.Marshal(merged)
	if err != nil {
		return models.ThreadState{}, fmt.Errorf("append turn: encode fields: %w", err)
	}

	// A fresh applicant turn revives an abandoned thread.
	status := state.Status
	if status == models.StatusAbandoned && turn.Role == models.RoleApplicant {
		status = models.StatusActive
	}

	now := time.Now().UTC()
	_, err = tx.Exec(
		`UPDATE threads SET fields = ?, status = ?, updated_at = ? WHERE thread_id = ?`,
		string(fieldsJSON), status, now.Format(time.RFC3339Nano), threadID,
	)
	if err != nil {
		return models.ThreadState{}, fmt.Errorf("append turn: update thread: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.ThreadState{}, fmt.Errorf("append turn: commit: %w", err)
	}

	state.Status = status
	state.Fields = merged
	state.UpdatedAt = now
	state.Turns, err = s.readTurns(threadID)
	if err != nil {
		return models.ThreadState{}, fmt.Errorf("append turn: %w", err)
	}
	return state, nil
}

// MergeFields folds additional fields into a thread's cumulative map
// without recording a turn, for example after a late resume extraction.
func (s *Store) MergeFields(threadID string, fields models.Fields) (models.ThreadState, error) {
	if threadID == "" {
		return models.ThreadState{}, fmt.Errorf("merge fields: empty thread ID")
	}

	lock := s.threadLock(threadID)
	lock.Lock()
	defer lock.Unlock()

	state, err := s.getLocked(threadID)
	if err != nil {
		return models.ThreadState{}, fmt.Errorf("merge fields: %w", err)
	}
	if state.Status == models.StatusComplete {
		return models.ThreadState{}, fmt.Errorf("merge fields: thread %s is complete", threadID)
	}

	merged := extract.Merge(state.Fields, fields)
	fieldsJSON, err := json.Marshal(merged)
	if err != nil {
		return models.ThreadState{}, fmt.Errorf("merge fields: encode: %w", err)
	}

	now := time.Now().UTC()
	_, err = s.db.Exec(
		`UPDATE threads SET fields = ?, updated_at = ? WHERE thread_id = ?`,
		string(fieldsJSON), now.Format(time.RFC3339Nano), threadID,
	)
	if err != nil {
		return models.ThreadState{}, fmt.Errorf("merge fields: update: %w", err)
	}

	state.Fields = merged
	state.UpdatedAt = now
	return state, nil
}

// Complete transitions a thread to complete. The transition is one-way:
// completing an already complete thread is an error.
func (s *Store) Complete(threadID string) error {
	if threadID == "" {
		return fmt.Errorf("complete thread: empty thread ID")
	}

	lock := s.threadLock(threadID)
	lock.Lock()
	defer lock.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("complete thread: begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var status string
	row := tx.QueryRow(`SELECT status FROM threads WHERE thread_id = ?`, threadID)
	if err := row.Scan(&status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("complete thread: not found")
		}
		return fmt.Errorf("complete thread: read status: %w", err)
	}
	if status == models.StatusComplete {
		return fmt.Errorf("complete thread: already complete")
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = tx.Exec(
		`UPDATE threads SET status = ?, updated_at = ? WHERE thread_id = ?`,
		models.StatusComplete, now, threadID,
	)
	if err != nil {
		return fmt.Errorf("complete thread: update: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("complete thread: commit: %w", err)
	}
	return nil
}

// Abandon marks a stale active thread abandoned. Threads in any other
// status are left untouched.
func (s *Store) Abandon(threadID string) error {
	if threadID == "" {
		return fmt.Errorf("abandon thread: empty thread ID")
	}

	lock := s.threadLock(threadID)
	lock.Lock()
	defer lock.Unlock()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	result, err := s.db.Exec(
		`UPDATE threads SET status = ?, updated_at = ? WHERE thread_id = ? AND status = ?`,
		models.StatusAbandoned, now, threadID, models.StatusActive,
	)
	if err != nil {
		return fmt.Errorf("abandon thread: update: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("abandon thread: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("abandon thread: not active")
	}
	return nil
}

// IsProcessed reports whether a message ID has already been handled.
func (s *Store) IsProcessed(messageID string) (bool, error) {
	if messageID == "" {
		return false, fmt.Errorf("is processed: empty message ID")
	}
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM processed_messages WHERE message_id = ?`, messageID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("is processed: query: %w", err)
	}
	return n > 0, nil
}

// MarkProcessed records a message ID as handled. Recording the same ID
// twice is harmless.
func (s *Store) MarkProcessed(messageID string) error {
	if messageID == "" {
		return fmt.Errorf("mark processed: empty message ID")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.Exec(
		`INSERT INTO processed_messages (message_id, at) VALUES (?, ?)
		 ON CONFLICT(message_id) DO NOTHING`,
		messageID, now,
	)
	if err != nil {
		return fmt.Errorf("mark processed: insert: %w", err)
	}
	return nil
}

// SaveBackgroundCheck persists the background check result for a thread,
// replacing any earlier result.
func (s *Store) SaveBackgroundCheck(threadID string, check models.BackgroundCheck) error {
	if threadID == "" {
		return fmt.Errorf("save background check: empty thread ID")
	}
	raw, err := json.Marshal(check)
	if err != nil {
		return fmt.Errorf("save background check: encode: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.db.Exec(
		`INSERT INTO background_checks (thread_id, result, at) VALUES (?, ?, ?)
		 ON CONFLICT(thread_id) DO UPDATE SET result = excluded.result, at = excluded.at`,
		threadID, string(raw), now,
	)
	if err != nil {
		return fmt.Errorf("save background check: upsert: %w", err)
	}
	return nil
}

// GetBackgroundCheck returns the stored background check for a thread,
// or false if none exists.
func (s *Store) GetBackgroundCheck(threadID string) (models.BackgroundCheck, bool, error) {
	if threadID == "" {
		return models.BackgroundCheck{}, false, fmt.Errorf("get background check: empty thread ID")
	}
	var raw string
	err := s.db.QueryRow(`SELECT result FROM background_checks WHERE thread_id = ?`, threadID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return models.BackgroundCheck{}, false, nil
	}
	if err != nil {
		return models.BackgroundCheck{}, false, fmt.Errorf("get background check: query: %w", err)
	}
	var check models.BackgroundCheck
	if err := json.Unmarshal([]byte(raw), &check); err != nil {
		return models.BackgroundCheck{}, false, fmt.Errorf("get background check: decode: %w", err)
	}
	return check, true, nil
}

// ActiveThreads returns all threads still collecting information,
// oldest update first.
func (s *Store) ActiveThreads() ([]models.ThreadState, error) {
	return s.listByStatus(models.StatusActive)
}

// CompletedThreads returns all completed threads, newest update first.
func (s *Store) CompletedThreads() ([]models.ThreadState, error) {
	return s.listByStatus(models.StatusComplete)
}

func (s *Store) listByStatus(status string) ([]models.ThreadState, error) {
	order := "ASC"
	if status == models.StatusComplete {
		order = "DESC"
	}
	rows, err := s.db.Query(
		`SELECT thread_id, status, fields, created_at, updated_at FROM threads WHERE status = ? ORDER BY updated_at `+order,
		status,
	)
	if err != nil {
		return nil, fmt.Errorf("list threads: query: %w", err)
	}
	defer rows.Close()

	var states []models.ThreadState
	for rows.Next() {
		var state models.ThreadState
		var fieldsJSON, createdStr, updatedStr string
		if err := rows.Scan(&state.ThreadID, &state.Status, &fieldsJSON, &createdStr, &updatedStr); err != nil {
			return nil, fmt.Errorf("list threads: scan: %w", err)
		}
		if err := json.Unmarshal([]byte(fieldsJSON), &state.Fields); err != nil {
			return nil, fmt.Errorf("list threads: decode fields: %w", err)
		}
		state.CreatedAt, err = time.Parse(time.RFC3339Nano, createdStr)
		if err != nil {
			return nil, fmt.Errorf("list threads: parse created_at: %w", err)
		}
		state.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedStr)
		if err != nil {
			return nil, fmt.Errorf("list threads: parse updated_at: %w", err)
		}
		states = append(states, state)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list threads: rows: %w", err)
	}
	return states, nil
}
