package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nexusedu/exam-agent/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// Record kinds within the snapshots table.
const (
	kindSession = "session"
	kindPending = "pending"
)

// SQLiteStore keeps snapshots in a local single-file database. This is the
// default driver: it survives reboots and needs no services on the machine.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database file and applies the schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS snapshots (
			student_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			payload BLOB NOT NULL,
			saved_at TEXT NOT NULL,
			PRIMARY KEY (student_id, kind)
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) save(ctx context.Context, studentID, kind string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", kind, err)
	}

	// UPSERT so a fresh snapshot always supersedes the previous one.
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO snapshots (student_id, kind, payload, saved_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (student_id, kind) DO UPDATE
		 SET payload = excluded.payload, saved_at = excluded.saved_at`,
		studentID, kind, payload, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("save %s: %w", kind, err)
	}
	return nil
}

func (s *SQLiteStore) load(ctx context.Context, studentID, kind string, v interface{}) error {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM snapshots WHERE student_id = ? AND kind = ?`,
		studentID, kind,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", kind, err)
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("unmarshal %s: %w", kind, err)
	}
	return nil
}

func (s *SQLiteStore) clear(ctx context.Context, studentID, kind string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM snapshots WHERE student_id = ? AND kind = ?`,
		studentID, kind,
	); err != nil {
		return fmt.Errorf("clear %s: %w", kind, err)
	}
	return nil
}

func (s *SQLiteStore) SaveSession(ctx context.Context, studentID string, snap *model.SessionSnapshot) error {
	return s.save(ctx, studentID, kindSession, snap)
}

func (s *SQLiteStore) LoadSession(ctx context.Context, studentID string) (*model.SessionSnapshot, error) {
	var snap model.SessionSnapshot
	if err := s.load(ctx, studentID, kindSession, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *SQLiteStore) ClearSession(ctx context.Context, studentID string) error {
	return s.clear(ctx, studentID, kindSession)
}

func (s *SQLiteStore) SavePending(ctx context.Context, studentID string, pending *model.PendingSubmission) error {
	return s.save(ctx, studentID, kindPending, pending)
}

func (s *SQLiteStore) LoadPending(ctx context.Context, studentID string) (*model.PendingSubmission, error) {
	var pending model.PendingSubmission
	if err := s.load(ctx, studentID, kindPending, &pending); err != nil {
		return nil, err
	}
	return &pending, nil
}

func (s *SQLiteStore) ClearPending(ctx context.Context, studentID string) error {
	return s.clear(ctx, studentID, kindPending)
}
