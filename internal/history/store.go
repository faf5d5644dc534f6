// Package history keeps a local record of applied updates in SQLite.
package history

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// ErrNoHistory is returned by Latest when nothing has been recorded.
var ErrNoHistory = errors.New("no updates recorded")

// UpdateRecord is one applied update.
type UpdateRecord struct {
	ID          int64
	FromVersion string
	ToVersion   string
	ArchiveURL  string
	AppliedAt   time.Time
}

// Store is an update history backed by SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens the database at dsn and runs pending migrations. Use
// ":memory:" for an in-memory database.
func Open(dsn string) (*Store, error) {
	if dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record appends rec. A zero AppliedAt is set to the current time. The
// stored record, with its ID, is returned.
func (s *Store) Record(ctx context.Context, rec UpdateRecord) (UpdateRecord, error) {
	if rec.AppliedAt.IsZero() {
		rec.AppliedAt = s.now()
	}
	rec.AppliedAt = rec.AppliedAt.UTC()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO update_history (from_version, to_version, archive_url, applied_at) VALUES (?, ?, ?, ?)`,
		rec.FromVersion, rec.ToVersion, rec.ArchiveURL, rec.AppliedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return UpdateRecord{}, fmt.Errorf("insert update record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return UpdateRecord{}, fmt.Errorf("read record id: %w", err)
	}
	rec.ID = id
	return rec, nil
}

// RecordApplied satisfies update.Recorder.
func (s *Store) RecordApplied(ctx context.Context, from, to, archiveURL string) error {
	_, err := s.Record(ctx, UpdateRecord{FromVersion: from, ToVersion: to, ArchiveURL: archiveURL})
	return err
}

// List returns up to limit records, newest first. limit <= 0 means all.
func (s *Store) List(ctx context.Context, limit int) ([]UpdateRecord, error) {
	query := `SELECT id, from_version, to_version, archive_url, applied_at FROM update_history ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list update history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []UpdateRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Latest returns the most recent record or ErrNoHistory.
func (s *Store) Latest(ctx context.Context) (UpdateRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, from_version, to_version, archive_url, applied_at FROM update_history ORDER BY id DESC LIMIT 1`)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return UpdateRecord{}, ErrNoHistory
	}
	return rec, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (UpdateRecord, error) {
	var (
		rec       UpdateRecord
		appliedAt string
	)
	if err := s.Scan(&rec.ID, &rec.FromVersion, &rec.ToVersion, &rec.ArchiveURL, &appliedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return UpdateRecord{}, err
		}
		return UpdateRecord{}, fmt.Errorf("scan update record: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, appliedAt)
	if err != nil {
		return UpdateRecord{}, fmt.Errorf("parse applied_at %q: %w", appliedAt, err)
	}
	rec.AppliedAt = t
	return rec, nil
}
