package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bnema/upscaler/internal/domain"
	"github.com/bnema/upscaler/internal/port"
	"github.com/pressly/goose/v3"
	"modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// MemoryDSN opens a private in-memory database.
const MemoryDSN = ":memory:"

const jobColumns = `id, status, progress, error_message, input_file, output_file,
	resolution, fps, backend, submitted_at, started_at, finished_at`

type Store struct {
	db *sql.DB
}

var hookOnce sync.Once

func registerHook() {
	hookOnce.Do(func() {
		sqlite.RegisterConnectionHook(func(conn sqlite.ExecQuerierContext, dsn string) error {
			pragmas := []string{
				"PRAGMA journal_mode = WAL",
				"PRAGMA busy_timeout = 5000",
				"PRAGMA synchronous = NORMAL",
				"PRAGMA cache_size = -8000", // 8MB
			}
			for _, p := range pragmas {
				if _, err := conn.ExecContext(context.Background(), p, nil); err != nil {
					return fmt.Errorf("execute %s: %w", p, err)
				}
			}
			return nil
		})
	})
}

// NewStore opens the registry database at path, or a private in-memory
// database for MemoryDSN, and applies pending migrations.
func NewStore(path string) (*Store, error) {
	registerHook()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One connection: SQLite has a single writer and every :memory:
	// connection would otherwise see its own empty database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// FailStalled marks jobs left queued or processing by a previous process as
// failed with domain.ErrInterrupted and returns how many were touched.
func (s *Store) FailStalled() (int64, error) {
	res, err := s.db.Exec(
		`UPDATE jobs SET status = ?, error_message = ?, finished_at = ?
		 WHERE status IN (?, ?)`,
		string(domain.JobStateFailed), domain.ErrInterrupted.Error(), formatTime(time.Now().UTC()),
		string(domain.JobStateQueued), string(domain.JobStateProcessing),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) Create(rec domain.Record) error {
	_, err := s.db.Exec(
		`INSERT INTO jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		recordArgs(rec)...,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateJob
		}
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (s *Store) Get(id string) (domain.Record, error) {
	row := s.db.QueryRow(`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Record{}, domain.ErrNotFound
		}
		return domain.Record{}, err
	}
	return rec, nil
}

// Update reads, mutates and writes the record inside one transaction.
func (s *Store) Update(id string, mutate func(*domain.Record) error) (domain.Record, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return domain.Record{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	current, err := scanRecord(tx.QueryRow(`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Record{}, domain.ErrNotFound
		}
		return domain.Record{}, err
	}

	next := current
	if err := mutate(&next); err != nil {
		return current, err
	}

	_, err = tx.Exec(
		`UPDATE jobs SET status = ?, progress = ?, error_message = ?, output_file = ?,
		 backend = ?, started_at = ?, finished_at = ? WHERE id = ?`,
		string(next.State), next.Progress, next.Error, next.OutputFile,
		string(next.Backend), nullTime(next.StartedAt), nullTime(next.FinishedAt), id,
	)
	if err != nil {
		return current, fmt.Errorf("update job: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return current, fmt.Errorf("commit: %w", err)
	}
	return next, nil
}

func (s *Store) List() ([]domain.Record, error) {
	rows, err := s.db.Query(`SELECT ` + jobColumns + ` FROM jobs ORDER BY submitted_at, id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var list []domain.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, rec)
	}
	return list, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (domain.Record, error) {
	var (
		rec                 domain.Record
		state, res, backend string
		submitted           string
		started, finished   sql.NullString
	)
	err := row.Scan(
		&rec.ID, &state, &rec.Progress, &rec.Error, &rec.InputFile, &rec.OutputFile,
		&res, &rec.Fps, &backend, &submitted, &started, &finished,
	)
	if err != nil {
		return domain.Record{}, err
	}

	rec.State = domain.JobState(state)
	rec.Resolution = domain.ResolutionClass(res)
	rec.Backend = domain.BackendKind(backend)
	if rec.SubmittedAt, err = parseTime(submitted); err != nil {
		return domain.Record{}, err
	}
	if rec.StartedAt, err = parseNullTime(started); err != nil {
		return domain.Record{}, err
	}
	if rec.FinishedAt, err = parseNullTime(finished); err != nil {
		return domain.Record{}, err
	}
	return rec, nil
}

func recordArgs(rec domain.Record) []any {
	return []any{
		rec.ID, string(rec.State), rec.Progress, rec.Error, rec.InputFile, rec.OutputFile,
		string(rec.Resolution), rec.Fps, string(rec.Backend), formatTime(rec.SubmittedAt),
		nullTime(rec.StartedAt), nullTime(rec.FinishedAt),
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

var _ port.JobRegistry = (*Store)(nil)
