// Package store handles SQLite persistence.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/verte-zerg/schulte/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// ErrNotFound is returned when a session or subject does not exist.
var ErrNotFound = errors.New("not found")

// Store wraps SQLite access for sessions and subjects.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS subjects (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			age INTEGER NOT NULL DEFAULT 0,
			gender TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			registered_at TEXT NOT NULL,
			table_size INTEGER,
			sequence TEXT,
			shuffle INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			subject_id TEXT NOT NULL,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL,
			table_size INTEGER NOT NULL,
			sequence TEXT NOT NULL,
			shuffle INTEGER NOT NULL,
			efficiency_rate REAL NOT NULL,
			workability_index REAL NOT NULL,
			stability_index REAL NOT NULL,
			total_errors INTEGER NOT NULL,
			total_time REAL NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS session_tables (
			session_id TEXT NOT NULL,
			table_index INTEGER NOT NULL,
			duration_s REAL NOT NULL,
			errors INTEGER NOT NULL,
			PRIMARY KEY (session_id, table_index)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_subject ON sessions(subject_id);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveSession stores a completed session and its per-table timings.
func (s *Store) SaveSession(ctx context.Context, rec model.SessionRecord) (err error) {
	if len(rec.Durations) != len(rec.ErrorCounts) {
		return fmt.Errorf("session %s: %d durations but %d error counts", rec.ID, len(rec.Durations), len(rec.ErrorCounts))
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (id, subject_id, started_at, ended_at, table_size, sequence, shuffle,
			efficiency_rate, workability_index, stability_index, total_errors, total_time)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.SubjectID,
		rec.StartedAt.UTC().Format(time.RFC3339Nano),
		rec.EndedAt.UTC().Format(time.RFC3339Nano),
		rec.Config.TableSize,
		string(rec.Config.SequenceType),
		boolToInt(rec.Config.ShuffleAfterEachStep),
		rec.Result.EfficiencyRate,
		rec.Result.WorkabilityIndex,
		rec.Result.StabilityIndex,
		rec.Result.TotalErrors,
		rec.Result.TotalTime,
	)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO session_tables (session_id, table_index, duration_s, errors) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := stmt.Close(); cerr != nil {
			// Best-effort statement close.
			_ = cerr
		}
	}()
	for i, d := range rec.Durations {
		if _, err = stmt.ExecContext(ctx, rec.ID, i+1, d, rec.ErrorCounts[i]); err != nil {
			return err
		}
	}

	return tx.Commit()
}

const sessionColumns = `id, subject_id, started_at, ended_at, table_size, sequence, shuffle,
	efficiency_rate, workability_index, stability_index, total_errors, total_time`

// GetSession loads one session by id.
func (s *Store) GetSession(ctx context.Context, id string) (model.SessionRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	rec, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.SessionRecord{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.SessionRecord{}, err
	}
	records := []model.SessionRecord{rec}
	if err := s.loadTables(ctx, records); err != nil {
		return model.SessionRecord{}, err
	}
	return records[0], nil
}

// ListSessions returns sessions filtered by stats config, oldest first.
// cfg.Last is left to the caller.
func (s *Store) ListSessions(ctx context.Context, cfg model.StatsConfig) ([]model.SessionRecord, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if cfg.SubjectID != "" {
		clauses = append(clauses, "subject_id = ?")
		args = append(args, cfg.SubjectID)
	}
	if cfg.Since != nil {
		clauses = append(clauses, "started_at >= ?")
		args = append(args, cfg.Since.UTC().Format(time.RFC3339Nano))
	}
	query := fmt.Sprintf(`SELECT %s FROM sessions WHERE %s ORDER BY started_at ASC`,
		sessionColumns, strings.Join(clauses, " AND "))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var records []model.SessionRecord
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.loadTables(ctx, records); err != nil {
		return nil, err
	}
	return records, nil
}

// ListSessionsBySubject returns all sessions of one subject, oldest first.
func (s *Store) ListSessionsBySubject(ctx context.Context, subjectID string) ([]model.SessionRecord, error) {
	return s.ListSessions(ctx, model.StatsConfig{SubjectID: subjectID})
}

// DeleteSession removes a session and its tables.
func (s *Store) DeleteSession(ctx context.Context, id string) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()
	if err = deleteSessionTx(ctx, tx, id); err != nil {
		return err
	}
	return tx.Commit()
}

func deleteSessionTx(ctx context.Context, tx *sql.Tx, id string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM session_tables WHERE session_id = ?`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (model.SessionRecord, error) {
	var rec model.SessionRecord
	var startedAt, endedAt, sequence string
	var shuffle int
	if err := row.Scan(
		&rec.ID,
		&rec.SubjectID,
		&startedAt,
		&endedAt,
		&rec.Config.TableSize,
		&sequence,
		&shuffle,
		&rec.Result.EfficiencyRate,
		&rec.Result.WorkabilityIndex,
		&rec.Result.StabilityIndex,
		&rec.Result.TotalErrors,
		&rec.Result.TotalTime,
	); err != nil {
		return model.SessionRecord{}, err
	}
	var err error
	if rec.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return model.SessionRecord{}, err
	}
	if rec.EndedAt, err = time.Parse(time.RFC3339Nano, endedAt); err != nil {
		return model.SessionRecord{}, err
	}
	rec.Config.SequenceType = model.SequenceType(sequence)
	rec.Config.ShuffleAfterEachStep = shuffle != 0
	return rec, nil
}

// loadTables fills Durations and ErrorCounts for the given records.
func (s *Store) loadTables(ctx context.Context, records []model.SessionRecord) error {
	if len(records) == 0 {
		return nil
	}
	index := make(map[string]int, len(records))
	placeholders := make([]string, len(records))
	args := make([]any, len(records))
	for i, rec := range records {
		index[rec.ID] = i
		placeholders[i] = "?"
		args[i] = rec.ID
	}
	query := fmt.Sprintf(`SELECT session_id, duration_s, errors
		FROM session_tables
		WHERE session_id IN (%s)
		ORDER BY session_id, table_index`, strings.Join(placeholders, ","))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	for rows.Next() {
		var id string
		var duration float64
		var errs int
		if err := rows.Scan(&id, &duration, &errs); err != nil {
			return err
		}
		i, ok := index[id]
		if !ok {
			continue
		}
		records[i].Durations = append(records[i].Durations, duration)
		records[i].ErrorCounts = append(records[i].ErrorCounts, errs)
	}
	return rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
