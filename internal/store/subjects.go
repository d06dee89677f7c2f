package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/schulte/internal/model"
)

// AnonymousSubjectName names the subject used when none is selected.
const AnonymousSubjectName = "Anonymous"

// ErrSubjectHasSessions is returned when deleting a subject that still owns sessions.
var ErrSubjectHasSessions = errors.New("subject has sessions")

const subjectColumns = `id, name, age, gender, notes, registered_at, table_size, sequence, shuffle`

// SaveSubject inserts or updates a subject. An empty ID is assigned a new UUID.
func (s *Store) SaveSubject(ctx context.Context, subj model.Subject) (model.Subject, error) {
	if strings.TrimSpace(subj.Name) == "" {
		return model.Subject{}, fmt.Errorf("subject name must not be empty")
	}
	if subj.ID == "" {
		subj.ID = uuid.NewString()
	}
	if subj.RegisteredAt.IsZero() {
		subj.RegisteredAt = time.Now()
	}
	var tableSize, sequence, shuffle any
	if subj.Config != nil {
		tableSize = subj.Config.TableSize
		sequence = string(subj.Config.SequenceType)
		shuffle = boolToInt(subj.Config.ShuffleAfterEachStep)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subjects (`+subjectColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			age = excluded.age,
			gender = excluded.gender,
			notes = excluded.notes,
			table_size = excluded.table_size,
			sequence = excluded.sequence,
			shuffle = excluded.shuffle`,
		subj.ID,
		subj.Name,
		subj.Age,
		subj.Gender,
		subj.Notes,
		subj.RegisteredAt.UTC().Format(time.RFC3339Nano),
		tableSize,
		sequence,
		shuffle,
	)
	if err != nil {
		return model.Subject{}, err
	}
	return subj, nil
}

// GetSubject loads one subject by id.
func (s *Store) GetSubject(ctx context.Context, id string) (model.Subject, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+subjectColumns+` FROM subjects WHERE id = ?`, id)
	subj, err := scanSubject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Subject{}, fmt.Errorf("subject %s: %w", id, ErrNotFound)
	}
	return subj, err
}

// ListSubjects returns all subjects ordered by name.
func (s *Store) ListSubjects(ctx context.Context) ([]model.Subject, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+subjectColumns+` FROM subjects ORDER BY name, registered_at`)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var subjects []model.Subject
	for rows.Next() {
		subj, err := scanSubject(rows)
		if err != nil {
			return nil, err
		}
		subjects = append(subjects, subj)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return subjects, nil
}

// DeleteSubject removes a subject. With cascade the subject's sessions are
// removed too; otherwise a subject with sessions is kept and
// ErrSubjectHasSessions is returned.
func (s *Store) DeleteSubject(ctx context.Context, id string, cascade bool) (err error) {
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

	ids, err := sessionIDsForSubject(ctx, tx, id)
	if err != nil {
		return err
	}
	if len(ids) > 0 && !cascade {
		return fmt.Errorf("subject %s has %d sessions: %w", id, len(ids), ErrSubjectHasSessions)
	}
	for _, sid := range ids {
		if err = deleteSessionTx(ctx, tx, sid); err != nil {
			return err
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM subjects WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		err = fmt.Errorf("subject %s: %w", id, ErrNotFound)
		return err
	}
	return tx.Commit()
}

// DefaultSubject returns the anonymous subject, creating it on first use.
func (s *Store) DefaultSubject(ctx context.Context) (model.Subject, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+subjectColumns+` FROM subjects WHERE name = ? ORDER BY registered_at LIMIT 1`, AnonymousSubjectName)
	subj, err := scanSubject(row)
	if err == nil {
		return subj, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return model.Subject{}, err
	}
	return s.SaveSubject(ctx, model.Subject{Name: AnonymousSubjectName})
}

func sessionIDsForSubject(ctx context.Context, tx *sql.Tx, subjectID string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id FROM sessions WHERE subject_id = ?`, subjectID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanSubject(row rowScanner) (model.Subject, error) {
	var subj model.Subject
	var registeredAt string
	var tableSize sql.NullInt64
	var sequence sql.NullString
	var shuffle sql.NullInt64
	if err := row.Scan(
		&subj.ID,
		&subj.Name,
		&subj.Age,
		&subj.Gender,
		&subj.Notes,
		&registeredAt,
		&tableSize,
		&sequence,
		&shuffle,
	); err != nil {
		return model.Subject{}, err
	}
	parsed, err := time.Parse(time.RFC3339Nano, registeredAt)
	if err != nil {
		return model.Subject{}, err
	}
	subj.RegisteredAt = parsed
	if tableSize.Valid && sequence.Valid {
		subj.Config = &model.TestConfiguration{
			TableSize:            int(tableSize.Int64),
			SequenceType:         model.SequenceType(sequence.String),
			ShuffleAfterEachStep: shuffle.Valid && shuffle.Int64 != 0,
		}
	}
	return subj, nil
}
