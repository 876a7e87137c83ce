package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gsekeres/marginalia/internal/jobs"
)

const selectJobFields = `id, kind, citekey, status, progress, message, error,
	created_at, started_at, finished_at`

// CreateJob inserts a new job record.
func (s *Store) CreateJob(j *jobs.Job) error {
	_, err := s.db.Exec(`
		INSERT INTO jobs (`+selectJobFields+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.Kind, j.Citekey, string(j.Status), j.Progress, j.Message, j.Error,
		formatTime(j.CreatedAt), formatTimePtr(j.StartedAt), formatTimePtr(j.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("creating job %s: %w", j.ID, err)
	}
	return nil
}

// GetJob fetches one job by ID.
func (s *Store) GetJob(id string) (*jobs.Job, error) {
	row := s.db.QueryRow(`SELECT `+selectJobFields+` FROM jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	return j, err
}

// ListJobs returns jobs newest first, up to limit (0 means all).
func (s *Store) ListJobs(limit int) ([]*jobs.Job, error) {
	query := `SELECT ` + selectJobFields + ` FROM jobs ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*jobs.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// MarkJobRunning transitions a pending job to running.
func (s *Store) MarkJobRunning(id string) error {
	now := formatTime(time.Now().UTC())
	return s.execOne(`
		UPDATE jobs SET status = ?, started_at = ?
		WHERE id = ? AND status = ?`,
		string(jobs.StatusRunning), now, id, string(jobs.StatusPending))
}

// FinishJob records a terminal state. errMsg is empty unless the job failed.
func (s *Store) FinishJob(id string, status jobs.Status, errMsg string) error {
	now := formatTime(time.Now().UTC())
	return s.execOne(`
		UPDATE jobs SET status = ?, error = ?, finished_at = ?
		WHERE id = ?`,
		string(status), errMsg, now, id)
}

// UpdateJobProgress records progress for a running job.
func (s *Store) UpdateJobProgress(id string, progress float64, message string) error {
	return s.execOne(`
		UPDATE jobs SET progress = ?, message = ?
		WHERE id = ?`,
		progress, message, id)
}

// CancelJob marks a job cancelled and reports whether it was still
// cancellable. Terminal jobs are left untouched.
func (s *Store) CancelJob(id string) (bool, error) {
	now := formatTime(time.Now().UTC())
	res, err := s.db.Exec(`
		UPDATE jobs SET status = ?, finished_at = ?
		WHERE id = ? AND status IN (?, ?)`,
		string(jobs.StatusCancelled), now, id,
		string(jobs.StatusPending), string(jobs.StatusRunning))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func scanJob(row scanner) (*jobs.Job, error) {
	var j jobs.Job
	var citekey, message, errMsg sql.NullString
	var status, createdAt string
	var startedAt, finishedAt sql.NullString

	err := row.Scan(
		&j.ID, &j.Kind, &citekey, &status, &j.Progress, &message, &errMsg,
		&createdAt, &startedAt, &finishedAt,
	)
	if err != nil {
		return nil, err
	}

	j.Citekey = citekey.String
	j.Message = message.String
	j.Error = errMsg.String

	st, err := jobs.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	j.Status = st

	if j.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if j.StartedAt, err = parseTimePtr(startedAt); err != nil {
		return nil, err
	}
	if j.FinishedAt, err = parseTimePtr(finishedAt); err != nil {
		return nil, err
	}

	return &j, nil
}
