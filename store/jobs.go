package store

import (
	"context"
	"fmt"
	"time"

	v1 "github.com/OpenLabsHQ/openlabs-api/api/v1"

	"github.com/jackc/pgx/v5"
)

// RecordJobQueued inserts the initial bookkeeping row for an accepted
// job. The insert is idempotent on the queue task ID, so the front end
// and the worker can both attempt it without racing.
func (s *Store) RecordJobQueued(ctx context.Context, ownerID int64, arqJobID, jobName string, enqueueTime time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (arq_job_id, owner_id, job_name, status, enqueue_time)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (arq_job_id) DO NOTHING`,
		arqJobID, ownerID, jobName, v1.JobStatusQueued, enqueueTime)
	if err != nil {
		return fmt.Errorf("recording queued job: %w", err)
	}
	return nil
}

// MarkJobStarted upserts a job row to in_progress and bumps its try
// counter. The insert path creates the record for tasks whose
// submission-time bookkeeping write failed; a terminal row is left
// untouched so a poller never observes the status moving backwards.
func (s *Store) MarkJobStarted(ctx context.Context, ownerID int64, arqJobID, jobName string, startTime time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (arq_job_id, owner_id, job_name, status, enqueue_time, start_time, job_try)
		 VALUES ($1, $2, $3, $4, $5, $5, 1)
		 ON CONFLICT (arq_job_id) DO UPDATE
		 SET status = EXCLUDED.status, start_time = EXCLUDED.start_time, job_try = jobs.job_try + 1
		 WHERE jobs.status NOT IN ($6, $7)`,
		arqJobID, ownerID, jobName, v1.JobStatusInProgress, startTime,
		v1.JobStatusComplete, v1.JobStatusFailed)
	if err != nil {
		return fmt.Errorf("marking job started: %w", err)
	}
	return nil
}

// MarkJobComplete records a successful job together with its result
// payload.
func (s *Store) MarkJobComplete(ctx context.Context, arqJobID string, finishTime time.Time, result []byte) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = $2, finish_time = $3, result = $4, error_message = ''
		 WHERE arq_job_id = $1`,
		arqJobID, v1.JobStatusComplete, finishTime, result)
	if err != nil {
		return fmt.Errorf("marking job complete: %w", err)
	}
	return nil
}

// MarkJobFailed records a failed job with its error message.
func (s *Store) MarkJobFailed(ctx context.Context, arqJobID string, finishTime time.Time, errorMessage string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = $2, finish_time = $3, error_message = $4
		 WHERE arq_job_id = $1`,
		arqJobID, v1.JobStatusFailed, finishTime, errorMessage)
	if err != nil {
		return fmt.Errorf("marking job failed: %w", err)
	}
	return nil
}

// GetJob loads a job record by queue task ID, visible to the scope.
func (s *Store) GetJob(ctx context.Context, scope Scope, arqJobID string) (*v1.JobRecord, error) {
	var rec v1.JobRecord
	err := s.pool.QueryRow(ctx,
		`SELECT id, arq_job_id, job_name, job_try, enqueue_time, start_time, finish_time,
		        status, result, error_message
		 FROM jobs WHERE arq_job_id = $1 AND (owner_id = $2 OR $3)`, arqJobID, scope.UserID, scope.Admin).
		Scan(&rec.ID, &rec.ArqJobID, &rec.JobName, &rec.JobTry, &rec.EnqueueTime,
			&rec.StartTime, &rec.FinishTime, &rec.Status, &rec.Result, &rec.ErrorMessage)
	if err != nil {
		return nil, notFound(err)
	}
	return &rec, nil
}

// ListJobs lists the job records visible to the scope, optionally
// filtered by status, newest first.
func (s *Store) ListJobs(ctx context.Context, scope Scope, status v1.JobStatus) ([]v1.JobRecord, error) {
	query := `SELECT id, arq_job_id, job_name, job_try, enqueue_time, start_time, finish_time,
	                 status, result, error_message
	          FROM jobs WHERE (owner_id = $1 OR $2)`
	args := []any{scope.UserID, scope.Admin}
	if status != "" {
		query += ` AND status = $3`
		args = append(args, status)
	}
	rows, err := s.pool.Query(ctx, query+` ORDER BY enqueue_time DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (v1.JobRecord, error) {
		var rec v1.JobRecord
		err := row.Scan(&rec.ID, &rec.ArqJobID, &rec.JobName, &rec.JobTry, &rec.EnqueueTime,
			&rec.StartTime, &rec.FinishTime, &rec.Status, &rec.Result, &rec.ErrorMessage)
		return rec, err
	})
}

// DeleteOldJobs removes terminal job rows older than the given
// retention windows and returns how many were deleted.
func (s *Store) DeleteOldJobs(ctx context.Context, completedBefore, failedBefore time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM jobs
		 WHERE (status = $1 AND finish_time < $2)
		    OR (status = $3 AND finish_time < $4)`,
		v1.JobStatusComplete, completedBefore, v1.JobStatusFailed, failedBefore)
	if err != nil {
		return 0, fmt.Errorf("deleting old jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}
