// Package queue submits range jobs to the Redis-backed task queue and
// resolves their live status.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	v1 "github.com/OpenLabsHQ/openlabs-api/api/v1"
)

// QueueName is the asynq queue range jobs run on.
const QueueName = "openlabs"

const (
	deployTimeout  = 45 * time.Minute
	destroyTimeout = 45 * time.Minute
	maxRetry       = 2

	// Terminal tasks are kept in Redis briefly so status lookups keep
	// working while the database record catches up.
	resultRetention = 24 * time.Hour
)

// Queue is the producer side of the job queue.
type Queue struct {
	client    *asynq.Client
	inspector *asynq.Inspector
}

// New builds a Queue talking to the given Redis instance.
func New(redisAddr, password string, db int) *Queue {
	opt := asynq.RedisClientOpt{Addr: redisAddr, Password: password, DB: db}
	return &Queue{
		client:    asynq.NewClient(opt),
		inspector: asynq.NewInspector(opt),
	}
}

// Close releases the Redis connections.
func (q *Queue) Close() error {
	if err := q.client.Close(); err != nil {
		return err
	}
	return q.inspector.Close()
}

// EnqueueDeploy submits a deploy_range job and returns its task ID and
// enqueue time.
func (q *Queue) EnqueueDeploy(ctx context.Context, payload v1.DeployJobPayload) (string, time.Time, error) {
	return q.enqueue(ctx, v1.JobDeployRange, payload, deployTimeout)
}

// EnqueueDestroy submits a destroy_range job and returns its task ID
// and enqueue time.
func (q *Queue) EnqueueDestroy(ctx context.Context, payload v1.DestroyJobPayload) (string, time.Time, error) {
	return q.enqueue(ctx, v1.JobDestroyRange, payload, destroyTimeout)
}

func (q *Queue) enqueue(ctx context.Context, jobName string, payload any, timeout time.Duration) (string, time.Time, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("encoding %s payload: %w", jobName, err)
	}
	task := asynq.NewTask(jobName, raw)
	info, err := q.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueName),
		asynq.MaxRetry(maxRetry),
		asynq.Timeout(timeout),
		asynq.Retention(resultRetention),
	)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("enqueueing %s: %w", jobName, err)
	}
	return info.ID, time.Now().UTC(), nil
}

// Status resolves the live queue status of a task. Tasks unknown to the
// queue report not_found; callers fall back to the database record.
func (q *Queue) Status(_ context.Context, taskID string) (v1.JobStatus, error) {
	info, err := q.inspector.GetTaskInfo(QueueName, taskID)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
			return v1.JobStatusNotFound, nil
		}
		return "", fmt.Errorf("inspecting task %s: %w", taskID, err)
	}
	return StatusFromState(info.State), nil
}

// StatusFromState maps asynq task states onto the externally visible
// job statuses.
func StatusFromState(state asynq.TaskState) v1.JobStatus {
	switch state {
	case asynq.TaskStatePending, asynq.TaskStateScheduled, asynq.TaskStateAggregating:
		return v1.JobStatusQueued
	case asynq.TaskStateActive, asynq.TaskStateRetry:
		return v1.JobStatusInProgress
	case asynq.TaskStateCompleted:
		return v1.JobStatusComplete
	case asynq.TaskStateArchived:
		return v1.JobStatusFailed
	}
	return v1.JobStatusNotFound
}
