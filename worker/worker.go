// Package worker consumes range jobs from the queue and drives the
// provisioner. It is the only component that ever sees decrypted cloud
// credentials.
package worker

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	v1 "github.com/OpenLabsHQ/openlabs-api/api/v1"
	"github.com/OpenLabsHQ/openlabs-api/provisioner"
	"github.com/OpenLabsHQ/openlabs-api/queue"
	"github.com/OpenLabsHQ/openlabs-api/store"
	"github.com/OpenLabsHQ/openlabs-api/support/config"
)

// Worker runs the asynq consumer and the periodic cleanup schedule.
type Worker struct {
	Store    *store.Store
	Driver   *provisioner.Driver
	Settings *config.Settings
	Log      logr.Logger
}

// RangeIDFromJob derives the deployed range ID from the queue task ID
// with a keyed hash, so every delivery of the same job converges on
// the same range row. The result is shaped as a version 4 UUID.
func RangeIDFromJob(secretKey, taskID string) uuid.UUID {
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(taskID))
	sum := mac.Sum(nil)

	sum[6] = (sum[6] & 0x0f) | 0x40
	sum[8] = (sum[8] & 0x3f) | 0x80
	id, _ := uuid.FromBytes(sum[:16])
	return id
}

// Run starts the consumer and the cleanup scheduler and blocks until
// the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	redisOpt := asynq.RedisClientOpt{
		Addr:     w.Settings.RedisAddr(),
		Password: w.Settings.RedisQueuePassword,
		DB:       w.Settings.RedisQueueDB,
	}

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: w.Settings.WorkerConcurrency,
		Queues:      map[string]int{queue.QueueName: 1},
		Logger:      asynqLogger{w.Log.WithName("asynq")},
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(v1.JobDeployRange, w.handleDeploy)
	mux.HandleFunc(v1.JobDestroyRange, w.handleDestroy)
	mux.HandleFunc(v1.JobCleanupJobs, w.handleCleanup)

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Logger: asynqLogger{w.Log.WithName("scheduler")},
	})
	if _, err := scheduler.Register("@every 1h",
		asynq.NewTask(v1.JobCleanupJobs, nil), asynq.Queue(queue.QueueName)); err != nil {
		return fmt.Errorf("registering cleanup schedule: %w", err)
	}

	errCh := make(chan error, 2)
	go func() { errCh <- srv.Run(mux) }()
	go func() { errCh <- scheduler.Run() }()

	w.Log.Info("worker started", "concurrency", w.Settings.WorkerConcurrency)
	select {
	case <-ctx.Done():
		scheduler.Shutdown()
		srv.Shutdown()
		return nil
	case err := <-errCh:
		scheduler.Shutdown()
		srv.Shutdown()
		return err
	}
}

// permanent marks an error as non-retryable for asynq.
func permanent(err error) error {
	return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
}

// asynqLogger adapts logr to the asynq logging contract.
type asynqLogger struct {
	log logr.Logger
}

func (l asynqLogger) Debug(args ...any) { l.log.V(1).Info(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...any)  { l.log.Info(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...any)  { l.log.Info(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...any) {
	l.log.Error(nil, fmt.Sprint(args...))
}
func (l asynqLogger) Fatal(args ...any) {
	l.log.Error(nil, fmt.Sprint(args...))
}
