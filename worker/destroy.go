package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	v1 "github.com/OpenLabsHQ/openlabs-api/api/v1"
	"github.com/OpenLabsHQ/openlabs-api/ranges"
	"github.com/OpenLabsHQ/openlabs-api/store"
)

func (w *Worker) handleDestroy(ctx context.Context, task *asynq.Task) error {
	taskID, _ := asynq.GetTaskID(ctx)
	log := w.Log.WithValues("job", v1.JobDestroyRange, "task", taskID)

	var payload v1.DestroyJobPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return permanent(fmt.Errorf("decoding destroy payload: %w", err))
	}
	rangeID, err := uuid.Parse(payload.RangeID)
	if err != nil {
		return permanent(fmt.Errorf("parsing range id: %w", err))
	}
	if err := w.Store.MarkJobStarted(ctx, payload.UserID, taskID, v1.JobDestroyRange, time.Now().UTC()); err != nil {
		log.Error(err, "recording job start")
	}
	log = log.WithValues("range", rangeID)

	internals, err := w.Store.GetDeployedRangeInternals(ctx, rangeID)
	if errors.Is(err, store.ErrNotFound) {
		// Already destroyed by an earlier delivery.
		log.Info("range not found, treating destroy as complete")
		return w.completeDestroy(ctx, taskID, rangeID)
	}
	if err != nil {
		return w.failJob(ctx, taskID, err)
	}

	bundle, err := w.decryptBundle(ctx, payload.UserID, payload.EncKey)
	if err != nil {
		return w.failJob(ctx, taskID, permanent(err))
	}

	deployed := internals.Deployed
	rng, err := ranges.New(rangeID, deployed.Name, deployed.Description,
		internals.Blueprint, deployed.Region, bundle, internals.Keys.PublicKey)
	if err != nil {
		return w.failJob(ctx, taskID, permanent(err))
	}
	if !rng.HasSecrets() {
		return w.failJob(ctx, taskID,
			permanent(fmt.Errorf("no credentials found for provider: %s", internals.Blueprint.Provider)))
	}

	if err := w.Store.SetDeployedRangeState(ctx, rangeID, v1.RangeStateDestroying); err != nil {
		log.Error(err, "marking range destroying")
	}

	log.Info("destroying range")
	if err := w.Driver.Destroy(ctx, rng, deployed.StateBlob); err != nil {
		if stateErr := w.Store.SetDeployedRangeState(ctx, rangeID, v1.RangeStateFailed); stateErr != nil {
			log.Error(stateErr, "marking range failed")
		}
		return w.failJob(ctx, taskID, err)
	}

	if err := w.Store.DeleteDeployedRange(ctx, rangeID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return w.failJob(ctx, taskID, err)
	}
	log.Info("range destroyed")

	return w.completeDestroy(ctx, taskID, rangeID)
}

func (w *Worker) completeDestroy(ctx context.Context, taskID string, rangeID uuid.UUID) error {
	result, err := json.Marshal(map[string]string{
		"range_id": rangeID.String(),
		"detail":   "range destroyed",
	})
	if err != nil {
		return err
	}
	if err := w.Store.MarkJobComplete(ctx, taskID, time.Now().UTC(), result); err != nil {
		w.Log.Error(err, "recording job completion", "task", taskID)
	}
	return nil
}
