package worker

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	v1 "github.com/OpenLabsHQ/openlabs-api/api/v1"
	"github.com/OpenLabsHQ/openlabs-api/ranges"
	"github.com/OpenLabsHQ/openlabs-api/store"
)

// deployResult is the job result payload recorded for a successful
// deploy.
type deployResult struct {
	RangeID string `json:"range_id"`
	Detail  string `json:"detail"`
}

func (w *Worker) handleDeploy(ctx context.Context, task *asynq.Task) error {
	taskID, _ := asynq.GetTaskID(ctx)
	log := w.Log.WithValues("job", v1.JobDeployRange, "task", taskID)

	var payload v1.DeployJobPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return permanent(fmt.Errorf("decoding deploy payload: %w", err))
	}
	if err := w.Store.MarkJobStarted(ctx, payload.UserID, taskID, v1.JobDeployRange, time.Now().UTC()); err != nil {
		log.Error(err, "recording job start")
	}

	rangeID := RangeIDFromJob(w.Settings.SecretKey, taskID)
	log = log.WithValues("range", rangeID, "blueprint", payload.Blueprint.ID)

	// A retried delivery whose previous attempt already persisted the
	// range is a no-op.
	if _, err := w.Store.GetDeployedRange(ctx, store.UserScope(payload.UserID), rangeID); err == nil {
		log.Info("range already deployed, skipping")
		return w.completeDeploy(ctx, taskID, rangeID)
	} else if !errors.Is(err, store.ErrNotFound) {
		return w.failJob(ctx, taskID, err)
	}

	bundle, err := w.decryptBundle(ctx, payload.UserID, payload.EncKey)
	if err != nil {
		return w.failJob(ctx, taskID, permanent(err))
	}

	sshPrivate, sshPublic, err := w.generateRangeKeys(rangeID)
	if err != nil {
		return w.failJob(ctx, taskID, err)
	}

	rng, err := ranges.New(rangeID, payload.DeployRequest.Name, payload.DeployRequest.Description,
		payload.Blueprint, payload.DeployRequest.Region, bundle, sshPublic)
	if err != nil {
		return w.failJob(ctx, taskID, permanent(err))
	}
	if !rng.HasSecrets() {
		return w.failJob(ctx, taskID,
			permanent(fmt.Errorf("no credentials found for provider: %s", payload.Blueprint.Provider)))
	}

	log.Info("deploying range")
	result, err := w.Driver.Deploy(ctx, rng)
	if err != nil {
		return w.failJob(ctx, taskID, err)
	}

	deployed, err := rng.BuildDeployed(result.Outputs, time.Now().UTC())
	if err != nil {
		return w.failJob(ctx, taskID, err)
	}
	deployed.StateBlob = result.State

	inserted, err := w.Store.CreateDeployedRange(ctx, payload.UserID, deployed, payload.Blueprint,
		store.RangeKeys{PrivateKey: sshPrivate, PublicKey: sshPublic})
	if err != nil {
		return w.failJob(ctx, taskID, err)
	}
	log.Info("range deployed", "inserted", inserted, "jumpbox", deployed.JumpboxPublicIP)

	return w.completeDeploy(ctx, taskID, rangeID)
}

func (w *Worker) completeDeploy(ctx context.Context, taskID string, rangeID fmt.Stringer) error {
	result, err := json.Marshal(deployResult{
		RangeID: rangeID.String(),
		Detail:  "range deployed",
	})
	if err != nil {
		return err
	}
	if err := w.Store.MarkJobComplete(ctx, taskID, time.Now().UTC(), result); err != nil {
		w.Log.Error(err, "recording job completion", "task", taskID)
	}
	return nil
}

// failJob returns the error so asynq can retry or archive the task,
// and records the failure only once no retry will follow. Marking an
// intermediate attempt would flip back to in_progress on redelivery,
// so a poller would see the status regress.
func (w *Worker) failJob(ctx context.Context, taskID string, jobErr error) error {
	if lastAttempt(ctx, jobErr) {
		if err := w.Store.MarkJobFailed(ctx, taskID, time.Now().UTC(), jobErr.Error()); err != nil {
			w.Log.Error(err, "recording job failure", "task", taskID)
		}
	}
	return jobErr
}

// lastAttempt reports whether asynq will archive the task after this
// error instead of redelivering it. Without retry metadata on the
// context the failure is recorded immediately rather than lost.
func lastAttempt(ctx context.Context, err error) bool {
	if errors.Is(err, asynq.SkipRetry) {
		return true
	}
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return true
	}
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	if !ok {
		return true
	}
	return retried >= maxRetry
}

// decryptBundle loads the user's secrets row and decrypts it with the
// master key carried in the job payload.
func (w *Worker) decryptBundle(ctx context.Context, userID int64, encKeyB64 string) (*v1.SecretBundle, error) {
	masterKey, err := base64.StdEncoding.DecodeString(encKeyB64)
	if err != nil {
		return nil, fmt.Errorf("decoding master key: %w", err)
	}
	secrets, err := w.Store.GetSecrets(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading secrets for user %d: %w", userID, err)
	}
	return secrets.DecryptBundle(masterKey)
}
