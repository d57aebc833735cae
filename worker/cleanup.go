package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/OpenLabsHQ/openlabs-api/support/vault"
)

// handleCleanup prunes terminal job records past their retention
// windows.
func (w *Worker) handleCleanup(ctx context.Context, _ *asynq.Task) error {
	now := time.Now().UTC()
	completedBefore := now.AddDate(0, 0, -w.Settings.CompletedJobMaxAgeDays)
	failedBefore := now.AddDate(0, 0, -w.Settings.FailedJobMaxAgeDays)

	deleted, err := w.Store.DeleteOldJobs(ctx, completedBefore, failedBefore)
	if err != nil {
		return err
	}
	if deleted > 0 {
		w.Log.Info("pruned old job records", "count", deleted)
	}
	return nil
}

// generateRangeKeys creates the SSH keypair baked into a range's hosts.
func (w *Worker) generateRangeKeys(rangeID fmt.Stringer) (privatePEM, publicKey string, err error) {
	return vault.GenerateSSHKeyPair(fmt.Sprintf("range-%s", rangeID))
}
