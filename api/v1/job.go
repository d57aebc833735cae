package v1

import (
	"encoding/json"
	"time"
)

// Job names understood by the worker.
const (
	JobDeployRange  = "deploy_range"
	JobDestroyRange = "destroy_range"
	JobCleanupJobs  = "cleanup_old_jobs"
)

// JobRecord is the bookkeeping row kept per queued job. The queue's
// task ID is the join key between the queue and the database.
type JobRecord struct {
	ID           int64           `json:"id"`
	ArqJobID     string          `json:"arq_job_id"`
	JobName      string          `json:"job_name"`
	JobTry       int             `json:"job_try"`
	EnqueueTime  time.Time       `json:"enqueue_time"`
	StartTime    *time.Time      `json:"start_time,omitempty"`
	FinishTime   *time.Time      `json:"finish_time,omitempty"`
	Status       JobStatus       `json:"status"`
	Result       json.RawMessage `json:"result,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

// JobSubmissionResponse is returned with a 202 when a job is accepted.
type JobSubmissionResponse struct {
	ArqJobID string `json:"arq_job_id"`
	Detail   string `json:"detail"`
}

// DeployJobPayload is the queue payload of a deploy_range job. The
// base64 master key rides along so the worker can decrypt the owner's
// credentials; the queue must therefore live on a private network.
type DeployJobPayload struct {
	EncKey        string         `json:"enc_key"`
	DeployRequest DeployRequest  `json:"deploy_request"`
	Blueprint     BlueprintRange `json:"blueprint"`
	UserID        int64          `json:"user_id"`
}

// DestroyJobPayload is the queue payload of a destroy_range job.
type DestroyJobPayload struct {
	EncKey  string `json:"enc_key"`
	RangeID string `json:"range_id"`
	UserID  int64  `json:"user_id"`
}
