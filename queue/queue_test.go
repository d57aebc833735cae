package queue

import (
	"testing"

	"github.com/hibiken/asynq"
	. "github.com/onsi/gomega"

	v1 "github.com/OpenLabsHQ/openlabs-api/api/v1"
)

func TestStatusFromState(t *testing.T) {
	tests := []struct {
		name  string
		state asynq.TaskState
		want  v1.JobStatus
	}{
		{"pending maps to queued", asynq.TaskStatePending, v1.JobStatusQueued},
		{"scheduled maps to queued", asynq.TaskStateScheduled, v1.JobStatusQueued},
		{"active maps to in_progress", asynq.TaskStateActive, v1.JobStatusInProgress},
		{"retry maps to in_progress", asynq.TaskStateRetry, v1.JobStatusInProgress},
		{"completed maps to complete", asynq.TaskStateCompleted, v1.JobStatusComplete},
		{"archived maps to failed", asynq.TaskStateArchived, v1.JobStatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewWithT(t)
			g.Expect(StatusFromState(tt.state)).To(Equal(tt.want))
		})
	}
}
