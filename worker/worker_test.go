package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	. "github.com/onsi/gomega"
)

func TestRangeIDFromJob(t *testing.T) {
	g := NewWithT(t)

	// Two deliveries of the same task converge on the same range ID.
	first := RangeIDFromJob("secret", "task-123")
	second := RangeIDFromJob("secret", "task-123")
	g.Expect(first).To(Equal(second))

	// Different tasks, and different keys, give different IDs.
	g.Expect(RangeIDFromJob("secret", "task-456")).ToNot(Equal(first))
	g.Expect(RangeIDFromJob("other-secret", "task-123")).ToNot(Equal(first))

	g.Expect(first).ToNot(Equal(uuid.Nil))
	g.Expect(first.Version()).To(Equal(uuid.Version(4)))
	g.Expect(first.Variant()).To(Equal(uuid.RFC4122))
}

func TestLastAttempt(t *testing.T) {
	g := NewWithT(t)
	ctx := context.Background()

	// A non-retryable error is always the final attempt.
	g.Expect(lastAttempt(ctx, permanent(errors.New("bad payload")))).To(BeTrue())
	g.Expect(lastAttempt(ctx, asynq.SkipRetry)).To(BeTrue())

	// With no retry metadata on the context the failure is recorded
	// immediately.
	g.Expect(lastAttempt(ctx, errors.New("transient"))).To(BeTrue())
}

func TestPermanentWrapsSkipRetry(t *testing.T) {
	g := NewWithT(t)

	err := permanent(errors.New("decoding deploy payload"))
	g.Expect(errors.Is(err, asynq.SkipRetry)).To(BeTrue())
	g.Expect(err.Error()).To(ContainSubstring("decoding deploy payload"))
}
