package objclient

import (
	"context"

	"golang.org/x/sync/semaphore"

	"github.com/marmos91/radosclient/pkg/raderr"
)

// throttle is ObjectClient's admission control: two independent
// semaphores, one bounding in-flight operation count and one bounding
// estimated in-flight byte budget. Both permits must be acquired
// before a submission proceeds and both are released on completion —
// success, failure, or timeout alike (§5 Backpressure).
type throttle struct {
	ops   *semaphore.Weighted
	bytes *semaphore.Weighted
}

func newThrottle(maxOps int, maxBytes int64) *throttle {
	return &throttle{
		ops:   semaphore.NewWeighted(int64(maxOps)),
		bytes: semaphore.NewWeighted(maxBytes),
	}
}

// acquire blocks until both the op-count and byte-budget permits are
// held, or ctx expires. On a byte-acquire failure after the op permit
// already landed, the op permit is released before returning so a
// cancelled acquire never leaks a permit.
func (t *throttle) acquire(ctx context.Context, cost int64) error {
	if err := t.ops.Acquire(ctx, 1); err != nil {
		return raderr.Wrap(raderr.KindThrottle, component, "acquire op permit", err)
	}
	if err := t.bytes.Acquire(ctx, cost); err != nil {
		t.ops.Release(1)
		return raderr.Wrap(raderr.KindThrottle, component, "acquire byte permit", err)
	}
	return nil
}

// release returns both permits acquire took for cost.
func (t *throttle) release(cost int64) {
	t.bytes.Release(cost)
	t.ops.Release(1)
}
