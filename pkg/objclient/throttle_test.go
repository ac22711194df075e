package objclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestThrottleAcquireReleaseRoundTrip(t *testing.T) {
	th := newThrottle(2, 1024)
	ctx := context.Background()

	require.NoError(t, th.acquire(ctx, 100))
	require.NoError(t, th.acquire(ctx, 100))
	th.release(100)
	th.release(100)
}

func TestThrottleBlocksBeyondOpBudget(t *testing.T) {
	th := newThrottle(1, 1024)
	ctx := context.Background()
	require.NoError(t, th.acquire(ctx, 10))

	timeoutCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	err := th.acquire(timeoutCtx, 10)
	require.Error(t, err)

	th.release(10)
}

func TestThrottleBlocksBeyondByteBudget(t *testing.T) {
	th := newThrottle(4, 100)
	ctx := context.Background()
	require.NoError(t, th.acquire(ctx, 100))

	timeoutCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	err := th.acquire(timeoutCtx, 1)
	require.Error(t, err)

	th.release(100)
}

func TestThrottleReleasesOpPermitWhenByteAcquireFails(t *testing.T) {
	th := newThrottle(1, 10)
	ctx := context.Background()

	// A cost above the whole byte budget is never granted: the op
	// permit lands, then the byte acquire waits out the deadline.
	failCtx, cancelFail := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancelFail()
	require.Error(t, th.acquire(failCtx, 11))

	// With a single op permit, a fresh acquire can only succeed if the
	// failed call gave its op permit back.
	okCtx, cancelOK := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancelOK()
	require.NoError(t, th.acquire(okCtx, 1))
	th.release(1)
}
