package msgr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSentQueueAssignsMonotonicSeqStartingAtOne(t *testing.T) {
	q := NewSentQueue()
	require.EqualValues(t, 1, q.Send([]byte("a")))
	require.EqualValues(t, 2, q.Send([]byte("b")))
	require.EqualValues(t, 3, q.Send([]byte("c")))
	require.Equal(t, 3, q.PendingCount())
}

func TestSentQueueAckDiscardsUpToAndIncluding(t *testing.T) {
	q := NewSentQueue()
	q.Send([]byte("a"))
	q.Send([]byte("b"))
	q.Send([]byte("c"))

	q.OnAck(2)
	require.Equal(t, 1, q.PendingCount())

	remaining := q.ReplayFrom(0)
	require.Len(t, remaining, 1)
	require.Equal(t, []byte("c"), remaining[0])
}

func TestSentQueueReplayFromExcludesAcknowledged(t *testing.T) {
	q := NewSentQueue()
	q.Send([]byte("a"))
	q.Send([]byte("b"))
	q.Send([]byte("c"))

	replay := q.ReplayFrom(1)
	require.Len(t, replay, 2)
	require.Equal(t, []byte("b"), replay[0])
	require.Equal(t, []byte("c"), replay[1])
}

func TestSentQueueTracksInSeqForAckPiggyback(t *testing.T) {
	q := NewSentQueue()
	q.OnReceive(5)
	require.EqualValues(t, 5, q.AckSeq())
	q.OnReceive(3) // stale, out of order, must not regress
	require.EqualValues(t, 5, q.AckSeq())
	q.OnReceive(9)
	require.EqualValues(t, 9, q.AckSeq())
}

func TestSentQueueResetClearsEverything(t *testing.T) {
	q := NewSentQueue()
	q.Send([]byte("a"))
	q.OnReceive(7)
	q.Reset()

	require.EqualValues(t, 1, q.Send([]byte("fresh")))
	require.EqualValues(t, 0, q.AckSeq())
}
