package objclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marmos91/radosclient/pkg/codec"
	"github.com/marmos91/radosclient/pkg/crush"
	"github.com/marmos91/radosclient/pkg/msgr"
)

// fakeOSDConn is a wireConn that records sends instead of touching a
// socket, letting tests drive Session.Dispatch directly.
type fakeOSDConn struct {
	sent []sentFrame
}

type sentFrame struct {
	msgType uint16
	body    []byte
}

func (f *fakeOSDConn) Connect(ctx context.Context) error { return nil }
func (f *fakeOSDConn) SendMessage(ctx context.Context, msgType uint16, body []byte) error {
	f.sent = append(f.sent, sentFrame{msgType: msgType, body: body})
	return nil
}
func (f *fakeOSDConn) SetDispatcher(d msgr.Dispatcher) {}
func (f *fakeOSDConn) State() msgr.FrameState          { return msgr.StateReady }
func (f *fakeOSDConn) Peer() string                    { return "fake-osd:6800" }
func (f *fakeOSDConn) Close() error                    { return nil }

// encodeOperationReplyForTest is the mirror of decodeOperationReply,
// standing in for a scripted OSD peer's reply frame.
func encodeOperationReplyForTest(tid uint64, res OperationResult) []byte {
	e := codec.NewEncoder(0)
	e.PutVersioned(1, 1, func(e *codec.Encoder) {
		e.PutU64(tid)
		e.PutI64(int64(res.Code))
		e.PutU64(res.Version)
		e.PutU32(uint32(len(res.SubOps)))
		for _, s := range res.SubOps {
			e.PutI64(int64(s.Code))
			e.PutBytes(s.Data)
		}
		e.PutBool(res.Redirect != nil)
		if res.Redirect != nil {
			e.PutI64(res.Redirect.Pool)
			e.PutString(res.Redirect.Key)
			e.PutString(res.Redirect.Namespace)
			e.PutString(res.Redirect.Name)
		}
	})
	return e.Bytes()
}

func TestSessionSubmitRoundTripViaDispatch(t *testing.T) {
	conn := &fakeOSDConn{}
	s := newSession(1, conn, 42)

	op := Operation{Object: NewObjectId(1, "obj", "", "")}
	done := make(chan OperationResult, 1)
	go func() {
		res, err := s.Submit(context.Background(), op)
		require.NoError(t, err)
		done <- res
	}()

	require.Eventually(t, func() bool { return len(conn.sent) == 1 }, time.Second, time.Millisecond)

	// The first Submit on a fresh Session is always tid 1 (nextTID
	// starts its atomic counter at zero and pre-increments).
	reply := encodeOperationReplyForTest(1, OperationResult{Code: 0, Version: 7})
	s.handleReply(reply)

	res := <-done
	require.EqualValues(t, 7, res.Version)
}

func TestSessionHandleBackoffBlockRecordsRangeAndAcks(t *testing.T) {
	conn := &fakeOSDConn{}
	s := newSession(1, conn, 1)

	pg := crush.PlacementGroupID{PoolID: 1, Seed: 0}
	frame := encodeBackoffFrame(backoffBlock, 99, pg, "a", "m")
	s.handleBackoff(frame)

	require.True(t, s.blocked(pg, "b"))
	require.False(t, s.blocked(pg, "z"))
	require.Len(t, conn.sent, 1)
	require.EqualValues(t, msgOSDBackoff, conn.sent[0].msgType)
}

func TestSessionHandleBackoffUnblockRemovesRange(t *testing.T) {
	conn := &fakeOSDConn{}
	s := newSession(1, conn, 1)

	pg := crush.PlacementGroupID{PoolID: 1, Seed: 0}
	s.handleBackoff(encodeBackoffFrame(backoffBlock, 5, pg, "a", "m"))
	require.True(t, s.blocked(pg, "b"))

	s.handleBackoff(encodeBackoffFrame(backoffUnblock, 5, pg, "a", "m"))
	require.False(t, s.blocked(pg, "b"))
}

func TestSessionReadyReflectsConnectionState(t *testing.T) {
	conn := &fakeOSDConn{}
	s := newSession(1, conn, 1)
	require.True(t, s.Ready())
}
