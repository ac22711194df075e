package monclient

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/radosclient/pkg/codec"
	"github.com/marmos91/radosclient/pkg/config"
	"github.com/marmos91/radosclient/pkg/msgr"
)

// fakeConn is a Connection that records every SendMessage call instead
// of touching a socket, letting tests drive Client.Dispatch and the
// command/pool-op/get-version request paths without a real monitor.
type fakeConn struct {
	sent []sentMessage
}

type sentMessage struct {
	msgType uint16
	body    []byte
}

func (f *fakeConn) Connect(ctx context.Context) error { return nil }
func (f *fakeConn) SendMessage(ctx context.Context, msgType uint16, body []byte) error {
	f.sent = append(f.sent, sentMessage{msgType: msgType, body: body})
	return nil
}
func (f *fakeConn) SetDispatcher(d msgr.Dispatcher) {}
func (f *fakeConn) State() msgr.FrameState          { return msgr.StateReady }
func (f *fakeConn) Peer() string                    { return "fake:3300" }
func (f *fakeConn) Close() error                    { return nil }

func newTestClient() *Client {
	return &Client{
		cfg:      config.Config{CommandTimeout: time.Second},
		subs:     make(map[string]*subState),
		commands: make(map[uint64]*pendingCommand),
		poolOps:  make(map[uint64]*pendingPoolOp),
		getVers:  make(map[uint64]*pendingGetVersion),
	}
}

func TestHandleMonMapInstallsNewerEpochOnly(t *testing.T) {
	c := newTestClient()
	c.monmap = &MonMap{Epoch: 5}

	e := codec.NewEncoder(0)
	EncodeMonMap(e, &MonMap{Epoch: 3, FSID: uuid.New()})
	c.handleMonMap(e.Bytes())
	require.EqualValues(t, 5, c.MonMap().Epoch, "stale epoch must be discarded")

	e2 := codec.NewEncoder(0)
	EncodeMonMap(e2, &MonMap{Epoch: 9, FSID: uuid.New()})
	c.handleMonMap(e2.Bytes())
	require.EqualValues(t, 9, c.MonMap().Epoch)
}

func TestHandleMonMapDiscardsMalformedBody(t *testing.T) {
	c := newTestClient()
	c.handleMonMap([]byte{1, 2, 3})
	require.Nil(t, c.MonMap())
}

func TestCommandRoundTripViaDispatch(t *testing.T) {
	c := newTestClient()
	fc := &fakeConn{}
	c.conn = fc

	errCh := make(chan error, 1)
	resCh := make(chan CommandResult, 1)
	go func() {
		res, err := c.Command(context.Background(), []string{"osd", "pool", "ls"}, nil)
		errCh <- err
		resCh <- res
	}()

	require.Eventually(t, func() bool { return len(fc.sent) == 1 }, time.Second, time.Millisecond)
	require.Equal(t, uint16(MsgMonCommand), fc.sent[0].msgType)

	d := codec.NewDecoder(fc.sent[0].body)
	err := d.GetVersioned(1, func(version uint8, sub *codec.Decoder) error {
		tid, err := sub.GetU64()
		require.NoError(t, err)

		e := codec.NewEncoder(0)
		e.PutVersioned(1, 1, func(e *codec.Encoder) {
			e.PutU64(tid)
			e.PutI64(0)
			e.PutString("ok")
			e.PutBytes(nil)
		})
		c.handleCommandAck(e.Bytes())
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, <-errCh)
	res := <-resCh
	require.Equal(t, int32(0), res.ReplyCode)
	require.Equal(t, "ok", res.Outs)
}

func TestPoolOpRoundTripViaDispatch(t *testing.T) {
	c := newTestClient()
	fc := &fakeConn{}
	c.conn = fc

	errCh := make(chan error, 1)
	resCh := make(chan PoolOpResult, 1)
	go func() {
		res, err := c.PoolOp(context.Background(), PoolOpCreate, "mypool")
		errCh <- err
		resCh <- res
	}()

	require.Eventually(t, func() bool { return len(fc.sent) == 1 }, time.Second, time.Millisecond)
	require.Equal(t, uint16(MsgPoolOp), fc.sent[0].msgType)

	d := codec.NewDecoder(fc.sent[0].body)
	err := d.GetVersioned(1, func(version uint8, sub *codec.Decoder) error {
		tid, err := sub.GetU64()
		require.NoError(t, err)

		e := codec.NewEncoder(0)
		e.PutVersioned(1, 1, func(e *codec.Encoder) {
			e.PutU64(tid)
			e.PutI64(0)
			e.PutU32(42)
			e.PutBytes(nil)
		})
		c.handlePoolOpReply(e.Bytes())
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, <-errCh)
	res := <-resCh
	require.EqualValues(t, 42, res.Epoch)
}

func TestGetVersionRoundTripViaDispatch(t *testing.T) {
	c := newTestClient()
	fc := &fakeConn{}
	c.conn = fc

	errCh := make(chan error, 1)
	type versionResult struct {
		version, oldest uint64
	}
	resCh := make(chan versionResult, 1)
	go func() {
		version, oldest, err := c.GetVersion(context.Background(), "osdmap")
		errCh <- err
		resCh <- versionResult{version, oldest}
	}()

	require.Eventually(t, func() bool { return len(fc.sent) == 1 }, time.Second, time.Millisecond)
	require.Equal(t, uint16(MsgMonGetVersion), fc.sent[0].msgType)

	d := codec.NewDecoder(fc.sent[0].body)
	tid, err := d.GetU64()
	require.NoError(t, err)

	e := codec.NewEncoder(0)
	e.PutU64(tid)
	e.PutU64(100)
	e.PutU64(50)
	c.handleGetVersionReply(e.Bytes())

	require.NoError(t, <-errCh)
	res := <-resCh
	require.EqualValues(t, 100, res.version)
	require.EqualValues(t, 50, res.oldest)
}

func TestDispatchRoutesOSDMapToRegisteredHandler(t *testing.T) {
	c := newTestClient()
	var got []byte
	c.OnOSDMap(func(body []byte) { got = body })
	c.Dispatch(uint16(MsgOSDMap), []byte("osdmap-bytes"))
	require.Equal(t, []byte("osdmap-bytes"), got)
}

func TestSubscribeSendsImmediatelyWhenConnected(t *testing.T) {
	c := newTestClient()
	fc := &fakeConn{}
	c.conn = fc

	c.Subscribe("monmap", 0, 0)
	require.Len(t, fc.sent, 1)
	require.Equal(t, uint16(MsgMonSubscribe), fc.sent[0].msgType)
}

func TestSubscribeWithoutConnectionOnlyRecordsIntent(t *testing.T) {
	c := newTestClient()
	c.Subscribe("osdmap", 0, 0)
	require.Contains(t, c.subs, "osdmap")
}
