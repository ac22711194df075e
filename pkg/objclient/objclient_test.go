package objclient

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marmos91/radosclient/pkg/cephx"
	"github.com/marmos91/radosclient/pkg/codec"
	"github.com/marmos91/radosclient/pkg/config"
	"github.com/marmos91/radosclient/pkg/crush"
)

// encodeOSDMapEnvelopeForTest is the mirror of decodeOSDMapEnvelope,
// standing in for a scripted monitor's MOSDMap push.
func encodeOSDMapEnvelopeForTest(env *osdMapEnvelope) []byte {
	e := codec.NewEncoder(0)
	e.PutVersioned(1, 1, func(e *codec.Encoder) {
		fsidBytes, _ := env.fsid.MarshalBinary()
		e.PutRaw(fsidBytes)
		e.PutU32(uint32(len(env.incrementals)))
		for _, inc := range env.incrementals {
			EncodeIncrementalOSDMap(e, inc)
		}
		e.PutU32(uint32(len(env.fulls)))
		for _, full := range env.fulls {
			EncodeFullOSDMap(e, full)
		}
	})
	return e.Bytes()
}

// TestApplyRedirectIsIdempotent checks the testable property from the
// request pipeline: applying the same redirect twice yields identical
// final fields and never toggles REDIRECTED back off.
func TestApplyRedirectIsIdempotent(t *testing.T) {
	op := Operation{Object: NewObjectId(1, "obj", "", "")}
	redirect := &Redirect{Pool: 2, Key: "k", Namespace: "ns", Name: "renamed"}

	applyRedirect(&op, redirect)
	first := op

	applyRedirect(&op, redirect)

	require.Equal(t, first.Object, op.Object)
	require.True(t, op.Redirected)
	require.True(t, op.Flags&FlagRedirected != 0)
}

func newTestObjectClient(osdID int32, conn wireConn) *ObjectClient {
	m := testMap()
	for id, o := range m.OSDs {
		o.Addrs = codec.AddrVec{{Type: codec.AddrTypeMsgr2, IP: net.ParseIP("127.0.0.1"), Port: 6800}}
		m.OSDs[id] = o
	}
	c := &ObjectClient{
		cfg:      config.Config{OperationTimeout: time.Second},
		entity:   cephx.EntityName{Type: cephx.EntityTypeClient, ID: "test"},
		sessions: make(map[int32]*Session),
		osdmap:   m,
		throttle: newThrottle(16, 1<<20),
	}
	c.dial = func(ctx context.Context, addr string) (wireConn, error) { return conn, nil }
	return c
}

// pinPrimary forces obj's placement group to resolve with primary as
// its first OSD, via a pg_upmap override, so a test can predict which
// session a submission lands on regardless of the CRUSH draw.
func pinPrimary(m *OSDMap, obj ObjectId, primary int32) {
	pg, osds, err := resolve(m, obj)
	if err != nil {
		panic(err)
	}
	remapped := append([]int32{primary}, osds...)
	m.PGUpmap[pg] = remapped
}

func TestSubmitResolvesAndRoundTripsThroughSession(t *testing.T) {
	conn := &fakeOSDConn{}
	c := newTestObjectClient(1, conn)
	pinPrimary(c.osdmap, NewObjectId(1, "object-a", "", ""), 1)

	done := make(chan OperationResult, 1)
	go func() {
		res, err := c.Submit(context.Background(), 1, "object-a", "", "", []SubOp{{Kind: SubOpWrite, Data: []byte("x")}})
		require.NoError(t, err)
		done <- res
	}()

	require.Eventually(t, func() bool {
		c.sessMu.Lock()
		defer c.sessMu.Unlock()
		return len(conn.sent) == 1
	}, time.Second, time.Millisecond)

	c.sessMu.Lock()
	s := c.sessions[1]
	c.sessMu.Unlock()
	require.NotNil(t, s)

	s.handleReply(encodeOperationReplyForTest(1, OperationResult{Code: 0, Version: 3}))

	res := <-done
	require.EqualValues(t, 3, res.Version)
}

func TestSubmitFollowsRedirectAndResubmits(t *testing.T) {
	conn := &fakeOSDConn{}
	c := newTestObjectClient(1, conn)
	pinPrimary(c.osdmap, NewObjectId(1, "object-b", "", ""), 1)
	pinPrimary(c.osdmap, NewObjectId(1, "object-b", "moved", ""), 1)

	done := make(chan OperationResult, 1)
	errCh := make(chan error, 1)
	go func() {
		res, err := c.Submit(context.Background(), 1, "object-b", "", "", []SubOp{{Kind: SubOpRead}})
		errCh <- err
		done <- res
	}()

	require.Eventually(t, func() bool { return len(conn.sent) == 1 }, time.Second, time.Millisecond)

	c.sessMu.Lock()
	s := c.sessions[1]
	c.sessMu.Unlock()

	redirected := OperationResult{Redirect: &Redirect{Pool: 1, Key: "moved", Namespace: ""}}
	s.handleReply(encodeOperationReplyForTest(1, redirected))

	require.Eventually(t, func() bool { return len(conn.sent) == 2 }, time.Second, time.Millisecond)
	s.handleReply(encodeOperationReplyForTest(2, OperationResult{Code: 0, Version: 9}))

	require.NoError(t, <-errCh)
	res := <-done
	require.EqualValues(t, 9, res.Version)
}

func TestHandleOSDMapAppliesIncrementalOnlyAtPriorEpoch(t *testing.T) {
	c := &ObjectClient{osdmap: NewOSDMap()}
	c.osdmap.Epoch = 4
	c.osdmap.Pools[1] = PoolInfo{ID: 1, PGCount: 8}

	inc := &IncrementalOSDMap{
		Epoch:               5,
		NewPools:            map[int64]PoolInfo{2: {ID: 2, PGCount: 4}},
		NewOSDs:             map[int32]OSDInfo{},
		NewPGUpmap:          map[crush.PlacementGroupID][]int32{},
		NewPGTemp:           map[crush.PlacementGroupID][]int32{},
		NewPGUpmapItems:     map[crush.PlacementGroupID][]pgItemSwap{},
		NewPGUpmapPrimaries: map[crush.PlacementGroupID]int32{},
	}
	env := &osdMapEnvelope{
		fsid:         c.osdmap.FSID,
		incrementals: map[uint32]*IncrementalOSDMap{5: inc},
		fulls:        map[uint32]*OSDMap{},
	}
	body := encodeOSDMapEnvelopeForTest(env)

	c.handleOSDMap(body)
	require.EqualValues(t, 5, c.OSDMap().Epoch)
	require.Contains(t, c.OSDMap().Pools, int64(2))

	// A delta for epoch 7 does not apply to the epoch-5 map: the walk
	// stops at the missing epoch 6 and the installed map is unchanged.
	gap := &osdMapEnvelope{
		fsid:         c.OSDMap().FSID,
		incrementals: map[uint32]*IncrementalOSDMap{7: {Epoch: 7, NewPools: map[int64]PoolInfo{3: {ID: 3, PGCount: 4}}}},
		fulls:        map[uint32]*OSDMap{},
	}
	c.handleOSDMap(encodeOSDMapEnvelopeForTest(gap))
	require.EqualValues(t, 5, c.OSDMap().Epoch)
	require.NotContains(t, c.OSDMap().Pools, int64(3))
}
