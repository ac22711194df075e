package msgr

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marmos91/radosclient/pkg/cephx"
)

// fakePeerReadFrame/writeFrame mirror Connection's own framing so the
// fake server side of these tests speaks exactly the wire format the
// client expects, without depending on Connection internals.
func fakePeerReadFrame(t *testing.T, r io.Reader) Frame {
	t.Helper()
	var preambleBuf [PreambleSize]byte
	_, err := io.ReadFull(r, preambleBuf[:])
	require.NoError(t, err)
	p, err := DecodePreamble(preambleBuf[:])
	require.NoError(t, err)
	segments := make([][]byte, 0, p.SegmentCount)
	for i := uint8(0); i < p.SegmentCount; i++ {
		rest := make([]byte, p.Segments[i].Length+4)
		_, err := io.ReadFull(r, rest)
		require.NoError(t, err)
		seg, err := DecodePlainSingleSegment(Preamble{SegmentCount: 1, Segments: [MaxSegments]SegmentDescriptor{{Length: p.Segments[i].Length}}}, rest)
		require.NoError(t, err)
		segments = append(segments, seg)
	}
	return Frame{Preamble: p, Segments: segments}
}

func runFakeMonitorNoAuth(t *testing.T, conn net.Conn) {
	t.Helper()
	defer conn.Close()

	var peerBanner [8]byte
	_, err := io.ReadFull(conn, peerBanner[:])
	require.NoError(t, err)
	require.Equal(t, bannerMagic[:], peerBanner[:])
	_, err = conn.Write(bannerMagic[:])
	require.NoError(t, err)

	hello := fakePeerReadFrame(t, conn)
	require.Equal(t, TagHello, hello.Preamble.Tag)
	_, err = conn.Write(EncodePlainSingleSegment(TagHello, nil))
	require.NoError(t, err)

	authReq := fakePeerReadFrame(t, conn)
	require.Equal(t, TagAuthRequest, authReq.Preamble.Tag)
	_, err = conn.Write(EncodePlainSingleSegment(TagAuthDone, nil))
	require.NoError(t, err)

	ident := fakePeerReadFrame(t, conn)
	require.Equal(t, TagClientIdent, ident.Preamble.Tag)
	_, err = conn.Write(EncodePlainSingleSegment(TagServerIdent, nil))
	require.NoError(t, err)

	// Stay connected briefly so the client's background goroutines have
	// something to talk to without erroring out immediately.
	time.Sleep(100 * time.Millisecond)
}

func TestConnectionConnectReachesReadyWithoutAuth(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		runFakeMonitorNoAuth(t, conn)
	}()

	entity := cephx.EntityName{Type: cephx.EntityTypeClient, ID: "admin"}
	auth := cephx.NewAuthClient(entity, cephx.SecretKey{}, cephx.AuthMethodNone)

	c := NewConnection(nil, auth, cephx.EntityTypeMon, ln.Addr().String())
	c.keepaliveInterval = 0

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err = c.Connect(ctx)
	require.NoError(t, err)
	require.Equal(t, StateReady, c.sm.State())

	c.Close()
}
