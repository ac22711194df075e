package msgr

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/marmos91/radosclient/internal/logger"
	"github.com/marmos91/radosclient/pkg/cephx"
	"github.com/marmos91/radosclient/pkg/raderr"
)

// bannerMagic is the fixed 8-byte preamble every msgr2 stream opens
// with, before any frame is exchanged.
var bannerMagic = [8]byte{'c', 'e', 'p', 'h', 'm', '2', '.', 0}

const maxReconnectAttempts = 3

// ConnectionOwner is notified of connection health events it cannot
// observe itself (keepalive timeout, fatal faults in Ready). The
// monitor/object clients implement this to trigger hunting or
// re-placement.
type ConnectionOwner interface {
	OnUnhealthy(c *Connection, err error)
}

// Connection is one msgr2 TCP connection in the client role. It owns
// frame I/O, the handshake state machine, the pre-auth transcript, the
// encryption context (once negotiated), and the sent-message replay
// queue. Send and receive run on their own goroutines communicating
// over channels, so a slow peer write never blocks processing of
// inbound frames.
type Connection struct {
	owner      ConnectionOwner
	dispatcher Dispatcher
	auth       *cephx.AuthClient
	peer       string
	service    cephx.ServiceID

	keepaliveInterval time.Duration
	keepaliveTimeout  time.Duration

	mu                 sync.Mutex
	conn               net.Conn
	sm                 *StateMachine
	sentQueue          *SentQueue
	transcript         *PreAuthTranscript
	encryption         *EncryptionContext
	compressionEnabled bool
	lastKeepAck        time.Time

	sendCh    chan sendRequest
	closed    chan struct{}
	closeOnce sync.Once
}

type sendRequest struct {
	tag     Tag
	payload []byte
	done    chan error
}

// NewConnection constructs a Connection for a not-yet-dialed peer.
// Call Connect to perform the handshake.
func NewConnection(owner ConnectionOwner, auth *cephx.AuthClient, service cephx.ServiceID, peer string) *Connection {
	return &Connection{
		owner:             owner,
		auth:              auth,
		peer:              peer,
		service:           service,
		keepaliveInterval: 15 * time.Second,
		keepaliveTimeout:  30 * time.Second,
		sm:                NewStateMachine(auth.Method()),
		sentQueue:         NewSentQueue(),
		transcript:        NewPreAuthTranscript(),
		sendCh:            make(chan sendRequest, 64),
		closed:            make(chan struct{}),
	}
}

// Connect dials the peer and runs banner + HELLO + AUTH + AUTH_SIGNATURE
// + (compression) + session setup, leaving the connection in Ready on
// success.
func (c *Connection) Connect(ctx context.Context) error {
	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", c.peer)
	if err != nil {
		return raderr.Wrap(raderr.KindTransport, component, "dial "+c.peer, err)
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	if err := c.runHandshake(ctx); err != nil {
		_ = conn.Close()
		return err
	}

	go c.sendLoop()
	go c.receiveLoop()
	if c.keepaliveInterval > 0 {
		go c.keepaliveLoop()
	}
	return nil
}

// runHandshake executes the synchronous handshake sequence described
// in §4.3.2, recording every wire byte into the pre-auth transcript
// until AUTH_SIGNATURE completes.
func (c *Connection) runHandshake(ctx context.Context) error {
	w := c.transcript.TeeWriter(c.conn)
	r := c.transcript.TeeReader(c.conn)

	if _, err := w.Write(bannerMagic[:]); err != nil {
		return raderr.Wrap(raderr.KindTransport, component, "write banner", err)
	}
	var peerBanner [8]byte
	if _, err := io.ReadFull(r, peerBanner[:]); err != nil {
		return raderr.Wrap(raderr.KindProtocol, component, "read peer banner", err)
	}
	if err := c.sm.OnBannerReceived(); err != nil {
		return err
	}

	if err := c.writeFrame(w, TagHello, nil); err != nil {
		return err
	}
	frame, err := c.readFrame(r)
	if err != nil {
		return err
	}
	if err := c.sm.OnHello(frame.Preamble.Tag); err != nil {
		return err
	}

	authReq := c.auth.BuildInitialRequest(0)
	if err := c.writeFrame(w, TagAuthRequest, authReq); err != nil {
		return err
	}

	for {
		frame, err := c.readFrame(r)
		if err != nil {
			return err
		}
		outcome, err := c.sm.OnAuthFrame(frame.Preamble.Tag)
		if err != nil {
			c.sm.Abort()
			return err
		}
		switch outcome {
		case authOutcomeRenegotiate:
			if err := c.writeFrame(w, TagAuthRequest, authReq); err != nil {
				return err
			}
			continue
		case authOutcomeRequestMore:
			more, err := c.auth.HandleChallenge(frame.Segments[0])
			if err != nil {
				return err
			}
			if err := c.writeFrame(w, TagAuthRequestMore, more); err != nil {
				return err
			}
			continue
		case authOutcomeDoneNoSign:
			return c.finishSessionSetup(w, r, false)
		case authOutcomeDoneNeedSign:
			mode, err := c.auth.HandleAuthDone(frame.Segments[0])
			if err != nil {
				c.sm.Abort()
				return err
			}
			return c.finishAuthSignature(w, r, mode)
		}
	}
}

func (c *Connection) finishAuthSignature(w io.Writer, r io.Reader, mode cephx.ConnectionMode) error {
	sig, err := c.auth.SignTranscript(c.transcript.Bytes())
	if err != nil {
		return err
	}
	if err := c.writeFrame(w, TagAuthSignature, sig); err != nil {
		return err
	}
	frame, err := c.readFrame(r)
	if err != nil {
		return err
	}
	if frame.Preamble.Tag != TagAuthSignature {
		c.sm.Abort()
		return protoErr("expected AUTH_SIGNATURE, got %s", frame.Preamble.Tag)
	}
	if err := c.auth.VerifyTranscriptSignature(c.transcript.Bytes(), frame.Segments[0]); err != nil {
		c.sm.Abort()
		return err
	}
	c.transcript.Seal()

	peerCompression := false // negotiated out of band; conservative default
	if err := c.sm.OnAuthSignature(TagAuthSignature, peerCompression); err != nil {
		return err
	}

	if mode == cephx.ConnectionModeSecure {
		key := c.auth.Session().Tickets[c.service].SessionKey[:]
		ec, err := NewEncryptionContext(key)
		if err != nil {
			return err
		}
		c.mu.Lock()
		c.encryption = ec
		c.mu.Unlock()
	}

	if c.sm.State() == StateCompressionConnecting {
		if err := c.writeFrame(w, TagCompressionRequest, nil); err != nil {
			return err
		}
		frame, err := c.readFrame(r)
		if err != nil {
			return err
		}
		if err := c.sm.OnCompressionDone(frame.Preamble.Tag); err != nil {
			return err
		}
		c.mu.Lock()
		c.compressionEnabled = true
		c.mu.Unlock()
	}
	return c.finishSessionSetup(w, r, true)
}

func (c *Connection) finishSessionSetup(w io.Writer, r io.Reader, signed bool) error {
	clientIdent := make([]byte, 8)
	binary.LittleEndian.PutUint64(clientIdent, c.sm.ClientCookie)
	if err := c.writeFrame(w, TagClientIdent, clientIdent); err != nil {
		return err
	}

	for {
		frame, err := c.readFrame(r)
		if err != nil {
			return err
		}
		outcome, _, err := c.sm.OnSessionFrame(frame.Preamble.Tag)
		if err != nil {
			c.sm.Abort()
			return err
		}
		switch outcome {
		case sessionOutcomeReadyDirect, sessionOutcomeReadyReplay:
			return nil
		case sessionOutcomeBumpConnectSeq, sessionOutcomeBumpGlobalSeq:
			if err := c.writeFrame(w, TagClientIdent, clientIdent); err != nil {
				return err
			}
			continue
		case sessionOutcomeResetPartial, sessionOutcomeResetFull:
			if err := c.writeFrame(w, TagClientIdent, clientIdent); err != nil {
				return err
			}
			continue
		}
	}
}

// writeFrame encodes a single-segment frame for tag/payload — sealing
// it under the connection's EncryptionContext once secure mode has
// been negotiated, and compressing it first once compression has —
// and writes it to w.
func (c *Connection) writeFrame(w io.Writer, tag Tag, payload []byte) error {
	wire, err := c.encodeFrame(tag, payload)
	if err != nil {
		return err
	}
	if _, err := w.Write(wire); err != nil {
		return raderr.Wrap(raderr.KindTransport, component, "write frame", err)
	}
	return nil
}

// encodeFrame builds the wire form of a single-segment frame,
// applying negotiated compression (§4.3.1) before negotiated
// encryption (§4.3.7), exactly as the spec orders the two transforms.
func (c *Connection) encodeFrame(tag Tag, payload []byte) ([]byte, error) {
	c.mu.Lock()
	compressionOn := c.compressionEnabled
	ec := c.encryption
	c.mu.Unlock()

	p := Preamble{Tag: tag, SegmentCount: 1}
	p.Segments[0].Length = uint32(len(payload))
	segments := [][]byte{payload}

	if compressionOn {
		compressed, rawLen, ok, err := compressSegments(segments)
		if err != nil {
			return nil, err
		}
		if ok {
			p.Segments[0] = SegmentDescriptor{Length: uint32(len(compressed)), Alignment: uint16(rawLen)}
			p.Flags |= FlagEarlyDataCompressed
			segments = [][]byte{compressed}
		}
	}

	if ec == nil {
		return encodePlainFrame(p, segments), nil
	}
	return ec.sealSecureFrame(p, segments)
}

// readFrame reads one frame from r, routing through the secure-mode
// two-GCM-record layout once encryption has been negotiated and
// reversing compression on the way out either way.
func (c *Connection) readFrame(r io.Reader) (Frame, error) {
	c.mu.Lock()
	ec := c.encryption
	c.mu.Unlock()
	if ec != nil {
		return ec.openSecureFrame(r)
	}

	var preambleBuf [PreambleSize]byte
	if _, err := io.ReadFull(r, preambleBuf[:]); err != nil {
		return Frame{}, raderr.Wrap(raderr.KindProtocol, component, "read preamble", err)
	}
	p, err := DecodePreamble(preambleBuf[:])
	if err != nil {
		return Frame{}, err
	}
	rest := make([]byte, plainFrameBodyLen(p))
	if _, err := io.ReadFull(r, rest); err != nil {
		return Frame{}, raderr.Wrap(raderr.KindProtocol, component, "read frame body", err)
	}
	segments, err := DecodePlainMultiSegment(p, rest)
	if err != nil {
		return Frame{}, err
	}
	return decompressIfNeeded(p, segments)
}

// Send enqueues a MESSAGE-tagged payload for transmission. The send
// loop records it in the sent queue under the next outbound sequence
// number; that number is not written into the frame.
func (c *Connection) Send(ctx context.Context, payload []byte) error {
	req := sendRequest{tag: TagMessage, payload: payload, done: make(chan error, 1)}
	select {
	case c.sendCh <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.closed:
		return raderr.New(raderr.KindState, component, "connection closed")
	}
	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Connection) sendLoop() {
	for {
		select {
		case req := <-c.sendCh:
			seq := c.sentQueue.Send(req.payload)
			wire, err := c.encodeFrame(req.tag, req.payload)
			if err != nil {
				logger.Error("frame encode failed", logger.Err(err), logger.Seq(seq))
				req.done <- err
				continue
			}
			c.mu.Lock()
			conn := c.conn
			c.mu.Unlock()
			_, err = conn.Write(wire)
			req.done <- err
		case <-c.closed:
			return
		}
	}
}

func (c *Connection) receiveLoop() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	for {
		frame, err := c.readFrame(conn)
		if err != nil {
			select {
			case <-c.closed:
				return
			default:
			}
			c.reportUnhealthy(err)
			return
		}
		if err := c.sm.OnReadyFrame(frame.Preamble.Tag); err != nil {
			c.reportUnhealthy(err)
			return
		}
		switch frame.Preamble.Tag {
		case TagKeepalive2Ack:
			c.mu.Lock()
			c.lastKeepAck = time.Now()
			c.mu.Unlock()
		case TagAck:
			if len(frame.Segments) > 0 && len(frame.Segments[0]) >= 8 {
				ackSeq := binary.LittleEndian.Uint64(frame.Segments[0])
				c.sentQueue.OnAck(ackSeq)
			}
		case TagMessage:
			c.sentQueue.OnReceive(c.sm.InSeq + 1)
			if len(frame.Segments) > 0 {
				c.mu.Lock()
				d := c.dispatcher
				c.mu.Unlock()
				if d != nil {
					if msgType, body, err := DecodeMessage(frame.Segments[0]); err == nil {
						d.Dispatch(msgType, body)
					}
				}
			}
		}
	}
}

func (c *Connection) keepaliveLoop() {
	ticker := time.NewTicker(c.keepaliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			ts := make([]byte, 8)
			binary.LittleEndian.PutUint64(ts, uint64(time.Now().UnixNano()))
			req := sendRequest{tag: TagKeepalive2, payload: ts, done: make(chan error, 1)}
			select {
			case c.sendCh <- req:
			case <-c.closed:
				return
			}

			c.mu.Lock()
			last := c.lastKeepAck
			c.mu.Unlock()
			if !last.IsZero() && time.Since(last) > c.keepaliveTimeout {
				c.reportUnhealthy(raderr.New(raderr.KindTimeout, component, "keepalive ack timeout"))
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *Connection) reportUnhealthy(err error) {
	if c.owner != nil {
		c.owner.OnUnhealthy(c, err)
	}
}

// State reports the connection's current FrameState. A session is only
// usable for new submissions when this is StateReady.
func (c *Connection) State() FrameState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sm.State()
}

// Peer returns the "host:port" this connection dials or dialed.
func (c *Connection) Peer() string { return c.peer }

// Reconnect preserves cookies and sequence state and redials the peer,
// re-running the full handshake through Connect. Session setup sends
// CLIENT_IDENT, not SESSION_RECONNECT, and unacknowledged sent
// messages are not resent. Per §4.3.5, at most maxReconnectAttempts
// are made.
func (c *Connection) Reconnect(ctx context.Context) error {
	boff := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxReconnectAttempts-1)
	return backoff.Retry(func() error {
		c.sm.PrepareReconnect()
		return c.Connect(ctx)
	}, boff)
}

// Close shuts down the connection and its background goroutines.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn != nil {
			err = conn.Close()
		}
	})
	return err
}
