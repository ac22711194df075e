package msgr

// FrameState is one state of the client-role connection DFA. States
// below Ready are the handshake; a fault in any of them aborts the
// connection outright. Ready is the steady state; a fault there
// triggers reconnection instead (§4.3.5 handles that at the
// connection level, not here).
type FrameState int

const (
	StateBannerConnecting FrameState = iota
	StateHelloConnecting
	StateAuthConnecting
	StateAuthConnectingSign
	StateCompressionConnecting
	StateSessionConnecting
	StateReady
	StateClosed
)

func (s FrameState) String() string {
	switch s {
	case StateBannerConnecting:
		return "BannerConnecting"
	case StateHelloConnecting:
		return "HelloConnecting"
	case StateAuthConnecting:
		return "AuthConnecting"
	case StateAuthConnectingSign:
		return "AuthConnectingSign"
	case StateCompressionConnecting:
		return "CompressionConnecting"
	case StateSessionConnecting:
		return "SessionConnecting"
	case StateReady:
		return "Ready"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// maxAuthRetries bounds AUTH_BAD_METHOD renegotiation attempts before
// the handshake gives up.
const maxAuthRetries = 3

// StateMachine drives the client-role handshake DFA described in
// §4.3.2. It holds no I/O of its own: callers feed it received tags
// and it reports the state transition plus what action the caller
// should take next. Connection wiring (pkg/msgr/connection.go) owns
// actually sending frames.
type StateMachine struct {
	state       FrameState
	authMethod  AuthMethod
	authRetries int
	peerCompression bool

	ClientCookie uint64
	ServerCookie uint64
	GlobalSeq    uint64
	ConnectSeq   uint64
	InSeq        uint64
}

// NewStateMachine starts a fresh handshake in BannerConnecting.
func NewStateMachine(authMethod AuthMethod) *StateMachine {
	return &StateMachine{state: StateBannerConnecting, authMethod: authMethod}
}

// State returns the current FrameState.
func (m *StateMachine) State() FrameState { return m.state }

// fault records a fatal protocol violation: the wrong tag arrived for
// the current state.
func (m *StateMachine) fault(got Tag) error {
	return protoErr("unexpected tag %s in state %s", got, m.state)
}

// OnBannerReceived advances past BannerConnecting once the peer's
// banner has been read and validated by the connection layer.
func (m *StateMachine) OnBannerReceived() error {
	if m.state != StateBannerConnecting {
		return protoErr("banner received outside BannerConnecting (state %s)", m.state)
	}
	m.state = StateHelloConnecting
	return nil
}

// OnHello handles HELLO in HelloConnecting, advancing to
// AuthConnecting. The caller sends AUTH_REQUEST as the associated
// action.
func (m *StateMachine) OnHello(tag Tag) error {
	if m.state != StateHelloConnecting || tag != TagHello {
		return m.fault(tag)
	}
	m.state = StateAuthConnecting
	return nil
}

// authOutcome tells the connection layer what to do after an
// AuthConnecting-state frame has been processed.
type authOutcome int

const (
	authOutcomeRenegotiate authOutcome = iota
	authOutcomeRequestMore
	authOutcomeDoneNeedSign
	authOutcomeDoneNoSign
)

// OnAuthFrame handles AUTH_BAD_METHOD, AUTH_REPLY_MORE, and AUTH_DONE
// while in AuthConnecting.
func (m *StateMachine) OnAuthFrame(tag Tag) (authOutcome, error) {
	if m.state != StateAuthConnecting {
		return 0, m.fault(tag)
	}
	switch tag {
	case TagAuthBadMethod:
		m.authRetries++
		if m.authRetries > maxAuthRetries {
			return 0, protoErr("exceeded %d AUTH_BAD_METHOD renegotiation attempts", maxAuthRetries)
		}
		return authOutcomeRenegotiate, nil
	case TagAuthReplyMore:
		return authOutcomeRequestMore, nil
	case TagAuthDone:
		if m.authMethod == AuthMethodNone {
			m.state = StateSessionConnecting
			return authOutcomeDoneNoSign, nil
		}
		m.state = StateAuthConnectingSign
		return authOutcomeDoneNeedSign, nil
	default:
		return 0, m.fault(tag)
	}
}

// OnAuthSignature handles AUTH_SIGNATURE in AuthConnectingSign. The
// caller has already verified the HMAC before calling this; peerSupportsCompression
// decides whether to route through CompressionConnecting.
func (m *StateMachine) OnAuthSignature(tag Tag, peerSupportsCompression bool) error {
	if m.state != StateAuthConnectingSign || tag != TagAuthSignature {
		return m.fault(tag)
	}
	m.peerCompression = peerSupportsCompression
	if peerSupportsCompression {
		m.state = StateCompressionConnecting
	} else {
		m.state = StateSessionConnecting
	}
	return nil
}

// OnCompressionDone handles COMPRESSION_DONE in CompressionConnecting.
func (m *StateMachine) OnCompressionDone(tag Tag) error {
	if m.state != StateCompressionConnecting || tag != TagCompressionDone {
		return m.fault(tag)
	}
	m.state = StateSessionConnecting
	return nil
}

// sessionOutcome tells the caller what action the SessionConnecting
// transition requires.
type sessionOutcome int

const (
	sessionOutcomeReadyDirect sessionOutcome = iota
	sessionOutcomeReadyReplay
	sessionOutcomeBumpConnectSeq
	sessionOutcomeBumpGlobalSeq
	sessionOutcomeResetPartial
	sessionOutcomeResetFull
)

// OnSessionFrame handles SERVER_IDENT, SESSION_RECONNECT_OK,
// SESSION_RETRY, SESSION_RETRY_GLOBAL, and SESSION_RESET in
// SessionConnecting. replayFromSeq is always zero: only the tag is
// passed in, so no acknowledged seq is read from the frame.
func (m *StateMachine) OnSessionFrame(tag Tag) (outcome sessionOutcome, replayFromSeq uint64, err error) {
	if m.state != StateSessionConnecting {
		return 0, 0, m.fault(tag)
	}
	switch tag {
	case TagServerIdent:
		m.state = StateReady
		return sessionOutcomeReadyDirect, 0, nil
	case TagSessionReconnectOK:
		m.state = StateReady
		return sessionOutcomeReadyReplay, 0, nil
	case TagSessionRetry:
		m.ConnectSeq++
		return sessionOutcomeBumpConnectSeq, 0, nil
	case TagSessionRetryGlobal:
		m.GlobalSeq++
		return sessionOutcomeBumpGlobalSeq, 0, nil
	case TagSessionReset:
		m.ServerCookie = 0
		return sessionOutcomeResetPartial, 0, nil
	default:
		return 0, 0, m.fault(tag)
	}
}

// ApplyFullReset zeros every sequence counter, per a SESSION_RESET
// frame carrying the "full" flag.
func (m *StateMachine) ApplyFullReset() {
	m.ServerCookie = 0
	m.GlobalSeq = 0
	m.ConnectSeq = 0
	m.InSeq = 0
}

// OnReadyFrame validates that tag is legal in Ready
// (MESSAGE/KEEPALIVE2/KEEPALIVE2_ACK/ACK); anything else is a fault
// that should trigger reconnection rather than abort.
func (m *StateMachine) OnReadyFrame(tag Tag) error {
	if m.state != StateReady {
		return m.fault(tag)
	}
	switch tag {
	case TagMessage, TagKeepalive2, TagKeepalive2Ack, TagAck:
		return nil
	default:
		return m.fault(tag)
	}
}

// Abort moves the machine to Closed. Used for faults in any
// handshake state, which must abort rather than reconnect.
func (m *StateMachine) Abort() { m.state = StateClosed }

// PrepareReconnect resets the machine back to BannerConnecting while
// preserving cookies and sequence counters for SESSION_RECONNECT, per
// §4.3.5.
func (m *StateMachine) PrepareReconnect() {
	m.ConnectSeq++
	m.authRetries = 0
	m.state = StateBannerConnecting
}
