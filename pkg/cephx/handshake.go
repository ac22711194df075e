package cephx

import (
	"fmt"

	"github.com/marmos91/radosclient/pkg/codec"
	"github.com/marmos91/radosclient/pkg/raderr"
)

// handshakeStage tracks which of the three message pairs AuthClient is
// waiting on, purely to reject calls made out of order; msgr's own
// FrameState DFA owns the connection-level state transitions.
type handshakeStage int

const (
	stageNotStarted handshakeStage = iota
	stageAwaitingChallenge
	stageAwaitingAuthDone
	stageComplete
)

// AuthClient drives the client side of the CephX handshake over the
// abstract message boundary msgr provides: it never touches a socket
// itself, only builds and parses the payloads msgr's AUTH_REQUEST /
// AUTH_REPLY_MORE / AUTH_DONE frames carry.
type AuthClient struct {
	entity EntityName
	secret SecretKey
	method AuthMethod

	session *Session
	stage   handshakeStage

	clientChallenge uint64
	// proofKey is the 64-bit value the reference calls "session_key"
	// in the Authenticate step — proof of shared-secret possession
	// sent to the monitor, distinct from any service's ticket
	// session key.
	proofKey uint64

	// authSessionKey is the AES-128 key the auth service encrypted
	// its AUTH_DONE envelope under; derived from the first service
	// ticket's session key once decoded.
	authSessionKey []byte
}

// NewAuthClient constructs a driver for entity authenticating with
// secret, using method (None skips the handshake entirely).
func NewAuthClient(entity EntityName, secret SecretKey, method AuthMethod) *AuthClient {
	return &AuthClient{
		entity:  entity,
		secret:  secret,
		method:  method,
		session: newSession(entity),
	}
}

// Session returns the client's authenticated session state. Its
// GlobalID is zero until BuildAuthenticate/HandleAuthDone complete.
func (c *AuthClient) Session() *Session { return c.session }

// Method returns the authentication method this client negotiates.
func (c *AuthClient) Method() AuthMethod { return c.method }

func (c *AuthClient) stateErr(expected handshakeStage, msg string) error {
	return raderr.New(raderr.KindAuthentication, component, msg).WithState(fmt.Sprintf("stage=%d want=%d", c.stage, expected))
}

// BuildInitialRequest encodes the first Initial-step message: an
// auth-mode byte, the client's entity name, and its proposed global id
// (0 on first contact, or the previously assigned id on a reconnect
// that wants to keep it).
func (c *AuthClient) BuildInitialRequest(proposedGlobalID uint64) []byte {
	e := codec.NewEncoder(0)
	e.PutU8(uint8(c.method))
	e.PutString(c.entity.String())
	e.PutU64(proposedGlobalID)
	c.stage = stageAwaitingChallenge
	return e.Bytes()
}

// HandleChallenge consumes the monitor's 8-byte server challenge and
// returns the Authenticate request: client_challenge, the computed
// proof key, an empty old ticket, and the bitmask of desired service
// tickets. No request-type header is written ahead of these fields.
func (c *AuthClient) HandleChallenge(challenge []byte) ([]byte, error) {
	if c.stage != stageAwaitingChallenge {
		return nil, c.stateErr(stageAwaitingChallenge, "unexpected challenge")
	}
	d := codec.NewDecoder(challenge)
	serverChallenge, err := d.GetU64()
	if err != nil {
		return nil, raderr.Wrap(raderr.KindProtocol, component, "decode server challenge", err)
	}

	clientChallenge, err := randomU64()
	if err != nil {
		return nil, err
	}

	aesKey, err := c.secret.AESKey()
	if err != nil {
		return nil, err
	}
	proofKey, err := deriveSessionKey(aesKey, serverChallenge, clientChallenge)
	if err != nil {
		return nil, err
	}
	c.clientChallenge = clientChallenge
	c.proofKey = proofKey

	e := codec.NewEncoder(0)
	e.PutU64(clientChallenge)
	e.PutU64(proofKey)
	e.PutU32(0) // empty old_ticket length
	e.PutU32(requestedServiceBits())

	c.stage = stageAwaitingAuthDone
	return e.Bytes(), nil
}

// requestedServiceBits is the bitmask of every service a general
// client needs tickets for: mon, osd, mds, mgr.
func requestedServiceBits() uint32 {
	return ServiceBit(EntityTypeMon) | ServiceBit(EntityTypeOSD) | ServiceBit(EntityTypeMDS) | ServiceBit(EntityTypeMgr)
}

// HandleAuthDone decodes the AUTH_DONE payload: global id, connection
// mode, and the auth_payload carrying per-service tickets. Returns the
// negotiated ConnectionMode; the client's Session is populated with
// every ticket that decoded cleanly (partial failures are tolerated
// per §4.2).
func (c *AuthClient) HandleAuthDone(payload []byte) (ConnectionMode, error) {
	if c.stage != stageAwaitingAuthDone {
		return 0, c.stateErr(stageAwaitingAuthDone, "unexpected auth done")
	}
	d := codec.NewDecoder(payload)

	globalID, err := d.GetU64()
	if err != nil {
		return 0, raderr.Wrap(raderr.KindProtocol, component, "decode global id", err)
	}
	mode, err := d.GetU32()
	if err != nil {
		return 0, raderr.Wrap(raderr.KindProtocol, component, "decode connection mode", err)
	}
	authPayload, err := d.GetBytes()
	if err != nil {
		return 0, raderr.Wrap(raderr.KindProtocol, component, "decode auth payload", err)
	}

	c.session.GlobalID = globalID

	aesKey, err := c.secret.AESKey()
	if err != nil {
		return 0, err
	}
	tickets, err := decodeAuthPayload(authPayload, aesKey)
	if err != nil {
		return 0, err
	}
	if len(tickets) == 0 {
		return 0, raderr.New(raderr.KindAuthentication, component, "no service tickets decoded")
	}
	for _, t := range tickets {
		c.session.Tickets[t.Service] = t
	}
	// The auth-service session key (used to decrypt the connection
	// secret and extra-tickets blob) is the session key bound to
	// whichever ticket arrived first; every ticket in one AUTH_DONE
	// response is encrypted under the same per-handshake session key.
	c.authSessionKey = tickets[0].SessionKey[:]

	c.stage = stageComplete
	return ConnectionMode(mode), nil
}

// SignTranscript computes HMAC-SHA256(session_key, transcript) for
// the signature-exchange step. session_key here is the auth session
// key established by HandleAuthDone.
func (c *AuthClient) SignTranscript(transcript []byte) ([]byte, error) {
	if c.authSessionKey == nil {
		return nil, raderr.New(raderr.KindAuthentication, component, "no session key established")
	}
	return hmacSHA256(c.authSessionKey, transcript), nil
}

// VerifyTranscriptSignature reports whether sig equals
// HMAC-SHA256(session_key, transcript); mismatch is a fatal
// authentication fault per §4.2.
func (c *AuthClient) VerifyTranscriptSignature(transcript, sig []byte) error {
	expected, err := c.SignTranscript(transcript)
	if err != nil {
		return err
	}
	if !hmacEqual(expected, sig) {
		return raderr.New(raderr.KindAuthentication, component, "transcript signature mismatch")
	}
	return nil
}
