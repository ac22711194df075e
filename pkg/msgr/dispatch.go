package msgr

import (
	"context"
	"encoding/binary"

	"github.com/marmos91/radosclient/pkg/raderr"
)

// Dispatcher receives decoded MESSAGE-tagged frame payloads. Connection
// is agnostic to what a message means: MonitorClient and
// ObjectClient.Session both implement this to claim the traffic on
// their respective connections (§9 "message-dispatcher interface").
type Dispatcher interface {
	Dispatch(msgType uint16, body []byte)
}

// EncodeMessage wraps body with a 2-byte little-endian message-type
// tag, the envelope every MESSAGE frame payload carries on top of the
// frame-level Tag byte. The frame tag says "this is a message"; this
// inner tag says which kind (MMonMap, MOSDOp, ...).
func EncodeMessage(msgType uint16, body []byte) []byte {
	out := make([]byte, 2+len(body))
	binary.LittleEndian.PutUint16(out, msgType)
	copy(out[2:], body)
	return out
}

// DecodeMessage reverses EncodeMessage.
func DecodeMessage(payload []byte) (msgType uint16, body []byte, err error) {
	if len(payload) < 2 {
		return 0, nil, raderr.New(raderr.KindProtocol, component, "message payload shorter than envelope")
	}
	return binary.LittleEndian.Uint16(payload), payload[2:], nil
}

// SetDispatcher registers the owner that receives decoded MESSAGE
// payloads arriving on this connection. Must be called before Connect
// if the caller wants to observe messages sent immediately after
// SERVER_IDENT.
func (c *Connection) SetDispatcher(d Dispatcher) {
	c.mu.Lock()
	c.dispatcher = d
	c.mu.Unlock()
}

// SendMessage encodes body behind a msgType envelope and sends it as a
// MESSAGE frame.
func (c *Connection) SendMessage(ctx context.Context, msgType uint16, body []byte) error {
	return c.Send(ctx, EncodeMessage(msgType, body))
}
