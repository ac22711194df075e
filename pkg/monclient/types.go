// Package monclient implements the monitor client (§4.4): hunting for
// a healthy monitor connection, cluster-map subscriptions, command and
// pool-operation transaction tables, and the
// Uninit/Hunting/Connected/Stopping state machine that gives the rest
// of the client its authenticated identity.
package monclient

const component = "monclient"

// MsgType tags the envelope every MESSAGE frame payload carries
// (pkg/msgr's Dispatcher contract). Monitor traffic is numbered
// independently of objclient's OSD session messages: the values
// overlap, and each connection carries only one of the two.
type MsgType uint16

const (
	MsgMonMap MsgType = iota + 1
	MsgMonSubscribe
	MsgMonSubscribeAck
	MsgMonCommand
	MsgMonCommandAck
	MsgPoolOp
	MsgPoolOpReply
	MsgMonGetVersion
	MsgMonGetVersionReply
	// MsgOSDMap is dispatched straight through to the registered OSDMap
	// handler (ObjectClient); MonitorClient never decodes its body.
	MsgOSDMap
)

// State is the MonitorClient's coarse lifecycle state (§4.4 state
// machine: Uninit -> Hunting <-> Connected -> Stopping).
type State int

const (
	StateUninit State = iota
	StateHunting
	StateConnected
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateUninit:
		return "Uninit"
	case StateHunting:
		return "Hunting"
	case StateConnected:
		return "Connected"
	case StateStopping:
		return "Stopping"
	default:
		return "Unknown"
	}
}

// PoolOpType selects which pool operation MPoolOp requests.
type PoolOpType uint16

const (
	PoolOpCreate PoolOpType = 1
	PoolOpDelete PoolOpType = 2
)

// PoolOpResult is the decoded reply to a pool operation: a return
// code, the OSDMap epoch the operation completed at, and any
// accompanying binary data.
type PoolOpResult struct {
	ReplyCode int32
	Epoch     uint32
	Data      []byte
}

// CommandResult is the decoded reply to an invoked monitor command.
type CommandResult struct {
	ReplyCode int32
	Outs      string
	Outbl     []byte
}
