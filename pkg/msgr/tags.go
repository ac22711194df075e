// Package msgr implements the msgr2 wire protocol: frame codec, the
// client-role handshake state machine, pre-auth transcript recording,
// AES-128-GCM frame encryption, sequence/acknowledgment tracking with
// replay on reconnect, and keepalive.
package msgr

// Tag identifies a frame's purpose. A connection must recognize all 22
// values; an unrecognized tag is a fatal protocol fault regardless of
// the current FrameState.
type Tag uint8

const (
	TagHello Tag = iota + 1
	TagAuthRequest
	TagAuthBadMethod
	TagAuthReplyMore
	TagAuthRequestMore
	TagAuthDone
	TagAuthSignature
	TagClientIdent
	TagServerIdent
	TagIdentMissingFeatures
	TagSessionReconnect
	TagSessionReset
	TagSessionRetry
	TagSessionRetryGlobal
	TagSessionReconnectOK
	TagWait
	TagMessage
	TagKeepalive2
	TagKeepalive2Ack
	TagAck
	TagCompressionRequest
	TagCompressionDone
)

func (t Tag) String() string {
	switch t {
	case TagHello:
		return "Hello"
	case TagAuthRequest:
		return "AuthRequest"
	case TagAuthBadMethod:
		return "AuthBadMethod"
	case TagAuthReplyMore:
		return "AuthReplyMore"
	case TagAuthRequestMore:
		return "AuthRequestMore"
	case TagAuthDone:
		return "AuthDone"
	case TagAuthSignature:
		return "AuthSignature"
	case TagClientIdent:
		return "ClientIdent"
	case TagServerIdent:
		return "ServerIdent"
	case TagIdentMissingFeatures:
		return "IdentMissingFeatures"
	case TagSessionReconnect:
		return "SessionReconnect"
	case TagSessionReset:
		return "SessionReset"
	case TagSessionRetry:
		return "SessionRetry"
	case TagSessionRetryGlobal:
		return "SessionRetryGlobal"
	case TagSessionReconnectOK:
		return "SessionReconnectOK"
	case TagWait:
		return "Wait"
	case TagMessage:
		return "Message"
	case TagKeepalive2:
		return "Keepalive2"
	case TagKeepalive2Ack:
		return "Keepalive2Ack"
	case TagAck:
		return "Ack"
	case TagCompressionRequest:
		return "CompressionRequest"
	case TagCompressionDone:
		return "CompressionDone"
	default:
		return "Unknown"
	}
}

// IsKnown reports whether t is one of the 22 recognized tags.
func IsKnown(t Tag) bool {
	return t >= TagHello && t <= TagCompressionDone
}
