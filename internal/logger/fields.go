package logger

import (
	"fmt"
	"log/slog"
)

// Standard field keys for structured logging across every component
// (codec, cephx, msgr, monclient, objclient). Use these keys
// consistently so aggregation/querying stays uniform.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// Entities & Identity
	// ========================================================================
	KeyEntityType = "entity_type" // client, mon, osd, mds, mgr, auth
	KeyEntityID   = "entity_id"   // the string id half of an entity name
	KeyGlobalID   = "global_id"   // monitor-assigned cluster-wide client id
	KeyComponent  = "component"   // owning component: monclient, objclient, msgr, cephx

	// ========================================================================
	// Connection & Session
	// ========================================================================
	KeyConnectionID = "connection_id" // local connection identifier
	KeyPeerAddr     = "peer_addr"     // remote socket address
	KeyPeerNonce    = "peer_nonce"    // address-vector nonce of the peer
	KeyClientCookie = "client_cookie" // session client_cookie
	KeyServerCookie = "server_cookie" // session server_cookie
	KeyConnectSeq   = "connect_seq"   // per-session connect sequence
	KeyGlobalSeq    = "global_seq"    // per-session global sequence
	KeyFrameState   = "frame_state"   // current FrameState DFA value
	KeyFrameTag     = "frame_tag"     // frame control/data tag

	// ========================================================================
	// Sequencing & Replay
	// ========================================================================
	KeySeq      = "seq"       // outbound message sequence number
	KeyInSeq    = "in_seq"    // highest inbound sequence number observed
	KeyAckSeq   = "ack_seq"   // acknowledged sequence number
	KeyReplayed = "replayed"  // count of messages replayed on reconnect
	KeyTID      = "tid"       // per-session operation tid
	KeyRequest  = "request"   // formatted (entity, tid, incarnation) request id
	KeyAttempt  = "attempt"   // retry attempt number
	KeyMaxTries = "max_tries" // maximum retry attempts

	// ========================================================================
	// Cluster Maps
	// ========================================================================
	KeyEpoch      = "epoch"       // map epoch
	KeyFSID       = "fsid"        // cluster UUID
	KeyMapName    = "map_name"    // monmap, osdmap
	KeyPoolID     = "pool_id"     // pool identifier
	KeyPoolName   = "pool_name"   // pool name
	KeyOSDID      = "osd_id"      // OSD identifier
	KeyPGID       = "pg_id"       // placement group id (pool.seed)
	KeyMonRank    = "mon_rank"    // monitor rank within the MonMap

	// ========================================================================
	// Object Operations
	// ========================================================================
	KeyObjectName = "object_name" // target object name
	KeyNamespace  = "namespace"   // object namespace
	KeyLocatorKey = "locator_key" // alternate placement key
	KeyOffset     = "offset"      // I/O offset
	KeySize       = "size"        // byte count
	KeyOpCode     = "op_code"     // RADOS sub-op code
	KeyVersion    = "version"     // object version returned by an op
	KeyRedirected = "redirected"  // whether a redirect was applied

	// ========================================================================
	// Auth (CephX)
	// ========================================================================
	KeyAuthMethod = "auth_method" // none, cephx
	KeyServiceID  = "service_id"  // service the ticket/authorizer is for

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // operation duration in milliseconds
	KeyError      = "error"       // error message
	KeyErrorCode  = "error_code"  // numeric error code
)

// TraceID returns a slog.Attr for OpenTelemetry trace ID
func TraceID(id string) slog.Attr { return slog.String(KeyTraceID, id) }

// SpanID returns a slog.Attr for OpenTelemetry span ID
func SpanID(id string) slog.Attr { return slog.String(KeySpanID, id) }

// EntityType returns a slog.Attr for an entity type tag
func EntityType(t string) slog.Attr { return slog.String(KeyEntityType, t) }

// EntityID returns a slog.Attr for an entity's string id
func EntityID(id string) slog.Attr { return slog.String(KeyEntityID, id) }

// GlobalID returns a slog.Attr for the monitor-assigned global id
func GlobalID(id uint64) slog.Attr { return slog.Uint64(KeyGlobalID, id) }

// Component returns a slog.Attr naming the owning component
func Component(name string) slog.Attr { return slog.String(KeyComponent, name) }

// ConnectionID returns a slog.Attr for a connection identifier
func ConnectionID(id string) slog.Attr { return slog.String(KeyConnectionID, id) }

// PeerAddr returns a slog.Attr for a remote socket address
func PeerAddr(addr string) slog.Attr { return slog.String(KeyPeerAddr, addr) }

// PeerNonce returns a slog.Attr for an address-vector nonce
func PeerNonce(nonce uint32) slog.Attr { return slog.Any(KeyPeerNonce, nonce) }

// ClientCookie returns a slog.Attr for the session client cookie
func ClientCookie(c uint64) slog.Attr { return slog.Uint64(KeyClientCookie, c) }

// ServerCookie returns a slog.Attr for the session server cookie
func ServerCookie(c uint64) slog.Attr { return slog.Uint64(KeyServerCookie, c) }

// ConnectSeq returns a slog.Attr for the per-session connect sequence
func ConnectSeq(n uint32) slog.Attr { return slog.Any(KeyConnectSeq, n) }

// GlobalSeq returns a slog.Attr for the per-session global sequence
func GlobalSeq(n uint32) slog.Attr { return slog.Any(KeyGlobalSeq, n) }

// FrameState returns a slog.Attr for the current FrameState DFA value
func FrameState(s string) slog.Attr { return slog.String(KeyFrameState, s) }

// FrameTag returns a slog.Attr for a frame control/data tag
func FrameTag(tag int) slog.Attr { return slog.Int(KeyFrameTag, tag) }

// Seq returns a slog.Attr for the outbound message sequence number
func Seq(n uint64) slog.Attr { return slog.Uint64(KeySeq, n) }

// InSeq returns a slog.Attr for the highest observed inbound sequence number
func InSeq(n uint64) slog.Attr { return slog.Uint64(KeyInSeq, n) }

// AckSeq returns a slog.Attr for an acknowledged sequence number
func AckSeq(n uint64) slog.Attr { return slog.Uint64(KeyAckSeq, n) }

// Replayed returns a slog.Attr for the count of replayed messages
func Replayed(n int) slog.Attr { return slog.Int(KeyReplayed, n) }

// TID returns a slog.Attr for a per-session operation tid
func TID(tid uint64) slog.Attr { return slog.Uint64(KeyTID, tid) }

// Request returns a slog.Attr for a formatted request id
func Request(id string) slog.Attr { return slog.String(KeyRequest, id) }

// Attempt returns a slog.Attr for a retry attempt number
func Attempt(n int) slog.Attr { return slog.Int(KeyAttempt, n) }

// MaxTries returns a slog.Attr for the maximum retry attempts
func MaxTries(n int) slog.Attr { return slog.Int(KeyMaxTries, n) }

// Epoch returns a slog.Attr for a cluster map epoch
func Epoch(e uint64) slog.Attr { return slog.Uint64(KeyEpoch, e) }

// FSID returns a slog.Attr for the cluster UUID
func FSID(id string) slog.Attr { return slog.String(KeyFSID, id) }

// MapName returns a slog.Attr for a cluster map name
func MapName(name string) slog.Attr { return slog.String(KeyMapName, name) }

// PoolID returns a slog.Attr for a pool identifier
func PoolID(id int64) slog.Attr { return slog.Int64(KeyPoolID, id) }

// PoolName returns a slog.Attr for a pool name
func PoolName(name string) slog.Attr { return slog.String(KeyPoolName, name) }

// OSDID returns a slog.Attr for an OSD identifier
func OSDID(id int32) slog.Attr { return slog.Int(KeyOSDID, int(id)) }

// PGID returns a slog.Attr for a formatted placement group id
func PGID(pg string) slog.Attr { return slog.String(KeyPGID, pg) }

// MonRank returns a slog.Attr for a monitor's rank within the MonMap
func MonRank(rank int) slog.Attr { return slog.Int(KeyMonRank, rank) }

// ObjectName returns a slog.Attr for a target object name
func ObjectName(name string) slog.Attr { return slog.String(KeyObjectName, name) }

// Namespace returns a slog.Attr for an object namespace
func Namespace(ns string) slog.Attr { return slog.String(KeyNamespace, ns) }

// LocatorKey returns a slog.Attr for an alternate placement key
func LocatorKey(key string) slog.Attr { return slog.String(KeyLocatorKey, key) }

// Offset returns a slog.Attr for an I/O offset
func Offset(off uint64) slog.Attr { return slog.Uint64(KeyOffset, off) }

// Size returns a slog.Attr for a byte count
func Size(n uint64) slog.Attr { return slog.Uint64(KeySize, n) }

// OpCode returns a slog.Attr for a RADOS sub-op code
func OpCode(code int) slog.Attr { return slog.Int(KeyOpCode, code) }

// Version returns a slog.Attr for an object version
func Version(v uint64) slog.Attr { return slog.Uint64(KeyVersion, v) }

// Redirected returns a slog.Attr for whether a redirect was applied
func Redirected(b bool) slog.Attr { return slog.Bool(KeyRedirected, b) }

// AuthMethod returns a slog.Attr for the negotiated auth method
func AuthMethod(m string) slog.Attr { return slog.String(KeyAuthMethod, m) }

// ServiceID returns a slog.Attr for the service a ticket/authorizer targets
func ServiceID(id string) slog.Attr { return slog.String(KeyServiceID, id) }

// DurationMs returns a slog.Attr for duration in milliseconds
func DurationMs(ms float64) slog.Attr { return slog.Float64(KeyDurationMs, ms) }

// Err returns a slog.Attr for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Code returns a slog.Attr for a numeric error code
func Code(code int) slog.Attr { return slog.Int(KeyErrorCode, code) }

// Hex returns a slog.Attr rendering a byte slice as hex, useful for
// ticket blobs, nonces and keys in debug-level logs.
func Hex(key string, b []byte) slog.Attr {
	return slog.String(key, fmt.Sprintf("%x", b))
}
