// Package cephx implements the client side of the CephX challenge-response
// authentication protocol: the Kerberos-like handshake that proves
// possession of a shared secret to a monitor, the per-service ticket
// handlers it yields, and the authorizers built from them for talking to
// OSDs, MDSes, and managers.
package cephx

import (
	"fmt"
	"time"
)

// EntityType is the type tag half of an EntityName.
type EntityType uint32

const (
	EntityTypeMon EntityType = iota + 1
	EntityTypeMDS
	EntityTypeOSD
	EntityTypeClient
	EntityTypeMgr
	EntityTypeAuth
)

func (t EntityType) String() string {
	switch t {
	case EntityTypeMon:
		return "mon"
	case EntityTypeMDS:
		return "mds"
	case EntityTypeOSD:
		return "osd"
	case EntityTypeClient:
		return "client"
	case EntityTypeMgr:
		return "mgr"
	case EntityTypeAuth:
		return "auth"
	default:
		return fmt.Sprintf("type(%d)", t)
	}
}

// EntityName is a principal identifier: a type tag plus a string id,
// e.g. "client.admin". Total order is by (Type, ID) so two names can be
// deterministically compared.
type EntityName struct {
	Type EntityType
	ID   string
}

func (n EntityName) String() string { return fmt.Sprintf("%s.%s", n.Type, n.ID) }

// Less orders by (Type, ID).
func (n EntityName) Less(other EntityName) bool {
	if n.Type != other.Type {
		return n.Type < other.Type
	}
	return n.ID < other.ID
}

// ParseEntityName parses a "type.id" principal name, e.g.
// "client.admin", the form used in config files and keyrings alike.
func ParseEntityName(s string) (EntityName, error) {
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			return EntityName{Type: entityTypeFromString(s[:i]), ID: s[i+1:]}, nil
		}
	}
	return EntityName{}, fmt.Errorf("entity name must be type.id, got %q", s)
}

func entityTypeFromString(s string) EntityType {
	switch s {
	case "mon":
		return EntityTypeMon
	case "osd":
		return EntityTypeOSD
	case "mds":
		return EntityTypeMDS
	case "mgr":
		return EntityTypeMgr
	case "auth":
		return EntityTypeAuth
	default:
		return EntityTypeClient
	}
}

// ServiceID identifies which service a ticket or authorizer is for. It
// reuses the EntityType space: a client authorizes itself to talk to
// the mon, mds, osd, or mgr service.
type ServiceID = EntityType

// ServiceBit returns the bit in a ticket-request bitmask corresponding
// to svc.
func ServiceBit(svc ServiceID) uint32 {
	return 1 << uint32(svc)
}

// TicketHandler is the per-service credential obtained from a
// successful handshake or renewal: a session key shared with that
// service, the opaque encrypted ticket blob the service itself will
// validate, and the bookkeeping needed to decide when to renew.
//
// A handler with HaveKey=false must never be used to build an
// authorizer. A handler whose IssuedAt+RenewAfter has elapsed must be
// included in the next renewal sweep. Expired tickets (ValidUntil in
// the past) are discarded rather than renewed.
type TicketHandler struct {
	Service    ServiceID
	SessionKey [16]byte
	SecretID   uint64 // generation of the service's own long-term key
	TicketBlob []byte // opaque, re-sent verbatim when authorizing

	IssuedAt   time.Time
	ValidUntil time.Time
	RenewAfter time.Duration

	HaveKey        bool
	PendingRenewal bool
}

// NeedsRenewal reports whether now has passed IssuedAt+RenewAfter.
func (h *TicketHandler) NeedsRenewal(now time.Time) bool {
	return h.HaveKey && now.After(h.IssuedAt.Add(h.RenewAfter))
}

// Expired reports whether the ticket's validity window has closed.
func (h *TicketHandler) Expired(now time.Time) bool {
	return !h.ValidUntil.IsZero() && now.After(h.ValidUntil)
}

// Destroy zeros the session key, matching the teacher's
// SessionCryptoState.Destroy defense-in-depth pattern.
func (h *TicketHandler) Destroy() {
	if h == nil {
		return
	}
	for i := range h.SessionKey {
		h.SessionKey[i] = 0
	}
	h.HaveKey = false
}

// Session is the client's view of its relationship with the auth
// service: its entity, its assigned global id (nonzero and stable
// across reconnections once set) and the TicketHandler for each
// service. The long-term secret is held by AuthClient, not here.
type Session struct {
	Entity   EntityName
	GlobalID uint64
	Tickets  map[ServiceID]*TicketHandler
}

func newSession(entity EntityName) *Session {
	return &Session{Entity: entity, Tickets: make(map[ServiceID]*TicketHandler)}
}

// AuthMethod is the negotiated authentication scheme.
type AuthMethod uint32

const (
	AuthMethodNone  AuthMethod = 0
	AuthMethodCephX AuthMethod = 2
)

// ConnectionMode is the negotiated frame protection level.
type ConnectionMode uint32

const (
	ConnectionModeCRC    ConnectionMode = 1
	ConnectionModeSecure ConnectionMode = 2
)

// Authorizer is the byte string a client attaches to its first message
// on a new connection to a non-monitor service, proving it holds a
// valid ticket for that service.
type Authorizer struct {
	Service ServiceID
	Blob    []byte
	// Nonce is retained so VerifyAuthorizeReply can check the peer
	// echoed nonce+1 for proof of shared-key possession.
	Nonce uint64
}
