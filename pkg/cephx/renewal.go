package cephx

import (
	"time"

	"github.com/marmos91/radosclient/pkg/codec"
	"github.com/marmos91/radosclient/pkg/raderr"
)

// renewalOpcode is the request-type word that opens a renewal request
// (the handshake's Authenticate request carries no such word): the
// monitor treats it like initial
// authentication except the proof of identity is an authorizer built
// on the auth service itself, not a fresh challenge round-trip.
const renewalOpcode uint32 = 0x0200

// DueForRenewal returns the set of service ids whose ticket handler
// has crossed its renew-after threshold as of now. Handlers whose
// ValidUntil has passed are destroyed and removed from the session
// instead of being returned. A client calls this from its periodic
// maintenance tick (§4.4).
func (c *AuthClient) DueForRenewal(now time.Time) []ServiceID {
	var due []ServiceID
	for svc, h := range c.session.Tickets {
		if h.Expired(now) {
			h.Destroy()
			delete(c.session.Tickets, svc)
			continue
		}
		if h.NeedsRenewal(now) {
			due = append(due, svc)
		}
	}
	return due
}

// BuildRenewalRequest builds the renewal request for the given
// services: a renewal-opcode header, an authorizer built on the auth
// service (to prove identity without another challenge round-trip),
// and the bitmask of services whose tickets are requested again.
func (c *AuthClient) BuildRenewalRequest(due []ServiceID) ([]byte, error) {
	if len(due) == 0 {
		return nil, raderr.New(raderr.KindState, component, "no services due for renewal")
	}

	authOnAuth, err := c.BuildAuthorizer(EntityTypeAuth, nil)
	if err != nil {
		return nil, err
	}

	var bits uint32
	for _, svc := range due {
		bits |= ServiceBit(svc)
	}

	e := codec.NewEncoder(0)
	e.PutU32(renewalOpcode)
	e.PutBytes(authOnAuth.Blob)
	e.PutU32(bits)

	for _, svc := range due {
		if h := c.session.Tickets[svc]; h != nil {
			h.PendingRenewal = true
		}
	}

	return e.Bytes(), nil
}

// ApplyRenewalReply processes a renewal response identically to
// initial authentication: it decodes the same auth_payload shape and
// replaces (or adds) the TicketHandler for each service that renewed
// cleanly, clearing PendingRenewal on success.
func (c *AuthClient) ApplyRenewalReply(payload []byte) error {
	if c.authSessionKey == nil {
		return raderr.New(raderr.KindAuthentication, component, "no session key established")
	}
	tickets, err := decodeAuthPayload(payload, c.authSessionKey)
	if err != nil {
		return err
	}
	for _, t := range tickets {
		c.session.Tickets[t.Service] = t
	}
	return nil
}
