package cephx

import (
	"github.com/marmos91/radosclient/pkg/codec"
	"github.com/marmos91/radosclient/pkg/raderr"
)

// BuildAuthorizer constructs the authorizer a client attaches to its
// first message on a new connection to svc: AuthorizeA (global id,
// service id, ticket blob) concatenated with a length-prefixed
// AES-128-CBC ciphertext of AuthorizeB (a fresh nonce, plus
// serverChallenge+1 when the peer supplied one, e.g. on a reconnect).
func (c *AuthClient) BuildAuthorizer(svc ServiceID, serverChallenge *uint64) (*Authorizer, error) {
	handler, ok := c.session.Tickets[svc]
	if !ok || !handler.HaveKey {
		return nil, raderr.New(raderr.KindAuthentication, component, "no ticket for service").WithEntity(svc.String())
	}

	a := codec.NewEncoder(0)
	a.PutU64(c.session.GlobalID)
	a.PutU32(uint32(svc))
	a.PutBytes(handler.TicketBlob)

	nonce, err := randomU64()
	if err != nil {
		return nil, err
	}

	b := codec.NewEncoder(0)
	b.PutU64(nonce)
	if serverChallenge != nil {
		b.PutBool(true)
		b.PutU64(*serverChallenge + 1)
	} else {
		b.PutBool(false)
	}

	ciphertext, err := cbcEncrypt(handler.SessionKey[:], b.Bytes())
	if err != nil {
		return nil, err
	}

	out := codec.NewEncoder(0)
	out.PutRaw(a.Bytes())
	out.PutBytes(ciphertext)

	return &Authorizer{Service: svc, Blob: out.Bytes(), Nonce: nonce}, nil
}

// VerifyAuthorizeReply decrypts reply (produced by the peer under the
// same service session key used to build auth) and confirms it
// contains Nonce+1, proving the peer holds the shared key.
func (c *AuthClient) VerifyAuthorizeReply(svc ServiceID, auth *Authorizer, reply []byte) error {
	handler, ok := c.session.Tickets[svc]
	if !ok || !handler.HaveKey {
		return raderr.New(raderr.KindAuthentication, component, "no ticket for service").WithEntity(svc.String())
	}

	plaintext, err := cbcDecrypt(handler.SessionKey[:], reply)
	if err != nil {
		return err
	}
	d := codec.NewDecoder(plaintext)
	got, err := d.GetU64()
	if err != nil {
		return raderr.Wrap(raderr.KindProtocol, component, "decode authorize reply", err)
	}
	if got != auth.Nonce+1 {
		return raderr.New(raderr.KindAuthentication, component, "authorize reply nonce mismatch").WithEntity(svc.String())
	}
	return nil
}
