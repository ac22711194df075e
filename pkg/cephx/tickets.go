package cephx

import (
	"time"

	"github.com/marmos91/radosclient/pkg/codec"
	"github.com/marmos91/radosclient/pkg/raderr"
)

// ticketBlob is the decrypted content of a service ticket: the
// generation ("secret id") of the service's own long-term key, plus
// the validity window the service itself asserts.
type ticketBlob struct {
	SecretID   uint64
	IssuedAt   time.Time
	ValidUntil time.Time
}

func decodeTicketBlob(plaintext []byte) (ticketBlob, error) {
	var tb ticketBlob
	d := codec.NewDecoder(plaintext)
	err := d.GetVersioned(1, func(version uint8, sub *codec.Decoder) error {
		secretID, err := sub.GetU64()
		if err != nil {
			return err
		}
		issuedSec, err := sub.GetI64()
		if err != nil {
			return err
		}
		validSec, err := sub.GetI64()
		if err != nil {
			return err
		}
		tb.SecretID = secretID
		tb.IssuedAt = time.Unix(issuedSec, 0)
		tb.ValidUntil = time.Unix(validSec, 0)
		return nil
	})
	return tb, err
}

// decodeAuthPayload decodes the AUTH_DONE auth_payload field: for
// each returned service ticket, decrypt the envelope with authKey to
// get the service session key and validity, then (when flagged)
// decrypt and decode the ticket_blob with that session key to extract
// the secret id. Partial failures are tolerated: as many tickets as
// decode cleanly are returned.
func decodeAuthPayload(payload []byte, authKey []byte) ([]*TicketHandler, error) {
	d := codec.NewDecoder(payload)
	count, err := d.GetU32()
	if err != nil {
		return nil, raderr.Wrap(raderr.KindProtocol, component, "decode ticket count", err)
	}

	var handlers []*TicketHandler
	for i := uint32(0); i < count; i++ {
		h, err := decodeOneTicket(d, authKey)
		if err != nil {
			continue // accept as many as decode cleanly
		}
		handlers = append(handlers, h)
	}
	return handlers, nil
}

func decodeOneTicket(d *codec.Decoder, authKey []byte) (*TicketHandler, error) {
	serviceID, err := d.GetU32()
	if err != nil {
		return nil, err
	}
	encryptedEnvelope, err := d.GetBytes()
	if err != nil {
		return nil, err
	}
	encrypted, err := d.GetBool()
	if err != nil {
		return nil, err
	}
	rawTicketBlob, err := d.GetBytes()
	if err != nil {
		return nil, err
	}

	envelope, err := cbcDecrypt(authKey, encryptedEnvelope)
	if err != nil {
		return nil, err
	}

	h := &TicketHandler{Service: ServiceID(serviceID)}

	ed := codec.NewDecoder(envelope)
	err = ed.GetVersioned(1, func(version uint8, sub *codec.Decoder) error {
		keyBytes, err := sub.GetRaw(16)
		if err != nil {
			return err
		}
		copy(h.SessionKey[:], keyBytes)
		validSec, err := sub.GetI64()
		if err != nil {
			return err
		}
		h.ValidUntil = time.Unix(validSec, 0)
		return nil
	})
	if err != nil {
		return nil, err
	}

	ticketPlain := rawTicketBlob
	if encrypted {
		ticketPlain, err = cbcDecrypt(h.SessionKey[:], rawTicketBlob)
		if err != nil {
			return nil, err
		}
	}
	tb, err := decodeTicketBlob(ticketPlain)
	if err != nil {
		return nil, err
	}

	h.SecretID = tb.SecretID
	h.IssuedAt = time.Now()
	h.RenewAfter = 12 * time.Hour
	h.TicketBlob = rawTicketBlob
	h.HaveKey = true

	return h, nil
}
