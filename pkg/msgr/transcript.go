package msgr

import (
	"bytes"
	"io"
)

// PreAuthTranscript captures every byte exchanged on the wire, in the
// form it actually traverses the wire (compressed/encrypted framing
// included), from the start of the connection through the AUTH_DONE
// exchange. Both ends sign this transcript with AUTH_SIGNATURE so a
// man-in-the-middle cannot downgrade or rewrite the handshake. Once
// the signature is checked the transcript serves no further purpose
// and is discarded.
type PreAuthTranscript struct {
	tx     bytes.Buffer
	rx     bytes.Buffer
	sealed bool
}

// NewPreAuthTranscript returns an empty transcript recorder.
func NewPreAuthTranscript() *PreAuthTranscript {
	return &PreAuthTranscript{}
}

// TeeWriter wraps w so every byte written through the result is also
// appended to the outbound transcript. Sits below the crypto layer: it
// must see ciphertext/compressed bytes, not plaintext.
func (t *PreAuthTranscript) TeeWriter(w io.Writer) io.Writer {
	if t.sealed {
		return w
	}
	return io.MultiWriter(w, &t.tx)
}

// TeeReader wraps r so every byte read through the result is also
// appended to the inbound transcript.
func (t *PreAuthTranscript) TeeReader(r io.Reader) io.Reader {
	if t.sealed {
		return r
	}
	return io.TeeReader(r, &t.rx)
}

// Bytes returns tx||rx concatenated in send-then-receive order, the
// form both sides sign and verify.
func (t *PreAuthTranscript) Bytes() []byte {
	out := make([]byte, 0, t.tx.Len()+t.rx.Len())
	out = append(out, t.tx.Bytes()...)
	out = append(out, t.rx.Bytes()...)
	return out
}

// Seal releases the buffered bytes. Writers and readers obtained from
// TeeWriter/TeeReader after Seal record nothing; ones obtained before
// it keep appending. Call once the AUTH_SIGNATURE exchange completes
// successfully.
func (t *PreAuthTranscript) Seal() {
	t.sealed = true
	t.tx.Reset()
	t.rx.Reset()
}
