package msgr

import "sync"

// sentMessage is one outbound message retained until the peer
// acknowledges it, so it can be replayed verbatim if the connection
// has to reconnect.
type sentMessage struct {
	Seq     uint64
	Payload []byte
}

// SentQueue tracks outbound messages awaiting acknowledgment and the
// inbound sequence state needed to piggyback ack_seq on the next
// outbound frame. One SentQueue per connection, with its own mutex so
// the hot send/receive paths never contend on connection-wide state.
//
// The shape mirrors a slot table's per-entry sequence bookkeeping, but
// msgr2 has no fixed slot count: it is a FIFO of everything sent since
// the last acknowledged seq, replayed in order on reconnect rather
// than indexed by slot.
type SentQueue struct {
	mu sync.Mutex

	nextSeq uint64 // seq to assign to the next outbound message
	inSeq   uint64 // highest seq received from the peer

	pending []sentMessage // FIFO, oldest first
}

// NewSentQueue returns an empty queue with sequence numbering starting
// at 1, per §4.3.4.
func NewSentQueue() *SentQueue {
	return &SentQueue{nextSeq: 1}
}

// Send assigns the next outbound sequence number to payload, records
// it as pending, and returns the assigned seq for the caller to stamp
// into the frame header.
func (q *SentQueue) Send(payload []byte) uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()

	seq := q.nextSeq
	q.nextSeq++
	q.pending = append(q.pending, sentMessage{Seq: seq, Payload: payload})
	return seq
}

// OnReceive records an inbound message's seq as in_seq, for
// piggybacking as ack_seq on the next outbound header.
func (q *SentQueue) OnReceive(seq uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if seq > q.inSeq {
		q.inSeq = seq
	}
}

// AckSeq returns the value to stamp into the next outbound header's
// ack_seq field.
func (q *SentQueue) AckSeq() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.inSeq
}

// OnAck discards every pending sent message with seq <= ackSeq,
// per §4.3.4: any received ack_seq >= m may discard all queued sent
// messages with seq <= m.
func (q *SentQueue) OnAck(ackSeq uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()

	i := 0
	for ; i < len(q.pending); i++ {
		if q.pending[i].Seq > ackSeq {
			break
		}
	}
	q.pending = q.pending[i:]
}

// ReplayFrom returns, in order, every pending sent message whose seq
// is strictly greater than after — the set SESSION_RECONNECT_OK asks
// the client to resend.
func (q *SentQueue) ReplayFrom(after uint64) [][]byte {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([][]byte, 0, len(q.pending))
	for _, m := range q.pending {
		if m.Seq > after {
			out = append(out, m.Payload)
		}
	}
	return out
}

// PendingCount returns the number of sent messages still awaiting
// acknowledgment.
func (q *SentQueue) PendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Reset clears pending messages and sequence counters, per a full
// SESSION_RESET.
func (q *SentQueue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nextSeq = 1
	q.inSeq = 0
	q.pending = nil
}
