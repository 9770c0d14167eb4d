package mimpi

import (
	"github.com/Froxyy-dev/MIMUW-MIMPI/internal/wire"
)

// runReceiver is the body of the background worker that owns the inbound
// pipe from one remote peer. One goroutine runs this per remote rank for the
// lifetime of the Runtime; it terminates when the peer's write end closes.
func (r *Runtime) runReceiver(peer int) {
	ch := r.channels[peer]
	defer ch.Read.Close()

	for {
		hdr, err := wire.ReadHeader(ch.Read)
		if err != nil {
			r.markPeerClosed(peer)
			return
		}

		var payload []byte
		if hdr.Tag != tagNoMessage && hdr.Tag != tagDeadlock {
			payload = make([]byte, hdr.Count)
			if err := wire.ReadFull(ch.Read, payload); err != nil {
				r.markPeerClosed(peer)
				return
			}
		}

		r.handleFrame(peer, hdr, payload)
	}
}

// markPeerClosed records that peer's write end has closed and wakes the
// wait-slot if it was blocked waiting on exactly this peer.
func (r *Runtime) markPeerClosed(peer int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.peers[peer].closed = true
	r.log.Debug().Int("peer", peer).Msg("peer closed")
	if r.slot.state == slotWaiting && r.slot.source == peer {
		r.slot.state = slotPeerClosed
		r.cond.Broadcast()
	}
}

// handleFrame classifies one fully-received frame from peer and applies the
// state transition described in the specification's receiver-thread design.
func (r *Runtime) handleFrame(peer int, hdr wire.Header, payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.peers[peer]

	switch hdr.Tag {
	case tagDeadlock:
		r.log.Info().Int("peer", peer).Msg("deadlock detected")
		r.slot.state = slotDeadlocked
		p.pushAdvertisedWait(advertisedWait{Deadlock: true})
		r.cond.Broadcast()

	case tagWaiting:
		count, tag := decodeEmbedded(payload)
		for e := p.pendingSends.Front(); e != nil; e = e.Next() {
			if ps := e.Value.(pendingSend); ps.Count == count && ps.Tag == tag {
				// A Send for exactly this (count, tag) is already in flight; it
				// will satisfy the peer directly and a later RECEIVED will clear
				// the record. Nothing further to advertise.
				return
			}
		}
		p.pushAdvertisedWait(advertisedWait{Count: count, Tag: tag})
		if r.slot.state == slotWaiting && r.slot.source == peer {
			r.log.Info().Int("peer", peer).Msg("deadlock detected")
			r.slot.state = slotDeadlocked
			r.cond.Broadcast()
		}

	case tagReceived:
		count, tag := decodeEmbedded(payload)
		p.removePendingSend(count, tag)

	default:
		msg := Message{Tag: hdr.Tag, Count: hdr.Count, Source: peer, Payload: payload}
		p.inbox.PushBack(msg)
		if r.slot.matches(peer, hdr.Count, hdr.Tag) {
			r.slot.state = slotDelivered
			r.cond.Broadcast()
		}
	}
}

// decodeEmbedded decodes the (count, tag) pair carried as the payload of a
// WAITING or RECEIVED control frame.
func decodeEmbedded(payload []byte) (count, tag int32) {
	h := wire.Decode(payload)
	return h.Count, h.Tag
}

// encodeEmbedded encodes a (count, tag) pair for use as the payload of a
// WAITING or RECEIVED control frame.
func encodeEmbedded(count, tag int32) []byte {
	buf := make([]byte, wire.HeaderSize)
	wire.Header{Count: count, Tag: tag}.Encode(buf)
	return buf
}
