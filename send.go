package mimpi

import "github.com/Froxyy-dev/MIMUW-MIMPI/internal/wire"

// Send transmits count bytes of data to dest with the given tag. Send
// blocks until the frame has been written to the pipe; it does not wait for
// dest to call Recv. A process may not send to itself.
func (r *Runtime) Send(data []byte, count, dest, tag int) Retcode {
	if rc := r.validatePeerRank(dest); rc != Success {
		return rc
	}

	count32, tag32 := int32(count), int32(tag)

	if r.deadlockEnabled && tag32 >= AnyTag {
		r.mu.Lock()
		p := r.peers[dest]
		p.dropMatchingAdvertisedWaitHead(count32, tag32)
		p.pushPendingSend(pendingSend{Count: count32, Tag: tag32})
		r.mu.Unlock()
	}

	return r.sendFrame(dest, tag32, count32, data)
}

// sendFrame writes one frame (header, plus payload for payload-bearing
// tags) to dest's pipe, outside the runtime mutex so a slow peer never
// blocks a receiver goroutine. It is used both by the public Send and by
// the control-tag traffic of the deadlock protocol and the collectives.
func (r *Runtime) sendFrame(dest int, tag, count int32, data []byte) Retcode {
	ch := r.channels[dest]

	var payload []byte
	if tag != tagNoMessage && tag != tagDeadlock {
		payload = data[:count]
	}
	if err := wire.WriteFrame(ch.Write, wire.Header{Count: count, Tag: tag}, payload); err != nil {
		return ErrRemoteFinished
	}
	return Success
}

func (r *Runtime) sendNoMessage(dest int) Retcode {
	return r.sendFrame(dest, tagNoMessage, 0, nil)
}

func (r *Runtime) sendWaiting(dest int, count, tag int32) Retcode {
	return r.sendFrame(dest, tagWaiting, wire.HeaderSize, encodeEmbedded(count, tag))
}

func (r *Runtime) sendReceived(dest int, count, tag int32) Retcode {
	return r.sendFrame(dest, tagReceived, wire.HeaderSize, encodeEmbedded(count, tag))
}

func (r *Runtime) sendDeadlock(dest int) Retcode {
	return r.sendFrame(dest, tagDeadlock, 0, nil)
}
