package mimpi

// Recv blocks until a message matching (count, source, tag) is available,
// then copies its payload into buf (or, for a reduction tag, combines the
// incoming payload into buf elementwise). tag == AnyTag matches any
// non-reserved tag buffered for source.
func (r *Runtime) Recv(buf []byte, count, source, tag int) Retcode {
	if rc := r.validatePeerRank(source); rc != Success {
		return rc
	}
	return r.recv(source, int32(count), int32(tag), buf)
}

// recv is the shared implementation behind the public Recv and the
// collectives, which call it directly with reserved control tags
// (NoMessage, Broadcast, the reduction tags) that a user-facing caller may
// not pass itself.
func (r *Runtime) recv(source int, count, tag int32, buf []byte) Retcode {
	r.mu.Lock()
	p := r.peers[source]

	if e := p.findInbox(count, tag); e != nil {
		msg := e.Value.(Message)
		p.inbox.Remove(e)
		r.mu.Unlock()
		return r.finishRecv(buf, source, count, tag, msg)
	}

	if p.closed {
		r.mu.Unlock()
		return ErrRemoteFinished
	}

	r.slot.arm(source, count, tag)

	deadlockProtocol := r.deadlockEnabled && tag >= AnyTag
	if deadlockProtocol && p.headAdvertisedWaitIsUserTag() {
		p.popFrontAdvertisedWait()
		r.slot.reset()
		r.mu.Unlock()
		r.log.Info().Int("peer", source).Msg("deadlock detected")
		r.sendDeadlock(source)
		return ErrDeadlockDetected
	}
	r.mu.Unlock()

	if deadlockProtocol {
		if rc := r.sendWaiting(source, count, tag); rc == ErrRemoteFinished {
			r.mu.Lock()
			r.slot.reset()
			r.mu.Unlock()
			return ErrRemoteFinished
		}
	}

	r.mu.Lock()
	for r.slot.state == slotWaiting {
		r.cond.Wait()
	}
	state := r.slot.state

	switch state {
	case slotDeadlocked:
		p.popFrontAdvertisedWait()
		r.slot.reset()
		r.mu.Unlock()
		return ErrDeadlockDetected

	case slotPeerClosed:
		r.slot.reset()
		r.mu.Unlock()
		return ErrRemoteFinished

	default: // slotDelivered
		e := p.findInbox(count, tag)
		msg := e.Value.(Message)
		p.inbox.Remove(e)
		r.slot.reset()
		r.mu.Unlock()
		return r.finishRecv(buf, source, count, tag, msg)
	}
}

// finishRecv applies the delivered message to the caller's buffer: a plain
// copy for ordinary tags, an elementwise reduction for reduction tags, and
// (under deadlock detection, for user tags) acknowledges the message with a
// RECEIVED control frame, performed outside the runtime mutex.
func (r *Runtime) finishRecv(buf []byte, source int, count, tag int32, msg Message) Retcode {
	if r.deadlockEnabled && tag >= AnyTag {
		r.sendReceived(source, count, tag)
	}

	switch {
	case isReductionTag(tag):
		applyOp(Op(tagMax-tag), buf[:count], msg.Payload)
	case tag != tagNoMessage:
		copy(buf[:count], msg.Payload)
	}
	return Success
}
