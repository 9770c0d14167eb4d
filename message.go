package mimpi

import "container/list"

// Message is a fully-received inbound frame waiting to be matched by Recv.
// A buffered Message owns its Payload exclusively; Recv copies the payload
// out and discards the Message on a successful match.
type Message struct {
	Tag     int32
	Count   int32
	Source  int
	Payload []byte
}

// messageMatches reports whether a buffered message satisfies a Recv asking
// for (count, tag). A wildcard request (tag == AnyTag) matches any ordinary
// user-tagged message but never a reserved-tag one (NoMessage, Broadcast, a
// reduction tag): those are only ever fetched by the collective that posted
// the exact-tag Recv expecting them, never handed to a user's wildcard call.
func messageMatches(m Message, count int32, tag int32) bool {
	if m.Count != count {
		return false
	}
	if tag == AnyTag {
		return !isReservedTag(m.Tag)
	}
	return m.Tag == tag
}

// pendingSend records a Send of a user tag that has not yet been confirmed
// RECEIVED by the peer. Only maintained when deadlock detection is enabled.
type pendingSend struct {
	Tag   int32
	Count int32
}

// advertisedWait records a WAITING frame from a peer: they are blocked on a
// Recv we have not yet satisfied with a matching Send. A deadlock
// placeholder (pushed when a DEADLOCK control frame arrives) reuses this
// type with Deadlock set, so Recv can pop it symmetrically with the normal
// case.
type advertisedWait struct {
	Tag      int32
	Count    int32
	Deadlock bool
}

// peerState is the per-remote-rank bookkeeping described in the data model:
// an inbound message buffer in arrival order, and (deadlock mode only) the
// outstanding-sends and advertised-waits buffers shared with that peer.
// peerState is not itself safe for concurrent use; callers hold the
// Runtime's single mutex.
type peerState struct {
	inbox *list.List // of Message, oldest at Front

	pendingSends    *list.List // of pendingSend, oldest at Front
	advertisedWaits *list.List // of advertisedWait, oldest at Front

	closed bool // peer's write end has closed; monotonic, false->true once
}

func newPeerState(deadlockDetection bool) *peerState {
	p := &peerState{inbox: list.New()}
	if deadlockDetection {
		p.pendingSends = list.New()
		p.advertisedWaits = list.New()
	}
	return p
}

// findInbox returns the list element of the oldest buffered Message
// matching (count, tag), or nil if none match.
func (p *peerState) findInbox(count, tag int32) *list.Element {
	for e := p.inbox.Front(); e != nil; e = e.Next() {
		if messageMatches(e.Value.(Message), count, tag) {
			return e
		}
	}
	return nil
}

// removePendingSend searches the full outstanding-sends list for an entry
// matching (count, tag) and removes it if found, reporting whether it was
// found. Used when a RECEIVED control frame arrives from this peer, which
// needs an exact match anywhere in the list, not just the head. A WAITING
// frame is checked against the whole list too, but leaves the record in
// place (see handleFrame).
func (p *peerState) removePendingSend(count, tag int32) bool {
	for e := p.pendingSends.Front(); e != nil; e = e.Next() {
		ps := e.Value.(pendingSend)
		if ps.Count == count && ps.Tag == tag {
			p.pendingSends.Remove(e)
			return true
		}
	}
	return false
}

// dropMatchingAdvertisedWaitHead drops the head of the advertised-wait
// buffer if it matches (count, tag), reporting whether it did. This is the
// head-only short-circuit described in the specification's design notes: a
// Send about to go out checks only the oldest thing the peer is waiting for
// from us, not the whole buffer.
func (p *peerState) dropMatchingAdvertisedWaitHead(count, tag int32) bool {
	e := p.advertisedWaits.Front()
	if e == nil {
		return false
	}
	w := e.Value.(advertisedWait)
	if w.Count == count && w.Tag == tag {
		p.advertisedWaits.Remove(e)
		return true
	}
	return false
}

// headAdvertisedWaitIsUserTag reports whether the oldest advertised wait
// from this peer is for a non-reserved (ordinary user) tag, the condition
// that makes a newly-arriving local Recv mutually blocking.
func (p *peerState) headAdvertisedWaitIsUserTag() bool {
	e := p.advertisedWaits.Front()
	if e == nil {
		return false
	}
	return e.Value.(advertisedWait).Tag >= AnyTag
}

func (p *peerState) popFrontAdvertisedWait() {
	if e := p.advertisedWaits.Front(); e != nil {
		p.advertisedWaits.Remove(e)
	}
}

func (p *peerState) pushAdvertisedWait(w advertisedWait) {
	p.advertisedWaits.PushBack(w)
}

func (p *peerState) pushPendingSend(ps pendingSend) {
	p.pendingSends.PushBack(ps)
}
