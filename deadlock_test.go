package mimpi

import (
	"sync"
	"testing"

	"github.com/fortytw2/leaktest"
)

// Scenario 6 (spec §8): mutual deadlock. With detection enabled, two ranks
// that each Recv on the other with no matching Send in flight must both
// observe ErrDeadlockDetected in bounded time.
func TestDeadlockDetected(t *testing.T) {
	defer leaktest.Check(t)()

	rts := newTestGroup(2, true)
	defer finalizeAll(rts)

	var wg sync.WaitGroup
	rcs := make([]Retcode, 2)
	for r := 0; r < 2; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			buf := make([]byte, 1)
			rcs[r] = rts[r].Recv(buf, 1, 1-r, 3)
		}(r)
	}
	wg.Wait()

	if rcs[0] != ErrDeadlockDetected {
		t.Errorf("rank 0: got %v, want %v", rcs[0], ErrDeadlockDetected)
	}
	if rcs[1] != ErrDeadlockDetected {
		t.Errorf("rank 1: got %v, want %v", rcs[1], ErrDeadlockDetected)
	}
}

// A Send issued concurrently with its peer's Recv, whichever reaches the
// other side first, must still satisfy that Recv normally; it must not be
// mistaken for a deadlock.
func TestDeadlockModeOrdinaryExchangeStillWorks(t *testing.T) {
	defer leaktest.Check(t)()

	rts := newTestGroup(2, true)
	defer finalizeAll(rts)

	done := make(chan Retcode, 1)
	go func() { done <- rts[1].Send([]byte{42}, 1, 0, 3) }()

	buf := make([]byte, 1)
	rc := rts[0].Recv(buf, 1, 1, 3)
	if rc != Success {
		t.Fatalf("Recv: %v", rc)
	}
	if buf[0] != 42 {
		t.Errorf("payload = %d, want 42", buf[0])
	}
	if sendRC := <-done; sendRC != Success {
		t.Errorf("Send: %v", sendRC)
	}
}

// Wildcard tag must never match a reserved (negative) tag's traffic; a Recv
// for a specific user tag does not see control frames.
func TestWildcardNeverMatchesReserved(t *testing.T) {
	if isReservedTag(AnyTag) {
		t.Fatalf("AnyTag must not be a reserved tag")
	}
	for _, tag := range []int32{tagNoMessage, tagBroadcast, tagDeadlock, tagWaiting, tagReceived, tagMax} {
		if !isReservedTag(tag) {
			t.Errorf("tag %d should be reserved", tag)
		}
		if messageMatches(Message{Count: 1, Tag: tag}, 1, AnyTag) {
			t.Errorf("wildcard recv must not match reserved tag %d", tag)
		}
	}
}
