package mimpi

import (
	"fmt"
	"os"
	"sync"

	"github.com/creachadair/taskgroup"

	"github.com/Froxyy-dev/MIMUW-MIMPI/mimpilog"
	"github.com/Froxyy-dev/MIMUW-MIMPI/pipechannel"
)

// newTestGroup wires up n in-process Runtimes connected by real OS pipes,
// bypassing Init's environment-variable discovery (there is no launched
// process group in a unit test) but exercising exactly the same channel,
// receiver-goroutine, and wait-slot machinery Init sets up.
func newTestGroup(n int, deadlock bool) []*Runtime {
	channels := make([][]pipechannel.Channel, n) // channels[a][b]: a's channel to b
	for i := range channels {
		channels[i] = make([]pipechannel.Channel, n)
	}

	for a := 0; a < n; a++ {
		for b := a + 1; b < n; b++ {
			abR, abW, err := os.Pipe() // a -> b
			if err != nil {
				panic(err)
			}
			baR, baW, err := os.Pipe() // b -> a
			if err != nil {
				panic(err)
			}
			channels[a][b] = pipechannel.Channel{Read: baR, Write: abW}
			channels[b][a] = pipechannel.Channel{Read: abR, Write: baW}
		}
	}

	rts := make([]*Runtime, n)
	for rank := 0; rank < n; rank++ {
		rt := &Runtime{
			rank:            rank,
			size:            n,
			deadlockEnabled: deadlock,
			peers:           make([]*peerState, n),
			channels:        channels[rank],
			log:             mimpilog.Discard(),
		}
		rt.cond = sync.NewCond(&rt.mu)
		for i := 0; i < n; i++ {
			if i == rank {
				continue
			}
			rt.peers[i] = newPeerState(deadlock)
		}
		rts[rank] = rt
	}

	for rank := 0; rank < n; rank++ {
		rt := rts[rank]
		rt.tasks = taskgroup.New(nil)
		for i := 0; i < n; i++ {
			if i == rank {
				continue
			}
			peer := i
			rt.tasks.Go(func() error {
				rt.runReceiver(peer)
				return nil
			})
		}
	}

	return rts
}

// finalizeAll finalizes every Runtime concurrently: each Finalize joins its
// own receiver goroutines, which exit only once every peer has closed its
// write ends, so finalizing the ranks one after another would block on the
// first.
func finalizeAll(rts []*Runtime) {
	errs := make([]error, len(rts))
	var wg sync.WaitGroup
	for i, rt := range rts {
		wg.Add(1)
		go func(i int, rt *Runtime) {
			defer wg.Done()
			errs[i] = rt.Finalize()
		}(i, rt)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			panic(fmt.Sprintf("Finalize: %v", err))
		}
	}
}
