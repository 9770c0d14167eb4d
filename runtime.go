// Package mimpi implements a minimal message-passing interface for a
// fixed-size group of cooperating processes on a single host, executing one
// parallel Go program. It provides point-to-point Send/Recv, the collective
// primitives Barrier, Bcast, and Reduce, and an optional deadlock detector
// for synchronous point-to-point exchanges.
//
// Processes communicate exclusively over the pre-established byte-stream
// pipes wired up by the mimpirun launcher (see cmd/mimpirun); there is no
// network and no dynamic process membership. A process's interaction with
// the library is single-threaded: Init must be called before any other
// function, and at most one goroutine may call into a given *Runtime's
// methods at a time, except that the runtime's own receiver goroutines run
// concurrently in the background.
//
//	rt, err := mimpi.Init(false)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer rt.Finalize()
//
//	if rt.WorldRank() == 0 {
//		rt.Send(payload, len(payload), 1, 7)
//	} else {
//		buf := make([]byte, n)
//		rt.Recv(buf, n, 0, 7)
//	}
package mimpi

import (
	"fmt"
	"sync"

	"github.com/creachadair/taskgroup"
	"github.com/rs/zerolog"

	"github.com/Froxyy-dev/MIMUW-MIMPI/mimpilog"
	"github.com/Froxyy-dev/MIMUW-MIMPI/pipechannel"
)

// Runtime is the process-wide MIMPI state: rank, size, one channel and one
// peerState per remote peer, and the single mutex/condvar pair that guards
// all of it. It is created by Init and torn down by Finalize.
type Runtime struct {
	rank int
	size int

	deadlockEnabled bool

	mu   sync.Mutex
	cond *sync.Cond

	peers    []*peerState           // indexed by rank; nil at own rank
	channels []pipechannel.Channel // indexed by rank; zero value at own rank
	slot     waitSlot

	tasks *taskgroup.Group

	log zerolog.Logger
}

// Init allocates runtime state, wires up the pipes published by the
// launcher, and spawns one receiver goroutine per remote peer. Init must be
// called before any other Runtime method, and must only be called once per
// process.
func Init(enableDeadlockDetection bool) (*Runtime, error) {
	size, err := worldSizeFromEnv()
	if err != nil {
		return nil, err
	}
	rank, err := worldRankFromEnv()
	if err != nil {
		return nil, err
	}
	if rank >= size {
		return nil, fmt.Errorf("mimpi: rank %d out of range for world size %d", rank, size)
	}
	enableDeadlockDetection = enableDeadlockDetection || DeadlockDetectionFromEnv()

	rt := &Runtime{
		rank:            rank,
		size:            size,
		deadlockEnabled: enableDeadlockDetection,
		peers:           make([]*peerState, size),
		channels:        make([]pipechannel.Channel, size),
		log:             mimpilog.Discard(),
	}
	rt.cond = sync.NewCond(&rt.mu)

	for i := 0; i < size; i++ {
		if i == rank {
			continue
		}
		rt.peers[i] = newPeerState(enableDeadlockDetection)
		rt.channels[i] = pipechannel.FromFDs(readFD(rank, i), writeFD(rank, i), fmt.Sprintf("peer%d", i))
	}

	rt.tasks = taskgroup.New(nil)
	for i := 0; i < size; i++ {
		if i == rank {
			continue
		}
		peer := i
		rt.tasks.Go(func() error {
			rt.runReceiver(peer)
			return nil
		})
	}

	return rt, nil
}

// Finalize closes all local write ends, which induces peer-close on the
// remote read sides and thereby terminates their receiver goroutines in
// bounded time, then joins this process's own receiver goroutines and frees
// runtime state. After Finalize, no further Runtime methods may be called.
func (r *Runtime) Finalize() error {
	var firstErr error
	for i, ch := range r.channels {
		if i == r.rank {
			continue
		}
		if err := ch.CloseWrite(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	r.tasks.Wait()
	return firstErr
}

// WorldSize returns the total number of processes in the group, or 0 if the
// receiver is nil (mirroring an uninitialized runtime, for programs that
// want to probe whether they are running under mimpirun before calling
// Init).
func (r *Runtime) WorldSize() int {
	if r == nil {
		return 0
	}
	return r.size
}

// WorldRank returns this process's rank, or -1 if the receiver is nil.
func (r *Runtime) WorldRank() int {
	if r == nil {
		return -1
	}
	return r.rank
}

// validatePeerRank checks a Send/Recv-style rank argument: it must be in
// range and must not be the caller's own rank.
func (r *Runtime) validatePeerRank(rank int) Retcode {
	if rank < 0 || rank >= r.size {
		return ErrNoSuchRank
	}
	if rank == r.rank {
		return ErrAttemptedSelfOp
	}
	return Success
}

// validateRootRank checks a collective's root argument: it must be in
// range, but may legitimately equal the caller's own rank.
func (r *Runtime) validateRootRank(rank int) Retcode {
	if rank < 0 || rank >= r.size {
		return ErrNoSuchRank
	}
	return Success
}
