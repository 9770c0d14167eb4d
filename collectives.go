package mimpi

// The collectives share one binomial-style tree rooted, canonically, at
// rank 0: a process at rank r has a parent at r - pow2Floor(r) and children
// at r + pow2Floor(r)*2^k while the child stays in range. When a collective
// is rooted at a non-zero rank, rank 0 and the root logically swap places
// so the tree always anchors at a fixed shape.

// pow2Floor returns the largest power of two <= rank, or 0 for rank 0.
func pow2Floor(rank int) int {
	if rank == 0 {
		return 0
	}
	p := 1
	for p*2 <= rank {
		p *= 2
	}
	return p
}

// remapRank swaps rank 0 and root so that tree arithmetic computed as if
// rooted at 0 addresses the real participants of a collective rooted at
// root.
func remapRank(rank, root int) int {
	switch rank {
	case root:
		return 0
	case 0:
		return root
	default:
		return rank
	}
}

// treeLinks computes this process's parent (receiveFrom) and the sequence of
// its children (first child childStart, first step childPower, the step
// doubling after each child) in the canonical rank-0-rooted tree, remapped
// for root.
func treeLinks(worldRank, root int) (receiveFrom, childStart, childPower int) {
	p := pow2Floor(worldRank)
	receiveFrom = worldRank - p
	childPower = p * 2
	childStart = worldRank + childPower

	switch {
	case worldRank == root:
		childPower = 1
		childStart = 1
	case worldRank == 0:
		rp := pow2Floor(root)
		receiveFrom = root - rp
		childPower = rp * 2
		childStart = root + childPower
	}
	return
}

// communicationLoop runs one phase (upward toward the root, or downward
// away from it) of a tree collective for the given reserved tag. Upward:
// receive data from every child, then (unless we are the root) send it to
// our parent. Downward: (unless we are the root) receive from our parent,
// then send to every child. Any ErrRemoteFinished encountered aborts the
// collective immediately without attempting to complete partially.
func (r *Runtime) communicationLoop(data []byte, count int32, root int, tag int32, upward bool) Retcode {
	worldRank, worldSize := r.rank, r.size
	receiveFrom, startFrom, power := treeLinks(worldRank, root)

	recvChild := func(child int) Retcode {
		return r.recv(remapRank(child, root), count, tag, data)
	}
	sendChild := func(child int) Retcode {
		return r.sendFrame(remapRank(child, root), tag, count, data)
	}
	recvParent := func() Retcode { return r.recv(remapRank(receiveFrom, root), count, tag, data) }
	sendParent := func() Retcode { return r.sendFrame(remapRank(receiveFrom, root), tag, count, data) }

	if upward {
		for start, step := startFrom, power; start < worldSize; start, step = start+step, step*2 {
			if rc := recvChild(start); rc != Success {
				return rc
			}
		}
		if worldRank != root {
			if rc := sendParent(); rc != Success {
				return rc
			}
		}
		return Success
	}

	if worldRank != root {
		if rc := recvParent(); rc != Success {
			return rc
		}
	}
	for start, step := startFrom, power; start < worldSize; start, step = start+step, step*2 {
		if rc := sendChild(start); rc != Success {
			return rc
		}
	}
	return Success
}

// Barrier blocks every process in the group until all of them have called
// Barrier.
func (r *Runtime) Barrier() Retcode {
	if rc := r.communicationLoop(nil, 0, 0, tagNoMessage, true); rc != Success {
		return rc
	}
	return r.communicationLoop(nil, 0, 0, tagNoMessage, false)
}

// Bcast distributes count bytes of data from root to every other process,
// overwriting data on non-root callers.
func (r *Runtime) Bcast(data []byte, count, root int) Retcode {
	if rc := r.validateRootRank(root); rc != Success {
		return rc
	}
	if rc := r.communicationLoop(nil, 0, root, tagNoMessage, true); rc != Success {
		return rc
	}
	return r.communicationLoop(data, int32(count), root, tagBroadcast, false)
}

// Reduce combines count bytes of send across every process with op,
// elementwise, and writes the result into recv on root. recv is untouched
// on non-root callers.
func (r *Runtime) Reduce(send, recv []byte, count int, op Op, root int) Retcode {
	if rc := r.validateRootRank(root); rc != Success {
		return rc
	}

	working := make([]byte, count)
	copy(working, send[:count])

	if rc := r.communicationLoop(working, int32(count), root, op.tag(), true); rc != Success {
		return rc
	}
	if r.rank == root {
		copy(recv[:count], working)
	}
	return r.communicationLoop(nil, 0, root, tagNoMessage, false)
}
