package mimpi

import "testing"

func TestPow2Floor(t *testing.T) {
	cases := map[int]int{0: 0, 1: 1, 2: 2, 3: 2, 4: 4, 7: 4, 8: 8, 15: 8, 16: 16, 17: 16}
	for rank, want := range cases {
		if got := pow2Floor(rank); got != want {
			t.Errorf("pow2Floor(%d) = %d, want %d", rank, got, want)
		}
	}
}

func TestRemapRank(t *testing.T) {
	if got := remapRank(3, 3); got != 0 {
		t.Errorf("remapRank(root, root) = %d, want 0", got)
	}
	if got := remapRank(0, 3); got != 3 {
		t.Errorf("remapRank(0, root) = %d, want root", got)
	}
	if got := remapRank(2, 3); got != 2 {
		t.Errorf("remapRank(other, root) = %d, want unchanged", got)
	}
}

// Every non-root rank must have exactly one parent link, and every rank's
// children must be strictly greater than itself in the canonical tree
// (root 0, no remap) so the traversal in communicationLoop terminates.
func TestTreeLinksCoverEveryRank(t *testing.T) {
	const n = 13
	seenAsChild := make(map[int]bool)
	for rank := 1; rank < n; rank++ {
		parent, _, _ := treeLinks(rank, 0)
		if parent >= rank {
			t.Errorf("rank %d has parent %d, want < rank", rank, parent)
		}
	}
	for rank := 0; rank < n; rank++ {
		_, start, step := treeLinks(rank, 0)
		for c := start; c < n; c, step = c+step, step*2 {
			if c <= rank {
				t.Errorf("rank %d child %d should be > rank", rank, c)
			}
			seenAsChild[c] = true
		}
	}
	for rank := 1; rank < n; rank++ {
		if !seenAsChild[rank] {
			t.Errorf("rank %d is never reached as a child from the root", rank)
		}
	}
}
