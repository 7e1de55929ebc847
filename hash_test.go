package dyncol

import "testing"

func TestHashersAreSeeded(t *testing.T) {
	for _, h := range []Hasher{XXHash{}, FNV1a{}} {
		a := h.Hash32(1, "key")
		eq(t, h.Hash32(1, "key"), a)
		if h.Hash32(2, "key") == a {
			t.Errorf("%T: seed does not affect the hash", h)
		}
		if h.Hash32(1, "kez") == a {
			t.Errorf("%T: key does not affect the hash", h)
		}
	}
}

func TestProbeVisitsEveryBucket(t *testing.T) {
	for _, n := range []uint64{8, 16, 1024} {
		mask := n - 1
		for _, h := range []uint64{0, 1, 42, 0xdeadbeef} {
			seen := make(map[uint64]bool)
			idx := probeNext(h, mask)
			for range n {
				seen[idx] = true
				idx = probeNext(idx, mask)
			}
			if uint64(len(seen)) != n {
				t.Errorf("cap %d, hash %x: visited %d buckets, wanted %d", n, h, len(seen), n)
			}
		}
	}
}
