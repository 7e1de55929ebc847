package dyncol

import (
	"encoding/binary"
	"hash/fnv"
	"io"

	"github.com/cespare/xxhash/v2"
)

// Hasher computes the seeded 32-bit hash of a map key. Implementations must
// be deterministic for a given (seed, key) and well distributed in the low
// bits, which select the first probe.
type Hasher interface {
	Hash32(seed uint32, key string) uint32
}

// XXHash is the default Hasher: seeded xxHash64, folded to 32 bits.
type XXHash struct{}

func (XXHash) Hash32(seed uint32, key string) uint32 {
	d := xxhash.NewWithSeed(uint64(seed))
	d.WriteString(key)
	return fold64(d.Sum64())
}

// FNV1a is a Hasher based on 32-bit FNV-1a with the seed hashed in first.
type FNV1a struct{}

func (FNV1a) Hash32(seed uint32, key string) uint32 {
	h := fnv.New32a()
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], seed)
	h.Write(buf[:])
	io.WriteString(h, key)
	return h.Sum32()
}

func fold64(v uint64) uint32 {
	return uint32(v) ^ uint32(v>>32)
}

const (
	lcgMultiplier = 6364136223846793005
	lcgIncrement  = 1
)

// probeNext maps x to the next bucket index. Modulo a power of two the LCG
// has full period, so starting anywhere it visits every bucket once per
// capacity steps.
func probeNext(x, mask uint64) uint64 {
	return (lcgMultiplier*x + lcgIncrement) & mask
}
