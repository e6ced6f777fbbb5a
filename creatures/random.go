package creatures

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"sync"
)

// Rand is the randomness seam used for fallback picks and action-image framing.
type Rand interface {
	// IntN returns a value in [0, n). n is always > 0.
	IntN(n int) int
}

type lockedRand struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func (r *lockedRand) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.IntN(n)
}

// NewRand returns a goroutine-safe source whose sequence is fixed by seed.
func NewRand(seed uint64) Rand {
	return &lockedRand{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// NewSeededRand returns a goroutine-safe source seeded from crypto/rand.
func NewSeededRand() Rand {
	var buf [16]byte
	if _, err := crand.Read(buf[:]); err != nil {
		return &lockedRand{rng: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
	}
	return &lockedRand{rng: rand.New(rand.NewPCG(
		binary.LittleEndian.Uint64(buf[:8]),
		binary.LittleEndian.Uint64(buf[8:]),
	))}
}

func pick[T any](r Rand, items []T) T {
	return items[r.IntN(len(items))]
}
