package generator

import (
	"crypto/rand"
	"errors"
	"io"
	"math/big"
	mrand "math/rand/v2"
	"sync"
)

// MathRand is a seeded PCG source, safe for concurrent use.
type MathRand struct {
	mu  sync.Mutex
	rnd *mrand.Rand
}

// NewMathRand returns a deterministic source for seed.
func NewMathRand(seed uint64) *MathRand {
	return &MathRand{rnd: mrand.New(mrand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (r *MathRand) IntN(n int) (int, error) {
	if n <= 0 {
		return 0, errors.New("invalid bound")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rnd.IntN(n), nil
}

// CryptoRand draws from a cryptographic reader. A nil Reader means crypto/rand.
type CryptoRand struct {
	Reader io.Reader
}

func (r CryptoRand) IntN(n int) (int, error) {
	if n <= 0 {
		return 0, errors.New("invalid bound")
	}
	reader := r.Reader
	if reader == nil {
		reader = rand.Reader
	}
	v, err := rand.Int(reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}

// NewRand picks the source for a configured seed: 0 selects crypto/rand,
// anything else a reproducible PCG stream.
func NewRand(seed uint64) Rand {
	if seed == 0 {
		return CryptoRand{}
	}
	return NewMathRand(seed)
}
