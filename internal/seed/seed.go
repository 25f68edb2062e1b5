// Package seed supplies random seeds for simulator replicas.
package seed

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
)

// MaxSeed is the largest seed handed to the simulator.
const MaxSeed = 2147483646

// Source produces a random integer in [0, MaxSeed].
type Source interface {
	Seed() (int64, error)
}

// CryptoSource draws seeds from crypto/rand. Seeds are not reproducible
// across runs.
type CryptoSource struct{}

var bound = big.NewInt(MaxSeed + 1)

// Seed draws a uniform seed in [0, MaxSeed]
func (CryptoSource) Seed() (int64, error) {
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return 0, fmt.Errorf("failed to draw random seed: %w", err)
	}
	return n.Int64(), nil
}

// Fixed returns seeds from a list in order, wrapping around. Used where a
// deterministic sequence is needed.
type Fixed struct {
	Seeds []int64

	mu   sync.Mutex
	next int
}

// Seed returns the next seed in the list
func (f *Fixed) Seed() (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Seeds) == 0 {
		return 0, fmt.Errorf("fixed seed source is empty")
	}
	s := f.Seeds[f.next%len(f.Seeds)]
	f.next++
	return s, nil
}
