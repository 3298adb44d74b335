package grading

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Shuffler performs unbiased Fisher–Yates shuffles over an injectable source.
// It is safe for concurrent use.
type Shuffler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewShuffler wraps src. A nil source is seeded from the clock.
func NewShuffler(src rand.Source) *Shuffler {
	if src == nil {
		now := uint64(time.Now().UnixNano())
		src = rand.NewPCG(now, now>>32|now<<32)
	}
	return &Shuffler{rng: rand.New(src)}
}

// Shuffle permutes n elements through swap.
func (s *Shuffler) Shuffle(n int, swap func(i, j int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := n - 1; i > 0; i-- {
		j := s.rng.IntN(i + 1)
		swap(i, j)
	}
}

// ShuffleSlice shuffles items in place.
func ShuffleSlice[T any](s *Shuffler, items []T) {
	s.Shuffle(len(items), func(i, j int) {
		items[i], items[j] = items[j], items[i]
	})
}
