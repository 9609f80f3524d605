// Package sampling implements weighted random selection primitives used by
// the placement resolver and the decision gate. Randomness is injected
// through the Source interface so tests can supply seeded or scripted values.
package sampling

import (
	"math/rand"
	"sync"
)

// Source yields uniform random values in [0, 1). *rand.Rand satisfies it.
type Source interface {
	Float64() float64
}

// NewSource returns a Source seeded with the given value. Not safe for
// concurrent use; see NewLockedSource.
func NewSource(seed int64) Source {
	return rand.New(rand.NewSource(seed))
}

type lockedSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func (s *lockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

// NewLockedSource returns a Source safe for concurrent use, for sharing
// across request handlers.
func NewLockedSource(seed int64) Source {
	return &lockedSource{rng: rand.New(rand.NewSource(seed))}
}

// selectIndex draws one index with probability proportional to its weight.
// It returns -1 when items is empty or the total weight is not positive.
// Items with weight 0 are never drawn except as the deterministic rounding
// fallback: if floating-point error leaves the running remainder positive
// after the walk, the last item wins.
func selectIndex[T any](rng Source, items []T, weight func(T) float64) int {
	if len(items) == 0 {
		return -1
	}

	var total float64
	for _, it := range items {
		if w := weight(it); w > 0 {
			total += w
		}
	}
	if total <= 0 {
		return -1
	}

	remainder := rng.Float64() * total
	for i, it := range items {
		w := weight(it)
		if w <= 0 {
			continue
		}
		remainder -= w
		if remainder <= 0 {
			return i
		}
	}
	// Rounding left the remainder positive; fall back to the last item.
	return len(items) - 1
}

// SelectOne draws one item with probability proportional to its weight, as
// reported by the weight function. The second return is false when items is
// empty or the total weight is not positive.
func SelectOne[T any](rng Source, items []T, weight func(T) float64) (T, bool) {
	if i := selectIndex(rng, items, weight); i >= 0 {
		return items[i], true
	}
	var zero T
	return zero, false
}

// SelectMany draws up to k distinct items without replacement, recomputing
// the total weight for each draw. When k >= len(items) all items are returned
// in arbitrary order without sampling. The result never contains duplicates.
// Draws stop early once no positively-weighted candidates remain. The O(k*n)
// cost of re-walking the pool is fine at placement scale.
func SelectMany[T any](rng Source, items []T, weight func(T) float64, k int) []T {
	if k <= 0 || len(items) == 0 {
		return nil
	}
	if k >= len(items) {
		all := make([]T, len(items))
		copy(all, items)
		return all
	}

	pool := make([]T, len(items))
	copy(pool, items)

	picked := make([]T, 0, k)
	for len(picked) < k {
		i := selectIndex(rng, pool, weight)
		if i < 0 {
			break
		}
		picked = append(picked, pool[i])
		pool = append(pool[:i], pool[i+1:]...)
	}
	return picked
}
