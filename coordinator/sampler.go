package coordinator

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"math"

	"github.com/raddi-network/raddi/db"
	"github.com/raddi-network/raddi/raddi"
)

// ErrSamplerOverflow is returned by weightedSampler.Initialize when the
// supplied weights overflow uint64 when summed.
var ErrSamplerOverflow = errors.New("coordinator: sampler weights overflow")

// weightedSampler adapts the teacher's utils/sampler.WeightedWithoutReplacement:
// the same Initialize(weights []uint64)/Sample(size int) ([]int, bool)
// shape, drawing indices rather than values directly. It draws from
// crypto/rand instead of a seeded math/rand.Source — there is no
// reproducibility requirement here the way there is for the teacher's
// consensus sampling, and peer selection should not be predictable to a
// peer that can guess the seed.
type weightedSampler struct {
	weights     []uint64
	totalWeight uint64
}

// Initialize records weights, one per index, summing them up front so
// Sample can reject an oversized draw immediately.
func (w *weightedSampler) Initialize(weights []uint64) error {
	w.weights = append([]uint64(nil), weights...)
	w.totalWeight = 0
	for _, weight := range weights {
		if weight > math.MaxUint64-w.totalWeight {
			return ErrSamplerOverflow
		}
		w.totalWeight += weight
	}
	return nil
}

// Sample draws size indices without replacement over the weight space —
// as in the teacher's implementation, this can return the same index
// twice if that index's weight span is wide enough to absorb two
// distinct draws, so callers that need distinct indices dedup the result.
func (w *weightedSampler) Sample(size int) ([]int, bool) {
	if size == 0 {
		return []int{}, true
	}
	if w.totalWeight == 0 || uint64(size) > w.totalWeight {
		return nil, false
	}

	indices := make([]int, size)
	used := make(map[uint64]bool, size)
	for i := 0; i < size; i++ {
		var draw uint64
		for {
			draw = randomUint64() % w.totalWeight
			if !used[draw] {
				used[draw] = true
				break
			}
		}
		cumulative := uint64(0)
		for j, weight := range w.weights {
			cumulative += weight
			if draw < cumulative {
				indices[i] = j
				break
			}
		}
	}
	return indices, true
}

func randomUint64() uint64 {
	var buf [8]byte
	_, _ = rand.Read(buf[:])
	return binary.LittleEndian.Uint64(buf[:])
}

// levelWeight assigns the relative likelihood a level's peers are offered
// in a "peers" reply, favoring more-trusted tiers without starving newer
// ones entirely. Scaled to integer weight units for weightedSampler.
var levelWeight = map[db.PeerLevel]uint64{
	db.LevelCore:        1000,
	db.LevelEstablished: 600,
	db.LevelValidated:   300,
	db.LevelAnnounced:   100,
}

// WeightedSample draws up to n distinct addresses across levels, weighted
// by levelWeight, without replacement.
func WeightedSample(sets map[db.PeerLevel]*db.PeerSet, n int) []raddi.Address {
	var pool []raddi.Address
	var weights []uint64
	for level, set := range sets {
		w, ok := levelWeight[level]
		if !ok {
			continue
		}
		for _, addr := range set.Sample(1 << 16) {
			pool = append(pool, addr)
			weights = append(weights, w)
		}
	}
	if len(pool) == 0 {
		return nil
	}

	sampler := &weightedSampler{}
	if err := sampler.Initialize(weights); err != nil {
		return nil
	}
	if n > len(pool) {
		n = len(pool)
	}

	seen := make(map[int]bool, n)
	out := make([]raddi.Address, 0, n)
	// The underlying weight-space draw can repeat an index; keep asking
	// for one more than still needed until the distinct set fills up, the
	// pool is exhausted, or a bounded number of rounds pass without
	// reaching n (skewed weights can make the remaining indices rare).
	for round := 0; round < len(pool)+8 && len(out) < n && len(seen) < len(pool); round++ {
		remaining := n - len(out)
		indices, ok := sampler.Sample(remaining)
		if !ok {
			break
		}
		for _, idx := range indices {
			if seen[idx] {
				continue
			}
			seen[idx] = true
			out = append(out, pool[idx])
		}
	}
	return out
}
