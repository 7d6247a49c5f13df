package proof

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"
)

// maxPathLen bounds the length of a path followed through the cuckoo
// hashtable before giving up on an edge as part of a degenerate cycle.
const maxPathLen = 8192

// edge is one graph edge: U-partition node index and V-partition node index,
// both in [0, 2^(complexity-1)).
type edge struct {
	u, v uint64
}

// Solve searches for a Cuckoo Cycle of even length in [MinLength, MaxLength]
// over the graph derived from seed at the given complexity, spending no more
// than budget wall-clock time. It returns the found proof and true, or false
// if no cycle was found within budget.
//
// Edge generation is sharded across GOMAXPROCS goroutines; cycle detection
// itself is inherently sequential (it mutates a shared union-find table) and
// runs on the calling goroutine, checking ctx for cancellation periodically.
func Solve(ctx context.Context, seed [64]byte, complexity int, budget time.Duration) (Header, []byte, bool) {
	if complexity < MinComplexity || complexity > MaxComplexity {
		panic("proof: complexity out of range")
	}

	deadline := time.Now().Add(budget)
	k0, k1 := keys(seed)

	edges := generateEdges(k0, k1, complexity)

	cuckoo := make(map[uint64]uint64, len(edges)*2)
	var us, vs [maxPathLen]uint64

	for nonce := range edges {
		if nonce&0xFFF == 0 {
			select {
			case <-ctx.Done():
				return Header{}, nil, false
			default:
			}
			if time.Now().After(deadline) {
				return Header{}, nil, false
			}
		}

		u0 := node(edges[nonce].u, 0)
		v0 := node(edges[nonce].v, 1)

		nu := followPath(cuckoo, u0, us[:])
		nv := followPath(cuckoo, v0, vs[:])
		if nu < 0 || nv < 0 {
			continue // path too long, degenerate edge; skip
		}

		if us[nu] == vs[nv] {
			min := nu
			if nv < min {
				min = nv
			}
			a, b := nu-min, nv-min
			for us[a] != vs[b] {
				a--
				b--
			}
			length := a + b + 1
			if length >= MinLength && length <= MaxLength && length%2 == 0 {
				if cycle, ok := extractCycle(edges, nonce, us[:a+1], vs[:b+1]); ok {
					hdr := Header{Length: length, Complexity: complexity, Algorithm: CuckooCycle}
					return hdr, encodeCycle(cycle), true
				}
			}
			continue
		}

		if nu < nv {
			for i := nu; i > 0; i-- {
				cuckoo[us[i]] = us[i-1]
			}
			cuckoo[u0] = v0
		} else {
			for i := nv; i > 0; i-- {
				cuckoo[vs[i]] = vs[i-1]
			}
			cuckoo[v0] = u0
		}
	}

	return Header{}, nil, false
}

// followPath walks the cuckoo union-find table starting at u, recording the
// chain in out, and returns the index of the last entry written, or -1 if
// the chain exceeds maxPathLen (a degenerate, practically-impossible edge).
func followPath(cuckoo map[uint64]uint64, u uint64, out []uint64) int {
	n := 0
	for {
		if n >= len(out) {
			return -1
		}
		out[n] = u
		next, ok := cuckoo[u]
		if !ok {
			return n
		}
		u = next
		n++
	}
}

// extractCycle re-derives the list of edge nonces forming the just-closed
// cycle by matching consecutive (u,v) pairs along the two recorded paths
// plus the closing edge.
func extractCycle(edges []edge, closingNonce int, us, vs []uint64) ([]uint32, bool) {
	var nonces []uint32
	nonces = append(nonces, uint32(closingNonce))

	appendChain := func(path []uint64) bool {
		for i := 0; i+1 < len(path); i++ {
			n, ok := findEdge(edges, path[i]>>1, path[i+1]>>1)
			if !ok {
				return false
			}
			nonces = append(nonces, n)
		}
		return true
	}
	if !appendChain(us) || !appendChain(vs) {
		return nil, false
	}
	if len(nonces) < MinLength || len(nonces)%2 != 0 {
		return nil, false
	}
	sort.Slice(nonces, func(i, j int) bool { return nonces[i] < nonces[j] })
	return nonces, true
}

// findEdge locates an edge nonce whose endpoints (as raw node indices,
// partition stripped) are {a,b} in some order. This is O(n) and used only
// while stitching together the small set of edges forming one already-found
// cycle, never during the main search loop.
func findEdge(edges []edge, a, b uint64) (uint32, bool) {
	for i, e := range edges {
		if (e.u == a && e.v == b) || (e.u == b && e.v == a) {
			return uint32(i), true
		}
	}
	return 0, false
}

// generateEdges computes the (u,v) endpoint pair for every nonce in
// [0, 2^complexity), sharded across GOMAXPROCS goroutines.
func generateEdges(k0, k1 uint64, complexity int) []edge {
	n := edgeCount(complexity)
	edges := make([]edge, n)

	workers := runtime.GOMAXPROCS(0)
	if workers < 1 {
		workers = 1
	}
	if uint64(workers) > n {
		workers = int(n)
	}

	chunk := (n + uint64(workers) - 1) / uint64(workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := uint64(w) * chunk
		end := start + chunk
		if end > n {
			end = n
		}
		if start >= end {
			continue
		}
		wg.Add(1)
		go func(start, end uint64) {
			defer wg.Done()
			for nonce := start; nonce < end; nonce++ {
				edges[nonce] = edge{
					u: sipnode(k0, k1, complexity, nonce, 0),
					v: sipnode(k0, k1, complexity, nonce, 1),
				}
			}
		}(start, end)
	}
	wg.Wait()
	return edges
}

// encodeCycle serializes a sorted cycle as big-endian nonce diffs, matching
// the original implementation's compact on-wire proof encoding.
func encodeCycle(nonces []uint32) []byte {
	buf := make([]byte, 4*len(nonces))
	var prev uint32
	for i, n := range nonces {
		diff := n - prev
		buf[i*4+0] = byte(diff >> 24)
		buf[i*4+1] = byte(diff >> 16)
		buf[i*4+2] = byte(diff >> 8)
		buf[i*4+3] = byte(diff)
		prev = n
	}
	return buf
}

// decodeCycle reverses encodeCycle.
func decodeCycle(buf []byte) []uint32 {
	n := len(buf) / 4
	nonces := make([]uint32, n)
	var prev uint32
	for i := 0; i < n; i++ {
		diff := uint32(buf[i*4+0])<<24 | uint32(buf[i*4+1])<<16 | uint32(buf[i*4+2])<<8 | uint32(buf[i*4+3])
		prev += diff
		nonces[i] = prev
	}
	return nonces
}
