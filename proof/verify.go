package proof

import "errors"

var (
	// ErrMalformed is returned for a proof whose size or header fields are
	// outside the allowed ranges.
	ErrMalformed = errors.New("proof: malformed")
	// ErrWrongDegree is returned when some node touched by the cycle is not
	// incident to exactly two of its edges — a cheap, sub-cycle forgery.
	ErrWrongDegree = errors.New("proof: wrong node degree")
	// ErrNotASingleCycle is returned when the edges form more than one
	// disjoint cycle, or don't close, rather than one cycle of the claimed
	// length.
	ErrNotASingleCycle = errors.New("proof: not a single cycle")
	ErrBadAlgorithm    = errors.New("proof: unsupported algorithm")
)

// Verify checks that proof is a valid Cuckoo Cycle proof of hdr.Length edges
// over the graph derived from seed at hdr.Complexity.
func Verify(seed [64]byte, hdr Header, proof []byte) error {
	if hdr.Algorithm != CuckooCycle {
		return ErrBadAlgorithm
	}
	if hdr.Length < MinLength || hdr.Length > MaxLength || hdr.Length%2 != 0 {
		return ErrMalformed
	}
	if hdr.Complexity < MinComplexity || hdr.Complexity > MaxComplexity {
		return ErrMalformed
	}
	if len(proof) != 4*hdr.Length {
		return ErrMalformed
	}

	nonces := decodeCycle(proof)
	limit := uint32(edgeCount(hdr.Complexity))
	for i, n := range nonces {
		if n >= limit {
			return ErrMalformed
		}
		if i > 0 && n <= nonces[i-1] {
			return ErrMalformed // diff-encoding must be strictly increasing
		}
	}

	k0, k1 := keys(seed)

	// adjacency maps each partition-tagged node to the one or two nodes it
	// connects to among the cycle's edges.
	adjacency := make(map[uint64][]uint64, 2*len(nonces))
	for _, n := range nonces {
		u := node(sipnode(k0, k1, hdr.Complexity, uint64(n), 0), 0)
		v := node(sipnode(k0, k1, hdr.Complexity, uint64(n), 1), 1)
		adjacency[u] = append(adjacency[u], v)
		adjacency[v] = append(adjacency[v], u)
	}
	for _, neighbors := range adjacency {
		if len(neighbors) != 2 {
			return ErrWrongDegree
		}
	}

	// Walk the single cycle starting from an arbitrary node, consuming one
	// "visit" of each neighbor edge as we go; a valid proof returns to the
	// start after exactly len(nonces) steps having visited every node.
	var start uint64
	for k := range adjacency {
		start = k
		break
	}
	visited := make(map[uint64]bool, len(adjacency))
	prev := start
	cur := adjacency[start][0]
	visited[start] = true
	steps := 1
	for cur != start {
		if visited[cur] {
			return ErrNotASingleCycle
		}
		visited[cur] = true
		neighbors := adjacency[cur]
		var next uint64
		if neighbors[0] == prev {
			next = neighbors[1]
		} else {
			next = neighbors[0]
		}
		prev, cur = cur, next
		steps++
		if steps > len(adjacency) {
			return ErrNotASingleCycle
		}
	}
	if steps != len(adjacency) || steps != hdr.Length {
		return ErrNotASingleCycle
	}
	return nil
}
