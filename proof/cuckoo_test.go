package proof

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeCycleRoundtrip(t *testing.T) {
	nonces := []uint32{4, 10, 99, 1000, 1001, 5000000}
	buf := encodeCycle(nonces)
	require.Equal(t, len(nonces)*4, len(buf))
	require.Equal(t, nonces, decodeCycle(buf))
}

func TestSolveAndVerifySmallGraph(t *testing.T) {
	var seed [64]byte
	seed[0] = 7

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	hdr, cycle, ok := Solve(ctx, seed, MinComplexity, 4*time.Second)
	if !ok {
		t.Skip("no cycle found within budget for this seed at minimum complexity")
	}
	require.NoError(t, Verify(seed, hdr, cycle))
}

func TestVerifyRejectsMalformedSize(t *testing.T) {
	var seed [64]byte
	hdr := Header{Length: MinLength, Complexity: MinComplexity, Algorithm: CuckooCycle}
	err := Verify(seed, hdr, make([]byte, 4*MinLength-1))
	require.ErrorIs(t, err, ErrMalformed)
}

func TestVerifyRejectsBadAlgorithm(t *testing.T) {
	var seed [64]byte
	hdr := Header{Length: MinLength, Complexity: MinComplexity, Algorithm: AlgorithmReserved0}
	err := Verify(seed, hdr, make([]byte, 4*MinLength))
	require.ErrorIs(t, err, ErrBadAlgorithm)
}

func TestVerifyRejectsOutOfRangeNonce(t *testing.T) {
	var seed [64]byte
	hdr := Header{Length: MinLength, Complexity: MinComplexity, Algorithm: CuckooCycle}
	nonces := make([]uint32, MinLength)
	nonces[0] = uint32(edgeCount(MinComplexity)) // one past the limit
	for i := 1; i < MinLength; i++ {
		nonces[i] = nonces[0] + uint32(i)
	}
	err := Verify(seed, hdr, encodeCycle(nonces))
	require.ErrorIs(t, err, ErrMalformed)
}
