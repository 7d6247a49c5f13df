package digest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundtrip(t *testing.T) {
	spans := []Span{
		{Delta: 0, Count: 0},
		{Delta: 100, Count: 42},
		{Delta: 1 << 20, Count: 1 << 10},
	}
	decoded := Decode(Encode(spans))
	require.Equal(t, spans, decoded)
}

func TestRangesRecoversAbsoluteBounds(t *testing.T) {
	spans := []Span{
		{Delta: 100, Count: 5}, // oldest
		{Delta: 50, Count: 7},
		{Delta: 10, Count: 3}, // newest
	}
	ranges := Ranges(1000, spans)
	require.Len(t, ranges, 3)
	require.Equal(t, uint32(1000-10-50-100), ranges[0].Lo)
	require.Equal(t, uint32(1000), ranges[2].Hi)
}

func TestBuildGroupsShardsIntoSpans(t *testing.T) {
	bases := []uint32{0, 100, 400, 700, 900}
	counts := map[uint32]uint32{0: 1, 100: 2, 400: 3, 700: 4, 900: 5}
	spans := Build(bases, func(b uint32) (uint32, bool) {
		c, ok := counts[b]
		return c, ok
	}, 1000, 4, 4)
	require.NotEmpty(t, spans)

	var total uint32
	for _, s := range spans {
		total += s.Count
	}
	require.Equal(t, uint32(1+2+3+4+5), total)
}

func TestCompareFindsGaps(t *testing.T) {
	local := []Range{{Lo: 0, Hi: 100, Count: 10}}
	remote := []Range{{Lo: 0, Hi: 100, Count: 3}}
	gaps := Compare(local, remote)
	require.Len(t, gaps, 1)
}
