package coordinator

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/raddi-network/raddi/db"
	"github.com/raddi-network/raddi/raddi"
)

func TestWeightedSamplerRejectsOversizedDraw(t *testing.T) {
	var s weightedSampler
	require.NoError(t, s.Initialize([]uint64{1, 2, 3}))
	_, ok := s.Sample(7)
	require.False(t, ok, "total weight is 6, drawing 7 distinct weight points must fail")
}

func TestWeightedSamplerDrawsWithinRange(t *testing.T) {
	var s weightedSampler
	require.NoError(t, s.Initialize([]uint64{10, 20, 30}))
	indices, ok := s.Sample(3)
	require.True(t, ok)
	require.Len(t, indices, 3)
	for _, idx := range indices {
		require.GreaterOrEqual(t, idx, 0)
		require.Less(t, idx, 3)
	}
}

func TestWeightedSamplerZeroSizeSucceeds(t *testing.T) {
	var s weightedSampler
	require.NoError(t, s.Initialize([]uint64{5}))
	indices, ok := s.Sample(0)
	require.True(t, ok)
	require.Empty(t, indices)
}

func TestWeightedSampleReturnsDistinctAddressesAcrossLevels(t *testing.T) {
	n := testNode(t)

	addrs := func(level db.PeerLevel, base string, count int) {
		set, ok := n.PeerSet(level)
		require.True(t, ok)
		for i := 0; i < count; i++ {
			ip := netip.MustParseAddr(base)
			set.Set(raddi.Address{IP: ip, Port: uint16(1000 + i)}, 1)
		}
	}
	addrs(db.LevelCore, "10.0.0.1", 2)
	addrs(db.LevelEstablished, "10.0.0.2", 3)
	addrs(db.LevelValidated, "10.0.0.3", 3)

	sets := make(map[db.PeerLevel]*db.PeerSet)
	for _, level := range []db.PeerLevel{db.LevelCore, db.LevelEstablished, db.LevelValidated, db.LevelAnnounced} {
		set, ok := n.PeerSet(level)
		require.True(t, ok)
		sets[level] = set
	}

	out := WeightedSample(sets, 5)
	require.LessOrEqual(t, len(out), 5)
	seen := make(map[raddi.Address]bool)
	for _, addr := range out {
		require.False(t, seen[addr], "WeightedSample must not repeat an address")
		seen[addr] = true
	}
}

func TestWeightedSampleEmptyPoolReturnsNil(t *testing.T) {
	require.Nil(t, WeightedSample(map[db.PeerLevel]*db.PeerSet{}, 5))
}
