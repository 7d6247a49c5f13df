package config

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Valid())
}

func TestPresetsAreValid(t *testing.T) {
	for _, nt := range []NetworkType{MainnetNetwork, TestnetNetwork, LocalNetwork, "bogus"} {
		require.NoError(t, Preset(nt).Valid(), nt)
	}
}

func TestValidRejectsEmptyDatabasePath(t *testing.T) {
	c := DefaultConfig()
	c.DatabasePath = ""
	require.ErrorIs(t, c.Valid(), ErrInvalidDatabasePath)
}

func TestValidRejectsWeakPoWOverride(t *testing.T) {
	c := DefaultConfig()
	c.MinEntryPoWComplexity = 1
	require.ErrorIs(t, c.Valid(), ErrPoWBelowMinimum)
}

func TestValidRejectsUnspecifiedListen(t *testing.T) {
	c := DefaultConfig()
	c.Listen = netip.AddrPort{}
	require.ErrorIs(t, c.Valid(), ErrInvalidListen)
}

func TestBuilderFromPresetThenOverride(t *testing.T) {
	cfg, err := NewBuilder().
		FromPreset(LocalNetwork).
		PeerCounts(0, 1, 2).
		RequestRate(5, 10).
		Build()

	require.NoError(t, err)
	require.Equal(t, 1, cfg.EstablishedPeers)
	require.Equal(t, 5, cfg.RequestsPerSecond)
}

func TestBuilderPropagatesValidationError(t *testing.T) {
	_, err := NewBuilder().RequestRate(0, 0).Build()
	require.ErrorIs(t, err, ErrInvalidRequestRate)
}
