package config

import "github.com/raddi-network/raddi/raddi"

// Valid checks c for the combinations NewBuilder and Preset can't already
// guarantee by construction — mainly operator-supplied overrides.
func (c Config) Valid() error {
	if !c.Listen.IsValid() {
		return ErrInvalidListen
	}
	if c.DatabasePath == "" {
		return ErrInvalidDatabasePath
	}
	if c.CorePeers < 0 || c.EstablishedPeers < 0 || c.ValidatedPeers < 0 {
		return ErrInvalidPeerCounts
	}
	if c.KeepAlive <= 0 {
		return ErrInvalidKeepAlive
	}
	if c.RequestsPerSecond < 1 || c.RequestBurst < 1 {
		return ErrInvalidRequestRate
	}
	if c.MinEntryPoWComplexity != 0 && c.MinEntryPoWComplexity < raddi.MinEntryPoWComplexity {
		return ErrPoWBelowMinimum
	}
	if c.MinAnnouncementPoWComplexity != 0 && c.MinAnnouncementPoWComplexity < raddi.MinAnnouncementPoWComplexity {
		return ErrPoWBelowMinimum
	}
	return nil
}
