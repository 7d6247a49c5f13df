// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"net/netip"
	"time"
)

// Builder provides a fluent interface for constructing a Config, mirroring
// the chained-setter style used elsewhere in this codebase.
type Builder struct {
	cfg Config
	err error
}

// NewBuilder starts from DefaultConfig.
func NewBuilder() *Builder {
	return &Builder{cfg: DefaultConfig()}
}

// FromPreset replaces the current config with a named preset, discarding
// any settings applied before the call.
func (b *Builder) FromPreset(t NetworkType) *Builder {
	if b.err != nil {
		return b
	}
	b.cfg = Preset(t)
	return b
}

func (b *Builder) Listen(addr netip.AddrPort) *Builder {
	if b.err == nil {
		b.cfg.Listen = addr
	}
	return b
}

func (b *Builder) DatabasePath(path string) *Builder {
	if b.err == nil {
		b.cfg.DatabasePath = path
	}
	return b
}

func (b *Builder) SourceDir(dir string) *Builder {
	if b.err == nil {
		b.cfg.SourceDir = dir
	}
	return b
}

func (b *Builder) SocksProxy(addr netip.AddrPort) *Builder {
	if b.err == nil {
		b.cfg.SocksProxy = addr
	}
	return b
}

func (b *Builder) PeerCounts(core, established, validated int) *Builder {
	if b.err == nil {
		b.cfg.CorePeers = core
		b.cfg.EstablishedPeers = established
		b.cfg.ValidatedPeers = validated
	}
	return b
}

func (b *Builder) KeepAlive(d time.Duration) *Builder {
	if b.err == nil {
		b.cfg.KeepAlive = d
	}
	return b
}

func (b *Builder) RequestRate(perSecond, burst int) *Builder {
	if b.err == nil {
		b.cfg.RequestsPerSecond = perSecond
		b.cfg.RequestBurst = burst
	}
	return b
}

func (b *Builder) PoWOverride(minEntry, minAnnouncement uint8) *Builder {
	if b.err == nil {
		b.cfg.MinEntryPoWComplexity = minEntry
		b.cfg.MinAnnouncementPoWComplexity = minAnnouncement
	}
	return b
}

// Build validates the accumulated config and returns it.
func (b *Builder) Build() (Config, error) {
	if b.err != nil {
		return Config{}, b.err
	}
	if err := b.cfg.Valid(); err != nil {
		return Config{}, err
	}
	return b.cfg, nil
}
