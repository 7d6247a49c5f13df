// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config holds the node's single Config struct, built once at
// process start (by flags, a file, or NewBuilder) and passed down to the
// coordinator, validator, source watcher and discovery point.
package config

import (
	"net/netip"
	"time"

	"github.com/raddi-network/raddi/protocol"
	"github.com/raddi-network/raddi/raddi"
)

// NetworkType selects a named preset (see MainnetConfig, TestnetConfig,
// LocalConfig below).
type NetworkType string

const (
	MainnetNetwork NetworkType = "mainnet"
	TestnetNetwork NetworkType = "testnet"
	LocalNetwork   NetworkType = "local"
)

// Config holds every node-level setting spec.md's components read from.
type Config struct {
	// Listen is the TCP address peers connect to; zero port picks an
	// ephemeral one (local/testing presets only).
	Listen netip.AddrPort `json:"listen"`

	// DatabasePath is the root directory of the sharded database
	// (db.Database) and its peerset files.
	DatabasePath string `json:"databasePath"`

	// SourceDir is the directory watched for locally-dropped entry/command
	// files (source.Watcher). Empty creates a process-local temp dir.
	SourceDir string `json:"sourceDir,omitempty"`

	// CipherMode controls AEAD negotiation during the handshake.
	CipherMode protocol.Mode `json:"cipherMode"`

	// SocksProxy holds a SOCKS5 proxy address for outbound connections. No
	// code outside this package reads it: outbound connections are dialed
	// directly, and protocol.DialThroughSOCKS5 has no caller.
	SocksProxy netip.AddrPort `json:"socksProxy,omitempty"`

	// AddressValidation controls which peer addresses are accepted as
	// reachable: ValidationStrict on a public node, ValidationLocal when
	// developing against loopback/private peers. Only the presets in this
	// package set it; no code outside this package reads it.
	AddressValidation raddi.Validation `json:"addressValidation"`

	// Peer count targets per db.PeerLevel tier. cmd/raddid sizes the
	// coordinator's desired and maximum connection counts from
	// EstablishedPeers and ValidatedPeers; CorePeers is only checked for
	// being non-negative.
	CorePeers        int `json:"corePeers"`
	EstablishedPeers int `json:"establishedPeers"`
	ValidatedPeers   int `json:"validatedPeers"`

	// KeepAlive is the interval between keep-alive frames on an idle
	// connection (coordinator.Scheduler's 1Hz loop checks against it).
	KeepAlive time.Duration `json:"keepAlive"`

	// ConnectTimeout is a bound for one outbound dial + handshake. No code
	// outside this package reads it; dials and handshakes do not use it.
	ConnectTimeout time.Duration `json:"connectTimeout"`

	// RequestsPerSecond bounds how many requests a single connection may
	// issue before being throttled (cmd/raddid turns it into the
	// per-minute limit). RequestBurst is only checked for being at least 1;
	// no code outside this package reads it.
	RequestsPerSecond int `json:"requestsPerSecond"`
	RequestBurst      int `json:"requestBurst"`

	// PoW overrides: zero stands for raddi.Entry.DefaultRequirements'
	// built-in minimums (raddi.MinEntryPoWComplexity /
	// MinAnnouncementPoWComplexity), and Valid rejects a non-zero value
	// below them. The validator does not read these fields; it always
	// enforces DefaultRequirements.
	MinEntryPoWComplexity        uint8 `json:"minEntryPoWComplexity,omitempty"`
	MinAnnouncementPoWComplexity uint8 `json:"minAnnouncementPoWComplexity,omitempty"`

	// DiscoveryPort is the UDP port local-peer discovery (discovery.Point)
	// broadcasts on and listens to. Zero disables discovery entirely.
	DiscoveryPort uint16 `json:"discoveryPort,omitempty"`
}

// DefaultConfig returns the baseline every preset starts from.
func DefaultConfig() Config {
	return Config{
		Listen:            netip.AddrPortFrom(netip.IPv6Unspecified(), protocol.DefaultPort),
		DatabasePath:      "raddi.db",
		CipherMode:        protocol.ModeAutomatic,
		AddressValidation: raddi.ValidationStrict,
		CorePeers:         2,
		EstablishedPeers:  8,
		ValidatedPeers:    32,
		KeepAlive:         30 * time.Second,
		ConnectTimeout:    10 * time.Second,
		RequestsPerSecond: 20,
		RequestBurst:      40,
		DiscoveryPort:     protocol.DefaultDiscoveryPort,
	}
}

// MainnetConfig is the public-network preset: strict address validation, no
// local discovery (LAN broadcast is meaningless across the public internet).
func MainnetConfig() Config {
	c := DefaultConfig()
	c.DiscoveryPort = 0
	return c
}

// TestnetConfig relaxes peer counts for a smaller swarm.
func TestnetConfig() Config {
	c := DefaultConfig()
	c.CorePeers = 1
	c.EstablishedPeers = 4
	c.ValidatedPeers = 8
	return c
}

// LocalConfig is for same-machine/LAN development: loopback and private
// addresses are accepted, discovery is on, peer targets are tiny.
func LocalConfig() Config {
	c := DefaultConfig()
	c.Listen = netip.AddrPortFrom(netip.IPv6Loopback(), 0)
	c.AddressValidation = raddi.ValidationLocal
	c.CorePeers = 0
	c.EstablishedPeers = 2
	c.ValidatedPeers = 4
	return c
}

// Preset resolves a NetworkType to its Config, defaulting to DefaultConfig
// for an unrecognized value.
func Preset(t NetworkType) Config {
	switch t {
	case MainnetNetwork:
		return MainnetConfig()
	case TestnetNetwork:
		return TestnetConfig()
	case LocalNetwork:
		return LocalConfig()
	default:
		return DefaultConfig()
	}
}
