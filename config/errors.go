package config

import "errors"

var (
	ErrInvalidListen       = errors.New("config: listen address is unspecified")
	ErrInvalidDatabasePath = errors.New("config: database path is empty")
	ErrInvalidPeerCounts   = errors.New("config: peer counts must be >= 0")
	ErrInvalidKeepAlive    = errors.New("config: keep-alive must be positive")
	ErrInvalidRequestRate  = errors.New("config: requestsPerSecond and requestBurst must be >= 1")
	ErrPoWBelowMinimum     = errors.New("config: PoW override is weaker than the protocol minimum")
)
