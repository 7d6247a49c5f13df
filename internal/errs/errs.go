// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package errs collects independent errors from a batch of otherwise
// unrelated operations — several flushes to disk, say — so a caller can
// report everything that went wrong instead of stopping at the first
// failure.
package errs

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Errs is a collection of errors, safe for concurrent Add.
type Errs struct {
	mu   sync.RWMutex
	errs []error
}

// Add appends err to the collection. A nil err is a no-op, so callers can
// write errs.Add(thing.Flush()) unconditionally.
func (e *Errs) Add(err error) {
	if err == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.errs = append(e.errs, err)
}

// Errored reports whether any error has been added.
func (e *Errs) Errored() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.errs) > 0
}

// Err collapses the collection into a single error: nil if empty, the
// sole error if there's exactly one, otherwise a combined error carrying
// every message.
func (e *Errs) Err() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	switch len(e.errs) {
	case 0:
		return nil
	case 1:
		return e.errs[0]
	default:
		return errors.New(e.String())
	}
}

// String renders every collected error, one per line.
func (e *Errs) String() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if len(e.errs) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d error", len(e.errs)))
	if len(e.errs) != 1 {
		sb.WriteString("s")
	}
	sb.WriteString(" occurred:")
	for _, err := range e.errs {
		sb.WriteString("\n\t* ")
		sb.WriteString(err.Error())
	}
	return sb.String()
}
