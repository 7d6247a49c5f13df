package cache

import (
	"sync"

	"github.com/raddi-network/raddi/raddi"
)

// Refused tracks entries whose ingestion failed consensus (bad signature,
// insufficient proof, …) so their descendants can be pre-rejected without
// re-running the same validation, reusing Noticed's shape since both caches
// key on (timestamp, identity) and age out the same way.
type Refused struct {
	inner *Noticed
}

// NewRefused constructs an empty refused-entry cache.
func NewRefused() *Refused {
	return &Refused{inner: NewNoticed()}
}

// Insert records id as refused.
func (r *Refused) Insert(id raddi.EID) {
	r.inner.Insert(id)
}

// Contains reports whether id (typically a candidate entry's Parent) was
// previously refused.
func (r *Refused) Contains(id raddi.EID) bool {
	return r.inner.Contains(id)
}

// Clean drops every entry older than age seconds relative to now.
func (r *Refused) Clean(now, age raddi.Timestamp) {
	r.inner.Clean(now, age)
}

// Size returns the total number of tracked entries.
func (r *Refused) Size() int {
	return r.inner.Size()
}
