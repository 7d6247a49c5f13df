// Package cache implements the node's three small in-memory caches: the
// detached reorder buffer for orphan entries awaiting a parent, the noticed
// set that suppresses rebroadcast of recently-seen entries, and the refused
// set that pre-rejects descendants of entries that failed consensus.
package cache

import (
	"sync"

	"github.com/raddi-network/raddi/raddi"
)

// maxDrainDepth bounds the recursion when feeding newly-unblocked children
// back through the validator, preventing a pathological chain of orphans
// from blowing the stack.
const maxDrainDepth = 2048

// Detached holds entry bytes whose parent hasn't arrived yet, keyed by the
// parent's eid so an insertion can find and release its waiters in one
// lookup.
type Detached struct {
	mu   sync.Mutex
	data map[raddi.Timestamp]map[raddi.IID][][]byte
	high int // high-water mark, for observability
}

// NewDetached constructs an empty orphan buffer.
func NewDetached() *Detached {
	return &Detached{data: make(map[raddi.Timestamp]map[raddi.IID][][]byte)}
}

// Insert buffers entryBytes, which is waiting on parent.
func (d *Detached) Insert(parent raddi.EID, entryBytes []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	byIdentity, ok := d.data[parent.Timestamp]
	if !ok {
		byIdentity = make(map[raddi.IID][][]byte)
		d.data[parent.Timestamp] = byIdentity
	}
	byIdentity[parent.Identity] = append(byIdentity[parent.Identity], entryBytes)

	n := d.size()
	if n > d.high {
		d.high = n
	}
}

// Accept pops every entry waiting on parent and invokes fn for each,
// outside the lock, recursively draining any of their own waiters should
// fn itself call Accept again (e.g. because the validator re-inserted the
// child). Recursion is bounded by maxDrainDepth.
func (d *Detached) Accept(parent raddi.EID, fn func([]byte)) {
	d.accept(parent, fn, 0)
}

func (d *Detached) accept(parent raddi.EID, fn func([]byte), depth int) {
	if depth >= maxDrainDepth {
		return
	}
	d.mu.Lock()
	byIdentity, ok := d.data[parent.Timestamp]
	if !ok {
		d.mu.Unlock()
		return
	}
	waiters := byIdentity[parent.Identity]
	delete(byIdentity, parent.Identity)
	if len(byIdentity) == 0 {
		delete(d.data, parent.Timestamp)
	}
	d.mu.Unlock()

	for _, w := range waiters {
		fn(w)
	}
}

// Reject discards every entry transitively waiting on parent (because
// parent itself failed consensus), returning the count erased. descendantsOf
// must return the EIDs of entries known to point at a given parent — the
// caller (validator) supplies it since Detached doesn't parse entry bytes.
// Recursion is bounded by maxDrainDepth, same as Accept.
func (d *Detached) Reject(parent raddi.EID, descendantsOf func([]byte) raddi.EID) int {
	return d.reject(parent, descendantsOf, 0)
}

func (d *Detached) reject(parent raddi.EID, descendantsOf func([]byte) raddi.EID, depth int) int {
	if depth >= maxDrainDepth {
		return 0
	}
	d.mu.Lock()
	byIdentity, ok := d.data[parent.Timestamp]
	if !ok {
		d.mu.Unlock()
		return 0
	}
	waiters := byIdentity[parent.Identity]
	delete(byIdentity, parent.Identity)
	if len(byIdentity) == 0 {
		delete(d.data, parent.Timestamp)
	}
	d.mu.Unlock()

	count := len(waiters)
	for _, w := range waiters {
		count += d.reject(descendantsOf(w), descendantsOf, depth+1)
	}
	return count
}

// Clean drops every waiter whose parent timestamp is older than age
// seconds relative to now.
func (d *Detached) Clean(now, age raddi.Timestamp) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for ts := range d.data {
		if raddi.Older(ts, now) && raddi.Age(ts, now) > int64(age) {
			delete(d.data, ts)
		}
	}
}

// Size returns the total number of buffered entries.
func (d *Detached) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.size()
}

func (d *Detached) size() int {
	n := 0
	for _, byIdentity := range d.data {
		for _, waiters := range byIdentity {
			n += len(waiters)
		}
	}
	return n
}

// HighWaterMark returns the largest Size ever observed.
func (d *Detached) HighWaterMark() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.high
}
