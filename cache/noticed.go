package cache

import (
	"sync"

	"github.com/raddi-network/raddi/raddi"
)

// Noticed is a short-lived, per-timestamp set of recently seen identities,
// used to suppress rebroadcast of an entry already forwarded once.
type Noticed struct {
	mu   sync.Mutex
	data map[raddi.Timestamp]map[raddi.IID]struct{}
}

// NewNoticed constructs an empty noticed-entry cache.
func NewNoticed() *Noticed {
	return &Noticed{data: make(map[raddi.Timestamp]map[raddi.IID]struct{})}
}

// Insert records id as seen and reports whether it was newly inserted
// (false means it was already present — a duplicate).
func (n *Noticed) Insert(id raddi.EID) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	byIdentity, ok := n.data[id.Timestamp]
	if !ok {
		byIdentity = make(map[raddi.IID]struct{})
		n.data[id.Timestamp] = byIdentity
	}
	if _, seen := byIdentity[id.Identity]; seen {
		return false
	}
	byIdentity[id.Identity] = struct{}{}
	return true
}

// Contains reports whether id has already been noticed.
func (n *Noticed) Contains(id raddi.EID) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	byIdentity, ok := n.data[id.Timestamp]
	if !ok {
		return false
	}
	_, seen := byIdentity[id.Identity]
	return seen
}

// Clean drops every entry older than age seconds relative to now.
func (n *Noticed) Clean(now, age raddi.Timestamp) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for ts := range n.data {
		if raddi.Older(ts, now) && raddi.Age(ts, now) > int64(age) {
			delete(n.data, ts)
		}
	}
}

// Size returns the total number of tracked entries.
func (n *Noticed) Size() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	total := 0
	for _, byIdentity := range n.data {
		total += len(byIdentity)
	}
	return total
}
