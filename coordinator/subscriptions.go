// Package coordinator maintains the mesh of peer connections: dialing and
// accepting, peer-level promotion/demotion and scoring, subscription
// fan-out, request handling, and the periodic scheduling loop that drives
// all of it.
package coordinator

import (
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/raddi-network/raddi/internal/errs"
	"github.com/raddi-network/raddi/raddi"
)

// Subscriptions is one application's persisted set of channel eids it
// wants back-filled and forwarded, stored as a flat sorted-eid binary file
// named by the app's uuid.
type Subscriptions struct {
	mu    sync.RWMutex
	path  string
	app   uuid.UUID
	items map[raddi.EID]struct{}
}

// LoadSubscriptions reads (or creates empty) the subscription file for app
// under dir.
func LoadSubscriptions(dir string, app uuid.UUID) (*Subscriptions, error) {
	s := &Subscriptions{path: filepath.Join(dir, app.String()), app: app, items: make(map[raddi.EID]struct{})}
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}
	for i := 0; i+16 <= len(raw); i += 16 {
		if eid, ok := raddi.UnmarshalEID(raw[i : i+16]); ok {
			s.items[eid] = struct{}{}
		}
	}
	return s, nil
}

// Subscribe adds channel to the set.
func (s *Subscriptions) Subscribe(channel raddi.EID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[channel] = struct{}{}
}

// Unsubscribe removes channel from the set.
func (s *Subscriptions) Unsubscribe(channel raddi.EID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, channel)
}

// IsSubscribed reports whether channel is in the set.
func (s *Subscriptions) IsSubscribed(channel raddi.EID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.items[channel]
	return ok
}

// Enumerate returns every subscribed eid, in ascending order.
func (s *Subscriptions) Enumerate() []raddi.EID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]raddi.EID, 0, len(s.items))
	for eid := range s.items {
		out = append(out, eid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// Flush rewrites the subscription file.
func (s *Subscriptions) Flush() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	buf := make([]byte, 0, len(s.items)*16)
	for _, eid := range s.Enumerate() {
		buf = append(buf, eid.MarshalBinary()...)
	}
	return os.WriteFile(s.path, buf, 0o600)
}

// SubscriptionSet manages one Subscriptions file per application uuid,
// e.g. for the coordinator's blacklist and retained sets as well as
// genuine channel subscriptions — all three share this shape.
type SubscriptionSet struct {
	mu   sync.Mutex
	dir  string
	apps map[uuid.UUID]*Subscriptions
}

// NewSubscriptionSet roots a SubscriptionSet at dir (created if missing).
func NewSubscriptionSet(dir string) (*SubscriptionSet, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return &SubscriptionSet{dir: dir, apps: make(map[uuid.UUID]*Subscriptions)}, nil
}

// For returns (loading if necessary) the Subscriptions for app.
func (set *SubscriptionSet) For(app uuid.UUID) (*Subscriptions, error) {
	set.mu.Lock()
	defer set.mu.Unlock()
	if s, ok := set.apps[app]; ok {
		return s, nil
	}
	s, err := LoadSubscriptions(set.dir, app)
	if err != nil {
		return nil, err
	}
	set.apps[app] = s
	return s, nil
}

// AnyInterested reports whether any loaded application is subscribed to
// at least one of the given eids.
func (set *SubscriptionSet) AnyInterested(candidates ...raddi.EID) bool {
	set.mu.Lock()
	apps := make([]*Subscriptions, 0, len(set.apps))
	for _, s := range set.apps {
		apps = append(apps, s)
	}
	set.mu.Unlock()

	for _, s := range apps {
		for _, eid := range candidates {
			if s.IsSubscribed(eid) {
				return true
			}
		}
	}
	return false
}

// Flush persists every loaded application's subscriptions, trying all of
// them even if one fails so a single bad file doesn't mask the rest.
func (set *SubscriptionSet) Flush() error {
	set.mu.Lock()
	defer set.mu.Unlock()
	var agg errs.Errs
	for _, s := range set.apps {
		agg.Add(s.Flush())
	}
	return agg.Err()
}
