package coordinator

import (
	"sync"
	"time"

	"github.com/raddi-network/raddi/cache"
	"github.com/raddi-network/raddi/conn"
	"github.com/raddi-network/raddi/db"
	"github.com/raddi-network/raddi/internal/errs"
	"github.com/raddi-network/raddi/raddi"
)

// Config carries every tunable the scheduling loop and request handlers
// consult, passed in once at construction rather than read from mutable
// globals.
type Config struct {
	DesiredConnections  int
	MaxConnections       int
	MaxConcurrentAttempts int
	MorePeersQueryDelay  time.Duration
	KeepAlivePeriod      time.Duration
	MaxRequestsPerMinute int
	StoreEverything      bool
	DiscoveryPeriod      time.Duration
}

// DefaultConfig mirrors the documented defaults.
func DefaultConfig() Config {
	return Config{
		DesiredConnections:    8,
		MaxConnections:        32,
		MaxConcurrentAttempts: 6,
		MorePeersQueryDelay:   30 * time.Second,
		KeepAlivePeriod:       conn.DefaultKeepAlivePeriod,
		MaxRequestsPerMinute:  conn.DefaultMaxRequestsPerMinute,
		DiscoveryPeriod:       60 * time.Second,
	}
}

// Node owns everything the scheduling loop, request handlers, and
// broadcast path share: the database, the five peer sets, the orphan and
// dedup caches, per-app subscription sets, and the live connection list.
type Node struct {
	cfg Config
	db  *db.Database

	mu          sync.RWMutex
	connections []*conn.Connection

	peersets map[db.PeerLevel]*db.PeerSet
	scorer   *Scorer

	Detached *cache.Detached
	Noticed  *cache.Noticed
	Refused  *cache.Refused

	Subscriptions *SubscriptionSet
	Blacklist     *SubscriptionSet
	Retained      *SubscriptionSet

	lastDialSuccess  time.Time
	lastDiscoveryRun time.Time
}

// NewNode wires a Node from an already-open database and its directory
// root (used to locate the subscriptions/blacklist/retained subdirectories).
func NewNode(cfg Config, database *db.Database, root string) (*Node, error) {
	peersets := make(map[db.PeerLevel]*db.PeerSet)
	for _, level := range []db.PeerLevel{db.LevelCore, db.LevelEstablished, db.LevelValidated, db.LevelAnnounced, db.LevelBlacklisted} {
		// One set per level, stored under the IPv4 (family=1) path: each
		// record already carries its own family byte, so IPv4 and IPv6
		// addresses coexist in a single file without ambiguity. This
		// merges what the persistent layout shows as two files
		// (01L<level>/02L<level>) into one on disk.
		set, err := db.OpenPeerSet(db.PeerSetPath(root, 1, level), level)
		if err != nil {
			return nil, err
		}
		peersets[level] = set
	}

	subs, err := NewSubscriptionSet(root + "/subscriptions")
	if err != nil {
		return nil, err
	}
	blacklist, err := NewSubscriptionSet(root + "/blacklist")
	if err != nil {
		return nil, err
	}
	retained, err := NewSubscriptionSet(root + "/retained")
	if err != nil {
		return nil, err
	}

	n := &Node{
		cfg:           cfg,
		db:            database,
		peersets:      peersets,
		Detached:      cache.NewDetached(),
		Noticed:       cache.NewNoticed(),
		Refused:       cache.NewRefused(),
		Subscriptions: subs,
		Blacklist:     blacklist,
		Retained:      retained,
	}
	n.scorer = NewScorer(peersets)
	return n, nil
}

// AddConnection registers a connection, front-inserted so the most
// recently established connection is scanned first by the sweep.
func (n *Node) AddConnection(c *conn.Connection) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.connections = append([]*conn.Connection{c}, n.connections...)
}

// Connections returns a snapshot of the current connection list.
func (n *Node) Connections() []*conn.Connection {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]*conn.Connection(nil), n.connections...)
}

// Sweep drops retired connections from the list, returning how many were
// reaped.
func (n *Node) Sweep() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	kept := n.connections[:0]
	reaped := 0
	for _, c := range n.connections {
		if c.State() == conn.StateRetired {
			reaped++
			continue
		}
		kept = append(kept, c)
	}
	n.connections = kept
	return reaped
}

// SecuredCountByLevel counts secured connections whose address is present
// in the given level's peer set — used to decide whether more dials are
// needed for that tier.
func (n *Node) SecuredCountByLevel(level db.PeerLevel) int {
	set, ok := n.peersets[level]
	if !ok {
		return 0
	}
	count := 0
	for _, c := range n.Connections() {
		if c.State() != conn.StateSecured {
			continue
		}
		if _, ok := set.Get(c.Address); ok {
			count++
		}
	}
	return count
}

// SecuredCount counts all secured connections regardless of level.
func (n *Node) SecuredCount() int {
	count := 0
	for _, c := range n.Connections() {
		if c.State() == conn.StateSecured {
			count++
		}
	}
	return count
}

// PeerSet returns the peer set for level, if tracked.
func (n *Node) PeerSet(level db.PeerLevel) (*db.PeerSet, bool) {
	set, ok := n.peersets[level]
	return set, ok
}

// ScorerHandle returns the node's peer scorer.
func (n *Node) ScorerHandle() *Scorer {
	return n.scorer
}

// Database returns the underlying database.
func (n *Node) Database() *db.Database {
	return n.db
}

// Cfg returns the node's configuration.
func (n *Node) Cfg() Config {
	return n.cfg
}

// Broadcast sends payload to every secured, non-retired connection
// interested in it, skipping already-noticed entries. isAnnouncement,
// root, parent and id classify the entry per InterestedIn's rule.
func (n *Node) Broadcast(payload []byte, isAnnouncement bool, root raddi.Root, parent, id raddi.EID) {
	if !n.Noticed.Insert(id) {
		return
	}
	for _, c := range n.Connections() {
		if c.State() != conn.StateSecured {
			continue
		}
		if !c.InterestedIn(isAnnouncement, root, parent, id) {
			continue
		}
		_ = c.Send(payload)
	}
}

// LocallyInterested reports whether any application subscribed on this
// node cares to keep a classified ordinary entry in the local database:
// a match on its channel, its thread, or its author (the same lookup
// covers the "self-id" case, since a node keeping its own posts does so
// by subscribing to its own identity the same way it would follow
// anyone else's). Only Subscriptions and Retained are matched; Blacklist
// is consulted neither here nor by the connection's InterestedIn check.
func (n *Node) LocallyInterested(root raddi.Root, author raddi.IID) bool {
	authorEID := raddi.EIDFromIID(author)
	return n.Subscriptions.AnyInterested(root.Channel, root.Thread, authorEID) ||
		n.Retained.AnyInterested(root.Channel, root.Thread, authorEID)
}

// Flush persists every piece of mutable state the loop is responsible
// for. The pieces are independent files; one failing shouldn't stop the
// rest from being tried, so failures are aggregated rather than returned
// on first error.
func (n *Node) Flush() error {
	var agg errs.Errs
	for _, set := range n.peersets {
		agg.Add(set.Flush())
	}
	agg.Add(n.Subscriptions.Flush())
	agg.Add(n.Blacklist.Flush())
	agg.Add(n.Retained.Flush())
	agg.Add(n.db.Flush())
	return agg.Err()
}
