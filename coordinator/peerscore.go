package coordinator

import (
	"sync"
	"time"

	"github.com/raddi-network/raddi/db"
	"github.com/raddi-network/raddi/raddi"
)

// Scorer adjusts and benches peer assessments: Observe moves an address's
// assessment up or down, an address whose assessment falls to zero is
// removed from its set, and Ban excludes an address for an explicit
// duration. Bad outcomes alone never ban an address.
type Scorer struct {
	mu  sync.RWMutex
	sets map[db.PeerLevel]*db.PeerSet

	banUntil map[raddi.Address]time.Time
}

// NewScorer wraps the five peer-level sets a coordinator maintains.
func NewScorer(sets map[db.PeerLevel]*db.PeerSet) *Scorer {
	return &Scorer{sets: sets, banUntil: make(map[raddi.Address]time.Time)}
}

// Observe adjusts addr's assessment at level by delta (positive on
// successful handshake / useful response, negative on timeout or protocol
// disagreement), creating the entry if absent.
func (s *Scorer) Observe(level db.PeerLevel, addr raddi.Address, delta int) {
	set, ok := s.sets[level]
	if !ok {
		return
	}
	current, _ := set.Get(addr)
	next := int(current) + delta
	if next < 0 {
		next = 0
	}
	if next > 0xFFFF {
		next = 0xFFFF
	}
	if next == 0 {
		set.Remove(addr)
		return
	}
	set.Set(addr, db.Assessment(next))
}

// Promote moves addr from level to the next-better tier, if such a
// transition is valid (announced→validated, validated→established).
func (s *Scorer) Promote(addr raddi.Address, from db.PeerLevel) {
	var to db.PeerLevel
	switch from {
	case db.LevelAnnounced:
		to = db.LevelValidated
	case db.LevelValidated:
		to = db.LevelEstablished
	default:
		return
	}
	fromSet, ok1 := s.sets[from]
	toSet, ok2 := s.sets[to]
	if !ok1 || !ok2 {
		return
	}
	score, ok := fromSet.Get(addr)
	if !ok {
		return
	}
	fromSet.Remove(addr)
	toSet.Set(addr, score)
}

// Ban blacklists addr for duration, used on protocol disagreement: 1 day
// for inbound connections, 14 days for outbound, per the coordinator's
// scoring policy.
func (s *Scorer) Ban(addr raddi.Address, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.banUntil[addr] = time.Now().Add(duration)
	if set, ok := s.sets[db.LevelBlacklisted]; ok {
		unbanDay := uint16(time.Now().Add(duration).Unix() / 86400)
		set.Set(addr, db.Assessment(unbanDay))
	}
}

// IsBanned reports whether addr is currently blacklisted.
func (s *Scorer) IsBanned(addr raddi.Address) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	until, ok := s.banUntil[addr]
	if !ok {
		return false
	}
	return time.Now().Before(until)
}

const (
	InboundBanDuration  = 24 * time.Hour
	OutboundBanDuration = 14 * 24 * time.Hour
)
