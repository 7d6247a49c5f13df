package db

import (
	"fmt"
	"net/netip"
	"os"
	"sort"
	"sync"

	"github.com/raddi-network/raddi/raddi"
)

// PeerLevel is one of the five tiers a peer address can occupy.
type PeerLevel uint8

const (
	LevelCore PeerLevel = iota
	LevelEstablished
	LevelValidated
	LevelAnnounced
	LevelBlacklisted
)

var peerLevelNames = [...]string{"core", "established", "validated", "announced", "blacklisted"}

func (l PeerLevel) String() string {
	if int(l) < len(peerLevelNames) {
		return peerLevelNames[l]
	}
	return "unknown"
}

// Assessment is the 16-bit score stored per address at a given level. For
// LevelBlacklisted, it instead encodes the day-of-unban.
type Assessment uint16

// PeerSet is the persistent address → assessment map for one level, kept
// as an append-format file of addr_bytes ‖ u16 assessment records,
// rewritten on Flush only when dirty.
type PeerSet struct {
	mu      sync.RWMutex
	level   PeerLevel
	path    string
	entries map[raddi.Address]Assessment
	dirty   bool
}

// OpenPeerSet loads (or creates) the peer-set file for level at path.
func OpenPeerSet(path string, level PeerLevel) (*PeerSet, error) {
	p := &PeerSet{level: level, path: path, entries: make(map[raddi.Address]Assessment)}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}
		return nil, err
	}
	const recSize = addressRecordSize + 2 // address record + 2-byte assessment
	for i := 0; i+recSize <= len(raw); i += recSize {
		rec := raw[i : i+recSize]
		addr, ok := decodeAddressRecord(rec[:addressRecordSize])
		if !ok {
			continue
		}
		score := uint16(rec[addressRecordSize]) | uint16(rec[addressRecordSize+1])<<8
		p.entries[addr] = Assessment(score)
	}
	return p, nil
}

// addressRecordSize is family(1) ‖ ip(16, IPv4 stored as the v4-in-v6
// mapped form) ‖ port(2).
const addressRecordSize = 19

func encodeAddressRecord(a raddi.Address) []byte {
	buf := make([]byte, addressRecordSize)
	if a.IP.Is4() {
		buf[0] = 1
	} else {
		buf[0] = 2
	}
	b := a.IP.As16()
	copy(buf[1:17], b[:])
	putU16(buf[17:19], a.Port)
	return buf
}

func decodeAddressRecord(buf []byte) (raddi.Address, bool) {
	if len(buf) < addressRecordSize {
		return raddi.Address{}, false
	}
	var ip16 [16]byte
	copy(ip16[:], buf[1:17])
	addr := netip.AddrFrom16(ip16)
	if buf[0] == 1 {
		addr = addr.Unmap()
	}
	return raddi.Address{IP: addr, Port: getU16(buf[17:19])}, true
}

// Get returns the stored assessment for addr, if present.
func (p *PeerSet) Get(addr raddi.Address) (Assessment, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	a, ok := p.entries[addr]
	return a, ok
}

// Set records or updates addr's assessment.
func (p *PeerSet) Set(addr raddi.Address, a Assessment) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries[addr] = a
	p.dirty = true
}

// Remove drops addr from the set.
func (p *PeerSet) Remove(addr raddi.Address) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.entries, addr)
	p.dirty = true
}

// Len returns the number of tracked addresses.
func (p *PeerSet) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}

// Sample returns up to n addresses, in a stable order (by Address.Less),
// for weighted-sampling callers to draw from.
func (p *PeerSet) Sample(n int) []raddi.Address {
	p.mu.RLock()
	defer p.mu.RUnlock()
	addrs := make([]raddi.Address, 0, len(p.entries))
	for a := range p.entries {
		addrs = append(addrs, a)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i].Less(addrs[j]) })
	if n < len(addrs) {
		addrs = addrs[:n]
	}
	return addrs
}

// Flush rewrites the peer-set file if it has pending changes.
func (p *PeerSet) Flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.dirty {
		return nil
	}
	var buf []byte
	for addr, score := range p.entries {
		rec := encodeAddressRecord(addr)
		rec = append(rec, byte(score), byte(score>>8))
		buf = append(buf, rec...)
	}
	if err := os.WriteFile(p.path, buf, 0o600); err != nil {
		return err
	}
	p.dirty = false
	return nil
}

// PeerSetPath derives the conventional peer-set file path for a level and
// address family tag, matching "<db>/network/01L0" (family=01 IPv4,
// level=0 core).
func PeerSetPath(root string, family int, level PeerLevel) string {
	return fmt.Sprintf("%s/network/%02dL%d", root, family, int(level))
}
