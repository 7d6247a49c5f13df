package raddi

import (
	"strconv"
	"strings"
)

// EID identifies an entry: its own creation timestamp plus the identity of
// its author. An identity-announcement entry carries the null Identity and
// equals its own Parent. For a channel-announcement entry, EID equals its
// own Parent.
type EID struct {
	Timestamp Timestamp
	Identity  IID
}

// EIDFromIID derives a synthetic EID standing for an identity (its
// timestamp plus the identity itself), used as a subscription and
// detached-cache key. It is not the EID of the identity's announcement
// entry, which carries the null Identity.
func EIDFromIID(id IID) EID {
	return EID{Timestamp: id.Timestamp, Identity: id}
}

// Erased reports whether this EID represents a deleted database row.
func (e EID) Erased() bool {
	return e.Timestamp == 0 && e.Identity.Erased()
}

// Equal reports structural equality.
func (e EID) Equal(o EID) bool {
	return e.Timestamp == o.Timestamp && e.Identity == o.Identity
}

// Less orders EIDs by timestamp then identity, the on-disk sort order used
// by every table's shard index.
func (e EID) Less(o EID) bool {
	if e.Timestamp != o.Timestamp {
		return e.Timestamp < o.Timestamp
	}
	return e.Identity.Less(o.Identity)
}

// String renders the canonical "iid-timestamp" hex form.
func (e EID) String() string {
	return e.Identity.String() + "-" + strconv.FormatUint(uint64(uint32(e.Timestamp)), 16)
}

// ParseEID parses the canonical form produced by String, ignoring
// surrounding and internal whitespace around the separating dash. It
// returns the number of characters consumed, or zero on failure.
func ParseEID(s string) (EID, int) {
	id, n := ParseIID(s)
	if n == 0 {
		return EID{}, 0
	}
	pos := n
	for pos < len(s) && (s[pos] == ' ' || s[pos] == '\t') {
		pos++
	}
	if pos >= len(s) || s[pos] != '-' {
		return EID{}, 0
	}
	pos++
	for pos < len(s) && (s[pos] == ' ' || s[pos] == '\t') {
		pos++
	}
	start := pos
	for pos < len(s) && isHex(s[pos]) {
		pos++
	}
	if pos == start {
		return EID{}, 0
	}
	ts, err := strconv.ParseUint(s[start:pos], 16, 32)
	if err != nil {
		return EID{}, 0
	}
	return EID{Timestamp: Timestamp(ts), Identity: id}, pos
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// wireSize is the on-wire/on-disk size of an EID: large enough to hold the
// three 32-bit fields (entry timestamp, identity timestamp, identity nonce)
// with trailing reserved bytes, matching the struct alignment padding of
// the original implementation this format is derived from.
const wireSize = 16

// MarshalBinary encodes the EID in its 16-byte wire form.
func (e EID) MarshalBinary() []byte {
	buf := make([]byte, wireSize)
	putUint32LE(buf[0:4], uint32(e.Timestamp))
	putUint32LE(buf[4:8], uint32(e.Identity.Timestamp))
	putUint32LE(buf[8:12], e.Identity.Nonce)
	return buf
}

// UnmarshalEID decodes an EID from its 16-byte wire form.
func UnmarshalEID(b []byte) (EID, bool) {
	if len(b) < wireSize {
		return EID{}, false
	}
	return EID{
		Timestamp: Timestamp(getUint32LE(b[0:4])),
		Identity: IID{
			Timestamp: Timestamp(getUint32LE(b[4:8])),
			Nonce:     getUint32LE(b[8:12]),
		},
	}, true
}

func putUint32LE(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func getUint32LE(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// Root is the denormalized (channel, thread) pair stored per ordinary entry
// so that "all entries in channel X" or "all entries in thread Y" can be
// answered directly from the data table without walking parent chains.
type Root struct {
	Channel EID
	Thread  EID
}
