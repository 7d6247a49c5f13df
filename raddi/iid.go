package raddi

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// IID identifies an identity (user account): the timestamp of its creating
// announcement entry plus a nonce binding that timestamp to the identity's
// public key, preventing vanity spoofing of the textual representation.
type IID struct {
	Timestamp Timestamp
	Nonce     uint32
}

// IsNull reports whether both fields are zero — the reserved "no identity" value.
func (id IID) IsNull() bool {
	return id.Timestamp == 0 && id.Nonce == 0
}

// Erased reports whether this IID represents a deleted database row.
func (id IID) Erased() bool {
	return id.IsNull()
}

// Less orders IIDs primarily by timestamp, then by nonce, matching the
// on-disk sort order of the identities table.
func (id IID) Less(other IID) bool {
	if id.Timestamp != other.Timestamp {
		return id.Timestamp < other.Timestamp
	}
	return id.Nonce < other.Nonce
}

// String renders the canonical "nonce timestamp" hex form, e.g. "0badc0de0001e240".
func (id IID) String() string {
	return fmt.Sprintf("%08x%08x", id.Nonce, uint32(id.Timestamp))
}

// ParseIID parses the canonical hex form produced by String, skipping
// leading spaces and tabs. It returns the number of characters consumed, or
// zero on failure.
func ParseIID(s string) (IID, int) {
	trimmed := strings.TrimLeft(s, " \t")
	skipped := len(s) - len(trimmed)
	if len(trimmed) < 16 {
		return IID{}, 0
	}
	nonce, err := strconv.ParseUint(trimmed[0:8], 16, 32)
	if err != nil {
		return IID{}, 0
	}
	ts, err := strconv.ParseUint(trimmed[8:16], 16, 32)
	if err != nil {
		return IID{}, 0
	}
	return IID{Timestamp: Timestamp(ts), Nonce: uint32(nonce)}, skipped + 16
}

// MarshalBinary encodes the IID as nonce (4 bytes LE) followed by timestamp
// (4 bytes LE), the layout of the identities table's row key. The identity
// fields inside an EID's wire form are ordered timestamp first, then nonce.
func (id IID) MarshalBinary() []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint32(buf[0:4], id.Nonce)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(id.Timestamp))
	return buf
}

// UnmarshalIID decodes an IID from its 8-byte wire form.
func UnmarshalIID(b []byte) (IID, bool) {
	if len(b) < 8 {
		return IID{}, false
	}
	return IID{
		Nonce:     binary.LittleEndian.Uint32(b[0:4]),
		Timestamp: Timestamp(binary.LittleEndian.Uint32(b[4:8])),
	}, true
}
