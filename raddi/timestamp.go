// Package raddi implements the core entry/identity/channel data model of the
// RADDI discussion network: identifiers, wire entry layout, validation and
// signing, and the small fixed constants that bound content sizes.
package raddi

import "time"

// timestampBase is the difference between 2020-01-01 00:00:00 UTC and the
// Unix epoch, in seconds. RADDI timestamps count seconds since 2020-01-01.
const timestampBase = 1577836800

// Timestamp is a RADDI timestamp: seconds since 2020-01-01 UTC, wrapping at
// 32 bits. Comparisons between timestamps must use modular age arithmetic
// (Older), not plain integer comparison.
type Timestamp uint32

// Now returns the current RADDI timestamp.
func Now() Timestamp {
	return FromTime(time.Now())
}

// FromTime converts a wall-clock time to a RADDI timestamp.
func FromTime(t time.Time) Timestamp {
	return Timestamp(uint32(t.Unix() - timestampBase))
}

// Time converts a RADDI timestamp back to a wall-clock time.
func (t Timestamp) Time() time.Time {
	return time.Unix(int64(t)+timestampBase, 0).UTC()
}

// Older reports whether t is older than reference, taking 32-bit wraparound
// into account: t is older than reference iff (t - reference) mod 2^32 >= 2^31.
func Older(t, reference Timestamp) bool {
	return uint32(t-reference) >= 0x8000_0000
}

// Age returns reference - t as a signed duration in seconds, correctly
// handling wraparound for timestamps within 2^31 seconds of each other.
func Age(t, reference Timestamp) int64 {
	diff := int32(reference - t)
	return int64(diff)
}
