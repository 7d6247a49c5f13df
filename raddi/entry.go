package raddi

import (
	"crypto/ed25519"
	"crypto/sha512"
	"errors"
)

// HeaderSize is the fixed size of an entry's id+parent+signature header,
// preceding the variable-length content and trailing proof-of-work.
const HeaderSize = 16 + 16 + 64

// MaxPayload is the largest frame payload the transport will carry, derived
// from the maximum 16-bit frame size less AEAD framing overhead. It bounds
// MaxContentSize below.
const MaxPayload = 65518

// MaxContentSize is MaxPayload less the entry header: the bound on entry
// content (announcement name, comment body, vote, …) before the proof is
// accounted for. It leaves no room for the proof.
const MaxContentSize = MaxPayload - HeaderSize - 0 // proof length is variable; callers must also subtract proof.Size(length)

// AnnouncementType classifies an entry by comparing its id against its
// parent, per the network's "no separate announcement flag" design: the
// wire shape alone carries the meaning.
type AnnouncementType uint8

const (
	// NotAnAnnouncement is an ordinary entry: a comment, vote, or reply.
	NotAnAnnouncement AnnouncementType = iota
	// NewIdentityAnnouncement is an entry whose id and parent are equal and
	// whose parent identity is the null identity — the entry that brings an
	// identity into existence.
	NewIdentityAnnouncement
	// NewChannelAnnouncement is an entry whose id and parent are equal and
	// whose parent identity is not null — the entry that brings a channel
	// into existence, owned by that identity.
	NewChannelAnnouncement
)

var (
	ErrContentTooLarge = errors.New("raddi: content too large")
	ErrBadSignature    = errors.New("raddi: signature verification failed")
	ErrSkewedTimestamp = errors.New("raddi: id timestamp too far in the future")
)

// Entry is a single signed, proof-of-work-bearing unit of content: an
// identity or channel announcement, or an ordinary comment/reply/vote
// attached to some parent.
type Entry struct {
	ID        EID
	Parent    EID
	Signature [64]byte
	Content   []byte // real content only; the trailing proof-of-work header and cycle are not included
}

// Type classifies e per the id/parent comparison described above: equal id
// and parent with a null e.Parent.Identity is an identity announcement,
// equal id and parent otherwise a channel announcement.
func (e *Entry) Type() AnnouncementType {
	if !e.ID.Equal(e.Parent) {
		return NotAnAnnouncement
	}
	if e.Parent.Identity.IsNull() {
		return NewIdentityAnnouncement
	}
	return NewChannelAnnouncement
}

// IsAnnouncement reports whether e announces a new identity or channel.
func (e *Entry) IsAnnouncement() bool {
	return e.Type() != NotAnAnnouncement
}

// MaxContentSizeFor returns the largest content size (proof included) an
// entry may carry, independent of MaxContentSize's conservative constant.
func MaxContentSizeFor() int {
	return MaxPayload - HeaderSize
}

// signingDigest computes the SHA-512 hash that Sign and Verify operate over:
// id ‖ parent ‖ content, plus — for ordinary (non-announcement) entries —
// the full bytes of the parent entry, binding a reply to the exact content
// it replied to rather than just the parent's id. parentEntry is nil for
// announcements and for parents not held locally (verification of such
// entries is deferred until the parent is available).
func signingDigest(id, parent EID, content []byte, parentEntry []byte) [64]byte {
	h := sha512.New()
	idBytes := id.MarshalBinary()
	parentBytes := parent.MarshalBinary()
	h.Write(idBytes)
	h.Write(parentBytes)
	h.Write(content)
	if parentEntry != nil {
		h.Write(parentEntry)
	}
	var sum [64]byte
	copy(sum[:], h.Sum(nil))
	return sum
}

// Sign computes e.Signature over e's signing digest using the given Ed25519
// private key. parentEntry should be the raw bytes of the parent entry when
// e is not an announcement, and nil otherwise.
func (e *Entry) Sign(key ed25519.PrivateKey, parentEntry []byte) {
	digest := signingDigest(e.ID, e.Parent, e.Content, parentEntry)
	sig := ed25519.Sign(key, digest[:])
	copy(e.Signature[:], sig)
}

// Verify checks e.Signature against the given Ed25519 public key.
// parentEntry must be supplied for non-announcement entries, matching Sign.
func (e *Entry) Verify(pub ed25519.PublicKey, parentEntry []byte) error {
	digest := signingDigest(e.ID, e.Parent, e.Content, parentEntry)
	if !ed25519.Verify(pub, digest[:], e.Signature[:]) {
		return ErrBadSignature
	}
	return nil
}

// PoWSeed returns the 64-byte domain hash the proof-of-work cycle is mined
// and verified against: signingDigest over id, parent, content and
// parentEntry. The validator verifies every entry's proof with a nil
// parentEntry, so for an ordinary entry the seed leaves out the parent's
// bytes that its signature covers.
func PoWSeed(e *Entry, parentEntry []byte) [64]byte {
	return signingDigest(e.ID, e.Parent, e.Content, parentEntry)
}

// DefaultRequirements returns the minimum proof-of-work time (milliseconds)
// and complexity this entry must satisfy, given whether it opens a new
// thread (parent == channel root, i.e. parent.Identity refers to a channel
// rather than a prior comment).
func (e *Entry) DefaultRequirements(opensThread bool) (minTimeMS int, minComplexity int) {
	switch e.Type() {
	case NewIdentityAnnouncement, NewChannelAnnouncement:
		return MinAnnouncementPoWTime, MinAnnouncementPoWComplexity
	default:
		complexity := MinEntryPoWComplexity
		if opensThread && MinThreadPoWComplexity > complexity {
			complexity = MinThreadPoWComplexity
		}
		return MinEntryPoWTime, complexity
	}
}

// ValidateContentSize reports whether content (proof-of-work bytes
// included) fits within one frame alongside the entry header.
func ValidateContentSize(content []byte) error {
	if len(content) > MaxContentSizeFor() {
		return ErrContentTooLarge
	}
	return nil
}

// ValidateTimestamp reports whether e's id timestamp is acceptable relative
// to now: not more than MaxEntrySkew in the future.
func ValidateTimestamp(e *Entry, now Timestamp) error {
	if Older(now, e.ID.Timestamp) && Age(now, e.ID.Timestamp) > int64(MaxEntrySkew) {
		return ErrSkewedTimestamp
	}
	return nil
}
