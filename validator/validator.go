// Package validator implements the entry validation pipeline: structural
// checks, signature and proof-of-work enforcement, parent lookup with
// detached-buffering for orphans, database insertion, and broadcast.
package validator

import (
	"bytes"
	"crypto/ed25519"
	"errors"

	"github.com/raddi-network/raddi/coordinator"
	"github.com/raddi-network/raddi/crypto"
	"github.com/raddi-network/raddi/db"
	"github.com/raddi-network/raddi/proof"
	"github.com/raddi-network/raddi/raddi"
)

var (
	ErrTooShortForEntry  = errors.New("validator: payload too short to be an entry")
	ErrBadProofFraming   = errors.New("validator: no valid proof header found scanning from end")
	ErrTimestampOrdering = errors.New("validator: id/parent/identity timestamp ordering violated")
	ErrInsufficientProof = errors.New("validator: proof-of-work below required complexity/length")
)

// MinEntrySize is the smallest a payload can be and still possibly be an
// entry rather than a coordinator request: header plus the smallest legal
// proof.
const MinEntrySize = raddi.HeaderSize + proof.MinSize

// IsRequest reports whether payload is too short to be an entry and should
// instead be dispatched to the coordinator's request handler.
func IsRequest(payload []byte) bool {
	return len(payload) < MinEntrySize
}

// Validator owns the node (database, caches, connection broadcast) that
// accepted entries flow through.
type Validator struct {
	node *coordinator.Node
}

// New wraps node with a Validator.
func New(node *coordinator.Node) *Validator {
	return &Validator{node: node}
}

// decoded is payload split into its header fields, the real (announcement
// name / comment body) content the signature and proof-of-work seed are
// computed over, and the trailing proof. wireContent additionally carries
// the full on-wire content block (real content ‖ NUL ‖ proof header ‖
// proof) as originally received, needed only to re-store or re-forward the
// entry byte-for-byte.
type decoded struct {
	entry       raddi.Entry
	wireContent []byte
	proofHeader proof.Header
	proofBytes  []byte
}

// parse splits payload into header, real content, and proof, locating the
// proof by scanning backward from the end for a NUL byte followed by a
// valid 2-byte proof header — the same framing rule a miner follows when
// appending its solution after the content. The signing digest and
// proof-of-work seed are computed over the real content alone: the proof
// can't be part of what it's itself mined against.
func parse(payload []byte) (decoded, error) {
	if len(payload) < MinEntrySize {
		return decoded{}, ErrTooShortForEntry
	}

	id, ok := raddi.UnmarshalEID(payload[0:16])
	if !ok {
		return decoded{}, ErrTooShortForEntry
	}
	parent, ok := raddi.UnmarshalEID(payload[16:32])
	if !ok {
		return decoded{}, ErrTooShortForEntry
	}
	var sig [64]byte
	copy(sig[:], payload[32:96])
	rest := payload[96:]

	for length := proof.MinLength; length <= proof.MaxLength; length += 2 {
		proofLen := proof.Size(length)
		candidateOffset := len(rest) - proofLen
		if candidateOffset < 0 {
			continue
		}
		var hdrBytes [2]byte
		copy(hdrBytes[:], rest[candidateOffset:candidateOffset+2])
		hdr, ok := proof.DecodeHeader(hdrBytes)
		if !ok || hdr.Length != length {
			continue
		}
		return decoded{
			entry: raddi.Entry{
				ID:        id,
				Parent:    parent,
				Signature: sig,
				Content:   rest[:candidateOffset],
			},
			wireContent: rest,
			proofHeader: hdr,
			proofBytes:  rest[candidateOffset+2:],
		}, nil
	}
	return decoded{}, ErrBadProofFraming
}

// Outcome describes what happened to an entry fed through Process.
type Outcome uint8

const (
	OutcomeInserted Outcome = iota
	OutcomeDetached
	OutcomeDuplicate
	OutcomeRejected
	// OutcomeRelayed marks a classified ordinary entry that passed every
	// check and was broadcast to peers but, absent a local subscription
	// match and store_everything, was not kept in the local database.
	OutcomeRelayed
)

// Process runs the full pipeline for one payload already classified as an
// entry (see IsRequest): structural validation, signature/PoW assessment,
// classification, insertion, and broadcast/detached fan-out.
func (v *Validator) Process(payload []byte) (Outcome, error) {
	d, err := parse(payload)
	if err != nil {
		return OutcomeRejected, err
	}
	e := d.entry

	if v.node.Noticed.Contains(e.ID) {
		return OutcomeDuplicate, nil
	}
	if v.node.Refused.Contains(e.Parent) {
		v.node.Refused.Insert(e.ID)
		return OutcomeRejected, nil
	}

	now := raddi.Now()
	if err := raddi.ValidateTimestamp(&e, now); err != nil {
		return OutcomeRejected, err
	}
	if e.ID.Timestamp != e.Parent.Timestamp && !raddi.Older(e.Parent.Timestamp, e.ID.Timestamp) {
		return OutcomeRejected, ErrTimestampOrdering
	}
	if err := raddi.ValidateContentSize(d.wireContent); err != nil {
		return OutcomeRejected, err
	}

	switch e.Type() {
	case raddi.NewIdentityAnnouncement:
		return v.assessIdentity(e, d)
	case raddi.NewChannelAnnouncement:
		return v.assessChannel(e, d)
	default:
		return v.assessOrdinary(e, d)
	}
}

// assessIdentity handles an identity announcement. Its own EID carries a
// null author identity (there is no identity to author it with yet — it's
// the entry that creates one): the identity's real IID is derived fresh
// from its creation timestamp and its announced public key, never read off
// the entry's own id/parent fields.
func (v *Validator) assessIdentity(e raddi.Entry, d decoded) (Outcome, error) {
	identity, ok := raddi.DecodeIdentity(e.Content)
	if !ok {
		return OutcomeRejected, ErrTooShortForEntry
	}
	if err := identity.Validate(); err != nil {
		return OutcomeRejected, err
	}
	if err := e.Verify(identity.PublicKey, nil); err != nil {
		return OutcomeRejected, err
	}
	if err := v.enforcePoW(e, d, false); err != nil {
		return OutcomeRejected, err
	}

	iid := raddi.IID{
		Timestamp: e.ID.Timestamp,
		Nonce:     crypto.IdentityNonce(uint32(e.ID.Timestamp), identity.PublicKey),
	}
	row := db.IdentityRow{ID: iid}
	wire := entryWireBytes(e, d.wireContent)
	if err := v.node.Database().Identities.Insert(row, wire); err != nil {
		return OutcomeRejected, err
	}

	own := raddi.EIDFromIID(iid)
	v.node.Broadcast(wire, true, raddi.Root{Channel: own, Thread: own}, e.Parent, e.ID)
	v.node.Detached.Accept(own, func(child []byte) { _, _ = v.Process(child) })
	return OutcomeInserted, nil
}

func (v *Validator) assessChannel(e raddi.Entry, d decoded) (Outcome, error) {
	ownerPub, ok := v.lookupIdentityKey(e.Parent.Identity)
	if !ok {
		v.node.Detached.Insert(raddi.EIDFromIID(e.Parent.Identity), entryWireBytes(e, d.wireContent))
		return OutcomeDetached, nil
	}
	if err := e.Verify(ownerPub, nil); err != nil {
		return OutcomeRejected, err
	}
	if err := raddi.DecodeChannel(e.Content).Validate(); err != nil {
		return OutcomeRejected, err
	}
	if err := v.enforcePoW(e, d, false); err != nil {
		return OutcomeRejected, err
	}

	row := db.ChannelRow{ID: e.ID}
	wire := entryWireBytes(e, d.wireContent)
	if err := v.node.Database().Channels.Insert(row, wire); err != nil {
		return OutcomeRejected, err
	}

	v.node.Broadcast(wire, true, raddi.Root{Channel: e.ID, Thread: e.ID}, e.Parent, e.ID)
	v.node.Detached.Accept(e.ID, func(child []byte) { _, _ = v.Process(child) })
	return OutcomeInserted, nil
}

func (v *Validator) assessOrdinary(e raddi.Entry, d decoded) (Outcome, error) {
	authorPub, ok := v.lookupIdentityKey(e.ID.Identity)
	if !ok {
		v.node.Detached.Insert(raddi.EIDFromIID(e.ID.Identity), entryWireBytes(e, d.wireContent))
		return OutcomeDetached, nil
	}

	root, parentBytes, opensThread, found := v.resolveParent(e.Parent)
	if !found {
		v.node.Detached.Insert(e.Parent, entryWireBytes(e, d.wireContent))
		return OutcomeDetached, nil
	}

	if err := e.Verify(authorPub, parentBytes); err != nil {
		return OutcomeRejected, err
	}
	if err := v.enforcePoW(e, d, opensThread); err != nil {
		return OutcomeRejected, err
	}

	wire := entryWireBytes(e, d.wireContent)

	// A classified ordinary entry is only kept locally when store_everything
	// is set or some local subscription actually cares about it; otherwise
	// it is still verified, still relayed to peers, and still offered to
	// any detached children waiting on it — it just isn't persisted here.
	interested := v.node.Cfg().StoreEverything || v.node.LocallyInterested(root, e.ID.Identity)
	outcome := OutcomeRelayed
	if interested {
		row := db.DataRow{ID: e.ID, Parent: e.Parent, Root: root, Type: classifyContentType(e.Content)}
		if err := v.node.Database().Data.Insert(row, wire); err != nil {
			return OutcomeRejected, err
		}
		if opensThread {
			threadRow := db.ThreadRow{ID: e.ID, Parent: e.Parent}
			if err := v.node.Database().Threads.Insert(threadRow, wire); err != nil {
				return OutcomeRejected, err
			}
		}
		outcome = OutcomeInserted
	}

	v.node.Broadcast(wire, false, root, e.Parent, e.ID)
	v.node.Detached.Accept(e.ID, func(child []byte) { _, _ = v.Process(child) })
	return outcome, nil
}

// enforcePoW verifies e's proof meets or exceeds the minimum complexity for
// its kind.
func (v *Validator) enforcePoW(e raddi.Entry, d decoded, opensThread bool) error {
	_, minComplexity := e.DefaultRequirements(opensThread)
	if d.proofHeader.Complexity < minComplexity {
		return ErrInsufficientProof
	}
	seed := raddi.PoWSeed(&e, nil)
	return proof.Verify(seed, d.proofHeader, d.proofBytes)
}

// resolveParent looks up parent among the data and channel tables (an
// ordinary entry's parent is either a prior ordinary entry or the channel
// it opens a thread under — identities aren't addressable reply targets)
// and returns its classified root, its raw wire bytes (needed to verify
// e's signature, which covers the full parent entry), and whether parent
// is a channel announcement — meaning e opens a new thread.
func (v *Validator) resolveParent(parent raddi.EID) (root raddi.Root, parentBytes []byte, opensThread, found bool) {
	database := v.node.Database()

	if row, ok := database.Data.Find(func(r db.DataRow) bool { return r.ID == parent }); ok {
		body, err := database.Data.Content(uint32(parent.Timestamp), row.Location)
		if err != nil {
			return raddi.Root{}, nil, false, false
		}
		return db.Classify(parent, false, row.Root), body, false, true
	}
	if row, ok := database.Channels.Find(func(r db.ChannelRow) bool { return r.ID == parent }); ok {
		body, err := database.Channels.Content(uint32(parent.Timestamp), row.Location)
		if err != nil {
			return raddi.Root{}, nil, false, false
		}
		return db.Classify(parent, true, raddi.Root{}), body, true, true
	}
	return raddi.Root{}, nil, false, false
}

func (v *Validator) lookupIdentityKey(id raddi.IID) (ed25519.PublicKey, bool) {
	database := v.node.Database()
	row, ok := database.Identities.Find(func(r db.IdentityRow) bool { return r.ID == id })
	if !ok {
		return nil, false
	}
	body, err := database.Identities.Content(uint32(id.Timestamp), row.Location)
	if err != nil {
		return nil, false
	}
	stored, err := parse(body)
	if err != nil {
		return nil, false
	}
	identity, ok := raddi.DecodeIdentity(stored.entry.Content)
	if !ok {
		return nil, false
	}
	return identity.PublicKey, true
}

// entryWireBytes reconstructs the full wire form of e: id ‖ parent ‖
// signature ‖ wireContent, where wireContent is the full on-wire content
// block (real content ‖ NUL ‖ proof header ‖ proof) as originally received
// or assembled — never e.Content alone, which excludes the proof.
func entryWireBytes(e raddi.Entry, wireContent []byte) []byte {
	buf := make([]byte, 0, raddi.HeaderSize+len(wireContent))
	buf = append(buf, e.ID.MarshalBinary()...)
	buf = append(buf, e.Parent.MarshalBinary()...)
	buf = append(buf, e.Signature[:]...)
	buf = append(buf, wireContent...)
	return buf
}

// classifyContentType makes a best-effort guess at a data row's content
// kind from its leading byte, letting history-sync filters skip votes
// without touching the content file; it never affects acceptance, only the
// stored filter bit.
func classifyContentType(content []byte) db.ContentType {
	if bytes.HasPrefix(content, []byte{'+'}) || bytes.HasPrefix(content, []byte{'-'}) {
		return db.ContentVote
	}
	return db.ContentText
}
