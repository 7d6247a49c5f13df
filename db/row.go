// Package db implements the sharded, append-only on-disk store: four
// tables (data, threads, channels, identities), each a sequence of
// timestamp-interval shards holding a sorted index file and a content blob
// file, plus the peer-set persistence the coordinator relies on.
package db

import "github.com/raddi-network/raddi/raddi"

// Location is the (offset, length) pair locating a row's content within its
// shard's content file.
type Location struct {
	Offset uint64 // 48 bits significant on the wire
	Length uint32 // 16 bits significant on the wire
}

// ContentType summarizes the kinds of content an entry carries, stored as a
// bitfield on data-table rows so readers can filter without touching the
// content file.
type ContentType uint8

const (
	ContentText ContentType = 1 << iota
	ContentVote
	ContentEdit
	ContentIdentityName
	ContentChannelName
)

// DataRow is one row of the data table: every ordinary entry.
type DataRow struct {
	ID       raddi.EID
	Parent   raddi.EID
	Location Location
	Root     raddi.Root
	Type     ContentType
}

// Key returns the row's sort/search key.
func (r DataRow) Key() raddi.EID { return r.ID }

// Erased reports whether this row has been administratively deleted.
func (r DataRow) Erased() bool { return r.ID.Erased() }

// Zero returns a copy of r with its id/parent overwritten to the erased
// (all-zero) value, per the "deletion overwrites id/parent with zeros" rule.
func (r DataRow) Zero() DataRow {
	r.ID = raddi.EID{}
	r.Parent = raddi.EID{}
	return r
}

// ThreadRow is one row of the threads table: ordinary entries whose parent
// is a channel, i.e. entries that open a new thread.
type ThreadRow struct {
	ID       raddi.EID
	Parent   raddi.EID
	Location Location
}

func (r ThreadRow) Key() raddi.EID  { return r.ID }
func (r ThreadRow) Erased() bool    { return r.ID.Erased() }
func (r ThreadRow) Zero() ThreadRow { r.ID, r.Parent = raddi.EID{}, raddi.EID{}; return r }

// ChannelRow is one row of the channels table: channel-announcement entries.
type ChannelRow struct {
	ID       raddi.EID
	Location Location
}

func (r ChannelRow) Key() raddi.EID   { return r.ID }
func (r ChannelRow) Erased() bool     { return r.ID.Erased() }
func (r ChannelRow) Zero() ChannelRow { r.ID = raddi.EID{}; return r }

// IdentityRow is one row of the identities table: identity-announcement
// entries, keyed by iid rather than eid since an identity's own eid is
// redundant with its iid (eid.timestamp == iid.timestamp for these rows).
type IdentityRow struct {
	ID       raddi.IID
	Location Location
}

func (r IdentityRow) Key() raddi.IID   { return r.ID }
func (r IdentityRow) Erased() bool     { return r.ID.Erased() }
func (r IdentityRow) Zero() IdentityRow { r.ID = raddi.IID{}; return r }

// Classify derives the Root (channel, thread) denormalization for an
// ordinary entry given its immediate parent row's own root — or, if the
// parent is itself a channel or identity announcement, derives the root
// directly from the parent id.
func Classify(parent raddi.EID, parentIsChannelOrIdentity bool, parentRoot raddi.Root) raddi.Root {
	if parentIsChannelOrIdentity {
		return raddi.Root{Channel: parent}
	}
	if parentRoot.Thread.Erased() {
		// parent is itself a thread-opening entry (parent.Parent == channel)
		return raddi.Root{Channel: parentRoot.Channel, Thread: parent}
	}
	return parentRoot
}
