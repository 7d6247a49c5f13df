package raddi

// Consensus-wide constants every node enforces identically so the network
// converges on what is, and is not, an acceptable entry.
const (
	// MaxEntrySkew is how far into the future an entry's id.timestamp may be.
	MaxEntrySkew Timestamp = 180
	// MaxEntryAge is how far in the past an entry may be and still be
	// worth propagating to peers. No code consults it: entries of any age
	// are accepted and rebroadcast.
	MaxEntryAge Timestamp = 600

	// MaxRequestSkew/MaxRequestAge bound the embedded 24-bit timestamp mark
	// carried by coordinator requests (see protocol.RequestHeader).
	MaxRequestSkew Timestamp = 180
	MaxRequestAge  Timestamp = 240

	// MaxIdentityNameSize and MaxChannelNameSize bound announcement content.
	MaxIdentityNameSize = 53
	MaxChannelNameSize  = 85

	// MinEntryPoWTime and MinEntryPoWComplexity are the minimum proof
	// requirements for an ordinary entry.
	MinEntryPoWTime       = 500 // milliseconds
	MinEntryPoWComplexity = 26

	// MinAnnouncementPoWTime and MinAnnouncementPoWComplexity are the
	// minimum proof requirements for identity/channel announcements.
	MinAnnouncementPoWTime       = 1500 // milliseconds
	MinAnnouncementPoWComplexity = 27

	// MinThreadPoWComplexity is enforced in addition to MinEntryPoWComplexity
	// for entries that open a new thread under a channel (parent == channel).
	MinThreadPoWComplexity = 27
)
