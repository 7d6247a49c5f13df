package coordinator

import (
	"bytes"
	"encoding/binary"
	"errors"
	"net/netip"
	"time"

	"github.com/raddi-network/raddi/conn"
	"github.com/raddi-network/raddi/db"
	"github.com/raddi-network/raddi/digest"
	"github.com/raddi-network/raddi/protocol"
	"github.com/raddi-network/raddi/raddi"
)

var (
	ErrBadInitial = errors.New("coordinator: initial request missing protocol magic")
	ErrShortBody  = errors.New("coordinator: request body too short for its type")
)

// coreFlag is the one advertisement bit honored on ipv4peer/ipv6peer
// payloads, and only when the advertising connection is itself at
// LevelCore — preserving the source implementation's guard on who may
// vouch for a core peer.
const coreFlag = 0x01

// HandleRequest dispatches one decoded coordinator request (a payload too
// short to be an entry) to its handler. The header's 24-bit timestamp mark
// is checked against the local RADDI clock to bound request replay per
// raddi.MaxRequestSkew/MaxRequestAge.
func (n *Node) HandleRequest(c *conn.Connection, header protocol.RequestHeader, body []byte) error {
	now := raddi.Now()
	// widen the 24-bit mark to the full timestamp nearest now
	delta := int32(header.Timestamp<<8-uint32(now)<<8) >> 8
	mark := now + raddi.Timestamp(delta)
	if raddi.Older(mark, now) && raddi.Age(mark, now) > int64(raddi.MaxRequestAge) {
		return nil // stale request, silently ignored
	}
	if raddi.Older(now, mark) && raddi.Age(now, mark) > int64(raddi.MaxRequestSkew) {
		return nil
	}

	allowed, reported := c.RateLimiter().Allow(time.Now())
	if !allowed {
		if reported {
			// a real node logs this once per second; the caller's logger
			// wires to this return path.
		}
		return nil
	}

	switch header.Type {
	case protocol.RequestInitial:
		return n.handleInitial(body)
	case protocol.RequestListening:
		return n.handleListening(c, body)
	case protocol.RequestPeers:
		return n.handlePeers(c)
	case protocol.RequestIPv4Peer, protocol.RequestIPv6Peer:
		return n.handlePeerAdvert(c, body)
	case protocol.RequestIdentities:
		return n.handleHistoryDigest(c, n.db.Identities, body, 4)
	case protocol.RequestChannels:
		return n.handleHistoryDigest(c, n.db.Channels, body, 3)
	case protocol.RequestSubscribe:
		return n.handleSubscribe(c, body)
	case protocol.RequestUnsubscribe:
		return n.handleUnsubscribe(c, body)
	case protocol.RequestEverything:
		c.SetEverything(true)
		return nil
	case protocol.RequestDownload:
		return n.handleDownload(c, body)
	default:
		return nil
	}
}

func (n *Node) handleInitial(body []byte) error {
	if !bytes.Equal(body, protocol.Magic[:]) {
		return ErrBadInitial
	}
	return nil
}

func (n *Node) handleListening(c *conn.Connection, body []byte) error {
	if len(body) < 2 {
		return ErrShortBody
	}
	port := binary.LittleEndian.Uint16(body)
	addr := raddi.Address{IP: c.Address.IP, Port: port}
	set, ok := n.PeerSet(db.LevelAnnounced)
	if !ok {
		return nil
	}
	if _, exists := set.Get(addr); !exists {
		set.Set(addr, 1)
	}
	return nil
}

func (n *Node) handlePeers(c *conn.Connection) error {
	addrs := WeightedSample(n.peersets, 32)
	buf := make([]byte, 0, len(addrs)*19)
	for _, a := range addrs {
		buf = append(buf, encodePeerAdvert(a, false)...)
	}
	return c.Send(buf)
}

// encodePeerAdvert and decodePeerAdvert share the ipv4peer/ipv6peer wire
// shape: a 1-byte flag (bit0 = advertised as core), a 1-byte IP length,
// the IP itself (4 or 16 bytes), and a little-endian u16 port.
func encodePeerAdvert(a raddi.Address, core bool) []byte {
	var flag byte
	if core {
		flag = coreFlag
	}
	rec := make([]byte, 0, 20)
	rec = append(rec, flag)
	var portBuf [2]byte
	binary.LittleEndian.PutUint16(portBuf[:], a.Port)
	ip := a.IP.AsSlice()
	rec = append(rec, byte(len(ip)))
	rec = append(rec, ip...)
	rec = append(rec, portBuf[:]...)
	return rec
}

func decodePeerAdvert(body []byte) (addr raddi.Address, core bool, ok bool) {
	if len(body) < 2 {
		return raddi.Address{}, false, false
	}
	core = body[0]&coreFlag != 0
	ipLen := int(body[1])
	if len(body) < 2+ipLen+2 {
		return raddi.Address{}, false, false
	}
	ipBytes := body[2 : 2+ipLen]
	port := binary.LittleEndian.Uint16(body[2+ipLen : 4+ipLen])
	parsed, ok := netip.AddrFromSlice(ipBytes)
	if !ok {
		return raddi.Address{}, false, false
	}
	return raddi.Address{IP: parsed.Unmap(), Port: port}, core, true
}

func (n *Node) handlePeerAdvert(c *conn.Connection, body []byte) error {
	addr, core, ok := decodePeerAdvert(body)
	if !ok {
		return ErrShortBody
	}
	if !addr.Valid(raddi.ValidationStrict) {
		return nil
	}

	level := db.LevelAnnounced
	if core {
		// only a connection we ourselves hold at LevelCore may vouch for
		// a new core peer.
		coreSet, ok := n.PeerSet(db.LevelCore)
		if ok {
			if _, isCore := coreSet.Get(c.Address); isCore {
				level = db.LevelCore
			}
		}
	}
	set, ok := n.PeerSet(level)
	if !ok {
		return nil
	}
	if _, exists := set.Get(addr); !exists {
		set.Set(addr, 1)
	}
	return nil
}

func (n *Node) handleSubscribe(c *conn.Connection, body []byte) error {
	if len(body) < 17 {
		return ErrShortBody
	}
	history := body[0] != 0
	channel, ok := raddi.UnmarshalEID(body[1:17])
	if !ok {
		return ErrShortBody
	}
	c.Subscribe(channel)
	if history {
		n.streamChannelBacklog(c, channel, 0)
	}
	return nil
}

func (n *Node) handleUnsubscribe(c *conn.Connection, body []byte) error {
	eid, ok := raddi.UnmarshalEID(body)
	if !ok {
		return ErrShortBody
	}
	c.Unsubscribe(eid)
	return nil
}

func (n *Node) handleDownload(c *conn.Connection, body []byte) error {
	if len(body) < 20 {
		return ErrShortBody
	}
	parent, ok := raddi.UnmarshalEID(body[0:16])
	if !ok {
		return ErrShortBody
	}
	threshold := binary.LittleEndian.Uint32(body[16:20])
	n.streamChannelBacklog(c, parent, threshold)
	return nil
}

// streamChannelBacklog sends, in ascending timestamp order, every data-row
// entry whose root names channel and whose timestamp is >= threshold.
func (n *Node) streamChannelBacklog(c *conn.Connection, channel raddi.EID, threshold uint32) {
	n.db.Data.EnumerateRange(threshold, ^uint32(0), func(row db.DataRow) bool {
		if row.Root.Channel != channel {
			return true
		}
		body, err := n.db.Data.Content(uint32(row.ID.Timestamp), row.Location)
		if err != nil {
			return true
		}
		_ = c.Send(body)
		return true
	})
}

// handleHistoryDigest answers an identities/channels history-sync request:
// body is threshold:u32 ‖ encoded remote spans. It builds the local span
// digest over the same table, compares it against the decoded remote
// ranges, and streams every entry in a range where the local count
// exceeds the remote's, plus everything newer than the reported threshold.
func (n *Node) handleHistoryDigest(c *conn.Connection, table interface {
	Bases() []uint32
	Count(uint32) (uint32, bool)
}, body []byte, k uint32) error {
	if len(body) < 4 {
		return ErrShortBody
	}
	threshold := binary.LittleEndian.Uint32(body[0:4])
	remoteSpans := digest.Decode(body[4:])
	remoteRanges := digest.Ranges(threshold, remoteSpans)

	bases := table.Bases()
	localSpans := digest.Build(bases, table.Count, threshold, 16, k)
	localRanges := digest.Ranges(threshold, localSpans)

	gaps := digest.Compare(localRanges, remoteRanges)
	for _, gap := range gaps {
		n.streamDataRange(c, gap.Lo, gap.Hi)
	}
	n.streamDataRange(c, threshold, ^uint32(0))
	return nil
}

func (n *Node) streamDataRange(c *conn.Connection, lo, hi uint32) {
	n.db.Data.EnumerateRange(lo, hi, func(row db.DataRow) bool {
		body, err := n.db.Data.Content(uint32(row.ID.Timestamp), row.Location)
		if err != nil {
			return true
		}
		_ = c.Send(body)
		return true
	})
}
