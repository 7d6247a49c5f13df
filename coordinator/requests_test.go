package coordinator

import (
	"encoding/binary"
	"net/netip"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/raddi-network/raddi/conn"
	"github.com/raddi-network/raddi/db"
	"github.com/raddi-network/raddi/protocol"
	"github.com/raddi-network/raddi/raddi"
)

func testNode(t *testing.T) *Node {
	t.Helper()
	root := t.TempDir()
	database, err := db.Open(filepath.Join(root, "db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	n, err := NewNode(DefaultConfig(), database, filepath.Join(root, "db"))
	require.NoError(t, err)
	return n
}

func TestHandleInitialRejectsWrongMagic(t *testing.T) {
	n := testNode(t)
	err := n.handleInitial([]byte("not the magic"))
	require.ErrorIs(t, err, ErrBadInitial)

	require.NoError(t, n.handleInitial(protocol.Magic[:]))
}

func TestHandleListeningAddsAnnouncedPeer(t *testing.T) {
	n := testNode(t)
	c := conn.New(nil, raddi.Address{IP: netip.MustParseAddr("127.0.0.1"), Port: 1})

	var body [2]byte
	binary.LittleEndian.PutUint16(body[:], 44303)
	require.NoError(t, n.handleListening(c, body[:]))

	set, ok := n.PeerSet(db.LevelAnnounced)
	require.True(t, ok)
	_, exists := set.Get(raddi.Address{IP: netip.MustParseAddr("127.0.0.1"), Port: 44303})
	require.True(t, exists)
}

func TestPeerAdvertRespectsCoreGuard(t *testing.T) {
	n := testNode(t)
	advertiser := conn.New(nil, raddi.Address{IP: netip.MustParseAddr("10.0.0.1"), Port: 1})

	addr := raddi.Address{IP: netip.MustParseAddr("8.8.8.8"), Port: 44303}
	body := encodePeerAdvert(addr, true) // claims core, but advertiser isn't core

	require.NoError(t, n.handlePeerAdvert(advertiser, body))

	coreSet, _ := n.PeerSet(db.LevelCore)
	_, isCore := coreSet.Get(addr)
	require.False(t, isCore, "non-core advertiser must not be able to vouch for a core peer")

	announced, _ := n.PeerSet(db.LevelAnnounced)
	_, isAnnounced := announced.Get(addr)
	require.True(t, isAnnounced)
}

func TestPeerAdvertHonorsCoreGuardWhenAdvertiserIsCore(t *testing.T) {
	n := testNode(t)
	coreAddr := raddi.Address{IP: netip.MustParseAddr("10.0.0.2"), Port: 2}
	coreSet, _ := n.PeerSet(db.LevelCore)
	coreSet.Set(coreAddr, 1)

	advertiser := conn.New(nil, coreAddr)
	addr := raddi.Address{IP: netip.MustParseAddr("8.8.4.4"), Port: 44303}
	body := encodePeerAdvert(addr, true)

	require.NoError(t, n.handlePeerAdvert(advertiser, body))
	_, isCore := coreSet.Get(addr)
	require.True(t, isCore)
}

func TestHandleSubscribeRegistersInterest(t *testing.T) {
	n := testNode(t)
	c := conn.New(nil, raddi.Address{})
	channel := raddi.EID{Timestamp: 100}

	body := make([]byte, 17)
	body[0] = 0 // no history backfill requested
	copy(body[1:], channel.MarshalBinary())

	require.NoError(t, n.handleSubscribe(c, body))
	require.True(t, c.InterestedIn(false, raddi.Root{Channel: channel}, raddi.EID{}, raddi.EID{}))
}
