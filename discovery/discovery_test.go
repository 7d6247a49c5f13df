package discovery

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/raddi-network/raddi/raddi"
)

func TestEncodeDecodePacketRoundTrip(t *testing.T) {
	raw := encodePacket(44303)
	port, ok := decodePacket(raw)
	require.True(t, ok)
	require.EqualValues(t, 44303, port)
}

func TestDecodePacketRejectsWrongMagic(t *testing.T) {
	raw := encodePacket(1)
	raw[0] ^= 0xFF
	_, ok := decodePacket(raw)
	require.False(t, ok)
}

func TestDecodePacketRejectsShort(t *testing.T) {
	_, ok := decodePacket(make([]byte, 4))
	require.False(t, ok)
}

func TestHandleThrottlesRepeatWithinSameEpoch(t *testing.T) {
	p := &Point{lastSeen: make(map[string]raddi.Timestamp)}

	var discovered int
	p.Discovered = func(raddi.Address) { discovered++ }

	from := &net.UDPAddr{IP: net.ParseIP("10.0.0.5"), Port: 5000}
	data := encodePacket(1234)

	p.handle(data, from)
	p.handle(data, from)

	require.Equal(t, 1, discovered, "second packet within the same epoch must be throttled")
}

func TestPointRespondsToAnnouncement(t *testing.T) {
	a, err := New(0)
	require.NoError(t, err)
	defer a.Close()

	b, err := New(0)
	require.NoError(t, err)
	defer b.Close()

	a.Announcement = 11111
	b.Announcement = 22222

	discovered := make(chan raddi.Address, 1)
	b.Discovered = func(addr raddi.Address) { discovered <- addr }

	go b.Run()

	bAddr := b.conn.LocalAddr().(*net.UDPAddr)
	raw := encodePacket(a.Announcement)
	_, err = a.conn.WriteToUDP(raw, bAddr)
	require.NoError(t, err)

	select {
	case addr := <-discovered:
		require.True(t, addr.IP.IsLoopback())
		require.EqualValues(t, 11111, addr.Port)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for discovery")
	}
}
