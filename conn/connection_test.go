package conn

import (
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	raddicrypto "github.com/raddi-network/raddi/crypto"
	"github.com/raddi-network/raddi/protocol"
	"github.com/raddi-network/raddi/raddi"
)

func addr(port uint16) raddi.Address {
	return raddi.Address{IP: netip.MustParseAddr("127.0.0.1"), Port: port}
}

func securedPair(t *testing.T) (*Connection, *Connection) {
	t.Helper()
	a, b := net.Pipe()

	key := [32]byte{}
	for i := range key {
		key[i] = byte(i)
	}
	aeadA, err := raddicrypto.NewAEAD(raddicrypto.CipherXChaCha20Poly1305, key[:])
	require.NoError(t, err)
	aeadB, err := raddicrypto.NewAEAD(raddicrypto.CipherXChaCha20Poly1305, key[:])
	require.NoError(t, err)

	connA := New(a, addr(1111))
	connB := New(b, addr(2222))

	var nonceAtoB, nonceBtoA [32]byte
	nonceAtoB[0] = 1
	nonceBtoA[0] = 2

	// A transmits on nonceAtoB, B receives on nonceAtoB; A receives on
	// nonceBtoA, B transmits on nonceBtoA.
	connA.Secure(aeadA, aeadA, nonceBtoA, nonceAtoB)
	connB.Secure(aeadB, aeadB, nonceAtoB, nonceBtoA)

	return connA, connB
}

func TestSendReceiveRoundtrip(t *testing.T) {
	connA, connB := securedPair(t)
	defer connA.Retire()
	defer connB.Retire()

	done := make(chan struct{})
	var got []byte
	var recvErr error
	go func() {
		got, recvErr = connB.Receive()
		close(done)
	}()

	require.NoError(t, connA.Send([]byte("hello raddi")))
	<-done
	require.NoError(t, recvErr)
	require.Equal(t, []byte("hello raddi"), got)
}

func TestKeepAliveQueryTriggersAutoReply(t *testing.T) {
	connA, connB := securedPair(t)
	defer connA.Retire()
	defer connB.Retire()

	go func() {
		// B observes A's keep-alive query and auto-replies; the reply write
		// blocks on net.Pipe until the test below reads it.
		_, _ = connB.Receive()
	}()

	require.NoError(t, connA.KeepAlive())

	length, sentinel, err := protocol.ReadLengthPrefix(connA.socket)
	require.NoError(t, err)
	require.True(t, sentinel)
	require.Equal(t, protocol.SentinelKeepAliveReply, length)
}

func TestInterestedInAnnouncementAlwaysTrue(t *testing.T) {
	c := New(nil, addr(1))
	require.True(t, c.InterestedIn(true, raddi.Root{}, raddi.EID{}, raddi.EID{}))
}

func TestInterestedInBySubscription(t *testing.T) {
	c := New(nil, addr(1))
	channel := raddi.EID{Timestamp: 10}
	require.False(t, c.InterestedIn(false, raddi.Root{Channel: channel}, raddi.EID{}, raddi.EID{}))
	c.Subscribe(channel)
	require.True(t, c.InterestedIn(false, raddi.Root{Channel: channel}, raddi.EID{}, raddi.EID{}))
}

func TestInterestedInEverything(t *testing.T) {
	c := New(nil, addr(1))
	c.SetEverything(true)
	require.True(t, c.InterestedIn(false, raddi.Root{}, raddi.EID{}, raddi.EID{}))
}

func TestRateLimiterAllowsUnderLimit(t *testing.T) {
	rl := NewRateLimiter(10)
	now := time.Now()
	for i := 0; i < 10; i++ {
		allowed, reported := rl.Allow(now)
		require.True(t, allowed)
		require.False(t, reported)
	}
	allowed, reported := rl.Allow(now)
	require.False(t, allowed)
	require.True(t, reported)
}

func TestRateLimiterReportsOncePerSecond(t *testing.T) {
	rl := NewRateLimiter(1)
	now := time.Now()
	rl.Allow(now)
	_, reported1 := rl.Allow(now)
	_, reported2 := rl.Allow(now)
	require.True(t, reported1)
	require.False(t, reported2)

	_, reported3 := rl.Allow(now.Add(2 * time.Second))
	require.True(t, reported3)
}

func TestRateLimiterWindowSlidesAfterBucketsExpire(t *testing.T) {
	rl := NewRateLimiter(5)
	now := time.Now()
	for i := 0; i < 5; i++ {
		allowed, _ := rl.Allow(now)
		require.True(t, allowed)
	}
	allowed, _ := rl.Allow(now)
	require.False(t, allowed)

	later := now.Add(61 * time.Second)
	allowed, _ = rl.Allow(later)
	require.True(t, allowed)
}
