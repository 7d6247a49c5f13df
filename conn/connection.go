// Package conn implements one peer connection's state machine and
// half-duplex pipelines: handshake negotiation, AEAD-framed receive and
// transmit, request-rate limiting, subscription membership, and keep-alive
// scheduling.
package conn

import (
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	raddicrypto "github.com/raddi-network/raddi/crypto"
	"github.com/raddi-network/raddi/protocol"
	"github.com/raddi-network/raddi/raddi"
)

// State is a connection's position in the pending → secured → retired
// lifecycle.
type State uint8

const (
	StatePending State = iota
	StateSecured
	StateRetired
)

// DefaultMaxRequestsPerMinute bounds the sum of a connection's per-second
// request counters over the trailing 60 seconds.
const DefaultMaxRequestsPerMinute = 4096

// DefaultKeepAlivePeriod is how long a connection may sit idle before a
// keep-alive query is sent.
const DefaultKeepAlivePeriod = 30 * time.Second

// Connection owns one peer socket and its framing/subscription state. Only
// the owning receive goroutine mutates receive-side fields; transmit-side
// fields are guarded by txMu so concurrent senders serialize correctly.
type Connection struct {
	socket  net.Conn
	Address raddi.Address
	Level   PeerLevelHint

	mu    sync.RWMutex
	state State

	receiveFramer  *protocol.Framer
	txMu           sync.Mutex
	transmitFramer *protocol.Framer

	everything    bool
	subscriptions map[raddi.EID]struct{}

	limiter *RateLimiter

	lastReceived time.Time
	lastSent     time.Time

	pending  [][]byte
	awaiting int
	delayed  int
}

// PeerLevelHint mirrors db.PeerLevel without importing the db package,
// keeping conn independent of storage.
type PeerLevelHint uint8

// New wraps an already-connected socket. The caller completes the
// handshake (see coordinator.PerformHandshake) before calling Secure.
func New(socket net.Conn, addr raddi.Address) *Connection {
	return &Connection{
		socket:        socket,
		Address:       addr,
		subscriptions: make(map[raddi.EID]struct{}),
		limiter:       NewRateLimiter(DefaultMaxRequestsPerMinute),
		lastReceived:  time.Now(),
		lastSent:      time.Now(),
	}
}

// Secure transitions a pending connection to secured once handshake and
// cipher negotiation succeed, installing the receive and transmit framers.
// rxCipher and txCipher are independently keyed AEAD instances (each
// direction of a handshake derives its own session key from its own half
// of the Diffie-Hellman exchange); callers that share one cipher keyed
// identically in both directions may pass the same instance for both.
func (c *Connection) Secure(rxCipher, txCipher raddicrypto.AEAD, rxNonce, txNonce [32]byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.receiveFramer = protocol.NewFramer(rxCipher, rxNonce)
	c.transmitFramer = protocol.NewFramer(txCipher, txNonce)
	c.state = StateSecured
}

// Retire transitions the connection to retired and closes its socket. Safe
// to call more than once.
func (c *Connection) Retire() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateRetired {
		return
	}
	c.state = StateRetired
	c.socket.Close()
}

// RateLimiter returns the connection's per-second request limiter, used by
// the coordinator's request dispatch to throttle abusive peers.
func (c *Connection) RateLimiter() *RateLimiter {
	return c.limiter
}

// State returns the connection's current lifecycle state.
func (c *Connection) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Send encodes and writes plaintext under the per-connection transmit lock,
// serializing encode+send so outbound frames from this connection stay
// strictly ordered.
func (c *Connection) Send(plaintext []byte) error {
	c.txMu.Lock()
	defer c.txMu.Unlock()

	frame, err := c.transmitFramer.Encode(plaintext)
	if err != nil {
		return err
	}
	c.awaiting++
	if _, err := c.socket.Write(frame); err != nil {
		return err
	}
	c.awaiting--
	c.lastSent = time.Now()
	return nil
}

// KeepAlive sends a bare keep-alive query, bypassing AEAD framing entirely
// (the sentinel lengths are never encrypted).
func (c *Connection) KeepAlive() error {
	return c.sendKeepAlive(false)
}

func (c *Connection) sendKeepAlive(reply bool) error {
	c.txMu.Lock()
	defer c.txMu.Unlock()
	if _, err := c.socket.Write(protocol.EncodeKeepAlive(reply)); err != nil {
		return err
	}
	c.lastSent = time.Now()
	return nil
}

// Receive reads and decodes the next frame, handling keep-alive sentinels
// transparently: a query sentinel triggers an automatic reply and returns
// (nil, nil) to the caller, a reply sentinel just bumps liveness.
func (c *Connection) Receive() ([]byte, error) {
	length, sentinel, err := protocol.ReadLengthPrefix(c.socket)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.lastReceived = time.Now()
	c.mu.Unlock()

	if sentinel {
		if length == protocol.SentinelKeepAliveQuery {
			return nil, c.sendKeepAlive(true)
		}
		return nil, nil
	}

	ciphertext := make([]byte, length)
	if _, err := ioReadFull(c.socket, ciphertext); err != nil {
		return nil, err
	}
	var lengthPrefix [2]byte
	lengthPrefix[0], lengthPrefix[1] = byte(length), byte(length>>8)
	return c.receiveFramer.Decode(lengthPrefix, ciphertext)
}

func ioReadFull(r interface{ Read([]byte) (int, error) }, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// IdleFor returns how long it has been since any bytes were received.
func (c *Connection) IdleFor() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Since(c.lastReceived)
}

// SinceLastSend returns how long it has been since any bytes were sent.
func (c *Connection) SinceLastSend() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Since(c.lastSent)
}

// SetEverything sets the subscribe-all flag, per the `everything` request.
func (c *Connection) SetEverything(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.everything = v
}

// Subscribe registers interest in channel.
func (c *Connection) Subscribe(channel raddi.EID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscriptions[channel] = struct{}{}
}

// Unsubscribe removes interest in channel.
func (c *Connection) Unsubscribe(channel raddi.EID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subscriptions, channel)
}

// InterestedIn reports whether this connection should receive an entry
// whose root/parent/id are given, per the broadcast rule: announcement, or
// subscribed to any of {root.channel, root.thread, parent, id}, or has
// everything set.
func (c *Connection) InterestedIn(isAnnouncement bool, root raddi.Root, parent, id raddi.EID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if isAnnouncement || c.everything {
		return true
	}
	for _, candidate := range [...]raddi.EID{root.Channel, root.Thread, parent, id} {
		if _, ok := c.subscriptions[candidate]; ok {
			return true
		}
	}
	return false
}

// AppSubscriptionID identifies, for source-directory-originated
// subscribe/unsubscribe commands, which local application a subscription
// belongs to (connections from peers have no application id).
type AppSubscriptionID = uuid.UUID
