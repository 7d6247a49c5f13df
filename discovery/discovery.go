// Package discovery implements local-peer discovery: a UDP broadcast
// carrying the protocol magic and the sender's listening port, answered at
// most once per address per epoch so a noisy LAN doesn't turn into a reply
// storm. Grounded on core/raddi_discovery.{h,cpp}: broadcast a content
// packet, and on receipt of one (not our own), reply directly to the
// sender once per second and hand the discovered address to the
// coordinator.
package discovery

import (
	"bytes"
	"encoding/binary"
	"net"
	"net/netip"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/raddi-network/raddi/protocol"
	"github.com/raddi-network/raddi/raddi"
)

// enableBroadcast sets SO_BROADCAST on conn's underlying socket, required
// on most platforms before sendto() to a broadcast address succeeds.
func enableBroadcast(conn *net.UDPConn) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var sockErr error
	err = raw.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
	})
	if err != nil {
		return err
	}
	if sockErr != nil && sockErr != syscall.ENOPROTOOPT {
		return sockErr
	}
	return nil
}

// packetSize is the wire size of a discovery datagram: 8-byte protocol
// magic followed by a little-endian u16 listening port.
const packetSize = 8 + 2

func encodePacket(listenPort uint16) []byte {
	buf := make([]byte, packetSize)
	copy(buf[:8], protocol.Magic[:])
	binary.LittleEndian.PutUint16(buf[8:10], listenPort)
	return buf
}

func decodePacket(b []byte) (port uint16, ok bool) {
	if len(b) < packetSize {
		return 0, false
	}
	if !bytes.Equal(b[:8], protocol.Magic[:]) {
		return 0, false
	}
	return binary.LittleEndian.Uint16(b[8:10]), true
}

// Point broadcasts and listens for local-peer discovery datagrams on one
// UDP socket.
type Point struct {
	conn *net.UDPConn

	// Announcement is the TCP listening port advertised in outgoing
	// packets. Broadcasting is a no-op while it is zero, matching the
	// original's "announcement != 0" guard.
	Announcement uint16

	// Discovered is called with every newly-learned peer address (the
	// sender's IP paired with the port it announced), mirroring the
	// original's "discovered(a)" hook into the coordinator.
	Discovered func(raddi.Address)

	mu       sync.Mutex
	lastSeen map[string]raddi.Timestamp
}

// New binds a UDP socket on port (0 picks an ephemeral port for
// unicast-only use) and enables the broadcast socket option, matching the
// original's explicit UdpPoint::enable_broadcast() step before start().
func New(port uint16) (*Point, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: int(port)})
	if err != nil {
		return nil, err
	}
	if err := enableBroadcast(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return &Point{conn: conn, lastSeen: make(map[string]raddi.Timestamp)}, nil
}

// Close releases the underlying socket.
func (p *Point) Close() error {
	return p.conn.Close()
}

// Broadcast sends the discovery packet to the LAN broadcast address on
// port. It is a no-op if Announcement is unset.
func (p *Point) Broadcast(port uint16) error {
	if p.Announcement == 0 {
		return nil
	}
	dst := &net.UDPAddr{IP: net.IPv4bcast, Port: int(port)}
	_, err := p.conn.WriteToUDP(encodePacket(p.Announcement), dst)
	return err
}

// Reply sends the discovery packet directly back to addr, used to answer
// an incoming broadcast (so the original sender also learns about us even
// if it never itself broadcasts again).
func (p *Point) Reply(addr *net.UDPAddr) error {
	if p.Announcement == 0 {
		return nil
	}
	_, err := p.conn.WriteToUDP(encodePacket(p.Announcement), addr)
	return err
}

// Run reads datagrams until the socket is closed, answering legitimate
// peers at most once per raddi timestamp epoch (currently one second) per
// source address and reporting every newly-discovered address via
// Discovered. It returns when the underlying socket is closed.
func (p *Point) Run() error {
	buf := make([]byte, 2048)
	for {
		n, from, err := p.conn.ReadFromUDP(buf)
		if err != nil {
			return err
		}
		p.handle(buf[:n], from)
	}
}

func (p *Point) handle(data []byte, from *net.UDPAddr) {
	port, ok := decodePacket(data)
	if !ok {
		return
	}

	now := raddi.Now()
	key := from.String()

	p.mu.Lock()
	seen, already := p.lastSeen[key]
	throttled := already && seen == now
	if !throttled {
		p.lastSeen[key] = now
	}
	p.mu.Unlock()
	if throttled {
		return
	}

	p.Reply(from)

	ip, ok := netip.AddrFromSlice(from.IP)
	if !ok {
		return
	}
	if p.Discovered != nil {
		p.Discovered(raddi.Address{IP: ip.Unmap(), Port: port})
	}
}
