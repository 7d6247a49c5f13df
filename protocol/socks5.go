package protocol

import (
	"encoding/binary"
	"errors"
	"io"
	"net/netip"
)

// socks5 prologue bytes: greeting (version 5, 1 method, no-auth) followed
// by the CONNECT request header; ATYP/ADDR/PORT are appended by
// DialThroughSOCKS5.
var socks5Greeting = [3]byte{0x05, 0x01, 0x00}
var socks5RequestPrefix = [3]byte{0x05, 0x01, 0x00}

const (
	socks5AddrIPv4   = 0x01
	socks5AddrIPv6   = 0x04
	socks5ReplyGood  = 0x00
	socks5Version    = 0x05
)

var (
	ErrSOCKS5BadGreetingReply = errors.New("protocol: SOCKS5 server rejected greeting")
	ErrSOCKS5BadRequestReply  = errors.New("protocol: SOCKS5 CONNECT request failed")
)

// DialThroughSOCKS5 writes the outbound-only SOCKS5 prologue
// "05 01 00 05 01 00 ATYP ADDR PORT" to rw and consumes/verifies the
// server's replies, per the fixed (non-generic) handshake this network
// requires of its proxy support — not a general SOCKS5 client, just the
// exact byte sequence needed to open one TCP stream with no auth.
//
// This is implemented directly against net.Conn rather than pulled from a
// general-purpose SOCKS client library: the network's proxy use is this one
// fixed prologue (13 bytes for an IPv4 target, 25 for IPv6), not arbitrary SOCKS5 negotiation (auth
// methods, UDP associate, BIND), so a hand-rolled prologue is simpler and
// more auditable than wiring a full client for a single call site.
func DialThroughSOCKS5(rw io.ReadWriter, target netip.AddrPort) error {
	greeting := append([]byte{}, socks5Greeting[:]...)
	if _, err := rw.Write(greeting); err != nil {
		return err
	}
	var reply [2]byte
	if _, err := io.ReadFull(rw, reply[:]); err != nil {
		return err
	}
	if reply[0] != socks5Version || reply[1] != 0x00 {
		return ErrSOCKS5BadGreetingReply
	}

	req := append([]byte{}, socks5RequestPrefix[:]...)
	addr := target.Addr()
	if addr.Is4() {
		req = append(req, socks5AddrIPv4)
		b := addr.As4()
		req = append(req, b[:]...)
	} else {
		req = append(req, socks5AddrIPv6)
		b := addr.As16()
		req = append(req, b[:]...)
	}
	var portBuf [2]byte
	binary.BigEndian.PutUint16(portBuf[:], target.Port())
	req = append(req, portBuf[:]...)

	if _, err := rw.Write(req); err != nil {
		return err
	}

	var header [4]byte
	if _, err := io.ReadFull(rw, header[:]); err != nil {
		return err
	}
	if header[0] != socks5Version || header[1] != socks5ReplyGood {
		return ErrSOCKS5BadRequestReply
	}
	var boundAddrLen int
	switch header[3] {
	case socks5AddrIPv4:
		boundAddrLen = 4
	case socks5AddrIPv6:
		boundAddrLen = 16
	default:
		return ErrSOCKS5BadRequestReply
	}
	trailer := make([]byte, boundAddrLen+2)
	_, err := io.ReadFull(rw, trailer)
	return err
}
