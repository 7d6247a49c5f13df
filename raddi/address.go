package raddi

import (
	"net"
	"net/netip"
)

// Validation controls which classes of address raddi.Address.Valid and
// raddi.Address.Accessible will accept. The original implementation this
// package is modeled on declared this parameter but silently dropped it at
// the call site; here it is threaded through and honored.
type Validation uint8

const (
	// AllowLoopback accepts 127.0.0.0/8 and ::1.
	AllowLoopback Validation = 1 << iota
	// AllowPrivate accepts RFC1918 / unique-local addresses.
	AllowPrivate
	// AllowMulticast accepts multicast addresses.
	AllowMulticast

	// ValidationStrict rejects loopback, private and multicast addresses —
	// the mode used for addresses learned from peers over the wire.
	ValidationStrict Validation = 0
	// ValidationLocal accepts loopback and private addresses — the mode
	// used for addresses discovered via the local UDP broadcast.
	ValidationLocal Validation = AllowLoopback | AllowPrivate
)

// Address is a simple, comparable IPv4/IPv6 + port pair used throughout the
// peer set, connection, and discovery subsystems.
type Address struct {
	IP   netip.Addr
	Port uint16
}

// AddressFromNetAddr builds an Address from a dialed/accepted net.Addr.
func AddressFromNetAddr(a net.Addr) (Address, bool) {
	tcp, ok := a.(*net.TCPAddr)
	if !ok {
		return Address{}, false
	}
	ip, ok := netip.AddrFromSlice(tcp.IP)
	if !ok {
		return Address{}, false
	}
	return Address{IP: ip.Unmap(), Port: uint16(tcp.Port)}, true
}

// Less orders addresses by family, then IP bytes, then port — used to keep
// peerset maps in a stable iteration order for deterministic flush files.
func (a Address) Less(b Address) bool {
	if a.IP.Is4() != b.IP.Is4() {
		return a.IP.Is4()
	}
	if c := a.IP.Compare(b.IP); c != 0 {
		return c < 0
	}
	return a.Port < b.Port
}

// Valid reports whether the address itself is well-formed, and — depending
// on allowed, a bitmask of Validation flags — whether loopback, private or
// multicast addresses are accepted.
func (a Address) Valid(allowed Validation) bool {
	if !a.IP.IsValid() || a.Port == 0 {
		return false
	}
	if a.IP.IsLoopback() && allowed&AllowLoopback == 0 {
		return false
	}
	if a.IP.IsPrivate() && allowed&AllowPrivate == 0 {
		return false
	}
	if a.IP.IsMulticast() && allowed&AllowMulticast == 0 {
		return false
	}
	if a.IP.IsUnspecified() {
		return false
	}
	return true
}

// Accessible reports whether the address is Valid under allowed and is, in
// addition, not link-local (unicast or multicast). Documentation and
// reserved ranges are not checked.
func (a Address) Accessible(allowed Validation) bool {
	if !a.Valid(allowed) {
		return false
	}
	return !a.IP.IsLinkLocalUnicast() && !a.IP.IsLinkLocalMulticast()
}

// String renders "ip:port", bracketing IPv6 addresses.
func (a Address) String() string {
	return netip.AddrPortFrom(a.IP, a.Port).String()
}

// ParseAddress parses "ip:port" or "ip" (port 0) into an Address.
func ParseAddress(s string) (Address, error) {
	if ap, err := netip.ParseAddrPort(s); err == nil {
		return Address{IP: ap.Addr().Unmap(), Port: ap.Port()}, nil
	}
	ip, err := netip.ParseAddr(s)
	if err != nil {
		return Address{}, err
	}
	return Address{IP: ip.Unmap()}, nil
}

// LoopbackIPv4 and LoopbackIPv6 mirror the teacher's well-known loopback
// constants. Nothing in this module uses them as a default bind address.
var (
	LoopbackIPv4 = Address{IP: netip.MustParseAddr("127.0.0.1")}
	LoopbackIPv6 = Address{IP: netip.MustParseAddr("::1")}
)
