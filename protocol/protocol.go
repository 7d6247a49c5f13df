// Package protocol implements the wire-level handshake and AEAD framing
// that every peer connection speaks: a Diffie-Hellman key/nonce exchange,
// cipher negotiation among three supported AEADs, length-prefixed framing
// with in-band keep-alive sentinels, and an outbound SOCKS5 prologue for
// proxied connections.
package protocol

import "time"

// Magic is the 8-byte ASCII protocol identifier every handshake carries.
// Changing it breaks wire compatibility with every other implementation.
var Magic = [8]byte{'R', 'A', 'D', 'D', 'I', '/', '1', 0}

// DefaultPort is the default TCP port peers listen on.
const DefaultPort = 44303

// DefaultDiscoveryPort is the default UDP port used for LAN peer discovery.
const DefaultDiscoveryPort = 44302

// MaxEntrySkew bounds how far the handshake timestamp may differ from local
// time before the connection is rejected.
const MaxEntrySkew = 180 * time.Second

// FrameOverhead is the per-frame AEAD overhead: 16-byte nonce prefix plus a
// 2-byte authentication tag trailer accounting difference, matching the
// reference implementation's frame_overhead constant.
const FrameOverhead = 18

// MaxPayload is the largest plaintext payload one frame can carry.
const MaxPayload = 0xFFFF - FrameOverhead + 2 - 1

// MaxFrameSize is the largest ciphertext-plus-overhead a frame may be.
const MaxFrameSize = FrameOverhead + MaxPayload

// Sentinel lengths carried in-band in the 2-byte length prefix instead of a
// real frame length.
const (
	SentinelKeepAliveQuery uint16 = 0x0000
	SentinelKeepAliveReply uint16 = 0xFFFF
)

// HandshakeSize is the fixed size of the first packet exchanged on each
// side of a new connection, before any AEAD framing begins.
const HandshakeSize = 144
