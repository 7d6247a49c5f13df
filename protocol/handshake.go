package protocol

import (
	"encoding/binary"
	"errors"

	raddicrypto "github.com/raddi-network/raddi/crypto"
)

// SoftFlags are cipher preferences the peer claims to support; the stronger
// cipher both sides support wins.
type SoftFlags uint8

const (
	SoftAESGCM SoftFlags = 1 << iota
	SoftAEGIS
)

// HardFlags are MUST-understand capability bits; any hard bit the local
// side doesn't recognize is a fatal handshake disagreement.
type HardFlags uint8

const knownHardFlags HardFlags = 0

var (
	ErrChecksumMismatch = errors.New("protocol: handshake checksum mismatch")
	ErrUnknownHardFlag  = errors.New("protocol: unknown hard flag")
	ErrClockSkew        = errors.New("protocol: handshake timestamp skew too large")
	ErrNoCommonCipher   = errors.New("protocol: no common cipher")
)

// Handshake is the fixed 144-byte struct exchanged as the first packet in
// each direction: two 32-byte D-H public values, two 32-byte nonces, and a
// 16-byte trailer of (obfuscated timestamp, checksum). The soft/hard flag
// pairs are not separate wire fields — per the XOR-obfuscated-pair design —
// they are folded into the low byte of each nonce (inbound_nonce[0] carries
// soft XORed with outbound_nonce[0]; inbound_nonce[1] carries hard XORed
// with outbound_nonce[1]), keeping the struct exactly 4×32+8+8 = 144 bytes.
type Handshake struct {
	InboundKey    [32]byte
	OutboundKey   [32]byte
	InboundNonce  [32]byte
	OutboundNonce [32]byte
	Timestamp     uint64 // obfuscated: XORed with InboundKey[0:8]
	Checksum      uint64
}

// Propose builds this side's outbound handshake struct from a freshly
// generated key pair and nonce pair, embedding soft/hard flags into the
// nonce low bytes and obfuscating the timestamp with the inbound key.
func Propose(kp raddicrypto.KeyPair, outboundKP raddicrypto.KeyPair, inboundNonce, outboundNonce [32]byte, soft SoftFlags, hard HardFlags, unixTimestamp uint64) Handshake {
	h := Handshake{
		InboundKey:    kp.Public,
		OutboundKey:   outboundKP.Public,
		InboundNonce:  inboundNonce,
		OutboundNonce: outboundNonce,
	}
	h.InboundNonce[0] = h.OutboundNonce[0] ^ byte(soft)
	h.InboundNonce[1] = h.OutboundNonce[1] ^ byte(hard)

	obf := unixTimestamp ^ binary.LittleEndian.Uint64(h.InboundKey[0:8])
	h.Timestamp = obf
	h.Checksum = checksum(h)
	return h
}

// Flags extracts the soft/hard preference bytes this handshake carries.
func (h Handshake) Flags() (soft SoftFlags, hard HardFlags) {
	soft = SoftFlags(h.InboundNonce[0] ^ h.OutboundNonce[0])
	hard = HardFlags(h.InboundNonce[1] ^ h.OutboundNonce[1])
	return
}

// RevealTimestamp de-obfuscates h's timestamp field. Per the reference
// implementation, the obfuscation key is always the peer's inbound_key —
// i.e. the key value as the ACCEPTING side observes it in the packet it
// just received, not the accepting side's own inbound_key. Callers must
// pass peerInboundKey = the InboundKey field of the Handshake they are
// decoding, not their own.
func RevealTimestamp(h Handshake, peerInboundKey [32]byte) uint64 {
	return h.Timestamp ^ binary.LittleEndian.Uint64(peerInboundKey[0:8])
}

// MarshalBinary encodes h into its 144-byte little-endian wire form.
func (h Handshake) MarshalBinary() []byte {
	buf := make([]byte, HandshakeSize)
	copy(buf[0:32], h.InboundKey[:])
	copy(buf[32:64], h.OutboundKey[:])
	copy(buf[64:96], h.InboundNonce[:])
	copy(buf[96:128], h.OutboundNonce[:])
	binary.LittleEndian.PutUint64(buf[128:136], h.Timestamp)
	binary.LittleEndian.PutUint64(buf[136:144], h.Checksum)
	return buf
}

var ErrShortHandshake = errors.New("protocol: handshake shorter than wire size")

// UnmarshalHandshake decodes a 144-byte wire handshake.
func UnmarshalHandshake(buf []byte) (Handshake, error) {
	if len(buf) < HandshakeSize {
		return Handshake{}, ErrShortHandshake
	}
	var h Handshake
	copy(h.InboundKey[:], buf[0:32])
	copy(h.OutboundKey[:], buf[32:64])
	copy(h.InboundNonce[:], buf[64:96])
	copy(h.OutboundNonce[:], buf[96:128])
	h.Timestamp = binary.LittleEndian.Uint64(buf[128:136])
	h.Checksum = binary.LittleEndian.Uint64(buf[136:144])
	return h, nil
}

// checksum computes the 64-bit keyed hash over the handshake struct minus
// the checksum field itself, keyed by the struct's own inbound key and the
// protocol magic.
func checksum(h Handshake) uint64 {
	var key [32]byte
	copy(key[:], h.InboundKey[:])
	return raddicrypto.HandshakeChecksum(key, Magic[:], h.InboundKey[:], h.OutboundKey[:], h.InboundNonce[:], h.OutboundNonce[:])
}

// Verify checks the checksum and hard-flag compatibility of a received
// handshake against the local unix time, returning the de-obfuscated peer
// timestamp on success.
func Verify(h Handshake, now uint64) (peerTimestamp uint64, err error) {
	if h.Checksum != checksum(h) {
		return 0, ErrChecksumMismatch
	}
	_, hard := h.Flags()
	if hard&^knownHardFlags != 0 {
		return 0, ErrUnknownHardFlag
	}
	peerTimestamp = RevealTimestamp(h, h.InboundKey)
	var skew uint64
	if peerTimestamp > now {
		skew = peerTimestamp - now
	} else {
		skew = now - peerTimestamp
	}
	if skew > uint64(MaxEntrySkew.Seconds()) {
		return peerTimestamp, ErrClockSkew
	}
	return peerTimestamp, nil
}

// SelectCipher picks the strongest cipher both sides' soft flags and the
// local Mode allow, defaulting to XChaCha20-Poly1305 when nothing else
// matches.
func SelectCipher(localSoft, peerSoft SoftFlags, mode Mode) (raddicrypto.CipherKind, error) {
	common := localSoft & peerSoft
	switch mode {
	case ModeForceAEGIS:
		if common&SoftAEGIS == 0 {
			return 0, ErrNoCommonCipher
		}
		return raddicrypto.CipherAEGIS256, nil
	case ModeForceGCM:
		if common&SoftAESGCM == 0 {
			return 0, ErrNoCommonCipher
		}
		return raddicrypto.CipherAES256GCM, nil
	case ModeDisabled:
		return raddicrypto.CipherXChaCha20Poly1305, nil
	default: // ModeAutomatic / ModeForced
		switch {
		case common&SoftAEGIS != 0:
			return raddicrypto.CipherAEGIS256, nil
		case common&SoftAESGCM != 0:
			return raddicrypto.CipherAES256GCM, nil
		default:
			return raddicrypto.CipherXChaCha20Poly1305, nil
		}
	}
}

// Mode controls how SelectCipher weighs hardware-accelerated ciphers
// against the software default, mirroring the five-way setting the
// original implementation exposed for AES-NI/AEGIS availability.
type Mode uint8

const (
	ModeDisabled Mode = iota
	ModeAutomatic
	ModeForced
	ModeForceGCM
	ModeForceAEGIS
)

// DeriveSessionKey hashes the X25519 shared secret with the protocol magic
// into a session key suitable for NewAEAD.
func DeriveSessionKey(sharedSecret []byte) []byte {
	sum := raddicrypto.DigestSum512(Magic[:], sharedSecret)
	return sum[:32]
}

// DeriveSessionNonce adds (as a constant-time 256-bit addition) the peer's
// opposite-direction nonce into our own nonce to derive the session nonce
// base, per the key-derivation rule in the handshake design.
func DeriveSessionNonce(own, peerOpposite [32]byte) [32]byte {
	var out [32]byte
	var carry uint16
	for i := 0; i < 32; i++ {
		sum := uint16(own[i]) + uint16(peerOpposite[i]) + carry
		out[i] = byte(sum)
		carry = sum >> 8
	}
	return out
}
