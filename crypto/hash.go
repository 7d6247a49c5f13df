package crypto

import (
	"crypto/sha512"

	"github.com/zeebo/blake3"
)

// IdentityNonce derives the nonce binding an identity's IID to its public
// key: a keyed BLAKE3 hash of the public key, keyed by the identity's
// announcing timestamp, truncated to 32 bits. Using a keyed hash (rather
// than, say, the low bits of a plain digest) makes the nonce unpredictable
// without the timestamp, closing the vanity-IID attack the original
// implementation's id scheme was designed against.
func IdentityNonce(timestamp uint32, publicKey []byte) uint32 {
	var key [32]byte
	key[0] = byte(timestamp)
	key[1] = byte(timestamp >> 8)
	key[2] = byte(timestamp >> 16)
	key[3] = byte(timestamp >> 24)

	h := blake3.NewKeyed(key[:])
	h.Write(publicKey)
	sum := h.Sum(nil)
	return uint32(sum[0]) | uint32(sum[1])<<8 | uint32(sum[2])<<16 | uint32(sum[3])<<24
}

// DigestSum512 computes the SHA-512 digest used as the signing and
// proof-of-work domain for entries.
func DigestSum512(parts ...[]byte) [64]byte {
	h := sha512.New()
	for _, p := range parts {
		h.Write(p)
	}
	var sum [64]byte
	copy(sum[:], h.Sum(nil))
	return sum
}

// HandshakeChecksum computes the keyed BLAKE3 checksum carried in the
// connection handshake: the first 8 bytes (little-endian) of the keyed
// hash of parts. Each handshake struct carries its own checksum over its
// own fields, so it covers one side's proposal, not both sides together.
func HandshakeChecksum(key [32]byte, parts ...[]byte) uint64 {
	h := blake3.NewKeyed(key[:])
	for _, p := range parts {
		h.Write(p)
	}
	sum := h.Sum(nil)
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(sum[i]) << (8 * i)
	}
	return v
}
