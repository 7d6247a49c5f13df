// Package crypto collects the cryptographic primitives the wire protocol
// and proof-of-work layers build on: authenticated ciphers, key agreement,
// and keyed hashing, each backed by a real third-party implementation
// rather than a hand-rolled one.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	luxcrypto "github.com/luxfi/crypto"
	"golang.org/x/crypto/chacha20poly1305"
)

// CipherKind selects which AEAD a connection negotiated during handshake.
type CipherKind uint8

const (
	CipherXChaCha20Poly1305 CipherKind = iota
	CipherAES256GCM
	CipherAEGIS256
)

// KeySize and NonceSize are the sizes used uniformly across all three
// supported AEADs; XChaCha20-Poly1305 and AEGIS-256 both take 32-byte keys
// and (for the XChaCha construction) 24-byte nonces, so the connection's
// keyset allocates the larger of the two and each cipher uses a prefix.
const (
	KeySize   = 32
	NonceSize = 24
)

var ErrUnknownCipher = errors.New("crypto: unknown cipher kind")

// AEAD wraps the three concrete ciphers behind one interface, so the
// connection layer can negotiate a cipher during handshake and use it
// uniformly afterward.
type AEAD interface {
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	NonceSize() int
	Overhead() int
}

// NewAEAD constructs the AEAD implementation for kind, keyed by key (which
// must be KeySize bytes).
func NewAEAD(kind CipherKind, key []byte) (AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("crypto: key must be %d bytes, got %d", KeySize, len(key))
	}
	switch kind {
	case CipherXChaCha20Poly1305:
		return chacha20poly1305.NewX(key)
	case CipherAES256GCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		return cipher.NewGCM(block)
	case CipherAEGIS256:
		return luxcrypto.NewAEGIS256(key)
	default:
		return nil, ErrUnknownCipher
	}
}

// RandomKey fills a fresh KeySize-byte key from the system CSPRNG.
func RandomKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}
