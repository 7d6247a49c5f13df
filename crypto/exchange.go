package crypto

import (
	"crypto/rand"

	"golang.org/x/crypto/curve25519"
)

// KeyPair is an X25519 key-exchange key pair used once per handshake.
type KeyPair struct {
	Private [32]byte
	Public  [32]byte
}

// GenerateKeyPair creates a fresh ephemeral X25519 key pair.
func GenerateKeyPair() (KeyPair, error) {
	var kp KeyPair
	if _, err := rand.Read(kp.Private[:]); err != nil {
		return KeyPair{}, err
	}
	pub, err := curve25519.X25519(kp.Private[:], curve25519.Basepoint)
	if err != nil {
		return KeyPair{}, err
	}
	copy(kp.Public[:], pub)
	return kp, nil
}

// SharedSecret computes the X25519 Diffie-Hellman shared secret between our
// private key and the peer's public key.
func SharedSecret(private [32]byte, peerPublic [32]byte) ([]byte, error) {
	return curve25519.X25519(private[:], peerPublic[:])
}
