package raddi

import "crypto/ed25519"

// Identity is the decoded content of an identity-announcing entry: a
// display name and the Ed25519 public key later entries by this identity
// must verify against.
type Identity struct {
	PublicKey ed25519.PublicKey
	Name      string
}

// Validate checks that an identity announcement's name fits within the
// content limit and that the public key has the expected Ed25519 size.
func (id Identity) Validate() error {
	if len(id.Name) > MaxIdentityNameSize {
		return ErrContentTooLarge
	}
	if len(id.PublicKey) != ed25519.PublicKeySize {
		return ErrBadSignature
	}
	return nil
}

// Encode serializes the identity announcement content: raw Ed25519 public
// key followed by the UTF-8 display name, with no length prefix — the
// content's total size (minus the trailing proof) implies the name length.
func (id Identity) Encode() []byte {
	buf := make([]byte, ed25519.PublicKeySize+len(id.Name))
	copy(buf, id.PublicKey)
	copy(buf[ed25519.PublicKeySize:], id.Name)
	return buf
}

// DecodeIdentity parses the content of an identity-announcing entry.
func DecodeIdentity(content []byte) (Identity, bool) {
	if len(content) < ed25519.PublicKeySize {
		return Identity{}, false
	}
	pub := make(ed25519.PublicKey, ed25519.PublicKeySize)
	copy(pub, content[:ed25519.PublicKeySize])
	return Identity{
		PublicKey: pub,
		Name:      string(content[ed25519.PublicKeySize:]),
	}, true
}
