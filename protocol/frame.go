package protocol

import (
	"encoding/binary"
	"errors"
	"io"

	raddicrypto "github.com/raddi-network/raddi/crypto"
)

var (
	ErrFrameTooLarge = errors.New("protocol: frame exceeds max payload")
	ErrShortFrame    = errors.New("protocol: frame shorter than AEAD overhead")
)

// Framer encodes and decodes the length-prefixed AEAD frames exchanged
// after a successful handshake, incrementing its nonce by one on every
// operation in the direction it is responsible for.
type Framer struct {
	aead  raddicrypto.AEAD
	nonce [32]byte // only the low NonceSize bytes are used per call
}

// NewFramer wraps aead with a starting nonce base (the session nonce
// derived at handshake time).
func NewFramer(aead raddicrypto.AEAD, nonceBase [32]byte) *Framer {
	return &Framer{aead: aead, nonce: nonceBase}
}

// incrementNonce adds 1 to the active nonce before use, matching "each
// encode increments the outbound nonce by 1 before encrypting; each decode
// increments the inbound nonce before decrypting."
func (f *Framer) incrementNonce() {
	for i := 0; i < len(f.nonce); i++ {
		f.nonce[i]++
		if f.nonce[i] != 0 {
			break
		}
	}
}

// Encode seals plaintext into a wire frame: u16 length (LE) ‖ ciphertext.
// The 2-byte length prefix is the AEAD's additional authenticated data.
func (f *Framer) Encode(plaintext []byte) ([]byte, error) {
	if len(plaintext) > MaxPayload {
		return nil, ErrFrameTooLarge
	}
	f.incrementNonce()
	nonce := f.nonce[:f.aead.NonceSize()]

	length := uint16(len(plaintext) + f.aead.Overhead())
	var lengthBuf [2]byte
	binary.LittleEndian.PutUint16(lengthBuf[:], length)

	out := make([]byte, 2, 2+int(length))
	copy(out, lengthBuf[:])
	out = f.aead.Seal(out, nonce, plaintext, lengthBuf[:])
	return out, nil
}

// Decode opens a ciphertext previously produced by Encode's peer-side
// Framer. lengthPrefix is the 2-byte AAD that preceded ciphertext on the
// wire.
func (f *Framer) Decode(lengthPrefix [2]byte, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < f.aead.Overhead() {
		return nil, ErrShortFrame
	}
	f.incrementNonce()
	nonce := f.nonce[:f.aead.NonceSize()]
	return f.aead.Open(nil, nonce, ciphertext, lengthPrefix[:])
}

// WriteFrame writes a fully encoded frame (length prefix + ciphertext) to w.
func WriteFrame(w io.Writer, frame []byte) error {
	_, err := w.Write(frame)
	return err
}

// ReadLengthPrefix reads and decodes the 2-byte little-endian length
// prefix, reporting whether it is one of the in-band keep-alive sentinels.
func ReadLengthPrefix(r io.Reader) (length uint16, sentinel bool, err error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, false, err
	}
	length = binary.LittleEndian.Uint16(buf[:])
	sentinel = length == SentinelKeepAliveQuery || length == SentinelKeepAliveReply
	return length, sentinel, nil
}

// EncodeKeepAlive returns the 2-byte wire form of a keep-alive sentinel.
func EncodeKeepAlive(reply bool) []byte {
	var buf [2]byte
	v := SentinelKeepAliveQuery
	if reply {
		v = SentinelKeepAliveReply
	}
	binary.LittleEndian.PutUint16(buf[:], v)
	return buf[:]
}
