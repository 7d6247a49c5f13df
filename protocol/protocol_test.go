package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
	raddicrypto "github.com/raddi-network/raddi/crypto"
)

func TestHandshakeFlagsRoundtrip(t *testing.T) {
	kp1, err := raddicrypto.GenerateKeyPair()
	require.NoError(t, err)
	kp2, err := raddicrypto.GenerateKeyPair()
	require.NoError(t, err)

	var in, out [32]byte
	in[0], out[2] = 1, 2

	h := Propose(kp1, kp2, in, out, SoftAESGCM|SoftAEGIS, 0, 1700000000)
	soft, hard := h.Flags()
	require.Equal(t, SoftAESGCM|SoftAEGIS, soft)
	require.Equal(t, HardFlags(0), hard)
}

func TestVerifyDetectsChecksumTamper(t *testing.T) {
	kp1, _ := raddicrypto.GenerateKeyPair()
	kp2, _ := raddicrypto.GenerateKeyPair()
	var in, out [32]byte

	h := Propose(kp1, kp2, in, out, SoftAEGIS, 0, 1700000000)
	h.OutboundKey[0] ^= 0xFF // tamper after checksum was computed

	_, err := Verify(h, 1700000000)
	require.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestSelectCipherPrefersAEGIS(t *testing.T) {
	kind, err := SelectCipher(SoftAESGCM|SoftAEGIS, SoftAESGCM|SoftAEGIS, ModeAutomatic)
	require.NoError(t, err)
	require.Equal(t, raddicrypto.CipherAEGIS256, kind)
}

func TestSelectCipherFallsBackToSoftware(t *testing.T) {
	kind, err := SelectCipher(0, 0, ModeAutomatic)
	require.NoError(t, err)
	require.Equal(t, raddicrypto.CipherXChaCha20Poly1305, kind)
}

func TestRequestHeaderRoundtrip(t *testing.T) {
	h := RequestHeader{Type: RequestSubscribe, Timestamp: 0x00ABCDEF}
	encoded := EncodeRequestHeader(h)
	decoded, err := DecodeRequestHeader(encoded[:])
	require.NoError(t, err)
	require.Equal(t, h, decoded)
}

func TestFrameEncodeDecodeRoundtrip(t *testing.T) {
	key, err := raddicrypto.RandomKey()
	require.NoError(t, err)
	aead, err := raddicrypto.NewAEAD(raddicrypto.CipherXChaCha20Poly1305, key)
	require.NoError(t, err)

	var base [32]byte
	sender := NewFramer(aead, base)
	receiver := NewFramer(aead, base)

	frame, err := sender.Encode([]byte("hello peer"))
	require.NoError(t, err)

	var lengthPrefix [2]byte
	copy(lengthPrefix[:], frame[:2])
	plaintext, err := receiver.Decode(lengthPrefix, frame[2:])
	require.NoError(t, err)
	require.Equal(t, []byte("hello peer"), plaintext)
}
