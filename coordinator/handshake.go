package coordinator

import (
	"crypto/rand"
	"io"
	"net"
	"time"

	"github.com/raddi-network/raddi/conn"
	raddicrypto "github.com/raddi-network/raddi/crypto"
	"github.com/raddi-network/raddi/protocol"
	"github.com/raddi-network/raddi/raddi"
)

// HandshakeOptions configures the local side of a handshake exchange.
type HandshakeOptions struct {
	Soft protocol.SoftFlags
	Hard protocol.HardFlags
	Mode protocol.Mode
	Now  time.Time
}

// PerformHandshake runs the symmetric 144-byte handshake over socket —
// generating this side's D-H keys and nonces, exchanging them with the
// peer, verifying the peer's checksum/flags/clock-skew, negotiating a
// common cipher, and deriving the session key/nonces — returning a secured
// Connection on success. Both dial-side and accept-side run this same
// exchange; nothing about it is directionally asymmetric.
func PerformHandshake(socket net.Conn, addr raddi.Address, opts HandshakeOptions) (*conn.Connection, error) {
	inboundKP, err := raddicrypto.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	outboundKP, err := raddicrypto.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	var inboundNonce, outboundNonce [32]byte
	if _, err := ioReadRandom(inboundNonce[:]); err != nil {
		return nil, err
	}
	if _, err := ioReadRandom(outboundNonce[:]); err != nil {
		return nil, err
	}

	local := protocol.Propose(inboundKP, outboundKP, inboundNonce, outboundNonce, opts.Soft, opts.Hard, uint64(opts.Now.Unix()))

	writeErrCh := make(chan error, 1)
	go func() {
		_, err := socket.Write(local.MarshalBinary())
		writeErrCh <- err
	}()

	peerBuf := make([]byte, protocol.HandshakeSize)
	if _, err := io.ReadFull(socket, peerBuf); err != nil {
		return nil, err
	}
	if err := <-writeErrCh; err != nil {
		return nil, err
	}

	peer, err := protocol.UnmarshalHandshake(peerBuf)
	if err != nil {
		return nil, err
	}
	if _, err := protocol.Verify(peer, uint64(opts.Now.Unix())); err != nil {
		return nil, err
	}

	peerSoft, _ := peer.Flags()
	cipherKind, err := protocol.SelectCipher(opts.Soft, peerSoft, opts.Mode)
	if err != nil {
		return nil, err
	}

	// our outbound D-H secret pairs with the peer's inbound public value
	// (the value they're using to receive from us); our inbound secret
	// pairs with the peer's outbound public value (the value they used to
	// send to us).
	secretOut, err := raddicrypto.SharedSecret(outboundKP.Private, peer.InboundKey)
	if err != nil {
		return nil, err
	}
	secretIn, err := raddicrypto.SharedSecret(inboundKP.Private, peer.OutboundKey)
	if err != nil {
		return nil, err
	}

	txKey := protocol.DeriveSessionKey(secretOut)
	rxKey := protocol.DeriveSessionKey(secretIn)

	txAEAD, err := raddicrypto.NewAEAD(cipherKind, txKey)
	if err != nil {
		return nil, err
	}
	rxAEAD, err := raddicrypto.NewAEAD(cipherKind, rxKey)
	if err != nil {
		return nil, err
	}

	txNonce := protocol.DeriveSessionNonce(local.OutboundNonce, peer.InboundNonce)
	rxNonce := protocol.DeriveSessionNonce(local.InboundNonce, peer.OutboundNonce)

	c := conn.New(socket, addr)
	c.Secure(rxAEAD, txAEAD, rxNonce, txNonce)
	return c, nil
}

func ioReadRandom(buf []byte) (int, error) {
	return rand.Read(buf)
}
