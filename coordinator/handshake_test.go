package coordinator

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/raddi-network/raddi/protocol"
	"github.com/raddi-network/raddi/raddi"
)

func TestPerformHandshakeDerivesUsableConnection(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	now := time.Now()
	optsA := HandshakeOptions{Soft: protocol.SoftAESGCM, Mode: protocol.ModeAutomatic, Now: now}
	optsB := HandshakeOptions{Soft: protocol.SoftAESGCM, Mode: protocol.ModeAutomatic, Now: now}

	type result struct {
		conn interface {
			Send([]byte) error
			Receive() ([]byte, error)
		}
		err error
	}
	chA := make(chan result, 1)
	chB := make(chan result, 1)

	go func() {
		c, err := PerformHandshake(a, raddi.Address{}, optsA)
		chA <- result{c, err}
	}()
	go func() {
		c, err := PerformHandshake(b, raddi.Address{}, optsB)
		chB <- result{c, err}
	}()

	ra := <-chA
	rb := <-chB
	require.NoError(t, ra.err)
	require.NoError(t, rb.err)

	done := make(chan struct{})
	var got []byte
	go func() {
		got, _ = rb.conn.Receive()
		close(done)
	}()
	require.NoError(t, ra.conn.Send([]byte("ping")))
	<-done
	require.Equal(t, []byte("ping"), got)
}
