package transport

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTCPStreamRoundTrip(t *testing.T) {
	ln, err := Listen("127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	serverDone := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			serverDone <- nil
			return
		}
		defer conn.Close()
		pdu, _ := conn.Recv()
		serverDone <- pdu
	}()

	client, err := Dial(ln.l.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Send([]byte("hello over tcp")))
	got := <-serverDone
	require.Equal(t, []byte("hello over tcp"), got)
}
