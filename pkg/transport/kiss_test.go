package transport

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeFrameRoundTrip(t *testing.T) {
	pdu := []byte{0x01, 0x02, 0xC0, 0xDB, 0x03}
	framed := EncodeFrame(pdu)

	fr := NewFrameReader(bytes.NewReader(framed))
	got, err := fr.ReadFrame()
	require.NoError(t, err)
	require.Equal(t, pdu, got)
}

func TestFrameReaderHandlesMultipleFrames(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(EncodeFrame([]byte("first")))
	buf.Write(EncodeFrame([]byte("second")))

	fr := NewFrameReader(&buf)
	first, err := fr.ReadFrame()
	require.NoError(t, err)
	require.Equal(t, []byte("first"), first)

	second, err := fr.ReadFrame()
	require.NoError(t, err)
	require.Equal(t, []byte("second"), second)

	_, err = fr.ReadFrame()
	require.ErrorIs(t, err, io.EOF)
}

func TestFrameReaderEscapesReservedBytes(t *testing.T) {
	pdu := []byte{FEND, FESC, FEND, FESC}
	framed := EncodeFrame(pdu)
	require.NotContains(t, framed[2:len(framed)-1], FEND)

	fr := NewFrameReader(bytes.NewReader(framed))
	got, err := fr.ReadFrame()
	require.NoError(t, err)
	require.Equal(t, pdu, got)
}
