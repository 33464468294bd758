package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestGzipCRCShrinksAndRoundTrips is spec.md §8.3 scenario 2: 1024 zero
// bytes through gzip then crc32 should shrink on the wire and round-trip
// exact.
func TestGzipCRCShrinksAndRoundTrips(t *testing.T) {
	reg := NewRegistry()
	list, err := ParseList("gzip,crc32")
	require.NoError(t, err)
	codecs, err := reg.BuildList(list)
	require.NoError(t, err)

	data := make([]byte, 1024)

	encoded := data
	for _, c := range codecs {
		encoded, err = c.Encode(encoded)
		require.NoError(t, err)
	}
	require.Less(t, len(encoded), len(data))

	decoded := encoded
	for i := len(codecs) - 1; i >= 0; i-- {
		decoded, _, err = codecs[i].Decode(decoded)
		require.NoError(t, err)
	}
	require.True(t, bytes.Equal(data, decoded))
}

// TestReedSolomonCorrectsSixteenBitFlips is spec.md §8.3 scenario 3: rs(255,223)
// corrects up to floor((255-223)/2) = 16 byte errors per block; flipping a
// bit inside 16 distinct bytes of a single codeword must still round-trip.
func TestReedSolomonCorrectsSixteenBitFlips(t *testing.T) {
	c, err := NewReedSolomon(255, 223)
	require.NoError(t, err)

	data := make([]byte, 223)
	for i := range data {
		data[i] = byte(i * 37)
	}

	encoded, err := c.Encode(data)
	require.NoError(t, err)
	require.Len(t, encoded, 255)

	corrupted := make([]byte, len(encoded))
	copy(corrupted, encoded)
	for i := 0; i < 16; i++ {
		corrupted[i] ^= 0x01
	}

	decoded, _, err := c.Decode(corrupted)
	require.NoError(t, err)
	require.True(t, bytes.Equal(data, decoded))
}

// TestReedSolomonFailsPastCorrectionBudget confirms the codec reports
// ErrFailed (rather than silently returning garbage) once errors exceed
// floor((n-k)/2).
func TestReedSolomonFailsPastCorrectionBudget(t *testing.T) {
	c, err := NewReedSolomon(255, 223)
	require.NoError(t, err)

	data := make([]byte, 223)
	encoded, err := c.Encode(data)
	require.NoError(t, err)

	corrupted := make([]byte, len(encoded))
	copy(corrupted, encoded)
	for i := 0; i < 17; i++ {
		corrupted[i] ^= 0x01
	}

	_, _, err = c.Decode(corrupted)
	require.Error(t, err)
}

// TestRaptorQRecoversFromTwentyPercentSymbolLoss is spec.md §8.3 scenario 5
// at the codec level: generate symbols for a 122,880-byte message with
// mtu=1024 and a 240-symbol repair budget, drop the first 20% of the
// combined symbol set, and confirm the accumulator still decodes.
func TestRaptorQRecoversFromTwentyPercentSymbolLoss(t *testing.T) {
	const dlen = 122880
	const mtu = 1024
	const repair = 240

	c, err := NewRaptorQ(dlen, mtu, repair)
	require.NoError(t, err)
	mp := c.(MultiPDU)

	data := make([]byte, dlen)
	for i := range data {
		data[i] = byte(i)
	}

	symbols, err := mp.GenerateSymbols(data, repair)
	require.NoError(t, err)

	acc := mp.NewAccumulator()
	drop := len(symbols) / 5
	for i, sym := range symbols {
		if i < drop {
			continue
		}
		acc.Feed(sym)
	}

	decoded, _, ok := acc.TryDecode()
	require.True(t, ok)
	require.True(t, bytes.Equal(data, decoded))
}

// TestRepeatMajorityVoteRecoversFromCorruptedCopy exercises repeat(k)'s
// byte-level majority vote: one of three copies corrupted should still be
// outvoted by the other two.
func TestRepeatMajorityVoteRecoversFromCorruptedCopy(t *testing.T) {
	c, err := NewRepeat(3)
	require.NoError(t, err)

	data := []byte("hamradio quick file broadcast")
	encoded, err := c.Encode(data)
	require.NoError(t, err)
	require.Len(t, encoded, 3*len(data))

	corrupted := make([]byte, len(encoded))
	copy(corrupted, encoded)
	corrupted[0] ^= 0xFF

	decoded, _, err := c.Decode(corrupted)
	require.NoError(t, err)
	require.True(t, bytes.Equal(data, decoded))
}
