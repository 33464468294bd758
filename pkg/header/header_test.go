package header

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loic-fejoz/hqfbp/pkg/codec"
)

func u64(v uint64) *uint64 { return &v }

func TestPackUnpackRoundTrip(t *testing.T) {
	h := Header{
		MessageID:   u64(42),
		SrcCallsign: strPtr("F4ABC"),
	}
	payload := []byte("hello world")

	wire, err := Pack(h, payload)
	require.NoError(t, err)

	decoded, rest, err := Unpack(wire)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), *decoded.MessageID)
	assert.Equal(t, "F4ABC", *decoded.SrcCallsign)
	require.NotNil(t, decoded.PayloadSize)
	assert.Equal(t, uint64(len(payload)), *decoded.PayloadSize)
	assert.Equal(t, payload, rest)
}

func TestPackRequiresMessageID(t *testing.T) {
	_, err := Pack(Header{}, []byte("x"))
	require.Error(t, err)
}

func TestUnpackAllowsAnnouncementWithoutMessageID(t *testing.T) {
	mime := AnnouncementMIME
	h := Header{ContentType: &mime}
	wire, err := h.Marshal()
	require.NoError(t, err)

	decoded, rest, err := Unpack(wire)
	require.NoError(t, err)
	assert.Nil(t, decoded.MessageID)
	assert.Empty(t, rest)
}

func TestMergeFirstNonNullWins(t *testing.T) {
	h := Header{SrcCallsign: strPtr("F4ABC")}
	other := Header{DstCallsign: strPtr("F4XYZ"), FileSize: u64(100)}
	h.Merge(other, 1, 1)
	assert.Equal(t, "F4ABC", *h.SrcCallsign)
	assert.Equal(t, "F4XYZ", *h.DstCallsign)
	assert.Equal(t, uint64(100), *h.FileSize)
}

func TestMergePrefersHigherQualityOnConflict(t *testing.T) {
	h := Header{SrcCallsign: strPtr("F4ABC")}
	other := Header{SrcCallsign: strPtr("F4XYZ")}
	h.Merge(other, 1, 5)
	assert.Equal(t, "F4XYZ", *h.SrcCallsign, "the higher-quality chunk's value must win a genuine conflict")
}

func TestMergeKeepsExistingValueOnTiedQuality(t *testing.T) {
	h := Header{DstCallsign: strPtr("F4ABC")}
	other := Header{DstCallsign: strPtr("F4XYZ")}
	h.Merge(other, 3, 3)
	assert.Equal(t, "F4ABC", *h.DstCallsign, "a tie must keep the first-seen value")
}

func TestStripChunking(t *testing.T) {
	h := Header{
		MessageID:         u64(1),
		ChunkID:           u64(2),
		OriginalMessageID: u64(3),
		TotalChunks:       u64(4),
		FileSize:          u64(5),
	}
	h.StripChunking()
	assert.Nil(t, h.MessageID)
	assert.Nil(t, h.ChunkID)
	assert.Nil(t, h.OriginalMessageID)
	assert.Nil(t, h.TotalChunks)
	require.NotNil(t, h.FileSize)
}

func TestSetMediaTypeCanonicalizesToContentFormat(t *testing.T) {
	var h Header
	h.SetMediaType(MediaType{Type: "application/cbor"})
	require.NotNil(t, h.ContentFormat)
	assert.Equal(t, uint16(60), *h.ContentFormat)
	assert.Nil(t, h.ContentType)

	mt, ok := h.MediaType()
	require.True(t, ok)
	assert.Equal(t, "application/cbor", mt.MIME())
}

func TestSetMediaTypeKeepsUnknownMIMEAsString(t *testing.T) {
	var h Header
	h.SetMediaType(MediaType{Type: "application/x-custom"})
	assert.Nil(t, h.ContentFormat)
	require.NotNil(t, h.ContentType)
	assert.Equal(t, "application/x-custom", *h.ContentType)
}

func TestContentEncodingRoundTripsSingleEntry(t *testing.T) {
	h := Header{
		MessageID:       u64(7),
		ContentEncoding: codec.EncodingList{{Tag: "gzip"}},
	}
	wire, err := Pack(h, []byte("x"))
	require.NoError(t, err)
	decoded, _, err := Unpack(wire)
	require.NoError(t, err)
	require.Len(t, decoded.ContentEncoding, 1)
	assert.Equal(t, "gzip", decoded.ContentEncoding[0].Tag)
}

func TestContentEncodingRoundTripsMultipleEntries(t *testing.T) {
	enc := codec.EncodingList{{Tag: "gzip"}, {Tag: "crc32"}}
	h := Header{MessageID: u64(8), ContentEncoding: enc}
	wire, err := Pack(h, []byte("x"))
	require.NoError(t, err)
	decoded, _, err := Unpack(wire)
	require.NoError(t, err)
	require.Len(t, decoded.ContentEncoding, 2)
	assert.Equal(t, "gzip", decoded.ContentEncoding[0].Tag)
	assert.Equal(t, "crc32", decoded.ContentEncoding[1].Tag)
}

func TestContentEncodingDropsChunkMarker(t *testing.T) {
	enc := codec.EncodingList{{Tag: "gzip"}, {Tag: "chunk", Count: 200}}
	h := Header{MessageID: u64(9), ContentEncoding: enc}
	wire, err := Pack(h, []byte("x"))
	require.NoError(t, err)
	decoded, _, err := Unpack(wire)
	require.NoError(t, err)
	require.Len(t, decoded.ContentEncoding, 1)
	assert.Equal(t, "gzip", decoded.ContentEncoding[0].Tag)
}

func TestContentEncodingRoundTripsParameterizedTag(t *testing.T) {
	enc := codec.EncodingList{{Tag: "rs", N: 255, K: 223}}
	h := Header{MessageID: u64(10), ContentEncoding: enc}
	wire, err := Pack(h, []byte("x"))
	require.NoError(t, err)
	decoded, _, err := Unpack(wire)
	require.NoError(t, err)
	require.Len(t, decoded.ContentEncoding, 1)
	assert.Equal(t, "rs(255,223)", decoded.ContentEncoding[0].String())
}

func strPtr(s string) *string { return &s }
