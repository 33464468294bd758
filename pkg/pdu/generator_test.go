package pdu

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loic-fejoz/hqfbp/pkg/codec"
	"github.com/loic-fejoz/hqfbp/pkg/header"
)

func TestGenerateSinglePDUNoChunking(t *testing.T) {
	enc, err := codec.ParseList("crc32")
	require.NoError(t, err)

	g := NewGenerator("F4ABC", "F4XYZ", enc, 0, 1)
	data := []byte("hello hqfbp")

	pdus, err := g.Generate(data, header.MediaType{Type: "text/plain"}, true)
	require.NoError(t, err)
	require.Len(t, pdus, 1)

	h, payload, err := header.Unpack(pdus[0])
	require.NoError(t, err)
	require.NotNil(t, h.MessageID)
	require.Equal(t, uint64(1), *h.MessageID)
	require.Equal(t, "F4ABC", *h.SrcCallsign)
	require.Nil(t, h.TotalChunks)

	c, err := codec.NewRegistry().Build(codec.Encoding{Tag: "crc32"})
	require.NoError(t, err)
	decoded, _, err := c.Decode(payload)
	require.NoError(t, err)
	require.Equal(t, data, decoded)
}

func TestGenerateChunksLargeMessage(t *testing.T) {
	g := NewGenerator("F4ABC", "", nil, 8, 100)
	data := make([]byte, 20)
	for i := range data {
		data[i] = byte(i)
	}

	pdus, err := g.Generate(data, header.MediaType{}, false)
	require.NoError(t, err)
	require.Len(t, pdus, 3) // 20 bytes / 8-byte chunks -> 3 pieces (8,8,4)

	var reassembled []byte
	var totalChunks uint64
	for idx, raw := range pdus {
		h, payload, err := header.Unpack(raw)
		require.NoError(t, err)
		require.NotNil(t, h.ChunkID)
		require.Equal(t, uint64(idx), *h.ChunkID)
		require.NotNil(t, h.OriginalMessageID)
		require.Equal(t, uint64(100), *h.OriginalMessageID)
		totalChunks = *h.TotalChunks
		reassembled = append(reassembled, payload...)
	}
	require.Equal(t, uint64(3), totalChunks)
	require.Equal(t, data, reassembled)
}

func TestGenerateWithAnnouncementPrependsPDU(t *testing.T) {
	enc, err := codec.ParseList("gzip")
	require.NoError(t, err)
	annEnc, err := codec.ParseList("crc16")
	require.NoError(t, err)

	g := NewGenerator("F4ABC", "F4XYZ", enc, 0, 10)
	g.WithAnnouncement(annEnc)

	data := []byte("announced message body")
	pdus, err := g.Generate(data, header.MediaType{Type: "application/octet-stream"}, true)
	require.NoError(t, err)
	require.Len(t, pdus, 2)

	annHeader, annPayload, err := header.Unpack(pdus[0])
	require.NoError(t, err)
	mt, ok := annHeader.MediaType()
	require.True(t, ok)
	require.Equal(t, header.AnnouncementMIME, mt.MIME())

	c, err := codec.NewRegistry().Build(codec.Encoding{Tag: "crc16"})
	require.NoError(t, err)
	decodedBody, _, err := c.Decode(annPayload)
	require.NoError(t, err)

	innerHeader, err := header.Unmarshal(decodedBody)
	require.NoError(t, err)
	require.NotNil(t, innerHeader.MessageID)

	dataHeader, _, err := header.Unpack(pdus[1])
	require.NoError(t, err)
	require.Equal(t, *innerHeader.MessageID, *dataHeader.MessageID)
}

func TestResolveEncodingsInjectsBoundaryAndChunk(t *testing.T) {
	enc, err := codec.ParseList("gzip")
	require.NoError(t, err)
	resolved := resolveEncodings(enc, 512)
	require.Equal(t, "gzip,chunk(512),h", resolved.String())
}

func TestResolveEncodingsKeepsExplicitBoundary(t *testing.T) {
	enc, err := codec.ParseList("gzip,h,crc32")
	require.NoError(t, err)
	resolved := resolveEncodings(enc, 0)
	require.Equal(t, "gzip,h,crc32", resolved.String())
}
