package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loic-fejoz/hqfbp/pkg/codec"
	"github.com/loic-fejoz/hqfbp/pkg/header"
	"github.com/loic-fejoz/hqfbp/pkg/pdu"
	"github.com/loic-fejoz/hqfbp/pkg/transport"
)

func TestRunUnpacksStreamToFile(t *testing.T) {
	dir := t.TempDir()
	streamPath := filepath.Join(dir, "in.kiss")

	enc, err := codec.ParseList("crc32")
	require.NoError(t, err)
	g := pdu.NewGenerator("F4ABC", "", enc, 0, 1)
	pdus, err := g.Generate([]byte("round trip via cli"), header.MediaType{Type: "text/plain"}, true)
	require.NoError(t, err)

	w, err := transport.CreateFile(streamPath)
	require.NoError(t, err)
	for _, p := range pdus {
		require.NoError(t, w.Send(p))
	}
	require.NoError(t, w.Close())

	outDir := filepath.Join(dir, "out")
	code := run([]string{outDir, "--input", streamPath})
	require.Equal(t, 0, code)

	data, err := os.ReadFile(filepath.Join(outDir, "msg-1.txt"))
	require.NoError(t, err)
	require.Equal(t, "round trip via cli", string(data))
}

func TestRunFailsWithoutInputOrTarget(t *testing.T) {
	code := run([]string{t.TempDir()})
	require.Equal(t, 1, code)
}
