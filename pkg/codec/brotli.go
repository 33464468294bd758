package codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
)

// brotliCodec implements the "br" content encoding. No pack repo depends on
// a brotli library; this is the de-facto Go implementation, named without
// pack grounding in the domain-stack writeup.
type brotliCodec struct{}

func newBrotli() Codec { return brotliCodec{} }

func (brotliCodec) Tag() string { return "br" }

func (brotliCodec) Encode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := brotli.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("brotli encode: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("brotli encode: %w", err)
	}
	return buf.Bytes(), nil
}

func (brotliCodec) Decode(data []byte) ([]byte, Quality, error) {
	r := brotli.NewReader(bytes.NewReader(data))
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, &Error{Tag: "br", Err: fmt.Errorf("%w: %v", ErrFailed, err)}
	}
	return out, 0, nil
}
