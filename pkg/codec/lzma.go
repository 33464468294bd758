package codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ulikunitz/xz"
)

// lzmaCodec implements the "lzma" content encoding. The reference encodes
// with an xz container (lzma_rs::xz_compress), so we match that container
// format rather than bare LZMA1/2 streams.
type lzmaCodec struct{}

func newLzma() Codec { return lzmaCodec{} }

func (lzmaCodec) Tag() string { return "lzma" }

func (lzmaCodec) Encode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		return nil, fmt.Errorf("lzma encode: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("lzma encode: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("lzma encode: %w", err)
	}
	return buf.Bytes(), nil
}

func (lzmaCodec) Decode(data []byte) ([]byte, Quality, error) {
	r, err := xz.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, 0, &Error{Tag: "lzma", Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, &Error{Tag: "lzma", Err: fmt.Errorf("%w: %v", ErrFailed, err)}
	}
	return out, 0, nil
}
