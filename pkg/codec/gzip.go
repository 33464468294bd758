package codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
)

// gzipCodec implements the "gzip" content encoding using klauspost/compress,
// a drop-in replacement for the stdlib package that the wider pack already
// depends on transitively (EvSecDev-SDSyslog's go.mod).
type gzipCodec struct{}

func newGzip() Codec { return gzipCodec{} }

func (gzipCodec) Tag() string { return "gzip" }

func (gzipCodec) Encode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("gzip encode: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("gzip encode: %w", err)
	}
	return buf.Bytes(), nil
}

func (gzipCodec) Decode(data []byte) ([]byte, Quality, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, 0, &Error{Tag: "gzip", Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, &Error{Tag: "gzip", Err: fmt.Errorf("%w: %v", ErrFailed, err)}
	}
	return out, 0, nil
}

// deflateCodec implements the "deflate" content encoding (raw DEFLATE,
// no gzip/zlib wrapper).
type deflateCodec struct{}

func newDeflate() Codec { return deflateCodec{} }

func (deflateCodec) Tag() string { return "deflate" }

func (deflateCodec) Encode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, fmt.Errorf("deflate encode: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("deflate encode: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("deflate encode: %w", err)
	}
	return buf.Bytes(), nil
}

func (deflateCodec) Decode(data []byte) ([]byte, Quality, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, &Error{Tag: "deflate", Err: fmt.Errorf("%w: %v", ErrFailed, err)}
	}
	return out, 0, nil
}
