// Package codec implements the reversible transform catalog used to build
// and tear down HQFBP content and PDU encoding stacks: compression, the
// boundary marker, checksums, block and convolutional FEC, fountain codes,
// scrambling and framing helpers.
package codec

import "errors"

// Quality is a non-negative score summarizing how much correction headroom
// remained after a decode; higher is better. Stateless codecs pass their
// input quality through unchanged.
type Quality int

// ErrMalformed indicates the input could not be parsed as this codec's
// expected shape (too short, bad checksum trailer, ...).
var ErrMalformed = errors.New("codec: malformed input")

// ErrFailed indicates a structurally valid input could not be decoded
// (checksum mismatch, FEC correction budget exceeded, insufficient
// fountain symbols, ...).
var ErrFailed = errors.New("codec: decode failed")

// Error wraps a decode/encode failure with the responsible tag so callers
// can log or classify it without string matching.
type Error struct {
	Tag string
	Err error
}

func (e *Error) Error() string { return "codec " + e.Tag + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// Codec is a per-PDU reversible transform. Encode is deterministic given
// its construction parameters. Decode may be called with accumulated bytes
// for multi-PDU codecs (see MultiPDU) rather than a single PDU's payload.
type Codec interface {
	// Tag returns the canonical EncodingList tag this instance was built from.
	Tag() string
	Encode(data []byte) ([]byte, error)
	Decode(data []byte) ([]byte, Quality, error)
}

// Boundary is implemented by the one codec allowed to act as the
// content/PDU split marker ("h").
type Boundary interface {
	Codec
	IsBoundary() bool
}

// Chunker is implemented by codecs that split/join a byte stream into
// multiple pieces rather than transforming it in place. Only the chunk
// marker implements it; repeat is a per-PDU byte-level codec. The
// PDUGenerator special-cases chunk by its tag rather than calling
// Encode/Decode on a single buffer.
type Chunker interface {
	Codec
	IsChunking() bool
}

// Symbol is one fountain-coded piece produced by a MultiPDU codec at
// generation time, or fed back into its Accumulator at reassembly time.
type Symbol struct {
	ESI     uint32
	Payload []byte
}

// Accumulator buffers fountain-code symbols across PDUs of one session
// until enough have arrived to attempt a decode. Owned by a Session.
type Accumulator interface {
	Feed(sym Symbol)
	TryDecode() ([]byte, Quality, bool)
}

// MultiPDU is implemented by fountain codecs (RaptorQ, LT): generation
// produces a set of symbol PDUs instead of transforming one payload in
// place, and reassembly needs a stateful Accumulator fed across PDUs.
type MultiPDU interface {
	Codec
	GenerateSymbols(data []byte, repairCount int) ([]Symbol, error)
	NewAccumulator() Accumulator
}
