package header

import (
	"bytes"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/loic-fejoz/hqfbp/pkg/codec"
)

// Error wraps a header encode/decode/merge failure.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return "header " + e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// ErrMalformed indicates the CBOR bytes didn't decode to a valid header.
var ErrMalformed = fmt.Errorf("header: malformed")

// ErrMissingField indicates a required field (Message-Id on encode, or
// Message-Id/announcement Content-Type on decode) was absent.
var ErrMissingField = fmt.Errorf("header: missing required field")

// Header is the metadata envelope carried by every HQFBP PDU. Every field
// is optional; a session accumulates a complete Header by merging the
// headers of each PDU it receives (see Merge).
type Header struct {
	MessageID         *uint64
	SrcCallsign       *string
	DstCallsign       *string
	ContentFormat     *uint16
	ContentType       *string
	ContentEncoding   codec.EncodingList
	ReprDigest        []byte
	ContentDigest     []byte
	FileSize          *uint64
	ChunkID           *uint64
	OriginalMessageID *uint64
	TotalChunks       *uint64
	PayloadSize       *uint64
}

type wireHeader struct {
	MessageID         *uint64           `cbor:"0,keyasint,omitempty"`
	SrcCallsign       *string           `cbor:"1,keyasint,omitempty"`
	DstCallsign       *string           `cbor:"2,keyasint,omitempty"`
	ContentFormat     *uint16           `cbor:"3,keyasint,omitempty"`
	ContentType       *string           `cbor:"4,keyasint,omitempty"`
	ContentEncoding   *wireEncodingList `cbor:"5,keyasint,omitempty"`
	ReprDigest        []byte            `cbor:"6,keyasint,omitempty"`
	ContentDigest     []byte            `cbor:"7,keyasint,omitempty"`
	FileSize          *uint64           `cbor:"8,keyasint,omitempty"`
	ChunkID           *uint64           `cbor:"9,keyasint,omitempty"`
	OriginalMessageID *uint64           `cbor:"10,keyasint,omitempty"`
	TotalChunks       *uint64           `cbor:"11,keyasint,omitempty"`
	PayloadSize       *uint64           `cbor:"12,keyasint,omitempty"`
}

func (h Header) toWire() wireHeader {
	w := wireHeader{
		MessageID:         h.MessageID,
		SrcCallsign:       h.SrcCallsign,
		DstCallsign:       h.DstCallsign,
		ContentFormat:     h.ContentFormat,
		ContentType:       h.ContentType,
		ReprDigest:        h.ReprDigest,
		ContentDigest:     h.ContentDigest,
		FileSize:          h.FileSize,
		ChunkID:           h.ChunkID,
		OriginalMessageID: h.OriginalMessageID,
		TotalChunks:       h.TotalChunks,
		PayloadSize:       h.PayloadSize,
	}
	if len(h.ContentEncoding) > 0 {
		wel := wireEncodingList(h.ContentEncoding)
		w.ContentEncoding = &wel
	}
	return w
}

func (w wireHeader) toHeader() Header {
	h := Header{
		MessageID:         w.MessageID,
		SrcCallsign:       w.SrcCallsign,
		DstCallsign:       w.DstCallsign,
		ContentFormat:     w.ContentFormat,
		ContentType:       w.ContentType,
		ReprDigest:        w.ReprDigest,
		ContentDigest:     w.ContentDigest,
		FileSize:          w.FileSize,
		ChunkID:           w.ChunkID,
		OriginalMessageID: w.OriginalMessageID,
		TotalChunks:       w.TotalChunks,
		PayloadSize:       w.PayloadSize,
	}
	if w.ContentEncoding != nil {
		h.ContentEncoding = codec.EncodingList(*w.ContentEncoding)
	}
	return h
}

// Marshal encodes h to its canonical CBOR wire form.
func (h Header) Marshal() ([]byte, error) {
	b, err := cbor.Marshal(h.toWire())
	if err != nil {
		return nil, &Error{Op: "marshal", Err: err}
	}
	return b, nil
}

// Unmarshal decodes a CBOR-encoded Header.
func Unmarshal(data []byte) (Header, error) {
	var w wireHeader
	if err := cbor.Unmarshal(data, &w); err != nil {
		return Header{}, &Error{Op: "unmarshal", Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}
	return w.toHeader(), nil
}

// Merge folds other's fields into h. quality is the quality of the chunk
// that currently backs h's fields; otherQuality is other's. When a field is
// non-null in both and the values disagree, the value from the
// higher-quality side wins; a tie keeps h's existing value (first-seen).
// Content-Encoding is taken from other only when h has none. The
// per-chunk identity fields (Message-Id, Chunk-Id, Original-Message-Id,
// Total-Chunks) are not merged.
func (h *Header) Merge(other Header, quality, otherQuality int) {
	mergeString(&h.SrcCallsign, other.SrcCallsign, quality, otherQuality)
	mergeString(&h.DstCallsign, other.DstCallsign, quality, otherQuality)
	mergeUint16(&h.ContentFormat, other.ContentFormat, quality, otherQuality)
	mergeString(&h.ContentType, other.ContentType, quality, otherQuality)
	if h.ContentEncoding == nil && other.ContentEncoding != nil {
		h.ContentEncoding = other.ContentEncoding
	}
	mergeBytes(&h.ReprDigest, other.ReprDigest, quality, otherQuality)
	mergeBytes(&h.ContentDigest, other.ContentDigest, quality, otherQuality)
	mergeUint64(&h.FileSize, other.FileSize, quality, otherQuality)
	mergeUint64(&h.PayloadSize, other.PayloadSize, quality, otherQuality)
}

func mergeString(dst **string, src *string, quality, otherQuality int) {
	if src == nil {
		return
	}
	if *dst == nil || (**dst != *src && otherQuality > quality) {
		*dst = src
	}
}

func mergeBytes(dst *[]byte, src []byte, quality, otherQuality int) {
	if src == nil {
		return
	}
	if *dst == nil || (string(*dst) != string(src) && otherQuality > quality) {
		*dst = src
	}
}

func mergeUint16(dst **uint16, src *uint16, quality, otherQuality int) {
	if src == nil {
		return
	}
	if *dst == nil || (**dst != *src && otherQuality > quality) {
		*dst = src
	}
}

func mergeUint64(dst **uint64, src *uint64, quality, otherQuality int) {
	if src == nil {
		return
	}
	if *dst == nil || (**dst != *src && otherQuality > quality) {
		*dst = src
	}
}

// StripChunking clears the per-chunk identity fields, leaving a header
// suitable for describing the reassembled message as a whole.
func (h *Header) StripChunking() {
	h.MessageID = nil
	h.ChunkID = nil
	h.OriginalMessageID = nil
	h.TotalChunks = nil
}

// MediaType returns the header's Content-Format/Content-Type as a single
// MediaType, preferring the compact Content-Format when both are set
// (SetMediaType keeps them mutually exclusive). It reports false when
// neither is set.
func (h Header) MediaType() (MediaType, bool) {
	if h.ContentFormat != nil {
		return MediaType{Format: *h.ContentFormat, HasFormat: true}, true
	}
	if h.ContentType != nil {
		return MediaType{Type: *h.ContentType}, true
	}
	return MediaType{}, false
}

// SetMediaType sets Content-Format/Content-Type from mt, canonicalizing a
// free-form MIME string into a compact Content-Format when the CoAP
// registry has an exact match. The two fields are kept mutually exclusive.
func (h *Header) SetMediaType(mt MediaType) {
	mt = mt.Canonicalize()
	if mt.HasFormat {
		h.ContentFormat = &mt.Format
		h.ContentType = nil
		return
	}
	h.ContentType = &mt.Type
	h.ContentFormat = nil
}

// Pack builds a wire PDU: a CBOR-encoded Header immediately followed by
// payload. h.MessageID must already be set; Payload-Size is filled in from
// len(payload) and a redundant Content-Format of 0 is omitted.
func Pack(h Header, payload []byte) ([]byte, error) {
	if mt, ok := h.MediaType(); ok {
		h.SetMediaType(mt)
	}
	if h.ContentFormat != nil && *h.ContentFormat == 0 {
		h.ContentFormat = nil
	}
	if h.MessageID == nil {
		return nil, &Error{Op: "pack", Err: ErrMissingField}
	}
	size := uint64(len(payload))
	h.PayloadSize = &size

	encoded, err := h.Marshal()
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(encoded)+len(payload))
	out = append(out, encoded...)
	out = append(out, payload...)
	return out, nil
}

// Unpack splits a wire PDU into its Header and payload. A PDU must carry
// either a Message-Id or an announcement Content-Type. Payload-Size, when
// present, records the payload length Pack saw before any block-oriented
// post-boundary codec (e.g. rs(n,k)) widened it to a block-size multiple;
// Unpack trims the trailing bytes data[dec.NumBytesRead():] leaves behind
// once such a codec has been undone, so that shortening padding never
// survives into the returned payload.
func Unpack(data []byte) (Header, []byte, error) {
	dec := cbor.NewDecoder(bytes.NewReader(data))
	var w wireHeader
	if err := dec.Decode(&w); err != nil {
		return Header{}, nil, &Error{Op: "unpack", Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}
	h := w.toHeader()
	if h.MessageID == nil && (h.ContentType == nil || *h.ContentType != AnnouncementMIME) {
		return Header{}, nil, &Error{Op: "unpack", Err: ErrMissingField}
	}
	payload := data[dec.NumBytesRead():]
	if h.PayloadSize != nil && *h.PayloadSize <= uint64(len(payload)) {
		payload = payload[:*h.PayloadSize]
	}
	return h, payload, nil
}

// Describe renders h as an ordered list of human-readable field names and
// values, suitable for CLI/log output. Only fields actually set are
// included.
func (h Header) Describe() []string {
	var lines []string
	add := func(name, val string) { lines = append(lines, name+": "+val) }
	if h.MessageID != nil {
		add("Message-Id", fmt.Sprintf("%d", *h.MessageID))
	}
	if h.SrcCallsign != nil {
		add("Src-Callsign", *h.SrcCallsign)
	}
	if h.DstCallsign != nil {
		add("Dst-Callsign", *h.DstCallsign)
	}
	if mt, ok := h.MediaType(); ok {
		add("Content-Type", mt.MIME())
	}
	if len(h.ContentEncoding) > 0 {
		add("Content-Encoding", h.ContentEncoding.String())
	}
	if h.ReprDigest != nil {
		add("Repr-Digest", fmt.Sprintf("%x", h.ReprDigest))
	}
	if h.ContentDigest != nil {
		add("Content-Digest", fmt.Sprintf("%x", h.ContentDigest))
	}
	if h.FileSize != nil {
		add("File-Size", fmt.Sprintf("%d", *h.FileSize))
	}
	if h.ChunkID != nil {
		add("Chunk-Id", fmt.Sprintf("%d", *h.ChunkID))
	}
	if h.OriginalMessageID != nil {
		add("Original-Message-Id", fmt.Sprintf("%d", *h.OriginalMessageID))
	}
	if h.TotalChunks != nil {
		add("Total-Chunks", fmt.Sprintf("%d", *h.TotalChunks))
	}
	if h.PayloadSize != nil {
		add("Payload-Size", fmt.Sprintf("%d", *h.PayloadSize))
	}
	return lines
}
