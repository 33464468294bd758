// Package header implements the HQFBP message header: its CBOR wire
// encoding, merge/strip operations used by session reassembly, and the
// MediaType <-> CoAP Content-Format compaction.
package header

import "fmt"

// coapContentFormats is the subset of the CoAP Content-Format registry
// (RFC 7252 §12.3) HQFBP compacts a MIME Content-Type into when an exact
// match exists, avoiding the cost of a text string on the wire.
var coapContentFormats = map[string]uint16{
	"text/plain;charset=utf-8": 0,
	"application/link-format":  40,
	"application/xml":          41,
	"application/octet-stream": 42,
	"application/json":         50,
	"application/cbor":         60,
	"application/senml+json":   110,
	"application/senml-exi":    111,
	"application/senml+cbor":   112,
	"application/sensml+json":  113,
	"application/sensml-exi":   114,
	"application/sensml+cbor":  115,
	"image/gif":                21,
	"image/jpeg":                22,
	"image/png":                23,
	"image/tiff":                24,
	"image/svg+xml":             30,
	"application/cose-key":      101,
	"application/cose-key-set":  102,
	"application/or-tecap":      116,
}

var reverseCoapContentFormats = func() map[uint16]string {
	m := make(map[uint16]string, len(coapContentFormats))
	for mime, id := range coapContentFormats {
		m[id] = mime
	}
	return m
}()

// CoAPContentFormatID returns the numeric Content-Format for mime, if the
// CoAP registry has an exact entry for it.
func CoAPContentFormatID(mime string) (uint16, bool) {
	id, ok := coapContentFormats[mime]
	return id, ok
}

// MediaType is either a compact CoAP Content-Format id or a free-form MIME
// Content-Type string; exactly one of the two is meaningful.
type MediaType struct {
	Format    uint16
	Type      string
	HasFormat bool
}

// MIME renders the media type as a MIME string, looking up the CoAP
// registry when this MediaType holds a compact format id.
func (m MediaType) MIME() string {
	if m.HasFormat {
		if mime, ok := reverseCoapContentFormats[m.Format]; ok {
			return mime
		}
		return fmt.Sprintf("application/x-coap-%d", m.Format)
	}
	return m.Type
}

// Canonicalize compacts a free-form Type into a Format when the CoAP
// registry has an exact match, leaving the value unchanged otherwise.
func (m MediaType) Canonicalize() MediaType {
	if m.HasFormat {
		return m
	}
	if id, ok := CoAPContentFormatID(m.Type); ok {
		return MediaType{Format: id, HasFormat: true}
	}
	return m
}

// AnnouncementMIME is the Content-Type describing an announcement PDU's
// payload: a CBOR-encoded Header for the message it precedes.
const AnnouncementMIME = "application/vnd.hqfbp+cbor"
