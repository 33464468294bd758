package header

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/loic-fejoz/hqfbp/pkg/codec"
)

// compactIDs holds the handful of encoding tags short enough to deserve a
// one-byte CBOR integer instead of a text string on the wire. Every other
// tag (rs(n,k), rq(...), scr(...), ...) is serialized as its canonical
// string form.
var compactIDs = map[string]int8{
	"h":        -1,
	"identity": 0,
	"gzip":     1,
	"deflate":  2,
	"br":       3,
	"lzma":     4,
	"crc16":    5,
	"crc32":    6,
	"ax.25":    41,
}

var reverseCompactIDs = func() map[int8]string {
	m := make(map[int8]string, len(compactIDs))
	for tag, id := range compactIDs {
		m[id] = tag
	}
	return m
}()

func encodingCompactID(e codec.Encoding) (int8, bool) {
	if e.Tag == "asm" && len(e.Word) == 0 {
		return 54, true
	}
	if e.Tag == "post_asm" && len(e.Word) == 0 {
		return 56, true
	}
	id, ok := compactIDs[e.Tag]
	return id, ok
}

// wireEncodingItem marshals one Encoding as either a compact int8 or, when
// no compact id applies, its canonical string form.
func wireEncodingItem(e codec.Encoding) (interface{}, error) {
	if id, ok := encodingCompactID(e); ok {
		return id, nil
	}
	return e.String(), nil
}

func decodeEncodingItem(v interface{}) (codec.Encoding, error) {
	switch t := v.(type) {
	case int64:
		return decodeCompactID(int8(t))
	case uint64:
		return decodeCompactID(int8(t))
	case string:
		return codec.ParseEncoding(t)
	default:
		return codec.Encoding{}, fmt.Errorf("header: unexpected Content-Encoding item type %T", v)
	}
}

func decodeCompactID(id int8) (codec.Encoding, error) {
	if tag, ok := reverseCompactIDs[id]; ok {
		return codec.Encoding{Tag: tag}, nil
	}
	return codec.Encoding{Tag: "other", Other: fmt.Sprintf("%d", id)}, nil
}

// wireEncodingList is the CBOR-facing shape of a Content-Encoding field:
// chunk(n) markers are dropped before encoding (they're recovered from
// Total-Chunks/Chunk-Id instead), a single remaining entry serializes bare,
// and more than one serializes as an array.
type wireEncodingList codec.EncodingList

func (w wireEncodingList) MarshalCBOR() ([]byte, error) {
	filtered := make(codec.EncodingList, 0, len(w))
	for _, e := range w {
		if e.Tag != "chunk" {
			filtered = append(filtered, e)
		}
	}
	if len(filtered) == 0 {
		return cbor.Marshal(int8(0)) // identity
	}
	if len(filtered) == 1 {
		item, err := wireEncodingItem(filtered[0])
		if err != nil {
			return nil, err
		}
		return cbor.Marshal(item)
	}
	items := make([]interface{}, len(filtered))
	for i, e := range filtered {
		item, err := wireEncodingItem(e)
		if err != nil {
			return nil, err
		}
		items[i] = item
	}
	return cbor.Marshal(items)
}

func (w *wireEncodingList) UnmarshalCBOR(data []byte) error {
	var raw interface{}
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case []interface{}:
		list := make(codec.EncodingList, len(v))
		for i, item := range v {
			e, err := decodeEncodingItem(item)
			if err != nil {
				return err
			}
			list[i] = e
		}
		*w = wireEncodingList(list)
	default:
		e, err := decodeEncodingItem(v)
		if err != nil {
			return err
		}
		*w = wireEncodingList{e}
	}
	return nil
}
