package codec

import (
	"encoding/binary"
	"fmt"
)

// syncMarker implements "asm(word)": prefixes the payload with a fixed
// synchronization word on encode, and requires (and strips) that same word
// on decode.
type syncMarker struct {
	tag  string
	word []byte
}

// NewSyncMarker builds an asm(word) codec. tag is normally "asm".
func NewSyncMarker(tag string, word []byte) Codec {
	return syncMarker{tag: tag, word: word}
}

func (s syncMarker) Tag() string { return s.tag }

func (s syncMarker) Encode(data []byte) ([]byte, error) {
	out := make([]byte, 0, len(s.word)+len(data))
	out = append(out, s.word...)
	out = append(out, data...)
	return out, nil
}

func (s syncMarker) Decode(data []byte) ([]byte, Quality, error) {
	if len(data) < len(s.word) {
		return nil, 0, &Error{Tag: s.tag, Err: ErrMalformed}
	}
	for i, w := range s.word {
		if data[i] != w {
			return nil, 0, &Error{Tag: s.tag, Err: fmt.Errorf("%w: sync word mismatch", ErrFailed)}
		}
	}
	return data[len(s.word):], 0, nil
}

// postSyncMarker implements "post_asm(word)": like asm(word), but also
// carries a big-endian uint32 payload-length prefix after the sync word, so
// a receiver that only captured a truncated, shortened RS block can still
// recover the intended payload boundary.
type postSyncMarker struct {
	word []byte
}

// NewPostSyncMarker builds a post_asm(word) codec.
func NewPostSyncMarker(word []byte) Codec {
	return postSyncMarker{word: word}
}

func (postSyncMarker) Tag() string { return "post_asm" }

func (p postSyncMarker) Encode(data []byte) ([]byte, error) {
	out := make([]byte, 0, len(p.word)+4+len(data))
	out = append(out, p.word...)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	out = append(out, lenBuf[:]...)
	out = append(out, data...)
	return out, nil
}

func (p postSyncMarker) Decode(data []byte) ([]byte, Quality, error) {
	prefix := len(p.word) + 4
	if len(data) < prefix {
		return nil, 0, &Error{Tag: "post_asm", Err: ErrMalformed}
	}
	for i, w := range p.word {
		if data[i] != w {
			return nil, 0, &Error{Tag: "post_asm", Err: fmt.Errorf("%w: sync word mismatch", ErrFailed)}
		}
	}
	n := binary.BigEndian.Uint32(data[len(p.word):prefix])
	rest := data[prefix:]
	if int(n) > len(rest) {
		// The tail was truncated by a shortened RS block; recover what we
		// have rather than failing outright.
		n = uint32(len(rest))
	}
	return rest[:n], 0, nil
}
