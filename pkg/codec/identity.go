package codec

// identity is the no-op codec: used as the fallback for unrecognized
// EncodingList entries and as an explicit "identity" tag.
type identity struct{}

func newIdentity() Codec { return identity{} }

func (identity) Tag() string { return "identity" }

func (identity) Encode(data []byte) ([]byte, error) { return data, nil }

func (identity) Decode(data []byte) ([]byte, Quality, error) { return data, 0, nil }

// boundary is the "h" structural marker: identity on bytes, but flagged
// so EncodingList.Split can partition content-level from PDU-level stacks.
type boundary struct{ identity }

func newBoundary() Codec { return boundary{} }

func (boundary) Tag() string { return "h" }

func (boundary) IsBoundary() bool { return true }

// chunkMarker is the "chunk(n)" structural marker. It never transforms
// bytes directly through Encode/Decode — the PDUGenerator and Deframer
// special-case it to split/join the chunk list itself (spec.md §4.2) —
// but it implements Codec so it can live in an EncodingList like any
// other entry.
type chunkMarker struct {
	identity
	size int
}

func newChunkMarker(size int) Codec { return chunkMarker{size: size} }

func (c chunkMarker) Tag() string     { return "chunk" }
func (c chunkMarker) Size() int       { return c.size }
func (c chunkMarker) IsChunking() bool { return true }
