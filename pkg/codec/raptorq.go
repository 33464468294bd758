package codec

// raptorqDegree picks source symbols for a repair symbol using a splitmix64
// hash of the ESI so the same ESI always regenerates the same combination
// (needed so a decoder re-derives the generator's choice without side
// channels). RaptorQ repair symbols mix a wider spread of source symbols
// than the LT construction in lt.go, trading lower per-symbol overhead for a
// higher average degree.
func raptorqDegree(esi uint32, k int) []int {
	if k == 0 {
		return nil
	}
	degree := 3
	if k < degree {
		degree = k
	}
	h := splitmix64(uint64(esi) + 0x9E3779B97F4A7C15)
	seen := make(map[int]bool, degree)
	out := make([]int, 0, degree)
	for len(out) < degree {
		h = splitmix64(h)
		idx := int(h % uint64(k))
		if !seen[idx] {
			seen[idx] = true
			out = append(out, idx)
		}
	}
	return out
}

func splitmix64(x uint64) uint64 {
	x += 0x9E3779B97F4A7C15
	x = (x ^ (x >> 30)) * 0xBF58476D1CE4E5B9
	x = (x ^ (x >> 27)) * 0x94D049BB133111EB
	x ^= x >> 31
	return x
}

// NewRaptorQ builds an rq(dlen,mtu,k) fountain codec, where k is the repair
// symbol count resolved from either an absolute count or a percentage of
// the source block count (see EncodingList.ResolveDynamic).
func NewRaptorQ(dlen, mtu, repairCount int) (Codec, error) {
	return fountainCodec{
		tag:     "rq",
		dlen:    dlen,
		mtu:     mtu,
		repairN: repairCount,
		degree:  raptorqDegree,
	}, nil
}
