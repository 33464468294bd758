package codec

// ltDegree implements a simplified robust-soliton-ish degree choice: most
// repair symbols combine just one or two source symbols, occasionally more,
// biased by the ESI hash rather than drawn from a true Ideal Soliton
// distribution — close enough to the Luby-Transform shape to exercise the
// same accumulator machinery as rq(...) without claiming standard
// compliance.
func ltDegree(esi uint32, k int) []int {
	if k == 0 {
		return nil
	}
	h := splitmix64(uint64(esi) ^ 0xD1B54A32D192ED03)
	degree := 1 + int(h%3)
	if degree > k {
		degree = k
	}
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

// NewLT builds an lt(dlen,n,k) fountain codec; n is unused beyond sizing
// (the source symbol count is derived from dlen/mtu like rq), k is the
// repair symbol count.
func NewLT(dlen, mtu, repairCount int) (Codec, error) {
	return fountainCodec{
		tag:     "lt",
		dlen:    dlen,
		mtu:     mtu,
		repairN: repairCount,
		degree:  ltDegree,
	}, nil
}
