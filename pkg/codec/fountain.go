package codec

import (
	"encoding/binary"
	"fmt"
)

// Fountain-code machinery shared by rq(...) and lt(...). Neither codec
// claims bit-exact interop with RFC 6330 RaptorQ or the classic
// Luby-Transform construction; both are systematic (source symbols ESI
// 0..k-1 sent verbatim) plus XOR-combined repair symbols, reconstructed by
// Gaussian elimination over GF(2) once enough independent equations have
// arrived. This mirrors the reference's "systematic symbols then repair
// symbols" interface shape without reproducing its exact symbol generator.

type degreeFunc func(esi uint32, k int) []int

type fountainCodec struct {
	tag     string
	dlen    int
	mtu     int
	repairN int
	degree  degreeFunc
}

func (f fountainCodec) Tag() string { return f.tag }

func (f fountainCodec) sourceCount() int {
	if f.mtu <= 0 {
		return 0
	}
	return (f.dlen + f.mtu - 1) / f.mtu
}

func splitSymbols(data []byte, mtu int) [][]byte {
	k := (len(data) + mtu - 1) / mtu
	out := make([][]byte, k)
	for i := 0; i < k; i++ {
		chunk := make([]byte, mtu)
		n := copy(chunk, data[i*mtu:])
		_ = n
		out[i] = chunk
	}
	return out
}

func xorInto(dst, src []byte) {
	for i := range dst {
		dst[i] ^= src[i]
	}
}

// GenerateSymbols builds the systematic source symbols followed by
// repairCount XOR-combined repair symbols.
func (f fountainCodec) GenerateSymbols(data []byte, repairCount int) ([]Symbol, error) {
	if f.mtu <= 0 {
		return nil, fmt.Errorf("%s: mtu must be positive", f.tag)
	}
	source := splitSymbols(data, f.mtu)
	k := len(source)
	out := make([]Symbol, 0, k+repairCount)
	for i, s := range source {
		out = append(out, Symbol{ESI: uint32(i), Payload: append([]byte(nil), s...)})
	}
	for r := 0; r < repairCount; r++ {
		esi := uint32(k + r)
		payload := make([]byte, f.mtu)
		for _, idx := range f.degree(esi, k) {
			xorInto(payload, source[idx])
		}
		out = append(out, Symbol{ESI: esi, Payload: payload})
	}
	return out, nil
}

// Encode produces a flat wire form (4-byte ESI + mtu-byte payload per
// symbol) for callers that want a single-buffer round trip rather than
// PDU-level symbol handling.
func (f fountainCodec) Encode(data []byte) ([]byte, error) {
	syms, err := f.GenerateSymbols(data, f.repairN)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(syms)*(4+f.mtu))
	for _, s := range syms {
		var hdr [4]byte
		binary.BigEndian.PutUint32(hdr[:], s.ESI)
		out = append(out, hdr[:]...)
		out = append(out, s.Payload...)
	}
	return out, nil
}

func (f fountainCodec) Decode(data []byte) ([]byte, Quality, error) {
	stride := 4 + f.mtu
	if f.mtu <= 0 || len(data)%stride != 0 {
		return nil, 0, &Error{Tag: f.tag, Err: ErrMalformed}
	}
	acc := f.NewAccumulator()
	for off := 0; off < len(data); off += stride {
		esi := binary.BigEndian.Uint32(data[off : off+4])
		payload := append([]byte(nil), data[off+4:off+stride]...)
		acc.Feed(Symbol{ESI: esi, Payload: payload})
	}
	out, q, ok := acc.TryDecode()
	if !ok {
		return nil, 0, &Error{Tag: f.tag, Err: fmt.Errorf("%w: insufficient symbols", ErrFailed)}
	}
	return out, q, nil
}

// NewAccumulator returns a fresh per-session symbol accumulator.
func (f fountainCodec) NewAccumulator() Accumulator {
	return &fountainAccumulator{
		k:      f.sourceCount(),
		dlen:   f.dlen,
		mtu:    f.mtu,
		degree: f.degree,
	}
}

type fountainEquation struct {
	mask  []bool // which of the k unknowns this equation involves
	value []byte
}

type fountainAccumulator struct {
	k      int
	dlen   int
	mtu    int
	degree degreeFunc
	eqs    []fountainEquation
}

func (a *fountainAccumulator) Feed(sym Symbol) {
	mask := make([]bool, a.k)
	if int(sym.ESI) < a.k {
		mask[sym.ESI] = true
	} else {
		for _, idx := range a.degree(sym.ESI, a.k) {
			if idx >= 0 && idx < a.k {
				mask[idx] = true
			}
		}
	}
	a.eqs = append(a.eqs, fountainEquation{mask: mask, value: sym.Payload})
}

// TryDecode runs Gaussian elimination over GF(2) across the accumulated
// equations; each "value" is an mtu-byte vector and XOR stands in for GF(2)
// addition component-wise, so ordinary linear-algebra reduction applies
// symbol-by-symbol exactly as it would to single bits.
func (a *fountainAccumulator) TryDecode() ([]byte, Quality, bool) {
	if a.k == 0 || len(a.eqs) < a.k {
		return nil, 0, false
	}
	rows := make([]fountainEquation, len(a.eqs))
	for i, e := range a.eqs {
		rows[i] = fountainEquation{mask: append([]bool(nil), e.mask...), value: append([]byte(nil), e.value...)}
	}

	solved := make([]bool, a.k)
	values := make([][]byte, a.k)
	pivotRow := 0
	for col := 0; col < a.k && pivotRow < len(rows); col++ {
		sel := -1
		for r := pivotRow; r < len(rows); r++ {
			if rows[r].mask[col] {
				sel = r
				break
			}
		}
		if sel == -1 {
			continue
		}
		rows[pivotRow], rows[sel] = rows[sel], rows[pivotRow]
		for r := 0; r < len(rows); r++ {
			if r != pivotRow && rows[r].mask[col] {
				for c := 0; c < a.k; c++ {
					rows[r].mask[c] = rows[r].mask[c] != rows[pivotRow].mask[c]
				}
				xorInto(rows[r].value, rows[pivotRow].value)
			}
		}
		pivotRow++
	}

	redundancy := len(rows) - a.k
	for r := 0; r < pivotRow; r++ {
		weight := 0
		col := -1
		for c := 0; c < a.k; c++ {
			if rows[r].mask[c] {
				weight++
				col = c
			}
		}
		if weight == 1 {
			solved[col] = true
			values[col] = rows[r].value
		}
	}
	for c := 0; c < a.k; c++ {
		if !solved[c] {
			return nil, 0, false
		}
	}

	out := make([]byte, 0, a.k*a.mtu)
	for c := 0; c < a.k; c++ {
		out = append(out, values[c]...)
	}
	if len(out) > a.dlen {
		out = out[:a.dlen]
	}
	return out, Quality(redundancy), true
}
