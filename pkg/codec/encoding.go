package codec

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Encoding is one parsed entry of an EncodingList: a tag plus whatever
// parameters that tag takes. Only the fields relevant to Tag are
// meaningful; this mirrors the reference implementation's tagged-union
// ContentEncoding, flattened into one struct since Go lacks sum types.
type Encoding struct {
	Tag string

	N, K int // rs(n,k), golay(n,k)

	DLen        int  // rq/lt source length; meaningless when DLenDynamic
	DLenDynamic bool // true for the literal "dlen" token, substituted at generation time
	DLenPercent bool // rq(dlen,mtu,k%) variant: RepairCount is a percentage, not a count
	MTU         int  // rq/lt symbol size
	RepairCount int  // rq/lt repair symbol count (or percent, if DLenPercent)

	Count int // repeat(k), chunk(n)

	Rate string // conv(k,rate) e.g. "1/2"

	Poly    uint64 // scr(poly[,seed])
	Seed    uint64
	HasSeed bool

	Word []byte // asm(word) / post_asm(word)

	Other string // OtherString fallback for unrecognized tags
}

// DynamicToken is the literal encoding-list parameter substituted with the
// post-pre-boundary message length at generation time.
const DynamicToken = "dlen"

var (
	reRS        = regexp.MustCompile(`^rs\((\d+),\s*(\d+)\)$`)
	reRQ        = regexp.MustCompile(`^rq\((\d+),\s*(\d+),\s*(\d+)\)$`)
	reRQDyn     = regexp.MustCompile(`^rq\(dlen,\s*(\d+),\s*(\d+)\)$`)
	reRQDynPct  = regexp.MustCompile(`^rq\(dlen,\s*(\d+),\s*(\d+)%\)$`)
	reLT        = regexp.MustCompile(`^lt\((\d+),\s*(\d+),\s*(\d+)\)$`)
	reLTDyn     = regexp.MustCompile(`^lt\(dlen,\s*(\d+),\s*(\d+)\)$`)
	reConv      = regexp.MustCompile(`^conv\((\d+),\s*(\d+/\d+)\)$`)
	reGolay     = regexp.MustCompile(`^golay(\((\d+),\s*(\d+)\))?$`)
	reChunk     = regexp.MustCompile(`^chunk\((\d+)\)$`)
	reRepeat    = regexp.MustCompile(`^repeat\((\d+)\)$`)
	reScrambler = regexp.MustCompile(`^scr\((0x[0-9a-fA-F]+|\d+)(,\s*(0x[0-9a-fA-F]+|\d+))?\)$`)
	reAsm       = regexp.MustCompile(`^asm\((0x[0-9a-fA-F]+|\d+)\)$`)
	rePostAsm   = regexp.MustCompile(`^post_asm\((0x[0-9a-fA-F]+|\d+)\)$`)
)

func parseUintLiteral(s string) (uint64, error) {
	if stripped, ok := strings.CutPrefix(s, "0x"); ok {
		return strconv.ParseUint(stripped, 16, 64)
	}
	return strconv.ParseUint(s, 10, 64)
}

// ParseEncoding parses one canonical encoding-list token, per spec.md §3.1.
func ParseEncoding(s string) (Encoding, error) {
	s = strings.TrimSpace(s)
	switch s {
	case "h":
		return Encoding{Tag: "h"}, nil
	case "identity":
		return Encoding{Tag: "identity"}, nil
	case "gzip":
		return Encoding{Tag: "gzip"}, nil
	case "deflate":
		return Encoding{Tag: "deflate"}, nil
	case "br":
		return Encoding{Tag: "br"}, nil
	case "lzma":
		return Encoding{Tag: "lzma"}, nil
	case "crc16":
		return Encoding{Tag: "crc16"}, nil
	case "crc32":
		return Encoding{Tag: "crc32"}, nil
	case "ax.25":
		return Encoding{Tag: "ax.25"}, nil
	case "golay":
		return Encoding{Tag: "golay", N: 24, K: 12}, nil
	}
	if m := reRS.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		k, _ := strconv.Atoi(m[2])
		return Encoding{Tag: "rs", N: n, K: k}, nil
	}
	if m := reRQDynPct.FindStringSubmatch(s); m != nil {
		mtu, _ := strconv.Atoi(m[1])
		pct, _ := strconv.Atoi(m[2])
		return Encoding{Tag: "rq", DLenDynamic: true, DLenPercent: true, MTU: mtu, RepairCount: pct}, nil
	}
	if m := reRQDyn.FindStringSubmatch(s); m != nil {
		mtu, _ := strconv.Atoi(m[1])
		rep, _ := strconv.Atoi(m[2])
		return Encoding{Tag: "rq", DLenDynamic: true, MTU: mtu, RepairCount: rep}, nil
	}
	if m := reRQ.FindStringSubmatch(s); m != nil {
		dlen, _ := strconv.Atoi(m[1])
		mtu, _ := strconv.Atoi(m[2])
		rep, _ := strconv.Atoi(m[3])
		return Encoding{Tag: "rq", DLen: dlen, MTU: mtu, RepairCount: rep}, nil
	}
	if m := reLTDyn.FindStringSubmatch(s); m != nil {
		mtu, _ := strconv.Atoi(m[1])
		rep, _ := strconv.Atoi(m[2])
		return Encoding{Tag: "lt", DLenDynamic: true, MTU: mtu, RepairCount: rep}, nil
	}
	if m := reLT.FindStringSubmatch(s); m != nil {
		dlen, _ := strconv.Atoi(m[1])
		mtu, _ := strconv.Atoi(m[2])
		rep, _ := strconv.Atoi(m[3])
		return Encoding{Tag: "lt", DLen: dlen, MTU: mtu, RepairCount: rep}, nil
	}
	if m := reConv.FindStringSubmatch(s); m != nil {
		k, _ := strconv.Atoi(m[1])
		return Encoding{Tag: "conv", N: k, Rate: m[2]}, nil
	}
	if m := reGolay.FindStringSubmatch(s); m != nil {
		if m[2] != "" {
			n, _ := strconv.Atoi(m[2])
			k, _ := strconv.Atoi(m[3])
			return Encoding{Tag: "golay", N: n, K: k}, nil
		}
		return Encoding{Tag: "golay", N: 24, K: 12}, nil
	}
	if m := reScrambler.FindStringSubmatch(s); m != nil {
		poly, err := parseUintLiteral(m[1])
		if err != nil {
			return Encoding{}, fmt.Errorf("scr: %w", err)
		}
		enc := Encoding{Tag: "scr", Poly: poly}
		if m[3] != "" {
			seed, err := parseUintLiteral(m[3])
			if err != nil {
				return Encoding{}, fmt.Errorf("scr seed: %w", err)
			}
			enc.Seed, enc.HasSeed = seed, true
		}
		return enc, nil
	}
	if m := reChunk.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		return Encoding{Tag: "chunk", Count: n}, nil
	}
	if m := reRepeat.FindStringSubmatch(s); m != nil {
		k, _ := strconv.Atoi(m[1])
		return Encoding{Tag: "repeat", Count: k}, nil
	}
	if m := reAsm.FindStringSubmatch(s); m != nil {
		w, err := parseWord(m[1])
		if err != nil {
			return Encoding{}, err
		}
		return Encoding{Tag: "asm", Word: w}, nil
	}
	if m := rePostAsm.FindStringSubmatch(s); m != nil {
		w, err := parseWord(m[1])
		if err != nil {
			return Encoding{}, err
		}
		return Encoding{Tag: "post_asm", Word: w}, nil
	}
	return Encoding{Tag: "other", Other: s}, nil
}

func parseWord(s string) ([]byte, error) {
	if stripped, ok := strings.CutPrefix(s, "0x"); ok {
		if len(stripped)%2 == 1 {
			stripped = "0" + stripped
		}
		b := make([]byte, len(stripped)/2)
		for i := range b {
			v, err := strconv.ParseUint(stripped[2*i:2*i+2], 16, 8)
			if err != nil {
				return nil, err
			}
			b[i] = byte(v)
		}
		return b, nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return []byte{0}, nil
	}
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[7-i] = byte(n >> (8 * i))
	}
	i := 0
	for i < len(b)-1 && b[i] == 0 {
		i++
	}
	return b[i:], nil
}

// String renders the canonical textual form used on the wire and in CLI
// --encodings arguments.
func (e Encoding) String() string {
	switch e.Tag {
	case "h", "identity", "gzip", "deflate", "br", "lzma", "crc16", "crc32", "ax.25":
		return e.Tag
	case "rs":
		return fmt.Sprintf("rs(%d,%d)", e.N, e.K)
	case "rq":
		if e.DLenDynamic {
			if e.DLenPercent {
				return fmt.Sprintf("rq(dlen,%d,%d%%)", e.MTU, e.RepairCount)
			}
			return fmt.Sprintf("rq(dlen,%d,%d)", e.MTU, e.RepairCount)
		}
		return fmt.Sprintf("rq(%d,%d,%d)", e.DLen, e.MTU, e.RepairCount)
	case "lt":
		if e.DLenDynamic {
			return fmt.Sprintf("lt(dlen,%d,%d)", e.MTU, e.RepairCount)
		}
		return fmt.Sprintf("lt(%d,%d,%d)", e.DLen, e.MTU, e.RepairCount)
	case "conv":
		return fmt.Sprintf("conv(%d,%s)", e.N, e.Rate)
	case "golay":
		if e.N == 24 && e.K == 12 {
			return "golay"
		}
		return fmt.Sprintf("golay(%d,%d)", e.N, e.K)
	case "scr":
		if e.HasSeed {
			return fmt.Sprintf("scr(0x%x, 0x%x)", e.Poly, e.Seed)
		}
		return fmt.Sprintf("scr(0x%x)", e.Poly)
	case "asm":
		return fmt.Sprintf("asm(0x%s)", hexEncode(e.Word))
	case "post_asm":
		return fmt.Sprintf("post_asm(0x%s)", hexEncode(e.Word))
	case "chunk":
		return fmt.Sprintf("chunk(%d)", e.Count)
	case "repeat":
		return fmt.Sprintf("repeat(%d)", e.Count)
	default:
		return e.Other
	}
}

func hexEncode(b []byte) string {
	const digits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[2*i] = digits[c>>4]
		out[2*i+1] = digits[c&0xf]
	}
	return string(out)
}

// IsBoundary reports whether this entry is the "h" structural marker.
func (e Encoding) IsBoundary() bool { return e.Tag == "h" }

// IsChunking reports whether this entry splits/joins the stream rather
// than transforming it in place (chunk, h).
func (e Encoding) IsChunking() bool {
	return e.Tag == "chunk" || e.Tag == "h"
}

// IsMultiPDU reports whether this entry generates/consumes many symbol
// PDUs instead of transforming a single payload.
func (e Encoding) IsMultiPDU() bool { return e.Tag == "rq" || e.Tag == "lt" }

// EncodingList is an ordered sequence of Encoding, at most one of which
// may be a Boundary.
type EncodingList []Encoding

// ParseList parses a comma-separated encoding list, respecting
// parenthesized parameter lists (so "rs(255,223)" isn't split on its
// internal comma).
func ParseList(csv string) (EncodingList, error) {
	var out EncodingList
	depth := 0
	start := 0
	flush := func(end int) error {
		tok := strings.TrimSpace(csv[start:end])
		if tok == "" {
			return nil
		}
		enc, err := ParseEncoding(tok)
		if err != nil {
			return err
		}
		out = append(out, enc)
		return nil
	}
	for i, r := range csv {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				if err := flush(i); err != nil {
					return nil, err
				}
				start = i + 1
			}
		}
	}
	if err := flush(len(csv)); err != nil {
		return nil, err
	}
	if n := boundaryCount(out); n > 1 {
		return nil, fmt.Errorf("codec: invalid encoding list: %d boundary markers", n)
	}
	return out, nil
}

func boundaryCount(list EncodingList) int {
	n := 0
	for _, e := range list {
		if e.IsBoundary() {
			n++
		}
	}
	return n
}

// String renders the list back to its canonical CSV form.
func (l EncodingList) String() string {
	parts := make([]string, len(l))
	for i, e := range l {
		parts[i] = e.String()
	}
	return strings.Join(parts, ",")
}

// Split partitions the list around its Boundary marker into pre-boundary
// (content-level) and post-boundary (PDU-level) sub-stacks. If no
// boundary is present, the entire list is treated as post-boundary (per
// spec.md §4.2) and pre is empty.
func (l EncodingList) Split() (pre, post EncodingList, hasBoundary bool) {
	for i, e := range l {
		if e.IsBoundary() {
			return l[:i], l[i+1:], true
		}
	}
	return nil, l, false
}

// WithoutStructural drops the boundary and chunk markers, leaving only the
// encodings that still need to be applied as data transforms. Repeat is
// NOT structural in HQFBP (it is a per-PDU byte-level transform per
// spec.md §4.1), so only "h" and "chunk" are dropped here.
func (l EncodingList) WithoutStructural() EncodingList {
	out := make(EncodingList, 0, len(l))
	for _, e := range l {
		if e.Tag == "h" || e.Tag == "chunk" {
			continue
		}
		out = append(out, e)
	}
	return out
}

// ResolveDynamic substitutes the DynamicToken ("dlen") placeholder in any
// rq/lt entry with the actual resolved content length, returning a new
// list with Literal values only (spec.md §4.2, §9 "Dynamic parameter").
func (l EncodingList) ResolveDynamic(contentLen int) EncodingList {
	out := make(EncodingList, len(l))
	for i, e := range l {
		if (e.Tag == "rq" || e.Tag == "lt") && e.DLenDynamic {
			e.DLen = contentLen
			e.DLenDynamic = false
			if e.DLenPercent {
				e.RepairCount = (contentLen/e.MTU + 1) * e.RepairCount / 100
				e.DLenPercent = false
			}
		}
		out[i] = e
	}
	return out
}
