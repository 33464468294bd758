// Package pdu implements the PDUGenerator: turning one message into an
// ordered list of wire-ready PDUs by applying pre-boundary codecs to the
// whole message, splitting into chunks, and applying post-boundary codecs
// (or fountain-code symbol generation) to each chunk, per spec.md §4.4.
package pdu

import (
	"fmt"

	"github.com/loic-fejoz/hqfbp/pkg/codec"
	"github.com/loic-fejoz/hqfbp/pkg/header"
)

// ErrInvalidEncodingList flags an encoding list that cannot be turned into
// a working codec pipeline at generator construction/generate time (spec.md
// §4.4 "Error conditions").
var ErrInvalidEncodingList = fmt.Errorf("pdu: invalid encoding list")

// Generator builds PDUs for one src/dst callsign pair and one encoding
// stack. Message-Ids are assigned monotonically across calls to Generate,
// matching the reference's next_msg_id counter.
type Generator struct {
	SrcCallsign    string
	DstCallsign    string
	MaxPayloadSize int
	Encodings      codec.EncodingList

	// Announcement, if set, is a nested Generator whose encoding stack
	// produces the announcement PDU(s) prepended ahead of every message
	// this Generator packs (spec.md §4.3 "Announcement PDUs").
	Announcement *Generator

	registry  *codec.Registry
	nextMsgID uint64
}

// NewGenerator builds a Generator. startMsgID is the first Message-Id it
// will assign to a data message; every subsequent call to Generate (and any
// chunk/announcement it produces) consumes further ids from the same
// counter.
func NewGenerator(srcCallsign, dstCallsign string, encodings codec.EncodingList, maxPayloadSize int, startMsgID uint64) *Generator {
	return &Generator{
		SrcCallsign:    srcCallsign,
		DstCallsign:    dstCallsign,
		Encodings:      encodings,
		MaxPayloadSize: maxPayloadSize,
		registry:       codec.NewRegistry(),
		nextMsgID:      startMsgID,
	}
}

// WithAnnouncement attaches an announcement sub-generator using
// annEncodings as its (typically more robust) post-boundary stack, and
// returns g for chaining.
func (g *Generator) WithAnnouncement(annEncodings codec.EncodingList) *Generator {
	g.Announcement = &Generator{
		SrcCallsign: g.SrcCallsign,
		DstCallsign: g.DstCallsign,
		Encodings:   annEncodings,
		registry:    g.registry,
		nextMsgID:   g.nextMsgID,
	}
	return g
}

func (g *Generator) nextID() uint64 {
	id := g.nextMsgID
	g.nextMsgID++
	return id
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// resolveEncodings ensures exactly one boundary marker is present,
// appending one at the end when the caller's list has none, and injects a
// chunk(maxPayloadSize) marker immediately before the boundary when the
// pre-boundary stack has no explicit chunk marker of its own (spec.md
// §4.4 step 3).
func resolveEncodings(list codec.EncodingList, maxPayloadSize int) codec.EncodingList {
	pre, post, hasBoundary := list.Split()
	if !hasBoundary {
		pre = append(codec.EncodingList{}, list...)
		post = nil
	}
	hasChunk := false
	for _, e := range pre {
		if e.Tag == "chunk" {
			hasChunk = true
			break
		}
	}
	out := make(codec.EncodingList, 0, len(pre)+len(post)+2)
	out = append(out, pre...)
	if !hasChunk && maxPayloadSize > 0 {
		out = append(out, codec.Encoding{Tag: "chunk", Count: maxPayloadSize})
	}
	out = append(out, codec.Encoding{Tag: "h"})
	out = append(out, post...)
	return out
}

// contentLength computes the "post-pre-boundary message length" spec.md
// §4.2 substitutes into any `dlen` codec parameter: the length data would
// have after every pre-boundary, non-structural codec runs. A pre-boundary
// entry that is itself dynamic (or is a fountain codec, which doesn't
// produce a single further buffer to keep measuring) ends the probe at its
// input length, since that's the length `dlen` must resolve to.
func (g *Generator) contentLength(data []byte, pre codec.EncodingList) (int, error) {
	buf := data
	for _, e := range pre.WithoutStructural() {
		if (e.Tag == "rq" || e.Tag == "lt") && e.DLenDynamic {
			return len(buf), nil
		}
		c, err := g.registry.Build(e)
		if err != nil {
			return 0, fmt.Errorf("pdu: %w: %v", ErrInvalidEncodingList, err)
		}
		if _, ok := c.(codec.MultiPDU); ok {
			return len(buf), nil
		}
		out, err := c.Encode(buf)
		if err != nil {
			return 0, fmt.Errorf("pdu: content length probe %s: %w", e.String(), err)
		}
		buf = out
	}
	return len(buf), nil
}

// applyOne runs one Encoding's codec against buf. An ordinary per-PDU codec
// returns its single transformed buffer; a fountain (MultiPDU) codec
// instead generates several symbol payloads, each of which becomes its own
// chunk from this point on — mirroring the reference generator's early
// return for RaptorQ.
func (g *Generator) applyOne(e codec.Encoding, buf []byte) ([][]byte, error) {
	c, err := g.registry.Build(e)
	if err != nil {
		return nil, fmt.Errorf("pdu: build %s: %w", e.String(), err)
	}
	if mc, ok := c.(codec.MultiPDU); ok {
		syms, err := mc.GenerateSymbols(buf, e.RepairCount)
		if err != nil {
			return nil, fmt.Errorf("pdu: generate symbols %s: %w", e.String(), err)
		}
		out := make([][]byte, len(syms))
		for i, s := range syms {
			out[i] = s.Payload
		}
		return out, nil
	}
	encoded, err := c.Encode(buf)
	if err != nil {
		return nil, fmt.Errorf("pdu: encode %s: %w", e.String(), err)
	}
	return [][]byte{encoded}, nil
}

// Generate packs data into an ordered list of wire-ready PDUs (header bytes
// immediately followed by payload bytes, per pkg/header.Pack), per spec.md
// §4.4. If an announcement sub-generator is attached, its PDU(s) precede
// the data message's own.
func (g *Generator) Generate(data []byte, mediaType header.MediaType, hasMediaType bool) ([][]byte, error) {
	full := resolveEncodings(g.Encodings, g.MaxPayloadSize)
	pre, _, _ := full.Split()

	contentLen, err := g.contentLength(data, pre)
	if err != nil {
		return nil, err
	}
	full = full.ResolveDynamic(contentLen)

	fileSize := uint64(len(data))
	headerTemplate := header.Header{
		FileSize:    &fileSize,
		SrcCallsign: strPtr(g.SrcCallsign),
		DstCallsign: strPtr(g.DstCallsign),
	}
	if hasMediaType {
		headerTemplate.SetMediaType(mediaType)
	}

	hasAnn := g.Announcement != nil
	var annMsgID uint64
	if hasAnn {
		annMsgID = g.nextID()
	}
	dataOrigID := g.nextID()

	currentChunks := [][]byte{data}
	for _, e := range full {
		switch e.Tag {
		case "h":
			totalChunks := uint64(len(currentChunks))
			newChunks := make([][]byte, 0, len(currentChunks))
			for idx, chunkData := range currentChunks {
				h := headerTemplate
				var msgID uint64
				if idx == 0 {
					msgID = dataOrigID
				} else {
					msgID = g.nextID()
				}
				if totalChunks > 1 {
					chunkID := uint64(idx)
					h.TotalChunks = &totalChunks
					h.ChunkID = &chunkID
					h.OriginalMessageID = &dataOrigID
				}
				h.MessageID = &msgID
				if idx > 0 {
					h.ContentFormat = nil
					h.ContentType = nil
				}
				h.ContentEncoding = full

				pduBytes, err := header.Pack(h, chunkData)
				if err != nil {
					return nil, fmt.Errorf("pdu: pack chunk %d: %w", idx, err)
				}
				newChunks = append(newChunks, pduBytes)
			}
			currentChunks = newChunks

		case "chunk":
			var next [][]byte
			for _, chunk := range currentChunks {
				pos := 0
				for pos < len(chunk) {
					end := pos + e.Count
					if end > len(chunk) {
						end = len(chunk)
					}
					next = append(next, chunk[pos:end])
					pos = end
				}
			}
			currentChunks = next

		default:
			var next [][]byte
			for _, chunk := range currentChunks {
				out, err := g.applyOne(e, chunk)
				if err != nil {
					return nil, err
				}
				next = append(next, out...)
			}
			currentChunks = next
		}
	}

	var finalPDUs [][]byte
	if hasAnn {
		g.Announcement.nextMsgID = annMsgID
		annBody := header.Header{
			MessageID:       &dataOrigID,
			ContentEncoding: full,
		}
		if hasMediaType {
			annBody.SetMediaType(mediaType)
		}
		bodyBytes, err := annBody.Marshal()
		if err != nil {
			return nil, fmt.Errorf("pdu: marshal announcement body: %w", err)
		}
		annMediaType := header.MediaType{Type: header.AnnouncementMIME}
		annPDUs, err := g.Announcement.Generate(bodyBytes, annMediaType, true)
		if err != nil {
			return nil, fmt.Errorf("pdu: generate announcement: %w", err)
		}
		finalPDUs = append(finalPDUs, annPDUs...)
	}
	finalPDUs = append(finalPDUs, currentChunks...)
	return finalPDUs, nil
}
