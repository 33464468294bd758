// Package deframer implements the reassembly state machine: ingesting
// candidate PDU byte buffers, peeling post-boundary codecs (learning the
// stack from the PDU's own header or from a previously-received
// announcement), arbitrating chunk candidates by quality, and emitting
// AnnouncementReceived/MessageReceived/SessionTimedOut events once a
// session completes or times out (spec.md §4.5, §4.6).
package deframer

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/loic-fejoz/hqfbp/pkg/codec"
	"github.com/loic-fejoz/hqfbp/pkg/header"
)

// maxRecurseDepth bounds nested-PDU unpacking (spec.md §9 "Recursive
// unpacking... bounded depth (e.g., 8)") so adversarial or malformed input
// cannot make a single ReceiveBytes call recurse unboundedly.
const maxRecurseDepth = 8

// SessionKey identifies one in-flight reassembly: the originating callsign
// (empty string if the PDU carried none) and the message id every chunk of
// that message shares (Original-Message-Id, or Message-Id for an
// unchunked message).
type SessionKey struct {
	SrcCallsign string
	MessageID   uint64
}

// AnnouncementReceived is emitted when an announcement PDU is ingested; its
// declared encoding list is also recorded internally to help decode the
// data PDUs it precedes.
type AnnouncementReceived struct {
	Header  header.Header
	Payload []byte
}

// MessageReceived is emitted once a session completes: every chunk
// arrived (block mode) or enough fountain symbols arrived to decode
// (fountain mode), pre-boundary codecs have been undone, and the header
// fields accumulated across every chunk have been merged.
type MessageReceived struct {
	Header  header.Header
	Payload []byte
	Quality codec.Quality
}

// SessionTimedOut is emitted when a session is swept by Tick without
// having completed.
type SessionTimedOut struct {
	Key            SessionKey
	PartialHeader  header.Header
	ReceivedChunks int
}

// Event is implemented by AnnouncementReceived, MessageReceived and
// SessionTimedOut; NextEvent returns one wrapped in this interface.
type Event interface{ isEvent() }

func (AnnouncementReceived) isEvent() {}
func (MessageReceived) isEvent()      {}
func (SessionTimedOut) isEvent()      {}

type chunkCandidate struct {
	payload []byte
	quality int
}

// headerCandidate pairs a chunk's header with the quality it was ingested
// at, so mergeHeaders can resolve field conflicts in favor of the
// higher-quality chunk (spec.md line 115) instead of first-wins/error.
type headerCandidate struct {
	header  header.Header
	quality int
}

type session struct {
	chunks      map[uint64]chunkCandidate
	headers     []headerCandidate
	totalChunks uint64
	lastSeen    time.Time
}

// Deframer is single-threaded and cooperative: ReceiveBytes and NextEvent
// never block, and Tick is the only time-driven operation (spec.md §5).
// It owns its state exclusively; running several in parallel (one per
// stream) requires no locking between them.
type Deframer struct {
	registry       *codec.Registry
	sessionTimeout time.Duration

	sessions      map[SessionKey]*session
	announcements map[SessionKey]codec.EncodingList
	notYetDecoded [][]byte
	events        []Event
	now           time.Time
}

// NewDeframer builds a Deframer. sessionTimeout <= 0 disables Tick sweeps.
func NewDeframer(sessionTimeout time.Duration) *Deframer {
	return &Deframer{
		registry:       codec.NewRegistry(),
		sessionTimeout: sessionTimeout,
		sessions:       make(map[SessionKey]*session),
		announcements:  make(map[SessionKey]codec.EncodingList),
		now:            time.Now(),
	}
}

func (d *Deframer) emit(e Event) { d.events = append(d.events, e) }

// NextEvent pops the oldest pending event, or returns (nil, false) if none
// is queued.
func (d *Deframer) NextEvent() (Event, bool) {
	if len(d.events) == 0 {
		return nil, false
	}
	e := d.events[0]
	d.events = d.events[1:]
	return e, true
}

// postStackOf returns the post-boundary sub-stack of list: everything
// after "h", or the whole list when it carries no boundary marker at all
// (spec.md §4.2: "When no boundary is present, the entire stack is
// post-boundary").
func postStackOf(list codec.EncodingList) codec.EncodingList {
	_, post, _ := list.Split()
	return post
}

// decodeStack applies stack's non-structural entries to data in reverse
// order, accumulating quality (spec.md §4.5 step 2/5: "iterate those
// codecs in reverse order calling decode, accumulating quality"). A
// fountain (MultiPDU) entry can't be decoded from a single buffer this way
// — its reassembly goes through the session's chunk pool instead — so one
// appearing here is an error.
func decodeStack(reg *codec.Registry, data []byte, stack codec.EncodingList) ([]byte, int, error) {
	buf := data
	quality := 0
	list := stack.WithoutStructural()
	for i := len(list) - 1; i >= 0; i-- {
		e := list[i]
		c, err := reg.Build(e)
		if err != nil {
			return nil, 0, err
		}
		if _, ok := c.(codec.MultiPDU); ok {
			return nil, 0, &codec.Error{Tag: e.Tag, Err: codec.ErrFailed}
		}
		out, q, err := c.Decode(buf)
		if err != nil {
			return nil, 0, err
		}
		buf = out
		quality += int(q)
	}
	return buf, quality, nil
}

// fountainInfo reports the first rq/lt entry found in any of headers'
// pre-boundary stack, if any — a session is in fountain mode as soon as
// one header declares one.
func fountainInfo(headers []headerCandidate) (codec.Encoding, bool) {
	for _, hc := range headers {
		pre, _, _ := hc.header.ContentEncoding.Split()
		for _, e := range pre {
			if e.IsMultiPDU() {
				return e, true
			}
		}
	}
	return codec.Encoding{}, false
}

// tryUnpack attempts to recover (header, payload) from data: first a
// direct parse (data may already be a bare header+payload, or one whose
// post-boundary codecs don't disturb the leading CBOR header bytes), then
// peeling hint's post-boundary stack when a direct parse fails or itself
// declares further post-boundary codecs to peel. Recursion supports nested
// FEC (spec.md §4.5 step 2), bounded by maxRecurseDepth.
func (d *Deframer) tryUnpack(data []byte, hint codec.EncodingList, depth int) (header.Header, []byte, int, bool) {
	if depth > maxRecurseDepth {
		return header.Header{}, nil, 0, false
	}

	if peeked, _, err := header.Unpack(data); err == nil {
		post := postStackOf(peeked.ContentEncoding)
		if len(post.WithoutStructural()) == 0 {
			h, payload, _ := header.Unpack(data)
			return h, payload, 0, true
		}
		if decoded, q, derr := decodeStack(d.registry, data, post); derr == nil {
			if h2, p2, q2, ok := d.tryUnpack(decoded, nil, depth+1); ok {
				return h2, p2, q + q2, true
			}
		}
		h, payload, _ := header.Unpack(data)
		return h, payload, 0, true
	}

	if len(hint) == 0 {
		return header.Header{}, nil, 0, false
	}
	post := postStackOf(hint)
	decoded, q, derr := decodeStack(d.registry, data, post)
	if derr != nil {
		return header.Header{}, nil, 0, false
	}
	h2, p2, q2, ok := d.tryUnpack(decoded, nil, depth+1)
	if !ok {
		return header.Header{}, nil, 0, false
	}
	return h2, p2, q + q2, true
}

// ReceiveBytes ingests one candidate PDU buffer (already KISS-deframed).
// A buffer that cannot be unpacked yet is queued without logging and
// retried after a later announcement arrives or another buffer decodes
// through one; it never blocks and never returns an error (spec.md
// §4.5/§7: "the Deframer never aborts on per-PDU errors").
func (d *Deframer) ReceiveBytes(data []byte) {
	raw := append([]byte(nil), data...)

	if h, payload, quality, ok := d.tryUnpack(raw, nil, 0); ok {
		d.ingest(h, payload, quality)
		return
	}
	for _, hint := range d.announcements {
		if h, payload, quality, ok := d.tryUnpack(raw, hint, 0); ok {
			d.ingest(h, payload, quality)
			d.retryPending()
			return
		}
	}
	d.notYetDecoded = append(d.notYetDecoded, raw)
}

// retryPending re-attempts every buffer that previously failed to unpack,
// now that a new announcement may make one of them decodable.
func (d *Deframer) retryPending() {
	pending := d.notYetDecoded
	d.notYetDecoded = nil
	for _, raw := range pending {
		d.ReceiveBytes(raw)
	}
}

func (d *Deframer) handleAnnouncement(outer header.Header, payload []byte) {
	inner, err := header.Unmarshal(payload)
	if err != nil || inner.MessageID == nil || len(inner.ContentEncoding) == 0 {
		zap.L().Warn("deframer: malformed announcement body, discarding")
		return
	}
	src := ""
	if outer.SrcCallsign != nil {
		src = *outer.SrcCallsign
	}
	d.announcements[SessionKey{SrcCallsign: src, MessageID: *inner.MessageID}] = inner.ContentEncoding
}

func (d *Deframer) ingest(h header.Header, payload []byte, quality int) {
	if mt, ok := h.MediaType(); ok && mt.MIME() == header.AnnouncementMIME {
		d.handleAnnouncement(h, payload)
		d.emit(AnnouncementReceived{Header: h, Payload: payload})
		d.retryPending()
		return
	}

	msgID := h.OriginalMessageID
	if msgID == nil {
		msgID = h.MessageID
	}
	if msgID == nil {
		zap.L().Warn("deframer: PDU carries no Message-Id, discarding")
		return
	}
	src := ""
	if h.SrcCallsign != nil {
		src = *h.SrcCallsign
	}
	key := SessionKey{SrcCallsign: src, MessageID: *msgID}

	chunkID := uint64(0)
	if h.ChunkID != nil {
		chunkID = *h.ChunkID
	}

	sess, exists := d.sessions[key]
	if !exists {
		sess = &session{chunks: make(map[uint64]chunkCandidate), totalChunks: 1}
		d.sessions[key] = sess
	}
	sess.lastSeen = d.now
	if h.TotalChunks != nil {
		sess.totalChunks = *h.TotalChunks
	}
	if existing, ok := sess.chunks[chunkID]; !ok || quality > existing.quality {
		sess.chunks[chunkID] = chunkCandidate{payload: payload, quality: quality}
	}
	sess.headers = append(sess.headers, headerCandidate{header: h, quality: quality})

	if d.sessionComplete(sess) {
		d.completeMessage(key, sess)
	}
}

func (d *Deframer) sessionComplete(sess *session) bool {
	if fountain, ok := fountainInfo(sess.headers); ok {
		_, _, decOk := d.decodeFountain(fountain, sess)
		return decOk
	}
	return uint64(len(sess.chunks)) >= sess.totalChunks
}

func (d *Deframer) decodeFountain(enc codec.Encoding, sess *session) ([]byte, codec.Quality, bool) {
	c, err := d.registry.Build(enc)
	if err != nil {
		return nil, 0, false
	}
	mc, ok := c.(codec.MultiPDU)
	if !ok {
		return nil, 0, false
	}
	acc := mc.NewAccumulator()
	for esi, cand := range sess.chunks {
		acc.Feed(codec.Symbol{ESI: uint32(esi), Payload: cand.payload})
	}
	return acc.TryDecode()
}

// mergeHeaders folds every chunk's header into one, resolving field
// conflicts in favor of whichever chunk carried the higher quality
// (spec.md line 115).
func mergeHeaders(headers []headerCandidate) header.Header {
	merged := headers[0].header
	mergedQuality := headers[0].quality
	for _, hc := range headers[1:] {
		merged.Merge(hc.header, mergedQuality, hc.quality)
		if hc.quality > mergedQuality {
			mergedQuality = hc.quality
		}
	}
	return merged
}

func (d *Deframer) completeMessage(key SessionKey, sess *session) {
	delete(d.sessions, key)

	merged := mergeHeaders(sess.headers)
	merged.StripChunking()
	msgID := key.MessageID
	merged.MessageID = &msgID

	var data []byte
	var aggQuality codec.Quality

	pre, _, _ := merged.ContentEncoding.Split()
	if fountain, ok := fountainInfo(sess.headers); ok {
		decoded, q, decOk := d.decodeFountain(fountain, sess)
		if !decOk {
			zap.L().Warn("deframer: fountain decode failed at completion despite threshold", zap.Int("chunks", len(sess.chunks)))
			return
		}
		data = decoded
		aggQuality = q
		pre = withoutEncoding(pre, fountain)
	} else {
		keys := make([]uint64, 0, len(sess.chunks))
		for k := range sess.chunks {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
		for _, k := range keys {
			cand := sess.chunks[k]
			data = append(data, cand.payload...)
			aggQuality += codec.Quality(cand.quality)
		}
	}

	decoded, q, err := decodeStack(d.registry, data, pre)
	if err != nil {
		zap.L().Warn("deframer: pre-boundary reassembly failed", zap.Error(err))
		d.emit(SessionTimedOut{Key: key, PartialHeader: merged, ReceivedChunks: len(sess.chunks)})
		return
	}
	data = decoded
	aggQuality += codec.Quality(q)

	if merged.FileSize != nil && uint64(len(data)) > *merged.FileSize {
		data = data[:*merged.FileSize]
	}

	d.emit(MessageReceived{Header: merged, Payload: data, Quality: aggQuality})
}

func withoutEncoding(list codec.EncodingList, drop codec.Encoding) codec.EncodingList {
	out := make(codec.EncodingList, 0, len(list))
	for _, e := range list {
		if e.String() == drop.String() {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Tick sweeps sessions that have been idle past sessionTimeout, emitting
// SessionTimedOut for each and returning how many were swept (spec.md §5
// "Cancellation/timeouts": "checked... on an explicit tick(now) call").
func (d *Deframer) Tick(now time.Time) int {
	d.now = now
	if d.sessionTimeout <= 0 {
		return 0
	}
	swept := 0
	for key, sess := range d.sessions {
		if now.Sub(sess.lastSeen) < d.sessionTimeout {
			continue
		}
		delete(d.sessions, key)
		partial := header.Header{}
		if len(sess.headers) > 0 {
			partial = mergeHeaders(sess.headers)
		}
		d.emit(SessionTimedOut{Key: key, PartialHeader: partial, ReceivedChunks: len(sess.chunks)})
		swept++
	}
	return swept
}
