package deframer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/loic-fejoz/hqfbp/pkg/codec"
	"github.com/loic-fejoz/hqfbp/pkg/header"
	"github.com/loic-fejoz/hqfbp/pkg/pdu"
)

func nextEvent(t *testing.T, d *Deframer) Event {
	t.Helper()
	e, ok := d.NextEvent()
	require.True(t, ok, "expected a pending event")
	return e
}

func TestRoundTripSinglePDUNoChunking(t *testing.T) {
	enc, err := codec.ParseList("crc32")
	require.NoError(t, err)

	g := pdu.NewGenerator("F4ABC", "F4XYZ", enc, 0, 1)
	data := []byte("hello hqfbp deframer")
	pdus, err := g.Generate(data, header.MediaType{Type: "text/plain"}, true)
	require.NoError(t, err)
	require.Len(t, pdus, 1)

	d := NewDeframer(0)
	d.ReceiveBytes(pdus[0])

	ev := nextEvent(t, d)
	msg, ok := ev.(MessageReceived)
	require.True(t, ok)
	require.Equal(t, data, msg.Payload)
}

func TestRoundTripChunkedMessage(t *testing.T) {
	enc, err := codec.ParseList("crc32")
	require.NoError(t, err)

	g := pdu.NewGenerator("F4ABC", "", enc, 8, 50)
	data := make([]byte, 20)
	for i := range data {
		data[i] = byte(i + 1)
	}
	pdus, err := g.Generate(data, header.MediaType{}, false)
	require.NoError(t, err)
	require.Len(t, pdus, 3)

	d := NewDeframer(0)
	for _, raw := range pdus {
		d.ReceiveBytes(raw)
	}

	ev := nextEvent(t, d)
	msg, ok := ev.(MessageReceived)
	require.True(t, ok)
	require.Equal(t, data, msg.Payload)
}

func TestQualityArbitrationKeepsBetterDuplicate(t *testing.T) {
	enc, err := codec.ParseList("crc32")
	require.NoError(t, err)

	g := pdu.NewGenerator("F4ABC", "", enc, 0, 7)
	data := []byte("arbitration test payload")
	pdus, err := g.Generate(data, header.MediaType{}, false)
	require.NoError(t, err)
	require.Len(t, pdus, 1)

	d := NewDeframer(0)
	// Deliver the same chunk twice; both are valid so both decode with
	// equal quality. The first delivery already completes this
	// single-chunk session, so the first event must carry the payload
	// whatever the duplicate does afterwards.
	d.ReceiveBytes(pdus[0])
	d.ReceiveBytes(pdus[0])

	ev := nextEvent(t, d)
	msg, ok := ev.(MessageReceived)
	require.True(t, ok)
	require.Equal(t, data, msg.Payload)
}

// TestTiedQualityCandidateKeepsFirstSeen exercises the ">" comparison at
// the chunk-candidate arbitration site directly: two candidates for chunk
// 0 of the same session both decode with equal quality (crc32 always
// reports quality 0 on success) but carry different payload bytes, so the
// tie-break must keep whichever arrived first (spec.md line 38), unlike
// TestQualityArbitrationKeepsBetterDuplicate above whose duplicates are
// byte-identical and so can't distinguish ">=" from ">".
func TestTiedQualityCandidateKeepsFirstSeen(t *testing.T) {
	enc, err := codec.ParseList("h,crc32")
	require.NoError(t, err)

	g := pdu.NewGenerator("F4ABC", "", enc, 8, 50)
	data := make([]byte, 20)
	for i := range data {
		data[i] = byte(i + 1)
	}
	pdus, err := g.Generate(data, header.MediaType{}, false)
	require.NoError(t, err)
	require.Len(t, pdus, 3)

	reg := codec.NewRegistry()
	crcCodec, err := reg.Build(codec.Encoding{Tag: "crc32"})
	require.NoError(t, err)

	wireOne, _, err := crcCodec.Decode(pdus[0])
	require.NoError(t, err)
	h, realPayload, err := header.Unpack(wireOne)
	require.NoError(t, err)

	forgedPayload := make([]byte, len(realPayload))
	for i := range forgedPayload {
		forgedPayload[i] = 0xFF
	}
	forgedWire, err := header.Pack(h, forgedPayload)
	require.NoError(t, err)
	forged, err := crcCodec.Encode(forgedWire)
	require.NoError(t, err)

	d := NewDeframer(0)
	d.ReceiveBytes(pdus[0])
	d.ReceiveBytes(forged)
	d.ReceiveBytes(pdus[1])
	d.ReceiveBytes(pdus[2])

	ev := nextEvent(t, d)
	msg, ok := ev.(MessageReceived)
	require.True(t, ok)
	require.Equal(t, data, msg.Payload)
}

func TestAnnouncementPrecedesMessage(t *testing.T) {
	contentEnc, err := codec.ParseList("gzip,h,rs(120,100),repeat(2)")
	require.NoError(t, err)
	annEnc, err := codec.ParseList("h,crc32,repeat(10)")
	require.NoError(t, err)

	g := pdu.NewGenerator("F4ABC", "F4XYZ", contentEnc, 0, 20)
	g.WithAnnouncement(annEnc)

	data := []byte("announced payload body")
	pdus, err := g.Generate(data, header.MediaType{Type: "application/octet-stream"}, true)
	require.NoError(t, err)
	require.True(t, len(pdus) >= 2)

	d := NewDeframer(0)
	for _, raw := range pdus {
		d.ReceiveBytes(raw)
	}

	first := nextEvent(t, d)
	_, isAnnouncement := first.(AnnouncementReceived)
	require.True(t, isAnnouncement, "announcement must be reported before the message it describes")

	var sawMessage bool
	for {
		ev, ok := d.NextEvent()
		if !ok {
			break
		}
		if msg, ok := ev.(MessageReceived); ok {
			sawMessage = true
			require.Equal(t, data, msg.Payload)
		}
	}
	require.True(t, sawMessage)
}

// TestTrivialBoundaryOnlyRoundTrip is spec.md §8.3 scenario 1: "hi" through
// E = [h] alone is one PDU that unpacks back to "hi".
func TestTrivialBoundaryOnlyRoundTrip(t *testing.T) {
	enc, err := codec.ParseList("h")
	require.NoError(t, err)

	g := pdu.NewGenerator("TEST", "", enc, 0, 1)
	data := []byte("hi")
	pdus, err := g.Generate(data, header.MediaType{}, false)
	require.NoError(t, err)
	require.Len(t, pdus, 1)

	d := NewDeframer(0)
	d.ReceiveBytes(pdus[0])

	ev := nextEvent(t, d)
	msg, ok := ev.(MessageReceived)
	require.True(t, ok)
	require.Equal(t, data, msg.Payload)
}

// TestChunkedMessageFailsOnDroppedPDUThenRecovers is spec.md §8.3 scenario
// 4: E = [gzip,h,rs(255,223)] has no redundancy across PDUs, so dropping
// any one non-terminal PDU must leave the session incomplete; delivering
// it afterwards must let the session complete normally.
func TestChunkedMessageFailsOnDroppedPDUThenRecovers(t *testing.T) {
	enc, err := codec.ParseList("gzip,h,rs(255,223)")
	require.NoError(t, err)

	data := make([]byte, 10240)
	for i := range data {
		data[i] = byte(i * 7)
	}

	g := pdu.NewGenerator("F4ABC", "", enc, 200, 9)
	pdus, err := g.Generate(data, header.MediaType{}, false)
	require.NoError(t, err)
	require.True(t, len(pdus) > 1)

	d := NewDeframer(time.Hour)
	dropped := pdus[1]
	for i, raw := range pdus {
		if i == 1 {
			continue
		}
		d.ReceiveBytes(raw)
	}

	_, ok := d.NextEvent()
	require.False(t, ok, "session must not complete with a missing non-terminal PDU")

	d.ReceiveBytes(dropped)

	ev := nextEvent(t, d)
	msg, ok := ev.(MessageReceived)
	require.True(t, ok)
	require.Equal(t, data, msg.Payload)
}

// TestRaptorQFullStackRecoversFromTwentyPercentLoss is spec.md §8.3
// scenario 5 exercised through the full Generator/Deframer stack rather
// than the codec in isolation: a 122,880-byte message through
// E = [rq(dlen,1024,240), h, rs(255,223)] must still reassemble after 20%
// of its symbol PDUs are dropped.
func TestRaptorQFullStackRecoversFromTwentyPercentLoss(t *testing.T) {
	enc, err := codec.ParseList("rq(dlen,1024,240),h,rs(255,223)")
	require.NoError(t, err)

	data := make([]byte, 122880)
	for i := range data {
		data[i] = byte(i)
	}

	g := pdu.NewGenerator("F4ABC", "", enc, 0, 42)
	pdus, err := g.Generate(data, header.MediaType{}, false)
	require.NoError(t, err)

	d := NewDeframer(0)
	drop := len(pdus) / 5
	for i, raw := range pdus {
		if i < drop {
			continue
		}
		d.ReceiveBytes(raw)
	}

	ev := nextEvent(t, d)
	msg, ok := ev.(MessageReceived)
	require.True(t, ok)
	require.Equal(t, data, msg.Payload)
}

func TestTickEmitsSessionTimedOut(t *testing.T) {
	enc, err := codec.ParseList("crc32")
	require.NoError(t, err)

	g := pdu.NewGenerator("F4ABC", "", enc, 4, 77)
	data := make([]byte, 12)
	pdus, err := g.Generate(data, header.MediaType{}, false)
	require.NoError(t, err)
	require.True(t, len(pdus) > 1)

	d := NewDeframer(time.Second)
	d.now = time.Unix(0, 0)
	// Only deliver the first chunk: the session never completes.
	d.ReceiveBytes(pdus[0])

	swept := d.Tick(time.Unix(0, 0).Add(2 * time.Second))
	require.Equal(t, 1, swept)

	ev := nextEvent(t, d)
	timedOut, ok := ev.(SessionTimedOut)
	require.True(t, ok)
	require.Equal(t, 1, timedOut.ReceivedChunks)
}
