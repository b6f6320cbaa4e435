package amqp010

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func newTestConn(t *testing.T, d Dialect, opts ...ConnOption) *Conn {
	t.Helper()
	c, err := NewConn(opts...)
	require.NoError(t, err)
	c.dialect = d
	return c
}

func TestDialectDetection(t *testing.T) {
	tests := []struct {
		label string
		buf   []byte
		want  Dialect
		kind  FrameKind
	}{
		{"0-9 protocol header", protocolHeader(0, 9), Dialect09, FrameProtocolHeader},
		{"0-9-1 protocol header", []byte{'A', 'M', 'Q', 'P', 0, 0, 9, 1}, Dialect09, FrameProtocolHeader},
		{"0-10 protocol header", protocolHeader(0, 10), Dialect010, FrameProtocolHeader},
		{"0-9 frame without header", frame09(legacyMethod, 1, cat(u16(10), u16(40))), Dialect09, FrameMethod09},
		{"0-10 frame without header", control(classConnection, 0x0c, 0), Dialect010, FrameControl},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			c := newTestConn(t, DialectUnknown)

			frames, err := c.Decode(tt.buf)
			require.NoError(t, err)
			require.Len(t, frames, 1)

			assert.Equal(t, tt.want, c.Dialect())
			assert.Equal(t, tt.want, frames[0].Dialect)
			assert.Equal(t, tt.kind, frames[0].Kind)
			assert.NotNil(t, frames[0].Tree)
		})
	}
}

func TestProtocolHeaderSummary(t *testing.T) {
	c := newTestConn(t, DialectUnknown)
	fr := c.DecodeFrame(protocolHeader(0, 10), 0, protoHeaderSize)
	require.NoError(t, fr.Err)
	assert.Equal(t, "protocol-header 0-10", fr.Summary)
	assert.Equal(t, "AMQP", fr.Tree.Child("protocol").Value.Str)
	assert.Equal(t, uint64(10), fr.Tree.Child("minor").Value.Uint)
}

func TestProtocolHeaderUnsupported(t *testing.T) {
	c := newTestConn(t, Dialect010)
	fr := c.DecodeFrame(protocolHeader(1, 0), 0, protoHeaderSize)
	require.NoError(t, fr.Err)

	assert.Equal(t, Dialect010, c.Dialect(), "state unchanged")
	assert.Equal(t, "protocol-header 1-0", fr.Summary)
	require.Len(t, fr.Diagnostics, 1)
	assert.Equal(t, ProtocolWarning, fr.Diagnostics[0].Kind)
}

func TestRenegotiation(t *testing.T) {
	stream := cat(
		protocolHeader(0, 9),
		frame09(legacyHeartbeat, 0, nil),
		protocolHeader(0, 10),
		control(classConnection, 0x0a, 0),
	)

	c := newTestConn(t, DialectUnknown)
	frames, err := c.Decode(stream)
	require.NoError(t, err)
	require.Len(t, frames, 4)

	var got []string
	for _, fr := range frames {
		got = append(got, fr.Dialect.String()+" "+fr.Summary)
	}
	assert.Equal(t, []string{
		"0-9 protocol-header 0-9",
		"0-9 0-9 heartbeat",
		"0-10 protocol-header 0-10",
		"0-10 connection.heartbeat",
	}, got)
}

func TestFrameLength(t *testing.T) {
	tests := []struct {
		label   string
		dialect Dialect
		buf     []byte
		want    int
		kind    ErrorKind
	}{
		{"protocol header", Dialect010, protocolHeader(0, 10), 8, KindNone},
		{"0-10 frame", Dialect010, control(classConnection, 0x0c, 0), 16, KindNone},
		{"0-10 below minimum", Dialect010, make([]byte, 7), 0, TooShort},
		{"0-10 size below header", Dialect010, []byte{0x0f, 0, 0, 11, 0, 0, 0, 0}, 0, TooShort},
		{"0-9 frame", Dialect09, frame09(legacyBody, 1, []byte("abc")), 11, KindNone},
		{"0-9 below minimum", Dialect09, make([]byte, 6), 0, TooShort},
		{"0-9 clamped", Dialect09, cat(u8(legacyBody), u16(1), u32(2<<20)), 1<<20 + 8, KindNone},
		{"empty", Dialect010, nil, 0, TooShort},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			c := newTestConn(t, tt.dialect)
			n, err := c.FrameLength(tt.buf, 0)
			assert.Equal(t, tt.kind, ErrorKindOf(err))
			assert.Equal(t, tt.want, n)
		})
	}
}

func TestDeclaredLengthExceedsBuffer(t *testing.T) {
	// declared 13 bytes, 10 present
	buf := []byte{0x0f, segmentBody, 0, 13, 0, 0, 0, 0, 0, 0}

	c := newTestConn(t, DialectUnknown)
	fr := c.DecodeFrame(buf, 0, 13)
	assert.Equal(t, BoundsExceeded, ErrorKindOf(fr.Err))

	frames, err := newTestConn(t, DialectUnknown).Decode(buf)
	require.Len(t, frames, 1)
	errs := multierr.Errors(err)
	require.Len(t, errs, 1)
	assert.Equal(t, BoundsExceeded, ErrorKindOf(errs[0]))
}

func validFrames() map[string][]byte {
	return map[string][]byte{
		"exchange.declare": command(classExchange, 0x01, 0x7f,
			str8("amq.topic"), str8("topic"), str8("alt"),
			encodeMap(entry{"k", typeCodeStr16, str16("v")}),
		),
		"header": frame010(segmentHeader,
			encodeStruct32(classMessage, 0x01, 1<<3|1<<9, u8(9), str8("rk")),
			encodeStruct32(classMessage, 0x03, 1<<4, str8("text/plain")),
		),
		"body": frame010(segmentBody, []byte("hello")),
	}
}

func TestTruncatedFrames(t *testing.T) {
	for label, full := range validFrames() {
		t.Run(label, func(t *testing.T) {
			for i := 0; i < len(full); i++ {
				c := newTestConn(t, Dialect010)
				fr := c.DecodeFrame(full[:i], 0, len(full))
				assert.Equal(t, BoundsExceeded, ErrorKindOf(fr.Err), "truncated at %d", i)
			}

			c := newTestConn(t, Dialect010)
			fr := c.DecodeFrame(full, 0, len(full))
			assert.NoError(t, fr.Err)
		})
	}
}

func TestDeclaredLengthBoundsReads(t *testing.T) {
	full := validFrames()["exchange.declare"]
	buf := cat(full, []byte{0xff, 0xff, 0xff, 0xff})

	c := newTestConn(t, Dialect010)
	fr := c.DecodeFrame(buf, 0, len(full)-1)
	assert.Equal(t, BoundsExceeded, ErrorKindOf(fr.Err))
	fr.Tree.Walk(func(_ int, n *Node) {
		assert.True(t, n.Offset+n.Length <= len(full), "%s [%d:%d]", n.Name, n.Offset, n.Offset+n.Length)
	})
}

func TestResyncAfterMalformedFrame(t *testing.T) {
	good := control(classConnection, 0x07, 0x01, str8("/"))
	bad := control(classConnection, 0x07, 0x01, u8(50), []byte("ab"))
	stream := cat(good, bad, good)

	c := newTestConn(t, Dialect010)
	frames, err := c.Decode(stream)
	require.Len(t, frames, 3)

	assert.NoError(t, frames[0].Err)
	assert.Equal(t, BoundsExceeded, ErrorKindOf(frames[1].Err))
	assert.NoError(t, frames[2].Err)
	assert.Equal(t, "/", frames[2].Tree.Path("arguments", "virtual-host").Value.Str)
	assert.Equal(t, len(good)+len(bad), frames[2].Offset)

	assert.Len(t, multierr.Errors(err), 1)
}

func TestStreamStopsWithoutFrameLength(t *testing.T) {
	good := control(classConnection, 0x0c, 0)
	stream := cat(good, []byte{0x0f, 0, 0})

	c := newTestConn(t, Dialect010)
	frames, err := c.Decode(stream)
	assert.Len(t, frames, 1)
	errs := multierr.Errors(err)
	require.Len(t, errs, 1)
	assert.Equal(t, TooShort, ErrorKindOf(errs[0]))
}

func TestHeaderSegment(t *testing.T) {
	replyTo := sized16(packFlags(0x03), str8("amq.direct"), str8("reply"))
	buf := frame010(segmentHeader,
		encodeStruct32(classMessage, 0x01, 1<<2|1<<3|1<<9, u8(9), str8("rk")),
		encodeStruct32(classMessage, 0x03, 1<<3|1<<4, replyTo, str8("text/plain")),
	)

	fr := decode010(t, buf)
	require.NoError(t, fr.Err)
	assert.Empty(t, fr.Diagnostics)
	assert.Equal(t, FrameHeader, fr.Kind)
	assert.Equal(t, "header delivery-properties message-properties", fr.Summary)

	assert.True(t, fr.Tree.Path("delivery-properties", "redelivered").Value.Bool)
	assert.Equal(t, uint64(9), fr.Tree.Path("delivery-properties", "priority").Value.Uint)
	assert.Equal(t, "rk", fr.Tree.Path("delivery-properties", "routing-key").Value.Str)
	assert.Equal(t, "reply", fr.Tree.Path("message-properties", "reply-to", "routing-key").Value.Str)
	assert.Equal(t, "text/plain", fr.Tree.Path("message-properties", "content-type").Value.Str)
}

func TestHeaderSegmentUnknownStruct(t *testing.T) {
	buf := frame010(segmentHeader,
		encodeStruct32(classMessage, 0x09, 0, u32(1)),
		encodeStruct32(classMessage, 0x02, 1<<0),
	)

	fr := decode010(t, buf)
	require.NoError(t, fr.Err)
	assert.Equal(t, "header struct(4.9) fragment-properties", fr.Summary)
	require.Len(t, fr.Diagnostics, 1)
	assert.Equal(t, UnknownCode, fr.Diagnostics[0].Kind)
	assert.True(t, fr.Tree.Path("fragment-properties", "first").Value.Bool)
}

func TestBodySegment(t *testing.T) {
	fr := decode010(t, frame010(segmentBody, []byte("hello")))
	require.NoError(t, fr.Err)
	assert.Equal(t, FrameBody, fr.Kind)
	assert.Equal(t, "body", fr.Summary)

	payload := fr.Tree.Child("payload")
	require.NotNil(t, payload)
	assert.Equal(t, []byte("hello"), payload.Value.Bytes)
	assert.Equal(t, frameHeaderSize, payload.Offset)
}

func TestUnknownCodes(t *testing.T) {
	tests := []struct {
		label   string
		buf     []byte
		summary string
	}{
		{"class", control(0x20, 0x01, 0), "control unknown class 32"},
		{"method", control(classConnection, 0x30, 0), "connection.unknown method 48"},
		{"segment type", frame010(7, []byte{1, 2}), "unknown segment type 7"},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			fr := decode010(t, tt.buf)
			require.NoError(t, fr.Err)
			assert.Equal(t, tt.summary, fr.Summary)

			require.Len(t, fr.Diagnostics, 1)
			assert.Equal(t, UnknownCode, fr.Diagnostics[0].Kind)
			payload := fr.Tree.Child("payload")
			require.NotNil(t, payload)
			assert.Equal(t, "opaque", payload.Type)
		})
	}
}

func TestSessionHeader(t *testing.T) {
	tests := []struct {
		session []byte
		sync    bool
		warn    bool
	}{
		{[]byte{1, 0}, false, false},
		{[]byte{1, 1}, true, false},
		{[]byte{2, 0}, false, true},
		{[]byte{1, 0x81}, true, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%x", tt.session), func(t *testing.T) {
			fr := decode010(t, commandSession(classMessage, 0x0b, tt.session, 0x01, str8("d")))
			require.NoError(t, fr.Err)
			assert.Equal(t, "message.flush", fr.Summary)
			assert.Equal(t, FrameCommand, fr.Kind)
			assert.Equal(t, tt.sync, fr.Tree.Path("session-header", "sync").Value.Bool)

			if tt.warn {
				require.Len(t, fr.Diagnostics, 1)
				assert.Contains(t, fr.Diagnostics[0].Message, "bad sync byte")
			} else {
				assert.Empty(t, fr.Diagnostics)
			}
		})
	}
}

func TestFrameHeaderWarnings(t *testing.T) {
	buf := control(classConnection, 0x0c, 0)
	buf[0] |= 0x40 // format 1
	buf[7] = 0x05  // channel
	buf[9] = 0xff  // reserved

	fr := decode010(t, buf)
	require.NoError(t, fr.Err)
	assert.Equal(t, Header{Format: 1, Position: 0x0f, Type: segmentControl, Size: 16, Channel: 5}, fr.Header)
	require.Len(t, fr.Diagnostics, 2)
	for _, d := range fr.Diagnostics {
		assert.Equal(t, ProtocolWarning, d.Kind)
	}
	assert.Equal(t, "first-segment|last-segment|first-frame|last-frame", fr.Tree.Path("frame-header", "position").Value.Str)
}

func TestLegacyFrames(t *testing.T) {
	stream := cat(
		protocolHeader(0, 9),
		frame09(legacyMethod, 1, cat(u16(10), u16(40), []byte{0, 0})),
		frame09(legacyBody, 1, []byte("payload")),
		frame09(legacyHeartbeat, 0, nil),
	)

	c := newTestConn(t, DialectUnknown)
	frames, err := c.Decode(stream)
	require.NoError(t, err)
	require.Len(t, frames, 4)

	assert.Equal(t, "0-9 method 10.40", frames[1].Summary)
	assert.Equal(t, FrameBody09, frames[2].Kind)
	assert.Equal(t, []byte("payload"), frames[2].Tree.Child("payload").Value.Bytes)
	assert.Equal(t, "0-9 heartbeat", frames[3].Summary)
	assert.Equal(t, Header{Type: legacyMethod, Channel: 1, Size: 6}, frames[1].Header)
}

func TestLegacyFrameEnd(t *testing.T) {
	buf := frame09(legacyBody, 1, []byte("x"))
	buf[len(buf)-1] = 0x00

	fr := newTestConn(t, Dialect09).DecodeFrame(buf, 0, len(buf))
	require.NoError(t, fr.Err)
	require.Len(t, fr.Diagnostics, 1)
	assert.Contains(t, fr.Diagnostics[0].Message, "frame end")
}

func TestLegacyClamp(t *testing.T) {
	buf := frame09(legacyBody, 1, []byte("abcdef"))

	c := newTestConn(t, Dialect09, ConnMaxLegacyFrameSize(4))
	n, err := c.FrameLength(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	fr := c.DecodeFrame(buf, 0, n)
	require.NoError(t, fr.Err)
	assert.Equal(t, []byte("abcd"), fr.Tree.Child("payload").Value.Bytes)

	var messages []string
	for _, d := range fr.Diagnostics {
		messages = append(messages, d.Message)
	}
	require.Len(t, messages, 2)
	assert.Contains(t, messages[0], "clamped")
	assert.Contains(t, messages[1], "frame end")
}

type stubLegacyDecoder struct {
	frameType uint8
	channel   uint16
	payload   []byte
}

func (s *stubLegacyDecoder) DecodeLegacyFrame(frameType uint8, channel uint16, payload []byte) (*Node, error) {
	s.frameType, s.channel, s.payload = frameType, channel, payload
	n := &Node{Name: "method", Type: "0-9 method", Value: compositeValue(1), Offset: 0, Length: len(payload)}
	n.add(&Node{Name: "class-id", Type: "uint16", Value: uintValue(10), Offset: 0, Length: 2})
	return n, nil
}

func TestLegacyDecoder(t *testing.T) {
	stub := new(stubLegacyDecoder)
	stream := cat(protocolHeader(0, 9), frame09(legacyMethod, 3, cat(u16(10), u16(10))))

	c := newTestConn(t, DialectUnknown, ConnLegacyDecoder(stub))
	frames, err := c.Decode(stream)
	require.NoError(t, err)
	require.Len(t, frames, 2)

	assert.Equal(t, legacyMethod, stub.frameType)
	assert.Equal(t, uint16(3), stub.channel)
	assert.Equal(t, cat(u16(10), u16(10)), stub.payload)

	method := frames[1].Tree.Child("method")
	require.NotNil(t, method)
	payloadOff := protoHeaderSize + legacyHeaderSize
	assert.Equal(t, payloadOff, method.Offset)
	assert.Equal(t, payloadOff, method.Child("class-id").Offset)
}
