package amqp010

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	protoHeaderSize = 8  // "AMQP", class, instance, major, minor
	frameHeaderSize = 12 // 0-10 segment frame header

	// 0-9: type (1), channel (2), length (4), payload, frame-end (1)
	legacyHeaderSize = 7
	legacyFrameEnd   = 0xce
)

// 0-10 segment types
const (
	segmentControl uint8 = 0
	segmentCommand uint8 = 1
	segmentHeader  uint8 = 2
	segmentBody    uint8 = 3
)

var segmentNames = map[uint8]string{
	segmentControl: "control",
	segmentCommand: "command",
	segmentHeader:  "header",
	segmentBody:    "body",
}

// 0-10 frame position flags
const (
	posFirstSegment uint8 = 0x08
	posLastSegment  uint8 = 0x04
	posFirstFrame   uint8 = 0x02
	posLastFrame    uint8 = 0x01
)

func positionString(p uint8) string {
	var names []string
	for _, f := range []struct {
		bit  uint8
		name string
	}{
		{posFirstSegment, "first-segment"},
		{posLastSegment, "last-segment"},
		{posFirstFrame, "first-frame"},
		{posLastFrame, "last-frame"},
	} {
		if p&f.bit != 0 {
			names = append(names, f.name)
		}
	}
	return strings.Join(names, "|")
}

// 0-9 frame types
const (
	legacyMethod    uint8 = 1
	legacyHeader    uint8 = 2
	legacyBody      uint8 = 3
	legacyHeartbeat uint8 = 8
)

var legacyKinds = map[uint8]FrameKind{
	legacyMethod:    FrameMethod09,
	legacyHeader:    FrameHeader09,
	legacyBody:      FrameBody09,
	legacyHeartbeat: FrameHeartbeat09,
}

// isProtocolHeader reports whether b starts with the protocol marker.
func isProtocolHeader(b []byte) bool {
	return len(b) >= 4 && b[0] == 'A' && string(b[:4]) == "AMQP"
}

// protocolDialect maps the version octets of a protocol header.
func protocolDialect(major, minor uint8) Dialect {
	switch {
	case major == 0 && minor == 10:
		return Dialect010
	case major == 0 && minor == 9, major == 9 && minor == 1:
		// "AMQP" 0 0 9 1 is the 0-9-1 form of the header
		return Dialect09
	default:
		return DialectUnknown
	}
}

// detect returns the dialect to decode b with. The connection's dialect
// wins once known; otherwise b is tested for a 0-9 frame spanning exactly
// the available bytes.
func (c *Conn) detect(b []byte) Dialect {
	if c.dialect != DialectUnknown {
		return c.dialect
	}
	if len(b) < legacyHeaderSize {
		return Dialect010
	}
	n := uint64(binary.BigEndian.Uint32(b[3:])) + legacyHeaderSize + 1
	if n == uint64(len(b)) && b[n-1] == legacyFrameEnd {
		return Dialect09
	}
	return Dialect010
}

// FrameLength returns the declared length of the frame starting at off.
//
// It does not change the connection's dialect.
func (c *Conn) FrameLength(buf []byte, off int) (int, error) {
	if off < 0 || off >= len(buf) {
		return 0, errors.Wrapf(ErrTooShort, "offset %d outside %d byte buffer", off, len(buf))
	}
	b := buf[off:]
	if isProtocolHeader(b) {
		return protoHeaderSize, nil
	}

	switch c.detect(b) {
	case Dialect09:
		if len(b) < legacyHeaderSize {
			return 0, errors.Wrapf(ErrTooShort, "%d bytes available, 0-9 frame needs %d", len(b), legacyHeaderSize)
		}
		n := int64(binary.BigEndian.Uint32(b[3:]))
		if n > int64(c.opts.MaxLegacyFrameSize) {
			n = int64(c.opts.MaxLegacyFrameSize)
		}
		return int(n) + legacyHeaderSize + 1, nil
	default:
		if len(b) < 8 {
			return 0, errors.Wrapf(ErrTooShort, "%d bytes available, 0-10 frame needs 8", len(b))
		}
		size := int(binary.BigEndian.Uint16(b[2:]))
		if size < frameHeaderSize {
			return 0, errors.Wrapf(ErrTooShort, "declared frame size %d below header size %d", size, frameHeaderSize)
		}
		return size, nil
	}
}

// DecodeFrame decodes the frame of the given declared length at off.
//
// Reads never cross off+length or the end of buf. The returned Frame is
// never nil; on failure Err is set and Tree holds what was decoded.
func (c *Conn) DecodeFrame(buf []byte, off, length int) *Frame {
	fr := &Frame{Offset: off, Length: length}

	d, err := newDecoder(buf, off, off+length, &c.opts)
	if err != nil {
		fr.Err = errors.Wrapf(err, "frame at offset %d", off)
		fr.Diagnostics = []Diagnostic{{Severity: SeverityError, Kind: ErrorKindOf(err), Offset: off, Message: err.Error()}}
		fr.Summary = "invalid"
		return fr
	}

	b := buf[off:d.c.Bound()]
	switch {
	case isProtocolHeader(b):
		err = c.decodeProtocolHeader(d, fr)
	default:
		dialect := c.detect(b)
		c.setDialect(dialect, off)
		fr.Dialect = dialect
		if dialect == Dialect09 {
			err = c.decodeLegacyFrame(d, fr)
		} else {
			err = c.decodeFrame(d, fr)
		}
	}

	if err == nil && d.c.Bound() < off+length {
		// decoded cleanly up to a struct or payload boundary, but the
		// frame is still missing bytes
		err = errors.Wrapf(ErrBoundsExceeded, "frame declares %d bytes, %d available", length, d.c.Bound()-off)
	}

	fr.Diagnostics = *d.diags
	if err != nil {
		fr.Err = err
		fr.Diagnostics = append(fr.Diagnostics, Diagnostic{
			Severity: SeverityError,
			Kind:     ErrorKindOf(err),
			Offset:   d.c.Offset(),
			Length:   d.c.Bound() - d.c.Offset(),
			Message:  err.Error(),
		})
		c.log.Debug("frame decode failed",
			zap.Int("offset", off),
			zap.Stringer("kind", ErrorKindOf(err)),
			zap.Error(err),
		)
	}
	return fr
}

func (c *Conn) decodeProtocolHeader(d *decoder, fr *Frame) error {
	fr.Kind = FrameProtocolHeader
	fr.Summary = "protocol-header"
	root := &Node{Name: "amqp", Type: "protocol-header", Offset: fr.Offset, Length: protoHeaderSize}
	fr.Tree = root

	b, err := d.c.Next(protoHeaderSize)
	if err != nil {
		return errors.Wrap(err, "reading protocol header")
	}
	root.Value = compositeValue(5)
	root.add(&Node{Name: "protocol", Type: "str", Value: stringValue(string(b[:4])), Offset: fr.Offset, Length: 4})
	for i, name := range []string{"class", "instance", "major", "minor"} {
		root.add(&Node{Name: name, Type: "uint8", Value: uintValue(uint64(b[4+i])), Offset: fr.Offset + 4 + i, Length: 1})
	}

	dialect := protocolDialect(b[6], b[7])
	if dialect == DialectUnknown {
		d.diag(SeverityWarn, ProtocolWarning, fr.Offset+6, 2, "unsupported protocol version %d-%d", b[6], b[7])
		fr.Dialect = c.dialect
		fr.Summary = fmt.Sprintf("protocol-header %d-%d", b[6], b[7])
		return nil
	}

	c.setDialect(dialect, fr.Offset)
	fr.Dialect = dialect
	fr.Summary = "protocol-header " + dialect.String()
	return nil
}

// decodeFrame decodes a 0-10 frame.
func (c *Conn) decodeFrame(d *decoder, fr *Frame) error {
	root := &Node{Name: "amqp", Type: "frame", Offset: fr.Offset, Length: fr.Length}
	fr.Tree = root

	b, err := d.c.Next(frameHeaderSize)
	if err != nil {
		return errors.Wrap(err, "reading frame header")
	}
	h := Header{
		Format:   b[0] >> 6,
		Position: b[0] & 0x0f,
		Type:     b[1],
		Size:     uint32(binary.BigEndian.Uint16(b[2:])),
		Track:    b[5] & 0x0f,
		Channel:  binary.BigEndian.Uint16(b[6:]),
	}
	fr.Header = h
	root.add(frameHeaderNode(fr.Offset, h))

	switch {
	case h.Format != 0:
		d.diag(SeverityWarn, ProtocolWarning, fr.Offset, 1, "frame format %d, expected 0", h.Format)
	case b[0]&0x30 != 0:
		d.diag(SeverityWarn, ProtocolWarning, fr.Offset, 1, "reserved bits set in frame flags 0x%02x", b[0])
	}
	if b[4] != 0 || b[5]&0xf0 != 0 || binary.BigEndian.Uint32(b[8:]) != 0 {
		d.diag(SeverityWarn, ProtocolWarning, fr.Offset+4, 8, "reserved frame header bytes are not zero")
	}
	if int(h.Size) != fr.Length {
		d.diag(SeverityNote, ProtocolWarning, fr.Offset+2, 2, "frame size %d differs from declared length %d", h.Size, fr.Length)
	}

	switch h.Type {
	case segmentControl, segmentCommand:
		return c.decodeMethod(d, fr, root)
	case segmentHeader:
		return c.decodeHeaderSegment(d, fr, root)
	case segmentBody:
		fr.Kind = FrameBody
		fr.Summary = "body"
		root.add(payloadNode(d))
		return nil
	default:
		fr.Kind = FrameUnknown
		fr.Summary = fmt.Sprintf("unknown segment type %d", h.Type)
		d.diag(SeverityWarn, UnknownCode, fr.Offset+1, 1, "unknown segment type %d", h.Type)
		root.add(d.opaque("payload"))
		return nil
	}
}

func frameHeaderNode(off int, h Header) *Node {
	n := &Node{Name: "frame-header", Type: "group", Value: compositeValue(6), Offset: off, Length: frameHeaderSize}
	n.add(&Node{Name: "format", Type: "uint8", Value: uintValue(uint64(h.Format)), Offset: off, Length: 1})
	n.add(&Node{Name: "position", Type: "uint8", Value: namedValue(uint64(h.Position), positionString(h.Position)), Offset: off, Length: 1})
	n.add(&Node{Name: "type", Type: "uint8", Value: namedValue(uint64(h.Type), segmentNames[h.Type]), Offset: off + 1, Length: 1})
	n.add(&Node{Name: "size", Type: "uint16", Value: uintValue(uint64(h.Size)), Offset: off + 2, Length: 2})
	n.add(&Node{Name: "track", Type: "uint8", Value: uintValue(uint64(h.Track)), Offset: off + 5, Length: 1})
	n.add(&Node{Name: "channel", Type: "uint16", Value: uintValue(uint64(h.Channel)), Offset: off + 6, Length: 2})
	return n
}

func payloadNode(d *decoder) *Node {
	n := d.opaque("payload")
	n.Type = "bytes"
	return n
}

// decodeMethod decodes the class, method, optional session header and
// packed arguments of a control or command segment.
func (c *Conn) decodeMethod(d *decoder, fr *Frame, root *Node) error {
	if fr.Header.Type == segmentCommand {
		fr.Kind = FrameCommand
	} else {
		fr.Kind = FrameControl
	}
	segment := segmentNames[fr.Header.Type]

	start := d.c.Offset()
	classCode, err := d.c.ReadU8()
	if err != nil {
		return errors.Wrapf(err, "reading %s class", segment)
	}
	fr.Class = classCode
	cls, ok := classes[classCode]
	if !ok {
		root.add(&Node{Name: "class", Type: "uint8", Value: uintValue(uint64(classCode)), Offset: start, Length: 1})
		d.diag(SeverityWarn, UnknownCode, start, 1, "unknown %s class 0x%02x", segment, classCode)
		fr.Summary = fmt.Sprintf("%s unknown class %d", segment, classCode)
		root.add(d.opaque("payload"))
		return nil
	}
	root.add(&Node{Name: "class", Type: "uint8", Value: namedValue(uint64(classCode), cls.name), Offset: start, Length: 1})

	methodCode, err := d.c.ReadU8()
	if err != nil {
		return errors.Wrapf(err, "reading %s method", cls.name)
	}
	fr.Method = methodCode
	m := cls.method(methodCode)
	if m == nil {
		root.add(&Node{Name: "method", Type: "uint8", Value: uintValue(uint64(methodCode)), Offset: start + 1, Length: 1})
		d.diag(SeverityWarn, UnknownCode, start+1, 1, "unknown %s method 0x%02x", cls.name, methodCode)
		fr.Summary = fmt.Sprintf("%s.unknown method %d", cls.name, methodCode)
		root.add(d.opaque("payload"))
		return nil
	}
	root.add(&Node{Name: "method", Type: "uint8", Value: namedValue(uint64(methodCode), m.name), Offset: start + 1, Length: 1})
	fr.Summary = cls.name + "." + m.name

	if cls.command != (fr.Header.Type == segmentCommand) {
		d.diag(SeverityNote, ProtocolWarning, start, 1, "%s class %s carried in a %s segment", classKind(cls), cls.name, segment)
	}

	if cls.command {
		if err := d.decodeSessionHeader(root); err != nil {
			return err
		}
	}

	args := &Node{Name: "arguments", Type: fr.Summary, Offset: d.c.Offset()}
	root.add(args)
	err = d.decodePacked(m, args)
	args.Length = d.c.Offset() - args.Offset
	if err != nil {
		return err
	}
	if d.c.Len() > 0 {
		d.diag(SeverityNote, ProtocolWarning, d.c.Offset(), d.c.Len(), "%d unused bytes after %s", d.c.Len(), fr.Summary)
	}
	return nil
}

func classKind(c *classDef) string {
	if c.command {
		return "command"
	}
	return "control"
}

// decodeSessionHeader reads the two octets preceding a command's packing
// flags: a header size of 1, then flags of which only sync is defined.
func (d *decoder) decodeSessionHeader(parent *Node) error {
	start := d.c.Offset()
	b, err := d.c.Next(2)
	if err != nil {
		return errors.Wrap(err, "reading session header")
	}

	n := &Node{Name: "session-header", Type: "group", Value: compositeValue(1), Offset: start, Length: 2}
	n.add(&Node{Name: "sync", Type: "bit", Value: boolValue(b[1]&0x01 != 0), Offset: start + 1, Length: 1})
	parent.add(n)

	if b[0] != 1 || b[1]&^0x01 != 0 {
		d.diag(SeverityWarn, ProtocolWarning, start, 2, "bad sync byte 0x%02x%02x", b[0], b[1])
	}
	return nil
}

// decodeHeaderSegment decodes the back-to-back struct32 entries of a
// header segment.
func (c *Conn) decodeHeaderSegment(d *decoder, fr *Frame, root *Node) error {
	fr.Kind = FrameHeader
	fr.Summary = "header"

	for d.c.Len() > 0 {
		n, err := d.decodeStruct32("")
		root.add(n)
		if n != nil {
			fr.Summary += " " + n.Name
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// decodeLegacyFrame decodes a 0-9 frame. The payload goes to the
// connection's LegacyDecoder when one is configured.
func (c *Conn) decodeLegacyFrame(d *decoder, fr *Frame) error {
	root := &Node{Name: "amqp", Type: "frame", Offset: fr.Offset, Length: fr.Length}
	fr.Tree = root
	fr.Summary = "0-9 frame"

	b, err := d.c.Next(legacyHeaderSize)
	if err != nil {
		return errors.Wrap(err, "reading 0-9 frame header")
	}
	typ := b[0]
	channel := binary.BigEndian.Uint16(b[1:])
	length := binary.BigEndian.Uint32(b[3:])
	fr.Header = Header{Type: typ, Channel: channel, Size: length}

	kind, ok := legacyKinds[typ]
	if !ok {
		kind = FrameUnknown
		d.diag(SeverityWarn, UnknownCode, fr.Offset, 1, "unknown 0-9 frame type %d", typ)
	}
	fr.Kind = kind
	fr.Summary = "0-9 " + kind.String()

	hdr := &Node{Name: "frame-header", Type: "group", Value: compositeValue(3), Offset: fr.Offset, Length: legacyHeaderSize}
	hdr.add(&Node{Name: "type", Type: "uint8", Value: namedValue(uint64(typ), kind.String()), Offset: fr.Offset, Length: 1})
	hdr.add(&Node{Name: "channel", Type: "uint16", Value: uintValue(uint64(channel)), Offset: fr.Offset + 1, Length: 2})
	hdr.add(&Node{Name: "length", Type: "uint32", Value: uintValue(uint64(length)), Offset: fr.Offset + 3, Length: 4})
	root.add(hdr)

	n := int64(length)
	if limit := int64(c.opts.MaxLegacyFrameSize); n > limit {
		d.diag(SeverityWarn, ProtocolWarning, fr.Offset+3, 4, "0-9 frame length %d clamped to %d", length, limit)
		n = limit
	}

	payloadOff := d.c.Offset()
	payload, err := d.c.Next(int(n))
	if err != nil {
		return errors.Wrap(err, "reading 0-9 payload")
	}
	if kind == FrameMethod09 && len(payload) >= 4 {
		fr.Summary = fmt.Sprintf("0-9 method %d.%d", binary.BigEndian.Uint16(payload), binary.BigEndian.Uint16(payload[2:]))
	}
	root.add(c.legacyPayload(d, typ, channel, payload, payloadOff))

	end, err := d.c.ReadU8()
	if err != nil {
		return errors.Wrap(err, "reading 0-9 frame end")
	}
	if end != legacyFrameEnd {
		d.diag(SeverityWarn, ProtocolWarning, d.c.Offset()-1, 1, "frame end 0x%02x, expected 0x%02x", end, legacyFrameEnd)
	}
	return nil
}

func (c *Conn) legacyPayload(d *decoder, typ uint8, channel uint16, payload []byte, off int) *Node {
	blob := &Node{Name: "payload", Type: "bytes", Value: binaryValue(payload), Offset: off, Length: len(payload)}
	if c.legacy == nil || len(payload) == 0 {
		return blob
	}

	n, err := c.legacy.DecodeLegacyFrame(typ, channel, payload)
	if err != nil {
		kind := ErrorKindOf(err)
		if kind == KindNone {
			kind = ProtocolWarning
		}
		d.diag(SeverityWarn, kind, off, len(payload), "0-9 payload: %v", err)
	}
	if n == nil {
		return blob
	}
	n.Walk(func(_ int, n *Node) {
		n.Offset += off
	})
	return n
}
