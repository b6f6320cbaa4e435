package amqp010

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/charmap"

	"pack.ag/amqp010/internal/buffer"
)

// decoder reads typed values from a bounded cursor and records
// diagnostics. Nested decoders share the diagnostics slice and options.
type decoder struct {
	c     *buffer.Cursor
	opts  *Options
	depth int
	diags *[]Diagnostic
}

func newDecoder(buf []byte, off, bound int, opts *Options) (*decoder, error) {
	c, err := buffer.New(buf, off, bound)
	if err != nil {
		return nil, err
	}
	return &decoder{c: c, opts: opts, diags: new([]Diagnostic)}, nil
}

// nested splits the next n bytes into a decoder one level deeper.
// The parent always advances past all n bytes.
func (d *decoder) nested(n int) (*decoder, error) {
	if d.depth+1 > d.opts.MaxDepth {
		return nil, errors.Wrapf(ErrBoundsExceeded, "nesting deeper than %d at offset %d", d.opts.MaxDepth, d.c.Offset())
	}
	c, err := d.c.Sub(n)
	if err != nil {
		return nil, err
	}
	return &decoder{c: c, opts: d.opts, depth: d.depth + 1, diags: d.diags}, nil
}

func (d *decoder) diag(sev Severity, kind ErrorKind, off, n int, format string, args ...interface{}) {
	*d.diags = append(*d.diags, Diagnostic{
		Severity: sev,
		Kind:     kind,
		Offset:   off,
		Length:   n,
		Message:  fmt.Sprintf(format, args...),
	})
}

// opaque renders every remaining byte as a blob.
func (d *decoder) opaque(name string) *Node {
	start := d.c.Offset()
	b := d.c.Rest()
	return &Node{Name: name, Type: "opaque", Value: binaryValue(b), Offset: start, Length: len(b)}
}

// readSized reads a width-octet length prefix and then that many bytes.
func (d *decoder) readSized(width int) ([]byte, error) {
	var n int
	switch width {
	case 1:
		v, err := d.c.ReadU8()
		if err != nil {
			return nil, err
		}
		n = int(v)
	case 2:
		v, err := d.c.ReadU16()
		if err != nil {
			return nil, err
		}
		n = int(v)
	case 4:
		v, err := d.c.ReadU32()
		if err != nil {
			return nil, err
		}
		if uint64(v) > uint64(d.c.Len()) {
			return nil, errors.Wrapf(ErrBoundsExceeded, "length %d exceeds remaining %d", v, d.c.Len())
		}
		n = int(v)
	default:
		return nil, errors.Errorf("invalid size prefix width %d", width)
	}
	return d.c.Next(n)
}

// text returns b as a string value. Bytes that are not UTF-8 are kept
// as read and noted.
func (d *decoder) text(b []byte, start int, name string) Value {
	if !utf8.Valid(b) {
		d.diag(SeverityNote, ProtocolWarning, start, d.c.Offset()-start, "%q is not valid UTF-8", name)
	}
	return stringValue(string(b))
}

// readSize reads a 4-octet composite size.
func (d *decoder) readSize() (int, error) {
	v, err := d.c.ReadU32()
	if err != nil {
		return 0, err
	}
	if uint64(v) > uint64(d.c.Len()) {
		return 0, errors.Wrapf(ErrBoundsExceeded, "size %d exceeds remaining %d", v, d.c.Len())
	}
	return int(v), nil
}

// decodeValue decodes one value of the given type code.
func (d *decoder) decodeValue(name string, code uint8) (*Node, error) {
	td, ok := typeRegistry[code]
	if !ok {
		return d.skipUnknown(name, code)
	}

	switch td.Class {
	case SizeFixed:
		return d.decodeFixed(name, td)
	case SizeVariable:
		return d.decodeVariable(name, td)
	}

	switch code {
	case typeCodeMap:
		return d.decodeMap(name)
	case typeCodeList:
		return d.decodeList(name)
	case typeCodeArray:
		return d.decodeArray(name)
	default:
		return d.decodeStruct32(name)
	}
}

func (d *decoder) decodeFixed(name string, td TypeDescriptor) (*Node, error) {
	start := d.c.Offset()
	b, err := d.c.Next(td.Size)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s %q", td.Name, name)
	}

	n := &Node{Name: name, Type: td.Name, Offset: start, Length: td.Size}
	switch td.format {
	case formatBin:
		n.Value = binaryValue(b)
	case formatChar:
		n.Value = Value{Kind: ValueChar, Str: string(charmap.ISO8859_15.DecodeByte(b[0]))}
	case formatBool:
		n.Value = boolValue(b[0] != 0)
	case formatInt:
		switch td.Size {
		case 1:
			n.Value = intValue(int64(int8(b[0])))
		case 2:
			n.Value = intValue(int64(int16(binary.BigEndian.Uint16(b))))
		default:
			n.Value = intValue(int64(int32(binary.BigEndian.Uint32(b))))
		}
	case formatUint:
		var u uint64
		for _, x := range b {
			u = u<<8 | uint64(x)
		}
		n.Value = uintValue(u)
	}
	return n, nil
}

func (d *decoder) decodeVariable(name string, td TypeDescriptor) (*Node, error) {
	start := d.c.Offset()
	b, err := d.readSized(td.Size)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s %q", td.Name, name)
	}

	n := &Node{Name: name, Type: td.Name, Offset: start, Length: d.c.Offset() - start}
	if td.format == formatStr {
		n.Value = d.text(b, start, name)
	} else {
		n.Value = binaryValue(b)
	}
	return n, nil
}

// skipUnknown consumes a value of an unregistered type code using the
// width implied by the code's bit layout.
func (d *decoder) skipUnknown(name string, code uint8) (*Node, error) {
	start := d.c.Offset()

	var (
		b   []byte
		err error
	)
	switch {
	case code&0x80 == 0:
		b, err = d.c.Next(unknownWidth(code, d.opts.LegacyXORWidth))
	case code&0xf0 == 0xc0:
		b, err = d.c.Next(5)
	case code&0xf0 == 0xd0:
		b, err = d.c.Next(9)
	default:
		switch w := unknownWidth(code, d.opts.LegacyXORWidth); w {
		case 1, 2, 4:
			b, err = d.readSized(w)
		default:
			// reserved
			b, err = d.c.Next(1)
		}
	}
	if err != nil {
		return nil, errors.Wrapf(err, "skipping unknown type 0x%02x %q", code, name)
	}

	n := d.c.Offset() - start
	d.diag(SeverityWarn, UnknownCode, start, n, "unknown type code 0x%02x for %q, skipped %d bytes", code, name, n)
	return &Node{
		Name:   name,
		Type:   fmt.Sprintf("unknown(0x%02x)", code),
		Value:  binaryValue(b),
		Offset: start,
		Length: n,
	}, nil
}

// decodeMap decodes a size-prefixed map: count, then (name, type, value)
// entries until the count or the bytes run out.
func (d *decoder) decodeMap(name string) (*Node, error) {
	start := d.c.Offset()
	size, err := d.readSize()
	if err != nil {
		return nil, errors.Wrapf(err, "reading map %q size", name)
	}
	sub, err := d.nested(size)
	if err != nil {
		return nil, errors.Wrapf(err, "reading map %q", name)
	}

	node := &Node{Name: name, Type: "map", Offset: start, Length: 4 + size}
	count, err := sub.c.ReadU32()
	if err != nil {
		return node, errors.Wrapf(err, "reading map %q count", name)
	}
	node.Value = compositeValue(int(count))

	remaining := count
	for ; remaining > 0 && sub.c.Len() > 0; remaining-- {
		keyStart := sub.c.Offset()
		key, err := sub.readSized(1)
		if err != nil {
			return node, errors.Wrapf(err, "reading map %q entry name", name)
		}
		if !utf8.Valid(key) {
			sub.diag(SeverityNote, ProtocolWarning, keyStart, 1+len(key), "map %q entry name %q is not valid UTF-8", name, key)
		}
		code, err := sub.c.ReadU8()
		if err != nil {
			return node, errors.Wrapf(err, "reading map %q entry %q type", name, key)
		}
		v, err := sub.decodeValue(string(key), code)
		node.add(v)
		if err != nil {
			return node, err
		}
	}

	if remaining > 0 {
		d.diag(SeverityWarn, ProtocolWarning, start, node.Length, "map %q ended with %d of %d entries missing", name, remaining, count)
	}
	return node, nil
}

// decodeList decodes a size-prefixed list: count, then (type, value) elements.
func (d *decoder) decodeList(name string) (*Node, error) {
	start := d.c.Offset()
	size, err := d.readSize()
	if err != nil {
		return nil, errors.Wrapf(err, "reading list %q size", name)
	}
	sub, err := d.nested(size)
	if err != nil {
		return nil, errors.Wrapf(err, "reading list %q", name)
	}

	node := &Node{Name: name, Type: "list", Offset: start, Length: 4 + size}
	count, err := sub.c.ReadU32()
	if err != nil {
		return node, errors.Wrapf(err, "reading list %q count", name)
	}
	node.Value = compositeValue(int(count))

	var i uint32
	for ; i < count && sub.c.Len() > 0; i++ {
		code, err := sub.c.ReadU8()
		if err != nil {
			return node, errors.Wrapf(err, "reading list %q element type", name)
		}
		v, err := sub.decodeValue(fmt.Sprintf("[%d]", i), code)
		node.add(v)
		if err != nil {
			return node, err
		}
	}

	if i < count {
		d.diag(SeverityWarn, ProtocolWarning, start, node.Length, "list %q ended with %d of %d elements missing", name, count-i, count)
	}
	return node, nil
}

// decodeArray decodes a size-prefixed array of a single element type.
// Only length-prefixed scalars and struct32 elements are decoded; any
// other element type stops the array and renders the rest opaque.
func (d *decoder) decodeArray(name string) (*Node, error) {
	start := d.c.Offset()
	size, err := d.readSize()
	if err != nil {
		return nil, errors.Wrapf(err, "reading array %q size", name)
	}
	sub, err := d.nested(size)
	if err != nil {
		return nil, errors.Wrapf(err, "reading array %q", name)
	}

	node := &Node{Name: name, Type: "array", Offset: start, Length: 4 + size}
	code, err := sub.c.ReadU8()
	if err != nil {
		return node, errors.Wrapf(err, "reading array %q element type", name)
	}
	count, err := sub.c.ReadU32()
	if err != nil {
		return node, errors.Wrapf(err, "reading array %q count", name)
	}
	node.Value = compositeValue(int(count))

	td, known := typeRegistry[code]
	var i uint32
	for ; i < count && sub.c.Len() > 0; i++ {
		elemName := fmt.Sprintf("[%d]", i)

		var v *Node
		switch {
		case code == typeCodeStruct32:
			v, err = sub.decodeStruct32(elemName)
		case known && td.Class == SizeVariable:
			v, err = sub.decodeVariable(elemName, td)
		default:
			sub.diag(SeverityWarn, UnknownCode, sub.c.Offset(), sub.c.Len(), "unimplemented array element type 0x%02x in %q", code, name)
			node.add(sub.opaque("elements"))
			return node, nil
		}
		node.add(v)
		if err != nil {
			return node, err
		}
	}

	if i < count {
		d.diag(SeverityWarn, ProtocolWarning, start, node.Length, "array %q ended with %d of %d elements missing", name, count-i, count)
	}

	// a single element renders inline under the array's name
	if count == 1 && len(node.Children) == 1 {
		elem := node.Children[0]
		elem.Name = name
		elem.Offset = start
		elem.Length = node.Length
		return elem, nil
	}
	return node, nil
}

// decodeStruct32 decodes a size-prefixed struct. An empty name uses the
// struct's own name.
func (d *decoder) decodeStruct32(name string) (*Node, error) {
	start := d.c.Offset()
	size, err := d.readSize()
	if err != nil {
		return nil, errors.Wrapf(err, "reading struct32 %q size", name)
	}
	sub, err := d.nested(size)
	if err != nil {
		return nil, errors.Wrapf(err, "reading struct32 %q", name)
	}

	node, err := sub.decodeStructBody(name)
	if node != nil {
		node.Offset = start
		node.Length = 4 + size
	}
	return node, err
}

// decodeStructBody reads the (class, struct) dispatch key and the struct's
// packed fields from the rest of d.
func (d *decoder) decodeStructBody(name string) (*Node, error) {
	start := d.c.Offset()
	key, err := d.c.Next(2)
	if err != nil {
		return nil, errors.Wrapf(err, "reading struct32 %q code", name)
	}

	layout, ok := structs[structKey{class: key[0], code: key[1]}]
	if !ok {
		d.diag(SeverityWarn, UnknownCode, start, d.c.Len()+2, "unknown struct class 0x%02x code 0x%02x", key[0], key[1])
		if name == "" {
			name = fmt.Sprintf("struct(%d.%d)", key[0], key[1])
		}
		node := d.opaque(name)
		node.Offset = start
		node.Length += 2
		return node, nil
	}

	if name == "" {
		name = layout.name
	}
	node := &Node{Name: name, Type: layout.name, Offset: start, Length: d.c.Len() + 2}
	err = d.decodePacked(layout, node)
	if err == nil && d.c.Len() > 0 {
		d.diag(SeverityNote, ProtocolWarning, d.c.Offset(), d.c.Len(), "%d unused bytes in struct %s", d.c.Len(), layout.name)
	}
	return node, err
}
