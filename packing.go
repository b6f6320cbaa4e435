package amqp010

import (
	"github.com/pkg/errors"
)

// argKind is the wire encoding of a packed argument or struct field.
type argKind uint8

const (
	argBit argKind = iota // carried by the packing flag itself
	argUint8
	argUint16
	argUint32
	argUint64
	argDatetime    // uint64 seconds since the epoch
	argSequenceNo  // uint32 serial number
	argStr8        // 1-octet length + UTF-8
	argStr16       // 2-octet length + UTF-8
	argVbin8       // 1-octet length + binary
	argVbin16      // 2-octet length + binary
	argVbin32      // 4-octet length + binary
	argUUID        // 16 octets
	argMap         // size-prefixed map
	argArray       // size-prefixed array
	argSequenceSet // 2-octet size + ranges of uint32 pairs
	argStruct32    // size-prefixed struct32
	argXid         // 2-octet size + packed xid
	argReplyTo     // 2-octet size + packed reply-to
)

var argKindNames = [...]string{
	argBit:         "bit",
	argUint8:       "uint8",
	argUint16:      "uint16",
	argUint32:      "uint32",
	argUint64:      "uint64",
	argDatetime:    "datetime",
	argSequenceNo:  "sequence-no",
	argStr8:        "str8",
	argStr16:       "str16",
	argVbin8:       "vbin8",
	argVbin16:      "vbin16",
	argVbin32:      "vbin32",
	argUUID:        "uuid",
	argMap:         "map",
	argArray:       "array",
	argSequenceSet: "sequence-set",
	argStruct32:    "struct32",
	argXid:         "xid",
	argReplyTo:     "reply-to",
}

func (k argKind) String() string {
	if int(k) < len(argKindNames) {
		return argKindNames[k]
	}
	return "unknown"
}

// packWidth is the size of the packing flags preceding every control,
// command and struct argument list.
const packWidth = 2

type argDef struct {
	name string
	kind argKind
}

// packedLayout is the ordered argument list of a method or struct.
// Argument i is present when packing flag bit i is set.
type packedLayout struct {
	name string
	args []argDef
}

// flagMask returns the packing flags the layout defines.
func (l *packedLayout) flagMask() uint16 {
	return uint16(uint32(1)<<uint(len(l.args)) - 1)
}

// decodePacked reads the packing flags and every present argument of l
// into parent.
func (d *decoder) decodePacked(l *packedLayout, parent *Node) error {
	start := d.c.Offset()
	if len(l.args) == 0 && d.c.Len() == 0 {
		parent.Value = compositeValue(0)
		return nil
	}

	b, err := d.c.Next(packWidth)
	if err != nil {
		return errors.Wrapf(err, "reading %s packing flags", l.name)
	}
	flags := uint16(b[0]) | uint16(b[1])<<8

	if extra := flags &^ l.flagMask(); extra != 0 {
		d.diag(SeverityWarn, ProtocolWarning, start, packWidth, "unexpected packing flags 0x%04x for %s", extra, l.name)
	}

	present := 0
	defer func() {
		parent.Value = Value{Kind: ValueComposite, Count: present, Uint: uint64(flags)}
	}()

	for i, a := range l.args {
		if flags&(1<<uint(i)) == 0 {
			continue
		}
		present++

		if a.kind == argBit {
			parent.add(&Node{Name: a.name, Type: "bit", Value: boolValue(true), Offset: start, Length: 0})
			continue
		}

		n, err := d.decodeArg(a)
		parent.add(n)
		if err != nil {
			return errors.Wrapf(err, "decoding %s.%s", l.name, a.name)
		}
	}
	return nil
}

func (d *decoder) decodeArg(a argDef) (*Node, error) {
	start := d.c.Offset()
	leaf := func(v Value, err error) (*Node, error) {
		if err != nil {
			return nil, err
		}
		return &Node{Name: a.name, Type: a.kind.String(), Value: v, Offset: start, Length: d.c.Offset() - start}, nil
	}

	switch a.kind {
	case argUint8:
		v, err := d.c.ReadU8()
		return leaf(uintValue(uint64(v)), err)
	case argUint16:
		v, err := d.c.ReadU16()
		return leaf(uintValue(uint64(v)), err)
	case argUint32, argSequenceNo:
		v, err := d.c.ReadU32()
		return leaf(uintValue(uint64(v)), err)
	case argUint64:
		v, err := d.c.ReadU64()
		return leaf(uintValue(v), err)
	case argDatetime:
		v, err := d.c.ReadU64()
		return leaf(Value{Kind: ValueDatetime, Uint: v}, err)
	case argStr8, argStr16:
		width := 1
		if a.kind == argStr16 {
			width = 2
		}
		b, err := d.readSized(width)
		if err != nil {
			return nil, err
		}
		return leaf(d.text(b, start, a.name), nil)
	case argVbin8:
		b, err := d.readSized(1)
		return leaf(binaryValue(b), err)
	case argVbin16:
		b, err := d.readSized(2)
		return leaf(binaryValue(b), err)
	case argVbin32:
		b, err := d.readSized(4)
		return leaf(binaryValue(b), err)
	case argUUID:
		b, err := d.c.Next(16)
		return leaf(binaryValue(b), err)
	case argMap:
		return d.decodeMap(a.name)
	case argArray:
		return d.decodeArray(a.name)
	case argStruct32:
		return d.decodeStruct32(a.name)
	case argSequenceSet:
		return d.decodeSequenceSet(a.name)
	case argXid:
		return d.decodeSmallStruct(a.name, xidLayout)
	case argReplyTo:
		return d.decodeSmallStruct(a.name, replyToLayout)
	default:
		return nil, errors.Errorf("no decoder for argument kind %d", a.kind)
	}
}

// decodeSequenceSet reads a 2-octet size followed by (lower, upper) pairs.
func (d *decoder) decodeSequenceSet(name string) (*Node, error) {
	start := d.c.Offset()
	size, err := d.c.ReadU16()
	if err != nil {
		return nil, err
	}
	sub, err := d.nested(int(size))
	if err != nil {
		return nil, err
	}

	var ranges []SequenceRange
	for sub.c.Len() >= 8 {
		lower, _ := sub.c.ReadU32()
		upper, _ := sub.c.ReadU32()
		ranges = append(ranges, SequenceRange{Lower: lower, Upper: upper})
	}
	if sub.c.Len() != 0 {
		d.diag(SeverityWarn, ProtocolWarning, sub.c.Offset(), sub.c.Len(), "sequence-set %q size %d is not a multiple of 8", name, size)
	}

	return &Node{
		Name:   name,
		Type:   argSequenceSet.String(),
		Value:  Value{Kind: ValueSequenceSet, Ranges: ranges},
		Offset: start,
		Length: 2 + int(size),
	}, nil
}

// decodeSmallStruct reads a 2-octet size and a packed struct without a
// class/struct code.
func (d *decoder) decodeSmallStruct(name string, l *packedLayout) (*Node, error) {
	start := d.c.Offset()
	size, err := d.c.ReadU16()
	if err != nil {
		return nil, err
	}
	sub, err := d.nested(int(size))
	if err != nil {
		return nil, err
	}

	node := &Node{Name: name, Type: l.name, Offset: start, Length: 2 + int(size)}
	return node, sub.decodePacked(l, node)
}
