package amqp010

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Type codes
const (
	// Fixed width, high bit clear. Bits 4-6 give the width as a power of two.
	typeCodeBin8    uint8 = 0x00 // 1 octet of opaque binary data
	typeCodeInt8    uint8 = 0x01 // 8-bit signed integer
	typeCodeUint8   uint8 = 0x02 // 8-bit unsigned integer
	typeCodeChar    uint8 = 0x04 // an iso-8859-15 character
	typeCodeBoolean uint8 = 0x08 // boolean, zero is false
	typeCodeBin16   uint8 = 0x10 // 2 octets of opaque binary data
	typeCodeInt16   uint8 = 0x11 // 16-bit signed integer in network byte order
	typeCodeUint16  uint8 = 0x12 // 16-bit unsigned integer in network byte order
	typeCodeBin32   uint8 = 0x20 // 4 octets of opaque binary data
	typeCodeInt32   uint8 = 0x21 // 32-bit signed integer in network byte order
	typeCodeUint32  uint8 = 0x22 // 32-bit unsigned integer in network byte order

	// Variable width, high bit set. Bits 4-6 give the size prefix width.
	typeCodeVbin8 uint8 = 0x80 // up to 2^8 - 1 octets of opaque binary data (1 + variable)
	typeCodeStr16 uint8 = 0x95 // up to 2^16 - 1 octets of UTF-8 text (2 + variable)

	// Composite, each preceded by a 4 octet size.
	typeCodeMap      uint8 = 0xa8
	typeCodeList     uint8 = 0xa9
	typeCodeArray    uint8 = 0xaa
	typeCodeStruct32 uint8 = 0xab
)

// SizeClass is how a type's encoded size is determined.
type SizeClass uint8

const (
	SizeFixed     SizeClass = iota // Size octets
	SizeVariable                   // Size-octet length prefix, then payload
	SizeComposite                  // 4-octet size, then nested values
)

type scalarFormat uint8

const (
	formatBin scalarFormat = iota
	formatInt
	formatUint
	formatChar
	formatBool
	formatStr
)

// TypeDescriptor describes one registered type code.
type TypeDescriptor struct {
	Code  uint8
	Name  string
	Class SizeClass
	// Size is the value width for fixed types and the size-prefix width
	// for variable and composite types.
	Size int

	format scalarFormat
}

var typeRegistry = map[uint8]TypeDescriptor{
	typeCodeBin8:    {Code: typeCodeBin8, Name: "bin8", Class: SizeFixed, Size: 1, format: formatBin},
	typeCodeInt8:    {Code: typeCodeInt8, Name: "int8", Class: SizeFixed, Size: 1, format: formatInt},
	typeCodeUint8:   {Code: typeCodeUint8, Name: "uint8", Class: SizeFixed, Size: 1, format: formatUint},
	typeCodeChar:    {Code: typeCodeChar, Name: "char", Class: SizeFixed, Size: 1, format: formatChar},
	typeCodeBoolean: {Code: typeCodeBoolean, Name: "boolean", Class: SizeFixed, Size: 1, format: formatBool},
	typeCodeBin16:   {Code: typeCodeBin16, Name: "bin16", Class: SizeFixed, Size: 2, format: formatBin},
	typeCodeInt16:   {Code: typeCodeInt16, Name: "int16", Class: SizeFixed, Size: 2, format: formatInt},
	typeCodeUint16:  {Code: typeCodeUint16, Name: "uint16", Class: SizeFixed, Size: 2, format: formatUint},
	typeCodeBin32:   {Code: typeCodeBin32, Name: "bin32", Class: SizeFixed, Size: 4, format: formatBin},
	typeCodeInt32:   {Code: typeCodeInt32, Name: "int32", Class: SizeFixed, Size: 4, format: formatInt},
	typeCodeUint32:  {Code: typeCodeUint32, Name: "uint32", Class: SizeFixed, Size: 4, format: formatUint},

	typeCodeVbin8: {Code: typeCodeVbin8, Name: "vbin8", Class: SizeVariable, Size: 1, format: formatBin},
	typeCodeStr16: {Code: typeCodeStr16, Name: "str16", Class: SizeVariable, Size: 2, format: formatStr},

	typeCodeMap:      {Code: typeCodeMap, Name: "map", Class: SizeComposite, Size: 4},
	typeCodeList:     {Code: typeCodeList, Name: "list", Class: SizeComposite, Size: 4},
	typeCodeArray:    {Code: typeCodeArray, Name: "array", Class: SizeComposite, Size: 4},
	typeCodeStruct32: {Code: typeCodeStruct32, Name: "struct32", Class: SizeComposite, Size: 4},
}

// LookupType returns the descriptor registered for code.
func LookupType(code uint8) (TypeDescriptor, bool) {
	td, ok := typeRegistry[code]
	return td, ok
}

// unknownWidth computes the width implied by bits 4-6 of an unregistered
// type code. In legacy mode the exponent is applied with XOR, reproducing
// the arithmetic existing capture corpora were decoded with.
func unknownWidth(code uint8, legacyXOR bool) int {
	exp := uint((code >> 4) & 0x07)
	if legacyXOR {
		return int(2 ^ exp)
	}
	return 1 << exp
}

// ValueKind tags the variant held by a Value.
type ValueKind uint8

const (
	ValueNone ValueKind = iota
	ValueInt
	ValueUint
	ValueBool
	ValueChar
	ValueBinary
	ValueString
	ValueDatetime
	ValueSequenceSet
	ValueComposite
)

// SequenceRange is an inclusive range of sequence numbers.
type SequenceRange struct {
	Lower uint32
	Upper uint32
}

// Value is a decoded scalar, or the summary of a composite.
//
// For ValueUint, a non-empty Str names the value (class and method codes).
// For ValueComposite, Count is the number of entries, elements or present
// fields, and Uint holds the packing flags of packed structs.
type Value struct {
	Kind   ValueKind
	Int    int64
	Uint   uint64
	Bool   bool
	Bytes  []byte
	Str    string
	Ranges []SequenceRange
	Count  int
}

func (v Value) String() string {
	switch v.Kind {
	case ValueInt:
		return strconv.FormatInt(v.Int, 10)
	case ValueUint:
		if v.Str != "" {
			return fmt.Sprintf("%s (%d)", v.Str, v.Uint)
		}
		return strconv.FormatUint(v.Uint, 10)
	case ValueBool:
		return strconv.FormatBool(v.Bool)
	case ValueChar, ValueString:
		return v.Str
	case ValueBinary:
		return hex.EncodeToString(v.Bytes)
	case ValueDatetime:
		return time.Unix(int64(v.Uint), 0).UTC().Format(time.RFC3339)
	case ValueSequenceSet:
		parts := make([]string, len(v.Ranges))
		for i, r := range v.Ranges {
			parts[i] = fmt.Sprintf("%d-%d", r.Lower, r.Upper)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case ValueComposite:
		return fmt.Sprintf("{%d}", v.Count)
	default:
		return ""
	}
}

func intValue(i int64) Value     { return Value{Kind: ValueInt, Int: i} }
func uintValue(u uint64) Value   { return Value{Kind: ValueUint, Uint: u} }
func boolValue(b bool) Value     { return Value{Kind: ValueBool, Bool: b} }
func binaryValue(b []byte) Value { return Value{Kind: ValueBinary, Bytes: b} }
func stringValue(s string) Value { return Value{Kind: ValueString, Str: s} }
func compositeValue(n int) Value { return Value{Kind: ValueComposite, Count: n} }
func namedValue(u uint64, name string) Value {
	return Value{Kind: ValueUint, Uint: u, Str: name}
}
