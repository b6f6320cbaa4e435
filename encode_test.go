package amqp010

import (
	"bytes"
	"encoding/binary"
)

// Test-only encoders producing canonical 0-10 and 0-9 wire bytes.

func u8(v uint8) []byte { return []byte{v} }

func u16(v uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return b
}

func u32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func u64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func cat(parts ...[]byte) []byte {
	return bytes.Join(parts, nil)
}

func str8(s string) []byte  { return cat(u8(uint8(len(s))), []byte(s)) }
func str16(s string) []byte { return cat(u16(uint16(len(s))), []byte(s)) }

func vbin32(b []byte) []byte { return cat(u32(uint32(len(b))), b) }

func sized16(parts ...[]byte) []byte {
	body := cat(parts...)
	return cat(u16(uint16(len(body))), body)
}

func sized32(parts ...[]byte) []byte {
	body := cat(parts...)
	return cat(u32(uint32(len(body))), body)
}

// packFlags writes packing flags, bit i in bit i%8 of octet i/8.
func packFlags(f uint16) []byte {
	return []byte{byte(f), byte(f >> 8)}
}

type entry struct {
	name  string
	code  uint8
	value []byte
}

func encodeMap(entries ...entry) []byte {
	parts := [][]byte{u32(uint32(len(entries)))}
	for _, e := range entries {
		parts = append(parts, str8(e.name), u8(e.code), e.value)
	}
	return sized32(parts...)
}

func encodeList(elems ...entry) []byte {
	parts := [][]byte{u32(uint32(len(elems)))}
	for _, e := range elems {
		parts = append(parts, u8(e.code), e.value)
	}
	return sized32(parts...)
}

func encodeArray(code uint8, elems ...[]byte) []byte {
	return sized32(u8(code), u32(uint32(len(elems))), cat(elems...))
}

func encodeStruct32(class, code uint8, flags uint16, fields ...[]byte) []byte {
	return sized32(u8(class), u8(code), packFlags(flags), cat(fields...))
}

/*
	0-10 frame header (12 bytes)
		0:	format (bits 6-7), position flags (bits 0-3)
		1:	segment type
		2-3:	size, including the header
		4:	reserved
		5:	track (bits 0-3)
		6-7:	channel
		8-11:	reserved
*/
func frame010(typ uint8, payload ...[]byte) []byte {
	body := cat(payload...)
	size := frameHeaderSize + len(body)
	hdr := []byte{0x0f, typ, byte(size >> 8), byte(size), 0, 0, 0, 0, 0, 0, 0, 0}
	return cat(hdr, body)
}

func control(class, method uint8, flags uint16, args ...[]byte) []byte {
	return frame010(segmentControl, u8(class), u8(method), packFlags(flags), cat(args...))
}

func command(class, method uint8, flags uint16, args ...[]byte) []byte {
	return commandSession(class, method, []byte{1, 0}, flags, args...)
}

func commandSession(class, method uint8, session []byte, flags uint16, args ...[]byte) []byte {
	return frame010(segmentCommand, u8(class), u8(method), session, packFlags(flags), cat(args...))
}

func protocolHeader(major, minor uint8) []byte {
	return cat([]byte("AMQP"), []byte{1, 1, major, minor})
}

func frame09(typ uint8, channel uint16, payload []byte) []byte {
	return cat(u8(typ), u16(channel), u32(uint32(len(payload))), payload, u8(legacyFrameEnd))
}
