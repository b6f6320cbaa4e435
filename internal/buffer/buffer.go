// Package buffer provides the bounded read cursor every decoder is built on.
package buffer

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// ErrBoundsExceeded is returned when a read would cross the cursor's bound.
var ErrBoundsExceeded = errors.New("read exceeds declared bound")

// Cursor reads from buf between its offset and bound.
//
// The buffer is not owned or modified. 0 <= off <= bound <= len(buf)
// holds for the lifetime of the cursor.
type Cursor struct {
	buf   []byte
	off   int
	bound int
}

// New returns a cursor over buf[off:bound].
//
// A bound past the end of buf is clamped to len(buf) so that reads past
// the available bytes fail with ErrBoundsExceeded rather than panic.
func New(buf []byte, off, bound int) (*Cursor, error) {
	if bound > len(buf) {
		bound = len(buf)
	}
	if off < 0 || off > bound {
		return nil, errors.Wrapf(ErrBoundsExceeded, "offset %d outside [0, %d]", off, bound)
	}
	return &Cursor{buf: buf, off: off, bound: bound}, nil
}

// Offset returns the absolute offset of the next read.
func (c *Cursor) Offset() int { return c.off }

// Bound returns the absolute offset reads may not cross.
func (c *Cursor) Bound() int { return c.bound }

// Len returns the number of unread bytes.
func (c *Cursor) Len() int { return c.bound - c.off }

func (c *Cursor) check(n int) error {
	if n < 0 || n > c.bound-c.off {
		return errors.Wrapf(ErrBoundsExceeded, "need %d bytes at offset %d, have %d", n, c.off, c.bound-c.off)
	}
	return nil
}

// Next returns the next n bytes and advances past them.
// The returned slice aliases the underlying buffer.
func (c *Cursor) Next(n int) ([]byte, error) {
	if err := c.check(n); err != nil {
		return nil, err
	}
	b := c.buf[c.off : c.off+n : c.off+n]
	c.off += n
	return b, nil
}

// Skip advances n bytes.
func (c *Cursor) Skip(n int) error {
	if err := c.check(n); err != nil {
		return err
	}
	c.off += n
	return nil
}

// Peek returns the next n bytes without advancing.
func (c *Cursor) Peek(n int) ([]byte, error) {
	if err := c.check(n); err != nil {
		return nil, err
	}
	return c.buf[c.off : c.off+n : c.off+n], nil
}

func (c *Cursor) ReadU8() (uint8, error) {
	if err := c.check(1); err != nil {
		return 0, err
	}
	v := c.buf[c.off]
	c.off++
	return v, nil
}

func (c *Cursor) ReadU16() (uint16, error) {
	b, err := c.Next(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (c *Cursor) ReadU32() (uint32, error) {
	b, err := c.Next(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (c *Cursor) ReadU64() (uint64, error) {
	b, err := c.Next(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// Sub splits off the next n bytes as a child cursor and advances c past
// them, whether or not the child is fully consumed.
func (c *Cursor) Sub(n int) (*Cursor, error) {
	if err := c.check(n); err != nil {
		return nil, err
	}
	child := &Cursor{buf: c.buf, off: c.off, bound: c.off + n}
	c.off += n
	return child, nil
}

// Rest returns every unread byte and moves to the bound.
func (c *Cursor) Rest() []byte {
	b := c.buf[c.off:c.bound:c.bound]
	c.off = c.bound
	return b
}
