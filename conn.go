package amqp010

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Decoder defaults
const (
	defaultMaxDepth           = 32
	defaultMaxLegacyFrameSize = 1 << 20 // 1 MiB
)

// Dialect is the protocol version spoken on a connection.
type Dialect uint8

const (
	DialectUnknown Dialect = iota
	Dialect09              // AMQP 0-9, type/channel/length frames with a 0xce trailer
	Dialect010             // AMQP 0-10, 12-byte segment frame headers
)

func (d Dialect) String() string {
	switch d {
	case Dialect09:
		return "0-9"
	case Dialect010:
		return "0-10"
	default:
		return "unknown"
	}
}

// Options controls decoding.
type Options struct {
	// LegacyXORWidth computes the width of unknown fixed-size type codes
	// as 2 XOR n instead of 2 to the power n. Captures annotated by
	// earlier dissectors were decoded with the XOR form.
	LegacyXORWidth bool

	// MaxDepth limits composite nesting.
	MaxDepth int

	// MaxLegacyFrameSize clamps the declared payload length of 0-9 frames.
	MaxLegacyFrameSize int
}

// DefaultOptions returns the options used by NewConn.
func DefaultOptions() Options {
	return Options{
		LegacyXORWidth:     true,
		MaxDepth:           defaultMaxDepth,
		MaxLegacyFrameSize: defaultMaxLegacyFrameSize,
	}
}

func (o Options) validate() error {
	if o.MaxDepth < 1 {
		return errors.Errorf("max depth must be at least 1, got %d", o.MaxDepth)
	}
	if o.MaxLegacyFrameSize < 1 {
		return errors.Errorf("max legacy frame size must be at least 1, got %d", o.MaxLegacyFrameSize)
	}
	return nil
}

// LegacyDecoder decodes the payload of an AMQP 0-9 frame.
//
// Offsets in the returned tree are relative to the start of payload.
// A nil node with a nil error leaves the payload rendered as a blob.
type LegacyDecoder interface {
	DecodeLegacyFrame(frameType uint8, channel uint16, payload []byte) (*Node, error)
}

// ConnOption is an option for a decoding connection.
type ConnOption func(*Conn) error

// ConnOptions replaces every decoding option at once.
func ConnOptions(o Options) ConnOption {
	return func(c *Conn) error {
		if err := o.validate(); err != nil {
			return err
		}
		c.opts = o
		return nil
	}
}

// ConnLegacyXORWidth selects the XOR width arithmetic for unknown
// fixed-size type codes.
//
// Default: true.
func ConnLegacyXORWidth(enable bool) ConnOption {
	return func(c *Conn) error {
		c.opts.LegacyXORWidth = enable
		return nil
	}
}

// ConnMaxDepth sets the maximum composite nesting depth.
//
// Must be 1 or greater.
//
// Default: 32.
func ConnMaxDepth(n int) ConnOption {
	return func(c *Conn) error {
		if n < 1 {
			return errors.New("max depth must be 1 or greater")
		}
		c.opts.MaxDepth = n
		return nil
	}
}

// ConnMaxLegacyFrameSize sets the clamp applied to 0-9 frame lengths.
//
// Must be 1 or greater.
//
// Default: 1 MiB.
func ConnMaxLegacyFrameSize(n int) ConnOption {
	return func(c *Conn) error {
		if n < 1 {
			return errors.New("max legacy frame size must be 1 or greater")
		}
		c.opts.MaxLegacyFrameSize = n
		return nil
	}
}

// ConnLogger sets the connection's logger. It defaults to the package
// logger at the time NewConn is called.
func ConnLogger(l *zap.Logger) ConnOption {
	return func(c *Conn) error {
		if l == nil {
			return errors.New("nil logger")
		}
		c.log = l
		return nil
	}
}

// ConnLegacyDecoder plugs in a decoder for 0-9 frame payloads.
func ConnLegacyDecoder(d LegacyDecoder) ConnOption {
	return func(c *Conn) error {
		c.legacy = d
		return nil
	}
}

// Conn decodes one direction of one AMQP connection.
//
// A Conn carries the negotiated dialect from frame to frame, so frames
// must be decoded in stream order. A Conn must not be used from more than
// one goroutine at a time; separate Conns share nothing.
type Conn struct {
	opts    Options
	dialect Dialect
	legacy  LegacyDecoder
	log     *zap.Logger
}

// NewConn returns a Conn in the unknown dialect state.
func NewConn(opts ...ConnOption) (*Conn, error) {
	c := &Conn{
		opts: DefaultOptions(),
		log:  Logger(),
	}

	// apply options
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Dialect returns the connection's current dialect.
func (c *Conn) Dialect() Dialect {
	return c.dialect
}

func (c *Conn) setDialect(d Dialect, off int) {
	if d == c.dialect {
		return
	}
	c.log.Debug("dialect changed",
		zap.Stringer("from", c.dialect),
		zap.Stringer("to", d),
		zap.Int("offset", off),
	)
	c.dialect = d
}

// Decode slices buf into frames and decodes each in order.
//
// The returned error combines the errors of every failed frame; use
// multierr.Errors to split it. A failed frame does not stop the walk
// since the next frame starts at the failed frame's declared length.
// The walk stops only when no further frame length can be determined.
func (c *Conn) Decode(buf []byte) ([]*Frame, error) {
	var (
		frames []*Frame
		errs   error
	)
	for off := 0; off < len(buf); {
		n, err := c.FrameLength(buf, off)
		if err != nil {
			c.log.Debug("stream walk stopped", zap.Int("offset", off), zap.Error(err))
			errs = multierr.Append(errs, errors.Wrapf(err, "frame length at offset %d", off))
			break
		}

		fr := c.DecodeFrame(buf, off, n)
		frames = append(frames, fr)
		if fr.Err != nil {
			errs = multierr.Append(errs, errors.Wrapf(fr.Err, "frame at offset %d", off))
		}
		off += n
	}
	return frames, errs
}
