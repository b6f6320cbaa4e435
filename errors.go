package amqp010

import (
	"github.com/pkg/errors"

	"pack.ag/amqp010/internal/buffer"
)

// Errors returned by the decoder. Use ErrorKindOf to classify a returned
// error, wrapped or not.
var (
	// ErrBoundsExceeded is returned when a read would cross the declared
	// frame or substructure length.
	ErrBoundsExceeded = buffer.ErrBoundsExceeded
	// ErrTooShort is returned when the input is below the protocol's
	// absolute minimum and decoding cannot start.
	ErrTooShort = errors.New("input shorter than protocol minimum")
	// ErrUnknownCode is returned when a class, method, struct or type code
	// is absent from every table.
	ErrUnknownCode = errors.New("unknown code")
	// ErrProtocol is returned for recoverable protocol violations.
	ErrProtocol = errors.New("protocol violation")
)

// ErrorKind classifies decoder errors and diagnostics.
type ErrorKind uint8

const (
	KindNone ErrorKind = iota
	BoundsExceeded
	ProtocolWarning
	UnknownCode
	TooShort
)

func (k ErrorKind) String() string {
	switch k {
	case BoundsExceeded:
		return "bounds-exceeded"
	case ProtocolWarning:
		return "protocol-warning"
	case UnknownCode:
		return "unknown-code"
	case TooShort:
		return "too-short"
	default:
		return "none"
	}
}

// ErrorKindOf returns the kind of err, or KindNone if err is nil or
// did not originate in this package.
func ErrorKindOf(err error) ErrorKind {
	switch errors.Cause(err) {
	case nil:
		return KindNone
	case ErrBoundsExceeded:
		return BoundsExceeded
	case ErrTooShort:
		return TooShort
	case ErrUnknownCode:
		return UnknownCode
	case ErrProtocol:
		return ProtocolWarning
	default:
		return KindNone
	}
}
