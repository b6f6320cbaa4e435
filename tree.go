package amqp010

import (
	"fmt"
	"strings"
)

// Node is one named, typed field in a decoded frame.
//
// Groups (frames, methods, structs, maps, arrays) carry children and a
// Value of kind ValueComposite; scalar leaves carry a Value and no children.
// Offset and Length are absolute byte positions in the decoded buffer.
type Node struct {
	Name     string
	Type     string
	Value    Value
	Offset   int
	Length   int
	Children []*Node
}

func (n *Node) add(child *Node) {
	if child != nil {
		n.Children = append(n.Children, child)
	}
}

// Child returns the first direct child named name, or nil.
func (n *Node) Child(name string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Path follows names through nested children, e.g. Path("arguments", "virtual-host").
func (n *Node) Path(names ...string) *Node {
	for _, name := range names {
		n = n.Child(name)
	}
	return n
}

// Walk calls fn for n and every descendant in depth-first order.
func (n *Node) Walk(fn func(depth int, n *Node)) {
	n.walk(0, fn)
}

func (n *Node) walk(depth int, fn func(int, *Node)) {
	if n == nil {
		return
	}
	fn(depth, n)
	for _, c := range n.Children {
		c.walk(depth+1, fn)
	}
}

func (n *Node) String() string {
	var sb strings.Builder
	n.Walk(func(depth int, n *Node) {
		sb.WriteString(strings.Repeat("  ", depth))
		sb.WriteString(n.Name)
		if n.Type != "" {
			fmt.Fprintf(&sb, " (%s)", n.Type)
		}
		if v := n.Value.String(); v != "" {
			sb.WriteString(": ")
			sb.WriteString(v)
		}
		sb.WriteByte('\n')
	})
	return sb.String()
}

// Severity of a diagnostic.
type Severity uint8

const (
	SeverityNote Severity = iota
	SeverityWarn
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityWarn:
		return "warn"
	case SeverityError:
		return "error"
	default:
		return "note"
	}
}

// Diagnostic is a severity-tagged annotation attached to a byte range.
type Diagnostic struct {
	Severity Severity
	Kind     ErrorKind
	Offset   int
	Length   int
	Message  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s %s [%d:%d]: %s", d.Severity, d.Kind, d.Offset, d.Offset+d.Length, d.Message)
}

// FrameKind identifies the kind of a decoded frame.
type FrameKind uint8

const (
	FrameUnknown FrameKind = iota
	FrameProtocolHeader
	FrameControl
	FrameCommand
	FrameHeader
	FrameBody
	FrameMethod09
	FrameHeader09
	FrameBody09
	FrameHeartbeat09
)

var frameKindNames = map[FrameKind]string{
	FrameUnknown:        "unknown",
	FrameProtocolHeader: "protocol-header",
	FrameControl:        "control",
	FrameCommand:        "command",
	FrameHeader:         "header",
	FrameBody:           "body",
	FrameMethod09:       "method",
	FrameHeader09:       "content-header",
	FrameBody09:         "content-body",
	FrameHeartbeat09:    "heartbeat",
}

func (k FrameKind) String() string {
	if s, ok := frameKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("FrameKind(%d)", uint8(k))
}

// Header holds the decoded header fields of a frame.
//
// 0-10 frames fill every field; 0-9 frames fill Type, Channel and Size.
type Header struct {
	Format   uint8
	Position uint8
	Type     uint8
	Size     uint32
	Track    uint8
	Channel  uint16
}

// Frame is the result of decoding one length-delimited wire unit.
type Frame struct {
	Offset  int
	Length  int
	Dialect Dialect
	Kind    FrameKind
	Header  Header

	// Class and Method are set for control and command frames.
	Class  uint8
	Method uint8

	Tree        *Node
	Summary     string
	Diagnostics []Diagnostic

	// Err is the error that aborted decoding, if any. The frame's
	// diagnostics also carry it with SeverityError.
	Err error
}
