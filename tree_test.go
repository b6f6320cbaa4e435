package amqp010

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNodeString(t *testing.T) {
	fr := decode010(t, control(classConnection, 0x07, 0x05, str8("/test")))

	want := `amqp (frame)
  frame-header (group): {6}
    format (uint8): 0
    position (uint8): first-segment|last-segment|first-frame|last-frame (15)
    type (uint8): control (0)
    size (uint16): 22
    track (uint8): 0
    channel (uint16): 0
  class (uint8): connection (1)
  method (uint8): open (7)
  arguments (connection.open): {2}
    virtual-host (str8): /test
    insist (bit): true
`
	assert.Equal(t, want, fr.Tree.String())
}

func TestNodePath(t *testing.T) {
	root := &Node{Name: "root"}
	a := &Node{Name: "a"}
	b := &Node{Name: "b", Value: uintValue(1)}
	a.add(b)
	root.add(a)
	root.add(nil)

	assert.Len(t, root.Children, 1)
	assert.Equal(t, b, root.Path("a", "b"))
	assert.Nil(t, root.Path("a", "c"))
	assert.Nil(t, root.Path("x", "b"))
	assert.Equal(t, root, root.Path())

	var names []string
	var depths []int
	root.Walk(func(depth int, n *Node) {
		names = append(names, n.Name)
		depths = append(depths, depth)
	})
	assert.Equal(t, []string{"root", "a", "b"}, names)
	assert.Equal(t, []int{0, 1, 2}, depths)
}

func TestDiagnosticString(t *testing.T) {
	d := Diagnostic{Severity: SeverityWarn, Kind: UnknownCode, Offset: 12, Length: 4, Message: "unknown type code 0x33"}
	assert.Equal(t, "warn unknown-code [12:16]: unknown type code 0x33", d.String())
}
