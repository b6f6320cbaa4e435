package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/multierr"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"pack.ag/amqp010"
)

// Output formats
const (
	formatText = "text"
	formatJSON = "json"
)

var (
	captureStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	summaryStyle = lipgloss.NewStyle().
			Bold(true)

	nameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	noteStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD166"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))
)

func severityStyle(s amqp010.Severity) lipgloss.Style {
	switch s {
	case amqp010.SeverityError:
		return errorStyle
	case amqp010.SeverityWarn:
		return warnStyle
	default:
		return noteStyle
	}
}

func render(w io.Writer, format string, r result) error {
	if format == formatJSON {
		return renderJSON(w, r)
	}
	renderText(w, r)
	return nil
}

func renderText(w io.Writer, r result) {
	fmt.Fprintln(w, captureStyle.Render(r.path))

	for _, fr := range r.frames {
		span := fmt.Sprintf("[%d:%d]", fr.Offset, fr.Offset+fr.Length)
		fmt.Fprintf(w, "%s %s\n", summaryStyle.Render(span), fr.Summary)

		fr.Tree.Walk(func(depth int, n *amqp010.Node) {
			var sb strings.Builder
			sb.WriteString(strings.Repeat("  ", depth+1))
			sb.WriteString(nameStyle.Render(n.Name))
			if n.Type != "" {
				sb.WriteString(" ")
				sb.WriteString(typeStyle.Render("(" + n.Type + ")"))
			}
			if v := n.Value.String(); v != "" {
				sb.WriteString(": ")
				sb.WriteString(v)
			}
			fmt.Fprintln(w, sb.String())
		})

		for _, d := range fr.Diagnostics {
			fmt.Fprintln(w, "  "+severityStyle(d.Severity).Render(d.String()))
		}
	}

	// errors that did not come from a decoded frame
	for _, err := range multierr.Errors(r.err) {
		if len(r.frames) == 0 || amqp010.ErrorKindOf(err) == amqp010.TooShort {
			fmt.Fprintln(w, errorStyle.Render(err.Error()))
		}
	}
}

func renderJSON(w io.Writer, r result) error {
	frames := make([]interface{}, 0, len(r.frames))
	for _, fr := range r.frames {
		frames = append(frames, frameMap(fr))
	}

	m := map[string]interface{}{
		"capture": validUTF8(r.path),
		"frames":  frames,
	}
	if r.err != nil {
		m["error"] = validUTF8(r.err.Error())
	}

	s, err := structpb.NewStruct(m)
	if err != nil {
		return err
	}
	b, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(s)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

// validUTF8 replaces invalid UTF-8, which protobuf strings reject.
func validUTF8(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}

func frameMap(fr *amqp010.Frame) map[string]interface{} {
	diags := make([]interface{}, 0, len(fr.Diagnostics))
	for _, d := range fr.Diagnostics {
		diags = append(diags, map[string]interface{}{
			"severity": d.Severity.String(),
			"kind":     d.Kind.String(),
			"offset":   d.Offset,
			"length":   d.Length,
			"message":  validUTF8(d.Message),
		})
	}

	m := map[string]interface{}{
		"offset":      fr.Offset,
		"length":      fr.Length,
		"dialect":     fr.Dialect.String(),
		"kind":        fr.Kind.String(),
		"summary":     validUTF8(fr.Summary),
		"diagnostics": diags,
	}
	if fr.Tree != nil {
		m["tree"] = nodeMap(fr.Tree)
	}
	return m
}

func nodeMap(n *amqp010.Node) map[string]interface{} {
	m := map[string]interface{}{
		"name":   validUTF8(n.Name),
		"type":   validUTF8(n.Type),
		"offset": n.Offset,
		"length": n.Length,
	}
	if v := n.Value.String(); v != "" {
		m["value"] = validUTF8(v)
	}
	if len(n.Children) > 0 {
		children := make([]interface{}, len(n.Children))
		for i, c := range n.Children {
			children[i] = nodeMap(c)
		}
		m["children"] = children
	}
	return m
}
