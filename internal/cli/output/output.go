// Package output formats CLI messages for humans or as JSON.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/keycal/keycal/internal/cli/display"
)

// Output handles CLI output formatting.
type Output struct {
	jsonMode bool
	out      io.Writer
	err      io.Writer
	color    *display.Colorizer
}

// New creates an Output on stdout and stderr.
func New(jsonMode bool) *Output {
	return NewTo(os.Stdout, os.Stderr, jsonMode, display.DefaultColorizer())
}

// NewTo creates an Output on the given writers.
func NewTo(out, errOut io.Writer, jsonMode bool, color *display.Colorizer) *Output {
	return &Output{jsonMode: jsonMode, out: out, err: errOut, color: color}
}

// JSONMode reports whether human-readable messages are suppressed.
func (o *Output) JSONMode() bool {
	return o.jsonMode
}

// Writer is the standard output stream.
func (o *Output) Writer() io.Writer {
	return o.out
}

// Colorizer returns the colorizer used for styled text.
func (o *Output) Colorizer() *display.Colorizer {
	return o.color
}

// Success prints a success message.
func (o *Output) Success(format string, args ...any) {
	if o.jsonMode {
		return
	}
	fmt.Fprintf(o.out, o.color.Color("✓ ", "green")+format+"\n", args...)
}

// Error prints an error message. Errors go to stderr even in JSON mode.
func (o *Output) Error(format string, args ...any) {
	fmt.Fprintf(o.err, o.color.Color("✗ ", "red")+format+"\n", args...)
}

// Warn prints a warning message.
func (o *Output) Warn(format string, args ...any) {
	if o.jsonMode {
		return
	}
	fmt.Fprintf(o.err, o.color.Color("! ", "yellow")+format+"\n", args...)
}

// Info prints an info message.
func (o *Output) Info(format string, args ...any) {
	if o.jsonMode {
		return
	}
	fmt.Fprintf(o.out, o.color.Color("→ ", "cyan")+format+"\n", args...)
}

// Header prints a header.
func (o *Output) Header(text string) {
	if o.jsonMode {
		return
	}
	fmt.Fprintln(o.out, o.color.Bold(text))
}

// KeyValue prints a key-value pair.
func (o *Output) KeyValue(key, value string) {
	if o.jsonMode {
		return
	}
	fmt.Fprintf(o.out, "  %s: %s\n", o.color.Dim(key), value)
}

// JSON prints data as indented JSON.
func (o *Output) JSON(data any) {
	enc := json.NewEncoder(o.out)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
