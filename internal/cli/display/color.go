// Package display renders calendar events for the terminal.
package display

import (
	"os"
	"strings"
	"sync"

	"github.com/muesli/termenv"
)

// Colorizer applies terminal colors when the output supports them.
type Colorizer struct {
	profile  termenv.Profile
	disabled bool
}

var (
	defaultColorizer *Colorizer
	colorizerOnce    sync.Once
)

// DefaultColorizer returns the process-wide colorizer, honoring NO_COLOR
// and TERM=dumb.
func DefaultColorizer() *Colorizer {
	colorizerOnce.Do(func() {
		defaultColorizer = NewColorizer(ColorEnabled())
	})
	return defaultColorizer
}

// ColorEnabled reports whether the environment allows colored output.
func ColorEnabled() bool {
	return os.Getenv("NO_COLOR") == "" && os.Getenv("TERM") != "dumb"
}

// NewColorizer creates a colorizer for the detected terminal profile.
func NewColorizer(enabled bool) *Colorizer {
	profile := termenv.ColorProfile()
	if enabled && profile == termenv.Ascii {
		// Redirected output still gets basic colors when asked for.
		profile = termenv.ANSI
	}
	return &Colorizer{
		profile:  profile,
		disabled: !enabled,
	}
}

var namedColors = map[string]string{
	"red":    "#FF5555",
	"green":  "#50FA7B",
	"yellow": "#F1FA8C",
	"blue":   "#6272A4",
	"cyan":   "#8BE9FD",
	"gray":   "#6272A4",
	"orange": "#FFB86C",
	"purple": "#BD93F9",
}

func (c *Colorizer) resolveColor(color string) termenv.Color {
	color = strings.ToLower(color)
	if hex, ok := namedColors[color]; ok {
		return c.profile.Color(hex)
	}
	return c.profile.Color(color)
}

// Color applies a foreground color, by name or hex code, to text.
func (c *Colorizer) Color(text, color string) string {
	if c.disabled || color == "" {
		return text
	}
	col := c.resolveColor(color)
	if col == nil {
		return text
	}
	return termenv.String(text).Foreground(col).String()
}

// Bold makes text bold.
func (c *Colorizer) Bold(text string) string {
	if c.disabled {
		return text
	}
	return termenv.String(text).Bold().String()
}

// Dim makes text dimmed.
func (c *Colorizer) Dim(text string) string {
	if c.disabled {
		return text
	}
	return termenv.String(text).Faint().String()
}

// IsDisabled returns whether colors are disabled.
func (c *Colorizer) IsDisabled() bool {
	return c.disabled
}
