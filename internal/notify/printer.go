package notify

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
)

// ColorMode selects whether the printer emits ANSI colors.
type ColorMode int

const (
	ColorAuto ColorMode = iota
	ColorAlways
	ColorNever
)

// ParseColorMode parses "auto", "always" or "never".
func ParseColorMode(s string) (ColorMode, error) {
	switch s {
	case "", "auto":
		return ColorAuto, nil
	case "always":
		return ColorAlways, nil
	case "never":
		return ColorNever, nil
	default:
		return ColorAuto, fmt.Errorf("invalid color mode %q: must be auto, always, or never", s)
	}
}

// ResolveColors decides whether to colorize output for the given mode.
// In auto mode NO_COLOR and TERM=dumb disable colors.
func ResolveColors(mode ColorMode) bool {
	switch mode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	default:
		if _, ok := os.LookupEnv("NO_COLOR"); ok {
			return false
		}
		if os.Getenv("TERM") == "dumb" {
			return false
		}
		return !color.NoColor
	}
}

// Printer writes notifications to a terminal stream, one line each.
// In quiet mode only errors are printed.
type Printer struct {
	mu        sync.Mutex
	w         io.Writer
	useColors bool
	quiet     bool
}

// NewPrinter returns a printer writing to w.
func NewPrinter(w io.Writer, mode ColorMode, quiet bool) *Printer {
	return &Printer{w: w, useColors: ResolveColors(mode), quiet: quiet}
}

// Notify implements Sink.
func (p *Printer) Notify(n Notification) {
	if p.quiet && n.Kind != Error {
		return
	}

	msg := n.Message
	if n.Title != "" {
		msg = n.Title + ": " + msg
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.useColors {
		fmt.Fprintf(p.w, "%s %s\n", plainTag(n.Kind), msg)
		return
	}
	c, mark := style(n.Kind)
	c.Fprintf(p.w, "%s %s\n", mark, msg)
}

func plainTag(k Kind) string {
	switch k {
	case Success:
		return "[OK]"
	case Error:
		return "[ERROR]"
	case Warning:
		return "[WARN]"
	default:
		return "[INFO]"
	}
}

func style(k Kind) (*color.Color, string) {
	switch k {
	case Success:
		return color.New(color.FgGreen), "✓"
	case Error:
		return color.New(color.FgRed), "✗"
	case Warning:
		return color.New(color.FgYellow), "⚠"
	default:
		return color.New(color.FgCyan), "•"
	}
}
