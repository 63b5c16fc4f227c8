package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

// systemKey is rendered in brackets instead of as key=value.
const systemKey = "system"

// MavenHandler is a slog.Handler that formats logs in Maven-style:
// [LEVEL] [SYSTEM] [HH:MM:SS] message key=value key=value
//
// Attributes added with WithAttrs are rendered once, with the group prefix
// in effect at that point, and reused for every record.
type MavenHandler struct {
	w         io.Writer
	level     slog.Leveler
	mu        *sync.Mutex
	system    string
	useColors bool

	// prefix is the dotted group path for record attributes, e.g. "run."
	prefix string
	// preformatted holds " key=value" pairs from WithAttrs
	preformatted string
}

// NewMavenHandler creates a new Maven-style handler
func NewMavenHandler(w io.Writer, opts *slog.HandlerOptions) *MavenHandler {
	h := &MavenHandler{
		w:         w,
		level:     slog.LevelInfo,
		mu:        &sync.Mutex{},
		useColors: isTerminal(w),
	}
	if opts != nil && opts.Level != nil {
		h.level = opts.Level
	}
	return h
}

// isTerminal checks if the writer is a terminal (for color output)
func isTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return term.IsTerminal(int(f.Fd()))
	}
	return false
}

// Enabled reports whether the handler handles records at the given level.
func (h *MavenHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle formats and writes a log record
func (h *MavenHandler) Handle(_ context.Context, r slog.Record) error {
	var buf strings.Builder

	h.colored(&buf, levelColor(r.Level), "["+levelString(r.Level)+"]")
	if h.system != "" {
		buf.WriteString(" [" + h.system + "]")
	}
	if !r.Time.IsZero() {
		buf.WriteString(" ")
		h.colored(&buf, colorGray, "["+r.Time.Format("15:04:05")+"]")
	}
	buf.WriteString(" ")
	buf.WriteString(r.Message)

	buf.WriteString(h.preformatted)
	r.Attrs(func(a slog.Attr) bool {
		if a.Key != systemKey || h.prefix != "" {
			appendAttr(&buf, h.prefix, a)
		}
		return true
	})
	buf.WriteString("\n")

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, buf.String())
	return err
}

func (h *MavenHandler) colored(buf *strings.Builder, color, s string) {
	if !h.useColors {
		buf.WriteString(s)
		return
	}
	buf.WriteString(color)
	buf.WriteString(s)
	buf.WriteString(colorReset)
}

// appendAttr writes " prefix+key=value", flattening groups into dotted keys.
func appendAttr(buf *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		inner := prefix
		if a.Key != "" {
			inner += a.Key + "."
		}
		for _, sub := range a.Value.Group() {
			appendAttr(buf, inner, sub)
		}
		return
	}

	buf.WriteString(" ")
	buf.WriteString(prefix)
	buf.WriteString(a.Key)
	buf.WriteString("=")
	buf.WriteString(formatValue(a.Value))
}

func formatValue(v slog.Value) string {
	var s string
	switch v.Kind() {
	case slog.KindTime:
		s = v.Time().Format(time.RFC3339)
	case slog.KindDuration:
		s = v.Duration().String()
	default:
		s = v.String()
	}
	if s == "" || strings.ContainsAny(s, " \t\"=") {
		return fmt.Sprintf("%q", s)
	}
	return s
}

func (h *MavenHandler) clone() *MavenHandler {
	c := *h
	return &c
}

// WithAttrs returns a new handler with the given attributes added.
// A top-level "system" attribute sets the bracketed system name.
func (h *MavenHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	c := h.clone()
	var buf strings.Builder
	buf.WriteString(h.preformatted)
	for _, a := range attrs {
		if a.Key == systemKey && h.prefix == "" {
			c.system = a.Value.String()
			continue
		}
		appendAttr(&buf, h.prefix, a)
	}
	c.preformatted = buf.String()
	return c
}

// WithGroup returns a new handler with the given group name added.
// Grouped keys are printed as group.key=value.
func (h *MavenHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := h.clone()
	c.prefix = h.prefix + name + "."
	return c
}

// levelColor returns the ANSI color code for a log level (Maven-style)
func levelColor(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return colorRed
	case level >= slog.LevelWarn:
		return colorYellow
	case level >= slog.LevelInfo:
		return colorCyan
	default:
		return colorGray
	}
}

// levelString returns a short, uppercase string for the log level
func levelString(level slog.Level) string {
	switch level {
	case slog.LevelDebug:
		return "DEBUG"
	case slog.LevelInfo:
		return "INFO"
	case slog.LevelWarn:
		return "WARN"
	case slog.LevelError:
		return "ERROR"
	default:
		return fmt.Sprintf("LEVEL(%d)", level)
	}
}
