package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/fatih/color"
)

// colorTextHandler implements slog.Handler with colorized, single-line text
// output, using fatih/color instead of hand-rolled ANSI escapes.
type colorTextHandler struct {
	opts     *slog.HandlerOptions
	w        io.Writer
	mu       *sync.Mutex
	attrs    []slog.Attr
	useColor bool
}

func newColorTextHandler(w io.Writer, opts *slog.HandlerOptions, useColor bool) *colorTextHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &colorTextHandler{opts: opts, w: w, mu: &sync.Mutex{}, useColor: useColor}
}

func (h *colorTextHandler) Enabled(_ context.Context, level slog.Level) bool {
	min := slog.LevelInfo
	if h.opts.Level != nil {
		min = h.opts.Level.Level()
	}
	return level >= min
}

func (h *colorTextHandler) Handle(_ context.Context, r slog.Record) error {
	ts := r.Time.Format(time.RFC3339)
	levelStr := h.formatLevel(r.Level)

	buf := fmt.Appendf(nil, "%s [%s] %s", ts, levelStr, r.Message)
	for _, a := range h.attrs {
		buf = appendAttr(buf, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		buf = appendAttr(buf, a)
		return true
	})
	buf = append(buf, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf)
	return err
}

func (h *colorTextHandler) formatLevel(level slog.Level) string {
	label := level.String()
	if !h.useColor {
		return label
	}
	switch {
	case level >= slog.LevelError:
		return color.New(color.FgRed, color.Bold).Sprint(label)
	case level >= slog.LevelWarn:
		return color.New(color.FgYellow).Sprint(label)
	case level >= slog.LevelInfo:
		return color.New(color.FgCyan).Sprint(label)
	default:
		return color.New(color.FgHiBlack).Sprint(label)
	}
}

func (h *colorTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h2 := *h
	h2.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &h2
}

func (h *colorTextHandler) WithGroup(_ string) slog.Handler {
	return h
}

func appendAttr(buf []byte, a slog.Attr) []byte {
	return fmt.Appendf(buf, " %s=%v", a.Key, a.Value.Any())
}
