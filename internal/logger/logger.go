// Package logger provides the package-level structured logger used across
// the proxy. It wraps log/slog with a colorized text handler and the
// operation's verbosity scale.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/mattn/go-isatty"
)

// Verbosity mirrors the CLI's -q/-v/-vv/-vvv scale.
type Verbosity int

const (
	VerbosityQuiet     Verbosity = -1
	VerbosityDefault   Verbosity = 0
	VerbosityRegion    Verbosity = 1
	VerbosityBlock     Verbosity = 2
	VerbosityEveryTry  Verbosity = 3
)

// Config configures the global logger.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // text, json
	Output string // stdout, stderr, or a file path
}

var (
	currentLevel  atomic.Int32
	currentFormat atomic.Value // "text" or "json"
	currentVerb   atomic.Int32

	mu       sync.RWMutex
	output   io.Writer = os.Stdout
	useColor bool
	slogger  *slog.Logger
)

func init() {
	currentLevel.Store(int32(slogLevelInfo))
	currentFormat.Store("text")
	currentVerb.Store(int32(VerbosityDefault))
	useColor = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	reconfigure()
}

// slog level aliases kept local so callers never need to import log/slog.
const (
	slogLevelDebug = slog.Level(-4)
	slogLevelInfo  = slog.Level(0)
	slogLevelWarn  = slog.Level(4)
	slogLevelError = slog.Level(8)
)

func reconfigure() {
	mu.Lock()
	defer mu.Unlock()

	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.Level(currentLevel.Load()))
	opts := &slog.HandlerOptions{Level: levelVar}

	format, _ := currentFormat.Load().(string)
	var h slog.Handler
	if format == "json" {
		h = slog.NewJSONHandler(output, opts)
	} else {
		h = newColorTextHandler(output, opts, useColor)
	}
	slogger = slog.New(h)
}

// Init configures the global logger from a Config. Call once at startup.
func Init(cfg Config) error {
	mu.Lock()
	switch strings.ToLower(cfg.Output) {
	case "", "stdout":
		output = os.Stdout
		useColor = isatty.IsTerminal(os.Stdout.Fd())
	case "stderr":
		output = os.Stderr
		useColor = isatty.IsTerminal(os.Stderr.Fd())
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			mu.Unlock()
			return fmt.Errorf("open log output %q: %w", cfg.Output, err)
		}
		output = f
		useColor = false
	}
	mu.Unlock()

	if cfg.Level != "" {
		SetLevel(cfg.Level)
	}
	if cfg.Format != "" {
		SetFormat(cfg.Format)
	}
	return nil
}

// SetLevel sets the minimum emitted slog level.
func SetLevel(level string) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		currentLevel.Store(int32(slogLevelDebug))
	case "INFO":
		currentLevel.Store(int32(slogLevelInfo))
	case "WARN":
		currentLevel.Store(int32(slogLevelWarn))
	case "ERROR":
		currentLevel.Store(int32(slogLevelError))
	default:
		return
	}
	reconfigure()
}

// SetFormat sets text or json output.
func SetFormat(format string) {
	format = strings.ToLower(format)
	if format != "text" && format != "json" {
		return
	}
	currentFormat.Store(format)
	reconfigure()
}

// SetVerbosity sets the CLI verbosity scale, which RetryingRpc reads
// (independently of the slog level) to decide whether a first failed
// attempt is logged. No per-block or per-region progress lines exist.
func SetVerbosity(v Verbosity) {
	currentVerb.Store(int32(v))
}

// CurrentVerbosity returns the active verbosity.
func CurrentVerbosity() Verbosity {
	return Verbosity(currentVerb.Load())
}

func get() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return slogger
}

func Debug(msg string, args ...any) { get().Debug(msg, args...) }
func Info(msg string, args ...any)  { get().Info(msg, args...) }
func Warn(msg string, args ...any)  { get().Warn(msg, args...) }
func Error(msg string, args ...any) { get().Error(msg, args...) }

func DebugCtx(ctx context.Context, msg string, args ...any) { get().DebugContext(ctx, msg, args...) }
func InfoCtx(ctx context.Context, msg string, args ...any)  { get().InfoContext(ctx, msg, args...) }
func WarnCtx(ctx context.Context, msg string, args ...any)  { get().WarnContext(ctx, msg, args...) }
func ErrorCtx(ctx context.Context, msg string, args ...any) { get().ErrorContext(ctx, msg, args...) }
