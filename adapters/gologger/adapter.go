package gologger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	job "github.com/goliatone/go-job"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-billgate/core"
)

const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Resolve uses deterministic precedence provider > logger > nop.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return glog.Resolve(name, provider, logger)
}

// ToJobProvider maps a glog provider to the go-job logger provider contract,
// for hosts that run mirrored gateway commands from a go-job queue.
func ToJobProvider(provider glog.LoggerProvider) job.LoggerProvider {
	if provider == nil {
		return nil
	}
	return job.GoLoggerProvider(provider)
}

func ToJobLogger(logger glog.Logger) job.Logger {
	if logger == nil {
		return nil
	}
	return job.GoLogger(logger)
}

// ResolveForJob resolves like Resolve and also returns the go-job views.
func ResolveForJob(
	name string,
	provider glog.LoggerProvider,
	logger glog.Logger,
) (glog.LoggerProvider, glog.Logger, job.LoggerProvider, job.Logger) {
	resolvedProvider, resolvedLogger := Resolve(name, provider, logger)
	return resolvedProvider, resolvedLogger, ToJobProvider(resolvedProvider), ToJobLogger(resolvedLogger)
}

// New builds a logger for the logging config section. Unknown levels fall back
// to info and unknown formats to console.
func New(cfg core.LoggingConfig, out io.Writer) glog.Logger {
	if out == nil {
		out = os.Stderr
	}
	options := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	var handler slog.Handler
	if strings.EqualFold(strings.TrimSpace(cfg.Format), FormatJSON) {
		handler = slog.NewJSONHandler(out, options)
	} else {
		handler = slog.NewTextHandler(out, options)
	}
	return &Logger{base: slog.New(handler)}
}

// NewProvider returns a provider whose loggers carry a "logger" attribute with
// the requested name.
func NewProvider(cfg core.LoggingConfig, out io.Writer) glog.LoggerProvider {
	return &Provider{root: New(cfg, out).(*Logger)}
}

// levelTrace sits below slog's debug level.
const levelTrace = slog.LevelDebug - 4

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return levelTrace
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "fatal":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type Logger struct {
	base *slog.Logger
	ctx  context.Context
	exit func(int)
}

func (l *Logger) Trace(msg string, args ...any) { l.log(levelTrace, msg, args...) }
func (l *Logger) Debug(msg string, args ...any) { l.log(slog.LevelDebug, msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.log(slog.LevelInfo, msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.log(slog.LevelWarn, msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.log(slog.LevelError, msg, args...) }

// Fatal logs at error level and terminates the process.
func (l *Logger) Fatal(msg string, args ...any) {
	l.log(slog.LevelError, msg, args...)
	exit := l.exit
	if exit == nil {
		exit = os.Exit
	}
	exit(1)
}

func (l *Logger) WithContext(ctx context.Context) glog.Logger {
	return &Logger{base: l.base, ctx: ctx, exit: l.exit}
}

func (l *Logger) named(name string) *Logger {
	name = strings.TrimSpace(name)
	if name == "" {
		return l
	}
	return &Logger{base: l.base.With("logger", name), ctx: l.ctx, exit: l.exit}
}

func (l *Logger) log(level slog.Level, msg string, args ...any) {
	ctx := l.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	l.base.Log(ctx, level, msg, args...)
}

type Provider struct {
	root *Logger
}

func (p *Provider) GetLogger(name string) glog.Logger {
	if p == nil || p.root == nil {
		return glog.Nop()
	}
	return p.root.named(name)
}

var (
	_ glog.Logger         = (*Logger)(nil)
	_ glog.LoggerProvider = (*Provider)(nil)
)
