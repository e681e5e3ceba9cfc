// Package logger wraps zerolog with context-carried fields so every entry
// written while serving a lane operation carries the lane, request and
// transaction it belongs to.
package logger

import (
	"context"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/angelmondragon/lanecalc/pkg/env"
	pkgerrors "github.com/angelmondragon/lanecalc/pkg/errors"
)

// Field keys shared by every lanecalc service.
const (
	FieldService       = "service"
	FieldLaneID        = "lane_id"
	FieldRequestID     = "request_id"
	FieldTransactionID = "transaction_id"
	FieldOperation     = "operation"
	FieldCode          = "code"
	FieldStack         = "stack"
)

// Options configures the structured logger. LOG_FORMAT=console switches to
// the human readable writer; NO_COLOR disables its colors.
type Options struct {
	ServiceName string
	Level       zerolog.Level
	WarnStack   bool
	Output      io.Writer
}

type Logger struct {
	base      zerolog.Logger
	warnStack bool
}

func New(opts Options) *Logger {
	if opts.Level == zerolog.NoLevel {
		opts.Level = zerolog.InfoLevel
	}
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	if env.Get("LOG_FORMAT", "json") == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05", NoColor: env.Bool("NO_COLOR", false)}
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano

	return &Logger{
		base:      zerolog.New(out).Level(opts.Level).With().Timestamp().Str(FieldService, opts.ServiceName).Logger(),
		warnStack: opts.WarnStack,
	}
}

// Nop returns a logger that discards every entry.
func Nop() *Logger {
	return &Logger{base: zerolog.Nop()}
}

// ParseLevel maps a config string to a level, defaulting to info.
func ParseLevel(value string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(value)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// from returns the entry stored in ctx by one of the With helpers, falling
// back to the base logger.
func (l *Logger) from(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if entry := zerolog.Ctx(ctx); entry.GetLevel() != zerolog.Disabled {
			return entry
		}
	}
	return &l.base
}

func (l *Logger) with(ctx context.Context, build func(zerolog.Context) zerolog.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return build(l.from(ctx).With()).Logger().WithContext(ctx)
}

func (l *Logger) WithField(ctx context.Context, key string, value any) context.Context {
	return l.with(ctx, func(c zerolog.Context) zerolog.Context { return c.Interface(key, value) })
}

func (l *Logger) WithFields(ctx context.Context, fields map[string]any) context.Context {
	return l.with(ctx, func(c zerolog.Context) zerolog.Context { return c.Fields(fields) })
}

func (l *Logger) WithRequestID(ctx context.Context, requestID string) context.Context {
	return l.with(ctx, func(c zerolog.Context) zerolog.Context { return c.Str(FieldRequestID, requestID) })
}

func (l *Logger) WithLaneID(ctx context.Context, laneID string) context.Context {
	return l.with(ctx, func(c zerolog.Context) zerolog.Context { return c.Str(FieldLaneID, laneID) })
}

func (l *Logger) WithTransactionID(ctx context.Context, transactionID string) context.Context {
	return l.with(ctx, func(c zerolog.Context) zerolog.Context { return c.Str(FieldTransactionID, transactionID) })
}

func (l *Logger) WithOperation(ctx context.Context, operation string) context.Context {
	return l.with(ctx, func(c zerolog.Context) zerolog.Context { return c.Str(FieldOperation, operation) })
}

func (l *Logger) Debug(ctx context.Context, msg string) {
	l.from(ctx).Debug().Msg(msg)
}

func (l *Logger) Info(ctx context.Context, msg string) {
	l.from(ctx).Info().Msg(msg)
}

func (l *Logger) Warn(ctx context.Context, msg string) {
	event := l.from(ctx).Warn()
	if l.warnStack {
		event = event.Str(FieldStack, stackTrace())
	}
	event.Msg(msg)
}

// Error logs err with its error code when it carries one. Coded errors that
// are not fatal are expected business outcomes and are logged without a stack.
func (l *Logger) Error(ctx context.Context, msg string, err error) {
	event := l.from(ctx).Error().Err(err)
	typed := pkgerrors.As(err)
	if typed != nil {
		event = event.Str(FieldCode, string(typed.Code()))
	}
	if typed == nil || pkgerrors.IsFatal(err) {
		event = event.Str(FieldStack, stackTrace())
	}
	event.Msg(msg)
}

func stackTrace() string {
	return strings.TrimSpace(string(debug.Stack()))
}
