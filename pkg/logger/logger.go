// Package logger is a typed-field facade over zerolog. Error lines can also
// be folded into periodic digests and shipped to an alerts topic.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	Level  string // debug, info, warn, error
	Format string // json or console
	Output string // stdout, stderr or a file path
}

type Logger struct {
	zl zerolog.Logger
	// shared by every child, so a digest attached later reaches them too
	digest *atomic.Pointer[Digest]
}

func New(cfg *Config) (*Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", cfg.Level, err)
	}

	var out io.Writer
	switch cfg.Output {
	case "", "stdout":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		out = f
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}

	zl := zerolog.New(out).Level(level).With().Timestamp().CallerWithSkipFrameCount(3).Logger()
	return &Logger{zl: zl, digest: new(atomic.Pointer[Digest])}, nil
}

// Nop discards everything.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop(), digest: new(atomic.Pointer[Digest])}
}

// With returns a child that adds fields to every line.
func (l *Logger) With(fields ...Field) *Logger {
	ctx := l.zl.With()
	for _, f := range fields {
		ctx = f.context(ctx)
	}
	return &Logger{zl: ctx.Logger(), digest: l.digest}
}

func (l *Logger) Debug(msg string, fields ...Field) { write(l.zl.Debug(), msg, fields) }

func (l *Logger) Info(msg string, fields ...Field) { write(l.zl.Info(), msg, fields) }

func (l *Logger) Warn(msg string, fields ...Field) { write(l.zl.Warn(), msg, fields) }

// Error also feeds the attached digest, if any.
func (l *Logger) Error(msg string, fields ...Field) {
	write(l.zl.Error(), msg, fields)
	if d := l.digest.Load(); d != nil {
		d.add(msg, fields, caller(1))
	}
}

// AttachDigest starts a digest for this logger and all of its children,
// closing any previous one.
func (l *Logger) AttachDigest(cfg DigestConfig) {
	if old := l.digest.Swap(NewDigest(cfg)); old != nil {
		old.Close()
	}
}

// DetachDigest flushes and stops the digest.
func (l *Logger) DetachDigest() {
	if old := l.digest.Swap(nil); old != nil {
		old.Close()
	}
}

func write(e *zerolog.Event, msg string, fields []Field) {
	for _, f := range fields {
		f.event(e)
	}
	e.Msg(msg)
}

func caller(skip int) string {
	_, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return "unknown"
	}
	return fmt.Sprintf("%s/%s:%d", filepath.Base(filepath.Dir(file)), filepath.Base(file), line)
}

type fieldKind uint8

const (
	kindString fieldKind = iota
	kindInt
	kindFloat
	kindTime
	kindError
)

// Field is one typed key/value pair.
type Field struct {
	Key  string
	kind fieldKind
	str  string
	num  int64
	flt  float64
	tm   time.Time
	err  error
}

func String(key, value string) Field { return Field{Key: key, kind: kindString, str: value} }

func Int(key string, value int) Field { return Field{Key: key, kind: kindInt, num: int64(value)} }

func Int64(key string, value int64) Field { return Field{Key: key, kind: kindInt, num: value} }

func Float64(key string, value float64) Field { return Field{Key: key, kind: kindFloat, flt: value} }

func Time(key string, value time.Time) Field { return Field{Key: key, kind: kindTime, tm: value} }

func Error(err error) Field { return Field{Key: zerolog.ErrorFieldName, kind: kindError, err: err} }

// Duration logs whole milliseconds.
func Duration(key string, value time.Duration) Field { return Int64(key, value.Milliseconds()) }

// Value is the field as it appears in a digest entry.
func (f Field) Value() any {
	switch f.kind {
	case kindInt:
		return f.num
	case kindFloat:
		return f.flt
	case kindTime:
		return f.tm.Format(time.RFC3339)
	case kindError:
		if f.err == nil {
			return nil
		}
		return f.err.Error()
	}
	return f.str
}

func (f Field) event(e *zerolog.Event) {
	switch f.kind {
	case kindInt:
		e.Int64(f.Key, f.num)
	case kindFloat:
		e.Float64(f.Key, f.flt)
	case kindTime:
		e.Time(f.Key, f.tm)
	case kindError:
		e.AnErr(f.Key, f.err)
	default:
		e.Str(f.Key, f.str)
	}
}

func (f Field) context(c zerolog.Context) zerolog.Context {
	switch f.kind {
	case kindInt:
		return c.Int64(f.Key, f.num)
	case kindFloat:
		return c.Float64(f.Key, f.flt)
	case kindTime:
		return c.Time(f.Key, f.tm)
	case kindError:
		return c.AnErr(f.Key, f.err)
	}
	return c.Str(f.Key, f.str)
}
