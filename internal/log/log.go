// Package log wraps go.uber.org/zap behind a package-level logger,
// following the teacher-adjacent pattern in packetd-packetd/logger:
// a swappable std logger, optional rotation via lumberjack. It is called
// from cmd/brokerd (startup, accept, negotiation failure, close), the
// admin server and the dispatcher's frame-handling failure path; the
// connection/session/link state machines do not log.
package log

import (
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the package logger. Mirrors the config surface
// internal/config reads from YAML.
type Options struct {
	Stdout     bool
	Level      string
	Filename   string
	MaxSizeMB  int
	MaxAgeDays int
	MaxBackups int
}

func toZapLevel(l string) zapcore.Level {
	switch l {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// New builds a *zap.Logger from opt, writing to stdout or a rotated
// file depending on Options.Stdout.
func New(opt Options) *zap.Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.UTC().Format("2006-01-02T15:04:05.000Z"))
	}
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoder := zapcore.NewConsoleEncoder(encoderConfig)

	var w zapcore.WriteSyncer
	if opt.Stdout || opt.Filename == "" {
		w = zapcore.AddSync(os.Stdout)
	} else {
		if err := os.MkdirAll(filepath.Dir(opt.Filename), 0o755); err != nil {
			// Logging setup failing is not recoverable for the harness;
			// fall back to stdout rather than panic, since nothing has
			// accepted a connection yet.
			w = zapcore.AddSync(os.Stdout)
		} else {
			w = zapcore.AddSync(&lumberjack.Logger{
				Filename:   opt.Filename,
				MaxSize:    opt.MaxSizeMB,
				MaxAge:     opt.MaxAgeDays,
				MaxBackups: opt.MaxBackups,
				LocalTime:  true,
			})
		}
	}

	core := zapcore.NewCore(encoder, w, toZapLevel(opt.Level))
	return zap.New(core, zap.AddCaller())
}

var std = New(Options{Stdout: true, Level: "info"})

// SetOptions replaces the package-level logger, called once by
// cmd/brokerd after internal/config has loaded.
func SetOptions(opt Options) { std = New(opt) }

// L returns the current package-level logger, for call sites that want
// zap's structured field API directly (e.g. log.L().Info("attach",
// zap.String("link", name))).
func L() *zap.Logger { return std }

func Debug(msg string, fields ...zap.Field) { std.Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { std.Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { std.Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { std.Error(msg, fields...) }
