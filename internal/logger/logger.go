// Package logger wraps the zap logger used across the server.
package logger

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger holds the process-wide zap logger. Log is a no-op logger until Init
// is called.
type Logger struct {
	Log *zap.Logger
}

// New returns a Logger with a no-op zap logger.
func New() *Logger {
	return &Logger{Log: zap.NewNop()}
}

// Init builds a JSON logger at the given level ("debug", "info", "warn",
// "error"; case-insensitive). Output goes to stdout and, when file is set, to
// a size-rotated file as well.
func (l *Logger) Init(level string, file string) error {
	lvl, err := zap.ParseAtomicLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("parse log level %q: %w", level, err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encCfg)

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), lvl),
	}
	if file != "" {
		rotator := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    10, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(rotator), lvl))
	}

	l.Log = zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	return nil
}
