package commands

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogFlags configures the process logger shared by long-running commands.
type LogFlags struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	JSON       bool
}

// NewLogger builds a zap logger writing to stderr, or to a size-rotated
// file when File is set.
func NewLogger(flags LogFlags) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(flags.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log-level '%s': %w", flags.Level, err)
	}

	var sink io.Writer = os.Stderr
	if flags.File != "" {
		sink = &lumberjack.Logger{
			Filename:   flags.File,
			MaxSize:    flags.MaxSizeMB,
			MaxBackups: flags.MaxBackups,
			Compress:   true,
		}
	}
	return newLogger(sink, level, flags.JSON || flags.File != ""), nil
}

func newLogger(w io.Writer, level zapcore.Level, structured bool) *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	if structured {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}
	core := zapcore.NewCore(enc, zapcore.AddSync(w), level)
	return zap.New(core)
}
