// Package observability provides structured logging for batchflow.
//
// Two loggers are exposed: Logger writes machine-readable JSON to the
// rotating log file and is meant for the orchestration internals;
// CLILogger writes human-readable console output for command surfaces.
// Both default to no-ops so library consumers that never call Init get
// silent, safe loggers.
package observability

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Package loggers. Replaced by Init; nop until then.
var (
	Logger    = zap.NewNop()
	CLILogger = zap.NewNop()
)

// Config controls logger construction.
type Config struct {
	// Level is the minimum level for both loggers ("debug", "info",
	// "warn", "error").
	Level string

	// File is the path of the rotating JSON log file. Empty disables
	// file logging; Logger then shares the console sink.
	File string

	// Verbose lowers the console level to debug regardless of Level.
	Verbose bool

	// Quiet raises the console level to warn. Verbose wins if both set.
	Quiet bool
}

// Init builds the package loggers from cfg. Safe to call more than
// once; later calls replace the loggers.
func Init(cfg Config) error {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return err
	}

	consoleLevel := level
	if cfg.Quiet && consoleLevel < zapcore.WarnLevel {
		consoleLevel = zapcore.WarnLevel
	}
	if cfg.Verbose {
		consoleLevel = zapcore.DebugLevel
	}

	consoleEnc := zap.NewDevelopmentEncoderConfig()
	consoleEnc.EncodeLevel = zapcore.CapitalColorLevelEncoder
	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(consoleEnc),
		zapcore.Lock(zapcore.AddSync(os.Stderr)),
		consoleLevel,
	)
	CLILogger = zap.New(consoleCore)

	if cfg.File == "" {
		Logger = CLILogger
		return nil
	}

	fileSink := zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    50, // megabytes
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	})
	fileCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		fileSink,
		level,
	)
	Logger = zap.New(fileCore, zap.AddCaller())

	return nil
}

// Sync flushes both loggers. Errors from syncing console streams are
// expected on some platforms and ignored.
func Sync() {
	_ = Logger.Sync()
	_ = CLILogger.Sync()
}

func parseLevel(s string) (zapcore.Level, error) {
	if s == "" {
		return zapcore.InfoLevel, nil
	}
	switch strings.ToLower(s) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
}
