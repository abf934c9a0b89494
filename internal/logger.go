package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel represents the logging level
type LogLevel int

const (
	LogLevelError LogLevel = iota
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
)

var (
	logLevel = LogLevelInfo
	logMu    sync.RWMutex
	atom     = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	logger   = newLogger(atom, "console", "stderr")
	sugar    = logger.Sugar()
)

func newLogger(level zap.AtomicLevel, encoding string, output string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = level
	cfg.Encoding = encoding
	cfg.DisableStacktrace = true
	cfg.Sampling = nil
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if encoding == "console" {
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	cfg.OutputPaths = []string{output}
	cfg.ErrorOutputPaths = []string{"stderr"}

	l, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return l
}

func toZapLevel(level LogLevel) zapcore.Level {
	switch level {
	case LogLevelError:
		return zapcore.ErrorLevel
	case LogLevelWarn:
		return zapcore.WarnLevel
	case LogLevelDebug:
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}

// ParseLogLevel maps "error", "warn", "info", "debug" to a LogLevel
func ParseLogLevel(s string) (LogLevel, error) {
	switch s {
	case "error":
		return LogLevelError, nil
	case "warn", "warning":
		return LogLevelWarn, nil
	case "info", "":
		return LogLevelInfo, nil
	case "debug":
		return LogLevelDebug, nil
	default:
		return LogLevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// SetLogLevel sets the global log level
func SetLogLevel(level LogLevel) {
	logMu.Lock()
	logLevel = level
	logMu.Unlock()
	atom.SetLevel(toZapLevel(level))
}

// SetVerbose enables verbose (debug) logging
func SetVerbose(verbose bool) {
	if verbose {
		SetLogLevel(LogLevelDebug)
	} else {
		SetLogLevel(LogLevelInfo)
	}
}

// ConfigureLogOutput points the logger at a file (or "stderr") with the given encoding.
// The console uses this to keep log lines off the terminal it draws on.
func ConfigureLogOutput(encoding, output string) error {
	if encoding == "" {
		encoding = "console"
	}
	if output == "" {
		output = "stderr"
	}
	if output != "stderr" && output != "stdout" {
		if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
	}
	SetLogger(newLogger(atom, encoding, output))
	return nil
}

// SetLogger replaces the underlying zap logger (tests use zap.NewNop or an observer)
func SetLogger(l *zap.Logger) {
	logMu.Lock()
	defer logMu.Unlock()
	_ = logger.Sync()
	logger = l
	sugar = l.Sugar()
}

// Logger returns the structured logger
func Logger() *zap.Logger {
	logMu.RLock()
	defer logMu.RUnlock()
	return logger
}

// SyncLogger flushes buffered log entries
func SyncLogger() {
	_ = Logger().Sync()
}

func currentSugar() *zap.SugaredLogger {
	logMu.RLock()
	defer logMu.RUnlock()
	return sugar
}

// LogError logs an error message
func LogError(format string, args ...interface{}) {
	currentSugar().Errorf(format, args...)
}

// LogWarn logs a warning message
func LogWarn(format string, args ...interface{}) {
	currentSugar().Warnf(format, args...)
}

// LogInfo logs an info message
func LogInfo(format string, args ...interface{}) {
	currentSugar().Infof(format, args...)
}

// LogDebug logs a debug message
func LogDebug(format string, args ...interface{}) {
	currentSugar().Debugf(format, args...)
}
