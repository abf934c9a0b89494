package internal

import (
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// observeLogs routes the package logger into an observer for one test
func observeLogs(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	original := Logger()
	core, logs := observer.New(atom)
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(original) })
	return logs
}

func TestSetLogLevel(t *testing.T) {
	originalLevel := logLevel
	defer SetLogLevel(originalLevel)

	SetLogLevel(LogLevelDebug)
	if logLevel != LogLevelDebug {
		t.Errorf("SetLogLevel() logLevel = %v, want LogLevelDebug", logLevel)
	}
	if atom.Level() != zapcore.DebugLevel {
		t.Errorf("zap level = %v, want debug", atom.Level())
	}

	SetLogLevel(LogLevelError)
	if logLevel != LogLevelError {
		t.Errorf("SetLogLevel() logLevel = %v, want LogLevelError", logLevel)
	}
	if atom.Level() != zapcore.ErrorLevel {
		t.Errorf("zap level = %v, want error", atom.Level())
	}
}

func TestSetVerbose(t *testing.T) {
	originalLevel := logLevel
	defer SetLogLevel(originalLevel)

	SetVerbose(true)
	if logLevel != LogLevelDebug {
		t.Errorf("SetVerbose(true) logLevel = %v, want LogLevelDebug", logLevel)
	}

	SetVerbose(false)
	if logLevel != LogLevelInfo {
		t.Errorf("SetVerbose(false) logLevel = %v, want LogLevelInfo", logLevel)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{"error", LogLevelError, false},
		{"warn", LogLevelWarn, false},
		{"warning", LogLevelWarn, false},
		{"info", LogLevelInfo, false},
		{"", LogLevelInfo, false},
		{"debug", LogLevelDebug, false},
		{"loud", LogLevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLogLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLogLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLogFunctions(t *testing.T) {
	originalLevel := logLevel
	defer SetLogLevel(originalLevel)
	SetLogLevel(LogLevelInfo)

	logs := observeLogs(t)

	LogError("test error %d", 1)
	LogWarn("test warning")
	LogInfo("test info")
	LogDebug("test debug")

	entries := logs.All()
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3 (debug filtered out)", len(entries))
	}
	if entries[0].Message != "test error 1" || entries[0].Level != zapcore.ErrorLevel {
		t.Errorf("first entry = %q at %v", entries[0].Message, entries[0].Level)
	}
	if entries[1].Level != zapcore.WarnLevel {
		t.Errorf("second entry level = %v, want warn", entries[1].Level)
	}
}

func TestLogDebugWhenVerbose(t *testing.T) {
	originalLevel := logLevel
	defer SetLogLevel(originalLevel)
	SetVerbose(true)

	logs := observeLogs(t)
	LogDebug("visible")

	if logs.FilterMessage("visible").Len() != 1 {
		t.Error("debug entry should be logged in verbose mode")
	}
}

func TestConfigureLogOutput(t *testing.T) {
	original := Logger()
	defer SetLogger(original)

	path := filepath.Join(t.TempDir(), "logs", "jarvis.log")
	if err := ConfigureLogOutput("json", path); err != nil {
		t.Fatalf("ConfigureLogOutput() error = %v", err)
	}
	LogInfo("to file")
	SyncLogger()
}

func TestLogLevels(t *testing.T) {
	if LogLevelError >= LogLevelWarn {
		t.Error("LogLevelError should be less than LogLevelWarn")
	}
	if LogLevelWarn >= LogLevelInfo {
		t.Error("LogLevelWarn should be less than LogLevelInfo")
	}
	if LogLevelInfo >= LogLevelDebug {
		t.Error("LogLevelInfo should be less than LogLevelDebug")
	}
}
