package nutrilens_test

import (
	"testing"

	"github.com/anantham/nutrilens"
	"go.uber.org/zap/zapcore"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"debug", zapcore.DebugLevel, false},
		{"INFO", zapcore.InfoLevel, false},
		{" warn ", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"verbose", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := nutrilens.ParseLogLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLogLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewLogger_EmptyLevelIsNop(t *testing.T) {
	logger, err := nutrilens.NewLogger("")
	if err != nil {
		t.Fatalf("NewLogger(\"\") error: %v", err)
	}
	if logger.Core().Enabled(zapcore.ErrorLevel) {
		t.Error("empty level logger is enabled, want no-op")
	}
}

func TestNewLogger_RespectsLevel(t *testing.T) {
	logger, err := nutrilens.NewLogger("warn")
	if err != nil {
		t.Fatalf("NewLogger(warn) error: %v", err)
	}
	if logger.Core().Enabled(zapcore.InfoLevel) {
		t.Error("info enabled at warn level")
	}
	if !logger.Core().Enabled(zapcore.WarnLevel) {
		t.Error("warn disabled at warn level")
	}
}

func TestNewLogger_UnknownLevel(t *testing.T) {
	if _, err := nutrilens.NewLogger("loud"); err == nil {
		t.Error("NewLogger(loud) returned nil error")
	}
}
