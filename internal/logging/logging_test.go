package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		" WARN ":  zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
	}

	for input, expected := range tests {
		if got := parseLevel(input); got != expected {
			t.Fatalf("parseLevel(%q): expected %v, got %v", input, expected, got)
		}
	}
}

func TestNewBuildsBothFormats(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		logger, err := New("info", format)
		if err != nil {
			t.Fatalf("new logger (%s): %v", format, err)
		}
		if !logger.Core().Enabled(zapcore.InfoLevel) {
			t.Fatalf("expected info level enabled for %s logger", format)
		}
		if logger.Core().Enabled(zapcore.DebugLevel) {
			t.Fatalf("did not expect debug level enabled for %s logger", format)
		}
	}
}
