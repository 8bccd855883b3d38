package logging

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected LogLevel
		ok       bool
	}{
		{name: "Debug", input: "debug", expected: LevelDebug, ok: true},
		{name: "Info", input: "info", expected: LevelInfo, ok: true},
		{name: "Warn", input: "warn", expected: LevelWarn, ok: true},
		{name: "Warning alias", input: "warning", expected: LevelWarn, ok: true},
		{name: "Error", input: "error", expected: LevelError, ok: true},
		{name: "Case insensitive", input: "DEBUG", expected: LevelDebug, ok: true},
		{name: "Surrounding whitespace", input: " error ", expected: LevelError, ok: true},
		{name: "Unknown falls back to info", input: "verbose", expected: LevelInfo, ok: false},
		{name: "Empty falls back to info", input: "", expected: LevelInfo, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseLevel(tt.input)
			if got != tt.expected || ok != tt.ok {
				t.Errorf("ParseLevel(%q) = (%v, %v), want (%v, %v)", tt.input, got, ok, tt.expected, tt.ok)
			}
		})
	}
}

func TestLevelFromEnv(t *testing.T) {
	t.Run("DEBUG overrides LOG_LEVEL", func(t *testing.T) {
		t.Setenv("DEBUG", "true")
		t.Setenv("LOG_LEVEL", "error")
		if got := levelFromEnv(); got != LevelDebug {
			t.Errorf("levelFromEnv() = %v, want debug", got)
		}
	})

	t.Run("LOG_LEVEL used when DEBUG unset", func(t *testing.T) {
		t.Setenv("DEBUG", "")
		t.Setenv("LOG_LEVEL", "warn")
		if got := levelFromEnv(); got != LevelWarn {
			t.Errorf("levelFromEnv() = %v, want warn", got)
		}
	})

	t.Run("DEBUG=false is ignored", func(t *testing.T) {
		t.Setenv("DEBUG", "false")
		t.Setenv("LOG_LEVEL", "")
		if got := levelFromEnv(); got != LevelInfo {
			t.Errorf("levelFromEnv() = %v, want info", got)
		}
	})
}

func TestLogLevelConstants(t *testing.T) {
	levels := []LogLevel{LevelDebug, LevelInfo, LevelWarn, LevelError}
	for i := 0; i < len(levels)-1; i++ {
		if levels[i] >= levels[i+1] {
			t.Errorf("Log levels should be in ascending order: %v >= %v", levels[i], levels[i+1])
		}
	}
}

// captureLog redirects the standard logger for the duration of fn.
func captureLog(t *testing.T, fn func()) string {
	t.Helper()
	var buf bytes.Buffer
	prevOut, prevFlags := log.Writer(), log.Flags()
	log.SetOutput(&buf)
	log.SetFlags(0)
	defer func() {
		log.SetOutput(prevOut)
		log.SetFlags(prevFlags)
	}()
	fn()
	return buf.String()
}

func TestSetLevelFilters(t *testing.T) {
	prev := GetLevel()
	defer SetLevel(prev)

	SetLevel(LevelWarn)
	out := captureLog(t, func() {
		Debug("hidden debug")
		Info("hidden info")
		Warn("shown warn")
		Error("shown error")
	})

	if strings.Contains(out, "hidden") {
		t.Errorf("messages below warn were logged: %q", out)
	}
	if !strings.Contains(out, "[WARN] shown warn") {
		t.Errorf("warn message missing: %q", out)
	}
	if !strings.Contains(out, "[ERROR] shown error") {
		t.Errorf("error message missing: %q", out)
	}
}

func TestComponentLogger(t *testing.T) {
	prev := GetLevel()
	defer SetLevel(prev)
	SetLevel(LevelDebug)

	l := For("vlc")
	if l.Component() != "vlc" {
		t.Errorf("Component() = %q, want vlc", l.Component())
	}

	out := captureLog(t, func() {
		l.Debug("> %s", "playlist")
		l.Info("connected to %s", "VLC 3.0.18")
	})

	if !strings.Contains(out, "[DEBUG] [vlc] > playlist") {
		t.Errorf("debug line missing component prefix: %q", out)
	}
	if !strings.Contains(out, "[INFO] [vlc] connected to VLC 3.0.18") {
		t.Errorf("info line missing component prefix: %q", out)
	}
}

func TestPrintfAndPrintln(t *testing.T) {
	prev := GetLevel()
	defer SetLevel(prev)
	SetLevel(LevelError)

	out := captureLog(t, func() {
		Printf("always %d", 1)
		Println("always", 2)
	})

	if !strings.Contains(out, "always 1") || !strings.Contains(out, "always 2") {
		t.Errorf("pass-through output missing: %q", out)
	}
}

func TestLogLevelString(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{LevelDebug, "debug"},
		{LevelInfo, "info"},
		{LevelWarn, "warn"},
		{LevelError, "error"},
		{LogLevel(99), "unknown(99)"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			got := tt.level.String()
			if got != tt.expected {
				t.Errorf("LogLevel.String() = %q, want %q", got, tt.expected)
			}
		})
	}
}
