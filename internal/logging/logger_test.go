package logging

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestDefaultLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		level     Level
		wantError bool
		wantWarn  bool
		wantInfo  bool
		wantDebug bool
	}{
		{LevelError, true, false, false, false},
		{LevelWarn, true, true, false, false},
		{LevelInfo, true, true, true, false},
		{LevelDebug, true, true, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(&buf, tt.level)

			logger.Errorf("error message")
			logger.Warnf("warn message")
			logger.Infof("info message")
			logger.Debugf("debug message")

			output := buf.String()

			if got := strings.Contains(output, "ERROR "); got != tt.wantError {
				t.Errorf("Error logged: got %v, want %v", got, tt.wantError)
			}
			if got := strings.Contains(output, "WARN "); got != tt.wantWarn {
				t.Errorf("Warn logged: got %v, want %v", got, tt.wantWarn)
			}
			if got := strings.Contains(output, "INFO "); got != tt.wantInfo {
				t.Errorf("Info logged: got %v, want %v", got, tt.wantInfo)
			}
			if got := strings.Contains(output, "DEBUG "); got != tt.wantDebug {
				t.Errorf("Debug logged: got %v, want %v", got, tt.wantDebug)
			}
		})
	}
}

func TestDefaultLogger_Formatted(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, LevelDebug)

	logger.Errorf(NSReader+"error %d", 1)
	logger.Warnf(NSChain+"warn %d", 2)
	logger.Infof("info %d", 3)
	logger.Debugf("debug %d", 4)

	output := buf.String()
	for _, want := range []string{"[reader] error 1", "[chain] warn 2", "info 3", "debug 4"} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
}

func TestDefaultLogger_FatalfCallsHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, LevelError)

	var got string
	logger.SetFatalHandler(func(msg string) { got = msg })
	logger.Fatalf("handle %d released twice", 7)

	if got != "handle 7 released twice" {
		t.Errorf("handler got %q", got)
	}
	if !strings.Contains(buf.String(), "FATAL handle 7 released twice") {
		t.Errorf("fatal message not logged: %q", buf.String())
	}
}

func TestDefaultLogger_Concurrent(t *testing.T) {
	var buf lockedBuffer
	logger := NewLogger(&buf, LevelInfo)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 50 {
				logger.Infof("goroutine %d line %d", i, j)
			}
		}()
	}
	wg.Wait()

	if n := strings.Count(buf.String(), "\n"); n != 400 {
		t.Errorf("got %d lines, want 400", n)
	}
}

func TestParseLevel(t *testing.T) {
	for _, l := range []Level{LevelError, LevelWarn, LevelInfo, LevelDebug} {
		got, err := ParseLevel(l.String())
		if err != nil || got != l {
			t.Errorf("ParseLevel(%q) = %v, %v", l.String(), got, err)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("ParseLevel(loud) should fail")
	}
}

func TestIsNilAndOrDefault(t *testing.T) {
	var typedNil *DefaultLogger
	if !IsNil(nil) {
		t.Error("IsNil(nil) = false")
	}
	if !IsNil(typedNil) {
		t.Error("IsNil(typed nil) = false")
	}
	if IsNil(Discard) {
		t.Error("IsNil(Discard) = true")
	}
	if OrDefault(typedNil) == nil {
		t.Error("OrDefault returned nil")
	}
	if OrDefault(Discard) != Discard {
		t.Error("OrDefault replaced a valid logger")
	}
}

func TestZapLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewZapLogger(zap.New(core))

	var fatal string
	logger.SetFatalHandler(func(msg string) { fatal = msg })

	logger.Infof(NSStore+"loaded %d entries", 12)
	logger.Warnf("probe failed")
	logger.Fatalf("double release of view %d", 3)

	entries := logs.All()
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	if entries[0].Message != "[store] loaded 12 entries" {
		t.Errorf("message = %q", entries[0].Message)
	}
	if entries[2].Level != zapcore.ErrorLevel {
		t.Errorf("fatal logged at %v, want error", entries[2].Level)
	}
	if fatal != "double release of view 3" {
		t.Errorf("fatal handler got %q", fatal)
	}
}

func TestNewZapLoggerNil(t *testing.T) {
	logger := NewZapLogger(nil)
	logger.Infof("dropped")
	logger.Fatalf("dropped too")
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
