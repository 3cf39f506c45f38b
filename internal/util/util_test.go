package util

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRetry(t *testing.T) {
	attempts := 0
	targetAttempts := 3

	err := Retry(context.Background(), 5, 0, func() error {
		attempts++
		if attempts < targetAttempts {
			return errors.New("transient error")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Retry returned unexpected error: %v", err)
	}
	if attempts != targetAttempts {
		t.Errorf("Retry called fn %d times, want %d", attempts, targetAttempts)
	}
}

func TestRetryAllFail(t *testing.T) {
	attempts := 0
	maxAttempts := 3

	err := Retry(context.Background(), maxAttempts, 0, func() error {
		attempts++
		return errors.New("persistent error")
	})

	if err == nil {
		t.Fatal("Retry should return error when all attempts fail")
	}
	if attempts != maxAttempts {
		t.Errorf("Retry called fn %d times, want %d", attempts, maxAttempts)
	}
}

func TestRetryCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, 3, time.Hour, func() error {
		return errors.New("fail")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Retry error = %v, want context.Canceled", err)
	}
}

func TestRetryValue(t *testing.T) {
	calls := 0
	v, err := RetryValue(context.Background(), 3, 0, func() (int, error) {
		calls++
		if calls == 1 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("RetryValue returned unexpected error: %v", err)
	}
	if v != 42 {
		t.Errorf("RetryValue = %d, want 42", v)
	}
}

func TestRateLimiterNew(t *testing.T) {
	rl := NewRateLimiterPerMinute(60)
	if rl == nil {
		t.Fatal("NewRateLimiterPerMinute returned nil")
	}
	if rl.Interval() != time.Second {
		t.Errorf("Interval() = %v, want %v", rl.Interval(), time.Second)
	}
}

func TestRateLimiterFirstWaitImmediate(t *testing.T) {
	rl := NewRateLimiter(time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := rl.Wait(ctx); err != nil {
		t.Fatalf("first Wait returned error: %v", err)
	}
	// The second call would block for an hour; the limiter reports that the
	// deadline cannot be met.
	if err := rl.Wait(ctx); err == nil {
		t.Error("second Wait should fail before the interval elapses")
	}
}

func TestInWindow(t *testing.T) {
	tests := []struct {
		name       string
		start, end TimeOfDay
		now        TimeOfDay
		want       bool
	}{
		{"inside", Clock(8, 0), Clock(8, 30), Clock(8, 15), true},
		{"start edge", Clock(8, 0), Clock(8, 30), Clock(8, 0), true},
		{"end edge", Clock(8, 0), Clock(8, 30), Clock(8, 30), true},
		{"after", Clock(8, 0), Clock(8, 30), Clock(9, 0), false},
		{"midnight span early", Clock(23, 0), Clock(1, 0), Clock(0, 30), true},
		{"midnight span late", Clock(23, 0), Clock(1, 0), Clock(23, 30), true},
		{"midnight span outside", Clock(23, 0), Clock(1, 0), Clock(12, 0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InWindow(tt.start, tt.end, tt.now); got != tt.want {
				t.Errorf("InWindow(%s, %s, %s) = %v, want %v", tt.start, tt.end, tt.now, got, tt.want)
			}
		})
	}
}

func TestWindowContains(t *testing.T) {
	et, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// 20:15 UTC is 16:15 EDT.
	ts := time.Date(2024, 6, 14, 20, 15, 0, 0, time.UTC)
	if !MarketJustClosed.Contains(ts, et) {
		t.Errorf("MarketJustClosed should contain %s in ET", ts)
	}
	if MarketJustClosed.Contains(ts, time.UTC) {
		t.Errorf("MarketJustClosed should not contain %s in UTC", ts)
	}
}

func TestParseWindow(t *testing.T) {
	w, err := ParseWindow("16:00-16:30")
	if err != nil {
		t.Fatalf("ParseWindow returned error: %v", err)
	}
	if w != MarketJustClosed {
		t.Errorf("ParseWindow = %s, want %s", w, MarketJustClosed)
	}

	if _, err := ParseWindow("16:00"); err == nil {
		t.Error("ParseWindow should reject a window without an end")
	}
	if _, err := ParseTimeOfDay("25:00"); err == nil {
		t.Error("ParseTimeOfDay should reject hour 25")
	}
}

func TestNewLoggerFormats(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, LogOptions{Level: "debug", Format: "json"})
	logger.Debug("hello", "k", "v")
	if !strings.Contains(buf.String(), `"msg":"hello"`) {
		t.Errorf("json output = %q, want msg field", buf.String())
	}

	buf.Reset()
	logger = newLogger(&buf, LogOptions{Level: "warn"})
	logger.Info("dropped")
	if buf.Len() != 0 {
		t.Errorf("info record written at warn level: %q", buf.String())
	}
}

func TestNewLoggerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quantsim.log")
	var buf bytes.Buffer
	logger := newLogger(&buf, LogOptions{File: path})
	logger.Info("to file")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "to file") {
		t.Errorf("log file = %q, want record", string(data))
	}
	if !strings.Contains(buf.String(), "to file") {
		t.Errorf("stdout = %q, want record", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("ERROR") != slog.LevelError {
		t.Error("ParseLevel should be case-insensitive")
	}
	if ParseLevel("bogus") != slog.LevelInfo {
		t.Error("ParseLevel should default to info")
	}
}
