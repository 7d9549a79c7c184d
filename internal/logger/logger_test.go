package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureOutput redirects logger output to a buffer and returns a cleanup
// function restoring the previous writer, level and format.
func captureOutput() (*bytes.Buffer, func()) {
	buf := new(bytes.Buffer)

	mu.Lock()
	originalOutput := output
	originalColor := useColor
	output = buf
	useColor = false
	mu.Unlock()

	originalLevel := GetLevel()
	originalFormat, _ := currentFormat.Load().(string)
	reconfigure()

	return buf, func() {
		mu.Lock()
		output = originalOutput
		useColor = originalColor
		mu.Unlock()
		currentLevel.Store(int32(originalLevel))
		currentFormat.Store(originalFormat)
		reconfigure()
	}
}

func TestLevelFiltering(t *testing.T) {
	tests := []struct {
		level   string
		visible []string
		hidden  []string
	}{
		{"DEBUG", []string{"debug msg", "info msg", "warn msg", "error msg"}, nil},
		{"INFO", []string{"info msg", "warn msg", "error msg"}, []string{"debug msg"}},
		{"WARN", []string{"warn msg", "error msg"}, []string{"debug msg", "info msg"}},
		{"ERROR", []string{"error msg"}, []string{"debug msg", "info msg", "warn msg"}},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			buf, cleanup := captureOutput()
			defer cleanup()

			SetLevel(tt.level)
			Debug("debug msg")
			Info("info msg")
			Warn("warn msg")
			Error("error msg")

			out := buf.String()
			for _, s := range tt.visible {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.hidden {
				assert.NotContains(t, out, s)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	l, ok := ParseLevel("warning")
	assert.True(t, ok)
	assert.Equal(t, LevelWarn, l)

	l, ok = ParseLevel(" debug ")
	assert.True(t, ok)
	assert.Equal(t, LevelDebug, l)

	_, ok = ParseLevel("verbose")
	assert.False(t, ok)
}

func TestSetLevelIgnoresUnknown(t *testing.T) {
	_, cleanup := captureOutput()
	defer cleanup()

	SetLevel("ERROR")
	SetLevel("bogus")
	assert.Equal(t, LevelError, GetLevel())
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "INFO", LevelInfo.String())
	assert.Equal(t, "WARN", LevelWarn.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "UNKNOWN", Level(42).String())
}

func TestTextFormat(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetFormat("text")
	SetLevel("INFO")

	Info("flushed buffer", KeyDisk, "fd0", KeySector, uint64(18), KeyDurationMs, 1.5, "note", "two words")

	out := buf.String()
	assert.Contains(t, out, "[INFO] flushed buffer")
	assert.Contains(t, out, "disk=fd0")
	assert.Contains(t, out, "sector=18")
	assert.Contains(t, out, "duration_ms=1.500")
	assert.Contains(t, out, `note="two words"`)
	assert.True(t, strings.HasSuffix(out, "\n"))
}

func TestTextFormatGroups(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetFormat("text")
	SetLevel("INFO")
	With("component", "cache").WithGroup("stats").Info("snapshot", "dirty", 3)

	out := buf.String()
	assert.Contains(t, out, "component=cache")
	assert.Contains(t, out, "stats.dirty=3")
}

func TestTextFormatError(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetFormat("text")
	Error("write failed", Err(errors.New("device busy")), Err(nil))

	out := buf.String()
	assert.Contains(t, out, `error="device busy"`)
	assert.Equal(t, 1, strings.Count(out, "error="))
}

func TestJSONFormat(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetFormat("json")
	SetLevel("INFO")

	Info("read complete", KeyDisk, "hd0", KeyCount, 8)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "read complete", entry["msg"])
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "hd0", entry["disk"])
	assert.EqualValues(t, 8, entry["count"])
}

func TestSetFormatIgnoresUnknown(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetFormat("json")
	SetFormat("xml")
	Info("still json")

	assert.True(t, json.Valid(bytes.TrimSpace(buf.Bytes())))
}

func TestContextLogging(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetFormat("json")
	SetLevel("DEBUG")

	lc := NewLogContext("cd0", "read").WithRequestID("req-1").WithTrace("abc", "def")
	ctx := WithContext(context.Background(), lc)

	DebugCtx(ctx, "cache miss", KeySector, 4)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "cd0", entry[KeyDisk])
	assert.Equal(t, "read", entry[KeyOperation])
	assert.Equal(t, "req-1", entry[KeyRequestID])
	assert.Equal(t, "abc", entry[KeyTraceID])
	assert.Equal(t, "def", entry[KeySpanID])
	assert.EqualValues(t, 4, entry[KeySector])
}

func TestContextLoggingWithoutLogContext(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetFormat("json")
	InfoCtx(context.Background(), "plain")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.NotContains(t, entry, KeyDisk)
	assert.Nil(t, FromContext(nil)) //nolint:staticcheck // nil context is tolerated
}

func TestLogContextClone(t *testing.T) {
	lc := NewLogContext("hd1", "sync")
	clone := lc.WithOperation("invalidate")

	assert.Equal(t, "sync", lc.Operation)
	assert.Equal(t, "invalidate", clone.Operation)
	assert.Equal(t, lc.Disk, clone.Disk)

	var nilCtx *LogContext
	assert.Nil(t, nilCtx.Clone())
	assert.Nil(t, nilCtx.WithOperation("x"))
	assert.Zero(t, nilCtx.DurationMs())
	assert.GreaterOrEqual(t, lc.DurationMs(), 0.0)
}

func TestFieldHelpers(t *testing.T) {
	assert.Equal(t, KeyDisk, Disk("fd0").Key)
	assert.Equal(t, uint64(7), Sector(7).Value.Uint64())
	assert.Equal(t, uint64(3), Count(3).Value.Uint64())
	assert.Equal(t, "s3", StoreType("s3").Value.String())
	assert.Equal(t, 2, int(Dirty(2).Value.Int64()))
	assert.True(t, Err(nil).Equal(Err(nil)))
	assert.Equal(t, "boom", Err(errors.New("boom")).Value.String())
}

func TestConcurrentLogging(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetFormat("text")
	SetLevel("INFO")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				Info("concurrent", "worker", id, "iter", j)
			}
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 16*50)
	for _, line := range lines {
		assert.True(t, strings.HasPrefix(line, "["), "interleaved line: %q", line)
	}
}

func TestInitFileOutput(t *testing.T) {
	_, cleanup := captureOutput()
	defer cleanup()

	path := filepath.Join(t.TempDir(), "dittoblk.log")
	require.NoError(t, Init(Config{Level: "INFO", Format: "text", Output: path}))
	Info("to file", KeyDisk, "rd0")

	// Swap back to a buffer so the file handle is closed before reading.
	InitWithWriter(io.Discard, "", "", false)
	mu.Lock()
	if closer != nil {
		_ = closer.Close()
		closer = nil
	}
	mu.Unlock()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
	assert.Contains(t, string(data), "disk=rd0")
}

func TestInitBadPath(t *testing.T) {
	err := Init(Config{Output: filepath.Join(t.TempDir(), "missing", "x.log")})
	assert.Error(t, err)
}

func BenchmarkLogDisabled(b *testing.B) {
	_, cleanup := captureOutput()
	defer cleanup()
	SetLevel("ERROR")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Debug("disabled", KeyDisk, "fd0")
	}
}

func BenchmarkLogText(b *testing.B) {
	InitWithWriter(io.Discard, "INFO", "text", false)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Info("bench", KeyDisk, "fd0", KeySector, uint64(i))
	}
}
