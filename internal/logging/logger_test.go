package logging

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel("warn"))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelInfo, ParseLevel("info"))
	assert.Equal(t, LevelInfo, ParseLevel("bogus"))
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelWarn, Format: "text", Output: &buf})

	logger.Info(context.Background(), "should be filtered")
	assert.Empty(t, buf.String())

	logger.Warn(context.Background(), nil, "visible warning")
	assert.Contains(t, buf.String(), "visible warning")
}

func TestLogger_ComponentAndError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelDebug, Format: "json", Output: &buf}).
		WithComponent("scanner")

	logger.Error(context.Background(), errors.New("boom"), "scan failed", "path", "a.md")

	out := buf.String()
	assert.Contains(t, out, `"component":"scanner"`)
	assert.Contains(t, out, `"error":"boom"`)
	assert.Contains(t, out, `"path":"a.md"`)
}

func TestNopLogger(t *testing.T) {
	var logger Logger = NopLogger{}

	// Must not panic and must return a usable logger.
	logger.Debug(context.Background(), "x")
	logger.Error(context.Background(), errors.New("e"), "y")
	assert.NotNil(t, logger.WithComponent("any"))
}
