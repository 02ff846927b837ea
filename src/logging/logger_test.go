package logging

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusErr int

func (s statusErr) Error() string   { return fmt.Sprintf("status %d", int(s)) }
func (s statusErr) StatusCode() int { return int(s) }

func TestInitWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})
	t.Cleanup(func() { Init(DefaultConfig()) })

	l := Component("stream")
	l.Info().Uint64("block", 42).Msg("block processed")

	out := buf.String()
	require.Contains(t, out, `"component":"stream"`)
	assert.Contains(t, out, `"block":42`)
	assert.Contains(t, out, `"message":"block processed"`)
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "error", Output: &buf})
	t.Cleanup(func() { Init(DefaultConfig()) })

	Info().Msg("hidden")
	assert.Empty(t, buf.String())
	Error().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestIsRateLimit(t *testing.T) {
	assert.False(t, IsRateLimit(nil))
	assert.True(t, IsRateLimit(statusErr(429)))
	assert.True(t, IsRateLimit(fmt.Errorf("fetch: %w", statusErr(429))))
	assert.False(t, IsRateLimit(statusErr(500)))
	assert.True(t, IsRateLimit(errors.New("provider said rate_limit exceeded")))
}
