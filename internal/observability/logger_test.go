package observability

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/chaiso-krit/LLM-Pokemon-Red/internal/config"
)

func TestGetLoggerNeverNil(t *testing.T) {
	ResetForTest()
	// Before initialization a fallback logger is handed out, so callers may
	// log unconditionally.
	require.NotNil(t, GetLogger())
}

func TestInitializeRunsOnce(t *testing.T) {
	ResetForTest()

	var first, second bytes.Buffer
	Initialize(config.LoggerConfig{Level: "debug", Format: "console", ServiceName: "test"}, zapcore.AddSync(&first))
	logger := GetLogger()
	require.NotNil(t, logger)

	Initialize(config.LoggerConfig{Level: "error", Format: "json", ServiceName: "other"}, zapcore.AddSync(&second))
	assert.Same(t, logger, GetLogger())

	GetLogger().Info("hello")
	assert.Contains(t, first.String(), "hello")
	assert.Empty(t, second.String())
}

func TestInitializeWritesToFileCore(t *testing.T) {
	ResetForTest()

	var console bytes.Buffer
	Initialize(config.LoggerConfig{
		Level:       "info",
		Format:      "console",
		ServiceName: "test",
		LogFile:     t.TempDir() + "/agent.log",
		MaxSize:     1,
	}, zapcore.AddSync(&console))

	GetLogger().Info("file core active")
	assert.Contains(t, console.String(), "file core active")
}
