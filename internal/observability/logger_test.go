package observability

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/0xjcr/chrome-osint-extension/internal/config"
)

type syncBuffer struct {
	bytes.Buffer
}

func (b *syncBuffer) Sync() error { return nil }

func TestInitializeWritesToConsoleAndFile(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	logFile := filepath.Join(t.TempDir(), "test.log")
	var buf syncBuffer
	Initialize(config.LoggerConfig{
		Level:       "debug",
		Format:      "json",
		ServiceName: "test-svc",
		LogFile:     logFile,
		MaxSize:     1,
	}, &buf)

	logger := GetLogger()
	require.NotNil(t, logger)
	logger.Info("hello from the test")
	Sync()

	out := buf.String()
	assert.Contains(t, out, "hello from the test")
	assert.Contains(t, out, "test-svc")
}

func TestInitializeRunsOnlyOnce(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	var first, second syncBuffer
	Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "first"}, &first)
	Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "second"}, &second)

	GetLogger().Info("routed once")
	Sync()

	assert.Contains(t, first.String(), "routed once")
	assert.Empty(t, second.String(), "second Initialize must be a no-op")
}

func TestInvalidLevelFallsBackToInfo(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	var buf syncBuffer
	Initialize(config.LoggerConfig{Level: "chatty", Format: "json", ServiceName: "svc"}, &buf)

	GetLogger().Debug("should be filtered")
	GetLogger().Info("should appear")
	Sync()

	out := buf.String()
	assert.NotContains(t, out, "should be filtered")
	assert.Contains(t, out, "should appear")
}

func TestIsBenignSyncError(t *testing.T) {
	assert.True(t, isBenignSyncError(errors.New("sync /dev/stdout: invalid argument")))
	assert.True(t, isBenignSyncError(errors.New("sync /dev/stderr: inappropriate ioctl for device")))
	assert.False(t, isBenignSyncError(errors.New("sync app.log: disk quota exceeded")))
}

func TestGetLoggerBeforeInitializeReturnsFallback(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	logger := GetLogger()
	require.NotNil(t, logger)
	assert.True(t, strings.Contains(logger.Name(), "fallback"))
}

var _ zapcore.WriteSyncer = (*syncBuffer)(nil)
