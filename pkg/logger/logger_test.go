package logger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitRejectsUnknownLevel(t *testing.T) {
	err := Init(Config{Level: "loud"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestWithContextAddsTaskFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	restore := Replace(zap.New(core))
	defer restore()

	ctx := WithJob(context.Background(), "job-1", "rest")
	ctx = WithTask(ctx, 3)
	WithContext(ctx).Info("sub-task started")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "job-1", fields["job_id"])
	assert.Equal(t, "rest", fields["connector"])
	assert.Equal(t, int64(3), fields["task_index"])
}

func TestGetFallsBackToDefault(t *testing.T) {
	restore := Replace(nil)
	defer restore()

	assert.NotNil(t, Get())
}

func TestFields(t *testing.T) {
	assert.Empty(t, Fields(context.Background()))
	assert.Len(t, Fields(WithTask(context.Background(), 0)), 1)
}

func TestInitWritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "restclient.log")
	require.NoError(t, Init(Config{Level: "debug", File: path, MaxSizeMB: 1}))
	defer Replace(nil)()

	Get().Debug("planned sub-tasks", zap.Int("splits", 4))
	require.NoError(t, Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"planned sub-tasks"`)
	assert.Contains(t, string(data), `"splits":4`)
}
