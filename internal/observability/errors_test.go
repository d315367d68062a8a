package observability

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/incident-service/internal/config"
)

func TestReportError_LogsWithTags(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	ReportError(logger, errors.New("pool exhausted"), "sweep failed", map[string]string{"component": "sweep"})
	ReportError(logger, nil, "ignored", nil)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "sweep failed", entries[0].Message)
	assert.Equal(t, "sweep", entries[0].ContextMap()["component"])
	assert.Equal(t, "pool exhausted", entries[0].ContextMap()["error"])
}

func TestInitErrorReporting_DisabledWithoutDSN(t *testing.T) {
	flush, err := InitErrorReporting(config.SentryConfig{}, config.AppConfig{Name: "svc"}, zap.NewNop())
	require.NoError(t, err)
	assert.NotPanics(t, flush)
}
