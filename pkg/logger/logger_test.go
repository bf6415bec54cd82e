package logger_test

import (
	"context"
	"testing"

	"file-sharing-service/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	ctx, err := logger.New(context.Background(), "debug")
	require.NoError(t, err)
	assert.NotNil(t, logger.GetLogger(ctx))

	_, err = logger.New(context.Background(), "loud")
	assert.Error(t, err)
}

func TestGetLogger_FallsBackToNop(t *testing.T) {
	l := logger.GetLogger(context.Background())
	require.NotNil(t, l)
	assert.NotPanics(t, func() { l.Info("nobody listens") })
}

func TestWith_CarriesFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ctx := logger.WithLogger(context.Background(), logger.FromZap(zap.New(core)))

	logger.GetLogger(ctx).With(zap.String("storage_key", "u/1.pdf")).Warn("blob delete failed")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "blob delete failed", entry.Message)
	assert.Equal(t, "u/1.pdf", entry.ContextMap()["storage_key"])
}
