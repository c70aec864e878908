package logger

import (
	"context"
	"testing"

	"github.com/athebyme/gomarket-sync/internal/utils"
	"github.com/athebyme/gomarket-sync/pkg/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObserved(level zapcore.Level) (interfaces.LoggerPort, *observer.ObservedLogs) {
	atomic := zap.NewAtomicLevelAt(level)
	core, logs := observer.New(atomic)
	return NewFromCore(core, atomic), logs
}

func TestZapLoggerWritesFieldsAndContext(t *testing.T) {
	log, logs := newObserved(zapcore.DebugLevel)

	ctx := utils.WithRequestID(context.Background(), "req-1")
	ctx = utils.WithActorID(ctx, "user:42")

	log.WithComponent("orchestrator").InfoWithContext(ctx, "push finished",
		interfaces.LogField{Key: "product_id", Value: "p1"},
		"attempt", 2,
	)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "push finished", entry.Message)

	fields := entry.ContextMap()
	assert.Equal(t, "orchestrator", fields["component"])
	assert.Equal(t, "p1", fields["product_id"])
	assert.EqualValues(t, 2, fields["attempt"])
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "user:42", fields["actor"])
}

func TestZapLoggerSetLevelIsShared(t *testing.T) {
	log, logs := newObserved(zapcore.InfoLevel)
	child := log.WithField("component", "webhooks")

	child.Debug("hidden")
	assert.Equal(t, 0, logs.Len())

	log.SetLevel(interfaces.DebugLevel)
	assert.Equal(t, interfaces.DebugLevel, child.GetLevel())

	child.Debug("visible")
	assert.Equal(t, 1, logs.Len())

	log.SetLevel(interfaces.ErrorLevel)
	child.Warn("dropped")
	assert.Equal(t, 1, logs.Len())
}

func TestGetLoggerLevel(t *testing.T) {
	assert.Equal(t, interfaces.DebugLevel, GetLoggerLevel("DEBUG"))
	assert.Equal(t, interfaces.WarnLevel, GetLoggerLevel("warning"))
	assert.Equal(t, interfaces.InfoLevel, GetLoggerLevel("verbose"))
}

func TestConvertDoesNotMutateArgs(t *testing.T) {
	args := []interface{}{interfaces.LogField{Key: "k", Value: "v"}}
	_ = convertToZapFields(args...)
	_, stillField := args[0].(interfaces.LogField)
	assert.True(t, stillField)
}
