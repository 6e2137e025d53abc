package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"nest/pkg/logging"
)

func TestNew_Levels(t *testing.T) {
	for _, level := range []string{"", "debug", "INFO", "warn", "error"} {
		l, err := New(level, "json")
		require.NoError(t, err, level)
		require.NotNil(t, l)
	}

	_, err := New("loud", "json")
	assert.Error(t, err)
}

func TestCtxFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := &SugaredLogger{SugaredLogger: zap.New(core).Sugar()}
	l.SetServiceName("nest-server")

	ctx := logging.WithRequestID(context.Background(), "req-1")
	ctx = logging.WithBinID(ctx, "b_abc")
	l.InfowCtx(ctx, "event_captured", "size_bytes", 3)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "b_abc", fields["bin_id"])
	assert.Equal(t, "nest-server", fields["service_name"])
	assert.EqualValues(t, 3, fields["size_bytes"])
}
