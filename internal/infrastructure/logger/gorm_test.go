package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func newObservedGormLogger(t *testing.T, level gormlogger.LogLevel, opts ...GormLoggerOption) (*GormLogger, *observer.ObservedLogs) {
	t.Helper()
	core, recorded := observer.New(zapcore.DebugLevel)
	return NewGormLogger(zap.New(core), level, opts...), recorded
}

func traceFunc(sql string, rows int64) func() (string, int64) {
	return func() (string, int64) { return sql, rows }
}

func TestGormLogger_ImplementsInterface(t *testing.T) {
	gl, _ := newObservedGormLogger(t, gormlogger.Info)
	var _ gormlogger.Interface = gl
}

func TestGormLogger_LogMode_ReturnsIndependentCopy(t *testing.T) {
	gl, recorded := newObservedGormLogger(t, gormlogger.Info)

	silenced := gl.LogMode(gormlogger.Silent)
	silenced.(*GormLogger).Trace(context.Background(), time.Now(), traceFunc("SELECT 1", 1), nil)
	assert.Equal(t, 0, recorded.Len())

	gl.Trace(context.Background(), time.Now(), traceFunc("SELECT 1", 1), nil)
	assert.Equal(t, 1, recorded.Len())
}

func TestGormLogger_Trace(t *testing.T) {
	t.Run("logs failed query with error", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(t, gormlogger.Error)

		gl.Trace(context.Background(), time.Now(), traceFunc("UPDATE invoices SET status = $1", 0), errors.New("connection reset"))

		require.Equal(t, 1, recorded.Len())
		entry := recorded.All()[0]
		assert.Equal(t, "query failed", entry.Message)
		assert.Equal(t, zapcore.ErrorLevel, entry.Level)
		assert.Equal(t, "UPDATE invoices SET status = $1", entry.ContextMap()["sql"])
	})

	t.Run("record not found is not an error", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(t, gormlogger.Error)

		gl.Trace(context.Background(), time.Now(), traceFunc("SELECT * FROM invoices", 0), gormlogger.ErrRecordNotFound)
		assert.Equal(t, 0, recorded.Len())
	})

	t.Run("record not found surfaces when opted in", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(t, gormlogger.Error, WithNotFoundErrors())

		gl.Trace(context.Background(), time.Now(), traceFunc("SELECT * FROM invoices", 0), gormlogger.ErrRecordNotFound)
		assert.Equal(t, 1, recorded.Len())
	})

	t.Run("slow query warns", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(t, gormlogger.Warn, WithSlowThreshold(time.Nanosecond))

		gl.Trace(context.Background(), time.Now().Add(-time.Second), traceFunc("SELECT * FROM invoices", 10), nil)

		require.Equal(t, 1, recorded.Len())
		entry := recorded.All()[0]
		assert.Equal(t, "slow query", entry.Message)
		assert.Equal(t, zapcore.WarnLevel, entry.Level)
	})

	t.Run("carries request and site correlation", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(t, gormlogger.Info)

		ctx, _ := WithRequestID(context.Background(), zap.NewNop(), "req-7")
		ctx, _ = WithSiteID(ctx, zap.NewNop(), "site-7")
		gl.Trace(ctx, time.Now(), traceFunc("SELECT 1", 1), nil)

		require.Equal(t, 1, recorded.Len())
		fields := recorded.All()[0].ContextMap()
		assert.Equal(t, "req-7", fields["request_id"])
		assert.Equal(t, "site-7", fields["site_id"])
	})

	t.Run("silent logs nothing", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(t, gormlogger.Silent)

		gl.Trace(context.Background(), time.Now(), traceFunc("SELECT 1", 1), errors.New("boom"))
		assert.Equal(t, 0, recorded.Len())
	})
}

func TestGormLogger_Levels(t *testing.T) {
	gl, recorded := newObservedGormLogger(t, gormlogger.Warn)

	gl.Info(context.Background(), "suppressed at warn level")
	assert.Equal(t, 0, recorded.Len())

	gl.Warn(context.Background(), "retrying %s", "migration lock")
	gl.Error(context.Background(), "migration failed")
	assert.Equal(t, 2, recorded.Len())
}

func TestMapGormLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want gormlogger.LogLevel
	}{
		{"silent", gormlogger.Silent},
		{"error", gormlogger.Error},
		{"warn", gormlogger.Warn},
		{"info", gormlogger.Info},
		{"debug", gormlogger.Info},
		{"unknown", gormlogger.Warn},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MapGormLogLevel(tt.in), "level %q", tt.in)
	}
}
