package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/nexoai/pos-client/internal/errors"
	"github.com/nexoai/pos-client/internal/observability/statsd"
)

func TestEmitSessionEvent(t *testing.T) {
	var rec statsd.Recorder

	EmitSessionEvent(&rec, SessionEvent{
		Operation: "login",
		Result:    ResultError,
		Duration:  20 * time.Millisecond,
		Err:       apperrors.InvalidCredentials("bad"),
	})

	counts := rec.Named("count", "session.operation")
	require.Len(t, counts, 1)
	assert.Equal(t, map[string]string{
		"operation":   "login",
		"result":      "error",
		"error_class": "invalid_credentials",
	}, counts[0].Tags)

	timings := rec.Named("timing", "session.duration")
	require.Len(t, timings, 1)
	assert.InDelta(t, 20.0, timings[0].Value, 0.001)
}

func TestEmitSessionEvent_SuccessHasNoErrorClass(t *testing.T) {
	var rec statsd.Recorder
	EmitSessionEvent(&rec, SessionEvent{Operation: "logout", Result: ResultSuccess})

	counts := rec.Named("count", "session.operation")
	require.Len(t, counts, 1)
	assert.NotContains(t, counts[0].Tags, "error_class")
	assert.Empty(t, rec.Named("timing", "session.duration"))
}

func TestEmitNilSink(t *testing.T) {
	EmitSessionEvent(nil, SessionEvent{Operation: "login"})
	EmitRequest(nil, RequestMetric{Method: "GET"})
	EmitRefresh(nil, ResultSuccess, time.Second, nil)
}

func TestEmitRequest(t *testing.T) {
	var rec statsd.Recorder
	EmitRequest(&rec, RequestMetric{
		Method:   "get",
		Status:   500,
		Duration: time.Millisecond,
		Err:      &apperrors.AppError{Code: apperrors.ErrCodeUpstream},
	})

	counts := rec.Named("count", "api.request")
	require.Len(t, counts, 1)
	assert.Equal(t, "GET", counts[0].Tags["method"])
	assert.Equal(t, "5xx", counts[0].Tags["status_class"])
	assert.Equal(t, "upstream", counts[0].Tags["error_class"])
	assert.Equal(t, "false", counts[0].Tags["retried"])
}

func TestEmitRefresh(t *testing.T) {
	var rec statsd.Recorder
	EmitRefresh(&rec, ResultError, 0, apperrors.SessionExpired("x"))

	counts := rec.Named("count", "session.refresh")
	require.Len(t, counts, 1)
	assert.Equal(t, "session_expired", counts[0].Tags["error_class"])
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", StatusClass(204))
	assert.Equal(t, "401", StatusClass(401))
	assert.Equal(t, "4xx", StatusClass(404))
	assert.Equal(t, "5xx", StatusClass(503))
	assert.Equal(t, "none", StatusClass(0))
}

type customErr struct{}

func (*customErr) Error() string { return "custom" }

func TestErrorClass(t *testing.T) {
	assert.Empty(t, ErrorClass(nil))
	assert.Equal(t, "timeout", ErrorClass(&apperrors.AppError{Code: apperrors.ErrCodeTimeout}))
	assert.Equal(t, "metrics_customerr", ErrorClass(fmt.Errorf("wrap: %w", &customErr{})))
	assert.Equal(t, "errors_errorstring", ErrorClass(errors.New("plain")))
}

func TestCloneTags(t *testing.T) {
	assert.Nil(t, CloneTags(nil))
	src := map[string]string{"a": "1"}
	cp := CloneTags(src)
	cp["a"] = "2"
	assert.Equal(t, "1", src["a"])
}

func TestEmitSessionExpired(t *testing.T) {
	var rec statsd.Recorder
	EmitSessionExpired(&rec)
	EmitSessionExpired(nil)

	got := rec.Named("count", "session.expired")
	require.Len(t, got, 1)
	assert.Equal(t, float64(1), got[0].Value)
}
