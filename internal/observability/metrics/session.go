package metrics

import (
	goerrors "errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/nexoai/pos-client/internal/errors"
	"github.com/nexoai/pos-client/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// SessionEvent captures one session operation (login, register, restore, logout, expired).
type SessionEvent struct {
	Operation string
	Result    string
	Duration  time.Duration
	Err       error
}

// EmitSessionEvent emits session lifecycle metrics.
func EmitSessionEvent(sink statsd.Sink, in SessionEvent) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"operation": in.Operation,
		"result":    in.Result,
	}
	if in.Err != nil && in.Result == ResultError {
		if class := ErrorClass(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("session.operation", 1, tags)
	if in.Duration > 0 {
		sink.Timing("session.duration", in.Duration, CloneTags(tags))
	}
}

// EmitSessionExpired counts a forced logout after a failed token refresh.
func EmitSessionExpired(sink statsd.Sink) {
	if sink == nil {
		return
	}
	sink.Count("session.expired", 1, nil)
}

// RequestMetric captures one logical backend request, including its retry.
type RequestMetric struct {
	Method   string
	Status   int
	Retried  bool
	Duration time.Duration
	Err      error
}

// EmitRequest emits backend request metrics tagged by method and status class.
func EmitRequest(sink statsd.Sink, in RequestMetric) {
	if sink == nil {
		return
	}

	result := ResultSuccess
	if in.Err != nil {
		result = ResultError
	}
	tags := map[string]string{
		"method":       strings.ToUpper(in.Method),
		"status_class": StatusClass(in.Status),
		"result":       result,
		"retried":      strconv.FormatBool(in.Retried),
	}
	if in.Err != nil {
		if class := ErrorClass(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("api.request", 1, tags)
	if in.Duration > 0 {
		sink.Timing("api.request.duration", in.Duration, CloneTags(tags))
	}
}

// EmitRefresh emits the outcome of a token refresh.
func EmitRefresh(sink statsd.Sink, result string, duration time.Duration, err error) {
	if sink == nil {
		return
	}
	tags := map[string]string{"result": result}
	if err != nil {
		if class := ErrorClass(err); class != "" {
			tags["error_class"] = class
		}
	}
	sink.Count("session.refresh", 1, tags)
	if duration > 0 {
		sink.Timing("session.refresh.duration", duration, CloneTags(tags))
	}
}

// StatusClass buckets an HTTP status as "2xx", "4xx", ... or "none" when no response
// arrived. 401 keeps its own bucket so refresh pressure is visible.
func StatusClass(status int) string {
	if status < 100 || status > 599 {
		return "none"
	}
	if status == http.StatusUnauthorized {
		return "401"
	}
	return strconv.Itoa(status/100) + "xx"
}

// ErrorClass returns a normalized error name suitable for tagging metrics/logs.
// AppErrors are classified by code; other errors by their innermost concrete type.
func ErrorClass(err error) string {
	if err == nil {
		return ""
	}
	if code := apperrors.GetCode(err); code != "" {
		return string(code)
	}

	for {
		unwrapped := goerrors.Unwrap(err)
		if unwrapped == nil {
			break
		}
		err = unwrapped
	}

	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "unknown"
	}
	name := strings.ToLower(strings.ReplaceAll(t.String(), ".", "_"))
	if name == "" {
		return "unknown"
	}
	return name
}

// CloneTags creates a shallow copy of a tag map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
