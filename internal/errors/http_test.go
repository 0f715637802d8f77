package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"testing"
)

func TestFromHTTPStatus(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		public   bool
		wantCode ErrorCode
	}{
		{"401 on public call", http.StatusUnauthorized, true, ErrCodeInvalidCredentials},
		{"401 on session call", http.StatusUnauthorized, false, ErrCodeUnauthorized},
		{"403", http.StatusForbidden, false, ErrCodeForbidden},
		{"404", http.StatusNotFound, false, ErrCodeNotFound},
		{"408", http.StatusRequestTimeout, false, ErrCodeTimeout},
		{"504", http.StatusGatewayTimeout, false, ErrCodeTimeout},
		{"400", http.StatusBadRequest, true, ErrCodeValidation},
		{"409", http.StatusConflict, true, ErrCodeValidation},
		{"500", http.StatusInternalServerError, false, ErrCodeUpstream},
		{"503", http.StatusServiceUnavailable, false, ErrCodeUpstream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := FromHTTPStatus(tt.status, "", tt.public)
			if err.Code != tt.wantCode {
				t.Errorf("Code = %v, want %v", err.Code, tt.wantCode)
			}
			if err.Status != tt.status {
				t.Errorf("Status = %d, want %d", err.Status, tt.status)
			}
			if err.Message == "" {
				t.Error("expected a default message")
			}
		})
	}
}

func TestFromHTTPStatus_BackendMessage(t *testing.T) {
	err := FromHTTPStatus(http.StatusConflict, "  Email already registered ", true)
	if err.Message != "Email already registered" {
		t.Errorf("Message = %q", err.Message)
	}
	if GetStatus(err) != http.StatusConflict {
		t.Errorf("GetStatus() = %d", GetStatus(err))
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestMapTransportError(t *testing.T) {
	if MapTransportError(nil) != nil {
		t.Fatal("MapTransportError(nil) should be nil")
	}

	tests := []struct {
		name     string
		err      error
		wantCode ErrorCode
	}{
		{"deadline", fmt.Errorf("do: %w", context.DeadlineExceeded), ErrCodeTimeout},
		{"canceled", &url.Error{Op: "Get", URL: "http://x", Err: context.Canceled}, ErrCodeCanceled},
		{"net timeout", &url.Error{Op: "Get", URL: "http://x", Err: timeoutErr{}}, ErrCodeTimeout},
		{"connection refused", &url.Error{Op: "Get", URL: "http://x", Err: errors.New("connection refused")}, ErrCodeNetwork},
		{"other", errors.New("weird"), ErrCodeNetwork},
		{"app error passes through", Unauthorized("x"), ErrCodeUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MapTransportError(tt.err)
			if got := GetCode(err); got != tt.wantCode {
				t.Errorf("code = %v, want %v", got, tt.wantCode)
			}
		})
	}
}
