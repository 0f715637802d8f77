package errors

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
)

// FromHTTPStatus maps a non-2xx backend response to an AppError.
// message is the backend-supplied message, if any. public marks calls made
// without a session (login, register), where 401 means bad credentials rather
// than a rejected token.
func FromHTTPStatus(status int, message string, public bool) *AppError {
	msg := strings.TrimSpace(message)
	code := codeForStatus(status, public)
	if msg == "" {
		msg = defaultStatusMessage(code, status)
	}
	return &AppError{
		Code:    code,
		Message: msg,
		Status:  status,
	}
}

func codeForStatus(status int, public bool) ErrorCode {
	switch {
	case status == http.StatusUnauthorized && public:
		return ErrCodeInvalidCredentials
	case status == http.StatusUnauthorized:
		return ErrCodeUnauthorized
	case status == http.StatusForbidden:
		return ErrCodeForbidden
	case status == http.StatusNotFound:
		return ErrCodeNotFound
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		return ErrCodeTimeout
	case status >= 400 && status < 500:
		return ErrCodeValidation
	case status >= 500:
		return ErrCodeUpstream
	default:
		return ErrCodeInternal
	}
}

func defaultStatusMessage(code ErrorCode, status int) string {
	switch code {
	case ErrCodeInvalidCredentials:
		return "Invalid email or password."
	case ErrCodeUnauthorized:
		return "Request was not authorized."
	case ErrCodeForbidden:
		return "You do not have access to this resource."
	case ErrCodeNotFound:
		return "Resource not found."
	case ErrCodeTimeout:
		return "Request timed out. Please try again."
	case ErrCodeValidation:
		return "Request was rejected. Please check your input."
	case ErrCodeUpstream:
		return "The server is unavailable. Please try again."
	default:
		return "Unexpected response status " + http.StatusText(status) + "."
	}
}

// MapTransportError maps errors returned by an HTTP round trip to AppError instances:
//   - context.DeadlineExceeded or a net timeout → Timeout
//   - context.Canceled → Canceled
//   - any other transport failure → Network
//
// AppErrors pass through unchanged and nil stays nil.
func MapTransportError(err error) error {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &AppError{
			Code:    ErrCodeTimeout,
			Message: "Request timed out. Please try again.",
			Cause:   err,
		}
	}
	if errors.Is(err, context.Canceled) {
		return &AppError{
			Code:    ErrCodeCanceled,
			Message: "Request was canceled.",
			Cause:   err,
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &AppError{
			Code:    ErrCodeTimeout,
			Message: "Request timed out. Please try again.",
			Cause:   err,
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) {
		return &AppError{
			Code:    ErrCodeNetwork,
			Message: "Could not reach the server. Check your connection.",
			Cause:   err,
		}
	}

	return &AppError{
		Code:    ErrCodeNetwork,
		Message: "Request failed.",
		Cause:   err,
	}
}
