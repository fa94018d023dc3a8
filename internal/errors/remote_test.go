package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

// timeoutErr satisfies net.Error for testing timeout classification.
type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestMapTransportError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"context canceled", context.Canceled, ErrCodeCanceled},
		{"wrapped context canceled", fmt.Errorf("do request: %w", context.Canceled), ErrCodeCanceled},
		{"deadline exceeded", context.DeadlineExceeded, ErrCodeTransient},
		{"net timeout", timeoutErr{}, ErrCodeTransient},
		{"connection refused", errors.New("dial tcp 127.0.0.1:443: connect: connection refused"), ErrCodeTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapTransportError(tt.err)
			if GetCode(got) != tt.want {
				t.Errorf("MapTransportError() code = %v, want %v", GetCode(got), tt.want)
			}
			if !errors.Is(got, tt.err) {
				t.Error("MapTransportError() should preserve the cause chain")
			}
		})
	}

	t.Run("nil error returns nil", func(t *testing.T) {
		if got := MapTransportError(nil); got != nil {
			t.Errorf("MapTransportError(nil) = %v, want nil", got)
		}
	})
}

func TestMapStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   ErrorCode
	}{
		{"too many requests is transient", http.StatusTooManyRequests, ErrCodeTransient},
		{"internal server error is transient", http.StatusInternalServerError, ErrCodeTransient},
		{"bad gateway is transient", http.StatusBadGateway, ErrCodeTransient},
		{"unauthorized is fatal", http.StatusUnauthorized, ErrCodeFatal},
		{"forbidden is fatal", http.StatusForbidden, ErrCodeFatal},
		{"not found is fatal", http.StatusNotFound, ErrCodeFatal},
		{"unprocessable entity is fatal", http.StatusUnprocessableEntity, ErrCodeFatal},
		{"unexpected redirect is internal", http.StatusMovedPermanently, ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapStatus(tt.status, "")
			if got.Code != tt.want {
				t.Errorf("MapStatus(%d) code = %v, want %v", tt.status, got.Code, tt.want)
			}
		})
	}

	t.Run("body summary is carried in message", func(t *testing.T) {
		got := MapStatus(http.StatusServiceUnavailable, "upstream saturated")
		want := "remote failure (503): upstream saturated"
		if got.Message != want {
			t.Errorf("MapStatus().Message = %v, want %v", got.Message, want)
		}
	})
}

func TestMalformedPayload(t *testing.T) {
	cause := errors.New("invalid character '<' looking for beginning of value")
	err := MalformedPayload(cause, "status")
	if err.Code != ErrCodeFatal {
		t.Errorf("MalformedPayload().Code = %v, want %v", err.Code, ErrCodeFatal)
	}
	if err.Message != "malformed status payload" {
		t.Errorf("MalformedPayload().Message = %v", err.Message)
	}
	if !errors.Is(err, cause) {
		t.Error("MalformedPayload() should preserve the cause chain")
	}
}
