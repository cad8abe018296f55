package llm

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapHTTPError(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		msg       string
		wantCode  ErrorCode
		retryable bool
	}{
		{"unauthorized", http.StatusUnauthorized, "bad key", ErrUnauthorized, false},
		{"forbidden", http.StatusForbidden, "policy", ErrForbidden, false},
		{"rate limited", http.StatusTooManyRequests, "slow down", ErrRateLimited, true},
		{"bad request", http.StatusBadRequest, "missing field", ErrInvalidRequest, false},
		{"quota in bad request", http.StatusBadRequest, "insufficient quota", ErrQuotaExceeded, false},
		{"billing in bad request", http.StatusBadRequest, "billing hard limit", ErrQuotaExceeded, false},
		{"gateway timeout", http.StatusGatewayTimeout, "timeout", ErrUpstreamTimeout, true},
		{"server error", http.StatusInternalServerError, "boom", ErrUpstreamError, true},
		{"bad gateway", http.StatusBadGateway, "bad", ErrUpstreamError, true},
		{"unexpected 4xx", http.StatusConflict, "conflict", ErrUpstreamError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MapHTTPError(tt.status, tt.msg, "openai")
			assert.Equal(t, tt.wantCode, err.Code)
			assert.Equal(t, tt.status, err.HTTPStatus)
			assert.Equal(t, tt.retryable, err.Retryable)
			assert.Equal(t, "openai", err.Provider)
			assert.Equal(t, tt.msg, err.Error())
		})
	}
}

func TestReadErrorMessage(t *testing.T) {
	t.Run("openai envelope", func(t *testing.T) {
		body := `{"error":{"message":"model not found","type":"invalid_request_error"}}`
		got := ReadErrorMessage(strings.NewReader(body))
		assert.Equal(t, "model not found (type: invalid_request_error)", got)
	})

	t.Run("envelope without type", func(t *testing.T) {
		body := `{"error":{"message":"overloaded"}}`
		assert.Equal(t, "overloaded", ReadErrorMessage(strings.NewReader(body)))
	})

	t.Run("raw text fallback", func(t *testing.T) {
		assert.Equal(t, "502 bad gateway", ReadErrorMessage(strings.NewReader("502 bad gateway")))
	})
}
