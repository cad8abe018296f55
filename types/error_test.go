package types

import (
	"errors"
	"testing"
)

func TestError_ChainingAndHelpers(t *testing.T) {
	t.Parallel()

	root := errors.New("root")
	err := NewError(ErrUpstreamError, "upstream failed").
		WithCause(root).
		WithHTTPStatus(502).
		WithRetryable(true).
		WithProvider("openai")

	if GetErrorCode(err) != ErrUpstreamError {
		t.Fatalf("expected code %s, got %s", ErrUpstreamError, GetErrorCode(err))
	}
	if !IsRetryable(err) {
		t.Fatalf("expected retryable")
	}
	if !errors.Is(err, root) {
		t.Fatalf("expected errors.Is unwrap to root")
	}
	if got := err.Error(); got == "" {
		t.Fatalf("expected non-empty error string")
	}
	if HTTPStatusOf(err) != 502 {
		t.Fatalf("expected 502, got %d", HTTPStatusOf(err))
	}
}

func TestError_Defaults(t *testing.T) {
	t.Parallel()

	plain := errors.New("plain")
	if IsRetryable(plain) {
		t.Fatalf("plain errors are not retryable")
	}
	if GetErrorCode(plain) != "" {
		t.Fatalf("plain errors have no code")
	}
	if HTTPStatusOf(plain) != 500 {
		t.Fatalf("plain errors default to 500")
	}
	if HTTPStatusOf(NewError(ErrMeshLoad, "bad stl")) != 500 {
		t.Fatalf("unset status defaults to 500")
	}
}
