package apierr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestKindStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindInvalidRequest, http.StatusBadRequest},
		{KindDecode, http.StatusInternalServerError},
		{KindUpstream, http.StatusInternalServerError},
		{KindUnavailable, http.StatusInternalServerError},
		{KindInternal, http.StatusInternalServerError},
		{KindRateLimited, http.StatusTooManyRequests},
	}
	for _, tt := range tests {
		if got := tt.kind.Status(); got != tt.want {
			t.Fatalf("%s.Status()=%d, want %d", tt.kind, got, tt.want)
		}
	}
}

func TestFromClassifiesWrappedErrors(t *testing.T) {
	inner := InvalidRequest("No image data provided")
	wrapped := fmt.Errorf("predict: %w", inner)

	if got := From(wrapped); got != inner {
		t.Fatalf("From(wrapped)=%v, want the original *Error", got)
	}

	plain := errors.New("boom")
	got := From(plain)
	if got.Kind != KindInternal {
		t.Fatalf("kind=%q, want %q", got.Kind, KindInternal)
	}
	if !errors.Is(got, plain) {
		t.Fatalf("expected internal error to unwrap to cause")
	}
}

func TestWriteUpstreamPassthrough(t *testing.T) {
	rr := httptest.NewRecorder()
	Write(rr, Upstream(http.StatusForbidden, "Failed to initialize with Roboflow", map[string]any{"message": "bad plan"}))

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status=%d, want %d", rr.Code, http.StatusForbidden)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type=%q", ct)
	}
	var body map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "Failed to initialize with Roboflow" || body["code"] != string(KindUpstream) {
		t.Fatalf("body=%v", body)
	}
	details, _ := body["details"].(map[string]any)
	if details["message"] != "bad plan" {
		t.Fatalf("details=%v", body["details"])
	}
}

func TestWriteOmitsEmptyDetails(t *testing.T) {
	rr := httptest.NewRecorder()
	Write(rr, Decode(errors.New("illegal base64 data at input byte 4")))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d, want %d", rr.Code, http.StatusInternalServerError)
	}
	want := `{"error":"illegal base64 data at input byte 4","code":"decode_error"}` + "\n"
	if rr.Body.String() != want {
		t.Fatalf("body=%q, want %q", rr.Body.String(), want)
	}
}
