package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if seen != "req-1" || rr.Header().Get("X-Request-ID") != "req-1" {
		t.Fatalf("incoming id not propagated: ctx=%q header=%q", seen, rr.Header().Get("X-Request-ID"))
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == "" || seen == "req-1" || rr.Header().Get("X-Request-ID") != seen {
		t.Fatalf("expected a generated id, got %q", seen)
	}
}

func TestRequestIDReplacesUnsafeValues(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))
	for _, bad := range []string{"a b", "line\nbreak", "<script>", strings.Repeat("x", 65)} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", bad)
		h.ServeHTTP(httptest.NewRecorder(), req)
		if seen == bad || len(seen) != 36 {
			t.Fatalf("unsafe id %q kept as %q", bad, seen)
		}
	}
}
