package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestLoggerRecordsAccountResolvedDownstream(t *testing.T) {
	var buf bytes.Buffer
	token, err := SignToken("secret", "acct-9", "", time.Hour)
	if err != nil {
		t.Fatalf("SignToken: %v", err)
	}
	h := RequestID(Logger(zerolog.New(&buf))(AuthJWT("secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))))

	req := httptest.NewRequest(http.MethodPost, "/v1/jobs/training", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Request-ID", "req-7")
	h.ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode access line %q: %v", buf.String(), err)
	}
	if line["account_id"] != "acct-9" || line["request_id"] != "req-7" || line["status"] != float64(http.StatusAccepted) {
		t.Fatalf("unexpected access line: %v", line)
	}
}
