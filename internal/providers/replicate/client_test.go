package replicate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"vocalizz/internal/domain"
)

type responseStub struct {
	status int
	body   string
}

type captureTransport struct {
	requests  []*http.Request
	bodies    [][]byte
	responses map[string]responseStub
}

func (t *captureTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		body, _ = io.ReadAll(req.Body)
	}
	t.requests = append(t.requests, req)
	t.bodies = append(t.bodies, body)
	stub, ok := t.responses[req.Method+" "+req.URL.Path]
	if !ok {
		return nil, errors.New("unexpected request " + req.Method + " " + req.URL.Path)
	}
	return &http.Response{
		StatusCode: stub.status,
		Body:       io.NopCloser(bytes.NewBufferString(stub.body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Request:    req,
	}, nil
}

func newTestClient(t *testing.T, transport *captureTransport) *Client {
	t.Helper()
	client, err := NewClient(Options{
		APIKey:       "r8_test",
		BaseURL:      "https://replicate.test/v1",
		ModelVersion: "rvc-training:abc",
		HTTPClient:   &http.Client{Transport: transport},
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestCreateJobPayload(t *testing.T) {
	transport := &captureTransport{responses: map[string]responseStub{
		"POST /v1/predictions": {status: 201, body: `{"id":"pred-123","status":"starting"}`},
	}}
	client := newTestClient(t, transport)

	handle, err := client.CreateJob(context.Background(), domain.TrainingRequest{
		JobID:       "job-1",
		SourceURL:   "https://files.test/acct/voice/",
		Epochs:      2000,
		Cleaning:    true,
		ModelName:   "job-1",
		CallbackURL: "https://api.test/v1/webhooks/provider",
	})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if handle != "pred-123" {
		t.Fatalf("handle = %q", handle)
	}
	if got := transport.requests[0].Header.Get("Authorization"); got != "Bearer r8_test" {
		t.Fatalf("authorization = %q", got)
	}
	var sent predictionRequest
	if err := json.Unmarshal(transport.bodies[0], &sent); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if sent.Version != "rvc-training:abc" || sent.Input.Epochs != 2000 || !sent.Input.ApplyCleaning {
		t.Fatalf("unexpected payload %+v", sent)
	}
	if sent.Webhook != "https://api.test/v1/webhooks/provider" {
		t.Fatalf("webhook = %q", sent.Webhook)
	}
}

func TestCreateJobSurfacesProviderError(t *testing.T) {
	transport := &captureTransport{responses: map[string]responseStub{
		"POST /v1/predictions": {status: 422, body: `{"title":"Invalid input","detail":"epochs out of range"}`},
	}}
	_, err := newTestClient(t, transport).CreateJob(context.Background(), domain.TrainingRequest{SourceURL: "s"})
	if err == nil || !strings.Contains(err.Error(), "epochs out of range") {
		t.Fatalf("expected provider detail, got %v", err)
	}
}

func TestCancelJob(t *testing.T) {
	transport := &captureTransport{responses: map[string]responseStub{
		"POST /v1/predictions/pred-9/cancel": {status: 200, body: `{}`},
	}}
	if err := newTestClient(t, transport).CancelJob(context.Background(), "pred-9"); err != nil {
		t.Fatalf("CancelJob: %v", err)
	}
}

func TestMissingAPIKey(t *testing.T) {
	client, err := NewClient(Options{ModelVersion: "v"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := client.CreateJob(context.Background(), domain.TrainingRequest{SourceURL: "s"}); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}
