// Package replicate starts and cancels voice-model training predictions.
package replicate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"vocalizz/internal/domain"
	"vocalizz/internal/infra"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("replicate: api key is required")

// Options configures the Replicate client.
type Options struct {
	APIKey         string
	BaseURL        string
	ModelVersion   string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the Replicate predictions API.
type Client struct {
	apiKey     string
	baseURL    string
	version    string
	httpClient *http.Client
	logger     *infra.Logger
}

type predictionRequest struct {
	Version             string          `json:"version"`
	Input               predictionInput `json:"input"`
	Webhook             string          `json:"webhook,omitempty"`
	WebhookEventsFilter []string        `json:"webhook_events_filter,omitempty"`
}

type predictionInput struct {
	AudioDataPath string `json:"audio_data_path"`
	Epochs        int    `json:"epochs"`
	ModelName     string `json:"model_name"`
	ApplyCleaning bool   `json:"apply_cleaning"`
}

type predictionResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  any    `json:"error"`
}

type errorResponse struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// NewClient constructs a client with defaults for unset options.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.replicate.com/v1"
	}
	version := strings.TrimSpace(opts.ModelVersion)
	if version == "" {
		return nil, errors.New("replicate: model version is required")
	}
	logger := opts.Logger
	if logger == nil {
		l := infra.Logger(zerolog.New(io.Discard))
		logger = &l
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		version:    version,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// CreateJob starts a training prediction and returns its id. Completion is
// reported to req.CallbackURL.
func (c *Client) CreateJob(ctx context.Context, req domain.TrainingRequest) (string, error) {
	if !c.HasCredentials() {
		return "", ErrMissingAPIKey
	}
	if req.SourceURL == "" {
		return "", errors.New("replicate: source url is required")
	}
	payload := predictionRequest{
		Version: c.version,
		Input: predictionInput{
			AudioDataPath: req.SourceURL,
			Epochs:        req.Epochs,
			ModelName:     req.ModelName,
			ApplyCleaning: req.Cleaning,
		},
		Webhook:             req.CallbackURL,
		WebhookEventsFilter: []string{"completed"},
	}
	var decoded predictionResponse
	if err := c.do(ctx, http.MethodPost, "/predictions", payload, &decoded); err != nil {
		return "", err
	}
	if decoded.ID == "" {
		return "", errors.New("replicate: empty prediction id")
	}
	c.logger.Info().
		Str("job_id", req.JobID).
		Str("external_handle", decoded.ID).
		Int("epochs", req.Epochs).
		Msg("replicate: prediction created")
	return decoded.ID, nil
}

// CancelJob asks Replicate to stop a prediction.
func (c *Client) CancelJob(ctx context.Context, handle string) error {
	if !c.HasCredentials() {
		return ErrMissingAPIKey
	}
	if handle == "" {
		return errors.New("replicate: handle is required")
	}
	return c.do(ctx, http.MethodPost, "/predictions/"+handle+"/cancel", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("replicate: encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("replicate: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("replicate: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("replicate: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var detail errorResponse
		if err := json.Unmarshal(raw, &detail); err == nil && detail.Detail != "" {
			return fmt.Errorf("replicate: status %d: %s", resp.StatusCode, detail.Detail)
		}
		return fmt.Errorf("replicate: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("replicate: decode response: %w", err)
	}
	return nil
}
