// Package elevenlabs is the speech synthesis client.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"vocalizz/internal/domain"
	"vocalizz/internal/infra"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("elevenlabs: api key is required")

// DefaultModel is used when a request names no model.
const DefaultModel = "eleven_multilingual_v2"

// Options configures the ElevenLabs client.
type Options struct {
	APIKey         string
	BaseURL        string
	Model          string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the ElevenLabs API.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

var defaultVoiceSettings = voiceSettings{Stability: 0.5, SimilarityBoost: 0.75}

type ttsRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voicesResponse struct {
	Voices []struct {
		VoiceID  string            `json:"voice_id"`
		Name     string            `json:"name"`
		Category string            `json:"category"`
		Labels   map[string]string `json:"labels"`
	} `json:"voices"`
}

type errorResponse struct {
	Detail struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"detail"`
}

// NewClient constructs a client with defaults for unset options.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.elevenlabs.io/v1"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultModel
	}
	logger := opts.Logger
	if logger == nil {
		l := infra.Logger(zerolog.New(io.Discard))
		logger = &l
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Model returns the configured default model identifier.
func (c *Client) Model() string {
	return c.model
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// TextToSpeech renders req.Text with req.VoiceID and returns MPEG audio.
func (c *Client) TextToSpeech(ctx context.Context, req domain.SpeechRequest) ([]byte, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingAPIKey
	}
	if strings.TrimSpace(req.Text) == "" || req.VoiceID == "" {
		return nil, errors.New("elevenlabs: text and voice are required")
	}
	model := req.ModelID
	if model == "" {
		model = c.model
	}
	body, err := json.Marshal(ttsRequest{Text: req.Text, ModelID: model, VoiceSettings: defaultVoiceSettings})
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: encode request: %w", err)
	}
	audio, err := c.post(ctx, "/text-to-speech/"+req.VoiceID, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	c.logger.Debug().Str("voice_id", req.VoiceID).Int("chars", len(req.Text)).Int("bytes", len(audio)).Msg("elevenlabs: text to speech")
	return audio, nil
}

// SpeechToSpeech re-voices req.Audio with req.VoiceID.
func (c *Client) SpeechToSpeech(ctx context.Context, req domain.SpeechRequest) ([]byte, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingAPIKey
	}
	if len(req.Audio) == 0 || req.VoiceID == "" {
		return nil, errors.New("elevenlabs: audio and voice are required")
	}
	model := req.ModelID
	if model == "" {
		model = "eleven_multilingual_sts_v2"
	}
	name := req.AudioName
	if name == "" {
		name = "source.mp3"
	}
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("audio", name)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: build form: %w", err)
	}
	if _, err := part.Write(req.Audio); err != nil {
		return nil, fmt.Errorf("elevenlabs: build form: %w", err)
	}
	if err := mw.WriteField("model_id", model); err != nil {
		return nil, fmt.Errorf("elevenlabs: build form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("elevenlabs: build form: %w", err)
	}
	audio, err := c.post(ctx, "/speech-to-speech/"+req.VoiceID, mw.FormDataContentType(), &buf)
	if err != nil {
		return nil, err
	}
	c.logger.Debug().Str("voice_id", req.VoiceID).Int("bytes", len(audio)).Msg("elevenlabs: speech to speech")
	return audio, nil
}

// ListVoices returns the voices available to the account.
func (c *Client) ListVoices(ctx context.Context) ([]domain.Voice, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingAPIKey
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: build request: %w", err)
	}
	raw, err := c.send(httpReq)
	if err != nil {
		return nil, err
	}
	var decoded voicesResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("elevenlabs: decode voices: %w", err)
	}
	voices := make([]domain.Voice, 0, len(decoded.Voices))
	for _, v := range decoded.Voices {
		voices = append(voices, domain.Voice{ID: v.VoiceID, Name: v.Name, Category: v.Category, Labels: v.Labels})
	}
	return voices, nil
}

func (c *Client) post(ctx context.Context, path, contentType string, body io.Reader) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "audio/mpeg")
	return c.send(httpReq)
}

func (c *Client) send(httpReq *http.Request) ([]byte, error) {
	httpReq.Header.Set("xi-api-key", c.apiKey)
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var detail errorResponse
		if err := json.Unmarshal(raw, &detail); err == nil && detail.Detail.Message != "" {
			return nil, fmt.Errorf("elevenlabs: %s (%s)", detail.Detail.Message, detail.Detail.Status)
		}
		msg := strings.TrimSpace(string(raw))
		if len(msg) > 100 {
			msg = msg[:100]
		}
		return nil, fmt.Errorf("elevenlabs: status %d: %s", resp.StatusCode, msg)
	}
	return raw, nil
}
