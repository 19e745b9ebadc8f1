package replicate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	replicatego "github.com/replicate/replicate-go"
)

// WebhookTolerance bounds the clock skew accepted on webhook timestamps.
const WebhookTolerance = 5 * time.Minute

var (
	ErrMissingSignature = errors.New("replicate: webhook signature headers missing")
	ErrInvalidSignature = errors.New("replicate: webhook signature mismatch")
	ErrStaleWebhook     = errors.New("replicate: webhook timestamp outside tolerance")
)

// VerifyWebhook checks the webhook-id, webhook-timestamp and
// webhook-signature headers against secret ("whsec_" followed by base64).
// Deliveries older or newer than WebhookTolerance are refused as replays.
func VerifyWebhook(secret string, header http.Header, body []byte, now time.Time) error {
	ts := header.Get("webhook-timestamp")
	if header.Get("webhook-id") == "" || ts == "" || header.Get("webhook-signature") == "" {
		return ErrMissingSignature
	}
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return fmt.Errorf("replicate: webhook timestamp %q: %w", ts, ErrMissingSignature)
	}
	sent := time.Unix(unix, 0)
	if now.Sub(sent) > WebhookTolerance || sent.Sub(now) > WebhookTolerance {
		return ErrStaleWebhook
	}

	req, err := http.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("replicate: build webhook request: %w", err)
	}
	req.Header = header.Clone()
	ok, err := replicatego.ValidateWebhookRequest(req, replicatego.WebhookSigningSecret{Key: secret})
	if err != nil {
		return fmt.Errorf("replicate: validate webhook: %w", err)
	}
	if !ok {
		return ErrInvalidSignature
	}
	return nil
}

// Prediction is the webhook body of a finished prediction.
type Prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  any             `json:"error"`
}

// ParsePrediction decodes a webhook body.
func ParsePrediction(body []byte) (Prediction, error) {
	var p Prediction
	if err := json.Unmarshal(body, &p); err != nil {
		return Prediction{}, fmt.Errorf("replicate: decode webhook: %w", err)
	}
	if p.ID == "" {
		return Prediction{}, errors.New("replicate: webhook without prediction id")
	}
	return p, nil
}

// OutputRefs flattens the prediction output into string references. A bare
// string or the first string of an array becomes "model_url".
func (p Prediction) OutputRefs() map[string]string {
	if len(p.Output) == 0 || string(p.Output) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(p.Output, &s); err == nil {
		return map[string]string{"model_url": s}
	}
	var list []any
	if err := json.Unmarshal(p.Output, &list); err == nil {
		for _, v := range list {
			if str, ok := v.(string); ok && str != "" {
				return map[string]string{"model_url": str}
			}
		}
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal(p.Output, &obj); err == nil {
		refs := map[string]string{}
		for k, v := range obj {
			if str, ok := v.(string); ok {
				refs[k] = str
			}
		}
		return refs
	}
	return nil
}

// ErrorMessage renders the prediction error, if any.
func (p Prediction) ErrorMessage() string {
	switch e := p.Error.(type) {
	case nil:
		return ""
	case string:
		return e
	default:
		raw, _ := json.Marshal(e)
		return string(raw)
	}
}
