package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"vocalizz/internal/domain"
	"vocalizz/internal/jobs"
	"vocalizz/internal/providers/replicate"
)

const maxWebhookBody = 1 << 20

// ProviderWebhook receives training completion callbacks. Any verified
// delivery is acknowledged with 200 unless storage failed, in which case the
// provider retries.
func (a *App) ProviderWebhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() { a.Metrics.ObserveWebhook("replicate", time.Since(start)) }()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		a.error(w, r, http.StatusBadRequest, codeBadRequest, nil)
		return
	}
	secret := ""
	if a.Config != nil {
		secret = a.Config.ReplicateWebhookSecret
	}
	if secret != "" {
		if err := replicate.VerifyWebhook(secret, r.Header, body, a.clock()); err != nil {
			a.Logger.Warn().Err(err).Msg("provider webhook rejected")
			a.error(w, r, http.StatusUnauthorized, codeInvalidSignature, nil)
			return
		}
	} else if a.Config == nil || a.Config.AppEnv != "development" {
		a.Logger.Error().Msg("provider webhook secret not configured")
		a.error(w, r, http.StatusServiceUnavailable, codeUnavailable, nil)
		return
	}

	prediction, err := replicate.ParsePrediction(body)
	if err != nil {
		a.error(w, r, http.StatusBadRequest, codeBadRequest, map[string]any{"reason": err.Error()})
		return
	}
	ack, err := a.Reconciler.OnProviderNotification(r.Context(), jobs.Notification{
		ExternalHandle: prediction.ID,
		Status:         prediction.Status,
		OutputRefs:     prediction.OutputRefs(),
		Error:          prediction.ErrorMessage(),
	})
	if err != nil {
		a.Logger.Error().Err(err).Str("external_handle", prediction.ID).Msg("provider webhook failed")
		a.error(w, r, http.StatusInternalServerError, codeInternal, nil)
		return
	}
	a.Logger.Info().Str("external_handle", prediction.ID).Str("status", prediction.Status).Str("outcome", ack.Outcome).Msg("provider webhook handled")
	a.json(w, http.StatusOK, ack)
}

// StripeWebhook applies payment events. Unknown customers answer 404 so the
// delivery shows up as failed in the Stripe dashboard.
func (a *App) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() { a.Metrics.ObserveWebhook("stripe", time.Since(start)) }()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		a.error(w, r, http.StatusBadRequest, codeBadRequest, nil)
		return
	}
	event, err := a.Stripe.Verify(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		a.Logger.Warn().Err(err).Msg("stripe webhook rejected")
		a.error(w, r, http.StatusBadRequest, codeInvalidSignature, nil)
		return
	}
	res, err := a.Payments.Handle(r.Context(), event)
	switch {
	case err == nil:
		a.json(w, http.StatusOK, res)
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrInvalidInput):
		a.Logger.Warn().Err(err).Str("event_id", event.ID).Msg("stripe event not applicable")
		a.domainError(w, r, err)
	default:
		a.Logger.Error().Err(err).Str("event_id", event.ID).Msg("stripe webhook failed")
		a.error(w, r, http.StatusInternalServerError, codeInternal, nil)
	}
}
