package handlers

import (
	"errors"
	"net/http"

	"vocalizz/internal/domain"
	"vocalizz/internal/middleware"
)

const (
	codeUnauthorized        = "unauthorized"
	codeForbidden           = "forbidden"
	codeNotFound            = "not_found"
	codeBadRequest          = "bad_request"
	codeInsufficientCredits = "insufficient_credits"
	codeTierRequired        = "tier_required"
	codeQuotaExceeded       = "quota_exceeded"
	codeSubmissionFailed    = "submission_failed"
	codeJobTerminal         = "job_terminal"
	codeNotStale            = "not_stale"
	codeInvalidSignature    = "invalid_signature"
	codeUnavailable         = "unavailable"
	codeInternal            = "internal"
)

var messages = map[string]map[string]string{
	"fr": {
		codeUnauthorized:        "Authentification requise.",
		codeForbidden:           "Vous n'avez pas accès à cette ressource.",
		codeNotFound:            "Ressource introuvable.",
		codeBadRequest:          "Requête invalide.",
		codeInsufficientCredits: "Crédits insuffisants pour cette opération.",
		codeTierRequired:        "La qualité premium nécessite un abonnement Pro ou Studio.",
		codeQuotaExceeded:       "Nombre maximal d'entraînements simultanés atteint.",
		codeSubmissionFailed:    "Le fournisseur a refusé la tâche. Vos crédits ont été remboursés.",
		codeJobTerminal:         "Cette tâche est déjà terminée.",
		codeNotStale:            "Cette tâche n'a pas encore dépassé sa durée maximale.",
		codeInvalidSignature:    "Signature invalide.",
		codeUnavailable:         "Service temporairement indisponible.",
		codeInternal:            "Erreur interne.",
	},
	"en": {
		codeUnauthorized:        "Authentication required.",
		codeForbidden:           "You do not have access to this resource.",
		codeNotFound:            "Resource not found.",
		codeBadRequest:          "Invalid request.",
		codeInsufficientCredits: "Not enough credits for this operation.",
		codeTierRequired:        "Premium quality requires a Pro or Studio subscription.",
		codeQuotaExceeded:       "Maximum number of concurrent trainings reached.",
		codeSubmissionFailed:    "The provider rejected the job. Your credits were refunded.",
		codeJobTerminal:         "This job has already finished.",
		codeNotStale:            "This job has not exceeded its maximum duration yet.",
		codeInvalidSignature:    "Invalid signature.",
		codeUnavailable:         "Service temporarily unavailable.",
		codeInternal:            "Internal error.",
	},
}

func message(locale, code string) string {
	if m, ok := messages[locale][code]; ok {
		return m
	}
	return messages["en"][code]
}

type errorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func (a *App) error(w http.ResponseWriter, r *http.Request, status int, code string, details map[string]any) {
	a.json(w, status, errorEnvelope{Error: errorBody{
		Code:    code,
		Message: message(middleware.LocaleFromContext(r.Context()), code),
		Details: details,
	}})
}

// domainError maps service errors onto HTTP statuses.
func (a *App) domainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ice *domain.InsufficientCreditsError
		qe  *domain.QuotaExceededError
		sfe *domain.SubmissionFailedError
	)
	switch {
	case errors.As(err, &ice):
		a.error(w, r, http.StatusPaymentRequired, codeInsufficientCredits, map[string]any{
			"required": ice.Cost, "available": ice.Balance, "shortfall": ice.Shortfall(),
		})
	case errors.Is(err, domain.ErrInsufficientCredits):
		a.error(w, r, http.StatusPaymentRequired, codeInsufficientCredits, nil)
	case errors.Is(err, domain.ErrTierRequired):
		a.error(w, r, http.StatusForbidden, codeTierRequired, nil)
	case errors.As(err, &qe):
		a.error(w, r, http.StatusConflict, codeQuotaExceeded, map[string]any{"active": qe.Active, "max": qe.Max})
	case errors.Is(err, domain.ErrQuotaExceeded):
		a.error(w, r, http.StatusConflict, codeQuotaExceeded, nil)
	case errors.As(err, &sfe):
		a.error(w, r, http.StatusBadGateway, codeSubmissionFailed, map[string]any{"job_id": sfe.JobID, "reason": sfe.Reason})
	case errors.Is(err, domain.ErrJobTerminal), errors.Is(err, domain.ErrJobNotQueued):
		a.error(w, r, http.StatusConflict, codeJobTerminal, nil)
	case errors.Is(err, domain.ErrNotStale):
		a.error(w, r, http.StatusConflict, codeNotStale, nil)
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, r, http.StatusNotFound, codeNotFound, nil)
	case errors.Is(err, domain.ErrUnauthorized):
		a.error(w, r, http.StatusForbidden, codeForbidden, nil)
	case errors.Is(err, domain.ErrInvalidInput):
		a.error(w, r, http.StatusBadRequest, codeBadRequest, map[string]any{"reason": err.Error()})
	default:
		a.Logger.Error().Err(err).Str("path", r.URL.Path).Str("request_id", middleware.RequestIDFromContext(r.Context())).Msg("request failed")
		a.error(w, r, http.StatusInternalServerError, codeInternal, nil)
	}
}
