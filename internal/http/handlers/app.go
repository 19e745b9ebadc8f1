package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"vocalizz/internal/billing"
	"vocalizz/internal/domain"
	"vocalizz/internal/infra"
	"vocalizz/internal/jobs"
	"vocalizz/internal/metrics"
	"vocalizz/internal/middleware"
	"vocalizz/internal/payments"
	"vocalizz/internal/storage"
)

// VoiceLister lists the voices available for text-to-speech.
type VoiceLister interface {
	ListVoices(ctx context.Context) ([]domain.Voice, error)
}

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// App carries the dependencies of every HTTP handler.
type App struct {
	Config *infra.Config
	Logger infra.Logger
	DB     Pinger

	Accounts domain.AccountDirectory
	Ledger   domain.LedgerRepository
	Jobs     domain.JobRepository

	Guard       *billing.Guard
	Submitter   *jobs.Submitter
	Reconciler  *jobs.Reconciler
	Canceller   *jobs.Canceller
	Synthesizer *jobs.Synthesizer

	Storage  storage.Store
	Files    *storage.FileStore
	Voices   VoiceLister
	Payments *payments.Processor
	Stripe   *payments.Verifier
	Metrics  *metrics.Collector

	now func() time.Time
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

func (a *App) clock() time.Time {
	if a.now != nil {
		return a.now()
	}
	return time.Now()
}

func (a *App) policy() domain.PricingPolicy {
	if a.Config == nil {
		return domain.DefaultPricingPolicy()
	}
	return domain.PricingPolicy{EnforceCredits: a.Config.EnforceCredits, EnforceQuota: a.Config.EnforceQuota}
}

func (a *App) welcomeCredits() int {
	if a.Config == nil {
		return 0
	}
	return a.Config.WelcomeCredits
}

// account resolves the caller's account, provisioning it on first use. It
// writes the error response itself and returns nil on failure.
func (a *App) account(w http.ResponseWriter, r *http.Request) *domain.Account {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, r, http.StatusUnauthorized, codeUnauthorized, nil)
		return nil
	}
	acct, err := a.Accounts.EnsureAccount(r.Context(), userID, middleware.UserEmailFromContext(r.Context()), a.welcomeCredits())
	if err != nil {
		a.domainError(w, r, err)
		return nil
	}
	return acct
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v)
}
