package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"vocalizz/internal/billing"
	"vocalizz/internal/domain"
	"vocalizz/internal/jobs"
	"vocalizz/internal/storage"
)

type jobView struct {
	ID                      string             `json:"id"`
	Kind                    domain.JobKind     `json:"kind"`
	Status                  domain.JobStatus   `json:"status"`
	CostInCredits           int                `json:"cost_in_credits"`
	QualityTier             domain.QualityTier `json:"quality_tier,omitempty"`
	Epochs                  int                `json:"epochs,omitempty"`
	Cleaning                bool               `json:"cleaning"`
	Name                    string             `json:"name,omitempty"`
	SourcePath              string             `json:"source_path,omitempty"`
	OutputRefs              map[string]string  `json:"output_refs,omitempty"`
	Error                   string             `json:"error,omitempty"`
	Progress                int                `json:"progress"`
	Stale                   bool               `json:"stale"`
	ExpectedDurationSeconds int                `json:"expected_duration_seconds,omitempty"`
	CreatedAt               time.Time          `json:"created_at"`
	UpdatedAt               time.Time          `json:"updated_at"`
}

func newJobView(j domain.Job, now time.Time) jobView {
	v := jobView{
		ID:            j.ID,
		Kind:          j.Kind,
		Status:        j.Status,
		CostInCredits: j.CostInCredits,
		Cleaning:      j.Cleaning,
		Name:          j.Name,
		SourcePath:    j.SourceArtifactPath,
		OutputRefs:    j.OutputRefs,
		Error:         j.ErrorDetail,
		Progress:      domain.JobProgress(j, now),
		Stale:         domain.IsStale(j, now),
		CreatedAt:     j.CreatedAt,
		UpdatedAt:     j.UpdatedAt,
	}
	if j.Kind == domain.JobKindTraining {
		v.QualityTier = j.QualityTier
		v.Epochs = j.Epochs
		v.ExpectedDurationSeconds = domain.ExpectedDurationSeconds(j.QualityTier)
	}
	return v
}

type trainingRequest struct {
	Name        string `json:"name"`
	QualityTier string `json:"quality_tier"`
	Epochs      int    `json:"epochs"`
	Cleaning    bool   `json:"cleaning"`
	SourcePath  string `json:"source_path"`
}

// CreateTraining reserves credits and a quota slot, then submits the job to
// the training provider.
func (a *App) CreateTraining(w http.ResponseWriter, r *http.Request) {
	acct := a.account(w, r)
	if acct == nil {
		return
	}
	var req trainingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.error(w, r, http.StatusBadRequest, codeBadRequest, map[string]any{"reason": "invalid payload"})
		return
	}
	source := strings.TrimSpace(req.SourcePath)
	if source == "" && strings.TrimSpace(req.Name) != "" {
		source = storage.SourcePrefix(acct.ID, req.Name)
	}
	if source != "" {
		owned, ok := storage.OwnedKey(acct.ID, source)
		if !ok {
			a.domainError(w, r, domain.ErrUnauthorized)
			return
		}
		source = owned
	}

	job, err := a.Guard.Reserve(r.Context(), billing.ReserveRequest{
		AccountID:   acct.ID,
		Kind:        domain.JobKindTraining,
		QualityTier: domain.QualityTier(strings.ToLower(strings.TrimSpace(req.QualityTier))),
		Epochs:      req.Epochs,
		Cleaning:    req.Cleaning,
		Name:        req.Name,
		SourcePath:  source,
	}, a.policy())
	if err != nil {
		a.domainError(w, r, err)
		return
	}

	submitted, err := a.Submitter.Submit(r.Context(), job.ID)
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusAccepted, newJobView(*submitted, a.clock()))
}

func (a *App) ListJobs(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, r, http.StatusUnauthorized, codeUnauthorized, nil)
		return
	}
	list, err := a.Jobs.ListByOwner(r.Context(), userID, queryLimit(r, 20, 100))
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	now := a.clock()
	items := make([]jobView, 0, len(list))
	for _, j := range list {
		items = append(items, newJobView(j, now))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

func (a *App) GetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := a.ownedJob(w, r)
	if !ok {
		return
	}
	a.json(w, http.StatusOK, newJobView(*job, a.clock()))
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (a *App) CancelJob(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, r, http.StatusUnauthorized, codeUnauthorized, nil)
		return
	}
	var req cancelRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			a.error(w, r, http.StatusBadRequest, codeBadRequest, map[string]any{"reason": "invalid payload"})
			return
		}
	}
	jobID := chi.URLParam(r, "job_id")
	if _, err := uuid.Parse(jobID); err != nil {
		a.domainError(w, r, domain.ErrNotFound)
		return
	}
	job, err := a.Canceller.Cancel(r.Context(), jobs.CancelRequest{
		JobID:       jobID,
		RequestedBy: jobs.Principal{AccountID: userID},
		Reason:      jobs.CancelReason(strings.ToLower(strings.TrimSpace(req.Reason))),
	})
	if err != nil {
		// Hide other accounts' jobs.
		if errors.Is(err, domain.ErrUnauthorized) {
			err = domain.ErrNotFound
		}
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, newJobView(*job, a.clock()))
}

// ownedJob loads the path job and answers 404 for jobs of other accounts.
func (a *App) ownedJob(w http.ResponseWriter, r *http.Request) (*domain.Job, bool) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, r, http.StatusUnauthorized, codeUnauthorized, nil)
		return nil, false
	}
	jobID := chi.URLParam(r, "job_id")
	if _, err := uuid.Parse(jobID); err != nil {
		a.domainError(w, r, domain.ErrNotFound)
		return nil, false
	}
	job, err := a.Jobs.GetByID(r.Context(), jobID)
	if err != nil {
		a.domainError(w, r, err)
		return nil, false
	}
	if job.OwnerID != userID {
		a.domainError(w, r, domain.ErrNotFound)
		return nil, false
	}
	return job, true
}
