// Package memory is an in-process implementation of the ledger, job and
// synthesis cache repositories. It applies the same guards as the Postgres
// statements under one mutex and backs service and handler tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"vocalizz/internal/domain"
)

// Store holds accounts, jobs and ledger rows.
type Store struct {
	mu       sync.Mutex
	accounts map[string]*domain.Account
	jobs     map[string]*domain.Job
	handles  map[string]string
	ledger   map[string][]domain.CreditTransaction
	refs     map[string]bool
	cache    map[string]string
	order    map[string]int
	seq      int
	now      func() time.Time
}

func New() *Store {
	return &Store{
		accounts: map[string]*domain.Account{},
		jobs:     map[string]*domain.Job{},
		handles:  map[string]string{},
		ledger:   map[string][]domain.CreditTransaction{},
		refs:     map[string]bool{},
		cache:    map[string]string{},
		order:    map[string]int{},
		now:      time.Now,
	}
}

// SetClock overrides the timestamp source.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// PutAccount inserts or replaces an account.
func (s *Store) PutAccount(a domain.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := a
	s.accounts[a.ID] = &cp
}

// Account returns a snapshot of an account.
func (s *Store) Account(id string) domain.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.accounts[id]; ok {
		return *a
	}
	return domain.Account{}
}

// Job returns a snapshot of a job.
func (s *Store) Job(id string) domain.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok {
		return cloneJob(j)
	}
	return domain.Job{}
}

// Backdate moves a job's creation time, for staleness scenarios.
func (s *Store) Backdate(jobID string, createdAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[jobID]; ok {
		j.CreatedAt = createdAt
	}
}

// DeleteJob removes a job as if its owner deleted it.
func (s *Store) DeleteJob(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[jobID]; ok {
		delete(s.handles, j.ExternalHandle)
		delete(s.jobs, jobID)
	}
}

// Transactions returns the ledger of an account, oldest first.
func (s *Store) Transactions(accountID string) []domain.CreditTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.CreditTransaction(nil), s.ledger[accountID]...)
}

// ActiveJobs counts non-terminal jobs of an account.
func (s *Store) ActiveJobs(accountID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, j := range s.jobs {
		if j.OwnerID == accountID && !j.Status.Terminal() {
			n++
		}
	}
	return n
}

func (s *Store) GetAccount(_ context.Context, accountID string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *Store) FindAccountByCustomer(_ context.Context, customerID string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if customerID != "" && a.StripeCustomerID == customerID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

// EnsureAccount creates a basic account with welcomeCredits when id is new.
func (s *Store) EnsureAccount(_ context.Context, accountID, email string, welcomeCredits int) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if accountID == "" {
		accountID = uuid.NewString()
	}
	if a, ok := s.accounts[accountID]; ok {
		if a.Email == "" {
			a.Email = email
		}
		cp := *a
		return &cp, nil
	}
	now := s.now()
	a := &domain.Account{
		ID:            accountID,
		Email:         email,
		Tier:          domain.TierBasic,
		CreditBalance: welcomeCredits,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.accounts[accountID] = a
	if welcomeCredits > 0 {
		s.appendLedger(a, "", "welcome", welcomeCredits, "")
	}
	cp := *a
	return &cp, nil
}

// ListTransactions returns the newest ledger rows first.
func (s *Store) ListTransactions(_ context.Context, accountID string, limit int) ([]domain.CreditTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.ledger[accountID]
	out := make([]domain.CreditTransaction, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		out = append(out, rows[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) Reserve(_ context.Context, p domain.ReserveParams) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[p.AccountID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if err := domain.CheckReservation(*a, p); err != nil {
		return nil, err
	}
	now := s.now()
	a.CreditBalance -= p.Cost
	a.ActiveJobCount++
	a.UpdatedAt = now
	job := &domain.Job{
		ID:                 uuid.NewString(),
		OwnerID:            a.ID,
		Kind:               p.Kind,
		Status:             domain.JobStatusQueued,
		CostInCredits:      p.Cost,
		QualityTier:        p.QualityTier,
		Epochs:             p.Epochs,
		Cleaning:           p.Cleaning,
		Name:               p.Name,
		SourceArtifactPath: p.SourcePath,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	s.jobs[job.ID] = job
	s.seq++
	s.order[job.ID] = s.seq
	if p.Cost > 0 {
		s.appendLedger(a, job.ID, "reservation", -p.Cost, "")
	}
	cp := cloneJob(job)
	return &cp, nil
}

func (s *Store) Compensate(_ context.Context, jobID, reason string, refund bool) (*domain.Job, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return nil, false, domain.ErrNotFound
	}
	if j.Status.Terminal() {
		cp := cloneJob(j)
		return &cp, false, nil
	}
	j.Status = domain.JobStatusFailed
	j.ErrorDetail = reason
	j.UpdatedAt = s.now()
	if a, ok := s.accounts[j.OwnerID]; ok {
		a.ActiveJobCount = max(a.ActiveJobCount-1, 0)
		if refund && j.CostInCredits > 0 {
			a.CreditBalance += j.CostInCredits
			s.appendLedger(a, j.ID, "refund", j.CostInCredits, "")
		}
	}
	cp := cloneJob(j)
	return &cp, true, nil
}

func (s *Store) Complete(_ context.Context, jobID string, outputRefs map[string]string) (*domain.Job, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return nil, false, domain.ErrNotFound
	}
	if j.Status.Terminal() {
		cp := cloneJob(j)
		return &cp, false, nil
	}
	j.Status = domain.JobStatusCompleted
	j.ErrorDetail = ""
	if len(outputRefs) > 0 && j.OutputRefs == nil {
		j.OutputRefs = map[string]string{}
	}
	for k, v := range outputRefs {
		j.OutputRefs[k] = v
	}
	j.UpdatedAt = s.now()
	if a, ok := s.accounts[j.OwnerID]; ok {
		a.ActiveJobCount = max(a.ActiveJobCount-1, 0)
	}
	cp := cloneJob(j)
	return &cp, true, nil
}

func (s *Store) ApplyGrant(_ context.Context, g domain.PaymentGrant) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[g.AccountID]
	if !ok {
		return false, domain.ErrNotFound
	}
	if g.Reference != "" {
		if s.refs[g.Reference] {
			return false, nil
		}
		s.refs[g.Reference] = true
	}
	a.CreditBalance += g.Credits
	if g.Tier != "" {
		a.Tier = g.Tier
	}
	if g.StripeCustomerID != "" {
		a.StripeCustomerID = g.StripeCustomerID
	}
	kind := g.Kind
	if kind == "" {
		kind = "grant"
	}
	s.appendLedger(a, "", kind, g.Credits, g.Reference)
	return true, nil
}

func (s *Store) GetByID(_ context.Context, jobID string) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := cloneJob(j)
	return &cp, nil
}

func (s *Store) GetByExternalHandle(_ context.Context, handle string) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.handles[handle]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := cloneJob(s.jobs[id])
	return &cp, nil
}

func (s *Store) ListByOwner(_ context.Context, ownerID string, limit int) ([]domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Job
	for _, j := range s.jobs {
		if j.OwnerID == ownerID {
			out = append(out, cloneJob(j))
		}
	}
	sort.Slice(out, func(a, b int) bool { return s.order[out[a].ID] > s.order[out[b].ID] })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ListActiveCreatedBefore(_ context.Context, before time.Time, limit int) ([]domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Job
	for _, j := range s.jobs {
		if !j.Status.Terminal() && j.CreatedAt.Before(before) {
			out = append(out, cloneJob(j))
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.Before(out[b].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) MarkProcessing(_ context.Context, jobID, handle string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok || j.Status != domain.JobStatusQueued {
		return false, nil
	}
	j.Status = domain.JobStatusProcessing
	j.ExternalHandle = handle
	j.UpdatedAt = s.now()
	s.handles[handle] = jobID
	return true, nil
}

func (s *Store) Get(_ context.Context, hash string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.cache[hash]
	if !ok {
		return "", domain.ErrNotFound
	}
	return p, nil
}

func (s *Store) Put(_ context.Context, hash, storagePath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[hash] = storagePath
	return nil
}

func (s *Store) appendLedger(a *domain.Account, jobID, kind string, delta int, ref string) {
	s.ledger[a.ID] = append(s.ledger[a.ID], domain.CreditTransaction{
		ID:           uuid.NewString(),
		JobID:        jobID,
		Kind:         kind,
		Delta:        delta,
		BalanceAfter: a.CreditBalance,
		Reference:    ref,
		CreatedAt:    s.now(),
	})
}

func cloneJob(j *domain.Job) domain.Job {
	cp := *j
	if j.OutputRefs != nil {
		cp.OutputRefs = make(map[string]string, len(j.OutputRefs))
		for k, v := range j.OutputRefs {
			cp.OutputRefs[k] = v
		}
	}
	return cp
}

var (
	_ domain.LedgerRepository         = (*Store)(nil)
	_ domain.JobRepository            = (*Store)(nil)
	_ domain.SynthesisCacheRepository = (*Store)(nil)
	_ domain.AccountDirectory         = (*Store)(nil)
)
