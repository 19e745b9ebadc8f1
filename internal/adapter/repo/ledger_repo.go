package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"vocalizz/internal/domain"
	"vocalizz/internal/infra"
	"vocalizz/internal/sqlinline"
)

// reserveAttempts bounds the retry when the account changed between the
// rejected reservation and the classifying read.
const reserveAttempts = 3

// TxExecutor is an SQLExecutor that can also open transactions. *infra.SQLRunner
// satisfies it.
type TxExecutor interface {
	infra.SQLExecutor
	WithTx(ctx context.Context, fn func(infra.SQLExecutor) error) error
}

// LedgerRepositoryPG implements domain.LedgerRepository.
type LedgerRepositoryPG struct {
	sql TxExecutor
}

// NewLedgerRepository creates a ledger repository backed by PostgreSQL.
func NewLedgerRepository(sql TxExecutor) *LedgerRepositoryPG {
	return &LedgerRepositoryPG{sql: sql}
}

func (r *LedgerRepositoryPG) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	return scanAccount(r.sql.QueryRow(ctx, sqlinline.QSelectAccountByID, accountID))
}

// FindAccountByEmail matches case-insensitively.
func (r *LedgerRepositoryPG) FindAccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return scanAccount(r.sql.QueryRow(ctx, sqlinline.QSelectAccountByEmail, email))
}

func (r *LedgerRepositoryPG) FindAccountByCustomer(ctx context.Context, customerID string) (*domain.Account, error) {
	return scanAccount(r.sql.QueryRow(ctx, sqlinline.QSelectAccountByCustomer, customerID))
}

// EnsureAccount creates the account for a verified principal on first sight.
func (r *LedgerRepositoryPG) EnsureAccount(ctx context.Context, accountID, email string, welcomeCredits int) (*domain.Account, error) {
	return scanAccount(r.sql.QueryRow(ctx, sqlinline.QUpsertAccount, accountID, email, welcomeCredits))
}

func (r *LedgerRepositoryPG) Reserve(ctx context.Context, p domain.ReserveParams) (*domain.Job, error) {
	for attempt := 0; attempt < reserveAttempts; attempt++ {
		job, err := r.tryReserve(ctx, p)
		if err == nil {
			return job, nil
		}
		if !infra.IsNoRows(err) {
			return nil, fmt.Errorf("reserve job: %w", err)
		}
		acct, err := r.GetAccount(ctx, p.AccountID)
		if err != nil {
			return nil, err
		}
		if rejection := domain.CheckReservation(*acct, p); rejection != nil {
			return nil, rejection
		}
	}
	return nil, fmt.Errorf("reserve job: account %s kept changing: %w", p.AccountID, domain.ErrQuotaExceeded)
}

func (r *LedgerRepositoryPG) tryReserve(ctx context.Context, p domain.ReserveParams) (*domain.Job, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QReserveJob,
		p.AccountID,
		string(p.Kind),
		string(p.QualityTier),
		p.Epochs,
		p.Cleaning,
		p.Name,
		p.SourcePath,
		p.Cost,
		p.Policy.EnforceQuota,
		p.QualityTier.RequiresPaidTier(),
		domain.MaxConcurrentJobs(domain.TierBasic),
		domain.MaxConcurrentJobs(domain.TierStandard),
		domain.MaxConcurrentJobs(domain.TierPremium),
	)
	var (
		j                     domain.Job
		kind, status, quality string
	)
	if err := row.Scan(&j.ID, &j.OwnerID, &kind, &status, &j.CostInCredits, &quality, &j.Epochs, &j.Cleaning,
		&j.Name, &j.SourceArtifactPath, &j.CreatedAt, &j.UpdatedAt); err != nil {
		return nil, err
	}
	j.Kind = domain.JobKind(kind)
	j.Status = domain.JobStatus(status)
	j.QualityTier = domain.QualityTier(quality)
	return &j, nil
}

func (r *LedgerRepositoryPG) Compensate(ctx context.Context, jobID, reason string, refund bool) (*domain.Job, bool, error) {
	job, err := scanJob(r.sql.QueryRow(ctx, sqlinline.QCompensateJob, jobID, reason, refund))
	return r.guarded(ctx, jobID, job, err)
}

func (r *LedgerRepositoryPG) Complete(ctx context.Context, jobID string, outputRefs map[string]string) (*domain.Job, bool, error) {
	raw, err := json.Marshal(outputRefs)
	if err != nil {
		return nil, false, err
	}
	job, err := scanJob(r.sql.QueryRow(ctx, sqlinline.QCompleteJob, jobID, raw))
	return r.guarded(ctx, jobID, job, err)
}

// guarded turns the empty result of a status-guarded update into the current
// job with changed=false.
func (r *LedgerRepositoryPG) guarded(ctx context.Context, jobID string, job *domain.Job, err error) (*domain.Job, bool, error) {
	if err == nil {
		return job, true, nil
	}
	if !infra.IsNoRows(err) {
		return nil, false, err
	}
	current, err := scanJob(r.sql.QueryRow(ctx, sqlinline.QSelectJobByID, jobID))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, false, domain.ErrNotFound
		}
		return nil, false, err
	}
	return current, false, nil
}

func (r *LedgerRepositoryPG) ApplyGrant(ctx context.Context, g domain.PaymentGrant) (bool, error) {
	if g.AccountID == "" {
		return false, fmt.Errorf("grant without account: %w", domain.ErrInvalidInput)
	}
	kind := g.Kind
	if kind == "" {
		kind = "grant"
	}
	applied := false
	err := r.sql.WithTx(ctx, func(tx infra.SQLExecutor) error {
		if _, err := scanAccount(tx.QueryRow(ctx, sqlinline.QSelectAccountByID, g.AccountID)); err != nil {
			return err
		}
		var ledgerID string
		if err := tx.QueryRow(ctx, sqlinline.QInsertGrantLedger, g.AccountID, kind, g.Credits, g.Reference).Scan(&ledgerID); err != nil {
			if infra.IsNoRows(err) {
				return nil
			}
			return err
		}
		var balance int
		if err := tx.QueryRow(ctx, sqlinline.QApplyGrantToAccount, g.AccountID, g.Credits, string(g.Tier), g.StripeCustomerID).Scan(&balance); err != nil {
			if infra.IsNoRows(err) {
				return domain.ErrNotFound
			}
			return err
		}
		if _, err := tx.Exec(ctx, sqlinline.QSetGrantBalanceAfter, ledgerID, balance); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("apply grant %q: %w", g.Reference, err)
	}
	return applied, nil
}

// ListTransactions returns the newest ledger rows of an account first.
func (r *LedgerRepositoryPG) ListTransactions(ctx context.Context, accountID string, limit int) ([]domain.CreditTransaction, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListLedgerByAccount, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.CreditTransaction
	for rows.Next() {
		var t domain.CreditTransaction
		if err := rows.Scan(&t.ID, &t.JobID, &t.Kind, &t.Delta, &t.BalanceAfter, &t.Reference, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

var (
	_ domain.LedgerRepository = (*LedgerRepositoryPG)(nil)
	_ domain.AccountDirectory = (*LedgerRepositoryPG)(nil)
)
