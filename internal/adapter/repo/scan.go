package repo

import (
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"vocalizz/internal/domain"
	"vocalizz/internal/infra"
)

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		a    domain.Account
		tier string
	)
	if err := row.Scan(&a.ID, &a.Email, &tier, &a.CreditBalance, &a.ActiveJobCount, &a.StripeCustomerID, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	a.Tier = domain.Tier(tier)
	return &a, nil
}

// scanJob reads the full job column list used by the select and CTE queries.
func scanJob(row pgx.Row) (*domain.Job, error) {
	var (
		j                     domain.Job
		kind, status, quality string
		refs                  []byte
	)
	err := row.Scan(
		&j.ID,
		&j.OwnerID,
		&kind,
		&status,
		&j.CostInCredits,
		&quality,
		&j.Epochs,
		&j.Cleaning,
		&j.Name,
		&j.SourceArtifactPath,
		&j.ExternalHandle,
		&refs,
		&j.ErrorDetail,
		&j.CreatedAt,
		&j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	j.Kind = domain.JobKind(kind)
	j.Status = domain.JobStatus(status)
	j.QualityTier = domain.QualityTier(quality)
	if len(refs) > 0 {
		if err := json.Unmarshal(refs, &j.OutputRefs); err != nil {
			return nil, fmt.Errorf("decode output_refs of job %s: %w", j.ID, err)
		}
	}
	return &j, nil
}

func collectJobs(rows pgx.Rows) ([]domain.Job, error) {
	defer rows.Close()
	var out []domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *j)
	}
	return out, rows.Err()
}
