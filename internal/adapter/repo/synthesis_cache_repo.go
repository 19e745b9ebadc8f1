package repo

import (
	"context"

	"vocalizz/internal/domain"
	"vocalizz/internal/infra"
	"vocalizz/internal/sqlinline"
)

// SynthesisCacheRepositoryPG implements domain.SynthesisCacheRepository.
type SynthesisCacheRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewSynthesisCacheRepository(sql infra.SQLExecutor) *SynthesisCacheRepositoryPG {
	return &SynthesisCacheRepositoryPG{sql: sql}
}

func (r *SynthesisCacheRepositoryPG) Get(ctx context.Context, hash string) (string, error) {
	var path string
	if err := r.sql.QueryRow(ctx, sqlinline.QSelectSynthesisCache, hash).Scan(&path); err != nil {
		if infra.IsNoRows(err) {
			return "", domain.ErrNotFound
		}
		return "", err
	}
	return path, nil
}

func (r *SynthesisCacheRepositoryPG) Put(ctx context.Context, hash, storagePath string) error {
	_, err := r.sql.Exec(ctx, sqlinline.QUpsertSynthesisCache, hash, storagePath)
	return err
}

var _ domain.SynthesisCacheRepository = (*SynthesisCacheRepositoryPG)(nil)
