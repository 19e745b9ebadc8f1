// Package credentials stores provider API tokens in the database so operators
// can rotate them without a redeploy.
package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"vocalizz/internal/infra"
	"vocalizz/internal/sqlinline"
)

const (
	ProviderReplicate  = "replicate"
	ProviderElevenLabs = "elevenlabs"
)

// Providers lists the names accepted by Set.
var Providers = []string{ProviderReplicate, ProviderElevenLabs}

type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// Token returns the stored token for provider, or "" when none is stored.
func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, provider)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(token), nil
}

// Resolve prefers the stored token and falls back to the configured one.
func (s *Store) Resolve(ctx context.Context, provider, fallback string) (string, error) {
	token, err := s.Token(ctx, provider)
	if err != nil {
		return "", fmt.Errorf("load %s token: %w", provider, err)
	}
	if token != "" {
		return token, nil
	}
	return strings.TrimSpace(fallback), nil
}

// Set stores token for provider, replacing any previous one.
func (s *Store) Set(ctx context.Context, provider, token string, props map[string]any) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if !known(provider) {
		return fmt.Errorf("unknown provider %q (want one of %s)", provider, strings.Join(Providers, ", "))
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("%s token is required", provider)
	}
	return s.upsert(ctx, provider, token, props)
}

func known(provider string) bool {
	for _, p := range Providers {
		if p == provider {
			return true
		}
	}
	return false
}

func (s *Store) upsert(ctx context.Context, provider, token string, props map[string]any) error {
	payload := props
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, provider, token, raw)
	return err
}
