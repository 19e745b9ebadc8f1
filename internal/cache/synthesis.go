// Package cache fronts the durable text-to-speech cache with Redis.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"vocalizz/internal/domain"
	"vocalizz/internal/infra"
)

// ErrMiss is returned when neither tier knows the key.
var ErrMiss = errors.New("cache: miss")

// Key derives the cache key of a synthesis request.
func Key(text, voiceID, modelID string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(text)) + ":" + voiceID + ":" + modelID))
	return hex.EncodeToString(sum[:])
}

// Hot is the fast tier. RedisHot implements it.
type Hot interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// RedisHot stores cache entries in Redis with a TTL.
type RedisHot struct {
	rdb    goredis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisHot(rdb goredis.UniversalClient, ttl time.Duration) *RedisHot {
	return &RedisHot{rdb: rdb, prefix: "vocalizz:tts:", ttl: ttl}
}

func (r *RedisHot) Get(ctx context.Context, key string) (string, error) {
	v, err := r.rdb.Get(ctx, r.prefix+key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", ErrMiss
	}
	return v, err
}

func (r *RedisHot) Set(ctx context.Context, key, value string) error {
	return r.rdb.Set(ctx, r.prefix+key, value, r.ttl).Err()
}

// Synthesis reads Redis first and falls back to Postgres, warming Redis on a
// durable hit. Redis errors are logged and treated as misses.
type Synthesis struct {
	hot     Hot
	durable domain.SynthesisCacheRepository
	logger  infra.Logger
}

// NewSynthesis builds the tiered cache. hot may be nil.
func NewSynthesis(hot Hot, durable domain.SynthesisCacheRepository, logger infra.Logger) *Synthesis {
	return &Synthesis{hot: hot, durable: durable, logger: logger}
}

// Lookup returns the storage key of a previously generated file.
func (s *Synthesis) Lookup(ctx context.Context, key string) (string, error) {
	if s.hot != nil {
		v, err := s.hot.Get(ctx, key)
		switch {
		case err == nil:
			return v, nil
		case !errors.Is(err, ErrMiss):
			s.logger.Warn().Ctx(ctx).Err(err).Str("cache_key", key).Msg("hot cache read failed")
		}
	}
	path, err := s.durable.Get(ctx, key)
	if errors.Is(err, domain.ErrNotFound) {
		return "", ErrMiss
	}
	if err != nil {
		return "", err
	}
	s.warm(ctx, key, path)
	return path, nil
}

// Store records a generated file in both tiers.
func (s *Synthesis) Store(ctx context.Context, key, storagePath string) error {
	if err := s.durable.Put(ctx, key, storagePath); err != nil {
		return err
	}
	s.warm(ctx, key, storagePath)
	return nil
}

func (s *Synthesis) warm(ctx context.Context, key, path string) {
	if s.hot == nil {
		return
	}
	if err := s.hot.Set(ctx, key, path); err != nil {
		s.logger.Warn().Ctx(ctx).Err(err).Str("cache_key", key).Msg("hot cache write failed")
	}
}
