package cache

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vocalizz/internal/domain"
)

type mapHot struct {
	data map[string]string
	err  error
}

func (m *mapHot) Get(_ context.Context, key string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	v, ok := m.data[key]
	if !ok {
		return "", ErrMiss
	}
	return v, nil
}

func (m *mapHot) Set(_ context.Context, key, value string) error {
	if m.err != nil {
		return m.err
	}
	m.data[key] = value
	return nil
}

type mapDurable struct {
	data  map[string]string
	reads int
}

func (m *mapDurable) Get(_ context.Context, hash string) (string, error) {
	m.reads++
	v, ok := m.data[hash]
	if !ok {
		return "", domain.ErrNotFound
	}
	return v, nil
}

func (m *mapDurable) Put(_ context.Context, hash, path string) error {
	m.data[hash] = path
	return nil
}

func TestKeyNormalizesText(t *testing.T) {
	assert.Equal(t, Key("  Hello World ", "v", "m"), Key("hello world", "v", "m"))
	assert.NotEqual(t, Key("hello", "v1", "m"), Key("hello", "v2", "m"))
	assert.Len(t, Key("x", "v", "m"), 64)
}

func TestLookupWarmsHotTier(t *testing.T) {
	hot := &mapHot{data: map[string]string{}}
	durable := &mapDurable{data: map[string]string{"k": "acct/generated/k.mp3"}}
	c := NewSynthesis(hot, durable, zerolog.New(io.Discard))

	path, err := c.Lookup(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "acct/generated/k.mp3", path)
	assert.Equal(t, "acct/generated/k.mp3", hot.data["k"])

	_, err = c.Lookup(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, 1, durable.reads, "second lookup must be served by the hot tier")
}

func TestLookupMiss(t *testing.T) {
	c := NewSynthesis(nil, &mapDurable{data: map[string]string{}}, zerolog.New(io.Discard))
	_, err := c.Lookup(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrMiss))
}

func TestHotFailureFallsBackToDurable(t *testing.T) {
	hot := &mapHot{data: map[string]string{}, err: errors.New("connection refused")}
	durable := &mapDurable{data: map[string]string{}}
	c := NewSynthesis(hot, durable, zerolog.New(io.Discard))

	require.NoError(t, c.Store(context.Background(), "k", "p"))
	path, err := c.Lookup(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "p", path)
}
