package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// GCSStore keeps artifacts in a Google Cloud Storage bucket.
type GCSStore struct {
	client *gcs.Client
	bucket string
}

// NewGCSStore uses application default credentials.
func NewGCSStore(ctx context.Context, bucket string) (*GCSStore, error) {
	if bucket == "" {
		return nil, errors.New("storage: bucket is required")
	}
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage: gcs client: %w", err)
	}
	return &GCSStore{client: client, bucket: bucket}, nil
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}

func (s *GCSStore) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	w := s.client.Bucket(s.bucket).Object(cleanKey).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("storage: gcs write %s: %w", cleanKey, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("storage: gcs close %s: %w", cleanKey, err)
	}
	return cleanKey, nil
}

func (s *GCSStore) List(ctx context.Context, prefix string) ([]string, error) {
	cleanPrefix, err := sanitizeKey(prefix)
	if err != nil {
		return nil, err
	}
	it := s.client.Bucket(s.bucket).Objects(ctx, &gcs.Query{Prefix: cleanPrefix + "/"})
	var keys []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("storage: gcs list %s: %w", cleanPrefix, err)
		}
		keys = append(keys, attrs.Name)
	}
	return keys, nil
}

func (s *GCSStore) Delete(ctx context.Context, keys []string) error {
	bkt := s.client.Bucket(s.bucket)
	for _, key := range keys {
		key, err := sanitizeKey(key)
		if err != nil {
			return err
		}
		err = bkt.Object(key).Delete(ctx)
		if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
			return fmt.Errorf("storage: gcs delete %s: %w", key, err)
		}
	}
	return nil
}

func (s *GCSStore) Download(ctx context.Context, key string) ([]byte, error) {
	key, err := sanitizeKey(key)
	if err != nil {
		return nil, err
	}
	r, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: gcs read %s: %w", key, err)
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (s *GCSStore) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	u, err := s.client.Bucket(s.bucket).SignedURL(key, &gcs.SignedURLOptions{
		Scheme:  gcs.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(ttl),
	})
	if err != nil {
		return "", fmt.Errorf("storage: gcs sign %s: %w", key, err)
	}
	return u, nil
}

var _ Store = (*GCSStore)(nil)
