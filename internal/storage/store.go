package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrObjectNotFound is returned by Download for missing keys.
var ErrObjectNotFound = errors.New("storage: object not found")

// PlaceholderName is the marker object some buckets keep in empty folders.
// It is never treated as a source artifact.
const PlaceholderName = ".emptyFolderPlaceholder"

// Store is the object storage used for uploaded audio and generated output.
// Keys are slash separated and relative to the store root.
type Store interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, keys []string) error
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	Download(ctx context.Context, key string) ([]byte, error)
}

// Options selects the storage driver. Driver is "local" or "gcs".
type Options struct {
	Driver     string
	Path       string
	SigningKey []byte
	PublicURL  string
	Bucket     string
}

// Open builds the configured Store. The local driver also returns its
// FileStore so the API can serve signed links; it is nil for GCS. The
// returned close func releases driver resources.
func Open(ctx context.Context, o Options) (Store, *FileStore, func() error, error) {
	switch o.Driver {
	case "gcs":
		gcs, err := NewGCSStore(ctx, o.Bucket)
		if err != nil {
			return nil, nil, nil, err
		}
		return gcs, nil, gcs.Close, nil
	case "", "local":
		files, err := NewFileStore(o.Path, o.SigningKey, o.PublicURL)
		if err != nil {
			return nil, nil, nil, err
		}
		return files, files, func() error { return nil }, nil
	default:
		return nil, nil, nil, fmt.Errorf("storage: unsupported driver %q", o.Driver)
	}
}

// ListArtifacts lists prefix and drops folder placeholders.
func ListArtifacts(ctx context.Context, s Store, prefix string) ([]string, error) {
	keys, err := s.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	out := keys[:0]
	for _, k := range keys {
		if baseName(k) == PlaceholderName {
			continue
		}
		out = append(out, k)
	}
	return out, nil
}

// DeletePrefix removes every artifact under prefix and returns how many keys
// were deleted.
func DeletePrefix(ctx context.Context, s Store, prefix string) (int, error) {
	keys, err := ListArtifacts(ctx, s, prefix)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := s.Delete(ctx, keys); err != nil {
		return 0, err
	}
	return len(keys), nil
}

func baseName(key string) string {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == '/' {
			return key[i+1:]
		}
	}
	return key
}
