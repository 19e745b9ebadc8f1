package storage

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidSignature is returned by Verify for tampered or expired links.
var ErrInvalidSignature = errors.New("storage: invalid or expired signature")

// FileStore persists assets onto the local filesystem. It is intended for
// development and test environments where an object storage service is not
// available. Signed URLs point at the API's /v1/files route.
type FileStore struct {
	basePath   string
	signingKey []byte
	publicURL  string
	now        func() time.Time
}

// NewFileStore initializes a FileStore rooted at basePath.
func NewFileStore(basePath string, signingKey []byte, publicBaseURL string) (*FileStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	if len(signingKey) == 0 {
		return nil, errors.New("storage: signing key is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure base path: %w", err)
	}
	return &FileStore{
		basePath:   basePath,
		signingKey: signingKey,
		publicURL:  strings.TrimRight(publicBaseURL, "/"),
		now:        time.Now,
	}, nil
}

// BasePath returns the configured root directory.
func (s *FileStore) BasePath() string {
	if s == nil {
		return ""
	}
	return s.basePath
}

// Upload persists the provided bytes at the given relative key and returns the
// canonicalized storage key. Keys are cleaned to prevent directory traversal.
func (s *FileStore) Upload(ctx context.Context, key string, data []byte, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	fullPath := s.path(cleanKey)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("storage: ensure directory: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return "", fmt.Errorf("storage: write file: %w", err)
	}
	return cleanKey, nil
}

// List returns every file key under prefix, sorted.
func (s *FileStore) List(ctx context.Context, prefix string) ([]string, error) {
	cleanPrefix, err := sanitizeKey(prefix)
	if err != nil {
		return nil, err
	}
	root := s.path(cleanPrefix)
	var keys []string
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.basePath, p)
		if err != nil {
			return err
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: list %s: %w", cleanPrefix, err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Delete removes keys. Missing files are ignored.
func (s *FileStore) Delete(ctx context.Context, keys []string) error {
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		cleanKey, err := sanitizeKey(key)
		if err != nil {
			return err
		}
		if err := os.Remove(s.path(cleanKey)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("storage: delete %s: %w", cleanKey, err)
		}
	}
	return nil
}

func (s *FileStore) Download(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(cleanKey))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrObjectNotFound
	}
	return data, err
}

// SignedURL returns a link to /v1/files/<key> valid for ttl.
func (s *FileStore) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	expires := s.now().Add(ttl).Unix()
	q := url.Values{}
	q.Set("expires", strconv.FormatInt(expires, 10))
	q.Set("sig", s.sign(cleanKey, expires))
	return s.publicURL + "/v1/files/" + cleanKey + "?" + q.Encode(), nil
}

// Verify checks a signature produced by SignedURL.
func (s *FileStore) Verify(key, expires, sig string) error {
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return err
	}
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil || s.now().Unix() > exp {
		return ErrInvalidSignature
	}
	if !hmac.Equal([]byte(s.sign(cleanKey, exp)), []byte(sig)) {
		return ErrInvalidSignature
	}
	return nil
}

func (s *FileStore) sign(key string, expires int64) string {
	mac := hmac.New(sha256.New, s.signingKey)
	mac.Write([]byte(key + "\n" + strconv.FormatInt(expires, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *FileStore) path(cleanKey string) string {
	return filepath.Join(s.basePath, filepath.FromSlash(cleanKey))
}

// sanitizeKey normalizes a key and prevents escaping the storage root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("storage: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	if hasParentSegment(key) {
		return "", errors.New("storage: invalid key")
	}
	cleaned := filepath.ToSlash(filepath.Clean(key))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", errors.New("storage: invalid key")
	}
	return cleaned, nil
}

var _ Store = (*FileStore)(nil)
