package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"vocalizz/internal/infra"
)

func setCancelEnv(t *testing.T, driver, path string) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/vocalizz")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("REPLICATE_MODEL_VERSION", "")
	t.Setenv("STORAGE_DRIVER", driver)
	t.Setenv("STORAGE_PATH", path)
}

func TestNewCancellerOpensConfiguredStorage(t *testing.T) {
	root := filepath.Join(t.TempDir(), "audio")
	setCancelEnv(t, "local", root)

	e := &env{logger: infra.NewLogger("test")}
	canceller, closeStore, err := newCanceller(context.Background(), e)
	if err != nil {
		t.Fatalf("newCanceller: %v", err)
	}
	defer closeStore()
	if canceller == nil {
		t.Fatalf("expected a canceller")
	}
	if _, err := os.Stat(root); err != nil {
		t.Fatalf("local storage was not opened: %v", err)
	}
}

func TestNewCancellerRejectsUnknownStorage(t *testing.T) {
	setCancelEnv(t, "ftp", t.TempDir())
	if _, _, err := newCanceller(context.Background(), &env{logger: infra.NewLogger("test")}); err == nil {
		t.Fatalf("expected an unsupported driver error")
	}
}
