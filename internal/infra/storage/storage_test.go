package storage_test

import (
	"os"
	"path/filepath"
	"testing"

	"telegram-migrator/internal/infra/storage"
)

func TestAtomicWriteFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "report.json")
	if err := storage.AtomicWriteFile(path, []byte(`{"ok":true}`)); err != nil {
		t.Fatalf("AtomicWriteFile() error = %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"ok":true}` {
		t.Fatalf("content = %q", got)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("perm = %o, want 600", perm)
	}

	// Повторная запись перетирает файл целиком, без остатков прошлого содержимого.
	if err := storage.AtomicWriteFile(path, []byte("x")); err != nil {
		t.Fatalf("rewrite error = %v", err)
	}
	got, _ = os.ReadFile(path)
	if string(got) != "x" {
		t.Fatalf("rewrite content = %q", got)
	}
}
