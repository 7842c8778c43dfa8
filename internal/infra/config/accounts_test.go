package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"telegram-migrator/internal/infra/config"
)

func writeAccounts(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "accounts.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAccountsDefaults(t *testing.T) {
	t.Parallel()

	path := writeAccounts(t, `[
        {"api_id": 11111, "api_hash": "aaaa", "phone_number": "+79990000001"},
        {"api_id": 22222, "api_hash": "bbbb", "phone_number": "+79990000002", "name": "backup", "session_file": "data/backup.bin"}
    ]`)

	accounts, err := config.LoadAccounts(path)
	if err != nil {
		t.Fatalf("LoadAccounts() error = %v", err)
	}
	if len(accounts) != 2 {
		t.Fatalf("len = %d, want 2", len(accounts))
	}

	// Имя и пути первой записи выводятся из индекса.
	if accounts[0].Name != "account_0" {
		t.Fatalf("name = %q, want account_0", accounts[0].Name)
	}
	if accounts[0].SessionFile != "data/session_0.bin" {
		t.Fatalf("session_file = %q", accounts[0].SessionFile)
	}
	if accounts[0].PeersCacheFile != "data/peers_cache_0.bbolt" {
		t.Fatalf("peers_cache_file = %q", accounts[0].PeersCacheFile)
	}

	// Явно заданные значения не перетираются.
	if accounts[1].Name != "backup" || accounts[1].SessionFile != "data/backup.bin" {
		t.Fatalf("explicit fields lost: %+v", accounts[1])
	}
	if accounts[1].PeersCacheFile != "data/peers_cache_1.bbolt" {
		t.Fatalf("peers_cache_file = %q", accounts[1].PeersCacheFile)
	}
}

func TestLoadAccountsValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"empty array", `[]`, "no accounts"},
		{"not json", `{"api_id": 1}`, "parse accounts file"},
		{"missing api_id", `[{"api_hash": "x", "phone_number": "+7"}]`, "api_id"},
		{"missing api_hash", `[{"api_id": 1, "phone_number": "+7"}]`, "api_hash"},
		{"missing phone", `[{"api_id": 1, "api_hash": "x"}]`, "phone_number"},
		{"blank phone", `[{"api_id": 1, "api_hash": "x", "phone_number": "   "}]`, "phone_number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := config.LoadAccounts(writeAccounts(t, tt.body))
			if err == nil {
				t.Fatal("LoadAccounts() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadAccountsMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := config.LoadAccounts(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("LoadAccounts() error = nil for missing file")
	}
}
