package migrate_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"telegram-migrator/internal/migrate"
)

func sampleOutcomes() []migrate.Outcome {
	return []migrate.Outcome{
		{Member: migrate.Member{ID: 1, FirstName: "Anna"}, Status: migrate.StatusAdded, Account: "account_0"},
		{Member: migrate.Member{ID: 2, FirstName: "Boris"}, Status: migrate.StatusAdded, Account: "account_0"},
		{Member: migrate.Member{ID: 3, Username: "helper_bot", Bot: true}, Status: migrate.StatusSkipped, Reason: migrate.ReasonBot},
		{Member: migrate.Member{ID: 4, FirstName: "Clara"}, Status: migrate.StatusSkipped, Reason: migrate.ReasonAlreadyMember, Account: "account_0"},
		{Member: migrate.Member{ID: 5, FirstName: "Dmitri"}, Status: migrate.StatusFailed, Reason: migrate.ReasonPrivacy, Account: "account_0", Error: "USER_PRIVACY_RESTRICTED"},
		{Member: migrate.Member{ID: 6, FirstName: "Elena"}, Status: migrate.StatusFailed, Reason: migrate.ReasonRateLimited, Account: "account_0", Error: "FLOOD_WAIT_30"},
	}
}

func TestBuildReportTotals(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Second)

	report := migrate.BuildReport(start, end, sampleOutcomes(), nil, false)

	// already-member входит в attempted, фильтр-пропуск бота — нет.
	if report.Totals.Attempted != 5 {
		t.Fatalf("attempted = %d, want 5", report.Totals.Attempted)
	}
	if report.Totals.Added != 2 {
		t.Fatalf("added = %d, want 2", report.Totals.Added)
	}
	if got := report.Totals.Skipped[migrate.ReasonBot]; got != 1 {
		t.Fatalf("skipped[bot] = %d, want 1", got)
	}
	if got := report.Totals.Skipped[migrate.ReasonAlreadyMember]; got != 1 {
		t.Fatalf("skipped[already-member] = %d, want 1", got)
	}
	if report.Totals.FailedTotal() != 2 || report.Totals.SkippedTotal() != 2 {
		t.Fatalf("failed=%d skipped=%d, want 2/2", report.Totals.FailedTotal(), report.Totals.SkippedTotal())
	}
	if report.DurationSec != 90 {
		t.Fatalf("duration_seconds = %v, want 90", report.DurationSec)
	}
	if report.Partial {
		t.Fatal("partial = true for clean run")
	}
}

func TestBuildReportHidesSingleAccount(t *testing.T) {
	t.Parallel()

	now := time.Now()
	single := []migrate.AccountStats{{Name: "account_0", Attempted: 3, Added: 3}}
	if r := migrate.BuildReport(now, now, nil, single, false); r.Accounts != nil {
		t.Fatalf("accounts = %v, want nil for single-account run", r.Accounts)
	}

	multi := []migrate.AccountStats{
		{Name: "account_0", Attempted: 2, Added: 2},
		{Name: "account_1", Attempted: 1, Added: 1},
	}
	if r := migrate.BuildReport(now, now, nil, multi, false); len(r.Accounts) != 2 {
		t.Fatalf("accounts = %v, want both entries for multi-account run", r.Accounts)
	}
}

func TestReportWrite(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	report := migrate.BuildReport(start, start.Add(time.Minute), sampleOutcomes(), nil, false)
	report.Source = migrate.GroupInfo{Title: "Old Community", ID: 100, Username: "old_community", MemberCount: 6}
	report.Destination = migrate.GroupInfo{Title: "New Community", ID: 200, MemberCount: 40}

	dir := t.TempDir()
	jsonPath, textPath, err := report.Write(dir)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	raw, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatalf("read json artifact: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("json artifact is not valid JSON: %v", err)
	}
	if _, ok := decoded["statistics"]; !ok {
		t.Fatal("json artifact has no statistics section")
	}
	if filepath.Ext(jsonPath) != ".json" || filepath.Ext(textPath) != ".txt" {
		t.Fatalf("artifact extensions: %s / %s", jsonPath, textPath)
	}

	text, err := os.ReadFile(textPath)
	if err != nil {
		t.Fatalf("read text artifact: %v", err)
	}
	for _, want := range []string{"Old Community", "New Community", "USER_PRIVACY_RESTRICTED"} {
		if !strings.Contains(string(text), want) {
			t.Fatalf("text artifact misses %q:\n%s", want, text)
		}
	}
}

func TestDisplayName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		member migrate.Member
		want   string
	}{
		{"full name", migrate.Member{FirstName: "Anna", LastName: "Petrova"}, "Anna Petrova"},
		{"first only", migrate.Member{FirstName: "Anna"}, "Anna"},
		{"username fallback", migrate.Member{Username: "anna"}, "@anna"},
		{"deleted", migrate.Member{Deleted: true, FirstName: "ghost"}, "<deleted account>"},
		{"empty", migrate.Member{}, "<unknown>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.member.DisplayName(); got != tt.want {
				t.Fatalf("DisplayName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFilter(t *testing.T) {
	t.Parallel()

	members := []migrate.Member{
		{ID: 1},
		{ID: 2, Bot: true},
		{ID: 3, Deleted: true},
		{ID: 4},
	}

	eligible, skipped := migrate.Filter(members, false)
	if len(eligible) != 2 || eligible[0].ID != 1 || eligible[1].ID != 4 {
		t.Fatalf("eligible = %v, want members 1 and 4", eligible)
	}
	if len(skipped) != 2 {
		t.Fatalf("skipped = %v, want 2 outcomes", skipped)
	}
	if skipped[0].Reason != migrate.ReasonBot || skipped[1].Reason != migrate.ReasonDeletedAccount {
		t.Fatalf("skip reasons = %s/%s", skipped[0].Reason, skipped[1].Reason)
	}

	all, none := migrate.Filter(members, true)
	if len(all) != 4 || none != nil {
		t.Fatalf("keepBots: eligible=%d skipped=%v, want 4/nil", len(all), none)
	}
}
