package migrate_test

import (
	"testing"
	"time"

	"telegram-migrator/internal/migrate"
)

func TestPoolPick(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		cooldowns []time.Duration // смещение cooldown относительно now; 0 — без cooldown
		wantIdx   int
		wantWait  time.Duration
	}{
		{
			name:      "single free account",
			cooldowns: []time.Duration{0},
			wantIdx:   0,
			wantWait:  0,
		},
		{
			name:      "prefers free over throttled",
			cooldowns: []time.Duration{30 * time.Second, 0},
			wantIdx:   1,
			wantWait:  0,
		},
		{
			name:      "prefers coldest of free accounts",
			cooldowns: []time.Duration{-10 * time.Second, -time.Hour, -time.Minute},
			wantIdx:   1,
			wantWait:  0,
		},
		{
			name:      "all throttled waits for soonest",
			cooldowns: []time.Duration{45 * time.Second, 20 * time.Second, 90 * time.Second},
			wantIdx:   1,
			wantWait:  20 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			accounts := make([]*migrate.Account, 0, len(tt.cooldowns))
			for i, off := range tt.cooldowns {
				a := &migrate.Account{Name: string(rune('a' + i))}
				if off != 0 {
					a.SetCooldown(now.Add(off))
				}
				accounts = append(accounts, a)
			}
			pool := migrate.NewPool(accounts, time.Minute)

			got, wait := pool.Pick(now)
			if got != accounts[tt.wantIdx] {
				t.Fatalf("Pick() account = %s, want %s", got.Name, accounts[tt.wantIdx].Name)
			}
			if wait != tt.wantWait {
				t.Fatalf("Pick() wait = %v, want %v", wait, tt.wantWait)
			}
		})
	}
}

func TestPoolPickEmpty(t *testing.T) {
	t.Parallel()

	pool := migrate.NewPool(nil, time.Minute)
	if account, _ := pool.Pick(time.Now()); account != nil {
		t.Fatalf("Pick() on empty pool = %v, want nil", account)
	}
}
