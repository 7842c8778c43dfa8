package migrate_test

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"telegram-migrator/internal/migrate"
)

// fakeClock — детерминированные часы: Sleep не блокируется, а записывает
// длительность и сдвигает текущее время.
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

// fakeInviter записывает порядок вызовов и отдаёт запрограммированные ошибки.
type fakeInviter struct {
	calls []int64
	fail  map[int64]error
}

func (f *fakeInviter) Invite(_ context.Context, m migrate.Member) error {
	f.calls = append(f.calls, m.ID)
	if err, ok := f.fail[m.ID]; ok {
		return err
	}
	return nil
}

func humans(n int) []migrate.Member {
	members := make([]migrate.Member, 0, n)
	for i := 1; i <= n; i++ {
		members = append(members, migrate.Member{ID: int64(i), FirstName: "User"})
	}
	return members
}

func TestRunBatchBoundaries(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	inviter := &fakeInviter{}
	account := &migrate.Account{Name: "account_0", Inviter: inviter}
	pool := migrate.NewPool([]*migrate.Account{account}, time.Minute)

	s := migrate.New(pool, migrate.Config{BatchSize: 5, Wait: 7 * time.Second}, migrate.WithClock(clock))
	report, err := s.Run(context.Background(), humans(12))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// 12 участников, батчи [5,5,2]: ровно две межбатчевые паузы, не три.
	wantSleeps := []time.Duration{7 * time.Second, 7 * time.Second}
	if !reflect.DeepEqual(clock.sleeps, wantSleeps) {
		t.Fatalf("sleeps = %v, want %v", clock.sleeps, wantSleeps)
	}

	wantOrder := []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	if !reflect.DeepEqual(inviter.calls, wantOrder) {
		t.Fatalf("invite order = %v, want %v", inviter.calls, wantOrder)
	}
	if report.Totals.Attempted != 12 || report.Totals.Added != 12 {
		t.Fatalf("totals = %+v, want attempted=12 added=12", report.Totals)
	}
}

func TestRunDryRunNeverInvites(t *testing.T) {
	t.Parallel()

	inviter := &fakeInviter{}
	account := &migrate.Account{Name: "account_0", Inviter: inviter}
	pool := migrate.NewPool([]*migrate.Account{account}, time.Minute)

	s := migrate.New(pool, migrate.Config{BatchSize: 3, DryRun: true}, migrate.WithClock(newFakeClock()))
	report, err := s.Run(context.Background(), humans(7))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(inviter.calls) != 0 {
		t.Fatalf("dry run invoked inviter %d times", len(inviter.calls))
	}
	if report.Totals.WouldAdd != 7 || report.Totals.Added != 0 {
		t.Fatalf("totals = %+v, want would_add=7 added=0", report.Totals)
	}
	for _, o := range report.Outcomes {
		if o.Status != migrate.StatusWouldAdd {
			t.Fatalf("outcome %d status = %s, want %s", o.Member.ID, o.Status, migrate.StatusWouldAdd)
		}
	}
}

func TestRunLimitTruncates(t *testing.T) {
	t.Parallel()

	inviter := &fakeInviter{}
	account := &migrate.Account{Name: "account_0", Inviter: inviter}
	pool := migrate.NewPool([]*migrate.Account{account}, time.Minute)

	s := migrate.New(pool, migrate.Config{BatchSize: 5, Limit: 4}, migrate.WithClock(newFakeClock()))
	report, err := s.Run(context.Background(), humans(10))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(inviter.calls) != 4 || report.Totals.Attempted != 4 {
		t.Fatalf("attempted = %d (calls %d), want 4", report.Totals.Attempted, len(inviter.calls))
	}
}

func TestRunRateLimitSetsCooldown(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	start := clock.Now()

	inviter := &fakeInviter{fail: map[int64]error{
		2: &migrate.RateLimitError{Wait: 20 * time.Second, Err: errors.New("FLOOD_WAIT_20")},
	}}
	account := &migrate.Account{Name: "account_0", Inviter: inviter}
	pool := migrate.NewPool([]*migrate.Account{account}, time.Minute)

	s := migrate.New(pool, migrate.Config{BatchSize: 10}, migrate.WithClock(clock))
	report, err := s.Run(context.Background(), humans(3))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := start.Add(20 * time.Second)
	if !account.CooldownUntil().Equal(want) {
		t.Fatalf("cooldown = %v, want %v", account.CooldownUntil(), want)
	}
	if got := report.Totals.Failed[migrate.ReasonRateLimited]; got != 1 {
		t.Fatalf("failed[rate-limited] = %d, want 1", got)
	}
	// Участник не повторяется в рамках прогона: ровно одна попытка на каждого.
	if !reflect.DeepEqual(inviter.calls, []int64{1, 2, 3}) {
		t.Fatalf("invite calls = %v, want one attempt per member", inviter.calls)
	}
}

func TestRunRoutesAroundThrottledAccount(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	throttled := &fakeInviter{}
	free := &fakeInviter{}
	accountA := &migrate.Account{Name: "account_a", Inviter: throttled}
	accountB := &migrate.Account{Name: "account_b", Inviter: free}
	accountA.SetCooldown(clock.Now().Add(10 * time.Minute))
	pool := migrate.NewPool([]*migrate.Account{accountA, accountB}, time.Minute)

	s := migrate.New(pool, migrate.Config{BatchSize: 1}, migrate.WithClock(clock))
	if _, err := s.Run(context.Background(), humans(3)); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(throttled.calls) != 0 {
		t.Fatalf("throttled account got %d attempts", len(throttled.calls))
	}
	if len(free.calls) != 3 {
		t.Fatalf("free account attempts = %d, want 3", len(free.calls))
	}
}

func TestRunWaitsWhenAllThrottled(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	inviter := &fakeInviter{}
	account := &migrate.Account{Name: "account_0", Inviter: inviter}
	account.SetCooldown(clock.Now().Add(15 * time.Second))
	pool := migrate.NewPool([]*migrate.Account{account}, time.Minute)

	s := migrate.New(pool, migrate.Config{BatchSize: 5}, migrate.WithClock(clock))
	report, err := s.Run(context.Background(), humans(2))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// Планировщик дождался истечения cooldown, а не упал.
	if len(clock.sleeps) == 0 || clock.sleeps[0] != 15*time.Second {
		t.Fatalf("sleeps = %v, want leading 15s cooldown wait", clock.sleeps)
	}
	if report.Totals.Added != 2 {
		t.Fatalf("added = %d, want 2", report.Totals.Added)
	}
}

func TestRunDestinationErrorAbortsRemainder(t *testing.T) {
	t.Parallel()

	inviter := &fakeInviter{fail: map[int64]error{
		4: &migrate.DestinationError{Err: errors.New("CHANNEL_PRIVATE")},
	}}
	account := &migrate.Account{Name: "account_0", Inviter: inviter}
	pool := migrate.NewPool([]*migrate.Account{account}, time.Minute)

	s := migrate.New(pool, migrate.Config{BatchSize: 2}, migrate.WithClock(newFakeClock()))
	report, err := s.Run(context.Background(), humans(10))

	var destErr *migrate.DestinationError
	if !errors.As(err, &destErr) {
		t.Fatalf("Run() error = %v, want DestinationError", err)
	}
	if !report.Partial {
		t.Fatal("report.Partial = false, want true")
	}
	// Участники 1..4 получили исходы, 5..10 не трогались.
	if report.Totals.Attempted != 4 {
		t.Fatalf("attempted = %d, want 4", report.Totals.Attempted)
	}
	if !reflect.DeepEqual(inviter.calls, []int64{1, 2, 3, 4}) {
		t.Fatalf("invite calls = %v, want [1 2 3 4]", inviter.calls)
	}
}

func TestRunEndToEndScenario(t *testing.T) {
	t.Parallel()

	// Исходная группа: 10 участников, 1 бот, 9 людей; двое закрыты приватностью.
	members := humans(9)
	members = append(members[:3:3], append([]migrate.Member{{ID: 100, Username: "helper_bot", Bot: true}}, members[3:]...)...)

	inviter := &fakeInviter{fail: map[int64]error{
		5: &migrate.MemberError{Reason: migrate.ReasonPrivacy, Err: errors.New("USER_PRIVACY_RESTRICTED")},
		8: &migrate.MemberError{Reason: migrate.ReasonPrivacy, Err: errors.New("USER_PRIVACY_RESTRICTED")},
	}}
	account := &migrate.Account{Name: "account_0", Inviter: inviter}
	pool := migrate.NewPool([]*migrate.Account{account}, time.Minute)

	clock := newFakeClock()
	s := migrate.New(pool, migrate.Config{BatchSize: 3, Wait: 0}, migrate.WithClock(clock))
	report, err := s.Run(context.Background(), members)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if report.Totals.Attempted != 9 {
		t.Fatalf("attempted = %d, want 9", report.Totals.Attempted)
	}
	if report.Totals.Added != 7 {
		t.Fatalf("added = %d, want 7", report.Totals.Added)
	}
	if got := report.Totals.Failed[migrate.ReasonPrivacy]; got != 2 {
		t.Fatalf("failed[privacy-restricted] = %d, want 2", got)
	}
	if got := report.Totals.Skipped[migrate.ReasonBot]; got != 1 {
		t.Fatalf("skipped[bot] = %d, want 1", got)
	}
	// Каждый участник исходного списка дал ровно один исход.
	if len(report.Outcomes) != 10 {
		t.Fatalf("outcomes = %d, want 10", len(report.Outcomes))
	}
	// added + failed == attempted при отсутствии already-member пропусков.
	if report.Totals.Added+report.Totals.FailedTotal() != report.Totals.Attempted {
		t.Fatalf("totals do not sum: %+v", report.Totals)
	}
}

func TestRunKeepBotsDisablesFilter(t *testing.T) {
	t.Parallel()

	members := []migrate.Member{
		{ID: 1},
		{ID: 2, Bot: true},
		{ID: 3, Deleted: true},
	}
	inviter := &fakeInviter{}
	account := &migrate.Account{Name: "account_0", Inviter: inviter}
	pool := migrate.NewPool([]*migrate.Account{account}, time.Minute)

	s := migrate.New(pool, migrate.Config{BatchSize: 5, KeepBots: true}, migrate.WithClock(newFakeClock()))
	report, err := s.Run(context.Background(), members)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Totals.Attempted != 3 || len(inviter.calls) != 3 {
		t.Fatalf("attempted = %d (calls %d), want 3", report.Totals.Attempted, len(inviter.calls))
	}
}
