// Package app — верхний уровень сборки мигратора. Здесь связываются
// конфигурация, пул MTProto-аккаунтов, резолвинг групп, планировщик батчей
// и запись отчёта. Отсюда же обеспечивается корректный останов аккаунтов.
package app

import (
	"context"
	"time"

	"telegram-migrator/internal/infra/config"
	"telegram-migrator/internal/infra/logger"
	"telegram-migrator/internal/infra/pr"
	"telegram-migrator/internal/migrate"
	"telegram-migrator/internal/support/debug"
	"telegram-migrator/internal/telegram/account"
	"telegram-migrator/internal/telegram/groups"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
)

// Options — параметры одного прогона, пришедшие из CLI.
type Options struct {
	AccountsFile string // путь к JSON-файлу пула; пусто — одиночный аккаунт из .env
	Source       string // ссылка на исходную группу (@username, -100..., id)
	Dest         string // ссылка на целевую группу
	BatchSize    int
	WaitSec      int
	Limit        int
	DryRun       bool
	KeepBots     bool
}

// App агрегирует зависимости прогона миграции.
type App struct {
	opts     Options
	accounts []*account.Account
}

// New создаёт каркас приложения. Подключение аккаунтов происходит в Run.
func New(opts Options) *App {
	return &App{opts: opts}
}

// Run выполняет полный сценарий: подключение аккаунтов, резолвинг групп,
// выборка участников, миграция и запись отчёта. Блокируется до завершения.
// Ошибки настройки (невалидные группы, неудачная авторизация) возвращаются
// до каких-либо попыток добавления.
func (a *App) Run(ctx context.Context) error {
	creds, err := a.credentials()
	if err != nil {
		return err
	}

	if err := a.startAccounts(ctx, creds); err != nil {
		return err
	}
	defer a.stopAccounts()

	// Резолвинг и выборка участников идут через первый аккаунт пула.
	primary := groups.NewService(a.accounts[0].API(), a.accounts[0].Peers(), a.accounts[0].Store())

	source, err := primary.Resolve(ctx, a.opts.Source)
	if err != nil {
		return errors.Wrap(err, "resolve source group")
	}
	pr.Printf("Source group: %s (%d)\n", source.Raw.Title, source.Raw.ID)

	dest, err := primary.Resolve(ctx, a.opts.Dest)
	if err != nil {
		return errors.Wrap(err, "resolve destination group")
	}
	pr.Printf("Destination group: %s (%d)\n", dest.Raw.Title, dest.Raw.ID)

	members, err := primary.ListMembers(ctx, source)
	if err != nil {
		return errors.Wrap(err, "list source members")
	}
	if len(members) == 0 {
		return errors.New("source group has no visible members")
	}
	debug.DumpMembers(members, 20)

	pool, err := a.buildPool(ctx, primary, dest)
	if err != nil {
		return err
	}

	scheduler := migrate.New(pool, migrate.Config{
		BatchSize: a.opts.BatchSize,
		Wait:      time.Duration(a.opts.WaitSec) * time.Second,
		Limit:     a.opts.Limit,
		DryRun:    a.opts.DryRun,
		KeepBots:  a.opts.KeepBots,
	}, migrate.WithProgress(printProgress))

	report, runErr := scheduler.Run(ctx, members)
	report.Source = source.Info()
	report.Destination = dest.Info()

	jsonPath, textPath, writeErr := report.Write(config.Env().ReportsDir)
	if writeErr != nil {
		logger.Error("report write failed", zap.Error(writeErr))
	} else {
		pr.Printf("\nDetailed reports saved to:\n- %s\n- %s\n", jsonPath, textPath)
	}

	printSummary(report)

	// Частичный прогон из-за недоступной целевой группы — ненулевой выход;
	// пер-участниковые ошибки завершённого прогона выходной код не портят.
	if runErr != nil {
		return runErr
	}
	return writeErr
}

// credentials собирает учётные данные пула: JSON-файл либо одиночный .env-аккаунт.
func (a *App) credentials() ([]config.Credentials, error) {
	if a.opts.AccountsFile == "" {
		return []config.Credentials{config.SingleAccount()}, nil
	}
	creds, err := config.LoadAccounts(a.opts.AccountsFile)
	if err != nil {
		return nil, errors.Wrap(err, "load accounts")
	}
	return creds, nil
}

// startAccounts последовательно подключает аккаунты. Интерактивная авторизация
// (код, 2FA) идёт по одному аккаунту за раз, поэтому параллелить нечего.
// Первый сбой откатывает уже подключённые аккаунты.
func (a *App) startAccounts(ctx context.Context, creds []config.Credentials) error {
	env := config.Env()
	for _, c := range creds {
		acc, err := account.New(c, env.ThrottleRPS, env.TestDC)
		if err != nil {
			a.stopAccounts()
			return errors.Wrapf(err, "init account %s", c.Name)
		}
		if err := acc.Start(ctx); err != nil {
			acc.Stop()
			a.stopAccounts()
			return errors.Wrapf(err, "start account %s", c.Name)
		}
		a.accounts = append(a.accounts, acc)
	}
	logger.Info("account pool ready", zap.Int("accounts", len(a.accounts)))
	return nil
}

// stopAccounts гасит аккаунты в обратном порядке подключения.
func (a *App) stopAccounts() {
	for i := len(a.accounts) - 1; i >= 0; i-- {
		a.accounts[i].Stop()
	}
	a.accounts = nil
}

// buildPool строит пул планировщика. Каждый аккаунт резолвит целевую группу
// самостоятельно: access_hash канала действителен только внутри той сессии,
// которая его получила.
func (a *App) buildPool(ctx context.Context, primary *groups.Service, dest *groups.Group) (*migrate.Pool, error) {
	backoff := time.Duration(config.Env().BackoffSec) * time.Second

	accounts := make([]*migrate.Account, 0, len(a.accounts))
	for i, acc := range a.accounts {
		svc := primary
		destForAcc := dest
		if i > 0 {
			svc = groups.NewService(acc.API(), acc.Peers(), acc.Store())
			resolved, err := svc.Resolve(ctx, a.opts.Dest)
			if err != nil {
				return nil, errors.Wrapf(err, "resolve destination via %s", acc.Name)
			}
			destForAcc = resolved
		}
		accounts = append(accounts, &migrate.Account{
			Name:    acc.Name,
			Inviter: svc.Inviter(destForAcc),
		})
	}
	return migrate.NewPool(accounts, backoff), nil
}

// printProgress печатает строку прогресса по каждому исходу.
func printProgress(done, total int, o migrate.Outcome) {
	switch o.Status {
	case migrate.StatusAdded:
		pr.Printf("[%d/%d] added %s (%d)\n", done, total, o.Member.DisplayName(), o.Member.ID)
	case migrate.StatusWouldAdd:
		pr.Printf("[%d/%d] would add %s (%d)\n", done, total, o.Member.DisplayName(), o.Member.ID)
	case migrate.StatusSkipped:
		pr.Printf("[%d/%d] skipped %s (%d): %s\n", done, total, o.Member.DisplayName(), o.Member.ID, o.Reason)
	case migrate.StatusFailed:
		pr.Printf("[%d/%d] failed %s (%d): %s\n", done, total, o.Member.DisplayName(), o.Member.ID, o.Reason)
	}
	debug.DumpOutcome(o)
}

// printSummary выводит финальную сводку прогона в консоль.
func printSummary(r *migrate.Report) {
	pr.Println("\nMigration completed!")
	pr.Printf("Members attempted: %d\n", r.Totals.Attempted)
	if r.Totals.WouldAdd > 0 {
		pr.Printf("Would add (dry run): %d\n", r.Totals.WouldAdd)
	}
	pr.Printf("Successfully added: %d\n", r.Totals.Added)
	pr.Printf("Failed: %d\n", r.Totals.FailedTotal())
	pr.Printf("Skipped: %d\n", r.Totals.SkippedTotal())
	for _, acc := range r.Accounts {
		pr.Printf("- %s: attempted %d, added %d, failed %d\n",
			acc.Name, acc.Attempted, acc.Added, acc.Failed)
	}
	if r.Partial {
		pr.Printf("Run was aborted early; report covers %d processed members\n", r.Totals.Attempted)
	}
}
