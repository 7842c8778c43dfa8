package migrate

import (
	"context"
	"errors"
	"time"

	"telegram-migrator/internal/infra/clockx"
	"telegram-migrator/internal/infra/logger"

	"go.uber.org/zap"
)

// Значения по умолчанию для планировщика. Совпадают с дефолтами CLI.
const (
	DefaultBatchSize = 5
	DefaultWait      = 30 * time.Second
	DefaultBackoff   = 60 * time.Second
)

// Config — параметры одного прогона миграции.
type Config struct {
	BatchSize int           // размер батча; <=0 приводится к DefaultBatchSize
	Wait      time.Duration // пауза между батчами (не после последнего)
	Limit     int           // верхняя граница обрабатываемых участников; 0 — без лимита
	DryRun    bool          // симуляция: исходы WouldAdd без сетевых вызовов
	KeepBots  bool          // не отфильтровывать ботов и удалённые аккаунты
}

// Progress вызывается после каждого записанного исхода батч-обработки.
// done/total считаются по участникам, прошедшим фильтр и лимит.
type Progress func(done, total int, o Outcome)

// Option настраивает планировщик при создании.
type Option func(*Scheduler)

// WithClock подменяет источник времени (в тестах — фейковые часы).
func WithClock(c clockx.Clock) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithProgress регистрирует обратный вызов прогресса.
func WithProgress(p Progress) Option {
	return func(s *Scheduler) { s.progress = p }
}

// Scheduler последовательно прогоняет участников батчами через пул аккаунтов.
// Конкурентности нет намеренно: параллельные добавления ломали бы пейсинг,
// ради которого всё и затевалось. Весь изменяемый стейт (cooldown, счётчики)
// принадлежит планировщику и мутируется строго между попытками.
type Scheduler struct {
	pool     *Pool
	cfg      Config
	clock    clockx.Clock
	progress Progress
}

// New собирает планировщик. Пул должен содержать хотя бы один аккаунт.
func New(pool *Pool, cfg Config, opts ...Option) *Scheduler {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	s := &Scheduler{
		pool:  pool,
		cfg:   cfg,
		clock: clockx.System(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run выполняет миграцию: фильтрация, лимит, батчи в исходном порядке, по
// одному исходу на участника. Ошибка возвращается только при фатальном
// сценарии (целевая группа недоступна, контекст отменён); отчёт при этом
// всё равно финализируется с уже записанными исходами и флагом Partial.
func (s *Scheduler) Run(ctx context.Context, members []Member) (*Report, error) {
	start := s.clock.Now()

	eligible, skipped := Filter(members, s.cfg.KeepBots)
	if s.cfg.Limit > 0 && len(eligible) > s.cfg.Limit {
		eligible = eligible[:s.cfg.Limit]
	}

	outcomes := make([]Outcome, 0, len(members))
	outcomes = append(outcomes, skipped...)

	batches := partition(eligible, s.cfg.BatchSize)
	logger.Info("migration started",
		zap.Int("members", len(eligible)),
		zap.Int("batches", len(batches)),
		zap.Int("batch_size", s.cfg.BatchSize),
		zap.Int("accounts", s.pool.Size()),
		zap.Bool("dry_run", s.cfg.DryRun))

	total := len(eligible)
	done := 0
	var runErr error

batchLoop:
	for i, batch := range batches {
		account, wait := s.pool.Pick(s.clock.Now())
		if account == nil {
			runErr = errors.New("account pool is empty")
			break
		}
		if wait > 0 {
			// Все аккаунты заморожены: ждём ближайшее истечение cooldown.
			logger.Warn("all accounts throttled, waiting",
				zap.String("account", account.Name),
				zap.Duration("wait", wait))
			if err := s.clock.Sleep(ctx, wait); err != nil {
				runErr = err
				break
			}
		}

		for _, m := range batch {
			outcome, fatal := s.attempt(ctx, account, m)
			if outcome.Status != "" {
				outcomes = append(outcomes, outcome)
				done++
				if s.progress != nil {
					s.progress(done, total, outcome)
				}
			}
			if fatal != nil {
				runErr = fatal
				break batchLoop
			}
		}

		// Пейсинг между батчами. После последнего батча пауза не нужна.
		if i < len(batches)-1 && s.cfg.Wait > 0 {
			if err := s.clock.Sleep(ctx, s.cfg.Wait); err != nil {
				runErr = err
				break
			}
		}
	}

	end := s.clock.Now()
	report := BuildReport(start, end, outcomes, s.pool.Stats(), runErr != nil)
	if runErr != nil {
		logger.Warn("migration finished partially", zap.Error(runErr))
	} else {
		logger.Info("migration finished", zap.Duration("duration", report.Duration))
	}
	return report, runErr
}

// attempt выполняет одну попытку и классифицирует её результат.
// Возвращает пустой Outcome (Status == ""), если попытка была сорвана
// контекстом до получения результата. Ненулевой fatal прекращает прогон.
func (s *Scheduler) attempt(ctx context.Context, account *Account, m Member) (Outcome, error) {
	if s.cfg.DryRun {
		return Outcome{Member: m, Status: StatusWouldAdd, Account: account.Name}, nil
	}
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}

	err := account.Inviter.Invite(ctx, m)
	if err == nil {
		account.added++
		return Outcome{Member: m, Status: StatusAdded, Account: account.Name}, nil
	}

	var (
		rateLimit   *RateLimitError
		memberErr   *MemberError
		destination *DestinationError
	)
	switch {
	case errors.As(err, &rateLimit):
		// FLOOD_WAIT замораживает аккаунт; участник в этом прогоне не повторяется.
		account.failed++
		account.SetCooldown(s.clock.Now().Add(rateLimit.Wait))
		logger.Warn("rate limited",
			zap.String("account", account.Name),
			zap.Int64("user_id", m.ID),
			zap.Duration("wait", rateLimit.Wait))
		return Outcome{
			Member: m, Status: StatusFailed, Reason: ReasonRateLimited,
			Account: account.Name, Error: err.Error(),
		}, nil

	case errors.As(err, &memberErr):
		if memberErr.Reason == ReasonAlreadyMember {
			// Уже состоит в группе — это пропуск, а не ошибка.
			return Outcome{
				Member: m, Status: StatusSkipped, Reason: ReasonAlreadyMember,
				Account: account.Name,
			}, nil
		}
		account.failed++
		return Outcome{
			Member: m, Status: StatusFailed, Reason: memberErr.Reason,
			Account: account.Name, Error: err.Error(),
		}, nil

	case errors.As(err, &destination):
		// Целевая группа недоступна: записываем исход и обрываем остаток прогона.
		account.failed++
		return Outcome{
			Member: m, Status: StatusFailed, Reason: ReasonOther,
			Account: account.Name, Error: err.Error(),
		}, err

	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return Outcome{}, err

	default:
		account.failed++
		return Outcome{
			Member: m, Status: StatusFailed, Reason: ReasonOther,
			Account: account.Name, Error: err.Error(),
		}, nil
	}
}

// partition режет срез на последовательные батчи по size; последний может
// быть короче. Подсрезы смотрят в исходный массив, копирование не нужно.
func partition(members []Member, size int) [][]Member {
	if len(members) == 0 {
		return nil
	}
	batches := make([][]Member, 0, (len(members)+size-1)/size)
	for start := 0; start < len(members); start += size {
		end := min(start+size, len(members))
		batches = append(batches, members[start:end])
	}
	return batches
}
