package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"telegram-migrator/internal/app"
	"telegram-migrator/internal/infra/config"
	"telegram-migrator/internal/infra/logger"
	"telegram-migrator/internal/infra/pr"
	"telegram-migrator/internal/migrate"
)

func main() {
	if err := pr.Init(); err != nil {
		logger.Fatal("failed to assign stdout and stderr", zap.Error(err))
	}

	// envPath определяет расположение .env с секретами и общими настройками.
	envPath := flag.String("env", "assets/.env", "path to .env file")
	// accountsPath указывает на JSON-файл пула аккаунтов; пусто — одиночный аккаунт из .env.
	accountsPath := flag.String("accounts", "", "path to multi-account credentials file (JSON)")
	source := flag.String("source", "", "source group: @username, -100<id> or bare id")
	dest := flag.String("dest", "", "destination group: @username, -100<id> or bare id")
	batchSize := flag.Int("batch-size", migrate.DefaultBatchSize, "members per batch")
	waitSec := flag.Int("wait", int(migrate.DefaultWait/time.Second), "seconds to wait between batches")
	limit := flag.Int("limit", 0, "cap on processed members (0 = unlimited)")
	dryRun := flag.Bool("dry-run", false, "simulate the migration without adding anyone")
	keepBots := flag.Bool("keep-bots", false, "do not filter bots and deleted accounts")
	flag.Parse()

	if *source == "" || *dest == "" {
		pr.ErrPrintln("both -source and -dest are required")
		flag.Usage()
		os.Exit(2)
	}

	// config.Load загружает конфигурацию из .env.
	if err := config.Load(*envPath); err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}
	// Применяем часовую зону приложения (поддерживает IANA и UTC-смещение).
	// Влияет глобально на time.Local: от неё зависят таймстемпы отчёта.
	time.Local = config.AppLocation //nolint:reassign // намеренно задаём часовую зону процесса

	// logger.Init задаёт уровень, SetWriters направляет вывод в подсистему pr,
	// EnableFile включает файловый лог с ротацией, если задан LOG_FILE.
	logger.Init(config.Env().LogLevel)
	logger.SetWriters(pr.Stdout(), pr.Stderr())
	logger.EnableFile(logger.FileConfig{
		Path:       config.Env().LogFile,
		Level:      config.Env().LogFileLevel,
		MaxSizeMB:  config.Env().LogFileMaxSize,
		MaxBackups: config.Env().LogFileMaxBackups,
		MaxAgeDays: config.Env().LogFileMaxAge,
		Compress:   config.Env().LogFileCompress,
	})
	for _, msg := range config.Warnings() {
		logger.Warn(msg)
	}

	// Контекст с обработкой системных сигналов (Ctrl+C/SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	a := app.New(app.Options{
		AccountsFile: *accountsPath,
		Source:       *source,
		Dest:         *dest,
		BatchSize:    *batchSize,
		WaitSec:      *waitSec,
		Limit:        *limit,
		DryRun:       *dryRun,
		KeepBots:     *keepBots,
	})

	err := a.Run(ctx)
	stop()
	pr.InterruptReadline()

	switch {
	case err == nil:
		logger.Info("migration run complete")
	case errors.Is(err, context.Canceled):
		logger.Warn("migration interrupted")
		os.Exit(1)
	default:
		logger.Error("migration failed", zap.Error(err))
		_ = logger.Logger().Sync()
		os.Exit(1)
	}
}
