// Package account управляет жизненным циклом одного авторизованного
// MTProto-клиента из пула мигратора. Каждый аккаунт получает собственные
// файл сессии и bbolt-кэш пиров, поэтому аккаунты не мешают друг другу и
// переживают перезапуски без повторной интерактивной авторизации.
//
// Особенность gotd: telegram.Client.Run блокируется на всё время жизни
// соединения. Поэтому Start поднимает клиента в фоновой горутине, дожидается
// успешной авторизации и возвращает управление; Stop гасит соединение.
package account

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"telegram-migrator/internal/infra/config"
	"telegram-migrator/internal/infra/logger"
	migauth "telegram-migrator/internal/telegram/auth"
	"telegram-migrator/internal/telegram/session"

	"github.com/go-faster/errors"
	"go.etcd.io/bbolt"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	bboltdb "github.com/gotd/contrib/bbolt"
	"github.com/gotd/contrib/middleware/ratelimit"
	contribstorage "github.com/gotd/contrib/storage"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/telegram/dcs"
	"github.com/gotd/td/telegram/peers"
	"github.com/gotd/td/tg"
)

const (
	peersBucketName             = "peers"
	dbOpenTimeout               = time.Second
	dbFileMode      os.FileMode = 0o600
)

// Account — один авторизованный аккаунт: gotd-клиент, менеджер пиров и
// персистентный кэш access_hash поверх bbolt.
type Account struct {
	Name  string
	creds config.Credentials

	client *telegram.Client
	db     *bbolt.DB
	store  contribstorage.PeerStorage
	mgr    *peers.Manager

	cancel context.CancelFunc
	done   chan error
	self   *tg.User
}

// New собирает аккаунт, не поднимая соединение. Открывает bbolt-кэш пиров и
// настраивает клиента: файловая сессия, token-bucket лимитер (rps, burst 2x)
// и паспорт устройства. FLOOD_WAIT здесь намеренно не обрабатывается
// middleware: планировщик сам превращает его в cooldown аккаунта.
func New(creds config.Credentials, rps int, testDC bool) (*Account, error) {
	path := creds.PeersCacheFile
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("ensure dir %q: %w", dir, err)
		}
	}
	db, err := bbolt.Open(path, dbFileMode, &bbolt.Options{Timeout: dbOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("open peers cache: %w", err)
	}

	options := telegram.Options{
		SessionStorage: &session.FileStorage{Path: creds.SessionFile},
		Middlewares: []telegram.Middleware{
			ratelimit.New(rate.Limit(rps), rps*2), //nolint:mnd // burst = 2*rate
		},
		Device: telegram.DeviceConfig{
			DeviceModel:   "MacBookPro18,1",
			SystemVersion: "macOS v15.6.1 build 24G90",
			AppVersion:    "1.0.0",
		},
	}
	// Для тестовых окружений используем DC тестового стенда Telegram.
	if testDC {
		options.DCList = dcs.Test()
	}

	client := telegram.NewClient(creds.APIID, creds.APIHash, options)

	return &Account{
		Name:   creds.Name,
		creds:  creds,
		client: client,
		db:     db,
		store:  bboltdb.NewPeerStorage(db, []byte(peersBucketName)),
		mgr:    (peers.Options{}).Build(client.API()),
	}, nil
}

// Start поднимает соединение и выполняет авторизацию (интерактивную, если
// сессия отсутствует). Блокируется до готовности аккаунта либо до ошибки.
func (a *Account) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.done = make(chan error, 1)

	ready := make(chan struct{})

	go func() {
		// Результат отправляется ровно один раз, после чего канал закрывается:
		// и Start (ветки ошибок), и Stop могут безопасно читать done, сколько бы
		// из них ни дошло до чтения.
		defer close(a.done)
		a.done <- a.client.Run(runCtx, func(ctx context.Context) error {
			flow := auth.NewFlow(
				migauth.TerminalAuthenticator{PhoneNumber: a.creds.PhoneNumber, Label: a.Name},
				auth.SendCodeOptions{},
			)
			if err := a.client.Auth().IfNecessary(ctx, flow); err != nil {
				return errors.Wrap(err, "authorize")
			}

			self, err := a.client.Self(ctx)
			if err != nil {
				return errors.Wrap(err, "fetch self")
			}
			a.self = self
			logger.Info("account connected",
				zap.String("account", a.Name),
				zap.String("first_name", self.FirstName),
				zap.Int64("user_id", self.ID))

			close(ready)
			// Держим соединение живым до остановки аккаунта.
			<-ctx.Done()
			return nil
		})
	}()

	select {
	case <-ready:
		return nil
	case err := <-a.done:
		cancel()
		if err == nil {
			err = errors.New("client stopped before authorization completed")
		}
		return fmt.Errorf("account %s: %w", a.Name, err)
	case <-ctx.Done():
		cancel()
		<-a.done
		return ctx.Err()
	}
}

// Stop гасит соединение и закрывает кэш пиров. Безопасен после неудачного
// Start: если результат из done уже прочитан ветками ошибок Start, чтение из
// закрытого канала возвращается сразу.
func (a *Account) Stop() {
	if a.cancel != nil {
		a.cancel()
		if err, ok := <-a.done; ok && err != nil {
			logger.Debug("client run finished", zap.String("account", a.Name), zap.Error(err))
		}
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}

// API возвращает RPC-клиента Telegram этого аккаунта.
func (a *Account) API() *tg.Client {
	return a.client.API()
}

// Peers возвращает менеджер пиров (резолвинг username/ID с учётом access_hash).
func (a *Account) Peers() *peers.Manager {
	return a.mgr
}

// Store возвращает персистентный кэш пиров (bbolt).
func (a *Account) Store() contribstorage.PeerStorage {
	return a.store
}

// Self возвращает профиль авторизованного пользователя; nil до Start.
func (a *Account) Self() *tg.User {
	return a.self
}
