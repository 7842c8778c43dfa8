// Package groups — сетевой слой миграции: резолвинг ссылок на группы,
// постраничная выгрузка участников и добавление участников в целевую группу.
// Это граница перевода: весь словарь ошибок Telegram API остаётся здесь,
// наружу (в планировщик) уходят только значения закрытой таксономии migrate.
package groups

import (
	"context"
	"strconv"
	"strings"

	"telegram-migrator/internal/infra/logger"
	"telegram-migrator/internal/migrate"

	"github.com/go-faster/errors"
	contribstorage "github.com/gotd/contrib/storage"
	"github.com/gotd/td/telegram/peers"
	"github.com/gotd/td/telegram/query/dialogs"
	"github.com/gotd/td/tg"
	"go.uber.org/zap"
)

// Group — разрешённая супергруппа/канал с известным access_hash.
type Group struct {
	Raw *tg.Channel
}

// Input возвращает InputChannel для RPC-вызовов.
func (g *Group) Input() *tg.InputChannel {
	return &tg.InputChannel{ChannelID: g.Raw.ID, AccessHash: g.Raw.AccessHash}
}

// Info возвращает снимок метаданных для отчёта.
func (g *Group) Info() migrate.GroupInfo {
	return migrate.GroupInfo{
		Title:       g.Raw.Title,
		ID:          g.Raw.ID,
		Username:    g.Raw.Username,
		MemberCount: g.Raw.ParticipantsCount,
	}
}

// Service выполняет групповые операции через конкретный аккаунт.
// Третий компонент — персистентный кэш пиров: повторные прогоны переиспользуют
// access_hash из bbolt и не дёргают резолвинг заново.
type Service struct {
	api   *tg.Client
	mgr   *peers.Manager
	store contribstorage.PeerStorage
}

// NewService собирает сервис поверх RPC-клиента, менеджера пиров и кэша.
func NewService(api *tg.Client, mgr *peers.Manager, store contribstorage.PeerStorage) *Service {
	return &Service{api: api, mgr: mgr, store: store}
}

// Resolve превращает пользовательскую ссылку на группу в Group.
// Поддерживаются формы: "@username", голый username, "-100<id>" (супергруппа)
// и голый числовой идентификатор. Обычные (не супергруппы) чаты и пользователи
// отклоняются: миграция работает только с каналами-супергруппами.
func (s *Service) Resolve(ctx context.Context, ref string) (*Group, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, errors.New("empty group reference")
	}

	if id, ok := parseChannelID(ref); ok {
		return s.resolveByID(ctx, id)
	}
	return s.resolveByUsername(ctx, strings.TrimPrefix(ref, "@"))
}

// parseChannelID распознаёт числовые формы ссылки. Префикс -100 (клиентское
// представление супергрупп) отрезается до внутреннего идентификатора канала.
func parseChannelID(ref string) (int64, bool) {
	v := ref
	if strings.HasPrefix(v, "-100") {
		v = v[len("-100"):]
	} else {
		v = strings.TrimPrefix(v, "-")
	}
	if v == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// resolveByID ищет канал сначала в персистентном кэше, затем через менеджер пиров.
func (s *Service) resolveByID(ctx context.Context, id int64) (*Group, error) {
	cached, err := s.store.Find(ctx, contribstorage.PeerKey{Kind: dialogs.Channel, ID: id})
	if err == nil && cached.Channel != nil && cached.Channel.AccessHash != 0 {
		logger.Debug("group resolved from cache", zap.Int64("channel_id", id))
		return &Group{Raw: cached.Channel}, nil
	}
	if err != nil && !errors.Is(err, contribstorage.ErrPeerNotFound) {
		return nil, errors.Wrap(err, "peers cache lookup")
	}

	channel, err := s.mgr.ResolveChannelID(ctx, id)
	if err == nil {
		return s.adopt(ctx, channel.Raw())
	}

	// У аккаунта нет access_hash канала. Прогреваем кэш списком диалогов:
	// группа, откуда или куда мигрируют, почти всегда среди них.
	logger.Debug("channel not resolvable directly, warming dialogs", zap.Int64("channel_id", id))
	if warmErr := s.WarmDialogs(ctx); warmErr != nil {
		return nil, errors.Wrapf(warmErr, "resolve channel %d", id)
	}
	cached, cacheErr := s.store.Find(ctx, contribstorage.PeerKey{Kind: dialogs.Channel, ID: id})
	if cacheErr == nil && cached.Channel != nil {
		return &Group{Raw: cached.Channel}, nil
	}
	return nil, errors.Wrapf(err, "resolve channel %d", id)
}

// resolveByUsername резолвит публичное имя группы через менеджер пиров.
func (s *Service) resolveByUsername(ctx context.Context, username string) (*Group, error) {
	cached, err := s.store.Resolve(ctx, username)
	if err == nil && cached.Channel != nil && cached.Channel.AccessHash != 0 {
		logger.Debug("group resolved from cache", zap.String("username", username))
		return &Group{Raw: cached.Channel}, nil
	}

	peer, err := s.mgr.ResolveDomain(ctx, username)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve @%s", username)
	}
	channel, ok := peer.(peers.Channel)
	if !ok {
		return nil, errors.Errorf("@%s is not a supergroup or channel", username)
	}
	return s.adopt(ctx, channel.Raw())
}

// adopt валидирует разрешённый канал и сохраняет его в персистентный кэш.
func (s *Service) adopt(ctx context.Context, raw *tg.Channel) (*Group, error) {
	if raw == nil {
		return nil, errors.New("resolved peer has no channel payload")
	}
	if raw.Broadcast && !raw.Megagroup {
		// Вещательный канал: участников туда не приглашают пачками.
		logger.Warn("resolved peer is a broadcast channel", zap.String("title", raw.Title))
	}

	s.persistChannel(ctx, raw)
	return &Group{Raw: raw}, nil
}

// persistChannel кладёт канал в bbolt-кэш; ошибки записи не фатальны.
func (s *Service) persistChannel(ctx context.Context, raw *tg.Channel) {
	entry := contribstorage.Peer{
		Key: dialogs.DialogKey{
			Kind:       dialogs.Channel,
			ID:         raw.ID,
			AccessHash: raw.AccessHash,
		},
		Channel: raw,
	}
	if err := s.store.Add(ctx, entry); err != nil {
		logger.Warn("persist channel failed", zap.Int64("channel_id", raw.ID), zap.Error(err))
	}
}

// persistUser кладёт пользователя в bbolt-кэш access_hash.
func (s *Service) persistUser(ctx context.Context, raw *tg.User) {
	entry := contribstorage.Peer{
		Key: dialogs.DialogKey{
			Kind:       dialogs.User,
			ID:         raw.ID,
			AccessHash: raw.AccessHash,
		},
		User: raw,
	}
	if err := s.store.Add(ctx, entry); err != nil {
		logger.Debug("persist user failed", zap.Int64("user_id", raw.ID), zap.Error(err))
	}
}
