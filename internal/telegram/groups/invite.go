package groups

import (
	"context"

	"telegram-migrator/internal/migrate"

	"github.com/go-faster/errors"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
)

// Inviter добавляет участников в целевую группу через аккаунт этого сервиса.
// Реализует migrate.Inviter. Целевая группа фиксируется при создании:
// access_hash действителен только для аккаунта, который её резолвил, поэтому
// каждый аккаунт пула строит собственный Inviter.
type Inviter struct {
	api  *tg.Client
	dest *Group
}

// Компиляторная проверка соответствия интерфейсу планировщика.
var _ migrate.Inviter = (*Inviter)(nil)

// Inviter создаёт Inviter в целевую группу dest через аккаунт сервиса.
func (s *Service) Inviter(dest *Group) *Inviter {
	return &Inviter{api: s.api, dest: dest}
}

// Invite пытается добавить одного участника. Любая ошибка Telegram API
// переводится в закрытый словарь migrate до возврата планировщику.
// Современный API может не бросать ошибку приватности, а вернуть участника
// в missing_invitees — этот случай тоже классифицируется как privacy-restricted.
func (i *Inviter) Invite(ctx context.Context, m migrate.Member) error {
	resp, err := i.api.ChannelsInviteToChannel(ctx, &tg.ChannelsInviteToChannelRequest{
		Channel: i.dest.Input(),
		Users: []tg.InputUserClass{
			&tg.InputUser{UserID: m.ID, AccessHash: m.AccessHash},
		},
	})
	if err != nil {
		return ClassifyInviteError(err)
	}

	for _, missing := range resp.MissingInvitees {
		if missing.UserID == m.ID {
			return &migrate.MemberError{
				Reason: migrate.ReasonPrivacy,
				Err:    errors.New("user was not invited (privacy settings)"),
			}
		}
	}
	return nil
}

// ClassifyInviteError — граница перевода словаря ошибок Telegram API в
// таксономию исходов миграции. Планировщик не видит tgerr: сюда стекается
// всё знание о конкретных кодах ошибок.
//
// Ошибки контекста пропускаются как есть: это сигнал остановки, а не исход.
func ClassifyInviteError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	// FLOOD_WAIT и FLOOD_PREMIUM_WAIT несут обязательную паузу сервера.
	if wait, ok := tgerr.AsFloodWait(err); ok {
		return &migrate.RateLimitError{Wait: wait, Err: err}
	}

	switch {
	case tgerr.Is(err, "USER_PRIVACY_RESTRICTED"):
		return &migrate.MemberError{Reason: migrate.ReasonPrivacy, Err: err}
	case tgerr.Is(err, "USER_NOT_MUTUAL_CONTACT"):
		return &migrate.MemberError{Reason: migrate.ReasonNotMutual, Err: err}
	case tgerr.Is(err, "USER_ALREADY_PARTICIPANT"):
		return &migrate.MemberError{Reason: migrate.ReasonAlreadyMember, Err: err}
	case tgerr.Is(err, "USER_ID_INVALID"),
		tgerr.Is(err, "PEER_ID_INVALID"),
		tgerr.Is(err, "INPUT_USER_DEACTIVATED"):
		return &migrate.MemberError{Reason: migrate.ReasonInvalidUser, Err: err}
	case tgerr.Is(err, "USER_BOT"):
		return &migrate.MemberError{Reason: migrate.ReasonBot, Err: err}
	case tgerr.Is(err, "USER_KICKED"),
		tgerr.Is(err, "USER_BANNED_IN_CHANNEL"),
		tgerr.Is(err, "USER_CHANNELS_TOO_MUCH"):
		return &migrate.MemberError{Reason: migrate.ReasonOther, Err: err}
	case tgerr.Is(err, "CHANNEL_PRIVATE"),
		tgerr.Is(err, "CHANNEL_INVALID"),
		tgerr.Is(err, "CHAT_ADMIN_REQUIRED"),
		tgerr.Is(err, "CHAT_WRITE_FORBIDDEN"),
		tgerr.Is(err, "USERS_TOO_MUCH"):
		// Целевая группа недоступна или заполнена: продолжать прогон бессмысленно.
		return &migrate.DestinationError{Err: err}
	default:
		return &migrate.MemberError{Reason: migrate.ReasonOther, Err: err}
	}
}
