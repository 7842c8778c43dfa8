package groups

import (
	"context"

	"telegram-migrator/internal/infra/logger"

	"github.com/go-faster/errors"
	"github.com/gotd/td/tg"
	"go.uber.org/zap"
)

const dialogsPageLimit = 100

// WarmDialogs выгружает список диалогов аккаунта и складывает access_hash всех
// встреченных каналов и пользователей в кэш пиров. Нужен для резолвинга группы
// по голому числовому идентификатору: без диалога в кэше у аккаунта нет
// access_hash канала. Темп запросов сдерживает общий rate-limit клиента.
func (s *Service) WarmDialogs(ctx context.Context) error {
	offsetDate, offsetID := 0, 0
	var offsetPeer tg.InputPeerClass = &tg.InputPeerEmpty{}

	userHashes := make(map[int64]int64)
	channelHashes := make(map[int64]int64)
	seen := 0

	for {
		resp, err := s.api.MessagesGetDialogs(ctx, &tg.MessagesGetDialogsRequest{
			OffsetDate: offsetDate,
			OffsetID:   offsetID,
			OffsetPeer: offsetPeer,
			Limit:      dialogsPageLimit,
		})
		if err != nil {
			return errors.Wrap(err, "fetch dialogs")
		}

		batch, err := flattenDialogs(resp)
		if err != nil {
			return err
		}
		if batch == nil || len(batch.Dialogs) == 0 {
			break
		}
		seen += len(batch.Dialogs)

		if err := s.mgr.Apply(ctx, batch.Users, batch.Chats); err != nil {
			logger.Debug("apply dialog entities failed", zap.Error(err))
		}
		for _, entity := range batch.Users {
			if user, ok := entity.(*tg.User); ok {
				userHashes[user.ID] = user.AccessHash
				s.persistUser(ctx, user)
			}
		}
		for _, entity := range batch.Chats {
			if channel, ok := entity.(*tg.Channel); ok {
				channelHashes[channel.ID] = channel.AccessHash
				s.persistChannel(ctx, channel)
			}
		}

		if len(batch.Dialogs) < dialogsPageLimit {
			break
		}

		// Пагинация по (offset_date, offset_id, offset_peer) последнего диалога.
		last := batch.Dialogs[len(batch.Dialogs)-1]
		prevDate, prevID := offsetDate, offsetID
		switch dlg := last.(type) {
		case *tg.Dialog:
			offsetID = dlg.TopMessage
			offsetDate = topMessageDate(batch.Messages, dlg.TopMessage)
			offsetPeer = peerToInput(dlg.Peer, userHashes, channelHashes)
		case *tg.DialogFolder:
			offsetID = dlg.TopMessage
			offsetDate = topMessageDate(batch.Messages, dlg.TopMessage)
			offsetPeer = peerToInput(dlg.Peer, userHashes, channelHashes)
		default:
			offsetPeer = &tg.InputPeerEmpty{}
		}
		if offsetDate == 0 {
			offsetDate = prevDate
		}
		if offsetID == 0 {
			offsetID = prevID
		}
	}

	logger.Debug("dialogs warmed", zap.Int("dialogs", seen),
		zap.Int("channels", len(channelHashes)), zap.Int("users", len(userHashes)))
	return nil
}

// flattenDialogs приводит все формы ответа MessagesGetDialogs к одной.
// nil без ошибки означает "not modified" — кэш уже актуален.
func flattenDialogs(resp tg.MessagesDialogsClass) (*tg.MessagesDialogs, error) {
	switch data := resp.(type) {
	case *tg.MessagesDialogs:
		return data, nil
	case *tg.MessagesDialogsSlice:
		return &tg.MessagesDialogs{
			Dialogs:  data.Dialogs,
			Messages: data.Messages,
			Chats:    data.Chats,
			Users:    data.Users,
		}, nil
	case *tg.MessagesDialogsNotModified:
		return nil, nil
	default:
		return nil, errors.Errorf("unexpected dialogs response %T", resp)
	}
}

// topMessageDate ищет дату верхнего сообщения диалога для смещения пагинации.
func topMessageDate(messages []tg.MessageClass, id int) int {
	for _, msg := range messages {
		switch item := msg.(type) {
		case *tg.Message:
			if item.ID == id {
				return item.Date
			}
		case *tg.MessageService:
			if item.ID == id {
				return item.Date
			}
		}
	}
	return 0
}

// peerToInput строит InputPeer по накопленным access_hash текущей выгрузки.
func peerToInput(peer tg.PeerClass, userHashes, channelHashes map[int64]int64) tg.InputPeerClass {
	switch entity := peer.(type) {
	case *tg.PeerUser:
		return &tg.InputPeerUser{UserID: entity.UserID, AccessHash: userHashes[entity.UserID]}
	case *tg.PeerChat:
		return &tg.InputPeerChat{ChatID: entity.ChatID}
	case *tg.PeerChannel:
		return &tg.InputPeerChannel{ChannelID: entity.ChannelID, AccessHash: channelHashes[entity.ChannelID]}
	default:
		return &tg.InputPeerEmpty{}
	}
}
