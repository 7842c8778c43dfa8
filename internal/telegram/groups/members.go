package groups

import (
	"context"

	"telegram-migrator/internal/infra/logger"
	"telegram-migrator/internal/migrate"

	"github.com/go-faster/errors"
	"github.com/gotd/td/tg"
	"go.uber.org/zap"
)

const participantsPageLimit = 100

// ListMembers выгружает полный список участников группы.
// Реализована пагинация по offset с фиксированным размером страницы;
// порядок участников — порядок выдачи сервера (фильтр Recent). Каждый
// встреченный пользователь попутно сохраняется в кэш пиров, чтобы добавление
// с другого аккаунта и последующие прогоны имели access_hash под рукой.
func (s *Service) ListMembers(ctx context.Context, group *Group) ([]migrate.Member, error) {
	var members []migrate.Member
	seen := make(map[int64]struct{})

	offset := 0
	for {
		resp, err := s.api.ChannelsGetParticipants(ctx, &tg.ChannelsGetParticipantsRequest{
			Channel: group.Input(),
			Filter:  &tg.ChannelParticipantsRecent{},
			Offset:  offset,
			Limit:   participantsPageLimit,
		})
		if err != nil {
			return nil, errors.Wrap(err, "ChannelsGetParticipants")
		}

		page, ok := resp.(*tg.ChannelsChannelParticipants)
		if !ok {
			// channelParticipantsNotModified без hash-кэширования не ожидается.
			break
		}
		if len(page.Participants) == 0 {
			break
		}

		for _, u := range page.Users {
			user, ok := u.(*tg.User)
			if !ok {
				continue
			}
			if _, dup := seen[user.ID]; dup {
				continue
			}
			seen[user.ID] = struct{}{}
			s.persistUser(ctx, user)
			members = append(members, migrate.Member{
				ID:         user.ID,
				AccessHash: user.AccessHash,
				Username:   user.Username,
				FirstName:  user.FirstName,
				LastName:   user.LastName,
				Bot:        user.Bot,
				Deleted:    user.Deleted,
			})
		}

		offset += len(page.Participants)
		if offset >= page.Count {
			break
		}
	}

	logger.Info("members fetched",
		zap.String("group", group.Raw.Title),
		zap.Int("count", len(members)))
	return members, nil
}
