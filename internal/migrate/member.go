// Package migrate — доменное ядро миграции участников между группами Telegram.
// Здесь живут модель участника, таксономия исходов, пул аккаунтов с cooldown
// и планировщик батчей. Пакет не знает про MTProto: сетевой слой поставляет
// участников и реализацию Inviter, а ошибки приходят уже в закрытом словаре
// (MemberError/RateLimitError/DestinationError).
package migrate

import "strings"

// Member — участник исходной группы. Снимок неизменяем после выборки:
// планировщик только читает поля и никогда не дополняет их по сети.
// access_hash в отчёт не сериализуется: это сессионный секрет аккаунта.
type Member struct {
	ID         int64  `json:"id"`
	AccessHash int64  `json:"-"`
	Username   string `json:"username,omitempty"`
	FirstName  string `json:"first_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
	Bot        bool   `json:"bot,omitempty"`
	Deleted    bool   `json:"deleted,omitempty"`
}

// DisplayName возвращает читаемое имя для прогресса и отчёта.
// Для удалённых аккаунтов и пустых профилей подставляются плейсхолдеры.
func (m Member) DisplayName() string {
	if m.Deleted {
		return "<deleted account>"
	}
	full := strings.TrimSpace(m.FirstName + " " + m.LastName)
	if full != "" {
		return full
	}
	if m.Username != "" {
		return "@" + m.Username
	}
	return "<unknown>"
}

// Filter отделяет участников, подлежащих добавлению, от ботов и удалённых
// аккаунтов. Для каждого отфильтрованного сразу формируется Skipped-исход,
// чтобы выполнялся инвариант «каждый участник даёт ровно один исход».
// При keepBots=true фильтр выключен и список возвращается как есть.
func Filter(members []Member, keepBots bool) (eligible []Member, skipped []Outcome) {
	if keepBots {
		return members, nil
	}
	eligible = make([]Member, 0, len(members))
	for _, m := range members {
		switch {
		case m.Deleted:
			skipped = append(skipped, Outcome{Member: m, Status: StatusSkipped, Reason: ReasonDeletedAccount})
		case m.Bot:
			skipped = append(skipped, Outcome{Member: m, Status: StatusSkipped, Reason: ReasonBot})
		default:
			eligible = append(eligible, m)
		}
	}
	return eligible, skipped
}
