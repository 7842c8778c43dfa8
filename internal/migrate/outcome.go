package migrate

import (
	"fmt"
	"time"
)

// Status — итоговое состояние одной попытки добавления.
type Status string

const (
	// StatusAdded — участник успешно добавлен в целевую группу.
	StatusAdded Status = "added"
	// StatusWouldAdd — синтетический исход dry-run: сеть не вызывалась.
	StatusWouldAdd Status = "would_add"
	// StatusSkipped — участник не добавлялся осознанно (бот, удалён, уже в группе).
	StatusSkipped Status = "skipped"
	// StatusFailed — попытка была и завершилась ошибкой.
	StatusFailed Status = "failed"
)

// Reason уточняет Skipped/Failed-исходы. Словарь закрыт: сетевой слой обязан
// привести любую ошибку библиотеки к одному из этих значений.
type Reason string

const (
	ReasonBot            Reason = "bot"
	ReasonDeletedAccount Reason = "deleted-account"
	ReasonAlreadyMember  Reason = "already-member"
	ReasonPrivacy        Reason = "privacy-restricted"
	ReasonNotMutual      Reason = "not-mutual-contact"
	ReasonInvalidUser    Reason = "invalid-user"
	ReasonRateLimited    Reason = "rate-limited"
	ReasonOther          Reason = "other"
)

// Outcome — классифицированный результат по одному участнику.
// Account пуст для исходов, полученных до выбора аккаунта (фильтрация, dry-run).
type Outcome struct {
	Member  Member `json:"member"`
	Status  Status `json:"status"`
	Reason  Reason `json:"reason,omitempty"`
	Account string `json:"account,omitempty"`
	Error   string `json:"error,omitempty"`
}

// MemberError — ошибка добавления конкретного участника. Не фатальна:
// планировщик записывает исход и продолжает батч.
type MemberError struct {
	Reason Reason
	Err    error
}

func (e *MemberError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("member rejected: %s", e.Reason)
	}
	return fmt.Sprintf("member rejected (%s): %v", e.Reason, e.Err)
}

func (e *MemberError) Unwrap() error { return e.Err }

// RateLimitError несёт обязательную паузу, о которой сообщил сервер (FLOOD_WAIT).
// Планировщик превращает её в cooldown аккаунта и Failed(rate-limited)-исход.
type RateLimitError struct {
	Wait time.Duration
	Err  error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited for %s: %v", e.Wait, e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// DestinationError означает, что целевая группа стала недоступна
// (закрыта, удалена, отозваны права). Фатальна для остатка прогона:
// планировщик прекращает батчи и финализирует частичный отчёт.
type DestinationError struct {
	Err error
}

func (e *DestinationError) Error() string {
	return fmt.Sprintf("destination unavailable: %v", e.Err)
}

func (e *DestinationError) Unwrap() error { return e.Err }
