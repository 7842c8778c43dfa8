package migrate

import (
	"context"
	"time"
)

// Inviter — способность аккаунта добавить участника в целевую группу.
// Реализация обязана возвращать ошибки только из закрытого словаря пакета:
// *MemberError, *RateLimitError, *DestinationError либо ошибку контекста.
type Inviter interface {
	Invite(ctx context.Context, m Member) error
}

// Account — состояние одного авторизованного аккаунта внутри прогона.
// Мутируется только планировщиком и только между попытками добавления,
// поэтому блокировки не нужны (см. последовательную модель прогона).
type Account struct {
	Name    string
	Inviter Inviter

	cooldownUntil time.Time
	added         int
	failed        int
}

// SetCooldown запрещает аккаунту попытки до момента until.
func (a *Account) SetCooldown(until time.Time) {
	a.cooldownUntil = until
}

// CooldownUntil возвращает момент, до которого аккаунт заморожен.
// Нулевое время означает отсутствие cooldown.
func (a *Account) CooldownUntil() time.Time {
	return a.cooldownUntil
}

// throttled сообщает, находится ли аккаунт в cooldown на момент now.
func (a *Account) throttled(now time.Time) bool {
	return a.cooldownUntil.After(now)
}

// AccountStats — срез счётчиков аккаунта для отчёта.
type AccountStats struct {
	Name      string `json:"name"`
	Attempted int    `json:"attempted"`
	Added     int    `json:"added"`
	Failed    int    `json:"failed"`
}

// Pool — упорядоченный набор аккаунтов прогона. Выбор аккаунта — чистая
// функция от текущего времени, что позволяет тестировать ротацию без сна.
type Pool struct {
	accounts       []*Account
	defaultBackoff time.Duration
}

// NewPool собирает пул. defaultBackoff используется как ограниченное ожидание,
// когда все аккаунты заморожены, но пригодной паузы вычислить не удалось.
func NewPool(accounts []*Account, defaultBackoff time.Duration) *Pool {
	return &Pool{accounts: accounts, defaultBackoff: defaultBackoff}
}

// Size возвращает число аккаунтов в пуле.
func (p *Pool) Size() int { return len(p.accounts) }

// Pick выбирает аккаунт для очередного батча.
// Среди незамороженных предпочтение отдаётся тому, чей cooldown истёк раньше
// всех (наименее «горячему»). Если заморожены все — возвращается аккаунт с
// ближайшим истечением и положительная пауза, которую нужно выждать.
// Вырожденный случай (пауза не вычисляется) деградирует к defaultBackoff,
// а не к ошибке: прогон не должен падать из-за исчерпания пула.
func (p *Pool) Pick(now time.Time) (*Account, time.Duration) {
	if len(p.accounts) == 0 {
		return nil, 0
	}

	var best *Account
	for _, a := range p.accounts {
		if a.throttled(now) {
			continue
		}
		if best == nil || a.cooldownUntil.Before(best.cooldownUntil) {
			best = a
		}
	}
	if best != nil {
		return best, 0
	}

	// Все в cooldown: ждём того, кто освободится раньше всех.
	soonest := p.accounts[0]
	for _, a := range p.accounts[1:] {
		if a.cooldownUntil.Before(soonest.cooldownUntil) {
			soonest = a
		}
	}
	wait := soonest.cooldownUntil.Sub(now)
	if wait <= 0 {
		wait = p.defaultBackoff
	}
	return soonest, wait
}

// Stats возвращает счётчики по каждому аккаунту в порядке пула.
func (p *Pool) Stats() []AccountStats {
	stats := make([]AccountStats, 0, len(p.accounts))
	for _, a := range p.accounts {
		stats = append(stats, AccountStats{
			Name:      a.Name,
			Attempted: a.added + a.failed,
			Added:     a.added,
			Failed:    a.failed,
		})
	}
	return stats
}
