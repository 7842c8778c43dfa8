// Package clockx — абстракция времени для планировщика миграции.
// Все паузы между батчами и вычисления cooldown идут через интерфейс Clock,
// чтобы юнит-тесты могли подменить время фейком и не ждать реальных задержек.
// Системная реализация уважает time.Local (таймзона процесса задаётся в main
// из APP_TIMEZONE) и отмену контекста во время сна.
package clockx

import (
	"context"
	"time"
)

// Clock предоставляет текущее время и отменяемый сон.
// Sleep возвращает ошибку контекста, если ожидание было прервано.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// systemClock — боевая реализация поверх пакета time.
type systemClock struct{}

// System возвращает Clock поверх системных часов процесса.
func System() Clock {
	return systemClock{}
}

// Now возвращает текущее время в таймзоне процесса.
func (systemClock) Now() time.Time {
	return time.Now().In(time.Local)
}

// Sleep блокируется на d или до отмены ctx. Неположительная длительность — no-op.
func (systemClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer stopTimer(timer)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// stopTimer безопасно останавливает таймер и дренирует его канал, если тик уже произошёл.
func stopTimer(timer *time.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
}
