// Package debug — вспомогательные утилиты для отладки мигратора.
// Позволяет быстро просматривать промежуточные структуры (участники, исходы)
// в консоли и писать структурные записи в общий лог только при активном DEBUG.
// Пакет не влияет на бизнес-логику и в проде молчит.
package debug

import (
	"telegram-migrator/internal/infra/logger"
	"telegram-migrator/internal/infra/pr"
	"telegram-migrator/internal/migrate"

	"go.uber.org/zap"
)

// DEBUG — глобальный переключатель режима отладки. Когда false, все функции
// пакета молчат. Включается вручную в отладочных сборках.
var DEBUG = false

// DumpMembers pretty-печатает первые limit участников выборки.
func DumpMembers(members []migrate.Member, limit int) {
	if !DEBUG {
		return
	}
	if limit > 0 && len(members) > limit {
		members = members[:limit]
	}
	pr.PP(members)
}

// DumpOutcome печатает один исход компактной строкой.
func DumpOutcome(o migrate.Outcome) {
	if !DEBUG {
		return
	}
	pr.Printf("[debug] %s %s (%d) -> %s %s\n",
		o.Status, o.Member.DisplayName(), o.Member.ID, o.Reason, o.Error)
}

// Debug пишет запись уровня Debug в общий лог только при активном DEBUG.
func Debug(msg string, fields ...zap.Field) {
	if DEBUG {
		logger.Logger().Debug(msg, fields...)
	}
}
