package migrate

import "time"

// GroupInfo — снимок метаданных группы для отчёта.
type GroupInfo struct {
	Title       string `json:"title"`
	ID          int64  `json:"id"`
	Username    string `json:"username,omitempty"`
	MemberCount int    `json:"members_count"`
}

// Totals — агрегаты прогона. Attempted считает участников, дошедших до
// батч-обработки: added + would_add + сумма failed + skipped(already-member).
// Пропуски фильтра (боты, удалённые) учитываются в Skipped, но не в Attempted.
type Totals struct {
	Attempted int            `json:"attempted"`
	Added     int            `json:"added"`
	WouldAdd  int            `json:"would_add,omitempty"`
	Skipped   map[Reason]int `json:"skipped_by_reason,omitempty"`
	Failed    map[Reason]int `json:"failed_by_kind,omitempty"`
}

// SkippedTotal возвращает сумму пропусков по всем причинам.
func (t Totals) SkippedTotal() int {
	n := 0
	for _, v := range t.Skipped {
		n += v
	}
	return n
}

// FailedTotal возвращает сумму ошибок по всем видам.
func (t Totals) FailedTotal() int {
	n := 0
	for _, v := range t.Failed {
		n += v
	}
	return n
}

// Report — неизменяемый итог прогона миграции. Создаётся один раз в конце
// (в том числе при аварийном завершении — тогда Partial=true) и сохраняется
// в JSON- и текстовый артефакты.
type Report struct {
	StartedAt   time.Time      `json:"started_at"`
	FinishedAt  time.Time      `json:"finished_at"`
	Duration    time.Duration  `json:"-"`
	DurationSec float64        `json:"duration_seconds"`
	Partial     bool           `json:"partial,omitempty"`
	Source      GroupInfo      `json:"source_group"`
	Destination GroupInfo      `json:"target_group"`
	Totals      Totals         `json:"statistics"`
	Accounts    []AccountStats `json:"accounts,omitempty"`
	Outcomes    []Outcome      `json:"outcomes"`
}

// BuildReport агрегирует записанные исходы в отчёт. Метаданные групп
// (Source/Destination) заполняет вызывающий слой: планировщик про них не знает.
// Срез accounts включается только при мультиаккаунтном прогоне.
func BuildReport(start, end time.Time, outcomes []Outcome, accounts []AccountStats, partial bool) *Report {
	totals := Totals{
		Skipped: make(map[Reason]int),
		Failed:  make(map[Reason]int),
	}
	for _, o := range outcomes {
		switch o.Status {
		case StatusAdded:
			totals.Added++
			totals.Attempted++
		case StatusWouldAdd:
			totals.WouldAdd++
			totals.Attempted++
		case StatusFailed:
			totals.Failed[o.Reason]++
			totals.Attempted++
		case StatusSkipped:
			totals.Skipped[o.Reason]++
			if o.Reason == ReasonAlreadyMember {
				totals.Attempted++
			}
		}
	}

	if len(accounts) < 2 {
		accounts = nil
	}

	duration := end.Sub(start)
	return &Report{
		StartedAt:   start,
		FinishedAt:  end,
		Duration:    duration,
		DurationSec: duration.Seconds(),
		Partial:     partial,
		Totals:      totals,
		Accounts:    accounts,
		Outcomes:    outcomes,
	}
}
