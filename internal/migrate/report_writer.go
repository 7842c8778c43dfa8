package migrate

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"telegram-migrator/internal/infra/storage"

	"github.com/go-faster/errors"
)

// Форматы имён артефактов отчёта. Таймстемп берётся из момента завершения
// прогона, так что повторные запуски никогда не перетирают друг друга.
const (
	reportTimestampLayout = "20060102_150405"
	reportDateLayout      = "2006-01-02 15:04:05"
)

// Write сохраняет отчёт в каталог dir двумя артефактами: машинным JSON и
// человекочитаемым текстом. Возвращает пути записанных файлов.
// Запись атомарна: частично записанных отчётов на диске не остаётся.
func (r *Report) Write(dir string) (jsonPath, textPath string, err error) {
	stamp := r.FinishedAt.Format(reportTimestampLayout)
	jsonPath = filepath.Join(dir, fmt.Sprintf("report_%s.json", stamp))
	textPath = filepath.Join(dir, fmt.Sprintf("report_%s.txt", stamp))

	data, err := json.MarshalIndent(r, "", "    ")
	if err != nil {
		return "", "", errors.Wrap(err, "marshal report")
	}
	if err = storage.AtomicWriteFile(jsonPath, data); err != nil {
		return "", "", errors.Wrap(err, "write json report")
	}
	if err = storage.AtomicWriteFile(textPath, []byte(r.Text())); err != nil {
		return "", "", errors.Wrap(err, "write text report")
	}
	return jsonPath, textPath, nil
}

// Text рендерит человекочитаемую версию отчёта.
func (r *Report) Text() string {
	var b strings.Builder

	b.WriteString("=== Telegram Group Migration Report ===\n\n")

	b.WriteString("Migration Information:\n")
	fmt.Fprintf(&b, "Date: %s\n", r.StartedAt.Format(reportDateLayout))
	fmt.Fprintf(&b, "Duration: %s\n", formatDuration(r.Duration))
	if r.Partial {
		b.WriteString("Run aborted early: report covers the completed portion only\n")
	}
	b.WriteString("\n")

	writeGroup(&b, "Source Group", r.Source)
	writeGroup(&b, "Target Group", r.Destination)

	b.WriteString("Statistics:\n")
	fmt.Fprintf(&b, "- Members attempted: %d\n", r.Totals.Attempted)
	if r.Totals.WouldAdd > 0 {
		fmt.Fprintf(&b, "- Would add (dry run): %d\n", r.Totals.WouldAdd)
	}
	fmt.Fprintf(&b, "- Successfully added: %d\n", r.Totals.Added)
	fmt.Fprintf(&b, "- Failed to add: %d\n", r.Totals.FailedTotal())
	fmt.Fprintf(&b, "- Skipped: %d\n", r.Totals.SkippedTotal())
	if r.Totals.Attempted > 0 {
		rate := float64(r.Totals.Added+r.Totals.WouldAdd) / float64(r.Totals.Attempted) * 100
		fmt.Fprintf(&b, "- Success rate: %.2f%%\n", rate)
	}
	b.WriteString("\n")

	writeBreakdown(&b, "Skipped Breakdown", r.Totals.Skipped)
	writeBreakdown(&b, "Failures Breakdown", r.Totals.Failed)

	var failed []Outcome
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed {
			failed = append(failed, o)
		}
	}
	if len(failed) > 0 {
		b.WriteString("Failed Members:\n")
		for _, o := range failed {
			fmt.Fprintf(&b, "- %s (id %d): %s\n", o.Member.DisplayName(), o.Member.ID, o.Error)
		}
		b.WriteString("\n")
	}

	if len(r.Accounts) > 0 {
		b.WriteString("Per-Account Breakdown:\n")
		for _, a := range r.Accounts {
			fmt.Fprintf(&b, "- %s: attempted %d, added %d, failed %d\n",
				a.Name, a.Attempted, a.Added, a.Failed)
		}
		b.WriteString("\n")
	}

	return b.String()
}

// writeGroup печатает секцию метаданных группы в стиле исходных отчётов.
func writeGroup(b *strings.Builder, header string, g GroupInfo) {
	b.WriteString(header + ":\n")
	fmt.Fprintf(b, "- Title: %s\n", g.Title)
	fmt.Fprintf(b, "- ID: %d\n", g.ID)
	if g.Username != "" {
		fmt.Fprintf(b, "- Username: @%s\n", g.Username)
	}
	fmt.Fprintf(b, "- Members: %d\n\n", g.MemberCount)
}

// writeBreakdown печатает разбивку счётчиков по причинам в стабильном порядке.
func writeBreakdown(b *strings.Builder, header string, counts map[Reason]int) {
	if len(counts) == 0 {
		return
	}
	reasons := make([]string, 0, len(counts))
	for r := range counts {
		reasons = append(reasons, string(r))
	}
	sort.Strings(reasons)

	b.WriteString(header + ":\n")
	for _, r := range reasons {
		fmt.Fprintf(b, "- %s: %d\n", r, counts[Reason(r)])
	}
	b.WriteString("\n")
}

// formatDuration приводит длительность к виду "3m 27s".
func formatDuration(d time.Duration) string {
	total := int(d.Seconds())
	return fmt.Sprintf("%dm %ds", total/60, total%60)
}
