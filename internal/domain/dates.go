package domain

import (
	"fmt"
	"time"
)

// DateLayout — формат дат матчинга (YYYY-MM-DD).
const DateLayout = "2006-01-02"

// dayBoundaryHour — граница суток сдвинута на 02:00 местного времени:
// запись, сделанная между 00:00 и 01:59, относится к предыдущему дню.
const dayBoundaryHour = 2

// SubmissionDate возвращает логическую дату записи с учётом границы 02:00.
func SubmissionDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Add(-dayBoundaryHour * time.Hour).Format(DateLayout)
}

// TargetDate возвращает дату, за которую идёт матчинг: вчерашний
// логический день относительно момента запуска.
func TargetDate(now time.Time, loc *time.Location) string {
	return now.In(loc).Add(-dayBoundaryHour * time.Hour).AddDate(0, 0, -1).Format(DateLayout)
}

// PreviousDates возвращает n дат перед date, от свежей к старой.
func PreviousDates(date string, n int) ([]string, error) {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return nil, fmt.Errorf("разбор даты %q: %w", date, err)
	}
	out := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, t.AddDate(0, 0, -i).Format(DateLayout))
	}
	return out, nil
}
