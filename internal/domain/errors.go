package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoProviders возвращается, когда за целевую дату нет ни одной
// подходящей записи. Запуск прерывается без автоматического повтора.
var ErrNoProviders = errors.New("нет поставщиков профилей за целевую дату")

// ErrNoViewers возвращается, когда в когорте не осталось зрителей.
var ErrNoViewers = errors.New("в когорте нет зрителей")

// ErrCohortNotFound возвращается при обращении к неизвестной когорте.
var ErrCohortNotFound = errors.New("когорта не найдена")

// ValidationError агрегирует все нарушения проверки результата матчинга,
// чтобы оператор видел полную картину за один проход.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "проверка матчинга не пройдена: %d нарушений", len(e.Violations))
	for i, v := range e.Violations {
		fmt.Fprintf(&b, "\n  %d. %s", i+1, v)
	}
	return b.String()
}
