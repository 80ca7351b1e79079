package domain

import (
	"testing"
	"time"
)

func mustLoc(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		t.Fatalf("часовой пояс не загружен: %v", err)
	}
	return loc
}

func TestSubmissionDateBeforeBoundaryBelongsToPreviousDay(t *testing.T) {
	loc := mustLoc(t)
	at := time.Date(2025, 3, 10, 1, 59, 0, 0, loc)
	if got := SubmissionDate(at, loc); got != "2025-03-09" {
		t.Fatalf("запись в 01:59 должна относиться к предыдущему дню, получено %s", got)
	}
}

func TestSubmissionDateAfterBoundaryBelongsToSameDay(t *testing.T) {
	loc := mustLoc(t)
	at := time.Date(2025, 3, 10, 2, 0, 0, 0, loc)
	if got := SubmissionDate(at, loc); got != "2025-03-10" {
		t.Fatalf("запись в 02:00 должна относиться к тому же дню, получено %s", got)
	}
}

func TestTargetDateIsLogicalYesterday(t *testing.T) {
	loc := mustLoc(t)

	// Плановый запуск в 02:05: матчинг за только что закончившийся день.
	now := time.Date(2025, 3, 10, 2, 5, 0, 0, loc)
	if got := TargetDate(now, loc); got != "2025-03-09" {
		t.Fatalf("целевая дата в 02:05 10-го должна быть 2025-03-09, получено %s", got)
	}

	// До границы суток логический день ещё 9-е, значит цель — 8-е.
	now = time.Date(2025, 3, 10, 1, 30, 0, 0, loc)
	if got := TargetDate(now, loc); got != "2025-03-08" {
		t.Fatalf("целевая дата в 01:30 10-го должна быть 2025-03-08, получено %s", got)
	}
}

func TestPreviousDates(t *testing.T) {
	got, err := PreviousDates("2025-03-01", 3)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	want := []string{"2025-02-28", "2025-02-27", "2025-02-26"}
	if len(got) != len(want) {
		t.Fatalf("ожидалось %d дат, получено %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("дата %d: ожидалось %s, получено %s", i, want[i], got[i])
		}
	}
}

func TestPreviousDatesRejectsGarbage(t *testing.T) {
	if _, err := PreviousDates("10.03.2025", 1); err == nil {
		t.Fatal("ожидалась ошибка разбора даты")
	}
}
