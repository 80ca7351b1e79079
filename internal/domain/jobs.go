package domain

import (
	"context"
	"time"
)

// MatchingJobCause описывает источник запроса на матчинг.
type MatchingJobCause string

const (
	// MatchingCauseManual — запуск из админки.
	MatchingCauseManual MatchingJobCause = "manual"
	// MatchingCauseScheduled — плановый дневной запуск.
	MatchingCauseScheduled MatchingJobCause = "scheduled"
	// MatchingCauseBackfill — скрипт обратной загрузки.
	MatchingCauseBackfill MatchingJobCause = "backfill"
)

// MatchingJob — задача на запуск матчинга одной когорты за одну дату.
type MatchingJob struct {
	ID          string           `json:"job_id,omitempty"`
	CohortID    string           `json:"cohort_id"`
	Date        string           `json:"date"`
	Force       bool             `json:"force,omitempty"`
	RequestedAt time.Time        `json:"requested_at"`
	Cause       MatchingJobCause `json:"cause"`
}

// MatchingQueue описывает очередь задач на матчинг.
type MatchingQueue interface {
	Enqueue(ctx context.Context, job MatchingJob) error
	// Pop блокирующе читает следующую задачу.
	Pop(ctx context.Context) (MatchingJob, error)
}
