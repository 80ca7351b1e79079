package domain

import (
	"context"
	"time"
)

// CohortRepo управляет когортами.
type CohortRepo interface {
	GetCohort(ctx context.Context, id string) (Cohort, error)
	ListActiveCohorts(ctx context.Context) ([]Cohort, error)
}

// ParticipantRepo возвращает участников когорты.
type ParticipantRepo interface {
	ListByCohort(ctx context.Context, cohortID string) ([]Participant, error)
}

// SubmissionRepo читает читательские записи.
type SubmissionRepo interface {
	// ListByDate возвращает все не-черновые записи за дату.
	ListByDate(ctx context.Context, cohortID, date string) ([]Submission, error)
	// ListApprovedByParticipants возвращает одобренные записи пачки участников.
	ListApprovedByParticipants(ctx context.Context, participantIDs []string) ([]Submission, error)
}

// CommitResult — исход фиксации результата матчинга.
type CommitResult string

const (
	// CommitCommitted — запись создана этим запуском.
	CommitCommitted CommitResult = "committed"
	// CommitSkipped — запись за дату уже существует, ничего не записано.
	CommitSkipped CommitResult = "skipped"
)

// MatchingStore — единственная точка записи в карту дневных результатов
// когорты. Фиксация идемпотентна: повторный вызов за ту же дату
// возвращает CommitSkipped, а не перезаписывает.
type MatchingStore interface {
	CommitEntry(ctx context.Context, cohortID, date string, entry MatchingEntry) (CommitResult, error)
	// ClearEntry удаляет запись за дату. Единственный санкционированный
	// путь перезаписи — административный перезапуск.
	ClearEntry(ctx context.Context, cohortID, date string) error
	GetEntries(ctx context.Context, cohortID string, dates []string) (map[string]MatchingEntry, error)
}

// MatchingRecord — денормализованная резервная запись результата
// для аудита и скриптов обратной загрузки.
type MatchingRecord struct {
	CohortID      string
	Date          string
	Entry         MatchingEntry
	TotalViewers  int
	ProviderCount int
	ConfirmedBy   string
	Errors        []string
	Warnings      []string
}

// AuditLog пишет резервные записи. Ошибка записи не откатывает фиксацию.
type AuditLog interface {
	SaveResult(ctx context.Context, rec MatchingRecord) error
}

// ClusterRequest — запрос предложения кластеров у классификатора.
type ClusterRequest struct {
	Submissions      []DailySubmission
	Date             string
	RecentCategories []string
	Plan             ClusterPlan
}

// Clusterer — узкий порт к внешнему классификатору. Движок не делает
// анализа текста сам и не повторяет вызов при ошибке проверки.
type Clusterer interface {
	Propose(ctx context.Context, req ClusterRequest) ([]Cluster, error)
}

// Strategy — взаимозаменяемая стратегия дневного матчинга.
// Возвращает результат и нефатальные предупреждения.
type Strategy interface {
	Version() MatchingVersion
	Match(ctx context.Context, input MatchInput) (MatchingEntry, []string, error)
}

// Notifier сигнализирует внешнему сервису доставки о готовности матчинга.
// Доставка, повтор и раздача пользователям — забота той стороны.
type Notifier interface {
	MatchingReady(ctx context.Context, cohortID, date string) error
}

// Cache используется для простых TTL-хранилищ.
type Cache interface {
	Once(ctx context.Context, key string, ttl time.Duration, fn func() error) error
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
}
