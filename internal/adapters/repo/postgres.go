package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bookclub-matching/internal/domain"
	"bookclub-matching/internal/infra/metrics"
)

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.CohortRepo      = (*Postgres)(nil)
	_ domain.ParticipantRepo = (*Postgres)(nil)
	_ domain.SubmissionRepo  = (*Postgres)(nil)
	_ domain.MatchingStore   = (*Postgres)(nil)
	_ domain.AuditLog        = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtxWithParent(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return context.WithTimeout(context.Background(), 5*time.Second)
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// GetCohort реализует domain.CohortRepo.
func (p *Postgres) GetCohort(ctx context.Context, id string) (domain.Cohort, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var c domain.Cohort
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT id, name, is_active, matching_version, COALESCE(end_date, ''), COALESCE(profile_unlock_date, '')
FROM cohorts
WHERE id = $1
`, id).Scan(&c.ID, &c.Name, &c.IsActive, &c.MatchingVersion, &c.EndDate, &c.ProfileUnlockDate)
	metrics.ObserveNetworkRequest("postgres", "cohorts_get", "cohorts", start, err)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Cohort{}, domain.ErrCohortNotFound
		}
		return domain.Cohort{}, err
	}
	return c, nil
}

// ListActiveCohorts возвращает когорты, для которых идёт ежедневный матчинг.
func (p *Postgres) ListActiveCohorts(ctx context.Context) ([]domain.Cohort, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, name, is_active, matching_version, COALESCE(end_date, ''), COALESCE(profile_unlock_date, '')
FROM cohorts
WHERE is_active
ORDER BY id
`)
	metrics.ObserveNetworkRequest("postgres", "cohorts_list_active", "cohorts", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Cohort
	for rows.Next() {
		var c domain.Cohort
		if err := rows.Scan(&c.ID, &c.Name, &c.IsActive, &c.MatchingVersion, &c.EndDate, &c.ProfileUnlockDate); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListByCohort реализует domain.ParticipantRepo.
func (p *Postgres) ListByCohort(ctx context.Context, cohortID string) ([]domain.Participant, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, cohort_id, name, COALESCE(gender, ''), COALESCE(participation_code, ''), is_super_admin, is_administrator, is_ghost
FROM participants
WHERE cohort_id = $1
ORDER BY id
`, cohortID)
	metrics.ObserveNetworkRequest("postgres", "participants_list", "participants", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Participant
	for rows.Next() {
		var m domain.Participant
		if err := rows.Scan(&m.ID, &m.CohortID, &m.Name, &m.Gender, &m.ParticipationCode, &m.IsSuperAdmin, &m.IsAdministrator, &m.IsGhost); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListByDate возвращает все не-черновые записи когорты за дату.
func (p *Postgres) ListByDate(ctx context.Context, cohortID, date string) ([]domain.Submission, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, participant_id, cohort_id, COALESCE(participation_code, ''), submission_date, status,
       COALESCE(book_title, ''), COALESCE(book_author, ''), COALESCE(review, ''),
       COALESCE(daily_question, ''), COALESCE(daily_answer, ''), submitted_at
FROM reading_submissions
WHERE cohort_id = $1 AND submission_date = $2 AND status <> 'draft'
ORDER BY id
`, cohortID, date)
	metrics.ObserveNetworkRequest("postgres", "submissions_list_by_date", "reading_submissions", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSubmissions(rows)
}

// ListApprovedByParticipants возвращает одобренные записи пачки участников.
func (p *Postgres) ListApprovedByParticipants(ctx context.Context, participantIDs []string) ([]domain.Submission, error) {
	if len(participantIDs) == 0 {
		return nil, nil
	}
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, participant_id, cohort_id, COALESCE(participation_code, ''), submission_date, status,
       COALESCE(book_title, ''), COALESCE(book_author, ''), COALESCE(review, ''),
       COALESCE(daily_question, ''), COALESCE(daily_answer, ''), submitted_at
FROM reading_submissions
WHERE participant_id = ANY($1) AND status = 'approved'
ORDER BY id
`, participantIDs)
	metrics.ObserveNetworkRequest("postgres", "submissions_list_approved", "reading_submissions", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSubmissions(rows)
}

func scanSubmissions(rows pgx.Rows) ([]domain.Submission, error) {
	var out []domain.Submission
	for rows.Next() {
		var s domain.Submission
		if err := rows.Scan(&s.ID, &s.ParticipantID, &s.CohortID, &s.ParticipationCode, &s.SubmissionDate, &s.Status,
			&s.BookTitle, &s.BookAuthor, &s.Review, &s.DailyQuestion, &s.DailyAnswer, &s.SubmittedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// CommitEntry фиксирует результат матчинга ровно один раз на
// (когорта, дата). Существование проверяется в той же транзакции под
// блокировкой строки, поэтому гонка планового и ручного запусков
// заканчивается одним committed и одним skipped.
func (p *Postgres) CommitEntry(ctx context.Context, cohortID, date string, entry domain.MatchingEntry) (domain.CommitResult, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	metrics.ObserveNetworkRequest("postgres", "begin_tx", "cohorts", start, err)
	if err != nil {
		return "", err
	}
	defer tx.Rollback(ctx)

	var existing []byte
	start = time.Now()
	err = tx.QueryRow(ctx, `
SELECT daily_featured -> $2
FROM cohorts
WHERE id = $1
FOR UPDATE
`, cohortID, date).Scan(&existing)
	metrics.ObserveNetworkRequest("postgres", "daily_featured_check", "cohorts", start, err)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrCohortNotFound
		}
		return "", err
	}

	if len(existing) > 0 {
		var current domain.MatchingEntry
		if err := json.Unmarshal(existing, &current); err != nil {
			return "", fmt.Errorf("разбор существующей записи: %w", err)
		}
		if len(current.Assignments) > 0 {
			return domain.CommitSkipped, nil
		}
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("сериализация записи: %w", err)
	}

	start = time.Now()
	_, err = tx.Exec(ctx, `
UPDATE cohorts
SET daily_featured = jsonb_set(COALESCE(daily_featured, '{}'::jsonb), ARRAY[$2], $3::jsonb)
WHERE id = $1
`, cohortID, date, payload)
	metrics.ObserveNetworkRequest("postgres", "daily_featured_write", "cohorts", start, err)
	if err != nil {
		return "", err
	}

	start = time.Now()
	err = tx.Commit(ctx)
	metrics.ObserveNetworkRequest("postgres", "commit", "cohorts", start, err)
	if err != nil {
		return "", err
	}
	return domain.CommitCommitted, nil
}

// ClearEntry удаляет запись за дату перед административным перезапуском.
func (p *Postgres) ClearEntry(ctx context.Context, cohortID, date string) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
UPDATE cohorts
SET daily_featured = COALESCE(daily_featured, '{}'::jsonb) - $2
WHERE id = $1
`, cohortID, date)
	metrics.ObserveNetworkRequest("postgres", "daily_featured_clear", "cohorts", start, err)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCohortNotFound
	}
	return nil
}

// GetEntries возвращает записи когорты за указанные даты.
func (p *Postgres) GetEntries(ctx context.Context, cohortID string, dates []string) (map[string]domain.MatchingEntry, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var raw []byte
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT COALESCE(daily_featured, '{}'::jsonb)
FROM cohorts
WHERE id = $1
`, cohortID).Scan(&raw)
	metrics.ObserveNetworkRequest("postgres", "daily_featured_get", "cohorts", start, err)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCohortNotFound
		}
		return nil, err
	}

	all := make(map[string]domain.MatchingEntry)
	if err := json.Unmarshal(raw, &all); err != nil {
		return nil, fmt.Errorf("разбор карты результатов: %w", err)
	}

	out := make(map[string]domain.MatchingEntry, len(dates))
	for _, date := range dates {
		if entry, ok := all[date]; ok {
			out[date] = entry
		}
	}
	return out, nil
}

// SaveResult пишет денормализованную резервную запись результата.
// Запись перезаписываемая: повторный прогон за ту же дату обновляет её.
func (p *Postgres) SaveResult(ctx context.Context, rec domain.MatchingRecord) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	entryJSON, err := json.Marshal(rec.Entry)
	if err != nil {
		return fmt.Errorf("сериализация записи: %w", err)
	}
	errorsJSON, err := json.Marshal(rec.Errors)
	if err != nil {
		return fmt.Errorf("сериализация ошибок: %w", err)
	}
	warningsJSON, err := json.Marshal(rec.Warnings)
	if err != nil {
		return fmt.Errorf("сериализация предупреждений: %w", err)
	}

	key := fmt.Sprintf("%s-%s", rec.CohortID, rec.Date)
	start := time.Now()
	_, err = p.pool.Exec(ctx, `
INSERT INTO matching_results (key, cohort_id, date, entry, total_viewers, provider_count, confirmed_by, errors, warnings, created_at)
VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, now())
ON CONFLICT (key) DO UPDATE SET
  entry = EXCLUDED.entry,
  total_viewers = EXCLUDED.total_viewers,
  provider_count = EXCLUDED.provider_count,
  confirmed_by = EXCLUDED.confirmed_by,
  errors = EXCLUDED.errors,
  warnings = EXCLUDED.warnings,
  created_at = now()
`, key, rec.CohortID, rec.Date, entryJSON, rec.TotalViewers, rec.ProviderCount, rec.ConfirmedBy, errorsJSON, warningsJSON)
	metrics.ObserveNetworkRequest("postgres", "matching_results_save", "matching_results", start, err)
	return err
}
