package matching

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"bookclub-matching/internal/domain"
	"bookclub-matching/internal/infra/metrics"
	"bookclub-matching/internal/usecase/roster"
	"bookclub-matching/internal/usecase/validate"
)

const notifyTimeout = 15 * time.Second

// RosterLoader собирает вход одного запуска матчинга.
type RosterLoader interface {
	Load(ctx context.Context, cohortID, date string) (roster.LoadResult, error)
}

var _ RosterLoader = (*roster.Loader)(nil)

// Service — оркестратор дневного матчинга: загрузка, стратегия,
// проверка, фиксация, уведомление.
type Service struct {
	cohorts    domain.CohortRepo
	loader     RosterLoader
	strategies map[domain.MatchingVersion]domain.Strategy
	store      domain.MatchingStore
	audit      domain.AuditLog
	notifier   domain.Notifier
	log        zerolog.Logger
}

// NewService создаёт оркестратор.
func NewService(
	cohorts domain.CohortRepo,
	loader RosterLoader,
	strategies []domain.Strategy,
	store domain.MatchingStore,
	audit domain.AuditLog,
	notifier domain.Notifier,
	logger zerolog.Logger,
) *Service {
	byVersion := make(map[domain.MatchingVersion]domain.Strategy, len(strategies))
	for _, s := range strategies {
		byVersion[s.Version()] = s
	}
	return &Service{
		cohorts:    cohorts,
		loader:     loader,
		strategies: byVersion,
		store:      store,
		audit:      audit,
		notifier:   notifier,
		log:        logger,
	}
}

// RunOptions — параметры одного запуска.
type RunOptions struct {
	// Force удаляет существующую запись перед запуском. Единственный
	// санкционированный путь перезаписи зафиксированного результата.
	Force bool
	// ConfirmedBy — кто инициировал запуск (для резервной записи).
	ConfirmedBy string
}

// RunReport — итог одного запуска для оператора.
type RunReport struct {
	CohortID string                 `json:"cohortId"`
	Date     string                 `json:"date"`
	Version  domain.MatchingVersion `json:"matchingVersion"`
	Result   domain.CommitResult    `json:"result"`
	Warnings []string               `json:"warnings,omitempty"`
}

// Run выполняет полный конвейер матчинга для одной когорты и даты.
func (s *Service) Run(ctx context.Context, cohortID, date string, opts RunOptions) (RunReport, error) {
	start := time.Now()
	report, err := s.run(ctx, cohortID, date, opts)
	status := "committed"
	switch {
	case err != nil:
		status = "failed"
	case report.Result == domain.CommitSkipped:
		status = "skipped"
	}
	metrics.ObserveMatchingRun(cohortID, string(report.Version), status, start)
	return report, err
}

func (s *Service) run(ctx context.Context, cohortID, date string, opts RunOptions) (RunReport, error) {
	report := RunReport{CohortID: cohortID, Date: date}

	cohort, err := s.cohorts.GetCohort(ctx, cohortID)
	if err != nil {
		return report, fmt.Errorf("когорта %s: %w", cohortID, err)
	}
	if !cohort.IsActive {
		return report, fmt.Errorf("когорта %s неактивна", cohortID)
	}
	if cohort.EndDate != "" && date > cohort.EndDate {
		return report, fmt.Errorf("когорта %s завершилась %s, матчинг за %s не проводится", cohortID, cohort.EndDate, date)
	}
	strategy, err := s.pickStrategy(cohort)
	if err != nil {
		return report, err
	}
	report.Version = strategy.Version()

	if opts.Force {
		if err := s.store.ClearEntry(ctx, cohortID, date); err != nil {
			return report, fmt.Errorf("очистка записи за %s: %w", date, err)
		}
		s.log.Warn().Str("cohort_id", cohortID).Str("date", date).Str("confirmed_by", opts.ConfirmedBy).
			Msg("существующая запись удалена для перезапуска")
	}

	entry, res, err := s.buildEntry(ctx, cohortID, date, strategy)
	if err != nil {
		return report, err
	}
	report.Warnings = res.Warnings

	committed, err := s.store.CommitEntry(ctx, cohortID, date, entry)
	if err != nil {
		return report, fmt.Errorf("фиксация результата: %w", err)
	}
	report.Result = committed
	if committed == domain.CommitSkipped {
		s.log.Info().Str("cohort_id", cohortID).Str("date", date).
			Msg("запись за дату уже существует, запуск пропущен")
		return report, nil
	}

	s.saveAudit(ctx, domain.MatchingRecord{
		CohortID:      cohortID,
		Date:          date,
		Entry:         entry,
		TotalViewers:  res.TotalViewers,
		ProviderCount: res.ProviderCount,
		ConfirmedBy:   opts.ConfirmedBy,
		Warnings:      res.Warnings,
	})
	s.notifyAsync(cohortID, date)

	s.log.Info().Str("cohort_id", cohortID).Str("date", date).
		Str("version", string(report.Version)).
		Int("viewers", res.TotalViewers).
		Int("providers", res.ProviderCount).
		Int("warnings", len(res.Warnings)).
		Msg("матчинг зафиксирован")

	return report, nil
}

// Preview прогоняет конвейер без фиксации: загрузка, стратегия, проверка.
func (s *Service) Preview(ctx context.Context, cohortID, date string) (domain.MatchingEntry, []string, error) {
	cohort, err := s.cohorts.GetCohort(ctx, cohortID)
	if err != nil {
		return domain.MatchingEntry{}, nil, fmt.Errorf("когорта %s: %w", cohortID, err)
	}
	strategy, err := s.pickStrategy(cohort)
	if err != nil {
		return domain.MatchingEntry{}, nil, err
	}
	entry, res, err := s.buildEntry(ctx, cohortID, date, strategy)
	if err != nil {
		return domain.MatchingEntry{}, nil, err
	}
	return entry, res.Warnings, nil
}

type buildResult struct {
	Warnings      []string
	TotalViewers  int
	ProviderCount int
}

func (s *Service) buildEntry(ctx context.Context, cohortID, date string, strategy domain.Strategy) (domain.MatchingEntry, buildResult, error) {
	loaded, err := s.loader.Load(ctx, cohortID, date)
	if err != nil {
		return domain.MatchingEntry{}, buildResult{}, err
	}

	input := domain.MatchInput{
		CohortID:         cohortID,
		Date:             date,
		Roster:           loaded.Roster,
		Submissions:      loaded.Submissions,
		RecentCategories: loaded.RecentCategories,
	}
	entry, warnings, err := strategy.Match(ctx, input)
	if err != nil {
		return domain.MatchingEntry{}, buildResult{}, fmt.Errorf("стратегия %s: %w", strategy.Version(), err)
	}

	providerIDs := participantIDs(providersForValidation(strategy.Version(), loaded))
	viewerIDs := participantIDs(loaded.Roster.Viewers)
	res := validate.Entry(entry, providerIDs, viewerIDs)
	warnings = append(warnings, res.Warnings...)
	if err := res.Err(); err != nil {
		metrics.MatchingValidationViolations.WithLabelValues(cohortID, string(strategy.Version())).Add(float64(len(res.Errors)))
		return domain.MatchingEntry{}, buildResult{}, err
	}
	for range warnings {
		metrics.MatchingWarningsTotal.WithLabelValues(cohortID, string(strategy.Version())).Inc()
	}
	for _, w := range warnings {
		s.log.Warn().Str("cohort_id", cohortID).Str("date", date).Msg(w)
	}

	return entry, buildResult{
		Warnings:      warnings,
		TotalViewers:  len(loaded.Roster.Viewers),
		ProviderCount: len(providerIDs),
	}, nil
}

// providersForValidation возвращает ожидаемое множество поставщиков:
// для кластерной версии это вход кластеризации, а не весь ростер,
// потому что госты и неодобренные записи в кластеры не попадают.
func providersForValidation(version domain.MatchingVersion, loaded roster.LoadResult) []domain.Participant {
	if version != domain.MatchingVersionCluster {
		return loaded.Roster.Providers
	}
	out := make([]domain.Participant, 0, len(loaded.Submissions))
	for _, sub := range loaded.Submissions {
		out = append(out, domain.Participant{ID: sub.ParticipantID, Name: sub.ParticipantName})
	}
	return out
}

func participantIDs(members []domain.Participant) []string {
	out := make([]string, 0, len(members))
	for _, m := range members {
		out = append(out, m.ID)
	}
	return out
}

func (s *Service) pickStrategy(cohort domain.Cohort) (domain.Strategy, error) {
	version := cohort.MatchingVersion
	if version == "" {
		version = domain.MatchingVersionRandom
	}
	strategy, ok := s.strategies[version]
	if !ok {
		return nil, fmt.Errorf("неизвестная версия матчинга %q у когорты %s", version, cohort.ID)
	}
	return strategy, nil
}

// saveAudit пишет резервную запись. Ошибка записи не откатывает
// уже зафиксированный результат, только логируется.
func (s *Service) saveAudit(ctx context.Context, rec domain.MatchingRecord) {
	if s.audit == nil {
		return
	}
	if err := s.audit.SaveResult(ctx, rec); err != nil {
		s.log.Error().Err(err).Str("cohort_id", rec.CohortID).Str("date", rec.Date).
			Msg("резервная запись не сохранена")
	}
}

// notifyAsync отправляет сигнал готовности без ожидания: доставка —
// забота внешнего сервиса, её отказ не влияет на результат запуска.
func (s *Service) notifyAsync(cohortID, date string) {
	if s.notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := s.notifier.MatchingReady(ctx, cohortID, date); err != nil {
			s.log.Error().Err(err).Str("cohort_id", cohortID).Str("date", date).
				Msg("уведомление о готовности не доставлено")
		}
	}()
}

// Summary — итог пакетного запуска по всем активным когортам.
type Summary struct {
	Date      string            `json:"date"`
	Committed int               `json:"committed"`
	Skipped   int               `json:"skipped"`
	Failed    int               `json:"failed"`
	Errors    map[string]string `json:"errors,omitempty"`
}

// RunAll прогоняет матчинг по всем активным когортам. Ошибка одной
// когорты не прерывает остальные: каждая изолирована.
func (s *Service) RunAll(ctx context.Context, date string) (Summary, error) {
	cohorts, err := s.cohorts.ListActiveCohorts(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("список активных когорт: %w", err)
	}

	summary := Summary{Date: date, Errors: make(map[string]string)}
	for _, cohort := range cohorts {
		report, err := s.Run(ctx, cohort.ID, date, RunOptions{})
		switch {
		case errors.Is(err, domain.ErrNoProviders):
			// Когорта без записей за дату — штатная ситуация, не сбой.
			s.log.Info().Str("cohort_id", cohort.ID).Str("date", date).
				Msg("нет поставщиков за дату, когорта пропущена")
			summary.Skipped++
		case err != nil:
			s.log.Error().Err(err).Str("cohort_id", cohort.ID).Str("date", date).
				Msg("матчинг когорты завершился ошибкой")
			summary.Failed++
			summary.Errors[cohort.ID] = err.Error()
		case report.Result == domain.CommitSkipped:
			summary.Skipped++
		default:
			summary.Committed++
		}
	}
	if len(summary.Errors) == 0 {
		summary.Errors = nil
	}
	return summary, nil
}
