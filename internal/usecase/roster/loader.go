package roster

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"bookclub-matching/internal/domain"
)

const (
	// countBatchSize — сколько участников уходит в один запрос истории.
	countBatchSize = 25
	// countConcurrency — сколько таких запросов летит одновременно.
	countConcurrency = 5
	// categoryWindowDays — за сколько дней собираются категории кластеров.
	categoryWindowDays = 3
)

// Loader собирает всё, что нужно одному запуску матчинга: ростер,
// дневные записи для кластеризации и историю недавних показов.
type Loader struct {
	participants domain.ParticipantRepo
	submissions  domain.SubmissionRepo
	store        domain.MatchingStore
	log          zerolog.Logger
	// historyDays — окно защиты от повторов (1 в проде, до 3 при перезапусках).
	historyDays int
}

// NewLoader создаёт загрузчик.
func NewLoader(participants domain.ParticipantRepo, submissions domain.SubmissionRepo, store domain.MatchingStore, logger zerolog.Logger, historyDays int) *Loader {
	if historyDays < 1 {
		historyDays = 1
	}
	if historyDays > categoryWindowDays {
		historyDays = categoryWindowDays
	}
	return &Loader{
		participants: participants,
		submissions:  submissions,
		store:        store,
		log:          logger,
		historyDays:  historyDays,
	}
}

// LoadResult — вход стратегии, собранный загрузчиком.
type LoadResult struct {
	Roster           domain.Roster
	Submissions      []domain.DailySubmission
	RecentCategories []string
}

// Load собирает ростер и записи когорты за целевую дату.
func (l *Loader) Load(ctx context.Context, cohortID, date string) (LoadResult, error) {
	members, err := l.participants.ListByCohort(ctx, cohortID)
	if err != nil {
		return LoadResult{}, fmt.Errorf("загрузка участников: %w", err)
	}

	todays, err := l.submissions.ListByDate(ctx, cohortID, date)
	if err != nil {
		return LoadResult{}, fmt.Errorf("загрузка записей за %s: %w", date, err)
	}

	// Одна запись на участника: при нескольких берётся первая.
	submittedBy := make(map[string]domain.Submission, len(todays))
	for _, sub := range todays {
		if _, ok := submittedBy[sub.ParticipantID]; !ok {
			submittedBy[sub.ParticipantID] = sub
		}
	}

	counts, err := l.loadSubmissionCounts(ctx, members)
	if err != nil {
		return LoadResult{}, err
	}

	var roster domain.Roster
	var clusterInput []domain.DailySubmission
	for _, m := range members {
		m.SubmissionCount = counts[m.ID]
		sub, submitted := submittedBy[m.ID]

		if submitted {
			roster.Providers = append(roster.Providers, m)
			// Вход кластеризации — только одобренные записи живых
			// участников: гост-аккаунты не должны быть видны другим.
			if sub.Status == domain.SubmissionApproved && !m.IsGhost {
				clusterInput = append(clusterInput, domain.DailySubmission{
					ParticipantID:   m.ID,
					ParticipantName: m.Name,
					Gender:          m.Gender,
					Review:          sub.Review,
					DailyAnswer:     sub.DailyAnswer,
				})
			}
		}

		// Администраторы не зрители; госты остаются зрителями.
		if m.IsSuperAdmin || m.IsAdministrator {
			continue
		}
		roster.Viewers = append(roster.Viewers, m)
		if !submitted {
			roster.NotSubmitted = append(roster.NotSubmitted, domain.ParticipantRef{ID: m.ID, Name: m.Name})
		}
	}

	if len(roster.Providers) == 0 {
		return LoadResult{}, domain.ErrNoProviders
	}
	if len(roster.Viewers) == 0 {
		return LoadResult{}, domain.ErrNoViewers
	}

	recent, categories, err := l.loadHistory(ctx, cohortID, date)
	if err != nil {
		return LoadResult{}, err
	}
	roster.RecentAssignments = recent

	l.log.Debug().
		Str("cohort_id", cohortID).
		Str("date", date).
		Int("providers", len(roster.Providers)).
		Int("viewers", len(roster.Viewers)).
		Int("not_submitted", len(roster.NotSubmitted)).
		Msg("ростер собран")

	return LoadResult{Roster: roster, Submissions: clusterInput, RecentCategories: categories}, nil
}

// loadSubmissionCounts считает для каждого участника число уникальных
// дат одобренных записей текущего цикла. Записи под чужим кодом участия
// не засчитываются. Чтение идёт пачками с ограниченной параллельностью.
func (l *Loader) loadSubmissionCounts(ctx context.Context, members []domain.Participant) (map[string]int, error) {
	byID := make(map[string]domain.Participant, len(members))
	ids := make([]string, 0, len(members))
	for _, m := range members {
		byID[m.ID] = m
		ids = append(ids, m.ID)
	}

	counts := make(map[string]int, len(members))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(countConcurrency)
	for start := 0; start < len(ids); start += countBatchSize {
		end := start + countBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]
		g.Go(func() error {
			subs, err := l.submissions.ListApprovedByParticipants(gctx, batch)
			if err != nil {
				return fmt.Errorf("история записей: %w", err)
			}
			dates := make(map[string]map[string]struct{})
			for _, sub := range subs {
				member, ok := byID[sub.ParticipantID]
				if !ok {
					continue
				}
				if sub.ParticipationCode != "" && sub.ParticipationCode != member.ExpectedCode() {
					continue
				}
				if dates[sub.ParticipantID] == nil {
					dates[sub.ParticipantID] = make(map[string]struct{})
				}
				dates[sub.ParticipantID][sub.SubmissionDate] = struct{}{}
			}
			mu.Lock()
			for id, seen := range dates {
				counts[id] = len(seen)
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return counts, nil
}

// loadHistory читает результаты предыдущих дней: кому что показывали
// (для исключения повторов) и какие категории кластеров уже были
// (чтобы классификатор выбрал другую ось сходства).
func (l *Loader) loadHistory(ctx context.Context, cohortID, date string) (map[string][]string, []string, error) {
	dates, err := domain.PreviousDates(date, categoryWindowDays)
	if err != nil {
		return nil, nil, err
	}
	entries, err := l.store.GetEntries(ctx, cohortID, dates)
	if err != nil {
		return nil, nil, fmt.Errorf("история показов: %w", err)
	}

	recent := make(map[string][]string)
	for _, d := range dates[:l.historyDays] {
		entry, ok := entries[d]
		if !ok {
			continue
		}
		for viewerID, assignment := range entry.Assignments {
			recent[viewerID] = append(recent[viewerID], assignment.AssignedIDs()...)
		}
	}

	seen := make(map[string]struct{})
	var categories []string
	for _, d := range dates {
		entry, ok := entries[d]
		if !ok {
			continue
		}
		for _, cluster := range entry.Clusters {
			if cluster.Category == "" {
				continue
			}
			if _, dup := seen[cluster.Category]; dup {
				continue
			}
			seen[cluster.Category] = struct{}{}
			categories = append(categories, cluster.Category)
		}
	}
	sort.Strings(categories)

	return recent, categories, nil
}
