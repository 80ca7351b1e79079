package strategy

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"bookclub-matching/internal/domain"
)

// RandomStrategy раздаёт профили случайно, с балансом полов и
// исключением недавних повторов. Воспроизводимость намеренно не
// гарантируется: цель — справедливость раздачи, а не аудит.
type RandomStrategy struct {
	rng *rand.Rand
}

var _ domain.Strategy = (*RandomStrategy)(nil)

// NewRandom создаёт стратегию со временем в качестве зерна.
func NewRandom() *RandomStrategy {
	return NewRandomWithSource(rand.NewSource(time.Now().UnixNano()))
}

// NewRandomWithSource создаёт стратегию с заданным источником случайности.
func NewRandomWithSource(src rand.Source) *RandomStrategy {
	return &RandomStrategy{rng: rand.New(src)}
}

// Version возвращает идентификатор стратегии.
func (s *RandomStrategy) Version() domain.MatchingVersion {
	return domain.MatchingVersionRandom
}

// Match строит раздачу для каждого зрителя независимо.
func (s *RandomStrategy) Match(_ context.Context, input domain.MatchInput) (domain.MatchingEntry, []string, error) {
	providers := input.Roster.Providers
	viewers := input.Roster.Viewers
	if len(providers) == 0 {
		return domain.MatchingEntry{}, nil, domain.ErrNoProviders
	}
	if len(viewers) == 0 {
		return domain.MatchingEntry{}, nil, domain.ErrNoViewers
	}

	entry := domain.MatchingEntry{
		Version:     domain.MatchingVersionRandom,
		Assignments: make(map[string]domain.Assignment, len(viewers)),
	}
	var warnings []string

	for _, viewer := range viewers {
		target := 2 * (viewer.SubmissionCount + 1)
		assigned := s.pick(viewer, providers, input.Roster.RecentAssignments[viewer.ID], target)
		if len(assigned) < target {
			warnings = append(warnings, fmt.Sprintf(
				"зрителю %s (%s) выдано %d профилей из %d: кандидатов не хватило",
				viewer.ID, viewer.Name, len(assigned), target))
		}
		entry.Assignments[viewer.ID] = domain.Assignment{Assigned: assigned}
	}

	return entry, warnings, nil
}

// pick выбирает до target поставщиков для одного зрителя: поровну из
// мужской и женской корзин, остаток добирается из всех оставшихся.
func (s *RandomStrategy) pick(viewer domain.Participant, providers []domain.Participant, recent []string, target int) []string {
	excluded := make(map[string]struct{}, len(recent)+1)
	excluded[viewer.ID] = struct{}{}
	for _, id := range recent {
		excluded[id] = struct{}{}
	}

	var males, females, others []string
	for _, p := range providers {
		if _, skip := excluded[p.ID]; skip {
			continue
		}
		switch p.Gender {
		case domain.GenderMale:
			males = append(males, p.ID)
		case domain.GenderFemale:
			females = append(females, p.ID)
		default:
			others = append(others, p.ID)
		}
	}
	s.shuffle(males)
	s.shuffle(females)

	perGender := target / 2
	assigned := make([]string, 0, target)
	taken := make(map[string]struct{}, target)

	take := func(bucket []string, limit int) {
		for _, id := range bucket {
			if limit <= 0 || len(assigned) >= target {
				return
			}
			if _, dup := taken[id]; dup {
				continue
			}
			assigned = append(assigned, id)
			taken[id] = struct{}{}
			limit--
		}
	}

	take(males, perGender)
	take(females, perGender)

	if len(assigned) < target {
		rest := make([]string, 0, len(males)+len(females)+len(others))
		rest = append(rest, males...)
		rest = append(rest, females...)
		rest = append(rest, others...)
		s.shuffle(rest)
		take(rest, target-len(assigned))
	}

	return assigned
}

func (s *RandomStrategy) shuffle(ids []string) {
	s.rng.Shuffle(len(ids), func(i, j int) {
		ids[i], ids[j] = ids[j], ids[i]
	})
}
