package strategy

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"bookclub-matching/internal/domain"
)

func member(id string, gender domain.Gender, count int) domain.Participant {
	return domain.Participant{ID: id, Name: "участник " + id, Gender: gender, SubmissionCount: count}
}

func makeProviders(n int, gender domain.Gender) []domain.Participant {
	out := make([]domain.Participant, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, member(fmt.Sprintf("%s-%d", gender, i), gender, 0))
	}
	return out
}

func newTestRandom() *RandomStrategy {
	return NewRandomWithSource(rand.NewSource(42))
}

func TestRandomCountScaling(t *testing.T) {
	providers := append(makeProviders(10, domain.GenderMale), makeProviders(10, domain.GenderFemale)...)
	viewer := member("viewer", domain.GenderUnknown, 2)

	entry, warnings, err := newTestRandom().Match(context.Background(), domain.MatchInput{
		CohortID: "c1",
		Date:     "2025-03-10",
		Roster:   domain.Roster{Providers: providers, Viewers: []domain.Participant{viewer}},
	})
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("предупреждений быть не должно: %v", warnings)
	}

	// c=2 означает 2*(2+1)=6 профилей при достаточном пуле.
	assigned := entry.Assignments["viewer"].Assigned
	if len(assigned) != 6 {
		t.Fatalf("ожидалось 6 профилей, получено %d", len(assigned))
	}

	// Баланс полов: по floor(6/2)=3 из каждой корзины.
	var males, females int
	for _, id := range assigned {
		if strings.HasPrefix(id, "male") {
			males++
		} else {
			females++
		}
	}
	if males != 3 || females != 3 {
		t.Fatalf("ожидалось 3 мужских и 3 женских профиля, получено %d и %d", males, females)
	}
}

func TestRandomExcludesSelfAndRecent(t *testing.T) {
	providers := []domain.Participant{
		member("a", domain.GenderMale, 0),
		member("b", domain.GenderMale, 0),
		member("c", domain.GenderFemale, 0),
		member("viewer", domain.GenderFemale, 0),
	}
	viewer := member("viewer", domain.GenderFemale, 5)

	entry, _, err := newTestRandom().Match(context.Background(), domain.MatchInput{
		Roster: domain.Roster{
			Providers: providers,
			Viewers:   []domain.Participant{viewer},
			RecentAssignments: map[string][]string{
				"viewer": {"a"},
			},
		},
	})
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	for _, id := range entry.Assignments["viewer"].Assigned {
		if id == "viewer" {
			t.Fatal("зритель не должен видеть самого себя")
		}
		if id == "a" {
			t.Fatal("недавно показанный поставщик не должен повторяться")
		}
	}
}

func TestRandomShortfallEmitsWarningNotError(t *testing.T) {
	// Три мужских поставщика с накопленными счётчиками 0, 1, 2;
	// зритель — второй из них (счётчик 1, цель 4 профиля), кандидатов
	// всего два.
	providers := []domain.Participant{
		member("p1", domain.GenderMale, 0),
		member("p2", domain.GenderMale, 1),
		member("p3", domain.GenderMale, 2),
	}
	viewer := providers[1]

	entry, warnings, err := newTestRandom().Match(context.Background(), domain.MatchInput{
		Roster: domain.Roster{Providers: providers, Viewers: []domain.Participant{viewer}},
	})
	if err != nil {
		t.Fatalf("нехватка кандидатов не должна быть ошибкой: %v", err)
	}

	assigned := entry.Assignments["p2"].Assigned
	if len(assigned) > 2 {
		t.Fatalf("кандидатов всего два, получено %d", len(assigned))
	}
	if len(warnings) != 1 {
		t.Fatalf("ожидалось одно предупреждение о нехватке, получено %d: %v", len(warnings), warnings)
	}
	if !strings.Contains(warnings[0], "p2") {
		t.Fatalf("предупреждение должно называть зрителя: %s", warnings[0])
	}
}

func TestRandomNoDuplicatesInList(t *testing.T) {
	providers := append(makeProviders(3, domain.GenderMale), makeProviders(2, domain.GenderOther)...)
	viewer := member("viewer", domain.GenderUnknown, 3)

	entry, _, err := newTestRandom().Match(context.Background(), domain.MatchInput{
		Roster: domain.Roster{Providers: providers, Viewers: []domain.Participant{viewer}},
	})
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	seen := map[string]bool{}
	for _, id := range entry.Assignments["viewer"].Assigned {
		if seen[id] {
			t.Fatalf("дубль %s в списке зрителя", id)
		}
		seen[id] = true
	}
}

func TestRandomNoProviders(t *testing.T) {
	_, _, err := newTestRandom().Match(context.Background(), domain.MatchInput{
		Roster: domain.Roster{Viewers: []domain.Participant{member("v", domain.GenderMale, 0)}},
	})
	if err != domain.ErrNoProviders {
		t.Fatalf("ожидалась ErrNoProviders, получено %v", err)
	}
}

func TestRandomNoViewers(t *testing.T) {
	_, _, err := newTestRandom().Match(context.Background(), domain.MatchInput{
		Roster: domain.Roster{Providers: makeProviders(2, domain.GenderMale)},
	})
	if err != domain.ErrNoViewers {
		t.Fatalf("ожидалась ErrNoViewers, получено %v", err)
	}
}
