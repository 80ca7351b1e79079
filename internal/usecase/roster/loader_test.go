package roster

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"bookclub-matching/internal/domain"
)

type stubParticipants struct {
	members []domain.Participant
}

func (s *stubParticipants) ListByCohort(context.Context, string) ([]domain.Participant, error) {
	return s.members, nil
}

type stubSubmissions struct {
	byDate   []domain.Submission
	approved []domain.Submission
}

func (s *stubSubmissions) ListByDate(context.Context, string, string) ([]domain.Submission, error) {
	return s.byDate, nil
}

func (s *stubSubmissions) ListApprovedByParticipants(_ context.Context, ids []string) ([]domain.Submission, error) {
	allowed := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		allowed[id] = struct{}{}
	}
	var out []domain.Submission
	for _, sub := range s.approved {
		if _, ok := allowed[sub.ParticipantID]; ok {
			out = append(out, sub)
		}
	}
	return out, nil
}

type stubStore struct {
	entries map[string]domain.MatchingEntry
}

func (s *stubStore) CommitEntry(context.Context, string, string, domain.MatchingEntry) (domain.CommitResult, error) {
	return "", errors.New("не используется")
}

func (s *stubStore) ClearEntry(context.Context, string, string) error {
	return errors.New("не используется")
}

func (s *stubStore) GetEntries(_ context.Context, _ string, dates []string) (map[string]domain.MatchingEntry, error) {
	out := make(map[string]domain.MatchingEntry)
	for _, d := range dates {
		if e, ok := s.entries[d]; ok {
			out[d] = e
		}
	}
	return out, nil
}

func approved(participantID, code, date string) domain.Submission {
	return domain.Submission{
		ParticipantID:     participantID,
		ParticipationCode: code,
		SubmissionDate:    date,
		Status:            domain.SubmissionApproved,
	}
}

func newTestLoader(participants *stubParticipants, submissions *stubSubmissions, store *stubStore, historyDays int) *Loader {
	if store == nil {
		store = &stubStore{}
	}
	return NewLoader(participants, submissions, store, zerolog.Nop(), historyDays)
}

func TestLoadSplitsRoster(t *testing.T) {
	participants := &stubParticipants{members: []domain.Participant{
		{ID: "m1", Name: "Аня", ParticipationCode: "m1"},
		{ID: "m2", Name: "Борис", ParticipationCode: "m2"},
		{ID: "admin", Name: "Админ", IsAdministrator: true, ParticipationCode: "admin"},
		{ID: "ghost", Name: "Гост", IsGhost: true, ParticipationCode: "ghost"},
	}}
	submissions := &stubSubmissions{byDate: []domain.Submission{
		{ParticipantID: "m1", Status: domain.SubmissionApproved, Review: "отзыв"},
		{ParticipantID: "admin", Status: domain.SubmissionApproved, Review: "отзыв"},
		{ParticipantID: "ghost", Status: domain.SubmissionApproved, Review: "отзыв"},
	}}

	res, err := newTestLoader(participants, submissions, nil, 1).Load(context.Background(), "c1", "2025-03-10")
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	if len(res.Roster.Providers) != 3 {
		t.Fatalf("все сдавшие — поставщики, получено %d", len(res.Roster.Providers))
	}
	// Администратор не зритель, гост — зритель.
	viewerIDs := map[string]bool{}
	for _, v := range res.Roster.Viewers {
		viewerIDs[v.ID] = true
	}
	if viewerIDs["admin"] {
		t.Fatal("администратор не должен быть зрителем")
	}
	if !viewerIDs["ghost"] {
		t.Fatal("гост-аккаунт должен оставаться зрителем")
	}
	if len(res.Roster.NotSubmitted) != 1 || res.Roster.NotSubmitted[0].ID != "m2" {
		t.Fatalf("несдавшим должен числиться только m2: %+v", res.Roster.NotSubmitted)
	}

	// Гост не попадает во вход кластеризации.
	for _, sub := range res.Submissions {
		if sub.ParticipantID == "ghost" {
			t.Fatal("гост-аккаунт не должен кластеризоваться")
		}
	}
	if len(res.Submissions) != 2 {
		t.Fatalf("во вход кластеризации должны попасть m1 и admin, получено %d", len(res.Submissions))
	}
}

func TestLoadCountsDistinctDatesWithCodeGuard(t *testing.T) {
	participants := &stubParticipants{members: []domain.Participant{
		{ID: "m1", ParticipationCode: "code-2"},
		{ID: "m2"},
	}}
	submissions := &stubSubmissions{
		byDate: []domain.Submission{{ParticipantID: "m1", Status: domain.SubmissionApproved}},
		approved: []domain.Submission{
			// Две записи за один день считаются одной датой.
			approved("m1", "code-2", "2025-03-01"),
			approved("m1", "code-2", "2025-03-01"),
			approved("m1", "code-2", "2025-03-02"),
			// Запись прошлого цикла участия не засчитывается.
			approved("m1", "code-1", "2024-11-05"),
			// Пустой код у старых записей засчитывается.
			approved("m1", "", "2025-03-03"),
		},
	}

	res, err := newTestLoader(participants, submissions, nil, 1).Load(context.Background(), "c1", "2025-03-10")
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	var m1 domain.Participant
	for _, p := range res.Roster.Providers {
		if p.ID == "m1" {
			m1 = p
		}
	}
	if m1.SubmissionCount != 3 {
		t.Fatalf("у m1 три уникальные даты текущего цикла, получено %d", m1.SubmissionCount)
	}
}

func TestLoadNormalizesLegacyHistory(t *testing.T) {
	participants := &stubParticipants{members: []domain.Participant{
		{ID: "m1"},
		{ID: "m2"},
	}}
	submissions := &stubSubmissions{byDate: []domain.Submission{
		{ParticipantID: "m1", Status: domain.SubmissionApproved},
	}}
	store := &stubStore{entries: map[string]domain.MatchingEntry{
		"2025-03-09": {
			Version: domain.MatchingVersionRandom,
			Assignments: map[string]domain.Assignment{
				"m2": {Similar: []string{"a"}, Opposite: []string{"b"}},
			},
		},
	}}

	res, err := newTestLoader(participants, submissions, store, 1).Load(context.Background(), "c1", "2025-03-10")
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	recent := res.Roster.RecentAssignments["m2"]
	if len(recent) != 2 {
		t.Fatalf("легаси-формат должен раскрываться в единый список, получено %v", recent)
	}
}

func TestLoadHistoryWindowAndCategories(t *testing.T) {
	participants := &stubParticipants{members: []domain.Participant{{ID: "m1"}, {ID: "m2"}}}
	submissions := &stubSubmissions{byDate: []domain.Submission{
		{ParticipantID: "m1", Status: domain.SubmissionApproved},
	}}
	store := &stubStore{entries: map[string]domain.MatchingEntry{
		"2025-03-09": {
			Assignments: map[string]domain.Assignment{"m2": {Assigned: []string{"x"}}},
			Clusters:    map[string]domain.Cluster{"c": {Category: "эмоции"}},
		},
		"2025-03-08": {
			Assignments: map[string]domain.Assignment{"m2": {Assigned: []string{"y"}}},
			Clusters:    map[string]domain.Cluster{"c": {Category: "ценности"}},
		},
	}}

	// Окно повторов — один день, окно категорий — три.
	res, err := newTestLoader(participants, submissions, store, 1).Load(context.Background(), "c1", "2025-03-10")
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	recent := res.Roster.RecentAssignments["m2"]
	if len(recent) != 1 || recent[0] != "x" {
		t.Fatalf("в окно повторов должен попасть только вчерашний показ: %v", recent)
	}
	if len(res.RecentCategories) != 2 {
		t.Fatalf("категории собираются за три дня: %v", res.RecentCategories)
	}
}

func TestLoadNoProviders(t *testing.T) {
	participants := &stubParticipants{members: []domain.Participant{{ID: "m1"}}}
	submissions := &stubSubmissions{}

	_, err := newTestLoader(participants, submissions, nil, 1).Load(context.Background(), "c1", "2025-03-10")
	if !errors.Is(err, domain.ErrNoProviders) {
		t.Fatalf("ожидалась ErrNoProviders, получено %v", err)
	}
}

func TestLoadNoViewers(t *testing.T) {
	participants := &stubParticipants{members: []domain.Participant{
		{ID: "admin", IsAdministrator: true},
	}}
	submissions := &stubSubmissions{byDate: []domain.Submission{
		{ParticipantID: "admin", Status: domain.SubmissionApproved},
	}}

	_, err := newTestLoader(participants, submissions, nil, 1).Load(context.Background(), "c1", "2025-03-10")
	if !errors.Is(err, domain.ErrNoViewers) {
		t.Fatalf("ожидалась ErrNoViewers, получено %v", err)
	}
}

func TestLoadPendingQualifiesProviderButNotClustering(t *testing.T) {
	participants := &stubParticipants{members: []domain.Participant{{ID: "m1"}, {ID: "m2"}}}
	submissions := &stubSubmissions{byDate: []domain.Submission{
		{ParticipantID: "m1", Status: domain.SubmissionPending},
	}}

	res, err := newTestLoader(participants, submissions, nil, 1).Load(context.Background(), "c1", "2025-03-10")
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if len(res.Roster.Providers) != 1 || res.Roster.Providers[0].ID != "m1" {
		t.Fatalf("ожидался один поставщик m1: %+v", res.Roster.Providers)
	}
	// Неодобренная запись не идёт в кластеризацию.
	if len(res.Submissions) != 0 {
		t.Fatalf("pending-запись не должна попадать во вход кластеризации: %+v", res.Submissions)
	}
}
