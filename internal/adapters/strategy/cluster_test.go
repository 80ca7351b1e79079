package strategy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"

	"bookclub-matching/internal/domain"
)

type stubClusterer struct {
	clusters []domain.Cluster
	err      error
	calls    int
	lastReq  domain.ClusterRequest
}

func (s *stubClusterer) Propose(_ context.Context, req domain.ClusterRequest) ([]domain.Cluster, error) {
	s.calls++
	s.lastReq = req
	return s.clusters, s.err
}

func submissions(n int) []domain.DailySubmission {
	out := make([]domain.DailySubmission, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.DailySubmission{
			ParticipantID: fmt.Sprintf("p%d", i+1),
			Review:        "заметка о прочитанном",
		})
	}
	return out
}

func TestClusterSmallGroupSkipsClassifier(t *testing.T) {
	stub := &stubClusterer{}
	entry, _, err := NewCluster(stub).Match(context.Background(), domain.MatchInput{
		Date:        "2025-03-10",
		Submissions: submissions(5),
	})
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if stub.calls != 0 {
		t.Fatal("малая группа не должна ходить в классификатор")
	}
	if len(entry.Clusters) != 1 {
		t.Fatalf("ожидался один кластер, получено %d", len(entry.Clusters))
	}
	for id, cluster := range entry.Clusters {
		if len(cluster.MemberIDs) != 5 {
			t.Fatalf("кластер %s должен содержать всех пятерых, получено %d", id, len(cluster.MemberIDs))
		}
	}
}

func TestClusterCliqueClosure(t *testing.T) {
	stub := &stubClusterer{clusters: []domain.Cluster{
		{ID: "cluster-1", MemberIDs: []string{"p1", "p2", "p3", "p4", "p5"}},
		{ID: "cluster-2", MemberIDs: []string{"p6", "p7", "p8", "p9", "p10"}},
	}}
	entry, _, err := NewCluster(stub).Match(context.Background(), domain.MatchInput{
		Date:        "2025-03-10",
		Submissions: submissions(10),
	})
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if stub.calls != 1 {
		t.Fatalf("классификатор должен вызываться ровно один раз, вызван %d", stub.calls)
	}

	got := entry.Assignments["p2"]
	if got.ClusterID != "cluster-1" {
		t.Fatalf("p2 должен состоять в cluster-1, получено %s", got.ClusterID)
	}
	want := []string{"p1", "p3", "p4", "p5"}
	assigned := append([]string(nil), got.Assigned...)
	sort.Strings(assigned)
	if len(assigned) != len(want) {
		t.Fatalf("p2 должен видеть %d соседей, получено %d", len(want), len(assigned))
	}
	for i := range want {
		if assigned[i] != want[i] {
			t.Fatalf("p2 должен видеть %v, получено %v", want, assigned)
		}
	}

	// Между кластерами видимости нет.
	for _, id := range entry.Assignments["p2"].Assigned {
		if id == "p6" {
			t.Fatal("участник не должен видеть чужой кластер")
		}
	}
}

func TestClusterPassesPlanAndCategories(t *testing.T) {
	stub := &stubClusterer{clusters: []domain.Cluster{
		{ID: "cluster-1", MemberIDs: []string{"p1", "p2", "p3", "p4"}},
		{ID: "cluster-2", MemberIDs: []string{"p5", "p6", "p7", "p8"}},
	}}
	_, _, err := NewCluster(stub).Match(context.Background(), domain.MatchInput{
		Date:             "2025-03-10",
		Submissions:      submissions(8),
		RecentCategories: []string{"эмоции", "ценности"},
	})
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if !stub.lastReq.Plan.EdgeCase || stub.lastReq.Plan.TargetCount != 2 {
		t.Fatalf("для 8 поставщиков должен передаваться особый режим, получено %+v", stub.lastReq.Plan)
	}
	if len(stub.lastReq.RecentCategories) != 2 {
		t.Fatalf("категории прошлых дней должны доходить до классификатора: %v", stub.lastReq.RecentCategories)
	}
}

func TestClusterClassifierErrorAborts(t *testing.T) {
	stub := &stubClusterer{err: errors.New("timeout")}
	_, _, err := NewCluster(stub).Match(context.Background(), domain.MatchInput{
		Date:        "2025-03-10",
		Submissions: submissions(12),
	})
	if err == nil {
		t.Fatal("ошибка классификатора должна прерывать запуск")
	}
	if stub.calls != 1 {
		t.Fatalf("повторных вызовов быть не должно, вызван %d", stub.calls)
	}
}

func TestClusterNoSubmissions(t *testing.T) {
	_, _, err := NewCluster(&stubClusterer{}).Match(context.Background(), domain.MatchInput{Date: "2025-03-10"})
	if err != domain.ErrNoProviders {
		t.Fatalf("ожидалась ErrNoProviders, получено %v", err)
	}
}
