package validate

import (
	"errors"
	"strings"
	"testing"

	"bookclub-matching/internal/domain"
)

func randomEntry(assignments map[string][]string) domain.MatchingEntry {
	entry := domain.MatchingEntry{
		Version:     domain.MatchingVersionRandom,
		Assignments: make(map[string]domain.Assignment, len(assignments)),
	}
	for viewerID, assigned := range assignments {
		entry.Assignments[viewerID] = domain.Assignment{Assigned: assigned}
	}
	return entry
}

func TestValidRandomEntryPasses(t *testing.T) {
	entry := randomEntry(map[string][]string{
		"v1": {"p1", "p2"},
		"v2": {"p1", "p2"},
	})
	res := Entry(entry, []string{"p1", "p2"}, []string{"v1", "v2"})
	if err := res.Err(); err != nil {
		t.Fatalf("корректный результат не должен давать ошибок: %v", err)
	}
}

func TestSelfAssignmentIsError(t *testing.T) {
	entry := randomEntry(map[string][]string{
		"p1": {"p1", "p2"},
		"v1": {"p1", "p2"},
	})
	res := Entry(entry, []string{"p1", "p2"}, []string{"p1", "v1"})
	if res.Err() == nil {
		t.Fatal("самоназначение должно быть ошибкой")
	}
	if !containsSubstring(res.Errors, "самоназначение") {
		t.Fatalf("нарушение должно быть помечено: %v", res.Errors)
	}
}

func TestDuplicateInViewerListIsError(t *testing.T) {
	entry := randomEntry(map[string][]string{
		"v1": {"p1", "p1", "p2"},
	})
	res := Entry(entry, []string{"p1", "p2"}, []string{"v1"})
	if !containsSubstring(res.Errors, "дубль") {
		t.Fatalf("дубль должен быть ошибкой: %v", res.Errors)
	}
}

func TestStrayIDIsError(t *testing.T) {
	entry := randomEntry(map[string][]string{
		"v1": {"p1", "ghost-42"},
	})
	res := Entry(entry, []string{"p1"}, []string{"v1"})
	if !containsSubstring(res.Errors, "ссылочная целостность") {
		t.Fatalf("чужой идентификатор должен быть ошибкой: %v", res.Errors)
	}
}

func TestUnassignedProviderIsErrorForRandom(t *testing.T) {
	entry := randomEntry(map[string][]string{
		"v1": {"p1"},
	})
	res := Entry(entry, []string{"p1", "p2"}, []string{"v1"})
	if !containsSubstring(res.Errors, "полнота") {
		t.Fatalf("непоказанный поставщик должен быть ошибкой: %v", res.Errors)
	}
}

func TestAllViolationsAggregated(t *testing.T) {
	entry := randomEntry(map[string][]string{
		"v1": {"v1", "p1", "p1", "ghost"},
	})
	res := Entry(entry, []string{"p1", "p2"}, []string{"v1"})
	err := res.Err()
	if err == nil {
		t.Fatal("ожидались нарушения")
	}
	// Самоназначение, дубль, чужой идентификатор и непоказанный p2
	// должны попасть в одно сообщение.
	if len(res.Errors) < 4 {
		t.Fatalf("ожидалось не меньше четырёх нарушений, получено %d: %v", len(res.Errors), res.Errors)
	}
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("ожидалась *domain.ValidationError, получено %T", err)
	}
	if len(verr.Violations) != len(res.Errors) {
		t.Fatal("ошибка должна перечислять все нарушения")
	}
}

func clusterEntry(clusters map[string][]string) domain.MatchingEntry {
	entry := domain.MatchingEntry{
		Version:     domain.MatchingVersionCluster,
		Assignments: make(map[string]domain.Assignment),
		Clusters:    make(map[string]domain.Cluster, len(clusters)),
	}
	for id, members := range clusters {
		entry.Clusters[id] = domain.Cluster{ID: id, MemberIDs: members}
		for _, m := range members {
			assigned := make([]string, 0, len(members)-1)
			for _, other := range members {
				if other != m {
					assigned = append(assigned, other)
				}
			}
			entry.Assignments[m] = domain.Assignment{Assigned: assigned, ClusterID: id}
		}
	}
	return entry
}

func TestClusterPartitionPasses(t *testing.T) {
	entry := clusterEntry(map[string][]string{
		"cluster-1": {"p1", "p2", "p3", "p4"},
		"cluster-2": {"p5", "p6", "p7", "p8"},
	})
	providers := []string{"p1", "p2", "p3", "p4", "p5", "p6", "p7", "p8"}
	res := Entry(entry, providers, providers)
	if err := res.Err(); err != nil {
		t.Fatalf("корректное разбиение не должно давать ошибок: %v", err)
	}
}

func TestClusterMissingProviderIsError(t *testing.T) {
	entry := clusterEntry(map[string][]string{
		"cluster-1": {"p1", "p2", "p3", "p4"},
		"cluster-2": {"p5", "p6", "p7"},
	})
	providers := []string{"p1", "p2", "p3", "p4", "p5", "p6", "p7", "p8"}
	res := Entry(entry, providers, providers)
	if !containsSubstring(res.Errors, "не попал ни в один кластер") {
		t.Fatalf("пропущенный поставщик должен быть ошибкой: %v", res.Errors)
	}
}

func TestClusterDoubleMembershipIsError(t *testing.T) {
	entry := clusterEntry(map[string][]string{
		"cluster-1": {"p1", "p2", "p3", "p4"},
		"cluster-2": {"p4", "p5", "p6", "p7"},
	})
	providers := []string{"p1", "p2", "p3", "p4", "p5", "p6", "p7"}
	res := Entry(entry, providers, providers)
	if !containsSubstring(res.Errors, "попал в 2 кластеров") {
		t.Fatalf("двойное членство должно быть ошибкой: %v", res.Errors)
	}
}

func TestClusterCountRegimeIsChecked(t *testing.T) {
	// Семь поставщиков — малая группа, два кластера недопустимы.
	entry := clusterEntry(map[string][]string{
		"cluster-1": {"p1", "p2", "p3", "p4"},
		"cluster-2": {"p5", "p6", "p7"},
	})
	providers := []string{"p1", "p2", "p3", "p4", "p5", "p6", "p7"}
	res := Entry(entry, providers, providers)
	if !containsSubstring(res.Errors, "режим") {
		t.Fatalf("нарушение режима должно быть ошибкой: %v", res.Errors)
	}
}

func TestClusterSizeRegimeIsChecked(t *testing.T) {
	// Для особого случая 8 поставщиков кластер размером 3 недопустим.
	entry := clusterEntry(map[string][]string{
		"cluster-1": {"p1", "p2", "p3"},
		"cluster-2": {"p4", "p5", "p6", "p7", "p8"},
	})
	providers := []string{"p1", "p2", "p3", "p4", "p5", "p6", "p7", "p8"}
	res := Entry(entry, providers, providers)
	if !containsSubstring(res.Errors, "вне допустимого") {
		t.Fatalf("нарушение размера должно быть ошибкой: %v", res.Errors)
	}
}

func TestUnknownViewerIsWarningOnly(t *testing.T) {
	entry := randomEntry(map[string][]string{
		"v1":       {"p1"},
		"stranger": {"p1"},
	})
	res := Entry(entry, []string{"p1"}, []string{"v1"})
	if err := res.Err(); err != nil {
		t.Fatalf("неизвестный зритель не должен блокировать фиксацию: %v", err)
	}
	if !containsSubstring(res.Warnings, "неизвестному зрителю") {
		t.Fatalf("ожидалось предупреждение: %v", res.Warnings)
	}
}

func containsSubstring(list []string, substr string) bool {
	for _, s := range list {
		if strings.Contains(s, substr) {
			return true
		}
	}
	return false
}
