package validate

import (
	"fmt"
	"sort"

	"bookclub-matching/internal/domain"
)

// Result — итог проверки результата матчинга. Ошибки блокируют
// фиксацию, предупреждения только логируются.
type Result struct {
	Errors   []string
	Warnings []string
}

// Err возвращает агрегированную ошибку со всеми нарушениями сразу,
// либо nil, если нарушений нет.
func (r Result) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	return &domain.ValidationError{Violations: r.Errors}
}

// Entry проверяет результат любой стратегии перед фиксацией:
// полноту, отсутствие самоназначений и дублей, ссылочную целостность
// и, для кластерной версии, режим размеров и числа кластеров.
func Entry(entry domain.MatchingEntry, providerIDs, viewerIDs []string) Result {
	var res Result

	providers := toSet(providerIDs)
	viewers := toSet(viewerIDs)

	seenProviders := make(map[string]bool, len(providers))
	for viewerID, assignment := range entry.Assignments {
		assigned := assignment.AssignedIDs()
		seen := make(map[string]bool, len(assigned))
		for _, id := range assigned {
			if id == viewerID {
				res.Errors = append(res.Errors, fmt.Sprintf("самоназначение: зритель %s в собственном списке", viewerID))
			}
			if seen[id] {
				res.Errors = append(res.Errors, fmt.Sprintf("дубль: %s встречается в списке зрителя %s более одного раза", id, viewerID))
			}
			seen[id] = true
			if _, known := providers[id]; !known {
				res.Errors = append(res.Errors, fmt.Sprintf("ссылочная целостность: %s в списке зрителя %s не является поставщиком даты", id, viewerID))
				continue
			}
			seenProviders[id] = true
		}
		if len(viewers) > 0 {
			if _, known := viewers[viewerID]; !known {
				res.Warnings = append(res.Warnings, fmt.Sprintf("список назначен неизвестному зрителю %s", viewerID))
			}
		}
	}

	switch entry.Version {
	case domain.MatchingVersionCluster:
		res.Errors = append(res.Errors, clusterErrors(entry, providers)...)
	default:
		// Для случайной версии каждый поставщик должен быть показан
		// хотя бы одному зрителю, а каждый зритель — получить список.
		for _, id := range sortedKeys(providers) {
			if !seenProviders[id] {
				res.Errors = append(res.Errors, fmt.Sprintf("полнота: поставщик %s не показан ни одному зрителю", id))
			}
		}
		for _, id := range sortedKeys(viewers) {
			if _, ok := entry.Assignments[id]; !ok {
				res.Errors = append(res.Errors, fmt.Sprintf("полнота: зритель %s остался без списка", id))
			}
		}
	}

	return res
}

// clusterErrors проверяет, что кластеры образуют строгое разбиение
// множества поставщиков и укладываются в режим PlanClusters.
func clusterErrors(entry domain.MatchingEntry, providers map[string]struct{}) []string {
	var errs []string

	plan := domain.PlanClusters(len(providers))
	if !plan.CountWithinTolerance(len(entry.Clusters)) {
		errs = append(errs, fmt.Sprintf("режим: %d кластеров для %d поставщиков, ожидалось около %d",
			len(entry.Clusters), plan.ProviderCount, plan.TargetCount))
	}

	membership := make(map[string]int, len(providers))
	for _, clusterID := range sortedClusterIDs(entry.Clusters) {
		cluster := entry.Clusters[clusterID]
		if size := len(cluster.MemberIDs); size < plan.MinSize || size > plan.MaxSize {
			errs = append(errs, fmt.Sprintf("режим: кластер %s размером %d вне допустимого [%d, %d]",
				clusterID, size, plan.MinSize, plan.MaxSize))
		}
		seen := make(map[string]bool, len(cluster.MemberIDs))
		for _, id := range cluster.MemberIDs {
			if seen[id] {
				errs = append(errs, fmt.Sprintf("дубль: %s встречается в кластере %s более одного раза", id, clusterID))
				continue
			}
			seen[id] = true
			if _, known := providers[id]; !known {
				errs = append(errs, fmt.Sprintf("ссылочная целостность: %s в кластере %s не является поставщиком даты", id, clusterID))
				continue
			}
			membership[id]++
		}
	}

	for _, id := range sortedKeys(providers) {
		switch membership[id] {
		case 0:
			errs = append(errs, fmt.Sprintf("полнота: поставщик %s не попал ни в один кластер", id))
		case 1:
		default:
			errs = append(errs, fmt.Sprintf("полнота: поставщик %s попал в %d кластеров", id, membership[id]))
		}
	}

	return errs
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedClusterIDs(clusters map[string]domain.Cluster) []string {
	keys := make([]string, 0, len(clusters))
	for k := range clusters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
