package domain

import "math"

// Размеры кластеров считаются вместе с самим участником: кластер из
// пяти человек показывает каждому четыре профиля.
const (
	ClusterMinSize    = 5
	ClusterMaxSize    = 7
	ClusterTargetSize = 6
	// ClusterEdgeMinSize — минимум для особого случая 8–9 поставщиков,
	// которых нельзя разбить на группы по 5–7.
	ClusterEdgeMinSize = 4
	// SmallGroupLimit — до этого числа включительно все попадают
	// в один кластер без разбиения.
	SmallGroupLimit = 7
)

// ClusterPlan — режим кластеризации для данного числа поставщиков.
// Им руководствуются и стратегия (что просить у классификатора),
// и валидатор (что считать нарушением).
type ClusterPlan struct {
	ProviderCount int
	TargetCount   int
	// MinSize и MaxSize — допустимые размеры кластера при проверке.
	MinSize    int
	MaxSize    int
	SmallGroup bool
	EdgeCase   bool
}

// PlanClusters вычисляет режим кластеризации для k поставщиков.
func PlanClusters(k int) ClusterPlan {
	plan := ClusterPlan{ProviderCount: k, MinSize: 1, MaxSize: ClusterMaxSize}

	switch {
	case k <= SmallGroupLimit:
		plan.TargetCount = 1
		plan.SmallGroup = true
		return plan
	case k == 8 || k == 9:
		plan.TargetCount = 2
		plan.MinSize = ClusterEdgeMinSize
		plan.EdgeCase = true
		return plan
	}

	minClusters := (k + ClusterMaxSize - 1) / ClusterMaxSize
	maxClusters := k / ClusterMinSize
	target := int(math.Round(float64(k) / ClusterTargetSize))
	if target < minClusters {
		target = minClusters
	}
	if target > maxClusters {
		target = maxClusters
	}
	plan.TargetCount = target
	return plan
}

// CountWithinTolerance проверяет число кластеров против режима:
// малая группа требует ровно один, особый случай ровно два,
// общий случай допускает отклонение на единицу от цели.
func (p ClusterPlan) CountWithinTolerance(actual int) bool {
	switch {
	case p.SmallGroup:
		return actual == 1
	case p.EdgeCase:
		return actual == 2
	default:
		diff := actual - p.TargetCount
		return diff >= -1 && diff <= 1
	}
}
