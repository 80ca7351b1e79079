package strategy

import (
	"context"
	"fmt"

	"bookclub-matching/internal/domain"
)

// ClusterStrategy группирует поставщиков дня в тематические кластеры
// через внешний классификатор и раскрывает каждый кластер в полную
// взаимную видимость: участник видит всех остальных в своём кластере.
type ClusterStrategy struct {
	clusterer domain.Clusterer
}

var _ domain.Strategy = (*ClusterStrategy)(nil)

// NewCluster создаёт стратегию с указанным классификатором.
func NewCluster(clusterer domain.Clusterer) *ClusterStrategy {
	return &ClusterStrategy{clusterer: clusterer}
}

// Version возвращает идентификатор стратегии.
func (s *ClusterStrategy) Version() domain.MatchingVersion {
	return domain.MatchingVersionCluster
}

// Match строит кластеры и их клик-замыкание.
func (s *ClusterStrategy) Match(ctx context.Context, input domain.MatchInput) (domain.MatchingEntry, []string, error) {
	k := len(input.Submissions)
	if k == 0 {
		return domain.MatchingEntry{}, nil, domain.ErrNoProviders
	}

	plan := domain.PlanClusters(k)

	var clusters []domain.Cluster
	if plan.SmallGroup {
		// Малую группу не имеет смысла различать: все в одном кластере,
		// классификатор не вызывается.
		clusters = []domain.Cluster{smallGroupCluster(input.Submissions)}
	} else {
		proposed, err := s.clusterer.Propose(ctx, domain.ClusterRequest{
			Submissions:      input.Submissions,
			Date:             input.Date,
			RecentCategories: input.RecentCategories,
			Plan:             plan,
		})
		if err != nil {
			return domain.MatchingEntry{}, nil, fmt.Errorf("предложение кластеров: %w", err)
		}
		clusters = proposed
	}

	entry := domain.MatchingEntry{
		Version:     domain.MatchingVersionCluster,
		Assignments: make(map[string]domain.Assignment, k),
		Clusters:    make(map[string]domain.Cluster, len(clusters)),
	}
	for _, cluster := range clusters {
		entry.Clusters[cluster.ID] = cluster
		for _, memberID := range cluster.MemberIDs {
			assigned := make([]string, 0, len(cluster.MemberIDs)-1)
			for _, otherID := range cluster.MemberIDs {
				if otherID == memberID {
					continue
				}
				assigned = append(assigned, otherID)
			}
			entry.Assignments[memberID] = domain.Assignment{
				Assigned:  assigned,
				ClusterID: cluster.ID,
			}
		}
	}

	return entry, nil, nil
}

func smallGroupCluster(submissions []domain.DailySubmission) domain.Cluster {
	memberIDs := make([]string, 0, len(submissions))
	for _, sub := range submissions {
		memberIDs = append(memberIDs, sub.ParticipantID)
	}
	return domain.Cluster{
		ID:        "cluster-1",
		Name:      "Общая группа",
		Emoji:     "📚",
		Category:  "general",
		Theme:     "все читатели дня",
		MemberIDs: memberIDs,
		Reasoning: "поставщиков слишком мало для разбиения",
	}
}
