package clusterer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"bookclub-matching/internal/domain"
	openai "bookclub-matching/internal/infra/openai"
)

type chatCompletionClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// LLMClusterer группирует дневные записи через OpenAI Chat Completions.
// Текст анализируется только на той стороне: здесь лишь сборка запроса
// и проверка структуры ответа.
type LLMClusterer struct {
	client  chatCompletionClient
	model   string
	timeout time.Duration
}

var _ domain.Clusterer = (*LLMClusterer)(nil)

// NewLLM создаёт классификатор на базе OpenAI.
func NewLLM(client chatCompletionClient, model string, timeout time.Duration) *LLMClusterer {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &LLMClusterer{client: client, model: model, timeout: timeout}
}

type llmSubmissionPayload struct {
	ID          int    `json:"id"`
	Gender      string `json:"gender,omitempty"`
	Review      string `json:"review"`
	DailyAnswer string `json:"daily_answer,omitempty"`
}

type llmClusterResponse struct {
	Clusters []llmCluster `json:"clusters"`
}

type llmCluster struct {
	Name      string        `json:"name"`
	Emoji     string        `json:"emoji"`
	Category  string        `json:"category"`
	Theme     string        `json:"theme"`
	MemberIDs []json.Number `json:"member_ids"`
	Reasoning string        `json:"reasoning"`
}

// Propose запрашивает у модели разбиение на кластеры. Повторных
// попыток при невалидном ответе нет: это решает вызывающая сторона.
func (c *LLMClusterer) Propose(ctx context.Context, req domain.ClusterRequest) ([]domain.Cluster, error) {
	payload := make([]llmSubmissionPayload, 0, len(req.Submissions))
	idToParticipant := make(map[int]string, len(req.Submissions))
	for idx, sub := range req.Submissions {
		id := idx + 1
		idToParticipant[id] = sub.ParticipantID
		payload = append(payload, llmSubmissionPayload{
			ID:          id,
			Gender:      string(sub.Gender),
			Review:      truncate(sub.Review, 2000),
			DailyAnswer: truncate(sub.DailyAnswer, 1000),
		})
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal submissions: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0.4,
		Messages: []openai.ChatMessage{
			{Role: openai.RoleSystem, Content: systemPrompt},
			{Role: openai.RoleUser, Content: buildUserPrompt(req, string(body))},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai completion: пустой ответ")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	var parsed llmClusterResponse
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("распаковка ответа LLM: %w", err)
	}

	clusters := make([]domain.Cluster, 0, len(parsed.Clusters))
	for idx, raw := range parsed.Clusters {
		cluster := domain.Cluster{
			ID:        fmt.Sprintf("cluster-%d", idx+1),
			Name:      strings.TrimSpace(raw.Name),
			Emoji:     strings.TrimSpace(raw.Emoji),
			Category:  strings.TrimSpace(raw.Category),
			Theme:     strings.TrimSpace(raw.Theme),
			Reasoning: strings.TrimSpace(raw.Reasoning),
		}
		for _, ref := range raw.MemberIDs {
			id, err := ref.Int64()
			if err != nil {
				return nil, fmt.Errorf("кластер %d: нечисловой идентификатор %q", idx+1, ref.String())
			}
			participantID, ok := idToParticipant[int(id)]
			if !ok {
				return nil, fmt.Errorf("кластер %d: неизвестный идентификатор %d", idx+1, id)
			}
			cluster.MemberIDs = append(cluster.MemberIDs, participantID)
		}
		clusters = append(clusters, cluster)
	}
	return clusters, nil
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
