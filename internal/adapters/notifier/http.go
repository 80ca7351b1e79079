package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"bookclub-matching/internal/domain"
	"bookclub-matching/internal/infra/metrics"
)

// HTTPNotifier сообщает сервису доставки о готовности матчинга.
// Доставка и повторы — ответственность той стороны.
type HTTPNotifier struct {
	client *http.Client
	url    string
	secret string
}

var _ domain.Notifier = (*HTTPNotifier)(nil)

// NewHTTP создаёт нотификатор.
func NewHTTP(url, secret string) *HTTPNotifier {
	return &HTTPNotifier{
		client: &http.Client{Timeout: 10 * time.Second},
		url:    url,
		secret: secret,
	}
}

type matchingReadyPayload struct {
	CohortID string `json:"cohortId"`
	Date     string `json:"date"`
}

// MatchingReady отправляет сигнал {cohortId, date}.
func (n *HTTPNotifier) MatchingReady(ctx context.Context, cohortID, date string) error {
	if n.url == "" {
		return nil
	}
	body, err := json.Marshal(matchingReadyPayload{CohortID: cohortID, Date: date})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.secret != "" {
		req.Header.Set("X-Internal-Secret", n.secret)
	}

	start := time.Now()
	resp, err := n.client.Do(req)
	metrics.ObserveNetworkRequest("notifier", "matching_ready", cohortID, start, err)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("notify failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return nil
}
