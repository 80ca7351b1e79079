package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"bookclub-matching/internal/adapters/clusterer"
	"bookclub-matching/internal/adapters/notifier"
	"bookclub-matching/internal/adapters/repo"
	"bookclub-matching/internal/adapters/strategy"
	"bookclub-matching/internal/domain"
	"bookclub-matching/internal/infra/config"
	"bookclub-matching/internal/infra/db"
	httpinfra "bookclub-matching/internal/infra/http"
	loginfra "bookclub-matching/internal/infra/log"
	"bookclub-matching/internal/infra/metrics"
	"bookclub-matching/internal/infra/openai"
	"bookclub-matching/internal/infra/queue"
	"bookclub-matching/internal/usecase/matching"
	"bookclub-matching/internal/usecase/roster"
)

func main() {
	cfg := config.Load()
	logger := loginfra.NewLogger(cfg.AppEnv).With().Str("component", "api").Logger()
	loc := cfg.Location()

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("api: нет подключения к БД")
	}
	defer pool.Close()

	repoAdapter := repo.NewPostgres(pool)
	jobs, err := buildQueue(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("api: очередь задач не создана")
	}

	openaiClient := openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Timeout)
	llm := clusterer.NewLLM(openaiClient, cfg.OpenAI.Model, cfg.OpenAI.Timeout)
	loader := roster.NewLoader(repoAdapter, repoAdapter, repoAdapter, logger, cfg.Matching.HistoryDays)
	service := matching.NewService(
		repoAdapter,
		loader,
		[]domain.Strategy{strategy.NewRandom(), strategy.NewCluster(llm)},
		repoAdapter,
		repoAdapter,
		notifier.NewHTTP(cfg.NotifyURL, cfg.InternalSecret),
		logger,
	)

	srv := httpinfra.NewServer(logger)
	srv.Router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpinfra.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	srv.Router.Group(func(protected chi.Router) {
		protected.Use(httpinfra.InternalAuthMiddleware(cfg.InternalSecret))

		// Запуск уходит в очередь: матчинг с LLM может идти минуты.
		protected.Post("/api/v1/matching/run", func(w http.ResponseWriter, r *http.Request) {
			var body runRequest
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				httpinfra.WriteError(w, http.StatusBadRequest, fmt.Errorf("разбор тела запроса: %w", err))
				return
			}
			if body.CohortID == "" {
				httpinfra.WriteError(w, http.StatusBadRequest, errors.New("cohortId обязателен"))
				return
			}
			job := domain.MatchingJob{
				ID:          uuid.NewString(),
				CohortID:    body.CohortID,
				Date:        defaultDate(body.Date, loc),
				Force:       body.Force,
				RequestedAt: time.Now().UTC(),
				Cause:       domain.MatchingCauseManual,
			}
			if err := jobs.Enqueue(r.Context(), job); err != nil {
				httpinfra.WriteError(w, http.StatusInternalServerError, err)
				return
			}
			httpinfra.WriteJSON(w, http.StatusAccepted, map[string]string{
				"status": "queued",
				"jobId":  job.ID,
				"date":   job.Date,
			})
		})

		protected.Post("/api/v1/matching/preview", func(w http.ResponseWriter, r *http.Request) {
			var body runRequest
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				httpinfra.WriteError(w, http.StatusBadRequest, fmt.Errorf("разбор тела запроса: %w", err))
				return
			}
			if body.CohortID == "" {
				httpinfra.WriteError(w, http.StatusBadRequest, errors.New("cohortId обязателен"))
				return
			}
			date := defaultDate(body.Date, loc)
			entry, warnings, err := service.Preview(r.Context(), body.CohortID, date)
			if err != nil {
				httpinfra.WriteError(w, statusFor(err), err)
				return
			}
			httpinfra.WriteJSON(w, http.StatusOK, previewResponse{Date: date, Entry: entry, Warnings: warnings})
		})

		protected.Post("/api/v1/matching/run-all", func(w http.ResponseWriter, r *http.Request) {
			var body struct {
				Date string `json:"date"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				httpinfra.WriteError(w, http.StatusBadRequest, fmt.Errorf("разбор тела запроса: %w", err))
				return
			}
			summary, err := service.RunAll(r.Context(), defaultDate(body.Date, loc))
			if err != nil {
				httpinfra.WriteError(w, http.StatusInternalServerError, err)
				return
			}
			httpinfra.WriteJSON(w, http.StatusOK, summary)
		})

		protected.Get("/api/v1/matching/{cohortID}/{date}", func(w http.ResponseWriter, r *http.Request) {
			cohortID := chi.URLParam(r, "cohortID")
			date := chi.URLParam(r, "date")
			entries, err := repoAdapter.GetEntries(r.Context(), cohortID, []string{date})
			if err != nil {
				httpinfra.WriteError(w, statusFor(err), err)
				return
			}
			entry, ok := entries[date]
			if !ok {
				httpinfra.WriteError(w, http.StatusNotFound, fmt.Errorf("нет результата за %s", date))
				return
			}
			httpinfra.WriteJSON(w, http.StatusOK, entry)
		})
	})

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("api: остановка сервера не завершилась корректно")
		}
	}()

	if err := srv.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("api: сервер остановился с ошибкой")
	}
}

type runRequest struct {
	CohortID string `json:"cohortId"`
	Date     string `json:"date"`
	Force    bool   `json:"force"`
}

type previewResponse struct {
	Date     string               `json:"date"`
	Entry    domain.MatchingEntry `json:"entry"`
	Warnings []string             `json:"warnings,omitempty"`
}

func defaultDate(date string, loc *time.Location) string {
	if date != "" {
		return date
	}
	return domain.TargetDate(time.Now(), loc)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrCohortNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNoProviders), errors.Is(err, domain.ErrNoViewers):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func buildQueue(cfg config.AppConfig) (domain.MatchingQueue, error) {
	switch cfg.Matching.QueueDriver {
	case "rabbitmq":
		return queue.NewRabbitMatchingQueue(cfg.RabbitURL, cfg.RabbitManagementURL, cfg.Matching.QueueKey)
	default:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return queue.NewRedisMatchingQueue(client, cfg.Matching.QueueKey), nil
	}
}
