package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

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
	loginfra "bookclub-matching/internal/infra/log"
	"bookclub-matching/internal/infra/metrics"
	"bookclub-matching/internal/infra/openai"
	"bookclub-matching/internal/infra/queue"
	"bookclub-matching/internal/usecase/matching"
	"bookclub-matching/internal/usecase/roster"
)

func main() {
	cfg := config.Load()
	logger := loginfra.NewLogger(cfg.AppEnv).With().Str("component", "worker").Logger()

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, logger, fmt.Sprintf(":%d", cfg.Port))

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("worker: нет подключения к БД")
	}
	defer pool.Close()

	jobs, err := buildQueue(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("worker: очередь задач не создана")
	}

	repoAdapter := repo.NewPostgres(pool)
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

	logger.Info().Str("queue", cfg.Matching.QueueKey).Msg("worker запущен")

	for {
		job, err := jobs.Pop(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				logger.Info().Msg("worker остановлен")
				return
			}
			logger.Error().Err(err).Msg("чтение задачи из очереди")
			continue
		}

		jobLog := logger.With().
			Str("job_id", job.ID).
			Str("cohort_id", job.CohortID).
			Str("date", job.Date).
			Str("cause", string(job.Cause)).
			Logger()

		report, err := service.Run(ctx, job.CohortID, job.Date, matching.RunOptions{
			Force:       job.Force,
			ConfirmedBy: string(job.Cause),
		})
		if err != nil {
			jobLog.Error().Err(err).Msg("задача завершилась ошибкой")
			continue
		}
		jobLog.Info().
			Str("result", string(report.Result)).
			Str("version", string(report.Version)).
			Int("warnings", len(report.Warnings)).
			Msg("задача выполнена")
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
