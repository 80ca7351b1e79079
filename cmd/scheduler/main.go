package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"bookclub-matching/internal/adapters/clusterer"
	"bookclub-matching/internal/adapters/notifier"
	"bookclub-matching/internal/adapters/repo"
	"bookclub-matching/internal/adapters/strategy"
	"bookclub-matching/internal/domain"
	"bookclub-matching/internal/infra/cache"
	"bookclub-matching/internal/infra/config"
	"bookclub-matching/internal/infra/db"
	loginfra "bookclub-matching/internal/infra/log"
	"bookclub-matching/internal/infra/metrics"
	"bookclub-matching/internal/infra/openai"
	"bookclub-matching/internal/usecase/matching"
	"bookclub-matching/internal/usecase/roster"
)

func main() {
	cfg := config.Load()
	logger := loginfra.NewLogger(cfg.AppEnv).With().Str("component", "scheduler").Logger()
	loc := cfg.Location()

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, logger, fmt.Sprintf(":%d", cfg.Port))

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("scheduler: нет подключения к БД")
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	runOnce := cache.NewRedis(redisClient)

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

	logger.Info().Int("hour", cfg.Matching.ScheduleHour).Str("tz", cfg.TZ).Msg("scheduler запущен")

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("scheduler остановлен")
			return
		case now := <-ticker.C:
			local := now.In(loc)
			if local.Hour() != cfg.Matching.ScheduleHour {
				continue
			}
			date := domain.TargetDate(now, loc)
			// Ключ на дату защищает от повторного запуска в течение
			// часа и от дублей при нескольких репликах планировщика.
			err := runOnce.Once(ctx, "matching:scheduled:"+date, 24*time.Hour, func() error {
				summary, err := service.RunAll(ctx, date)
				if err != nil {
					return err
				}
				logger.Info().
					Str("date", date).
					Int("committed", summary.Committed).
					Int("skipped", summary.Skipped).
					Int("failed", summary.Failed).
					Msg("плановый матчинг завершён")
				return nil
			})
			if err != nil {
				logger.Error().Err(err).Str("date", date).Msg("плановый матчинг не выполнен")
			}
		}
	}
}
