package main

import (
	"context"
	"flag"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"bookclub-matching/internal/adapters/clusterer"
	"bookclub-matching/internal/adapters/repo"
	"bookclub-matching/internal/adapters/strategy"
	"bookclub-matching/internal/domain"
	"bookclub-matching/internal/infra/config"
	"bookclub-matching/internal/infra/db"
	loginfra "bookclub-matching/internal/infra/log"
	"bookclub-matching/internal/infra/metrics"
	"bookclub-matching/internal/infra/openai"
	"bookclub-matching/internal/usecase/matching"
	"bookclub-matching/internal/usecase/roster"
)

// Скрипт обратной загрузки: прогоняет матчинг за диапазон дат.
// Уведомления не отправляются, уже существующие записи пропускаются,
// если не указан -force.
func main() {
	var (
		cohortID = flag.String("cohort", "", "идентификатор когорты")
		from     = flag.String("from", "", "первая дата (YYYY-MM-DD)")
		to       = flag.String("to", "", "последняя дата (YYYY-MM-DD), по умолчанию равна from")
		force    = flag.Bool("force", false, "удалить существующие записи перед запуском")
	)
	flag.Parse()

	if *cohortID == "" || *from == "" {
		log.Fatal().Msg("backfill: -cohort и -from обязательны")
	}
	if *to == "" {
		*to = *from
	}
	start, err := time.Parse(domain.DateLayout, *from)
	if err != nil {
		log.Fatal().Err(err).Msg("backfill: неверная дата -from")
	}
	end, err := time.Parse(domain.DateLayout, *to)
	if err != nil {
		log.Fatal().Err(err).Msg("backfill: неверная дата -to")
	}
	if end.Before(start) {
		log.Fatal().Msg("backfill: -to раньше -from")
	}

	cfg := config.Load()
	logger := loginfra.NewLogger(cfg.AppEnv).With().Str("component", "backfill").Logger()

	metrics.MustRegister(prometheus.DefaultRegisterer)

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("backfill: нет подключения к БД")
	}
	defer pool.Close()

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
		nil,
		logger,
	)

	ctx := context.Background()
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		date := day.Format(domain.DateLayout)
		report, err := service.Run(ctx, *cohortID, date, matching.RunOptions{
			Force:       *force,
			ConfirmedBy: string(domain.MatchingCauseBackfill),
		})
		if err != nil {
			logger.Error().Err(err).Str("date", date).Msg("день пропущен из-за ошибки")
			continue
		}
		logger.Info().
			Str("date", date).
			Str("result", string(report.Result)).
			Int("warnings", len(report.Warnings)).
			Msg("день обработан")
	}
}
