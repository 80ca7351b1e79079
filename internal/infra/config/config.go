package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	TZ     string `envconfig:"TZ" default:"Asia/Seoul"`
	Port   int    `envconfig:"PORT" default:"8080"`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	RabbitURL           string `envconfig:"RABBITMQ_URL"`
	RabbitManagementURL string `envconfig:"RABBITMQ_MANAGEMENT_URL"`

	// InternalSecret защищает админские эндпоинты и уведомления.
	InternalSecret string `envconfig:"INTERNAL_SERVICE_SECRET"`

	// NotifyURL — адрес сервиса доставки уведомлений о готовности матчинга.
	NotifyURL string `envconfig:"MATCHING_NOTIFY_URL"`

	OpenAI struct {
		APIKey  string        `envconfig:"OPENAI_API_KEY"`
		BaseURL string        `envconfig:"OPENAI_BASE_URL"`
		Model   string        `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
		Timeout time.Duration `envconfig:"OPENAI_TIMEOUT" default:"120s"`
	} `envconfig:""`

	Matching struct {
		// ScheduleHour — местный час планового запуска.
		ScheduleHour int `envconfig:"MATCHING_SCHEDULE_HOUR" default:"2"`
		// HistoryDays — окно защиты от повторов (1 в проде, до 3 при перезапусках).
		HistoryDays int    `envconfig:"MATCHING_HISTORY_DAYS" default:"1"`
		QueueDriver string `envconfig:"MATCHING_QUEUE_DRIVER" default:"redis"`
		QueueKey    string `envconfig:"MATCHING_QUEUE_KEY" default:"matching_jobs"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}

// Location возвращает часовой пояс матчинга.
func (c AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.TZ)
	if err != nil {
		return time.UTC
	}
	return loc
}
