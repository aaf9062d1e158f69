package config

import (
	"fmt"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

type Config struct {
	ActiveCampaignURL   string `env:"ACTIVECAMPAIGN_URL,required=true"`
	ActiveCampaignToken string `env:"ACTIVECAMPAIGN_API_TOKEN,required=true"`
	DatabaseDSN         string `env:"DATABASE_DSN,required=true"`
	RabbitMQURL         string `env:"RABBITMQ_URL,required=true"`
	RedisURL            string `env:"REDIS_URL"`
	SenderName          string `env:"SENDER_NAME"`
	SenderEmail         string `env:"SENDER_EMAIL"`
	ReplyTo             string `env:"REPLY_TO"`
	RateLimitPerSec     int    `env:"RATE_LIMIT_PER_SEC,default=5"`
	WorkerConcurrency   int    `env:"WORKER_CONCURRENCY,default=4"`
	APIPort             int    `env:"API_PORT,default=8080"`
	LogLevel            string `env:"LOG_LEVEL,default=info"`
	CatalogCacheTTLSec  int    `env:"CATALOG_CACHE_TTL_SECONDS,default=60"`
}

func Load() (*Config, error) {
	// A local .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}
