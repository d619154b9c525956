package config

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds all configuration fields for the application.
type Config struct {
	Port                string
	DatabaseURL         string
	EvolutionBaseURL    string
	EvolutionAPIKey     string
	OpenAIAPIKey        string
	RabbitMQURL         string
	RabbitMQQueue       string
	RabbitMQQueuePrefix string
	LogLevel            string
	LogFormat           string
	WebhookPath         string
}

// LoadConfig loads configuration from environment variables. A .env file is
// loaded when present; real environment variables take precedence.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		Port:                os.Getenv("PORT"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		EvolutionBaseURL:    os.Getenv("EVOLUTION_API_URL"),
		EvolutionAPIKey:     os.Getenv("EVOLUTION_API_KEY"),
		OpenAIAPIKey:        os.Getenv("OPENAI_API_KEY"),
		RabbitMQURL:         os.Getenv("RABBITMQ_URL"),
		RabbitMQQueue:       os.Getenv("RABBITMQ_QUEUE"),
		RabbitMQQueuePrefix: os.Getenv("RABBITMQ_QUEUE_PREFIX"),
		LogLevel:            os.Getenv("LOG_LEVEL"),
		LogFormat:           os.Getenv("LOG_FORMAT"),
		WebhookPath:         os.Getenv("WEBHOOK_PATH"),
	}

	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "evosync.db"
		log.Info().Str("database_url", cfg.DatabaseURL).Msg("DATABASE_URL not set, using local SQLite file")
	}
	if cfg.WebhookPath == "" {
		cfg.WebhookPath = "/webhooks"
		log.Info().Str("path", cfg.WebhookPath).Msg("WEBHOOK_PATH not set, using default")
	}
	if cfg.RabbitMQQueue == "" {
		cfg.RabbitMQQueue = "evolution_events"
	}
	if cfg.RabbitMQQueuePrefix == "" {
		cfg.RabbitMQQueuePrefix = "evosync"
	}

	return cfg, nil
}
