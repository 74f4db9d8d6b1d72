package config

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
)

type Config struct {
	LineChannelSecret      string `env:"LINE_CHANNEL_SECRET,required=true"`
	LineChannelAccessToken string `env:"LINE_CHANNEL_ACCESS_TOKEN,required=true"`

	GeminiAPIKey         string `env:"GEMINI_API_KEY,required=true"`
	GeminiAPIKeyFallback string `env:"GEMINI_API_KEY_FALLBACK"`
	GeminiModel          string `env:"GEMINI_MODEL,default=gemini-1.5-flash"`

	NotionAPIKey     string `env:"NOTION_API_KEY,required=true"`
	NotionDatabaseID string `env:"NOTION_DATABASE_ID,required=true"`

	DatabaseDSN string `env:"DATABASE_DSN,required=true"`
	RabbitMQURL string `env:"RABBITMQ_URL,required=true"`

	// RedisURL is optional: when empty, sessions live only in the process
	// cache and batch state does not survive restarts.
	RedisURL string `env:"REDIS_URL"`

	ImageArchiveURL string `env:"IMAGE_ARCHIVE_URL"`

	DailyCardLimit         int `env:"DAILY_CARD_LIMIT,default=50"`
	SessionTTLHours        int `env:"SESSION_TTL_HOURS,default=24"`
	CleanupIntervalMinutes int `env:"CLEANUP_INTERVAL_MINUTES,default=60"`
	MaxImageBytes          int `env:"MAX_IMAGE_BYTES,default=10485760"`
	WorkerConcurrency      int `env:"WORKER_CONCURRENCY,default=4"`
	APIPort                int `env:"API_PORT,default=8080"`

	LogLevel string `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// SessionTTL is the inactivity horizon for stored sessions; backend entries
// expire no sooner than this.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}

// CleanupInterval is how often the out-of-band session sweep runs.
func (c *Config) CleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalMinutes) * time.Minute
}
