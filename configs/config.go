package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
	PublicURL  string
}

// Quotas holds the process-wide default daily caps. A persona or account
// override replaces the matching value; zero disables the action kind.
type Quotas struct {
	MaxPostsPerDay      int `validate:"gte=0"`
	MaxLikesPerDay      int `validate:"gte=0"`
	MaxCommentsPerDay   int `validate:"gte=0"`
	MaxFollowsPerDay    int `validate:"gte=0"`
	MaxVideoPostsPerDay int `validate:"gte=0"`
	MaxStoriesPerDay    int `validate:"gte=0"`
	MaxReelsPerDay      int `validate:"gte=0"`
	MaxNSFWPostsPerDay  int `validate:"gte=0"`
}

type Scheduler struct {
	TickInterval      time.Duration `validate:"gt=0"`
	AnalyticsInterval time.Duration `validate:"gt=0"`
	DraftInterval     time.Duration `validate:"gt=0"`
	WorkerConcurrency int           `validate:"gte=1,lte=256"`
	AdapterTimeout    time.Duration `validate:"gt=0"`
	RetryCeiling      int           `validate:"gte=1"`
	MinActionDelay    time.Duration `validate:"gte=0"`
	MaxActionDelay    time.Duration `validate:"gtefield=MinActionDelay"`
	MaxActionsPerTick int           `validate:"gte=0"`
	MinDraftBacklog   int           `validate:"gte=0"`
}

type Twitter struct {
	ClientID     string
	ClientSecret string
}

type Google struct {
	ClientID     string
	ClientSecret string
}

type Config struct {
	PostgresURI   string `validate:"required"`
	RedisURI      string `validate:"required"`
	HTTPAddr      string `validate:"required"`
	SecretKey     string `validate:"required,len=32"`
	LogLevel      string `validate:"oneof=debug info warn error"`
	LogJSON       bool
	GeneratorURL  string
	FanvueAPIURL  string `validate:"omitempty,url"`
	// WebhookSecret, when set, must be sent as X-Webhook-Token by platform
	// webhooks.
	WebhookSecret string
	R2            R2
	Twitter       Twitter
	Google        Google
	Quotas        Quotas
	Scheduler     Scheduler
}

func LoadConfig() *Config {
	return &Config{
		PostgresURI:   getEnv("POSTGRES_URI", ""),
		RedisURI:      getEnv("REDIS_URI", "localhost:6379"),
		HTTPAddr:      getEnv("HTTP_ADDR", ":3000"),
		SecretKey:     getEnv("SECRET_KEY", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogJSON:       getEnvBool("LOG_JSON", false),
		GeneratorURL:  getEnv("GENERATOR_URL", ""),
		FanvueAPIURL:  getEnv("FANVUE_API_URL", "https://api.fanvue.com"),
		WebhookSecret: getEnv("WEBHOOK_SECRET", ""),
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
			PublicURL:  getEnv("R2_PUBLIC_URL", ""),
		},
		Twitter: Twitter{
			ClientID:     getEnv("TWITTER_CLIENT_ID", ""),
			ClientSecret: getEnv("TWITTER_CLIENT_SECRET", ""),
		},
		Google: Google{
			ClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
			ClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		},
		Quotas: Quotas{
			MaxPostsPerDay:      getEnvInt("MAX_POSTS_PER_DAY", 3),
			MaxLikesPerDay:      getEnvInt("MAX_LIKES_PER_DAY", 50),
			MaxCommentsPerDay:   getEnvInt("MAX_COMMENTS_PER_DAY", 20),
			MaxFollowsPerDay:    getEnvInt("MAX_FOLLOWS_PER_DAY", 20),
			MaxVideoPostsPerDay: getEnvInt("MAX_VIDEO_POSTS_PER_DAY", 1),
			MaxStoriesPerDay:    getEnvInt("MAX_STORIES_PER_DAY", 5),
			MaxReelsPerDay:      getEnvInt("MAX_REELS_PER_DAY", 2),
			MaxNSFWPostsPerDay:  getEnvInt("MAX_NSFW_POSTS_PER_DAY", 0),
		},
		Scheduler: Scheduler{
			TickInterval:      getEnvDuration("TICK_INTERVAL", time.Minute),
			AnalyticsInterval: getEnvDuration("ANALYTICS_INTERVAL", 6*time.Hour),
			DraftInterval:     getEnvDuration("DRAFT_INTERVAL", 30*time.Minute),
			WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 10),
			AdapterTimeout:    getEnvDuration("ADAPTER_TIMEOUT", 90*time.Second),
			RetryCeiling:      getEnvInt("RETRY_CEILING", 3),
			MinActionDelay:    getEnvDuration("MIN_ACTION_DELAY", 30*time.Second),
			MaxActionDelay:    getEnvDuration("MAX_ACTION_DELAY", 2*time.Minute),
			MaxActionsPerTick: getEnvInt("MAX_ACTIONS_PER_TICK", 6),
			MinDraftBacklog:   getEnvInt("MIN_DRAFT_BACKLOG", 3),
		},
	}
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}
