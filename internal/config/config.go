package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	Groq      GroqConfig
	Fal       FalConfig
	Suno      SunoConfig
	R2        R2Config
	Zitadel   ZitadelConfig
	Gateway   GatewayConfig
	Pipeline  PipelineConfig
	Retry     RetryConfig
}

type ServerConfig struct {
	Port      string
	Env       string
	LogLevel  string
	ApiDomain string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration int // hours
}

type RateLimitConfig struct {
	GeneratePerHour int
	PollPerMin      int
}

type GroqConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
}

// FalConfig configures the image provider. An empty APIKey is a valid
// "feature disabled" state: artwork stages produce empty URLs instead of
// failing the record.
type FalConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type SunoConfig struct {
	APIKey  string
	BaseURL string
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

type ZitadelConfig struct {
	Domain   string
	ClientID string
	Issuer   string
}

type GatewayConfig struct {
	Enabled bool
}

// PipelineConfig holds the tunables of the stage executor and status poller.
type PipelineConfig struct {
	PollInterval   time.Duration // scheduler cadence for the poll task
	PollCooldown   time.Duration // min gap between checks of one song
	PollGrace      time.Duration // skip songs younger than this unless forced
	AudioTimeout   time.Duration // absolute ceiling from submission to failure
	BatchSize      int           // songs polled concurrently per batch
	BatchDelay     time.Duration // pause between batches
	StylePromptMax int           // character budget for the audio style prompt
	WaitCeiling    time.Duration // synchronous wait-for-audio ceiling
	ListLimit      int           // max in-flight songs scanned per cycle
}

// RetryConfig parameterizes the shared retry policy for external calls.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("GROQ_API_KEY")
	readSecret("FAL_API_KEY")
	readSecret("SUNO_API_KEY")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")
	readSecret("ZITADEL_CLIENT_ID")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("server.api_domain", "API_DOMAIN")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("jwt.secret", "JWT_SECRET")
	_ = viper.BindEnv("jwt.expiration", "JWT_EXPIRATION")
	_ = viper.BindEnv("groq.api_key", "GROQ_API_KEY")
	_ = viper.BindEnv("groq.base_url", "GROQ_BASE_URL")
	_ = viper.BindEnv("groq.model", "GROQ_MODEL")
	_ = viper.BindEnv("groq.max_tokens", "GROQ_MAX_TOKENS")
	_ = viper.BindEnv("groq.temperature", "GROQ_TEMPERATURE")
	_ = viper.BindEnv("fal.api_key", "FAL_API_KEY")
	_ = viper.BindEnv("fal.base_url", "FAL_BASE_URL")
	_ = viper.BindEnv("fal.model", "FAL_MODEL")
	_ = viper.BindEnv("suno.api_key", "SUNO_API_KEY")
	_ = viper.BindEnv("suno.base_url", "SUNO_BASE_URL")
	_ = viper.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = viper.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = viper.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = viper.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")
	_ = viper.BindEnv("r2.public_url", "R2_PUBLIC_URL")
	_ = viper.BindEnv("zitadel.domain", "ZITADEL_DOMAIN")
	_ = viper.BindEnv("zitadel.client_id", "ZITADEL_CLIENT_ID")
	_ = viper.BindEnv("zitadel.issuer", "ZITADEL_ISSUER")
	_ = viper.BindEnv("gateway.enabled", "GATEWAY_ENABLED")
	_ = viper.BindEnv("ratelimit.generate_per_hour", "RATELIMIT_GENERATE_PER_HOUR")
	_ = viper.BindEnv("ratelimit.poll_per_min", "RATELIMIT_POLL_PER_MIN")
	_ = viper.BindEnv("pipeline.poll_interval", "PIPELINE_POLL_INTERVAL")
	_ = viper.BindEnv("pipeline.poll_cooldown", "PIPELINE_POLL_COOLDOWN")
	_ = viper.BindEnv("pipeline.poll_grace", "PIPELINE_POLL_GRACE")
	_ = viper.BindEnv("pipeline.audio_timeout", "PIPELINE_AUDIO_TIMEOUT")
	_ = viper.BindEnv("pipeline.batch_size", "PIPELINE_BATCH_SIZE")
	_ = viper.BindEnv("pipeline.batch_delay", "PIPELINE_BATCH_DELAY")
	_ = viper.BindEnv("pipeline.style_prompt_max", "PIPELINE_STYLE_PROMPT_MAX")
	_ = viper.BindEnv("pipeline.wait_ceiling", "PIPELINE_WAIT_CEILING")
	_ = viper.BindEnv("pipeline.list_limit", "PIPELINE_LIST_LIMIT")
	_ = viper.BindEnv("retry.max_attempts", "RETRY_MAX_ATTEMPTS")
	_ = viper.BindEnv("retry.base_delay", "RETRY_BASE_DELAY")
	_ = viper.BindEnv("retry.multiplier", "RETRY_MULTIPLIER")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.expiration", 24)
	viper.SetDefault("ratelimit.generate_per_hour", 10)
	viper.SetDefault("ratelimit.poll_per_min", 30)

	// Groq defaults
	viper.SetDefault("groq.base_url", "https://api.groq.com/openai/v1")
	viper.SetDefault("groq.model", "llama-3.3-70b-versatile")
	viper.SetDefault("groq.max_tokens", 2048)
	viper.SetDefault("groq.temperature", 0.8)

	// Fal defaults
	viper.SetDefault("fal.base_url", "https://fal.run")
	viper.SetDefault("fal.model", "fal-ai/flux/schnell")

	// Suno defaults
	viper.SetDefault("suno.base_url", "https://api.sunoapi.org")

	// Gateway defaults
	viper.SetDefault("gateway.enabled", false)

	// Pipeline defaults
	viper.SetDefault("pipeline.poll_interval", "30s")
	viper.SetDefault("pipeline.poll_cooldown", "20s")
	viper.SetDefault("pipeline.poll_grace", "30s")
	viper.SetDefault("pipeline.audio_timeout", "30m")
	viper.SetDefault("pipeline.batch_size", 5)
	viper.SetDefault("pipeline.batch_delay", "2s")
	viper.SetDefault("pipeline.style_prompt_max", 1000)
	viper.SetDefault("pipeline.wait_ceiling", "30s")
	viper.SetDefault("pipeline.list_limit", 200)

	// Retry defaults
	viper.SetDefault("retry.max_attempts", 3)
	viper.SetDefault("retry.base_delay", "500ms")
	viper.SetDefault("retry.multiplier", 2.0)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:      viper.GetString("server.port"),
			Env:       viper.GetString("server.env"),
			LogLevel:  viper.GetString("server.log_level"),
			ApiDomain: viper.GetString("server.api_domain"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:     viper.GetString("jwt.secret"),
			Expiration: viper.GetInt("jwt.expiration"),
		},
		RateLimit: RateLimitConfig{
			GeneratePerHour: viper.GetInt("ratelimit.generate_per_hour"),
			PollPerMin:      viper.GetInt("ratelimit.poll_per_min"),
		},
		Groq: GroqConfig{
			APIKey:      viper.GetString("groq.api_key"),
			BaseURL:     viper.GetString("groq.base_url"),
			Model:       viper.GetString("groq.model"),
			MaxTokens:   viper.GetInt("groq.max_tokens"),
			Temperature: viper.GetFloat64("groq.temperature"),
		},
		Fal: FalConfig{
			APIKey:  viper.GetString("fal.api_key"),
			BaseURL: viper.GetString("fal.base_url"),
			Model:   viper.GetString("fal.model"),
		},
		Suno: SunoConfig{
			APIKey:  viper.GetString("suno.api_key"),
			BaseURL: viper.GetString("suno.base_url"),
		},
		R2: R2Config{
			AccountID:       viper.GetString("r2.account_id"),
			AccessKeyID:     viper.GetString("r2.access_key_id"),
			SecretAccessKey: viper.GetString("r2.secret_access_key"),
			BucketName:      viper.GetString("r2.bucket_name"),
			PublicURL:       viper.GetString("r2.public_url"),
		},
		Zitadel: ZitadelConfig{
			Domain:   viper.GetString("zitadel.domain"),
			ClientID: viper.GetString("zitadel.client_id"),
			Issuer:   viper.GetString("zitadel.issuer"),
		},
		Gateway: GatewayConfig{
			Enabled: viper.GetBool("gateway.enabled"),
		},
		Pipeline: PipelineConfig{
			PollInterval:   viper.GetDuration("pipeline.poll_interval"),
			PollCooldown:   viper.GetDuration("pipeline.poll_cooldown"),
			PollGrace:      viper.GetDuration("pipeline.poll_grace"),
			AudioTimeout:   viper.GetDuration("pipeline.audio_timeout"),
			BatchSize:      viper.GetInt("pipeline.batch_size"),
			BatchDelay:     viper.GetDuration("pipeline.batch_delay"),
			StylePromptMax: viper.GetInt("pipeline.style_prompt_max"),
			WaitCeiling:    viper.GetDuration("pipeline.wait_ceiling"),
			ListLimit:      viper.GetInt("pipeline.list_limit"),
		},
		Retry: RetryConfig{
			MaxAttempts: viper.GetInt("retry.max_attempts"),
			BaseDelay:   viper.GetDuration("retry.base_delay"),
			Multiplier:  viper.GetFloat64("retry.multiplier"),
		},
	}

	return cfg, nil
}
