package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"     validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database"   validate:"required"`
	Auth      AuthConfig      `mapstructure:"auth"       validate:"required"`
	Eval      EvalConfig      `mapstructure:"eval"       validate:"required"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// AuthConfig contains authentication settings. API keys are stored as
// bcrypt hashes keyed by the calling service's name.
type AuthConfig struct {
	JWTSecret     string            `mapstructure:"jwt_secret" validate:"required,min=32"`
	APIKeyHashes  map[string]string `mapstructure:"api_key_hashes"`
	TokenLifetime int               `mapstructure:"token_lifetime_minutes" validate:"gte=0"`
}

// EvalConfig contains settings for the evaluation pipeline: the worker pool,
// the bounded synchronous wait, and the Gemini-backed evaluator.
type EvalConfig struct {
	WorkerCount       int    `mapstructure:"worker_count"         validate:"required,gt=0"`
	QueueSize         int    `mapstructure:"queue_size"           validate:"required,gt=0"`
	SyncWaitMs        int    `mapstructure:"sync_wait_ms"         validate:"required,gt=0"`
	PollIntervalMs    int    `mapstructure:"poll_interval_ms"     validate:"required,gt=0"`
	ClaimTTLMs        int    `mapstructure:"claim_ttl_ms"         validate:"required,gt=0"`
	StuckJobMinutes   int    `mapstructure:"stuck_job_minutes"    validate:"required,gt=0"`
	GeminiAPIKey      string `mapstructure:"gemini_api_key"`
	ModelName         string `mapstructure:"model_name"`
	MaxRetries        int    `mapstructure:"max_retries"          validate:"gte=0"`
	RetryDelaySeconds int    `mapstructure:"retry_delay_seconds"  validate:"gte=0"`
}

// RateLimitConfig contains the fixed-window settings for both limiter
// instances: the credential-scoped front door and the per-user-per-action
// limiter used by low-value endpoints.
type RateLimitConfig struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute" validate:"required,gt=0"`
	ActionLimit       int `mapstructure:"action_limit"        validate:"required,gt=0"`
	ActionWindowSec   int `mapstructure:"action_window_sec"   validate:"required,gt=0"`
}
