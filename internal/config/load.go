package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables and an optional
// config.yaml in the working directory. Environment variables use the EVAL_
// prefix and take precedence over file values. Returns a populated Config
// or an error if loading or validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("EVAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Keys without defaults are invisible to Unmarshal unless bound
	// explicitly.
	for _, key := range []string{"database.url", "auth.jwt_secret", "eval.gemini_api_key"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; env vars and defaults still apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers defaults for every setting that has a sensible one.
// Secrets (database URL, JWT secret, API keys) deliberately have no default.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("auth.token_lifetime_minutes", 60)

	v.SetDefault("eval.worker_count", 4)
	v.SetDefault("eval.queue_size", 256)
	v.SetDefault("eval.sync_wait_ms", 5000)
	v.SetDefault("eval.poll_interval_ms", 2000)
	v.SetDefault("eval.claim_ttl_ms", 30000)
	v.SetDefault("eval.stuck_job_minutes", 30)
	v.SetDefault("eval.model_name", "gemini-2.0-flash")
	v.SetDefault("eval.max_retries", 3)
	v.SetDefault("eval.retry_delay_seconds", 2)

	v.SetDefault("rate_limit.requests_per_minute", 60)
	v.SetDefault("rate_limit.action_limit", 10)
	v.SetDefault("rate_limit.action_window_sec", 60)
}
