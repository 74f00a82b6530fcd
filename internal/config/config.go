// Package config provides configuration management for the application.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"github.com/spf13/viper"
	"norelock.dev/fetchx/backend/internal/models"
)

// ProviderConfig holds the settings of one upstream provider.
type ProviderConfig struct {
	// Keys is the credential set. Comma-separated env values are split.
	Keys []string `mapstructure:"keys"`

	// BaseURL overrides the provider's public API root
	BaseURL string `mapstructure:"base_url"`

	// Timeout bounds a single upstream attempt
	Timeout time.Duration `mapstructure:"timeout"`

	// MaxAttempts bounds one call; zero means one attempt per key
	MaxAttempts int `mapstructure:"max_attempts"`
}

// Config holds all configuration for the application
type Config struct {
	// Environment is the application environment (development, staging, production)
	Environment string `mapstructure:"environment"`

	Server struct {
		Port            int           `mapstructure:"port"`
		Host            string        `mapstructure:"host"`
		ReadTimeout     time.Duration `mapstructure:"read_timeout"`
		WriteTimeout    time.Duration `mapstructure:"write_timeout"`
		IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
		// TrustProxy takes the client address from X-Forwarded-For and
		// X-Real-IP. Enable it only behind a proxy that sets them.
		TrustProxy bool `mapstructure:"trust_proxy"`
	} `mapstructure:"server"`

	Providers struct {
		Pexels   ProviderConfig `mapstructure:"pexels"`
		Unsplash ProviderConfig `mapstructure:"unsplash"`
		Pixabay  ProviderConfig `mapstructure:"pixabay"`
	} `mapstructure:"providers"`

	// Limits are the paging ceilings applied to count summaries
	Limits struct {
		UnsplashMaxPages int `mapstructure:"unsplash_max_pages"`
		UnsplashPerPage  int `mapstructure:"unsplash_per_page"`
		PixabayMaxItems  int `mapstructure:"pixabay_max_items"`
	} `mapstructure:"limits"`

	Aggregation struct {
		// Interleave is "shuffle" or "round_robin"
		Interleave      string `mapstructure:"interleave"`
		DefaultPerPage  int    `mapstructure:"default_per_page"`
		RelatedMaxPages int    `mapstructure:"related_max_pages"`
	} `mapstructure:"aggregation"`

	Rotation struct {
		// Backend is "memory" or "redis"
		Backend   string `mapstructure:"backend"`
		KeyPrefix string `mapstructure:"key_prefix"`
	} `mapstructure:"rotation"`

	Redis struct {
		Address      string        `mapstructure:"address"`
		Username     string        `mapstructure:"username"`
		Password     string        `mapstructure:"password"`
		Database     int           `mapstructure:"database"`
		MaxRetries   int           `mapstructure:"max_retries"`
		PoolSize     int           `mapstructure:"pool_size"`
		DialTimeout  time.Duration `mapstructure:"dial_timeout"`
		ReadTimeout  time.Duration `mapstructure:"read_timeout"`
		WriteTimeout time.Duration `mapstructure:"write_timeout"`
	} `mapstructure:"redis"`

	RateLimit struct {
		Enabled bool          `mapstructure:"enabled"`
		RPS     float64       `mapstructure:"rps"`
		Burst   int           `mapstructure:"burst"`
		IdleTTL time.Duration `mapstructure:"idle_ttl"`
	} `mapstructure:"ratelimit"`

	CORS struct {
		AllowedOrigins []string `mapstructure:"allowed_origins"`
	} `mapstructure:"cors"`

	WebSocket struct {
		MaxMessageSize int64         `mapstructure:"max_message_size"`
		WriteWait      time.Duration `mapstructure:"write_wait"`
		PongWait       time.Duration `mapstructure:"pong_wait"`
		PingPeriod     time.Duration `mapstructure:"ping_period"`
	} `mapstructure:"websocket"`

	Logging struct {
		Level            string   `mapstructure:"level"`
		OutputPaths      []string `mapstructure:"output_paths"`
		ErrorOutputPaths []string `mapstructure:"error_output_paths"`
	} `mapstructure:"logging"`
}

// Provider returns the configuration of the named provider.
func (c *Config) Provider(source models.Source) ProviderConfig {
	switch source {
	case models.SourcePexels:
		return c.Providers.Pexels
	case models.SourceUnsplash:
		return c.Providers.Unsplash
	default:
		return c.Providers.Pixabay
	}
}

// LoadConfig loads the configuration from a .env file, config files and the
// environment, in increasing order of precedence.
func LoadConfig() (*Config, error) {
	// A missing .env is normal outside local development
	_ = godotenv.Load()

	v := viper.New()

	// Set default values
	setDefaults(v)

	// Set configuration file name and paths
	v.SetConfigName("app")
	v.SetConfigType("yaml")

	// Check for config file path in environment
	configFile := os.Getenv("CONFIG_FILE")
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath("./configs")
		v.AddConfigPath("../configs")
		v.AddConfigPath("/etc/fetchx")
	}

	// Read the config file
	if err := v.ReadInConfig(); err != nil {
		// It's okay if config file doesn't exist
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Load environment-specific config
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	v.SetConfigName(fmt.Sprintf("app.%s", env))
	if err := v.MergeInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to merge environment config file: %w", err)
		}
	}

	// Override with environment variables
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindLegacyEnv(v); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.Environment = env
	normalizeKeys(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// bindLegacyEnv maps the variable names used by existing deployments.
func bindLegacyEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"providers.pexels.keys":   {"APP_PROVIDERS_PEXELS_KEYS", "PEXELS_API_KEYS"},
		"providers.unsplash.keys": {"APP_PROVIDERS_UNSPLASH_KEYS", "UNSPLASH_ACCESS_KEY"},
		"providers.pixabay.keys":  {"APP_PROVIDERS_PIXABAY_KEYS", "PIXABAY_API_KEYS"},
		"server.port":             {"APP_SERVER_PORT", "PORT"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return err
		}
	}
	return nil
}

// normalizeKeys splits comma-separated entries, trims them and drops empties
// and duplicates.
func normalizeKeys(config *Config) {
	for _, p := range []*ProviderConfig{
		&config.Providers.Pexels,
		&config.Providers.Unsplash,
		&config.Providers.Pixabay,
	} {
		p.Keys = SplitKeys(p.Keys...)
	}
}

// SplitKeys flattens comma-separated credential entries into a clean list.
func SplitKeys(entries ...string) []string {
	keys := lo.FlatMap(entries, func(entry string, _ int) []string {
		return strings.Split(entry, ",")
	})
	keys = lo.Map(keys, func(k string, _ int) string {
		return strings.TrimSpace(k)
	})
	return lo.Uniq(lo.Compact(keys))
}

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.trust_proxy", false)

	// Provider defaults
	for _, name := range []string{"pexels", "unsplash", "pixabay"} {
		v.SetDefault("providers."+name+".keys", []string{})
		v.SetDefault("providers."+name+".base_url", "")
		v.SetDefault("providers."+name+".timeout", "10s")
		v.SetDefault("providers."+name+".max_attempts", 0)
	}

	// Ceilings
	v.SetDefault("limits.unsplash_max_pages", 125)
	v.SetDefault("limits.unsplash_per_page", 30)
	v.SetDefault("limits.pixabay_max_items", 500)

	// Aggregation defaults
	v.SetDefault("aggregation.interleave", "shuffle")
	v.SetDefault("aggregation.default_per_page", 15)
	v.SetDefault("aggregation.related_max_pages", 5)

	// Rotation defaults
	v.SetDefault("rotation.backend", "memory")
	v.SetDefault("rotation.key_prefix", "fetchx:rotation")

	// Redis defaults
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.database", 0)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.pool_size", 20)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")

	// Inbound rate limit defaults
	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.rps", 10)
	v.SetDefault("ratelimit.burst", 30)
	v.SetDefault("ratelimit.idle_ttl", "10m")

	v.SetDefault("cors.allowed_origins", []string{"*"})

	// WebSocket defaults
	v.SetDefault("websocket.max_message_size", 8192)
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.ping_period", "54s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.output_paths", []string{"stdout"})
	v.SetDefault("logging.error_output_paths", []string{"stderr"})
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return errors.New("server port must be between 1 and 65535")
	}

	for _, source := range models.Sources {
		if len(config.Provider(source).Keys) == 0 {
			return fmt.Errorf("at least one %s API key must be provided", source)
		}
	}

	if config.Limits.UnsplashMaxPages <= 0 || config.Limits.UnsplashPerPage <= 0 || config.Limits.PixabayMaxItems <= 0 {
		return errors.New("provider limits must be positive")
	}

	switch config.Aggregation.Interleave {
	case "shuffle", "round_robin":
	default:
		return fmt.Errorf("unknown interleave policy %q", config.Aggregation.Interleave)
	}

	if config.Aggregation.DefaultPerPage <= 0 {
		return errors.New("aggregation default_per_page must be positive")
	}

	if config.Aggregation.RelatedMaxPages <= 0 {
		return errors.New("aggregation related_max_pages must be positive")
	}

	switch config.Rotation.Backend {
	case "memory":
	case "redis":
		if config.Redis.Address == "" {
			return errors.New("redis address must be set when rotation backend is redis")
		}
	default:
		return fmt.Errorf("unknown rotation backend %q", config.Rotation.Backend)
	}

	if config.RateLimit.Enabled && (config.RateLimit.RPS <= 0 || config.RateLimit.Burst <= 0) {
		return errors.New("rate limit rps and burst must be positive when enabled")
	}

	return nil
}

// GetConfigString returns a string representation of the configuration.
// Credentials are reported by count only.
func GetConfigString(config *Config) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Environment: %s\n", config.Environment))
	sb.WriteString(fmt.Sprintf("Server: %s:%d (trust proxy: %t)\n", config.Server.Host, config.Server.Port, config.Server.TrustProxy))
	for _, source := range models.Sources {
		sb.WriteString(fmt.Sprintf("Provider %s: %d keys\n", source, len(config.Provider(source).Keys)))
	}
	sb.WriteString(fmt.Sprintf("Rotation Backend: %s\n", config.Rotation.Backend))
	sb.WriteString(fmt.Sprintf("Interleave: %s\n", config.Aggregation.Interleave))
	sb.WriteString(fmt.Sprintf("Rate Limit: %t (%.1f rps, burst %d)\n", config.RateLimit.Enabled, config.RateLimit.RPS, config.RateLimit.Burst))

	return sb.String()
}
