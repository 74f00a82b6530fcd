// Package config provides functionality for loading and accessing application configuration.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"norelock.dev/fetchx/backend/internal/models"
)

// ValidateAndFixConfig repairs recoverable settings in place and returns a
// warning for every change or suspicious value. Unrecoverable settings are
// rejected earlier by LoadConfig.
func ValidateAndFixConfig(config *Config) []string {
	var warnings []string

	// Check server timeouts
	minTimeout := 1 * time.Second
	maxTimeout := 5 * time.Minute

	if config.Server.ReadTimeout < minTimeout {
		warnings = append(warnings, fmt.Sprintf("Server read timeout is too short (%v), setting to %v", config.Server.ReadTimeout, minTimeout))
		config.Server.ReadTimeout = minTimeout
	} else if config.Server.ReadTimeout > maxTimeout {
		warnings = append(warnings, fmt.Sprintf("Server read timeout is too long (%v), setting to %v", config.Server.ReadTimeout, maxTimeout))
		config.Server.ReadTimeout = maxTimeout
	}

	// An aggregate page waits for the slowest provider attempt chain.
	if config.Server.WriteTimeout < minTimeout {
		warnings = append(warnings, fmt.Sprintf("Server write timeout is too short (%v), setting to %v", config.Server.WriteTimeout, minTimeout))
		config.Server.WriteTimeout = minTimeout
	} else if config.Server.WriteTimeout > maxTimeout {
		warnings = append(warnings, fmt.Sprintf("Server write timeout is too long (%v), setting to %v", config.Server.WriteTimeout, maxTimeout))
		config.Server.WriteTimeout = maxTimeout
	}

	if config.Server.IdleTimeout < minTimeout {
		warnings = append(warnings, fmt.Sprintf("Server idle timeout is too short (%v), setting to %v", config.Server.IdleTimeout, minTimeout))
		config.Server.IdleTimeout = minTimeout
	}

	if config.Server.ShutdownTimeout <= 0 {
		warnings = append(warnings, "Server shutdown timeout is not set, setting to 30s")
		config.Server.ShutdownTimeout = 30 * time.Second
	}

	// Check provider credentials
	for _, source := range models.Sources {
		p := config.Provider(source)
		if len(p.Keys) == 1 {
			warnings = append(warnings, fmt.Sprintf("Only one %s key is configured, rate-limited calls cannot rotate", source))
		}
		if p.MaxAttempts > len(p.Keys) {
			warnings = append(warnings, fmt.Sprintf("%s max_attempts (%d) exceeds the key count (%d), keys will be retried", source, p.MaxAttempts, len(p.Keys)))
		}
	}

	// Check Redis address
	if config.Rotation.Backend == "redis" {
		host, port, err := net.SplitHostPort(config.Redis.Address)
		switch {
		case err != nil:
			warnings = append(warnings, fmt.Sprintf("Invalid Redis address: %s", config.Redis.Address))
		case host == "":
			warnings = append(warnings, fmt.Sprintf("Redis address has empty host: %s", config.Redis.Address))
		case port == "":
			warnings = append(warnings, fmt.Sprintf("Redis address has empty port: %s", config.Redis.Address))
		}
	}

	// Check WebSocket keepalive
	if config.WebSocket.PongWait <= 0 {
		warnings = append(warnings, "WebSocket pong wait is not set, setting to 60s")
		config.WebSocket.PongWait = 60 * time.Second
	}
	if config.WebSocket.PingPeriod <= 0 || config.WebSocket.PingPeriod >= config.WebSocket.PongWait {
		period := config.WebSocket.PongWait * 9 / 10
		warnings = append(warnings, fmt.Sprintf("WebSocket ping period must be shorter than pong wait, setting to %v", period))
		config.WebSocket.PingPeriod = period
	}

	if config.Environment == "production" {
		for _, origin := range config.CORS.AllowedOrigins {
			if origin == "*" {
				warnings = append(warnings, "CORS allows every origin in production")
				break
			}
		}
	}

	// Check logging configuration
	validLevels := map[string]bool{
		"debug":  true,
		"info":   true,
		"warn":   true,
		"error":  true,
		"dpanic": true,
		"panic":  true,
		"fatal":  true,
	}

	if !validLevels[strings.ToLower(config.Logging.Level)] {
		warnings = append(warnings, fmt.Sprintf("Invalid logging level: %s, setting to 'info'", config.Logging.Level))
		config.Logging.Level = "info"
	}

	// Check if output paths exist
	for _, path := range config.Logging.OutputPaths {
		if path != "stdout" && path != "stderr" {
			dir := filepath.Dir(path)
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				warnings = append(warnings, fmt.Sprintf("Log output directory does not exist: %s", dir))
			}
		}
	}

	return warnings
}
