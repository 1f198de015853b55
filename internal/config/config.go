package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	CORS     CORSConfig
	Log      LogConfig
	Engine   EngineConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port string
	Host string
	Addr string // Combined host:port for convenience
}

// DatabaseConfig holds database-specific configuration
type DatabaseConfig struct {
	Path string
}

// CORSConfig holds CORS-specific configuration
type CORSConfig struct {
	AllowedOrigins []string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string
}

// EngineConfig holds the tunables of the rebalancing and performance engine.
// It is read from a TOML file; every field has a default.
type EngineConfig struct {
	Tax         TaxConfig         `toml:"tax"`
	Performance PerformanceConfig `toml:"performance"`
	RateLimit   RateLimitConfig   `toml:"ratelimit"`
}

// TaxConfig holds the estimated rates used by the tax-aware selector.
type TaxConfig struct {
	ShortTermRate float64 `toml:"short_term_rate"`
	LongTermRate  float64 `toml:"long_term_rate"`
	LongTermDays  int     `toml:"long_term_days"`
}

// PerformanceConfig holds performance report and snapshot settings.
type PerformanceConfig struct {
	BenchmarkTicker  string `toml:"benchmark_ticker"`
	SnapshotSchedule string `toml:"snapshot_schedule"` // cron expression with seconds
}

// RateLimitConfig holds per-client request limits for the HTTP API.
type RateLimitConfig struct {
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Burst             int     `toml:"burst"`
	IdleMinutes       int     `toml:"idle_minutes"` // limiters unused this long are dropped
}

// DefaultEngineConfig returns the engine configuration used when no file is present.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Tax: TaxConfig{
			ShortTermRate: 0.37,
			LongTermRate:  0.15,
			LongTermDays:  365,
		},
		Performance: PerformanceConfig{
			SnapshotSchedule: "0 30 2 * * *",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 10,
			Burst:             20,
			IdleMinutes:       10,
		},
	}
}

// Load reads configuration from environment variables, the .env file and
// the optional engine TOML file named by ENGINE_CONFIG.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "5001"),
			Host: getEnv("SERVER_HOST", "localhost"),
		},
		Database: DatabaseConfig{
			Path: getEnv("DB_PATH", "./data/portfolio.db"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost")),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	// Combine host and port
	config.Server.Addr = fmt.Sprintf("%s:%s", config.Server.Host, config.Server.Port)

	engine, err := LoadEngine(getEnv("ENGINE_CONFIG", "./engine.toml"))
	if err != nil {
		return nil, err
	}
	if v := os.Getenv("BENCHMARK_TICKER"); v != "" {
		engine.Performance.BenchmarkTicker = v
	}
	if v := os.Getenv("SNAPSHOT_SCHEDULE"); v != "" {
		engine.Performance.SnapshotSchedule = v
	}
	config.Engine = engine

	return config, nil
}

// LoadEngine reads the engine TOML file at path on top of the defaults.
// A missing file yields the defaults.
func LoadEngine(path string) (EngineConfig, error) {
	engine := DefaultEngineConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return engine, nil
	}
	if err != nil {
		return engine, fmt.Errorf("failed to read engine config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &engine); err != nil {
		return engine, fmt.Errorf("failed to parse engine config %s: %w", path, err)
	}
	if err := engine.Validate(); err != nil {
		return engine, fmt.Errorf("invalid engine config %s: %w", path, err)
	}
	return engine, nil
}

// Validate checks that rates are fractions and limits are positive.
func (e EngineConfig) Validate() error {
	if e.Tax.ShortTermRate < 0 || e.Tax.ShortTermRate > 1 {
		return fmt.Errorf("tax.short_term_rate must be within [0,1], got %v", e.Tax.ShortTermRate)
	}
	if e.Tax.LongTermRate < 0 || e.Tax.LongTermRate > 1 {
		return fmt.Errorf("tax.long_term_rate must be within [0,1], got %v", e.Tax.LongTermRate)
	}
	if e.Tax.LongTermDays <= 0 {
		return fmt.Errorf("tax.long_term_days must be positive, got %d", e.Tax.LongTermDays)
	}
	if e.RateLimit.RequestsPerSecond <= 0 || e.RateLimit.Burst <= 0 {
		return fmt.Errorf("ratelimit.requests_per_second and ratelimit.burst must be positive")
	}
	if e.RateLimit.IdleMinutes <= 0 {
		return fmt.Errorf("ratelimit.idle_minutes must be positive, got %d", e.RateLimit.IdleMinutes)
	}
	return nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
