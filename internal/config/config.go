package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Environment
	Environment string // "development" or "production"
	LogLevel    string

	// HTTP
	HTTPAddr  string
	JWTSecret string

	// Storage
	StorageType string // "memory" or "sqlite"
	DataDir     string
	DBPath      string

	// Spin rules
	SpinCost             int64
	SpinCooldown         time.Duration
	GeofenceRadiusMeters float64
	GeoBypassPhone       string
	GeoBypassEnabled     bool
	RegistrationBonus    int64

	// Referral rules
	ReferralPoints      int64
	ReferralMaxPerMonth int
	ReferralWorkers     int

	// Recent wins feed
	RecentWinsCapacity int
	RedisAddr          string
	RedisPassword      string

	// Elasticsearch spin index (optional)
	ElasticsearchURL       string
	ElasticsearchUsername  string
	ElasticsearchPassword  string
	ElasticsearchIndex     string
	ElasticsearchRetention time.Duration

	// Discord win announcements (optional)
	DiscordToken         string
	DiscordWinsChannelID string
}

// Load reads the configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	dataDir := getEnvWithDefault("DATA_DIR", filepath.Join(wd, "data"))

	cfg := &Config{
		Environment: getEnvWithDefault("ENVIRONMENT", "development"),
		LogLevel:    getEnvWithDefault("LOG_LEVEL", "INFO"),

		HTTPAddr:  getEnvWithDefault("HTTP_ADDR", ":3000"),
		JWTSecret: os.Getenv("JWT_SECRET"),

		StorageType: strings.ToLower(getEnvWithDefault("STORAGE_TYPE", "sqlite")),
		DataDir:     dataDir,
		DBPath:      getEnvWithDefault("DB_PATH", filepath.Join(dataDir, "clubwheel.db")),

		GeoBypassPhone: os.Getenv("GEO_BYPASS_PHONE"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		ElasticsearchURL:      os.Getenv("ELASTICSEARCH_URL"),
		ElasticsearchUsername: os.Getenv("ELASTICSEARCH_USERNAME"),
		ElasticsearchPassword: os.Getenv("ELASTICSEARCH_PASSWORD"),
		ElasticsearchIndex:    getEnvWithDefault("ELASTICSEARCH_INDEX", "clubwheel_spins"),

		DiscordToken:         os.Getenv("DISCORD_TOKEN"),
		DiscordWinsChannelID: os.Getenv("DISCORD_WINS_CHANNEL_ID"),
	}

	parsers := []error{
		parseInt64("SPIN_COST", 20, &cfg.SpinCost),
		parseDuration("SPIN_COOLDOWN", 23*time.Second, &cfg.SpinCooldown),
		parseFloat("GEOFENCE_RADIUS_M", 200, &cfg.GeofenceRadiusMeters),
		parseBool("GEO_BYPASS_ENABLED", false, &cfg.GeoBypassEnabled),
		parseInt64("REGISTRATION_BONUS", 15, &cfg.RegistrationBonus),
		parseInt64("REFERRAL_POINTS", 50, &cfg.ReferralPoints),
		parseInt("REFERRAL_MAX_PER_MONTH", 20, &cfg.ReferralMaxPerMonth),
		parseInt("REFERRAL_WORKERS", 2, &cfg.ReferralWorkers),
		parseInt("RECENT_WINS_CAPACITY", 10, &cfg.RecentWinsCapacity),
		parseDuration("ELASTICSEARCH_RETENTION", 90*24*time.Hour, &cfg.ElasticsearchRetention),
	}
	for _, err := range parsers {
		if err != nil {
			return nil, err
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.StorageType == "sqlite" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	return cfg, nil
}

// validate checks if the configuration is usable
func (c *Config) validate() error {
	if c.StorageType != "memory" && c.StorageType != "sqlite" {
		return fmt.Errorf("STORAGE_TYPE must be memory or sqlite, got %q", c.StorageType)
	}
	if c.SpinCost <= 0 {
		return fmt.Errorf("SPIN_COST must be positive")
	}
	if c.SpinCooldown <= 0 {
		return fmt.Errorf("SPIN_COOLDOWN must be positive")
	}
	if c.GeofenceRadiusMeters <= 0 {
		return fmt.Errorf("GEOFENCE_RADIUS_M must be positive")
	}
	if c.GeoBypassEnabled && c.GeoBypassPhone == "" {
		return fmt.Errorf("GEO_BYPASS_PHONE is required when GEO_BYPASS_ENABLED is set")
	}
	if c.ReferralMaxPerMonth < 0 {
		return fmt.Errorf("REFERRAL_MAX_PER_MONTH cannot be negative")
	}
	if c.ReferralWorkers < 1 {
		return fmt.Errorf("REFERRAL_WORKERS must be at least 1")
	}
	if c.ElasticsearchRetention <= 0 {
		return fmt.Errorf("ELASTICSEARCH_RETENTION must be positive")
	}
	if c.RecentWinsCapacity < 1 {
		return fmt.Errorf("RECENT_WINS_CAPACITY must be at least 1")
	}
	if !c.IsDevelopment() && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required outside development")
	}
	return nil
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// getEnvWithDefault returns environment variable value or default if not set
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt64(key string, def int64, dst *int64) error {
	raw := os.Getenv(key)
	if raw == "" {
		*dst = def
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func parseInt(key string, def int, dst *int) error {
	var v int64
	if err := parseInt64(key, int64(def), &v); err != nil {
		return err
	}
	*dst = int(v)
	return nil
}

func parseFloat(key string, def float64, dst *float64) error {
	raw := os.Getenv(key)
	if raw == "" {
		*dst = def
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func parseBool(key string, def bool, dst *bool) error {
	raw := os.Getenv(key)
	if raw == "" {
		*dst = def
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

// parseDuration accepts Go duration strings ("23s") or a bare number of seconds
func parseDuration(key string, def time.Duration, dst *time.Duration) error {
	raw := os.Getenv(key)
	if raw == "" {
		*dst = def
		return nil
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		*dst = time.Duration(secs) * time.Second
		return nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}
