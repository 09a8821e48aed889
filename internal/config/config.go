package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

type Config struct {
	// Supabase
	SupabaseURL           string
	SupabaseServiceKey    string
	SupabaseJWTSecret     string
	SupabaseStorageBucket string

	// Database (optional: enables direct SQL, migrations and the change feed)
	DatabaseURL string

	// Field capture
	GeoTimeout        time.Duration
	StagingDir        string
	SyncSignalPath    string
	CameraBackDevice  string
	CameraFrontDevice string
	AudioDevice       string
	MaxUploadMB       int64
	SessionIdleTTL    time.Duration

	// Server
	Port        string
	Environment string
	BaseURL     string
	LogLevel    string
}

func Load() (*Config, error) {
	cfg := fromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadTooling reads the same environment for command line tools, which only
// need to reach the database.
func LoadTooling() (*Config, error) {
	cfg := fromEnv()
	if cfg.DatabaseURL == "" && (cfg.SupabaseURL == "" || cfg.SupabaseServiceKey == "") {
		return nil, fmt.Errorf("invalid configuration: DATABASE_URL or SUPABASE_URL and SUPABASE_SERVICE_KEY are required")
	}
	return cfg, nil
}

func fromEnv() *Config {
	return &Config{
		SupabaseURL:           getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey:    getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseJWTSecret:     getEnv("SUPABASE_JWT_SECRET", ""),
		SupabaseStorageBucket: getEnv("SUPABASE_STORAGE_BUCKET", "job-media"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		GeoTimeout:        getEnvDuration("GEO_TIMEOUT", 5*time.Second),
		StagingDir:        getEnv("STAGING_DIR", filepath.Join(os.TempDir(), "fieldjob-staging")),
		SyncSignalPath:    getEnv("SYNC_SIGNAL_PATH", ""),
		CameraBackDevice:  getEnv("CAMERA_BACK_DEVICE", "/dev/video0"),
		CameraFrontDevice: getEnv("CAMERA_FRONT_DEVICE", "/dev/video1"),
		AudioDevice:       getEnv("AUDIO_DEVICE", "default"),
		MaxUploadMB:       getEnvInt("MAX_UPLOAD_MB", 64),
		SessionIdleTTL:    getEnvDuration("SESSION_IDLE_TTL", 30*time.Minute),

		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		BaseURL:     getEnv("BASE_URL", "http://localhost:8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
	}
}

func (c *Config) Validate() error {
	if c.SupabaseURL == "" {
		return fmt.Errorf("SUPABASE_URL is required")
	}
	if c.SupabaseServiceKey == "" {
		return fmt.Errorf("SUPABASE_SERVICE_KEY is required")
	}
	if c.SupabaseJWTSecret == "" {
		return fmt.Errorf("SUPABASE_JWT_SECRET is required")
	}
	if c.GeoTimeout <= 0 {
		return fmt.Errorf("GEO_TIMEOUT must be positive")
	}
	if c.SessionIdleTTL <= 0 {
		return fmt.Errorf("SESSION_IDLE_TTL must be positive")
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}
