package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/lehigh-university-libraries/docscan/internal/raster"
)

// Config is read from the environment (and .env, loaded by the root command)
type Config struct {
	Port           string
	OutputDir      string
	MaxUploadBytes int64
	EnhanceWorkers int
	Enhancement    raster.Options
}

func Load() *Config {
	defaults := raster.DefaultOptions()
	return &Config{
		Port:           getEnv("PORT", "8888"),
		OutputDir:      getEnv("OUTPUT_DIR", filepath.Join(".", "finalized")),
		MaxUploadBytes: getEnvAsInt64("MAX_UPLOAD_MB", 10) * 1024 * 1024,
		EnhanceWorkers: getEnvAsInt("ENHANCE_WORKERS", runtime.NumCPU()),
		Enhancement: raster.Options{
			Grayscale:  getEnvAsBool("DEFAULT_GRAYSCALE", defaults.Grayscale),
			Sharpen:    getEnvAsBool("DEFAULT_SHARPEN", defaults.Sharpen),
			AutoAdjust: getEnvAsBool("DEFAULT_AUTO_ADJUST", defaults.AutoAdjust),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
