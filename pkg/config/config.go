package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort        string
	FirebaseProject   string
	Environment       string
	StorageBucket     string
	StorageBaseURL    string
	StockPollInterval time.Duration
}

func Load() (*Config, error) {
	godotenv.Load()

	config := &Config{
		ServerPort:        getEnv("SERVER_PORT", "8080"),
		FirebaseProject:   getEnv("FIREBASE_PROJECT_ID", ""),
		Environment:       getEnv("ENVIRONMENT", "development"),
		StorageBucket:     getEnv("STORAGE_BUCKET", ""),
		StorageBaseURL:    getEnv("STORAGE_BASE_URL", ""),
		StockPollInterval: time.Duration(getEnvAsInt64("STOCK_POLL_INTERVAL_SECONDS", 30)) * time.Second,
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err == nil {
			return intValue
		}
	}
	return defaultValue
}
