package testutil

import (
	"os"
	"strconv"

	"github.com/pthm/rowguard/internal/cli"
)

// DatabaseConfig points the integration tests at an existing server.
type DatabaseConfig struct {
	// URL is the admin connection string. Empty means start a container.
	URL string
}

// GetDatabaseConfig reads an external database from the environment.
//
// DATABASE_URL wins. Otherwise DATABASE_HOST and the other DATABASE_*
// variables are assembled the same way rowguard.yaml's database section is.
// With neither set the config is empty and tests use testcontainers.
func GetDatabaseConfig() DatabaseConfig {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return DatabaseConfig{URL: url}
	}

	host := os.Getenv("DATABASE_HOST")
	if host == "" {
		return DatabaseConfig{}
	}

	cfg := cli.Config{Database: cli.DatabaseConfig{
		Host:     host,
		Port:     getEnvInt("DATABASE_PORT", 5432),
		Name:     getEnv("DATABASE_NAME", "postgres"),
		User:     getEnv("DATABASE_USER", "postgres"),
		Password: os.Getenv("DATABASE_PASSWORD"),
		SSLMode:  getEnv("DATABASE_SSLMODE", "prefer"),
	}}
	url, err := cfg.DSN()
	if err != nil {
		return DatabaseConfig{}
	}
	return DatabaseConfig{URL: url}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}
