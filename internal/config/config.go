package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config carries everything the server needs from the environment.
// Secrets have no defaults on purpose — main fails fast if they are missing.
type Config struct {
	Addr        string
	DatabaseDSN string
	RedisAddr   string
	JWTSecret   string
	SnapshotTTL time.Duration
	ChatCap     int
}

// Load reads a .env file if one exists, then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables directly")
	}

	cfg := &Config{
		Addr:        getEnv("ADDR", ":8080"),
		DatabaseDSN: os.Getenv("DB_DSN"),
		RedisAddr:   getEnv("REDIS_ADDR", "localhost:6379"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		SnapshotTTL: 24 * time.Hour,
		ChatCap:     100,
	}

	if ttl := os.Getenv("SNAPSHOT_TTL"); ttl != "" {
		d, err := time.ParseDuration(ttl)
		if err != nil {
			return nil, err
		}
		cfg.SnapshotTTL = d
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
