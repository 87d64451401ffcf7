package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port          string
	AllowedOrigin string
	RedisAddr     string
	RoomTTL       time.Duration
	DB            DBConfig
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

func (d DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

func Load() (*Config, error) {
	ttlSeconds, err := strconv.Atoi(getEnv("ROOM_TTL_SECONDS", "1800"))
	if err != nil || ttlSeconds <= 0 {
		return nil, fmt.Errorf("invalid ROOM_TTL_SECONDS: %q", os.Getenv("ROOM_TTL_SECONDS"))
	}

	cfg := &Config{
		Port:          getEnv("PORT", "3000"),
		AllowedOrigin: getEnv("ALLOWED_ORIGIN", "https://tabletrouble.com"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RoomTTL:       time.Duration(ttlSeconds) * time.Second,
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "spyx"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "spyx"),
		},
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
