package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App    AppConfig
	Collab CollabConfig
	Auth   AuthConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	WsLogFilePath      string
	CorsAllowedOrigins string
	RedisURL           string
}

// CollabConfig holds the client-side connection knobs. Timeouts follow the
// handshake contract: socket open and auth acknowledgment are bounded
// independently.
type CollabConfig struct {
	WsBaseURL     string
	OpenTimeout   time.Duration
	AuthTimeout   time.Duration
	RetryBase     time.Duration
	RetryAttempts int
}

type AuthConfig struct {
	JwtSecret       string
	TokenRefreshURL string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log"),
			WsLogFilePath:      getEnv("WS_LOG_FILE_PATH", "ws.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			RedisURL:           getEnv("REDIS_URL", ""),
		},
		Collab: CollabConfig{
			WsBaseURL:     getEnv("COLLAB_WS_URL", "ws://localhost:3000/ws"),
			OpenTimeout:   getEnvAsDuration("WS_OPEN_TIMEOUT", 10*time.Second),
			AuthTimeout:   getEnvAsDuration("WS_AUTH_TIMEOUT", 5*time.Second),
			RetryBase:     getEnvAsDuration("RETRY_BASE_DELAY", time.Second),
			RetryAttempts: getEnvAsInt("RETRY_MAX_ATTEMPTS", 3),
		},
		Auth: AuthConfig{
			JwtSecret:       getEnv("JWT_SECRET", ""),
			TokenRefreshURL: getEnv("TOKEN_REFRESH_URL", ""),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
