package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	ServerPort   string
	LogLevel     string
	LogFormat    string
	ClientOrigin string

	DatabaseType string
	DatabasePath string
	DatabaseURL  string

	JWTSecret  string
	CookieName string
	AnonCookie string
	Production bool

	DailySalt        string
	WordsAnswersFile string
	WordsAllowedFile string

	RedisAddr           string
	RedisPassword       string
	RedisDB             int
	LeaderboardCacheTTL time.Duration
	LeaderboardTopN     int

	ChainRPCURL          string
	FreezeContract       string
	FreezeTokenID        int64
	ChainTimeout         time.Duration
	WalletResolverURL    string
	ClaimSigningKey      string
	FreezeMilestone      int
	FreezeMaxConsecutive int

	NotifyBatchSize int
}

// Load reads configuration from environment variables with sensible defaults
func Load() *Config {
	return &Config{
		ServerPort:   getEnv("PORT", "5175"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogFormat:    getEnv("LOG_FORMAT", "json"),
		ClientOrigin: getEnv("CLIENT_ORIGIN", "http://localhost:5173"),

		DatabaseType: getEnv("DB_TYPE", "sqlite"),
		DatabasePath: getEnv("DB_PATH", "./data/framedl.db"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),

		JWTSecret:  getEnv("JWT_SECRET", "dev_secret_change_me"),
		CookieName: getEnv("COOKIE_NAME", "framedl_token"),
		AnonCookie: getEnv("ANON_COOKIE_NAME", "framedl_anon"),
		Production: os.Getenv("APP_ENV") == "production",

		DailySalt:        getEnv("DAILY_SALT", "local_dev_salt"),
		WordsAnswersFile: getEnv("WORDS_ANSWERS_FILE", ""),
		WordsAllowedFile: getEnv("WORDS_ALLOWED_FILE", ""),

		RedisAddr:           getEnv("REDIS_ADDR", ""),
		RedisPassword:       getEnv("REDIS_PASSWORD", ""),
		RedisDB:             getEnvInt("REDIS_DB", 0),
		LeaderboardCacheTTL: getEnvDuration("LEADERBOARD_CACHE_TTL", 5*time.Minute),
		LeaderboardTopN:     getEnvInt("LEADERBOARD_TOP_N", 10),

		ChainRPCURL:          getEnv("CHAIN_RPC_URL", ""),
		FreezeContract:       getEnv("FREEZE_CONTRACT_ADDRESS", ""),
		FreezeTokenID:        int64(getEnvInt("FREEZE_TOKEN_ID", 1)),
		ChainTimeout:         getEnvDuration("CHAIN_TIMEOUT", 5*time.Second),
		WalletResolverURL:    getEnv("WALLET_RESOLVER_URL", ""),
		ClaimSigningKey:      getEnv("CLAIM_SIGNING_KEY", "dev_claim_key"),
		FreezeMilestone:      getEnvInt("FREEZE_MILESTONE_INTERVAL", 100),
		FreezeMaxConsecutive: getEnvInt("FREEZE_MAX_CONSECUTIVE", 7),

		NotifyBatchSize: getEnvInt("NOTIFY_BATCH_SIZE", 100),
	}
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("5s") or plain seconds ("5").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return defaultValue
}
