package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port            string
	Env             string
	CORSAllowOrigin []string
	ObjectStoreType string
	LocalStoreDir   string
	MinioEndpoint   string
	MinioBucket     string
	MinioRegion     string
	MinioAccessKey  string
	MinioSecretKey  string
	MinioUseSSL     bool
	LLMProvider     string
	LLMModel        string
	MaxUploadBytes  int64
	StageTimeout    time.Duration
	ChatHistoryMax  int
	ChatContextMax  int
	SessionStoreDir string
	WebDir          string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	return Config{
		Port:            getEnv("PORT", "8080"),
		Env:             normalizeEnv(getEnv("ENV", "dev")),
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		ObjectStoreType: normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:   getEnv("LOCAL_STORE_DIR", "./data"),
		MinioEndpoint:   getEnv("MINIO_ENDPOINT", ""),
		MinioBucket:     getEnv("MINIO_BUCKET", "analyzer-reports"),
		MinioRegion:     getEnv("MINIO_REGION", ""),
		MinioAccessKey:  getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey:  getEnv("MINIO_SECRET_KEY", ""),
		MinioUseSSL:     getBool("MINIO_USE_SSL", false),
		LLMProvider:     normalizeProvider(getEnv("LLM_PROVIDER", "command")),
		LLMModel:        getEnv("LLM_MODEL", "gpt-4o-mini"),
		MaxUploadBytes:  int64(getInt("MAX_UPLOAD_MB", 50)) << 20,
		StageTimeout:    time.Duration(getInt("STAGE_TIMEOUT_SECONDS", 120)) * time.Second,
		ChatHistoryMax:  getInt("CHAT_HISTORY_MAX", 20),
		ChatContextMax:  getInt("CHAT_CONTEXT_CHARS", 10000),
		SessionStoreDir: getEnv("SESSION_STORE_DIR", "./data/sessions"),
		WebDir:          getEnv("WEB_DIR", ""),
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func getBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return parsed
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "minio":
		return "minio"
	default:
		return "local"
	}
}

func normalizeProvider(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "openai":
		return "openai"
	default:
		return "command"
	}
}
