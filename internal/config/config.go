package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          string
	AllowedOrigin string
	StaticDir     string
	// Assistant
	AssistantProvider string
	OpenAIAPIKey      string
	OpenAIModel       string
	OpenAIBaseURL     string
	GeminiAPIKey      string
	GeminiModel       string
	AssistantTimeout  time.Duration
	// Catalog
	CatalogBaseURL      string
	CatalogTimeout      time.Duration
	CatalogClientID     string
	CatalogClientSecret string
	CatalogTokenURL     string
	// Database: DB_URL selects Postgres, otherwise SQLite at DatabasePath
	DatabaseURL  string
	DatabasePath string
	// Matching
	FAQFile         string
	IntentRulesFile string
	Normalizer      string
	StopwordsFile   string
	// Conversation state; zero never expires
	SessionTTL time.Duration
	// History
	HistoryEnabled bool
	HistoryBuffer  int
}

// Load reads .env (if present) and the process environment.
func Load() Config {
	_ = godotenv.Load()
	return Config{
		Port:                getEnvDefault("PORT", "3000"),
		AllowedOrigin:       getEnvDefault("ALLOWED_ORIGIN", "*"),
		StaticDir:           os.Getenv("STATIC_DIR"),
		AssistantProvider:   strings.ToLower(getEnvDefault("ASSISTANT_PROVIDER", "openai")),
		OpenAIAPIKey:        os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:         getEnvDefault("OPENAI_MODEL", "gpt-3.5-turbo"),
		OpenAIBaseURL:       os.Getenv("OPENAI_BASE_URL"),
		GeminiAPIKey:        os.Getenv("GEMINI_API_KEY"),
		GeminiModel:         getEnvDefault("GEMINI_MODEL", "gemini-1.5-flash"),
		AssistantTimeout:    getEnvDurationDefault("ASSISTANT_TIMEOUT", 20*time.Second),
		CatalogBaseURL:      getEnvDefault("CATALOG_BASE_URL", "https://fakestoreapi.com"),
		CatalogTimeout:      getEnvDurationDefault("CATALOG_TIMEOUT", 5*time.Second),
		CatalogClientID:     os.Getenv("CATALOG_CLIENT_ID"),
		CatalogClientSecret: os.Getenv("CATALOG_CLIENT_SECRET"),
		CatalogTokenURL:     os.Getenv("CATALOG_TOKEN_URL"),
		DatabaseURL:         os.Getenv("DB_URL"),
		DatabasePath:        getEnvDefault("DATABASE_PATH", "database.db"),
		FAQFile:             getEnvDefault("FAQ_FILE", "data/faq_data.json"),
		IntentRulesFile:     os.Getenv("INTENT_RULES_FILE"),
		Normalizer:          getEnvDefault("NORMALIZER", "linguistic"),
		StopwordsFile:       os.Getenv("STOPWORDS_FILE"),
		SessionTTL:          getEnvDurationDefault("SESSION_TTL", 0),
		HistoryEnabled:      getEnvBoolDefault("HISTORY_ENABLED", true),
		HistoryBuffer:       getEnvIntDefault("HISTORY_BUFFER", 64),
	}
}

// AssistantKey is the credential of the selected provider.
func (c Config) AssistantKey() string {
	if c.AssistantProvider == "gemini" {
		return c.GeminiAPIKey
	}
	return c.OpenAIAPIKey
}

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBoolDefault(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getEnvIntDefault(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// getEnvDurationDefault accepts Go durations ("90s") or plain seconds ("90").
func getEnvDurationDefault(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return def
}
