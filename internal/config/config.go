package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App        AppConfig
	Database   DatabaseConfig
	Auth       AuthConfig
	Ai         AIConfig
	Cache      CacheConfig
	Retrieval  RetrievalConfig
	Chat       ChatDefaults
	Vectorizer VectorizerConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	VectorizerLogPath  string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
}

type DatabaseConfig struct {
	Connection string
}

type AuthConfig struct {
	Enabled       bool
	JWTSecret     string
	Audience      string
	Issuer        string
	AllowedEmails []string
	AdminAPIKey   string
}

type AIConfig struct {
	EmbeddingProvider  string // "ollama" or "openai"
	EmbeddingModel     string
	EmbeddingBaseURL   string
	EmbeddingDimension int
	LLMProvider        string // "ollama" or "openai"
	LLMModel           string
	LLMBaseURL         string
	OpenAIAPIKey       string
}

type CacheConfig struct {
	MemorySize    int
	MemoryTTL     time.Duration
	Tier2Enabled  bool
	Tier2Backend  string // "postgres" or "redis"
	Tier2TTL      time.Duration
	ChatConfigTTL time.Duration
}

type RetrievalConfig struct {
	KConst        int
	PoolSize      int
	IVFFlatProbes int
}

// ChatDefaults seed the per-conversation config when nothing is stored.
type ChatDefaults struct {
	Model           string
	Temperature     float64
	MaxTokens       int
	ContextLimit    int
	MaxContextChars int
	WLexical        float64
	WVector         float64
	HistoryLimit    int
}

type VectorizerConfig struct {
	BatchSize    int
	Topic        string
	ConsumeQueue bool
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			VectorizerLogPath:  getEnv("VECTORIZER_LOG_FILE_PATH", "logs/vectorizer.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Auth: AuthConfig{
			Enabled:       getEnvAsBool("AUTH_ENABLED", true),
			JWTSecret:     getEnv("JWT_SECRET", ""),
			Audience:      getEnv("JWT_AUDIENCE", "2brain-api"),
			Issuer:        getEnv("JWT_ISSUER", "2brain-viewer"),
			AllowedEmails: getEnvAsList("ALLOWED_EMAILS"),
			AdminAPIKey:   getEnv("ADMIN_API_KEY", ""),
		},
		Ai: AIConfig{
			EmbeddingProvider:  getEnv("EMBEDDING_PROVIDER", "openai"),
			EmbeddingModel:     getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
			EmbeddingBaseURL:   getEnv("EMBEDDING_BASE_URL", ""),
			EmbeddingDimension: getEnvAsInt("EMBEDDING_DIMENSION", 1536),
			LLMProvider:        getEnv("LLM_PROVIDER", "openai"),
			LLMModel:           getEnv("LLM_MODEL", "gpt-4o"),
			LLMBaseURL:         getEnv("LLM_BASE_URL", ""),
			OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),
		},
		Cache: CacheConfig{
			MemorySize:    getEnvAsInt("EMBED_CACHE_SIZE", 1024),
			MemoryTTL:     getEnvAsDuration("EMBED_CACHE_TTL", time.Hour),
			Tier2Enabled:  getEnvAsBool("EMBED_CACHE_TIER2_ENABLED", true),
			Tier2Backend:  getEnv("EMBED_CACHE_TIER2_BACKEND", "postgres"),
			Tier2TTL:      getEnvAsDuration("EMBED_CACHE_TIER2_TTL", 30*24*time.Hour),
			ChatConfigTTL: getEnvAsDuration("CHAT_CONFIG_CACHE_TTL", 10*time.Minute),
		},
		Retrieval: RetrievalConfig{
			KConst:        getEnvAsInt("RRF_K_CONST", 60),
			PoolSize:      getEnvAsInt("RRF_POOL_SIZE", 60),
			IVFFlatProbes: getEnvAsInt("IVFFLAT_PROBES", 10),
		},
		Chat: ChatDefaults{
			Model:           getEnv("CHAT_MODEL", "gpt-4o"),
			Temperature:     getEnvAsFloat("CHAT_TEMPERATURE", 0.7),
			MaxTokens:       getEnvAsInt("CHAT_MAX_TOKENS", 4096),
			ContextLimit:    getEnvAsInt("CHAT_CONTEXT_LIMIT", 10),
			MaxContextChars: getEnvAsInt("CHAT_MAX_CONTEXT_CHARS", 50000),
			WLexical:        getEnvAsFloat("CHAT_W_LEXICAL", 0.5),
			WVector:         getEnvAsFloat("CHAT_W_VECTOR", 0.5),
			HistoryLimit:    getEnvAsInt("CHAT_HISTORY_LIMIT", 10),
		},
		Vectorizer: VectorizerConfig{
			BatchSize:    getEnvAsInt("VECTORIZER_BATCH_SIZE", 50),
			Topic:        getEnv("VECTORIZE_SEGMENT_TOPIC_NAME", "VECTORIZE_SEGMENT"),
			ConsumeQueue: getEnvAsBool("VECTORIZER_CONSUME_QUEUE", true),
		},
	}
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
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

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
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

// comma separated, lower-cased, blanks dropped
func getEnvAsList(key string) []string {
	var out []string
	for _, item := range strings.Split(getEnv(key, ""), ",") {
		item = strings.ToLower(strings.TrimSpace(item))
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
