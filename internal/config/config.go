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
	Storage    StorageConfig
	Retrieval  RetrievalConfig
	Generation GenerationConfig
	Keys       APIKeys
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	BodyLimitMB        int
	JWTSecret          string
	TokenTTL           time.Duration
	NatsURL            string
	InstanceId         string
}

type StorageConfig struct {
	SessionBackend string // "file", "memory", "redis" or "postgres"
	SessionFolder  string
	IndexFolder    string
	UploadFolder   string
	StaticFolder   string
	RedisURL       string
	DBConnection   string
}

type RetrievalConfig struct {
	Backend       string // "colpali" or "lexical"
	ServiceURL    string
	IndexerModel  string
	TopK          int
	IndexWorkers  int
	LoadWorkers   int
	IndexTimeout  time.Duration
	LoadTimeout   time.Duration
	WarmOnStartup bool
}

type GenerationConfig struct {
	DefaultModel      string
	Timeout           time.Duration
	Workers           int
	OllamaBaseURL     string
	ModelOverrides    map[string]string
	DefaultResizedDim int
}

type APIKeys struct {
	OpenAI      string
	Dashscope   string
	Mistral     string
	Groq        string
	Gemini      string
	Anthropic   string
	HuggingFace string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			BodyLimitMB:        getEnvAsInt("BODY_LIMIT_MB", 200),
			JWTSecret:          getEnv("JWT_SECRET", "change-me"),
			TokenTTL:           getEnvAsDuration("SESSION_TOKEN_TTL", 30*24*time.Hour),
			NatsURL:            getEnv("NATS_URL", ""),
			InstanceId:         getEnv("INSTANCE_ID", hostname()),
		},
		Storage: StorageConfig{
			SessionBackend: getEnv("SESSION_BACKEND", "file"),
			SessionFolder:  getEnv("SESSION_FOLDER", "sessions"),
			IndexFolder:    getEnv("INDEX_FOLDER", ".byaldi"),
			UploadFolder:   getEnv("UPLOAD_FOLDER", "uploaded_documents"),
			StaticFolder:   getEnv("STATIC_FOLDER", "static/images"),
			RedisURL:       getEnv("REDIS_URL", "redis://localhost:6379"),
			DBConnection:   getEnv("DB_CONNECTION_STRING", ""),
		},
		Retrieval: RetrievalConfig{
			Backend:       getEnv("RETRIEVAL_BACKEND", "colpali"),
			ServiceURL:    getEnv("RETRIEVAL_SERVICE_URL", "http://localhost:8001"),
			IndexerModel:  getEnv("INDEXER_MODEL", "vidore/colpali"),
			TopK:          getEnvAsInt("RETRIEVAL_TOP_K", 3),
			IndexWorkers:  getEnvAsInt("INDEX_WORKERS", 2),
			LoadWorkers:   getEnvAsInt("LOAD_WORKERS", 2),
			IndexTimeout:  getEnvAsDuration("INDEX_TIMEOUT", 30*time.Minute),
			LoadTimeout:   getEnvAsDuration("LOAD_TIMEOUT", 5*time.Minute),
			WarmOnStartup: getEnvAsBool("WARM_ON_STARTUP", true),
		},
		Generation: GenerationConfig{
			DefaultModel:      getEnv("GENERATION_MODEL", "qwen"),
			Timeout:           getEnvAsDuration("GENERATION_TIMEOUT", 2*time.Minute),
			Workers:           getEnvAsInt("GENERATION_WORKERS", 4),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			ModelOverrides:    getEnvAsMap("GENERATION_MODEL_OVERRIDES"),
			DefaultResizedDim: getEnvAsInt("RESIZED_DIM", 280),
		},
		Keys: APIKeys{
			OpenAI:      getEnv("OPENAI_API_KEY", ""),
			Dashscope:   getEnv("DASHSCOPE_API_KEY", ""),
			Mistral:     getEnv("MISTRAL_API_KEY", ""),
			Groq:        getEnv("GROQ_API_KEY", ""),
			Gemini:      getEnv("GOOGLE_GEMINI_API_KEY", ""),
			Anthropic:   getEnv("ANTHROPIC_API_KEY", ""),
			HuggingFace: getEnv("HF_TOKEN", ""),
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

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go durations ("90s", "5m").
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil && value > 0 {
		return value
	}
	return fallback
}

// getEnvAsMap parses "a=b,c=d".
func getEnvAsMap(key string) map[string]string {
	out := map[string]string{}
	for _, pair := range strings.Split(getEnv(key, ""), ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if ok && k != "" {
			out[k] = v
		}
	}
	return out
}

func hostname() string {
	if h, err := os.Hostname(); err == nil {
		return h
	}
	return "docqa"
}
