package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Storage backends understood by the app.
const (
	StorageFile     = "file"
	StoragePostgres = "postgres"
	StorageS3       = "s3"
)

type Config struct {
	Port            string
	AIAPIKey        string
	GenModel        string
	AssistantName   string
	JWTSecret       string
	JWTExpireMins   int
	StorageBackend  string
	DataDir         string
	DatabaseURL     string
	AwsAccessKey    string
	AwsSecretKey    string
	AwsRegion       string
	BucketName      string
	BucketPrefix    string
	AllowedOrigins  []string
	ProviderTimeout int
	MaxUploadMB     int
	LogLevel        string
}

// LoadConfig loads the environment variables and return config
func LoadConfig() *Config {

	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnv("PORT", "5001"),
		AIAPIKey:        getEnv("GEMINI_API_KEY", ""),
		GenModel:        getEnv("GEN_MODEL", "gemini-1.5-flash"),
		AssistantName:   getEnv("ASSISTANT_NAME", "INTELLBEE"),
		JWTSecret:       getEnv("JWT_SECRET", "dev-secret-change-me"),
		JWTExpireMins:   getEnvInt("JWT_EXPIRE_MINUTES", 1440),
		StorageBackend:  strings.ToLower(getEnv("STORAGE_BACKEND", StorageFile)),
		DataDir:         getEnv("DATA_DIR", "data"),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		AwsAccessKey:    getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey:    getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:       getEnv("AWS_REGION", "us-east-2"),
		BucketName:      getEnv("BUCKET_NAME", "intellbee-data"),
		BucketPrefix:    getEnv("BUCKET_PREFIX", "data/"),
		AllowedOrigins:  splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		ProviderTimeout: getEnvInt("PROVIDER_TIMEOUT_SECONDS", 120),
		MaxUploadMB:     getEnvInt("MAX_UPLOAD_MB", 32),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
	}

	if cfg.AIAPIKey == "" {
		log.Fatal("GEMINI_API_KEY not set")
	}
	if cfg.StorageBackend == StoragePostgres && cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}

	return cfg
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
