package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds every credential and coordinate the service needs. It is
// built once at startup and passed by injection; nothing reads the
// environment after Load returns.
type Config struct {
	HTTPPort    string
	DatabaseURL string
	LogLevel    string

	JWTSecret      string
	AdminToken     string
	GoogleClientID string

	GeminiAPIKey  string
	YouTubeAPIKey string

	EmbeddingServiceURL string
	EmbeddingDimension  int

	PineconeAPIKey      string
	PineconeIndex       string
	PineconeProject     string
	PineconeEnvironment string
}

func Load() (*Config, error) {
	// Load .env if present; otherwise rely on the environment.
	_ = godotenv.Load()

	cfg := &Config{
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", "rehabfit.db"),
		LogLevel:    getEnv("LOG_LEVEL", "INFO"),

		JWTSecret:      getEnv("JWT_SECRET", ""),
		AdminToken:     getEnv("ADMIN_TOKEN", ""),
		GoogleClientID: getEnv("GOOGLE_CLIENT_ID", ""),

		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		YouTubeAPIKey: getEnv("YOUTUBE_API_KEY", ""),

		EmbeddingServiceURL: getEnv("EMBEDDING_SERVICE_URL", "http://localhost:5005"),
		EmbeddingDimension:  getEnvAsInt("EMBEDDING_DIMENSION", 384),

		PineconeAPIKey:      getEnv("PINECONE_API_KEY", ""),
		PineconeIndex:       getEnv("PINECONE_INDEX", ""),
		PineconeProject:     getEnv("PINECONE_PROJECT", ""),
		PineconeEnvironment: getEnv("PINECONE_ENVIRONMENT", ""),
	}

	var missing []string
	for _, req := range []struct{ key, val string }{
		{"JWT_SECRET", cfg.JWTSecret},
		{"GEMINI_API_KEY", cfg.GeminiAPIKey},
	} {
		if req.val == "" {
			missing = append(missing, req.key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	return cfg, nil
}

// PineconeBaseURL builds the index host from the index/project/environment
// triple, e.g. https://myindex-abc123.svc.us-east1-gcp.pinecone.io.
func (c *Config) PineconeBaseURL() string {
	return fmt.Sprintf("https://%s-%s.svc.%s.pinecone.io", c.PineconeIndex, c.PineconeProject, c.PineconeEnvironment)
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}
