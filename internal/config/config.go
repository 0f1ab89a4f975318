package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config stores all the configuration of the application.
// Values are loaded from environment variables with optional
// loading from a .env file via godotenv.
type Config struct {
	// Database settings
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	DBSSLMode  string

	// Redis settings (optional, document lookups are cached when present)
	RedisHost     string
	RedisPort     string
	RedisUsername string
	RedisPassword string

	// Server settings
	ServerPort  string
	FrontendURL string

	// Anthropic settings
	AnthropicAPIKey     string
	ModelName           string
	ModelMaxTokens      int
	ModelTimeoutSeconds int
	HistoryTokenBudget  int

	// Prompt settings
	TemplatePath   string
	ApplicantEmail string
}

// LoadConfig reads configuration from environment variables and .env file.
// It returns the loaded configuration or an error if required values are missing.
func LoadConfig() (*Config, error) {
	// Try to load .env file, but proceed even if it doesn't exist
	if err := godotenv.Load(); err != nil {
		if os.IsNotExist(err) {
			log.Println("No .env file found, using environment variables only")
		} else {
			log.Printf("Warning: Error loading .env file: %v", err)
		}
	} else {
		log.Println("Environment loaded from .env file")
	}

	config := &Config{
		// Database settings
		DBHost:     getEnv("DB_HOST", ""),
		DBUser:     getEnv("DB_USER", ""),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", ""),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBSSLMode:  getEnv("DB_SSLMODE", "prefer"),

		// Redis settings
		RedisHost:     getEnv("REDIS_HOST", ""),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisUsername: getEnv("REDIS_USERNAME", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		// Server settings
		ServerPort:  getEnv("PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", ""),

		// Anthropic settings
		AnthropicAPIKey:     getEnv("ANTHROPIC_API_KEY", ""),
		ModelName:           getEnv("MODEL_NAME", "claude-haiku-4-5-20251001"),
		ModelMaxTokens:      getEnvAsInt("MODEL_MAX_TOKENS", 4096),
		ModelTimeoutSeconds: getEnvAsInt("MODEL_TIMEOUT_SECONDS", 300),
		HistoryTokenBudget:  getEnvAsInt("HISTORY_TOKEN_BUDGET", 150000),

		// Prompt settings
		TemplatePath:   getEnv("TEMPLATE_PATH", "prompts/chat_system.mustache"),
		ApplicantEmail: getEnv("APPLICANT_EMAIL", ""),
	}

	// Validate the configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks if the required configuration values are set and logs warnings
// for optional values that aren't set.
func (c *Config) Validate() error {
	var missingEnvs []string

	// Check required database configuration
	if c.DBHost == "" {
		missingEnvs = append(missingEnvs, "DB_HOST")
	}
	if c.DBUser == "" {
		missingEnvs = append(missingEnvs, "DB_USER")
	}
	if c.DBPassword == "" {
		missingEnvs = append(missingEnvs, "DB_PASSWORD")
	}
	if c.DBName == "" {
		missingEnvs = append(missingEnvs, "DB_NAME")
	}

	// The model credential is required
	if c.AnthropicAPIKey == "" {
		missingEnvs = append(missingEnvs, "ANTHROPIC_API_KEY")
	}

	// Return error if any required env vars are missing
	if len(missingEnvs) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missingEnvs, ", "))
	}

	// Log warnings for optional configurations
	if c.RedisHost == "" || c.RedisPort == "" {
		log.Println("Warning: Redis configuration is incomplete, document caching will be disabled")
	}

	if c.FrontendURL == "" {
		log.Println("Warning: FRONTEND_URL is not set, CORS might not be configured correctly")
	}

	if c.ApplicantEmail == "" {
		log.Println("Warning: APPLICANT_EMAIL is not set, the system prompt will omit the contact address")
	}

	return nil
}

// GetDSN returns the PostgreSQL data source name (connection string)
func (c *Config) GetDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

// GetRedisAddr returns the Redis address in the format host:port
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

// getEnv retrieves the value of the environment variable named by the key.
// If the variable is not present, the defaultValue is returned.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves the value of the environment variable named by the key as an int.
// If the variable is not present or cannot be converted to an int, the defaultValue is returned.
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}
