package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	GeminiAPIKey     string        `yaml:"-"`
	TextModel        string        `yaml:"textModel"`
	ImageModel       string        `yaml:"imageModel"`
	HTTPPort         string        `yaml:"httpPort"`
	LogLevel         string        `yaml:"logLevel"`
	SessionSecret    string        `yaml:"-"`
	SessionTTL       time.Duration `yaml:"sessionTTL"`
	RequestTimeout   time.Duration `yaml:"requestTimeout"`
	ProfileLookupURL string        `yaml:"profileLookupURL"`
	XBearerToken     string        `yaml:"-"`
	XAPIBaseURL      string        `yaml:"xAPIBaseURL"`
	XAPIRPS          float64       `yaml:"xAPIRPS"`
	GiphyAPIKey      string        `yaml:"-"`
}

// Default returns the configuration used when neither a YAML file nor the
// environment override a value.
func Default() Config {
	return Config{
		TextModel:      "gemini-3-flash-preview",
		ImageModel:     "gemini-2.5-flash-image",
		HTTPPort:       "8080",
		LogLevel:       "INFO",
		SessionTTL:     2 * time.Hour,
		RequestTimeout: 60 * time.Second,
		XAPIBaseURL:    "https://api.twitter.com/2",
		XAPIRPS:        1,
	}
}

// Load builds the configuration: defaults, then the optional YAML file named
// by CONFIG_FILE, then environment variables (a .env file is loaded first if
// present).
func Load() (Config, error) {
	_ = godotenv.Load() // .env is optional; the environment wins either way

	cfg := Default()
	if path := getEnv("CONFIG_FILE", ""); path != "" {
		if err := loadYAML(path, &cfg); err != nil {
			return cfg, err
		}
	}

	cfg.GeminiAPIKey = getEnv("GEMINI_API_KEY", cfg.GeminiAPIKey)
	cfg.TextModel = getEnv("TEXT_MODEL", cfg.TextModel)
	cfg.ImageModel = getEnv("IMAGE_MODEL", cfg.ImageModel)
	cfg.HTTPPort = getEnv("HTTP_PORT", cfg.HTTPPort)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.SessionSecret = getEnv("SESSION_SECRET", cfg.SessionSecret)
	cfg.SessionTTL = getEnvAsDuration("SESSION_TTL", cfg.SessionTTL)
	cfg.RequestTimeout = getEnvAsDuration("REQUEST_TIMEOUT", cfg.RequestTimeout)
	cfg.ProfileLookupURL = getEnv("PROFILE_LOOKUP_URL", cfg.ProfileLookupURL)
	cfg.XBearerToken = getEnv("X_BEARER_TOKEN", cfg.XBearerToken)
	cfg.XAPIBaseURL = getEnv("X_API_BASE_URL", cfg.XAPIBaseURL)
	cfg.XAPIRPS = getEnvAsFloat("X_API_RPS", cfg.XAPIRPS)
	cfg.GiphyAPIKey = getEnv("GIPHY_API_KEY", cfg.GiphyAPIKey)

	if cfg.ProfileLookupURL == "" {
		cfg.ProfileLookupURL = fmt.Sprintf("http://localhost:%s/api/twitter/profile", cfg.HTTPPort)
	}

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.GeminiAPIKey == "" {
		return errors.New("GEMINI_API_KEY environment variable is required")
	}
	if c.SessionSecret == "" {
		return errors.New("SESSION_SECRET environment variable is required")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("session TTL must be positive, got %s", c.SessionTTL)
	}
	return nil
}

func loadYAML(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil && value > 0 {
		return value
	}
	return defaultValue
}
