package config

import (
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

type Config struct {
	Port    string
	GinMode string

	// Producer (the scraper/evaluator backend that emits the SSE stream)
	ProducerBaseURL       string
	ProducerStreamTimeout time.Duration // max lifetime of one search stream
	ProducerCancelTimeout time.Duration // timeout for the fire-and-forget cancel call

	// Debug mode forwards the producer's diagnostic events to the UI.
	DebugMode bool

	// Search defaults, overridable per request.
	SearchDefaults *SearchDefaults `yaml:"search"`

	// Server
	ServerShutdownTimeoutSeconds int

	// CORS
	CORSAllowedOrigins string

	// Logging
	LogLevel  string
	LogFormat string
}

// SearchDefaults holds defaults applied to search requests that omit a field.
// Loaded from the optional YAML config file.
type SearchDefaults struct {
	Radius       int     `yaml:"radius"`
	MaxListings  int     `yaml:"max_listings"`
	Threshold    float64 `yaml:"threshold"`
	ExtractDescs bool    `yaml:"extract_descriptions"`
}

var AppConfig *Config

const (
	DefaultRadius      = 20
	DefaultMaxListings = 20
	DefaultThreshold   = 20.0
)

// RadiusOptions are the search radii (miles) the producer accepts.
var RadiusOptions = []int{1, 2, 5, 10, 20, 40, 60, 80, 100, 250, 500}

// RadiusSupported reports whether the producer accepts the given radius.
func RadiusSupported(radius int) bool {
	for _, r := range RadiusOptions {
		if r == radius {
			return true
		}
	}
	return false
}

func LoadConfig() {
	// Load .env file if it exists
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	AppConfig = &Config{
		Port:    getEnvOrDefault("PORT", "8080"),
		GinMode: getEnvOrDefault("GIN_MODE", "release"),

		// Producer
		ProducerBaseURL:       strings.TrimRight(getEnvOrDefault("PRODUCER_BASE_URL", "http://127.0.0.1:8000"), "/"),
		ProducerStreamTimeout: getEnvAsDuration("PRODUCER_STREAM_TIMEOUT", 30*time.Minute),
		ProducerCancelTimeout: getEnvAsDuration("PRODUCER_CANCEL_TIMEOUT", 5*time.Second),

		// Debug mode
		DebugMode: getEnvOrDefault("DEBUG", "false") == "true",

		SearchDefaults: &SearchDefaults{
			Radius:      DefaultRadius,
			MaxListings: DefaultMaxListings,
			Threshold:   DefaultThreshold,
		},

		// Server
		ServerShutdownTimeoutSeconds: getEnvAsInt("SERVER_SHUTDOWN_TIMEOUT_SECONDS", 30),

		// CORS
		CORSAllowedOrigins: getEnvOrDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),

		// Logging
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "debug"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "text"),
	}

	// Load settings from an optional configuration file. Environment variables
	// stay authoritative for everything except the search defaults block.
	configFilePath := getEnvOrDefault("CONFIG_FILE", "config.yaml")

	configFile, err := os.Open(configFilePath)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Fatalf("Failed to open config file: %v", err)
		}
		return
	}
	defer configFile.Close()

	log.Printf("Loading config file: %v", configFilePath)
	if err := LoadConfigFile(configFile, AppConfig); err != nil {
		log.Fatalf("Failed to load config file: %v", err)
	}

	if !RadiusSupported(AppConfig.SearchDefaults.Radius) {
		log.Fatalf("Config error: radius %d not supported by the producer (allowed: %v)",
			AppConfig.SearchDefaults.Radius, RadiusOptions)
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		} else {
			log.Printf("Warning: Failed to parse environment variable %s='%s' as time.Duration, using default %v: %v", key, value, defaultValue, err)
		}
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		} else {
			log.Printf("Warning: Failed to parse environment variable %s='%s' as int, using default %d: %v", key, value, defaultValue, err)
		}
	}
	return defaultValue
}

func LoadConfigFile(reader io.Reader, config *Config) error {
	decoder := yaml.NewDecoder(reader)

	if err := decoder.Decode(config); err != nil {
		return err
	}

	return nil
}
