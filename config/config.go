package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Config holds all application configuration loaded from environment
// variables and an optional YAML file.
type Config struct {
	Scraping ScrapingConfig `yaml:"scraping"`

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
	StorePostgres    bool
	MaxRetries       int

	CSVOutputPath string
	HTTPAddr      string
	LogLevel      string
}

// ScrapingConfig covers the per-source constants that may be tuned
// without touching the extraction rules.
type ScrapingConfig struct {
	CraigslistURL   string  `yaml:"craigslist_url"`
	PrelovedURL     string  `yaml:"preloved_url"`
	GBPToUSD        float64 `yaml:"gbp_to_usd"`
	PaginationStart int     `yaml:"pagination_start"`
	PaginationPages int     `yaml:"pagination_pages"`

	Fetcher         string `yaml:"fetcher"`
	RateLimitMs     int    `yaml:"rate_limit_ms"`
	FetchTimeoutSec int    `yaml:"fetch_timeout_sec"`
	UserAgent       string `yaml:"user_agent"`
	ChromeBin       string `yaml:"chrome_bin"`
}

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Load reads the .env file and the environment, then applies CONFIG_FILE
// if set. It exits the process when the YAML file is unreadable.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	cfg := FromEnv()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.ApplyYAMLFile(path); err != nil {
			log.Fatalf("[config] %v", err)
		}
	}
	return cfg
}

// FromEnv builds a Config from environment variables and defaults.
func FromEnv() *Config {
	return &Config{
		Scraping: ScrapingConfig{
			CraigslistURL:   getEnv("CRAIGSLIST_URL", "https://newyork.craigslist.org/"),
			PrelovedURL:     getEnv("PRELOVED_URL", "https://www.preloved.co.uk/"),
			GBPToUSD:        getEnvFloat("GBP_TO_USD", 1.31),
			PaginationStart: getEnvInt("PAGINATION_START", 120),
			PaginationPages: getEnvInt("PAGINATION_PAGES", 3),

			Fetcher:         strings.ToLower(getEnv("FETCHER", "http")),
			RateLimitMs:     getEnvInt("RATE_LIMIT_MS", 500),
			FetchTimeoutSec: getEnvInt("FETCH_TIMEOUT_SEC", 30),
			UserAgent:       getEnv("USER_AGENT", defaultUserAgent),
			ChromeBin:       getEnv("CHROME_BIN", ""),
		},

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "scraper"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "scraper123"),
		PostgresDB:       getEnv("POSTGRES_DB", "listings_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		StorePostgres:    getEnvBool("STORE_POSTGRES", false),
		MaxRetries:       getEnvInt("MAX_RETRIES", 5),

		CSVOutputPath: getEnv("CSV_OUTPUT_PATH", "./output/listings.csv"),
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
	}
}

// ApplyYAMLFile overlays the scraping section of a YAML file. Keys absent
// from the file keep their current values.
func (c *Config) ApplyYAMLFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %q: %w", path, err)
	}
	return c.ApplyYAML(data)
}

// ApplyYAML overlays the scraping section from raw YAML bytes.
func (c *Config) ApplyYAML(data []byte) error {
	overlay := struct {
		Scraping *ScrapingConfig `yaml:"scraping"`
	}{Scraping: &c.Scraping}

	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("config: parse yaml: %w", err)
	}
	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}
