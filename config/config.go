package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// PlaceholderAPIKey is the value shipped in example env files; it never counts as a credential.
const PlaceholderAPIKey = "your_openai_api_key"

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Redis    RedisConfig
	CORS     CORSConfig
	LLM      LLMConfig
	Search   SearchConfig
	Analysis AnalysisConfig
	Feed     FeedConfig
}

type ServerConfig struct {
	Port      int
	APIPrefix string
}

type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

func (d DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

type JWTConfig struct {
	Secret      string
	ExpiryHours int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type CORSConfig struct {
	AllowedOrigins string
}

type LLMConfig struct {
	APIKey         string
	Model          string
	BaseURL        string
	TimeoutSeconds int
}

// Available reports whether the model credential is usable. Blank keys and the
// example placeholder are treated as absent.
func (l LLMConfig) Available() bool {
	key := strings.TrimSpace(l.APIKey)
	return key != "" && key != PlaceholderAPIKey
}

type SearchConfig struct {
	Provider string
	APIKey   string
	APIURL   string
}

type AnalysisConfig struct {
	GuestRequestLimit  int
	GuestWindowHours   int
	TrustedDomains     []string
	SearchIntervalMS   int
	URLFetchTimeoutSec int
}

type FeedConfig struct {
	URLs         []string
	PerFeed      int
	CacheSeconds int
	// RefreshSpec is a cron schedule for warming the feed cache. Empty (env
	// value "off") disables it.
	RefreshSpec string
}

var defaultTrustedDomains = []string{
	"tengrinews.kz",
	"egemen.kz",
	"zakon.kz",
	"kazinform.kz",
	"wikipedia.org",
	"reuters.com",
	"bbc.com",
	"apnews.com",
}

var defaultFeedURLs = []string{
	"https://tengrinews.kz/news.xml",
	"https://kaz.tengrinews.kz/news.xml",
	"https://www.inform.kz/rss/kaz.xml",
	"https://forbes.kz/rss.xml",
}

// LoadEnvFiles loads .env style files that exist in the working directory.
// Variables already present in the process environment win.
func LoadEnvFiles(files ...string) []string {
	if len(files) == 0 {
		files = []string{".env", ".env.local"}
	}
	var loaded []string
	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			continue
		}
		loaded = append(loaded, file)
	}
	return loaded
}

func LoadConfig() (*Config, error) {
	serverPort, err := getIntEnv("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	dbPort, err := getIntEnv("DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	jwtExpiry, err := getIntEnv("JWT_EXPIRY_HOURS", 24)
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRY_HOURS: %w", err)
	}

	redisPort, err := getIntEnv("REDIS_PORT", 6379)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_PORT: %w", err)
	}
	redisDB, err := getIntEnv("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	llmTimeout, err := getIntEnv("OPENAI_TIMEOUT_SEC", 30)
	if err != nil {
		return nil, fmt.Errorf("invalid OPENAI_TIMEOUT_SEC: %w", err)
	}

	guestLimit, err := getIntEnv("GUEST_REQUEST_LIMIT", 2)
	if err != nil {
		return nil, fmt.Errorf("invalid GUEST_REQUEST_LIMIT: %w", err)
	}
	guestWindow, err := getIntEnv("GUEST_WINDOW_HOURS", 24)
	if err != nil {
		return nil, fmt.Errorf("invalid GUEST_WINDOW_HOURS: %w", err)
	}
	searchInterval, err := getIntEnv("SEARCH_INTERVAL_MS", 100)
	if err != nil {
		return nil, fmt.Errorf("invalid SEARCH_INTERVAL_MS: %w", err)
	}
	fetchTimeout, err := getIntEnv("URL_FETCH_TIMEOUT_SEC", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid URL_FETCH_TIMEOUT_SEC: %w", err)
	}

	feedPerFeed, err := getIntEnv("NEWS_FEED_PER_SOURCE", 3)
	if err != nil {
		return nil, fmt.Errorf("invalid NEWS_FEED_PER_SOURCE: %w", err)
	}
	feedCache, err := getIntEnv("NEWS_FEED_CACHE_SEC", 300)
	if err != nil {
		return nil, fmt.Errorf("invalid NEWS_FEED_CACHE_SEC: %w", err)
	}

	feedRefresh := strings.TrimSpace(getEnv("NEWS_FEED_REFRESH", "@every 5m"))
	if strings.EqualFold(feedRefresh, "off") {
		feedRefresh = ""
	}

	dbEnabled, err := getBoolEnv("DB_ENABLED", true)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_ENABLED: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:      serverPort,
			APIPrefix: normalizePrefix(getEnv("API_PREFIX", "/api")),
		},
		Database: DatabaseConfig{
			Enabled:  dbEnabled,
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DB_USER", "truthlens"),
			Password: getEnv("DB_PASSWORD", "truthlens_dev_password"),
			Name:     getEnv("DB_NAME", "truthlens"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "truthlens-dev-secret"),
			ExpiryHours: jwtExpiry,
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     redisPort,
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		},
		LLM: LLMConfig{
			APIKey:         os.Getenv("OPENAI_API_KEY"),
			Model:          getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			BaseURL:        getEnv("OPENAI_BASE_URL", ""),
			TimeoutSeconds: llmTimeout,
		},
		Search: SearchConfig{
			Provider: strings.ToLower(getEnv("SEARCH_PROVIDER", "generated")),
			APIKey:   getEnv("SEARCH_API_KEY", ""),
			APIURL:   getEnv("SEARCH_API_URL", ""),
		},
		Analysis: AnalysisConfig{
			GuestRequestLimit:  guestLimit,
			GuestWindowHours:   guestWindow,
			TrustedDomains:     getListEnv("TRUSTED_DOMAINS", defaultTrustedDomains),
			SearchIntervalMS:   searchInterval,
			URLFetchTimeoutSec: fetchTimeout,
		},
		Feed: FeedConfig{
			URLs:         getListEnv("NEWS_FEED_URLS", defaultFeedURLs),
			PerFeed:      feedPerFeed,
			CacheSeconds: feedCache,
			RefreshSpec:  feedRefresh,
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	nonNegative := []struct {
		key   string
		value int
	}{
		{"GUEST_REQUEST_LIMIT", c.Analysis.GuestRequestLimit},
		{"SEARCH_INTERVAL_MS", c.Analysis.SearchIntervalMS},
		{"URL_FETCH_TIMEOUT_SEC", c.Analysis.URLFetchTimeoutSec},
		{"OPENAI_TIMEOUT_SEC", c.LLM.TimeoutSeconds},
		{"NEWS_FEED_PER_SOURCE", c.Feed.PerFeed},
		{"NEWS_FEED_CACHE_SEC", c.Feed.CacheSeconds},
	}
	for _, v := range nonNegative {
		if v.value < 0 {
			return fmt.Errorf("invalid %s: must not be negative, got %d", v.key, v.value)
		}
	}
	// The guest counter expires after the window; without one it never resets.
	if c.Analysis.GuestWindowHours <= 0 {
		return fmt.Errorf("invalid GUEST_WINDOW_HOURS: must be positive, got %d", c.Analysis.GuestWindowHours)
	}
	return nil
}

func normalizePrefix(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" || prefix == "/" {
		return ""
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return strings.TrimRight(prefix, "/")
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getIntEnv(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}

func getBoolEnv(key string, fallback bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	return strconv.ParseBool(value)
}

func getListEnv(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		out := make([]string, len(fallback))
		copy(out, fallback)
		return out
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
