package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ListenAddr string
	StaticDir  string

	RootURL string

	NotionKey        string
	NotionDatabaseID string
	NotionAPIBase    string
	NotionVersion    string

	SiteConfigPath string
	RedisURL       string

	LogLevel  string
	LogFormat string

	ImageRetryLimit   int
	ImageCooldown     time.Duration
	RefreshCacheTTL   time.Duration
	ContentCacheTTL   time.Duration
	ImageRenderedTTL  time.Duration
	ImageConfirmedTTL time.Duration
}

func Load() Config {
	return Config{
		ListenAddr:        getEnv("BLOG_LISTEN_ADDR", ":8080"),
		StaticDir:         getEnv("BLOG_STATIC_DIR", "internal/web/static"),
		RootURL:           strings.TrimRight(getEnv("BLOG_ROOT_URL", ""), "/"),
		NotionKey:         strings.TrimSpace(os.Getenv("NOTION_KEY")),
		NotionDatabaseID:  strings.TrimSpace(os.Getenv("NOTION_DATABASE_ID")),
		NotionAPIBase:     getEnv("NOTION_API_BASE", "https://api.notion.com/v1"),
		NotionVersion:     getEnv("NOTION_VERSION", "2022-06-28"),
		SiteConfigPath:    strings.TrimSpace(os.Getenv("BLOG_SITE_CONFIG")),
		RedisURL:          strings.TrimSpace(os.Getenv("BLOG_REDIS_URL")),
		LogLevel:          getEnv("BLOG_LOG_LEVEL", "info"),
		LogFormat:         getEnv("BLOG_LOG_FORMAT", "json"),
		ImageRetryLimit:   getEnvInt("BLOG_IMAGE_RETRY_LIMIT", 3),
		ImageCooldown:     getEnvDuration("BLOG_IMAGE_COOLDOWN", 5*time.Second),
		RefreshCacheTTL:   getEnvDuration("BLOG_REFRESH_CACHE_TTL", 60*time.Second),
		ContentCacheTTL:   getEnvDuration("BLOG_CONTENT_CACHE_TTL", 60*time.Second),
		ImageRenderedTTL:  getEnvDuration("BLOG_IMAGE_RENDERED_TTL", 30*time.Minute),
		ImageConfirmedTTL: getEnvDuration("BLOG_IMAGE_CONFIRMED_TTL", 3*time.Hour),
	}
}

// Validate reports every missing required setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.NotionKey == "" {
		errs = append(errs, errors.New("NOTION_KEY environment variable is not set"))
	}
	if c.NotionDatabaseID == "" {
		errs = append(errs, errors.New("NOTION_DATABASE_ID environment variable is not set"))
	}
	if c.RootURL != "" && !strings.HasPrefix(c.RootURL, "http://") && !strings.HasPrefix(c.RootURL, "https://") {
		errs = append(errs, fmt.Errorf("BLOG_ROOT_URL %q must be an absolute http(s) URL", c.RootURL))
	}

	return errors.Join(errs...)
}

func getEnv(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}

	return value
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 1 {
		return fallback
	}

	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}

	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return fallback
	}

	return parsed
}
