// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	App       AppConfig
	Logger    LoggerConfig
	Data      DataConfig
	Calibre   CalibreConfig
	Hardcover HardcoverConfig
	Crawl     CrawlConfig
	Ranking   RankingConfig
	Scheduler SchedulerConfig
	Server    ServerConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// DataConfig holds local data storage configuration.
type DataConfig struct {
	// BasePath is the directory for the sqlite store, crawl cache, and
	// search index (default: ~/Bookscout/data).
	BasePath string
}

// CalibreConfig holds the external catalog source configuration.
type CalibreConfig struct {
	// MetadataPath is the full path to the Calibre metadata.db file.
	// Empty means the mirror cannot sync until configured.
	MetadataPath string
	// WatchSource enables a file watcher that triggers a mirror sync
	// when the metadata file changes (default: true).
	WatchSource bool
}

// HardcoverConfig holds the external list-service client configuration.
type HardcoverConfig struct {
	// Token is the Hardcover API bearer token. Required for crawling.
	Token string
	// Endpoint is the GraphQL endpoint (default: https://api.hardcover.app/v1/graphql).
	Endpoint string
	// Username is the Hardcover account whose want-to-read list is mirrored.
	Username string
	// SearchTimeout bounds book search calls (default: 8s).
	SearchTimeout time.Duration
	// ListTimeout bounds list-crawl calls, which tolerate the upstream's
	// deliberate rate-limit delays (default: 30s).
	ListTimeout time.Duration
}

// CrawlConfig holds recommendation crawl defaults.
type CrawlConfig struct {
	// ListsPerBook caps how many lists are inspected per resolved book (default: 3).
	ListsPerBook int
	// ItemsPerList caps how many co-listed books are fetched per list (default: 10).
	ItemsPerList int
	// MinRating filters out low-rated recommendations; 0 disables (default: 0).
	MinRating float64
	// InterEntryDelay is the pause between catalog entries in streaming
	// mode (default: 2s; the upstream throttles aggressive crawlers).
	InterEntryDelay time.Duration
	// RateLimitCooldown is the wait before the single retry after a 429
	// (default: 20s).
	RateLimitCooldown time.Duration
}

// RankingConfig holds the suggestion scoring weights. Each weight must be
// positive so the score stays monotonic in its sub-score.
type RankingConfig struct {
	AuthorWeight   int
	GenreWeight    int
	TagWeight      int
	TitleWeight    int
	TitleBonusCap  int
	StopwordMinLen int
}

// SchedulerConfig holds the background task intervals.
type SchedulerConfig struct {
	MirrorInterval    time.Duration
	WantListInterval  time.Duration
	BookshelfInterval time.Duration
	DedupInterval     time.Duration
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Name         string
	Port         string        // Server port (default: 8080)
	ReadTimeout  time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout time.Duration // HTTP write timeout (default: 15s)
	IdleTimeout  time.Duration // HTTP idle timeout (default: 60s)
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	// Define command-line flags.
	env := flag.String("env", "", "Environment (development, staging, production)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := flag.String("data-path", "", "Base path for local data storage")
	calibrePath := flag.String("calibre-metadata", "", "Path to Calibre metadata.db")
	watchSource := flag.String("watch-source", "", "Watch the Calibre metadata file for changes (default: true)")

	hardcoverToken := flag.String("hardcover-token", "", "Hardcover API token")
	hardcoverEndpoint := flag.String("hardcover-endpoint", "", "Hardcover GraphQL endpoint")
	hardcoverUsername := flag.String("hardcover-username", "", "Hardcover account username")

	listsPerBook := flag.String("lists-per-book", "", "Lists inspected per resolved book (default: 3)")
	itemsPerList := flag.String("items-per-list", "", "Co-listed books fetched per list (default: 10)")
	interEntryDelay := flag.String("inter-entry-delay", "", "Delay between crawled entries (default: 2s)")

	serverPort := flag.String("port", "", "Server port (default: 8080)")
	readTimeout := flag.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := flag.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := flag.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")

	envFile := flag.String("env-file", ".env", "Path to .env file")

	flag.Parse()

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Data: DataConfig{
			BasePath: getConfigValue(*dataPath, "DATA_PATH", ""),
		},
		Calibre: CalibreConfig{
			MetadataPath: getConfigValue(*calibrePath, "CALIBRE_METADATA_PATH", ""),
			WatchSource:  getBoolConfigValue(*watchSource, "CALIBRE_WATCH_SOURCE", true),
		},
		Hardcover: HardcoverConfig{
			Token:    getConfigValue(*hardcoverToken, "HARDCOVER_TOKEN", ""),
			Endpoint: getConfigValue(*hardcoverEndpoint, "HARDCOVER_ENDPOINT", "https://api.hardcover.app/v1/graphql"),
			Username: getConfigValue(*hardcoverUsername, "HARDCOVER_USERNAME", ""),
		},
		Crawl: CrawlConfig{
			ListsPerBook: getIntConfigValue(*listsPerBook, "CRAWL_LISTS_PER_BOOK", 3),
			ItemsPerList: getIntConfigValue(*itemsPerList, "CRAWL_ITEMS_PER_LIST", 10),
			MinRating:    0,
		},
		Ranking: RankingConfig{
			AuthorWeight:   getIntConfigValue("", "RANK_AUTHOR_WEIGHT", 5),
			GenreWeight:    getIntConfigValue("", "RANK_GENRE_WEIGHT", 3),
			TagWeight:      getIntConfigValue("", "RANK_TAG_WEIGHT", 2),
			TitleWeight:    getIntConfigValue("", "RANK_TITLE_WEIGHT", 1),
			TitleBonusCap:  getIntConfigValue("", "RANK_TITLE_BONUS_CAP", 3),
			StopwordMinLen: 4,
		},
		Server: ServerConfig{
			Name: getConfigValue("", "SERVER_NAME", "Bookscout Server"),
			Port: getConfigValue(*serverPort, "SERVER_PORT", "8080"),
		},
	}

	// Parse durations.
	var err error
	if cfg.Hardcover.SearchTimeout, err = parseDurationValue("", "HARDCOVER_SEARCH_TIMEOUT", "8s"); err != nil {
		return nil, err
	}
	if cfg.Hardcover.ListTimeout, err = parseDurationValue("", "HARDCOVER_LIST_TIMEOUT", "30s"); err != nil {
		return nil, err
	}
	if cfg.Crawl.InterEntryDelay, err = parseDurationValue(*interEntryDelay, "CRAWL_INTER_ENTRY_DELAY", "2s"); err != nil {
		return nil, err
	}
	if cfg.Crawl.RateLimitCooldown, err = parseDurationValue("", "CRAWL_RATE_LIMIT_COOLDOWN", "20s"); err != nil {
		return nil, err
	}
	if cfg.Scheduler.MirrorInterval, err = parseDurationValue("", "SCHED_MIRROR_INTERVAL", "1h"); err != nil {
		return nil, err
	}
	if cfg.Scheduler.WantListInterval, err = parseDurationValue("", "SCHED_WANTLIST_INTERVAL", "6h"); err != nil {
		return nil, err
	}
	if cfg.Scheduler.BookshelfInterval, err = parseDurationValue("", "SCHED_BOOKSHELF_INTERVAL", "24h"); err != nil {
		return nil, err
	}
	if cfg.Scheduler.DedupInterval, err = parseDurationValue("", "SCHED_DEDUP_INTERVAL", "12h"); err != nil {
		return nil, err
	}
	if cfg.Server.ReadTimeout, err = parseDurationValue(*readTimeout, "SERVER_READ_TIMEOUT", "15s"); err != nil {
		return nil, err
	}
	if cfg.Server.WriteTimeout, err = parseDurationValue(*writeTimeout, "SERVER_WRITE_TIMEOUT", "15s"); err != nil {
		return nil, err
	}
	if cfg.Server.IdleTimeout, err = parseDurationValue(*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s"); err != nil {
		return nil, err
	}

	// Expand and validate data path.
	if err := cfg.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Data.BasePath == "" {
		return errors.New("data base path cannot be empty after expansion")
	}

	if c.Crawl.ListsPerBook < 1 {
		return fmt.Errorf("lists per book must be at least 1, got %d", c.Crawl.ListsPerBook)
	}
	if c.Crawl.ItemsPerList < 1 {
		return fmt.Errorf("items per list must be at least 1, got %d", c.Crawl.ItemsPerList)
	}

	// CalibreConfig.MetadataPath and Hardcover credentials may be empty;
	// the affected operations return NOT_CONFIGURED until they are set.

	return nil
}

// expandDataPath expands ~ and makes the path absolute.
func (c *Config) expandDataPath() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	defaultPath := filepath.Join(homeDir, "Bookscout", "data")

	expanded, err := expandPath(c.Data.BasePath, defaultPath)
	if err != nil {
		return err
	}
	c.Data.BasePath = expanded
	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// parseDurationValue resolves flag > env > default and parses the result.
func parseDurationValue(flagValue, envKey, defaultValue string) (time.Duration, error) {
	raw := getConfigValue(flagValue, envKey, defaultValue)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envKey, raw, err)
	}
	return d, nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(strValue, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		value = strings.Trim(value, `"'`)

		// Env vars take precedence over .env file values.
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
