// Package config loads Tessera's runtime configuration from a YAML file,
// environment variables, and a .env file. Environment variables override
// the YAML file; a .env file only supplies variables that are not already
// set in the environment; built-in defaults fill anything left unset.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App       App       `mapstructure:"app"`
	Database  Database  `mapstructure:"database"`
	Crawl     Crawl     `mapstructure:"crawl"`
	Services  Services  `mapstructure:"services"`
	Interests Interests `mapstructure:"interests"`
	Graph     Graph     `mapstructure:"graph"`
	Logging   Logging   `mapstructure:"logging"`
}

// App holds general application configuration.
type App struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
	DataDir  string `mapstructure:"data_dir"`
}

// Database holds knowledge-store configuration.
type Database struct {
	Path string `mapstructure:"path"`
}

// Crawl holds crawl-engine and fetcher defaults.
type Crawl struct {
	MinDelay       time.Duration `mapstructure:"min_delay"`
	MaxPerMinute   int           `mapstructure:"max_per_minute"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRedirects   int           `mapstructure:"max_redirects"`
	UserAgent      string        `mapstructure:"user_agent"`
	MaxDepth       int           `mapstructure:"max_depth"`
	MaxArticles    int           `mapstructure:"max_articles"`
	FanOutCap      int           `mapstructure:"fan_out_cap"` // 0 = unlimited
	FetchWorkers   int           `mapstructure:"fetch_workers"`
}

// Services holds base URLs and model names for the external embedding
// and chat services.
type Services struct {
	EmbedURL   string        `mapstructure:"embed_url"`
	EmbedModel string        `mapstructure:"embed_model"`
	ChatURL    string        `mapstructure:"chat_url"`
	ChatModel  string        `mapstructure:"chat_model"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// Interests holds the default interest-profile configuration.
type Interests struct {
	ProfileFile      string  `mapstructure:"profile_file"`
	FollowThreshold  float64 `mapstructure:"follow_threshold"`
	AdaptiveEnabled  bool    `mapstructure:"adaptive_enabled"`
}

// Graph holds graph-cache configuration.
type Graph struct {
	CacheDir string        `mapstructure:"cache_dir"`
	TTL      time.Duration `mapstructure:"ttl"`
	LRUSize  int           `mapstructure:"lru_size"`
}

// Logging holds logging configuration.
type Logging struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var globalConfig *Config

// Load loads configuration from a file (if given), environment variables,
// and a .env file, applying defaults for anything unset.
func Load(configFile string) (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Printf("Warning: error loading .env file: %v\n", err)
		}
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".tessera")
		viper.SetConfigType("yaml")
	}

	setDefaults()
	bindEnvironmentVariables()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := postProcessConfig(cfg); err != nil {
		return nil, fmt.Errorf("error post-processing config: %w", err)
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	globalConfig = cfg
	return cfg, nil
}

// Get returns the global configuration, loading it with defaults if
// it has not been loaded yet.
func Get() *Config {
	if globalConfig == nil {
		cfg, err := Load("")
		if err != nil {
			panic(fmt.Sprintf("failed to load configuration: %v", err))
		}
		return cfg
	}
	return globalConfig
}

func setDefaults() {
	viper.SetDefault("app.debug", false)
	viper.SetDefault("app.log_level", "info")
	viper.SetDefault("app.data_dir", ".tessera")

	viper.SetDefault("database.path", ".tessera/tessera.db")

	viper.SetDefault("crawl.min_delay", "1s")
	viper.SetDefault("crawl.max_per_minute", 30)
	viper.SetDefault("crawl.timeout", "30s")
	viper.SetDefault("crawl.max_redirects", 5)
	viper.SetDefault("crawl.user_agent", "Tessera/1.0 (+https://github.com/tessera-kg/tessera; personal knowledge graph builder)")
	viper.SetDefault("crawl.max_depth", 2)
	viper.SetDefault("crawl.max_articles", 100)
	viper.SetDefault("crawl.fan_out_cap", 0)
	viper.SetDefault("crawl.fetch_workers", 4)

	viper.SetDefault("services.embed_url", "http://localhost:8081")
	viper.SetDefault("services.embed_model", "tessera-embed-v1")
	viper.SetDefault("services.chat_url", "http://localhost:8082")
	viper.SetDefault("services.chat_model", "tessera-chat-v1")
	viper.SetDefault("services.timeout", "30s")

	viper.SetDefault("interests.profile_file", "")
	viper.SetDefault("interests.follow_threshold", 0.3)
	viper.SetDefault("interests.adaptive_enabled", false)

	viper.SetDefault("graph.cache_dir", ".tessera/cache")
	viper.SetDefault("graph.ttl", "1h")
	viper.SetDefault("graph.lru_size", 50)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

func bindEnvironmentVariables() {
	bindEnvKeys("database.path", []string{"TESSERA_DB_PATH"})
	bindEnvKeys("services.embed_url", []string{"TESSERA_EMBED_URL"})
	bindEnvKeys("services.chat_url", []string{"TESSERA_CHAT_URL"})
	bindEnvKeys("interests.profile_file", []string{"TESSERA_INTERESTS_FILE"})
	bindEnvKeys("app.debug", []string{"TESSERA_DEBUG"})
	bindEnvKeys("app.log_level", []string{"TESSERA_LOG_LEVEL"})
}

func bindEnvKeys(viperKey string, envKeys []string) {
	for _, envKey := range envKeys {
		if value := os.Getenv(envKey); value != "" {
			viper.Set(viperKey, value)
			return
		}
	}
}

func postProcessConfig(cfg *Config) error {
	if cfg.App.DataDir != "" {
		cfg.App.DataDir = expandPath(cfg.App.DataDir)
	}
	if cfg.Database.Path != "" {
		cfg.Database.Path = expandPath(cfg.Database.Path)
	}
	if cfg.Graph.CacheDir != "" {
		cfg.Graph.CacheDir = expandPath(cfg.Graph.CacheDir)
	}
	return nil
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return os.ExpandEnv(path)
}

func validateConfig(cfg *Config) error {
	var errs []string

	if cfg.Database.Path == "" {
		errs = append(errs, "database.path must not be empty")
	}
	if cfg.Interests.FollowThreshold < 0 || cfg.Interests.FollowThreshold > 1 {
		errs = append(errs, "interests.follow_threshold must be in [0, 1]")
	}
	if cfg.Crawl.MinDelay < 0 {
		errs = append(errs, "crawl.min_delay must not be negative")
	}
	if cfg.Crawl.MaxPerMinute <= 0 {
		errs = append(errs, "crawl.max_per_minute must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

// Reset clears the global configuration. Useful for tests.
func Reset() {
	globalConfig = nil
	viper.Reset()
}
