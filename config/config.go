package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultBaseURL    = "https://github.com"
	DefaultOutputDir  = "topic_repos"
	DefaultTopicsFile = "topics.csv"
	DefaultUserAgent  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Config represents the scraper configuration
type Config struct {
	BaseURL    string `yaml:"base_url"`
	OutputDir  string `yaml:"output_dir"`
	TopicsFile string `yaml:"topics_file"`

	Fetcher   FetcherConfig  `yaml:"fetcher"`
	Selectors SelectorConfig `yaml:"selectors"`
	Database  DatabaseConfig `yaml:"database"`
	Sheets    SheetsConfig   `yaml:"sheets"`
	Telegram  TelegramConfig `yaml:"telegram"`
	Schedule  ScheduleConfig `yaml:"schedule"`
	Metrics   MetricsConfig  `yaml:"metrics"`
}

// FetcherConfig selects and tunes the page fetcher
type FetcherConfig struct {
	Engine    string        `yaml:"engine"` // "colly" or "rod"
	UserAgent string        `yaml:"user_agent"`
	Timeout   time.Duration `yaml:"timeout"` // 0 keeps the transport default
}

// SelectorConfig holds the CSS selectors that mark each role on a page
type SelectorConfig struct {
	TopicTitle       string `yaml:"topic_title"`
	TopicDescription string `yaml:"topic_description"`
	TopicLink        string `yaml:"topic_link"`
	RepoBlock        string `yaml:"repo_block"`
	RepoStars        string `yaml:"repo_stars"`
}

// DatabaseConfig enables the run archive. Driver is "postgres" or "sqlite".
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// SheetsConfig enables the Google Sheets export
type SheetsConfig struct {
	SpreadsheetURL  string `yaml:"spreadsheet_url"`
	CredentialsPath string `yaml:"credentials_path"`
}

// TelegramConfig enables the run summary notification
type TelegramConfig struct {
	Token    string `yaml:"token"`
	ChatID   int64  `yaml:"chat_id"`
	MinStars int    `yaml:"min_stars"`
}

// ScheduleConfig holds the cron expression used by the schedule command
type ScheduleConfig struct {
	Cron string `yaml:"cron"`
}

// MetricsConfig holds where metrics go: a node_exporter textfile written after
// each run, and an optional /metrics listener for the schedule command
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
	Listen   string `yaml:"listen"`
}

// LoadConfig loads configuration from a YAML file. Unset fields keep their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := GetDefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// GetDefaultConfig returns a default configuration
func GetDefaultConfig() *Config {
	cfg := &Config{
		BaseURL:    DefaultBaseURL,
		OutputDir:  DefaultOutputDir,
		TopicsFile: DefaultTopicsFile,
		Fetcher: FetcherConfig{
			Engine:    "colly",
			UserAgent: DefaultUserAgent,
		},
		Selectors: DefaultSelectors(),
		Schedule:  ScheduleConfig{Cron: "@daily"},
	}
	cfg.applyEnv()
	return cfg
}

// DefaultSelectors returns the selectors matching github.com/topics markup
func DefaultSelectors() SelectorConfig {
	return SelectorConfig{
		TopicTitle:       "p.f3.lh-condensed.mb-0.mt-1.Link--primary",
		TopicDescription: "p.f5.color-fg-muted.mb-0.mt-1",
		TopicLink:        "a.no-underline.flex-1.d-flex.flex-column",
		RepoBlock:        "h3.f3.color-fg-muted.text-normal.lh-condensed",
		RepoStars:        "span#repo-stars-counter-star",
	}
}

// Validate checks values that cannot be defaulted
func (c *Config) Validate() error {
	switch c.Fetcher.Engine {
	case "", "colly", "rod":
	default:
		return fmt.Errorf("unknown fetcher engine %q", c.Fetcher.Engine)
	}
	switch c.Database.Driver {
	case "", "postgres", "sqlite":
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if c.Database.Driver != "" && c.Database.DSN == "" {
		return fmt.Errorf("database driver %q set without dsn", c.Database.Driver)
	}
	if c.Fetcher.Timeout < 0 {
		return fmt.Errorf("negative fetcher timeout %s", c.Fetcher.Timeout)
	}
	return nil
}

// applyEnv fills secrets from the environment when the file leaves them empty
func (c *Config) applyEnv() {
	if c.Database.DSN == "" {
		if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
			c.Database.DSN = dsn
			if c.Database.Driver == "" {
				c.Database.Driver = "postgres"
			}
		}
	}
	if c.Telegram.Token == "" {
		c.Telegram.Token = os.Getenv("TELEGRAM_BOT_TOKEN")
	}
}
