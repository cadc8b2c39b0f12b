// Package config loads crawl configuration from a file, environment
// variables, and defaults using viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration for a crawl run.
type Config struct {
	Library  LibraryConfig  `mapstructure:"library"`
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Download DownloadConfig `mapstructure:"download"`
	Publish  PublishConfig  `mapstructure:"publish"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// LibraryConfig identifies the site being crawled and where its corpus lives.
type LibraryConfig struct {
	Name     string   `mapstructure:"name"`
	RootURLs []string `mapstructure:"root_urls"`
	DataDir  string   `mapstructure:"data_dir"`
}

// CrawlerConfig bounds the crawl itself.
type CrawlerConfig struct {
	Concurrency       int      `mapstructure:"concurrency"`
	MaxDepth          int      `mapstructure:"max_depth"`
	MaxPages          int      `mapstructure:"max_pages"`
	DownloadExts      []string `mapstructure:"download_extensions"`
	ExcludedExts      []string `mapstructure:"excluded_extensions"`
	ExcludedPathParts []string `mapstructure:"excluded_path_parts"`
}

// BrowserConfig controls the headless browser session lifecycle.
type BrowserConfig struct {
	UserAgent          string        `mapstructure:"user_agent"`
	Headless           bool          `mapstructure:"headless"`
	NavTimeout         time.Duration `mapstructure:"nav_timeout"`
	MaxPagesPerSession int           `mapstructure:"max_pages_per_session"`
	MaxSessionAge      time.Duration `mapstructure:"max_session_age"`
}

// AuthConfig describes the login flow: primary form, optional secondary
// provider hop, and the markers used to recognize each stage.
type AuthConfig struct {
	Username         string `mapstructure:"username"`
	Password         string `mapstructure:"password"`
	UsernameSelector string `mapstructure:"username_selector"`
	PasswordSelector string `mapstructure:"password_selector"`
	SubmitSelector   string `mapstructure:"submit_selector"`

	SecondaryUsername         string   `mapstructure:"secondary_username"`
	SecondaryPassword         string   `mapstructure:"secondary_password"`
	SecondaryHosts            []string `mapstructure:"secondary_hosts"`
	SecondaryUsernameSelector string   `mapstructure:"secondary_username_selector"`
	SecondaryPasswordSelector string   `mapstructure:"secondary_password_selector"`
	SecondarySubmitSelector   string   `mapstructure:"secondary_submit_selector"`

	LoginHosts           []string      `mapstructure:"login_hosts"`
	LoginPathParts       []string      `mapstructure:"login_path_parts"`
	TargetDomain         string        `mapstructure:"target_domain"`
	StaySignedInSelector string        `mapstructure:"stay_signed_in_selector"`
	SecondFactorMarkers  []string      `mapstructure:"second_factor_markers"`
	LoggedInMarkers      []string      `mapstructure:"logged_in_markers"`
	StepTimeout          time.Duration `mapstructure:"step_timeout"`
	SecondFactorPoll     time.Duration `mapstructure:"second_factor_poll"`
	SecondFactorWait     time.Duration `mapstructure:"second_factor_wait"`
}

// DownloadConfig controls linked-document retrieval.
type DownloadConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxBodyBytes int           `mapstructure:"max_body_bytes"`
}

// PublishConfig controls corpus promotion.
type PublishConfig struct {
	MinArtifactCount int `mapstructure:"min_artifact_count"`
}

// ServerConfig controls the optional status HTTP server.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig selects the logger profile.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SITECRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("library.name", "library")
	v.SetDefault("library.data_dir", "data")
	v.SetDefault("crawler.concurrency", 3)
	v.SetDefault("crawler.max_depth", 6)
	v.SetDefault("crawler.max_pages", 5000)
	v.SetDefault("browser.user_agent", "sitecrawler/1.0")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.nav_timeout", "45s")
	v.SetDefault("browser.max_pages_per_session", 100)
	v.SetDefault("browser.max_session_age", "2h")
	v.SetDefault("auth.step_timeout", "30s")
	v.SetDefault("auth.second_factor_poll", "15s")
	v.SetDefault("auth.second_factor_wait", "120s")
	v.SetDefault("download.timeout", "60s")
	v.SetDefault("download.max_body_bytes", 64*1024*1024)
	v.SetDefault("publish.min_artifact_count", 5)
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	if c.Crawler.MaxDepth < 0 {
		return fmt.Errorf("crawler.max_depth must be >= 0")
	}
	if c.Browser.NavTimeout <= 0 {
		return fmt.Errorf("browser.nav_timeout must be > 0")
	}
	if c.Library.DataDir == "" {
		return fmt.Errorf("library.data_dir must be set")
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0 when the status server is enabled")
	}
	return nil
}
