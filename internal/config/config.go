// Package config materializes the typed pipeline configuration.
//
// Viper is read exactly once, at Load time; every component downstream
// receives its section by value instead of consulting global state.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// CrawlerConfig drives the crawl stage.
type CrawlerConfig struct {
	Endpoint          string
	APIKey            string
	CrawlURL          string
	Whitelist         []string
	PageLimit         int
	RequestTimeout    time.Duration
	RequestsPerSecond float64
	OutputDir         string
}

// ConverterConfig drives the JSON to CSV conversion stage.
type ConverterConfig struct {
	InputDir     string
	OutputDir    string
	MaxFileBytes int64
}

// IngestConfig drives the bulk ingest stage.
type IngestConfig struct {
	ObjectAPIName     string
	SourceName        string
	MaxConcurrentJobs int
	PollInterval      time.Duration
	PollTimeout       time.Duration
	RequestTimeout    time.Duration
}

// AuthConfig drives token acquisition.
type AuthConfig struct {
	LoginURL      string
	TokenLifetime time.Duration
}

// Config is the full pipeline configuration.
type Config struct {
	Crawler     CrawlerConfig
	Converter   ConverterConfig
	Ingest      IngestConfig
	Auth        AuthConfig
	MetricsAddr string
}

// Load constructs a Config by reading from Viper.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		Crawler: CrawlerConfig{
			Endpoint:          v.GetString("crawler.endpoint"),
			APIKey:            v.GetString("crawler.api_key"),
			CrawlURL:          v.GetString("crawler.url"),
			Whitelist:         v.GetStringSlice("crawler.whitelist"),
			PageLimit:         v.GetInt("crawler.page_limit"),
			RequestTimeout:    v.GetDuration("crawler.request_timeout"),
			RequestsPerSecond: v.GetFloat64("crawler.requests_per_second"),
			OutputDir:         v.GetString("crawler.output_dir"),
		},
		Converter: ConverterConfig{
			InputDir:     v.GetString("converter.input_dir"),
			OutputDir:    v.GetString("converter.output_dir"),
			MaxFileBytes: v.GetInt64("converter.max_file_bytes"),
		},
		Ingest: IngestConfig{
			ObjectAPIName:     v.GetString("ingest.object_api_name"),
			SourceName:        v.GetString("ingest.source_name"),
			MaxConcurrentJobs: v.GetInt("ingest.max_concurrent_jobs"),
			PollInterval:      v.GetDuration("ingest.poll_interval"),
			PollTimeout:       v.GetDuration("ingest.poll_timeout"),
			RequestTimeout:    v.GetDuration("ingest.request_timeout"),
		},
		Auth: AuthConfig{
			LoginURL:      v.GetString("auth.login_url"),
			TokenLifetime: v.GetDuration("auth.token_lifetime"),
		},
		MetricsAddr: v.GetString("metrics.listen_addr"),
	}
	return cfg, cfg.Validate()
}

// Validate checks for obviously bad configuration combinations. Values that
// are only needed by one stage (API key, crawl URL) are validated by that
// stage so the other subcommands stay usable without them.
func (c Config) Validate() error {
	if c.Crawler.Endpoint == "" {
		return fmt.Errorf("crawler.endpoint must be set")
	}
	if c.Crawler.PageLimit <= 0 {
		return fmt.Errorf("crawler.page_limit must be > 0")
	}
	if c.Crawler.RequestTimeout <= 0 {
		return fmt.Errorf("crawler.request_timeout must be > 0")
	}
	if c.Crawler.RequestsPerSecond <= 0 {
		return fmt.Errorf("crawler.requests_per_second must be > 0")
	}
	if c.Crawler.OutputDir == "" {
		return fmt.Errorf("crawler.output_dir must be set")
	}
	if c.Converter.InputDir == "" || c.Converter.OutputDir == "" {
		return fmt.Errorf("converter.input_dir and converter.output_dir must be set")
	}
	if c.Converter.MaxFileBytes <= 0 {
		return fmt.Errorf("converter.max_file_bytes must be > 0")
	}
	if c.Ingest.ObjectAPIName == "" {
		return fmt.Errorf("ingest.object_api_name must be set")
	}
	if c.Ingest.SourceName == "" {
		return fmt.Errorf("ingest.source_name must be set")
	}
	if c.Ingest.MaxConcurrentJobs <= 0 {
		return fmt.Errorf("ingest.max_concurrent_jobs must be > 0")
	}
	if c.Ingest.PollInterval <= 0 {
		return fmt.Errorf("ingest.poll_interval must be > 0")
	}
	if c.Ingest.PollTimeout <= 0 {
		return fmt.Errorf("ingest.poll_timeout must be > 0")
	}
	if c.Auth.LoginURL == "" {
		return fmt.Errorf("auth.login_url must be set")
	}
	if c.Auth.TokenLifetime <= 0 {
		return fmt.Errorf("auth.token_lifetime must be > 0")
	}
	return nil
}
