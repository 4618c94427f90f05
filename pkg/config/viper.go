// Package config is responsible for initializing the application's configuration.
// It uses the Viper library to read settings from a config file, environment
// variables, and command-line flags, providing a unified configuration system.
package config

import (
	"strings"

	"github.com/mindstream/mindstream/internal/logging"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// InitConfig initializes the application's configuration using Viper.
// It sets up default values, defines configuration search paths, and enables
// reading from environment variables. This function is designed to be called
// once at application startup so that configuration is loaded before any
// command runs.
func InitConfig() {
	// --- Set Search Paths ---
	viper.SetConfigName("config")
	viper.AddConfigPath(".")                 // Current working directory
	viper.AddConfigPath("/etc/mindstream/")  // System-wide configuration
	viper.AddConfigPath("$HOME/.mindstream") // User-specific configuration

	// --- Set Defaults ---
	// Crawl stage.
	viper.SetDefault("crawler.endpoint", "https://api.spider.cloud/crawl")
	viper.SetDefault("crawler.page_limit", 50)
	viper.SetDefault("crawler.whitelist", []string{})
	viper.SetDefault("crawler.request_timeout", "300s")
	viper.SetDefault("crawler.requests_per_second", 1.0)
	viper.SetDefault("crawler.output_dir", "results")

	// Convert stage.
	viper.SetDefault("converter.input_dir", "results")
	viper.SetDefault("converter.output_dir", "csv_files")
	viper.SetDefault("converter.max_file_bytes", 100*1024*1024)

	// Upload stage.
	viper.SetDefault("ingest.object_api_name", "Document")
	viper.SetDefault("ingest.source_name", "mindstream_data")
	viper.SetDefault("ingest.max_concurrent_jobs", 5)
	viper.SetDefault("ingest.poll_interval", "10s")
	viper.SetDefault("ingest.poll_timeout", "30m")
	viper.SetDefault("ingest.request_timeout", "60s")

	// Auth.
	viper.SetDefault("auth.login_url", "https://login.salesforce.com")
	viper.SetDefault("auth.token_lifetime", "2h")

	// Metrics endpoint started alongside long-running stages.
	viper.SetDefault("metrics.listen_addr", ":8080")

	// Org registry location. Empty means $HOME/.mindstream.
	viper.SetDefault("orgs.base_dir", "")

	// --- Environment Variables ---
	viper.SetEnvPrefix("MINDSTREAM") // e.g., MINDSTREAM_CRAWLER_PAGE_LIMIT=100
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// --- Read Config File ---
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; this is not a fatal error if we can proceed
			// with defaults and environment variables.
			logging.L.Warn("Config file not found; using defaults and environment variables.")
		} else {
			// A real error occurred while parsing the config file.
			logging.L.Error("Error reading config file", zap.Error(err))
		}
	} else {
		logging.L.Info("Using config file", zap.String("path", viper.ConfigFileUsed()))
	}
}
