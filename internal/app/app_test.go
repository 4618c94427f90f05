// Package app_test contains unit tests for the app package.
package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/mindstream/mindstream/internal/app"
	"github.com/mindstream/mindstream/internal/logging"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	// Initialize the logger for all tests in this package.
	logging.InitLogger()
	m.Run()
}

// setupTest configures Viper with a complete, valid configuration rooted in
// a temp directory. Metrics listener stays off so tests don't bind ports.
func setupTest(t *testing.T) {
	t.Helper()
	viper.Reset()
	viper.Set("crawler.endpoint", "https://api.spider.cloud/crawl")
	viper.Set("crawler.page_limit", 50)
	viper.Set("crawler.request_timeout", 300*time.Second)
	viper.Set("crawler.requests_per_second", 1.0)
	viper.Set("crawler.output_dir", t.TempDir())
	viper.Set("converter.input_dir", t.TempDir())
	viper.Set("converter.output_dir", t.TempDir())
	viper.Set("converter.max_file_bytes", 100*1024*1024)
	viper.Set("ingest.object_api_name", "Document")
	viper.Set("ingest.source_name", "mindstream_data")
	viper.Set("ingest.max_concurrent_jobs", 5)
	viper.Set("ingest.poll_interval", 10*time.Second)
	viper.Set("ingest.poll_timeout", 30*time.Minute)
	viper.Set("ingest.request_timeout", 60*time.Second)
	viper.Set("auth.login_url", "https://login.salesforce.com")
	viper.Set("auth.token_lifetime", 2*time.Hour)
	viper.Set("metrics.listen_addr", "")
	viper.Set("orgs.base_dir", t.TempDir())
}

func TestNewApp_Success(t *testing.T) {
	setupTest(t)

	a, err := app.NewApp(context.Background())
	require.NoError(t, err)
	require.NotNil(t, a)

	assert.NotNil(t, a.GetLogger())
	assert.NotNil(t, a.GetRegistry())
	assert.Equal(t, "Document", a.GetConfig().Ingest.ObjectAPIName)
	assert.Equal(t, 5, a.GetConfig().Ingest.MaxConcurrentJobs)

	a.Close()
}

func TestNewApp_InvalidConfig(t *testing.T) {
	setupTest(t)
	viper.Set("ingest.max_concurrent_jobs", 0)

	_, err := app.NewApp(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ingest.max_concurrent_jobs")
}

func TestNewApp_MissingLoginURL(t *testing.T) {
	setupTest(t)
	viper.Set("auth.login_url", "")

	_, err := app.NewApp(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth.login_url")
}
