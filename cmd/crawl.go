// Package cmd defines and implements the CLI commands for the mindstream executable.
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/mindstream/mindstream/internal/config"
	"github.com/mindstream/mindstream/internal/crawler"
	"github.com/mindstream/mindstream/internal/orgs"
	"github.com/spf13/cobra"
)

// newCrawlCmd creates and configures the 'crawl' subcommand. It fetches the
// configured site through the crawl API and stores the raw JSON result.
func newCrawlCmd() *cobra.Command {
	var crawlURL string
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawls the configured site into a raw JSON dump",
		Long: `Submits a crawl request for the configured URL and writes the raw
JSON result into the crawler output directory, ready for conversion.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			path, err := runCrawlStage(cmd.Context(), appInstance, crawlURL)
			if err != nil {
				return err
			}
			color.Green("✓ Crawl result saved to %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&crawlURL, "url", "", "site to crawl (overrides configuration)")
	return cmd
}

// runCrawlStage runs the crawl with the effective configuration and returns
// the path of the saved JSON dump. Values missing from the typed config are
// filled in from the current org's stored defaults.
func runCrawlStage(ctx context.Context, appInstance App, urlOverride string) (string, error) {
	cfg := appInstance.GetConfig().Crawler
	if urlOverride != "" {
		cfg.CrawlURL = urlOverride
	}
	fillCrawlerDefaults(&cfg, appInstance)

	spinner := getSpinner(fmt.Sprintf("Crawling %s", cfg.CrawlURL))
	path, err := crawler.New(cfg, appInstance.GetLogger()).Crawl(ctx)
	_ = spinner.Finish()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", err
		}
		return "", fmt.Errorf("run crawl: %w", err)
	}
	return path, nil
}

// fillCrawlerDefaults backfills crawl credentials and targets from the org
// registry when the configuration leaves them empty. Explicit configuration
// always wins over stored org defaults.
func fillCrawlerDefaults(cfg *config.CrawlerConfig, appInstance App) {
	current, err := appInstance.GetRegistry().Current()
	if err != nil {
		return
	}
	defaults, err := appInstance.GetRegistry().EffectiveDefaults(current.Username)
	if err != nil {
		return
	}
	if cfg.CrawlURL == "" {
		cfg.CrawlURL = defaults.CrawlURL
	}
	if cfg.APIKey == "" {
		cfg.APIKey = defaults.APIKey
	}
	if len(cfg.Whitelist) == 0 {
		cfg.Whitelist = defaults.Whitelist
	}
}

// currentOrg resolves the org a command should target: the --org flag value
// when given, otherwise the registry's current selection.
func currentOrg(appInstance App, username string) (orgs.Org, error) {
	if username != "" {
		return appInstance.GetRegistry().Get(username)
	}
	org, err := appInstance.GetRegistry().Current()
	if err != nil {
		return orgs.Org{}, fmt.Errorf("no org selected; run 'mindstream org use <username>' or pass --org: %w", err)
	}
	return org, nil
}
