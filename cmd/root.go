package cmd

import (
	"context"
	"fmt"

	"github.com/mindstream/mindstream/internal/app"
	"github.com/mindstream/mindstream/internal/config"
	"github.com/mindstream/mindstream/internal/logging"
	"github.com/mindstream/mindstream/internal/orgs"
	pkgconfig "github.com/mindstream/mindstream/pkg/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var cfgFile string

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application interface that commands use. The indirection
// lets tests inject a mock app.
type App interface {
	Close()
	GetLogger() *zap.Logger
	GetConfig() config.Config
	GetRegistry() *orgs.Registry
}

// newApp is the application factory. It's a variable so tests can replace
// it with a mock factory.
var newApp func(ctx context.Context) (App, error) = func(ctx context.Context) (App, error) {
	return app.NewApp(ctx)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mindstream",
		Short: "Crawl web content and bulk-ingest it into Salesforce Data Cloud.",
		Long: `mindstream runs a three-stage pipeline: crawl a site into raw JSON,
convert the pages into sanitized CSV batches, and upload the batches to
Salesforce Data Cloud through its bulk ingest API.`,

		// This hook runs AFTER config is loaded but BEFORE the subcommand's RunE,
		// which makes it the right place to build and inject the application.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}

			// Store the app instance in the context for subcommands to use.
			ctx := context.WithValue(cmd.Context(), appKey, appInstance)
			cmd.SetContext(ctx)
			return nil
		},

		// This hook ensures services are shut down gracefully.
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	// Initialize Viper configuration.
	cobra.OnInitialize(pkgconfig.InitConfig)

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml or $HOME/.mindstream/config.yaml)")

	cmd.AddCommand(
		newCrawlCmd(),
		newConvertCmd(),
		newUploadCmd(),
		newPipelineCmd(),
		newAuthCmd(),
		newOrgCmd(),
	)

	return cmd
}

// Execute is the main entry point.
func Execute() {
	// Initialize the logger once at the very start.
	logging.InitLogger()

	if err := newRootCmd().Execute(); err != nil {
		logging.L.Fatal("Command execution failed", zap.Error(err))
	}
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, fmt.Errorf("application services not initialized")
	}
	return appInstance, nil
}
