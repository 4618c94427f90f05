package cmd

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/mindstream/mindstream/internal/clock"
	"github.com/mindstream/mindstream/internal/converter"
	"github.com/mindstream/mindstream/internal/sanitize"
	"github.com/spf13/cobra"
)

// newConvertCmd creates and configures the 'convert' subcommand. It turns
// the raw crawl JSON into sanitized, size-bounded CSV batches.
func newConvertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "convert",
		Short: "Converts crawl JSON into sanitized CSV batches",
		Long: `Reads every JSON file in the converter input directory, strips the
page content down to plain structural HTML, and writes the rows into
numbered CSV files that stay under the configured size limit.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			files, err := runConvertStage(cmd.Context(), appInstance)
			if err != nil {
				return err
			}
			color.Green("✓ Wrote %d CSV file(s)\n", len(files))
			return nil
		},
	}
}

// runConvertStage runs the conversion and returns the CSV files it produced.
func runConvertStage(ctx context.Context, appInstance App) ([]string, error) {
	logger := appInstance.GetLogger()
	conv := converter.New(
		appInstance.GetConfig().Converter,
		sanitize.New(logger),
		clock.NewSystem(),
		logger,
	)
	files, err := conv.Convert(ctx)
	if err != nil {
		return nil, fmt.Errorf("run conversion: %w", err)
	}
	return files, nil
}
