package cmd

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// newPipelineCmd creates the 'pipeline' subcommand, which runs the three
// stages back to back: crawl, convert, upload.
func newPipelineCmd() *cobra.Command {
	var (
		crawlURL string
		orgName  string
	)
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Runs crawl, convert, and upload in sequence",

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

			files, err := runConvertStage(cmd.Context(), appInstance)
			if err != nil {
				return err
			}
			color.Green("✓ Wrote %d CSV file(s)\n", len(files))

			results, err := runUploadStage(cmd.Context(), appInstance, uploadOpts{orgName: orgName})
			if err != nil {
				return err
			}
			return reportUploadResults(results)
		},
	}
	cmd.Flags().StringVar(&crawlURL, "url", "", "site to crawl (overrides configuration)")
	cmd.Flags().StringVar(&orgName, "org", "", "org username (defaults to the current org)")
	return cmd
}
