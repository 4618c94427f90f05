package cmd

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/mindstream/mindstream/internal/auth"
	"github.com/mindstream/mindstream/internal/clock"
	"github.com/mindstream/mindstream/internal/ingest"
	"github.com/spf13/cobra"
)

// newUploadCmd creates and configures the 'upload' subcommand. It pushes
// every CSV batch through the bulk ingest job lifecycle.
func newUploadCmd() *cobra.Command {
	var (
		orgName     string
		accessToken string
		instanceURL string
	)
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Uploads CSV batches to Data Cloud via bulk ingest",
		Long: `Acquires a Data Cloud token for the selected org and runs one bulk
ingest job per CSV file in the converter output directory, with a bounded
number of jobs in flight. Each file succeeds or fails on its own.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			results, err := runUploadStage(cmd.Context(), appInstance, uploadOpts{
				orgName:     orgName,
				accessToken: accessToken,
				instanceURL: instanceURL,
			})
			if err != nil {
				return err
			}
			return reportUploadResults(results)
		},
	}
	cmd.Flags().StringVar(&orgName, "org", "", "org username (defaults to the current org)")
	cmd.Flags().StringVar(&accessToken, "access-token", "", "pre-acquired Data Cloud token (skips the JWT exchange)")
	cmd.Flags().StringVar(&instanceURL, "instance-url", "", "Data Cloud instance URL (required with --access-token)")
	return cmd
}

// uploadOpts carries the per-invocation upload knobs.
type uploadOpts struct {
	orgName     string
	accessToken string
	instanceURL string
}

// runUploadStage lists the CSV batches, acquires a token unless one was
// provided, and drives the upload pool. It returns one result per file.
func runUploadStage(ctx context.Context, appInstance App, opts uploadOpts) ([]ingest.FileResult, error) {
	cfg := appInstance.GetConfig()
	logger := appInstance.GetLogger()

	files, err := ingest.ListBatchFiles(cfg.Converter.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("list batch files: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no CSV batches in %s; run 'mindstream convert' first", cfg.Converter.OutputDir)
	}

	ingestCfg := cfg.Ingest
	tokens := auth.TokenSet{AccessToken: opts.accessToken, InstanceURL: opts.instanceURL}
	if tokens.AccessToken == "" {
		org, err := currentOrg(appInstance, opts.orgName)
		if err != nil {
			return nil, err
		}

		// Org-level overrides for the ingest target win over the static config.
		if defaults, derr := appInstance.GetRegistry().EffectiveDefaults(org.Username); derr == nil {
			ingestCfg.ObjectAPIName = defaults.ObjectAPIName
			ingestCfg.SourceName = defaults.SourceName
			ingestCfg.MaxConcurrentJobs = defaults.MaxConcurrentJobs
		}

		tokens, err = acquireTokens(ctx, appInstance, org)
		if err != nil {
			return nil, fmt.Errorf("acquire tokens for %s: %w", org.Username, err)
		}
	} else if tokens.InstanceURL == "" {
		return nil, fmt.Errorf("--instance-url is required when --access-token is set")
	}

	client := ingest.NewClient(tokens.InstanceURL, tokens.AccessToken, ingestCfg.RequestTimeout, logger)
	driver := ingest.NewDriver(client, ingestCfg, clock.NewSystem(), logger)
	coordinator := ingest.NewCoordinator(driver, ingestCfg, logger)

	bar := getProgressBar(len(files), fmt.Sprintf("Uploading to %s", ingestCfg.ObjectAPIName))
	coordinator.OnResult = func(ingest.FileResult) {
		_ = bar.Add(1)
	}

	results := coordinator.Run(ctx, files)
	_ = bar.Finish()
	return results, nil
}

// reportUploadResults prints a per-file summary and returns an error when
// any file failed, so the process exits non-zero.
func reportUploadResults(results []ingest.FileResult) error {
	failed := 0
	for _, res := range results {
		if res.Succeeded() {
			color.Green("✓ %s (job %s)\n", res.Path, res.JobID)
			continue
		}
		failed++
		if res.Err != nil {
			color.Red("✗ %s: %v\n", res.Path, res.Err)
		} else {
			color.Red("✗ %s: job %s ended in state %s\n", res.Path, res.JobID, res.State)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d file(s) failed to upload", failed, len(results))
	}
	color.Green("\n✓ Uploaded %d file(s)\n", len(results))
	return nil
}
