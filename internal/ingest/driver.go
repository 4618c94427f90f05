package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/mindstream/mindstream/internal/clock"
	"github.com/mindstream/mindstream/internal/config"
	"github.com/mindstream/mindstream/internal/metrics"
	"go.uber.org/zap"
)

// ErrJobCreate marks a file whose remote job was never created; nothing was
// uploaded for it.
var ErrJobCreate = errors.New("create bulk ingest job")

// ErrPollTimeout marks a job that never reached a terminal state within the
// configured poll timeout. The remote job is left as-is.
var ErrPollTimeout = errors.New("timed out waiting for terminal job state")

// Driver runs the full job lifecycle for one CSV batch file:
// create -> upload -> close -> poll to terminal. Each step short-circuits
// the remaining ones on failure; a failed file never affects its siblings.
type Driver struct {
	client *Client
	cfg    config.IngestConfig
	clock  clock.Clock
	logger *zap.Logger
}

// NewDriver creates a Driver.
func NewDriver(client *Client, cfg config.IngestConfig, clk clock.Clock, logger *zap.Logger) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &Driver{client: client, cfg: cfg, clock: clk, logger: logger}
}

// ProcessFile runs the lifecycle for one file and reports its outcome.
func (d *Driver) ProcessFile(ctx context.Context, csvPath string) FileResult {
	res := FileResult{Path: csvPath}
	logger := d.logger.With(zap.String("file", csvPath))

	jobID, err := d.client.CreateJob(ctx, d.cfg.ObjectAPIName, d.cfg.SourceName)
	if err != nil {
		logger.Error("create job failed", zap.Error(err))
		res.Err = fmt.Errorf("%w: %v", ErrJobCreate, err)
		metrics.ObserveJob("create_failed")
		return res
	}
	res.JobID = jobID
	logger = logger.With(zap.String("job_id", jobID))
	logger.Info("created bulk ingest job")

	// An upload or close failure leaves the remote job dangling in its
	// current state; the service reaps those, so no cleanup call is made.
	if err := d.client.UploadBatch(ctx, jobID, csvPath); err != nil {
		logger.Error("upload failed", zap.Error(err))
		res.Err = err
		metrics.ObserveJob("upload_failed")
		return res
	}
	logger.Info("uploaded batch data")

	if err := d.client.CloseJob(ctx, jobID); err != nil {
		logger.Error("close failed", zap.Error(err))
		res.Err = err
		metrics.ObserveJob("close_failed")
		return res
	}
	logger.Info("closed job, awaiting processing")

	state, err := d.pollUntilTerminal(ctx, jobID, logger)
	res.State = state
	res.Err = err
	switch {
	case err != nil:
		metrics.ObserveJob("poll_failed")
	default:
		metrics.ObserveJob(string(state))
	}
	return res
}

// pollUntilTerminal polls the job state every PollInterval under a
// PollTimeout deadline so a stuck remote job cannot hold a worker slot
// forever. A failed poll breaks the loop immediately.
func (d *Driver) pollUntilTerminal(ctx context.Context, jobID string, logger *zap.Logger) (JobState, error) {
	pollCtx, cancel := context.WithTimeout(ctx, d.cfg.PollTimeout)
	defer cancel()

	var last JobState
	for {
		state, err := d.client.GetJobState(pollCtx, jobID)
		if err != nil {
			if pollCtx.Err() != nil && ctx.Err() == nil {
				return last, fmt.Errorf("%w: job %s, last state %q", ErrPollTimeout, jobID, last)
			}
			return last, fmt.Errorf("poll job %s: %w", jobID, err)
		}
		metrics.ObservePoll()
		last = state
		logger.Info("job state", zap.String("state", string(state)))
		if state.Terminal() {
			return state, nil
		}

		d.clock.Sleep(pollCtx, d.cfg.PollInterval)
		if pollCtx.Err() != nil {
			return last, fmt.Errorf("%w: job %s, last state %q", ErrPollTimeout, jobID, last)
		}
	}
}
