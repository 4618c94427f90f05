package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/mindstream/mindstream/internal/config"
	"github.com/mindstream/mindstream/internal/id/uuid"
	"github.com/mindstream/mindstream/internal/metrics"
	"go.uber.org/zap"
)

// FileProcessor runs the job lifecycle for a single batch file.
type FileProcessor interface {
	ProcessFile(ctx context.Context, csvPath string) FileResult
}

// Coordinator fans batch files out across a bounded worker pool. Each file's
// outcome is independent: a failure or panic in one worker never cancels the
// others, and the caller sees outcomes, not errors.
type Coordinator struct {
	processor FileProcessor
	cfg       config.IngestConfig
	ids       *uuid.Generator
	logger    *zap.Logger

	// OnResult, when set, is invoked for every finished file. Used by the
	// CLI to advance its progress bar.
	OnResult func(FileResult)
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(processor FileProcessor, cfg config.IngestConfig, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		processor: processor,
		cfg:       cfg,
		ids:       uuid.New(),
		logger:    logger,
	}
}

// Run processes every file with at most MaxConcurrentJobs workers and
// returns one result per input file, in input order.
func (c *Coordinator) Run(ctx context.Context, csvFiles []string) []FileResult {
	logger := c.logger
	if runID, err := c.ids.NewID(); err == nil {
		logger = logger.With(zap.String("run_id", runID))
	}
	logger.Info("starting bulk ingest",
		zap.Int("files", len(csvFiles)),
		zap.Int("max_concurrent_jobs", c.cfg.MaxConcurrentJobs),
	)

	workers := c.cfg.MaxConcurrentJobs
	if workers > len(csvFiles) {
		workers = len(csvFiles)
	}
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan string)
	outcomes := make(chan FileResult)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				outcomes <- c.processSafely(ctx, path, logger)
			}
		}()
	}

	go func() {
		for _, path := range csvFiles {
			jobs <- path
		}
		close(jobs)
		wg.Wait()
		close(outcomes)
	}()

	byPath := make(map[string]FileResult, len(csvFiles))
	for res := range outcomes {
		byPath[res.Path] = res
		if c.OnResult != nil {
			c.OnResult(res)
		}
	}

	results := make([]FileResult, 0, len(csvFiles))
	succeeded := 0
	for _, path := range csvFiles {
		res := byPath[path]
		if res.Succeeded() {
			succeeded++
		}
		results = append(results, res)
	}
	logger.Info("bulk ingest finished",
		zap.Int("succeeded", succeeded),
		zap.Int("failed", len(csvFiles)-succeeded),
	)
	return results
}

// processSafely isolates one file's processing, converting panics into a
// failed FileResult so sibling files keep going.
func (c *Coordinator) processSafely(ctx context.Context, path string, logger *zap.Logger) (res FileResult) {
	metrics.UploadStarted()
	defer metrics.UploadFinished()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic while processing file", zap.String("file", path), zap.Any("cause", r))
			res = FileResult{Path: path, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	res = c.processor.ProcessFile(ctx, path)
	if res.Err != nil {
		logger.Error("file processing failed", zap.String("file", path), zap.Error(res.Err))
	} else {
		logger.Info("file processing finished",
			zap.String("file", path),
			zap.String("job_id", res.JobID),
			zap.String("state", string(res.State)),
		)
	}
	return res
}

// ListBatchFiles returns the CSV batch files in dir, ordered by their
// data_<n>.csv sequence number where present, lexically otherwise.
func ListBatchFiles(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("list batch files in %s: %w", dir, err)
	}
	if len(matches) == 0 {
		if _, statErr := os.Stat(dir); statErr != nil {
			return nil, fmt.Errorf("list batch files in %s: %w", dir, statErr)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		ni, iok := batchSeq(matches[i])
		nj, jok := batchSeq(matches[j])
		if iok && jok {
			return ni < nj
		}
		return matches[i] < matches[j]
	})
	return matches, nil
}

func batchSeq(path string) (int, bool) {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, ".csv")
	name = strings.TrimPrefix(name, "data_")
	n, err := strconv.Atoi(name)
	return n, err == nil
}
