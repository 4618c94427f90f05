// Package converter turns crawl output JSON into size-bounded CSV batches.
package converter

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mindstream/mindstream/internal/clock"
	"github.com/mindstream/mindstream/internal/config"
	"github.com/mindstream/mindstream/internal/metrics"
	"github.com/mindstream/mindstream/internal/sanitize"
	"go.uber.org/zap"
)

// timeLayout is the row timestamp format: UTC, second precision.
const timeLayout = "2006-01-02T15:04:05Z"

// Metadata carries the optional per-document fields from the crawler.
type Metadata struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Document is one crawled page as produced by the crawl API.
type Document struct {
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`
	URL      string   `json:"url"`
}

// Converter consumes every *.json file in the input directory and writes the
// surviving rows into sequentially numbered CSV batch files.
type Converter struct {
	cfg       config.ConverterConfig
	sanitizer *sanitize.Sanitizer
	clock     clock.Clock
	logger    *zap.Logger
}

// New creates a Converter.
func New(cfg config.ConverterConfig, s *sanitize.Sanitizer, clk clock.Clock, logger *zap.Logger) *Converter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &Converter{cfg: cfg, sanitizer: s, clock: clk, logger: logger}
}

// Convert runs the conversion and returns the batch files it produced.
// Individual documents and input files fail soft; only filesystem-level
// problems (unreadable input dir, unwritable output dir) are errors.
func (c *Converter) Convert(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(c.cfg.InputDir)
	if err != nil {
		return nil, fmt.Errorf("read input dir %s: %w", c.cfg.InputDir, err)
	}

	writer, err := newBatchWriter(c.cfg.OutputDir, c.cfg.MaxFileBytes, c.logger)
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			break
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(c.cfg.InputDir, entry.Name())
		c.logger.Info("processing crawl file", zap.String("path", path))
		if err := c.convertFile(path, writer); err != nil {
			c.logger.Error("crawl file failed", zap.String("path", path), zap.Error(err))
		}
	}

	if err := writer.Close(); err != nil {
		return writer.Files(), fmt.Errorf("close batch writer: %w", err)
	}
	c.logger.Info("conversion completed",
		zap.Int("files", len(writer.Files())),
		zap.Int64("rows", writer.RowsWritten()),
	)
	return writer.Files(), nil
}

func (c *Converter) convertFile(path string, writer *batchWriter) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	var docs []json.RawMessage
	if err := json.Unmarshal(data, &docs); err != nil {
		c.logger.Warn("skipping file: not a JSON array", zap.String("path", path), zap.Error(err))
		return nil
	}

	for _, raw := range docs {
		var doc Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			c.logger.Error("skipping malformed document", zap.String("path", path), zap.Error(err))
			continue
		}
		c.convertDocument(path, doc, writer)
	}
	return nil
}

func (c *Converter) convertDocument(path string, doc Document, writer *batchWriter) {
	cleaned := c.sanitizer.Clean(doc.Content)
	if skippableContent(cleaned) {
		c.logger.Info("skipping row: empty content", zap.String("path", path), zap.String("url", doc.URL))
		metrics.ObserveRow("skipped")
		return
	}

	docURL := doc.URL
	if docURL == "" {
		docURL = doc.Metadata.URL
	}

	row := []string{
		cleaned,
		docURL,
		c.clock.Now().Format(timeLayout),
		doc.Metadata.Title,
		docURL,
	}
	if err := writer.WriteRow(row); err != nil {
		c.logger.Error("write row failed", zap.String("path", path), zap.String("url", docURL), zap.Error(err))
		return
	}
	metrics.ObserveRow("written")
}

// skippableContent reports whether a sanitized document should be dropped.
// The literal "None" shows up when the upstream serializer stringifies a
// missing value; dropped here until that is fixed at the source.
func skippableContent(cleaned string) bool {
	trimmed := strings.TrimSpace(cleaned)
	return trimmed == "" || trimmed == "None"
}
