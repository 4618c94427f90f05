// Package crawler calls the spider.cloud crawl API and persists its output.
package crawler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/mindstream/mindstream/internal/config"
	"github.com/mindstream/mindstream/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// maxErrorBodyBytes caps how much of an error response is kept for logging.
const maxErrorBodyBytes = 8 * 1024

// crawlRequest is the spider.cloud request payload. return_format, request,
// metadata, respect_robots and readability are fixed by the pipeline contract.
type crawlRequest struct {
	Limit         int      `json:"limit"`
	ReturnFormat  string   `json:"return_format"`
	Request       string   `json:"request"`
	Metadata      bool     `json:"metadata"`
	RespectRobots bool     `json:"respect_robots"`
	Readability   bool     `json:"readability"`
	URL           string   `json:"url"`
	Whitelist     []string `json:"whitelist"`
}

// Client performs one crawl run against the spider.cloud API.
type Client struct {
	cfg        config.CrawlerConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// New constructs a crawl Client with a tuned HTTP transport.
func New(cfg config.CrawlerConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          16,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.RequestTimeout,
		ForceAttemptHTTP2:     true,
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.RequestTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		logger:  logger,
	}
}

// Crawl issues the crawl request and writes the response JSON verbatim to
// <output_dir>/data.json, returning the written path.
func (c *Client) Crawl(ctx context.Context) (string, error) {
	if c.cfg.APIKey == "" {
		return "", fmt.Errorf("crawler.api_key must be set")
	}
	if c.cfg.CrawlURL == "" {
		return "", fmt.Errorf("crawler.url must be set")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter wait: %w", err)
	}

	payload := crawlRequest{
		Limit:         c.cfg.PageLimit,
		ReturnFormat:  "raw",
		Request:       "smart_mode",
		Metadata:      true,
		RespectRobots: false,
		Readability:   true,
		URL:           c.cfg.CrawlURL,
		Whitelist:     c.cfg.Whitelist,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal crawl request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build crawl request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	c.logger.Info("starting crawl",
		zap.String("url", c.cfg.CrawlURL),
		zap.Int("limit", c.cfg.PageLimit),
	)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("crawl request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	metrics.ObserveCrawlRequest(strconv.Itoa(resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return "", fmt.Errorf("crawl request failed: status %d, body %s", resp.StatusCode, snippet)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read crawl response: %w", err)
	}
	return c.persist(data)
}

// persist re-indents the response and writes it to the output directory.
func (c *Client) persist(data []byte) (string, error) {
	var parsed any
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("decode crawl response: %w", err)
	}
	pretty, err := json.MarshalIndent(parsed, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode crawl output: %w", err)
	}

	if err := os.MkdirAll(c.cfg.OutputDir, 0o750); err != nil {
		return "", fmt.Errorf("create output dir %s: %w", c.cfg.OutputDir, err)
	}
	target := filepath.Join(c.cfg.OutputDir, "data.json")
	if err := os.WriteFile(target, pretty, 0o600); err != nil {
		return "", fmt.Errorf("write crawl output %s: %w", target, err)
	}
	c.logger.Info("saved crawl output", zap.String("path", target), zap.Int("bytes", len(pretty)))
	return target, nil
}
