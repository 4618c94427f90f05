package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
)

// maxErrorBodyBytes caps how much of an error response is kept for logging.
const maxErrorBodyBytes = 8 * 1024

// Client is a thin wrapper over the bulk ingest REST endpoints. All calls
// share one bearer token acquired before the run; there is no mid-run
// refresh.
type Client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
	logger      *zap.Logger
}

// NewClient builds a Client for <instanceURL>/api/v1/ingest/jobs.
func NewClient(instanceURL, accessToken string, requestTimeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:     strings.TrimRight(instanceURL, "/") + "/api/v1/ingest/jobs",
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: requestTimeout},
		logger:      logger,
	}
}

// CreateJob opens a new upsert job and returns its id.
func (c *Client) CreateJob(ctx context.Context, objectAPIName, sourceName string) (string, error) {
	payload := map[string]string{
		"object":     objectAPIName,
		"sourceName": sourceName,
		"operation":  "upsert",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal create job payload: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, c.baseURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", c.statusError("create job", resp)
	}
	var jobInfo struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&jobInfo); err != nil {
		return "", fmt.Errorf("decode create job response: %w", err)
	}
	if jobInfo.ID == "" {
		return "", fmt.Errorf("create job: response carried no id")
	}
	return jobInfo.ID, nil
}

// UploadBatch PUTs the raw CSV file bytes to the job's batch endpoint.
func (c *Client) UploadBatch(ctx context.Context, jobID, csvPath string) error {
	data, err := os.ReadFile(csvPath)
	if err != nil {
		return fmt.Errorf("read batch file %s: %w", csvPath, err)
	}

	resp, err := c.do(ctx, http.MethodPut, c.baseURL+"/"+jobID+"/batches", "text/csv", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("upload batch: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return c.statusError("upload batch", resp)
	}
	return nil
}

// CloseJob signals that no more data will be uploaded.
func (c *Client) CloseJob(ctx context.Context, jobID string) error {
	body, err := json.Marshal(map[string]JobState{"state": StateUploadComplete})
	if err != nil {
		return fmt.Errorf("marshal close job payload: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPatch, c.baseURL+"/"+jobID, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("close job: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode != http.StatusOK {
		return c.statusError("close job", resp)
	}
	return nil
}

// GetJobState fetches the job's currently reported state.
func (c *Client) GetJobState(ctx context.Context, jobID string) (JobState, error) {
	resp, err := c.do(ctx, http.MethodGet, c.baseURL+"/"+jobID, "", nil)
	if err != nil {
		return "", fmt.Errorf("get job state: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode != http.StatusOK {
		return "", c.statusError("get job state", resp)
	}
	var jobInfo struct {
		State JobState `json:"state"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&jobInfo); err != nil {
		return "", fmt.Errorf("decode job state response: %w", err)
	}
	return jobInfo.State, nil
}

func (c *Client) do(ctx context.Context, method, url, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return c.httpClient.Do(req)
}

func (c *Client) statusError(step string, resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	return fmt.Errorf("%s failed: status %d, body %s", step, resp.StatusCode, snippet)
}
