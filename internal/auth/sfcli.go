package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	"go.uber.org/zap"
)

// OrgInfo is the subset of `sf org display` output the pipeline needs.
type OrgInfo struct {
	Username    string `json:"username"`
	Alias       string `json:"alias"`
	OrgID       string `json:"id"`
	InstanceURL string `json:"instanceUrl"`
	LoginURL    string `json:"loginUrl"`
}

// commandRunner executes an external command and returns its stdout.
// Indirection exists so tests can stub the Salesforce CLI.
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// SalesforceCLI shells out to the `sf` CLI for org discovery. Authenticating
// orgs (web login, cert deployment) stays in the CLI's hands; this wrapper
// only reads what it already knows.
type SalesforceCLI struct {
	run    commandRunner
	logger *zap.Logger
}

// NewSalesforceCLI creates a wrapper around the installed `sf` binary.
func NewSalesforceCLI(logger *zap.Logger) *SalesforceCLI {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SalesforceCLI{
		run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).Output()
		},
		logger: logger,
	}
}

// DisplayOrg resolves an org's connection details by username or alias.
func (c *SalesforceCLI) DisplayOrg(ctx context.Context, usernameOrAlias string) (OrgInfo, error) {
	out, err := c.run(ctx, "sf", "org", "display", "--target-org", usernameOrAlias, "--json")
	if err != nil {
		return OrgInfo{}, fmt.Errorf("sf org display %s: %w", usernameOrAlias, err)
	}

	var payload struct {
		Status int     `json:"status"`
		Result OrgInfo `json:"result"`
	}
	if err := json.Unmarshal(out, &payload); err != nil {
		return OrgInfo{}, fmt.Errorf("decode sf org display output: %w", err)
	}
	if payload.Status != 0 {
		return OrgInfo{}, fmt.Errorf("sf org display %s: status %d", usernameOrAlias, payload.Status)
	}
	if payload.Result.Username == "" {
		return OrgInfo{}, fmt.Errorf("sf org display %s: no username in result", usernameOrAlias)
	}
	c.logger.Debug("resolved org",
		zap.String("username", payload.Result.Username),
		zap.String("instance_url", payload.Result.InstanceURL),
	)
	return payload.Result, nil
}
