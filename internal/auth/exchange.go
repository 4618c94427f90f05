package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// TokenSet is the outcome of a token exchange: a bearer token plus the
// instance it is valid against.
type TokenSet struct {
	AccessToken string `json:"access_token"`
	InstanceURL string `json:"instance_url"`
}

// tokenResponse is the raw OAuth response shape for both exchanges.
type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	InstanceURL      string `json:"instance_url"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// Exchanger performs the two sequential token exchanges: JWT bearer
// assertion against the org's login endpoint, then the org token for a
// Data Cloud token. The result is acquired once per run and treated as a
// fixed input downstream.
type Exchanger struct {
	loginURL   string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewExchanger creates an Exchanger against the given login URL.
func NewExchanger(loginURL string, timeout time.Duration, logger *zap.Logger) *Exchanger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exchanger{
		loginURL:   strings.TrimRight(loginURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Exchange trades the signed assertion for a Data Cloud token set.
func (e *Exchanger) Exchange(ctx context.Context, assertion string) (TokenSet, error) {
	org, err := e.postForm(ctx, e.loginURL+"/services/oauth2/token", url.Values{
		"grant_type": {"urn:ietf:params:oauth:grant-type:jwt-bearer"},
		"assertion":  {assertion},
	})
	if err != nil {
		return TokenSet{}, fmt.Errorf("org token exchange: %w", err)
	}
	e.logger.Info("acquired org access token", zap.String("instance_url", org.InstanceURL))

	dc, err := e.postForm(ctx, strings.TrimRight(org.InstanceURL, "/")+"/services/a360/token", url.Values{
		"grant_type":         {"urn:salesforce:grant-type:external:cdp"},
		"subject_token":      {org.AccessToken},
		"subject_token_type": {"urn:ietf:params:oauth:token-type:access_token"},
	})
	if err != nil {
		return TokenSet{}, fmt.Errorf("data cloud token exchange: %w", err)
	}
	e.logger.Info("acquired data cloud access token", zap.String("instance_url", dc.InstanceURL))

	return TokenSet{AccessToken: dc.AccessToken, InstanceURL: dc.InstanceURL}, nil
}

func (e *Exchanger) postForm(ctx context.Context, endpoint string, form url.Values) (tokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return tokenResponse{}, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return tokenResponse{}, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return tokenResponse{}, fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return tokenResponse{}, fmt.Errorf("token request failed: status %d, body %s", resp.StatusCode, body)
	}

	var parsed tokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return tokenResponse{}, fmt.Errorf("decode token response: %w", err)
	}
	if parsed.Error != "" {
		msg := parsed.ErrorDescription
		if msg == "" {
			msg = parsed.Error
		}
		return tokenResponse{}, fmt.Errorf("token request rejected: %s", msg)
	}
	if parsed.AccessToken == "" {
		return tokenResponse{}, fmt.Errorf("token response carried no access token")
	}
	return parsed, nil
}
