// Package orgs stores per-org connection details and pipeline defaults
// under the user's mindstream config directory.
package orgs

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrOrgNotFound is returned when no configuration exists for a username.
var ErrOrgNotFound = errors.New("org not found")

// Defaults are the pipeline knobs that can be set globally and overridden
// per org. Zero values mean "not set here".
type Defaults struct {
	PageLimit         int      `json:"page_limit,omitempty"`
	ObjectAPIName     string   `json:"object_api_name,omitempty"`
	SourceName        string   `json:"source_name,omitempty"`
	MaxConcurrentJobs int      `json:"max_concurrent_jobs,omitempty"`
	CrawlURL          string   `json:"crawl_url,omitempty"`
	APIKey            string   `json:"api_key,omitempty"`
	Whitelist         []string `json:"whitelist,omitempty"`
}

// Org is one registered org and its overrides.
type Org struct {
	Username    string    `json:"username"`
	Alias       string    `json:"alias,omitempty"`
	OrgID       string    `json:"org_id,omitempty"`
	InstanceURL string    `json:"instance_url,omitempty"`
	LoginURL    string    `json:"login_url,omitempty"`
	ConsumerKey string    `json:"consumer_key,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
	Defaults    Defaults  `json:"defaults,omitempty"`
}

// globalFile is the layout of <base>/config.json.
type globalFile struct {
	CurrentOrg string   `json:"current_org,omitempty"`
	Defaults   Defaults `json:"defaults"`
}

// GlobalDefaults returns the shipped defaults applied when nothing is
// configured.
func GlobalDefaults() Defaults {
	return Defaults{
		PageLimit:         50,
		ObjectAPIName:     "Document",
		SourceName:        "mindstream_data",
		MaxConcurrentJobs: 5,
	}
}

// Registry reads and writes org configuration files.
type Registry struct {
	baseDir string
	logger  *zap.Logger
}

// NewRegistry creates a Registry rooted at baseDir, defaulting to
// $HOME/.mindstream when baseDir is empty.
func NewRegistry(baseDir string, logger *zap.Logger) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		baseDir = filepath.Join(home, ".mindstream")
	}
	if err := os.MkdirAll(filepath.Join(baseDir, "orgs"), 0o750); err != nil {
		return nil, fmt.Errorf("create config dir %s: %w", baseDir, err)
	}
	return &Registry{baseDir: baseDir, logger: logger}, nil
}

// OrgDir returns the directory holding an org's files (config, certificates).
func (r *Registry) OrgDir(username string) string {
	return filepath.Join(r.baseDir, "orgs", sanitizeUsername(username))
}

// Add registers an org or updates an existing registration. The original
// creation time survives updates.
func (r *Registry) Add(org Org) error {
	if org.Username == "" {
		return fmt.Errorf("org username is required")
	}
	now := time.Now().UTC()
	if existing, err := r.Get(org.Username); err == nil {
		org.CreatedAt = existing.CreatedAt
	} else {
		org.CreatedAt = now
	}
	org.UpdatedAt = now

	dir := r.OrgDir(org.Username)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create org dir %s: %w", dir, err)
	}
	if err := writeJSON(filepath.Join(dir, "config.json"), org); err != nil {
		return err
	}
	r.logger.Info("registered org", zap.String("username", org.Username), zap.String("dir", dir))
	return nil
}

// Get loads one org's configuration.
func (r *Registry) Get(username string) (Org, error) {
	var org Org
	path := filepath.Join(r.OrgDir(username), "config.json")
	if err := readJSON(path, &org); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Org{}, fmt.Errorf("%w: %s", ErrOrgNotFound, username)
		}
		return Org{}, err
	}
	return org, nil
}

// List returns every registered org, ordered by directory name.
func (r *Registry) List() ([]Org, error) {
	entries, err := os.ReadDir(filepath.Join(r.baseDir, "orgs"))
	if err != nil {
		return nil, fmt.Errorf("read orgs dir: %w", err)
	}
	var out []Org
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		var org Org
		path := filepath.Join(r.baseDir, "orgs", entry.Name(), "config.json")
		if err := readJSON(path, &org); err != nil {
			r.logger.Warn("skipping unreadable org config", zap.String("path", path), zap.Error(err))
			continue
		}
		out = append(out, org)
	}
	return out, nil
}

// SetCurrent marks an already-registered org as the default target.
func (r *Registry) SetCurrent(username string) error {
	if _, err := r.Get(username); err != nil {
		return err
	}
	global, err := r.readGlobal()
	if err != nil {
		return err
	}
	global.CurrentOrg = username
	return writeJSON(filepath.Join(r.baseDir, "config.json"), global)
}

// Current returns the org previously chosen with SetCurrent.
func (r *Registry) Current() (Org, error) {
	global, err := r.readGlobal()
	if err != nil {
		return Org{}, err
	}
	if global.CurrentOrg == "" {
		return Org{}, fmt.Errorf("%w: no current org set", ErrOrgNotFound)
	}
	return r.Get(global.CurrentOrg)
}

// SetGlobalDefaults replaces the global default knobs.
func (r *Registry) SetGlobalDefaults(d Defaults) error {
	global, err := r.readGlobal()
	if err != nil {
		return err
	}
	global.Defaults = d
	return writeJSON(filepath.Join(r.baseDir, "config.json"), global)
}

// EffectiveDefaults resolves the defaults for one org: shipped values,
// overlaid with global configuration, overlaid with the org's overrides.
func (r *Registry) EffectiveDefaults(username string) (Defaults, error) {
	out := GlobalDefaults()
	global, err := r.readGlobal()
	if err != nil {
		return Defaults{}, err
	}
	overlay(&out, global.Defaults)

	if username != "" {
		org, err := r.Get(username)
		if err != nil {
			return Defaults{}, err
		}
		overlay(&out, org.Defaults)
	}
	return out, nil
}

func (r *Registry) readGlobal() (globalFile, error) {
	var global globalFile
	path := filepath.Join(r.baseDir, "config.json")
	if err := readJSON(path, &global); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return globalFile{}, err
	}
	return global, nil
}

func overlay(dst *Defaults, src Defaults) {
	if src.PageLimit != 0 {
		dst.PageLimit = src.PageLimit
	}
	if src.ObjectAPIName != "" {
		dst.ObjectAPIName = src.ObjectAPIName
	}
	if src.SourceName != "" {
		dst.SourceName = src.SourceName
	}
	if src.MaxConcurrentJobs != 0 {
		dst.MaxConcurrentJobs = src.MaxConcurrentJobs
	}
	if src.CrawlURL != "" {
		dst.CrawlURL = src.CrawlURL
	}
	if src.APIKey != "" {
		dst.APIKey = src.APIKey
	}
	if len(src.Whitelist) > 0 {
		dst.Whitelist = src.Whitelist
	}
}

// sanitizeUsername maps a username to a filesystem-safe directory name.
func sanitizeUsername(username string) string {
	return strings.NewReplacer("@", "_at_", ".", "_dot_").Replace(username)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
