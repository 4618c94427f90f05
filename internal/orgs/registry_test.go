package orgs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := NewRegistry(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	return reg
}

func TestAddAndGetRoundTrip(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	err := reg.Add(Org{
		Username:    "admin@example.org",
		Alias:       "prod",
		OrgID:       "00D000",
		InstanceURL: "https://example.my.salesforce.com",
		LoginURL:    "https://login.salesforce.com",
		ConsumerKey: "key-123",
	})
	require.NoError(t, err)

	got, err := reg.Get("admin@example.org")
	require.NoError(t, err)
	require.Equal(t, "prod", got.Alias)
	require.Equal(t, "https://example.my.salesforce.com", got.InstanceURL)
	require.False(t, got.CreatedAt.IsZero())
	require.False(t, got.UpdatedAt.IsZero())
}

func TestAddSanitizesUsernameDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	reg, err := NewRegistry(dir, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, reg.Add(Org{Username: "admin@example.org"}))

	_, err = os.Stat(filepath.Join(dir, "orgs", "admin_at_example_dot_org", "config.json"))
	require.NoError(t, err)
}

func TestAddPreservesCreationTime(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	require.NoError(t, reg.Add(Org{Username: "admin@example.org", Alias: "first"}))
	first, err := reg.Get("admin@example.org")
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, reg.Add(Org{Username: "admin@example.org", Alias: "second"}))
	second, err := reg.Get("admin@example.org")
	require.NoError(t, err)

	require.Equal(t, "second", second.Alias)
	require.Equal(t, first.CreatedAt, second.CreatedAt)
	require.True(t, second.UpdatedAt.After(first.UpdatedAt) || second.UpdatedAt.Equal(first.UpdatedAt))
}

func TestGetUnknownOrg(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	_, err := reg.Get("nobody@example.org")
	require.ErrorIs(t, err, ErrOrgNotFound)
}

func TestListReturnsAllOrgs(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	require.NoError(t, reg.Add(Org{Username: "a@example.org"}))
	require.NoError(t, reg.Add(Org{Username: "b@example.org"}))

	list, err := reg.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "a@example.org", list[0].Username)
	require.Equal(t, "b@example.org", list[1].Username)
}

func TestSetCurrentAndCurrent(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	require.NoError(t, reg.Add(Org{Username: "admin@example.org"}))

	require.ErrorIs(t, reg.SetCurrent("other@example.org"), ErrOrgNotFound)

	require.NoError(t, reg.SetCurrent("admin@example.org"))
	current, err := reg.Current()
	require.NoError(t, err)
	require.Equal(t, "admin@example.org", current.Username)
}

func TestCurrentWithoutSelection(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	_, err := reg.Current()
	require.ErrorIs(t, err, ErrOrgNotFound)
}

func TestEffectiveDefaultsOverlay(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	require.NoError(t, reg.SetGlobalDefaults(Defaults{
		PageLimit: 200,
		CrawlURL:  "https://docs.example.org",
	}))
	require.NoError(t, reg.Add(Org{
		Username: "admin@example.org",
		Defaults: Defaults{PageLimit: 25, SourceName: "docs_source"},
	}))

	got, err := reg.EffectiveDefaults("admin@example.org")
	require.NoError(t, err)

	// Org override wins, then global, then shipped defaults.
	require.Equal(t, 25, got.PageLimit)
	require.Equal(t, "https://docs.example.org", got.CrawlURL)
	require.Equal(t, "docs_source", got.SourceName)
	require.Equal(t, "Document", got.ObjectAPIName)
	require.Equal(t, 5, got.MaxConcurrentJobs)
}

func TestEffectiveDefaultsWithoutOrg(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	got, err := reg.EffectiveDefaults("")
	require.NoError(t, err)
	require.Equal(t, GlobalDefaults(), got)
}
