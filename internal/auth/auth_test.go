package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testKeyPEM(t *testing.T) (*rsa.PrivateKey, []byte) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}
	return key, pem.EncodeToMemory(block)
}

func TestBuildAssertionClaims(t *testing.T) {
	t.Parallel()

	key, keyPEM := testKeyPEM(t)
	now := time.Date(2024, 11, 5, 12, 0, 0, 0, time.UTC)
	cfg := AssertionConfig{
		Username:      "admin@example.org",
		ConsumerKey:   "consumer-key-123",
		PrivateKeyPEM: keyPEM,
		Audience:      "https://login.salesforce.com",
		Lifetime:      2 * time.Hour,
	}

	signed, err := BuildAssertion(cfg, now)
	require.NoError(t, err)

	parsed, err := jwt.Parse(signed, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return &key.PublicKey, nil
	}, jwt.WithTimeFunc(func() time.Time { return now }))
	require.NoError(t, err)
	require.True(t, parsed.Valid)

	claims, ok := parsed.Claims.(jwt.MapClaims)
	require.True(t, ok)
	require.Equal(t, "admin@example.org", claims["sub"])
	require.Equal(t, "consumer-key-123", claims["iss"])
	require.Equal(t, "https://login.salesforce.com", claims["aud"])
	require.Equal(t, float64(now.Add(2*time.Hour).Unix()), claims["exp"])
}

func TestBuildAssertionRequiresIdentity(t *testing.T) {
	t.Parallel()

	_, keyPEM := testKeyPEM(t)
	_, err := BuildAssertion(AssertionConfig{PrivateKeyPEM: keyPEM}, time.Now())
	require.Error(t, err)
}

func TestBuildAssertionRejectsBadKey(t *testing.T) {
	t.Parallel()

	cfg := AssertionConfig{
		Username:      "u",
		ConsumerKey:   "k",
		PrivateKeyPEM: []byte("not a pem"),
		Lifetime:      time.Hour,
	}
	_, err := BuildAssertion(cfg, time.Now())
	require.Error(t, err)
}

func TestExchangeRunsBothLegs(t *testing.T) {
	t.Parallel()

	var orgForm, dcForm map[string]string
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/services/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		orgForm = map[string]string{
			"grant_type": r.PostForm.Get("grant_type"),
			"assertion":  r.PostForm.Get("assertion"),
		}
		_, _ = w.Write([]byte(`{"access_token":"org-token","instance_url":"` + server.URL + `"}`))
	})
	mux.HandleFunc("/services/a360/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		dcForm = map[string]string{
			"grant_type":         r.PostForm.Get("grant_type"),
			"subject_token":      r.PostForm.Get("subject_token"),
			"subject_token_type": r.PostForm.Get("subject_token_type"),
		}
		_, _ = w.Write([]byte(`{"access_token":"dc-token","instance_url":"https://dc.example.org"}`))
	})

	tokens, err := NewExchanger(server.URL, 5*time.Second, zap.NewNop()).
		Exchange(context.Background(), "signed-assertion")
	require.NoError(t, err)
	require.Equal(t, "dc-token", tokens.AccessToken)
	require.Equal(t, "https://dc.example.org", tokens.InstanceURL)

	require.Equal(t, "urn:ietf:params:oauth:grant-type:jwt-bearer", orgForm["grant_type"])
	require.Equal(t, "signed-assertion", orgForm["assertion"])
	require.Equal(t, "urn:salesforce:grant-type:external:cdp", dcForm["grant_type"])
	require.Equal(t, "org-token", dcForm["subject_token"])
	require.Equal(t, "urn:ietf:params:oauth:token-type:access_token", dcForm["subject_token_type"])
}

func TestExchangeSurfacesOAuthError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"user hasn't approved this consumer"}`))
	}))
	defer server.Close()

	_, err := NewExchanger(server.URL, 5*time.Second, zap.NewNop()).
		Exchange(context.Background(), "assertion")
	require.Error(t, err)
	require.Contains(t, err.Error(), "user hasn't approved this consumer")
}

func TestDisplayOrgParsesCLIOutput(t *testing.T) {
	t.Parallel()

	cli := NewSalesforceCLI(zap.NewNop())
	cli.run = func(_ context.Context, name string, args ...string) ([]byte, error) {
		require.Equal(t, "sf", name)
		require.Equal(t, []string{"org", "display", "--target-org", "my-org", "--json"}, args)
		return []byte(`{"status":0,"result":{"username":"admin@example.org","id":"00D000","instanceUrl":"https://example.my.salesforce.com","loginUrl":"https://login.salesforce.com","alias":"my-org"}}`), nil
	}

	info, err := cli.DisplayOrg(context.Background(), "my-org")
	require.NoError(t, err)
	require.Equal(t, "admin@example.org", info.Username)
	require.Equal(t, "https://example.my.salesforce.com", info.InstanceURL)
	require.Equal(t, "my-org", info.Alias)
}

func TestDisplayOrgNonZeroStatus(t *testing.T) {
	t.Parallel()

	cli := NewSalesforceCLI(zap.NewNop())
	cli.run = func(context.Context, string, ...string) ([]byte, error) {
		return []byte(`{"status":1,"result":{}}`), nil
	}
	_, err := cli.DisplayOrg(context.Background(), "missing")
	require.Error(t, err)
}
