package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/telhawk-systems/guardrail/internal/admin"
	"github.com/telhawk-systems/guardrail/internal/auth"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCommand(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestCommandsRegistered(t *testing.T) {
	root := NewRootCommand(&bytes.Buffer{})
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"rules", "token", "migrate", "seed", "admin"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}

func TestRulesValidate_BuiltIn(t *testing.T) {
	out, err := run(t, "rules", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "brute_force_login")
	assert.Contains(t, out, "rules valid (built-in")
}

func TestRulesValidate_File(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(good, []byte(`version: 1
rules:
  - name: quote_scraping
    pattern: "quote_requested"
    severity: medium
    action: alert
    threshold: 50
    time_window: 10
`), 0o600))

	out, err := run(t, "rules", "validate", good, "-o", "yaml")
	require.NoError(t, err)
	var views []ruleView
	require.NoError(t, yaml.Unmarshal([]byte(out), &views))
	require.Len(t, views, 1)
	assert.Equal(t, "quote_scraping", views[0].Name)
	assert.Equal(t, 10, views[0].WindowMin)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte(`version: 1
rules:
  - name: broken
    pattern: "("
    severity: high
    action: block
    threshold: 1
    time_window: 5
`), 0o600))
	_, err = run(t, "rules", "validate", bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid rule document")
}

func TestTokenIssue(t *testing.T) {
	t.Setenv("GUARDRAIL_AUTH_JWT_SECRET", "cli-test-secret")
	t.Setenv("GUARDRAIL_AUTH_ISSUER", "guardrail-cli")

	out, err := run(t, "token", "issue", "--user", "admin-1", "--ttl", "5m")
	require.NoError(t, err)

	claims, err := auth.NewTokens("cli-test-secret", "guardrail-cli", time.Minute).Validate(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "admin-1", claims.UserID)
}

func TestTokenIssue_RequiresSecret(t *testing.T) {
	t.Setenv("GUARDRAIL_AUTH_JWT_SECRET", "")
	_, err := run(t, "token", "issue", "--user", "admin-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt_secret")
}

func TestMigrate_RejectsMemoryDriver(t *testing.T) {
	t.Setenv("GUARDRAIL_DATABASE_DRIVER", "memory")
	_, err := run(t, "migrate", "up")
	require.Error(t, err)

	_, err = run(t, "migrate", "sideways")
	require.Error(t, err)
}

func TestAdmin(t *testing.T) {
	var got admin.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/admin-security-data", r.URL.Path)
		if r.Header.Get("Authorization") != "Bearer staff-token" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
			return
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"action":"get_alerts","data":[{"id":"alert-1","status":"open"}]}`))
	}))
	defer srv.Close()

	out, err := run(t, "admin", "get_alerts", "--server", srv.URL, "--token", "staff-token", "--status", "open", "--limit", "5", "-o", "yaml")
	require.NoError(t, err)
	assert.Equal(t, admin.ActionGetAlerts, got.Action)
	assert.Equal(t, "open", got.Status)
	assert.Equal(t, 5, got.Limit)
	assert.Nil(t, got.Notes)

	var alerts []map[string]interface{}
	require.NoError(t, yaml.Unmarshal([]byte(out), &alerts))
	require.Len(t, alerts, 1)
	assert.Equal(t, "alert-1", alerts[0]["id"])

	_, err = run(t, "admin", "get_alerts", "--server", srv.URL, "--token", "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unauthorized (401)")

	_, err = run(t, "admin", "get_alerts", "--server", srv.URL)
	require.Error(t, err)
}

func TestSeed(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	out, err := run(t, "seed", "injection", "--count", "3", "--seed", "5", "--server", srv.URL, "-o", "json")
	require.NoError(t, err)
	assert.Equal(t, 3, hits)

	var sum map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &sum))
	assert.Equal(t, float64(3), sum["sent"])

	_, err = run(t, "seed", "ddos", "--server", srv.URL)
	require.Error(t, err)
}
