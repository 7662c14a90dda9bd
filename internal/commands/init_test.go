package commands_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statementd/statementd/internal/commands"
	"github.com/statementd/statementd/internal/config"
)

func runStatementd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := commands.NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// fixture is an initialized working dir pointed at a fake upstream.
type fixture struct {
	dir        string
	configPath string
	hits       atomic.Int32
	fail       atomic.Bool
}

func newFixture(t *testing.T, store string) *fixture {
	t.Helper()
	fx := &fixture{dir: t.TempDir()}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fx.fail.Load() && r.URL.Path == "/invoices" {
			http.Error(w, "down", http.StatusServiceUnavailable)
			return
		}
		if r.Header.Get("API-KEY") != "test-key" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/customers":
			fx.hits.Add(1)
			_, _ = w.Write([]byte(`{"customers":[{"id":7,"name":"Acme/Trading"},{"id":8,"name":"Quiet"}]}`))
		case "/invoices":
			_, _ = w.Write([]byte(`{"invoices":[{"id":1,"contact_id":7,"issue_date":"2024-01-05","total":"100.00"}]}`))
		case "/credit_notes":
			_, _ = w.Write([]byte(`{"credit_notes":[{"reference":"CN-1","contact_id":7,"issue_date":"2024-01-12","total_amount":20}]}`))
		case "/invoice_payments":
			_, _ = w.Write([]byte(`{"receipts":[{"reference":"P-1","contact_id":7,"date":"2024-01-10","amount":"30"}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	restore := commands.SetClock(func() time.Time {
		return time.Date(2024, time.June, 30, 9, 0, 0, 0, time.UTC)
	})
	t.Cleanup(restore)

	_, err := runStatementd(t, "init", fx.dir, "--store", store)
	require.NoError(t, err)

	fx.configPath = filepath.Join(fx.dir, config.FileName)
	cfg, err := config.Load(fx.configPath)
	require.NoError(t, err)
	cfg.Timezone = "UTC"
	cfg.Upstream.BaseURL = srv.URL
	cfg.Upstream.APIKey = "test-key"
	cfg.Log.Level = "error"
	require.NoError(t, config.Save(fx.configPath, cfg))

	return fx
}

func (fx *fixture) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return runStatementd(t, append(args, "--config", fx.configPath)...)
}

func TestInit_CreatesStructure(t *testing.T) {
	dir := t.TempDir()
	out, err := runStatementd(t, "init", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Initialized statementd")

	for _, d := range []string{"data", filepath.Join("data", "statements")} {
		info, err := os.Stat(filepath.Join(dir, d))
		require.NoError(t, err, "directory %s should exist", d)
		assert.True(t, info.IsDir(), "%s should be a directory", d)
	}
}

func TestInit_Config(t *testing.T) {
	dir := t.TempDir()
	_, err := runStatementd(t, "init", dir, "--store", "sqlite")
	require.NoError(t, err)

	cfg, err := config.Load(filepath.Join(dir, config.FileName))
	require.NoError(t, err)
	assert.Equal(t, config.StoreSQLite, cfg.Store)
	assert.Empty(t, cfg.Upstream.APIKey)
}

func TestInit_Gitignore(t *testing.T) {
	dir := t.TempDir()
	_, err := runStatementd(t, "init", dir)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	require.NoError(t, err)
	for _, pattern := range []string{".env", "data/"} {
		assert.Contains(t, string(data), pattern)
	}
}

func TestInit_RefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	_, err := runStatementd(t, "init", dir)
	require.NoError(t, err)

	_, err = runStatementd(t, "init", dir)
	assert.ErrorContains(t, err, "already exists")
}

func TestInit_RejectsUnknownStore(t *testing.T) {
	_, err := runStatementd(t, "init", t.TempDir(), "--store", "mongo")
	assert.Error(t, err)
}

const (
	waitFor = 5 * time.Second
	tick    = 20 * time.Millisecond
)

func newRootWithArgs(args ...string) *cobra.Command {
	cmd := commands.NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	return cmd
}
