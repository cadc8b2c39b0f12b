package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 3, cfg.Crawler.Concurrency)
	require.Equal(t, 6, cfg.Crawler.MaxDepth)
	require.Equal(t, 5000, cfg.Crawler.MaxPages)
	require.Equal(t, 45*time.Second, cfg.Browser.NavTimeout)
	require.Equal(t, 100, cfg.Browser.MaxPagesPerSession)
	require.Equal(t, 2*time.Hour, cfg.Browser.MaxSessionAge)
	require.Equal(t, 30*time.Second, cfg.Auth.StepTimeout)
	require.Equal(t, 15*time.Second, cfg.Auth.SecondFactorPoll)
	require.Equal(t, 120*time.Second, cfg.Auth.SecondFactorWait)
	require.Equal(t, 60*time.Second, cfg.Download.Timeout)
	require.Equal(t, 5, cfg.Publish.MinArtifactCount)
	require.True(t, cfg.Browser.Headless)
	require.False(t, cfg.Server.Enabled)
}

func TestLoad_FromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	payload := `
library:
  name: handbook
  root_urls:
    - https://docs.example.com/handbook
  data_dir: /srv/corpora
crawler:
  concurrency: 5
  max_depth: 3
browser:
  nav_timeout: 20s
auth:
  login_hosts:
    - login.example.com
  target_domain: docs.example.com
`
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "handbook", cfg.Library.Name)
	require.Equal(t, []string{"https://docs.example.com/handbook"}, cfg.Library.RootURLs)
	require.Equal(t, 5, cfg.Crawler.Concurrency)
	require.Equal(t, 3, cfg.Crawler.MaxDepth)
	require.Equal(t, 20*time.Second, cfg.Browser.NavTimeout)
	require.Equal(t, []string{"login.example.com"}, cfg.Auth.LoginHosts)
	// Values absent from the file keep their defaults.
	require.Equal(t, 5000, cfg.Crawler.MaxPages)
}

func TestLoad_MissingFileFails(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base := func() Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	cfg := base()
	cfg.Crawler.Concurrency = 0
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Browser.NavTimeout = 0
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Library.DataDir = ""
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Server.Enabled = true
	cfg.Server.Port = 0
	require.Error(t, cfg.Validate())

	require.NoError(t, base().Validate())
}
