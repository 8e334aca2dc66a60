package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaultsAndEnv(t *testing.T) {
	t.Setenv(ConfigPathEnv, "")
	t.Setenv("JWT_SECRET_KEY", "s3cret")
	t.Setenv("WATSON_INSTANCE_API_URL", "https://api.example.com/instances/abc/")
	t.Setenv("IBM_CLOUD_API_KEY", "cloud-key")
	t.Setenv("VERIFIER_TIMEOUT", "45")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "s3cret", cfg.JWTSecretKey)
	assert.Equal(t, "cloud-key", cfg.Orchestrate.CloudAPIKey)
	assert.True(t, cfg.Orchestrate.Configured())
	assert.Equal(t, 45*time.Second, cfg.Chat.VerifierTimeout)
	assert.Equal(t, 10*time.Second, cfg.Chat.CitationTimeout)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSAllowedOrigins)
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agentdesk.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "9090"
jwt_secret_key: from-file
orchestrate:
  base_url: https://file.example.com
  saas_api_key: file-key
  stream_timeout: 3m
chat:
  verifier_agent_name: Checker
postgres:
  dsn: postgres://u:p@db:5432/agentdesk
`), 0o600))
	t.Setenv(ConfigPathEnv, path)
	t.Setenv("PORT", "7070")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Port)
	assert.Equal(t, "from-file", cfg.JWTSecretKey)
	assert.Equal(t, "file-key", cfg.Orchestrate.SaaSAPIKey)
	assert.Equal(t, 3*time.Minute, cfg.Orchestrate.StreamTimeout)
	assert.Equal(t, "Checker", cfg.Chat.VerifierAgentName)
	assert.Equal(t, "postgres://u:p@db:5432/agentdesk", cfg.Postgres.DSN)
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid", func(c *Config) {}, true},
		{"missing_secret", func(c *Config) { c.JWTSecretKey = "" }, false},
		{"bad_port", func(c *Config) { c.Port = "http" }, false},
		{"bad_log_mode", func(c *Config) { c.LogMode = "loud" }, false},
		{"bad_base_url", func(c *Config) { c.Orchestrate.BaseURL = "not a url" }, false},
		{"negative_timeout", func(c *Config) { c.Orchestrate.Timeout = -time.Second }, false},
		{"bad_origin", func(c *Config) { c.CORSAllowedOrigins = []string{"nope"} }, false},
		{"ratio_too_high", func(c *Config) { c.Otel.SampleRatio = 2 }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.JWTSecretKey = "k"
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestLoadConfigRejectsUnreadableFile(t *testing.T) {
	t.Setenv(ConfigPathEnv, filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := LoadConfig()
	require.Error(t, err)
}
