package orchestrate

import (
	"strings"
	"time"
)

const (
	DefaultSaaSTokenURL = "https://iam.platform.saas.ibm.com/siusermgr/api/1.0/apikeys/token"
	DefaultIAMTokenURL  = "https://iam.cloud.ibm.com/identity/token"

	// saasHostMarker identifies SaaS-hosted instances by base URL.
	saasHostMarker = "watson-orchestrate.ibm.com"

	iamGrantType = "urn:ibm:params:oauth:grant-type:apikey"

	DefaultRefreshMargin = 5 * time.Minute
	defaultTokenTTL      = 3600 * time.Second
	defaultTimeout       = 30 * time.Second
	defaultStreamTimeout = 120 * time.Second
	defaultRetryBackoff  = 250 * time.Millisecond
	maxRetryWait         = 5 * time.Second
)

type Config struct {
	BaseURL string `yaml:"base_url" validate:"omitempty,url"`
	// SaaSAPIKey is exchanged at the SaaS token endpoint and also sent as
	// the IAM-API_KEY header.
	SaaSAPIKey string `yaml:"saas_api_key"`
	// CloudAPIKey is exchanged at the cloud IAM endpoint.
	CloudAPIKey string `yaml:"cloud_api_key"`

	SaaSTokenURL string `yaml:"saas_token_url" validate:"omitempty,url"`
	IAMTokenURL  string `yaml:"iam_token_url" validate:"omitempty,url"`

	// Timeout bounds non-streaming requests.
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`
	// StreamTimeout is passed to the runs endpoint as stream_timeout.
	StreamTimeout time.Duration `yaml:"stream_timeout" validate:"gte=0"`
	RefreshMargin time.Duration `yaml:"refresh_margin" validate:"gte=0"`

	// Retries is the number of extra attempts for idempotent GETs that fail
	// with a retryable status or transport error. Zero disables retries.
	Retries      int           `yaml:"retries" validate:"gte=0"`
	RetryBackoff time.Duration `yaml:"retry_backoff" validate:"gte=0"`

	// FlushTrailingLine yields a final unterminated stream line instead of
	// dropping it.
	FlushTrailingLine bool `yaml:"flush_trailing_line"`
}

// Configured reports whether a base URL and at least one credential source
// are present.
func (c Config) Configured() bool {
	return strings.TrimSpace(c.BaseURL) != "" &&
		(strings.TrimSpace(c.SaaSAPIKey) != "" || strings.TrimSpace(c.CloudAPIKey) != "")
}

func (c Config) withDefaults() Config {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	c.SaaSAPIKey = strings.TrimSpace(c.SaaSAPIKey)
	c.CloudAPIKey = strings.TrimSpace(c.CloudAPIKey)
	if c.SaaSTokenURL == "" {
		c.SaaSTokenURL = DefaultSaaSTokenURL
	}
	if c.IAMTokenURL == "" {
		c.IAMTokenURL = DefaultIAMTokenURL
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.StreamTimeout <= 0 {
		c.StreamTimeout = defaultStreamTimeout
	}
	if c.RefreshMargin <= 0 {
		c.RefreshMargin = DefaultRefreshMargin
	}
	if c.Retries < 0 {
		c.Retries = 0
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = defaultRetryBackoff
	}
	return c
}
