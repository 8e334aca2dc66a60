package app

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/yungbote/agentdesk-backend/internal/clients/orchestrate"
	"github.com/yungbote/agentdesk-backend/internal/data/db"
	"github.com/yungbote/agentdesk-backend/internal/observability"
	"github.com/yungbote/agentdesk-backend/internal/platform/envutil"
	"github.com/yungbote/agentdesk-backend/internal/services"
)

// ConfigPathEnv names the optional YAML file applied before environment
// overrides.
const ConfigPathEnv = "AGENTDESK_CONFIG"

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	TokenKey string `yaml:"token_key"`
}

type Config struct {
	Port           string `yaml:"port" validate:"required,numeric"`
	LogMode        string `yaml:"log_mode" validate:"oneof=development production"`
	JWTSecretKey   string `yaml:"jwt_secret_key" validate:"required"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`

	CORSAllowedOrigins []string `yaml:"cors_allowed_origins" validate:"dive,url"`

	Postgres    db.Config                 `yaml:"postgres"`
	Redis       RedisConfig               `yaml:"redis"`
	Orchestrate orchestrate.Config        `yaml:"orchestrate"`
	Chat        services.ChatStreamConfig `yaml:"chat"`
	Otel        observability.OtelConfig  `yaml:"otel"`
}

var configValidate = validator.New()

func defaultConfig() Config {
	return Config{
		Port:           "8080",
		LogMode:        "development",
		MetricsEnabled: true,
		Postgres: db.Config{
			Host:    "localhost",
			Port:    "5432",
			User:    "postgres",
			Name:    "agentdesk",
			SSLMode: "disable",
		},
		Redis: RedisConfig{TokenKey: "agentdesk:orchestrate:token"},
		Chat: services.ChatStreamConfig{
			VerifierAgentName: services.DefaultVerifierAgentName,
			VerifierTimeout:   services.DefaultVerifierTimeout,
			CitationTimeout:   services.DefaultCitationTimeout,
		},
		Otel: observability.OtelConfig{
			ServiceName: "agentdesk",
			SampleRatio: 1,
		},
	}
}

// LoadConfig builds the config from defaults, then the YAML file named by
// AGENTDESK_CONFIG (if set), then environment variables.
func LoadConfig() (Config, error) {
	cfg := defaultConfig()
	if path := strings.TrimSpace(os.Getenv(ConfigPathEnv)); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Port = envutil.String("PORT", cfg.Port)
	cfg.LogMode = envutil.String("LOG_MODE", cfg.LogMode)
	cfg.JWTSecretKey = envutil.String("JWT_SECRET_KEY", cfg.JWTSecretKey)
	cfg.MetricsEnabled = envutil.Bool("METRICS_ENABLED", cfg.MetricsEnabled)
	cfg.CORSAllowedOrigins = envutil.List("CORS_ALLOWED_ORIGINS", cfg.CORSAllowedOrigins)

	pg := &cfg.Postgres
	pg.DSN = envutil.String("POSTGRES_DSN", pg.DSN)
	pg.Host = envutil.String("POSTGRES_HOST", pg.Host)
	pg.Port = envutil.String("POSTGRES_PORT", pg.Port)
	pg.User = envutil.String("POSTGRES_USER", pg.User)
	pg.Password = envutil.String("POSTGRES_PASSWORD", pg.Password)
	pg.Name = envutil.String("POSTGRES_NAME", pg.Name)
	pg.SSLMode = envutil.String("POSTGRES_SSLMODE", pg.SSLMode)

	cfg.Redis.Addr = envutil.String("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.TokenKey = envutil.String("REDIS_TOKEN_KEY", cfg.Redis.TokenKey)

	oc := &cfg.Orchestrate
	oc.BaseURL = envutil.String("WATSON_INSTANCE_API_URL", oc.BaseURL)
	oc.SaaSAPIKey = envutil.String("WATSON_CLOUD_API_KEY", oc.SaaSAPIKey)
	oc.CloudAPIKey = envutil.String("IBM_CLOUD_API_KEY", oc.CloudAPIKey)
	oc.SaaSTokenURL = envutil.String("ORCHESTRATE_SAAS_TOKEN_URL", oc.SaaSTokenURL)
	oc.IAMTokenURL = envutil.String("ORCHESTRATE_IAM_TOKEN_URL", oc.IAMTokenURL)
	oc.Timeout = envutil.Duration("ORCHESTRATE_TIMEOUT", oc.Timeout)
	oc.StreamTimeout = envutil.Duration("ORCHESTRATE_STREAM_TIMEOUT", oc.StreamTimeout)
	oc.Retries = envutil.Int("ORCHESTRATE_RETRIES", oc.Retries)
	oc.RetryBackoff = envutil.Duration("ORCHESTRATE_RETRY_BACKOFF", oc.RetryBackoff)
	oc.FlushTrailingLine = envutil.Bool("UPSTREAM_FLUSH_TRAILING_LINE", oc.FlushTrailingLine)

	ch := &cfg.Chat
	ch.VerifierAgentName = envutil.String("VERIFIER_AGENT_NAME", ch.VerifierAgentName)
	ch.VerifierTimeout = envutil.Duration("VERIFIER_TIMEOUT", ch.VerifierTimeout)
	ch.CitationTimeout = envutil.Duration("CITATION_TIMEOUT", ch.CitationTimeout)

	ot := &cfg.Otel
	ot.Enabled = envutil.Bool("OTEL_ENABLED", ot.Enabled)
	ot.ServiceName = envutil.String("OTEL_SERVICE_NAME", ot.ServiceName)
	ot.Environment = envutil.String("OTEL_ENVIRONMENT", ot.Environment)
	ot.Endpoint = envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", ot.Endpoint)
	ot.Insecure = envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", ot.Insecure)
	ot.SampleRatio = envutil.Float("OTEL_SAMPLE_RATIO", ot.SampleRatio)
}

// Validate reports every invalid field in one error.
func (c Config) Validate() error {
	err := configValidate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}
