package config

import (
	"errors"
	"io/fs"
	"net/url"
	"strings"
	"time"

	env "github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/langflow-mcp/langflow-mcp/internal/apierror"
)

const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Config holds the adapter configuration.
// See .env.example for more documentation
type Config struct {
	// Langflow connection
	LangflowBaseURL string `env:"LANGFLOW_BASE_URL"`
	LangflowAPIKey  string `env:"LANGFLOW_API_KEY"`

	// Outbound client behaviour
	Timeout      time.Duration `env:"LANGFLOW_TIMEOUT" envDefault:"30s"`
	MaxRetries   int           `env:"LANGFLOW_MAX_RETRIES" envDefault:"2"`
	RetryBackoff time.Duration `env:"LANGFLOW_RETRY_BACKOFF" envDefault:"250ms"`
	RateLimit    float64       `env:"LANGFLOW_RATE_LIMIT" envDefault:"0"`
	RateBurst    int           `env:"LANGFLOW_RATE_BURST" envDefault:"5"`

	// MCP transport
	Transport   string   `env:"MCP_TRANSPORT" envDefault:"stdio"`
	HTTPAddr    string   `env:"MCP_HTTP_ADDR" envDefault:":8765"`
	CORSOrigins []string `env:"MCP_CORS_ORIGINS" envDefault:"*" envSeparator:","`

	MetricsAddr     string        `env:"METRICS_ADDR" envDefault:""`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`
}

// Load reads envFile (default ".env") when it exists and parses the environment.
// A missing file is not an error; values already in the environment win.
func Load(envFile string) (*Config, error) {
	explicit := envFile != ""
	if !explicit {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, apierror.Wrap(apierror.KindConfiguration, err, "failed to load %s", envFile)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, apierror.Wrap(apierror.KindConfiguration, err, "failed to parse config")
	}
	return &cfg, nil
}

// Validate reports the first invalid setting as a configuration error.
func (c *Config) Validate() error {
	c.LangflowBaseURL = strings.TrimRight(strings.TrimSpace(c.LangflowBaseURL), "/")
	if c.LangflowBaseURL == "" {
		return apierror.New(apierror.KindConfiguration, "LANGFLOW_BASE_URL is required")
	}
	u, err := url.Parse(c.LangflowBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return apierror.New(apierror.KindConfiguration, "LANGFLOW_BASE_URL %q must be an absolute http(s) URL", c.LangflowBaseURL)
	}
	if strings.TrimSpace(c.LangflowAPIKey) == "" {
		return apierror.New(apierror.KindConfiguration, "LANGFLOW_API_KEY is required")
	}
	if c.Timeout <= 0 {
		return apierror.New(apierror.KindConfiguration, "LANGFLOW_TIMEOUT must be positive")
	}
	if c.MaxRetries < 0 {
		return apierror.New(apierror.KindConfiguration, "LANGFLOW_MAX_RETRIES must not be negative")
	}
	if c.RateLimit < 0 {
		return apierror.New(apierror.KindConfiguration, "LANGFLOW_RATE_LIMIT must not be negative")
	}
	switch c.Transport {
	case TransportStdio:
	case TransportHTTP:
		if c.HTTPAddr == "" {
			return apierror.New(apierror.KindConfiguration, "MCP_HTTP_ADDR is required for the http transport")
		}
	default:
		return apierror.New(apierror.KindConfiguration, "unknown MCP_TRANSPORT %q (want stdio or http)", c.Transport)
	}
	if c.ShutdownTimeout <= 0 {
		return apierror.New(apierror.KindConfiguration, "SHUTDOWN_TIMEOUT must be positive")
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return apierror.New(apierror.KindConfiguration, "unknown LOG_FORMAT %q (want console or json)", c.LogFormat)
	}
	return nil
}
