package connection

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/blobstash/blobstash.go/internal/codec"
	"github.com/blobstash/blobstash.go/pkg/constants"
	"github.com/blobstash/blobstash.go/pkg/logger"
)

// Config holds everything a Transport needs.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// PageSize is the default per-request limit for paginated endpoints.
	PageSize int

	Marshaler   codec.Marshaler
	Unmarshaler codec.Unmarshaler
	Logger      logger.Logger
	HTTPClient  *http.Client
}

// NewConfig creates a new Config for the BlobStash instance at u.
// User info in the URL, if any, is used as the API key.
func NewConfig(u *url.URL) *Config {
	jsonCodec := codec.NewJSON()
	c := &Config{
		BaseURL:     fmt.Sprintf("%s://%s", u.Scheme, u.Host),
		Timeout:     constants.DefaultHTTPTimeout,
		PageSize:    constants.DefaultPageSize,
		Marshaler:   jsonCodec,
		Unmarshaler: jsonCodec,
		Logger:      logger.New(slog.NewTextHandler(os.Stderr, nil)),
	}
	if u.User != nil {
		if pass, ok := u.User.Password(); ok {
			c.APIKey = pass
		} else {
			c.APIKey = u.User.Username()
		}
	}
	return c
}

// ConfigFromEnv builds a Config from BLOBSTASH_BASE_URL, BLOBSTASH_API_KEY
// and BLOBSTASH_TIMEOUT.
func ConfigFromEnv() (*Config, error) {
	u, err := url.Parse(GetEnvOrDefault(constants.EnvBaseURL, constants.DefaultBaseURL))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", constants.EnvBaseURL, err)
	}
	c := NewConfig(u)
	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	return c, nil
}

// fileConfig is the on-disk YAML shape.
type fileConfig struct {
	BaseURL  string `yaml:"base_url"`
	APIKey   string `yaml:"api_key"`
	Timeout  string `yaml:"timeout"`
	PageSize int    `yaml:"page_size"`
}

// LoadConfig reads a YAML config file. Environment variables take
// precedence over values from the file.
//
//	base_url: http://localhost:8050
//	api_key: secret
//	timeout: 5s
//	page_size: 100
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if fc.BaseURL == "" {
		fc.BaseURL = constants.DefaultBaseURL
	}
	u, err := url.Parse(GetEnvOrDefault(constants.EnvBaseURL, fc.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("parsing base_url: %w", err)
	}

	c := NewConfig(u)
	if fc.APIKey != "" {
		c.APIKey = fc.APIKey
	}
	if fc.Timeout != "" {
		d, err := time.ParseDuration(fc.Timeout)
		if err != nil {
			return nil, fmt.Errorf("parsing timeout: %w", err)
		}
		c.Timeout = d
	}
	if fc.PageSize > 0 {
		c.PageSize = fc.PageSize
	}
	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyEnv() error {
	if key := os.Getenv(constants.EnvAPIKey); key != "" {
		c.APIKey = key
	}
	if raw := os.Getenv(constants.EnvTimeout); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", constants.EnvTimeout, err)
		}
		c.Timeout = d
	}
	return nil
}

func GetEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	return value
}
