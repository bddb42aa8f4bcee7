package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/vietddude/ledgerscan/internal/core/domain"
	"github.com/vietddude/ledgerscan/internal/infra/rpc"
	"github.com/vietddude/ledgerscan/internal/infra/rpc/routing"
	"gopkg.in/yaml.v2"
)

// APIKeyEnv is read when the config file leaves api.api_key empty.
const APIKeyEnv = "ETHERSCAN_API_KEY"

// LoadDotEnv loads .env files into the environment. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads configuration from a YAML file. An empty path yields the defaults.
func Load(path string) (*AppConfig, error) {
	var cfg AppConfig
	jitterSet := false

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		// Expand environment variables in the YAML content
		expandedData := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}

		// jitter: 0 turns jitter off, so an explicit zero must survive defaults.
		var explicit struct {
			Retry struct {
				Jitter *float64 `yaml:"jitter"`
			} `yaml:"retry"`
		}
		if err := yaml.Unmarshal([]byte(expandedData), &explicit); err == nil {
			jitterSet = explicit.Retry.Jitter != nil
		}
	}

	applyDefaults(&cfg, jitterSet)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig, jitterSet bool) {
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = "https://api.etherscan.io/api"
	}
	if cfg.API.APIKey == "" {
		cfg.API.APIKey = os.Getenv(APIKeyEnv)
	}
	if cfg.API.Timeout == 0 {
		cfg.API.Timeout = 10 * time.Second
	}
	if cfg.API.MinInterval == 0 {
		cfg.API.MinInterval = 250 * time.Millisecond
	}
	if cfg.API.PageSize == 0 {
		cfg.API.PageSize = 100
	}
	if cfg.API.MaxPages == 0 {
		cfg.API.MaxPages = 10_000
	}
	if cfg.API.Sort == "" {
		cfg.API.Sort = "desc"
	}
	if cfg.API.Count == 0 {
		cfg.API.Count = 10
	}

	def := rpc.DefaultRetryConfig
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = def.MaxAttempts
	}
	if cfg.Retry.InitialDelay == 0 {
		cfg.Retry.InitialDelay = def.InitialDelay
	}
	if cfg.Retry.MaxDelay == 0 {
		cfg.Retry.MaxDelay = def.MaxDelay
	}
	if cfg.Retry.BackoffMultiple == 0 {
		cfg.Retry.BackoffMultiple = def.BackoffMultiple
	}
	if cfg.Retry.Jitter == 0 && !jitterSet {
		cfg.Retry.Jitter = def.Jitter
	}

	if cfg.Messages.Unknown == "" {
		cfg.Messages.Unknown = string(routing.SeverityFatal)
	}
	if cfg.Ledger.Dir == "" {
		cfg.Ledger.Dir = "."
	}
	if cfg.Ledger.Filename == "" {
		cfg.Ledger.Filename = "{short}_{date}.csv"
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// Validate checks values that have no sensible fallback. The API key is not
// checked here; commands that call the API use RequireAPIKey.
func (c *AppConfig) Validate() error {
	if c.API.PageSize < 1 || c.API.PageSize > 10_000 {
		return fmt.Errorf("%w: api.page_size %d out of range", domain.ErrInvalidInput, c.API.PageSize)
	}
	if c.API.MaxPages < 1 {
		return fmt.Errorf("%w: api.max_pages must be positive", domain.ErrInvalidInput)
	}
	if c.API.Sort != "asc" && c.API.Sort != "desc" {
		return fmt.Errorf("%w: api.sort must be asc or desc, got %q", domain.ErrInvalidInput, c.API.Sort)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("%w: retry.max_attempts must be positive", domain.ErrInvalidInput)
	}
	if c.Retry.Jitter < 0 || c.Retry.Jitter >= 1 {
		return fmt.Errorf("%w: retry.jitter must be in [0, 1)", domain.ErrInvalidInput)
	}

	unknown, err := routing.ParseSeverity(c.Messages.Unknown)
	if err != nil {
		return fmt.Errorf("%w: messages.unknown: %v", domain.ErrInvalidInput, err)
	}
	c.Messages.Unknown = string(unknown)

	for i, rule := range c.Messages.Rules {
		if rule.Pattern == "" {
			return fmt.Errorf("%w: messages.rules[%d] has no pattern", domain.ErrInvalidInput, i)
		}
		sev, err := routing.ParseSeverity(string(rule.Severity))
		if err != nil {
			return fmt.Errorf("%w: messages.rules[%d]: %v", domain.ErrInvalidInput, i, err)
		}
		c.Messages.Rules[i].Severity = sev
	}
	return nil
}

// RequireAPIKey returns an input error when no API key is configured.
func (c *AppConfig) RequireAPIKey() error {
	if c.API.APIKey == "" {
		return fmt.Errorf("%w: no API key; set api.api_key or %s", domain.ErrInvalidInput, APIKeyEnv)
	}
	return nil
}
