package config

import (
	"path/filepath"
	"strings"
	"time"

	redisclient "github.com/vietddude/ledgerscan/internal/infra/redis"
	"github.com/vietddude/ledgerscan/internal/infra/rpc"
	"github.com/vietddude/ledgerscan/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	API      APIConfig          `yaml:"api"`
	Retry    rpc.RetryConfig    `yaml:"retry"`
	Messages MessagesConfig     `yaml:"messages"`
	Ledger   LedgerConfig       `yaml:"ledger"`
	Redis    redisclient.Config `yaml:"redis"`
	Database postgres.Config    `yaml:"database"`
	Server   ServerConfig       `yaml:"server"`
	Logging  LoggingConfig      `yaml:"logging"`
}

// APIConfig holds the remote endpoint and pacing settings.
type APIConfig struct {
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	ChainID     string        `yaml:"chain_id"` // only sent when set
	Timeout     time.Duration `yaml:"timeout"`
	MinInterval time.Duration `yaml:"min_interval"`
	PageSize    int           `yaml:"page_size"`
	MaxPages    int           `yaml:"max_pages"`
	Sort        string        `yaml:"sort"` // desc, asc
	Count       int           `yaml:"count"`
}

// MessagesConfig extends the API message classification table.
type MessagesConfig struct {
	Rules   []rpc.MessageRule `yaml:"rules"`
	Unknown string            `yaml:"unknown"` // benign, transient, fatal
}

// LedgerConfig controls where CSV ledgers are written.
type LedgerConfig struct {
	Dir string `yaml:"dir"`
	// Filename may use {address}, {short} (first 8 chars) and {date} (YYYYMMDD).
	Filename string `yaml:"filename"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// Path returns the ledger file for address on the given day.
func (c LedgerConfig) Path(address string, day time.Time) string {
	short := address
	if len(short) > 8 {
		short = short[:8]
	}
	name := strings.NewReplacer(
		"{address}", address,
		"{short}", short,
		"{date}", day.Format("20060102"),
	).Replace(c.Filename)
	return filepath.Join(c.Dir, name)
}
