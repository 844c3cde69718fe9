package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"tunnel/internal/ports"
)

// EnvPrefix is prepended to every environment override, e.g. TUNNEL_TIMEOUT=45s.
const EnvPrefix = "TUNNEL"

var (
	ErrInvalidPort    = errors.New("local port must be between 1 and 65535")
	ErrMissingCommand = errors.New("webui command is empty")
)

// Config holds everything one tunnel session needs. Relay settings are the
// fixed pinggy contract; they are overridable only so tests and mirrors can
// point somewhere else.
type Config struct {
	// Relay
	RelayHost  string `envconfig:"RELAY_HOST" default:"a.pinggy.io"`
	RelayPort  int    `envconfig:"RELAY_PORT" default:"80"`
	RelayUser  string `envconfig:"RELAY_USER" default:"auth"`
	Credential string `envconfig:"CREDENTIAL" default:"0000"`
	RemotePort int    `envconfig:"REMOTE_PORT" default:"0"`

	// Discovery
	PollInterval time.Duration `envconfig:"POLL_INTERVAL" default:"2s"`
	Timeout      time.Duration `envconfig:"TIMEOUT" default:"30s"`
	Watch        bool          `envconfig:"WATCH" default:"false"`

	// Files
	CacheDir string `envconfig:"CACHE_DIR" default:".cache"`
	LogName  string `envconfig:"LOG_NAME" default:"pigy.log"`
	SinkName string `envconfig:"SINK_NAME" default:"pigy.txt"`

	// Output
	Verbosity int  `envconfig:"VERBOSITY" default:"0"`
	NoColor   bool `envconfig:"NO_COLOR" default:"false"`
	Copy      bool `envconfig:"COPY" default:"false"`
	TUI       bool `envconfig:"TUI" default:"false"`

	// Positional arguments, never read from the environment.
	Command   string `ignored:"true"`
	LocalPort int    `ignored:"true"`
}

// Load reads an optional .env file and then TUNNEL_* environment variables
// on top of the built-in defaults.
func Load() (*Config, error) {
	// Silently ignore a missing .env; real environment variables still apply.
	_ = godotenv.Load()

	var c Config
	if err := envconfig.Process(EnvPrefix, &c); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	return &c, nil
}

// Default returns the built-in defaults without consulting the environment.
func Default() *Config {
	return &Config{
		RelayHost:    "a.pinggy.io",
		RelayPort:    80,
		RelayUser:    "auth",
		Credential:   "0000",
		RemotePort:   0,
		PollInterval: 2 * time.Second,
		Timeout:      30 * time.Second,
		CacheDir:     ".cache",
		LogName:      "pigy.log",
		SinkName:     "pigy.txt",
	}
}

// ParsePort converts the positional port argument.
func ParsePort(s string) (int, error) {
	p, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("parse local port %q: %w", s, err)
	}
	if !ports.Valid(p) {
		return 0, fmt.Errorf("%w (got %d)", ErrInvalidPort, p)
	}
	return p, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Command) == "" {
		return ErrMissingCommand
	}
	if !ports.Valid(c.LocalPort) {
		return fmt.Errorf("%w (got %d)", ErrInvalidPort, c.LocalPort)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive (got %s)", c.PollInterval)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive (got %s)", c.Timeout)
	}
	if c.RelayHost == "" {
		return fmt.Errorf("relay host is empty")
	}
	return nil
}

func (c *Config) LogPath() string  { return filepath.Join(c.CacheDir, c.LogName) }
func (c *Config) SinkPath() string { return filepath.Join(c.CacheDir, c.SinkName) }
