// Package config loads the forwarder configuration from a YAML document,
// with environment-variable overrides for the relay credentials.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// defaultIMAPPort is the IMAPS port used when an account omits one.
const defaultIMAPPort = 993

// Account identifies one IMAP mailbox to poll. One account maps to exactly
// one cursor entry, keyed by Username.
type Account struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Addr returns the dial address for the account's IMAP server.
func (a Account) Addr() string {
	port := a.Port
	if port == 0 {
		port = defaultIMAPPort
	}
	return net.JoinHostPort(a.Host, strconv.Itoa(port))
}

// Relay holds the outbound SMTP relay settings, shared read-only across all
// dispatch calls in a run.
type Relay struct {
	Server       string `yaml:"server"`
	Port         int    `yaml:"port"`
	AuthUser     string `yaml:"auth_user"`
	AuthPassword string `yaml:"auth_password"`
	FromAddress  string `yaml:"from_address"`
	// UseSSL selects implicit TLS on connect. When false the connection is
	// upgraded in place with STARTTLS.
	UseSSL bool `yaml:"use_ssl"`
}

// Addr returns the dial address for the relay.
func (r Relay) Addr() string {
	return net.JoinHostPort(r.Server, strconv.Itoa(r.Port))
}

// Config is the full validated configuration for one run.
type Config struct {
	Accounts  []Account `yaml:"accounts"`
	SMTP      Relay     `yaml:"smtp"`
	ForwardTo []string  `yaml:"forward_to"`
	// StateFile is where the per-account UID cursors are persisted.
	StateFile string `yaml:"state_file"`
}

// Load reads and validates the configuration file. Environment variables
// override the relay credentials, so secrets can stay out of the file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &Config{}
	config.applyDefaults()

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyEnvVars()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks that every field the run depends on is present. A failure
// here is fatal to the run; no accounts are processed.
func (c *Config) Validate() error {
	if len(c.Accounts) == 0 {
		return fmt.Errorf("at least one account is required")
	}

	for i, account := range c.Accounts {
		if account.Host == "" {
			return fmt.Errorf("account %d: host is required", i)
		}
		if account.Username == "" {
			return fmt.Errorf("account %d: username is required", i)
		}
		if account.Password == "" {
			return fmt.Errorf("account %d (%s): password is required", i, account.Username)
		}
	}

	if c.SMTP.Server == "" {
		return fmt.Errorf("smtp.server is required")
	}
	if c.SMTP.Port == 0 {
		return fmt.Errorf("smtp.port is required")
	}
	if c.SMTP.AuthUser == "" || c.SMTP.AuthPassword == "" {
		return fmt.Errorf("smtp.auth_user and smtp.auth_password are required")
	}
	if c.SMTP.FromAddress == "" {
		return fmt.Errorf("smtp.from_address is required")
	}

	if len(c.ForwardTo) == 0 {
		return fmt.Errorf("at least one forward_to recipient is required")
	}

	return nil
}

func (c *Config) applyDefaults() {
	c.SMTP.UseSSL = true
	c.StateFile = "uid_state.json"
}

// applyEnvVars overrides relay credentials with environment variable values.
// Only non-empty variables override existing values.
func (c *Config) applyEnvVars() {
	if v := os.Getenv("MAILFWD_SMTP_AUTH_USER"); v != "" {
		c.SMTP.AuthUser = v
	}
	if v := os.Getenv("MAILFWD_SMTP_AUTH_PASSWORD"); v != "" {
		c.SMTP.AuthPassword = v
	}
	if v := os.Getenv("MAILFWD_STATE_FILE"); v != "" {
		c.StateFile = v
	}
}
