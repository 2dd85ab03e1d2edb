// Package config loads endpoint settings and security context provisioning
// from YAML or TOML files.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/TheusHen/oscore/oscore/crypto"
	"github.com/TheusHen/oscore/oscore/identity"
	"github.com/TheusHen/oscore/oscore/security"
	"github.com/TheusHen/oscore/oscore/transport/quic"
)

var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config holds the endpoint configuration
type Config struct {
	// Listen is the UDP address the QUIC listener binds to
	Listen string `yaml:"listen" toml:"listen"`

	// LogLevel is a zerolog level name
	LogLevel string `yaml:"log_level" toml:"log_level"`

	// RateLimit bounds requests per remote address
	RateLimit RateLimitConfig `yaml:"rate_limit" toml:"rate_limit"`

	// Transport tunes the QUIC carrier
	Transport TransportConfig `yaml:"transport" toml:"transport"`

	// Contexts are derived and registered at startup
	Contexts []ContextConfig `yaml:"contexts" toml:"contexts"`
}

// RateLimitConfig holds token bucket settings. RPS <= 0 disables limiting.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps" toml:"rps"`
	Burst int     `yaml:"burst" toml:"burst"`
}

// TransportConfig holds QUIC settings. IdleTimeout is a Go duration string.
type TransportConfig struct {
	ALPN        string `yaml:"alpn" toml:"alpn"`
	IdleTimeout string `yaml:"idle_timeout" toml:"idle_timeout"`
}

// Options converts the section into carrier options.
func (tc TransportConfig) Options() (quic.Options, error) {
	opts := quic.Options{ALPN: tc.ALPN}
	if tc.IdleTimeout != "" {
		d, err := time.ParseDuration(tc.IdleTimeout)
		if err != nil || d <= 0 {
			return quic.Options{}, fmt.Errorf("%w: transport idle_timeout %q", ErrInvalidConfig, tc.IdleTimeout)
		}
		opts.IdleTimeout = d
	}
	return opts, nil
}

// ContextConfig describes one pre-shared security context.
// Byte strings are hex, optionally prefixed with 0x.
type ContextConfig struct {
	Name         string `yaml:"name" toml:"name"`
	MasterSecret string `yaml:"master_secret" toml:"master_secret"`
	MasterSalt   string `yaml:"master_salt" toml:"master_salt"`
	IDContext    string `yaml:"id_context" toml:"id_context"`
	SenderID     string `yaml:"sender_id" toml:"sender_id"`
	RecipientID  string `yaml:"recipient_id" toml:"recipient_id"`
	AEAD         int    `yaml:"aead" toml:"aead"`
	KDF          int    `yaml:"kdf" toml:"kdf"`
	ReplayWindow int    `yaml:"replay_window" toml:"replay_window"`
}

// Registry receives provisioned contexts.
type Registry interface {
	Add(key string, ctx *security.Context) error
}

// Load reads configuration from a YAML file, or TOML when the file name ends in
// .toml. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Listen:   "[::]:5684",
		LogLevel: "info",
		RateLimit: RateLimitConfig{
			RPS:   50,
			Burst: 100,
		},
		Transport: TransportConfig{
			ALPN:        quic.DefaultALPN,
			IdleTimeout: quic.DefaultIdleTimeout.String(),
		},
	}
}

// Validate checks the transport section and that every context has a unique
// name and decodes cleanly.
func (c *Config) Validate() error {
	if _, err := c.Transport.Options(); err != nil {
		return err
	}
	seen := map[string]bool{}
	for i, cc := range c.Contexts {
		if strings.TrimSpace(cc.Name) == "" {
			return fmt.Errorf("%w: context %d has no name", ErrInvalidConfig, i)
		}
		if seen[cc.Name] {
			return fmt.Errorf("%w: duplicate context %q", ErrInvalidConfig, cc.Name)
		}
		seen[cc.Name] = true
		if _, err := cc.Params(); err != nil {
			return err
		}
	}
	return nil
}

// Provision derives every configured context and adds it to reg under its name.
func (c *Config) Provision(reg Registry) error {
	for _, cc := range c.Contexts {
		p, err := cc.Params()
		if err != nil {
			return err
		}
		ctx, err := security.Derive(p)
		if err != nil {
			return fmt.Errorf("context %q: %w", cc.Name, err)
		}
		if err := reg.Add(cc.Name, ctx); err != nil {
			return fmt.Errorf("context %q: %w", cc.Name, err)
		}
	}
	return nil
}

// Params converts the entry into derivation parameters.
// An empty id_context means the context has none.
func (cc ContextConfig) Params() (security.Params, error) {
	secret, err := decodeHex(cc.MasterSecret)
	if err != nil {
		return security.Params{}, fmt.Errorf("%w: context %q master_secret: %w", ErrInvalidConfig, cc.Name, err)
	}
	salt, err := decodeHex(cc.MasterSalt)
	if err != nil {
		return security.Params{}, fmt.Errorf("%w: context %q master_salt: %w", ErrInvalidConfig, cc.Name, err)
	}
	sender, err := identity.ParseHex(cc.SenderID)
	if err != nil {
		return security.Params{}, fmt.Errorf("%w: context %q sender_id: %w", ErrInvalidConfig, cc.Name, err)
	}
	recipient, err := identity.ParseHex(cc.RecipientID)
	if err != nil {
		return security.Params{}, fmt.Errorf("%w: context %q recipient_id: %w", ErrInvalidConfig, cc.Name, err)
	}
	var idContext identity.ID
	if cc.IDContext != "" {
		if idContext, err = identity.ParseHex(cc.IDContext); err != nil {
			return security.Params{}, fmt.Errorf("%w: context %q id_context: %w", ErrInvalidConfig, cc.Name, err)
		}
	}
	return security.Params{
		MasterSecret: secret,
		MasterSalt:   salt,
		IDContext:    idContext,
		AEAD:         crypto.AEADAlgorithm(cc.AEAD),
		KDF:          crypto.KDFAlgorithm(cc.KDF),
		SenderID:     sender,
		RecipientID:  recipient,
		ReplayWindow: cc.ReplayWindow,
	}, nil
}

func decodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	return hex.DecodeString(s)
}
