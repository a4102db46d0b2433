// Package config loads and validates the daemon's TOML configuration using
// koanf/v2, the same layered defaults → file → environment loader the
// teacher's internal/config package builds, adapted from YAML to TOML per
// spec.md §6.
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds the complete validated gnosisvpnd configuration (spec.md §3).
type Config struct {
	Version    int               `koanf:"version"`
	EntryNode  *EntryNodeConfig  `koanf:"entry_node"`
	Connection *ConnectionConfig `koanf:"connection"`
	WireGuard  *WireGuardConfig  `koanf:"wireguard"`
	Log        LogConfig         `koanf:"log"`
	Metrics    MetricsConfig     `koanf:"metrics"`
}

// MetricsConfig is the ambient Prometheus HTTP endpoint table, following
// the teacher's MetricsConfig shape (addr/path) though unnamed in
// spec.md §3 (metrics are out of scope there, but the ambient stack still
// needs a place to configure the listener, spec.md §7 expansion).
type MetricsConfig struct {
	Addr string `koanf:"addr"`
	Path string `koanf:"path"`
}

// EntryNodeConfig is the `entry_node` table, spec.md §3.
type EntryNodeConfig struct {
	Endpoint               string  `koanf:"endpoint"`
	APIToken               string  `koanf:"api_token"`
	InternalConnectionPort *uint16 `koanf:"internal_connection_port"`
}

// ConnectionConfig is the `connection` table, spec.md §3.
type ConnectionConfig struct {
	Destination  string        `koanf:"destination"`
	ListenHost   string        `koanf:"listen_host"`
	Path         *PathConfig   `koanf:"path"`
	Target       *TargetConfig `koanf:"target"`
	Capabilities []string      `koanf:"capabilities"`
}

// PathConfig is the `connection.path` table: either Hop(n) or
// Intermediates([...]), spec.md §3.
type PathConfig struct {
	Hop            *uint8  `koanf:"hop"`
	IntermediateID *string `koanf:"intermediate_id"`
}

// TargetConfig is the `connection.target` table, spec.md §3.
type TargetConfig struct {
	Type string `koanf:"type"`
	Host string `koanf:"host"`
	Port uint16 `koanf:"port"`
}

// WireGuardConfig is the `wireguard` table, spec.md §3.
type WireGuardConfig struct {
	Address         string  `koanf:"address"`
	ServerPublicKey string  `koanf:"server_public_key"`
	AllowedIPs      string  `koanf:"allowed_ips"`
	PresharedKey    string  `koanf:"preshared_key"`
	PrivateKey      string  `koanf:"private_key"`
}

// LogConfig is the ambient logging table, following the teacher's
// LogConfig shape (level/format) rather than being named in spec.md §3
// (Logging is explicitly out of scope per spec.md §1, but the ambient
// stack still needs a place to configure it).
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// DefaultConfig returns a Config populated with the built-in defaults:
// version 1, info/text logging and the metrics listener at
// 127.0.0.1:9471/metrics. It sets no connection table; the session target
// (Plain, wg-server:51820) and capability (Segmentation) defaults are
// applied by httpapi when it builds the open_session body.
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Addr: "127.0.0.1:9471",
			Path: "/metrics",
		},
	}
}

// envPrefix is the environment variable prefix for configuration overrides.
const envPrefix = "GNOSISVPN_"

// Load reads configuration from the TOML file at path, overlays
// GNOSISVPN_-prefixed environment overrides, and merges both on top of
// DefaultConfig(). Mirrors the teacher's config.Load layering, substituting
// the TOML parser for YAML per spec.md §6.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := DefaultConfig()
	if err := loadDefaults(k, defaults); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	if err := k.Load(file.Provider(path), tomlParser{}); err != nil {
		return nil, fmt.Errorf("config: load %s: %w", path, err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("config: load env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: validate %s: %w", path, err)
	}

	return cfg, nil
}

func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)

	return strings.ReplaceAll(s, "_", ".")
}

func loadDefaults(k *koanf.Koanf, defaults *Config) error {
	defaultMap := map[string]any{
		"version":      defaults.Version,
		"log.level":    defaults.Log.Level,
		"log.format":   defaults.Log.Format,
		"metrics.addr": defaults.Metrics.Addr,
		"metrics.path": defaults.Metrics.Path,
	}

	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("config: set default %s: %w", key, err)
		}
	}

	return nil
}

// Validation errors (spec.md §3, §6).
var (
	// ErrUnsupportedVersion indicates version != 1.
	ErrUnsupportedVersion = errors.New("config: version must be 1")
	// ErrInvalidListenHost indicates listen_host does not match the
	// <host>, :<port>, or <host>:<port> grammar.
	ErrInvalidListenHost = errors.New("config: listen_host must be <host>, :<port>, or <host>:<port>")
	// ErrInvalidHop indicates connection.path.hop is out of [0,3].
	ErrInvalidHop = errors.New("config: connection.path.hop must be in 0..3")
	// ErrInvalidCapability indicates an unrecognized capability name.
	ErrInvalidCapability = errors.New("config: capabilities must be Segmentation or Retransmission")
	// ErrInvalidTargetType indicates connection.target.type is neither
	// Plain nor Sealed.
	ErrInvalidTargetType = errors.New("config: connection.target.type must be Plain or Sealed")
)

// validCapabilities lists the recognized capability names, spec.md §3.
var validCapabilities = map[string]bool{
	"Segmentation":   true,
	"Retransmission": true,
}

// Validate checks cfg for logical errors, per spec.md §3 and §6.
func Validate(cfg *Config) error {
	if cfg.Version != 1 {
		return ErrUnsupportedVersion
	}

	if cfg.Connection != nil {
		if err := validateConnection(cfg.Connection); err != nil {
			return err
		}
	}

	return nil
}

func validateConnection(c *ConnectionConfig) error {
	if c.ListenHost != "" {
		if err := ValidateListenHost(c.ListenHost); err != nil {
			return err
		}
	}

	if c.Path != nil && c.Path.Hop != nil && *c.Path.Hop > 3 {
		return ErrInvalidHop
	}

	if c.Target != nil && c.Target.Type != "" && c.Target.Type != "Plain" && c.Target.Type != "Sealed" {
		return ErrInvalidTargetType
	}

	for _, capability := range c.Capabilities {
		if !validCapabilities[capability] {
			return fmt.Errorf("%w: %q", ErrInvalidCapability, capability)
		}
	}

	return nil
}

// ValidateListenHost checks the `<host>`, `:<port>`, or `<host>:<port>`
// grammar from spec.md §6: port (if present) in [0,65535], host (if
// present) parseable as an IP literal or DNS name. Exported so the control
// surface and CLI can apply the same grammar to the EntryNode command's
// listen_host field before it ever reaches the reducer.
func ValidateListenHost(raw string) error {
	if strings.HasPrefix(raw, ":") {
		return validatePort(raw[1:])
	}

	host, port, err := net.SplitHostPort(raw)
	if err != nil {
		return validateHost(raw)
	}

	if err := validatePort(port); err != nil {
		return err
	}

	return validateHost(host)
}

func validatePort(raw string) error {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 || n > 65535 {
		return fmt.Errorf("%w: port %q", ErrInvalidListenHost, raw)
	}

	return nil
}

func validateHost(raw string) error {
	if raw == "" {
		return fmt.Errorf("%w: empty host", ErrInvalidListenHost)
	}

	if net.ParseIP(raw) != nil {
		return nil
	}

	for _, label := range strings.Split(raw, ".") {
		if label == "" || len(label) > 63 || strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
			return fmt.Errorf("%w: host %q", ErrInvalidListenHost, raw)
		}

		for _, r := range label {
			if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-') {
				return fmt.Errorf("%w: host %q", ErrInvalidListenHost, raw)
			}
		}
	}

	return nil
}
