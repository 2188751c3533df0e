package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so yaml values like "3s" decode directly.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config represents the application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
	Cache     CacheConfig     `yaml:"cache"`
	HTTP      HTTPConfig      `yaml:"http"`
}

// ServerConfig pins the backend to a fixed address. When URL is empty the
// client falls back to discovery mode.
type ServerConfig struct {
	URL string `yaml:"url"`
}

// DiscoveryConfig controls the probe sweep used when no fixed address is
// configured.
type DiscoveryConfig struct {
	Port         int      `yaml:"port"`
	Subnet       string   `yaml:"subnet"`
	ProbeTimeout Duration `yaml:"probe_timeout"`
	Stagger      Duration `yaml:"stagger"`
}

// ReconnectConfig controls the fixed-delay retry policy. The policy is
// deliberately simple: a human operator supervises the client and can trigger
// a manual rescan once attempts are exhausted.
type ReconnectConfig struct {
	MaxAttempts int      `yaml:"max_attempts"`
	Delay       Duration `yaml:"delay"`
}

// CacheConfig locates the local snapshot cache.
type CacheConfig struct {
	Path string `yaml:"path"`
}

// HTTPConfig configures the local HTTP facade.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		Discovery: DiscoveryConfig{
			Port:         3000,
			Subnet:       "192.168.1.0/24",
			ProbeTimeout: Duration(2 * time.Second),
			Stagger:      Duration(20 * time.Millisecond),
		},
		Reconnect: ReconnectConfig{
			MaxAttempts: 5,
			Delay:       Duration(3 * time.Second),
		},
		Cache: CacheConfig{
			Path: "tablesender.db",
		},
		HTTP: HTTPConfig{
			Port: 8080,
		},
	}
}

// Load reads a yaml configuration file and fills unset fields with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	def := Default()
	if c.Discovery.Port == 0 {
		c.Discovery.Port = def.Discovery.Port
	}
	if c.Discovery.Subnet == "" {
		c.Discovery.Subnet = def.Discovery.Subnet
	}
	if c.Discovery.ProbeTimeout == 0 {
		c.Discovery.ProbeTimeout = def.Discovery.ProbeTimeout
	}
	if c.Discovery.Stagger == 0 {
		c.Discovery.Stagger = def.Discovery.Stagger
	}
	if c.Reconnect.MaxAttempts == 0 {
		c.Reconnect.MaxAttempts = def.Reconnect.MaxAttempts
	}
	if c.Reconnect.Delay == 0 {
		c.Reconnect.Delay = def.Reconnect.Delay
	}
	if c.Cache.Path == "" {
		c.Cache.Path = def.Cache.Path
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = def.HTTP.Port
	}
}
