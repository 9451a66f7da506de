package config

import (
	"os"
	"time"
)

// Config holds runtime settings for the pwkeeper CLI.
//
// Fields:
//   - ServerEndpointAddr: host:port of the backend gRPC endpoint.
//   - RequestTimeout: deadline applied to each server call.
//   - DeviceName: name reported at login; defaults to the host name.
type Config struct {
	ServerEndpointAddr string
	RequestTimeout     time.Duration
	DeviceName         string
}

// hostname is a test seam for os.Hostname.
var hostname = os.Hostname

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.RequestTimeout = 5 * time.Second
	if h, err := hostname(); err == nil {
		c.DeviceName = h
	}
}

// LoadConfig builds a Config from defaults overlaid with os.Args flags.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load applies defaults, then flags from args.
func Load(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}
