// Package config loads the YAML configuration describing which S7 CPUs
// to connect to.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
	"github.com/NothinRandom/pystep7/s7"
)

// EndpointConfig is the YAML-serialisable form of an s7.Endpoint, plus a
// Name used to look it up and to tag its logs/metrics.
type EndpointConfig struct {
	Name             string        `yaml:"name"`
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port,omitempty"`
	Rack             int           `yaml:"rack,omitempty"`
	Slot             int           `yaml:"slot,omitempty"`
	ConnectionType   string        `yaml:"connection_type,omitempty"` // "pg", "op", "basic"
	LocalTSAP        uint16        `yaml:"local_tsap,omitempty"`
	SocketTimeout    time.Duration `yaml:"socket_timeout,omitempty"`
	RequestedPDUSize uint16        `yaml:"requested_pdu_size,omitempty"`
}

// Config is the top-level document: a list of named endpoints.
type Config struct {
	Endpoints []EndpointConfig `yaml:"endpoints"`
}

// DefaultPath returns ~/.pystep7/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".pystep7", "config.yaml")
}

// Load reads and parses a Config from path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save marshals cfg to YAML and writes it to path, creating parent
// directories as needed.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0644)
}

// Find returns the endpoint config with the given name, or nil.
func (c *Config) Find(name string) *EndpointConfig {
	for i := range c.Endpoints {
		if c.Endpoints[i].Name == name {
			return &c.Endpoints[i]
		}
	}
	return nil
}

// Endpoint converts e to an s7.Endpoint. An empty connection type means
// ConnectionPG; an unrecognised one is an error.
func (e EndpointConfig) Endpoint() (s7.Endpoint, error) {
	ct := s7.ConnectionPG
	switch e.ConnectionType {
	case "", "pg":
		ct = s7.ConnectionPG
	case "op":
		ct = s7.ConnectionOP
	case "basic":
		ct = s7.ConnectionBasic
	default:
		return s7.Endpoint{}, fmt.Errorf("config: endpoint %q: unknown connection_type %q", e.Name, e.ConnectionType)
	}
	return s7.Endpoint{
		Host:             e.Host,
		Port:             e.Port,
		Rack:             e.Rack,
		Slot:             e.Slot,
		ConnectionType:   ct,
		LocalTSAP:        e.LocalTSAP,
		SocketTimeout:    e.SocketTimeout,
		RequestedPduSize: e.RequestedPDUSize,
	}, nil
}
