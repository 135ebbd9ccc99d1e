package consul

import (
	"fmt"

	"github.com/hashicorp/consul/api"
)

type HealthConfig struct {
	Interval string `kdl:"interval"`
	Timeout  string `kdl:"timeout"`
	Path     string `kdl:"path"`
}

func (c *HealthConfig) toApiConfig(address string, port int) *api.AgentServiceCheck {
	if c == nil {
		return nil
	}
	return &api.AgentServiceCheck{
		HTTP:     fmt.Sprintf("http://%s:%d%s", address, port, c.Path),
		Timeout:  c.Timeout,
		Interval: c.Interval,
	}
}

type Config struct {
	Enabled     bool          `kdl:"enabled"`
	Address     string        `kdl:"address"`
	ServiceName string        `kdl:"service-name"`
	Health      *HealthConfig `kdl:"health"`
}

func DefaultConfig() *Config {
	return &Config{
		Address:     "consul:8500",
		ServiceName: "rainbow-crack",
		Health: &HealthConfig{
			Interval: "5s",
			Timeout:  "2s",
			Path:     "/api/health",
		},
	}
}

func (c *Config) toApiConfig() *api.Config {
	cfg := api.DefaultConfig()
	cfg.Address = c.Address
	return cfg
}
