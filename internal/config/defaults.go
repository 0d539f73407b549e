package config

import "time"

// Default configuration values.
const (
	DefaultSourceTimeout = 30 * time.Second
	DefaultCacheSize     = 16
	DefaultServerHost    = "localhost"
	DefaultServerPort    = 8765
)

// ApplyDefaults fills unset fields.
func (c *ProjectConfig) ApplyDefaults() {
	if c == nil {
		return
	}
	if c.Source.Timeout == 0 {
		c.Source.Timeout = DefaultSourceTimeout
	}
	if c.Cache.Size == 0 {
		c.Cache.Size = DefaultCacheSize
	}
	if c.Server.Host == "" {
		c.Server.Host = DefaultServerHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerPort
	}
}

// Defaults returns the default values as a flat koanf map.
func Defaults() map[string]any {
	return map[string]any{
		"source.timeout": DefaultSourceTimeout.String(),
		"cache.size":     DefaultCacheSize,
		"cache.ttl":      "0s",
		"server.host":    DefaultServerHost,
		"server.port":    DefaultServerPort,
		"server.watch":   true,
	}
}
