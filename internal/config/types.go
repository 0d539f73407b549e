// Package config provides the project configuration shared by the CLI and
// the server. It is decoupled from flag handling so other callers can load a
// project's settings straight from its directory.
package config

import (
	"errors"
	"fmt"
	"time"
)

// SourceConfig says where pipeline snapshots come from. Exactly one of File
// or Command is used; File wins when both are set.
type SourceConfig struct {
	File    string        `koanf:"file"`
	Command string        `koanf:"command"`
	Dir     string        `koanf:"dir"`
	Timeout time.Duration `koanf:"timeout"`
}

// CacheConfig sizes the snapshot cache.
type CacheConfig struct {
	Size int           `koanf:"size"`
	TTL  time.Duration `koanf:"ttl"`
}

// ServerConfig holds settings for the HTTP server.
type ServerConfig struct {
	Host  string `koanf:"host"`
	Port  int    `koanf:"port"`
	Watch bool   `koanf:"watch"`
}

// ProjectConfig is the contents of assetlineage.yaml.
type ProjectConfig struct {
	Source SourceConfig `koanf:"source"`
	Cache  CacheConfig  `koanf:"cache"`
	Server ServerConfig `koanf:"server"`
}

// ErrNoSource is returned when neither a snapshot file nor a command is set.
var ErrNoSource = errors.New("no snapshot source configured")

// Validate checks the source settings.
func (s *SourceConfig) Validate() error {
	if s.File == "" && s.Command == "" {
		return fmt.Errorf("%w\nHint: set source.file or source.command in %s, or pass --file / --command", ErrNoSource, ConfigFileName)
	}
	if s.Timeout < 0 {
		return fmt.Errorf("source.timeout must not be negative, got %s", s.Timeout)
	}
	return nil
}

// Validate checks the server settings.
func (s *ServerConfig) Validate() error {
	if s.Port < 0 || s.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", s.Port)
	}
	return nil
}
