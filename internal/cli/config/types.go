// Package config provides configuration management for the assetlineage CLI.
//
// The project-level settings (source, cache, server) are the shared types
// from internal/config; this package adds the CLI-only fields and the
// layered loading of file, environment and flags.
package config

import (
	sharedcfg "github.com/leapstack-labs/assetlineage/internal/config"
)

// SourceConfig is an alias for the shared source configuration.
type SourceConfig = sharedcfg.SourceConfig

// CacheConfig is an alias for the shared cache configuration.
type CacheConfig = sharedcfg.CacheConfig

// ServerConfig is an alias for the shared server configuration.
type ServerConfig = sharedcfg.ServerConfig

// Config holds all CLI configuration options.
type Config struct {
	Source       SourceConfig `koanf:"source"`
	Cache        CacheConfig  `koanf:"cache"`
	Server       ServerConfig `koanf:"server"`
	Verbose      bool         `koanf:"verbose"`
	OutputFormat string       `koanf:"output"`

	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"-"`
}

// DefaultOutput auto-detects the format: TTY=text, non-TTY=markdown.
const DefaultOutput = "auto"
