package config

import "fmt"

// Validate checks the settings every command relies on.
func (c *Config) Validate() error {
	switch c.OutputFormat {
	case "", "auto", "text", "markdown", "json":
	default:
		return fmt.Errorf("unknown output format %q (want auto, text, markdown or json)", c.OutputFormat)
	}
	if c.Cache.Size < 0 {
		return fmt.Errorf("cache.size must not be negative, got %d", c.Cache.Size)
	}
	return c.Server.Validate()
}

// ValidateSource checks that a snapshot source is configured. Only commands
// that read lineage need one, so help and version work without it.
func (c *Config) ValidateSource() error {
	return c.Source.Validate()
}
