package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateRange(); err != nil {
		return err
	}
	if err := c.validateCRF(); err != nil {
		return err
	}
	if err := c.validateProbe(); err != nil {
		return err
	}
	if len(c.Scan.Extensions) == 0 {
		return errors.New("scan.extensions must list at least one extension")
	}
	return c.validateLogging()
}

func (c *Config) validateRange() error {
	r := c.Range
	if r.MinKbps < 0 || r.MaxKbps < 0 {
		return errors.New("range.min_kbps and range.max_kbps must not be negative")
	}
	if r.MinKbps > r.MaxKbps {
		return fmt.Errorf("range.min_kbps (%d) must not exceed range.max_kbps (%d)", r.MinKbps, r.MaxKbps)
	}
	if r.IdealKbps < 0 {
		return errors.New("range.ideal_kbps must not be negative")
	}
	if r.IdealKbps == 0 && (r.MinKbps+r.MaxKbps)/2 <= 0 {
		return errors.New("range.ideal_kbps must be set when the range midpoint is zero")
	}
	return nil
}

func (c *Config) validateCRF() error {
	return c.CRFPolicy().Validate()
}

func (c *Config) validateProbe() error {
	switch c.Probe.Backend {
	case BackendMediaInfo, BackendFFprobe:
	default:
		return fmt.Errorf("probe.backend must be %q or %q, got %q", BackendMediaInfo, BackendFFprobe, c.Probe.Backend)
	}
	if c.Probe.TimeoutSeconds <= 0 {
		return errors.New("probe.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}
