package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/torre76/smartcrf/crf"
)

// Probe backends.
const (
	BackendFFprobe   = "ffprobe"
	BackendMediaInfo = "mediainfo"
)

// Range is the acceptable bitrate window in kbps.
type Range struct {
	MinKbps   int64 `toml:"min_kbps" comment:"Lowest acceptable bitrate in kbps"`
	MaxKbps   int64 `toml:"max_kbps" comment:"Highest acceptable bitrate in kbps"`
	IdealKbps int64 `toml:"ideal_kbps" comment:"Reference bitrate for the estimate; 0 selects the midpoint"`
}

// CRF controls how the estimate is turned into a tag.
type CRF struct {
	Round     bool    `toml:"round" comment:"Round to the nearest integer"`
	Clamp     bool    `toml:"clamp" comment:"Clamp to [clamp_min, clamp_max]"`
	ClampMin  float64 `toml:"clamp_min"`
	ClampMax  float64 `toml:"clamp_max"`
	Precision int     `toml:"precision" comment:"Decimals kept when round is false"`
}

// Rename controls filesystem changes.
type Rename struct {
	Enabled    bool `toml:"enabled" comment:"false only reports the new names"`
	TagSkipped bool `toml:"tag_skipped" comment:"Tag in-range files with 'skip'"`
}

// Probe selects and bounds the bitrate reader.
type Probe struct {
	Backend        string `toml:"backend" comment:"mediainfo or ffprobe"`
	MediaInfoPath  string `toml:"mediainfo_path" comment:"Empty searches PATH"`
	FFprobePath    string `toml:"ffprobe_path" comment:"Empty searches PATH"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Scan selects the files of a directory.
type Scan struct {
	Extensions []string `toml:"extensions"`
}

// Logging configures diagnostic output.
type Logging struct {
	Level  string `toml:"level" comment:"debug, info, warn or error"`
	Format string `toml:"format" comment:"text or json"`
	File   string `toml:"file" comment:"Empty writes to stderr"`
}

// Config encapsulates all smartcrf settings.
type Config struct {
	Range   Range   `toml:"range"`
	CRF     CRF     `toml:"crf"`
	Rename  Rename  `toml:"rename"`
	Probe   Probe   `toml:"probe"`
	Scan    Scan    `toml:"scan"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path of the default configuration file.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigLocation)
}

// Load reads, normalizes and validates a configuration file. An empty path
// selects DefaultConfigPath, which may be absent; an explicit path must exist.
// The resolved path and whether a file was read are returned with the config.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		data, err := os.ReadFile(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		decoder := toml.NewDecoder(bytes.NewReader(data))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolvedPath, err)
		}
	}

	if err := cfg.Normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// WriteSample writes the default configuration to path, creating parent
// directories. An existing file is left untouched and reported as an error.
func WriteSample(path string) error {
	data, err := toml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("encode sample config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create config: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		return fmt.Errorf("write config: %w", err)
	}
	return file.Close()
}

// CRFPolicy returns the estimate policy described by the [crf] section.
func (c *Config) CRFPolicy() crf.Policy {
	return crf.Policy{
		Round:     c.CRF.Round,
		Precision: c.CRF.Precision,
		Clamp:     c.CRF.Clamp,
		Min:       c.CRF.ClampMin,
		Max:       c.CRF.ClampMax,
	}
}

// Normalize expands paths and canonicalizes enumerated values. Load calls it;
// callers that change fields afterwards call it again before Validate.
func (c *Config) Normalize() error {
	var err error
	if c.Probe.MediaInfoPath, err = expandPath(strings.TrimSpace(c.Probe.MediaInfoPath)); err != nil {
		return fmt.Errorf("probe.mediainfo_path: %w", err)
	}
	if c.Probe.FFprobePath, err = expandPath(strings.TrimSpace(c.Probe.FFprobePath)); err != nil {
		return fmt.Errorf("probe.ffprobe_path: %w", err)
	}
	if c.Logging.File, err = expandPath(strings.TrimSpace(c.Logging.File)); err != nil {
		return fmt.Errorf("logging.file: %w", err)
	}

	c.Probe.Backend = strings.ToLower(strings.TrimSpace(c.Probe.Backend))
	if c.Probe.Backend == "" {
		c.Probe.Backend = defaultBackend
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}

	seen := make(map[string]bool, len(c.Scan.Extensions))
	extensions := c.Scan.Extensions[:0]
	for _, ext := range c.Scan.Extensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext == "" || seen[ext] {
			continue
		}
		seen[ext] = true
		extensions = append(extensions, ext)
	}
	c.Scan.Extensions = extensions
	return nil
}

// ProbeTimeout returns the probe timeout as a duration.
func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Probe.TimeoutSeconds) * time.Second
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		info, err := os.Stat(expanded)
		if err != nil {
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		if info.IsDir() {
			return "", false, fmt.Errorf("config %s is a directory", expanded)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	info, err := os.Stat(defaultPath)
	switch {
	case err == nil && !info.IsDir():
		return defaultPath, true, nil
	case err == nil, errors.Is(err, fs.ErrNotExist):
		return defaultPath, false, nil
	}
	return "", false, fmt.Errorf("stat config: %w", err)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}
