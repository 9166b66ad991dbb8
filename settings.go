package main

import (
	"log/slog"

	"github.com/urfave/cli/v2"

	"github.com/torre76/smartcrf/config"
	"github.com/torre76/smartcrf/logging"
)

// globalFlags apply to every command.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Configuration file (default ~/.config/smartcrf/config.toml)",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Diagnostic log level: debug, info, warn or error",
			Value: "warn",
		},
		&cli.StringFlag{
			Name:  "log-format",
			Usage: "Diagnostic log format: text or json",
			Value: "text",
		},
		&cli.StringFlag{
			Name:  "log-file",
			Usage: "Append diagnostic logs to this file instead of stderr",
		},
	}
}

// loadSettings reads the configuration file and applies the flags the user
// set explicitly on top of it.
func loadSettings(c *cli.Context) (*config.Config, error) {
	cfg, _, _, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}

	if c.IsSet("min") {
		cfg.Range.MinKbps = c.Int64("min")
	}
	if c.IsSet("max") {
		cfg.Range.MaxKbps = c.Int64("max")
	}
	if c.IsSet("ideal") {
		cfg.Range.IdealKbps = c.Int64("ideal")
	}
	if c.IsSet("round") {
		cfg.CRF.Round = c.Bool("round")
	}
	if c.IsSet("clamp") {
		cfg.CRF.Clamp = c.Bool("clamp")
	}
	if c.IsSet("rename") {
		cfg.Rename.Enabled = c.Bool("rename")
	}
	if c.IsSet("tag-skipped") {
		cfg.Rename.TagSkipped = c.Bool("tag-skipped")
	}
	if c.IsSet("backend") {
		cfg.Probe.Backend = c.String("backend")
	}
	if c.IsSet("mediainfo") {
		cfg.Probe.MediaInfoPath = c.String("mediainfo")
	}
	if c.IsSet("ffprobe") {
		cfg.Probe.FFprobePath = c.String("ffprobe")
	}
	if c.IsSet("timeout") {
		cfg.Probe.TimeoutSeconds = c.Int("timeout")
	}
	if c.IsSet("ext") {
		cfg.Scan.Extensions = c.StringSlice("ext")
	}
	if c.IsSet("log-level") {
		cfg.Logging.Level = c.String("log-level")
	}
	if c.IsSet("log-format") {
		cfg.Logging.Format = c.String("log-format")
	}
	if c.IsSet("log-file") {
		cfg.Logging.File = c.String("log-file")
	}

	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the diagnostic logger described by cfg.
func newLogger(cfg *config.Config) (*slog.Logger, func() error, error) {
	return logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Path:   cfg.Logging.File,
	})
}

// probeFlags select the bitrate reader.
func probeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "backend",
			Usage: "Bitrate reader: mediainfo or ffprobe",
			Value: config.BackendMediaInfo,
		},
		&cli.StringFlag{
			Name:  "mediainfo",
			Usage: "Path to the mediainfo executable",
		},
		&cli.StringFlag{
			Name:  "ffprobe",
			Usage: "Path to the ffprobe executable",
		},
		&cli.IntFlag{
			Name:  "timeout",
			Usage: "Seconds allowed for reading the bitrate of one file",
			Value: 30,
		},
	}
}

// rangeFlags describe the target range and the CRF policy.
func rangeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.Int64Flag{
			Name:  "min",
			Usage: "Lowest acceptable bitrate in kbps",
			Value: 1500,
		},
		&cli.Int64Flag{
			Name:  "max",
			Usage: "Highest acceptable bitrate in kbps",
			Value: 1600,
		},
		&cli.Int64Flag{
			Name:  "ideal",
			Usage: "Reference bitrate in kbps (default: midpoint of min and max)",
		},
		&cli.BoolFlag{
			Name:  "round",
			Usage: "Round the CRF to an integer (--round=false keeps one decimal)",
			Value: true,
		},
		&cli.BoolFlag{
			Name:  "clamp",
			Usage: "Clamp the CRF to the encoder range [0, 51]",
			Value: true,
		},
	}
}

// runFlags configure a folder run.
func runFlags() []cli.Flag {
	flags := append(rangeFlags(), probeFlags()...)
	return append(flags,
		&cli.BoolFlag{
			Name:  "rename",
			Usage: "Rename files (--rename=false only reports the new names)",
			Value: true,
		},
		&cli.BoolFlag{
			Name:  "tag-skipped",
			Usage: "Rename files already in range to \"<name> skip.<ext>\"",
		},
		&cli.StringSliceFlag{
			Name:  "ext",
			Usage: "Video extension to include, repeatable (replaces the default list)",
		},
		&cli.StringFlag{
			Name:  "export",
			Usage: "Write the run log to this file when the run ends",
		},
		&cli.StringSliceFlag{
			Name:  "export-filter",
			Usage: "Status to export (PROCESSED, SKIP, ERROR, FAILED), repeatable; default all",
		},
		&cli.BoolFlag{
			Name:  "no-progress",
			Usage: "Do not draw the progress bar",
		},
	)
}
