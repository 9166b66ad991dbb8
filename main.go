// Package main provides the entry point for the smartcrf application.
// It reads the bitrate of every video file in a folder and renames the files
// that fall outside a target bitrate range so their names carry a suggested
// CRF value for re-encoding.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/torre76/smartcrf/batch"
	"github.com/torre76/smartcrf/config"
	"github.com/torre76/smartcrf/crf"
	"github.com/torre76/smartcrf/mediainfo"
)

// Public variables (alphabetical)

// BuildDate contains the date when the binary was built.
// This value is set during build using ldflags.
var BuildDate = "unknown"

// Commit contains the git commit hash that the binary was built from.
// This value is set during build using ldflags.
var Commit = "unknown"

// Version contains the current version of the application.
// This value can be overridden during build using ldflags:
// go build -ldflags="-X 'main.Version=v1.0.0'"
var Version = "Development Version"

// Private variables (alphabetical)

// proberLocator finds the bitrate reader used by the run and probe commands.
var proberLocator = locateProber

// Private functions (alphabetical)

// configInitCommand writes the default configuration file.
func configInitCommand(c *cli.Context) error {
	path := c.String("config")
	if path == "" {
		var err error
		if path, err = config.DefaultConfigPath(); err != nil {
			return err
		}
	}
	if err := config.WriteSample(path); err != nil {
		return err
	}
	color.New(color.FgGreen).Fprintf(c.App.Writer, "✅ Configuration written to %s\n", path)
	return nil
}

// configPathCommand prints which configuration file would be read.
func configPathCommand(c *cli.Context) error {
	_, resolved, exists, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if exists {
		fmt.Fprintln(c.App.Writer, resolved)
		return nil
	}
	fmt.Fprintf(c.App.Writer, "%s (not present, defaults in use)\n", resolved)
	return nil
}

// estimateCommand prints the suggested CRF for a bitrate without touching any file.
func estimateCommand(c *cli.Context) error {
	if c.NArg() < 1 {
		return errors.New("missing required argument: BITRATE")
	}
	kbps, err := parseKbps(c.Args().First())
	if err != nil {
		return err
	}

	cfg, err := loadSettings(c)
	if err != nil {
		return err
	}
	rng, err := batch.NewTargetRange(cfg.Range.MinKbps, cfg.Range.MaxKbps, cfg.Range.IdealKbps)
	if err != nil {
		return err
	}

	w := c.App.Writer
	valueStyle := color.New(color.Bold)
	fmt.Fprintf(w, "🎯 Target range: %s\n", formatRange(rng))
	if rng.Contains(kbps) {
		color.New(color.FgYellow).Fprintf(w, "%s is inside the target range, no re-encode needed\n", formatKbps(kbps))
		return nil
	}

	policy := cfg.CRFPolicy()
	value, err := policy.Apply(float64(kbps), float64(rng.IdealKbps))
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "📈 %s → suggested CRF ", formatKbps(kbps))
	valueStyle.Fprintf(w, "%s\n", policy.Format(value))
	return nil
}

// formatKbps renders a bitrate with thousand separators, e.g. "4,000 kbps".
func formatKbps(kbps int64) string {
	return humanize.Comma(kbps) + " kbps"
}

// formatRange renders a range with thousand separators.
func formatRange(r batch.TargetRange) string {
	return fmt.Sprintf("%s-%s kbps (ideal %s)",
		humanize.Comma(r.MinKbps), humanize.Comma(r.MaxKbps), humanize.Comma(r.IdealKbps))
}

// locateProber finds the configured backend and builds its prober.
func locateProber(ctx context.Context, cfg *config.Config) (batch.Prober, *mediainfo.Info, error) {
	switch cfg.Probe.Backend {
	case config.BackendFFprobe:
		info, err := mediainfo.Locate(ctx, mediainfo.FFprobe, cfg.Probe.FFprobePath)
		if err != nil {
			return nil, nil, err
		}
		prober, err := mediainfo.NewFFprobeProber(info, cfg.ProbeTimeout())
		return prober, info, err
	default:
		info, err := mediainfo.Locate(ctx, mediainfo.MediaInfo, cfg.Probe.MediaInfoPath)
		if err != nil {
			return nil, nil, err
		}
		prober, err := mediainfo.NewProber(info, cfg.ProbeTimeout())
		return prober, info, err
	}
}

// newApp builds the command-line application.
func newApp() *cli.App {
	return &cli.App{
		Name:  "smartcrf",
		Usage: "Tag video files with a suggested CRF based on their bitrate",
		Description: "smartcrf reads the overall bitrate of every video file in a folder. Files " +
			"outside the target range are renamed to carry the CRF that would bring them " +
			"close to the ideal bitrate, e.g. \"movie crf 26.mkv\".",
		Authors: []*cli.Author{
			{
				Name: "Gian Luca Dalla Torre",
			},
		},
		Version:   Version,
		Action:    runCommand,
		ArgsUsage: "DIR",
		Flags:     append(globalFlags(), runFlags()...),
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "Classify and tag the video files of a folder",
				ArgsUsage: "DIR",
				Flags:     runFlags(),
				Action:    runCommand,
			},
			{
				Name:      "estimate",
				Usage:     "Print the suggested CRF for a bitrate in kbps",
				ArgsUsage: "BITRATE",
				Flags:     rangeFlags(),
				Action:    estimateCommand,
			},
			{
				Name:      "probe",
				Usage:     "Print the bitrate of one or more files",
				ArgsUsage: "FILE...",
				Flags:     probeFlags(),
				Action:    probeCommand,
			},
			{
				Name:  "config",
				Usage: "Manage the configuration file",
				Subcommands: []*cli.Command{
					{
						Name:   "init",
						Usage:  "Write the default configuration (to --config or the default location)",
						Action: configInitCommand,
					},
					{
						Name:   "path",
						Usage:  "Print the configuration file in use",
						Action: configPathCommand,
					},
				},
			},
		},
	}
}

// parseKbps accepts "4000", "4,000" and "4000kbps".
func parseKbps(arg string) (int64, error) {
	cleaned := strings.ToLower(strings.TrimSpace(arg))
	cleaned = strings.TrimSuffix(cleaned, "kbps")
	cleaned = strings.ReplaceAll(strings.TrimSpace(cleaned), ",", "")
	kbps, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil || kbps <= 0 {
		return 0, fmt.Errorf("invalid bitrate %q: expected a positive number of kbps", arg)
	}
	return kbps, nil
}

// policyLabel describes how CRF values are written.
func policyLabel(p crf.Policy) string {
	label := "rounded"
	if !p.Round {
		label = fmt.Sprintf("%d decimal", p.Precision)
	}
	if p.Clamp {
		label += fmt.Sprintf(", clamped to [%s, %s]", p.Format(p.Min), p.Format(p.Max))
	}
	return label
}

// probeCommand prints the bitrate of each file given on the command line.
func probeCommand(c *cli.Context) error {
	if c.NArg() < 1 {
		return errors.New("missing required argument: FILE")
	}
	cfg, err := loadSettings(c)
	if err != nil {
		return err
	}
	prober, info, err := proberLocator(c.Context, cfg)
	if err != nil {
		return err
	}

	w := c.App.Writer
	printTool(w, info)

	failed := 0
	errorStyle := color.New(color.FgRed)
	for _, arg := range c.Args().Slice() {
		name := filepath.Base(arg)
		kbps, err := prober.BitrateKbps(c.Context, arg)
		if err != nil {
			failed++
			errorStyle.Fprintf(w, "❌ %s: %v\n", name, probeCause(err))
			continue
		}
		size := ""
		if st, err := os.Stat(arg); err == nil {
			size = " (" + humanize.Bytes(uint64(st.Size())) + ")"
		}
		fmt.Fprintf(w, "🎞️ %s: %s%s\n", name, formatKbps(kbps), size)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %s could not be probed", failed, pluralizeFiles(c.NArg()))
	}
	return nil
}

// runCommand processes one folder and prints each outcome as it arrives.
func runCommand(c *cli.Context) error {
	if c.NArg() < 1 {
		regularStyle := color.New(color.Reset)
		regularStyle.Fprintf(c.App.ErrWriter, "Usage: %s [options] DIR\n", c.App.Name)
		regularStyle.Fprintf(c.App.ErrWriter, "Run '%s --help' for more information.\n", c.App.Name)
		return errors.New("missing required argument: DIR")
	}
	dir := c.Args().First()

	cfg, err := loadSettings(c)
	if err != nil {
		return err
	}
	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	rng, err := batch.NewTargetRange(cfg.Range.MinKbps, cfg.Range.MaxKbps, cfg.Range.IdealKbps)
	if err != nil {
		return err
	}
	exportFilter, err := parseStatuses(c.StringSlice("export-filter"))
	if err != nil {
		return err
	}

	// The first interrupt requests a stop after the current file; default
	// handling is restored so a second one terminates the process.
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		stop()
	}()

	prober, info, err := proberLocator(ctx, cfg)
	if err != nil {
		return err
	}

	session, err := batch.NewSession(dir, "")
	if err != nil {
		return err
	}
	defer session.Close()
	logger = logger.With("run_id", session.ID.String())

	w := c.App.Writer
	printTool(w, info)
	printRunHeader(w, session, rng, cfg)

	view := newDisplay(w, showProgress(w, c.Bool("no-progress")))
	runner, err := batch.NewRunner(prober, batch.Options{
		Range:      rng,
		Policy:     cfg.CRFPolicy(),
		Rename:     cfg.Rename.Enabled,
		TagSkipped: cfg.Rename.TagSkipped,
		Extensions: cfg.Scan.Extensions,
		OnListed:   view.start,
	}, logger)
	if err != nil {
		return err
	}

	outcomes, done := runner.Start(ctx, session.Dir)
	for o := range outcomes {
		session.Record(o)
		view.outcome(o)
	}
	runErr := <-done
	view.finish()

	switch {
	case errors.Is(runErr, context.Canceled):
		color.New(color.FgYellow).Fprintln(w, "⏹️ Stopped before processing remaining files.")
	case runErr != nil:
		return runErr
	}

	if err := session.Close(); err != nil {
		logger.Warn("release directory lock", "error", err)
	}
	printSummary(w, session)

	if path := c.String("export"); path != "" {
		return exportLog(w, session, path, exportFilter)
	}
	return nil
}

func versionPrinter(c *cli.Context) {
	summaryStyle := color.New(color.FgCyan, color.Bold)
	valueStyle := color.New(color.Bold)
	regularStyle := color.New(color.Reset)

	summaryStyle.Fprintf(c.App.Writer, "🎚️ smartcrf %s\n", Version)
	regularStyle.Fprintf(c.App.Writer, "  🛠️ Build date: ")
	valueStyle.Fprintf(c.App.Writer, "%s\n", BuildDate)
	regularStyle.Fprintf(c.App.Writer, "  🔍 Commit: ")
	valueStyle.Fprintf(c.App.Writer, "%s\n", Commit)
}

// Public functions (alphabetical)

func main() {
	cli.VersionPrinter = versionPrinter

	if err := newApp().Run(os.Args); err != nil {
		errorStyle := color.New(color.FgRed)
		errorStyle.Fprintf(os.Stderr, "⚠️ Error: %v\n", err)
		os.Exit(1)
	}
}
