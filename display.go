package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/gertd/go-pluralize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"github.com/torre76/smartcrf/batch"
	"github.com/torre76/smartcrf/config"
	"github.com/torre76/smartcrf/mediainfo"
)

// Private types (alphabetical)

// display prints outcomes as they arrive, above an optional progress bar.
type display struct {
	out      io.Writer
	progress bool
	bar      *progressbar.ProgressBar
	styles   map[batch.Status]*color.Color
}

// Private functions (alphabetical)

// exportLog writes the session log to path. A filter matching nothing is
// reported and leaves no file behind.
func exportLog(w io.Writer, session *batch.Session, path string, statuses []batch.Status) error {
	var buf bytes.Buffer
	err := session.Export(&buf, batch.ExportOptions{Statuses: statuses, Summary: true})
	if errors.Is(err, batch.ErrNothingToExport) {
		color.New(color.FgYellow).Fprintln(w, "📭 No log entries match the export filter, nothing exported.")
		return nil
	}
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("error writing export: %w", err)
	}
	color.New(color.FgGreen).Fprintf(w, "✅ Log exported to %s\n", path)
	return nil
}

func newDisplay(out io.Writer, progress bool) *display {
	return &display{
		out:      out,
		progress: progress,
		styles: map[batch.Status]*color.Color{
			batch.StatusProcessed: color.New(color.FgGreen),
			batch.StatusSkip:      color.New(color.FgYellow),
			batch.StatusError:     color.New(color.FgRed),
			batch.StatusFailed:    color.New(color.FgMagenta),
		},
	}
}

// parseStatuses converts the --export-filter values.
func parseStatuses(values []string) ([]batch.Status, error) {
	statuses := make([]batch.Status, 0, len(values))
	for _, v := range values {
		status, err := batch.ParseStatus(v)
		if err != nil {
			return nil, fmt.Errorf("export filter: %w", err)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func pluralizeFiles(n int) string {
	return pluralize.NewClient().Pluralize("file", n, true)
}

// printRunHeader prints the folder and the settings of a run.
func printRunHeader(w io.Writer, session *batch.Session, rng batch.TargetRange, cfg *config.Config) {
	valueStyle := color.New(color.Bold)
	regularStyle := color.New(color.Reset)

	regularStyle.Fprintf(w, "📂 Folder: ")
	valueStyle.Fprintf(w, "%s\n", session.Dir)
	regularStyle.Fprintf(w, "🎯 Target range: ")
	valueStyle.Fprintf(w, "%s\n", formatRange(rng))
	regularStyle.Fprintf(w, "🧮 CRF: ")
	valueStyle.Fprintf(w, "%s\n", policyLabel(cfg.CRFPolicy()))
	if !cfg.Rename.Enabled {
		color.New(color.FgCyan).Fprintln(w, "📝 Dry run: files will not be renamed")
	}
	regularStyle.Fprintf(w, "🆔 Run ID: ")
	valueStyle.Fprintf(w, "%s\n\n", session.ID)
}

// printSummary renders the per-status counters and the elapsed time.
func printSummary(w io.Writer, session *batch.Session) {
	summary := session.Summary()

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Status", "Files"})
	for _, status := range batch.Statuses {
		tw.AppendRow(table.Row{string(status), summary.Count(status)})
	}
	tw.AppendFooter(table.Row{"Total", summary.Total()})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight, AlignFooter: text.AlignRight},
	})

	color.New(color.FgCyan, color.Bold).Fprintln(w, "\n📊 SUMMARY")
	fmt.Fprintln(w, tw.Render())
	fmt.Fprintf(w, "⏱️ Elapsed Time : %s\n", batch.FormatElapsed(session.Elapsed()))
}

// printTool prints which inspection tool is in use.
func printTool(w io.Writer, info *mediainfo.Info) {
	valueStyle := color.New(color.Bold)
	regularStyle := color.New(color.Reset)

	regularStyle.Fprintf(w, "🔧 Using %s at ", info.Tool)
	valueStyle.Fprintf(w, "%s\n", info.Path)
	regularStyle.Fprintf(w, "🔖 %s version: ", info.Tool)
	valueStyle.Fprintf(w, "%s\n", info.Version)
}

// probeCause strips the probe wrapper, which repeats the file path.
func probeCause(err error) error {
	var probeErr *mediainfo.ProbeError
	if errors.As(err, &probeErr) {
		return probeErr.Err
	}
	return err
}

// showProgress reports whether the progress bar can be drawn on w.
func showProgress(w io.Writer, disabled bool) bool {
	if disabled {
		return false
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Private methods (alphabetical)

// finish removes the progress bar.
func (d *display) finish() {
	if d.bar != nil {
		_ = d.bar.Finish()
		d.bar = nil
	}
}

// outcome prints one colored line and advances the bar.
func (d *display) outcome(o batch.Outcome) {
	if d.bar != nil {
		_ = d.bar.Clear()
	}
	style, ok := d.styles[o.Status]
	if !ok {
		style = color.New(color.Reset)
	}
	style.Fprintln(d.out, o.String())
	if d.bar != nil {
		_ = d.bar.Add(1)
	}
}

// start is called once the folder has been listed.
func (d *display) start(total int) {
	fmt.Fprintf(d.out, "🔎 Found %s\n", pluralize.NewClient().Pluralize("video file", total, true))
	if !d.progress || total == 0 {
		return
	}
	d.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(d.out),
		progressbar.OptionSetDescription("Probing"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionClearOnFinish(),
	)
}
