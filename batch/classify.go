package batch

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/torre76/smartcrf/crf"
)

// Classifier decides what happens to a probed file and performs the rename.
type Classifier struct {
	// Range is the acceptable bitrate window.
	Range TargetRange

	// Policy turns the raw estimate into the tagged value.
	Policy crf.Policy

	// Rename enables filesystem changes. When false the outcome describes
	// the rename that would have happened.
	Rename bool

	// TagSkipped renames in-range files to "<stem> skip.<ext>".
	TagSkipped bool

	// Logger receives diagnostics. Nil discards them.
	Logger *slog.Logger
}

// Classify handles one file whose bitrate is known and returns its outcome.
//
// Bitrates inside the inclusive range are skipped. Otherwise the CRF is
// estimated against Range.IdealKbps and the file is renamed within its
// directory to "<sanitized stem> crf <value>.<ext>". An existing destination
// is never overwritten: the file is skipped instead. Filesystem failures
// leave the file untouched and are reported as ERROR.
func (c *Classifier) Classify(file MediaFile, sample BitrateSample) Outcome {
	name := file.Name()
	out := Outcome{File: file, BitrateKbps: sample.Kbps}

	if c.Range.Contains(sample.Kbps) {
		return c.skipInRange(out)
	}

	value, err := c.Policy.Apply(float64(sample.Kbps), float64(c.Range.IdealKbps))
	if err != nil {
		c.logger().Error("crf estimate rejected", "file", file.Path, "bitrate_kbps", sample.Kbps, "error", err)
		out.Status = StatusError
		out.Err = err
		out.Message = fmt.Sprintf("%s | Bitrate: %d kbps | Failed to predict CRF: %v", name, sample.Kbps, err)
		return out
	}
	out.CRF = value
	out.HasCRF = true

	formatted := c.Policy.Format(value)
	newName := crf.TaggedName(name, crf.CRFTag(formatted))
	dest := filepath.Join(filepath.Dir(file.Path), newName)
	prefix := fmt.Sprintf("%s | Bitrate: %d kbps | Predicted CRF: %s", name, sample.Kbps, formatted)

	if dest == file.Path {
		out.Status = StatusSkip
		out.Message = prefix + " | Already tagged"
		return out
	}

	out.NewPath = dest
	if !c.Rename {
		out.Status = StatusProcessed
		out.Message = prefix + " | Would rename to " + newName
		return out
	}

	if err := c.move(file.Path, dest); err != nil {
		return c.renameFailed(out, prefix, newName, err)
	}

	c.logger().Debug("file renamed", "from", file.Path, "to", dest)
	out.Status = StatusProcessed
	out.Message = prefix + " | Renamed to " + newName
	return out
}

// ProbeFailed builds the FAILED outcome for a file whose bitrate could not be
// read. The file is not touched.
func ProbeFailed(file MediaFile, err error) Outcome {
	return Outcome{
		Status:  StatusFailed,
		File:    file,
		Err:     err,
		Message: fmt.Sprintf("%s | Failed to read bitrate: %v", file.Name(), err),
	}
}

func (c *Classifier) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.Logger
}

// move re-checks the source and renames it without replacing the destination.
func (c *Classifier) move(src, dest string) error {
	if _, err := os.Lstat(src); err != nil {
		return &FilesystemError{Op: "stat", Path: src, Err: err}
	}
	if err := renameNoReplace(src, dest); err != nil {
		if errors.Is(err, ErrCollision) {
			return err
		}
		return &FilesystemError{Op: "rename", Path: src, Err: err}
	}
	return nil
}

func (c *Classifier) renameFailed(out Outcome, prefix, newName string, err error) Outcome {
	out.Err = err
	if errors.Is(err, ErrCollision) {
		out.Status = StatusSkip
		out.Message = prefix + " | Target " + newName + " already exists"
		return out
	}
	c.logger().Warn("rename failed", "file", out.File.Path, "to", out.NewPath, "error", err)
	out.Status = StatusError
	out.NewPath = ""
	out.Message = fmt.Sprintf("%s | Failed to rename to %s: %v", prefix, newName, unwrapPathError(err))
	return out
}

func (c *Classifier) skipInRange(out Outcome) Outcome {
	name := out.File.Name()
	prefix := fmt.Sprintf("%s | Bitrate: %d kbps", name, out.BitrateKbps)
	out.Status = StatusSkip
	out.Message = prefix + " | Already in target range"
	if !c.TagSkipped {
		return out
	}

	newName := crf.TaggedName(name, crf.SkipTag)
	dest := filepath.Join(filepath.Dir(out.File.Path), newName)
	if dest == out.File.Path {
		return out
	}
	if !c.Rename {
		out.Message = prefix + " | Already in target range, would rename to " + newName
		return out
	}

	if err := c.move(out.File.Path, dest); err != nil {
		out.Err = err
		if errors.Is(err, ErrCollision) {
			out.Message = prefix + " | Already in target range, " + newName + " already exists"
			return out
		}
		c.logger().Warn("skip tag failed", "file", out.File.Path, "to", dest, "error", err)
		out.Status = StatusError
		out.Message = fmt.Sprintf("%s | Failed to rename to %s: %v", prefix, newName, unwrapPathError(err))
		return out
	}
	out.NewPath = dest
	out.Message = prefix + " | Already in target range, renamed to " + newName
	return out
}

// unwrapPathError reduces *os.PathError and *os.LinkError to their cause so
// messages do not repeat the paths already shown.
func unwrapPathError(err error) error {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return pathErr.Err
	}
	var linkErr *os.LinkError
	if errors.As(err, &linkErr) {
		return linkErr.Err
	}
	return err
}
