// Package batch classifies and tags the video files of a directory.
//
// A Runner lists the eligible files of one directory, probes each file's
// bitrate, and hands the bitrate to a Classifier which either leaves the file
// alone (SKIP) or renames it to carry the suggested CRF (PROCESSED). Every file
// yields exactly one Outcome, in directory order. Failures never abort the
// batch: a failed probe is reported as FAILED and a failed rename as ERROR.
package batch

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Status is the stable tag attached to each Outcome.
type Status string

// Public constants (alphabetical)
const (
	// StatusError reports a rename blocked by the filesystem.
	StatusError Status = "ERROR"

	// StatusFailed reports a file whose bitrate could not be read.
	StatusFailed Status = "FAILED"

	// StatusProcessed reports a file tagged with its suggested CRF.
	StatusProcessed Status = "PROCESSED"

	// StatusSkip reports a file left as is, either in range or because the
	// destination name was taken.
	StatusSkip Status = "SKIP"
)

// Public variables (alphabetical)

// DefaultExtensions is the allowlist of video extensions, without dots.
var DefaultExtensions = []string{
	"mp4", "mkv", "avi", "mov", "flv", "wmv",
	"webm", "ts", "m4v", "3gp", "mpeg", "mpg",
}

// ErrCollision is the reason attached to a SKIP whose destination exists.
var ErrCollision = errors.New("destination already exists")

// ErrLocked is returned when another run holds the directory.
var ErrLocked = errors.New("directory is being processed by another run")

// ErrNothingToExport is returned when an export filter matches no outcome.
var ErrNothingToExport = errors.New("no outcomes match the export filter")

// Statuses lists every status in display order.
var Statuses = []Status{StatusProcessed, StatusSkip, StatusError, StatusFailed}

// Public types (alphabetical)

// BitrateSample is a bitrate measured for one file during one run.
type BitrateSample struct {
	Kbps int64
}

// FilesystemError reports a filesystem operation that failed for a file.
type FilesystemError struct {
	Op   string
	Path string
	Err  error
}

// MediaFile is a candidate video file. Its identity is its path.
type MediaFile struct {
	// Path is the absolute path of the file.
	Path string

	// Extension is the lowercased extension without the leading dot.
	Extension string
}

// Outcome is the immutable result of handling one file.
type Outcome struct {
	Status  Status
	File    MediaFile
	Message string

	// BitrateKbps is the probed bitrate; zero for FAILED outcomes.
	BitrateKbps int64

	// CRF is the suggested value and HasCRF reports whether one was computed.
	CRF    float64
	HasCRF bool

	// NewPath is the destination of a rename, set for PROCESSED outcomes
	// and for skips caused by a collision.
	NewPath string

	// Err is the underlying failure for ERROR and FAILED outcomes, or
	// ErrCollision for collision skips.
	Err error
}

// TargetRange is the acceptable bitrate window. IdealKbps is the estimator's
// reference bitrate.
type TargetRange struct {
	MinKbps   int64
	MaxKbps   int64
	IdealKbps int64
}

// Public functions (alphabetical)

// NewMediaFile builds a MediaFile for path.
func NewMediaFile(path string) MediaFile {
	return MediaFile{
		Path:      path,
		Extension: normalizeExtension(filepath.Ext(path)),
	}
}

// NewTargetRange validates a range. A zero ideal defaults to the midpoint of
// min and max, rounded down.
func NewTargetRange(minKbps, maxKbps, idealKbps int64) (TargetRange, error) {
	r := TargetRange{MinKbps: minKbps, MaxKbps: maxKbps, IdealKbps: idealKbps}
	if r.IdealKbps == 0 {
		r.IdealKbps = (minKbps + maxKbps) / 2
	}
	if err := r.Validate(); err != nil {
		return TargetRange{}, err
	}
	return r, nil
}

// ParseStatus converts a case-insensitive status name.
func ParseStatus(s string) (Status, error) {
	candidate := Status(strings.ToUpper(strings.TrimSpace(s)))
	for _, status := range Statuses {
		if candidate == status {
			return status, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// Public methods (alphabetical)

// Contains reports whether kbps lies in [MinKbps, MaxKbps].
func (r TargetRange) Contains(kbps int64) bool {
	return kbps >= r.MinKbps && kbps <= r.MaxKbps
}

// Error implements the error interface.
func (e *FilesystemError) Error() string {
	return e.Op + " " + e.Path + ": " + e.Err.Error()
}

// Name returns the base name of the file.
func (f MediaFile) Name() string {
	return filepath.Base(f.Path)
}

// String renders the outcome as a log line, "[STATUS] message".
func (o Outcome) String() string {
	return "[" + string(o.Status) + "] " + o.Message
}

// String renders the range as "min-max kbps (ideal N)".
func (r TargetRange) String() string {
	return fmt.Sprintf("%d-%d kbps (ideal %d)", r.MinKbps, r.MaxKbps, r.IdealKbps)
}

// Unwrap returns the underlying error.
func (e *FilesystemError) Unwrap() error {
	return e.Err
}

// Validate checks 0 <= min <= max and ideal > 0.
func (r TargetRange) Validate() error {
	if r.MinKbps < 0 || r.MaxKbps < 0 {
		return fmt.Errorf("target range: bitrates must not be negative (min %d, max %d)", r.MinKbps, r.MaxKbps)
	}
	if r.MinKbps > r.MaxKbps {
		return fmt.Errorf("target range: min %d greater than max %d", r.MinKbps, r.MaxKbps)
	}
	if r.IdealKbps <= 0 {
		return fmt.Errorf("target range: ideal bitrate %d must be positive", r.IdealKbps)
	}
	return nil
}

// Private functions (alphabetical)

func normalizeExtension(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}
