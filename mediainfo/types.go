package mediainfo

import (
	"errors"
	"time"
)

// Public variables (alphabetical)

// ErrNotInstalled is returned when a backend binary cannot be located.
var ErrNotInstalled = errors.New("mediainfo: tool not installed")

// ErrProbeFailed matches every error returned by a failed bitrate probe.
var ErrProbeFailed = errors.New("probe failed")

// Public types (alphabetical)

// FFprobeProber reads the container bitrate with ffprobe.
type FFprobeProber struct {
	// Path is the path to the ffprobe executable.
	Path string

	// Timeout bounds each invocation. Zero means GetDefaultTimeout.
	Timeout time.Duration
}

// Info describes a located inspection tool.
type Info struct {
	// Tool is the tool name, MediaInfo or FFprobe.
	Tool string

	// Installed is true if the executable was found and answered a version query.
	Installed bool

	// Path is the full path to the executable.
	Path string

	// Version is the version reported by the executable, or "unknown".
	Version string
}

// ProbeError reports why the bitrate of a file could not be determined.
// It matches ErrProbeFailed and the underlying cause with errors.Is.
type ProbeError struct {
	// Path is the probed file.
	Path string

	// Tool is the backend that was invoked.
	Tool string

	// Err is the underlying cause.
	Err error
}

// Prober reads the container bitrate with the MediaInfo CLI.
type Prober struct {
	// Path is the path to the mediainfo executable.
	Path string

	// Timeout bounds each invocation. Zero means GetDefaultTimeout.
	Timeout time.Duration
}

// Public methods (alphabetical)

// Error implements the error interface.
func (e *ProbeError) Error() string {
	return errorPrefix + e.Tool + " could not read bitrate of " + e.Path + ": " + e.Err.Error()
}

// Unwrap exposes both ErrProbeFailed and the underlying cause.
func (e *ProbeError) Unwrap() []error {
	return []error{ErrProbeFailed, e.Err}
}
