// Package mediainfo reads the overall bitrate of media files by shelling out
// to an external inspection tool. MediaInfo is the primary backend; ffprobe is
// available as an alternative when MediaInfo is not installed.
//
// Both backends return the bitrate in kbps and report failures as *ProbeError
// values that match ErrProbeFailed with errors.Is.
package mediainfo

import (
	"fmt"
	"time"
)

// Private constants (alphabetical)
const (
	// defaultTimeout bounds a single probe invocation.
	defaultTimeout = 30 * time.Second

	// errorPrefix is used as a prefix for all error messages from this package.
	errorPrefix = "mediainfo: "
)

// Public constants (alphabetical)
const (
	// FFprobe is the tool name of the ffprobe backend.
	FFprobe = "ffprobe"

	// MediaInfo is the tool name of the MediaInfo CLI backend.
	MediaInfo = "mediainfo"
)

// Public functions (alphabetical)

// FormatError creates an error message carrying the package prefix.
func FormatError(format string, args ...interface{}) error {
	return fmt.Errorf(errorPrefix+format, args...)
}

// GetDefaultTimeout returns the standard timeout for a single probe.
func GetDefaultTimeout() time.Duration {
	return defaultTimeout
}
