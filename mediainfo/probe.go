package mediainfo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Private constants (alphabetical)

// waitDelay bounds how long output pipes are drained after the tool is killed.
const waitDelay = 2 * time.Second

// Private variables (alphabetical)

// errBelowOneKbps is reported for files whose bitrate rounds down to zero kbps.
var errBelowOneKbps = errors.New("bitrate below 1 kbps")

// errNoBitrate is reported when the tool printed nothing usable.
var errNoBitrate = errors.New("no bitrate reported")

// Private functions (alphabetical)

// checkReadable rejects paths that are missing or not regular files before an
// external process is spawned for them.
func checkReadable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	return nil
}

// parseBitsPerSecond converts the tool output to kbps.
// MediaInfo prints an integer in bits per second; some builds print a
// decimal value. ffprobe prints "N/A" when the container carries no bitrate.
func parseBitsPerSecond(output string) (int64, error) {
	value := strings.TrimSpace(output)
	if idx := strings.IndexAny(value, "\r\n"); idx >= 0 {
		value = strings.TrimSpace(value[:idx])
	}
	if value == "" || strings.EqualFold(value, "N/A") {
		return 0, errNoBitrate
	}

	bps, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(value, 64)
		if ferr != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, fmt.Errorf("unexpected output %q", value)
		}
		bps = int64(f)
	}

	kbps := bps / 1000
	if kbps <= 0 {
		return 0, errBelowOneKbps
	}
	return kbps, nil
}

// runProbe executes the tool with args and parses its output. The file path
// is resolved to an absolute path and checked before the process is spawned.
func runProbe(ctx context.Context, tool, binary string, timeout time.Duration, args []string, path string) (int64, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return 0, &ProbeError{Path: path, Tool: tool, Err: err}
	}
	if err := checkReadable(absPath); err != nil {
		return 0, &ProbeError{Path: absPath, Tool: tool, Err: err}
	}

	if timeout <= 0 {
		timeout = GetDefaultTimeout()
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, binary, append(args, absPath)...)
	cmd.WaitDelay = waitDelay
	output, err := cmd.Output()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, &ProbeError{Path: absPath, Tool: tool, Err: ctxErr}
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			err = fmt.Errorf("%w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return 0, &ProbeError{Path: absPath, Tool: tool, Err: err}
	}

	kbps, err := parseBitsPerSecond(string(output))
	if err != nil {
		return 0, &ProbeError{Path: absPath, Tool: tool, Err: err}
	}
	return kbps, nil
}

// Public functions (alphabetical)

// NewFFprobeProber creates an FFprobeProber from a located ffprobe.
func NewFFprobeProber(info *Info, timeout time.Duration) (*FFprobeProber, error) {
	if info == nil || !info.Installed || info.Tool != FFprobe {
		return nil, FormatError("ffprobe not available")
	}
	return &FFprobeProber{Path: info.Path, Timeout: timeout}, nil
}

// NewProber creates a Prober from a located MediaInfo CLI.
func NewProber(info *Info, timeout time.Duration) (*Prober, error) {
	if info == nil || !info.Installed || info.Tool != MediaInfo {
		return nil, FormatError("MediaInfo is not installed")
	}
	return &Prober{Path: info.Path, Timeout: timeout}, nil
}

// Public methods (alphabetical)

// BitrateKbps runs "ffprobe -show_entries format=bit_rate" on path.
func (p *FFprobeProber) BitrateKbps(ctx context.Context, path string) (int64, error) {
	return runProbe(ctx, FFprobe, p.Path, p.Timeout, []string{
		"-v", "error",
		"-show_entries", "format=bit_rate",
		"-of", "default=noprint_wrappers=1:nokey=1",
		"--",
	}, path)
}

// BitrateKbps runs "mediainfo --Inform=General;%BitRate%" on path and returns
// the overall bitrate in kbps (bits per second divided by 1000, truncated).
//
// Missing or unreadable files, tool failures, timeouts and empty or
// non-numeric output are returned as *ProbeError.
func (p *Prober) BitrateKbps(ctx context.Context, path string) (int64, error) {
	return runProbe(ctx, MediaInfo, p.Path, p.Timeout, []string{
		"--Inform=General;%BitRate%",
	}, path)
}
