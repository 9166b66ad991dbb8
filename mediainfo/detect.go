package mediainfo

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
)

// Private variables (alphabetical)

// versionRegex extracts the numeric version from either "MediaInfoLib - v24.01"
// or "ffprobe version n6.1.1-..." output.
var versionRegex = regexp.MustCompile(`(?i)(?:version\s+n?|\bv)(\d+(?:\.\d+)+)`)

// Private functions (alphabetical)

// commonInstallPaths returns the usual install locations of tool for the
// current operating system.
func commonInstallPaths(tool string) []string {
	execName := executableName(tool)

	var searchPaths []string
	switch runtime.GOOS {
	case "windows":
		dirName := "MediaInfo"
		if tool == FFprobe {
			dirName = filepath.Join("FFmpeg", "bin")
		}
		searchPaths = []string{
			filepath.Join("C:\\", "Program Files", dirName, execName),
			filepath.Join("C:\\", "Program Files (x86)", dirName, execName),
		}
		if programFiles := os.Getenv("ProgramFiles"); programFiles != "" {
			searchPaths = append(searchPaths, filepath.Join(programFiles, dirName, execName))
		}
	case "darwin":
		searchPaths = []string{
			filepath.Join("/usr", "local", "bin", execName),
			filepath.Join("/opt", "homebrew", "bin", execName),
			filepath.Join("/opt", "local", "bin", execName),
		}
	default:
		searchPaths = []string{
			filepath.Join("/usr", "bin", execName),
			filepath.Join("/usr", "local", "bin", execName),
			filepath.Join("/snap", "bin", execName),
		}
	}
	return searchPaths
}

func executableName(tool string) string {
	if runtime.GOOS == "windows" {
		return tool + ".exe"
	}
	return tool
}

// findExecutable resolves tool through explicit, then PATH, then the common
// install locations.
func findExecutable(tool, explicit string) (string, bool) {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		if path, err := exec.LookPath(explicit); err == nil {
			return path, true
		}
		return "", false
	}

	if path, err := exec.LookPath(tool); err == nil {
		return path, true
	}

	for _, path := range commonInstallPaths(tool) {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

// parseVersion returns the first version number found in output, or "unknown".
func parseVersion(output string) string {
	matches := versionRegex.FindStringSubmatch(output)
	if len(matches) >= 2 {
		return matches[1]
	}
	return "unknown"
}

func versionArgs(tool string) []string {
	if tool == FFprobe {
		return []string{"-version"}
	}
	return []string{"--Version"}
}

// Public functions (alphabetical)

// Locate finds the executable for tool (MediaInfo or FFprobe) and queries its
// version. A non-empty explicit path or command name takes precedence over the
// search. When the tool cannot be found the returned Info has Installed set to
// false and the error wraps ErrNotInstalled.
func Locate(ctx context.Context, tool, explicit string) (*Info, error) {
	if tool != MediaInfo && tool != FFprobe {
		return nil, FormatError("unknown tool %q", tool)
	}

	path, found := findExecutable(tool, explicit)
	if !found {
		if explicit != "" {
			return &Info{Tool: tool}, fmt.Errorf("%w: %s not found at %s", ErrNotInstalled, tool, explicit)
		}
		return &Info{Tool: tool}, fmt.Errorf("%w: %s not found in PATH", ErrNotInstalled, tool)
	}

	ctx, cancel := context.WithTimeout(ctx, GetDefaultTimeout())
	defer cancel()

	output, err := exec.CommandContext(ctx, path, versionArgs(tool)...).CombinedOutput()
	if err != nil {
		return &Info{Tool: tool, Path: path}, FormatError("error getting %s version: %w", tool, err)
	}

	return &Info{
		Tool:      tool,
		Installed: true,
		Path:      path,
		Version:   parseVersion(string(output)),
	}, nil
}
