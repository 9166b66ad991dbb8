package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Scan lists the regular files directly inside dir whose extension, compared
// case-insensitively, is in extensions. Subdirectories are not descended
// into. Paths are absolute and sorted by name so the order is stable for a
// given listing. A nil or empty extensions slice selects DefaultExtensions.
func Scan(dir string, extensions []string) ([]MediaFile, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve directory: %w", err)
	}
	entries, err := os.ReadDir(absDir)
	if err != nil {
		return nil, fmt.Errorf("list directory %s: %w", absDir, err)
	}

	allowed := allowlist(extensions)
	var files []MediaFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		file := NewMediaFile(filepath.Join(absDir, entry.Name()))
		if !allowed[file.Extension] {
			continue
		}
		if !entry.Type().IsRegular() {
			info, err := os.Stat(file.Path)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
		}
		files = append(files, file)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// allowlist builds the extension lookup set.
func allowlist(extensions []string) map[string]bool {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	allowed := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		if ext = normalizeExtension(ext); ext != "" {
			allowed[ext] = true
		}
	}
	return allowed
}
