package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"imagededup/imageprocessor"
	"imagededup/logging"

	"github.com/spf13/afero"
)

// ListImageFiles walks root recursively and returns candidate images in
// lexical walk order, which is the scan order for the whole run.
// Unreadable subdirectories are logged and skipped; only a failure on the
// root itself is returned.
func ListImageFiles(fs afero.Fs, root string) ([]string, error) {
	info, err := fs.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("cannot access folder %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", root)
	}

	var files []string
	err = afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			logging.LogWarning("Error accessing path %s: %v", path, err)
			return nil
		}
		if info.Mode().IsRegular() && imageprocessor.IsImageFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error walking %s: %w", root, err)
	}
	return files, nil
}

// ExcludeFolder drops every path inside dir, so a quarantine folder under
// the scanned root is never rescanned
func ExcludeFolder(paths []string, dir string) []string {
	if dir == "" {
		return paths
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return paths
	}

	kept := paths[:0:0]
	for _, path := range paths {
		absPath, err := filepath.Abs(path)
		if err == nil {
			rel, err := filepath.Rel(absDir, absPath)
			if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
				logging.DebugLog("SKIP %s: inside quarantine folder", path)
				continue
			}
		}
		kept = append(kept, path)
	}
	return kept
}

// countFilesToProcess classifies the candidate list
func countFilesToProcess(paths []string) FileStats {
	stats := FileStats{totalFiles: len(paths)}
	for _, path := range paths {
		if imageprocessor.IsRawFormat(path) {
			stats.rawFiles++
		}
	}
	return stats
}
