package utils

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/afero"
)

var (
	// ErrInvalidThreshold is returned for a threshold that is not a
	// non-negative integer
	ErrInvalidThreshold = errors.New("threshold must be a non-negative integer")
	// ErrRootNotFound is returned when the folder to scan does not exist
	ErrRootNotFound = errors.New("folder path does not exist")
	// ErrRootNotDir is returned when the folder to scan is a file
	ErrRootNotDir = errors.New("path is not a directory")
)

// DefaultThreshold is the distance below which two images are duplicates
const DefaultThreshold = 10

// ValidateThreshold rejects negative thresholds
func ValidateThreshold(threshold int) error {
	if threshold < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidThreshold, threshold)
	}
	return nil
}

// ResolveKeepLarger picks the automatic survivor rule: keep-smaller only
// when it was asked for and keep-larger was not
func ResolveKeepLarger(keepLarger, keepSmaller bool) bool {
	return !(keepSmaller && !keepLarger)
}

// ValidateRoot checks that the folder to scan exists and is a directory
func ValidateRoot(fsys afero.Fs, root string) error {
	info, err := fsys.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrRootNotFound, root)
		}
		return fmt.Errorf("cannot access folder path %s: %w", root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrRootNotDir, root)
	}
	return nil
}

// ModeName describes the resolution mode for the log and report
func ModeName(interactive, keepLarger bool) string {
	switch {
	case interactive:
		return "interactive"
	case keepLarger:
		return "auto-keep-larger"
	default:
		return "auto-keep-smaller"
	}
}
