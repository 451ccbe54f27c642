// Package executor applies removal decisions to the filesystem.
//
// Actions are immediate and not reversible: a run interrupted half way
// leaves every completed removal or move in place.
package executor

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"imagededup/logging"
	"imagededup/types"

	"github.com/spf13/afero"
)

// ErrQuarantineIsSource is returned when the quarantine target would be the
// file being moved
var ErrQuarantineIsSource = errors.New("file is already inside the quarantine folder")

// maxCollisionSuffix bounds the name_N search in the quarantine folder
const maxCollisionSuffix = 10000

// Options configures the executor
type Options struct {
	// QuarantineDir, when set, receives removed files instead of deleting them
	QuarantineDir string
	// DryRun records decisions without touching the filesystem
	DryRun bool
}

// Executor removes or quarantines files and logs every action
type Executor struct {
	fs      afero.Fs
	options Options
	now     func() time.Time
}

// New creates an executor over fs
func New(fs afero.Fs, options Options) *Executor {
	return &Executor{fs: fs, options: options, now: time.Now}
}

// Remove applies the configured action to path. A missing path is treated as
// already satisfied. Failures are returned in the record, not as an error,
// so the caller can continue with other groups.
func (e *Executor) Remove(path string) types.ActionRecord {
	record := e.apply(path)
	record.Path = path
	record.At = e.now()

	switch record.Kind {
	case types.ActionRemoved:
		logging.LogInfo("DELETED %s", path)
	case types.ActionQuarantined:
		logging.LogInfo("MOVED %s to %s", path, record.Destination)
	case types.ActionAlreadyGone:
		logging.LogInfo("GONE %s was already removed", path)
	case types.ActionDryRun:
		logging.LogInfo("DRY-RUN would remove %s", path)
	case types.ActionFailed:
		logging.LogError("FAILED %s: %v", path, record.Err)
	}
	return record
}

func (e *Executor) apply(path string) types.ActionRecord {
	if _, err := e.fs.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return types.ActionRecord{Kind: types.ActionAlreadyGone}
		}
		return types.ActionRecord{Kind: types.ActionFailed, Err: fmt.Errorf("cannot stat: %w", err)}
	}

	if e.options.DryRun {
		return types.ActionRecord{Kind: types.ActionDryRun, Destination: e.options.QuarantineDir}
	}

	if e.options.QuarantineDir == "" {
		if err := e.fs.Remove(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return types.ActionRecord{Kind: types.ActionAlreadyGone}
			}
			return types.ActionRecord{Kind: types.ActionFailed, Err: fmt.Errorf("cannot remove: %w", err)}
		}
		return types.ActionRecord{Kind: types.ActionRemoved}
	}

	destination, err := e.quarantine(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if _, statErr := e.fs.Stat(path); errors.Is(statErr, fs.ErrNotExist) {
				return types.ActionRecord{Kind: types.ActionAlreadyGone}
			}
		}
		return types.ActionRecord{Kind: types.ActionFailed, Destination: destination, Err: err}
	}
	return types.ActionRecord{Kind: types.ActionQuarantined, Destination: destination}
}

// quarantine moves path into the quarantine folder under its base name,
// picking name_1.ext, name_2.ext, ... when the name is taken
func (e *Executor) quarantine(path string) (string, error) {
	dir := e.options.QuarantineDir
	if err := e.fs.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("cannot create quarantine folder %s: %w", dir, err)
	}

	if sameDir(filepath.Dir(path), dir) {
		return "", ErrQuarantineIsSource
	}

	destination, err := e.freeName(dir, filepath.Base(path))
	if err != nil {
		return "", err
	}

	if err := e.fs.Rename(path, destination); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return destination, err
		}
		// Rename fails across devices; copy then remove instead
		if copyErr := e.copyThenRemove(path, destination); copyErr != nil {
			return destination, fmt.Errorf("cannot move to %s: %w (rename: %v)", destination, copyErr, err)
		}
	}
	return destination, nil
}

func (e *Executor) freeName(dir, base string) (string, error) {
	candidate := filepath.Join(dir, base)
	if _, err := e.fs.Stat(candidate); errors.Is(err, fs.ErrNotExist) {
		return candidate, nil
	}

	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	for i := 1; i <= maxCollisionSuffix; i++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, i, ext))
		if _, err := e.fs.Stat(candidate); errors.Is(err, fs.ErrNotExist) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no free name for %s in %s", base, dir)
}

func (e *Executor) copyThenRemove(src, dst string) error {
	in, err := e.fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := e.fs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		e.fs.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		e.fs.Remove(dst)
		return err
	}
	if err := e.fs.Remove(src); err != nil {
		// the copy must not outlive a source that stays in place
		e.fs.Remove(dst)
		return err
	}
	return nil
}

func sameDir(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}
