// Package policy decides, for an original/duplicate pair, which path (if
// any) should be removed.
package policy

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"imagededup/logging"
	"imagededup/types"

	"github.com/spf13/afero"
)

// Policy resolves one pair. It never fails; uncertainty resolves to KeepBoth.
type Policy interface {
	Name() string
	Decide(original, duplicate types.ImageRef) types.Decision
}

// DecisionProvider supplies a raw answer for a pair, typically from a human.
// "1" means delete the original, "2" means delete the duplicate; anything
// else keeps both.
type DecisionProvider interface {
	Ask(original, duplicate types.ImageRef) (string, error)
}

// DecisionFunc adapts a function to DecisionProvider
type DecisionFunc func(original, duplicate types.ImageRef) (string, error)

// Ask calls f
func (f DecisionFunc) Ask(original, duplicate types.ImageRef) (string, error) {
	return f(original, duplicate)
}

// Interactive delegates every pair to a DecisionProvider
type Interactive struct {
	provider DecisionProvider
}

// NewInteractive creates an interactive policy
func NewInteractive(provider DecisionProvider) *Interactive {
	return &Interactive{provider: provider}
}

func (p *Interactive) Name() string {
	return "interactive"
}

// Decide asks the provider and parses its answer
func (p *Interactive) Decide(original, duplicate types.ImageRef) types.Decision {
	answer, err := p.provider.Ask(original, duplicate)
	if err != nil {
		logging.LogWarning("no decision for %s and %s: %v", original, duplicate, err)
		return types.Decision{Outcome: types.KeepBoth, Reason: fmt.Sprintf("no decision: %v", err)}
	}
	return ParseAnswer(answer)
}

// ParseAnswer maps a raw answer to a decision; only "1" and "2" delete
func ParseAnswer(answer string) types.Decision {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "1":
		return types.Decision{Outcome: types.DeleteFirst, Reason: "user chose to delete the original"}
	case "2":
		return types.Decision{Outcome: types.DeleteSecond, Reason: "user chose to delete the duplicate"}
	default:
		return types.Decision{Outcome: types.KeepBoth, Reason: "user kept both"}
	}
}

// Automatic removes one image of each pair by file size
type Automatic struct {
	fs         afero.Fs
	keepLarger bool
}

// NewAutomatic creates a size-based policy reading sizes from fs
func NewAutomatic(fs afero.Fs, keepLarger bool) *Automatic {
	return &Automatic{fs: fs, keepLarger: keepLarger}
}

func (p *Automatic) Name() string {
	if p.keepLarger {
		return "auto-keep-larger"
	}
	return "auto-keep-smaller"
}

// KeepLarger reports the survivor rule
func (p *Automatic) KeepLarger() bool {
	return p.keepLarger
}

// Decide compares file sizes. A path already missing on disk is named as
// the target, so the surviving file is never touched and the executor
// records the missing one as already gone.
func (p *Automatic) Decide(original, duplicate types.ImageRef) types.Decision {
	sizeOriginal, err := p.size(original)
	if errors.Is(err, fs.ErrNotExist) {
		logging.LogWarning("Original file %s not found.", original)
		return types.Decision{Outcome: types.DeleteFirst, Reason: "original already gone"}
	}
	if err != nil {
		return keepOnError(original, err)
	}

	sizeDuplicate, err := p.size(duplicate)
	if errors.Is(err, fs.ErrNotExist) {
		logging.LogWarning("Duplicate file %s not found.", duplicate)
		return types.Decision{Outcome: types.DeleteSecond, Reason: "duplicate already gone"}
	}
	if err != nil {
		return keepOnError(duplicate, err)
	}

	reason := fmt.Sprintf("sizes %d vs %d bytes", sizeOriginal, sizeDuplicate)
	if p.keepLarger {
		if sizeOriginal >= sizeDuplicate {
			return types.Decision{Outcome: types.DeleteSecond, Reason: "keep larger, " + reason}
		}
		return types.Decision{Outcome: types.DeleteFirst, Reason: "keep larger, " + reason}
	}
	if sizeOriginal >= sizeDuplicate {
		return types.Decision{Outcome: types.DeleteFirst, Reason: "keep smaller, " + reason}
	}
	return types.Decision{Outcome: types.DeleteSecond, Reason: "keep smaller, " + reason}
}

func (p *Automatic) size(path string) (int64, error) {
	info, err := p.fs.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func keepOnError(path string, err error) types.Decision {
	logging.LogError("cannot stat %s, keeping both: %v", path, err)
	return types.Decision{Outcome: types.KeepBoth, Reason: fmt.Sprintf("cannot stat %s: %v", path, err)}
}
