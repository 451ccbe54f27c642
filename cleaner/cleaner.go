// Package cleaner walks duplicate groups pair by pair, asks the resolution
// policy about each pair and hands removals to the executor.
//
// A Session is single-threaded. Completed actions are never rolled back: a
// cancelled session leaves every removal it already made in place.
package cleaner

import (
	"context"
	"errors"
	"io/fs"

	"imagededup/logging"
	"imagededup/policy"
	"imagededup/types"

	"github.com/spf13/afero"
)

// Remover applies one removal and reports what actually happened
type Remover interface {
	Remove(path types.ImageRef) types.ActionRecord
}

// Session owns the processed and deleted sets for one run
type Session struct {
	fs      afero.Fs
	index   *types.FingerprintIndex
	policy  policy.Policy
	remover Remover

	processed map[types.ImageRef]bool
	deleted   map[types.ImageRef]bool

	// OnPair is called after every resolved pair
	OnPair func()
}

// NewSession creates a session. index supplies the distances written to the
// log and may be nil.
func NewSession(fs afero.Fs, index *types.FingerprintIndex, p policy.Policy, remover Remover) *Session {
	return &Session{
		fs:        fs,
		index:     index,
		policy:    p,
		remover:   remover,
		processed: make(map[types.ImageRef]bool),
		deleted:   make(map[types.ImageRef]bool),
	}
}

// Run resolves every group in order. It stops between pairs once ctx is
// done and returns the totals gathered so far together with ctx.Err().
func (s *Session) Run(ctx context.Context, groups []types.DuplicateGroup) (types.Summary, error) {
	summary := types.Summary{Groups: len(groups)}
	for _, group := range groups {
		summary.SimilarImages += len(group.Members)
	}

	for _, group := range groups {
		if err := s.resolveGroup(ctx, group, &summary); err != nil {
			return summary, err
		}
	}
	return summary, nil
}

func (s *Session) resolveGroup(ctx context.Context, group types.DuplicateGroup, summary *types.Summary) error {
	logging.DebugLog("Resolving group of %d images starting at %s", len(group.Members), group.Representative())
	anchor := ""
	for _, member := range group.Members {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.deleted[member] || member == anchor {
			continue
		}

		if anchor == "" {
			if s.processed[member] {
				continue
			}
			if s.missing(member) {
				s.record(member, summary)
				continue
			}
			anchor = member
			continue
		}

		if s.processed[member] {
			continue
		}
		anchor = s.resolvePair(ctx, anchor, member, summary)
		if s.OnPair != nil {
			s.OnPair()
		}
	}
	return nil
}

// resolvePair handles one anchor/duplicate pair and returns the anchor for
// the rest of the group, or "" when no usable anchor is left
func (s *Session) resolvePair(ctx context.Context, anchor, duplicate types.ImageRef, summary *types.Summary) types.ImageRef {
	summary.PairsCompared++
	s.processed[anchor] = true
	s.processed[duplicate] = true

	if s.missing(anchor) {
		s.record(anchor, summary)
		if s.missing(duplicate) {
			s.record(duplicate, summary)
			return ""
		}
		return duplicate
	}
	if s.missing(duplicate) {
		s.record(duplicate, summary)
		return anchor
	}

	logging.LogSimilar(anchor, duplicate, s.distance(anchor, duplicate))

	decision := s.policy.Decide(anchor, duplicate)
	target := decision.Target(anchor, duplicate)
	if target == "" && ctx.Err() != nil {
		// the run was cancelled while the pair was being decided
		logging.LogInfo("UNDECIDED %s and %s: %s", anchor, duplicate, decision.Reason)
		return anchor
	}
	if target == "" {
		logging.LogInfo("KEPT %s and %s (%s)", anchor, duplicate, decision.Reason)
		summary.KeptPairs++
		return anchor
	}

	logging.DebugLog("%s %s: %s", decision.Outcome, target, decision.Reason)
	record := s.record(target, summary)
	if record.Kind == types.ActionFailed || target == duplicate {
		return anchor
	}
	return duplicate
}

// record asks the remover to act on path and tracks the result
func (s *Session) record(path types.ImageRef, summary *types.Summary) types.ActionRecord {
	record := s.remover.Remove(path)
	summary.Actions = append(summary.Actions, record)
	if record.Kind != types.ActionFailed {
		s.deleted[path] = true
	}
	return record
}

func (s *Session) missing(path types.ImageRef) bool {
	_, err := s.fs.Stat(path)
	return errors.Is(err, fs.ErrNotExist)
}

func (s *Session) distance(a, b types.ImageRef) int {
	if s.index == nil {
		return -1
	}
	fa, okA := s.index.Lookup(a)
	fb, okB := s.index.Lookup(b)
	if !okA || !okB {
		return -1
	}
	d, err := fa.Distance(fb)
	if err != nil {
		return -1
	}
	return d
}
