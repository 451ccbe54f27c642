package types

import (
	"errors"
	"fmt"
	"math/bits"
	"strings"
	"time"
)

// ErrFingerprintMismatch is returned when two fingerprints from different
// algorithms or bit widths are compared
var ErrFingerprintMismatch = errors.New("fingerprints are not comparable")

// ImageRef identifies a candidate image by the path it had at scan time
type ImageRef = string

// Fingerprint is a fixed-width perceptual code for one image
type Fingerprint struct {
	Algorithm string   `json:"algorithm"`
	Bits      []uint64 `json:"bits"`
}

// Width returns the number of bits in the fingerprint
func (f Fingerprint) Width() int {
	return len(f.Bits) * 64
}

// Distance returns the Hamming distance between two fingerprints.
// It is symmetric and Distance(f, f) is always 0.
func (f Fingerprint) Distance(other Fingerprint) (int, error) {
	if f.Algorithm != other.Algorithm || len(f.Bits) != len(other.Bits) {
		return 0, fmt.Errorf("%w: %s/%d vs %s/%d", ErrFingerprintMismatch,
			f.Algorithm, f.Width(), other.Algorithm, other.Width())
	}

	distance := 0
	for i := range f.Bits {
		distance += bits.OnesCount64(f.Bits[i] ^ other.Bits[i])
	}
	return distance, nil
}

// String renders the fingerprint as algorithm:hex
func (f Fingerprint) String() string {
	var hex strings.Builder
	for _, word := range f.Bits {
		fmt.Fprintf(&hex, "%016x", word)
	}
	return f.Algorithm + ":" + hex.String()
}

// IndexEntry is one hashed image in scan order
type IndexEntry struct {
	Path        ImageRef
	Fingerprint Fingerprint
}

// FingerprintIndex maps each successfully hashed image to its fingerprint.
// Entries keep scan order and are never modified after the index is built.
type FingerprintIndex struct {
	entries   []IndexEntry
	positions map[ImageRef]int
}

// NewFingerprintIndex builds an index from entries in scan order.
// Later duplicates of the same path are ignored.
func NewFingerprintIndex(entries []IndexEntry) *FingerprintIndex {
	idx := &FingerprintIndex{
		entries:   make([]IndexEntry, 0, len(entries)),
		positions: make(map[ImageRef]int, len(entries)),
	}
	for _, entry := range entries {
		if _, exists := idx.positions[entry.Path]; exists {
			continue
		}
		idx.positions[entry.Path] = len(idx.entries)
		idx.entries = append(idx.entries, entry)
	}
	return idx
}

// Len returns the number of indexed images
func (idx *FingerprintIndex) Len() int {
	return len(idx.entries)
}

// Entry returns the i-th entry in scan order
func (idx *FingerprintIndex) Entry(i int) IndexEntry {
	return idx.entries[i]
}

// Lookup returns the fingerprint of a path
func (idx *FingerprintIndex) Lookup(path ImageRef) (Fingerprint, bool) {
	pos, ok := idx.positions[path]
	if !ok {
		return Fingerprint{}, false
	}
	return idx.entries[pos].Fingerprint, true
}

// DuplicateGroup is a single-link cluster of at least two images.
// Members are in scan order; the first member is the representative.
type DuplicateGroup struct {
	Members []ImageRef
}

// Representative returns the first member in scan order
func (g DuplicateGroup) Representative() ImageRef {
	if len(g.Members) == 0 {
		return ""
	}
	return g.Members[0]
}

// Outcome is the resolution of one original/duplicate pair
type Outcome int

const (
	KeepBoth Outcome = iota
	DeleteFirst
	DeleteSecond
)

func (o Outcome) String() string {
	switch o {
	case DeleteFirst:
		return "delete-first"
	case DeleteSecond:
		return "delete-second"
	default:
		return "keep-both"
	}
}

// Decision is what a resolution policy returns for a pair
type Decision struct {
	Outcome Outcome
	Reason  string
}

// Target returns the path to act on, or "" when both are kept
func (d Decision) Target(original, duplicate ImageRef) ImageRef {
	switch d.Outcome {
	case DeleteFirst:
		return original
	case DeleteSecond:
		return duplicate
	default:
		return ""
	}
}

// ActionKind is the realized side effect of a removal
type ActionKind string

const (
	ActionRemoved     ActionKind = "removed"
	ActionQuarantined ActionKind = "quarantined"
	ActionAlreadyGone ActionKind = "already-gone"
	ActionDryRun      ActionKind = "would-remove"
	ActionFailed      ActionKind = "failed"
)

// ActionRecord holds what happened to one path
type ActionRecord struct {
	Path        ImageRef
	Kind        ActionKind
	Destination string
	Err         error
	At          time.Time
}

// Summary holds the end-of-run totals
type Summary struct {
	RunID         string
	Scanned       int
	Skipped       int
	RawImages     int
	Groups        int
	SimilarImages int
	PairsCompared int
	KeptPairs     int
	Actions       []ActionRecord
}

// Count returns how many actions of a kind were recorded
func (s Summary) Count(kind ActionKind) int {
	n := 0
	for _, action := range s.Actions {
		if action.Kind == kind {
			n++
		}
	}
	return n
}

// Failures returns the failed actions
func (s Summary) Failures() []ActionRecord {
	var failed []ActionRecord
	for _, action := range s.Actions {
		if action.Kind == ActionFailed {
			failed = append(failed, action)
		}
	}
	return failed
}
