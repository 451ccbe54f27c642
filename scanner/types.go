package scanner

import (
	"imagededup/types"
)

// ScanOptions defines the options for scanning and hashing
type ScanOptions struct {
	MaxWorkers   int  // Upper bound on concurrent decodes
	ShowProgress bool // Render a progress bar on stderr
}

// Fingerprinter computes a fingerprint or reports the image as absent
type Fingerprinter interface {
	Fingerprint(path string) (types.Fingerprint, bool)
}

// ProcessImageResult holds the result of hashing one image
type ProcessImageResult struct {
	Position    int
	Path        string
	Success     bool
	IsRaw       bool
	Fingerprint types.Fingerprint
}

// FileStats tracks information about files to be processed
type FileStats struct {
	totalFiles int
	rawFiles   int
}

// IndexStats summarizes an index build
type IndexStats struct {
	Scanned int // candidate files found
	Hashed  int // files present in the index
	Skipped int // files that failed to decode or hash
	RawSeen int
}
