package scanner

import (
	"context"

	"imagededup/imageprocessor"
	"imagededup/logging"
	"imagededup/types"

	"golang.org/x/sync/errgroup"
)

// BuildIndex fingerprints every path and returns the completed, immutable
// index. Hashing runs in parallel, but results are placed by scan position,
// so the index order never depends on goroutine scheduling.
// A cancelled context stops dispatching new work and returns ctx.Err().
func BuildIndex(ctx context.Context, paths []string, fp Fingerprinter, options ScanOptions) (*types.FingerprintIndex, IndexStats, error) {
	stats := IndexStats{Scanned: len(paths)}
	fileStats := countFilesToProcess(paths)
	stats.RawSeen = fileStats.rawFiles

	workers := options.MaxWorkers
	if workers < 1 {
		workers = 1
	}

	results := make([]ProcessImageResult, len(paths))
	resultsChan := make(chan ProcessImageResult, workers)
	tracker := NewProgressTracker(fileStats, resultsChan, options.ShowProgress)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(workers)

	for i, path := range paths {
		if groupCtx.Err() != nil {
			break
		}
		i, path := i, path
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			result := processImage(fp, i, path)
			results[i] = result
			resultsChan <- result
			return nil
		})
	}

	err := group.Wait()
	close(resultsChan)
	tracker.Wait()

	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return nil, stats, err
	}

	entries := make([]types.IndexEntry, 0, len(paths))
	for _, result := range results {
		if !result.Success {
			stats.Skipped++
			continue
		}
		entries = append(entries, types.IndexEntry{Path: result.Path, Fingerprint: result.Fingerprint})
	}

	index := types.NewFingerprintIndex(entries)
	stats.Hashed = index.Len()
	logging.LogInfo("Indexed %d of %d images (%d skipped)", stats.Hashed, stats.Scanned, stats.Skipped)
	return index, stats, nil
}

// processImage fingerprints a single image
func processImage(fp Fingerprinter, position int, path string) ProcessImageResult {
	fingerprint, ok := fp.Fingerprint(path)
	return ProcessImageResult{
		Position:    position,
		Path:        path,
		Success:     ok,
		IsRaw:       imageprocessor.IsRawFormat(path),
		Fingerprint: fingerprint,
	}
}
