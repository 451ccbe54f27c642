package scanner

import (
	"os"
	"sync"

	"imagededup/logging"

	"github.com/schollz/progressbar/v3"
)

// NewProgressBar returns a stderr progress bar, or a silent one when disabled
func NewProgressBar(total int, description string, enabled bool) *progressbar.ProgressBar {
	if !enabled {
		return progressbar.DefaultSilent(int64(total), description)
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionClearOnFinish(),
	)
}

// ProgressTracker tracks progress of the hashing stage
type ProgressTracker struct {
	processed    int
	errors       int
	rawProcessed int
	rawErrors    int
	totalFiles   int
	rawFiles     int
	bar          *progressbar.ProgressBar
	done         chan struct{}
	mu           sync.Mutex
}

// NewProgressTracker starts consuming results until resultsChan is closed
func NewProgressTracker(stats FileStats, resultsChan <-chan ProcessImageResult, showProgress bool) *ProgressTracker {
	tracker := &ProgressTracker{
		totalFiles: stats.totalFiles,
		rawFiles:   stats.rawFiles,
		bar:        NewProgressBar(stats.totalFiles, "Hashing images", showProgress),
		done:       make(chan struct{}),
	}

	go tracker.processResults(resultsChan)

	return tracker
}

// processResults updates the tracker state based on processing results
func (p *ProgressTracker) processResults(resultsChan <-chan ProcessImageResult) {
	defer close(p.done)

	for result := range resultsChan {
		p.mu.Lock()
		p.processed++
		if result.IsRaw {
			p.rawProcessed++
		}
		if !result.Success {
			p.errors++
			if result.IsRaw {
				p.rawErrors++
			}
		}
		p.mu.Unlock()

		p.bar.Add(1)
	}
}

// Wait blocks until the results channel is drained, then finishes the bar
func (p *ProgressTracker) Wait() {
	<-p.done
	p.bar.Finish()

	p.mu.Lock()
	defer p.mu.Unlock()
	logging.LogInfo("Hashing complete. Processed: %d, Errors: %d, RAW files: %d/%d, RAW errors: %d",
		p.processed, p.errors, p.rawProcessed, p.rawFiles, p.rawErrors)
}
