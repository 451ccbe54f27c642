// Package imageprocessor decodes candidate images and computes their
// perceptual fingerprints.
package imageprocessor

import (
	"fmt"
	"image"

	"imagededup/logging"
	"imagededup/types"
)

// Fingerprinter decodes and hashes images. It never returns decode or hash
// errors to the caller; a failed image is reported as absent and logged.
type Fingerprinter struct {
	registry *ImageLoaderRegistry
	hasher   Hasher
}

// NewFingerprinter creates a fingerprinter with the given loaders and hasher
func NewFingerprinter(registry *ImageLoaderRegistry, hasher Hasher) *Fingerprinter {
	return &Fingerprinter{registry: registry, hasher: hasher}
}

// Fingerprint returns the image's fingerprint, or false if the image could
// not be read, decoded, or hashed
func (f *Fingerprinter) Fingerprint(path string) (types.Fingerprint, bool) {
	fingerprint, err := f.compute(path)
	if err != nil {
		logging.LogImageSkipped(path, err)
		return types.Fingerprint{}, false
	}
	logging.DebugLog("HASH %s %s", path, fingerprint)
	return fingerprint, true
}

// compute isolates decoder panics on corrupt input
func (f *Fingerprinter) compute(path string) (fingerprint types.Fingerprint, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("decoder panic: %v", r)
		}
	}()

	var img image.Image
	img, err = f.registry.LoadImage(path)
	if err != nil {
		return fingerprint, err
	}
	return f.hasher.Hash(img)
}

// Close releases loader resources
func (f *Fingerprinter) Close() error {
	return f.registry.Close()
}
