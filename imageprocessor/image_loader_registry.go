package imageprocessor

import (
	"fmt"
	"image"
	"io"
	"path/filepath"
	"strings"
	"sync"
)

// ImageLoaderRegistry maintains a registry of image loaders
type ImageLoaderRegistry struct {
	loaders map[string]ImageLoader
	mutex   sync.RWMutex
}

// NewImageLoaderRegistry creates a new image loader registry
func NewImageLoaderRegistry() *ImageLoaderRegistry {
	registry := &ImageLoaderRegistry{
		loaders: make(map[string]ImageLoader),
	}

	standardLoader := NewStandardImageLoader()
	for _, ext := range []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tiff"} {
		registry.RegisterLoader(ext, standardLoader)
	}

	registry.RegisterLoader(".nef", NewRawImageLoader())

	return registry
}

// RegisterLoader registers a new loader for a specific file extension
func (r *ImageLoaderRegistry) RegisterLoader(ext string, loader ImageLoader) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.loaders[strings.ToLower(ext)] = loader
}

// GetLoader returns the loader for the given path, or nil
func (r *ImageLoaderRegistry) GetLoader(path string) ImageLoader {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.loaders[strings.ToLower(filepath.Ext(path))]
}

// LoadImage loads an image using the appropriate registered loader
func (r *ImageLoaderRegistry) LoadImage(path string) (image.Image, error) {
	loader := r.GetLoader(path)
	if loader == nil || !loader.CanLoad(path) {
		return nil, fmt.Errorf("no suitable loader found for: %s", path)
	}
	return loader.LoadImage(path)
}

// Close releases resources held by loaders, such as external processes
func (r *ImageLoaderRegistry) Close() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var firstErr error
	seen := make(map[ImageLoader]bool)
	for _, loader := range r.loaders {
		if seen[loader] {
			continue
		}
		seen[loader] = true
		if closer, ok := loader.(io.Closer); ok {
			if err := closer.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
