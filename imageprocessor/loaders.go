package imageprocessor

import (
	"fmt"
	"image"

	// Register decoders for image.Decode beyond what imaging pulls in
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/disintegration/imaging"
)

// ImageLoader interface defines methods for image loading
type ImageLoader interface {
	// CanLoad determines if this loader can handle the given file
	CanLoad(path string) bool

	// LoadImage decodes the file into pixels
	LoadImage(path string) (image.Image, error)
}

// BaseImageLoader provides common functionality for all image loaders
type BaseImageLoader struct {
	// Formats this loader can handle
	SupportedFormats []FormatType
}

// CanLoad checks if this loader supports the file's format
func (l *BaseImageLoader) CanLoad(path string) bool {
	format := GetFileFormat(path)
	for _, supported := range l.SupportedFormats {
		if format == supported {
			return true
		}
	}
	return false
}

// DefaultLoadImage decodes with EXIF orientation applied, so a rotated copy
// of a photo hashes like the upright original
func (l *BaseImageLoader) DefaultLoadImage(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, newImageLoadError("failed to decode image", path, err)
	}
	return img, nil
}

// StandardImageLoader handles formats decodable in pure Go
type StandardImageLoader struct {
	BaseImageLoader
}

// NewStandardImageLoader creates a new loader for standard image formats
func NewStandardImageLoader() *StandardImageLoader {
	return &StandardImageLoader{
		BaseImageLoader: BaseImageLoader{
			SupportedFormats: []FormatType{
				FormatJPEG,
				FormatPNG,
				FormatGIF,
				FormatBMP,
				FormatTIFF,
			},
		},
	}
}

// LoadImage loads a standard image format
func (l *StandardImageLoader) LoadImage(path string) (image.Image, error) {
	return l.DefaultLoadImage(path)
}

// newImageLoadError creates a standardized error for image loading failures
func newImageLoadError(message, path string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%s: %s", message, path)
	}
	return fmt.Errorf("%s: %s: %w", message, path, cause)
}
