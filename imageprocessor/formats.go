package imageprocessor

import (
	"path/filepath"
	"sort"
	"strings"
)

// FormatType represents a known image format type
type FormatType string

// Known image format constants
const (
	FormatUnknown FormatType = "unknown"
	FormatJPEG    FormatType = "jpeg"
	FormatPNG     FormatType = "png"
	FormatGIF     FormatType = "gif"
	FormatBMP     FormatType = "bmp"
	FormatTIFF    FormatType = "tiff"
	FormatNEF     FormatType = "nef"
)

// Map of recognized extensions to format types
var formatExtensions = map[string]FormatType{
	".png":  FormatPNG,
	".jpg":  FormatJPEG,
	".jpeg": FormatJPEG,
	".gif":  FormatGIF,
	".bmp":  FormatBMP,
	".tiff": FormatTIFF,

	// RAW formats
	".nef": FormatNEF,
}

// IsImageFile checks if a file is a candidate image based on its extension (case-insensitive)
func IsImageFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	_, supported := formatExtensions[ext]
	return supported
}

// GetFileFormat returns the format type based on file extension
func GetFileFormat(path string) FormatType {
	ext := strings.ToLower(filepath.Ext(path))
	format, exists := formatExtensions[ext]
	if !exists {
		return FormatUnknown
	}
	return format
}

// IsRawFormat checks if a file is in a camera RAW format
func IsRawFormat(path string) bool {
	return GetFileFormat(path) == FormatNEF
}

// GetSupportedExtensions returns all recognized image file extensions, sorted
func GetSupportedExtensions() []string {
	extensions := make([]string, 0, len(formatExtensions))
	for ext := range formatExtensions {
		extensions = append(extensions, ext)
	}
	sort.Strings(extensions)
	return extensions
}
