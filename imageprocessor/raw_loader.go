package imageprocessor

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"

	"imagededup/logging"

	"github.com/barasher/go-exiftool"
	"github.com/disintegration/imaging"
)

// Embedded preview tags, largest first
var previewTags = []string{
	"JpgFromRaw",
	"PreviewImage",
	"OtherImage",
	"ThumbnailImage",
}

var errNoPreview = errors.New("no embedded preview found")

// RawImageLoader decodes camera RAW files through their embedded JPEG preview.
// One exiftool process is shared by all calls; go-exiftool is not safe for
// concurrent use, so extraction is serialized.
type RawImageLoader struct {
	BaseImageLoader

	once    sync.Once
	mu      sync.Mutex
	et      *exiftool.Exiftool
	initErr error
}

// NewRawImageLoader creates a loader for RAW formats
func NewRawImageLoader() *RawImageLoader {
	return &RawImageLoader{
		BaseImageLoader: BaseImageLoader{
			SupportedFormats: []FormatType{FormatNEF},
		},
	}
}

func (l *RawImageLoader) start() error {
	l.once.Do(func() {
		l.et, l.initErr = exiftool.NewExiftool(exiftool.ExtractAllBinaryMetadata())
		if l.initErr != nil {
			logging.LogWarning("exiftool unavailable, RAW previews disabled: %v", l.initErr)
		}
	})
	return l.initErr
}

// LoadImage extracts the largest embedded preview, falling back to a direct
// TIFF-container decode when exiftool is missing or finds nothing
func (l *RawImageLoader) LoadImage(path string) (image.Image, error) {
	img, err := l.loadPreview(path)
	if err == nil {
		return img, nil
	}

	fallback, fallbackErr := l.DefaultLoadImage(path)
	if fallbackErr == nil {
		logging.DebugLog("RAW preview extraction failed for %s (%v), decoded container directly", path, err)
		return fallback, nil
	}
	return nil, newImageLoadError("failed to load RAW image", path, err)
}

func (l *RawImageLoader) loadPreview(path string) (image.Image, error) {
	if err := l.start(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	if l.et == nil {
		l.mu.Unlock()
		return nil, fmt.Errorf("exiftool already closed")
	}
	fileInfos := l.et.ExtractMetadata(path)
	l.mu.Unlock()

	if len(fileInfos) == 0 {
		return nil, fmt.Errorf("no metadata extracted")
	}
	if fileInfos[0].Err != nil {
		return nil, fileInfos[0].Err
	}

	for _, tag := range previewTags {
		value, err := fileInfos[0].GetString(tag)
		if err != nil || value == "" {
			continue
		}
		data, err := decodeBinaryField(value)
		if err != nil {
			logging.DebugLog("cannot decode %s of %s: %v", tag, path, err)
			continue
		}
		img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
		if err != nil {
			logging.DebugLog("cannot decode %s of %s: %v", tag, path, err)
			continue
		}
		logging.DebugLog("decoded %s preview of %s", tag, path)
		return img, nil
	}
	return nil, errNoPreview
}

// decodeBinaryField unwraps exiftool's base64: encoding of binary tags
func decodeBinaryField(value string) ([]byte, error) {
	encoded, ok := strings.CutPrefix(value, "base64:")
	if !ok {
		return nil, fmt.Errorf("field is not binary")
	}
	return base64.StdEncoding.DecodeString(encoded)
}

// Close stops the shared exiftool process if it was started
func (l *RawImageLoader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.et == nil {
		return nil
	}
	err := l.et.Close()
	l.et = nil
	return err
}
