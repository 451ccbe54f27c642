//go:build gocv

package imageprocessor

import (
	"fmt"
	"image"
	"sort"

	"imagededup/types"

	"gocv.io/x/gocv"
)

// opencvHasher computes a DCT perceptual hash with OpenCV.
// Build with -tags gocv to make it selectable as "opencv".
type opencvHasher struct{}

func (opencvHasher) Name() string {
	return "opencv"
}

func (opencvHasher) Hash(img image.Image) (types.Fingerprint, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return types.Fingerprint{}, fmt.Errorf("cannot convert image to Mat: %w", err)
	}
	defer mat.Close()

	hash, err := ComputePerceptualHash(mat)
	if err != nil {
		return types.Fingerprint{}, err
	}
	return types.Fingerprint{Algorithm: "opencv64", Bits: []uint64{hash}}, nil
}

// ComputePerceptualHash computes a DCT-based perceptual hash for the image
func ComputePerceptualHash(img gocv.Mat) (uint64, error) {
	if img.Empty() {
		return 0, fmt.Errorf("cannot compute hash for empty image")
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if img.Channels() != 1 {
		gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	} else {
		img.CopyTo(&gray)
	}

	// Resize to 32x32 for DCT
	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(gray, &resized, image.Point{X: 32, Y: 32}, 0, 0, gocv.InterpolationArea)

	floatImg := gocv.NewMat()
	defer floatImg.Close()
	resized.ConvertTo(&floatImg, gocv.MatTypeCV32F)

	dct := gocv.NewMat()
	defer dct.Close()
	gocv.DCT(floatImg, &dct, 0)
	if dct.Empty() {
		return 0, fmt.Errorf("DCT produced an empty matrix")
	}

	// Extract 8x8 low frequency components
	lowFreq := dct.Region(image.Rect(0, 0, 8, 8))
	defer lowFreq.Close()

	values := make([]float32, 0, 64)
	for y := 0; y < lowFreq.Rows(); y++ {
		for x := 0; x < lowFreq.Cols(); x++ {
			values = append(values, lowFreq.GetFloatAt(y, x))
		}
	}
	median := calculateMedian(values)

	var hash uint64
	for _, val := range values {
		hash <<= 1
		if val > median {
			hash |= 1
		}
	}
	return hash, nil
}

// calculateMedian calculates the median value of a float32 slice
func calculateMedian(values []float32) float32 {
	sorted := make([]float32, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	length := len(sorted)
	switch {
	case length == 0:
		return 0
	case length%2 == 0:
		return (sorted[length/2-1] + sorted[length/2]) / 2
	default:
		return sorted[length/2]
	}
}

func init() {
	RegisterHasher("opencv", func(size int) (Hasher, error) {
		if size != DefaultHashSize {
			return nil, fmt.Errorf("opencv hasher only supports hash size %d", DefaultHashSize)
		}
		return opencvHasher{}, nil
	})
}
