package imageprocessor

import (
	"fmt"
	"image"
	"sort"
	"sync"

	"imagededup/types"

	"github.com/corona10/goimagehash"
)

// DefaultHasher is the hash algorithm used when none is configured
const DefaultHasher = "phash"

// DefaultHashSize is the side of the hash grid; 8 gives a 64-bit code
const DefaultHashSize = 8

// Hasher turns decoded pixels into a fingerprint
type Hasher interface {
	Name() string
	Hash(img image.Image) (types.Fingerprint, error)
}

// HasherFactory builds a hasher for a grid side length
type HasherFactory func(size int) (Hasher, error)

var (
	hashersMu sync.RWMutex
	hashers   = map[string]HasherFactory{}
)

// RegisterHasher makes a hash algorithm selectable by name
func RegisterHasher(name string, factory HasherFactory) {
	hashersMu.Lock()
	defer hashersMu.Unlock()
	hashers[name] = factory
}

// NewHasher returns the registered hasher for name
func NewHasher(name string, size int) (Hasher, error) {
	hashersMu.RLock()
	factory, ok := hashers[name]
	hashersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown hasher %q (available: %v)", name, AvailableHashers())
	}
	return factory(size)
}

// AvailableHashers lists registered hasher names, sorted
func AvailableHashers() []string {
	hashersMu.RLock()
	defer hashersMu.RUnlock()

	names := make([]string, 0, len(hashers))
	for name := range hashers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type extHashFunc func(img image.Image, width, height int) (*goimagehash.ExtImageHash, error)

// goimagehashHasher adapts one of goimagehash's extended hashes
type goimagehashHasher struct {
	name string
	size int
	fn   extHashFunc
}

func (h *goimagehashHasher) Name() string {
	return h.name
}

func (h *goimagehashHasher) Hash(img image.Image) (types.Fingerprint, error) {
	hash, err := h.fn(img, h.size, h.size)
	if err != nil {
		return types.Fingerprint{}, fmt.Errorf("cannot compute %s: %w", h.name, err)
	}

	words := hash.GetHash()
	fingerprint := types.Fingerprint{
		Algorithm: fmt.Sprintf("%s%d", h.name, h.size*h.size),
		Bits:      make([]uint64, len(words)),
	}
	copy(fingerprint.Bits, words)
	return fingerprint, nil
}

func goimagehashFactory(name string, fn extHashFunc) HasherFactory {
	return func(size int) (Hasher, error) {
		if err := validateHashSize(size); err != nil {
			return nil, err
		}
		return &goimagehashHasher{name: name, size: size, fn: fn}, nil
	}
}

// validateHashSize accepts grid sides whose area is a power of two of at least 64
func validateHashSize(size int) error {
	switch size {
	case 8, 16:
		return nil
	default:
		return fmt.Errorf("unsupported hash size %d (use 8 or 16)", size)
	}
}

func init() {
	RegisterHasher("phash", goimagehashFactory("phash", goimagehash.ExtPerceptionHash))
	RegisterHasher("ahash", goimagehashFactory("ahash", goimagehash.ExtAverageHash))
	RegisterHasher("dhash", goimagehashFactory("dhash", goimagehash.ExtDifferenceHash))
}
