package catalog

import (
	"errors"
	"fmt"
	"hash/maphash"
)

// ErrInvalidName is returned for package names that are not pure ASCII.
var ErrInvalidName = errors.New("package name is not ASCII")

// Key is the case-insensitive identity of a package. It keeps the casing it
// was created with; only comparison and hashing fold case.
type Key struct {
	name string
}

func NewKey(name string) (Key, error) {
	if !isASCII(name) {
		return Key{}, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return Key{name: name}, nil
}

func (k Key) String() string {
	return k.name
}

func (k Key) Equal(other Key) bool {
	return equalFold(k.name, other.name)
}

// Hash folds each byte to lower case as it is written, so differently cased
// names hash identically without building a lowered copy.
func (k Key) Hash(seed maphash.Seed) uint64 {
	return hashFold(seed, k.name)
}

func hashFold(seed maphash.Seed, s string) uint64 {
	var h maphash.Hash
	h.SetSeed(seed)
	for i := 0; i < len(s); i++ {
		_ = h.WriteByte(lower(s[i]))
	}
	// terminator keeps hashes of concatenated keys apart
	_ = h.WriteByte(0xff)
	return h.Sum64()
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

func lower(b byte) byte {
	if 'A' <= b && b <= 'Z' {
		return b + ('a' - 'A')
	}
	return b
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		if lower(a[i]) != lower(b[i]) {
			return false
		}
	}
	return true
}
