package digest

import (
	"crypto/sha1" //nolint:gosec
	"crypto/sha256"
	"hash"
	"strings"

	blake2b "github.com/minio/blake2b-simd"
	"github.com/oneconcern/fileref/pkg/fileref/status"
	"github.com/zeebo/blake3"
)

// Algorithm identifies one of the supported hash functions.
type Algorithm uint8

// Supported algorithms. The zero value is not a valid algorithm.
const (
	Unknown Algorithm = iota
	SHA1
	SHA256
	Blake2b
	Blake3
)

// Default algorithm used when none is configured.
const Default = SHA1

const (
	// MaxSize is the longest digest, in bytes, of any supported algorithm
	MaxSize = 64

	// MaxIDLen is the longest textual content id of any supported algorithm
	MaxIDLen = len("blake2b-") + 2*MaxSize
)

var algorithms = [...]struct {
	name string
	size int
}{
	Unknown: {name: "unknown"},
	SHA1:    {name: "sha1", size: sha1.Size},
	SHA256:  {name: "sha256", size: sha256.Size},
	Blake2b: {name: "blake2b", size: blake2b.Size},
	Blake3:  {name: "blake3", size: 32},
}

// Algorithms lists all supported algorithms
func Algorithms() []Algorithm {
	return []Algorithm{SHA1, SHA256, Blake2b, Blake3}
}

// ParseAlgorithm resolves an algorithm by its exact name
func ParseAlgorithm(name string) (Algorithm, error) {
	for _, a := range Algorithms() {
		if a.String() == name {
			return a, nil
		}
	}
	return Unknown, status.ErrInvalidArgument.Wrapf("unknown hash algorithm %q", name)
}

// Sniff resolves the algorithm of a content id from its "name-" prefix
func Sniff(s string) (Algorithm, bool) {
	for _, a := range Algorithms() {
		if strings.HasPrefix(s, a.String()) && len(s) > len(a.String()) && s[len(a.String())] == '-' {
			return a, true
		}
	}
	return Unknown, false
}

func (a Algorithm) String() string {
	if int(a) >= len(algorithms) {
		return algorithms[Unknown].name
	}
	return algorithms[a].name
}

// Size of the raw digest in bytes
func (a Algorithm) Size() int {
	if int(a) >= len(algorithms) {
		return 0
	}
	return algorithms[a].size
}

// Valid tells if a is one of the supported algorithms
func (a Algorithm) Valid() bool {
	return a != Unknown && int(a) < len(algorithms)
}

// New returns a fresh hasher. It panics on an invalid algorithm.
func (a Algorithm) New() hash.Hash {
	switch a {
	case SHA1:
		return sha1.New() //nolint:gosec
	case SHA256:
		return sha256.New()
	case Blake2b:
		return blake2b.New512()
	case Blake3:
		return blake3.New()
	default:
		panic("digest: invalid algorithm " + a.String())
	}
}

// MarshalText encodes the algorithm name
func (a Algorithm) MarshalText() ([]byte, error) {
	if !a.Valid() {
		return nil, status.ErrInvalidArgument.Wrapf("unknown hash algorithm %d", a)
	}
	return []byte(a.String()), nil
}

// UnmarshalText decodes an algorithm name
func (a *Algorithm) UnmarshalText(text []byte) error {
	v, err := ParseAlgorithm(string(text))
	if err != nil {
		return err
	}
	*a = v
	return nil
}
