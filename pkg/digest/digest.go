// Package digest computes content digests and encodes them as content ids
// of the form <algorithm>-<lowercase hex>.
package digest

import (
	"encoding/hex"

	"github.com/oneconcern/fileref/pkg/fileref/status"
)

// Digest is a raw digest tagged with its algorithm.
//
// Digest is comparable and may be used as a map key.
type Digest struct {
	algo Algorithm
	sum  [MaxSize]byte
}

// Sum hashes data with algorithm a
func Sum(a Algorithm, data []byte) Digest {
	h := a.New()
	_, _ = h.Write(data)
	d := Digest{algo: a}
	h.Sum(d.sum[:0])
	return d
}

// New builds a digest from raw bytes, which must have the algorithm's size
func New(a Algorithm, raw []byte) (Digest, error) {
	if !a.Valid() {
		return Digest{}, status.ErrInvalidArgument.Wrapf("unknown hash algorithm %d", a)
	}
	if len(raw) != a.Size() {
		return Digest{}, status.ErrInvalidFormat.Wrapf("%s digest has %d bytes, expected %d", a, len(raw), a.Size())
	}
	d := Digest{algo: a}
	copy(d.sum[:], raw)
	return d, nil
}

// Algorithm of the digest
func (d Digest) Algorithm() Algorithm {
	return d.algo
}

// Bytes returns a copy of the raw digest
func (d Digest) Bytes() []byte {
	b := make([]byte, d.algo.Size())
	copy(b, d.sum[:])
	return b
}

// IsZero tells if d is the zero value
func (d Digest) IsZero() bool {
	return d.algo == Unknown
}

// ID encodes the digest as a content id
func (d Digest) ID() ID {
	if d.IsZero() {
		return ""
	}
	return ID(d.algo.String() + "-" + hex.EncodeToString(d.sum[:d.algo.Size()]))
}

func (d Digest) String() string {
	return string(d.ID())
}
