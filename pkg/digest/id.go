package digest

import (
	"encoding/hex"

	"github.com/oneconcern/fileref/pkg/fileref/status"
)

// ID is a textual content id: <algorithm>-<lowercase hex digest>
type ID string

// Encode a raw digest as a content id
func Encode(a Algorithm, raw []byte) (ID, error) {
	d, err := New(a, raw)
	if err != nil {
		return "", err
	}
	return d.ID(), nil
}

// Parse decodes a content id.
//
// Only lowercase hex is accepted. The encoder never emits anything else.
func Parse(s string) (Digest, error) {
	a, ok := Sniff(s)
	if !ok {
		return Digest{}, status.ErrInvalidFormat.Wrapf("content id %q: unknown algorithm", truncate(s))
	}
	h := s[len(a.String())+1:]
	if len(h) != 2*a.Size() {
		return Digest{}, status.ErrInvalidFormat.Wrapf("content id %q: %d hex digits, expected %d", truncate(s), len(h), 2*a.Size())
	}
	for i := 0; i < len(h); i++ {
		c := h[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return Digest{}, status.ErrInvalidFormat.Wrapf("content id %q: invalid hex digit %q", truncate(s), c)
		}
	}
	d := Digest{algo: a}
	if _, err := hex.Decode(d.sum[:], []byte(h)); err != nil {
		return Digest{}, status.ErrInvalidFormat.Wrap(err)
	}
	return d, nil
}

// Valid tells if s is a well formed content id
func Valid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// Verify tells if data hashes to id
func Verify(id ID, data []byte) bool {
	d, err := id.Digest()
	if err != nil {
		return false
	}
	return Sum(d.algo, data) == d
}

// Digest decodes the id
func (id ID) Digest() (Digest, error) {
	return Parse(string(id))
}

// Algorithm sniffs the algorithm of the id
func (id ID) Algorithm() Algorithm {
	a, _ := Sniff(string(id))
	return a
}

func (id ID) String() string {
	return string(id)
}

func truncate(s string) string {
	if len(s) > MaxIDLen {
		return s[:MaxIDLen] + "..."
	}
	return s
}
