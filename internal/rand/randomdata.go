// Package rand generates random payloads for tests.
package rand

import (
	"bytes"
	"math/rand"
	"sync"
	"time"
)

var (
	onceSource sync.Once
	shared     *Gen
	letters    = bytes.Repeat([]byte("abcdefghijklmnopqrstuvwxyz0123456789a"), 7)
)

// Gen is a random generator, safe for concurrent use
type Gen struct {
	mx   sync.Mutex
	rgen *rand.Rand
}

// New generator with a fixed seed, to get reproducible payloads
func New(seed int64) *Gen {
	return &Gen{rgen: rand.New(rand.NewSource(seed))} // #nosec
}

func global() *Gen {
	onceSource.Do(func() {
		shared = New(time.Now().UnixNano())
	})
	return shared
}

// Bytes returns a random slice of bytes
func (g *Gen) Bytes(n int) []byte {
	buf := make([]byte, n)
	g.mx.Lock()
	_, _ = g.rgen.Read(buf)
	g.mx.Unlock()
	return buf
}

// LetterBytes returns a random slice of bytes picked in the [0-9]|[a-z] range
func (g *Gen) LetterBytes(n int) []byte {
	// letters pads over 256 locations, so "a" is slightly more frequent than other signs
	buf := g.Bytes(n)
	for i, b := range buf {
		buf[i] = letters[b]
	}
	return buf
}

// Text returns random lines of letters, n bytes in total
func (g *Gen) Text(n int) []byte {
	buf := g.LetterBytes(n)
	for i := 63; i < n; i += 64 {
		buf[i] = '\n'
	}
	return buf
}

// Intn returns a random int in [0, n)
func (g *Gen) Intn(n int) int {
	g.mx.Lock()
	defer g.mx.Unlock()
	return g.rgen.Intn(n)
}

// Bytes returns a random slice of bytes
func Bytes(n int) []byte {
	return global().Bytes(n)
}

// LetterString returns a random string picked in the [0-9]|[a-z] range
func LetterString(n int) string {
	return string(global().LetterBytes(n))
}
