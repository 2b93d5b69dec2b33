// Package rng provides the random sources dice are rolled from.
package rng

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
)

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}

	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// New returns a deterministic source seeded with seed. Two sources with the
// same seed produce the same draws. The result is not safe for concurrent use.
func New(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// Sequence is a source that replays fixed die faces, for tests and
// reproducing a known roll. Each value is a 1-based face; Intn(n) returns
// value-1 clamped into [0, n). It cycles once exhausted.
type Sequence struct {
	values []int
	next   int
}

// NewSequence creates a source replaying the given faces.
func NewSequence(faces ...int) *Sequence {
	return &Sequence{values: faces}
}

// Intn returns the next face minus one, within [0, n).
func (s *Sequence) Intn(n int) int {
	if len(s.values) == 0 || n <= 0 {
		return 0
	}
	v := s.values[s.next%len(s.values)] - 1
	s.next++
	if v < 0 {
		return 0
	}
	if v >= n {
		return n - 1
	}
	return v
}

// Drawn returns how many values have been drawn.
func (s *Sequence) Drawn() int {
	return s.next
}
