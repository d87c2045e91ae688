// Package checksum produces content digests for preset files and baked
// sample sequences.
package checksum

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"math"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Floats accumulates float64 values by their exact IEEE-754 bits, so two
// sequences share a digest only when they are bit-identical.
type Floats struct {
	h   hash.Hash
	buf [8]byte
	n   int
}

// NewFloats returns an empty float digest.
func NewFloats() *Floats {
	return &Floats{h: sha256.New()}
}

// Add appends values to the digest in little-endian order.
func (f *Floats) Add(values ...float64) {
	for _, v := range values {
		binary.LittleEndian.PutUint64(f.buf[:], math.Float64bits(v))
		f.h.Write(f.buf[:]) //nolint:errcheck
		f.n++
	}
}

// Len is the number of values added.
func (f *Floats) Len() int { return f.n }

// String returns the hex-encoded digest of the values added so far.
func (f *Floats) String() string {
	return hex.EncodeToString(f.h.Sum(nil))
}
