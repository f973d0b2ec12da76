// Package sha256 provides the content-addressing digests used for cache keys
// and archive names.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
)

// Hasher produces hex SHA-256 digests.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash hashes the input and returns a hex digest.
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// HashString hashes a string.
func (h *Hasher) HashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Key derives a digest from ordered parts. Each part is length-prefixed so
// ("ab","c") and ("a","bc") never collide.
func (h *Hasher) Key(parts ...string) string {
	d := sha256.New()
	var lenBuf [8]byte
	for _, p := range parts {
		n := uint64(len(p))
		for i := range lenBuf {
			lenBuf[i] = byte(n >> (8 * i))
		}
		_, _ = d.Write(lenBuf[:])
		_, _ = io.WriteString(d, p)
	}
	return hex.EncodeToString(d.Sum(nil))
}
