package core

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// ComputeListHash hashes an ordered list of keys.
func ComputeListHash(keys []string) Hash {
	var data strings.Builder
	for _, k := range keys {
		data.WriteString(k)
		data.WriteByte(0)
	}
	return NewHash([]byte(data.String()))
}
