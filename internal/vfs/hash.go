package vfs

import (
	"crypto/sha256"
	"encoding/hex"
)

// ETagFor computes the strong entity tag for file content: the hex
// sha-256 of the bytes, wrapped in double quotes. Directory rows carry
// an empty etag instead.
func ETagFor(data []byte) string {
	sum := sha256.Sum256(data)
	return `"` + hex.EncodeToString(sum[:]) + `"`
}
