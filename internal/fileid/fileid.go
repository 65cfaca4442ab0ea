// Package fileid derives stable identifiers for submitted content and watched paths.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

const (
	contentPrefix = "sha256:"
	pathPrefix    = "path:"
)

// ContentID returns an identifier that depends only on the bytes of data.
func ContentID(data []byte) string {
	hash := sha256.Sum256(data)
	return contentPrefix + hex.EncodeToString(hash[:])
}

// PathID returns a stable identifier for a watched file path.
// Paths that clean to the same value share an ID.
func PathID(path string) string {
	hash := sha256.Sum256([]byte(filepath.Clean(path)))
	return pathPrefix + hex.EncodeToString(hash[:])
}
