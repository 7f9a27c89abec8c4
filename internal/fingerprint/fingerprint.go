// Package fingerprint computes content fingerprints for photo files.
// A fingerprint identifies a file by its bytes alone, so renames and moves
// of the same photo resolve to the same identity.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// Fingerprint identifies a file by its content.
type Fingerprint struct {
	Digest string `json:"digest"` // hex-encoded SHA-256 of the file content
	Size   int64  `json:"size"`   // file size in bytes
}

// Compute hashes the file at path by streaming it through SHA-256.
// Large media files are expected, so the file is never read into memory
// at once.
func Compute(path string) (Fingerprint, error) {
	f, err := os.Open(path)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	size, err := io.Copy(h, f)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("hash %s: %w", path, err)
	}

	return Fingerprint{
		Digest: hex.EncodeToString(h.Sum(nil)),
		Size:   size,
	}, nil
}
