// Package fingerprint derives the content identity used as the extraction
// cache and dedup key for a submitted file.
package fingerprint

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// Fingerprint identifies a submitted file by content digest, byte length and
// declared filename. It is comparable and can be used directly as a map key.
type Fingerprint struct {
	Digest [blake2b.Size256]byte
	Size   int64
	Name   string
}

// Of computes the fingerprint of data. Size is the real byte length, never
// the size a client declared.
func Of(data []byte, filename string) Fingerprint {
	return Fingerprint{
		Digest: blake2b.Sum256(data),
		Size:   int64(len(data)),
		Name:   filename,
	}
}

// Hex returns the hex-encoded content digest.
func (f Fingerprint) Hex() string {
	return hex.EncodeToString(f.Digest[:])
}

// Short returns the first 12 hex characters of the digest, for logs.
func (f Fingerprint) Short() string {
	return f.Hex()[:12]
}

// String renders the fingerprint as digest:size:name.
func (f Fingerprint) String() string {
	return fmt.Sprintf("%s:%d:%s", f.Hex(), f.Size, f.Name)
}
