package assets

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
)

// signaturePrefixes maps each allowed MIME type to the fixed leading bytes
// characteristic of the format. The allow-list and this table are the same
// map on purpose: a format cannot be allowed without a signature to check,
// and adding a signature automatically allows the format.
var signaturePrefixes = map[string][]byte{
	"image/jpeg":      {0xFF, 0xD8, 0xFF},
	"image/png":       {0x89, 0x50, 0x4E, 0x47},
	"image/webp":      {0x52, 0x49, 0x46, 0x46},
	"application/pdf": {0x25, 0x50, 0x44, 0x46},
}

// MIMEAllowed reports whether the declared MIME type is in the closed set of
// supported formats.
func MIMEAllowed(mime string) bool {
	_, ok := signaturePrefixes[mime]
	return ok
}

// MatchesSignature reports whether data starts with the signature prefix for
// the declared MIME type. An unknown MIME type never matches.
func MatchesSignature(data []byte, declaredMime string) bool {
	prefix, ok := signaturePrefixes[declaredMime]
	if !ok {
		return false
	}
	if len(data) < len(prefix) {
		return false
	}
	return bytes.Equal(data[:len(prefix)], prefix)
}

// Digest computes the SHA-256 digest of data as lowercase hex.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Verification is the result of inspecting raw bytes against a declared
// MIME type.
type Verification struct {
	Digest string
	Valid  bool
}

// Verify computes the digest of data and checks its leading bytes against
// the signature table for declaredMime. It performs no I/O.
func Verify(data []byte, declaredMime string) Verification {
	return Verification{
		Digest: Digest(data),
		Valid:  MatchesSignature(data, declaredMime),
	}
}
