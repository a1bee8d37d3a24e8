package assets

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxFilenameLength is the upper bound for normalized filenames.
const MaxFilenameLength = 255

// stripMarks decomposes to NFD and drops combining marks, so "café" becomes
// "cafe" before the character clamp runs.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))

// NormalizeFilename sanitizes an untrusted filename into a token containing
// only [A-Za-z0-9._-]. Diacritics are stripped via canonical decomposition,
// runs of dots collapse to one, leading and trailing dots are removed, and
// the result is truncated to MaxFilenameLength bytes.
//
// It never fails and may return an empty string; callers must treat an empty
// result as an invalid filename.
func NormalizeFilename(filename string) string {
	decomposed, _, err := transform.String(stripMarks, filename)
	if err != nil {
		// Undecodable input; the byte-level clamp below still applies.
		decomposed = filename
	}

	var b strings.Builder
	b.Grow(len(decomposed))
	lastDot := false
	for _, r := range decomposed {
		switch {
		case r == '.':
			if !lastDot {
				b.WriteByte('.')
			}
			lastDot = true
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_':
			b.WriteRune(r)
			lastDot = false
		default:
			b.WriteByte('_')
			lastDot = false
		}
	}

	clean := strings.Trim(b.String(), ".")
	if len(clean) > MaxFilenameLength {
		clean = clean[:MaxFilenameLength]
		clean = strings.TrimRight(clean, ".")
	}
	return clean
}

// ValidateStoragePath rejects candidate storage paths that are empty, contain
// a parent-directory traversal token, or contain a doubled separator. Pure
// predicate, no side effects.
func ValidateStoragePath(path string) error {
	if path == "" {
		return NewError(CodeBadRequest, "storage path is empty")
	}
	if strings.Contains(path, "..") {
		return NewError(CodeBadRequest, "storage path contains parent traversal")
	}
	if strings.Contains(path, "//") {
		return NewError(CodeBadRequest, "storage path contains doubled separator")
	}
	return nil
}
