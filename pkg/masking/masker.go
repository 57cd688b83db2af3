// Package masking redacts patient identifiers from every string that leaves
// the process or reaches a log handler. Masking is fail-closed: a masker
// that cannot safely process a string must never return it unmasked.
package masking

import "regexp"

// nationalIDPattern matches the opaque national-id identifier shape used by
// the backend: one uppercase letter, seven digits, one uppercase letter.
var nationalIDPattern = regexp.MustCompile(`\b[A-Z]\d{7}[A-Z]\b`)

// Masker is a single redaction strategy. Implementations must be defensive:
// Mask must never panic and must never return an unmasked occurrence of the
// thing it claims to mask.
type Masker interface {
	// Name identifies the masker for logging/diagnostics.
	Name() string
	// AppliesTo performs a cheap pre-check before the more expensive Mask call.
	AppliesTo(s string) bool
	// Mask returns a copy of s with all matches redacted.
	Mask(s string) string
}

// NationalIDMasker redacts national-id-shaped substrings, preserving only
// the first and last character (e.g. "S1234567A" -> "S*******A").
type NationalIDMasker struct{}

// Name returns the masker's identifier.
func (NationalIDMasker) Name() string { return "national_id" }

// AppliesTo reports whether s can possibly contain a national id.
func (NationalIDMasker) AppliesTo(s string) bool {
	return nationalIDPattern.MatchString(s)
}

// Mask replaces every national-id occurrence in s with its redacted shape.
func (NationalIDMasker) Mask(s string) string {
	return nationalIDPattern.ReplaceAllStringFunc(s, redactNationalID)
}

// redactNationalID keeps the first and last rune of match, replacing the
// interior with asterisks. National ids are fixed-length ASCII so byte
// indexing is safe.
func redactNationalID(match string) string {
	if len(match) < 2 {
		return match
	}
	interior := len(match) - 2
	stars := make([]byte, interior)
	for i := range stars {
		stars[i] = '*'
	}
	return match[:1] + string(stars) + match[len(match)-1:]
}
