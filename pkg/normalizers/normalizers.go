// Package normalizers provides value normalization for identifier matching
package normalizers

import (
	"strings"
	"unicode"

	"github.com/Ramsey-B/fern/pkg/models"
)

// Normalizer is a function that normalizes a string value
type Normalizer func(string) string

// registry holds all registered normalizers
var registry = make(map[string]Normalizer)

func init() {
	Register("lowercase", Lowercase)
	Register("trim", Trim)
	Register("nemail", NormalizeEmail)
	Register("nphone", NormalizePhone)
	Register("nname", NormalizeName)
	Register("digits_only", DigitsOnly)
	Register("remove_whitespace", RemoveWhitespace)
}

// Register adds a normalizer to the registry
func Register(name string, fn Normalizer) {
	registry[name] = fn
}

// Get retrieves a normalizer by name
func Get(name string) (Normalizer, bool) {
	fn, ok := registry[name]
	return fn, ok
}

// Apply applies a named normalizer to a value
func Apply(value, normalizer string) string {
	fn, ok := registry[normalizer]
	if !ok {
		return value
	}
	return fn(value)
}

// ForIdentifier normalizes an identifier value according to its type. Emails
// are lowercased and trimmed, phone numbers are reduced to digits, everything
// else is lowercased and trimmed.
func ForIdentifier(identifierType, value string) string {
	switch identifierType {
	case models.IdentifierTypeEmail:
		return NormalizeEmail(value)
	case models.IdentifierTypePhone:
		return NormalizePhone(value)
	default:
		return strings.ToLower(strings.TrimSpace(value))
	}
}

// Built-in normalizers

// Lowercase converts string to lowercase
func Lowercase(s string) string {
	return strings.ToLower(s)
}

// Trim removes leading and trailing whitespace
func Trim(s string) string {
	return strings.TrimSpace(s)
}

// NormalizeEmail normalizes an email address (lowercase, trim)
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizePhone removes all non-digit characters from a phone number
func NormalizePhone(s string) string {
	return DigitsOnly(s)
}

// NormalizeName normalizes a person's name for identifier matching
// - Lowercase
// - Collapse whitespace
// - Remove punctuation
func NormalizeName(s string) string {
	s = strings.ToLower(s)

	var result strings.Builder
	prevSpace := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			result.WriteRune(r)
			prevSpace = false
		} else if unicode.IsSpace(r) {
			if !prevSpace {
				result.WriteRune(' ')
				prevSpace = true
			}
		}
	}

	return strings.TrimSpace(result.String())
}

// DigitsOnly keeps only digit characters
func DigitsOnly(s string) string {
	var result strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// RemoveWhitespace removes all whitespace characters
func RemoveWhitespace(s string) string {
	var result strings.Builder
	for _, r := range s {
		if !unicode.IsSpace(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}
