package utils

import (
	"regexp"
	"strings"
)

var (
	htmlTagPattern  = regexp.MustCompile(`<[^>]*>`)
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,50}$`)
)

// StripHTML removes all HTML tags from a string
func StripHTML(input string) string {
	return htmlTagPattern.ReplaceAllString(input, "")
}

// ValidateUsername checks if username contains only allowed characters.
// Allows alphanumeric, underscores, hyphens. 3-50 characters
func ValidateUsername(username string) bool {
	return usernamePattern.MatchString(username)
}

// TruncateString safely truncates a string to max length
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}

// CleanUserText strips markup and bounds the length of free text a user
// attaches to a problem (editorials, approach notes).
func CleanUserText(input string, maxLen int) string {
	return TruncateString(strings.TrimSpace(StripHTML(input)), maxLen)
}
