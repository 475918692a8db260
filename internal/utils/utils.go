// Package utils provides small, generic helper functions used across
// different layers of the application. These utilities are independent
// of domain or business logic.
package utils

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"strings"
)

// AtoiDefault converts a string to an int using strconv.Atoi.
// If the string is empty or cannot be parsed as an integer,
// it returns the provided default value instead.
//
// Example:
//
//	n := utils.AtoiDefault("42", 0) // returns 42
//	n = utils.AtoiDefault("", 10)   // returns 10
//	n = utils.AtoiDefault("x", 5)   // returns 5
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// NewShareableID returns a short random identifier suitable for a public
// poll URL: 8 lowercase hex characters (4 random bytes).
func NewShareableID() string {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand only fails when the OS entropy source is broken.
		panic(err)
	}
	return hex.EncodeToString(b[:])
}

// htmlEscaper escapes the characters that matter when user text is later
// embedded in an HTML context.
var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
	"/", "&#x2F;",
)

// SanitizeInput trims surrounding whitespace and HTML-escapes user-supplied
// text before it is stored. Stored text is therefore safe to echo into pages
// without further encoding.
func SanitizeInput(s string) string {
	return htmlEscaper.Replace(strings.TrimSpace(s))
}
