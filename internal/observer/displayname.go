// Package observer provides platform foreground-process observers and the
// display-name resolver used by the storage layer.
package observer

import (
	"path/filepath"
	"strings"
	"unicode"
)

// DisplayNameFromExe derives a user-facing name from an executable path.
// Best effort; returns "" when nothing sensible can be derived. It never
// touches the file itself, so it is safe on the session write path.
func DisplayNameFromExe(exePath string) string {
	if strings.TrimSpace(exePath) == "" {
		return ""
	}

	base := filepath.Base(strings.ReplaceAll(exePath, `\`, `/`))
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" || stem == "." || stem == "/" {
		return ""
	}

	// "google-chrome" or "notepad_plus" read better with separators as
	// spaces and the first letter of each word capitalized.
	words := strings.FieldsFunc(stem, func(r rune) bool {
		return r == '-' || r == '_' || r == '.'
	})
	if len(words) == 0 {
		return ""
	}

	for i, w := range words {
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
