package library

import (
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MaxFileNameBytes bounds sanitized file names, extension included
const MaxFileNameBytes = 200

const illegalFileNameChars = `<>:"/\|?*`

// SanitizeFileName strips characters that are illegal on common filesystems, NFC-normalizes
// the name and truncates the stem so the whole name fits MaxFileNameBytes.
func SanitizeFileName(name string) string {
	name = norm.NFC.String(filepath.Base(name))

	clean := strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f || strings.ContainsRune(illegalFileNameChars, r) {
			return -1
		}
		return r
	}, name)

	ext := filepath.Ext(clean)
	stem := strings.TrimRightFunc(strings.TrimSuffix(clean, ext), func(r rune) bool {
		return r == '.' || unicode.IsSpace(r)
	})
	stem = strings.TrimLeftFunc(stem, unicode.IsSpace)
	if stem == "" {
		stem = "media"
	}

	if len(ext) > MaxFileNameBytes/2 {
		ext = ""
	}
	for len(stem)+len(ext) > MaxFileNameBytes {
		_, size := utf8.DecodeLastRuneInString(stem)
		stem = stem[:len(stem)-size]
	}
	return stem + ext
}

// extOf returns the extension of name including the dot, or "" for dotfiles
func extOf(name string) string {
	ext := filepath.Ext(name)
	if ext == name {
		return ""
	}
	return ext
}

// SameFileName compares two names after sanitization, ignoring case
func SameFileName(a, b string) bool {
	return strings.EqualFold(SanitizeFileName(a), SanitizeFileName(b))
}
