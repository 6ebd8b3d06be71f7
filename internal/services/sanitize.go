package services

import (
	"path/filepath"
	"strings"
	"unicode"
)

// sanitizeStem turns an uploaded filename into a safe artifact stem: the
// directory and extension are dropped, whitespace becomes '_' and every
// rune outside [A-Za-z0-9._-] is removed.
func sanitizeStem(filename string) string {
	name := filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	name = strings.TrimSuffix(name, filepath.Ext(name))

	var b strings.Builder
	for _, r := range name {
		switch {
		case unicode.IsSpace(r):
			b.WriteByte('_')
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '-' || r == '_'):
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "._")
}
