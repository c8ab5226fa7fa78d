package relay

import (
	"path"
	"strings"
	"unicode"
	"unicode/utf8"
)

// maxNameBytes keeps token + "_" + name under common filesystem limits.
const maxNameBytes = 200

// SanitizeName reduces a client-supplied filename to a single safe path
// component. Directory parts, control characters and dot names are dropped.
func SanitizeName(name string) string {
	name = strings.ToValidUTF8(name, "")
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}

	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)

	if name == "" || name == "." || name == ".." {
		return PlaceholderName
	}
	return truncateName(name, maxNameBytes)
}

// truncateName shortens name to at most limit bytes, keeping the extension
// when it is short enough to matter.
func truncateName(name string, limit int) string {
	if len(name) <= limit {
		return name
	}

	ext := path.Ext(name)
	if len(ext) >= limit/4 {
		ext = ""
	}
	stem := name[:len(name)-len(ext)]
	stem = cutUTF8(stem, limit-len(ext))
	return stem + ext
}

func cutUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// StorageKey derives the on-disk key for a sanitized name.
func StorageKey(token, name string) string {
	return token + "_" + name
}
