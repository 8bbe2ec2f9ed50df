package sandbox

import (
	"path/filepath"
	"strings"
)

// Whitelist is a set of permitted file extensions, stored without the dot.
type Whitelist map[string]struct{}

// NewWhitelist builds a whitelist from extensions given with or without a
// leading dot. Matching is exact and case-sensitive.
func NewWhitelist(extensions []string) Whitelist {
	w := make(Whitelist, len(extensions))
	for _, ext := range extensions {
		ext = strings.TrimPrefix(ext, ".")
		if ext != "" {
			w[ext] = struct{}{}
		}
	}
	return w
}

// Allows reports whether path has a whitelisted extension. A base name that
// is only a dot plus an extension (".txt") has no extension.
func (w Whitelist) Allows(path string) bool {
	base := filepath.Base(path)
	dot := strings.LastIndexByte(base, '.')
	if dot <= 0 || dot == len(base)-1 {
		return false
	}
	_, ok := w[base[dot+1:]]
	return ok
}
