// Package sandbox maps host-supplied identifiers to filesystem paths confined
// below a fixed root, rejecting anything that escapes the root, names a
// directory, or carries an extension outside the whitelist.
package sandbox

import (
	"os"
	"path/filepath"
	"strings"
)

// Validator resolves identifiers under Root. It holds no mutable state and is
// safe for concurrent use.
type Validator struct {
	root      string
	whitelist Whitelist
}

// New creates a validator rooted at root. The root is cleaned but not made
// absolute, so relative roots resolve against the working directory at
// write time.
func New(root string, whitelist Whitelist) *Validator {
	return &Validator{
		root:      filepath.Clean(root),
		whitelist: whitelist,
	}
}

// Root returns the cleaned sandbox root.
func (v *Validator) Root() string { return v.root }

// Validate returns the sandboxed path for id, or false when id must be
// rejected.
func (v *Validator) Validate(id string) (string, bool) {
	if id == "" || strings.HasSuffix(id, "/") || strings.HasSuffix(id, `\`) {
		return "", false
	}

	// Backslashes are separators for hosts that came from Windows
	// conventions; normalise before joining so ..\ cannot slip through.
	rel := strings.ReplaceAll(id, `\`, "/")
	path := filepath.Join(v.root, filepath.FromSlash(rel))

	if !v.within(path) {
		return "", false
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return "", false
	}
	if !v.whitelist.Allows(path) {
		return "", false
	}
	return path, true
}

// within reports whether the cleaned path lies strictly below the root.
func (v *Validator) within(path string) bool {
	rel, err := filepath.Rel(v.root, path)
	if err != nil {
		return false
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	return !filepath.IsAbs(rel)
}
