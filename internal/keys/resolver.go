package keys

import (
	"path/filepath"
	"strings"
)

// Naming controls how a local file path is mapped to a destination key.
type Naming struct {
	// PrefixBlob, when set, overrides everything: every file resolves to
	// this exact key. In a multi-file batch all uploads collapse onto one
	// object and the last finished upload wins. This matches the historical
	// behavior; set it only for deliberate single-object batches.
	PrefixBlob string

	// SubPath prepends a remote directory and keeps the last SuffixDepth
	// components of the local path.
	SubPath string

	// SuffixDepth is the number of trailing path components to keep when
	// SubPath is set. Paths with fewer components keep all of them.
	SuffixDepth int
}

// Resolve maps a local file path to a destination key. It is a pure
// function: no filesystem access, identical inputs always produce the same
// key. Keys use forward slashes regardless of host OS.
//
// Priority: PrefixBlob > SubPath+SuffixDepth > base name.
func Resolve(path string, n Naming) string {
	if n.PrefixBlob != "" {
		return n.PrefixBlob
	}

	if n.SubPath != "" && n.SuffixDepth > 0 {
		parts := splitComponents(path)
		if len(parts) > n.SuffixDepth {
			parts = parts[len(parts)-n.SuffixDepth:]
		}
		return n.SubPath + "/" + strings.Join(parts, "/")
	}

	return filepath.Base(path)
}

// splitComponents splits a path into its non-empty components.
func splitComponents(path string) []string {
	slashed := filepath.ToSlash(path)
	var parts []string
	for _, p := range strings.Split(slashed, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}
