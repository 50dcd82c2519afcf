package models

import (
	"path/filepath"
	"strings"
)

// PlaylistPathSpec is a filesystem root registered under a playlist. The
// normalized path string is its identity within the playlist; the owning
// playlist replaces the whole entry when the path changes.
type PlaylistPathSpec struct {
	Path      string
	Recursive bool

	// AutoDiscover triggers a scan of this root on startup
	AutoDiscover bool
}

// NewPlaylistPathSpec creates a spec with a normalized directory path
// (trailing separators stripped)
func NewPlaylistPathSpec(path string, recursive, autoDiscover bool) *PlaylistPathSpec {
	return &PlaylistPathSpec{
		Path:         NormalizePath(path),
		Recursive:    recursive,
		AutoDiscover: autoDiscover,
	}
}

// NormalizePath cleans a directory path and strips trailing separators
func NormalizePath(path string) string {
	return filepath.Clean(path)
}

// ContainsDir reports whether a directory falls under this spec: an exact
// match always, descendants only when the spec is recursive.
func (s *PlaylistPathSpec) ContainsDir(dir string) bool {
	dir = NormalizePath(dir)
	if dir == s.Path {
		return true
	}
	return s.Recursive && IsSubPath(s.Path, dir)
}

// IsSubPath reports whether child is strictly below parent
func IsSubPath(parent, child string) bool {
	parent = NormalizePath(parent)
	child = NormalizePath(child)
	if parent == child {
		return false
	}
	if parent == string(filepath.Separator) {
		return strings.HasPrefix(child, parent)
	}
	return strings.HasPrefix(child, parent+string(filepath.Separator))
}
