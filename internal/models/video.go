// Package models defines the core entities tracked by a playlist: video
// records and registered filesystem roots.
package models

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// EndThreshold is the normalized position at or beyond which a video counts
// as fully played.
const EndThreshold = 0.999

// maxNameExtLen is the longest extension (without the dot) that is split off
// when deriving a display name. Longer "extensions" are part of the name.
const maxNameExtLen = 4

// ErrPositionOutOfRange indicates a playback position outside [0, 1)
var ErrPositionOutOfRange = errors.New("position must be in [0, 1)")

// PlayOrder identifies which playback order a seen flag belongs to
type PlayOrder int

// Playback orders
const (
	OrderSequential PlayOrder = iota
	OrderRandom
)

// VideoRecord represents one tracked media file and its watch state.
// GUID is a dense 1..N sequence position within the owning playlist,
// recomputed by the playlist whenever its ordered list changes.
type VideoRecord struct {
	Path string
	Name string
	GUID int
	Hash string

	// Ignore hides the video from playback and from missing accounting
	Ignore bool

	// IsNew is transient: set when the video was discovered this session,
	// never persisted
	IsNew bool

	// SeenSequential and SeenRandom are tracked independently so that
	// alternating playback orders does not lose progress in either
	SeenSequential bool
	SeenRandom     bool

	position float64
}

// NewVideoRecord creates a record for the given file path with a derived
// display name and zero watch state.
func NewVideoRecord(path string) *VideoRecord {
	return &VideoRecord{
		Path: path,
		Name: DisplayName(path),
	}
}

// DisplayName derives a human-readable name from a file path: the basename
// with its extension stripped when the extension is short enough to be a real
// one. Dotfiles and long "extensions" keep the full basename.
func DisplayName(path string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	if ext == "" {
		return base
	}
	stem := strings.TrimSuffix(base, ext)
	if stem == "" || len(ext)-1 > maxNameExtLen {
		return base
	}
	return stem
}

// Position returns the normalized playback position in [0, 1)
func (v *VideoRecord) Position() float64 {
	return v.position
}

// SetPosition updates the playback position. Out-of-range values are
// rejected and the previous value retained.
func (v *VideoRecord) SetPosition(p float64) error {
	if p < 0 || p >= 1 {
		return ErrPositionOutOfRange
	}
	v.position = p
	return nil
}

// Played reports whether the video has been watched to the end
func (v *VideoRecord) Played() bool {
	return v.position >= EndThreshold
}

// SeenIn reports whether the video counts as seen for the given playback
// order. A fully played position marks it seen in every order.
func (v *VideoRecord) SeenIn(order PlayOrder) bool {
	if v.Played() {
		return true
	}
	if order == OrderRandom {
		return v.SeenRandom
	}
	return v.SeenSequential
}

// MarkPlayed sets the end sentinel position and the seen flag for the given
// playback order
func (v *VideoRecord) MarkPlayed(order PlayOrder) {
	v.position = EndThreshold
	if order == OrderRandom {
		v.SeenRandom = true
		return
	}
	v.SeenSequential = true
}

// ResetWatched clears the position and both seen flags
func (v *VideoRecord) ResetWatched() {
	v.position = 0
	v.SeenSequential = false
	v.SeenRandom = false
}

// Exists checks live against the filesystem whether the file is present.
// Existence is never cached.
func (v *VideoRecord) Exists(fs afero.Fs) bool {
	_, err := fs.Stat(v.Path)
	return err == nil
}

// Dir returns the directory containing the video file
func (v *VideoRecord) Dir() string {
	return filepath.Dir(v.Path)
}
