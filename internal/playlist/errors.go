package playlist

import "errors"

// Custom playlist errors
var (
	// ErrDuplicatePath indicates the path is already registered on the playlist
	ErrDuplicatePath = errors.New("path already registered")

	// ErrPathOverlap indicates the path would double-count files already
	// covered by (or covering) another registered recursive root
	ErrPathOverlap = errors.New("path overlaps a registered recursive path")

	// ErrPathNotFound indicates the path is not registered on the playlist
	ErrPathNotFound = errors.New("path not registered")

	// ErrDuplicateHash indicates a video with the same content hash already exists
	ErrDuplicateHash = errors.New("video with identical content already tracked")

	// ErrVideoNotFound indicates the video does not belong to the playlist
	ErrVideoNotFound = errors.New("video not found in playlist")

	// ErrIndexOutOfRange indicates a reorder index outside the video list
	ErrIndexOutOfRange = errors.New("index out of range")
)

// IsDuplicatePath checks if the error is a duplicate path error
func IsDuplicatePath(err error) bool {
	return errors.Is(err, ErrDuplicatePath)
}

// IsPathOverlap checks if the error is a path containment conflict
func IsPathOverlap(err error) bool {
	return errors.Is(err, ErrPathOverlap)
}

// IsDuplicateHash checks if the error is a duplicate content hash error
func IsDuplicateHash(err error) bool {
	return errors.Is(err, ErrDuplicateHash)
}
