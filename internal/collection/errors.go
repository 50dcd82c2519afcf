package collection

import "errors"

// Custom collection errors
var (
	// ErrPlaylistNotFound indicates the named playlist is not in the collection
	ErrPlaylistNotFound = errors.New("playlist not found")

	// ErrDuplicateName indicates a playlist with the same name already exists
	ErrDuplicateName = errors.New("playlist name already exists")

	// ErrInvalidName indicates the playlist name is empty or contains a
	// character reserved by the persisted format
	ErrInvalidName = errors.New("invalid playlist name")
)

// IsDuplicateName checks if the error is a duplicate playlist name error
func IsDuplicateName(err error) bool {
	return errors.Is(err, ErrDuplicateName)
}

// IsNotFound checks if the error is a playlist not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPlaylistNotFound)
}
