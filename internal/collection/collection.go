// Package collection owns the set of loaded playlists and the current
// playback pointer. It replaces the process-wide registry of the original
// design: the entry point constructs one Collection and passes it to
// whatever needs to enumerate playlists.
package collection

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"seriesmgr/internal/logger"
	"seriesmgr/internal/models"
	"seriesmgr/internal/playlist"
	"seriesmgr/internal/store"
)

// reservedNameChars may not appear in playlist names: the pipe is the
// persisted field separator and the slash would escape the data directory
const reservedNameChars = "|/"

// Collection is the set of loaded playlists plus the current playback pointer
type Collection struct {
	fs    afero.Fs
	store *store.Store

	mu        sync.RWMutex
	playlists map[string]*playlist.Playlist
	icons     map[string]string // playlist name -> icon extension
	current   string
}

// New creates an empty collection backed by the given store
func New(fs afero.Fs, st *store.Store) *Collection {
	return &Collection{
		fs:        fs,
		store:     st,
		playlists: make(map[string]*playlist.Playlist),
		icons:     make(map[string]string),
	}
}

// LoadAll hydrates every persisted playlist in the data directory. A corrupt
// file still loads best effort; its recovered issues are logged.
func (c *Collection) LoadAll(onLoaded store.OnVideoLoaded) error {
	names, err := c.store.List()
	if err != nil {
		return fmt.Errorf("failed to enumerate playlists: %w", err)
	}

	loaded := 0
	for _, name := range names {
		result, err := c.store.Load(name, onLoaded)
		if err != nil {
			logger.Log.Error().
				Err(err).
				Str("playlist", name).
				Msg("Failed to load playlist")
			continue
		}
		for _, issue := range result.Issues {
			logger.Log.Warn().
				Str("playlist", name).
				Str("issue", issue.String()).
				Msg("Recovered playlist parse issue")
		}

		c.mu.Lock()
		c.playlists[name] = result.Playlist
		c.icons[name] = result.IconExtension
		c.mu.Unlock()
		loaded++

		// One-way migration: a legacy file is rewritten in the current
		// layout as soon as it has been upgraded in memory
		if result.Legacy {
			if err := c.Save(name); err != nil {
				logger.Log.Error().
					Err(err).
					Str("playlist", name).
					Msg("Failed to rewrite upgraded legacy playlist")
			}
		}
	}

	logger.Log.Info().
		Int("playlists", loaded).
		Msg("Playlists loaded")
	return nil
}

// Names returns the loaded playlist names, sorted
func (c *Collection) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.playlists))
	for name := range c.playlists {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns a loaded playlist by name
func (c *Collection) Get(name string) (*playlist.Playlist, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	pl, ok := c.playlists[name]
	if !ok {
		return nil, ErrPlaylistNotFound
	}
	return pl, nil
}

// Create adds a new empty playlist and persists it immediately so the name
// is claimed on disk even if the process crashes
func (c *Collection) Create(name string) (*playlist.Playlist, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if _, exists := c.playlists[name]; exists {
		c.mu.Unlock()
		return nil, ErrDuplicateName
	}
	if c.store.Exists(name) {
		c.mu.Unlock()
		return nil, ErrDuplicateName
	}
	pl := playlist.New(name, c.fs)
	pl.SetStatus(playlist.StatusLoaded)
	c.playlists[name] = pl
	c.icons[name] = ""
	c.mu.Unlock()

	if err := c.Save(name); err != nil {
		return nil, err
	}

	logger.Log.Info().
		Str("playlist", name).
		Msg("Playlist created")
	return pl, nil
}

// Rename moves a playlist (and its backing file and icon) to a new name
func (c *Collection) Rename(oldName, newName string) error {
	if err := validateName(newName); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	pl, ok := c.playlists[oldName]
	if !ok {
		return ErrPlaylistNotFound
	}
	if _, exists := c.playlists[newName]; exists || c.store.Exists(newName) {
		return ErrDuplicateName
	}

	if err := c.store.Rename(oldName, newName); err != nil {
		return err
	}

	renamed := playlist.New(newName, c.fs)
	copySettings(renamed, pl)
	for _, spec := range pl.Paths() {
		_ = renamed.AddPath(spec) // invariants already held on the source
	}
	for _, v := range pl.Videos() {
		_ = renamed.AddVideo(v)
	}

	delete(c.playlists, oldName)
	c.playlists[newName] = renamed
	c.icons[newName] = c.icons[oldName]
	delete(c.icons, oldName)
	if c.current == oldName {
		c.current = newName
	}

	logger.Log.Info().
		Str("old_name", oldName).
		Str("new_name", newName).
		Msg("Playlist renamed")
	return nil
}

// Delete removes a playlist from the collection and from disk
func (c *Collection) Delete(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.playlists[name]; !ok {
		return ErrPlaylistNotFound
	}
	if err := c.store.Delete(name); err != nil {
		return err
	}
	delete(c.playlists, name)
	delete(c.icons, name)
	if c.current == name {
		c.current = ""
	}

	logger.Log.Info().
		Str("playlist", name).
		Msg("Playlist deleted")
	return nil
}

// Save persists one playlist
func (c *Collection) Save(name string) error {
	c.mu.RLock()
	pl, ok := c.playlists[name]
	iconExt := c.icons[name]
	c.mu.RUnlock()

	if !ok {
		return ErrPlaylistNotFound
	}
	return c.store.Save(pl, iconExt)
}

// SaveAll persists every loaded playlist, continuing past individual
// failures and returning them joined
func (c *Collection) SaveAll() error {
	var errs []error
	for _, name := range c.Names() {
		if err := c.Save(name); err != nil {
			logger.Log.Error().
				Err(err).
				Str("playlist", name).
				Msg("Failed to save playlist")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SetCurrent records which playlist playback is pointed at
func (c *Collection) SetCurrent(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.playlists[name]; !ok {
		return ErrPlaylistNotFound
	}
	c.current = name
	return nil
}

// Current returns the playlist playback is pointed at, or nil
func (c *Collection) Current() *playlist.Playlist {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == "" {
		return nil
	}
	return c.playlists[c.current]
}

// ResumeVideo returns the last-played video of the current playlist, located
// by content hash so the pointer survives reorders and renames
func (c *Collection) ResumeVideo() *models.VideoRecord {
	pl := c.Current()
	if pl == nil {
		return nil
	}
	return pl.FindByHash(pl.LastPlayedHash())
}

// copySettings copies playback settings between playlists
func copySettings(dst, src *playlist.Playlist) {
	dst.SetRandom(src.Random())
	dst.SetKeepPlaying(src.KeepPlaying())
	dst.SetStartAt(src.StartAt())
	dst.SetAudioTrack(src.AudioTrack())
	dst.SetSubtitlesTrack(src.SubtitlesTrack())
	dst.SetLastPlayedHash(src.LastPlayedHash())
	dst.SetStatus(src.Status())
}

// validateName rejects empty names and names containing reserved characters
func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrInvalidName
	}
	if strings.ContainsAny(name, reservedNameChars) {
		return ErrInvalidName
	}
	return nil
}
