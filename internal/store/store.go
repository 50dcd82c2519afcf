// Package store persists playlists to the pipe-delimited flat-file format:
// one .cfg file per playlist under the data directory, a settings header on
// line 1, the registered paths on line 2, and one line per video after that.
// Loading is best effort: a malformed field or row never aborts the file.
package store

import (
	"bufio"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"seriesmgr/internal/logger"
	"seriesmgr/internal/models"
	"seriesmgr/internal/playlist"
)

const (
	playlistExtension = ".cfg"
	iconExtension     = ".png"
)

// Prober classifies a file by MIME type; satisfied by discovery.MimeProber
type Prober interface {
	Classify(path string) (string, error)
}

// Hasher computes a file's content hash; satisfied by discovery.SHA256Hasher
type Hasher interface {
	Hash(path string) (string, error)
}

// OnVideoLoaded is invoked synchronously for every video materialized from a
// cached row, for incremental list population
type OnVideoLoaded func(pl *playlist.Playlist, v *models.VideoRecord)

// LoadResult carries a hydrated playlist plus everything recovered along the
// way
type LoadResult struct {
	Playlist      *playlist.Playlist
	IconExtension string
	Issues        []ParseIssue

	// Legacy is set when the file used the single-path layout; the playlist
	// has been upgraded in memory and the next save writes the current layout
	Legacy bool
}

// Store reads and writes playlist files in a data directory
type Store struct {
	fs     afero.Fs
	dir    string
	prober Prober
	hasher Hasher
}

// New creates a store rooted at dir
func New(fs afero.Fs, dir string, prober Prober, hasher Hasher) *Store {
	return &Store{fs: fs, dir: dir, prober: prober, hasher: hasher}
}

// Dir returns the data directory
func (s *Store) Dir() string {
	return s.dir
}

// FilePath returns the backing file path for a playlist name
func (s *Store) FilePath(name string) string {
	return filepath.Join(s.dir, name+playlistExtension)
}

// IconPath returns the icon file path for a playlist name
func (s *Store) IconPath(name string) string {
	return filepath.Join(s.dir, name+iconExtension)
}

// Exists reports whether a playlist file is present
func (s *Store) Exists(name string) bool {
	_, err := s.fs.Stat(s.FilePath(name))
	return err == nil
}

// List returns the names of all persisted playlists, sorted
func (s *Store) List() ([]string, error) {
	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read data directory %s: %w", s.dir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, playlistExtension) {
			continue
		}
		names = append(names, strings.TrimSuffix(name, playlistExtension))
	}
	sort.Strings(names)
	return names, nil
}

// Load hydrates a playlist from its backing file. A missing file yields an
// empty playlist (first run). Rows are parsed defensively; rejected rows and
// defaulted fields are reported as issues, never as errors.
func (s *Store) Load(name string, onLoaded OnVideoLoaded) (*LoadResult, error) {
	pl := playlist.New(name, s.fs)
	pl.SetStatus(playlist.StatusLoading)
	result := &LoadResult{Playlist: pl}

	f, err := s.fs.Open(s.FilePath(name))
	if err != nil {
		// First run: nothing cached yet
		pl.SetStatus(playlist.StatusLoaded)
		return result, nil
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	seenHashes := make(map[string]bool)
	var hdr header

	for scanner.Scan() {
		lineNo++
		line := scanner.Text()

		if lineNo == 1 {
			hdr = parseHeader(line, &result.Issues)
			s.applyHeader(pl, hdr, result)
			continue
		}
		if lineNo == 2 && !hdr.legacy {
			for _, spec := range parsePathSpecs(line, &result.Issues) {
				if err := pl.AddPath(spec); err != nil {
					result.Issues = append(result.Issues, ParseIssue{
						Line: lineNo, Field: "path",
						Message: fmt.Sprintf("dropped path %s: %v", spec.Path, err),
					})
				}
			}
			continue
		}

		s.loadVideoRow(pl, line, lineNo, seenHashes, result, onLoaded)
	}
	if err := scanner.Err(); err != nil {
		return result, fmt.Errorf("failed to read playlist file for %s: %w", name, err)
	}

	pl.SetStatus(playlist.StatusLoaded)
	logger.Log.Debug().
		Str("playlist", name).
		Int("videos", pl.VideoCount()).
		Int("issues", len(result.Issues)).
		Bool("legacy", result.Legacy).
		Msg("Playlist loaded")
	return result, nil
}

// applyHeader copies decoded settings onto the playlist and upgrades the
// legacy single-path layout to a path spec
func (s *Store) applyHeader(pl *playlist.Playlist, hdr header, result *LoadResult) {
	pl.SetRandom(hdr.random)
	pl.SetKeepPlaying(hdr.keepPlaying)
	pl.SetStartAt(hdr.startAt)
	pl.SetAudioTrack(hdr.audioTrack)
	pl.SetSubtitlesTrack(hdr.subtitlesTrack)
	pl.SetLastPlayedHash(hdr.lastPlayedHash)
	result.IconExtension = hdr.iconExtension

	if hdr.legacy {
		result.Legacy = true
		spec := models.NewPlaylistPathSpec(hdr.legacyPath, false, true)
		if err := pl.AddPath(spec); err != nil {
			result.Issues = append(result.Issues, ParseIssue{
				Line: 1, Field: "path",
				Message: fmt.Sprintf("dropped legacy path %s: %v", spec.Path, err),
			})
		}
		logger.Log.Info().
			Str("playlist", pl.Name()).
			Str("path", spec.Path).
			Msg("Upgraded legacy single-path playlist file")
	}
}

// loadVideoRow parses, validates, and appends one cached video row
func (s *Store) loadVideoRow(pl *playlist.Playlist, line string, lineNo int, seenHashes map[string]bool, result *LoadResult, onLoaded OnVideoLoaded) {
	row, ok := parseVideoRow(line, lineNo, &result.Issues)
	if !ok {
		if strings.TrimSpace(line) != "" {
			result.Issues = append(result.Issues, ParseIssue{Line: lineNo, Field: "row", Message: "not a video row, skipped"})
		}
		return
	}

	// Cheap rejections first so we never hash a row that will be dropped
	if row.path == "" {
		result.Issues = append(result.Issues, ParseIssue{Line: lineNo, Field: "path", Message: "empty path, row dropped"})
		return
	}
	if !strings.ContainsRune(row.path, filepath.Separator) {
		result.Issues = append(result.Issues, ParseIssue{Line: lineNo, Field: "path", Message: "path has no directory separator, row dropped"})
		return
	}
	if exists(s.fs, row.path) && !s.isVideo(row.path) {
		result.Issues = append(result.Issues, ParseIssue{Line: lineNo, Field: "path", Message: "file is not a video, row dropped"})
		return
	}

	hash := row.hash
	if !hashUsable(hash) && exists(s.fs, row.path) {
		// Recompute lazily, only after all cheaper checks passed
		recomputed, err := s.hasher.Hash(row.path)
		if err != nil {
			result.Issues = append(result.Issues, ParseIssue{Line: lineNo, Field: "hash", Message: fmt.Sprintf("failed to recompute hash: %v", err)})
		} else {
			hash = recomputed
		}
	}
	if hash != "" && hashUsable(hash) {
		if seenHashes[hash] {
			// First occurrence wins
			result.Issues = append(result.Issues, ParseIssue{Line: lineNo, Field: "hash", Message: "duplicate hash, row dropped"})
			return
		}
		seenHashes[hash] = true
	} else {
		hash = ""
	}

	v := models.NewVideoRecord(row.path)
	if row.name != "" {
		v.Name = row.name
	}
	if err := v.SetPosition(row.position); err != nil {
		result.Issues = append(result.Issues, ParseIssue{Line: lineNo, Field: "position", Message: "rejected position, keeping 0"})
	}
	v.Ignore = row.ignore
	v.Hash = hash

	if err := pl.AddVideo(v); err != nil {
		result.Issues = append(result.Issues, ParseIssue{Line: lineNo, Field: "row", Message: fmt.Sprintf("row dropped: %v", err)})
		return
	}
	if onLoaded != nil {
		onLoaded(pl, v)
	}
}

// Save regenerates the whole playlist file from in-memory state. The write
// goes through a temp file and an atomic rename so a crash mid-write cannot
// truncate the playlist; I/O errors propagate to the caller.
func (s *Store) Save(pl *playlist.Playlist, iconExt string) error {
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory %s: %w", s.dir, err)
	}

	tmp, err := afero.TempFile(s.fs, s.dir, "."+pl.Name()+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", pl.Name(), err)
	}
	tmpName := tmp.Name()

	w := bufio.NewWriter(tmp)
	writeErr := s.write(w, pl, iconExt)
	if writeErr == nil {
		writeErr = w.Flush()
	}
	if closeErr := tmp.Close(); writeErr == nil {
		writeErr = closeErr
	}
	if writeErr != nil {
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("failed to write playlist file for %s: %w", pl.Name(), writeErr)
	}

	if err := s.fs.Rename(tmpName, s.FilePath(pl.Name())); err != nil {
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("failed to replace playlist file for %s: %w", pl.Name(), err)
	}

	logger.Log.Debug().
		Str("playlist", pl.Name()).
		Int("videos", pl.VideoCount()).
		Msg("Playlist saved")
	return nil
}

func (s *Store) write(w *bufio.Writer, pl *playlist.Playlist, iconExt string) error {
	if _, err := fmt.Fprintln(w, encodeHeader(pl, iconExt)); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, encodePathSpecs(pl.Paths())); err != nil {
		return err
	}
	for _, v := range pl.Videos() {
		if _, err := fmt.Fprintln(w, encodeVideoRow(v)); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes a playlist's backing file and icon (when present)
func (s *Store) Delete(name string) error {
	if err := s.fs.Remove(s.FilePath(name)); err != nil {
		return fmt.Errorf("failed to delete playlist file for %s: %w", name, err)
	}
	if exists(s.fs, s.IconPath(name)) {
		if err := s.fs.Remove(s.IconPath(name)); err != nil {
			return fmt.Errorf("failed to delete playlist icon for %s: %w", name, err)
		}
	}
	return nil
}

// Rename moves a playlist's backing file and icon to a new name
func (s *Store) Rename(oldName, newName string) error {
	if err := s.fs.Rename(s.FilePath(oldName), s.FilePath(newName)); err != nil {
		return fmt.Errorf("failed to rename playlist file %s: %w", oldName, err)
	}
	if exists(s.fs, s.IconPath(oldName)) {
		if err := s.fs.Rename(s.IconPath(oldName), s.IconPath(newName)); err != nil {
			return fmt.Errorf("failed to rename playlist icon %s: %w", oldName, err)
		}
	}
	return nil
}

// isVideo reports whether an existing file classifies as video
func (s *Store) isVideo(path string) bool {
	mime, err := s.prober.Classify(path)
	if err != nil {
		logger.Log.Debug().
			Str("path", path).
			Err(err).
			Msg("MIME probe failed during load")
		return false
	}
	return strings.HasPrefix(mime, "video/")
}

func exists(fs afero.Fs, path string) bool {
	_, err := fs.Stat(path)
	return err == nil
}
