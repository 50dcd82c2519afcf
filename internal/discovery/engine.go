// Package discovery turns registered filesystem roots into tracked videos.
// Candidate files are classified by MIME type, identified by content hash,
// and reconciled against a playlist's existing records so that renamed or
// moved files keep their watch history.
package discovery

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"seriesmgr/internal/logger"
	"seriesmgr/internal/models"
	"seriesmgr/internal/playlist"
)

// ScanStatus represents the current state of a discovery scan
type ScanStatus string

// Discovery scan status constants
const (
	ScanStatusRunning   ScanStatus = "running"
	ScanStatusCompleted ScanStatus = "completed"
	ScanStatusCancelled ScanStatus = "cancelled"
)

// Common discovery errors
var (
	ErrScanAlreadyRunning = errors.New("a scan is already running for this playlist")
)

// DiscoveryObserver receives incremental notifications while a scan runs.
// Callbacks fire synchronously on the scanning goroutine; consumers marshal
// to their own thread.
type DiscoveryObserver interface {
	// OnVideoAdded fires for every newly materialized video record
	OnVideoAdded(pl *playlist.Playlist, v *models.VideoRecord)

	// OnVideoUpdated fires when an existing record was relocated to a new path
	OnVideoUpdated(pl *playlist.Playlist, v *models.VideoRecord)
}

// ScanProgress tracks the progress of one discovery scan
type ScanProgress struct {
	ScanID     string     `json:"scan_id"`
	Playlist   string     `json:"playlist"`
	Status     ScanStatus `json:"status"`
	Candidates int        `json:"candidates"`
	Added      int        `json:"added"`
	Relocated  int        `json:"relocated"`
	Duplicates int        `json:"duplicates"`
	mu         sync.RWMutex
}

// Snapshot returns a copy of the progress safe to read while the scan runs
func (sp *ScanProgress) Snapshot() ScanProgress {
	sp.mu.RLock()
	defer sp.mu.RUnlock()
	return ScanProgress{
		ScanID:     sp.ScanID,
		Playlist:   sp.Playlist,
		Status:     sp.Status,
		Candidates: sp.Candidates,
		Added:      sp.Added,
		Relocated:  sp.Relocated,
		Duplicates: sp.Duplicates,
	}
}

// Engine discovers video files under registered roots and reconciles them
// against playlist state. At most one scan runs per playlist at a time.
type Engine struct {
	fs     afero.Fs
	prober Prober
	hasher Hasher

	mu     sync.Mutex
	active map[string]*ScanProgress // playlist name -> progress
}

// NewEngine creates a discovery engine. A nil prober or hasher falls back to
// the content-based defaults.
func NewEngine(fs afero.Fs, prober Prober, hasher Hasher) *Engine {
	if prober == nil {
		prober = NewMimeProber(fs)
	}
	if hasher == nil {
		hasher = NewSHA256Hasher(fs)
	}
	return &Engine{
		fs:     fs,
		prober: prober,
		hasher: hasher,
		active: make(map[string]*ScanProgress),
	}
}

// IsVideoFile classifies a path as video by MIME type. When the file cannot
// be statted (missing target, unmounted drive) and forgiveBrokenLink is set,
// the path is optimistically kept as video; this is only used when trusting
// already cached rows so a temporarily absent drive does not purge history.
func (e *Engine) IsVideoFile(path string, forgiveBrokenLink bool) bool {
	if _, err := e.fs.Stat(path); err != nil {
		return forgiveBrokenLink
	}

	mime, err := e.prober.Classify(path)
	if err != nil {
		logger.Log.Debug().
			Str("path", path).
			Err(err).
			Msg("MIME probe failed")
		return false
	}
	return IsVideoMIME(mime)
}

// ListVideosUnder returns the video files under root, lexicographically
// sorted by full path. The result is empty when root does not exist or is
// not a directory. Recursive walks cover the full subtree; otherwise only
// direct children are listed.
func (e *Engine) ListVideosUnder(ctx context.Context, root string, recursive bool) ([]string, error) {
	info, err := e.fs.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, nil
	}

	var paths []string
	if recursive {
		err = afero.Walk(e.fs, root, func(path string, info os.FileInfo, err error) error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err != nil {
				logger.Log.Warn().
					Str("path", path).
					Err(err).
					Msg("Error during directory walk")
				return nil // continue walking
			}
			if info.IsDir() {
				return nil
			}
			if e.IsVideoFile(path, false) {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return paths, err
		}
	} else {
		entries, err := afero.ReadDir(e.fs, root)
		if err != nil {
			logger.Log.Warn().
				Str("root", root).
				Err(err).
				Msg("Failed to list directory")
			return nil, nil
		}
		for _, entry := range entries {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return paths, ctxErr
			}
			if entry.IsDir() {
				continue
			}
			full := filepath.Join(root, entry.Name())
			if e.IsVideoFile(full, false) {
				paths = append(paths, full)
			}
		}
	}

	sort.Strings(paths)
	return paths, nil
}

// Progress returns a snapshot of the most recent scan for a playlist
func (e *Engine) Progress(playlistName string) (ScanProgress, bool) {
	e.mu.Lock()
	progress, ok := e.active[playlistName]
	e.mu.Unlock()
	if !ok {
		return ScanProgress{}, false
	}
	return progress.Snapshot(), true
}

// Discover scans the given path specs (the playlist's registered paths when
// nil) and reconciles candidates against the playlist's current videos:
//
//   - a candidate already tracked under the same path is skipped;
//   - a candidate whose hash matches a record whose file still exists is a
//     true duplicate and skipped;
//   - a candidate whose hash matches a record whose file is gone is a
//     rename/move: the record's path is updated in place;
//   - anything else becomes a new record appended to the playlist.
//
// The observer, when non-nil, is notified synchronously per video. A second
// Discover call for the same playlist while one is running is rejected with
// ErrScanAlreadyRunning.
func (e *Engine) Discover(ctx context.Context, pl *playlist.Playlist, specs []*models.PlaylistPathSpec, obs DiscoveryObserver) (ScanProgress, error) {
	progress, err := e.beginScan(pl.Name())
	if err != nil {
		return ScanProgress{}, err
	}

	if specs == nil {
		specs = pl.Paths()
	}

	logger.Log.Info().
		Str("scan_id", progress.ScanID).
		Str("playlist", pl.Name()).
		Int("paths", len(specs)).
		Msg("Discovery started")

	// Lookup of hash -> record across the playlist's current videos. Kept in
	// sync as the scan mutates the playlist.
	byHash := make(map[string]*models.VideoRecord)
	knownPaths := make(map[string]bool)
	for _, v := range pl.Videos() {
		if v.Hash != "" {
			byHash[v.Hash] = v
		}
		knownPaths[v.Path] = true
	}

	for _, spec := range specs {
		if info, err := e.fs.Stat(spec.Path); err != nil || !info.IsDir() {
			logger.Log.Info().
				Str("playlist", pl.Name()).
				Str("path", spec.Path).
				Msg("Skipping missing discovery root")
			continue
		}

		candidates, err := e.ListVideosUnder(ctx, spec.Path, spec.Recursive)
		if err != nil {
			e.finishScan(progress, ScanStatusCancelled)
			return progress.Snapshot(), err
		}

		progress.mu.Lock()
		progress.Candidates += len(candidates)
		progress.mu.Unlock()

		for _, candidate := range candidates {
			if ctxErr := ctx.Err(); ctxErr != nil {
				e.finishScan(progress, ScanStatusCancelled)
				return progress.Snapshot(), ctxErr
			}

			if knownPaths[candidate] {
				continue // already tracked under this exact path
			}

			hash, err := e.hasher.Hash(candidate)
			if err != nil {
				logger.Log.Warn().
					Str("path", candidate).
					Err(err).
					Msg("Failed to hash candidate, skipping")
				continue
			}

			if existing := byHash[hash]; existing != nil {
				if existing.Exists(e.fs) {
					// Same content under a second path while the original is
					// still present: a copy, not a move
					logger.Log.Info().
						Str("playlist", pl.Name()).
						Str("path", candidate).
						Str("existing_path", existing.Path).
						Msg("Skipping duplicate of tracked video")
					progress.mu.Lock()
					progress.Duplicates++
					progress.mu.Unlock()
					continue
				}

				// The tracked file vanished and identical content appeared
				// elsewhere: the file was renamed or moved
				oldPath := existing.Path
				delete(knownPaths, oldPath)
				if err := pl.RelocateVideo(existing, candidate); err != nil {
					logger.Log.Warn().
						Str("playlist", pl.Name()).
						Str("path", candidate).
						Err(err).
						Msg("Failed to relocate video")
					continue
				}
				knownPaths[candidate] = true
				logger.Log.Info().
					Str("playlist", pl.Name()).
					Str("old_path", oldPath).
					Str("new_path", candidate).
					Msg("Relocated renamed video")
				progress.mu.Lock()
				progress.Relocated++
				progress.mu.Unlock()
				if obs != nil {
					obs.OnVideoUpdated(pl, existing)
				}
				continue
			}

			v := models.NewVideoRecord(candidate)
			v.Hash = hash
			v.IsNew = true
			if err := pl.AddVideo(v); err != nil {
				logger.Log.Warn().
					Str("playlist", pl.Name()).
					Str("path", candidate).
					Err(err).
					Msg("Failed to add discovered video")
				continue
			}
			byHash[hash] = v
			knownPaths[candidate] = true
			progress.mu.Lock()
			progress.Added++
			progress.mu.Unlock()
			if obs != nil {
				obs.OnVideoAdded(pl, v)
			}
		}
	}

	e.finishScan(progress, ScanStatusCompleted)
	return progress.Snapshot(), nil
}

// beginScan registers a scan for a playlist, rejecting a second concurrent one
func (e *Engine) beginScan(playlistName string) (*ScanProgress, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if existing, ok := e.active[playlistName]; ok {
		existing.mu.RLock()
		running := existing.Status == ScanStatusRunning
		existing.mu.RUnlock()
		if running {
			return nil, ErrScanAlreadyRunning
		}
	}

	progress := &ScanProgress{
		ScanID:   uuid.New().String(),
		Playlist: playlistName,
		Status:   ScanStatusRunning,
	}
	e.active[playlistName] = progress
	return progress, nil
}

// finishScan records the terminal status of a scan
func (e *Engine) finishScan(progress *ScanProgress, status ScanStatus) {
	progress.mu.Lock()
	progress.Status = status
	progress.mu.Unlock()

	snapshot := progress.Snapshot()
	logger.Log.Info().
		Str("scan_id", snapshot.ScanID).
		Str("playlist", snapshot.Playlist).
		Str("status", string(status)).
		Int("candidates", snapshot.Candidates).
		Int("added", snapshot.Added).
		Int("relocated", snapshot.Relocated).
		Int("duplicates", snapshot.Duplicates).
		Msg("Discovery finished")
}
