// Package watcher triggers rediscovery when files change under the
// auto-discover roots of loaded playlists. Events are debounced so a burst
// of writes (a download finishing, a bulk copy) causes one rescan. Roots
// that cannot be watched with fsnotify are polled on an interval instead.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"seriesmgr/internal/discovery"
	"seriesmgr/internal/logger"
	"seriesmgr/internal/models"
	"seriesmgr/internal/playlist"
)

const (
	defaultDebounceWindow = 2 * time.Second
	defaultPollInterval   = 30 * time.Second
)

// ErrStopped indicates the watcher has already been stopped
var ErrStopped = errors.New("watcher has been stopped")

// Discoverer runs a discovery scan for a playlist; satisfied by
// discovery.Engine
type Discoverer interface {
	Discover(ctx context.Context, pl *playlist.Playlist, specs []*models.PlaylistPathSpec, obs discovery.DiscoveryObserver) (discovery.ScanProgress, error)
}

// Watcher rescans playlists when their auto-discover roots change
type Watcher struct {
	engine   Discoverer
	observer discovery.DiscoveryObserver
	debounce time.Duration

	fsw      *fsnotify.Watcher // nil when fsnotify is unavailable
	stopChan chan struct{}
	done     chan struct{}

	mu        sync.Mutex
	roots     map[string]*playlist.Playlist // watched dir -> owning playlist
	recursive map[string]*playlist.Playlist // recursive root -> owning playlist
	pending   map[*playlist.Playlist]time.Time
	stopped   bool

	// pollSet holds playlists whose roots could not be watched; they are
	// rescanned on pollInterval instead of on events
	pollSet      map[*playlist.Playlist]bool
	pollInterval time.Duration
	lastPoll     time.Time
}

// New creates a watcher that triggers scans through the given engine. The
// observer may be nil. A non-positive debounce falls back to the default.
// When fsnotify cannot be initialized the watcher still works, polling every
// registered playlist's roots instead of reacting to events.
func New(engine Discoverer, obs discovery.DiscoveryObserver, debounce time.Duration) (*Watcher, error) {
	if engine == nil {
		return nil, fmt.Errorf("discovery engine cannot be nil")
	}
	if debounce <= 0 {
		debounce = defaultDebounceWindow
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Log.Warn().
			Err(err).
			Msg("fsnotify unavailable, falling back to polling")
		fsw = nil
	}

	return &Watcher{
		engine:       engine,
		observer:     obs,
		debounce:     debounce,
		fsw:          fsw,
		stopChan:     make(chan struct{}),
		done:         make(chan struct{}),
		roots:        make(map[string]*playlist.Playlist),
		recursive:    make(map[string]*playlist.Playlist),
		pending:      make(map[*playlist.Playlist]time.Time),
		pollSet:      make(map[*playlist.Playlist]bool),
		pollInterval: defaultPollInterval,
		lastPoll:     time.Now(),
	}, nil
}

// Watch registers the auto-discover roots of a playlist. A recursive root is
// watched along with every directory below it. Roots that cannot be watched
// (missing directory, fsnotify unavailable) degrade to polling.
func (w *Watcher) Watch(pl *playlist.Playlist) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return ErrStopped
	}

	watched := 0
	polled := false
	for _, spec := range pl.Paths() {
		if !spec.AutoDiscover {
			continue
		}
		if w.fsw == nil {
			polled = true
			continue
		}
		if err := w.fsw.Add(spec.Path); err != nil {
			logger.Log.Warn().
				Err(err).
				Str("playlist", pl.Name()).
				Str("path", spec.Path).
				Msg("Failed to watch discovery root, falling back to polling")
			polled = true
			continue
		}
		w.roots[spec.Path] = pl
		if spec.Recursive {
			w.recursive[spec.Path] = pl
			w.watchSubtreeLocked(spec.Path, pl)
		}
		watched++
	}
	if polled {
		w.pollSet[pl] = true
	}

	logger.Log.Debug().
		Str("playlist", pl.Name()).
		Int("roots", watched).
		Bool("polling", polled).
		Msg("Watching discovery roots")
	return nil
}

// watchSubtreeLocked registers every directory below a recursive root so
// events in subdirectories are delivered too
func (w *Watcher) watchSubtreeLocked(root string, pl *playlist.Playlist) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() || path == root {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			logger.Log.Warn().
				Err(err).
				Str("path", path).
				Msg("Failed to watch subdirectory")
			return nil
		}
		w.roots[path] = pl
		return nil
	})
}

// Start begins processing filesystem events
func (w *Watcher) Start() {
	go w.run()
	logger.Log.Info().
		Dur("debounce", w.debounce).
		Bool("polling", w.fsw == nil).
		Msg("Path watcher started")
}

// Stop shuts the watcher down and waits for the event loop to exit
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	w.mu.Unlock()

	close(w.stopChan)
	if w.fsw != nil {
		if err := w.fsw.Close(); err != nil {
			logger.Log.Warn().
				Err(err).
				Msg("Error closing fsnotify watcher")
		}
	}
	<-w.done

	logger.Log.Debug().Msg("Path watcher stopped")
}

// run is the event loop: file events mark playlists pending, and a ticker
// flushes pending playlists once the debounce window has passed and polls
// the playlists without event coverage
func (w *Watcher) run() {
	defer close(w.done)

	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	var events chan fsnotify.Event
	var errs chan error
	if w.fsw != nil {
		events = w.fsw.Events
		errs = w.fsw.Errors
	}

	for {
		select {
		case <-w.stopChan:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Create != 0 {
				w.watchCreatedDir(event.Name)
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) != 0 {
				w.handleEvent(event.Name)
			}
		case err, ok := <-errs:
			if !ok {
				return
			}
			logger.Log.Warn().
				Err(err).
				Msg("fsnotify error, continuing")
		case <-ticker.C:
			w.flushPending()
			w.pollIfDue()
		}
	}
}

// watchCreatedDir extends coverage when a directory appears under a
// recursive root
func (w *Watcher) watchCreatedDir(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	for root, pl := range w.recursive {
		if models.IsSubPath(root, path) {
			if err := w.fsw.Add(path); err != nil {
				logger.Log.Warn().
					Err(err).
					Str("path", path).
					Msg("Failed to watch new subdirectory")
				return
			}
			w.roots[path] = pl
			return
		}
	}
}

// handleEvent marks the playlist owning the event's directory as pending
func (w *Watcher) handleEvent(path string) {
	dir := filepath.Dir(path)

	w.mu.Lock()
	defer w.mu.Unlock()

	pl, ok := w.roots[dir]
	if !ok {
		// A subdirectory the watch has not caught up with yet
		for root, owner := range w.recursive {
			if models.IsSubPath(root, dir) {
				pl = owner
				ok = true
				break
			}
		}
	}
	if !ok {
		return
	}
	if _, already := w.pending[pl]; !already {
		w.pending[pl] = time.Now()
	}
}

// flushPending rescans every playlist whose debounce window has elapsed
func (w *Watcher) flushPending() {
	w.mu.Lock()
	due := make([]*playlist.Playlist, 0, len(w.pending))
	now := time.Now()
	for pl, firstSeen := range w.pending {
		if now.Sub(firstSeen) >= w.debounce {
			due = append(due, pl)
			delete(w.pending, pl)
		}
	}
	w.mu.Unlock()

	w.rescan(due)
}

// pollIfDue rescans the playlists without event coverage once per poll
// interval
func (w *Watcher) pollIfDue() {
	w.mu.Lock()
	if len(w.pollSet) == 0 || time.Since(w.lastPoll) < w.pollInterval {
		w.mu.Unlock()
		return
	}
	w.lastPoll = time.Now()
	due := make([]*playlist.Playlist, 0, len(w.pollSet))
	for pl := range w.pollSet {
		due = append(due, pl)
	}
	w.mu.Unlock()

	w.rescan(due)
}

func (w *Watcher) rescan(due []*playlist.Playlist) {
	for _, pl := range due {
		if _, err := w.engine.Discover(context.Background(), pl, nil, w.observer); err != nil {
			if errors.Is(err, discovery.ErrScanAlreadyRunning) {
				continue
			}
			logger.Log.Warn().
				Err(err).
				Str("playlist", pl.Name()).
				Msg("Watcher-triggered discovery failed")
		}
	}
}
