// Package playlist implements the playlist aggregate: the ordered video list,
// registered filesystem roots, playback settings, and next-video resolution.
//
// All structural mutation of a playlist is serialized through one mutex so
// that discovery can run on a worker goroutine while the UI thread reads the
// same playlist for display.
package playlist

import (
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/spf13/afero"

	"seriesmgr/internal/logger"
	"seriesmgr/internal/models"
)

const (
	// maxStartAt is the largest supported start offset in seconds
	maxStartAt = 3599
)

// LoadStatus is the tri-state hydration status of a playlist
type LoadStatus int

// Load statuses
const (
	StatusWaiting LoadStatus = iota
	StatusLoading
	StatusLoaded
)

// String returns a human-readable status name
func (s LoadStatus) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusLoaded:
		return "loaded"
	default:
		return "waiting"
	}
}

// PathStats summarizes the videos logically under one registered path
type PathStats struct {
	Active  int // exists on disk and not ignored
	Ignored int // ignore flag set
	Missing int // not ignored but file absent
}

// Playlist is a named, persisted group of videos plus playback settings.
// Video GUIDs are always a contiguous 1..N permutation matching list order.
type Playlist struct {
	name string
	fs   afero.Fs

	mu     sync.RWMutex
	videos []*models.VideoRecord
	paths  map[string]*models.PlaylistPathSpec

	random         bool
	keepPlaying    bool
	startAt        int
	audioTrack     int
	subtitlesTrack int
	lastPlayedHash string
	status         LoadStatus
}

// New creates an empty playlist. The filesystem is used for the live
// existence checks behind next-video resolution and path statistics.
func New(name string, fs afero.Fs) *Playlist {
	return &Playlist{
		name:   name,
		fs:     fs,
		paths:  make(map[string]*models.PlaylistPathSpec),
		status: StatusWaiting,
	}
}

// Name returns the playlist name (also the on-disk filename stem)
func (p *Playlist) Name() string {
	return p.name
}

// Fs returns the filesystem the playlist checks existence against
func (p *Playlist) Fs() afero.Fs {
	return p.fs
}

// Videos returns a snapshot of the ordered video list
func (p *Playlist) Videos() []*models.VideoRecord {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*models.VideoRecord, len(p.videos))
	copy(out, p.videos)
	return out
}

// VideoCount returns the total number of tracked videos
func (p *Playlist) VideoCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.videos)
}

// ActiveCount returns the number of videos not marked ignored. This is the
// denominator used for progress.
func (p *Playlist) ActiveCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	count := 0
	for _, v := range p.videos {
		if !v.Ignore {
			count++
		}
	}
	return count
}

// AddVideo appends a video to the ordered list and assigns the next GUID.
// A non-empty content hash must be unique within the playlist.
func (p *Playlist) AddVideo(v *models.VideoRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if v.Hash != "" {
		for _, existing := range p.videos {
			if existing.Hash == v.Hash {
				return ErrDuplicateHash
			}
		}
	}

	p.videos = append(p.videos, v)
	v.GUID = len(p.videos)
	return nil
}

// RemoveVideo detaches a video from the playlist and renumbers the rest
func (p *Playlist) RemoveVideo(v *models.VideoRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx := p.indexOfLocked(v)
	if idx < 0 {
		return ErrVideoNotFound
	}
	p.videos = append(p.videos[:idx], p.videos[idx+1:]...)
	p.renumberLocked()
	return nil
}

// MoveVideo moves the video at index from to index to (0-based) and
// renumbers GUIDs to match the new order
func (p *Playlist) MoveVideo(from, to int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if from < 0 || from >= len(p.videos) || to < 0 || to >= len(p.videos) {
		return ErrIndexOutOfRange
	}
	v := p.videos[from]
	p.videos = append(p.videos[:from], p.videos[from+1:]...)
	p.videos = append(p.videos[:to], append([]*models.VideoRecord{v}, p.videos[to:]...)...)
	p.renumberLocked()
	return nil
}

// FindByHash returns the video with the given content hash, or nil
func (p *Playlist) FindByHash(hash string) *models.VideoRecord {
	if hash == "" {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, v := range p.videos {
		if v.Hash == hash {
			return v
		}
	}
	return nil
}

// FindByPath returns the video with the given file path, or nil
func (p *Playlist) FindByPath(path string) *models.VideoRecord {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, v := range p.videos {
		if v.Path == path {
			return v
		}
	}
	return nil
}

// RelocateVideo updates a video's path in place after a rename/move was
// detected through its content hash. No new record is created and the GUID
// is untouched.
func (p *Playlist) RelocateVideo(v *models.VideoRecord, newPath string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.indexOfLocked(v) < 0 {
		return ErrVideoNotFound
	}
	v.Path = newPath
	v.IsNew = true
	return nil
}

// indexOfLocked returns the list index of v, or -1. Caller holds the lock.
func (p *Playlist) indexOfLocked(v *models.VideoRecord) int {
	for i, cur := range p.videos {
		if cur == v {
			return i
		}
	}
	return -1
}

// renumberLocked reassigns the dense 1..N GUID sequence. Caller holds the lock.
func (p *Playlist) renumberLocked() {
	for i, v := range p.videos {
		v.GUID = i + 1
	}
}

// Paths returns the registered path specs sorted by path
func (p *Playlist) Paths() []*models.PlaylistPathSpec {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*models.PlaylistPathSpec, 0, len(p.paths))
	for _, spec := range p.paths {
		out = append(out, spec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// GetPath returns the registered spec for a (normalized) path
func (p *Playlist) GetPath(path string) (*models.PlaylistPathSpec, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	spec, ok := p.paths[models.NormalizePath(path)]
	return spec, ok
}

// AddPath registers a filesystem root. The path is rejected when it is
// already registered, when it falls under an existing recursive root, or,
// if the new spec is itself recursive, when it would cover an existing root.
func (p *Playlist) AddPath(spec *models.PlaylistPathSpec) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.addPathLocked(spec)
}

func (p *Playlist) addPathLocked(spec *models.PlaylistPathSpec) error {
	if _, exists := p.paths[spec.Path]; exists {
		return ErrDuplicatePath
	}
	for _, existing := range p.paths {
		if existing.Recursive && models.IsSubPath(existing.Path, spec.Path) {
			return ErrPathOverlap
		}
		if spec.Recursive && models.IsSubPath(spec.Path, existing.Path) {
			return ErrPathOverlap
		}
	}
	p.paths[spec.Path] = spec
	return nil
}

// RenamePath atomically re-keys a registered spec under a new path. The new
// path is subject to the same duplicate and containment rules.
func (p *Playlist) RenamePath(oldPath, newPath string) error {
	oldPath = models.NormalizePath(oldPath)

	p.mu.Lock()
	defer p.mu.Unlock()

	spec, ok := p.paths[oldPath]
	if !ok {
		return ErrPathNotFound
	}

	replacement := models.NewPlaylistPathSpec(newPath, spec.Recursive, spec.AutoDiscover)
	if replacement.Path == oldPath {
		return nil
	}

	// Remove-old then insert-new inside the same critical section, restoring
	// the old entry if the new path violates an invariant
	delete(p.paths, oldPath)
	if err := p.addPathLocked(replacement); err != nil {
		p.paths[oldPath] = spec
		return err
	}
	return nil
}

// SetRecursive toggles recursion on a registered path. Enabling recursion is
// rejected when any other registered path already sits below this one.
func (p *Playlist) SetRecursive(path string, recursive bool) error {
	path = models.NormalizePath(path)

	p.mu.Lock()
	defer p.mu.Unlock()

	spec, ok := p.paths[path]
	if !ok {
		return ErrPathNotFound
	}
	if recursive {
		for _, other := range p.paths {
			if other == spec {
				continue
			}
			if models.IsSubPath(path, other.Path) {
				return ErrPathOverlap
			}
		}
	}
	spec.Recursive = recursive
	return nil
}

// RemovePath unregisters a root and detaches every video logically under it
// (exact directory match, or any descendant when the spec was recursive).
// The removed videos are returned so the UI can update incrementally.
func (p *Playlist) RemovePath(path string) ([]*models.VideoRecord, error) {
	path = models.NormalizePath(path)

	p.mu.Lock()
	defer p.mu.Unlock()

	spec, ok := p.paths[path]
	if !ok {
		return nil, ErrPathNotFound
	}
	delete(p.paths, path)

	removed := p.detachLocked(func(v *models.VideoRecord) bool {
		return spec.ContainsDir(v.Dir())
	})
	return removed, nil
}

// RemoveRecursiveVideos detaches only videos in strict sub-directories of a
// registered path. Used when recursion is being disabled: direct children
// remain governed by the now non-recursive spec.
func (p *Playlist) RemoveRecursiveVideos(path string) ([]*models.VideoRecord, error) {
	path = models.NormalizePath(path)

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.paths[path]; !ok {
		return nil, ErrPathNotFound
	}

	removed := p.detachLocked(func(v *models.VideoRecord) bool {
		return models.IsSubPath(path, v.Dir())
	})
	return removed, nil
}

// detachLocked removes every video matching the predicate, renumbers, and
// returns the removed records. Caller holds the lock.
func (p *Playlist) detachLocked(match func(*models.VideoRecord) bool) []*models.VideoRecord {
	var removed []*models.VideoRecord
	kept := p.videos[:0]
	for _, v := range p.videos {
		if match(v) {
			removed = append(removed, v)
			continue
		}
		kept = append(kept, v)
	}
	p.videos = kept
	if len(removed) > 0 {
		p.renumberLocked()
	}
	return removed
}

// GetPathStats counts the videos under a registered path for UI display
func (p *Playlist) GetPathStats(path string) (PathStats, error) {
	path = models.NormalizePath(path)

	p.mu.RLock()
	defer p.mu.RUnlock()

	spec, ok := p.paths[path]
	if !ok {
		return PathStats{}, ErrPathNotFound
	}

	var stats PathStats
	for _, v := range p.videos {
		if !spec.ContainsDir(v.Dir()) {
			continue
		}
		switch {
		case v.Ignore:
			stats.Ignored++
		case v.Exists(p.fs):
			stats.Active++
		default:
			stats.Missing++
		}
	}
	return stats, nil
}

// Prune drops videos that are ignored and whose file no longer exists,
// returning the removed records
func (p *Playlist) Prune() []*models.VideoRecord {
	p.mu.Lock()
	defer p.mu.Unlock()

	removed := p.detachLocked(func(v *models.VideoRecord) bool {
		return v.Ignore && !v.Exists(p.fs)
	})
	if len(removed) > 0 {
		logger.Log.Debug().
			Str("playlist", p.name).
			Int("removed", len(removed)).
			Msg("Pruned ignored missing videos")
	}
	return removed
}

// NextSequential returns the next unseen video in GUID order. When after is
// given the scan starts past it and wraps around to the beginning exactly
// once if nothing qualifies. Returns nil when the order is exhausted.
func (p *Playlist) NextSequential(after *models.VideoRecord) *models.VideoRecord {
	p.mu.RLock()
	defer p.mu.RUnlock()

	start := 0
	if after != nil {
		if idx := p.indexOfLocked(after); idx >= 0 {
			start = idx + 1
		}
	}

	for i := start; i < len(p.videos); i++ {
		if p.playableLocked(p.videos[i], models.OrderSequential) {
			return p.videos[i]
		}
	}
	if after == nil {
		return nil
	}
	// One wraparound only: the whole list may be exhausted
	for i := 0; i < start; i++ {
		if p.playableLocked(p.videos[i], models.OrderSequential) {
			return p.videos[i]
		}
	}
	return nil
}

// NextRandom returns a uniformly random unseen video, the single candidate
// when only one qualifies, or nil when none do
func (p *Playlist) NextRandom() *models.VideoRecord {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var candidates []*models.VideoRecord
	for _, v := range p.videos {
		if p.playableLocked(v, models.OrderRandom) {
			candidates = append(candidates, v)
		}
	}
	switch len(candidates) {
	case 0:
		return nil
	case 1:
		return candidates[0]
	default:
		return candidates[rand.Intn(len(candidates))]
	}
}

// playableLocked reports whether a video qualifies as the next pick for the
// given order: present on disk, not seen in that order, not ignored.
func (p *Playlist) playableLocked(v *models.VideoRecord, order models.PlayOrder) bool {
	return !v.Ignore && !v.SeenIn(order) && v.Exists(p.fs)
}

// Progress returns the mean per-video progress across non-ignored videos as
// an integer percent (half away from zero), or 0 when there are none
func (p *Playlist) Progress() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var sum float64
	count := 0
	for _, v := range p.videos {
		if v.Ignore {
			continue
		}
		sum += v.Position() * 100
		count++
	}
	if count == 0 {
		return 0
	}
	return int(math.Round(sum / float64(count)))
}

// Random reports whether random playback order is enabled
func (p *Playlist) Random() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.random
}

// SetRandom toggles random playback order
func (p *Playlist) SetRandom(random bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.random = random
}

// KeepPlaying reports whether playback auto-advances at end of video
func (p *Playlist) KeepPlaying() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.keepPlaying
}

// SetKeepPlaying toggles auto-advance at end of video
func (p *Playlist) SetKeepPlaying(keep bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keepPlaying = keep
}

// StartAt returns the start offset in seconds
func (p *Playlist) StartAt() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.startAt
}

// SetStartAt sets the start offset, clamped to [0, 3599] seconds
func (p *Playlist) SetStartAt(seconds int) {
	if seconds < 0 {
		seconds = 0
	}
	if seconds > maxStartAt {
		seconds = maxStartAt
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.startAt = seconds
}

// AudioTrack returns the audio track selector (-1 disabled, 0 unset,
// otherwise a concrete track index passed through to the player)
func (p *Playlist) AudioTrack() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.audioTrack
}

// SetAudioTrack sets the audio track selector
func (p *Playlist) SetAudioTrack(track int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.audioTrack = track
}

// SubtitlesTrack returns the subtitles track selector
func (p *Playlist) SubtitlesTrack() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.subtitlesTrack
}

// SetSubtitlesTrack sets the subtitles track selector
func (p *Playlist) SetSubtitlesTrack(track int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subtitlesTrack = track
}

// LastPlayedHash returns the content hash of the last-played video, used to
// resume across restarts without storing a GUID that could shift
func (p *Playlist) LastPlayedHash() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastPlayedHash
}

// SetLastPlayedHash records the hash of the last-played video
func (p *Playlist) SetLastPlayedHash(hash string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastPlayedHash = hash
}

// Status returns the hydration status
func (p *Playlist) Status() LoadStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

// SetStatus updates the hydration status
func (p *Playlist) SetStatus(status LoadStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = status
}
