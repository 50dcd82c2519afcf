package collection

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seriesmgr/internal/discovery"
	"seriesmgr/internal/logger"
	"seriesmgr/internal/models"
	"seriesmgr/internal/playlist"
	"seriesmgr/internal/store"
)

const dataDir = "/data"

// extProber classifies by extension so tests don't need real media bytes
type extProber struct{}

func (extProber) Classify(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mkv", ".mp4", ".avi":
		return "video/x-test", nil
	default:
		return "text/plain", nil
	}
}

func newTestCollection(t *testing.T) (*Collection, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	st := store.New(fs, dataDir, extProber{}, discovery.NewSHA256Hasher(fs))
	return New(fs, st), fs
}

func TestCreateAndGet(t *testing.T) {
	c, _ := newTestCollection(t)

	pl, err := c.Create("shows")
	require.NoError(t, err)
	assert.Equal(t, "shows", pl.Name())

	got, err := c.Get("shows")
	require.NoError(t, err)
	assert.Same(t, pl, got)

	// Creating claims the name on disk immediately
	assert.True(t, c.store.Exists("shows"))
}

func TestCreateRejectsInvalidNames(t *testing.T) {
	c, _ := newTestCollection(t)

	for _, name := range []string{"", "   ", "a|b", "a/b"} {
		_, err := c.Create(name)
		assert.ErrorIs(t, err, ErrInvalidName, "name %q", name)
	}
}

func TestCreateRejectsDuplicates(t *testing.T) {
	c, fs := newTestCollection(t)

	_, err := c.Create("shows")
	require.NoError(t, err)
	_, err = c.Create("shows")
	assert.ErrorIs(t, err, ErrDuplicateName)

	// A file on disk that was never loaded still blocks the name
	require.NoError(t, afero.WriteFile(fs, filepath.Join(dataDir, "stale.cfg"), []byte("false|false|0|0|0|\n\n"), 0o644))
	_, err = c.Create("stale")
	assert.ErrorIs(t, err, ErrDuplicateName)
}

func TestGetUnknown(t *testing.T) {
	c, _ := newTestCollection(t)
	_, err := c.Get("nope")
	assert.ErrorIs(t, err, ErrPlaylistNotFound)
}

func TestNamesSorted(t *testing.T) {
	c, _ := newTestCollection(t)
	for _, name := range []string{"charlie", "alpha", "bravo"} {
		_, err := c.Create(name)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"alpha", "bravo", "charlie"}, c.Names())
}

func TestLoadAll(t *testing.T) {
	c, fs := newTestCollection(t)
	require.NoError(t, afero.WriteFile(fs, "/videos/ep1.mkv", []byte("one"), 0o644))
	hash, err := discovery.NewSHA256Hasher(fs).Hash("/videos/ep1.mkv")
	require.NoError(t, err)

	content := "false|true|30|0|0|\n/videos*false*true\n/videos/ep1.mkv|Ep1|0.2|false|" + hash + "\n"
	require.NoError(t, afero.WriteFile(fs, filepath.Join(dataDir, "shows.cfg"), []byte(content), 0o644))
	require.NoError(t, afero.WriteFile(fs, filepath.Join(dataDir, "music.cfg"), []byte("false|false|0|0|0|\n\n"), 0o644))

	var loaded int
	require.NoError(t, c.LoadAll(func(_ *playlist.Playlist, _ *models.VideoRecord) {
		loaded++
	}))

	assert.Equal(t, []string{"music", "shows"}, c.Names())
	assert.Equal(t, 1, loaded)

	pl, err := c.Get("shows")
	require.NoError(t, err)
	assert.True(t, pl.KeepPlaying())
	assert.Equal(t, 1, pl.VideoCount())
}

func TestLoadAllCountsOnlyLoadedPlaylists(t *testing.T) {
	c, fs := newTestCollection(t)

	require.NoError(t, afero.WriteFile(fs, filepath.Join(dataDir, "good.cfg"), []byte("false|false|0|0|0|\n\n"), 0o644))
	// A single line past the scanner's buffer limit makes the load fail
	broken := "false|false|0|0|0|" + strings.Repeat("x", 2*1024*1024)
	require.NoError(t, afero.WriteFile(fs, filepath.Join(dataDir, "broken.cfg"), []byte(broken), 0o644))

	var buf bytes.Buffer
	orig := logger.Log
	logger.Log = zerolog.New(&buf)
	defer func() { logger.Log = orig }()

	require.NoError(t, c.LoadAll(nil))

	assert.Equal(t, []string{"good"}, c.Names())
	assert.Contains(t, buf.String(), `"playlists":1`)
}

func TestLoadAllRewritesLegacyFiles(t *testing.T) {
	c, fs := newTestCollection(t)

	legacy := "/videos|true|false|10\n"
	path := filepath.Join(dataDir, "old.cfg")
	require.NoError(t, afero.WriteFile(fs, path, []byte(legacy), 0o644))

	require.NoError(t, c.LoadAll(nil))

	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	lines := strings.Split(string(data), "\n")
	require.GreaterOrEqual(t, len(lines), 2)
	assert.True(t, strings.HasPrefix(lines[0], "true|false|10|"), "header rewritten in current layout, got %q", lines[0])
	assert.Equal(t, "/videos*false*true", lines[1])
}

func TestRename(t *testing.T) {
	c, fs := newTestCollection(t)
	pl, err := c.Create("old")
	require.NoError(t, err)
	pl.SetRandom(true)
	pl.SetStartAt(15)
	require.NoError(t, pl.AddPath(models.NewPlaylistPathSpec("/videos", true, true)))
	v := models.NewVideoRecord("/videos/ep1.mkv")
	v.Hash = strings.Repeat("a", 64)
	require.NoError(t, pl.AddVideo(v))
	require.NoError(t, c.Save("old"))
	require.NoError(t, c.SetCurrent("old"))

	require.NoError(t, c.Rename("old", "new"))

	_, err = c.Get("old")
	assert.ErrorIs(t, err, ErrPlaylistNotFound)

	renamed, err := c.Get("new")
	require.NoError(t, err)
	assert.Equal(t, "new", renamed.Name())
	assert.True(t, renamed.Random())
	assert.Equal(t, 15, renamed.StartAt())
	assert.Equal(t, 1, renamed.VideoCount())
	assert.Len(t, renamed.Paths(), 1)

	assert.Same(t, renamed, c.Current(), "current pointer follows the rename")

	_, err = fs.Stat(filepath.Join(dataDir, "new.cfg"))
	assert.NoError(t, err)
	_, err = fs.Stat(filepath.Join(dataDir, "old.cfg"))
	assert.Error(t, err)
}

func TestRenameRejectsCollision(t *testing.T) {
	c, _ := newTestCollection(t)
	_, err := c.Create("a")
	require.NoError(t, err)
	_, err = c.Create("b")
	require.NoError(t, err)

	assert.ErrorIs(t, c.Rename("a", "b"), ErrDuplicateName)
	assert.ErrorIs(t, c.Rename("missing", "c"), ErrPlaylistNotFound)
	assert.ErrorIs(t, c.Rename("a", "x|y"), ErrInvalidName)
}

func TestDelete(t *testing.T) {
	c, fs := newTestCollection(t)
	_, err := c.Create("shows")
	require.NoError(t, err)
	require.NoError(t, c.SetCurrent("shows"))

	require.NoError(t, c.Delete("shows"))

	_, err = c.Get("shows")
	assert.ErrorIs(t, err, ErrPlaylistNotFound)
	assert.Nil(t, c.Current())
	_, err = fs.Stat(filepath.Join(dataDir, "shows.cfg"))
	assert.Error(t, err)

	assert.ErrorIs(t, c.Delete("shows"), ErrPlaylistNotFound)
}

func TestSaveAllContinuesPastFailures(t *testing.T) {
	c, _ := newTestCollection(t)
	_, err := c.Create("a")
	require.NoError(t, err)
	_, err = c.Create("b")
	require.NoError(t, err)

	require.NoError(t, c.SaveAll())
}

func TestCurrentAndResume(t *testing.T) {
	c, fs := newTestCollection(t)
	assert.Nil(t, c.Current())
	assert.Nil(t, c.ResumeVideo())
	assert.ErrorIs(t, c.SetCurrent("nope"), ErrPlaylistNotFound)

	pl, err := c.Create("shows")
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(fs, "/videos/ep1.mkv", []byte("one"), 0o644))

	hash := strings.Repeat("e", 64)
	v := models.NewVideoRecord("/videos/ep1.mkv")
	v.Hash = hash
	require.NoError(t, pl.AddVideo(v))
	pl.SetLastPlayedHash(hash)

	require.NoError(t, c.SetCurrent("shows"))
	assert.Same(t, pl, c.Current())

	resumed := c.ResumeVideo()
	require.NotNil(t, resumed)
	assert.Equal(t, "/videos/ep1.mkv", resumed.Path)

	// A stale pointer resolves to nothing rather than a wrong video
	pl.SetLastPlayedHash(strings.Repeat("f", 64))
	assert.Nil(t, c.ResumeVideo())
}
