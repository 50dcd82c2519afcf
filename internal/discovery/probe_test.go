package discovery

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSHA256HasherKnownDigest(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/videos/ep1.mkv", []byte("hello"), 0o644))

	hasher := NewSHA256Hasher(fs)
	hash, err := hasher.Hash("/videos/ep1.mkv")
	require.NoError(t, err)

	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", hash)
	assert.Len(t, hash, 64)
}

func TestSHA256HasherMissingFile(t *testing.T) {
	hasher := NewSHA256Hasher(afero.NewMemMapFs())
	_, err := hasher.Hash("/nope.mkv")
	assert.Error(t, err)
}

func TestSHA256HasherIdenticalContentSameHash(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/a.mkv", []byte("same content"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/b.mkv", []byte("same content"), 0o644))

	hasher := NewSHA256Hasher(fs)
	h1, err := hasher.Hash("/a.mkv")
	require.NoError(t, err)
	h2, err := hasher.Hash("/b.mkv")
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
}

func TestMimeProberClassifiesText(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/notes.txt", []byte("just some text"), 0o644))

	prober := NewMimeProber(fs)
	mime, err := prober.Classify("/notes.txt")
	require.NoError(t, err)

	assert.False(t, IsVideoMIME(mime))
}

func TestMimeProberClassifiesMP4(t *testing.T) {
	fs := afero.NewMemMapFs()
	// Minimal MP4 signature: size box + "ftyp" + "isom" major brand
	header := []byte{
		0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p',
		'i', 's', 'o', 'm', 0x00, 0x00, 0x02, 0x00,
		'i', 's', 'o', 'm', 'm', 'p', '4', '1',
	}
	require.NoError(t, afero.WriteFile(fs, "/clip.mp4", header, 0o644))

	prober := NewMimeProber(fs)
	mime, err := prober.Classify("/clip.mp4")
	require.NoError(t, err)

	assert.True(t, IsVideoMIME(mime), "expected a video MIME type, got %s", mime)
}

func TestMimeProberMissingFile(t *testing.T) {
	prober := NewMimeProber(afero.NewMemMapFs())
	_, err := prober.Classify("/nope.mkv")
	assert.Error(t, err)
}

func TestIsVideoMIME(t *testing.T) {
	assert.True(t, IsVideoMIME("video/mp4"))
	assert.True(t, IsVideoMIME("video/x-matroska"))
	assert.False(t, IsVideoMIME("audio/mpeg"))
	assert.False(t, IsVideoMIME("text/plain; charset=utf-8"))
}
