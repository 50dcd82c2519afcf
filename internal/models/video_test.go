package models

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		expected string
	}{
		{"simple extension", "/videos/ep1.mkv", "ep1"},
		{"multiple dots", "/videos/show.s01e02.mp4", "show.s01e02"},
		{"four char extension", "/videos/clip.webm", "clip"},
		{"long extension kept", "/videos/archive.backup", "archive.backup"},
		{"no extension", "/videos/raw", "raw"},
		{"dotfile", "/videos/.hidden", ".hidden"},
		{"relative path", "ep2.avi", "ep2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DisplayName(tt.path))
		})
	}
}

func TestNewVideoRecord(t *testing.T) {
	v := NewVideoRecord("/videos/ep1.mkv")

	assert.Equal(t, "/videos/ep1.mkv", v.Path)
	assert.Equal(t, "ep1", v.Name)
	assert.Equal(t, 0, v.GUID)
	assert.Zero(t, v.Position())
	assert.False(t, v.Ignore)
	assert.False(t, v.IsNew)
}

func TestSetPosition(t *testing.T) {
	v := NewVideoRecord("/videos/ep1.mkv")
	require.NoError(t, v.SetPosition(0.5))

	tests := []struct {
		name    string
		value   float64
		wantErr bool
	}{
		{"start", 0, false},
		{"middle", 0.42, false},
		{"end threshold", 0.999, false},
		{"one", 1.0, true},
		{"above one", 1.5, true},
		{"negative", -0.1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, v.SetPosition(0.5))
			err := v.SetPosition(tt.value)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrPositionOutOfRange)
				// Previous value retained
				assert.Equal(t, 0.5, v.Position())
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.value, v.Position())
			}
		})
	}
}

func TestPlayed(t *testing.T) {
	v := NewVideoRecord("/videos/ep1.mkv")
	assert.False(t, v.Played())

	require.NoError(t, v.SetPosition(0.998))
	assert.False(t, v.Played())

	require.NoError(t, v.SetPosition(0.999))
	assert.True(t, v.Played())
}

func TestSeenFlagsAreIndependentPerOrder(t *testing.T) {
	v := NewVideoRecord("/videos/ep1.mkv")
	v.SeenRandom = true

	assert.True(t, v.SeenIn(OrderRandom))
	assert.False(t, v.SeenIn(OrderSequential))

	v.SeenSequential = true
	assert.True(t, v.SeenIn(OrderSequential))
}

func TestMarkPlayed(t *testing.T) {
	v := NewVideoRecord("/videos/ep1.mkv")
	v.MarkPlayed(OrderSequential)

	assert.True(t, v.Played())
	assert.True(t, v.SeenSequential)
	assert.False(t, v.SeenRandom)

	// A fully played position counts as seen in every order
	assert.True(t, v.SeenIn(OrderRandom))
}

func TestResetWatched(t *testing.T) {
	v := NewVideoRecord("/videos/ep1.mkv")
	v.MarkPlayed(OrderRandom)
	v.ResetWatched()

	assert.Zero(t, v.Position())
	assert.False(t, v.SeenSequential)
	assert.False(t, v.SeenRandom)
	assert.False(t, v.Played())
}

func TestExistsIsLive(t *testing.T) {
	fs := afero.NewMemMapFs()
	v := NewVideoRecord("/videos/ep1.mkv")
	assert.False(t, v.Exists(fs))

	require.NoError(t, afero.WriteFile(fs, "/videos/ep1.mkv", []byte("x"), 0o644))
	assert.True(t, v.Exists(fs))

	require.NoError(t, fs.Remove("/videos/ep1.mkv"))
	assert.False(t, v.Exists(fs))
}

func TestDir(t *testing.T) {
	v := NewVideoRecord("/videos/season1/ep1.mkv")
	assert.Equal(t, "/videos/season1", v.Dir())
}
