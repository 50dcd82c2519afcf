package discovery

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"
)

// videoMIMEPrefix marks the MIME types classified as video
const videoMIMEPrefix = "video/"

// Prober classifies a file by its MIME type. It is an injectable boundary so
// tests can substitute a cheap classifier.
type Prober interface {
	Classify(path string) (string, error)
}

// Hasher computes the durable content identity of a file as a hex string
type Hasher interface {
	Hash(path string) (string, error)
}

// MimeProber detects MIME types from file content
type MimeProber struct {
	fs afero.Fs
}

// NewMimeProber creates a content-based MIME prober over the given filesystem
func NewMimeProber(fs afero.Fs) *MimeProber {
	return &MimeProber{fs: fs}
}

// Classify returns the MIME type of the file at path
func (p *MimeProber) Classify(path string) (string, error) {
	f, err := p.fs.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	mime, err := mimetype.DetectReader(f)
	if err != nil {
		return "", fmt.Errorf("failed to detect mime type of %s: %w", path, err)
	}
	return mime.String(), nil
}

// IsVideoMIME reports whether a MIME type string names a video format
func IsVideoMIME(mime string) bool {
	return strings.HasPrefix(mime, videoMIMEPrefix)
}

// SHA256Hasher hashes full file contents with SHA-256
type SHA256Hasher struct {
	fs afero.Fs
}

// NewSHA256Hasher creates a content hasher over the given filesystem
func NewSHA256Hasher(fs afero.Fs) *SHA256Hasher {
	return &SHA256Hasher{fs: fs}
}

// Hash returns the lowercase hex SHA-256 digest of the file at path
func (h *SHA256Hasher) Hash(path string) (string, error) {
	f, err := h.fs.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	digest := sha256.New()
	if _, err := io.Copy(digest, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(digest.Sum(nil)), nil
}
