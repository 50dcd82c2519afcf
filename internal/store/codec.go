package store

import (
	"fmt"
	"strconv"
	"strings"

	"seriesmgr/internal/models"
	"seriesmgr/internal/playlist"
)

const (
	// fieldSeparator delimits fields within a line. Playlist names and path
	// values containing it are rejected at the boundary.
	fieldSeparator = "|"

	// pathListSeparator delimits path specs on the path line
	pathListSeparator = ";"

	// pathFieldSeparator delimits the fields within one path spec
	pathFieldSeparator = "*"

	// minVideoRowFields is the smallest field count a line must have to be
	// treated as a video row at all
	minVideoRowFields = 4

	// hashHexLen is the length of a hex SHA-256 digest. Shorter stored
	// values (a known artifact of old exports) are treated as absent.
	hashHexLen = 64
)

// ParseIssue records one recovered parse problem. Issues are accumulated,
// never raised: a malformed field defaults, a malformed row is dropped, and
// the rest of the file still loads.
type ParseIssue struct {
	Line    int
	Field   string
	Message string
}

func (i ParseIssue) String() string {
	return fmt.Sprintf("line %d, field %q: %s", i.Line, i.Field, i.Message)
}

// header carries the decoded settings line. In the legacy single-path layout
// the first field is the playlist's one root path instead of a boolean.
type header struct {
	random         bool
	keepPlaying    bool
	startAt        int
	audioTrack     int
	subtitlesTrack int
	iconExtension  string
	lastPlayedHash string

	legacy     bool
	legacyPath string
}

// videoRow carries the decoded fields of one video line
type videoRow struct {
	path     string
	name     string
	position float64
	ignore   bool
	hash     string
}

// parseHeader decodes the settings line, defaulting each field
// independently. The legacy layout is detected by the first field not
// parsing as a boolean.
func parseHeader(line string, issues *[]ParseIssue) header {
	fields := splitFields(line)
	h := header{}

	if len(fields) > 0 && !isBoolField(fields[0]) && fields[0] != "" {
		// Legacy layout: path | is_random | keep_playing | start_at
		h.legacy = true
		h.legacyPath = fields[0]
		h.random = parseBoolField(fieldAt(fields, 1), 1, "is_random", issues)
		h.keepPlaying = parseBoolField(fieldAt(fields, 2), 1, "keep_playing", issues)
		h.startAt = clampStartAt(parseSecondsField(fieldAt(fields, 3), 1, "start_at", issues))
		return h
	}

	h.random = parseBoolField(fieldAt(fields, 0), 1, "is_random", issues)
	h.keepPlaying = parseBoolField(fieldAt(fields, 1), 1, "keep_playing", issues)
	h.startAt = clampStartAt(parseSecondsField(fieldAt(fields, 2), 1, "start_at", issues))
	h.audioTrack = parseIntField(fieldAt(fields, 3), 1, "audio_track", issues)
	h.subtitlesTrack = parseIntField(fieldAt(fields, 4), 1, "subtitles_track", issues)
	h.iconExtension = fieldAt(fields, 5)
	h.lastPlayedHash = fieldAt(fields, 6)
	return h
}

// encodeHeader renders the settings line in the current layout
func encodeHeader(pl *playlist.Playlist, iconExtension string) string {
	return strings.Join([]string{
		strconv.FormatBool(pl.Random()),
		strconv.FormatBool(pl.KeepPlaying()),
		strconv.Itoa(pl.StartAt()),
		strconv.Itoa(pl.AudioTrack()),
		strconv.Itoa(pl.SubtitlesTrack()),
		iconExtension,
		pl.LastPlayedHash(),
	}, fieldSeparator)
}

// parsePathSpecs decodes the path line into specs. Malformed entries are
// dropped with an issue.
func parsePathSpecs(line string, issues *[]ParseIssue) []*models.PlaylistPathSpec {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	var specs []*models.PlaylistPathSpec
	for _, entry := range strings.Split(line, pathListSeparator) {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, pathFieldSeparator)
		dir := strings.TrimSpace(parts[0])
		if dir == "" {
			*issues = append(*issues, ParseIssue{Line: 2, Field: "path", Message: "empty path entry dropped"})
			continue
		}
		recursive := false
		autoDiscover := false
		if len(parts) > 1 {
			recursive = parseBoolField(parts[1], 2, "recursive", issues)
		}
		if len(parts) > 2 {
			autoDiscover = parseBoolField(parts[2], 2, "auto_discover", issues)
		}
		specs = append(specs, models.NewPlaylistPathSpec(dir, recursive, autoDiscover))
	}
	return specs
}

// encodePathSpecs renders the path line
func encodePathSpecs(specs []*models.PlaylistPathSpec) string {
	entries := make([]string, 0, len(specs))
	for _, spec := range specs {
		entries = append(entries, strings.Join([]string{
			spec.Path,
			strconv.FormatBool(spec.Recursive),
			strconv.FormatBool(spec.AutoDiscover),
		}, pathFieldSeparator))
	}
	return strings.Join(entries, pathListSeparator)
}

// parseVideoRow decodes one video line. Rows with too few fields are not
// video rows at all (ok=false); field parse failures default with an issue.
func parseVideoRow(line string, lineNo int, issues *[]ParseIssue) (videoRow, bool) {
	fields := splitFields(line)
	if len(fields) < minVideoRowFields {
		return videoRow{}, false
	}

	row := videoRow{
		path: fields[0],
		name: fieldAt(fields, 1),
	}

	pos, err := strconv.ParseFloat(fieldAt(fields, 2), 64)
	if err != nil || pos < 0 || pos >= 1 {
		if fieldAt(fields, 2) != "" {
			*issues = append(*issues, ParseIssue{Line: lineNo, Field: "position", Message: "invalid position, defaulting to 0"})
		}
		pos = 0
	}
	row.position = pos

	row.ignore = parseBoolField(fieldAt(fields, 3), lineNo, "ignore", issues)
	row.hash = fieldAt(fields, 4)
	return row, true
}

// encodeVideoRow renders one video line. The GUID is not persisted: list
// order is the GUID.
func encodeVideoRow(v *models.VideoRecord) string {
	return strings.Join([]string{
		v.Path,
		v.Name,
		strconv.FormatFloat(v.Position(), 'f', -1, 64),
		strconv.FormatBool(v.Ignore),
		v.Hash,
	}, fieldSeparator)
}

// hashUsable reports whether a stored hash field holds a real digest. Old
// exports sometimes wrote stringified booleans into the hash column.
func hashUsable(hash string) bool {
	return len(hash) >= hashHexLen
}

func splitFields(line string) []string {
	fields := strings.Split(line, fieldSeparator)
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields
}

func fieldAt(fields []string, i int) string {
	if i < len(fields) {
		return fields[i]
	}
	return ""
}

func isBoolField(s string) bool {
	switch strings.ToLower(s) {
	case "true", "false", "0", "1":
		return true
	}
	return false
}

func parseBoolField(s string, line int, field string, issues *[]ParseIssue) bool {
	switch strings.ToLower(s) {
	case "true", "1":
		return true
	case "false", "0", "":
		return false
	}
	*issues = append(*issues, ParseIssue{Line: line, Field: field, Message: "invalid boolean, defaulting to false"})
	return false
}

func parseIntField(s string, line int, field string, issues *[]ParseIssue) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		*issues = append(*issues, ParseIssue{Line: line, Field: field, Message: "invalid integer, defaulting to 0"})
		return 0
	}
	return n
}

// parseSecondsField accepts both integer and float encodings; older files
// wrote start_at as a float
func parseSecondsField(s string, line int, field string, issues *[]ParseIssue) int {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*issues = append(*issues, ParseIssue{Line: line, Field: field, Message: "invalid number, defaulting to 0"})
		return 0
	}
	return int(f)
}

func clampStartAt(seconds int) int {
	if seconds < 0 {
		return 0
	}
	if seconds > 3599 {
		return 3599
	}
	return seconds
}
