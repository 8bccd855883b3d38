package mediatypes

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"unicode"
)

// FileType represents the type of a media file.
type FileType string

const (
	// FileTypeVideo represents a video file.
	FileTypeVideo FileType = "video"
	// FileTypeAudio represents an audio file.
	FileTypeAudio FileType = "audio"
	// FileTypeImage represents a still image, which VLC shows for a fixed duration.
	FileTypeImage FileType = "image"
	// FileTypeOther represents an unknown or unsupported file type.
	FileTypeOther FileType = "other"
)

// ErrInvalidMedia is returned for media identifiers that cannot be played.
var ErrInvalidMedia = errors.New("invalid media identifier")

// VideoExtensions maps file extensions to whether they are supported video formats.
var VideoExtensions = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".avi":  true,
	".mov":  true,
	".wmv":  true,
	".flv":  true,
	".webm": true,
	".m4v":  true,
	".mpeg": true,
	".mpg":  true,
	".3gp":  true,
	".ts":   true,
	".h264": true,
}

// AudioExtensions maps file extensions to whether they are supported audio formats.
var AudioExtensions = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".flac": true,
	".ogg":  true,
	".m4a":  true,
	".aac":  true,
}

// ImageExtensions maps file extensions to whether they are supported image formats.
var ImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
}

// GetFileType returns the FileType for a given file extension.
// The extension should be lowercase and include the leading dot (e.g., ".mp4").
// Returns FileTypeOther if the extension is not recognized.
func GetFileType(ext string) FileType {
	if VideoExtensions[ext] {
		return FileTypeVideo
	}
	if AudioExtensions[ext] {
		return FileTypeAudio
	}
	if ImageExtensions[ext] {
		return FileTypeImage
	}
	return FileTypeOther
}

// IsPlayable returns true if name has an extension VLC is expected to play.
func IsPlayable(name string) bool {
	return GetFileType(strings.ToLower(filepath.Ext(name))) != FileTypeOther
}

// Validate checks that id is a bare file name that can be sent on a single
// VLC command line.
func Validate(id string) error {
	switch {
	case strings.TrimSpace(id) == "":
		return fmt.Errorf("%w: empty", ErrInvalidMedia)
	case id == "." || id == "..":
		return fmt.Errorf("%w: %q", ErrInvalidMedia, id)
	case strings.ContainsAny(id, `/\`):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidMedia, id)
	case strings.IndexFunc(id, unicode.IsControl) >= 0:
		return fmt.Errorf("%w: %q contains control characters", ErrInvalidMedia, id)
	case !IsPlayable(id):
		return fmt.Errorf("%w: %q is not a supported media type", ErrInvalidMedia, id)
	}
	return nil
}

// MediaPath validates id and joins it onto dir.
func MediaPath(dir, id string) (string, error) {
	if err := Validate(id); err != nil {
		return "", err
	}
	if dir == "" {
		return id, nil
	}
	// paths go to VLC with forward slashes
	return path.Join(filepath.ToSlash(dir), id), nil
}
