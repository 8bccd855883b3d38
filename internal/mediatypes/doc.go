// Package mediatypes classifies media files by extension and turns media
// identifiers into paths VLC can enqueue.
//
// It has no dependencies beyond the standard library so that any package
// can import it without creating import cycles.
//
// # Identifiers
//
// A trigger names its media by file name ("button1.mp4"). MediaPath
// rejects anything that is not a bare, playable file name before it is
// joined onto the media directory:
//
//	p, err := mediatypes.MediaPath("/media", "button1.mp4") // "/media/button1.mp4"
//	_, err = mediatypes.MediaPath("/media", "../etc/passwd") // ErrInvalidMedia
//
// Control characters are rejected too: a line break would split one VLC
// command into two.
//
// # File Types
//
//	mediatypes.FileTypeVideo // mp4, mkv, avi, ...
//	mediatypes.FileTypeAudio // mp3, wav, flac, ...
//	mediatypes.FileTypeImage // jpg, png, ...
//	mediatypes.FileTypeOther // anything else
package mediatypes
