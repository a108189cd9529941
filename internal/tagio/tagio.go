// Package tagio dispatches metadata reads and writes to the container
// codec matching each file, with a generic read-only fallback for
// formats without a native writer.
package tagio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"attune/internal/media"
	"attune/internal/tagio/flac"
	"attune/internal/tagio/id3"
	"attune/internal/tagio/mp4"
)

// ErrUnsupportedWrite marks formats the fallback path can read but not
// modify.
var ErrUnsupportedWrite = errors.New("tagio: writing not supported for this format")

// Format identifies the container codec used for a file.
type Format int

const (
	FormatUnknown Format = iota
	FormatID3
	FormatMP4
	FormatFLAC
	FormatFallback
)

// allowedExtensions is the scanner's allow-list of audio file types.
var allowedExtensions = map[string]bool{
	".mp3": true, ".wav": true, ".flac": true, ".ogg": true,
	".m4a": true, ".aac": true, ".wma": true,
}

// Allowed reports whether the file's extension is on the audio
// allow-list.
func Allowed(path string) bool {
	return allowedExtensions[strings.ToLower(filepath.Ext(path))]
}

// Detect picks the codec for a path by extension, falling back to a
// content sniff when the extension is ambiguous or misleading.
func Detect(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return FormatID3
	case ".m4a":
		return FormatMP4
	case ".flac":
		return FormatFLAC
	case ".ogg", ".wav", ".wma":
		return FormatFallback
	case ".aac":
		// Raw AAC streams and MP4-wrapped files share the extension.
		if sniff(path) == FormatMP4 {
			return FormatMP4
		}
		return FormatFallback
	default:
		if f := sniff(path); f != FormatUnknown {
			return f
		}
		return FormatFallback
	}
}

// sniff inspects the first bytes of the file for container signatures.
func sniff(path string) Format {
	f, err := os.Open(path)
	if err != nil {
		return FormatUnknown
	}
	defer f.Close()

	header := make([]byte, 12)
	if _, err := f.ReadAt(header, 0); err != nil {
		return FormatUnknown
	}
	switch {
	case string(header[0:3]) == "ID3":
		return FormatID3
	case string(header[0:4]) == "fLaC":
		return FormatFLAC
	case string(header[4:8]) == "ftyp":
		return FormatMP4
	case header[0] == 0xFF && header[1]&0xE0 == 0xE0:
		return FormatID3 // bare MPEG stream without a tag
	}
	return FormatUnknown
}

// ReadTags extracts canonical metadata from the file.
func ReadTags(path string) (media.TagData, error) {
	switch Detect(path) {
	case FormatID3:
		return id3.Read(path)
	case FormatMP4:
		return mp4.Read(path)
	case FormatFLAC:
		return flac.Read(path)
	default:
		return readFallback(path)
	}
}

// WriteTags persists canonical metadata into the file's container.
func WriteTags(path string, td media.TagData) error {
	switch Detect(path) {
	case FormatID3:
		return id3.WriteTags(path, td)
	case FormatMP4:
		return mp4.WriteTags(path, td)
	case FormatFLAC:
		return flac.WriteTags(path, td)
	default:
		return fmt.Errorf("write tags %s: %w", path, ErrUnsupportedWrite)
	}
}

// ReadCover extracts the embedded cover image, if any.
func ReadCover(path string) (media.CoverBlob, error) {
	switch Detect(path) {
	case FormatID3:
		return id3.ReadCover(path)
	case FormatMP4:
		return mp4.ReadCover(path)
	case FormatFLAC:
		return flac.ReadCover(path)
	default:
		return readFallbackCover(path)
	}
}

// WriteCover replaces the file's embedded cover art.
func WriteCover(path string, cover media.CoverBlob) error {
	switch Detect(path) {
	case FormatID3:
		return id3.WriteCover(path, cover)
	case FormatMP4:
		return mp4.WriteCover(path, cover)
	case FormatFLAC:
		return flac.WriteCover(path, cover)
	default:
		return fmt.Errorf("write cover %s: %w", path, ErrUnsupportedWrite)
	}
}

// RemoveCover strips all embedded cover art from the file.
func RemoveCover(path string) error {
	switch Detect(path) {
	case FormatID3:
		return id3.RemoveCover(path)
	case FormatMP4:
		return mp4.RemoveCover(path)
	case FormatFLAC:
		return flac.RemoveCover(path)
	default:
		return fmt.Errorf("remove cover %s: %w", path, ErrUnsupportedWrite)
	}
}
