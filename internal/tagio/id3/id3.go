// Package id3 reads and writes ID3v2 tags in MP3 files. Versions 2.3
// and 2.4 are read; writes always produce a v2.4 tag.
package id3

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"strconv"
	"strings"

	"attune/internal/media"
)

const headerSize = 10

// Descriptions of the TXXX frames carrying external identifiers.
const (
	descMBAlbumID  = "MusicBrainz Album Id"
	descMBArtistID = "MusicBrainz Artist Id"
	descMBTrackID  = "MusicBrainz Track Id"
	descAcoustID   = "AcoustID Id"
	descAcoustIDFp = "AcoustID Fingerprint"
)

// frame is a raw ID3v2 frame, kept verbatim so unmanaged frames survive
// a rewrite.
type frame struct {
	id   string
	data []byte
}

// tag is a parsed ID3v2 tag plus the file offset where audio data begins.
type tag struct {
	version  byte
	frames   []frame
	size     int64 // total tag bytes including header
	fileSize int64
}

// Read extracts canonical metadata and audio properties from an MP3 file.
func Read(path string) (media.TagData, error) {
	f, err := os.Open(path)
	if err != nil {
		return media.TagData{}, fmt.Errorf("open mp3: %w", err)
	}
	defer f.Close()

	t, err := parseTag(f)
	if err != nil {
		return media.TagData{}, err
	}

	var td media.TagData
	for _, fr := range t.frames {
		applyFrame(&td, fr)
	}
	readAudioProps(f, t.size, t.fileSize, &td)
	return td, nil
}

// parseTag reads the ID3v2 tag structure. Files without a tag yield an
// empty tag with size 0 so callers can still probe audio properties and
// append a fresh tag on write.
func parseTag(f *os.File) (*tag, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat mp3: %w", err)
	}
	t := &tag{version: 4, fileSize: info.Size()}

	header := make([]byte, headerSize)
	if _, err := f.ReadAt(header, 0); err != nil {
		return t, nil
	}
	if string(header[0:3]) != "ID3" {
		return t, nil
	}
	version := header[3]
	if version != 3 && version != 4 {
		return nil, fmt.Errorf("unsupported id3v2 version 2.%d", version)
	}
	t.version = version
	declared := int64(decodeSynchsafe(header[6:10]))
	t.size = headerSize + declared

	body := make([]byte, declared)
	n, _ := f.ReadAt(body, headerSize)
	body = body[:n]

	offset := 0
	if header[5]&0x40 != 0 && len(body) >= 4 {
		// Skip the extended header.
		if version == 4 {
			offset = int(decodeSynchsafe(body[0:4]))
		} else {
			offset = int(binary.BigEndian.Uint32(body[0:4])) + 4
		}
		if offset < 0 || offset > len(body) {
			offset = len(body)
		}
	}

	for offset+headerSize <= len(body) {
		if body[offset] == 0 {
			break // padding
		}
		id := string(body[offset : offset+4])
		var size uint32
		if version == 4 {
			size = decodeSynchsafe(body[offset+4 : offset+8])
		} else {
			size = binary.BigEndian.Uint32(body[offset+4 : offset+8])
		}
		offset += headerSize
		if size == 0 || offset+int(size) > len(body) {
			break
		}
		data := make([]byte, size)
		copy(data, body[offset:offset+int(size)])
		t.frames = append(t.frames, frame{id: id, data: data})
		offset += int(size)
	}
	return t, nil
}

func applyFrame(td *media.TagData, fr frame) {
	switch fr.id {
	case "TIT2":
		td.Title = frameText(fr.data)
	case "TPE1":
		td.Artist = frameText(fr.data)
	case "TALB":
		td.Album = frameText(fr.data)
	case "TPE2":
		td.AlbumArtist = frameText(fr.data)
	case "TCOM":
		td.Composer = frameText(fr.data)
	case "TCON":
		td.Genre = frameText(fr.data)
	case "TYER", "TDRC":
		if y := parseYear(frameText(fr.data)); y > 0 {
			td.Year = y
		}
	case "TRCK":
		n, total := parsePair(frameText(fr.data))
		fillZero(&td.Track, n)
		fillZero(&td.TrackTotal, total)
	case "TPOS":
		n, total := parsePair(frameText(fr.data))
		fillZero(&td.Disc, n)
		fillZero(&td.DiscTotal, total)
	case "COMM":
		if text, ok := commentText(fr.data); ok {
			td.Comment = text
		}
	case "TXXX":
		desc, value := userText(fr.data)
		switch desc {
		case descMBAlbumID:
			td.MBAlbumID = value
		case descMBArtistID:
			td.MBArtistID = value
		case descMBTrackID:
			td.MBTrackID = value
		case descAcoustID:
			td.AcoustID = value
		case descAcoustIDFp:
			td.AcoustIDFp = value
		}
	case "POPM":
		if r, ok := popularimeterRating(fr.data); ok && td.Rating == 0 {
			td.Rating = r
		}
	}
}

// frameText decodes a text frame: encoding byte followed by text.
func frameText(data []byte) string {
	if len(data) < 1 {
		return ""
	}
	return strings.TrimRight(decodeText(data[1:], data[0]), "\x00")
}

// commentText decodes a COMM frame: encoding, 3-byte language, short
// description, text.
func commentText(data []byte) (string, bool) {
	if len(data) < 4 {
		return "", false
	}
	encoding := data[0]
	body := data[4:]
	idx := indexTerminator(body, encoding)
	if idx < 0 {
		return strings.TrimRight(decodeText(body, encoding), "\x00"), true
	}
	text := body[idx+terminatorLen(encoding):]
	return strings.TrimRight(decodeText(text, encoding), "\x00"), true
}

// userText decodes a TXXX frame into its description and value halves.
func userText(data []byte) (string, string) {
	if len(data) < 2 {
		return "", ""
	}
	encoding := data[0]
	body := data[1:]
	idx := indexTerminator(body, encoding)
	if idx < 0 {
		return "", ""
	}
	desc := decodeText(body[:idx], encoding)
	value := strings.TrimRight(decodeText(body[idx+terminatorLen(encoding):], encoding), "\x00")
	return desc, value
}

// popularimeterRating extracts the 0-255 rating byte from a POPM frame:
// owner string, rating byte, optional play counter.
func popularimeterRating(data []byte) (int, bool) {
	idx := bytes.IndexByte(data, 0)
	if idx < 0 || idx+1 >= len(data) {
		return 0, false
	}
	return byteToRating(data[idx+1]), true
}

func parseYear(text string) int {
	if len(text) < 4 {
		return 0
	}
	year, err := strconv.Atoi(text[:4])
	if err != nil || year < 1000 || year > 9999 {
		return 0
	}
	return year
}

// parsePair parses "N" or "N/Total".
func parsePair(text string) (number, total int) {
	parts := strings.SplitN(text, "/", 2)
	number, _ = strconv.Atoi(strings.TrimSpace(parts[0]))
	if len(parts) == 2 {
		total, _ = strconv.Atoi(strings.TrimSpace(parts[1]))
	}
	return number, total
}

func fillZero(dst *int, value int) {
	if *dst == 0 && value > 0 {
		*dst = value
	}
}

func decodeSynchsafe(b []byte) uint32 {
	if len(b) != 4 {
		return 0
	}
	return uint32(b[0]&0x7F)<<21 | uint32(b[1]&0x7F)<<14 | uint32(b[2]&0x7F)<<7 | uint32(b[3]&0x7F)
}

func encodeSynchsafe(v uint32) []byte {
	return []byte{
		byte(v >> 21 & 0x7F),
		byte(v >> 14 & 0x7F),
		byte(v >> 7 & 0x7F),
		byte(v & 0x7F),
	}
}
