// Package flac reads and writes FLAC metadata blocks: STREAMINFO for
// audio properties, Vorbis comments for tags, and PICTURE blocks for
// cover art.
package flac

import (
	"encoding/binary"
	"fmt"
	"os"
	"strconv"
	"strings"

	"attune/internal/media"
)

const (
	blockStreamInfo    = 0
	blockVorbisComment = 4
	blockPicture       = 6

	pictureFrontCover = 3
)

// Vorbis comment keys managed by this package. Comparison is
// case-insensitive per the Vorbis spec.
const (
	keyTitle       = "TITLE"
	keyArtist      = "ARTIST"
	keyAlbum       = "ALBUM"
	keyAlbumArtist = "ALBUMARTIST"
	keyComposer    = "COMPOSER"
	keyGenre       = "GENRE"
	keyComment     = "COMMENT"
	keyDate        = "DATE"
	keyTrack       = "TRACKNUMBER"
	keyTrackTotal  = "TRACKTOTAL"
	keyDisc        = "DISCNUMBER"
	keyDiscTotal   = "DISCTOTAL"
	keyRating      = "RATING"
	keyMBAlbumID   = "MUSICBRAINZ_ALBUMID"
	keyMBArtistID  = "MUSICBRAINZ_ARTISTID"
	keyMBTrackID   = "MUSICBRAINZ_TRACKID"
	keyAcoustID    = "ACOUSTID_ID"
	keyAcoustIDFp  = "ACOUSTID_FINGERPRINT"
)

// block is one raw metadata block.
type block struct {
	kind byte
	data []byte
}

// stream is a parsed FLAC metadata section plus the offset where audio
// frames begin.
type stream struct {
	blocks     []block
	audioStart int64
	fileSize   int64
}

// Read extracts canonical metadata and audio properties.
func Read(path string) (media.TagData, error) {
	f, err := os.Open(path)
	if err != nil {
		return media.TagData{}, fmt.Errorf("open flac: %w", err)
	}
	defer f.Close()

	st, err := parseStream(f)
	if err != nil {
		return media.TagData{}, err
	}

	var td media.TagData
	for _, b := range st.blocks {
		switch b.kind {
		case blockStreamInfo:
			applyStreamInfo(&td, b.data, st.fileSize)
		case blockVorbisComment:
			for _, c := range parseComments(b.data) {
				applyComment(&td, c)
			}
		}
	}
	return td, nil
}

func parseStream(f *os.File) (*stream, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat flac: %w", err)
	}

	magic := make([]byte, 4)
	if _, err := f.ReadAt(magic, 0); err != nil || string(magic) != "fLaC" {
		return nil, fmt.Errorf("not a flac file")
	}

	st := &stream{fileSize: info.Size()}
	offset := int64(4)
	for {
		header := make([]byte, 4)
		if _, err := f.ReadAt(header, offset); err != nil {
			return nil, fmt.Errorf("read block header: %w", err)
		}
		last := header[0]&0x80 != 0
		kind := header[0] & 0x7F
		size := int64(header[1])<<16 | int64(header[2])<<8 | int64(header[3])

		data := make([]byte, size)
		if _, err := f.ReadAt(data, offset+4); err != nil {
			return nil, fmt.Errorf("read block data: %w", err)
		}
		st.blocks = append(st.blocks, block{kind: kind, data: data})
		offset += 4 + size
		if last {
			break
		}
	}
	st.audioStart = offset
	return st, nil
}

// applyStreamInfo decodes the bit-packed STREAMINFO block: sample rate
// (20 bits), channels-1 (3 bits), bits-per-sample-1 (5 bits), total
// samples (36 bits) starting at byte 10.
func applyStreamInfo(td *media.TagData, data []byte, fileSize int64) {
	if len(data) < 18 {
		return
	}
	packed := binary.BigEndian.Uint64(data[10:18])
	sampleRate := int(packed >> 44)
	channels := int(packed>>41&0x7) + 1
	totalSamples := int64(packed & 0xFFFFFFFFF)

	td.SampleRate = sampleRate
	td.Channels = channels
	if sampleRate > 0 && totalSamples > 0 {
		td.Duration = int(totalSamples / int64(sampleRate))
		if td.Duration > 0 {
			td.Bitrate = int(fileSize * 8 / int64(td.Duration) / 1000)
		}
	}
}

type comment struct {
	key   string
	value string
}

// parseComments decodes a Vorbis comment block: vendor string then a
// list of length-prefixed KEY=VALUE entries, all little-endian.
func parseComments(data []byte) []comment {
	if len(data) < 8 {
		return nil
	}
	vendorLen := binary.LittleEndian.Uint32(data[0:4])
	pos := 4 + int(vendorLen)
	if pos+4 > len(data) {
		return nil
	}
	count := binary.LittleEndian.Uint32(data[pos : pos+4])
	pos += 4

	var out []comment
	for i := uint32(0); i < count && pos+4 <= len(data); i++ {
		length := int(binary.LittleEndian.Uint32(data[pos : pos+4]))
		pos += 4
		if pos+length > len(data) {
			break
		}
		entry := string(data[pos : pos+length])
		pos += length
		eq := strings.IndexByte(entry, '=')
		if eq <= 0 {
			continue
		}
		out = append(out, comment{
			key:   strings.ToUpper(entry[:eq]),
			value: entry[eq+1:],
		})
	}
	return out
}

func applyComment(td *media.TagData, c comment) {
	switch c.key {
	case keyTitle:
		td.Title = c.value
	case keyArtist:
		td.Artist = c.value
	case keyAlbum:
		td.Album = c.value
	case keyAlbumArtist, "ALBUM ARTIST":
		td.AlbumArtist = c.value
	case keyComposer:
		td.Composer = c.value
	case keyGenre:
		td.Genre = c.value
	case keyComment, "DESCRIPTION":
		td.Comment = c.value
	case keyDate, "YEAR":
		if len(c.value) >= 4 {
			if y, err := strconv.Atoi(c.value[:4]); err == nil {
				td.Year = y
			}
		}
	case keyTrack:
		n, total := parsePair(c.value)
		fillZero(&td.Track, n)
		fillZero(&td.TrackTotal, total)
	case keyTrackTotal, "TOTALTRACKS":
		if n, err := strconv.Atoi(c.value); err == nil {
			td.TrackTotal = n
		}
	case keyDisc:
		n, total := parsePair(c.value)
		fillZero(&td.Disc, n)
		fillZero(&td.DiscTotal, total)
	case keyDiscTotal, "TOTALDISCS":
		if n, err := strconv.Atoi(c.value); err == nil {
			td.DiscTotal = n
		}
	case keyRating:
		td.Rating = normalizeRating(c.value)
	case keyMBAlbumID:
		td.MBAlbumID = c.value
	case keyMBArtistID:
		td.MBArtistID = c.value
	case keyMBTrackID:
		td.MBTrackID = c.value
	case keyAcoustID:
		td.AcoustID = c.value
	case keyAcoustIDFp:
		td.AcoustIDFp = c.value
	}
}

// normalizeRating maps free-text numeric ratings onto the 0-10 scale,
// rescaling percentage-style 0-100 inputs.
func normalizeRating(text string) int {
	v, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || v <= 0 {
		return 0
	}
	if v > 100 {
		return 10
	}
	if v > 10 {
		return (v + 5) / 10
	}
	return v
}

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
