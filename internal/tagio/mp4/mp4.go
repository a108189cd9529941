// Package mp4 reads and writes iTunes-style metadata in MP4/M4A files:
// the moov>udta>meta>ilst item list, mvhd audio properties, and the
// covr artwork item.
package mp4

import (
	"encoding/binary"
	"fmt"
	"os"
	"strconv"
	"strings"

	"attune/internal/media"
)

// Item names in the ilst atom.
const (
	nameTitle       = "\xa9nam"
	nameArtist      = "\xa9ART"
	nameAlbum       = "\xa9alb"
	nameAlbumArtist = "aART"
	nameComposer    = "\xa9wrt"
	nameGenre       = "\xa9gen"
	nameComment     = "\xa9cmt"
	nameDay         = "\xa9day"
	nameTrack       = "trkn"
	nameDisc        = "disk"
	nameRating      = "rate"
	nameCover       = "covr"
	nameFreeform    = "----"
)

// Freeform identifier items live under this mean with these names.
const (
	freeformMean = "com.apple.iTunes"
	ffMBAlbumID  = "MusicBrainz Album Id"
	ffMBArtistID = "MusicBrainz Artist Id"
	ffMBTrackID  = "MusicBrainz Track Id"
	ffAcoustID   = "AcoustID Id"
	ffAcoustIDFp = "AcoustID Fingerprint"
)

// Data atom payload types.
const (
	typeImplicit = 0
	typeUTF8     = 1
	typeJPEG     = 13
	typePNG      = 14
	typeInt      = 21
)

// item is one parsed ilst entry.
type item struct {
	name     string // 4cc; "----" for freeform
	mean     string // freeform only
	desc     string // freeform only
	dataType uint32
	payload  []byte
}

// Read extracts canonical metadata and audio properties.
func Read(path string) (media.TagData, error) {
	f, err := os.Open(path)
	if err != nil {
		return media.TagData{}, fmt.Errorf("open mp4: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return media.TagData{}, fmt.Errorf("stat mp4: %w", err)
	}

	moov, err := readTopLevelAtom(f, "moov")
	if err != nil {
		return media.TagData{}, err
	}

	var td media.TagData
	if mvhd := findAtom(moov, "mvhd"); mvhd != nil {
		applyMovieHeader(&td, mvhd, info.Size())
	}
	if mp4a := findAtomPath(moov, "trak", "mdia", "minf", "stbl", "stsd", "mp4a"); mp4a != nil {
		applySampleEntry(&td, mp4a)
	}
	if ilst := findAtomPath(moov, "udta", "meta", "ilst"); ilst != nil {
		for _, it := range parseItems(ilst) {
			applyItem(&td, it)
		}
	}
	return td, nil
}

// readTopLevelAtom scans the file's top-level atoms and returns the body
// (contents after the header) of the first atom with the given name.
func readTopLevelAtom(f *os.File, name string) ([]byte, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat mp4: %w", err)
	}
	offset := int64(0)
	sawFtyp := false
	for offset+8 <= info.Size() {
		header := make([]byte, 8)
		if _, err := f.ReadAt(header, offset); err != nil {
			return nil, fmt.Errorf("read atom header: %w", err)
		}
		size := int64(binary.BigEndian.Uint32(header[0:4]))
		atomName := string(header[4:8])
		headerLen := int64(8)
		if size == 1 {
			ext := make([]byte, 8)
			if _, err := f.ReadAt(ext, offset+8); err != nil {
				return nil, fmt.Errorf("read extended size: %w", err)
			}
			size = int64(binary.BigEndian.Uint64(ext))
			headerLen = 16
		}
		if size < headerLen {
			return nil, fmt.Errorf("malformed atom %q at %d", atomName, offset)
		}
		if offset == 0 && atomName != "ftyp" {
			return nil, fmt.Errorf("not an mp4 file")
		}
		sawFtyp = true
		if atomName == name {
			body := make([]byte, size-headerLen)
			if _, err := f.ReadAt(body, offset+headerLen); err != nil {
				return nil, fmt.Errorf("read %s atom: %w", name, err)
			}
			return body, nil
		}
		offset += size
	}
	if !sawFtyp {
		return nil, fmt.Errorf("not an mp4 file")
	}
	return nil, fmt.Errorf("atom %q not found", name)
}

// findAtom returns the body of the first child atom named name within a
// container body. The meta and stsd atoms carry extra header bytes
// before their children, which the walk accounts for.
func findAtom(body []byte, name string) []byte {
	pos := 0
	for pos+8 <= len(body) {
		size := int(binary.BigEndian.Uint32(body[pos : pos+4]))
		atomName := string(body[pos+4 : pos+8])
		if size < 8 || pos+size > len(body) {
			return nil
		}
		if atomName == name {
			child := body[pos+8 : pos+size]
			switch name {
			case "meta":
				if len(child) >= 4 {
					child = child[4:] // version/flags
				}
			case "stsd":
				if len(child) >= 8 {
					child = child[8:] // version/flags + entry count
				}
			}
			return child
		}
		pos += size
	}
	return nil
}

func findAtomPath(body []byte, names ...string) []byte {
	for _, name := range names {
		body = findAtom(body, name)
		if body == nil {
			return nil
		}
	}
	return body
}

// applyMovieHeader reads timescale and duration from mvhd.
func applyMovieHeader(td *media.TagData, body []byte, fileSize int64) {
	if len(body) < 4 {
		return
	}
	version := body[0]
	var timescale uint32
	var duration uint64
	if version == 1 {
		if len(body) < 32 {
			return
		}
		timescale = binary.BigEndian.Uint32(body[20:24])
		duration = binary.BigEndian.Uint64(body[24:32])
	} else {
		if len(body) < 24 {
			return
		}
		timescale = binary.BigEndian.Uint32(body[12:16])
		duration = uint64(binary.BigEndian.Uint32(body[16:20]))
	}
	if timescale == 0 {
		return
	}
	td.Duration = int(duration / uint64(timescale))
	if td.Duration > 0 {
		td.Bitrate = int(fileSize * 8 / int64(td.Duration) / 1000)
	}
}

// applySampleEntry reads channel count and sample rate from an mp4a
// audio sample entry.
func applySampleEntry(td *media.TagData, body []byte) {
	if len(body) < 28 {
		return
	}
	td.Channels = int(binary.BigEndian.Uint16(body[16:18]))
	td.SampleRate = int(binary.BigEndian.Uint32(body[24:28]) >> 16)
}

// parseItems walks the ilst body into items.
func parseItems(body []byte) []item {
	var items []item
	pos := 0
	for pos+8 <= len(body) {
		size := int(binary.BigEndian.Uint32(body[pos : pos+4]))
		name := string(body[pos+4 : pos+8])
		if size < 8 || pos+size > len(body) {
			break
		}
		child := body[pos+8 : pos+size]
		if it, ok := parseItem(name, child); ok {
			items = append(items, it)
		}
		pos += size
	}
	return items
}

func parseItem(name string, body []byte) (item, bool) {
	it := item{name: name}
	pos := 0
	for pos+8 <= len(body) {
		size := int(binary.BigEndian.Uint32(body[pos : pos+4]))
		sub := string(body[pos+4 : pos+8])
		if size < 8 || pos+size > len(body) {
			return it, false
		}
		payload := body[pos+8 : pos+size]
		switch sub {
		case "mean":
			if len(payload) >= 4 {
				it.mean = string(payload[4:])
			}
		case "name":
			if len(payload) >= 4 {
				it.desc = string(payload[4:])
			}
		case "data":
			if len(payload) >= 8 {
				it.dataType = binary.BigEndian.Uint32(payload[0:4]) & 0xFFFFFF
				it.payload = append([]byte(nil), payload[8:]...)
			}
		}
		pos += size
	}
	return it, it.payload != nil
}

func applyItem(td *media.TagData, it item) {
	text := func() string { return strings.TrimRight(string(it.payload), "\x00") }
	switch it.name {
	case nameTitle:
		td.Title = text()
	case nameArtist:
		td.Artist = text()
	case nameAlbum:
		td.Album = text()
	case nameAlbumArtist:
		td.AlbumArtist = text()
	case nameComposer:
		td.Composer = text()
	case nameGenre:
		td.Genre = text()
	case nameComment:
		td.Comment = text()
	case nameDay:
		if s := text(); len(s) >= 4 {
			if y, err := strconv.Atoi(s[:4]); err == nil {
				td.Year = y
			}
		}
	case nameTrack:
		if n, total, ok := parseCounterPayload(it.payload); ok {
			fillZero(&td.Track, n)
			fillZero(&td.TrackTotal, total)
		}
	case nameDisc:
		if n, total, ok := parseCounterPayload(it.payload); ok {
			fillZero(&td.Disc, n)
			fillZero(&td.DiscTotal, total)
		}
	case nameRating:
		td.Rating = readRating(it)
	case nameFreeform:
		if it.mean != freeformMean {
			return
		}
		switch it.desc {
		case ffMBAlbumID:
			td.MBAlbumID = text()
		case ffMBArtistID:
			td.MBArtistID = text()
		case ffMBTrackID:
			td.MBTrackID = text()
		case ffAcoustID:
			td.AcoustID = text()
		case ffAcoustIDFp:
			td.AcoustIDFp = text()
		}
	}
}

// parseCounterPayload decodes trkn/disk binary payloads: two reserved
// bytes, number, total, each big-endian 16 bit.
func parseCounterPayload(payload []byte) (number, total int, ok bool) {
	if len(payload) < 6 {
		return 0, 0, false
	}
	number = int(binary.BigEndian.Uint16(payload[2:4]))
	total = int(binary.BigEndian.Uint16(payload[4:6]))
	return number, total, true
}

// readRating decodes the rate item. The value is a 0-100 percentage
// (written as rating*10); text payloads and out-of-range values are
// normalized onto the 0-10 scale.
func readRating(it item) int {
	var v int
	switch it.dataType {
	case typeUTF8:
		n, err := strconv.Atoi(strings.TrimSpace(strings.TrimRight(string(it.payload), "\x00")))
		if err != nil {
			return 0
		}
		v = n
	default:
		for _, b := range it.payload {
			v = v<<8 | int(b)
		}
	}
	switch {
	case v <= 0:
		return 0
	case v <= 100:
		return (v + 5) / 10
	default:
		return 10
	}
}

func fillZero(dst *int, value int) {
	if *dst == 0 && value > 0 {
		*dst = value
	}
}
