// Package media defines the canonical metadata records shared by the
// scanner, cache, codec, and sync engine.
package media

import (
	"path/filepath"
	"time"
)

// Item is the canonical metadata snapshot for one file in the library.
// Path is the unique key; Missing is true iff the file did not exist at
// the last check.
type Item struct {
	Path string
	Base string

	Title       string
	Artist      string
	Album       string
	AlbumArtist string
	Composer    string
	Genre       string
	Comment     string

	Year       int
	Track      int
	TrackTotal int
	Disc       int
	DiscTotal  int

	Duration   int // seconds
	Bitrate    int // kbit/s
	SampleRate int
	Channels   int

	MBAlbumID  string
	MBArtistID string
	MBTrackID  string

	AcoustID     string
	AcoustIDFp   string
	Rating       int // 0-10, 0 means unrated
	Size         int64
	ModTime      time.Time
	Inode        uint64
	Missing      bool
}

// Tags extracts the source-comparable fields of the item.
func (it *Item) Tags() TagData {
	return TagData{
		Title:       it.Title,
		Artist:      it.Artist,
		Album:       it.Album,
		AlbumArtist: it.AlbumArtist,
		Composer:    it.Composer,
		Genre:       it.Genre,
		Comment:     it.Comment,
		Year:        it.Year,
		Track:       it.Track,
		TrackTotal:  it.TrackTotal,
		Disc:        it.Disc,
		DiscTotal:   it.DiscTotal,
		Duration:    it.Duration,
		Bitrate:     it.Bitrate,
		SampleRate:  it.SampleRate,
		Channels:    it.Channels,
		MBAlbumID:   it.MBAlbumID,
		MBArtistID:  it.MBArtistID,
		MBTrackID:   it.MBTrackID,
		AcoustID:    it.AcoustID,
		AcoustIDFp:  it.AcoustIDFp,
		Rating:      it.Rating,
	}
}

// ApplyTags copies the source-comparable fields of td into the item.
func (it *Item) ApplyTags(td TagData) {
	it.Title = td.Title
	it.Artist = td.Artist
	it.Album = td.Album
	it.AlbumArtist = td.AlbumArtist
	it.Composer = td.Composer
	it.Genre = td.Genre
	it.Comment = td.Comment
	it.Year = td.Year
	it.Track = td.Track
	it.TrackTotal = td.TrackTotal
	it.Disc = td.Disc
	it.DiscTotal = td.DiscTotal
	if td.Duration > 0 {
		it.Duration = td.Duration
	}
	if td.Bitrate > 0 {
		it.Bitrate = td.Bitrate
	}
	if td.SampleRate > 0 {
		it.SampleRate = td.SampleRate
	}
	if td.Channels > 0 {
		it.Channels = td.Channels
	}
	it.MBAlbumID = td.MBAlbumID
	it.MBArtistID = td.MBArtistID
	it.MBTrackID = td.MBTrackID
	it.AcoustID = td.AcoustID
	it.AcoustIDFp = td.AcoustIDFp
	it.Rating = td.Rating
}

// Leaf returns the file name component of the item path.
func (it *Item) Leaf() string {
	return filepath.Base(it.Path)
}

// TagData is one metadata source's view of a file (embedded tags or
// filesystem attributes), without file-identity fields. It is the unit
// of comparison and merge.
type TagData struct {
	Title       string
	Artist      string
	Album       string
	AlbumArtist string
	Composer    string
	Genre       string
	Comment     string

	Year       int
	Track      int
	TrackTotal int
	Disc       int
	DiscTotal  int

	Duration   int
	Bitrate    int
	SampleRate int
	Channels   int

	MBAlbumID  string
	MBArtistID string
	MBTrackID  string

	AcoustID   string
	AcoustIDFp string
	Rating     int
}

// IsZero reports whether no field carries a value.
func (td TagData) IsZero() bool {
	return td == TagData{}
}

// FillEmptyFrom copies every field that is empty or zero in td from other.
// Audio properties are included so attribute-only files keep duration and
// bitrate information.
func (td *TagData) FillEmptyFrom(other TagData) {
	fillString(&td.Title, other.Title)
	fillString(&td.Artist, other.Artist)
	fillString(&td.Album, other.Album)
	fillString(&td.AlbumArtist, other.AlbumArtist)
	fillString(&td.Composer, other.Composer)
	fillString(&td.Genre, other.Genre)
	fillString(&td.Comment, other.Comment)
	fillInt(&td.Year, other.Year)
	fillInt(&td.Track, other.Track)
	fillInt(&td.TrackTotal, other.TrackTotal)
	fillInt(&td.Disc, other.Disc)
	fillInt(&td.DiscTotal, other.DiscTotal)
	fillInt(&td.Duration, other.Duration)
	fillInt(&td.Bitrate, other.Bitrate)
	fillInt(&td.SampleRate, other.SampleRate)
	fillInt(&td.Channels, other.Channels)
	fillString(&td.MBAlbumID, other.MBAlbumID)
	fillString(&td.MBArtistID, other.MBArtistID)
	fillString(&td.MBTrackID, other.MBTrackID)
	fillString(&td.AcoustID, other.AcoustID)
	fillString(&td.AcoustIDFp, other.AcoustIDFp)
	fillInt(&td.Rating, other.Rating)
}

func fillString(dst *string, src string) {
	if *dst == "" {
		*dst = src
	}
}

func fillInt(dst *int, src int) {
	if *dst == 0 {
		*dst = src
	}
}

// CoverBlob is an opaque image buffer with a sniffed MIME type. Cover
// bytes are always derived from a file on demand and never cached.
type CoverBlob struct {
	Data []byte
	MIME string
}

// SniffMIME detects PNG and JPEG payloads by signature. Returns "" for
// anything else.
func SniffMIME(data []byte) string {
	if len(data) >= 8 &&
		data[0] == 0x89 && data[1] == 'P' && data[2] == 'N' && data[3] == 'G' &&
		data[4] == 0x0D && data[5] == 0x0A && data[6] == 0x1A && data[7] == 0x0A {
		return "image/png"
	}
	if len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 {
		return "image/jpeg"
	}
	return ""
}
