// Package xattr stores canonical metadata fields as extended attributes
// on filesystems that support them. Every operation degrades to a no-op
// on unsupported volumes.
package xattr

import (
	"strconv"

	"attune/internal/media"
)

// Attribute names. All values are UTF-8 text; integers are written in
// decimal so other tools can read them.
const (
	attrTitle       = "user.media.title"
	attrArtist      = "user.media.artist"
	attrAlbum       = "user.media.album"
	attrAlbumArtist = "user.media.album_artist"
	attrComposer    = "user.media.composer"
	attrGenre       = "user.media.genre"
	attrComment     = "user.media.comment"
	attrYear        = "user.media.year"
	attrTrack       = "user.media.track"
	attrTrackTotal  = "user.media.track_total"
	attrDisc        = "user.media.disc"
	attrDiscTotal   = "user.media.disc_total"
	attrRating      = "user.media.rating"
	attrMBAlbumID   = "user.media.mb_album_id"
	attrMBArtistID  = "user.media.mb_artist_id"
	attrMBTrackID   = "user.media.mb_track_id"
	attrAcoustID    = "user.media.acoustid"
	attrAcoustIDFp  = "user.media.acoustid_fp"
)

// Store reads and writes media attributes on files.
type Store struct{}

// NewStore returns an attribute store.
func NewStore() *Store {
	return &Store{}
}

// Supported probes whether the volume holding path accepts extended
// attributes. When it returns false all other operations on that path
// are silent no-ops.
func (s *Store) Supported(path string) bool {
	return supported(path)
}

// ReadTags reads every canonical field present on path. Absent
// attributes leave their fields zero. Unsupported volumes yield a zero
// TagData and ok=false.
func (s *Store) ReadTags(path string) (media.TagData, bool) {
	if !supported(path) {
		return media.TagData{}, false
	}
	var td media.TagData
	td.Title = getString(path, attrTitle)
	td.Artist = getString(path, attrArtist)
	td.Album = getString(path, attrAlbum)
	td.AlbumArtist = getString(path, attrAlbumArtist)
	td.Composer = getString(path, attrComposer)
	td.Genre = getString(path, attrGenre)
	td.Comment = getString(path, attrComment)
	td.Year = getInt(path, attrYear)
	td.Track = getInt(path, attrTrack)
	td.TrackTotal = getInt(path, attrTrackTotal)
	td.Disc = getInt(path, attrDisc)
	td.DiscTotal = getInt(path, attrDiscTotal)
	td.Rating = clampRating(getInt(path, attrRating))
	td.MBAlbumID = getString(path, attrMBAlbumID)
	td.MBArtistID = getString(path, attrMBArtistID)
	td.MBTrackID = getString(path, attrMBTrackID)
	td.AcoustID = getString(path, attrAcoustID)
	td.AcoustIDFp = getString(path, attrAcoustIDFp)
	return td, true
}

// WriteTags persists every canonical field of td on path. Empty strings
// and zero integers remove the attribute instead of storing a zero;
// rating 0 means unrated and is likewise never persisted. Returns false
// without side effects on unsupported volumes.
func (s *Store) WriteTags(path string, td media.TagData) (bool, error) {
	if !supported(path) {
		return false, nil
	}
	fields := []struct {
		name  string
		value string
	}{
		{attrTitle, td.Title},
		{attrArtist, td.Artist},
		{attrAlbum, td.Album},
		{attrAlbumArtist, td.AlbumArtist},
		{attrComposer, td.Composer},
		{attrGenre, td.Genre},
		{attrComment, td.Comment},
		{attrYear, intString(td.Year)},
		{attrTrack, intString(td.Track)},
		{attrTrackTotal, intString(td.TrackTotal)},
		{attrDisc, intString(td.Disc)},
		{attrDiscTotal, intString(td.DiscTotal)},
		{attrRating, intString(clampRating(td.Rating))},
		{attrMBAlbumID, td.MBAlbumID},
		{attrMBArtistID, td.MBArtistID},
		{attrMBTrackID, td.MBTrackID},
		{attrAcoustID, td.AcoustID},
		{attrAcoustIDFp, td.AcoustIDFp},
	}
	for _, f := range fields {
		if err := setOrRemove(path, f.name, f.value); err != nil {
			return true, err
		}
	}
	return true, nil
}

// ReadRating reads just the rating attribute, the one field expected to
// change without touching the file's mtime. ok=false means the volume
// does not support attributes.
func (s *Store) ReadRating(path string) (int, bool) {
	if !supported(path) {
		return 0, false
	}
	return clampRating(getInt(path, attrRating)), true
}

// WriteRating persists the rating attribute. Rating 0 removes it.
func (s *Store) WriteRating(path string, rating int) (bool, error) {
	if !supported(path) {
		return false, nil
	}
	return true, setOrRemove(path, attrRating, intString(clampRating(rating)))
}

func getString(path, name string) string {
	value, err := get(path, name)
	if err != nil {
		return ""
	}
	return string(value)
}

func getInt(path, name string) int {
	value, err := get(path, name)
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(string(value))
	if err != nil {
		return 0
	}
	return n
}

func setOrRemove(path, name, value string) error {
	if value == "" {
		return remove(path, name)
	}
	return set(path, name, []byte(value))
}

func intString(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func clampRating(r int) int {
	if r < 0 {
		return 0
	}
	if r > 10 {
		return 10
	}
	return r
}
