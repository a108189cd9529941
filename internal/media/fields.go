package media

// FieldSet carries a partial metadata edit. Nil pointers mean "leave the
// field as it is"; non-nil pointers overwrite, including with empty values.
type FieldSet struct {
	Title       *string
	Artist      *string
	Album       *string
	AlbumArtist *string
	Composer    *string
	Genre       *string
	Comment     *string

	Year       *int
	Track      *int
	TrackTotal *int
	Disc       *int
	DiscTotal  *int

	MBAlbumID  *string
	MBArtistID *string
	MBTrackID  *string
	Rating     *int
}

// ApplyTo overwrites the fields of td that are present in the set.
func (fs FieldSet) ApplyTo(td *TagData) {
	setString(&td.Title, fs.Title)
	setString(&td.Artist, fs.Artist)
	setString(&td.Album, fs.Album)
	setString(&td.AlbumArtist, fs.AlbumArtist)
	setString(&td.Composer, fs.Composer)
	setString(&td.Genre, fs.Genre)
	setString(&td.Comment, fs.Comment)
	setInt(&td.Year, fs.Year)
	setInt(&td.Track, fs.Track)
	setInt(&td.TrackTotal, fs.TrackTotal)
	setInt(&td.Disc, fs.Disc)
	setInt(&td.DiscTotal, fs.DiscTotal)
	setString(&td.MBAlbumID, fs.MBAlbumID)
	setString(&td.MBArtistID, fs.MBArtistID)
	setString(&td.MBTrackID, fs.MBTrackID)
	setInt(&td.Rating, fs.Rating)
}

// IsEmpty reports whether the set carries no edits.
func (fs FieldSet) IsEmpty() bool {
	return fs == FieldSet{}
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}
