package tagio

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dhowden/tag"

	"attune/internal/media"
)

// readFallback handles formats without a native codec through the
// generic tag reader. Files it cannot parse yield a zero TagData and no
// error; the caller builds a filesystem-only record in that case.
func readFallback(path string) (media.TagData, error) {
	f, err := os.Open(path)
	if err != nil {
		return media.TagData{}, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	meta, err := tag.ReadFrom(f)
	if err != nil {
		return media.TagData{}, nil
	}

	var td media.TagData
	td.Title = meta.Title()
	td.Artist = meta.Artist()
	td.Album = meta.Album()
	td.AlbumArtist = meta.AlbumArtist()
	td.Composer = meta.Composer()
	td.Genre = meta.Genre()
	td.Comment = meta.Comment()
	td.Year = meta.Year()
	td.Track, td.TrackTotal = meta.Track()
	td.Disc, td.DiscTotal = meta.Disc()

	raw := meta.Raw()
	td.Rating = normalizeRawRating(raw)
	td.MBAlbumID = rawString(raw, "musicbrainz_albumid")
	td.MBArtistID = rawString(raw, "musicbrainz_artistid")
	td.MBTrackID = rawString(raw, "musicbrainz_trackid")
	td.AcoustID = rawString(raw, "acoustid_id")
	td.AcoustIDFp = rawString(raw, "acoustid_fingerprint")
	return td, nil
}

// readFallbackCover extracts cover art through the generic reader.
func readFallbackCover(path string) (media.CoverBlob, error) {
	f, err := os.Open(path)
	if err != nil {
		return media.CoverBlob{}, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	meta, err := tag.ReadFrom(f)
	if err != nil {
		return media.CoverBlob{}, nil
	}
	pic := meta.Picture()
	if pic == nil || len(pic.Data) == 0 {
		return media.CoverBlob{}, nil
	}
	blob := media.CoverBlob{Data: pic.Data, MIME: pic.MIMEType}
	if sniffed := media.SniffMIME(blob.Data); sniffed != "" {
		blob.MIME = sniffed
	}
	return blob, nil
}

// normalizeRawRating reads a free-text RATING field and maps it onto
// the 0-10 scale, rescaling 0-100 percentage inputs.
func normalizeRawRating(raw map[string]interface{}) int {
	for _, key := range []string{"rating", "RATING"} {
		value, ok := raw[key]
		if !ok {
			continue
		}
		text, ok := value.(string)
		if !ok {
			continue
		}
		v, err := strconv.Atoi(strings.TrimSpace(text))
		if err != nil || v <= 0 {
			return 0
		}
		switch {
		case v > 100:
			return 10
		case v > 10:
			return (v + 5) / 10
		default:
			return v
		}
	}
	return 0
}

func rawString(raw map[string]interface{}, key string) string {
	for _, k := range []string{key, strings.ToUpper(key)} {
		if value, ok := raw[k]; ok {
			if text, ok := value.(string); ok {
				return text
			}
		}
	}
	return ""
}
