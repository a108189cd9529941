// Package synctags merges the two metadata source views of a file
// (embedded tags and filesystem attributes) under a source policy.
package synctags

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"attune/internal/media"
	"attune/internal/policy"
)

// Result is the outcome of a smart merge. Changed means a write is
// warranted; Conflict means at least one field needs an external
// decision before any write for this record is committed.
type Result struct {
	Merged   media.TagData
	Changed  bool
	Conflict bool
}

// Directional merges secondary into primary per mode. Overwrite keeps
// primary unconditionally field by field; FillEmpty copies only fields
// that are empty or zero in primary. No conflict concept applies.
func Directional(primary, secondary media.TagData, mode policy.ConflictMode) media.TagData {
	switch mode {
	case policy.ModeFillEmpty:
		merged := primary
		merged.FillEmptyFrom(secondary)
		return merged
	default:
		return primary
	}
}

// SmartMerge reconciles both views field by field for interactive use,
// independent of the stored per-root mode. Agreement keeps the value; a
// single-sided value is taken and flagged as changed; disagreement
// flags a conflict and keeps the primary's value as a placeholder
// pending resolution. A conflict must never silently resolve to either
// side.
func SmartMerge(primary, secondary media.TagData) Result {
	res := Result{Merged: primary}

	mergeString(&res, &res.Merged.Title, primary.Title, secondary.Title)
	mergeString(&res, &res.Merged.Artist, primary.Artist, secondary.Artist)
	mergeString(&res, &res.Merged.Album, primary.Album, secondary.Album)
	mergeString(&res, &res.Merged.AlbumArtist, primary.AlbumArtist, secondary.AlbumArtist)
	mergeString(&res, &res.Merged.Composer, primary.Composer, secondary.Composer)
	mergeString(&res, &res.Merged.Genre, primary.Genre, secondary.Genre)
	mergeString(&res, &res.Merged.Comment, primary.Comment, secondary.Comment)
	mergeInt(&res, &res.Merged.Year, primary.Year, secondary.Year)
	mergeInt(&res, &res.Merged.Track, primary.Track, secondary.Track)
	mergeInt(&res, &res.Merged.TrackTotal, primary.TrackTotal, secondary.TrackTotal)
	mergeInt(&res, &res.Merged.Disc, primary.Disc, secondary.Disc)
	mergeInt(&res, &res.Merged.DiscTotal, primary.DiscTotal, secondary.DiscTotal)
	mergeString(&res, &res.Merged.MBAlbumID, primary.MBAlbumID, secondary.MBAlbumID)
	mergeString(&res, &res.Merged.MBArtistID, primary.MBArtistID, secondary.MBArtistID)
	mergeString(&res, &res.Merged.MBTrackID, primary.MBTrackID, secondary.MBTrackID)
	mergeString(&res, &res.Merged.AcoustID, primary.AcoustID, secondary.AcoustID)
	mergeString(&res, &res.Merged.AcoustIDFp, primary.AcoustIDFp, secondary.AcoustIDFp)
	mergeInt(&res, &res.Merged.Rating, primary.Rating, secondary.Rating)

	return res
}

func mergeString(res *Result, dst *string, p, s string) {
	switch {
	case equalText(p, s):
		*dst = p
	case p == "" && s != "":
		*dst = s
		res.Changed = true
	case p != "" && s == "":
		*dst = p
		res.Changed = true
	default:
		*dst = p
		res.Conflict = true
	}
}

func mergeInt(res *Result, dst *int, p, s int) {
	switch {
	case p == s:
		*dst = p
	case p == 0:
		*dst = s
		res.Changed = true
	case s == 0:
		*dst = p
		res.Changed = true
	default:
		*dst = p
		res.Conflict = true
	}
}

// equalText compares field values after trimming and Unicode NFC
// normalization, so composed and decomposed spellings of the same name
// do not register as a conflict.
func equalText(a, b string) bool {
	return norm.NFC.String(strings.TrimSpace(a)) == norm.NFC.String(strings.TrimSpace(b))
}
