package flac

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"attune/internal/media"
)

// newFLAC writes a file with a STREAMINFO block describing ten seconds
// of 44.1 kHz stereo audio, followed by filler frame bytes.
func newFLAC(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "track.flac")

	info := make([]byte, 34)
	packed := uint64(44100)<<44 | uint64(1)<<41 | uint64(15)<<36 | uint64(441000)
	binary.BigEndian.PutUint64(info[10:18], packed)

	data := []byte("fLaC")
	header := []byte{blockStreamInfo | 0x80, 0, 0, byte(len(info))}
	data = append(data, header...)
	data = append(data, info...)
	data = append(data, make([]byte, 2000)...)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write flac: %v", err)
	}
	return path
}

func TestReadStreamInfo(t *testing.T) {
	path := newFLAC(t)
	td, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if td.SampleRate != 44100 || td.Channels != 2 || td.Duration != 10 {
		t.Fatalf("stream info mismatch: %+v", td)
	}
	if td.Bitrate <= 0 {
		t.Fatalf("expected estimated bitrate, got %d", td.Bitrate)
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	path := newFLAC(t)

	in := media.TagData{
		Title:      "Thela Hun Ginjeet",
		Artist:     "King Crimson",
		Album:      "Discipline",
		Genre:      "Progressive Rock",
		Year:       1981,
		Track:      4,
		TrackTotal: 7,
		Rating:     9,
		MBTrackID:  "mb-track",
		AcoustIDFp: "fp-data",
	}
	if err := WriteTags(path, in); err != nil {
		t.Fatalf("WriteTags: %v", err)
	}

	out, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if out.Title != in.Title || out.Artist != in.Artist || out.Album != in.Album {
		t.Fatalf("text mismatch: %+v", out)
	}
	if out.Year != 1981 || out.Track != 4 || out.TrackTotal != 7 || out.Rating != 9 {
		t.Fatalf("numeric mismatch: %+v", out)
	}
	if out.MBTrackID != "mb-track" || out.AcoustIDFp != "fp-data" {
		t.Fatalf("identifier mismatch: %+v", out)
	}
	// Audio properties still come from STREAMINFO after the rewrite.
	if out.SampleRate != 44100 || out.Duration != 10 {
		t.Fatalf("stream info lost in rewrite: %+v", out)
	}
}

func TestUnmanagedCommentsPreserved(t *testing.T) {
	path := newFLAC(t)

	if err := rewrite(path, func(blocks []block) []block {
		comments := []comment{{key: "REPLAYGAIN_TRACK_GAIN", value: "-6.5 dB"}}
		return append(blocks, block{kind: blockVorbisComment, data: encodeComments(comments)})
	}); err != nil {
		t.Fatalf("seed comment: %v", err)
	}

	if err := WriteTags(path, media.TagData{Title: "X"}); err != nil {
		t.Fatalf("WriteTags: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	st, err := parseStream(f)
	if err != nil {
		t.Fatalf("parseStream: %v", err)
	}
	found := false
	for _, b := range st.blocks {
		if b.kind != blockVorbisComment {
			continue
		}
		for _, c := range parseComments(b.data) {
			if c.key == "REPLAYGAIN_TRACK_GAIN" && c.value == "-6.5 dB" {
				found = true
			}
		}
	}
	if !found {
		t.Fatal("unmanaged comment was dropped by rewrite")
	}
}

func TestWriteReplacesAliasComments(t *testing.T) {
	path := newFLAC(t)

	// Seed the file with the alias spellings some taggers emit.
	if err := rewrite(path, func(blocks []block) []block {
		comments := []comment{
			{key: "ALBUM ARTIST", value: "Old Band"},
			{key: "YEAR", value: "1990"},
			{key: "DESCRIPTION", value: "old comment"},
			{key: "TOTALTRACKS", value: "12"},
		}
		return append(blocks, block{kind: blockVorbisComment, data: encodeComments(comments)})
	}); err != nil {
		t.Fatalf("seed comments: %v", err)
	}

	in := media.TagData{
		AlbumArtist: "New Band",
		Year:        2024,
		Comment:     "new comment",
		TrackTotal:  7,
	}
	if err := WriteTags(path, in); err != nil {
		t.Fatalf("WriteTags: %v", err)
	}

	out, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if out.AlbumArtist != "New Band" {
		t.Fatalf("alias shadowed album artist: %q", out.AlbumArtist)
	}
	if out.Year != 2024 {
		t.Fatalf("alias shadowed year: %d", out.Year)
	}
	if out.Comment != "new comment" {
		t.Fatalf("alias shadowed comment: %q", out.Comment)
	}
	if out.TrackTotal != 7 {
		t.Fatalf("alias shadowed track total: %d", out.TrackTotal)
	}

	// The aliases themselves must be gone, not just outvoted.
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	st, err := parseStream(f)
	if err != nil {
		t.Fatalf("parseStream: %v", err)
	}
	for _, b := range st.blocks {
		if b.kind != blockVorbisComment {
			continue
		}
		for _, c := range parseComments(b.data) {
			switch c.key {
			case "ALBUM ARTIST", "YEAR", "DESCRIPTION", "TOTALTRACKS", "TOTALDISCS":
				t.Fatalf("alias comment survived rewrite: %s=%s", c.key, c.value)
			}
		}
	}
}

func TestEmptyValueRemovesComment(t *testing.T) {
	path := newFLAC(t)
	if err := WriteTags(path, media.TagData{Title: "A", Genre: "Jazz"}); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := WriteTags(path, media.TagData{Title: "A"}); err != nil {
		t.Fatalf("second write: %v", err)
	}
	out, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if out.Genre != "" {
		t.Fatalf("genre comment should be gone, got %q", out.Genre)
	}
}

func TestNormalizeRating(t *testing.T) {
	cases := map[string]int{
		"0":   0,
		"5":   5,
		"10":  10,
		"50":  5,
		"100": 10,
		"84":  8,
		"255": 10,
		"x":   0,
		"-3":  0,
	}
	for in, want := range cases {
		if got := normalizeRating(in); got != want {
			t.Errorf("normalizeRating(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestCoverWriteReadRemove(t *testing.T) {
	path := newFLAC(t)
	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xE0, 9, 9}

	if err := WriteCover(path, media.CoverBlob{Data: jpeg, MIME: "image/jpeg"}); err != nil {
		t.Fatalf("WriteCover: %v", err)
	}
	blob, err := ReadCover(path)
	if err != nil {
		t.Fatalf("ReadCover: %v", err)
	}
	if blob.MIME != "image/jpeg" || len(blob.Data) != len(jpeg) {
		t.Fatalf("cover mismatch: %+v", blob)
	}

	if err := RemoveCover(path); err != nil {
		t.Fatalf("RemoveCover: %v", err)
	}
	blob, err = ReadCover(path)
	if err != nil {
		t.Fatalf("ReadCover after remove: %v", err)
	}
	if blob.Data != nil {
		t.Fatal("cover should have been removed")
	}
}
