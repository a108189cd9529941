package id3

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"attune/internal/media"
)

// newMP3 writes a file with no tag and a single valid MPEG1 Layer III
// frame header followed by filler audio bytes.
func newMP3(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "track.mp3")

	// Sync + MPEG1 + Layer III, 128 kbit/s, 44100 Hz, stereo.
	header := uint32(0xFFE00000)
	header |= 3 << 19
	header |= 1 << 17
	header |= 9 << 12
	header |= 0 << 10
	frame := make([]byte, 4)
	binary.BigEndian.PutUint32(frame, header)

	data := append(frame, make([]byte, 4000)...)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write mp3: %v", err)
	}
	return path
}

func TestWriteReadRoundTrip(t *testing.T) {
	path := newMP3(t)

	in := media.TagData{
		Title:      "Paranoid",
		Artist:     "Black Sabbath",
		Album:      "Paranoid",
		Genre:      "Metal",
		Comment:    "remaster",
		Year:       1970,
		Track:      2,
		TrackTotal: 8,
		Disc:       1,
		MBAlbumID:  "4b0a3a33",
		AcoustID:   "ac-1",
		Rating:     8,
	}
	if err := WriteTags(path, in); err != nil {
		t.Fatalf("WriteTags: %v", err)
	}

	out, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if out.Title != in.Title || out.Artist != in.Artist || out.Album != in.Album {
		t.Fatalf("text fields mismatch: %+v", out)
	}
	if out.Year != 1970 || out.Track != 2 || out.TrackTotal != 8 || out.Disc != 1 || out.DiscTotal != 0 {
		t.Fatalf("numeric fields mismatch: %+v", out)
	}
	if out.Comment != "remaster" {
		t.Fatalf("comment mismatch: %q", out.Comment)
	}
	if out.MBAlbumID != "4b0a3a33" || out.AcoustID != "ac-1" {
		t.Fatalf("identifier mismatch: %+v", out)
	}
	if out.Rating != 8 {
		t.Fatalf("rating mismatch: %d", out.Rating)
	}
	if out.Bitrate != 128 || out.SampleRate != 44100 || out.Channels != 2 {
		t.Fatalf("audio props mismatch: %+v", out)
	}
}

func TestRatingByteRoundTrip(t *testing.T) {
	for r := 0; r <= 10; r++ {
		if got := byteToRating(ratingToByte(r)); got != r {
			t.Errorf("rating %d -> byte %d -> %d", r, ratingToByte(r), got)
		}
	}
}

func TestEmptyIdentifierRemovesFrame(t *testing.T) {
	path := newMP3(t)

	if err := WriteTags(path, media.TagData{Title: "A", MBTrackID: "id-1"}); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := WriteTags(path, media.TagData{Title: "A"}); err != nil {
		t.Fatalf("second write: %v", err)
	}

	out, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if out.MBTrackID != "" {
		t.Fatalf("identifier frame should be gone, got %q", out.MBTrackID)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	tag, err := parseTag(f)
	if err != nil {
		t.Fatalf("parseTag: %v", err)
	}
	for _, fr := range tag.frames {
		if fr.id == "TXXX" {
			t.Fatalf("stale TXXX frame left behind: %q", fr.data)
		}
	}
}

func TestUnmanagedFramesPreserved(t *testing.T) {
	path := newMP3(t)
	if err := WriteTags(path, media.TagData{Title: "A"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	// Inject a frame this package does not manage.
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	tag, err := parseTag(f)
	f.Close()
	if err != nil {
		t.Fatalf("parseTag: %v", err)
	}
	tag.frames = append(tag.frames, frame{id: "TBPM", data: append([]byte{encUTF8}, "120"...)})
	if err := rewrite(path, func([]frame) []frame { return tag.frames }); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	if err := WriteTags(path, media.TagData{Title: "B"}); err != nil {
		t.Fatalf("second write: %v", err)
	}
	f, err = os.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer f.Close()
	tag, err = parseTag(f)
	if err != nil {
		t.Fatalf("parseTag: %v", err)
	}
	found := false
	for _, fr := range tag.frames {
		if fr.id == "TBPM" {
			found = true
		}
	}
	if !found {
		t.Fatal("unmanaged TBPM frame was dropped by rewrite")
	}
}

func TestCoverWriteReadRemove(t *testing.T) {
	path := newMP3(t)
	png := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 1, 2, 3}

	if err := WriteCover(path, media.CoverBlob{Data: png, MIME: "image/png"}); err != nil {
		t.Fatalf("WriteCover: %v", err)
	}
	blob, err := ReadCover(path)
	if err != nil {
		t.Fatalf("ReadCover: %v", err)
	}
	if blob.MIME != "image/png" || len(blob.Data) != len(png) {
		t.Fatalf("cover mismatch: mime=%q len=%d", blob.MIME, len(blob.Data))
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

func TestCoverRejectsUnknownMIME(t *testing.T) {
	path := newMP3(t)
	if err := WriteCover(path, media.CoverBlob{Data: []byte{1}, MIME: "image/gif"}); err == nil {
		t.Fatal("expected error for unsupported cover type")
	}
}

func TestTrackPairDedicatedNotOverridden(t *testing.T) {
	// A combined TRCK pair must not override values already set.
	var td media.TagData
	td.TrackTotal = 12
	applyFrame(&td, frame{id: "TRCK", data: append([]byte{encUTF8}, "3/9"...)})
	if td.Track != 3 {
		t.Fatalf("track not filled: %d", td.Track)
	}
	if td.TrackTotal != 12 {
		t.Fatalf("dedicated total overridden: %d", td.TrackTotal)
	}
}

func TestReadFileWithoutTag(t *testing.T) {
	path := newMP3(t)
	out, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if out.Title != "" || out.Bitrate != 128 {
		t.Fatalf("unexpected read of untagged file: %+v", out)
	}
}
