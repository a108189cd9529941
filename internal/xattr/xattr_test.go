//go:build linux

package xattr_test

import (
	"os"
	"path/filepath"
	"testing"

	"attune/internal/media"
	"attune/internal/xattr"
)

// newAttrFile creates a file and skips the test when the temp filesystem
// does not accept user xattrs.
func newAttrFile(t *testing.T) (*xattr.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "track.mp3")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	store := xattr.NewStore()
	if !store.Supported(path) {
		t.Skip("filesystem does not support extended attributes")
	}
	if ok, err := store.WriteRating(path, 1); err != nil || !ok {
		t.Skipf("user xattrs not writable here: ok=%v err=%v", ok, err)
	}
	if _, err := store.WriteRating(path, 0); err != nil {
		t.Fatalf("reset rating: %v", err)
	}
	return store, path
}

func TestWriteReadTags(t *testing.T) {
	store, path := newAttrFile(t)

	in := media.TagData{
		Title:  "Song",
		Artist: "Band",
		Year:   1999,
		Track:  3,
		Rating: 7,
	}
	ok, err := store.WriteTags(path, in)
	if err != nil || !ok {
		t.Fatalf("WriteTags: ok=%v err=%v", ok, err)
	}

	out, ok := store.ReadTags(path)
	if !ok {
		t.Fatal("ReadTags reported unsupported")
	}
	if out.Title != "Song" || out.Artist != "Band" || out.Year != 1999 || out.Track != 3 || out.Rating != 7 {
		t.Fatalf("round trip mismatch: %+v", out)
	}
	if out.Album != "" || out.Disc != 0 {
		t.Fatalf("unset fields must stay zero: %+v", out)
	}
}

func TestEmptyValueRemovesAttribute(t *testing.T) {
	store, path := newAttrFile(t)

	if _, err := store.WriteTags(path, media.TagData{Title: "A", Genre: "Rock"}); err != nil {
		t.Fatalf("initial write: %v", err)
	}
	if _, err := store.WriteTags(path, media.TagData{Title: "A"}); err != nil {
		t.Fatalf("second write: %v", err)
	}
	out, _ := store.ReadTags(path)
	if out.Genre != "" {
		t.Fatalf("empty genre should have removed the attribute, got %q", out.Genre)
	}
}

func TestRatingZeroNeverPersisted(t *testing.T) {
	store, path := newAttrFile(t)

	if _, err := store.WriteRating(path, 5); err != nil {
		t.Fatalf("write rating: %v", err)
	}
	if r, _ := store.ReadRating(path); r != 5 {
		t.Fatalf("expected rating 5, got %d", r)
	}
	if _, err := store.WriteRating(path, 0); err != nil {
		t.Fatalf("clear rating: %v", err)
	}
	if r, _ := store.ReadRating(path); r != 0 {
		t.Fatalf("expected rating cleared, got %d", r)
	}
}

func TestRatingClamped(t *testing.T) {
	store, path := newAttrFile(t)

	if _, err := store.WriteRating(path, 99); err != nil {
		t.Fatalf("write rating: %v", err)
	}
	if r, _ := store.ReadRating(path); r != 10 {
		t.Fatalf("expected clamp to 10, got %d", r)
	}
}
