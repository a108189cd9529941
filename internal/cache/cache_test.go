package cache_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"attune/internal/cache"
	"attune/internal/logging"
	"attune/internal/media"
)

func newCache(t *testing.T) (*cache.Cache, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "media.db")
	store, err := cache.Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return cache.New(store, logging.NewNop()), dbPath
}

func item(path string) media.Item {
	return media.Item{
		Path:    path,
		Base:    filepath.Dir(path),
		Title:   filepath.Base(path),
		Size:    100,
		ModTime: time.Now().Truncate(time.Second),
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	c, _ := newCache(t)
	ctx := context.Background()

	a := item("/music/a.mp3")
	a.Artist = "X"
	a.Rating = 7
	a.Inode = 42
	c.ApplyBatch([]media.Item{a, item("/music/b.flac")})

	if err := c.Save(ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}

	c.ApplyBatch([]media.Item{item("/music/c.ogg")})
	c.Load(ctx)
	if c.Len() != 2 {
		t.Fatalf("expected 2 persisted items after reload, got %d", c.Len())
	}
	got, ok := c.Get("/music/a.mp3")
	if !ok || got.Artist != "X" || got.Rating != 7 || got.Inode != 42 {
		t.Fatalf("item fields lost: %+v", got)
	}
	if !got.ModTime.Equal(a.ModTime) {
		t.Fatalf("mod time mismatch: %v vs %v", got.ModTime, a.ModTime)
	}
}

func TestLoadCorruptDatabaseStartsEmpty(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "media.db")
	if err := os.WriteFile(dbPath, []byte("this is not sqlite"), 0o644); err != nil {
		t.Fatalf("write junk: %v", err)
	}
	store, err := cache.Open(dbPath)
	if err != nil {
		t.Fatalf("Open must recover from corruption: %v", err)
	}
	defer store.Close()

	c := cache.New(store, logging.NewNop())
	c.Load(context.Background())
	if c.Len() != 0 {
		t.Fatalf("expected empty cache, got %d items", c.Len())
	}
}

func TestApplyBatchReplacesByPath(t *testing.T) {
	c, _ := newCache(t)

	first := item("/m/a.mp3")
	first.Title = "old"
	c.ApplyBatch([]media.Item{first})

	second := item("/m/a.mp3")
	second.Title = "new"
	c.ApplyBatch([]media.Item{second})

	if c.Len() != 1 {
		t.Fatalf("expected single entry, got %d", c.Len())
	}
	got, _ := c.Get("/m/a.mp3")
	if got.Title != "new" {
		t.Fatalf("expected last write to win, got %q", got.Title)
	}
}

func TestApplyBatchTrackIDLossStillProceeds(t *testing.T) {
	c, _ := newCache(t)

	withID := item("/m/a.mp3")
	withID.MBTrackID = "mb-1"
	c.ApplyBatch([]media.Item{withID})

	withoutID := item("/m/a.mp3")
	c.ApplyBatch([]media.Item{withoutID})

	got, _ := c.Get("/m/a.mp3")
	if got.MBTrackID != "" {
		t.Fatalf("overwrite must proceed, got %q", got.MBTrackID)
	}
}

func TestReconcileRemovesUnwatchedAndMarksMissing(t *testing.T) {
	c, _ := newCache(t)
	root := t.TempDir()

	alive := filepath.Join(root, "alive.mp3")
	if err := os.WriteFile(alive, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	gone := filepath.Join(root, "gone.mp3")

	c.ApplyBatch([]media.Item{item(alive), item(gone), item("/elsewhere/x.mp3")})
	c.Reconcile([]string{root})

	if _, ok := c.Get("/elsewhere/x.mp3"); ok {
		t.Fatal("entry of unwatched root should be removed")
	}
	goneItem, ok := c.Get(gone)
	if !ok {
		t.Fatal("missing file entry should be retained")
	}
	if !goneItem.Missing {
		t.Fatal("missing file entry should be marked missing")
	}
	aliveItem, _ := c.Get(alive)
	if aliveItem.Missing {
		t.Fatal("existing file should not be missing")
	}
}

func TestReconcileClearsMissingWhenFileReturns(t *testing.T) {
	c, _ := newCache(t)
	root := t.TempDir()
	path := filepath.Join(root, "back.mp3")

	it := item(path)
	it.Missing = true
	c.ApplyBatch([]media.Item{it})
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	c.Reconcile([]string{root})
	got, _ := c.Get(path)
	if got.Missing {
		t.Fatal("reappeared file should no longer be missing")
	}
}

func TestMarkRootUnreachable(t *testing.T) {
	c, _ := newCache(t)
	c.ApplyBatch([]media.Item{item("/vol/a.mp3"), item("/vol/sub/b.mp3"), item("/other/c.mp3")})

	c.MarkRootUnreachable("/vol")

	for _, path := range []string{"/vol/a.mp3", "/vol/sub/b.mp3"} {
		got, _ := c.Get(path)
		if !got.Missing {
			t.Errorf("%s should be missing", path)
		}
	}
	other, _ := c.Get("/other/c.mp3")
	if other.Missing {
		t.Fatal("entries outside the root must be untouched")
	}
	if c.Len() != 3 {
		t.Fatalf("no entries should be removed, got %d", c.Len())
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	c, _ := newCache(t)
	ctx := context.Background()

	a := item("/music/a.mp3")
	a.Rating = 9
	c.ApplyBatch([]media.Item{a, item("/music/b.flac")})

	exportPath := filepath.Join(t.TempDir(), "backup.json.gz")
	if err := c.Export(exportPath); err != nil {
		t.Fatalf("Export: %v", err)
	}

	fresh, _ := newCache(t)
	n, err := fresh.Import(ctx, exportPath)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if n != 2 || fresh.Len() != 2 {
		t.Fatalf("expected 2 imported items, got n=%d len=%d", n, fresh.Len())
	}
	got, _ := fresh.Get("/music/a.mp3")
	if got.Rating != 9 {
		t.Fatalf("imported item fields lost: %+v", got)
	}
}
