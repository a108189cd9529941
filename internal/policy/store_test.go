package policy_test

import (
	"os"
	"path/filepath"
	"testing"

	"attune/internal/policy"
)

func TestLookupLongestPrefixWins(t *testing.T) {
	st, err := policy.Load(filepath.Join(t.TempDir(), "sources.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	must(t, st.Upsert(policy.SourcePolicy{
		Path: "/music", Primary: policy.SourceTags, Secondary: policy.SourceAttributes, Mode: policy.ModeAsk,
	}))
	must(t, st.Upsert(policy.SourcePolicy{
		Path: "/music/rock", Primary: policy.SourceAttributes, Secondary: policy.SourceTags, Mode: policy.ModeOverwrite,
	}))

	got := st.Lookup("/music/rock/x.mp3")
	if got.Path != "/music/rock" || got.Mode != policy.ModeOverwrite {
		t.Fatalf("expected /music/rock policy, got %+v", got)
	}

	got = st.Lookup("/music/jazz/y.flac")
	if got.Path != "/music" {
		t.Fatalf("expected /music policy, got %+v", got)
	}
}

func TestLookupDoesNotMatchPartialComponent(t *testing.T) {
	st, err := policy.Load(filepath.Join(t.TempDir(), "sources.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	must(t, st.Upsert(policy.SourcePolicy{
		Path: "/music/rock", Primary: policy.SourceTags, Secondary: policy.SourceNone, Mode: policy.ModeOverwrite,
	}))

	got := st.Lookup("/music/rocket/z.mp3")
	if got.Path == "/music/rock" {
		t.Fatalf("partial component must not match: %+v", got)
	}
	if got.Primary != policy.SourceTags || got.Secondary != policy.SourceAttributes || got.Mode != policy.ModeAsk {
		t.Fatalf("expected default policy, got %+v", got)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.toml")
	st, err := policy.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	must(t, st.Upsert(policy.SourcePolicy{
		Path: "/library", Primary: policy.SourceAttributes, Secondary: policy.SourceTags, Mode: policy.ModeFillEmpty,
	}))
	if err := st.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	again, err := policy.Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	list := again.List()
	if len(list) != 1 || list[0].Mode != policy.ModeFillEmpty || list[0].Primary != policy.SourceAttributes {
		t.Fatalf("round trip mismatch: %+v", list)
	}
}

func TestLoadCorruptFileRecoversEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.toml")
	if err := os.WriteFile(path, []byte("not [valid toml"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	st, err := policy.Load(path)
	if err != nil {
		t.Fatalf("Load should recover silently: %v", err)
	}
	if len(st.List()) != 0 {
		t.Fatalf("expected empty store, got %+v", st.List())
	}
}

func TestLegacyImport(t *testing.T) {
	dir := t.TempDir()
	legacy := filepath.Join(dir, "directories.txt")
	modern := filepath.Join(dir, "sources.toml")
	body := "/music\n\n# comment\n/podcasts\n"
	if err := os.WriteFile(legacy, []byte(body), 0o644); err != nil {
		t.Fatalf("write legacy: %v", err)
	}

	st, err := policy.LoadWithLegacyImport(modern, legacy)
	if err != nil {
		t.Fatalf("LoadWithLegacyImport: %v", err)
	}
	list := st.List()
	if len(list) != 2 {
		t.Fatalf("expected 2 imported roots, got %+v", list)
	}
	for _, p := range list {
		if p.Primary != policy.SourceTags || p.Secondary != policy.SourceNone || p.Mode != policy.ModeOverwrite {
			t.Fatalf("imported policy should be tags/none/overwrite: %+v", p)
		}
	}
	if _, err := os.Stat(modern); err != nil {
		t.Fatalf("import should have written the new format: %v", err)
	}

	// Once the new file exists the legacy list is ignored.
	st2, err := policy.LoadWithLegacyImport(modern, legacy)
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if len(st2.List()) != 2 {
		t.Fatalf("expected persisted policies, got %+v", st2.List())
	}
}

func TestRemove(t *testing.T) {
	st, err := policy.Load(filepath.Join(t.TempDir(), "sources.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	must(t, st.Upsert(policy.Default("/a")))
	if !st.Remove("/a") {
		t.Fatal("expected removal")
	}
	if st.Remove("/a") {
		t.Fatal("second removal should report false")
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
