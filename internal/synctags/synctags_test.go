package synctags_test

import (
	"testing"

	"attune/internal/media"
	"attune/internal/policy"
	"attune/internal/synctags"
)

func TestDirectionalOverwriteIgnoresSecondary(t *testing.T) {
	primary := media.TagData{Title: "A", Artist: ""}
	secondary := media.TagData{Title: "B", Artist: "Someone"}

	merged := synctags.Directional(primary, secondary, policy.ModeOverwrite)
	if merged != primary {
		t.Fatalf("overwrite must keep primary untouched: %+v", merged)
	}
}

func TestDirectionalFillEmpty(t *testing.T) {
	primary := media.TagData{Title: "A", Year: 0, Rating: 0}
	secondary := media.TagData{Title: "B", Artist: "Someone", Year: 1999, Rating: 4}

	merged := synctags.Directional(primary, secondary, policy.ModeFillEmpty)
	if merged.Title != "A" {
		t.Fatalf("non-empty primary field overwritten: %q", merged.Title)
	}
	if merged.Artist != "Someone" || merged.Year != 1999 || merged.Rating != 4 {
		t.Fatalf("empty fields not filled: %+v", merged)
	}
}

func TestSmartMergeAgreement(t *testing.T) {
	td := media.TagData{Title: "Same", Year: 2000}
	res := synctags.SmartMerge(td, td)
	if res.Changed || res.Conflict {
		t.Fatalf("identical views must be a no-op: %+v", res)
	}
	if res.Merged != td {
		t.Fatalf("merged record altered: %+v", res.Merged)
	}
}

func TestSmartMergeSingleSidedIsChanged(t *testing.T) {
	primary := media.TagData{Title: "Song"}
	secondary := media.TagData{Title: "Song", Genre: "Jazz", Rating: 6}

	res := synctags.SmartMerge(primary, secondary)
	if !res.Changed {
		t.Fatal("single-sided fields must set the changed flag")
	}
	if res.Conflict {
		t.Fatal("no conflict expected")
	}
	if res.Merged.Genre != "Jazz" || res.Merged.Rating != 6 {
		t.Fatalf("single-sided values not taken: %+v", res.Merged)
	}
}

func TestSmartMergeConflictKeepsPrimaryPlaceholder(t *testing.T) {
	primary := media.TagData{Title: "Old Name", Genre: "Rock"}
	secondary := media.TagData{Title: "New Name", Comment: "from attrs"}

	res := synctags.SmartMerge(primary, secondary)
	if !res.Conflict {
		t.Fatal("differing non-empty fields must flag a conflict")
	}
	if res.Merged.Title != "Old Name" {
		t.Fatalf("conflicting field must keep the primary value, got %q", res.Merged.Title)
	}
	// Fields without a conflict still resolve normally.
	if !res.Changed || res.Merged.Genre != "Rock" || res.Merged.Comment != "from attrs" {
		t.Fatalf("non-conflicting fields mishandled: %+v", res)
	}
}

func TestSmartMergeNormalizedComparison(t *testing.T) {
	// "é" composed vs decomposed, plus surrounding whitespace.
	primary := media.TagData{Artist: "Beyoncé"}
	secondary := media.TagData{Artist: " Beyoncé "}

	res := synctags.SmartMerge(primary, secondary)
	if res.Conflict {
		t.Fatalf("normalized-equal strings must not conflict: %+v", res)
	}
	if res.Merged.Artist != primary.Artist {
		t.Fatalf("expected primary spelling kept, got %q", res.Merged.Artist)
	}
}
