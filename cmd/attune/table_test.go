package main

import (
	"strings"
	"testing"
)

func TestRatingLabel(t *testing.T) {
	if got := ratingLabel(0); got != "" {
		t.Fatalf("unrated must be blank, got %q", got)
	}
	if got := ratingLabel(7); got != "7" {
		t.Fatalf("ratingLabel(7) = %q", got)
	}
}

func TestFormatDuration(t *testing.T) {
	cases := map[int]string{0: "", 59: "0:59", 125: "2:05", 600: "10:00"}
	for in, want := range cases {
		if got := formatDuration(in); got != want {
			t.Errorf("formatDuration(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable(
		[]column{{title: "Path"}, {title: "Rating", numeric: true}},
		[][]string{{"/music/a.mp3", "9"}, {"/music/b.mp3"}},
	)
	if !strings.Contains(out, "Path") || !strings.Contains(out, "Rating") {
		t.Fatalf("headers missing from output:\n%s", out)
	}
	if !strings.Contains(out, "/music/b.mp3") {
		t.Fatalf("short row dropped:\n%s", out)
	}
}
