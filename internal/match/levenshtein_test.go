package match

import (
	"strings"
	"testing"
)

func TestDistanceKnownPairs(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "paris", 5},
		{"paris", "", 5},
		{"paris", "paris", 0},
		{"paris", "pariss", 1},
		{"paris", "pares", 1},
		{"kitten", "sitting", 3},
		{"flaw", "lawn", 2},
		{"Paris", "paris", 1}, // case-sensitive by contract
	}
	for _, c := range cases {
		if got := Distance(c.a, c.b); got != c.want {
			t.Errorf("Distance(%q, %q) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestDistanceSymmetry(t *testing.T) {
	pairs := [][2]string{
		{"einstein", "einstien"},
		{"", "abc"},
		{"répondre", "repondre"},
		{"quiz", "quizz"},
	}
	for _, p := range pairs {
		if Distance(p[0], p[1]) != Distance(p[1], p[0]) {
			t.Errorf("Distance not symmetric for %q / %q", p[0], p[1])
		}
	}
}

func TestDistanceIdentity(t *testing.T) {
	for _, s := range []string{"", "a", "leaderboard", "日本語"} {
		if d := Distance(s, s); d != 0 {
			t.Errorf("Distance(%q, %q) = %d, want 0", s, s, d)
		}
	}
}

func TestRankFiltersAndSorts(t *testing.T) {
	candidates := []string{"Paris", "Parisian", "London", "pariss"}
	ranked := Rank("paris", candidates, 3)

	if len(ranked) != 3 {
		t.Fatalf("expected 3 qualifying candidates, got %v", ranked)
	}
	if ranked[0] != "Paris" {
		t.Errorf("expected closest candidate first, got %q", ranked[0])
	}
	// Every result must be within the threshold, non-decreasing by distance.
	prev := -1
	for _, c := range ranked {
		d := Distance("paris", strings.ToLower(c))
		if d > 3 {
			t.Errorf("candidate %q beyond threshold (distance %d)", c, d)
		}
		if d < prev {
			t.Errorf("result not sorted by distance: %v", ranked)
		}
		prev = d
	}
}

func TestRankStableOnTies(t *testing.T) {
	// "pariss" and "parise" are both distance 1 from "paris"; original
	// order must be preserved.
	ranked := Rank("paris", []string{"pariss", "parise"}, 3)
	if len(ranked) != 2 || ranked[0] != "pariss" || ranked[1] != "parise" {
		t.Fatalf("expected stable tie order, got %v", ranked)
	}
}

func TestRankNoMatch(t *testing.T) {
	if ranked := Rank("paris", []string{"stockholm", "helsinki"}, 3); len(ranked) != 0 {
		t.Fatalf("expected no matches, got %v", ranked)
	}
}
