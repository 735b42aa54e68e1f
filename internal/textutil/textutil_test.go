package textutil

import (
	"strings"
	"testing"
)

func TestSanitizeTitle(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "game title with punctuation", input: "My Awesome Game: Level #1!", want: "My_Awesome_Game_Level_1"},
		{name: "whitespace collapses", input: "  spaces \t collapse\n here ", want: "spaces_collapse_here"},
		{name: "keeps dash dot underscore", input: "dash-dot. under_score", want: "dash-dot._under_score"},
		{name: "unicode letters survive", input: "Ünïcödé Títle", want: "Ünïcödé_Títle"},
		{name: "empty becomes untitled", input: "", want: "untitled"},
		{name: "whitespace only becomes untitled", input: "   \t\n", want: "untitled"},
		{name: "symbols only become untitled", input: "!!!***???", want: "untitled"},
		{name: "path separators stripped", input: "steam/proton\\game", want: "steamprotongame"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeTitle(tt.input); got != tt.want {
				t.Fatalf("SanitizeTitle(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeTitleCapsLength(t *testing.T) {
	long := strings.Repeat("a", 200)
	got := SanitizeTitle(long)
	if len([]rune(got)) != 80 {
		t.Fatalf("len = %d, want 80", len([]rune(got)))
	}

	wide := strings.Repeat("ü", 200)
	got = SanitizeTitle(wide)
	if n := len([]rune(got)); n != 80 {
		t.Fatalf("rune len = %d, want 80", n)
	}
}
