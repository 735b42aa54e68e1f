package assembler

import (
	"testing"
	"time"
)

func TestClipFileName(t *testing.T) {
	ts := time.Date(2025, 1, 2, 3, 4, 5, 123_000_000, time.UTC)
	tests := []struct {
		name    string
		title   string
		seconds int
		want    string
	}{
		{
			name:    "sanitizes title",
			title:   "Boss Fight: Phase #2!",
			seconds: 90,
			want:    "20250102_030405.123_90s_Boss_Fight_Phase_2.mp4",
		},
		{
			name:    "empty title falls back",
			title:   "   ",
			seconds: 30,
			want:    "20250102_030405.123_30s_untitled.mp4",
		},
		{
			name:    "keeps allowed punctuation",
			title:   "dota2 - ranked.v2",
			seconds: 120,
			want:    "20250102_030405.123_120s_dota2_-_ranked.v2.mp4",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := clipFileName(ts, tt.seconds, tt.title, ".mp4")
			if got != tt.want {
				t.Fatalf("clipFileName = %q, want %q", got, tt.want)
			}
		})
	}
}
