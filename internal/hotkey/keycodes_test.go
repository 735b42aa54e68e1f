package hotkey

import (
	"reflect"
	"testing"

	"golang.org/x/sys/unix"
)

func TestParseKeys(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		want    map[uint16]string
		wantErr bool
	}{
		{
			name:  "default pair",
			input: []string{"F4", "F5"},
			want:  map[uint16]string{62: "F4", 63: "F5"},
		},
		{
			name:  "case insensitive",
			input: []string{"f1"},
			want:  map[uint16]string{59: "F1"},
		},
		{
			name:  "surrounding whitespace",
			input: []string{" F12 "},
			want:  map[uint16]string{88: "F12"},
		},
		{
			name:  "function row gap between F10 and F11",
			input: []string{"F10", "F11"},
			want:  map[uint16]string{68: "F10", 87: "F11"},
		},
		{
			name:    "beyond the function row",
			input:   []string{"F13"},
			wantErr: true,
		},
		{
			name:    "non function key",
			input:   []string{"DEL"},
			wantErr: true,
		},
		{
			name:    "empty list",
			input:   nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseKeys(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseKeys(%v) expected error, got %v", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseKeys(%v): %v", tt.input, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseKeys(%v) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestMatchPress(t *testing.T) {
	keys := map[uint16]string{62: "F4", 63: "F5"}

	tests := []struct {
		name    string
		event   unix.InputEvent
		wantKey string
		wantHit bool
	}{
		{
			name:    "watched key down",
			event:   unix.InputEvent{Type: evKey, Code: 62, Value: keyDown},
			wantKey: "F4",
			wantHit: true,
		},
		{
			name:  "release ignored",
			event: unix.InputEvent{Type: evKey, Code: 62, Value: 0},
		},
		{
			name:  "autorepeat ignored",
			event: unix.InputEvent{Type: evKey, Code: 62, Value: 2},
		},
		{
			name:  "sync event ignored",
			event: unix.InputEvent{Type: 0, Code: 0, Value: 0},
		},
		{
			name:  "unwatched key ignored",
			event: unix.InputEvent{Type: evKey, Code: 30, Value: keyDown},
		},
		{
			name:  "non key event with watched code",
			event: unix.InputEvent{Type: 0x04, Code: 62, Value: keyDown},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, ok := matchPress(tt.event, keys)
			if ok != tt.wantHit || key != tt.wantKey {
				t.Errorf("matchPress(%+v) = (%q, %v), want (%q, %v)", tt.event, key, ok, tt.wantKey, tt.wantHit)
			}
		})
	}
}
