package music

import "testing"

func TestExtractRoomName(t *testing.T) {
	tests := []struct {
		friendly string
		entityID string
		want     string
	}{
		{"Living Room Speaker", "media_player.ma_living_room", "Living Room"},
		{"Kitchen Player", "media_player.ma_kitchen", "Kitchen"},
		{"Office MA", "media_player.ma_office", "Office"},
		{"Bedroom Music", "media_player.ma_bedroom", "Bedroom"},
		{"Den", "media_player.ma_den", "Den"},
		{"", "media_player.ma_guest_room", "guest room"},
		{"", "media_player.sonos_porch", "sonos porch"},
	}
	for _, tc := range tests {
		if got := ExtractRoomName(tc.friendly, tc.entityID); got != tc.want {
			t.Errorf("ExtractRoomName(%q, %q) = %q, want %q", tc.friendly, tc.entityID, got, tc.want)
		}
	}
}

func TestMatchRoom(t *testing.T) {
	rooms := map[string]string{
		"living room": "media_player.ma_living_room",
		"kitchen":     "media_player.ma_kitchen",
		"guest room":  "media_player.ma_guest_room",
	}

	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"exact", "kitchen", "media_player.ma_kitchen"},
		{"exact with case and space", "  Living Room ", "media_player.ma_living_room"},
		{"whole word", "living", "media_player.ma_living_room"},
		{"substring query in room", "gues", "media_player.ma_guest_room"},
		{"room contained in query", "the kitchen please", "media_player.ma_kitchen"},
		{"no match", "garage", ""},
		{"empty", "", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := MatchRoom(tc.query, rooms); got != tc.want {
				t.Errorf("MatchRoom(%q) = %q, want %q", tc.query, got, tc.want)
			}
		})
	}
}

func TestMatchRoom_ExactBeatsSubstring(t *testing.T) {
	rooms := map[string]string{
		"room":       "media_player.ma_room",
		"great room": "media_player.ma_great_room",
	}
	if got := MatchRoom("room", rooms); got != "media_player.ma_room" {
		t.Errorf("MatchRoom(room) = %q, want exact match", got)
	}
}

func TestMatchRoom_Deterministic(t *testing.T) {
	// Two rooms both contain "room"; the lexicographically first must
	// win every time.
	rooms := map[string]string{
		"blue room": "media_player.ma_blue_room",
		"red room":  "media_player.ma_red_room",
	}
	for range 20 {
		if got := MatchRoom("room", rooms); got != "media_player.ma_blue_room" {
			t.Fatalf("MatchRoom(room) = %q, want media_player.ma_blue_room", got)
		}
	}
}
