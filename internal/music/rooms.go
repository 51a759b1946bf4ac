// Package music exposes Music Assistant playback control as
// conversation tools. Players are addressed by room name; voice
// transcription mangles names often enough that matching is forgiving.
package music

import (
	"sort"
	"strings"
)

// playerSuffixes are trimmed from friendly names when deriving a room
// name ("Living Room Speaker" -> "Living Room").
var playerSuffixes = []string{" Speaker", " Player", " MA", " Music"}

// ExtractRoomName derives a room name from a player's friendly name,
// falling back to parsing the entity id.
func ExtractRoomName(friendlyName, entityID string) string {
	if friendlyName != "" {
		for _, suffix := range playerSuffixes {
			if strings.HasSuffix(friendlyName, suffix) {
				return strings.TrimSuffix(friendlyName, suffix)
			}
		}
		return friendlyName
	}

	// media_player.ma_living_room -> living room
	name := strings.TrimPrefix(entityID, "media_player.")
	name = strings.TrimPrefix(name, "ma_")
	return strings.ReplaceAll(name, "_", " ")
}

// NormalizeRoomName lowercases and trims a room name for matching.
func NormalizeRoomName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// MatchRoom resolves a spoken room reference against known rooms
// (normalized name -> entity id). Matching runs in priority tiers so a
// more specific match always wins: exact equality, then the query
// appearing as a whole word of a room name, then substring containment
// in either direction. Returns "" when nothing matches.
func MatchRoom(query string, rooms map[string]string) string {
	q := NormalizeRoomName(query)
	if q == "" {
		return ""
	}

	if entity, ok := rooms[q]; ok {
		return entity
	}

	// Sorted iteration keeps ties deterministic.
	names := make([]string, 0, len(rooms))
	for room := range rooms {
		names = append(names, room)
	}
	sort.Strings(names)

	for _, room := range names {
		for _, word := range strings.Fields(room) {
			if word == q {
				return rooms[room]
			}
		}
	}

	for _, room := range names {
		if strings.Contains(room, q) || strings.Contains(q, room) {
			return rooms[room]
		}
	}

	return ""
}
