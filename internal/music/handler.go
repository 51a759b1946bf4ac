package music

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/nugget/voicebridge/internal/homeassistant"
)

const (
	// maxSearchResults caps get_library result sizes.
	maxSearchResults = 20

	// volumeScale converts spoken volume percentages to HA's 0.0-1.0.
	volumeScale = 100.0
)

// ServiceCaller is the Home Assistant surface the handler needs.
// Satisfied by *homeassistant.Client.
type ServiceCaller interface {
	CallService(ctx context.Context, domain, service string, data map[string]any) error
	CallServiceWithResponse(ctx context.Context, domain, service string, data map[string]any) (map[string]any, error)
	GetStates(ctx context.Context) ([]homeassistant.State, error)
}

// musicTools names every tool this handler owns.
var musicTools = map[string]bool{
	"play_music":        true,
	"get_now_playing":   true,
	"control_playback":  true,
	"search_music":      true,
	"transfer_music":    true,
	"get_music_players": true,
}

// IsMusicTool reports whether name belongs to the music tool set.
func IsMusicTool(name string) bool {
	return musicTools[name]
}

// Handler executes music tools against Music Assistant players.
type Handler struct {
	ha     ServiceCaller
	logger *slog.Logger

	mu    sync.Mutex
	cache map[string]string // normalized room name -> entity_id
}

// NewHandler creates a music handler.
func NewHandler(ha ServiceCaller, logger *slog.Logger) *Handler {
	return &Handler{
		ha:     ha,
		logger: logger,
		cache:  make(map[string]string),
	}
}

// player is a Music Assistant media_player snapshot.
type player struct {
	EntityID string
	Name     string
	State    string
	Title    string
	Artist   string
	Album    string
}

// loadPlayers snapshots all Music Assistant players and refreshes the
// room cache as a side effect.
func (h *Handler) loadPlayers(ctx context.Context) ([]player, error) {
	states, err := h.ha.GetStates(ctx)
	if err != nil {
		return nil, fmt.Errorf("load players: %w", err)
	}

	cache := make(map[string]string)
	var players []player
	for _, s := range states {
		if s.Domain() != "media_player" || !isMusicAssistantPlayer(s) {
			continue
		}
		p := player{
			EntityID: s.EntityID,
			Name:     s.FriendlyName(),
			State:    s.State,
		}
		p.Title, _ = s.Attributes["media_title"].(string)
		p.Artist, _ = s.Attributes["media_artist"].(string)
		p.Album, _ = s.Attributes["media_album_name"].(string)
		players = append(players, p)

		room := ExtractRoomName(p.Name, p.EntityID)
		cache[NormalizeRoomName(room)] = p.EntityID
	}

	h.mu.Lock()
	h.cache = cache
	h.mu.Unlock()

	return players, nil
}

// isMusicAssistantPlayer identifies MA players by the conventional
// ma_ entity prefix or the mass_player_type attribute MA sets.
func isMusicAssistantPlayer(s homeassistant.State) bool {
	if strings.HasPrefix(s.EntityID, "media_player.ma_") {
		return true
	}
	_, ok := s.Attributes["mass_player_type"]
	return ok
}

// resolvePlayer maps a player reference (entity id or room name) to an
// entity id. Returns "" when unresolvable.
func (h *Handler) resolvePlayer(ref string) string {
	if ref == "" {
		return ""
	}
	if strings.HasPrefix(ref, "media_player.") {
		return ref
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return MatchRoom(ref, h.cache)
}

// firstActivePlayer returns a playing player, or the first known one.
func (h *Handler) firstActivePlayer(ctx context.Context) string {
	players, err := h.loadPlayers(ctx)
	if err != nil || len(players) == 0 {
		return ""
	}
	for _, p := range players {
		if p.State == "playing" {
			return p.EntityID
		}
	}
	return players[0].EntityID
}

// Handle executes a music tool and returns its JSON-shaped result.
func (h *Handler) Handle(ctx context.Context, name string, args map[string]any) map[string]any {
	switch name {
	case "play_music":
		return h.playMusic(ctx, args)
	case "get_now_playing":
		return h.nowPlaying(ctx, args)
	case "control_playback":
		return h.controlPlayback(ctx, args)
	case "search_music":
		return h.searchMusic(ctx, args)
	case "transfer_music":
		return h.transferMusic(ctx, args)
	case "get_music_players":
		return h.listPlayers(ctx)
	default:
		return failure(fmt.Sprintf("unknown music tool: %s", name))
	}
}

func failure(msg string) map[string]any {
	return map[string]any{"success": false, "error": msg}
}

func (h *Handler) playMusic(ctx context.Context, args map[string]any) map[string]any {
	query, _ := args["query"].(string)
	if query == "" {
		return failure("query is required")
	}

	ref, _ := args["player"].(string)
	target := h.resolvePlayer(ref)
	if target == "" {
		// Refresh the cache before giving up on a room reference.
		h.loadPlayers(ctx)
		target = h.resolvePlayer(ref)
	}
	if target == "" {
		target = h.firstActivePlayer(ctx)
	}
	if target == "" {
		return failure("No Music Assistant players found. Please check your Music Assistant configuration.")
	}

	data := map[string]any{
		"entity_id": target,
		"media_id":  query,
		"enqueue":   "replace",
	}
	if enqueue, _ := args["enqueue"].(string); enqueue != "" {
		data["enqueue"] = enqueue
	}
	if mediaType, _ := args["media_type"].(string); mediaType != "" {
		data["media_type"] = mediaType
	}
	if radio, _ := args["radio_mode"].(bool); radio {
		data["radio_mode"] = true
	}

	if err := h.ha.CallService(ctx, "music_assistant", "play_media", data); err != nil {
		h.logger.Error("play_media failed", "player", target, "error", err)
		return failure(fmt.Sprintf("Failed to play music: %v", err))
	}

	return map[string]any{
		"success": true,
		"message": fmt.Sprintf("Playing '%s' on %s", query, target),
		"player":  target,
	}
}

func (h *Handler) nowPlaying(ctx context.Context, args map[string]any) map[string]any {
	players, err := h.loadPlayers(ctx)
	if err != nil {
		return failure(fmt.Sprintf("Failed to read players: %v", err))
	}

	if ref, _ := args["player"].(string); ref != "" {
		target := h.resolvePlayer(ref)
		var filtered []player
		for _, p := range players {
			if p.EntityID == target {
				filtered = append(filtered, p)
			}
		}
		players = filtered
	} else {
		var active []player
		for _, p := range players {
			if p.State == "playing" {
				active = append(active, p)
			}
		}
		if len(active) > 0 {
			players = active
		}
	}

	if len(players) == 0 {
		return map[string]any{
			"success": true,
			"message": "Nothing is currently playing",
			"players": []any{},
		}
	}

	var result []map[string]any
	for _, p := range players {
		info := map[string]any{"player": p.Name, "state": p.State}
		if p.Title != "" {
			info["track"] = p.Title
		}
		if p.Artist != "" {
			info["artist"] = p.Artist
		}
		if p.Album != "" {
			info["album"] = p.Album
		}
		result = append(result, info)
	}
	return map[string]any{"success": true, "players": result}
}

// playbackServices maps spoken actions to media_player services.
var playbackServices = map[string]string{
	"play":        "media_play",
	"pause":       "media_pause",
	"stop":        "media_stop",
	"next":        "media_next_track",
	"previous":    "media_previous_track",
	"volume_up":   "volume_up",
	"volume_down": "volume_down",
	"shuffle":     "shuffle_set",
	"repeat":      "repeat_set",
}

func (h *Handler) controlPlayback(ctx context.Context, args map[string]any) map[string]any {
	action, _ := args["action"].(string)

	ref, _ := args["player"].(string)
	target := h.resolvePlayer(ref)
	if target == "" {
		target = h.firstActivePlayer(ctx)
	}
	if target == "" {
		return failure("No Music Assistant player found")
	}

	switch {
	case action == "volume_set":
		level, ok := args["volume_level"].(float64)
		if !ok {
			return failure("volume_set requires volume_level")
		}
		err := h.ha.CallService(ctx, "media_player", "volume_set", map[string]any{
			"entity_id":    target,
			"volume_level": level / volumeScale,
		})
		if err != nil {
			return failure(fmt.Sprintf("Failed to control playback: %v", err))
		}
	case playbackServices[action] != "":
		err := h.ha.CallService(ctx, "media_player", playbackServices[action], map[string]any{
			"entity_id": target,
		})
		if err != nil {
			return failure(fmt.Sprintf("Failed to control playback: %v", err))
		}
	default:
		return failure(fmt.Sprintf("Unknown action: %s", action))
	}

	return map[string]any{
		"success": true,
		"message": fmt.Sprintf("Executed %s on %s", action, target),
	}
}

func (h *Handler) searchMusic(ctx context.Context, args map[string]any) map[string]any {
	query, _ := args["query"].(string)
	if query == "" {
		return failure("query is required")
	}

	limit := maxSearchResults
	if l, ok := args["limit"].(float64); ok && int(l) < limit && int(l) > 0 {
		limit = int(l)
	}

	data := map[string]any{
		"search": query,
		"limit":  limit,
	}
	if mediaType, _ := args["media_type"].(string); mediaType != "" {
		data["media_type"] = mediaType
	}
	if fav, _ := args["favorites_only"].(bool); fav {
		data["favorite"] = true
	}

	resp, err := h.ha.CallServiceWithResponse(ctx, "music_assistant", "get_library", data)
	if err != nil {
		h.logger.Error("get_library failed", "query", query, "error", err)
		return failure(fmt.Sprintf("Search failed: %v", err))
	}

	return map[string]any{
		"success": true,
		"results": resp,
		"query":   query,
	}
}

func (h *Handler) transferMusic(ctx context.Context, args map[string]any) map[string]any {
	targetRef, _ := args["target_player"].(string)
	target := h.resolvePlayer(targetRef)
	if target == "" {
		h.loadPlayers(ctx)
		target = h.resolvePlayer(targetRef)
	}
	if target == "" {
		return failure(fmt.Sprintf("Could not find player: %s", targetRef))
	}

	data := map[string]any{
		"entity_id": target,
		"auto_play": true,
	}
	if sourceRef, _ := args["source_player"].(string); sourceRef != "" {
		if source := h.resolvePlayer(sourceRef); source != "" {
			data["source_player"] = source
		}
	}

	if err := h.ha.CallService(ctx, "music_assistant", "transfer_queue", data); err != nil {
		return failure(fmt.Sprintf("Failed to transfer: %v", err))
	}

	return map[string]any{
		"success": true,
		"message": fmt.Sprintf("Transferred music to %s", target),
	}
}

func (h *Handler) listPlayers(ctx context.Context) map[string]any {
	players, err := h.loadPlayers(ctx)
	if err != nil {
		return failure(fmt.Sprintf("Failed to read players: %v", err))
	}

	var result []map[string]any
	for _, p := range players {
		result = append(result, map[string]any{
			"entity_id": p.EntityID,
			"name":      p.Name,
			"state":     p.State,
		})
	}
	return map[string]any{"success": true, "players": result}
}
