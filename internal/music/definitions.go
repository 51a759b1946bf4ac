package music

// Definitions returns the OpenAI-style tool schemas for every music
// tool. Player parameters accept either a room name or an entity id.
func Definitions() []map[string]any {
	playerProp := map[string]any{
		"type":        "string",
		"description": "Room name or media_player entity id. Omit to use the active player.",
	}

	return []map[string]any{
		{
			"type": "function",
			"function": map[string]any{
				"name":        "play_music",
				"description": "Play music on a Music Assistant player. Accepts artist, album, track, playlist, or radio names.",
				"parameters": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"query": map[string]any{
							"type":        "string",
							"description": "What to play, e.g. 'Abbey Road by The Beatles'.",
						},
						"player": playerProp,
						"media_type": map[string]any{
							"type":        "string",
							"enum":        []string{"artist", "album", "track", "playlist", "radio"},
							"description": "Narrow the search to one media type.",
						},
						"enqueue": map[string]any{
							"type":        "string",
							"enum":        []string{"play", "replace", "next", "add"},
							"description": "Queue behavior. Defaults to replace.",
						},
						"radio_mode": map[string]any{
							"type":        "boolean",
							"description": "Keep playing similar music after the selection ends.",
						},
					},
					"required": []string{"query"},
				},
			},
		},
		{
			"type": "function",
			"function": map[string]any{
				"name":        "get_now_playing",
				"description": "Get what is currently playing on music players.",
				"parameters": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"player": playerProp,
					},
					"required": []string{},
				},
			},
		},
		{
			"type": "function",
			"function": map[string]any{
				"name":        "control_playback",
				"description": "Control music playback: pause, resume, skip, volume, shuffle, repeat.",
				"parameters": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"action": map[string]any{
							"type": "string",
							"enum": []string{
								"play", "pause", "stop", "next", "previous",
								"volume_up", "volume_down", "volume_set",
								"shuffle", "repeat",
							},
							"description": "Playback action to perform.",
						},
						"player": playerProp,
						"volume_level": map[string]any{
							"type":        "number",
							"description": "Volume percentage 0-100, for volume_set.",
						},
					},
					"required": []string{"action"},
				},
			},
		},
		{
			"type": "function",
			"function": map[string]any{
				"name":        "search_music",
				"description": "Search the Music Assistant library without playing anything.",
				"parameters": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"query": map[string]any{
							"type":        "string",
							"description": "Search terms.",
						},
						"media_type": map[string]any{
							"type":        "string",
							"enum":        []string{"artist", "album", "track", "playlist", "radio"},
							"description": "Narrow results to one media type.",
						},
						"limit": map[string]any{
							"type":        "number",
							"description": "Maximum results to return.",
						},
						"favorites_only": map[string]any{
							"type":        "boolean",
							"description": "Only search favorites.",
						},
					},
					"required": []string{"query"},
				},
			},
		},
		{
			"type": "function",
			"function": map[string]any{
				"name":        "transfer_music",
				"description": "Move the current music queue to another player.",
				"parameters": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"target_player": map[string]any{
							"type":        "string",
							"description": "Room name or entity id to move playback to.",
						},
						"source_player": map[string]any{
							"type":        "string",
							"description": "Player to move playback from. Omit to use the active player.",
						},
					},
					"required": []string{"target_player"},
				},
			},
		},
		{
			"type": "function",
			"function": map[string]any{
				"name":        "get_music_players",
				"description": "List available Music Assistant players and their states.",
				"parameters": map[string]any{
					"type":       "object",
					"properties": map[string]any{},
					"required":   []string{},
				},
			},
		},
	}
}
