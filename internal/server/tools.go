package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func pathProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Absolute path to the image file",
	}
}

func mapProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "object",
		"description": "Where the tile sits on the map. Numbers may also be given as strings.",
		"properties": map[string]interface{}{
			"lat":  map[string]interface{}{"type": "number", "description": "Latitude of the image center"},
			"lng":  map[string]interface{}{"type": "number", "description": "Longitude of the image center"},
			"zoom": map[string]interface{}{"type": "integer", "description": "Web Mercator zoom level the tile was rendered at"},
			"bounds": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"north": map[string]interface{}{"type": "number"},
					"south": map[string]interface{}{"type": "number"},
					"east":  map[string]interface{}{"type": "number"},
					"west":  map[string]interface{}{"type": "number"},
				},
			},
			"width":  map[string]interface{}{"type": "integer", "description": "Tile width in pixels. Default: image width"},
			"height": map[string]interface{}{"type": "integer", "description": "Tile height in pixels. Default: image height"},
		},
		"required": []string{"lat", "lng", "zoom"},
	}
}

func seedProperties(props map[string]interface{}) map[string]interface{} {
	props["x"] = map[string]interface{}{
		"type":        "integer",
		"description": "Seed X coordinate (0-based, from left). Required unless lat/lng is given",
	}
	props["y"] = map[string]interface{}{
		"type":        "integer",
		"description": "Seed Y coordinate (0-based, from top). Required unless lat/lng is given",
	}
	props["lat"] = map[string]interface{}{
		"type":        "number",
		"description": "Seed latitude; placed on the tile through the map context",
	}
	props["lng"] = map[string]interface{}{
		"type":        "number",
		"description": "Seed longitude; placed on the tile through the map context",
	}
	props["map"] = mapProperty()
	props["params"] = map[string]interface{}{
		"type":        "object",
		"description": "Overrides for the configured extraction parameters",
		"properties": map[string]interface{}{
			"sample_radius": map[string]interface{}{"type": "integer", "description": "Sampling disk radius in pixels. Default 40"},
			"tolerance": map[string]interface{}{
				"type":        "object",
				"description": "HSV tolerance. Default {h:10, s:50, v:50}",
				"properties": map[string]interface{}{
					"h": map[string]interface{}{"type": "number"},
					"s": map[string]interface{}{"type": "number"},
					"v": map[string]interface{}{"type": "number"},
				},
			},
			"tile_size":            map[string]interface{}{"type": "integer", "description": "Smoothing tile size in pixels. Default 10"},
			"threshold":            map[string]interface{}{"type": "number", "description": "Tile density threshold in [0,1]. Default 0.6"},
			"epsilon_factor":       map[string]interface{}{"type": "number", "description": "Simplification factor of the perimeter. Default 0.001"},
			"circle_radius_meters": map[string]interface{}{"type": "number", "description": "Fallback circle radius. Default 50"},
			"circle_points":        map[string]interface{}{"type": "integer", "description": "Fallback circle vertices. Default 32"},
		},
	}
	return props
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		{
			Name:        "image_load",
			Description: "Load an aerial tile and return its dimensions, format and center pixel.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "image_unload",
			Description: "Drop a cached tile so the next call reads it from disk again. Without a path, empties the cache.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Path given to an earlier call. Omit to drop every cached tile",
					},
				},
				"required": []string{},
			},
		},
		{
			Name:        "image_sample_color",
			Description: "Get the color at a pixel as hex, RGB and 8-bit HSV (H 0-180, S/V 0-255), the scale used for field segmentation.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"x": map[string]interface{}{
						"type":        "integer",
						"description": "X coordinate (0-based, from left)",
					},
					"y": map[string]interface{}{
						"type":        "integer",
						"description": "Y coordinate (0-based, from top)",
					},
				},
				"required": []string{"path", "x", "y"},
			},
		},
		{
			Name: "field_trace",
			Description: "Trace the field around a seed point: samples the color near the seed, segments similar pixels, " +
				"smooths the mask, keeps the region connected to the seed and returns its simplified outline. " +
				"With a map context the outline is also returned as a GeoJSON feature in [lng, lat].",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": seedProperties(map[string]interface{}{
					"path": pathProperty(),
					"include_preview": map[string]interface{}{
						"type":        "boolean",
						"description": "Return a PNG preview of the region over the dimmed tile. Default false",
						"default":     false,
					},
					"fallback_circle": map[string]interface{}{
						"type":        "boolean",
						"description": "On failure, return a circle around the seed instead (needs a map context). Default false",
						"default":     false,
					},
					"save_artifacts": map[string]interface{}{
						"type":        "boolean",
						"description": "Write masks and exports to the artifacts directory. Default false",
						"default":     false,
					},
				}),
				"required": []string{"path"},
			},
		},
		{
			Name:        "field_mask",
			Description: "Run the pipeline up to a stage and return the mask as a PNG: 'segment' (raw color match), 'smooth' (after tile voting) or 'extract' (seed region in magenta, other matches in red).",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": seedProperties(map[string]interface{}{
					"path": pathProperty(),
					"stage": map[string]interface{}{
						"type":        "string",
						"description": "Stage to stop after",
						"enum":        []string{"segment", "smooth", "extract"},
						"default":     "smooth",
					},
					"show_tiles": map[string]interface{}{
						"type":        "boolean",
						"description": "Draw the smoothing tile grid over the mask. Default false",
						"default":     false,
					},
					"tile_color": map[string]interface{}{
						"type":        "string",
						"description": "Grid color as #RRGGBB or #RRGGBBAA. Default semi-transparent red",
					},
				}),
				"required": []string{"path"},
			},
		},
		{
			Name:        "field_circle",
			Description: "Return a circle polygon around a geographic point as a GeoJSON feature, the fallback when no field can be traced.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"lat": map[string]interface{}{"type": "number", "description": "Center latitude"},
					"lng": map[string]interface{}{"type": "number", "description": "Center longitude"},
					"map": mapProperty(),
					"radius_meters": map[string]interface{}{
						"type":        "number",
						"description": "Circle radius in meters. Default from config (50)",
					},
					"points": map[string]interface{}{
						"type":        "integer",
						"description": "Number of vertices. Default from config (32)",
					},
				},
				"required": []string{"lat", "lng", "map"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
