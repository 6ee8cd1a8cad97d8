package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/ironsheep/field-boundary-mcp/internal/artifact"
	"github.com/ironsheep/field-boundary-mcp/internal/pipeline"
)

var (
	fieldGreen = color.RGBA{40, 160, 40, 255}
	soilBrown  = color.RGBA{150, 110, 60, 255}
)

// createTestImageFile writes a PNG of the given size filled with c and returns its path.
func createTestImageFile(t *testing.T, width, height int, c color.Color) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return writePNG(t, img)
}

// createFieldImageFile writes a 640x640 brown tile with a 100x100 green square
// centered on (320,320).
func createFieldImageFile(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 640, 640))
	for y := 0; y < 640; y++ {
		for x := 0; x < 640; x++ {
			c := soilBrown
			if x >= 270 && x < 370 && y >= 270 && y < 370 {
				c = fieldGreen
			}
			img.Set(x, y, c)
		}
	}
	return writePNG(t, img)
}

func writePNG(t *testing.T, img image.Image) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tile.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return path
}

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	if opts.Log == nil {
		opts.Log = zaptest.NewLogger(t).Sugar()
	}
	return New(opts)
}

// callTool issues tools/call and returns the decoded text payload, or the error.
func callTool(t *testing.T, s *Server, name string, args map[string]interface{}) (map[string]interface{}, *MCPError) {
	t.Helper()
	paramsJSON, _ := json.Marshal(map[string]interface{}{
		"name":      name,
		"arguments": args,
	})

	resp := s.handleRequest(&MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  paramsJSON,
	})
	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	if resp.Error != nil {
		return nil, resp.Error
	}

	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatal("Result should be a map")
	}
	content, ok := result["content"].([]map[string]interface{})
	if !ok || len(content) != 1 {
		t.Fatalf("content should hold one item, got %v", result["content"])
	}
	if content[0]["type"] != "text" {
		t.Errorf("content type: got %v, want text", content[0]["type"])
	}

	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(content[0]["text"].(string)), &payload); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	return payload, nil
}

// errorKind returns the kind field of a tool error, or "" when absent.
func errorKind(e *MCPError) string {
	data, ok := e.Data.(map[string]interface{})
	if !ok {
		return ""
	}
	kind, _ := data["kind"].(string)
	return kind
}

func mapArg() map[string]interface{} {
	return map[string]interface{}{"lat": 40.0, "lng": -74.0, "zoom": 18}
}

func TestHandleToolsCall_ImageLoad(t *testing.T) {
	s := newTestServer(t, Options{})
	imgPath := createTestImageFile(t, 100, 80, color.RGBA{255, 0, 0, 255})

	got, mcpErr := callTool(t, s, "image_load", map[string]interface{}{"path": imgPath})
	if mcpErr != nil {
		t.Fatalf("Unexpected error: %v", mcpErr)
	}
	if got["width"] != float64(100) || got["height"] != float64(80) {
		t.Errorf("size: got %vx%v, want 100x80", got["width"], got["height"])
	}
	if got["format"] != "png" {
		t.Errorf("format: got %v, want png", got["format"])
	}
}

func TestHandleToolsCall_ImageUnload(t *testing.T) {
	s := newTestServer(t, Options{})
	imgPath := createTestImageFile(t, 100, 80, fieldGreen)

	if _, mcpErr := callTool(t, s, "image_load", map[string]interface{}{"path": imgPath}); mcpErr != nil {
		t.Fatalf("Unexpected error: %v", mcpErr)
	}

	// Replace the file on disk; the cached copy keeps the old size until unloaded.
	if err := os.Rename(createTestImageFile(t, 50, 40, soilBrown), imgPath); err != nil {
		t.Fatalf("failed to replace image: %v", err)
	}
	got, _ := callTool(t, s, "image_load", map[string]interface{}{"path": imgPath})
	if got["width"] != float64(100) {
		t.Fatalf("cached width: got %v, want 100", got["width"])
	}

	got, mcpErr := callTool(t, s, "image_unload", map[string]interface{}{"path": imgPath})
	if mcpErr != nil {
		t.Fatalf("Unexpected error: %v", mcpErr)
	}
	if got["path"] != imgPath || got["cleared"] != false {
		t.Errorf("unload: got %v", got)
	}
	got, _ = callTool(t, s, "image_load", map[string]interface{}{"path": imgPath})
	if got["width"] != float64(50) || got["height"] != float64(40) {
		t.Errorf("after unload: got %vx%v, want 50x40", got["width"], got["height"])
	}

	// Without a path the whole cache goes.
	if err := os.Rename(createTestImageFile(t, 30, 20, soilBrown), imgPath); err != nil {
		t.Fatalf("failed to replace image: %v", err)
	}
	got, mcpErr = callTool(t, s, "image_unload", map[string]interface{}{})
	if mcpErr != nil {
		t.Fatalf("Unexpected error: %v", mcpErr)
	}
	if got["cleared"] != true {
		t.Errorf("clear: got %v", got)
	}
	got, _ = callTool(t, s, "image_load", map[string]interface{}{"path": imgPath})
	if got["width"] != float64(30) {
		t.Errorf("after clear: width %v, want 30", got["width"])
	}
}

func TestHandleToolsCall_SampleColor(t *testing.T) {
	s := newTestServer(t, Options{})
	imgPath := createTestImageFile(t, 100, 100, fieldGreen)

	got, mcpErr := callTool(t, s, "image_sample_color", map[string]interface{}{"path": imgPath, "x": 50, "y": 50})
	if mcpErr != nil {
		t.Fatalf("Unexpected error: %v", mcpErr)
	}
	if got["hex"] != "#28A028" {
		t.Errorf("hex: got %v, want #28A028", got["hex"])
	}
	hsv := got["hsv"].(map[string]interface{})
	if hsv["h"] != float64(60) {
		t.Errorf("hue: got %v, want 60", hsv["h"])
	}
}

func TestHandleToolsCall_Errors(t *testing.T) {
	imgPath := createTestImageFile(t, 100, 100, fieldGreen)

	tests := []struct {
		name     string
		tool     string
		args     map[string]interface{}
		wantCode int
		wantKind string
	}{
		{"unknown tool", "nonexistent_tool", map[string]interface{}{}, -32000, ""},
		{"missing file", "image_load", map[string]interface{}{"path": "/nonexistent/image.png"}, -32000, "decode_failure"},
		{"sample outside", "image_sample_color", map[string]interface{}{"path": imgPath, "x": 500, "y": 0}, -32000, "seed_out_of_bounds"},
		{"trace without seed", "field_trace", map[string]interface{}{"path": imgPath}, -32000, ""},
		{"trace seed outside", "field_trace", map[string]interface{}{"path": imgPath, "x": -1, "y": 5}, -32000, "seed_out_of_bounds"},
		{"trace bad zoom", "field_trace", map[string]interface{}{
			"path": imgPath, "x": 50, "y": 50,
			"map": map[string]interface{}{"lat": 40.0, "lng": -74.0, "zoom": 99},
		}, -32000, "invalid_map_context"},
		{"geo seed without map", "field_trace", map[string]interface{}{"path": imgPath, "lat": 40.0, "lng": -74.0}, -32000, "invalid_map_context"},
		{"bad tile size", "field_trace", map[string]interface{}{
			"path": imgPath, "x": 50, "y": 50, "params": map[string]interface{}{"tile_size": 0},
		}, -32000, ""},
		{"bad threshold", "field_mask", map[string]interface{}{
			"path": imgPath, "x": 50, "y": 50, "params": map[string]interface{}{"threshold": 1.5},
		}, -32000, ""},
		{"bad stage", "field_mask", map[string]interface{}{"path": imgPath, "x": 50, "y": 50, "stage": "project"}, -32000, ""},
		{"circle without map", "field_circle", map[string]interface{}{"lat": 40.0, "lng": -74.0}, -32000, "invalid_map_context"},
		{"circle bad latitude", "field_circle", map[string]interface{}{"lat": 95.0, "lng": -74.0, "map": mapArg()}, -32000, "invalid_map_context"},
		{"circle one point", "field_circle", map[string]interface{}{"lat": 40.0, "lng": -74.0, "map": mapArg(), "points": 1}, -32000, ""},
		{"circle two points", "field_circle", map[string]interface{}{"lat": 40.0, "lng": -74.0, "map": mapArg(), "points": 2}, -32000, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, Options{})
			_, mcpErr := callTool(t, s, tt.tool, tt.args)
			if mcpErr == nil {
				t.Fatal("Expected error")
			}
			if mcpErr.Code != tt.wantCode {
				t.Errorf("code: got %d, want %d", mcpErr.Code, tt.wantCode)
			}
			if got := errorKind(mcpErr); got != tt.wantKind {
				t.Errorf("kind: got %q, want %q", got, tt.wantKind)
			}
		})
	}
}

func TestHandleToolsCall_InvalidParams(t *testing.T) {
	s := newTestServer(t, Options{})
	resp := s.handleToolsCall(&MCPRequest{JSONRPC: "2.0", ID: 1, Params: json.RawMessage(`"not an object"`)})

	if resp.Error == nil || resp.Error.Code != -32602 {
		t.Fatalf("expected -32602, got %+v", resp.Error)
	}
}

func TestHandleToolsCall_FieldTrace(t *testing.T) {
	s := newTestServer(t, Options{})
	imgPath := createFieldImageFile(t)

	got, mcpErr := callTool(t, s, "field_trace", map[string]interface{}{
		"path": imgPath,
		"x":    320,
		"y":    320,
		"map":  mapArg(),
	})
	if mcpErr != nil {
		t.Fatalf("Unexpected error: %v", mcpErr)
	}

	n := int(got["vertex_count"].(float64))
	if n < 4 || n > 6 {
		t.Errorf("vertex_count: got %d, want 4..6", n)
	}
	if got["area"] != float64(100*100) {
		t.Errorf("area: got %v, want 10000", got["area"])
	}
	if got["run_id"] == "" {
		t.Error("run_id should be set")
	}
	if got["encoded_polyline"] == "" {
		t.Error("encoded_polyline should be set")
	}
	if _, ok := got["preview"]; ok {
		t.Error("preview should be omitted unless requested")
	}

	feature := got["geojson"].(map[string]interface{})
	props := feature["properties"].(map[string]interface{})
	if props["zoom"] != float64(18) {
		t.Errorf("zoom: got %v, want 18", props["zoom"])
	}
	geometry := feature["geometry"].(map[string]interface{})
	if geometry["type"] != "Polygon" {
		t.Errorf("geometry type: got %v, want Polygon", geometry["type"])
	}
	ring := geometry["coordinates"].([]interface{})[0].([]interface{})
	first := ring[0].([]interface{})
	last := ring[len(ring)-1].([]interface{})
	if first[0] != last[0] || first[1] != last[1] {
		t.Error("ring should be closed")
	}
	for _, c := range ring {
		pt := c.([]interface{})
		if math.Abs(pt[0].(float64)+74) > 0.001 || math.Abs(pt[1].(float64)-40) > 0.001 {
			t.Errorf("vertex %v is not near the map center", pt)
		}
	}
}

func TestHandleToolsCall_FieldTraceGeoSeed(t *testing.T) {
	s := newTestServer(t, Options{})
	imgPath := createFieldImageFile(t)

	got, mcpErr := callTool(t, s, "field_trace", map[string]interface{}{
		"path": imgPath,
		"lat":  40.0,
		"lng":  -74.0,
		"map":  mapArg(),
	})
	if mcpErr != nil {
		t.Fatalf("Unexpected error: %v", mcpErr)
	}

	seed := got["seed"].(map[string]interface{})
	if seed["x"] != float64(320) || seed["y"] != float64(320) {
		t.Errorf("seed: got %v, want (320,320)", seed)
	}
	props := got["geojson"].(map[string]interface{})["properties"].(map[string]interface{})
	if _, ok := props["selected_point"]; !ok {
		t.Error("selected_point should be reported for a geographic seed")
	}
}

func TestHandleToolsCall_FieldTraceWithoutMap(t *testing.T) {
	s := newTestServer(t, Options{})
	imgPath := createFieldImageFile(t)

	got, mcpErr := callTool(t, s, "field_trace", map[string]interface{}{
		"path":            imgPath,
		"x":               320,
		"y":               320,
		"include_preview": true,
	})
	if mcpErr != nil {
		t.Fatalf("Unexpected error: %v", mcpErr)
	}

	if _, ok := got["geojson"]; ok {
		t.Error("geojson should be omitted without a map context")
	}
	if len(got["polygon"].([]interface{})) < 4 {
		t.Errorf("polygon: got %v", got["polygon"])
	}

	preview, ok := got["preview"].(map[string]interface{})
	if !ok {
		t.Fatal("preview should be present")
	}
	if preview["mime_type"] != "image/png" || preview["image_base64"] == "" {
		t.Errorf("preview: got %v", preview["mime_type"])
	}
	// 100x100 region plus 20px padding on each side.
	if preview["width"] != float64(140) || preview["height"] != float64(140) {
		t.Errorf("preview size: got %vx%v, want 140x140", preview["width"], preview["height"])
	}
}

func TestHandleToolsCall_FieldTraceFallbackCircle(t *testing.T) {
	s := newTestServer(t, Options{})
	imgPath := createFieldImageFile(t)

	// With 200px tiles the square covers a quarter of the seed's tile, so
	// smoothing clears it and the seed lands on background.
	args := map[string]interface{}{
		"path": imgPath,
		"x":    320,
		"y":    320,
		"map":  mapArg(),
		"params": map[string]interface{}{
			"tile_size": 200,
		},
	}

	_, mcpErr := callTool(t, s, "field_trace", args)
	if mcpErr == nil {
		t.Fatal("expected the trace to fail with 200px tiles")
	}
	if got := errorKind(mcpErr); got != "seed_not_on_region" {
		t.Fatalf("kind: got %q, want seed_not_on_region", got)
	}

	args["fallback_circle"] = true
	got, mcpErr := callTool(t, s, "field_trace", args)
	if mcpErr != nil {
		t.Fatalf("Unexpected error: %v", mcpErr)
	}
	if got["fallback"] != true {
		t.Error("fallback should be true")
	}
	if got["failure"] == "" {
		t.Error("failure should carry the trace error")
	}
	if got["vertex_count"] != float64(32) {
		t.Errorf("vertex_count: got %v, want 32", got["vertex_count"])
	}
	props := got["geojson"].(map[string]interface{})["properties"].(map[string]interface{})
	if props["radius_meters"] != float64(50) {
		t.Errorf("radius_meters: got %v, want 50", props["radius_meters"])
	}
}

func TestHandleToolsCall_FieldTraceSaveArtifacts(t *testing.T) {
	imgPath := createFieldImageFile(t)
	args := map[string]interface{}{
		"path":           imgPath,
		"x":              320,
		"y":              320,
		"map":            mapArg(),
		"save_artifacts": true,
	}

	t.Run("disabled", func(t *testing.T) {
		s := newTestServer(t, Options{})
		if _, mcpErr := callTool(t, s, "field_trace", args); mcpErr == nil {
			t.Fatal("expected error without an artifact store")
		}
	})

	t.Run("enabled", func(t *testing.T) {
		root := t.TempDir()
		s := newTestServer(t, Options{Store: artifact.NewStore(root, nil)})

		got, mcpErr := callTool(t, s, "field_trace", args)
		if mcpErr != nil {
			t.Fatalf("Unexpected error: %v", mcpErr)
		}

		manifest := got["artifacts"].(map[string]interface{})
		if manifest["run_id"] != got["run_id"] {
			t.Errorf("manifest run_id: got %v, want %v", manifest["run_id"], got["run_id"])
		}
		dir := manifest["dir"].(string)
		for _, name := range []string{artifact.MaskFile, artifact.GeoJSONFile, artifact.KMLFile} {
			if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
				t.Errorf("%s: %v", name, err)
			}
		}
	})
}

func TestHandleToolsCall_FieldMask(t *testing.T) {
	imgPath := createFieldImageFile(t)

	tests := []struct {
		stage     string
		wantStage string
		wantCount float64
	}{
		{"", "smooth", 100 * 100},
		{"segment", "segment", 100 * 100},
		{"smooth", "smooth", 100 * 100},
		{"extract", "extract", 100 * 100},
	}

	for _, tt := range tests {
		t.Run(tt.wantStage+"/"+tt.stage, func(t *testing.T) {
			s := newTestServer(t, Options{})
			args := map[string]interface{}{"path": imgPath, "x": 320, "y": 320}
			if tt.stage != "" {
				args["stage"] = tt.stage
			}

			got, mcpErr := callTool(t, s, "field_mask", args)
			if mcpErr != nil {
				t.Fatalf("Unexpected error: %v", mcpErr)
			}
			if got["stage"] != tt.wantStage {
				t.Errorf("stage: got %v, want %s", got["stage"], tt.wantStage)
			}
			if got["foreground_pixels"] != tt.wantCount {
				t.Errorf("foreground_pixels: got %v, want %v", got["foreground_pixels"], tt.wantCount)
			}
			mask := got["mask"].(map[string]interface{})
			if mask["width"] != float64(640) || mask["height"] != float64(640) {
				t.Errorf("mask size: got %vx%v, want 640x640", mask["width"], mask["height"])
			}
		})
	}
}

func TestHandleToolsCall_FieldMaskTiles(t *testing.T) {
	s := newTestServer(t, Options{})
	imgPath := createFieldImageFile(t)

	got, mcpErr := callTool(t, s, "field_mask", map[string]interface{}{
		"path":       imgPath,
		"x":          320,
		"y":          320,
		"stage":      "segment",
		"show_tiles": true,
		"tile_color": "#0000FF",
	})
	if mcpErr != nil {
		t.Fatalf("Unexpected error: %v", mcpErr)
	}

	data, err := base64.StdEncoding.DecodeString(got["mask"].(map[string]interface{})["image_base64"].(string))
	if err != nil {
		t.Fatalf("failed to decode base64: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("failed to decode png: %v", err)
	}

	// Default tiles are 10px: x=10 is a grid line, x=5 is inside a tile.
	r, g, b, _ := img.At(10, 5).RGBA()
	if r != 0 || g != 0 || b>>8 != 255 {
		t.Errorf("grid line at (10,5): got (%d,%d,%d), want blue", r>>8, g>>8, b>>8)
	}
	if r, _, _, _ := img.At(5, 5).RGBA(); r != 0 {
		t.Errorf("background at (5,5) should stay black, got r=%d", r>>8)
	}
}

func TestHandleToolsCall_FieldCircle(t *testing.T) {
	s := newTestServer(t, Options{})

	got, mcpErr := callTool(t, s, "field_circle", map[string]interface{}{
		"lat":           40.0,
		"lng":           -74.0,
		"map":           mapArg(),
		"radius_meters": 100,
		"points":        16,
	})
	if mcpErr != nil {
		t.Fatalf("Unexpected error: %v", mcpErr)
	}
	if got["points"] != float64(16) {
		t.Errorf("points: got %v, want 16", got["points"])
	}
	if got["radius_meters"] != float64(100) {
		t.Errorf("radius_meters: got %v, want 100", got["radius_meters"])
	}

	ring := got["geojson"].(map[string]interface{})["geometry"].(map[string]interface{})["coordinates"].([]interface{})[0].([]interface{})
	if len(ring) != 17 {
		t.Errorf("ring length: got %d, want 17 (closed)", len(ring))
	}
}

func TestHandleToolsCall_FieldCircleDefaults(t *testing.T) {
	params := pipeline.DefaultParams()
	params.CircleRadius = 75
	params.CirclePoints = 8
	s := newTestServer(t, Options{Pipeline: pipeline.New(params, nil)})

	got, mcpErr := callTool(t, s, "field_circle", map[string]interface{}{
		"lat": 40.0,
		"lng": -74.0,
		"map": map[string]interface{}{"center": map[string]interface{}{"lat": "40.0", "lng": "-74.0"}, "zoom": 18},
	})
	if mcpErr != nil {
		t.Fatalf("Unexpected error: %v", mcpErr)
	}
	if got["points"] != float64(8) || got["radius_meters"] != float64(75) {
		t.Errorf("got %v points radius %v, want 8 and 75", got["points"], got["radius_meters"])
	}
}

func TestParamOverrides_Apply(t *testing.T) {
	base := pipeline.DefaultParams()

	got, err := (*paramOverrides)(nil).apply(base)
	if err != nil || got != base {
		t.Fatalf("nil overrides should return base, got %+v, %v", got, err)
	}

	tile, eps := 5, 0.01
	got, err = (&paramOverrides{TileSize: &tile, EpsilonFactor: &eps}).apply(base)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got.TileSize != 5 || got.EpsilonFactor != 0.01 {
		t.Errorf("got tile %d eps %v", got.TileSize, got.EpsilonFactor)
	}
	if got.Threshold != base.Threshold || got.SampleRadius != base.SampleRadius {
		t.Error("unset fields should keep base values")
	}

	radius := -1
	if _, err := (&paramOverrides{SampleRadius: &radius}).apply(base); err == nil {
		t.Error("negative sample_radius should be rejected")
	}
}
