package server

import (
	"encoding/json"
	"fmt"
	"image"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/ironsheep/field-boundary-mcp/internal/artifact"
	"github.com/ironsheep/field-boundary-mcp/internal/fault"
	"github.com/ironsheep/field-boundary-mcp/internal/field"
	"github.com/ironsheep/field-boundary-mcp/internal/geo"
	"github.com/ironsheep/field-boundary-mcp/internal/imaging"
	"github.com/ironsheep/field-boundary-mcp/internal/pipeline"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "image_load", "field_trace").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000 whose
// data carries the message and, for pipeline failures, the error kind.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		s.log.Infow("tool failed", "tool", params.Name, "kind", fault.KindOf(err).String(), "error", err)
		return s.toolErrorResponse(req.ID, err)
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case "image_load":
		return s.handleImageLoad(args)
	case "image_unload":
		return s.handleImageUnload(args)
	case "image_sample_color":
		return s.handleImageSampleColor(args)
	case "field_trace":
		return s.handleFieldTrace(args)
	case "field_mask":
		return s.handleFieldMask(args)
	case "field_circle":
		return s.handleFieldCircle(args)
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

func (s *Server) toolErrorResponse(id interface{}, err error) *MCPResponse {
	data := map[string]interface{}{"message": err.Error()}
	if kind := fault.KindOf(err); kind != fault.Unknown {
		data["kind"] = kind.String()
	}
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    -32000,
			Message: "Tool execution failed",
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// === Image Handlers ===

type imageLoadArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.LoadImageInfo(s.cache, a.Path)
}

type imageUnloadArgs struct {
	Path string `json:"path"`
}

// UnloadResult is the image_unload response.
type UnloadResult struct {
	Path    string `json:"path,omitempty"`
	Cleared bool   `json:"cleared"`
}

// handleImageUnload drops one tile from the cache, or every tile when no path
// is given.
func (s *Server) handleImageUnload(args json.RawMessage) (interface{}, error) {
	var a imageUnloadArgs
	if len(args) > 0 {
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, err
		}
	}
	if a.Path == "" {
		s.cache.Clear()
		s.log.Debugw("image cache cleared")
		return &UnloadResult{Cleared: true}, nil
	}
	s.cache.Evict(a.Path)
	s.log.Debugw("image evicted", "path", a.Path)
	return &UnloadResult{Path: a.Path}, nil
}

type imageSampleColorArgs struct {
	Path string `json:"path"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
}

func (s *Server) handleImageSampleColor(args json.RawMessage) (interface{}, error) {
	var a imageSampleColorArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	return imaging.SampleColor(img, a.X, a.Y)
}

// === Field Handlers ===

type paramOverrides struct {
	SampleRadius  *int             `json:"sample_radius"`
	Tolerance     *field.Tolerance `json:"tolerance"`
	TileSize      *int             `json:"tile_size"`
	Threshold     *float64         `json:"threshold"`
	EpsilonFactor *float64         `json:"epsilon_factor"`
	CircleRadius  *float64         `json:"circle_radius_meters"`
	CirclePoints  *int             `json:"circle_points"`
}

// apply returns base with the overrides set, rejecting values no stage accepts.
func (o *paramOverrides) apply(base pipeline.Params) (pipeline.Params, error) {
	if o == nil {
		return base, nil
	}
	p := base
	if o.SampleRadius != nil {
		if *o.SampleRadius < 0 {
			return p, fmt.Errorf("sample_radius must be >= 0, got %d", *o.SampleRadius)
		}
		p.SampleRadius = *o.SampleRadius
	}
	if o.Tolerance != nil {
		if o.Tolerance.H < 0 || o.Tolerance.S < 0 || o.Tolerance.V < 0 {
			return p, fmt.Errorf("tolerance components must be >= 0")
		}
		p.Tolerance = *o.Tolerance
	}
	if o.TileSize != nil {
		if *o.TileSize <= 0 {
			return p, fmt.Errorf("tile_size must be > 0, got %d", *o.TileSize)
		}
		p.TileSize = *o.TileSize
	}
	if o.Threshold != nil {
		if *o.Threshold < 0 || *o.Threshold > 1 {
			return p, fmt.Errorf("threshold must be in [0,1], got %v", *o.Threshold)
		}
		p.Threshold = *o.Threshold
	}
	if o.EpsilonFactor != nil {
		if *o.EpsilonFactor < 0 {
			return p, fmt.Errorf("epsilon_factor must be >= 0, got %v", *o.EpsilonFactor)
		}
		p.EpsilonFactor = *o.EpsilonFactor
	}
	if o.CircleRadius != nil {
		if *o.CircleRadius <= 0 {
			return p, fmt.Errorf("circle_radius_meters must be > 0, got %v", *o.CircleRadius)
		}
		p.CircleRadius = *o.CircleRadius
	}
	if o.CirclePoints != nil {
		if *o.CirclePoints < 3 {
			return p, fmt.Errorf("circle_points must be >= 3, got %d", *o.CirclePoints)
		}
		p.CirclePoints = *o.CirclePoints
	}
	return p, nil
}

// seedArgs are shared by the tools that run the pipeline.
type seedArgs struct {
	Path   string          `json:"path"`
	X      *int            `json:"x"`
	Y      *int            `json:"y"`
	Lat    *float64        `json:"lat"`
	Lng    *float64        `json:"lng"`
	Map    *geo.MapContext `json:"map"`
	Params *paramOverrides `json:"params"`
}

// input loads the image and resolves the seed. A lat/lng pair takes precedence
// over x/y.
func (s *Server) input(a *seedArgs) (pipeline.Input, error) {
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return pipeline.Input{}, err
	}
	in := pipeline.Input{Image: img, Map: a.Map}

	switch {
	case a.Lat != nil && a.Lng != nil:
		in.SeedLatLng = &orb.Point{*a.Lng, *a.Lat}
	case a.X != nil && a.Y != nil:
		in.Seed = field.Point{X: *a.X, Y: *a.Y}
	default:
		return pipeline.Input{}, fmt.Errorf("a seed is required: give x and y, or lat and lng")
	}
	return in, nil
}

func (s *Server) pipelineFor(o *paramOverrides) (*pipeline.Pipeline, error) {
	if o == nil {
		return s.pipeline, nil
	}
	params, err := o.apply(s.pipeline.Params())
	if err != nil {
		return nil, err
	}
	return s.pipeline.WithParams(params), nil
}

type fieldTraceArgs struct {
	seedArgs
	IncludePreview bool `json:"include_preview"`
	FallbackCircle bool `json:"fallback_circle"`
	SaveArtifacts  bool `json:"save_artifacts"`
}

// Bounds is a pixel bounding box with exclusive maximum.
type Bounds struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// TraceResult is the field_trace response.
type TraceResult struct {
	RunID       string             `json:"run_id,omitempty"`
	Seed        field.Point        `json:"seed"`
	Sample      *field.ColorSample `json:"sample,omitempty"`
	Polygon     [][2]float64       `json:"polygon,omitempty"`
	VertexCount int                `json:"vertex_count"`
	Perimeter   float64            `json:"perimeter,omitempty"`
	Epsilon     float64            `json:"epsilon,omitempty"`
	Area        int                `json:"area,omitempty"`
	Bounds      *Bounds            `json:"bounds,omitempty"`

	GeoJSON         *geojson.Feature `json:"geojson,omitempty"`
	EncodedPolyline string           `json:"encoded_polyline,omitempty"`

	// Fallback is set when the trace failed and GeoJSON holds a circle instead.
	Fallback bool   `json:"fallback,omitempty"`
	Failure  string `json:"failure,omitempty"`

	Preview   *imaging.PreviewResult `json:"preview,omitempty"`
	Artifacts *artifact.Manifest     `json:"artifacts,omitempty"`
}

func (s *Server) handleFieldTrace(args json.RawMessage) (interface{}, error) {
	var a fieldTraceArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	in, err := s.input(&a.seedArgs)
	if err != nil {
		return nil, err
	}
	p, err := s.pipelineFor(a.Params)
	if err != nil {
		return nil, err
	}

	run, err := p.Run(in)
	if err != nil {
		if !a.FallbackCircle || in.Map == nil {
			return nil, err
		}
		circle, cerr := p.Circle(in)
		if cerr != nil {
			return nil, err
		}
		s.log.Infow("trace failed, returning circle", "kind", fault.KindOf(err).String(), "error", err)
		return &TraceResult{
			Seed:            in.Seed,
			VertexCount:     len(circle.Ring) - 1,
			GeoJSON:         circle.Feature(),
			EncodedPolyline: circle.EncodedPolyline(),
			Fallback:        true,
			Failure:         err.Error(),
		}, nil
	}

	b := run.Region.Bounds
	res := &TraceResult{
		RunID:       run.ID.String(),
		Seed:        run.Seed,
		Sample:      run.Sample,
		VertexCount: len(run.Contour.Polygon),
		Perimeter:   run.Contour.Perimeter,
		Epsilon:     run.Contour.Epsilon,
		Area:        run.Region.Area,
		Bounds:      &Bounds{X1: b.Min.X, Y1: b.Min.Y, X2: b.Max.X, Y2: b.Max.Y},
	}
	for _, v := range run.Contour.Polygon {
		res.Polygon = append(res.Polygon, [2]float64{v[0], v[1]})
	}
	if run.Geo != nil {
		res.GeoJSON = run.Geo.Feature()
		res.EncodedPolyline = run.Geo.EncodedPolyline()
	}

	if a.IncludePreview {
		preview, err := regionPreview(run)
		if err != nil {
			return nil, err
		}
		res.Preview = preview
	}

	if a.SaveArtifacts {
		if s.store == nil {
			return nil, fmt.Errorf("artifacts are disabled: set artifacts_dir in the configuration")
		}
		m, err := s.store.Save(run)
		if err != nil {
			return nil, err
		}
		res.Artifacts = m
	}

	return res, nil
}

// regionPreview paints the seed region over a dimmed copy of the tile and crops
// to the region with some context around it.
func regionPreview(run *pipeline.Run) (*imaging.PreviewResult, error) {
	overlay, err := imaging.Overlay(run.Source, run.Region.View.Colorize(), 0.5, 0.6)
	if err != nil {
		return nil, err
	}
	cropped, err := imaging.CropAround(overlay, run.Region.Bounds, 20, 1.0)
	if err != nil {
		return nil, err
	}
	return imaging.EncodePreview(cropped)
}

type fieldMaskArgs struct {
	seedArgs
	Stage     string `json:"stage"`
	ShowTiles bool   `json:"show_tiles"`
	TileColor string `json:"tile_color"`
}

// MaskResult is the field_mask response.
type MaskResult struct {
	Stage  string                 `json:"stage"`
	Seed   field.Point            `json:"seed"`
	Sample *field.ColorSample     `json:"sample"`
	Count  int                    `json:"foreground_pixels"`
	Mask   *imaging.PreviewResult `json:"mask"`
}

func (s *Server) handleFieldMask(args json.RawMessage) (interface{}, error) {
	var a fieldMaskArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Stage == "" {
		a.Stage = pipeline.StepSmooth.String()
	}
	step, err := pipeline.ParseStep(a.Stage)
	if err != nil || step < pipeline.StepSegment || step > pipeline.StepExtract {
		return nil, fmt.Errorf("stage must be one of segment, smooth, extract; got %q", a.Stage)
	}

	in, err := s.input(&a.seedArgs)
	if err != nil {
		return nil, err
	}
	p, err := s.pipelineFor(a.Params)
	if err != nil {
		return nil, err
	}
	run, err := p.RunThrough(in, step)
	if err != nil {
		return nil, err
	}

	var img image.Image
	count := 0
	switch step {
	case pipeline.StepSegment:
		img, count = run.Mask.Gray(), run.Mask.Count()
	case pipeline.StepSmooth:
		img, count = run.Smoothed.Gray(), run.Smoothed.Count()
	default:
		img, count = run.Region.View.Colorize(), run.Region.Area
	}

	if a.ShowTiles {
		img = imaging.TileGrid(img, run.Params.TileSize, a.TileColor)
	}

	encoded, err := imaging.EncodePreview(img)
	if err != nil {
		return nil, err
	}
	return &MaskResult{
		Stage:  step.String(),
		Seed:   run.Seed,
		Sample: run.Sample,
		Count:  count,
		Mask:   encoded,
	}, nil
}

type fieldCircleArgs struct {
	Lat          *float64        `json:"lat"`
	Lng          *float64        `json:"lng"`
	Map          *geo.MapContext `json:"map"`
	RadiusMeters float64         `json:"radius_meters"`
	Points       int             `json:"points"`
}

// CircleResult is the field_circle response.
type CircleResult struct {
	GeoJSON         *geojson.Feature `json:"geojson"`
	EncodedPolyline string           `json:"encoded_polyline"`
	RadiusMeters    float64          `json:"radius_meters"`
	Points          int              `json:"points"`
}

func (s *Server) handleFieldCircle(args json.RawMessage) (interface{}, error) {
	var a fieldCircleArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Map == nil {
		return nil, fault.New(fault.InvalidMapContext, "map context is required")
	}
	if a.Lat == nil || a.Lng == nil {
		return nil, fault.New(fault.InvalidMapContext, "lat and lng are required")
	}

	if a.Points > 0 && a.Points < 3 {
		return nil, fmt.Errorf("points must be >= 3, got %d", a.Points)
	}

	params := s.pipeline.Params()
	if a.RadiusMeters > 0 {
		params.CircleRadius = a.RadiusMeters
	}
	if a.Points > 0 {
		params.CirclePoints = a.Points
	}

	circle, err := s.pipeline.WithParams(params).Circle(pipeline.Input{
		Map:        a.Map,
		SeedLatLng: &orb.Point{*a.Lng, *a.Lat},
	})
	if err != nil {
		return nil, err
	}
	return &CircleResult{
		GeoJSON:         circle.Feature(),
		EncodedPolyline: circle.EncodedPolyline(),
		RadiusMeters:    circle.RadiusMeters,
		Points:          len(circle.Ring) - 1,
	}, nil
}
