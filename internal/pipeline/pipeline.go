// Package pipeline chains the field extraction stages into a single run.
//
// A Run carries every intermediate artifact of one extraction and is identified by
// a UUID, so concurrent runs never share state or output locations. The stages
// themselves live in package field (pixel space) and package geo (projection).
package pipeline

import (
	"image"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/ironsheep/field-boundary-mcp/internal/config"
	"github.com/ironsheep/field-boundary-mcp/internal/fault"
	"github.com/ironsheep/field-boundary-mcp/internal/field"
	"github.com/ironsheep/field-boundary-mcp/internal/geo"
	"github.com/ironsheep/field-boundary-mcp/internal/imaging"
	"github.com/ironsheep/field-boundary-mcp/internal/logging"
)

// Params are the tunables of a run.
type Params struct {
	SampleRadius  int
	Marker        *imaging.HSVBand
	Tolerance     field.Tolerance
	TileSize      int
	Threshold     float64
	EpsilonFactor float64
	CircleRadius  float64
	CirclePoints  int

	// MapWidth and MapHeight size a map context that has no width, height or
	// image to take them from.
	MapWidth  int
	MapHeight int
}

// DefaultParams returns the standard parameter set.
func DefaultParams() Params {
	return Params{
		SampleRadius:  field.DefaultSampleRadius,
		Tolerance:     field.DefaultTolerance,
		TileSize:      field.DefaultTileSize,
		Threshold:     field.DefaultDensityThreshold,
		EpsilonFactor: field.DefaultEpsilonFactor,
		CircleRadius:  geo.DefaultCircleRadius,
		CirclePoints:  geo.DefaultCirclePoints,
		MapWidth:      geo.DefaultTileWidth,
		MapHeight:     geo.DefaultTileHeight,
	}
}

// ParamsFromConfig converts loaded configuration into run parameters.
func ParamsFromConfig(cfg *config.Config) Params {
	p := Params{
		SampleRadius: cfg.Sampling.Radius,
		Tolerance: field.Tolerance{
			H: cfg.Segmentation.Hue,
			S: cfg.Segmentation.Saturation,
			V: cfg.Segmentation.Value,
		},
		TileSize:      cfg.Smoothing.TileSize,
		Threshold:     cfg.Smoothing.Threshold,
		EpsilonFactor: cfg.Contour.EpsilonFactor,
		CircleRadius:  cfg.Circle.RadiusMeters,
		CirclePoints:  cfg.Circle.Points,
		MapWidth:      cfg.Map.TileWidth,
		MapHeight:     cfg.Map.TileHeight,
	}
	if m := cfg.Sampling.Marker; m.Enabled {
		p.Marker = &imaging.HSVBand{
			Lower: imaging.HSVColor{H: m.Lower.H, S: m.Lower.S, V: m.Lower.V},
			Upper: imaging.HSVColor{H: m.Upper.H, S: m.Upper.S, V: m.Upper.V},
		}
	}
	return p
}

// Input is what a run starts from.
type Input struct {
	Image image.Image

	// Seed is the marked pixel. It is ignored when SeedLatLng is set.
	Seed field.Point

	// SeedLatLng, as [lng, lat], places the seed geographically; Map is then required.
	SeedLatLng *orb.Point

	// Map enables the projection stage. Zero Width/Height take the image size.
	Map *geo.MapContext
}

// Run holds the artifacts of one extraction. Fields are filled in step order and
// Completed records the last step that finished.
type Run struct {
	ID        uuid.UUID
	Params    Params
	Source    image.Image
	Seed      field.Point
	Map       *geo.MapContext
	Completed Step

	Sample   *field.ColorSample
	Mask     *field.Mask
	Smoothed *field.Mask
	Region   *field.Region
	Contour  *field.Contour

	// Geo is nil when no map context was supplied.
	Geo *geo.GeoPolygon

	Durations map[Step]time.Duration

	seedLatLng *orb.Point
}

// Polygon returns the simplified pixel polygon, or nil before StepSimplify.
func (r *Run) Polygon() field.Polygon {
	if r.Contour == nil {
		return nil
	}
	return r.Contour.Polygon
}

type handler func(p *Pipeline, r *Run) error

// handlers is indexed by Step; slot 0 is unused.
var handlers = [numSteps + 1]handler{
	StepSample:   (*Pipeline).sample,
	StepSegment:  (*Pipeline).segment,
	StepSmooth:   (*Pipeline).smooth,
	StepExtract:  (*Pipeline).extract,
	StepSimplify: (*Pipeline).simplify,
	StepProject:  (*Pipeline).project,
}

// Pipeline runs extractions with a fixed parameter set. It holds no per-run state
// and is safe for concurrent use.
type Pipeline struct {
	params Params
	log    *zap.SugaredLogger
}

// New creates a Pipeline.
func New(params Params, log *zap.SugaredLogger) *Pipeline {
	if log == nil {
		log = logging.Nop()
	}
	return &Pipeline{params: params, log: log}
}

// Params returns the parameters the pipeline was created with.
func (p *Pipeline) Params() Params {
	return p.params
}

// WithParams returns a Pipeline sharing the logger but using params.
func (p *Pipeline) WithParams(params Params) *Pipeline {
	return &Pipeline{params: params, log: p.log}
}

// Run executes every stage. See RunThrough.
func (p *Pipeline) Run(in Input) (*Run, error) {
	return p.RunThrough(in, StepProject)
}

// RunThrough executes stages in order up to and including last, stopping at the
// first failure. The returned error is a *fault.Error annotated with the failing
// stage ("stage 4 (extract) failed: ..."); no Run is returned in that case.
//
// Input problems are reported as stage 0 (input): a nil image is
// fault.DecodeFailure, a geographic seed without a usable map context is
// fault.InvalidMapContext.
func (p *Pipeline) RunThrough(in Input, last Step) (*Run, error) {
	if !last.Valid() {
		last = StepProject
	}

	run, err := p.prepare(in)
	if err != nil {
		return nil, fault.AtStage(err, 0, "input")
	}

	for s := StepSample; s <= last; s++ {
		started := time.Now()
		if err := handlers[s](p, run); err != nil {
			fe := fault.AtStage(err, int(s), s.String())
			p.log.Debugw("stage failed",
				"run", run.ID,
				"stage", s.String(),
				"kind", fe.Kind.String(),
				"error", fe.Msg,
			)
			return nil, fe
		}
		run.Durations[s] = time.Since(started)
		run.Completed = s
		p.log.Debugw("stage complete",
			"run", run.ID,
			"stage", s.String(),
			"duration", run.Durations[s],
		)
	}
	return run, nil
}

func (p *Pipeline) prepare(in Input) (*Run, error) {
	if in.Image == nil {
		return nil, fault.New(fault.DecodeFailure, "no image supplied")
	}
	bounds := in.Image.Bounds()
	if bounds.Empty() {
		return nil, fault.New(fault.DecodeFailure, "image has no pixels")
	}

	run := &Run{
		ID:        uuid.New(),
		Params:    p.params,
		Source:    in.Image,
		Seed:      in.Seed,
		Durations: make(map[Step]time.Duration, numSteps),
	}

	if in.Map != nil {
		m := *in.Map
		if m.Width <= 0 {
			m.Width = bounds.Dx()
		}
		if m.Height <= 0 {
			m.Height = bounds.Dy()
		}
		if err := m.Validate(); err != nil {
			return nil, err
		}
		run.Map = &m
	}

	if in.SeedLatLng != nil {
		if run.Map == nil {
			return nil, fault.New(fault.InvalidMapContext, "a geographic seed needs a map context")
		}
		pt, err := geo.PixelFromLatLng(*run.Map, in.SeedLatLng[1], in.SeedLatLng[0])
		if err != nil {
			return nil, err
		}
		run.Seed = field.Point{X: pt.X, Y: pt.Y}
		ll := *in.SeedLatLng
		run.seedLatLng = &ll
	}
	return run, nil
}

func (p *Pipeline) sample(r *Run) error {
	s, err := field.SampleReference(r.Source, r.Seed, field.SampleOptions{
		Radius: p.params.SampleRadius,
		Marker: p.params.Marker,
	})
	r.Sample = s
	return err
}

func (p *Pipeline) segment(r *Run) error {
	r.Mask = field.Segment(r.Source, r.Sample, p.params.Tolerance)
	return nil
}

func (p *Pipeline) smooth(r *Run) error {
	r.Smoothed = field.Smooth(r.Mask, p.params.TileSize, p.params.Threshold)
	return nil
}

func (p *Pipeline) extract(r *Run) error {
	region, err := field.ExtractRegion(r.Smoothed, r.Seed)
	r.Region = region
	return err
}

func (p *Pipeline) simplify(r *Run) error {
	c, err := field.Simplify(r.Region, p.params.EpsilonFactor)
	r.Contour = c
	return err
}

func (p *Pipeline) project(r *Run) error {
	if r.Map == nil {
		return nil
	}
	g, err := geo.Project(*r.Map, r.Contour.Polygon, orb.Point{float64(r.Seed.X), float64(r.Seed.Y)})
	if err != nil {
		return err
	}
	if r.seedLatLng != nil {
		ll := *r.seedLatLng
		g.Selected = &ll
	}
	r.Geo = g
	return nil
}

// Circle builds the fallback outline for in: a circle around the seed's
// geographic position. in.Map is required; the seed position comes from
// in.SeedLatLng or, failing that, from projecting in.Seed.
func (p *Pipeline) Circle(in Input) (*geo.GeoPolygon, error) {
	if in.Map == nil {
		return nil, fault.New(fault.InvalidMapContext, "circle fallback needs a map context")
	}
	m := *in.Map
	if in.Image != nil {
		b := in.Image.Bounds()
		if m.Width <= 0 {
			m.Width = b.Dx()
		}
		if m.Height <= 0 {
			m.Height = b.Dy()
		}
	}
	if m.Width <= 0 {
		m.Width = p.params.MapWidth
	}
	if m.Height <= 0 {
		m.Height = p.params.MapHeight
	}

	var ll orb.Point
	if in.SeedLatLng != nil {
		ll = *in.SeedLatLng
	} else {
		ll = m.PixelToLngLat(float64(in.Seed.X), float64(in.Seed.Y))
	}
	return geo.CirclePolygon(m, ll[1], ll[0], p.params.CircleRadius, p.params.CirclePoints)
}
