package field

import (
	"image"

	"gonum.org/v1/gonum/stat"

	"github.com/ironsheep/field-boundary-mcp/internal/fault"
	"github.com/ironsheep/field-boundary-mcp/internal/imaging"
)

// DefaultSampleRadius is the radius in pixels of the disk sampled around the seed.
const DefaultSampleRadius = 40

// HSV is a floating-point color on the 8-bit HSV scale, used for averages.
type HSV struct {
	H float64 `json:"h"`
	S float64 `json:"s"`
	V float64 `json:"v"`
}

// ColorSample is the reference color of a run.
type ColorSample struct {
	// Mean is the per-channel average over the sampled pixels.
	Mean HSV `json:"mean"`

	// Center and Radius describe the sampling disk.
	Center Point `json:"center"`
	Radius int   `json:"radius"`

	// Pixels is how many pixels contributed to Mean.
	Pixels int `json:"pixels"`

	// Excluded is how many disk pixels were dropped for matching the marker band.
	Excluded int `json:"excluded"`
}

// SampleOptions controls SampleReference.
type SampleOptions struct {
	// Radius of the filled disk around the seed, in pixels.
	Radius int

	// Marker, when set, excludes pixels whose color falls inside the band. It keeps
	// an indicator drawn onto the tile (a red circle, a pin) out of the sample.
	Marker *imaging.HSVBand
}

// SampleReference estimates the target color from a filled disk around seed.
//
// The disk holds every pixel with dx²+dy² ≤ radius², clipped to the image. Pixels
// matching opts.Marker are removed before averaging. Hue is averaged
// arithmetically, like the other channels.
//
// # Errors
//
//   - fault.SeedOutOfBounds if seed is not inside the image
//   - fault.EmptySampleArea if no pixels remain after exclusion
func SampleReference(img image.Image, seed Point, opts SampleOptions) (*ColorSample, error) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if err := checkSeed(seed, width, height); err != nil {
		return nil, err
	}

	r := opts.Radius

	// No pixel is farther than width+height from the seed, so a larger radius
	// selects the same disk.
	rc := r
	if rc > width+height {
		rc = width + height
	}
	window := image.Rect(seed.X-rc, seed.Y-rc, seed.X+rc+1, seed.Y+rc+1).
		Intersect(image.Rect(0, 0, width, height))
	if r < 0 {
		window = image.Rectangle{}
	}
	rr := rc * rc

	capacity := window.Dx() * window.Dy()
	hs := make([]float64, 0, capacity)
	ss := make([]float64, 0, capacity)
	vs := make([]float64, 0, capacity)
	excluded := 0

	for y := window.Min.Y; y < window.Max.Y; y++ {
		dy := y - seed.Y
		for x := window.Min.X; x < window.Max.X; x++ {
			dx := x - seed.X
			if dx*dx+dy*dy > rr {
				continue
			}

			c := imaging.HSVAt(img, x+bounds.Min.X, y+bounds.Min.Y)
			if opts.Marker != nil && opts.Marker.Contains(c) {
				excluded++
				continue
			}
			hs = append(hs, float64(c.H))
			ss = append(ss, float64(c.S))
			vs = append(vs, float64(c.V))
		}
	}

	if len(hs) == 0 {
		return nil, fault.New(fault.EmptySampleArea,
			"no pixels left to sample within radius %d of (%d,%d) (%d excluded as marker)",
			r, seed.X, seed.Y, excluded)
	}

	return &ColorSample{
		Mean: HSV{
			H: stat.Mean(hs, nil),
			S: stat.Mean(ss, nil),
			V: stat.Mean(vs, nil),
		},
		Center:   seed,
		Radius:   r,
		Pixels:   len(hs),
		Excluded: excluded,
	}, nil
}
