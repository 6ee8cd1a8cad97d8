package field

import (
	"image"
	"math"
	"testing"

	"github.com/ironsheep/field-boundary-mcp/internal/fault"
)

func regionOf(t *testing.T, m *Mask, seed Point) *Region {
	t.Helper()
	r, err := ExtractRegion(m, seed)
	if err != nil {
		t.Fatalf("ExtractRegion failed: %v", err)
	}
	return r
}

// diskMask draws a filled circle, which traces to a boundary with many corners.
func diskMask(size, radius int) *Mask {
	m := NewMask(size, size)
	c := size / 2
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			dx, dy := x-c, y-c
			if dx*dx+dy*dy <= radius*radius {
				m.Set(x, y, Foreground)
			}
		}
	}
	return m
}

func TestSimplify_RectangleHasFourVertices(t *testing.T) {
	m := rectMask(200, 200, image.Rect(50, 50, 150, 150))

	c, err := Simplify(regionOf(t, m, Point{X: 100, Y: 100}), DefaultEpsilonFactor)
	if err != nil {
		t.Fatalf("Simplify failed: %v", err)
	}

	if len(c.Polygon) != 4 {
		t.Errorf("got %d vertices, want 4: %v", len(c.Polygon), c.Polygon)
	}
	if math.Abs(c.Perimeter-4*99) > 1e-9 {
		t.Errorf("Perimeter = %f, want %d", c.Perimeter, 4*99)
	}
	if math.Abs(c.Epsilon-DefaultEpsilonFactor*c.Perimeter) > 1e-12 {
		t.Errorf("Epsilon = %f, want factor × perimeter", c.Epsilon)
	}
}

func TestSimplify_ZeroEpsilonKeepsBoundary(t *testing.T) {
	m := diskMask(80, 30)

	c, err := Simplify(regionOf(t, m, Point{X: 40, Y: 40}), 0)
	if err != nil {
		t.Fatalf("Simplify failed: %v", err)
	}

	if len(c.Polygon) != len(c.Boundary)-1 {
		t.Fatalf("got %d vertices, want %d", len(c.Polygon), len(c.Boundary)-1)
	}
	for i, p := range c.Polygon {
		if !p.Equal(c.Boundary[i]) {
			t.Fatalf("vertex %d = %v, want %v", i, p, c.Boundary[i])
		}
	}
}

func TestSimplify_NeverAddsVertices(t *testing.T) {
	m := diskMask(120, 50)
	r := regionOf(t, m, Point{X: 60, Y: 60})

	prev := math.MaxInt
	for _, factor := range []float64{0, 0.0005, 0.001, 0.005, 0.02} {
		c, err := Simplify(r, factor)
		if err != nil {
			t.Fatalf("factor %v: Simplify failed: %v", factor, err)
		}
		if len(c.Polygon) > len(c.Boundary)-1 {
			t.Errorf("factor %v: %d vertices exceeds boundary's %d", factor, len(c.Polygon), len(c.Boundary)-1)
		}
		if len(c.Polygon) < 3 {
			t.Errorf("factor %v: only %d vertices", factor, len(c.Polygon))
		}
		if len(c.Polygon) > prev {
			t.Errorf("factor %v: %d vertices, more than %d at a smaller factor", factor, len(c.Polygon), prev)
		}
		prev = len(c.Polygon)
	}
}

func TestSimplify_HugeEpsilonFallsBackToBoundary(t *testing.T) {
	m := rectMask(30, 30, image.Rect(5, 5, 25, 25))

	c, err := Simplify(regionOf(t, m, Point{X: 10, Y: 10}), 10)
	if err != nil {
		t.Fatalf("Simplify failed: %v", err)
	}
	if len(c.Polygon) != 4 {
		t.Errorf("got %d vertices, want the 4 boundary corners", len(c.Polygon))
	}
}

func TestSimplify_NoContour(t *testing.T) {
	tests := []struct {
		name string
		mask *Mask
		seed Point
	}{
		{"single cell", maskFrom("...", ".#.", "..."), Point{X: 1, Y: 1}},
		{"thin line", maskFrom("......", ".####.", "......"), Point{X: 2, Y: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Simplify(regionOf(t, tt.mask, tt.seed), DefaultEpsilonFactor)
			if !fault.Is(err, fault.NoContourFound) {
				t.Errorf("error = %v, want no_contour_found", err)
			}
		})
	}
}
