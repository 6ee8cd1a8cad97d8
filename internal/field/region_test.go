package field

import (
	"image"
	"testing"

	"github.com/ironsheep/field-boundary-mcp/internal/fault"
)

func TestExtractRegion_KeepsOnlySeedComponent(t *testing.T) {
	m := maskFrom(
		"###.....",
		"###...##",
		"###...##",
		"........",
		"....#...",
	)

	r, err := ExtractRegion(m, Point{X: 1, Y: 1})
	if err != nil {
		t.Fatalf("ExtractRegion failed: %v", err)
	}

	want := maskFrom(
		"###.....",
		"###.....",
		"###.....",
		"........",
		"........",
	)
	if render(r.Mask) != render(want) {
		t.Errorf("component =\n%s\nwant\n%s", render(r.Mask), render(want))
	}
	if r.Area != 9 {
		t.Errorf("Area = %d, want 9", r.Area)
	}
	if r.Bounds != image.Rect(0, 0, 3, 3) {
		t.Errorf("Bounds = %v, want (0,0)-(3,3)", r.Bounds)
	}
}

func TestExtractRegion_DiagonalNeighborsConnect(t *testing.T) {
	m := maskFrom(
		"#...",
		".#..",
		"..#.",
		"...#",
	)

	r, err := ExtractRegion(m, Point{X: 0, Y: 0})
	if err != nil {
		t.Fatalf("ExtractRegion failed: %v", err)
	}
	if r.Area != 4 {
		t.Errorf("Area = %d, want 4 (8-connectivity)", r.Area)
	}
}

func TestExtractRegion_ViewTagsComponents(t *testing.T) {
	m := maskFrom(
		"##..#",
		"##..#",
	)

	r, err := ExtractRegion(m, Point{X: 0, Y: 0})
	if err != nil {
		t.Fatalf("ExtractRegion failed: %v", err)
	}

	if got := r.View.At(1, 1); got != SeedComponent {
		t.Errorf("View(1,1) = %d, want SeedComponent", got)
	}
	if got := r.View.At(4, 0); got != Foreground {
		t.Errorf("View(4,0) = %d, want Foreground", got)
	}
	if got := r.View.At(2, 0); got != Background {
		t.Errorf("View(2,0) = %d, want Background", got)
	}
}

func TestExtractRegion_Errors(t *testing.T) {
	m := maskFrom(
		"##..",
		"##..",
	)

	tests := []struct {
		name string
		seed Point
		want fault.Kind
	}{
		{"background seed", Point{X: 3, Y: 1}, fault.SeedNotOnRegion},
		{"negative x", Point{X: -1, Y: 0}, fault.SeedOutOfBounds},
		{"past height", Point{X: 0, Y: 2}, fault.SeedOutOfBounds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ExtractRegion(m, tt.seed)
			if !fault.Is(err, tt.want) {
				t.Errorf("error = %v, want kind %s", err, tt.want)
			}
		})
	}
}

func TestExtractRegion_LargeRegionNoRecursion(t *testing.T) {
	m := rectMask(1000, 1000, image.Rect(0, 0, 1000, 1000))

	r, err := ExtractRegion(m, Point{X: 500, Y: 500})
	if err != nil {
		t.Fatalf("ExtractRegion failed: %v", err)
	}
	if r.Area != 1000*1000 {
		t.Errorf("Area = %d, want %d", r.Area, 1000*1000)
	}
}
