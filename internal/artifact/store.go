// Package artifact writes the intermediate and final products of a pipeline run
// to disk, one directory per run.
package artifact

import (
	"encoding/json"
	"image"
	"os"
	"path/filepath"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ironsheep/field-boundary-mcp/internal/field"
	"github.com/ironsheep/field-boundary-mcp/internal/logging"
	"github.com/ironsheep/field-boundary-mcp/internal/pipeline"
)

// File names inside a run directory.
const (
	MaskFile     = "mask.png"
	SmoothedFile = "smoothed.png"
	RegionFile   = "region.png"
	GeoJSONFile  = "boundary.geojson"
	KMLFile      = "boundary.kml"
	PolygonFile  = "polygon.json"
)

// Store writes run artifacts below a root directory.
type Store struct {
	root string
	log  *zap.SugaredLogger
}

// NewStore creates a Store rooted at root. The directory is created on first save.
func NewStore(root string, log *zap.SugaredLogger) *Store {
	if log == nil {
		log = logging.Nop()
	}
	return &Store{root: root, log: log}
}

// Manifest lists what Save wrote.
type Manifest struct {
	RunID string   `json:"run_id"`
	Dir   string   `json:"dir"`
	Files []string `json:"files"`
}

// PolygonRecord is the JSON form of the pixel-space result.
type PolygonRecord struct {
	RunID     string             `json:"run_id"`
	Seed      field.Point        `json:"seed"`
	Sample    *field.ColorSample `json:"sample,omitempty"`
	Vertices  [][2]float64       `json:"vertices"`
	Perimeter float64            `json:"perimeter"`
	Epsilon   float64            `json:"epsilon"`
	Area      int                `json:"area"`
}

// Dir returns the directory for a run ID.
func (s *Store) Dir(runID string) string {
	return filepath.Join(s.root, runID)
}

// Save writes every artifact run has produced into <root>/<run id>/. Artifacts of
// stages that did not run are skipped. When the run has no geographic result, the
// GeoJSON file holds the pixel polygon instead.
func (s *Store) Save(run *pipeline.Run) (*Manifest, error) {
	id := run.ID.String()
	dir := s.Dir(id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating run directory %s", dir)
	}

	m := &Manifest{RunID: id, Dir: dir}
	write := func(name string, fn func(path string) error) error {
		path := filepath.Join(dir, name)
		if err := fn(path); err != nil {
			return errors.Wrapf(err, "writing %s", name)
		}
		m.Files = append(m.Files, name)
		return nil
	}

	if run.Mask != nil {
		if err := write(MaskFile, pngWriter(run.Mask.Gray())); err != nil {
			return nil, err
		}
	}
	if run.Smoothed != nil {
		if err := write(SmoothedFile, pngWriter(run.Smoothed.Gray())); err != nil {
			return nil, err
		}
	}
	if run.Region != nil {
		if err := write(RegionFile, pngWriter(run.Region.View.Colorize())); err != nil {
			return nil, err
		}
	}

	if run.Contour != nil {
		if err := write(PolygonFile, jsonWriter(polygonRecord(run))); err != nil {
			return nil, err
		}

		fc := pixelCollection(run.Contour.Polygon)
		if run.Geo != nil {
			fc = run.Geo.FeatureCollection()
		}
		if err := write(GeoJSONFile, jsonWriter(fc)); err != nil {
			return nil, err
		}
	}

	if run.Geo != nil {
		err := write(KMLFile, func(path string) error {
			f, err := os.Create(path)
			if err != nil {
				return err
			}
			if err := run.Geo.WriteKML(f, "field "+id); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		})
		if err != nil {
			return nil, err
		}
	}

	s.log.Debugw("artifacts saved", "run", id, "dir", dir, "files", m.Files)
	return m, nil
}

func pngWriter(img image.Image) func(string) error {
	return func(path string) error {
		return imgio.Save(path, img, imgio.PNGEncoder())
	}
}

func jsonWriter(v interface{}) func(string) error {
	return func(path string) error {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		return os.WriteFile(path, data, 0o644)
	}
}

func polygonRecord(run *pipeline.Run) PolygonRecord {
	rec := PolygonRecord{
		RunID:     run.ID.String(),
		Seed:      run.Seed,
		Sample:    run.Sample,
		Perimeter: run.Contour.Perimeter,
		Epsilon:   run.Contour.Epsilon,
	}
	if run.Region != nil {
		rec.Area = run.Region.Area
	}
	for _, p := range run.Contour.Polygon {
		rec.Vertices = append(rec.Vertices, [2]float64{p[0], p[1]})
	}
	return rec
}

// pixelCollection is the pixel polygon as a GeoJSON collection with a closed ring.
func pixelCollection(poly field.Polygon) *geojson.FeatureCollection {
	ring := make(orb.Ring, 0, len(poly)+1)
	ring = append(ring, poly...)
	if len(ring) > 0 {
		ring = append(ring, ring[0])
	}
	fc := geojson.NewFeatureCollection()
	f := geojson.NewFeature(orb.Polygon{ring})
	f.Properties["coordinate_space"] = "pixel"
	fc.Append(f)
	return fc
}
