package main

import (
	"encoding/json"
	"fmt"
	"image"
	"os"

	"github.com/paulmach/orb"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ironsheep/field-boundary-mcp/internal/artifact"
	"github.com/ironsheep/field-boundary-mcp/internal/config"
	"github.com/ironsheep/field-boundary-mcp/internal/field"
	"github.com/ironsheep/field-boundary-mcp/internal/geo"
	"github.com/ironsheep/field-boundary-mcp/internal/imaging"
	"github.com/ironsheep/field-boundary-mcp/internal/logging"
	"github.com/ironsheep/field-boundary-mcp/internal/pipeline"
	"github.com/ironsheep/field-boundary-mcp/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "field-mcp",
	Short: "MCP server that traces agricultural field boundaries on aerial tiles",
	Long: `field-mcp traces the outline of the field around a seed point on an aerial map
tile and returns it as a pixel polygon or, given a map context, as a GeoJSON
polygon in [lng, lat].

Run without a subcommand it serves the MCP protocol over stdin/stdout.`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the MCP protocol over stdin/stdout",
	RunE:  runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("field-mcp %s\n", Version)
		fmt.Printf("  Build time: %s\n", BuildTime)
		fmt.Printf("  Git commit: %s\n", GitCommit)
	},
}

var traceOpts struct {
	image    string
	x, y     int
	lat, lng float64
	mapLat   float64
	mapLng   float64
	zoom     int
	format   string
	save     bool
	fallback bool
}

var traceCmd = &cobra.Command{
	Use:   "trace",
	Short: "Trace one field and print its boundary",
	Long: `Trace the field under a seed point and print the boundary to stdout.

Pass --image - to read the tile from stdin.

The seed is given in pixels (--x/--y) or geographically (--lat/--lng, which
needs --map-lat/--map-lng/--zoom). Without a map context only the pixel
polygon can be printed.`,
	RunE: runTrace,
}

var circleOpts struct {
	lat, lng float64
	zoom     int
	radius   float64
	points   int
	format   string
}

var circleCmd = &cobra.Command{
	Use:   "circle",
	Short: "Print the fallback circle around a point",
	RunE:  runCircle,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides the configuration")

	f := traceCmd.Flags()
	f.StringVarP(&traceOpts.image, "image", "i", "", "Aerial tile to trace, or - for stdin (required)")
	f.IntVar(&traceOpts.x, "x", -1, "Seed X in pixels")
	f.IntVar(&traceOpts.y, "y", -1, "Seed Y in pixels")
	f.Float64Var(&traceOpts.lat, "lat", 0, "Seed latitude")
	f.Float64Var(&traceOpts.lng, "lng", 0, "Seed longitude")
	f.Float64Var(&traceOpts.mapLat, "map-lat", 0, "Latitude of the tile center")
	f.Float64Var(&traceOpts.mapLng, "map-lng", 0, "Longitude of the tile center")
	f.IntVar(&traceOpts.zoom, "zoom", -1, "Zoom level of the tile")
	f.StringVarP(&traceOpts.format, "format", "o", "geojson", "Output format: geojson, kml, polyline or pixels")
	f.BoolVar(&traceOpts.save, "save", false, "Write artifacts to the configured artifacts_dir")
	f.BoolVar(&traceOpts.fallback, "fallback-circle", false, "Print the fallback circle when tracing fails")
	_ = traceCmd.MarkFlagRequired("image")

	f = circleCmd.Flags()
	f.Float64Var(&circleOpts.lat, "lat", 0, "Center latitude")
	f.Float64Var(&circleOpts.lng, "lng", 0, "Center longitude")
	f.IntVar(&circleOpts.zoom, "zoom", 18, "Zoom level recorded with the polygon")
	f.Float64Var(&circleOpts.radius, "radius", 0, "Radius in meters; 0 uses the configured radius")
	f.IntVar(&circleOpts.points, "points", 0, "Vertex count; 0 uses the configured count")
	f.StringVarP(&circleOpts.format, "format", "o", "geojson", "Output format: geojson, kml or polyline")
	_ = circleCmd.MarkFlagRequired("lat")
	_ = circleCmd.MarkFlagRequired("lng")

	rootCmd.AddCommand(serveCmd, traceCmd, circleCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// env holds what every command builds from the configuration.
type env struct {
	cfg      *config.Config
	log      *zap.SugaredLogger
	pipeline *pipeline.Pipeline
	store    *artifact.Store
}

func setup() (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	e := &env{
		cfg:      cfg,
		log:      log,
		pipeline: pipeline.New(pipeline.ParamsFromConfig(cfg), log),
	}
	if cfg.ArtifactsDir != "" {
		e.store = artifact.NewStore(cfg.ArtifactsDir, log)
	}
	return e, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.log.Sync()

	e.log.Infow("starting", "version", Version, "commit", GitCommit, "built", BuildTime,
		"artifacts_dir", e.cfg.ArtifactsDir)

	srv := server.New(server.Options{
		Pipeline: e.pipeline,
		Store:    e.store,
		Log:      e.log,
		Version:  Version,
	})
	if err := srv.Run(); err != nil {
		e.log.Errorw("server stopped", "error", err)
		return err
	}
	return nil
}

func runTrace(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.log.Sync()

	img, err := loadTile(traceOpts.image)
	if err != nil {
		return err
	}

	in := pipeline.Input{Image: img, Seed: field.Point{X: traceOpts.x, Y: traceOpts.y}}
	flags := cmd.Flags()
	if flags.Changed("zoom") {
		in.Map = &geo.MapContext{CenterLat: traceOpts.mapLat, CenterLng: traceOpts.mapLng, Zoom: traceOpts.zoom}
	}
	switch {
	case flags.Changed("lat") && flags.Changed("lng"):
		in.SeedLatLng = &orb.Point{traceOpts.lng, traceOpts.lat}
	case !flags.Changed("x") || !flags.Changed("y"):
		return fmt.Errorf("a seed is required: give --x and --y, or --lat and --lng")
	}

	run, err := e.pipeline.Run(in)
	if err != nil {
		if !traceOpts.fallback || in.Map == nil {
			return err
		}
		circle, cerr := e.pipeline.Circle(in)
		if cerr != nil {
			return err
		}
		e.log.Warnw("trace failed, printing circle", "error", err)
		return printGeo(circle, traceOpts.format)
	}

	if traceOpts.save {
		if e.store == nil {
			return fmt.Errorf("--save needs artifacts_dir in the configuration")
		}
		m, err := e.store.Save(run)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "artifacts written to %s\n", m.Dir)
	}

	if traceOpts.format == "pixels" || run.Geo == nil {
		if traceOpts.format != "pixels" {
			e.log.Warnw("no map context, printing pixel polygon", "format", traceOpts.format)
		}
		return printJSON(run.Polygon())
	}
	return printGeo(run.Geo, traceOpts.format)
}

func runCircle(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.log.Sync()

	params, err := circleParams(e.pipeline.Params(), circleOpts.radius, circleOpts.points)
	if err != nil {
		return err
	}

	circle, err := e.pipeline.WithParams(params).Circle(pipeline.Input{
		Map:        &geo.MapContext{CenterLat: circleOpts.lat, CenterLng: circleOpts.lng, Zoom: circleOpts.zoom},
		SeedLatLng: &orb.Point{circleOpts.lng, circleOpts.lat},
	})
	if err != nil {
		return err
	}
	return printGeo(circle, circleOpts.format)
}

// circleParams applies the --radius and --points flags; zero keeps the
// configured value.
func circleParams(base pipeline.Params, radius float64, points int) (pipeline.Params, error) {
	if points > 0 && points < 3 {
		return base, fmt.Errorf("--points must be >= 3, got %d", points)
	}
	if radius > 0 {
		base.CircleRadius = radius
	}
	if points > 0 {
		base.CirclePoints = points
	}
	return base, nil
}

// loadTile decodes the tile at path, or from stdin when path is "-".
func loadTile(path string) (*image.NRGBA, error) {
	if path == "-" {
		return imaging.Decode(os.Stdin)
	}
	return imaging.NewImageCache().Load(path)
}

func printGeo(g *geo.GeoPolygon, format string) error {
	switch format {
	case "geojson":
		return printJSON(g.FeatureCollection())
	case "kml":
		return g.WriteKML(os.Stdout, "field")
	case "polyline":
		_, err := fmt.Println(g.EncodedPolyline())
		return err
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
