package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carlmjohnson/versioninfo"
	"github.com/go-spatial/geom"
	"github.com/iancoleman/strcase"
	"github.com/urfave/cli/v2"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/pdok/facsimile/descriptor"
	"github.com/pdok/facsimile/geomhelp"
	"github.com/pdok/facsimile/mapper"
	"github.com/pdok/facsimile/overlay"
	"github.com/pdok/facsimile/processing"
	"github.com/pdok/facsimile/pyramid"
	"github.com/pdok/facsimile/scale"
	"github.com/pdok/facsimile/server"
	"github.com/pdok/facsimile/simplecrs"
	"github.com/pdok/facsimile/tilegroup"
	"github.com/pdok/facsimile/tms20"
	"github.com/pdok/facsimile/viewport"
)

const DESCRIPTOR string = `descriptor`
const WIDTH string = `width`
const HEIGHT string = `height`
const TILESIZE string = `tilesize`
const DPI string = `dpi`
const RETINA string = `retina`
const BASEURL string = `baseurl`
const LOGFILE string = `logfile`
const VIEWPORT string = `viewport`
const TOLERANCE string = `tolerance`
const DISTANCE string = `distance`
const REGIONS string = `regions`
const ZOOM string = `zoom`
const WKTLENGTH string = `wktlength`
const SCALEFACTOR string = `scalefactor`
const TILEMATRIXSET string = `tilematrixset`
const CHECK string = `check`
const ADDRESS string = `address`
const CACHETTL string = `cachettl`
const CACHECAPACITY string = `cachecapacity`
const TIMEOUT string = `timeout`

func envVars(name string) []string {
	return []string{strcase.ToScreamingSnake(name)}
}

//nolint:funlen
func main() {
	app := cli.NewApp()
	app.Name = "facsimile"
	app.Usage = "Tile pyramid, viewport and overlay computations for zoomable facsimile images"
	app.Version = versioninfo.Short()

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    DESCRIPTOR,
			Aliases: []string{"d"},
			Usage:   "Image descriptor (JSON or YAML). Flags given explicitly override its values",
			EnvVars: envVars(DESCRIPTOR),
		},
		&cli.IntFlag{
			Name:    WIDTH,
			Usage:   "Width of the full resolution image in pixels",
			EnvVars: envVars(WIDTH),
		},
		&cli.IntFlag{
			Name:    HEIGHT,
			Usage:   "Height of the full resolution image in pixels",
			EnvVars: envVars(HEIGHT),
		},
		&cli.IntFlag{
			Name:    TILESIZE,
			Usage:   "Edge of a tile in pixels",
			Value:   256,
			EnvVars: envVars(TILESIZE),
		},
		&cli.Float64Flag{
			Name:    DPI,
			Usage:   "Resolution of the scan, 0 when unknown",
			EnvVars: envVars(DPI),
		},
		&cli.BoolFlag{
			Name:    RETINA,
			Usage:   "Compensate for high density displays",
			EnvVars: envVars(RETINA),
		},
		&cli.StringFlag{
			Name:    BASEURL,
			Aliases: []string{"b"},
			Usage:   "Location of the tile set, ending with a slash",
			EnvVars: envVars(BASEURL),
		},
		&cli.StringFlag{
			Name:    LOGFILE,
			Usage:   "Write the log to this (rotated) file instead of stderr",
			EnvVars: envVars(LOGFILE),
		},
	}

	app.Before = func(c *cli.Context) error {
		if logfile := c.String(LOGFILE); logfile != "" {
			log.SetOutput(&lumberjack.Logger{
				Filename:   logfile,
				MaxSize:    10,
				MaxBackups: 3,
				MaxAge:     28,
			})
		}
		return nil
	}

	app.Commands = []*cli.Command{
		{
			Name:   "pyramid",
			Usage:  "Print the levels of the tile pyramid",
			Action: pyramidAction,
		},
		{
			Name:  "tiles",
			Usage: "Print the tile URLs of the whole pyramid, or those visible in a viewport at the best fit zoom",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    VIEWPORT,
					Usage:   "Viewport size in screen pixels, e.g. 1280x800",
					EnvVars: envVars(VIEWPORT),
				},
				toleranceFlag(),
			},
			Action: tilesAction,
		},
		{
			Name:  "fit",
			Usage: "Print the best fit zoom for a viewport",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     VIEWPORT,
					Usage:    "Viewport size in screen pixels, e.g. 1280x800",
					Required: true,
					EnvVars:  envVars(VIEWPORT),
				},
				toleranceFlag(),
			},
			Action: fitAction,
		},
		{
			Name:  "tilematrixset",
			Usage: "Write the pyramid as an OGC TileMatrixSet (2.0) JSON document",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    TILEMATRIXSET,
					Usage:   "Identifier of the tile matrix set",
					Value:   "facsimile",
					EnvVars: envVars(TILEMATRIXSET),
				},
				&cli.StringFlag{
					Name:    CHECK,
					Usage:   "Check an existing tile matrix set against the image instead",
					EnvVars: envVars(CHECK),
				},
			},
			Action: tileMatrixSetAction,
		},
		{
			Name:  "scale",
			Usage: "Print the physical length of a distance in full resolution pixels",
			Flags: []cli.Flag{
				&cli.Float64Flag{
					Name:     DISTANCE,
					Usage:    "Distance in full resolution pixels",
					Required: true,
					EnvVars:  envVars(DISTANCE),
				},
			},
			Action: scaleAction,
		},
		{
			Name:  "overlay",
			Usage: "Print the projected bounds of overlay regions as WKT",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     REGIONS,
					Aliases:  []string{"r"},
					Usage:    "Overlay layers (JSON or YAML)",
					Required: true,
					EnvVars:  envVars(REGIONS),
				},
				&cli.IntFlag{
					Name:    ZOOM,
					Aliases: []string{"z"},
					Usage:   "Zoom of the map host, the maximum zoom when omitted",
					Value:   -1,
					EnvVars: envVars(ZOOM),
				},
				&cli.Float64Flag{
					Name:    SCALEFACTOR,
					Usage:   "Multiply the region coordinates, when they were measured on a differently sized image",
					Value:   1,
					EnvVars: envVars(SCALEFACTOR),
				},
				&cli.UintFlag{
					Name:    WKTLENGTH,
					Usage:   "Truncate WKT output to this many characters, 0 for no limit",
					EnvVars: envVars(WKTLENGTH),
				},
			},
			Action: overlayAction,
		},
		{
			Name:  "serve",
			Usage: "Serve the computations over HTTP",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    ADDRESS,
					Aliases: []string{"a"},
					Value:   ":8080",
					EnvVars: envVars(ADDRESS),
				},
				&cli.DurationFlag{
					Name:    CACHETTL,
					Usage:   "How long a computed pyramid is cached",
					Value:   10 * time.Minute,
					EnvVars: envVars(CACHETTL),
				},
				&cli.Uint64Flag{
					Name:    CACHECAPACITY,
					Usage:   "Maximum number of cached pyramids",
					Value:   1000,
					EnvVars: envVars(CACHECAPACITY),
				},
				&cli.DurationFlag{
					Name:    TIMEOUT,
					Value:   30 * time.Second,
					EnvVars: envVars(TIMEOUT),
				},
			},
			Action: serveAction,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func toleranceFlag() cli.Flag {
	return &cli.Float64Flag{
		Name:    TOLERANCE,
		Usage:   "Part of the viewport the image may fill",
		EnvVars: envVars(TOLERANCE),
	}
}

// imageDescriptor reads the descriptor file if given, explicit flags take precedence
func imageDescriptor(c *cli.Context) (descriptor.ImageDescriptor, error) {
	var d descriptor.ImageDescriptor
	var err error
	if path := c.String(DESCRIPTOR); path != "" {
		if d, err = descriptor.Load(path); err != nil {
			return d, err
		}
	} else if d, err = descriptor.New(c.Int(WIDTH), c.Int(HEIGHT)); err != nil {
		return d, fmt.Errorf("provide a --%s or a valid --%s and --%s: %w", DESCRIPTOR, WIDTH, HEIGHT, err)
	}
	if c.IsSet(WIDTH) {
		d.Width = c.Int(WIDTH)
	}
	if c.IsSet(HEIGHT) {
		d.Height = c.Int(HEIGHT)
	}
	if c.IsSet(TILESIZE) {
		d.TileSize = c.Int(TILESIZE)
	}
	if c.IsSet(DPI) {
		d.DPI = c.Float64(DPI)
	}
	if c.IsSet(RETINA) {
		d.Retina = c.Bool(RETINA)
	}
	if c.IsSet(BASEURL) {
		d.BaseURL = c.String(BASEURL)
	}
	if c.IsSet(TOLERANCE) {
		d.Tolerance = c.Float64(TOLERANCE)
	}
	return d, d.Validate()
}

func imagePyramid(c *cli.Context) (descriptor.ImageDescriptor, *pyramid.Pyramid, error) {
	d, err := imageDescriptor(c)
	if err != nil {
		return d, nil, err
	}
	p, err := d.Pyramid()
	return d, p, err
}

func parseViewport(s string) (width, height float64, err error) {
	if _, err = fmt.Sscanf(s, "%fx%f", &width, &height); err != nil {
		return 0, 0, fmt.Errorf("viewport %q is not WIDTHxHEIGHT: %w", s, err)
	}
	return width, height, nil
}

func pyramidAction(c *cli.Context) error {
	_, p, err := imagePyramid(c)
	if err != nil {
		return err
	}
	fmt.Printf("tile size %d, zoom offset %d, zoom %d-%d\n", p.TileSize(), p.ZoomOffset(), p.MinZoom(), p.MaxZoom())
	for _, l := range p.Levels() {
		fmt.Printf("%d\t%dx%d\t%dx%d tiles\n", l.Index, l.ImageSize.W, l.ImageSize.H, l.GridSize.W, l.GridSize.H)
	}
	return nil
}

func tilesAction(c *cli.Context) error {
	d, p, err := imagePyramid(c)
	if err != nil {
		return err
	}
	ranges := processing.FullRanges(p)
	if vp := c.String(VIEWPORT); vp != "" {
		vw, vh, err := parseViewport(vp)
		if err != nil {
			return err
		}
		zoom, err := viewport.BestFitZoom(p, vw, vh, d.Tolerance)
		if err != nil {
			return err
		}
		// the viewport centered on the image, in full resolution pixels
		downscale := p.Downscale(zoom)
		finest := p.Finest()
		cx, cy := float64(finest.ImageSize.W)/2, float64(finest.ImageSize.H)/2
		hw, hh := vw*downscale/2, vh*downscale/2
		r, err := tilegroup.Visible(p, zoom, geom.Extent{cx - hw, cy - hh, cx + hw, cy + hh})
		if err != nil {
			return err
		}
		log.Printf("zoom %d, %d visible tiles", zoom, r.Count())
		ranges = []tilegroup.Range{r}
	}
	return processing.Manifest(p, d.BaseURL, ranges, processing.WriterTarget{W: os.Stdout})
}

func fitAction(c *cli.Context) error {
	d, p, err := imagePyramid(c)
	if err != nil {
		return err
	}
	vw, vh, err := parseViewport(c.String(VIEWPORT))
	if err != nil {
		return err
	}
	zoom, err := viewport.BestFitZoom(p, vw, vh, d.Tolerance)
	if err != nil {
		return err
	}
	fmt.Println(zoom)
	return nil
}

func tileMatrixSetAction(c *cli.Context) error {
	d, p, err := imagePyramid(c)
	if err != nil {
		return err
	}
	if check := c.String(CHECK); check != "" {
		tms, err := tms20.LoadJSONTileMatrixSet(check)
		if err != nil {
			return err
		}
		other, err := tms.ToPyramid()
		if err != nil {
			return err
		}
		if !other.Equal(p) {
			return fmt.Errorf("%w: %s", tms20.ErrMismatch, check)
		}
		log.Printf("tile matrix set %s matches the image", check)
		return nil
	}
	tms, err := tms20.FromPyramid(p, c.String(TILEMATRIXSET), d.DPI)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(&tms)
}

func scaleAction(c *cli.Context) error {
	d, err := imageDescriptor(c)
	if err != nil {
		return err
	}
	s, ok := scale.Label(c.Float64(DISTANCE), d.DPI, d.MaxDimension())
	if !ok {
		return fmt.Errorf("no scale without a --%s", DPI)
	}
	fmt.Printf("%s\t%s\t%.4f\n", s.Metric, s.Imperial, s.Fraction)
	return nil
}

func overlayAction(c *cli.Context) error {
	_, p, err := imagePyramid(c)
	if err != nil {
		return err
	}
	layers, err := overlay.LoadLayers(c.String(REGIONS))
	if err != nil {
		return err
	}
	if layers, err = overlay.ScaleLayers(layers, c.Float64(SCALEFACTOR)); err != nil {
		return err
	}
	mgr, err := overlay.NewManager(layers...)
	if err != nil {
		return err
	}
	for _, l := range layers {
		if l.Exclusive {
			continue
		}
		if err = mgr.Enable(l.Name); err != nil {
			return err
		}
	}
	// the first exclusive layer is the initial selection
	for _, l := range layers {
		if l.Exclusive {
			if err = mgr.Enable(l.Name); err != nil {
				return err
			}
			break
		}
	}

	zoom := c.Int(ZOOM)
	if zoom < 0 {
		zoom = int(p.MaxZoom())
	}
	finest := p.Finest()
	m := mapper.New(p, simplecrs.New(zoom, float64(finest.ImageSize.W), float64(finest.ImageSize.H)))
	placements, err := mgr.Placements(m, zoom)
	if err != nil {
		return err
	}
	maxLen := c.Uint(WKTLENGTH)
	for pair := placements.Oldest(); pair != nil; pair = pair.Next() {
		for _, pl := range pair.Value {
			fmt.Printf("%s\t%s\t%s\n", pair.Key, pl.Label, geomhelp.WktMustEncode(pl.Polygon(), maxLen))
		}
	}
	return nil
}

func serveAction(c *cli.Context) error {
	// the image is given per request, only the tile set location is configured
	baseURL := c.String(BASEURL)
	if path := c.String(DESCRIPTOR); path != "" && !c.IsSet(BASEURL) {
		d, err := descriptor.Load(path)
		if err != nil {
			return err
		}
		baseURL = d.BaseURL
	}
	s := server.NewServer(server.Options{
		Version:       versioninfo.Short(),
		BaseURL:       baseURL,
		CacheTTL:      c.Duration(CACHETTL),
		CacheCapacity: c.Uint64(CACHECAPACITY),
		Timeout:       c.Duration(TIMEOUT),
	})
	defer s.Stop()

	srv := &http.Server{
		Addr:              c.String(ADDRESS),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("server error: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
