// Package server exposes the pyramid computations over HTTP, for map hosts that cannot run them themselves.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-spatial/geom/slippy"
	"github.com/jellydator/ttlcache/v3"

	"github.com/pdok/facsimile/pyramid"
	"github.com/pdok/facsimile/scale"
	"github.com/pdok/facsimile/tilegroup"
	"github.com/pdok/facsimile/viewport"
)

const defaultTileSize = 256

type Options struct {
	Version  string
	BaseURL  string
	CacheTTL time.Duration
	// Maximum number of cached pyramids
	CacheCapacity uint64
	Timeout       time.Duration
}

type Server struct {
	startTime time.Time
	opts      Options
	pyramids  *ttlcache.Cache[string, *pyramid.Pyramid]
}

type healthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Uptime   int    `json:"uptime"`
	Pyramids int    `json:"pyramids"`
}

type pyramidResponse struct {
	TileSize   uint            `json:"tileSize"`
	ZoomOffset uint            `json:"zoomOffset"`
	MinZoom    uint            `json:"minZoom"`
	MaxZoom    uint            `json:"maxZoom"`
	Levels     []pyramid.Level `json:"levels"`
}

type fitResponse struct {
	Zoom uint `json:"zoom"`
}

type errorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

func NewServer(opts Options) *Server {
	cache := ttlcache.New[string, *pyramid.Pyramid](
		ttlcache.WithTTL[string, *pyramid.Pyramid](opts.CacheTTL),
		ttlcache.WithCapacity[string, *pyramid.Pyramid](opts.CacheCapacity),
	)
	go cache.Start()
	return &Server{
		startTime: time.Now(),
		opts:      opts,
		pyramids:  cache,
	}
}

// Stop ends the expiry of cached pyramids
func (s *Server) Stop() {
	s.pyramids.Stop()
}

// Router returns the chi router with all endpoints and middleware
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if s.opts.Timeout > 0 {
		r.Use(middleware.Timeout(s.opts.Timeout))
	}

	// CORS, map hosts run in browsers on other origins
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", s.getHealth)
	r.Get("/pyramid", s.getPyramid)
	r.Get("/fit", s.getFit)
	r.Get("/scale", s.getScale)
	r.Get("/tiles/{z}/{x}/{y}", s.getTile)
	return r
}

func (s *Server) getHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:   "healthy",
		Version:  s.opts.Version,
		Uptime:   int(time.Since(s.startTime).Seconds()),
		Pyramids: s.pyramids.Len(),
	})
}

func (s *Server) getPyramid(w http.ResponseWriter, r *http.Request) {
	p, err := s.pyramid(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, pyramidResponse{
		TileSize:   p.TileSize(),
		ZoomOffset: p.ZoomOffset(),
		MinZoom:    p.MinZoom(),
		MaxZoom:    p.MaxZoom(),
		Levels:     p.Levels(),
	})
}

func (s *Server) getFit(w http.ResponseWriter, r *http.Request) {
	p, err := s.pyramid(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	q := query{r: r}
	vw := q.float("vw", 0)
	vh := q.float("vh", 0)
	tolerance := q.float("tolerance", viewport.DefaultTolerance)
	if q.err != nil {
		s.writeError(w, r, q.err)
		return
	}
	zoom, err := viewport.BestFitZoom(p, vw, vh, tolerance)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, fitResponse{Zoom: zoom})
}

func (s *Server) getScale(w http.ResponseWriter, r *http.Request) {
	q := query{r: r}
	distance := q.float("distance", 0)
	dpi := q.float("dpi", 0)
	maxDimension := q.float("max", 0)
	if q.err != nil {
		s.writeError(w, r, q.err)
		return
	}
	sc, ok := scale.Label(distance, dpi, maxDimension)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.writeJSON(w, http.StatusOK, sc)
}

// getTile redirects to the tile in its tile group
func (s *Server) getTile(w http.ResponseWriter, r *http.Request) {
	p, err := s.pyramid(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var tile slippy.Tile
	for key, dst := range map[string]*uint{"z": &tile.Z, "x": &tile.X, "y": &tile.Y} {
		v, err := strconv.ParseUint(chi.URLParam(r, key), 10, 32)
		if err != nil {
			s.writeError(w, r, fmt.Errorf("%w %s: %v", errInvalidParameter, key, err))
			return
		}
		*dst = uint(v)
	}
	url, err := tilegroup.URL(s.opts.BaseURL, p, &tile)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

// pyramid builds the pyramid for the image in the query, or takes it from the cache
func (s *Server) pyramid(r *http.Request) (*pyramid.Pyramid, error) {
	q := query{r: r}
	width := q.int("width", 0)
	height := q.int("height", 0)
	tileSize := q.int("tilesize", defaultTileSize)
	retina := q.bool("retina", false)
	adjustMaxZoom := q.bool("adjustmaxzoom", true)
	if q.err != nil {
		return nil, q.err
	}
	key := fmt.Sprintf("%d/%d/%d/%t/%t", width, height, tileSize, retina, adjustMaxZoom)
	if item := s.pyramids.Get(key); item != nil {
		return item.Value(), nil
	}
	p, err := pyramid.Build(width, height, tileSize, pyramid.Retina{Active: retina, AdjustMaxZoom: adjustMaxZoom})
	if err != nil {
		return nil, err
	}
	s.pyramids.Set(key, p, ttlcache.DefaultTTL)
	return p, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("error encoding response: %v", err)
	}
}

var errInvalidParameter = errors.New("invalid parameter")

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	code := "INTERNAL_ERROR"
	switch {
	case errors.Is(err, pyramid.ErrCoordinateOutOfRange), errors.Is(err, pyramid.ErrZoomOutOfRange):
		status, code = http.StatusNotFound, "OUT_OF_RANGE"
	case errors.Is(err, pyramid.ErrInvalidDimension), errors.Is(err, pyramid.ErrInvalidTileSize),
		errors.Is(err, viewport.ErrInvalidTolerance), errors.Is(err, errInvalidParameter):
		status, code = http.StatusBadRequest, "INVALID_REQUEST"
	}
	s.writeJSON(w, status, errorResponse{
		Error:     code,
		Message:   err.Error(),
		RequestID: middleware.GetReqID(r.Context()),
	})
}

// query parses query parameters, keeping the first error
type query struct {
	r   *http.Request
	err error
}

func (q *query) value(key string) (string, bool) {
	v := q.r.URL.Query().Get(key)
	return v, v != "" && q.err == nil
}

func (q *query) int(key string, fallback int) int {
	v, ok := q.value(key)
	if !ok {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		q.err = fmt.Errorf("%w %s: %v", errInvalidParameter, key, err)
		return fallback
	}
	return i
}

func (q *query) float(key string, fallback float64) float64 {
	v, ok := q.value(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		q.err = fmt.Errorf("%w %s: %v", errInvalidParameter, key, err)
		return fallback
	}
	return f
}

func (q *query) bool(key string, fallback bool) bool {
	v, ok := q.value(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		q.err = fmt.Errorf("%w %s: %v", errInvalidParameter, key, err)
		return fallback
	}
	return b
}
