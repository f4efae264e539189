package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdok/facsimile/scale"
)

const page = "width=4096&height=3072"

func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	s := NewServer(Options{
		Version:       "test",
		BaseURL:       "https://tiles.example.com/page/",
		CacheTTL:      time.Minute,
		CacheCapacity: 8,
	})
	t.Cleanup(s.Stop)
	return s, s.Router()
}

func get(t *testing.T, h http.Handler, url string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	_, h := newTestServer(t)
	rec := get(t, h, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var body healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "test", body.Version)
	assert.Equal(t, 0, body.Pyramids)
}

func TestPyramid(t *testing.T) {
	s, h := newTestServer(t)
	rec := get(t, h, "/pyramid?"+page)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body pyramidResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, uint(256), body.TileSize)
	assert.Equal(t, uint(0), body.ZoomOffset)
	assert.Equal(t, uint(0), body.MinZoom)
	assert.Equal(t, uint(4), body.MaxZoom)
	require.Len(t, body.Levels, 5)
	assert.Equal(t, uint(16), body.Levels[4].GridSize.W)
	assert.Equal(t, uint(12), body.Levels[4].GridSize.H)

	// the second request is served from the cache
	rec = get(t, h, "/pyramid?"+page)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, s.pyramids.Len())
}

func TestPyramidRetina(t *testing.T) {
	_, h := newTestServer(t)
	rec := get(t, h, "/pyramid?"+page+"&retina=true")
	require.Equal(t, http.StatusOK, rec.Code)

	var body pyramidResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, uint(128), body.TileSize)
	assert.Equal(t, uint(1), body.ZoomOffset)
}

func TestPyramidBadRequest(t *testing.T) {
	_, h := newTestServer(t)
	tests := []string{
		"/pyramid",
		"/pyramid?width=0&height=100",
		"/pyramid?width=abc&height=100",
		"/pyramid?" + page + "&tilesize=-1",
		"/pyramid?" + page + "&retina=maybe",
	}
	for _, url := range tests {
		t.Run(url, func(t *testing.T) {
			rec := get(t, h, url)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var body errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, "INVALID_REQUEST", body.Error)
			assert.NotEmpty(t, body.RequestID)
		})
	}
}

func TestFit(t *testing.T) {
	_, h := newTestServer(t)
	tests := []struct {
		query string
		want  uint
	}{
		{query: "&vw=1000&vh=800", want: 2},
		{query: "&vw=5000&vh=4000", want: 4},
		{query: "&vw=10&vh=10", want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := get(t, h, "/fit?"+page+tt.query)
			require.Equal(t, http.StatusOK, rec.Code)
			var body fitResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.want, body.Zoom)
		})
	}

	rec := get(t, h, "/fit?"+page+"&vw=1000&vh=800&tolerance=0")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScale(t *testing.T) {
	_, h := newTestServer(t)
	rec := get(t, h, "/scale?distance=200&dpi=100&max=4096")
	require.Equal(t, http.StatusOK, rec.Code)

	var body scale.Scale
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "5.08 cm", body.Metric)
	assert.Equal(t, "2.0 in", body.Imperial)
	assert.InDelta(t, 200.0/4096, body.Fraction, 1e-9)

	rec = get(t, h, "/scale?distance=200")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestTileRedirect(t *testing.T) {
	_, h := newTestServer(t)
	tests := []struct {
		url      string
		status   int
		location string
	}{
		{url: "/tiles/0/0/0?" + page, status: http.StatusFound, location: "https://tiles.example.com/page/TileGroup0/0-0-0.jpg"},
		{url: "/tiles/4/15/11?" + page, status: http.StatusFound, location: "https://tiles.example.com/page/TileGroup1/4-15-11.jpg"},
		{url: "/tiles/4/16/0?" + page, status: http.StatusNotFound},
		{url: "/tiles/5/0/0?" + page, status: http.StatusNotFound},
		{url: "/tiles/a/0/0?" + page, status: http.StatusBadRequest},
		{url: "/tiles/0/0/0", status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			rec := get(t, h, tt.url)
			assert.Equal(t, tt.status, rec.Code)
			if tt.location != "" {
				assert.Equal(t, tt.location, rec.Header().Get("Location"))
			}
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	_, h := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/pyramid", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
