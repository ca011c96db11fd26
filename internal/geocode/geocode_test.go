package geocode

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Somerville-Events/somerville.events-sub000/config"
)

type fakePlaces struct {
	calls   atomic.Int32
	mu      sync.Mutex
	lastReq searchRequest
	headers http.Header
	status  int
}

func (f *fakePlaces) setStatus(code int) {
	f.mu.Lock()
	f.status = code
	f.mu.Unlock()
}

func (f *fakePlaces) last() (searchRequest, http.Header) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastReq, f.headers
}

func (f *fakePlaces) server(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		defer f.mu.Unlock()
		_ = json.Unmarshal(body, &f.lastReq)
		f.headers = r.Header.Clone()
		if f.status != 0 {
			w.WriteHeader(f.status)
			return
		}
		if f.lastReq.TextQuery == "ThisPlaceDefinitelyDoesNotExist12345" {
			_, _ = w.Write([]byte(`{}`))
			return
		}
		_, _ = w.Write([]byte(`{"places":[{"id":"ChIJV1wE6Bh344kRUrVbHX8CkaM","displayName":{"text":"Davis Square","languageCode":"en"},` +
			`"formattedAddress":"Davis Square, Somerville, MA, USA"},{"id":"other","displayName":{"text":"Other"},"formattedAddress":"x"}]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newClient(srv *httptest.Server) *PlacesClient {
	return NewPlacesClient(config.GeocodingConfig{
		Endpoint: srv.URL + "/v1/places:searchText", APIKey: "maps-key",
		CenterLat: 42.383971, CenterLon: -71.108600, RadiusMeters: 16100, Timeout: 2 * time.Second,
	})
}

func TestPlacesClientRequestShape(t *testing.T) {
	f := &fakePlaces{}
	c := newClient(f.server(t))

	p, err := c.Geocode(context.Background(), " Davis Square ")
	require.NoError(t, err)
	assert.Equal(t, &Place{PlaceID: "ChIJV1wE6Bh344kRUrVbHX8CkaM", Name: "Davis Square", FormattedAddress: "Davis Square, Somerville, MA, USA"}, p)

	req, headers := f.last()
	assert.Equal(t, "Davis Square", req.TextQuery)
	assert.Equal(t, 42.383971, req.LocationBias.Circle.Center.Latitude)
	assert.Equal(t, -71.108600, req.LocationBias.Circle.Center.Longitude)
	assert.Equal(t, int64(16100), req.LocationBias.Circle.Radius)
	assert.Equal(t, "maps-key", headers.Get("X-Goog-Api-Key"))
	assert.Equal(t, "places.id,places.displayName,places.formattedAddress", headers.Get("X-Goog-FieldMask"))
}

func TestPlacesClientNoMatchAndErrors(t *testing.T) {
	f := &fakePlaces{}
	c := newClient(f.server(t))

	p, err := c.Geocode(context.Background(), "ThisPlaceDefinitelyDoesNotExist12345")
	require.NoError(t, err)
	assert.Nil(t, p)

	p, err = c.Geocode(context.Background(), "   ")
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.Equal(t, int32(1), f.calls.Load(), "blank text is never sent")

	f.setStatus(http.StatusForbidden)
	_, err = c.Geocode(context.Background(), "Davis Square")
	assert.ErrorContains(t, err, "status 403")
}

func TestCachedGeocoder(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	f := &fakePlaces{}
	g := WithCache(newClient(f.server(t)), rdb, time.Hour)
	ctx := context.Background()

	for _, q := range []string{"Davis Square", "davis   SQUARE", " Davis Square"} {
		p, err := g.Geocode(ctx, q)
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, "Davis Square", p.Name)
	}
	assert.Equal(t, int32(1), f.calls.Load())
	assert.True(t, mr.Exists("geocode:v1:davis square"))
	assert.InDelta(t, time.Hour.Seconds(), mr.TTL("geocode:v1:davis square").Seconds(), 1)

	// misses are cached as well
	for i := 0; i < 2; i++ {
		p, err := g.Geocode(ctx, "ThisPlaceDefinitelyDoesNotExist12345")
		require.NoError(t, err)
		assert.Nil(t, p)
	}
	assert.Equal(t, int32(2), f.calls.Load())

	// upstream errors are not cached
	f.setStatus(http.StatusInternalServerError)
	_, err := g.Geocode(ctx, "Union Square")
	require.Error(t, err)
	assert.False(t, mr.Exists("geocode:v1:union square"))
}

func TestCachedGeocoderRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	f := &fakePlaces{}
	g := WithCache(newClient(f.server(t)), rdb, time.Hour)
	mr.Close()

	p, err := g.Geocode(context.Background(), "Davis Square")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestWithCacheNilClient(t *testing.T) {
	f := &fakePlaces{}
	c := newClient(f.server(t))
	assert.Same(t, Geocoder(c), WithCache(c, nil, 0))
}
