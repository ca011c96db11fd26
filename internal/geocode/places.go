// Package geocode canonicalizes free-text event locations into places.
package geocode

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/Somerville-Events/somerville.events-sub000/config"
	"github.com/Somerville-Events/somerville.events-sub000/internal/breaker"
)

// Place is a canonical location.
type Place struct {
	PlaceID          string `json:"place_id"`
	Name             string `json:"name"`
	FormattedAddress string `json:"formatted_address"`
}

// Geocoder resolves free text. A nil Place with a nil error means no match.
type Geocoder interface {
	Geocode(ctx context.Context, text string) (*Place, error)
}

const fieldMask = "places.id,places.displayName,places.formattedAddress"

type searchRequest struct {
	TextQuery    string `json:"textQuery"`
	LocationBias struct {
		Circle struct {
			Center struct {
				Latitude  float64 `json:"latitude"`
				Longitude float64 `json:"longitude"`
			} `json:"center"`
			Radius int64 `json:"radius"`
		} `json:"circle"`
	} `json:"locationBias"`
}

type searchResponse struct {
	Places []struct {
		ID          string `json:"id"`
		DisplayName struct {
			Text string `json:"text"`
		} `json:"displayName"`
		FormattedAddress string `json:"formattedAddress"`
	} `json:"places"`
}

// PlacesClient calls the Places "searchText" endpoint biased toward a
// fixed circle.
type PlacesClient struct {
	client   *http.Client
	endpoint string
	apiKey   string
	lat, lon float64
	radius   int64
	cb       *gobreaker.CircuitBreaker[*Place]
}

func NewPlacesClient(cfg config.GeocodingConfig) *PlacesClient {
	return &PlacesClient{
		client:   &http.Client{Timeout: cfg.Timeout},
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		lat:      cfg.CenterLat,
		lon:      cfg.CenterLon,
		radius:   cfg.RadiusMeters,
		cb:       breaker.New[*Place]("geocoding"),
	}
}

func (c *PlacesClient) Geocode(ctx context.Context, text string) (*Place, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	place, err := c.cb.Execute(func() (*Place, error) { return c.search(ctx, text) })
	if err != nil {
		return nil, fmt.Errorf("geocode %q: %w", text, err)
	}
	return place, nil
}

func (c *PlacesClient) search(ctx context.Context, text string) (*Place, error) {
	var body searchRequest
	body.TextQuery = text
	body.LocationBias.Circle.Center.Latitude = c.lat
	body.LocationBias.Circle.Center.Longitude = c.lon
	body.LocationBias.Circle.Radius = c.radius
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", fieldMask)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out searchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Places) == 0 {
		return nil, nil
	}
	p := out.Places[0]
	return &Place{PlaceID: p.ID, Name: p.DisplayName.Text, FormattedAddress: p.FormattedAddress}, nil
}
