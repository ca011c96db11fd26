package geocode

import (
	"context"
	"errors"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Somerville-Events/somerville.events-sub000/internal/metrics"
	"github.com/Somerville-Events/somerville.events-sub000/pkg/logger"
)

const cachePrefix = "geocode:v1:"

// cachedEntry stores misses too so unknown places are not re-queried.
type cachedEntry struct {
	Found bool   `json:"found"`
	Place *Place `json:"place,omitempty"`
}

type cachedGeocoder struct {
	next  Geocoder
	cache *redis.Client
	ttl   time.Duration
}

// WithCache puts a redis read-through cache in front of next. A nil client
// returns next unchanged. Redis failures fall through to next.
func WithCache(next Geocoder, cache *redis.Client, ttl time.Duration) Geocoder {
	if cache == nil {
		return next
	}
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &cachedGeocoder{next: next, cache: cache, ttl: ttl}
}

func (g *cachedGeocoder) Geocode(ctx context.Context, text string) (*Place, error) {
	key := cacheKey(text)
	if key == cachePrefix {
		return nil, nil
	}

	data, err := g.cache.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var entry cachedEntry
		if uErr := json.Unmarshal(data, &entry); uErr == nil {
			metrics.RecordGeocodeCache(true)
			if !entry.Found {
				return nil, nil
			}
			return entry.Place, nil
		}
	case !errors.Is(err, redis.Nil):
		logger.Warn("geocode cache read failed", zap.String("key", key), zap.Error(err))
	}
	metrics.RecordGeocodeCache(false)

	place, err := g.next.Geocode(ctx, text)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(cachedEntry{Found: place != nil, Place: place})
	if err == nil {
		if err := g.cache.Set(ctx, key, payload, g.ttl).Err(); err != nil {
			logger.Warn("geocode cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return place, nil
}

// cacheKey folds case and whitespace so trivially different spellings share
// one entry.
func cacheKey(text string) string {
	return cachePrefix + strings.Join(strings.Fields(strings.ToLower(text)), " ")
}
