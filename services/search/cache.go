package search

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/natelasko528/milwaukee-vehicle-finder/lib/vehicle"
)

const (
	defaultCacheTTL  = 5 * time.Minute
	defaultCacheSize = 256
)

// CachedResult is one complete aggregation outcome, replayed verbatim for
// identical queries until the TTL lapses.
type CachedResult struct {
	Listings   []vehicle.Listing
	Sources    []vehicle.SourceRun
	ComputedAt time.Time
}

// Fingerprint derives the cache key from a normalized query. The query is
// serialized through a map so keys come out sorted, making the key
// independent of how the caller ordered its request fields.
func Fingerprint(query vehicle.Query) string {
	canonical, err := json.Marshal(map[string]any{
		"make":        query.Make,
		"model":       query.Model,
		"max_price":   query.MaxPrice,
		"max_mileage": query.MaxMileage,
		"min_year":    query.MinYear,
		"max_year":    query.MaxYear,
		"location":    query.Location,
		"zip_code":    query.ZipCode,
	})
	if err != nil {
		// map[string]any over ints and strings cannot fail to marshal
		panic(err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}

// ResultCache holds recent aggregation results keyed by query fingerprint.
type ResultCache struct {
	lru *expirable.LRU[string, CachedResult]
}

func NewResultCache(size int, ttl time.Duration) *ResultCache {
	if size <= 0 {
		size = defaultCacheSize
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &ResultCache{lru: expirable.NewLRU[string, CachedResult](size, nil, ttl)}
}

func (c *ResultCache) Get(query vehicle.Query) (CachedResult, bool) {
	return c.lru.Get(Fingerprint(query))
}

func (c *ResultCache) Set(query vehicle.Query, listings []vehicle.Listing, sources []vehicle.SourceRun) {
	c.lru.Add(Fingerprint(query), CachedResult{
		Listings:   listings,
		Sources:    sources,
		ComputedAt: time.Now(),
	})
}
