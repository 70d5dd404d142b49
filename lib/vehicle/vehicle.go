package vehicle

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"time"
)

// Marketplace display names, also used as SourceRun keys.
const (
	SourceCraigslist = "Craigslist"
	SourceCarGurus   = "CarGurus"
	SourceCarsCom    = "Cars.com"
	SourceAutoTrader = "AutoTrader"
)

// Listing is one normalized vehicle-for-sale record. Anything surfaced to
// a caller has a positive price, a non-empty title and an absolute URL;
// adapters drop entries that cannot satisfy that before a Listing exists.
type Listing struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Price    int    `json:"price"`
	Mileage  *int   `json:"mileage"`
	Year     *int   `json:"year"`
	URL      string `json:"url"`
	Source   string `json:"source"`
	Location string `json:"location"`
	ImageURL string `json:"image_url,omitempty"`
	// full photo set, only present when a detail page was resolved
	Images    []string  `json:"images,omitempty"`
	ScrapedAt time.Time `json:"scraped_at"`
}

// ID derives a stable listing id from the source prefix and canonical
// URL, so rescraping an unchanged listing reproduces the same id.
func ID(prefix, url string) string {
	sum := md5.Sum([]byte(url))
	return prefix + "_" + hex.EncodeToString(sum[:])[:10]
}

// Query is an already-validated, immutable search request. Zero year
// bounds mean unbounded.
type Query struct {
	Make       string `json:"make"`
	Model      string `json:"model"`
	MaxPrice   int    `json:"max_price"`
	MaxMileage int    `json:"max_mileage"`
	MinYear    int    `json:"min_year,omitempty"`
	MaxYear    int    `json:"max_year,omitempty"`
	Location   string `json:"location"`
	ZipCode    string `json:"zip_code"`
}

// SourceRun is the per-adapter outcome: how many listings a marketplace
// produced, or why it produced none. One exists per configured source on
// every aggregation, success or failure.
type SourceRun struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
	Error string `json:"error,omitempty"`
}

// Source is one marketplace adapter. Fetch never returns partial garbage:
// an error means this source contributed nothing this round, and the
// aggregator records it without failing the other sources.
type Source interface {
	Name() string
	Fetch(ctx context.Context, query Query) ([]Listing, error)
}

// Stats summarizes the price distribution of a result set.
type Stats struct {
	TotalCount int     `json:"total_count"`
	AvgPrice   float64 `json:"avg_price"`
	MinPrice   int     `json:"min_price"`
	MaxPrice   int     `json:"max_price"`
}

func ComputeStats(listings []Listing) Stats {
	stats := Stats{TotalCount: len(listings)}
	if len(listings) == 0 {
		return stats
	}

	total := 0
	stats.MinPrice = listings[0].Price
	stats.MaxPrice = listings[0].Price
	for _, l := range listings {
		total += l.Price
		if l.Price < stats.MinPrice {
			stats.MinPrice = l.Price
		}
		if l.Price > stats.MaxPrice {
			stats.MaxPrice = l.Price
		}
	}
	stats.AvgPrice = float64(int(float64(total)/float64(len(listings))*100+0.5)) / 100
	return stats
}

// IntPtr adapts an (value, ok) extraction into the optional fields above.
func IntPtr(n int, ok bool) *int {
	if !ok {
		return nil
	}
	return &n
}
