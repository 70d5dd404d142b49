package commands

import (
	"errors"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/joho/godotenv"

	"github.com/natelasko528/milwaukee-vehicle-finder/lib/configutil"
	"github.com/natelasko528/milwaukee-vehicle-finder/lib/restyutil"
	"github.com/natelasko528/milwaukee-vehicle-finder/lib/scrapers/autotrader"
	"github.com/natelasko528/milwaukee-vehicle-finder/lib/scrapers/cargurus"
	"github.com/natelasko528/milwaukee-vehicle-finder/lib/scrapers/carscom"
	"github.com/natelasko528/milwaukee-vehicle-finder/lib/scrapers/craigslist"
	"github.com/natelasko528/milwaukee-vehicle-finder/lib/serviceutil"
	"github.com/natelasko528/milwaukee-vehicle-finder/lib/telemetry"
	"github.com/natelasko528/milwaukee-vehicle-finder/lib/vehicle"
)

type ScrapersConfig struct {
	TimeoutSeconds int `json:"timeout_seconds"`
	// FetchImages controls whether craigslist detail pages are visited
	// for full image sets during a search.
	FetchImages *bool `json:"fetch_images"`
}

type SearchConfig struct {
	CacheTTLSeconds int  `json:"cache_ttl_seconds"`
	RateLimit       int  `json:"rate_limit"`
	Dedupe          bool `json:"dedupe"`
}

type InsightsConfig struct {
	// GeminiApiKey may also come from the GEMINI_API_KEY environment
	// variable, which wins over the file.
	GeminiApiKey string `json:"gemini_api_key"`
}

type Config struct {
	Port     int            `json:"port"`
	Scrapers ScrapersConfig `json:"scrapers"`
	Search   SearchConfig   `json:"search"`
	Insights InsightsConfig `json:"insights"`
}

// readConfig loads config.json5, tolerating its absence since every
// field has a workable default.
func readConfig() Config {
	godotenv.Load()

	cfg, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		serviceutil.Fatal("read config", err)
	}
	if cfg.Port == 0 {
		cfg.Port = 8000
	}
	if cfg.Scrapers.TimeoutSeconds == 0 {
		cfg.Scrapers.TimeoutSeconds = 12
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		cfg.Insights.GeminiApiKey = key
	}
	return cfg
}

func newScrapingClient(cfg ScrapersConfig) *resty.Client {
	var output restyutil.InstrumentOutput
	if verbose {
		output = restyutil.NewFilesystemOutput(".vehiclefinder/resty_telemetry/scrapers")
	}
	return restyutil.NewScrapingClient(
		time.Duration(cfg.TimeoutSeconds)*time.Second,
		telemetry.Tracer("lib/scrapers"),
		output,
	)
}

func newSources(client *resty.Client, cfg ScrapersConfig) []vehicle.Source {
	cl := craigslist.New(client)
	if cfg.FetchImages != nil {
		cl.FetchImages = *cfg.FetchImages
	}
	return []vehicle.Source{
		cl,
		cargurus.New(client),
		carscom.New(client),
		autotrader.New(client),
	}
}
