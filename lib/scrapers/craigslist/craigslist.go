package craigslist

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/natelasko528/milwaukee-vehicle-finder/lib/htmlutil"
	"github.com/natelasko528/milwaukee-vehicle-finder/lib/scrapers/scrapeutil"
	"github.com/natelasko528/milwaukee-vehicle-finder/lib/telemetry"
	"github.com/natelasko528/milwaukee-vehicle-finder/lib/textutil"
	"github.com/natelasko528/milwaukee-vehicle-finder/lib/vehicle"
	"github.com/natelasko528/milwaukee-vehicle-finder/lib/workerpool"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/codes"
)

var tracer = telemetry.Tracer("scrapers/craigslist")

const (
	maxResults = 20
	// secondary detail-page fetches for images
	maxDetailFetches  = 5
	maxImagesPerEntry = 5
)

type Scraper struct {
	client *resty.Client
	// BaseURL overrides the per-location craigslist origin; tests point
	// it at a local server
	BaseURL string
	// FetchImages controls whether each hit's detail page is resolved
	// for photos; search results pages don't embed them
	FetchImages bool
}

func New(client *resty.Client) *Scraper {
	return &Scraper{client: client, FetchImages: true}
}

func (s *Scraper) Name() string { return vehicle.SourceCraigslist }

func (s *Scraper) origin(location string) string {
	if s.BaseURL != "" {
		return s.BaseURL
	}
	return fmt.Sprintf("https://%s.craigslist.org", location)
}

func (s *Scraper) Fetch(ctx context.Context, query vehicle.Query) ([]vehicle.Listing, error) {
	ctx, span := tracer.Start(ctx, "craigslist:Fetch")
	defer span.End()

	origin := s.origin(query.Location)
	base, err := url.Parse(origin)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "bad origin")
		return nil, err
	}

	params := url.Values{}
	params.Set("query", strings.TrimSpace(query.Make+" "+query.Model))
	params.Set("max_price", strconv.Itoa(query.MaxPrice))
	params.Set("max_auto_miles", strconv.Itoa(query.MaxMileage))
	// clean title only
	params.Set("auto_title_status", "1")
	if query.MinYear != 0 {
		params.Set("min_auto_year", strconv.Itoa(query.MinYear))
	}
	if query.MaxYear != 0 {
		params.Set("max_auto_year", strconv.Itoa(query.MaxYear))
	}

	doc, err := scrapeutil.FetchDocument(ctx, s.client, origin+"/search/cta", params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search page fetch failed")
		return nil, err
	}

	var listings []vehicle.Listing
	doc.Find("li.cl-static-search-result").EachWithBreak(func(i int, li *goquery.Selection) bool {
		if len(listings) >= maxResults {
			return false
		}

		title := htmlutil.CleanText(li.Find("div.title"))
		href := htmlutil.AttrAny(li.Find("a").First(), "href")
		link := htmlutil.ResolveHref(base, href)
		if title == "" || link == "" {
			return true
		}

		year, yearOk := textutil.ExtractYear(title)
		if !textutil.YearInRange(year, yearOk, query.MinYear, query.MaxYear) {
			return true
		}

		listings = append(listings, vehicle.Listing{
			ID:        vehicle.ID("cl", link),
			Title:     title,
			Price:     textutil.ExtractPrice(li.Find("div.price").Text()),
			URL:       link,
			Source:    vehicle.SourceCraigslist,
			Location:  query.Location,
			Mileage:   vehicle.IntPtr(textutil.ExtractMileage(title)),
			Year:      vehicle.IntPtr(year, yearOk),
			ScrapedAt: time.Now(),
		})
		return true
	})

	if s.FetchImages {
		s.resolveImages(ctx, listings)
	}

	span.SetStatus(codes.Ok, fmt.Sprintf("%d listings", len(listings)))
	return listings, nil
}

// resolveImages pulls a bounded number of detail pages concurrently to
// find photos for each hit. A failed detail fetch just leaves the
// listing without an image; it never fails the listing.
func (s *Scraper) resolveImages(ctx context.Context, listings []vehicle.Listing) {
	pool := workerpool.New(maxDetailFetches, 0)
	var mu sync.Mutex

	for i := range listings {
		i := i
		pool.Submit(func() {
			images := s.fetchListingImages(ctx, listings[i].URL)
			if len(images) == 0 {
				return
			}
			mu.Lock()
			listings[i].Images = images
			listings[i].ImageURL = images[0]
			mu.Unlock()
		})
	}
	pool.Wait()
}

func (s *Scraper) fetchListingImages(ctx context.Context, link string) []string {
	ctx, span := tracer.Start(ctx, "craigslist:fetchListingImages")
	defer span.End()

	doc, err := scrapeutil.FetchDocument(ctx, s.client, link, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "detail page fetch failed")
		return nil
	}

	var images []string
	seen := map[string]bool{}
	add := func(src string) {
		if src != "" && !seen[src] && len(images) < maxImagesPerEntry {
			seen[src] = true
			images = append(images, src)
		}
	}

	doc.Find("img.slide").Each(func(_ int, img *goquery.Selection) {
		add(htmlutil.AttrAny(img, "src"))
	})
	if len(images) == 0 {
		doc.Find("img").Each(func(_ int, img *goquery.Selection) {
			src := htmlutil.AttrAny(img, "src")
			if strings.Contains(src, "600x450") || strings.Contains(src, "images.craigslist.org") {
				add(src)
			}
		})
	}
	return images
}
