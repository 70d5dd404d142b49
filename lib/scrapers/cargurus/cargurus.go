package cargurus

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/natelasko528/milwaukee-vehicle-finder/lib/htmlutil"
	"github.com/natelasko528/milwaukee-vehicle-finder/lib/scrapers/scrapeutil"
	"github.com/natelasko528/milwaukee-vehicle-finder/lib/telemetry"
	"github.com/natelasko528/milwaukee-vehicle-finder/lib/textutil"
	"github.com/natelasko528/milwaukee-vehicle-finder/lib/vehicle"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/codes"
)

var tracer = telemetry.Tracer("scrapers/cargurus")

const maxResults = 15

type Scraper struct {
	client *resty.Client
	// BaseURL overrides the cargurus origin in tests
	BaseURL string
}

func New(client *resty.Client) *Scraper {
	return &Scraper{client: client}
}

func (s *Scraper) Name() string { return vehicle.SourceCarGurus }

func (s *Scraper) origin() string {
	if s.BaseURL != "" {
		return s.BaseURL
	}
	return "https://www.cargurus.com"
}

func (s *Scraper) Fetch(ctx context.Context, query vehicle.Query) ([]vehicle.Listing, error) {
	ctx, span := tracer.Start(ctx, "cargurus:Fetch")
	defer span.End()

	origin := s.origin()
	base, err := url.Parse(origin)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "bad origin")
		return nil, err
	}

	// cargurus encodes make/model into the path, not the query string
	searchTerm := strings.ReplaceAll(strings.TrimSpace(query.Make+"-"+query.Model), " ", "-")
	link := fmt.Sprintf("%s/Cars/l-Used-%s-t%s", origin, searchTerm, query.ZipCode)

	params := url.Values{}
	params.Set("maxPrice", strconv.Itoa(query.MaxPrice))
	params.Set("maxMileage", strconv.Itoa(query.MaxMileage))
	params.Set("searchRadius", "50")
	if query.MinYear != 0 {
		params.Set("minYear", strconv.Itoa(query.MinYear))
	}
	if query.MaxYear != 0 {
		params.Set("maxYear", strconv.Itoa(query.MaxYear))
	}

	doc, err := scrapeutil.FetchDocument(ctx, s.client, link, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search page fetch failed")
		return nil, err
	}

	var listings []vehicle.Listing
	doc.Find(`[data-cg-ft="car-blade"]`).EachWithBreak(func(i int, card *goquery.Selection) bool {
		if len(listings) >= maxResults {
			return false
		}

		title := htmlutil.CleanText(card.Find("h4").First())
		if title == "" {
			title = htmlutil.CleanText(card.Find("a[class*=title]").First())
		}
		href := htmlutil.AttrAny(card.Find("a[href]").First(), "href")
		link := htmlutil.ResolveHref(base, href)
		if title == "" || link == "" {
			return true
		}

		year, yearOk := textutil.ExtractYear(title)
		if !textutil.YearInRange(year, yearOk, query.MinYear, query.MaxYear) {
			return true
		}

		image := htmlutil.AttrAny(card.Find("img").First(), "src", "data-src")
		listings = append(listings, vehicle.Listing{
			ID:        vehicle.ID("cg", link),
			Title:     title,
			Price:     textutil.ExtractPrice(card.Find("span[class*=price]").First().Text()),
			URL:       link,
			Source:    vehicle.SourceCarGurus,
			Location:  query.Location,
			Mileage:   vehicle.IntPtr(textutil.ExtractMileage(card.Text())),
			Year:      vehicle.IntPtr(year, yearOk),
			ImageURL:  image,
			ScrapedAt: time.Now(),
		})
		return true
	})

	span.SetStatus(codes.Ok, fmt.Sprintf("%d listings", len(listings)))
	return listings, nil
}
