package carscom

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

var tracer = telemetry.Tracer("scrapers/carscom")

const maxResults = 15

type Scraper struct {
	client *resty.Client
	// BaseURL overrides the cars.com origin in tests
	BaseURL string
}

func New(client *resty.Client) *Scraper {
	return &Scraper{client: client}
}

func (s *Scraper) Name() string { return vehicle.SourceCarsCom }

func (s *Scraper) origin() string {
	if s.BaseURL != "" {
		return s.BaseURL
	}
	return "https://www.cars.com"
}

func (s *Scraper) Fetch(ctx context.Context, query vehicle.Query) ([]vehicle.Listing, error) {
	ctx, span := tracer.Start(ctx, "carscom:Fetch")
	defer span.End()

	origin := s.origin()
	base, err := url.Parse(origin)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "bad origin")
		return nil, err
	}

	makeSlug := strings.ToLower(strings.TrimSpace(query.Make))
	modelSlug := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(query.Model)), " ", "_")

	params := url.Values{}
	params.Set("makes[]", makeSlug)
	params.Set("models[]", fmt.Sprintf("%s-%s", makeSlug, modelSlug))
	params.Set("maximum_distance", "50")
	params.Set("zip", query.ZipCode)
	params.Set("price_max", strconv.Itoa(query.MaxPrice))
	params.Set("maximum_mileage", strconv.Itoa(query.MaxMileage))
	params.Set("stock_type", "used")
	if query.MinYear != 0 {
		params.Set("year_min", strconv.Itoa(query.MinYear))
	}
	if query.MaxYear != 0 {
		params.Set("year_max", strconv.Itoa(query.MaxYear))
	}

	doc, err := scrapeutil.FetchDocument(ctx, s.client, origin+"/shopping/results/", params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search page fetch failed")
		return nil, err
	}

	var listings []vehicle.Listing
	doc.Find("div.vehicle-card").EachWithBreak(func(i int, card *goquery.Selection) bool {
		if len(listings) >= maxResults {
			return false
		}

		title := htmlutil.CleanText(card.Find("h2.title").First())
		if title == "" {
			title = htmlutil.CleanText(card.Find("h2").First())
		}
		linkSel := card.Find("a.vehicle-card-link").First()
		if linkSel.Length() == 0 {
			linkSel = card.Find("a[href]").First()
		}
		link := htmlutil.ResolveHref(base, htmlutil.AttrAny(linkSel, "href"))
		if title == "" || link == "" {
			return true
		}

		year, yearOk := textutil.ExtractYear(title)
		if !textutil.YearInRange(year, yearOk, query.MinYear, query.MaxYear) {
			return true
		}

		imgSel := card.Find("img.vehicle-image").First()
		if imgSel.Length() == 0 {
			imgSel = card.Find("img").First()
		}

		listings = append(listings, vehicle.Listing{
			ID:        vehicle.ID("cc", link),
			Title:     title,
			Price:     textutil.ExtractPrice(card.Find("span.primary-price").First().Text()),
			URL:       link,
			Source:    vehicle.SourceCarsCom,
			Location:  query.Location,
			Mileage:   vehicle.IntPtr(textutil.ExtractMileage(card.Find("div.mileage").First().Text())),
			Year:      vehicle.IntPtr(year, yearOk),
			ImageURL:  htmlutil.AttrAny(imgSel, "src", "data-src"),
			ScrapedAt: time.Now(),
		})
		return true
	})

	span.SetStatus(codes.Ok, fmt.Sprintf("%d listings", len(listings)))
	return listings, nil
}
