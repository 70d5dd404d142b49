package autotrader

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

var tracer = telemetry.Tracer("scrapers/autotrader")

const maxResults = 15

type Scraper struct {
	client *resty.Client
	// BaseURL overrides the autotrader origin in tests
	BaseURL string
}

func New(client *resty.Client) *Scraper {
	return &Scraper{client: client}
}

func (s *Scraper) Name() string { return vehicle.SourceAutoTrader }

func (s *Scraper) origin() string {
	if s.BaseURL != "" {
		return s.BaseURL
	}
	return "https://www.autotrader.com"
}

func (s *Scraper) Fetch(ctx context.Context, query vehicle.Query) ([]vehicle.Listing, error) {
	ctx, span := tracer.Start(ctx, "autotrader:Fetch")
	defer span.End()

	origin := s.origin()
	base, err := url.Parse(origin)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "bad origin")
		return nil, err
	}

	params := url.Values{}
	params.Set("makeCodeList", strings.ToUpper(strings.TrimSpace(query.Make)))
	params.Set("modelCodeList", strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(query.Model)), " ", ""))
	params.Set("zip", query.ZipCode)
	params.Set("maxPrice", strconv.Itoa(query.MaxPrice))
	params.Set("maxMileage", strconv.Itoa(query.MaxMileage))
	params.Set("searchRadius", "50")
	if query.MinYear != 0 {
		params.Set("startYear", strconv.Itoa(query.MinYear))
	}
	if query.MaxYear != 0 {
		params.Set("endYear", strconv.Itoa(query.MaxYear))
	}

	doc, err := scrapeutil.FetchDocument(ctx, s.client, origin+"/cars-for-sale/all-cars", params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search page fetch failed")
		return nil, err
	}

	var listings []vehicle.Listing
	doc.Find(`div[data-cmp="inventoryListing"]`).EachWithBreak(func(i int, card *goquery.Selection) bool {
		if len(listings) >= maxResults {
			return false
		}

		title := htmlutil.CleanText(card.Find("h3").First())
		if title == "" {
			title = htmlutil.CleanText(card.Find("h2").First())
		}
		linkSel := card.Find(`a[data-cmp="listingTitle"]`).First()
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

		price := textutil.ExtractPrice(card.Find(`span[data-cmp="price"]`).First().Text())
		if price == 0 {
			price = textutil.ExtractPrice(card.Find("div[class*=price]").First().Text())
		}

		listings = append(listings, vehicle.Listing{
			ID:        vehicle.ID("at", link),
			Title:     title,
			Price:     price,
			URL:       link,
			Source:    vehicle.SourceAutoTrader,
			Location:  query.Location,
			Mileage:   vehicle.IntPtr(textutil.ExtractMileage(card.Text())),
			Year:      vehicle.IntPtr(year, yearOk),
			ImageURL:  htmlutil.AttrAny(card.Find("img").First(), "src", "data-src"),
			ScrapedAt: time.Now(),
		})
		return true
	})

	span.SetStatus(codes.Ok, fmt.Sprintf("%d listings", len(listings)))
	return listings, nil
}
