package craigslist

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/natelasko528/milwaukee-vehicle-finder/lib/vehicle"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
)

const searchPage = `<html><body><ul>
<li class="cl-static-search-result">
  <a href="/cto/d/milwaukee-honda/7701.html">
    <div class="title">2018 Honda Civic LX 45,000 miles</div>
    <div class="price">$15,500</div>
  </a>
</li>
<li class="cl-static-search-result">
  <a href="/cto/d/milwaukee-toyota/7702.html">
    <div class="title">2009 Toyota Camry</div>
    <div class="price">$4,200</div>
  </a>
</li>
<li class="cl-static-search-result">
  <a href="/cto/d/milwaukee-junk/7703.html">
    <div class="title"></div>
    <div class="price">$999</div>
  </a>
</li>
</ul></body></html>`

const detailPage = `<html><body>
<img class="slide" src="https://images.craigslist.org/abc_600x450.jpg">
<img class="slide" src="https://images.craigslist.org/def_600x450.jpg">
</body></html>`

func testServer(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/search/cta":
			require.Equal(t, "honda civic", r.URL.Query().Get("query"))
			fmt.Fprint(w, searchPage)
		default:
			fmt.Fprint(w, detailPage)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testQuery() vehicle.Query {
	return vehicle.Query{
		Make:       "honda",
		Model:      "civic",
		MaxPrice:   30000,
		MaxMileage: 200000,
		Location:   "milwaukee",
		ZipCode:    "53202",
	}
}

func TestFetchParsesListings(t *testing.T) {
	srv := testServer(t)
	s := New(resty.New())
	s.BaseURL = srv.URL
	s.FetchImages = false

	listings, err := s.Fetch(context.Background(), testQuery())
	require.NoError(t, err)
	require.Len(t, listings, 2, "the entry without a title must be skipped")

	first := listings[0]
	require.Equal(t, "2018 Honda Civic LX 45,000 miles", first.Title)
	require.Equal(t, 15500, first.Price)
	require.Equal(t, srv.URL+"/cto/d/milwaukee-honda/7701.html", first.URL)
	require.Equal(t, vehicle.SourceCraigslist, first.Source)
	require.NotNil(t, first.Mileage)
	require.Equal(t, 45000, *first.Mileage)
	require.NotNil(t, first.Year)
	require.Equal(t, 2018, *first.Year)
	require.Equal(t, vehicle.ID("cl", first.URL), first.ID)
}

func TestFetchAppliesYearFilter(t *testing.T) {
	srv := testServer(t)
	s := New(resty.New())
	s.BaseURL = srv.URL
	s.FetchImages = false

	q := testQuery()
	q.MinYear = 2015
	listings, err := s.Fetch(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, listings, 1)
	require.Equal(t, 2018, *listings[0].Year)
}

func TestFetchResolvesDetailImages(t *testing.T) {
	srv := testServer(t)
	s := New(resty.New())
	s.BaseURL = srv.URL

	listings, err := s.Fetch(context.Background(), testQuery())
	require.NoError(t, err)
	require.Len(t, listings, 2)
	for _, l := range listings {
		require.Len(t, l.Images, 2)
		require.Equal(t, l.Images[0], l.ImageURL)
	}
}

func TestFetchImageFailureIsSoft(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/search/cta" {
			fmt.Fprint(w, searchPage)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	s := New(resty.New())
	s.BaseURL = srv.URL

	listings, err := s.Fetch(context.Background(), testQuery())
	require.NoError(t, err)
	require.Len(t, listings, 2)
	for _, l := range listings {
		require.Empty(t, l.Images)
		require.Empty(t, l.ImageURL)
	}
}

func TestFetchErrorOnBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	s := New(resty.New())
	s.BaseURL = srv.URL
	s.FetchImages = false

	_, err := s.Fetch(context.Background(), testQuery())
	require.Error(t, err)
}
