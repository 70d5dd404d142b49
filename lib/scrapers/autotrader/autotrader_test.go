package autotrader

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

const searchPage = `<html><body>
<div data-cmp="inventoryListing">
  <h3>Used 2021 Subaru Outback Premium</h3>
  <span data-cmp="price">$24,990</span>
  <div>34,112 miles</div>
  <a data-cmp="listingTitle" href="/cars-for-sale/vehicle/712"></a>
  <img src="https://images.autotrader.com/712.jpg?w=480">
</div>
<div data-cmp="inventoryListing">
  <h3>Used 2017 Subaru Outback</h3>
  <div class="first-price">15,990</div>
  <a href="/cars-for-sale/vehicle/713"></a>
</div>
</body></html>`

func TestFetchParsesListings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/cars-for-sale/all-cars", r.URL.Path)
		require.Equal(t, "SUBARU", r.URL.Query().Get("makeCodeList"))
		require.Equal(t, "OUTBACK", r.URL.Query().Get("modelCodeList"))
		require.Equal(t, "53202", r.URL.Query().Get("zip"))
		fmt.Fprint(w, searchPage)
	}))
	t.Cleanup(srv.Close)

	s := New(resty.New())
	s.BaseURL = srv.URL

	listings, err := s.Fetch(context.Background(), vehicle.Query{
		Make:       "Subaru",
		Model:      "Outback",
		MaxPrice:   30000,
		MaxMileage: 100000,
		Location:   "milwaukee",
		ZipCode:    "53202",
	})
	require.NoError(t, err)
	require.Len(t, listings, 2)

	first := listings[0]
	require.Equal(t, "Used 2021 Subaru Outback Premium", first.Title)
	require.Equal(t, 24990, first.Price)
	require.Equal(t, srv.URL+"/cars-for-sale/vehicle/712", first.URL)
	require.Equal(t, 34112, *first.Mileage)
	require.Equal(t, 2021, *first.Year)
	require.Equal(t, vehicle.SourceAutoTrader, first.Source)

	// falls back to any price-classed div when the data-cmp span is absent
	require.Equal(t, 15990, listings[1].Price)
}

func TestFetchErrorOnBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)

	s := New(resty.New())
	s.BaseURL = srv.URL

	_, err := s.Fetch(context.Background(), vehicle.Query{
		Make: "Subaru", Model: "Outback",
		MaxPrice: 30000, MaxMileage: 100000, ZipCode: "53202",
	})
	require.Error(t, err)
}
