package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/natelasko528/milwaukee-vehicle-finder/lib/telemetry"
	"github.com/natelasko528/milwaukee-vehicle-finder/lib/vehicle"
)

type stubSource struct {
	name     string
	listings []vehicle.Listing
	err      error
	panics   bool
}

func (s stubSource) Name() string { return s.name }

func (s stubSource) Fetch(ctx context.Context, query vehicle.Query) ([]vehicle.Listing, error) {
	if s.panics {
		panic("selector gone")
	}
	return s.listings, s.err
}

func TestAggregateMergesAndSorts(t *testing.T) {
	telemetry.SetupForTesting(t, "search-test")

	aggregator := NewAggregator(
		stubSource{name: vehicle.SourceCraigslist, listings: []vehicle.Listing{
			{ID: "cl_1", Title: "2018 Honda Civic", Price: 14000, Source: vehicle.SourceCraigslist},
			{ID: "cl_2", Title: "2015 Honda Civic", Price: 9000, Source: vehicle.SourceCraigslist},
		}},
		stubSource{name: vehicle.SourceCarGurus, listings: []vehicle.Listing{
			{ID: "cg_1", Title: "2016 Honda Civic", Price: 11000, Source: vehicle.SourceCarGurus},
		}},
	)

	listings, runs := aggregator.Aggregate(context.Background(), vehicle.Query{})
	require.Len(t, listings, 3)
	require.Equal(t, []string{"cl_2", "cg_1", "cl_1"},
		[]string{listings[0].ID, listings[1].ID, listings[2].ID})

	require.Equal(t, []vehicle.SourceRun{
		{Name: vehicle.SourceCraigslist, Count: 2},
		{Name: vehicle.SourceCarGurus, Count: 1},
	}, runs)
}

func TestAggregateToleratesFailingSource(t *testing.T) {
	telemetry.SetupForTesting(t, "search-test")

	aggregator := NewAggregator(
		stubSource{name: vehicle.SourceCraigslist, err: errors.New("blocked: status 403")},
		stubSource{name: vehicle.SourceCarsCom, listings: []vehicle.Listing{
			{ID: "cc_1", Title: "2019 Toyota Camry", Price: 17000, Source: vehicle.SourceCarsCom},
		}},
	)

	listings, runs := aggregator.Aggregate(context.Background(), vehicle.Query{})
	require.Len(t, listings, 1)
	require.Len(t, runs, 2)
	require.Equal(t, "blocked: status 403", runs[0].Error)
	require.Zero(t, runs[0].Count)
	require.Equal(t, 1, runs[1].Count)
	require.Empty(t, runs[1].Error)
}

func TestAggregateConvertsPanicToSourceError(t *testing.T) {
	telemetry.SetupForTesting(t, "search-test")

	aggregator := NewAggregator(
		stubSource{name: vehicle.SourceAutoTrader, panics: true},
		stubSource{name: vehicle.SourceCarGurus, listings: []vehicle.Listing{
			{ID: "cg_1", Title: "2016 Honda Civic", Price: 11000, Source: vehicle.SourceCarGurus},
		}},
	)

	listings, runs := aggregator.Aggregate(context.Background(), vehicle.Query{})
	require.Len(t, listings, 1)
	require.Contains(t, runs[0].Error, "source panicked")
	require.Equal(t, 1, runs[1].Count)
}

func TestAggregateFiltersNonPositivePrices(t *testing.T) {
	telemetry.SetupForTesting(t, "search-test")

	aggregator := NewAggregator(
		stubSource{name: vehicle.SourceCarsCom, listings: []vehicle.Listing{
			{ID: "cc_1", Title: "2019 Toyota Camry", Price: 0},
			{ID: "cc_2", Title: "2017 Toyota Camry", Price: 15500},
			{ID: "cc_3", Title: "2014 Toyota Camry", Price: -1},
		}},
	)

	listings, runs := aggregator.Aggregate(context.Background(), vehicle.Query{})
	require.Len(t, listings, 1)
	require.Equal(t, "cc_2", listings[0].ID)
	// the run count reports what the source produced, not what survived
	require.Equal(t, 3, runs[0].Count)
}

func TestAggregateStableForEqualPrices(t *testing.T) {
	telemetry.SetupForTesting(t, "search-test")

	aggregator := NewAggregator(
		stubSource{name: vehicle.SourceCraigslist, listings: []vehicle.Listing{
			{ID: "cl_1", Title: "2018 Honda Civic", Price: 12000},
		}},
		stubSource{name: vehicle.SourceCarGurus, listings: []vehicle.Listing{
			{ID: "cg_1", Title: "2018 Honda Civic", Price: 12000},
		}},
	)

	for i := 0; i < 5; i++ {
		listings, _ := aggregator.Aggregate(context.Background(), vehicle.Query{})
		require.Equal(t, "cl_1", listings[0].ID)
		require.Equal(t, "cg_1", listings[1].ID)
	}
}
