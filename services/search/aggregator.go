package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/natelasko528/milwaukee-vehicle-finder/lib/telemetry"
	"github.com/natelasko528/milwaukee-vehicle-finder/lib/vehicle"
)

var tracer = telemetry.Tracer("services/search")

// Aggregator fans one query out to every configured marketplace and merges
// whatever came back. A failing or panicking source costs only its own
// results; the round still succeeds with the rest.
type Aggregator struct {
	sources []vehicle.Source
}

func NewAggregator(sources ...vehicle.Source) *Aggregator {
	return &Aggregator{sources: sources}
}

// Aggregate runs every source concurrently and returns the merged listings
// plus one SourceRun per configured source, in configuration order. Merged
// listings are filtered to positive prices and stably sorted ascending by
// price, so equal-priced entries keep source order.
func (a *Aggregator) Aggregate(ctx context.Context, query vehicle.Query) ([]vehicle.Listing, []vehicle.SourceRun) {
	ctx, span := tracer.Start(ctx, "Aggregate")
	defer span.End()

	perSource := make([][]vehicle.Listing, len(a.sources))
	runs := make([]vehicle.SourceRun, len(a.sources))

	var wg sync.WaitGroup
	for i, source := range a.sources {
		i, source := i, source
		wg.Add(1)
		go func() {
			defer wg.Done()
			listings, err := a.fetchOne(ctx, source, query)
			if err != nil {
				slog.WarnContext(ctx, "source failed",
					slog.String("source", source.Name()),
					slog.String("err", err.Error()))
				runs[i] = vehicle.SourceRun{Name: source.Name(), Error: err.Error()}
				return
			}
			perSource[i] = listings
			runs[i] = vehicle.SourceRun{Name: source.Name(), Count: len(listings)}
		}()
	}
	wg.Wait()

	merged := []vehicle.Listing{}
	for _, listings := range perSource {
		for _, l := range listings {
			if l.Price <= 0 {
				continue
			}
			merged = append(merged, l)
		}
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Price < merged[j].Price
	})

	span.SetAttributes(attribute.Int("listings", len(merged)))
	return merged, runs
}

// fetchOne isolates a single source call, converting a panic inside an
// adapter into an ordinary source error.
func (a *Aggregator) fetchOne(ctx context.Context, source vehicle.Source, query vehicle.Query) (listings []vehicle.Listing, err error) {
	ctx, span := tracer.Start(ctx, "FetchSource",
		oteltrace.WithAttributes(attribute.String("source", source.Name())))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("source panicked: %v", r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "fetch failed")
		}
	}()

	return source.Fetch(ctx, query)
}
