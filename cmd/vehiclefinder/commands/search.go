package commands

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/natelasko528/milwaukee-vehicle-finder/lib/serviceutil"
	"github.com/natelasko528/milwaukee-vehicle-finder/lib/telemetry"
	"github.com/natelasko528/milwaukee-vehicle-finder/lib/vehicle"
	"github.com/natelasko528/milwaukee-vehicle-finder/services/search"
)

var searchFlags struct {
	make       string
	model      string
	maxPrice   int
	maxMileage int
	minYear    int
	maxYear    int
	location   string
	zipCode    string
}

func init() {
	searchCmd.Flags().StringVar(&searchFlags.make, "make", "", "Vehicle make, e.g. honda.")
	searchCmd.Flags().StringVar(&searchFlags.model, "model", "", "Vehicle model, e.g. civic.")
	searchCmd.Flags().IntVar(&searchFlags.maxPrice, "max-price", 0, "Maximum price in dollars.")
	searchCmd.Flags().IntVar(&searchFlags.maxMileage, "max-mileage", 0, "Maximum odometer miles.")
	searchCmd.Flags().IntVar(&searchFlags.minYear, "min-year", 0, "Earliest model year.")
	searchCmd.Flags().IntVar(&searchFlags.maxYear, "max-year", 0, "Latest model year.")
	searchCmd.Flags().StringVar(&searchFlags.location, "location", "", "Craigslist region subdomain.")
	searchCmd.Flags().StringVar(&searchFlags.zipCode, "zip", "", "Zip code for dealer marketplaces.")
	rootCmd.AddCommand(searchCmd)
}

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Runs one aggregated search and prints the results.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		telemetry.SetupFromEnv(ctx, "vehiclefinder-cli")
		telemetry.InitSlog(verbose)

		raw := search.RawParams{
			Make:     searchFlags.make,
			Model:    searchFlags.model,
			Location: searchFlags.location,
			ZipCode:  searchFlags.zipCode,
		}
		if searchFlags.maxPrice > 0 {
			raw.MaxPrice = searchFlags.maxPrice
		}
		if searchFlags.maxMileage > 0 {
			raw.MaxMileage = searchFlags.maxMileage
		}
		if searchFlags.minYear > 0 {
			raw.MinYear = searchFlags.minYear
		}
		if searchFlags.maxYear > 0 {
			raw.MaxYear = searchFlags.maxYear
		}

		query, err := search.Validate(raw)
		if err != nil {
			serviceutil.Fatal("invalid search", err)
		}

		cfg := readConfig()
		client := newScrapingClient(cfg.Scrapers)
		aggregator := search.NewAggregator(newSources(client, cfg.Scrapers)...)

		listings, runs := aggregator.Aggregate(ctx, query)
		if cfg.Search.Dedupe {
			listings = search.DedupeListings(listings)
		}

		for _, run := range runs {
			if run.Error != "" {
				fmt.Fprintf(os.Stderr, "%s failed: %s\n", run.Name, run.Error)
				continue
			}
			fmt.Fprintf(os.Stderr, "%s returned %d listings\n", run.Name, run.Count)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Price", "Title", "Mileage", "Year", "Source", "URL"})
		for _, l := range listings {
			t.AppendRow(table.Row{
				fmt.Sprintf("$%d", l.Price),
				l.Title,
				formatOptional(l.Mileage),
				formatOptional(l.Year),
				l.Source,
				l.URL,
			})
		}
		t.Render()

		stats := vehicle.ComputeStats(listings)
		fmt.Printf("%d listings, $%d to $%d, $%.2f average\n",
			stats.TotalCount, stats.MinPrice, stats.MaxPrice, stats.AvgPrice)
	},
}

func formatOptional(n *int) string {
	if n == nil {
		return "-"
	}
	return fmt.Sprint(*n)
}
