package commands

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gorilla/mux"
	"github.com/spf13/cobra"

	"github.com/natelasko528/milwaukee-vehicle-finder/lib/serviceutil"
	"github.com/natelasko528/milwaukee-vehicle-finder/lib/telemetry"
	"github.com/natelasko528/milwaukee-vehicle-finder/lib/urlguard"
	"github.com/natelasko528/milwaukee-vehicle-finder/services/details"
	"github.com/natelasko528/milwaukee-vehicle-finder/services/insights"
	"github.com/natelasko528/milwaukee-vehicle-finder/services/safety"
	"github.com/natelasko528/milwaukee-vehicle-finder/services/search"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the vehicle finder HTTP API.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		tel, err := telemetry.SetupFromEnv(ctx, "vehiclefinder")
		if err != nil {
			serviceutil.Fatal("setup telemetry", err)
		}
		defer tel.Shutdown(context.Background())
		telemetry.InstrumentPerfStats(ctx)
		telemetry.InitSlog(verbose)

		cfg := readConfig()
		scrapingClient := newScrapingClient(cfg.Scrapers)
		apiClient := resty.New().SetTimeout(15 * time.Second)

		searchService := search.NewService(
			search.NewAggregator(newSources(scrapingClient, cfg.Scrapers)...),
			search.Options{
				CacheTTL:  time.Duration(cfg.Search.CacheTTLSeconds) * time.Second,
				RateLimit: cfg.Search.RateLimit,
				Dedupe:    cfg.Search.Dedupe,
			},
		)
		detailsService := details.NewService(scrapingClient, urlguard.DefaultMarketplaces(nil))
		safetyService := safety.NewService(safety.NewClient(apiClient))
		insightsService := insights.NewService(
			insights.NewGeminiClient(apiClient, cfg.Insights.GeminiApiKey),
		)

		router := mux.NewRouter()
		router.Use(search.RecoveryMiddleware, search.CORSMiddleware)
		searchService.RegisterRoutes(router)
		detailsService.RegisterRoutes(router)
		safetyService.RegisterRoutes(router)
		insightsService.RegisterRoutes(router)

		go serviceutil.StartHttpServer(cfg.Port, router)
		<-ctx.Done()
	},
}
