package details

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-resty/resty/v2"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/natelasko528/milwaukee-vehicle-finder/lib/scrapers/scrapeutil"
	"github.com/natelasko528/milwaukee-vehicle-finder/lib/telemetry"
	"github.com/natelasko528/milwaukee-vehicle-finder/lib/urlguard"
	"github.com/natelasko528/milwaukee-vehicle-finder/services/search"
)

var tracer = telemetry.Tracer("services/details")

// URLGuard approves caller-supplied URLs before the service fetches them.
// urlguard.Guard is the production implementation.
type URLGuard interface {
	Allowed(ctx context.Context, raw string) bool
}

var _ URLGuard = urlguard.Guard{}

// Service fetches a single listing's own page and extracts its gallery
// and description. Every requested URL passes the guard first, since the
// URL is caller-supplied.
type Service struct {
	client *resty.Client
	guard  URLGuard
}

func NewService(client *resty.Client, guard URLGuard) *Service {
	return &Service{client: client, guard: guard}
}

func (s *Service) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/details", s.handleDetails).Methods(http.MethodGet, http.MethodOptions)
}

func (s *Service) handleDetails(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	ctx, span := tracer.Start(r.Context(), "Details")
	defer span.End()

	raw := r.URL.Query().Get("url")
	if raw == "" {
		search.WriteError(w, http.StatusBadRequest, "url parameter is required")
		return
	}
	if !s.guard.Allowed(ctx, raw) {
		search.WriteError(w, http.StatusBadRequest, "url is not an allowed listing page")
		return
	}
	span.SetAttributes(attribute.String("url", raw))

	pageURL, err := url.Parse(raw)
	if err != nil {
		search.WriteError(w, http.StatusBadRequest, "url is not parsable")
		return
	}

	doc, err := scrapeutil.FetchDocument(ctx, s.client, raw, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "detail fetch failed")
		search.WriteError(w, http.StatusBadGateway, "listing page could not be fetched")
		return
	}

	search.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"details": Extract(pageURL, doc),
	})
}
