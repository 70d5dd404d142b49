package search

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/natelasko528/milwaukee-vehicle-finder/lib/ratelimit"
	"github.com/natelasko528/milwaukee-vehicle-finder/lib/vehicle"
)

const (
	defaultSearchTimeout   = 25 * time.Second
	defaultRateLimit       = 20
	defaultRateLimitWindow = time.Minute
)

// Options tunes the gateway. Zero values pick the defaults above.
type Options struct {
	Timeout         time.Duration
	CacheTTL        time.Duration
	CacheSize       int
	RateLimit       int
	RateLimitWindow time.Duration
	// Dedupe collapses cross-marketplace duplicates before responding.
	Dedupe bool
}

// Service is the HTTP search gateway: it validates requests, rate limits
// callers, and serves aggregation results through the TTL cache.
type Service struct {
	aggregator *Aggregator
	cache      *ResultCache
	limiter    *ratelimit.Limiter
	timeout    time.Duration
	dedupe     bool
}

func NewService(aggregator *Aggregator, opts Options) *Service {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultSearchTimeout
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = defaultRateLimit
	}
	if opts.RateLimitWindow <= 0 {
		opts.RateLimitWindow = defaultRateLimitWindow
	}
	return &Service{
		aggregator: aggregator,
		cache:      NewResultCache(opts.CacheSize, opts.CacheTTL),
		limiter:    ratelimit.New(opts.RateLimit, opts.RateLimitWindow),
		timeout:    opts.Timeout,
		dedupe:     opts.Dedupe,
	}
}

func (s *Service) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/search", s.handleSearch).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/api/search", s.handleStatus).Methods(http.MethodGet)
}

type searchResponse struct {
	Success      bool                `json:"success"`
	Count        int                 `json:"count"`
	Vehicles     []vehicle.Listing   `json:"vehicles"`
	Sources      []vehicle.SourceRun `json:"sources"`
	Stats        vehicle.Stats       `json:"stats"`
	SearchParams vehicle.Query       `json:"search_params"`
	Timestamp    time.Time           `json:"timestamp"`
}

func (s *Service) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if !s.limiter.Allow(ratelimit.ClientIP(r)) {
		WriteError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
		return
	}

	var raw RawParams
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		WriteError(w, http.StatusBadRequest, "request body must be a JSON object")
		return
	}

	query, err := Validate(raw)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if cached, ok := s.cache.Get(query); ok {
		s.respond(w, query, cached.Listings, cached.Sources, cached.ComputedAt)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	listings, sources := s.aggregator.Aggregate(ctx, query)
	if s.dedupe {
		listings = DedupeListings(listings)
	}
	s.cache.Set(query, listings, sources)
	s.respond(w, query, listings, sources, time.Now())
}

func (s *Service) respond(
	w http.ResponseWriter,
	query vehicle.Query,
	listings []vehicle.Listing,
	sources []vehicle.SourceRun,
	computedAt time.Time,
) {
	if listings == nil {
		listings = []vehicle.Listing{}
	}
	WriteJSON(w, http.StatusOK, searchResponse{
		Success:      true,
		Count:        len(listings),
		Vehicles:     listings,
		Sources:      sources,
		Stats:        vehicle.ComputeStats(listings),
		SearchParams: query,
		Timestamp:    computedAt,
	})
}

func (s *Service) handleStatus(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"message": "POST a JSON body to this endpoint to search",
		"sources": len(s.aggregator.sources),
	})
}

// WriteJSON and WriteError are shared by every HTTP service in this
// module so all endpoints speak the same envelope.

func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("writing response", slog.String("err", err.Error()))
	}
}

func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]any{
		"success": false,
		"error":   message,
	})
}

// CORSMiddleware lets the browser frontend on another origin call the
// API, including its OPTIONS preflights.
func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		next.ServeHTTP(w, r)
	})
}

// RecoveryMiddleware turns a handler panic into a 500 instead of killing
// the connection.
func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				slog.ErrorContext(r.Context(), "handler panicked",
					slog.String("path", r.URL.Path),
					slog.Any("panic", rec))
				WriteError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
