package safety

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/natelasko528/milwaukee-vehicle-finder/services/search"
)

const (
	reportCacheTTL  = 24 * time.Hour
	reportCacheSize = 512
)

// Report bundles the three NHTSA lookups for one year/make/model. Each
// section fails independently; a missing section plus its note in Errors
// beats failing the whole report over one flaky endpoint.
type Report struct {
	Make           string   `json:"make"`
	Model          string   `json:"model"`
	Year           int      `json:"year"`
	Ratings        *Ratings `json:"ratings"`
	Recalls        []Recall `json:"recalls"`
	RecallCount    int      `json:"recall_count"`
	ComplaintCount int      `json:"complaint_count"`
	Errors         []string `json:"errors,omitempty"`
}

// Service serves cached NHTSA safety reports. Government data moves
// slowly, so reports stay cached for a day.
type Service struct {
	client *Client
	cache  *expirable.LRU[string, Report]
}

func NewService(client *Client) *Service {
	return &Service{
		client: client,
		cache:  expirable.NewLRU[string, Report](reportCacheSize, nil, reportCacheTTL),
	}
}

func (s *Service) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/safety", s.handleSafety).Methods(http.MethodGet, http.MethodOptions)
}

func reportKey(makeName, modelName string, year int) string {
	return fmt.Sprintf("%s|%s|%d", strings.ToLower(makeName), strings.ToLower(modelName), year)
}

func (s *Service) handleSafety(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	ctx, span := tracer.Start(r.Context(), "SafetyReport")
	defer span.End()

	query := r.URL.Query()
	makeName := strings.TrimSpace(query.Get("make"))
	modelName := strings.TrimSpace(query.Get("model"))
	yearParam := strings.TrimSpace(query.Get("year"))

	var violations []string
	if makeName == "" {
		violations = append(violations, "make is required")
	}
	if modelName == "" {
		violations = append(violations, "model is required")
	}
	year, err := strconv.Atoi(yearParam)
	if yearParam == "" {
		violations = append(violations, "year is required")
	} else if err != nil {
		violations = append(violations, "year must be an integer")
	}
	if len(violations) > 0 {
		search.WriteError(w, http.StatusBadRequest, strings.Join(violations, "; "))
		return
	}

	key := reportKey(makeName, modelName, year)
	if report, ok := s.cache.Get(key); ok {
		search.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "safety": report})
		return
	}

	report := s.buildReport(ctx, makeName, modelName, year)
	s.cache.Add(key, report)
	search.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "safety": report})
}

func (s *Service) buildReport(ctx context.Context, makeName, modelName string, year int) Report {
	report := Report{Make: makeName, Model: modelName, Year: year, Recalls: []Recall{}}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	fail := func(section string, err error) {
		mu.Lock()
		defer mu.Unlock()
		report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", section, err))
	}

	wg.Add(3)
	go func() {
		defer wg.Done()
		ratings, err := s.client.FetchRatings(ctx, makeName, modelName, year)
		if err != nil {
			fail("ratings", err)
			return
		}
		mu.Lock()
		report.Ratings = ratings
		mu.Unlock()
	}()
	go func() {
		defer wg.Done()
		recalls, err := s.client.FetchRecalls(ctx, makeName, modelName, year)
		if err != nil {
			fail("recalls", err)
			return
		}
		mu.Lock()
		report.Recalls = recalls
		report.RecallCount = len(recalls)
		mu.Unlock()
	}()
	go func() {
		defer wg.Done()
		count, err := s.client.FetchComplaintCount(ctx, makeName, modelName, year)
		if err != nil {
			fail("complaints", err)
			return
		}
		mu.Lock()
		report.ComplaintCount = count
		mu.Unlock()
	}()
	wg.Wait()

	return report
}
