package insights

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/mux"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/natelasko528/milwaukee-vehicle-finder/lib/ratelimit"
	"github.com/natelasko528/milwaukee-vehicle-finder/lib/vehicle"
	"github.com/natelasko528/milwaukee-vehicle-finder/services/search"
)

const (
	analysisCacheTTL   = 10 * time.Minute
	analysisCacheSize  = 128
	analysisRateLimit  = 10
	analysisRateWindow = time.Minute

	sourceModel = "model"
	sourceLocal = "local"
)

// Service answers "which of these should I buy" over a result set, holds
// the contextual chat conversation and writes per-vehicle reviews. The
// analysis model path is best effort: with no key, an exhausted quota or
// an unparsable reply, the caller still gets a deterministic local
// analysis. Chat and reviews have no local stand-in and fail instead.
type Service struct {
	gemini      *GeminiClient
	cache       *expirable.LRU[string, cachedAnalysis]
	reviews     *expirable.LRU[string, Review]
	limiter     *ratelimit.Limiter
	chatLimiter *ratelimit.Limiter
}

type cachedAnalysis struct {
	analysis Analysis
	source   string
}

func NewService(gemini *GeminiClient) *Service {
	return &Service{
		gemini:      gemini,
		cache:       expirable.NewLRU[string, cachedAnalysis](analysisCacheSize, nil, analysisCacheTTL),
		reviews:     expirable.NewLRU[string, Review](reviewCacheSize, nil, reviewCacheTTL),
		limiter:     ratelimit.New(analysisRateLimit, analysisRateWindow),
		chatLimiter: ratelimit.New(chatRateLimit, chatRateWindow),
	}
}

func (s *Service) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/analyze", s.handleAnalyze).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/api/chat", s.handleChat).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/api/review", s.handleReview).Methods(http.MethodPost, http.MethodOptions)
}

type analyzeRequest struct {
	Vehicles []vehicle.Listing `json:"vehicles"`
	Question string            `json:"question"`
}

func analysisKey(listings []vehicle.Listing, question string) string {
	ids := make([]string, 0, len(listings))
	for _, l := range listings {
		ids = append(ids, l.ID)
	}
	sort.Strings(ids)
	canonical, _ := json.Marshal(map[string]any{"ids": ids, "question": question})
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}

func (s *Service) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	ctx, span := tracer.Start(r.Context(), "Analyze")
	defer span.End()

	if !s.limiter.Allow(ratelimit.ClientIP(r)) {
		search.WriteError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
		return
	}

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		search.WriteError(w, http.StatusBadRequest, "request body must be a JSON object")
		return
	}
	if len(req.Vehicles) == 0 {
		search.WriteError(w, http.StatusBadRequest, "vehicles must not be empty")
		return
	}

	key := analysisKey(req.Vehicles, req.Question)
	if cached, ok := s.cache.Get(key); ok {
		s.respond(w, cached.analysis, cached.source)
		return
	}

	result := cachedAnalysis{source: sourceModel}
	analysis, err := s.analyzeWithModel(ctx, req)
	if err != nil {
		slog.InfoContext(ctx, "falling back to local analysis", slog.String("reason", err.Error()))
		analysis = LocalAnalysis(req.Vehicles)
		result.source = sourceLocal
	}
	result.analysis = analysis

	s.cache.Add(key, result)
	s.respond(w, result.analysis, result.source)
}

func (s *Service) analyzeWithModel(ctx context.Context, req analyzeRequest) (Analysis, error) {
	prompt, err := BuildPrompt(req.Vehicles, req.Question)
	if err != nil {
		return Analysis{}, err
	}
	text, err := s.gemini.Generate(ctx, prompt)
	if err != nil {
		return Analysis{}, err
	}
	return ParseAnalysis(text)
}

func (s *Service) respond(w http.ResponseWriter, analysis Analysis, source string) {
	search.WriteJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"analysis":  analysis,
		"source":    source,
		"timestamp": time.Now(),
	})
}
