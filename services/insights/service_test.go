package insights

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"github.com/natelasko528/milwaukee-vehicle-finder/lib/telemetry"
)

func geminiStub(t *testing.T, replyText string, status int, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		require.Equal(t, "test-key", r.URL.Query().Get("key"))
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		reply := map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{
					"parts": []map[string]any{{"text": replyText}},
				},
			}},
		}
		require.NoError(t, json.NewEncoder(w).Encode(reply))
	}))
}

func newInsightsRouter(serverURL, apiKey string) *mux.Router {
	client := NewGeminiClient(resty.New(), apiKey, "test-model")
	client.BaseURL = serverURL
	router := mux.NewRouter()
	NewService(client).RegisterRoutes(router)
	return router
}

func postAnalyze(t *testing.T, router *mux.Router, body any) *httptest.ResponseRecorder {
	t.Helper()
	encoded, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", bytes.NewReader(encoded))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

type analyzeResponse struct {
	Success  bool     `json:"success"`
	Analysis Analysis `json:"analysis"`
	Source   string   `json:"source"`
}

func TestAnalyzeWithModel(t *testing.T) {
	telemetry.SetupForTesting(t, "insights-test")

	reply := "```json\n" + `{"summary":"Two solid commuters.","price_assessment":"fair",
		"top_picks":[{"id":"cg_def1234567","reason":"cheapest"}],"red_flags":[]}` + "\n```"
	server := geminiStub(t, reply, http.StatusOK, nil)
	defer server.Close()

	router := newInsightsRouter(server.URL, "test-key")
	rec := postAnalyze(t, router, analyzeRequest{Vehicles: sampleListings()})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp analyzeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.Equal(t, sourceModel, resp.Source)
	require.Equal(t, "Two solid commuters.", resp.Analysis.Summary)
	require.Equal(t, "cg_def1234567", resp.Analysis.TopPicks[0].ID)
}

func TestAnalyzeFallsBackWithoutKey(t *testing.T) {
	telemetry.SetupForTesting(t, "insights-test")

	router := newInsightsRouter("http://unused.invalid", "")
	rec := postAnalyze(t, router, analyzeRequest{Vehicles: sampleListings()})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp analyzeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, sourceLocal, resp.Source)
	require.Contains(t, resp.Analysis.Summary, "2 listings")
}

func TestAnalyzeFallsBackOnModelFailure(t *testing.T) {
	telemetry.SetupForTesting(t, "insights-test")

	server := geminiStub(t, "", http.StatusNotFound, nil)
	defer server.Close()

	router := newInsightsRouter(server.URL, "test-key")
	rec := postAnalyze(t, router, analyzeRequest{Vehicles: sampleListings()})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp analyzeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, sourceLocal, resp.Source)
	require.NotEmpty(t, resp.Analysis.Summary)
}

func TestAnalyzeFallsBackOnUnparsableReply(t *testing.T) {
	telemetry.SetupForTesting(t, "insights-test")

	server := geminiStub(t, "I cannot help with that.", http.StatusOK, nil)
	defer server.Close()

	router := newInsightsRouter(server.URL, "test-key")
	rec := postAnalyze(t, router, analyzeRequest{Vehicles: sampleListings()})

	var resp analyzeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, sourceLocal, resp.Source)
}

func TestAnalyzeCachesByListingSet(t *testing.T) {
	telemetry.SetupForTesting(t, "insights-test")

	var calls atomic.Int32
	reply := `{"summary":"Fine set.","price_assessment":"fair","top_picks":[],"red_flags":[]}`
	server := geminiStub(t, reply, http.StatusOK, &calls)
	defer server.Close()

	router := newInsightsRouter(server.URL, "test-key")
	for i := 0; i < 3; i++ {
		rec := postAnalyze(t, router, analyzeRequest{Vehicles: sampleListings()})
		require.Equal(t, http.StatusOK, rec.Code)
	}
	require.Equal(t, int32(1), calls.Load())

	// a different question is a different analysis
	rec := postAnalyze(t, router, analyzeRequest{Vehicles: sampleListings(), Question: "best for winter?"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, int32(2), calls.Load())
}

func TestAnalyzeRejectsEmptyVehicles(t *testing.T) {
	telemetry.SetupForTesting(t, "insights-test")

	router := newInsightsRouter("http://unused.invalid", "test-key")
	rec := postAnalyze(t, router, analyzeRequest{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyzeRateLimits(t *testing.T) {
	telemetry.SetupForTesting(t, "insights-test")

	router := newInsightsRouter("http://unused.invalid", "")
	var lastCode int
	for i := 0; i < analysisRateLimit+1; i++ {
		body := analyzeRequest{Vehicles: sampleListings(), Question: string(rune('a' + i))}
		lastCode = postAnalyze(t, router, body).Code
	}
	require.Equal(t, http.StatusTooManyRequests, lastCode)
}
