package insights

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/natelasko528/milwaukee-vehicle-finder/services/search"
)

const (
	reviewCacheTTL  = 24 * time.Hour
	reviewCacheSize = 256

	minReviewYear = 1990
	maxReviewYear = 2030
)

// Review is the structured per-vehicle verdict the model is asked for.
type Review struct {
	Summary             string   `json:"summary"`
	Pros                []string `json:"pros"`
	Cons                []string `json:"cons"`
	ReliabilityRating   float64  `json:"reliability_rating"`
	ReliabilitySummary  string   `json:"reliability_summary"`
	OwnerSentiment      string   `json:"owner_sentiment"`
	FairPriceAssessment string   `json:"fair_price_assessment"`
	PriceVerdict        string   `json:"price_verdict"`
	KnownIssues         []string `json:"known_issues"`
	RecallInfo          string   `json:"recall_info"`
	InsuranceEstimate   string   `json:"insurance_estimate"`
	CostToOwnNotes      string   `json:"cost_to_own_notes"`
	PlatformNotes       *string  `json:"platform_notes"`
}

// ReviewSource is a reference link the caller can show next to the model
// verdict, so the shopper can check the claims themselves.
type ReviewSource struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// reviewRequest carries year, price and mileage as any so both JSON
// numbers and numeric strings are accepted.
type reviewRequest struct {
	Make    string `json:"make"`
	Model   string `json:"model"`
	Year    any    `json:"year"`
	Price   any    `json:"price"`
	Mileage any    `json:"mileage"`
	Source  string `json:"source"`
}

func intField(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

// validateReview checks the request and reports every violation at once.
func validateReview(req reviewRequest) (year, price, mileage int, err error) {
	var violations []string
	if strings.TrimSpace(req.Make) == "" {
		violations = append(violations, "make is required")
	}
	if strings.TrimSpace(req.Model) == "" {
		violations = append(violations, "model is required")
	}
	switch {
	case req.Year == nil:
		violations = append(violations, "year is required")
	default:
		parsed, ok := intField(req.Year)
		if !ok {
			violations = append(violations, "year must be a number")
		} else if parsed < minReviewYear || parsed > maxReviewYear {
			violations = append(violations,
				fmt.Sprintf("year must be between %d and %d", minReviewYear, maxReviewYear))
		} else {
			year = parsed
		}
	}
	price, _ = intField(req.Price)
	mileage, _ = intField(req.Mileage)
	if len(violations) > 0 {
		return 0, 0, 0, errors.New(strings.Join(violations, "; "))
	}
	return year, price, mileage, nil
}

var reviewTemplate = template.Must(template.New("review").Parse(
	`Write a buyer-focused review of the {{.Year}} {{.Make}} {{.Model}}.
{{- if .Price}}
The listing the shopper found asks ${{.Price}}.{{end}}
{{- if .Mileage}}
It has {{.Mileage}} miles on it.{{end}}
{{- if .Source}}
The listing was found on {{.Source}}; note anything a buyer should know about listings from that platform in platform_notes.{{end}}

Respond with ONLY a JSON object, no prose and no markdown, with exactly these keys:
{
  "summary": "two or three sentences on this vehicle for a used buyer",
  "pros": ["four to six short strengths"],
  "cons": ["three to five short weaknesses"],
  "reliability_rating": 1-5,
  "reliability_summary": "one or two sentences",
  "owner_sentiment": "what owners tend to say",
  "fair_price_assessment": "what this vehicle usually goes for used",
  "price_verdict": "one of great_deal, good_deal, fair, above_market, overpriced",
  "known_issues": ["model-specific problems to inspect for"],
  "recall_info": "notable recalls, or that there are none",
  "insurance_estimate": "rough monthly insurance range",
  "cost_to_own_notes": "fuel, maintenance and repair expectations",
  "platform_notes": null or "notes about the listing platform"
}`))

type reviewPromptData struct {
	Make    string
	Model   string
	Year    int
	Price   int
	Mileage int
	Source  string
}

func buildReviewPrompt(data reviewPromptData) (string, error) {
	var b strings.Builder
	if err := reviewTemplate.Execute(&b, data); err != nil {
		return "", fmt.Errorf("rendering prompt: %w", err)
	}
	return b.String(), nil
}

// ParseReview decodes a model response into a Review.
func ParseReview(text string) (Review, error) {
	raw, err := cutJSONObject(text)
	if err != nil {
		return Review{}, err
	}

	var review Review
	if err := json.Unmarshal(raw, &review); err != nil {
		return Review{}, fmt.Errorf("decoding review: %w", err)
	}
	if review.Summary == "" {
		return Review{}, fmt.Errorf("review held no summary")
	}
	for _, list := range []*[]string{&review.Pros, &review.Cons, &review.KnownIssues} {
		if *list == nil {
			*list = []string{}
		}
	}
	return review, nil
}

func slugify(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "-")
}

// reviewSources builds the reference links for a make/model/year, so the
// shopper can verify the model's claims against real review sites.
func reviewSources(makeName, modelName string, year int) []ReviewSource {
	makeSlug, modelSlug := slugify(makeName), slugify(modelName)
	upper := func(s string) string {
		return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(s)), " ", "+")
	}
	plus := func(s string) string {
		return strings.ReplaceAll(strings.TrimSpace(s), " ", "+")
	}
	return []ReviewSource{
		{Name: "Edmunds", URL: fmt.Sprintf("https://www.edmunds.com/%s/%s/%d/review/", makeSlug, modelSlug, year)},
		{Name: "Kelley Blue Book", URL: fmt.Sprintf("https://www.kbb.com/%s/%s/%d/", makeSlug, modelSlug, year)},
		{Name: "Car and Driver", URL: fmt.Sprintf("https://www.caranddriver.com/%s/%s/", makeSlug, modelSlug)},
		{Name: "Consumer Reports", URL: fmt.Sprintf("https://www.consumerreports.org/cars/%s/%s/%d/overview/", makeSlug, modelSlug, year)},
		{Name: "NHTSA", URL: fmt.Sprintf("https://www.nhtsa.gov/vehicle/%d/%s/%s", year, upper(makeName), upper(modelName))},
		{Name: "Reddit r/whatcarshouldIbuy", URL: fmt.Sprintf("https://www.reddit.com/r/whatcarshouldIbuy/search/?q=%s+%s+%d", plus(makeName), plus(modelName), year)},
	}
}

func reviewKey(makeName, modelName string, year int) string {
	return fmt.Sprintf("%s_%s_%d", strings.ToLower(makeName), strings.ToLower(modelName), year)
}

func (s *Service) handleReview(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	ctx, span := tracer.Start(r.Context(), "Review")
	defer span.End()

	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		search.WriteError(w, http.StatusBadRequest, "request body must be a JSON object")
		return
	}
	year, price, mileage, err := validateReview(req)
	if err != nil {
		search.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	sources := reviewSources(req.Make, req.Model, year)
	key := reviewKey(req.Make, req.Model, year)
	if cached, ok := s.reviews.Get(key); ok {
		s.respondReview(w, cached, sources, true)
		return
	}

	prompt, err := buildReviewPrompt(reviewPromptData{
		Make: req.Make, Model: req.Model, Year: year,
		Price: price, Mileage: mileage, Source: req.Source,
	})
	if err != nil {
		search.WriteError(w, http.StatusInternalServerError, "building prompt failed")
		return
	}

	text, err := s.gemini.Generate(ctx, prompt)
	if errors.Is(err, ErrNoAPIKey) {
		search.WriteError(w, http.StatusServiceUnavailable, "reviews are unavailable without a configured model")
		return
	}
	if err != nil {
		search.WriteError(w, http.StatusBadGateway, "model request failed")
		return
	}
	review, err := ParseReview(text)
	if err != nil {
		search.WriteError(w, http.StatusBadGateway, "model returned an unparsable review")
		return
	}

	s.reviews.Add(key, review)
	s.respondReview(w, review, sources, false)
}

func (s *Service) respondReview(w http.ResponseWriter, review Review, sources []ReviewSource, cached bool) {
	search.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"review":  review,
		"sources": sources,
		"cached":  cached,
	})
}
