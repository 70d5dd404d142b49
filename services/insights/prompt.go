package insights

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/natelasko528/milwaukee-vehicle-finder/lib/vehicle"
)

// maxPromptListings bounds the prompt size; the cheapest entries carry
// the most signal for a value-focused analysis anyway.
const maxPromptListings = 25

var promptTemplate = template.Must(template.New("analysis").Parse(
	`You are helping a used-car shopper compare listings. Here are the candidates:

{{range .Listings}}- [{{.ID}}] {{.Title}} | ${{.Price}}{{if .Mileage}} | {{.Mileage}} miles{{end}}{{if .Year}} | year {{.Year}}{{end}} | {{.Source}}
{{end}}
{{- if .Question}}
The shopper asked: {{.Question}}
{{end}}
Respond with ONLY a JSON object, no prose and no markdown, in this shape:
{
  "summary": "two or three sentences on the overall set",
  "price_assessment": "whether these prices look high, fair or low",
  "top_picks": [{"id": "listing id from above", "reason": "one sentence"}],
  "red_flags": ["short warnings, empty array if none"]
}`))

type promptData struct {
	Listings []vehicle.Listing
	Question string
}

// BuildPrompt renders the analysis prompt for up to maxPromptListings
// listings. Input is assumed price-sorted, so truncation keeps the
// cheapest entries.
func BuildPrompt(listings []vehicle.Listing, question string) (string, error) {
	if len(listings) > maxPromptListings {
		listings = listings[:maxPromptListings]
	}
	var b strings.Builder
	err := promptTemplate.Execute(&b, promptData{Listings: listings, Question: question})
	if err != nil {
		return "", fmt.Errorf("rendering prompt: %w", err)
	}
	return b.String(), nil
}

// TopPick is one model-recommended listing.
type TopPick struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// Analysis is the structured verdict over a result set, whether the
// model produced it or the local fallback did.
type Analysis struct {
	Summary         string    `json:"summary"`
	PriceAssessment string    `json:"price_assessment"`
	TopPicks        []TopPick `json:"top_picks"`
	RedFlags        []string  `json:"red_flags"`
}

// cutJSONObject strips markdown fences and cuts the outermost JSON
// object out of a model reply. Models wrap JSON in fences or chat
// around it despite instructions.
func cutJSONObject(text string) ([]byte, error) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("response held no JSON object")
	}
	return []byte(cleaned[start : end+1]), nil
}

// ParseAnalysis decodes a model response into an Analysis.
func ParseAnalysis(text string) (Analysis, error) {
	raw, err := cutJSONObject(text)
	if err != nil {
		return Analysis{}, err
	}

	var analysis Analysis
	if err := json.Unmarshal(raw, &analysis); err != nil {
		return Analysis{}, fmt.Errorf("decoding analysis: %w", err)
	}
	if analysis.Summary == "" {
		return Analysis{}, fmt.Errorf("analysis held no summary")
	}
	if analysis.TopPicks == nil {
		analysis.TopPicks = []TopPick{}
	}
	if analysis.RedFlags == nil {
		analysis.RedFlags = []string{}
	}
	return analysis, nil
}
