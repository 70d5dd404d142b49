package insights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/natelasko528/milwaukee-vehicle-finder/lib/telemetry"
)

var tracer = telemetry.Tracer("services/insights")

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"

// model fallback order: fastest first, strongest last
var defaultModels = []string{
	"gemini-1.5-flash",
	"gemini-1.5-flash-8b",
	"gemini-1.5-pro",
}

// ErrNoAPIKey means the client was built without credentials and can only
// be used through the local fallback path.
var ErrNoAPIKey = errors.New("no gemini api key configured")

// GeminiClient calls the generateContent endpoint, walking a fallback
// chain of models when one is overloaded or unavailable.
type GeminiClient struct {
	http   *resty.Client
	apiKey string
	models []string
	// BaseURL overrides the API origin, used by tests.
	BaseURL string
}

func NewGeminiClient(httpClient *resty.Client, apiKey string, models ...string) *GeminiClient {
	if len(models) == 0 {
		models = defaultModels
	}
	return &GeminiClient{
		http:    httpClient,
		apiKey:  apiKey,
		models:  models,
		BaseURL: defaultGeminiBaseURL,
	}
}

const (
	roleUser  = "user"
	roleModel = "model"
)

// Turn is one side of a chat exchange, already mapped to Gemini roles.
type Turn struct {
	Role string
	Text string
}

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"system_instruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// Generate sends the prompt to each model in order until one answers.
func (c *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	text, _, err := c.complete(ctx, "Generate", geminiRequest{
		Contents: []geminiContent{{Role: roleUser, Parts: []geminiPart{{Text: prompt}}}},
	})
	return text, err
}

// GenerateChat sends a multi-turn conversation under a system instruction
// and reports which model answered.
func (c *GeminiClient) GenerateChat(ctx context.Context, system string, turns []Turn) (string, string, error) {
	req := geminiRequest{}
	if system != "" {
		req.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: system}}}
	}
	for _, turn := range turns {
		req.Contents = append(req.Contents, geminiContent{
			Role:  turn.Role,
			Parts: []geminiPart{{Text: turn.Text}},
		})
	}
	return c.complete(ctx, "GenerateChat", req)
}

func (c *GeminiClient) complete(ctx context.Context, spanName string, req geminiRequest) (string, string, error) {
	ctx, span := tracer.Start(ctx, spanName)
	defer span.End()

	if c.apiKey == "" {
		return "", "", ErrNoAPIKey
	}

	var lastErr error
	for _, model := range c.models {
		text, err := c.generateWith(ctx, model, req)
		if err == nil {
			span.SetAttributes(attribute.String("model", model))
			return text, model, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}

	span.RecordError(lastErr)
	span.SetStatus(codes.Error, "all models failed")
	return "", "", fmt.Errorf("all models failed: %w", lastErr)
}

func (c *GeminiClient) generateWith(ctx context.Context, model string, req geminiRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	var text string
	operation := func() error {
		res, err := c.http.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetQueryParam("key", c.apiKey).
			SetBody(body).
			Post(fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.BaseURL, model))
		if err != nil {
			return err
		}

		switch {
		case res.StatusCode() == http.StatusOK:
		case res.StatusCode() == http.StatusTooManyRequests,
			res.StatusCode() >= http.StatusInternalServerError:
			return fmt.Errorf("model %s returned status %d", model, res.StatusCode())
		default:
			return backoff.Permanent(fmt.Errorf("model %s returned status %d", model, res.StatusCode()))
		}

		var parsed geminiResponse
		if err := json.Unmarshal(res.Body(), &parsed); err != nil {
			return backoff.Permanent(fmt.Errorf("decoding response: %w", err))
		}
		if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
			return backoff.Permanent(errors.New("response held no candidates"))
		}
		text = parsed.Candidates[0].Content.Parts[0].Text
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 250 * time.Millisecond
	policy.MaxInterval = 3 * time.Second
	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, 2), ctx)); err != nil {
		return "", err
	}
	return text, nil
}
