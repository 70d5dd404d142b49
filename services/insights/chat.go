package insights

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/natelasko528/milwaukee-vehicle-finder/lib/ratelimit"
	"github.com/natelasko528/milwaukee-vehicle-finder/services/search"
)

const (
	chatRateLimit  = 30
	chatRateWindow = time.Minute
)

const chatSystemPrompt = `You are the vehicle intelligence assistant for a Milwaukee area used-car search service. You help shoppers evaluate listings, compare vehicles and decide what to pay. Be direct and honest about problems and call out bad deals plainly. Keep answers concise, two to four short paragraphs at most, and use bullet lists for comparisons. When vehicle context is provided, ground your answer in it rather than speaking generically.`

// ChatMessage is one turn of the conversation as the frontend sends it,
// with assistant replies echoed back for continuity.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatContext struct {
	CurrentVehicle map[string]any `json:"current_vehicle"`
	SearchSummary  map[string]any `json:"search_results_summary"`
}

type chatRequest struct {
	Messages []ChatMessage `json:"messages"`
	Context  *chatContext  `json:"context"`
}

// renderChatContext flattens the page context into a plain-text block the
// model can be primed with. Keys are sorted so the output is stable.
func renderChatContext(c *chatContext) string {
	if c == nil {
		return ""
	}
	var b strings.Builder
	writeSection := func(header string, fields map[string]any) {
		if len(fields) == 0 {
			return
		}
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(header)
		b.WriteString("\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "%s: %v\n", k, fields[k])
		}
	}
	writeSection("CURRENT VEHICLE THE USER IS VIEWING:", c.CurrentVehicle)
	writeSection("USER'S SEARCH RESULTS SUMMARY:", c.SearchSummary)
	return strings.TrimSpace(b.String())
}

// buildChatTurns maps the frontend conversation onto Gemini turns. Page
// context rides in as a leading user turn with a canned acknowledgement,
// so the visible conversation stays untouched.
func buildChatTurns(req chatRequest) []Turn {
	var turns []Turn
	if block := renderChatContext(req.Context); block != "" {
		turns = append(turns,
			Turn{Role: roleUser, Text: "[Context for this conversation, do not repeat it back to the user]\n\n" + block},
			Turn{Role: roleModel, Text: "Understood. I have the vehicle context loaded."},
		)
	}
	for _, msg := range req.Messages {
		role := roleUser
		if msg.Role == "assistant" {
			role = roleModel
		}
		turns = append(turns, Turn{Role: role, Text: msg.Content})
	}
	return turns
}

func (s *Service) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	ctx, span := tracer.Start(r.Context(), "Chat")
	defer span.End()

	if !s.chatLimiter.Allow(ratelimit.ClientIP(r)) {
		search.WriteError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		search.WriteError(w, http.StatusBadRequest, "request body must be a JSON object")
		return
	}
	if len(req.Messages) == 0 {
		search.WriteError(w, http.StatusBadRequest, "messages must not be empty")
		return
	}

	text, model, err := s.gemini.GenerateChat(ctx, chatSystemPrompt, buildChatTurns(req))
	if errors.Is(err, ErrNoAPIKey) {
		search.WriteError(w, http.StatusServiceUnavailable, "chat is unavailable without a configured model")
		return
	}
	if err != nil {
		search.WriteError(w, http.StatusBadGateway, "model request failed")
		return
	}

	search.WriteJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"response":  text,
		"model":     model,
		"timestamp": time.Now(),
	})
}
