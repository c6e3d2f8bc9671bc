package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	serperAPIURL     = "https://google.serper.dev/search"
	serperMaxResults = 5
)

// WebSearch queries the Serper web search API (google.serper.dev) so the
// analyst can contextualize a filing against recent market information.
// Requires SERPER_API_KEY in the environment.
type WebSearch struct{}

// Name implements the crew tool contract.
func (WebSearch) Name() string { return "search_web" }

// Description is shown to the agent in its tool list.
func (WebSearch) Description() string {
	return `search the web for recent market or company information. Args: {"query":"<search terms>"}`
}

// Call runs a web search for args["query"].
func (WebSearch) Call(ctx context.Context, args map[string]string) (string, error) {
	query := strings.TrimSpace(args["query"])
	if query == "" {
		return "", fmt.Errorf("websearch: missing required arg \"query\"")
	}
	return Search(ctx, query)
}

// Search queries the Serper API and returns a formatted text summary of the
// top organic results (plus the answer box when present).
//
// Expectations:
//   - Returns an error when SERPER_API_KEY is not set
//   - Returns a formatted result string when the API responds with organic hits
//   - Returns a "no results" message when the organic list is empty
//   - Caps output at serperMaxResults results
func Search(ctx context.Context, query string) (string, error) {
	apiKey := os.Getenv("SERPER_API_KEY")
	if apiKey == "" {
		return "", fmt.Errorf("websearch: SERPER_API_KEY not set")
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	reqBody, err := json.Marshal(map[string]any{
		"q":   query,
		"num": serperMaxResults,
	})
	if err != nil {
		return "", fmt.Errorf("websearch: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, serperAPIURL, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("websearch: create request: %w", err)
	}
	req.Header.Set("X-API-KEY", apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("websearch: http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("websearch: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("websearch: HTTP %d: %s", resp.StatusCode, string(body))
	}

	var result serperResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("websearch: parse response: %w", err)
	}

	return formatSerperResult(query, &result), nil
}

type serperResponse struct {
	AnswerBox struct {
		Answer  string `json:"answer"`
		Snippet string `json:"snippet"`
		Title   string `json:"title"`
	} `json:"answerBox"`
	Organic []serperHit `json:"organic"`
}

type serperHit struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
	Date    string `json:"date"`
}

// formatSerperResult converts a Serper API response into a readable text block.
//
// Expectations:
//   - Returns "no results" message when both answer box and organic list are empty
//   - Leads with the answer box when present
//   - Includes title, snippet, and URL for each organic result
//   - Omits the date when empty
//   - Separates results with a blank line
func formatSerperResult(query string, r *serperResponse) string {
	var sb strings.Builder

	if answer := firstNonEmpty(r.AnswerBox.Answer, r.AnswerBox.Snippet); answer != "" {
		sb.WriteString("Answer: ")
		sb.WriteString(answer)
		sb.WriteString("\n\n")
	}

	for i, hit := range r.Organic {
		if i >= serperMaxResults {
			break
		}
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(hit.Title)
		sb.WriteString("\n")
		if hit.Snippet != "" {
			sb.WriteString(hit.Snippet)
			sb.WriteString("\n")
		}
		if hit.Date != "" {
			sb.WriteString(hit.Date)
			sb.WriteString(" ")
		}
		sb.WriteString(hit.Link)
		sb.WriteString("\n")
	}

	out := strings.TrimRight(sb.String(), "\n")
	if out == "" {
		return fmt.Sprintf("No results found for: %q", query)
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
