package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/emrekaya/advisor/pkg/config"
	"github.com/emrekaya/advisor/pkg/httpclient"
)

const defaultTavilyBaseURL = "https://api.tavily.com"

// SearchTool queries the Tavily search API and returns formatted results.
type SearchTool struct {
	name       string
	cfg        *config.ToolConfig
	baseURL    string
	httpClient *httpclient.Client
}

type tavilySearchRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results,omitempty"`
}

type tavilySearchResponse struct {
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
	Answer string `json:"answer,omitempty"`
}

func NewSearchTool(name string, cfg *config.ToolConfig) *SearchTool {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultTavilyBaseURL
	}

	return &SearchTool{
		name:    name,
		cfg:     cfg,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second}),
			httpclient.WithMaxRetries(cfg.MaxRetries),
		),
	}
}

func (t *SearchTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        t.name,
		Description: "Searches the web for current information. Returns titles, URLs, and content snippets for the top results.",
		Parameters: []ToolParameter{
			{
				Name:        "query",
				Type:        "string",
				Description: "The search query",
				Required:    true,
			},
		},
	}
}

func (t *SearchTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	query, ok := args["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("%w: query parameter is required", ErrInvalidArguments)
	}

	maxResults := t.cfg.MaxResults
	if maxResults == 0 {
		maxResults = 5
	}

	payload, err := json.Marshal(tavilySearchRequest{Query: query, MaxResults: maxResults})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEvaluation, err)
	}

	resp, err := t.post(ctx, "/search", payload)
	if err != nil {
		return "", err
	}

	var parsed tavilySearchResponse
	if err := json.Unmarshal(resp, &parsed); err != nil {
		return "", fmt.Errorf("%w: malformed search response: %v", ErrEvaluation, err)
	}

	if len(parsed.Results) == 0 {
		return "No results found.", nil
	}

	var sb strings.Builder
	if parsed.Answer != "" {
		sb.WriteString(parsed.Answer)
		sb.WriteString("\n\n")
	}
	for i, r := range parsed.Results {
		fmt.Fprintf(&sb, "%d. %s (%s)\n%s\n", i+1, r.Title, r.URL, r.Content)
	}
	return sb.String(), nil
}

func (t *SearchTool) post(ctx context.Context, path string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEvaluation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if t.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.cfg.APIKey)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrEvaluation, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrEvaluation, err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrEvaluation, resp.StatusCode, truncate(string(body), 200))
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
