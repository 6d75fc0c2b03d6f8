package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/emrekaya/advisor/pkg/config"
	"github.com/emrekaya/advisor/pkg/httpclient"
)

// ScrapeTool extracts the readable content of a web page via the Tavily
// extract API.
type ScrapeTool struct {
	name       string
	cfg        *config.ToolConfig
	baseURL    string
	httpClient *httpclient.Client
}

type tavilyExtractRequest struct {
	URLs []string `json:"urls"`
}

type tavilyExtractResponse struct {
	Results []struct {
		URL        string `json:"url"`
		RawContent string `json:"raw_content"`
	} `json:"results"`
	FailedResults []struct {
		URL   string `json:"url"`
		Error string `json:"error"`
	} `json:"failed_results,omitempty"`
}

func NewScrapeTool(name string, cfg *config.ToolConfig) *ScrapeTool {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultTavilyBaseURL
	}

	return &ScrapeTool{
		name:    name,
		cfg:     cfg,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second}),
			httpclient.WithMaxRetries(cfg.MaxRetries),
		),
	}
}

func (t *ScrapeTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        t.name,
		Description: "Extracts the readable text content of a web page given its URL.",
		Parameters: []ToolParameter{
			{
				Name:        "url",
				Type:        "string",
				Description: "The URL of the page to extract",
				Required:    true,
			},
		},
	}
}

func (t *ScrapeTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	rawURL, ok := args["url"].(string)
	if !ok || rawURL == "" {
		return "", fmt.Errorf("%w: url parameter is required", ErrInvalidArguments)
	}

	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return "", fmt.Errorf("%w: invalid url %q", ErrInvalidArguments, rawURL)
	}

	payload, err := json.Marshal(tavilyExtractRequest{URLs: []string{rawURL}})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEvaluation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/extract", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEvaluation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if t.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.cfg.APIKey)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: %v", ErrEvaluation, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read response: %v", ErrEvaluation, err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("%w: HTTP %d: %s", ErrEvaluation, resp.StatusCode, truncate(string(body), 200))
	}

	var extracted tavilyExtractResponse
	if err := json.Unmarshal(body, &extracted); err != nil {
		return "", fmt.Errorf("%w: malformed extract response: %v", ErrEvaluation, err)
	}

	if len(extracted.Results) == 0 {
		if len(extracted.FailedResults) > 0 {
			return "", fmt.Errorf("%w: extraction failed for %s: %s",
				ErrEvaluation, extracted.FailedResults[0].URL, extracted.FailedResults[0].Error)
		}
		return "", fmt.Errorf("%w: no content extracted", ErrEvaluation)
	}

	return extracted.Results[0].RawContent, nil
}
