package toolbus

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultSearchURL   = "https://en.wikipedia.org/w/api.php"
	defaultSearchLimit = 3
	searchTimeout      = 15 * time.Second
)

func webSearchTool() Tool {
	return Tool{
		Name:        "web_search",
		Description: "Search the web for a short phrase and return top results",
		Invoke: func(ctx context.Context, rt *Runtime, arg string) (string, error) {
			return webSearch(ctx, rt, strings.TrimSpace(arg))
		},
	}
}

// webSearch queries the Wikipedia OpenSearch API. The response is a
// four-element array: [query, titles, descriptions, links].
func webSearch(ctx context.Context, rt *Runtime, query string) (string, error) {
	if query == "" {
		return "", fmt.Errorf("empty search query")
	}

	limit := rt.SearchLimit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	endpoint := rt.SearchURL
	if endpoint == "" {
		endpoint = defaultSearchURL
	}

	params := url.Values{}
	params.Set("action", "opensearch")
	params.Set("limit", fmt.Sprint(limit))
	params.Set("namespace", "0")
	params.Set("format", "json")
	params.Set("search", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}

	client := rt.HTTP
	if client == nil {
		client = &http.Client{Timeout: searchTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}

	var payload []json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("unexpected search response: %w", err)
	}
	if len(payload) < 4 {
		return "", fmt.Errorf("unexpected search response: want 4 elements, got %d", len(payload))
	}

	var titles, descs, links []string
	if err := json.Unmarshal(payload[1], &titles); err != nil {
		return "", fmt.Errorf("unexpected search response: %w", err)
	}
	if err := json.Unmarshal(payload[2], &descs); err != nil {
		return "", fmt.Errorf("unexpected search response: %w", err)
	}
	if err := json.Unmarshal(payload[3], &links); err != nil {
		return "", fmt.Errorf("unexpected search response: %w", err)
	}

	if len(titles) == 0 {
		return "<no results>", nil
	}

	var sb strings.Builder
	for i, title := range titles {
		desc, link := "", ""
		if i < len(descs) {
			desc = descs[i]
		}
		if i < len(links) {
			link = links[i]
		}
		fmt.Fprintf(&sb, "- %s: %s\n  %s\n", title, desc, link)
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}
