package reranker

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"ragsuite/internal/apierr"
)

// Client is the orchestrator-side RPC client for the reranker service, per
// original_source's reranker_api_client.py.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{baseURL: baseURL, http: &http.Client{Timeout: timeout}}
}

// Rerank calls POST /rerank on the reranker service.
func (c *Client) Rerank(ctx context.Context, model, query string, documents []string, topN *int) ([]Result, error) {
	payload := map[string]any{"model": model, "query": query, "documents": documents}
	if topN != nil {
		payload["top_n"] = *topN
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apierr.ExternalService("RerankerApiClient", c.baseURL+"/rerank", 0, err.Error(), err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return nil, apierr.ExternalService("RerankerApiClient", c.baseURL+"/rerank", resp.StatusCode, string(respBody), nil)
	}

	var parsed struct {
		Results []struct {
			Index          int     `json:"index"`
			RelevanceScore float64 `json:"relevance_score"`
		} `json:"results"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, apierr.ExternalService("RerankerApiClient", c.baseURL+"/rerank", resp.StatusCode, "malformed JSON response", err)
	}

	results := make([]Result, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		results = append(results, Result{Index: r.Index, RelevanceScore: r.RelevanceScore})
	}
	return results, nil
}
