package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// HTTPSearchBackend implements SearchBackend against a configured search API
// endpoint (e.g. a hosted SERP API). It is deliberately generic: the query
// string is passed through verbatim and the response body's raw text is
// handed back to the model to extract results from.
type HTTPSearchBackend struct {
	Endpoint string
	APIKey   string
	Client   *http.Client
}

// NewHTTPSearchBackend creates a backend pointed at endpoint, using client
// if non-nil or a 10s-timeout default otherwise.
func NewHTTPSearchBackend(endpoint, apiKey string, client *http.Client) *HTTPSearchBackend {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPSearchBackend{Endpoint: endpoint, APIKey: apiKey, Client: client}
}

func (b *HTTPSearchBackend) Search(ctx context.Context, query string) (string, error) {
	reqURL := fmt.Sprintf("%s?q=%s", b.Endpoint, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", err
	}
	if b.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.APIKey)
	}

	resp, err := b.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", fmt.Errorf("search capability quota exceeded: %s", resp.Status)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("search backend returned %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	return string(body), nil
}
