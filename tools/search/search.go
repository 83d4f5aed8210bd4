// Package search has web search backends that agents can call as tools.
package search

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/casualjim/roost/pkg/textx"
)

// Results is what every backend returns for a query.
type Results struct {
	Query   string   `json:"query"`
	Count   int      `json:"results_count"`
	Total   int64    `json:"total,omitempty"`
	Results []Result `json:"results"`
}

type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

const maxSnippet = 500

func do(client *http.Client, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("%s %s: %s: %s", req.Method, req.URL.Host, resp.Status, textx.Truncate(string(body), 200))
	}
	return body, nil
}

// Searcher is implemented by every backend.
type Searcher interface {
	Search(ctx context.Context, query string) (Results, error)
}
