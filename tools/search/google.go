package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/casualjim/roost/pkg/textx"
	"github.com/casualjim/roost/tool"
	"github.com/fogfish/opts"
	"github.com/tidwall/gjson"
)

const googleEndpoint = "https://www.googleapis.com/customsearch/v1"

// Google queries the Custom Search JSON API.
type Google struct {
	apiKey   string
	cx       string
	endpoint string
	client   *http.Client
}

var (
	GoogleEndpoint   = opts.ForName[Google, string]("endpoint")
	GoogleHTTPClient = opts.ForName[Google, *http.Client]("client")
)

func NewGoogle(apiKey, cx string, options ...opts.Option[Google]) (*Google, error) {
	g := &Google{
		apiKey:   apiKey,
		cx:       cx,
		endpoint: googleEndpoint,
		client:   http.DefaultClient,
	}
	if err := opts.Apply(g, options); err != nil {
		return nil, err
	}
	if g.apiKey == "" || g.cx == "" {
		return nil, fmt.Errorf("google search needs an api key and a search engine id")
	}
	return g, nil
}

// Search returns up to 10 results.
func (g *Google) Search(ctx context.Context, query string) (Results, error) {
	return g.SearchN(ctx, query, 10)
}

// SearchN returns up to num results; the API caps num at 10.
func (g *Google) SearchN(ctx context.Context, query string, num int) (Results, error) {
	if num <= 0 || num > 10 {
		num = 10
	}

	params := url.Values{}
	params.Set("key", g.apiKey)
	params.Set("cx", g.cx)
	params.Set("q", query)
	params.Set("num", strconv.Itoa(num))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return Results{}, err
	}
	body, err := do(g.client, req)
	if err != nil {
		return Results{}, fmt.Errorf("google search %q: %w", query, err)
	}

	doc := gjson.ParseBytes(body)
	out := Results{
		Query:   query,
		Total:   doc.Get("searchInformation.totalResults").Int(),
		Results: []Result{},
	}
	for _, item := range doc.Get("items").Array() {
		title := item.Get("title").String()
		if title == "" {
			title = "No Title"
		}
		out.Results = append(out.Results, Result{
			Title:   title,
			URL:     item.Get("link").String(),
			Content: textx.Truncate(item.Get("snippet").String(), maxSnippet),
		})
	}
	out.Count = len(out.Results)
	return out, nil
}

// Tool exposes the search to an agent.
func (g *Google) Tool() tool.Definition {
	return tool.Must(g.SearchN,
		tool.Name("google_search_tool"),
		tool.Description("Searches Google for information based on a query and returns relevant results with titles, URLs, and snippets."),
		tool.Parameters("query", "num"),
	)
}
