package search

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/casualjim/roost/tool"
	"github.com/fogfish/opts"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const firecrawlEndpoint = "https://api.firecrawl.dev/v2/search"

// Firecrawl queries the Firecrawl search API.
type Firecrawl struct {
	apiKey   string
	endpoint string
	limit    int
	client   *http.Client
}

var (
	FirecrawlEndpoint   = opts.ForName[Firecrawl, string]("endpoint")
	FirecrawlLimit      = opts.ForName[Firecrawl, int]("limit")
	FirecrawlHTTPClient = opts.ForName[Firecrawl, *http.Client]("client")
)

func NewFirecrawl(apiKey string, options ...opts.Option[Firecrawl]) (*Firecrawl, error) {
	f := &Firecrawl{
		apiKey:   apiKey,
		endpoint: firecrawlEndpoint,
		limit:    5,
		client:   http.DefaultClient,
	}
	if err := opts.Apply(f, options); err != nil {
		return nil, err
	}
	if f.apiKey == "" {
		return nil, fmt.Errorf("firecrawl needs an api key")
	}
	return f, nil
}

func (f *Firecrawl) Search(ctx context.Context, query string) (Results, error) {
	payload, err := sjson.SetBytes(nil, "query", query)
	if err != nil {
		return Results{}, err
	}
	if payload, err = sjson.SetBytes(payload, "limit", f.limit); err != nil {
		return Results{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint, bytes.NewReader(payload))
	if err != nil {
		return Results{}, err
	}
	req.Header.Set("Authorization", "Bearer "+f.apiKey)
	req.Header.Set("Content-Type", "application/json")

	body, err := do(f.client, req)
	if err != nil {
		return Results{}, fmt.Errorf("firecrawl search %q: %w", query, err)
	}

	doc := gjson.ParseBytes(body)
	if ok := doc.Get("success"); ok.Exists() && !ok.Bool() {
		return Results{}, fmt.Errorf("firecrawl search %q: %s", query, doc.Get("error").String())
	}

	// v2 nests web results under data.web, v1 returns them as data
	items := doc.Get("data.web")
	if !items.Exists() {
		items = doc.Get("data")
	}

	out := Results{Query: query, Results: []Result{}}
	for _, item := range items.Array() {
		title := item.Get("title").String()
		if title == "" {
			title = "No Title"
		}
		out.Results = append(out.Results, Result{
			Title:   title,
			URL:     item.Get("url").String(),
			Content: item.Get("description").String(),
		})
	}
	out.Count = len(out.Results)
	return out, nil
}

func (f *Firecrawl) Tool() tool.Definition {
	return tool.Must(f.Search,
		tool.Name("web_search_tool"),
		tool.Description("Searches the web for information based on a query and returns relevant results with titles, URLs, and content snippets."),
		tool.Parameters("query"),
	)
}
