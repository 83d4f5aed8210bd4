// Package finance looks up company fundamentals for investment agents.
package finance

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/casualjim/roost/pkg/textx"
	"github.com/casualjim/roost/tool"
	"github.com/fogfish/opts"
	"github.com/tidwall/gjson"
)

const (
	chartEndpoint   = "https://query1.finance.yahoo.com/v8/finance/chart/"
	summaryEndpoint = "https://query2.finance.yahoo.com/v10/finance/quoteSummary/"
	summaryModules  = "price,assetProfile,summaryDetail,defaultKeyStatistics,financialData,incomeStatementHistory"
	maxSummary      = 500
)

// Metric is a number that may be unavailable. It marshals as "N/A" when
// missing.
type Metric struct {
	Value float64
	Valid bool
}

func metric(r gjson.Result) Metric {
	if !r.Exists() || r.Type == gjson.Null {
		return Metric{}
	}
	return Metric{Value: r.Float(), Valid: true}
}

func (m Metric) MarshalJSON() ([]byte, error) {
	if !m.Valid {
		return []byte(`"N/A"`), nil
	}
	return []byte(strconv.FormatFloat(m.Value, 'f', -1, 64)), nil
}

// Company is a financial and business profile of a listed company.
type Company struct {
	Ticker          string `json:"ticker"`
	Name            string `json:"company_name"`
	Sector          string `json:"sector"`
	Industry        string `json:"industry"`
	MarketCap       Metric `json:"market_cap"`
	CurrentPrice    Metric `json:"current_price"`
	PeriodHigh      Metric `json:"52_week_high"`
	PeriodLow       Metric `json:"52_week_low"`
	PERatio         Metric `json:"pe_ratio"`
	ForwardPE       Metric `json:"forward_pe"`
	PriceToBook     Metric `json:"price_to_book"`
	RevenueGrowth   string `json:"revenue_growth"`
	ProfitMargin    Metric `json:"profit_margin"`
	OperatingMargin Metric `json:"operating_margin"`
	DebtToEquity    Metric `json:"debt_to_equity"`
	ReturnOnEquity  Metric `json:"return_on_equity"`
	DividendYield   Metric `json:"dividend_yield"`
	Summary         string `json:"business_summary"`
}

// Yahoo reads the public Yahoo Finance endpoints.
type Yahoo struct {
	chartURL   string
	summaryURL string
	client     *http.Client
}

var (
	ChartEndpoint   = opts.ForName[Yahoo, string]("chartURL")
	SummaryEndpoint = opts.ForName[Yahoo, string]("summaryURL")
	HTTPClient      = opts.ForName[Yahoo, *http.Client]("client")
)

func NewYahoo(options ...opts.Option[Yahoo]) *Yahoo {
	y := &Yahoo{
		chartURL:   chartEndpoint,
		summaryURL: summaryEndpoint,
		client:     http.DefaultClient,
	}
	if err := opts.Apply(y, options); err != nil {
		panic(err)
	}
	return y
}

// Company combines the price history over period (1d, 5d, 1mo, 1y, ...)
// with the quote summary of ticker.
func (y *Yahoo) Company(ctx context.Context, ticker, period string) (Company, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return Company{}, fmt.Errorf("a ticker is required")
	}
	if period == "" {
		period = "1y"
	}

	chart, err := y.get(ctx, y.chartURL+url.PathEscape(ticker), url.Values{"range": {period}, "interval": {"1d"}})
	if err != nil {
		return Company{}, fmt.Errorf("price history for %s: %w", ticker, err)
	}
	quote := chart.Get("chart.result.0.indicators.quote.0")
	closes := numbers(quote.Get("close"))
	if len(closes) == 0 {
		return Company{}, fmt.Errorf("no data found for ticker %s", ticker)
	}

	summary, err := y.get(ctx, y.summaryURL+url.PathEscape(ticker), url.Values{"modules": {summaryModules}})
	if err != nil {
		return Company{}, fmt.Errorf("quote summary for %s: %w", ticker, err)
	}
	qs := summary.Get("quoteSummary.result.0")

	c := Company{
		Ticker:          ticker,
		Name:            orNA(qs.Get("price.longName")),
		Sector:          orNA(qs.Get("assetProfile.sector")),
		Industry:        orNA(qs.Get("assetProfile.industry")),
		MarketCap:       metric(qs.Get("price.marketCap.raw")),
		CurrentPrice:    Metric{Value: closes[len(closes)-1], Valid: true},
		PeriodHigh:      highest(numbers(quote.Get("high"))),
		PeriodLow:       lowest(numbers(quote.Get("low"))),
		PERatio:         metric(qs.Get("summaryDetail.trailingPE.raw")),
		ForwardPE:       metric(qs.Get("summaryDetail.forwardPE.raw")),
		PriceToBook:     metric(qs.Get("defaultKeyStatistics.priceToBook.raw")),
		RevenueGrowth:   revenueGrowth(qs.Get("incomeStatementHistory.incomeStatementHistory.#.totalRevenue.raw")),
		ProfitMargin:    metric(qs.Get("financialData.profitMargins.raw")),
		OperatingMargin: metric(qs.Get("financialData.operatingMargins.raw")),
		DebtToEquity:    metric(qs.Get("financialData.debtToEquity.raw")),
		ReturnOnEquity:  metric(qs.Get("financialData.returnOnEquity.raw")),
		DividendYield:   metric(qs.Get("summaryDetail.dividendYield.raw")),
		Summary:         orNA(qs.Get("assetProfile.longBusinessSummary")),
	}
	c.Summary = textx.Truncate(c.Summary, maxSummary)
	return c, nil
}

// Tool exposes the lookup to an agent.
func (y *Yahoo) Tool() tool.Definition {
	return tool.Must(y.Company,
		tool.Name("yahoo_finance_tool"),
		tool.Description("Retrieves a financial and business profile for a publicly traded company by stock ticker: price, key ratios (P/E, P/B, ROE), market cap, revenue growth and a business summary."),
		tool.Parameters("ticker", "period"),
	)
}

func (y *Yahoo) get(ctx context.Context, endpoint string, params url.Values) (gjson.Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return gjson.Result{}, err
	}
	// the endpoints reject requests without a browser-ish agent
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; roost)")

	resp, err := y.client.Do(req)
	if err != nil {
		return gjson.Result{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return gjson.Result{}, fmt.Errorf("%s: %s", resp.Status, gjson.GetBytes(body, "*.error.description").String())
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("invalid json response")
	}
	return gjson.ParseBytes(body), nil
}

func numbers(r gjson.Result) []float64 {
	var out []float64
	for _, v := range r.Array() {
		if v.Type == gjson.Number {
			out = append(out, v.Float())
		}
	}
	return out
}

func highest(values []float64) Metric {
	if len(values) == 0 {
		return Metric{}
	}
	return Metric{Value: slices.Max(values), Valid: true}
}

func lowest(values []float64) Metric {
	if len(values) == 0 {
		return Metric{}
	}
	return Metric{Value: slices.Min(values), Valid: true}
}

// revenueGrowth compares the two most recent annual revenues, newest first.
func revenueGrowth(revenues gjson.Result) string {
	values := numbers(revenues)
	if len(values) < 2 || values[1] == 0 {
		return "N/A"
	}
	return fmt.Sprintf("%.2f%%", (values[0]-values[1])/values[1]*100)
}

func orNA(r gjson.Result) string {
	if s := r.String(); s != "" {
		return s
	}
	return "N/A"
}
