package coingecko

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"CoinPull/internal/domain/models"
	drepo "CoinPull/internal/domain/repository"
	xhttp "CoinPull/pkg/http"

	"github.com/go-playground/validator/v10"
)

// DefaultCoolDown is advised when a 429 carries no Retry-After header.
const DefaultCoolDown = 2 * time.Minute

// Client implements a MarketSource backed by the CoinGecko v3 REST API.
type Client struct {
	baseURL    string
	apiKey     string
	vsCurrency string
	coolDown   time.Duration
	http       *xhttp.Client
	validate   *validator.Validate
}

// Option configures Client.
type Option func(*Client)

// WithAPIKey sets the demo API key header.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithCurrency sets the quote currency (default usd).
func WithCurrency(vs string) Option {
	return func(c *Client) {
		if vs != "" {
			c.vsCurrency = vs
		}
	}
}

// WithCoolDown sets the cool-down advised when the server omits Retry-After.
func WithCoolDown(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.coolDown = d
		}
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *xhttp.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a new CoinGecko MarketSource.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		vsCurrency: "usd",
		coolDown:   DefaultCoolDown,
		validate:   validator.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = xhttp.NewClient(xhttp.WithTimeout(30*time.Second), xhttp.WithUserAgent("coinpull/1.0"))
	}
	return c
}

type marketDTO struct {
	ID                       string   `json:"id" validate:"required"`
	Symbol                   string   `json:"symbol" validate:"required"`
	Name                     string   `json:"name" validate:"required"`
	CurrentPrice             float64  `json:"current_price" validate:"gt=0"`
	MarketCap                float64  `json:"market_cap" validate:"gte=0"`
	MarketCapRank            int      `json:"market_cap_rank" validate:"gt=0"`
	TotalVolume              float64  `json:"total_volume" validate:"gte=0"`
	PriceChangePercentage24h *float64 `json:"price_change_percentage_24h"`
}

type marketChartDTO struct {
	Prices [][]float64 `json:"prices"`
}

// Ping checks that the API answers with a 2xx status.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.get(ctx, "/ping", nil, nil); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// TopMarkets returns the first page of markets ordered by market cap.
// Entries failing validation are returned as InvalidListingError values
// alongside the valid ones so the caller can report them.
func (c *Client) TopMarkets(ctx context.Context, limit int) ([]drepo.MarketListing, error) {
	q := url.Values{}
	q.Set("vs_currency", c.vsCurrency)
	q.Set("order", "market_cap_desc")
	q.Set("per_page", strconv.Itoa(limit))
	q.Set("page", "1")
	q.Set("sparkline", "false")

	var rows []marketDTO
	if err := c.get(ctx, "/coins/markets", q, &rows); err != nil {
		return nil, fmt.Errorf("markets: %w", err)
	}

	out := make([]drepo.MarketListing, 0, len(rows))
	for _, r := range rows {
		l := drepo.MarketListing{
			ID:           r.ID,
			Name:         r.Name,
			Symbol:       strings.ToUpper(r.Symbol),
			CurrentPrice: r.CurrentPrice,
			MarketCap:    r.MarketCap,
			Volume24h:    r.TotalVolume,
			Rank:         r.MarketCapRank,
		}
		if r.PriceChangePercentage24h != nil {
			l.Change24hPct = *r.PriceChangePercentage24h
		}
		if err := c.validate.Struct(r); err != nil {
			l.Invalid = err
		}
		out = append(out, l)
	}
	return out, nil
}

// History returns the trailing price series of one coin, oldest first.
func (c *Client) History(ctx context.Context, id string, days int) ([]models.PricePoint, error) {
	if id == "" {
		return nil, fmt.Errorf("history: empty id: %w", models.ErrFetchFailed)
	}
	q := url.Values{}
	q.Set("vs_currency", c.vsCurrency)
	q.Set("days", strconv.Itoa(days))

	var chart marketChartDTO
	if err := c.get(ctx, "/coins/"+url.PathEscape(id)+"/market_chart", q, &chart); err != nil {
		return nil, fmt.Errorf("market_chart %s: %w", id, err)
	}

	points := make([]models.PricePoint, 0, len(chart.Prices))
	for i, p := range chart.Prices {
		if len(p) < 2 || math.IsNaN(p[1]) || math.IsInf(p[1], 0) {
			return nil, fmt.Errorf("market_chart %s: malformed point %d: %w", id, i, models.ErrFetchFailed)
		}
		points = append(points, models.PricePoint{
			Timestamp: time.UnixMilli(int64(p[0])).UTC(),
			Price:     p[1],
		})
	}
	return points, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, dest interface{}) error {
	headers := map[string]string{"Accept": "application/json"}
	if c.apiKey != "" {
		headers["x-cg-demo-api-key"] = c.apiKey
	}
	params := map[string][]string(q)
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         c.baseURL + path,
		Headers:     headers,
		QueryParams: params,
	}, dest)
	if err == nil {
		return nil
	}
	return c.classify(err)
}

// classify maps transport errors onto the domain taxonomy.
func (c *Client) classify(err error) error {
	var se *xhttp.StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusTooManyRequests {
		d, ok := se.RetryAfter()
		if !ok {
			d = c.coolDown
		}
		return &models.RateLimitError{RetryAfter: d, Err: err}
	}
	if errors.Is(err, models.ErrFetchFailed) {
		return err
	}
	return fmt.Errorf("%w: %w", models.ErrFetchFailed, err)
}

var _ drepo.MarketSource = (*Client)(nil)
