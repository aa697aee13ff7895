package alerting

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

// ErrPriceNotAvailable indicates the price source could not provide a price
// for a symbol right now. This is an expected, frequent outcome (symbol
// temporarily unpriced, upstream timeout), not an exceptional one; callers
// skip the symbol and try again on the next check.
var ErrPriceNotAvailable = errors.New("price not available")

// PriceSource fetches the latest price for a symbol
type PriceSource interface {
	FetchPrice(symbol, timeframe string) (decimal.Decimal, error)
}

// DefaultPriceFetchTimeout bounds a single price request
const DefaultPriceFetchTimeout = 5 * time.Second

// quoteResponse represents the market-data service quote payload
type quoteResponse struct {
	Symbol    string   `json:"symbol"`
	Price     *float64 `json:"price"`
	Timeframe string   `json:"timeframe"`
	Timestamp string   `json:"timestamp"`
}

// HTTPPriceSource fetches prices from the market-data service over HTTP
type HTTPPriceSource struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPPriceSource creates a price source for the given quote endpoint.
// A non-positive timeout falls back to DefaultPriceFetchTimeout.
func NewHTTPPriceSource(baseURL string, timeout time.Duration) *HTTPPriceSource {
	if timeout <= 0 {
		timeout = DefaultPriceFetchTimeout
	}
	return &HTTPPriceSource{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// FetchPrice issues a single quote request for the symbol. The timeframe is
// passed through as a fetch hint only. No retry happens here; the next
// scheduled check naturally retries.
func (p *HTTPPriceSource) FetchPrice(symbol, timeframe string) (decimal.Decimal, error) {
	reqURL := fmt.Sprintf("%s?symbol=%s&timeframe=%s",
		p.baseURL, url.QueryEscape(symbol), url.QueryEscape(timeframe))

	resp, err := p.httpClient.Get(reqURL)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: request failed: %v", ErrPriceNotAvailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("%w: status %d", ErrPriceNotAvailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: read failed: %v", ErrPriceNotAvailable, err)
	}

	var quote quoteResponse
	if err := json.Unmarshal(body, &quote); err != nil {
		return decimal.Zero, fmt.Errorf("%w: malformed payload: %v", ErrPriceNotAvailable, err)
	}

	if quote.Price == nil {
		return decimal.Zero, fmt.Errorf("%w: missing price field", ErrPriceNotAvailable)
	}

	return decimal.NewFromFloat(*quote.Price), nil
}
