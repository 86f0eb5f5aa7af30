package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/execore/internal/money"
)

// RESTFeed is a PriceFeed backed by a plain HTTP GET, used as the REST
// fallback when the streaming QuoteProvider reports disconnected.
// Grounded on feeds/ REST-polling style adapters,
// generalized away from a single provider's endpoint shape.
type RESTFeed struct {
	baseURL string
	client  *http.Client
}

// NewRESTFeed constructs a RESTFeed pointed at baseURL (expected to expose
// GET {baseURL}/quotes?symbols=a,b,c returning a JSON array of quotes).
func NewRESTFeed(baseURL string, client *http.Client) *RESTFeed {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &RESTFeed{baseURL: baseURL, client: client}
}

type restQuote struct {
	Symbol string  `json:"symbol"`
	Bid    string  `json:"bid"`
	Ask    string  `json:"ask"`
	TS     float64 `json:"ts"`
}

func (f *RESTFeed) GetQuotes(ctx context.Context, symbols []money.Symbol) ([]Quote, error) {
	if len(symbols) == 0 {
		return nil, nil
	}
	syms := make([]string, len(symbols))
	for i, s := range symbols {
		syms[i] = string(s)
	}
	url := fmt.Sprintf("%s/quotes?symbols=%s", f.baseURL, strings.Join(syms, ","))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building quote feed request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("quote feed request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quote feed returned status %d", resp.StatusCode)
	}

	var raw []restQuote
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding quote feed response: %w", err)
	}

	out := make([]Quote, 0, len(raw))
	for _, r := range raw {
		bid, _ := decimal.NewFromString(r.Bid)
		ask, _ := decimal.NewFromString(r.Ask)
		out = append(out, Quote{
			Symbol: money.Symbol(r.Symbol),
			Bid:    bid,
			Ask:    ask,
			TS:     time.UnixMilli(int64(r.TS)),
		})
	}
	return out, nil
}

func (f *RESTFeed) GetLastPrice(ctx context.Context, instrument money.InstrumentId) (decimal.Decimal, error) {
	quotes, err := f.GetQuotes(ctx, []money.Symbol{money.Symbol(instrument)})
	if err != nil {
		return decimal.Zero, err
	}
	if len(quotes) == 0 {
		return decimal.Zero, fmt.Errorf("no quote for instrument %s", instrument)
	}
	return quotes[0].Mid(), nil
}
