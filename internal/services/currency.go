package services

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/codyseavey/cardprice/internal/cache"
)

const (
	currencyBaseURL  = "https://api.frankfurter.app"
	currencyProvider = "currency"
	currencyCacheKey = "usd"
)

// CurrencyRates are conversion rates from one US dollar.
type CurrencyRates struct {
	Base      string             `json:"base"`
	Date      string             `json:"date"`
	Rates     map[string]float64 `json:"rates"`
	FetchedAt time.Time          `json:"fetched_at"`
}

// CurrencyService fetches USD conversion rates and caches them for an hour.
type CurrencyService struct {
	http    *providerClient
	baseURL string
	cache   *cache.ResultCache[CurrencyRates]
}

func NewCurrencyService(baseURL string, rates *cache.ResultCache[CurrencyRates]) *CurrencyService {
	if baseURL == "" {
		baseURL = currencyBaseURL
	}
	return &CurrencyService{
		http: newProviderClient(currencyProvider, Pacing{}, func(req *http.Request) {
			req.Header.Set("Accept", "application/json")
		}),
		baseURL: strings.TrimRight(baseURL, "/"),
		cache:   rates,
	}
}

// Rates returns cached rates, fetching them when the cache is cold or
// refresh is set.
func (s *CurrencyService) Rates(ctx context.Context, refresh bool) (CurrencyRates, error) {
	key := s.cache.Key(currencyCacheKey)
	// USD itself is always present; anything less than one foreign rate is
	// treated as a failed fetch.
	rates, _, err := s.cache.GetOrFetch(ctx, key, refresh, s.fetch, func(r CurrencyRates) bool {
		return len(r.Rates) > 1
	})
	return rates, err
}

func (s *CurrencyService) fetch(ctx context.Context) (CurrencyRates, error) {
	var rates CurrencyRates
	if err := s.http.getJSON(ctx, s.baseURL+"/latest?from=USD", &rates); err != nil {
		return CurrencyRates{}, err
	}
	if rates.Base == "" {
		rates.Base = "USD"
	}
	if rates.Rates == nil {
		rates.Rates = map[string]float64{}
	}
	rates.Rates["USD"] = 1
	rates.FetchedAt = time.Now().UTC()
	return rates, nil
}
