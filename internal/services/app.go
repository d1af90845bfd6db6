package services

import (
	"github.com/codyseavey/cardprice/internal/cache"
	"github.com/codyseavey/cardprice/internal/config"
	"github.com/codyseavey/cardprice/internal/models"
	"github.com/codyseavey/cardprice/internal/ratelimit"
)

// Cache namespaces in the shared store.
const (
	SearchNamespace   = "search"
	CurrencyNamespace = "currency"
)

// App is the process-wide object graph: one limiter, one queue per provider,
// one set resolver and the engine built on top of them. Both the HTTP server
// and the CLI construct exactly one.
type App struct {
	Limiter  *ratelimit.Limiter
	Resolver *SetResolver

	CardDB  *TCGdexService
	JustTCG *JustTCGService
	Ebay    *EbaySoldService
	Tracker *PokemonPriceTrackerService

	Prices   *PriceService
	Search   *CardSearchService
	Currency *CurrencyService

	SearchCache   *cache.ResultCache[models.CardSearchResult]
	CurrencyCache *cache.ResultCache[CurrencyRates]

	queues []*ratelimit.Queue
}

func NewApp(cfg *config.Config, store cache.Store) *App {
	a := &App{
		Limiter:  ratelimit.NewLimiter(),
		Resolver: NewSetResolver(),
	}

	pacing := func(provider string) Pacing {
		q := ratelimit.NewQueue(provider, cfg.QueueDelay)
		a.queues = append(a.queues, q)
		return Pacing{
			Limiter:     a.Limiter,
			Queue:       q,
			MaxRequests: cfg.ProviderMaxRequests,
			Window:      cfg.ProviderWindow,
		}
	}

	a.CardDB = NewTCGdexService(cfg.CardDBBaseURL, cfg.CardDBAPIKey, pacing(tcgdexProvider), a.Resolver)
	a.JustTCG = NewJustTCGService(cfg.JustTCGBaseURL, cfg.JustTCGAPIKey, pacing(justTCGProvider), a.Resolver)
	a.Ebay = NewEbaySoldService(cfg.EbayBaseURL, cfg.EbayEnabled, cfg.EbayMaxResults, cfg.EbayPoliteInterval, pacing(ebayProvider))
	a.Tracker = NewPokemonPriceTrackerService(cfg.TrackerBaseURL, cfg.TrackerAPIKey, cfg.TrackerMinSpacing, pacing(pokemonPriceTrackerProvider))

	a.Prices = NewPriceService(PriceServiceConfig{
		CardDB:        a.CardDB,
		JustTCG:       a.JustTCG,
		Ebay:          a.Ebay,
		Tracker:       a.Tracker,
		Limiter:       a.Limiter,
		FallbackDelay: FixedDelay{Step: cfg.QueueDelay},
	})

	a.SearchCache = cache.New[models.CardSearchResult](store, SearchNamespace, cache.CardResultDuration)
	a.Search = NewCardSearchService(a.CardDB, a.Prices, a.SearchCache, LinearStagger{Step: cfg.SearchStagger})

	a.CurrencyCache = cache.New[CurrencyRates](store, CurrencyNamespace, cache.CurrencyDuration)
	a.Currency = NewCurrencyService(cfg.CurrencyBaseURL, a.CurrencyCache)

	return a
}

// Close stops the provider queues.
func (a *App) Close() {
	for _, q := range a.queues {
		q.Close()
	}
}
