package services

import (
	"context"
	"log"
	"strconv"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/codyseavey/cardprice/internal/cache"
	"github.com/codyseavey/cardprice/internal/models"
)

// CardSearcher lists cards matching a search request.
type CardSearcher interface {
	SearchCards(ctx context.Context, req models.CardSearchRequest) ([]models.CardSummary, error)
}

// PriceResolver is the single best-price lookup used for list views.
type PriceResolver interface {
	ResolvePrice(ctx context.Context, q models.CardQuery) models.PriceRecord
}

// CardSearchService runs batch card searches, optionally pricing every card,
// and memoizes the results.
type CardSearchService struct {
	searcher CardSearcher
	prices   PriceResolver
	cache    *cache.ResultCache[models.CardSearchResult]
	stagger  DelayPolicy
	inflight singleflight.Group
}

func NewCardSearchService(searcher CardSearcher, prices PriceResolver, results *cache.ResultCache[models.CardSearchResult], stagger DelayPolicy) *CardSearchService {
	if stagger == nil {
		stagger = NoDelay{}
	}
	return &CardSearchService{
		searcher: searcher,
		prices:   prices,
		cache:    results,
		stagger:  stagger,
	}
}

// CacheKey is the full query shape, pricing flag included.
func (s *CardSearchService) CacheKey(req models.CardSearchRequest) string {
	return s.cache.Key(
		req.Query,
		req.SetName,
		req.Rarity,
		req.Type,
		string(req.Language),
		strconv.FormatBool(req.IncludePricing),
	)
}

// Search returns the cards matching req. With Refresh the cached entry is
// dropped first. A priced search is only cached when at least one card got
// a real price, so a transient outage is retried on the next request.
// Identical searches in flight at the same time share one upstream fetch.
func (s *CardSearchService) Search(ctx context.Context, req models.CardSearchRequest) (*models.CardSearchResult, error) {
	if req.Language == "" {
		req.Language = models.LanguageEnglish
	}

	shouldCache := func(r models.CardSearchResult) bool {
		return !req.IncludePricing || r.HasAnyPrice()
	}

	key := s.CacheKey(req)
	v, err, _ := s.inflight.Do(key+"|"+strconv.FormatBool(req.Refresh), func() (any, error) {
		result, cached, err := s.cache.GetOrFetch(ctx, key, req.Refresh, func(ctx context.Context) (models.CardSearchResult, error) {
			return s.fetch(ctx, req)
		}, shouldCache)
		if err != nil {
			return nil, err
		}
		result.Cached = cached
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	result := v.(models.CardSearchResult)
	result.Cards = append([]models.CardSummary(nil), result.Cards...)
	return &result, nil
}

func (s *CardSearchService) fetch(ctx context.Context, req models.CardSearchRequest) (models.CardSearchResult, error) {
	cards, err := s.searcher.SearchCards(ctx, req)
	if err != nil {
		return models.CardSearchResult{}, err
	}
	if cards == nil {
		cards = []models.CardSummary{}
	}

	if req.IncludePricing && len(cards) > 0 {
		s.priceCards(ctx, cards, req.Language)
	}

	return models.CardSearchResult{Cards: cards, TotalCount: len(cards)}, nil
}

// priceCards resolves every card concurrently, delaying the i-th lookup by
// the stagger policy to spread requests out.
func (s *CardSearchService) priceCards(ctx context.Context, cards []models.CardSummary, lang models.Language) {
	batchID := uuid.NewString()
	log.Printf("Card search: pricing %d cards (batch %s)", len(cards), batchID)

	g, gctx := errgroup.WithContext(ctx)
	for i := range cards {
		i := i
		g.Go(func() error {
			if err := waitFor(gctx, s.stagger, i); err != nil {
				rec := models.Unavailable(models.SourceTCGPlayer, "pricing cancelled")
				cards[i].Price = &rec
				return nil
			}
			rec := s.prices.ResolvePrice(gctx, models.CardQuery{
				Title:          cards[i].Name,
				CardID:         cards[i].ID,
				CardNumber:     cards[i].CardNumber,
				SetName:        cards[i].SetName,
				Language:       lang,
				IncludePricing: true,
			})
			cards[i].Price = &rec
			return nil
		})
	}
	_ = g.Wait()

	priced := 0
	for _, c := range cards {
		if c.Price != nil && c.Price.Found() {
			priced++
		}
	}
	log.Printf("Card search: batch %s priced %d/%d cards", batchID, priced, len(cards))
}
