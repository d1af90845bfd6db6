package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/codyseavey/cardprice/internal/models"
	"github.com/codyseavey/cardprice/internal/normalize"
)

const (
	tcgdexBaseURL       = "https://api.tcgdex.net/v2"
	tcgdexProvider      = "tcgdex"
	tcgdexMaxSearchHits = 20
)

// Finish keys in TCGdex's tcgplayer price block, in preference order.
var tcgdexFinishPreference = []string{"holofoil", "reverse-holofoil", "normal"}

// TCGdexService is the card-database proxy: structured card and price lookup
// by canonical ID "<setId>-<localId>".
type TCGdexService struct {
	http     *providerClient
	baseURL  string
	resolver *SetResolver
}

// NewTCGdexService creates the adapter and registers its set catalog with resolver.
func NewTCGdexService(baseURL, apiKey string, pacing Pacing, resolver *SetResolver) *TCGdexService {
	if baseURL == "" {
		baseURL = tcgdexBaseURL
	}
	s := &TCGdexService{
		baseURL:  strings.TrimRight(baseURL, "/"),
		resolver: resolver,
	}
	s.http = newProviderClient(tcgdexProvider, pacing, func(req *http.Request) {
		req.Header.Set("Accept", "application/json")
		if apiKey != "" {
			req.Header.Set("X-Api-Key", apiKey)
		}
	})
	if resolver != nil {
		resolver.Register(s)
	}
	return s
}

func (s *TCGdexService) Name() string {
	return tcgdexProvider
}

type tcgdexCard struct {
	ID      string         `json:"id"`
	LocalID string         `json:"localId"`
	Name    string         `json:"name"`
	Rarity  string         `json:"rarity"`
	Types   []string       `json:"types"`
	Image   string         `json:"image"`
	Set     tcgdexSet      `json:"set"`
	Pricing *tcgdexPricing `json:"pricing"`
}

type tcgdexSet struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	CardCount tcgdexCardCount `json:"cardCount"`
}

type tcgdexCardCount struct {
	Total    int `json:"total"`
	Official int `json:"official"`
}

type tcgdexPricing struct {
	// TCGPlayer holds one object per finish plus scalar "updated"/"unit" keys.
	TCGPlayer map[string]json.RawMessage `json:"tcgplayer"`
}

type tcgdexPriceVariant struct {
	LowPrice    float64 `json:"lowPrice"`
	MidPrice    float64 `json:"midPrice"`
	HighPrice   float64 `json:"highPrice"`
	MarketPrice float64 `json:"marketPrice"`
}

type tcgdexCardBrief struct {
	ID      string `json:"id"`
	LocalID string `json:"localId"`
	Name    string `json:"name"`
	Image   string `json:"image"`
}

// FetchSets implements SetCatalogSource.
func (s *TCGdexService) FetchSets(ctx context.Context, lang models.Language) ([]models.SetRecord, error) {
	var sets []tcgdexSet
	if err := s.http.getJSON(ctx, fmt.Sprintf("%s/%s/sets", s.baseURL, lang), &sets); err != nil {
		return nil, err
	}
	records := make([]models.SetRecord, 0, len(sets))
	for _, set := range sets {
		records = append(records, models.SetRecord{
			ID:        set.ID,
			Name:      set.Name,
			CardCount: set.CardCount.Total,
		})
	}
	return records, nil
}

// GetCard fetches one card with its pricing block.
func (s *TCGdexService) GetCard(ctx context.Context, id string, lang models.Language) (*tcgdexCard, error) {
	var card tcgdexCard
	reqURL := fmt.Sprintf("%s/%s/cards/%s", s.baseURL, lang, url.PathEscape(id))
	if err := s.http.getJSON(ctx, reqURL, &card); err != nil {
		return nil, err
	}
	if card.ID == "" {
		return nil, ErrNotFound
	}
	return &card, nil
}

// FetchStructuredPrice looks the card up by q.CardID, or by the resolved set
// ID plus card number. Cards missing from the resolved set are retried in the
// set's related subsets.
func (s *TCGdexService) FetchStructuredPrice(ctx context.Context, q models.CardQuery) (models.PriceRecord, error) {
	lang := q.Language
	if lang == "" {
		lang = models.LanguageEnglish
	}

	var ids []string
	if q.CardID != "" {
		ids = []string{q.CardID}
	} else {
		if !q.HasNumberAndSet() {
			return models.PriceRecord{}, fmt.Errorf("card id or set and number required: %w", ErrNotFound)
		}
		setID, ok, err := s.resolver.ResolveSetID(ctx, tcgdexProvider, q.SetName, lang)
		if err != nil {
			return models.PriceRecord{}, err
		}
		if !ok {
			return models.PriceRecord{}, fmt.Errorf("no %s set matches %q: %w", tcgdexProvider, q.SetName, ErrNotFound)
		}
		ids = cardIDCandidates(setID, q.CardNumber)
	}

	card, err := s.firstCard(ctx, ids, lang)
	if errors.Is(err, ErrNotFound) && q.CardID == "" {
		card, err = s.searchSubsets(ctx, q, lang)
	}
	if err != nil {
		return models.PriceRecord{}, err
	}

	price, ok := preferredMarketPrice(card.Pricing)
	if !ok {
		return models.PriceRecord{}, fmt.Errorf("%s has no market price for %s: %w", tcgdexProvider, card.ID, ErrNotFound)
	}
	return models.PriceRecord{
		AveragePrice: price,
		Source:       models.SourceTCGPlayer,
		CardName:     card.Name,
		CardNumber:   card.LocalID,
		SetName:      card.Set.Name,
	}, nil
}

func (s *TCGdexService) searchSubsets(ctx context.Context, q models.CardQuery, lang models.Language) (*tcgdexCard, error) {
	setID, ok, err := s.resolver.ResolveSetID(ctx, tcgdexProvider, q.SetName, lang)
	if err != nil || !ok {
		return nil, ErrNotFound
	}
	related, err := s.resolver.FindRelatedSubsets(ctx, tcgdexProvider, setID, lang)
	if err != nil {
		return nil, err
	}
	for _, subsetID := range related {
		card, err := s.firstCard(ctx, cardIDCandidates(subsetID, q.CardNumber), lang)
		if err == nil {
			return card, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("card %s not in %q or its subsets: %w", q.CardNumber, q.SetName, ErrNotFound)
}

func (s *TCGdexService) firstCard(ctx context.Context, ids []string, lang models.Language) (*tcgdexCard, error) {
	for _, id := range ids {
		card, err := s.GetCard(ctx, id, lang)
		if err == nil {
			return card, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return nil, ErrNotFound
}

// cardIDCandidates builds "<setId>-<number>" IDs for a card number as given
// (without any "/total" suffix) and with leading zeros removed.
func cardIDCandidates(setID, number string) []string {
	raw := strings.TrimSpace(number)
	if i := strings.Index(raw, "/"); i >= 0 {
		raw = strings.TrimSpace(raw[:i])
	}
	raw = strings.TrimPrefix(raw, "#")
	if raw == "" {
		return nil
	}

	ids := []string{setID + "-" + raw}
	if trimmed, ok := normalize.NumericCardNumber(raw); ok && trimmed != raw {
		ids = append(ids, setID+"-"+trimmed)
	}
	return ids
}

// preferredMarketPrice picks holofoil, then reverse-holofoil, then normal,
// then the first other finish (by key order) with a market price.
func preferredMarketPrice(p *tcgdexPricing) (models.Price, bool) {
	if p == nil || len(p.TCGPlayer) == 0 {
		return models.NotAvailable, false
	}

	finish := func(key string) (models.Price, bool) {
		raw, ok := p.TCGPlayer[key]
		if !ok {
			return models.NotAvailable, false
		}
		var v tcgdexPriceVariant
		if err := json.Unmarshal(raw, &v); err != nil {
			return models.NotAvailable, false
		}
		price := models.NewPrice(v.MarketPrice)
		return price, price.Available()
	}

	for _, key := range tcgdexFinishPreference {
		if price, ok := finish(key); ok {
			return price, true
		}
	}

	keys := make([]string, 0, len(p.TCGPlayer))
	for k := range p.TCGPlayer {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if price, ok := finish(key); ok {
			return price, true
		}
	}
	return models.NotAvailable, false
}

// SearchCards lists cards whose name matches req.Query, optionally narrowed
// to a set, rarity or type.
func (s *TCGdexService) SearchCards(ctx context.Context, req models.CardSearchRequest) ([]models.CardSummary, error) {
	lang := req.Language
	if lang == "" {
		lang = models.LanguageEnglish
	}

	params := url.Values{}
	params.Set("name", req.Query)
	if req.Rarity != "" {
		params.Set("rarity", req.Rarity)
	}
	if req.Type != "" {
		params.Set("types", req.Type)
	}

	var setID string
	if req.SetName != "" {
		id, ok, err := s.resolver.ResolveSetID(ctx, tcgdexProvider, req.SetName, lang)
		if err != nil {
			return nil, err
		}
		if !ok {
			return []models.CardSummary{}, nil
		}
		setID = id
	}

	var briefs []tcgdexCardBrief
	err := s.http.getJSON(ctx, fmt.Sprintf("%s/%s/cards?%s", s.baseURL, lang, params.Encode()), &briefs)
	if errors.Is(err, ErrNotFound) {
		return []models.CardSummary{}, nil
	}
	if err != nil {
		return nil, err
	}

	var types []string
	if req.Type != "" {
		types = []string{req.Type}
	}

	setNames := s.setNames(ctx, lang)
	cards := make([]models.CardSummary, 0, len(briefs))
	for _, b := range briefs {
		cardSetID := strings.TrimSuffix(b.ID, "-"+b.LocalID)
		if setID != "" && cardSetID != setID {
			continue
		}
		imageURL := b.Image
		if imageURL != "" {
			imageURL += "/low.webp"
		}
		cards = append(cards, models.CardSummary{
			ID:         b.ID,
			Name:       b.Name,
			CardNumber: b.LocalID,
			SetID:      cardSetID,
			SetName:    setNames[cardSetID],
			Rarity:     req.Rarity,
			Types:      types,
			ImageURL:   imageURL,
			Language:   lang,
		})
		if len(cards) >= tcgdexMaxSearchHits {
			break
		}
	}
	return cards, nil
}

func (s *TCGdexService) setNames(ctx context.Context, lang models.Language) map[string]string {
	names := map[string]string{}
	sets, err := s.resolver.Catalog(ctx, tcgdexProvider, lang)
	if err != nil {
		return names
	}
	for _, set := range sets {
		names[set.ID] = set.Name
	}
	return names
}
