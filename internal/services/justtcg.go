package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/codyseavey/cardprice/internal/models"
	"github.com/codyseavey/cardprice/internal/normalize"
)

const (
	justTCGBaseURL  = "https://api.justtcg.com/v1"
	justTCGProvider = "justtcg"
)

var nearMintVariant = regexp.MustCompile(`(?i)near[\s_-]*mint`)

// JustTCGService is the structured catalog aggregator. Its cards carry an
// explicit list of condition/printing variants; only the near-mint variant is
// treated as authoritative.
type JustTCGService struct {
	http       *providerClient
	baseURL    string
	configured bool
	resolver   *SetResolver
}

// NewJustTCGService creates the adapter and registers its set catalog with
// resolver. Without an API key the adapter reports itself unconfigured.
func NewJustTCGService(baseURL, apiKey string, pacing Pacing, resolver *SetResolver) *JustTCGService {
	if baseURL == "" {
		baseURL = justTCGBaseURL
	}
	s := &JustTCGService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		configured: apiKey != "",
		resolver:   resolver,
	}
	s.http = newProviderClient(justTCGProvider, pacing, func(req *http.Request) {
		req.Header.Set("Accept", "application/json")
		req.Header.Set("x-api-key", apiKey)
	})
	if resolver != nil {
		resolver.Register(s)
	}
	return s
}

func (s *JustTCGService) Name() string {
	return justTCGProvider
}

// Configured reports whether an API key was supplied.
func (s *JustTCGService) Configured() bool {
	return s.configured
}

type justTCGSetsResponse struct {
	Data []justTCGSet `json:"data"`
}

type justTCGSet struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Game       string `json:"game"`
	CardsCount int    `json:"cards_count"`
}

type justTCGCardsResponse struct {
	Data []justTCGCard `json:"data"`
}

type justTCGCard struct {
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	Game     string           `json:"game"`
	Set      string           `json:"set"`
	SetName  string           `json:"set_name"`
	Number   string           `json:"number"`
	Rarity   string           `json:"rarity"`
	Variants []justTCGVariant `json:"variants"`
}

type justTCGVariant struct {
	ID        string  `json:"id"`
	Condition string  `json:"condition"`
	Printing  string  `json:"printing"`
	Price     float64 `json:"price"`
}

// justTCGGame maps a card language onto JustTCG's game slug.
func justTCGGame(lang models.Language) string {
	if lang == models.LanguageJapanese {
		return "pokemon-japan"
	}
	return "pokemon"
}

// FetchSets implements SetCatalogSource.
func (s *JustTCGService) FetchSets(ctx context.Context, lang models.Language) ([]models.SetRecord, error) {
	if !s.configured {
		return nil, ErrNotConfigured
	}
	var resp justTCGSetsResponse
	if err := s.http.getJSON(ctx, fmt.Sprintf("%s/sets?game=%s", s.baseURL, justTCGGame(lang)), &resp); err != nil {
		return nil, err
	}
	records := make([]models.SetRecord, 0, len(resp.Data))
	for _, set := range resp.Data {
		records = append(records, models.SetRecord{ID: set.ID, Name: set.Name, CardCount: set.CardsCount})
	}
	return records, nil
}

// FetchVariantPrice resolves q's set in JustTCG's catalog and prices the
// card through FetchByVariant.
func (s *JustTCGService) FetchVariantPrice(ctx context.Context, q models.CardQuery) (models.PriceRecord, error) {
	if !s.configured {
		return models.PriceRecord{}, ErrNotConfigured
	}
	if !q.HasNumberAndSet() {
		return models.PriceRecord{}, fmt.Errorf("set and number required: %w", ErrNotFound)
	}
	setID, ok, err := s.resolver.ResolveSetID(ctx, justTCGProvider, q.SetName, q.Language)
	if err != nil {
		return models.PriceRecord{}, err
	}
	if !ok {
		return models.PriceRecord{}, fmt.Errorf("no %s set matches %q: %w", justTCGProvider, q.SetName, ErrNotFound)
	}
	return s.FetchByVariant(ctx, q.Title, setID, q.CardNumber, q.Language)
}

// FetchByVariant searches the set with the first word of the card name, keeps
// the first result whose numeric card number equals the target, and prices its
// near-mint variant after re-fetching it by variant ID.
func (s *JustTCGService) FetchByVariant(ctx context.Context, title, setID, cardNumber string, lang models.Language) (models.PriceRecord, error) {
	target, ok := normalize.NumericCardNumber(cardNumber)
	if !ok {
		return models.PriceRecord{}, fmt.Errorf("card number %q is not numeric: %w", cardNumber, ErrNotFound)
	}

	// One loose term; the number filter below does the narrowing.
	term := firstWord(normalize.ExtractCardName(title))
	params := url.Values{}
	params.Set("q", term)
	params.Set("set", setID)
	params.Set("game", justTCGGame(lang))

	var search justTCGCardsResponse
	if err := s.http.getJSON(ctx, s.baseURL+"/cards?"+params.Encode(), &search); err != nil {
		return models.PriceRecord{}, err
	}

	card, ok := firstNumberMatch(search.Data, target)
	if !ok {
		return models.PriceRecord{}, fmt.Errorf("no %s card numbered %s in %s: %w", justTCGProvider, target, setID, ErrNotFound)
	}

	variant, ok := nearMint(card.Variants)
	if !ok {
		return models.PriceRecord{}, fmt.Errorf("%s card %s has no near mint variant: %w", justTCGProvider, card.ID, ErrNotFound)
	}

	// The search payload can omit fields; the variant lookup is authoritative.
	var detail justTCGCardsResponse
	if err := s.http.getJSON(ctx, s.baseURL+"/cards?variantId="+url.QueryEscape(variant.ID), &detail); err != nil {
		return models.PriceRecord{}, err
	}
	if len(detail.Data) == 0 {
		return models.PriceRecord{}, fmt.Errorf("%s variant %s vanished: %w", justTCGProvider, variant.ID, ErrNotFound)
	}

	full := detail.Data[0]
	price := models.NotAvailable
	for _, v := range full.Variants {
		if v.ID == variant.ID {
			price = models.NewPrice(v.Price)
			break
		}
	}
	if !price.Available() {
		return models.PriceRecord{}, fmt.Errorf("%s variant %s has no price: %w", justTCGProvider, variant.ID, ErrNotFound)
	}

	return models.PriceRecord{
		AveragePrice: price,
		Source:       models.SourceJustTCG,
		CardName:     full.Name,
		CardNumber:   full.Number,
		SetName:      full.SetName,
	}, nil
}

// firstNumberMatch returns the first card whose number, leading zeros
// stripped, equals target. Cards with a non-numeric number never match.
// Response order breaks ties when a set reuses a number across prints.
func firstNumberMatch(cards []justTCGCard, target string) (justTCGCard, bool) {
	for _, c := range cards {
		n, ok := normalize.NumericCardNumber(c.Number)
		if ok && n == target {
			return c, true
		}
	}
	return justTCGCard{}, false
}

func nearMint(variants []justTCGVariant) (justTCGVariant, bool) {
	for _, v := range variants {
		if nearMintVariant.MatchString(v.ID) || mapJustTCGCondition(v.Condition) == models.PriceConditionNM {
			return v, true
		}
	}
	return justTCGVariant{}, false
}

// mapJustTCGCondition maps JustTCG condition strings to a PriceCondition.
func mapJustTCGCondition(condition string) models.PriceCondition {
	switch strings.ToUpper(strings.TrimSpace(condition)) {
	case "NM", "NEAR MINT":
		return models.PriceConditionNM
	case "LP", "LIGHTLY PLAYED":
		return models.PriceConditionLP
	case "MP", "MODERATELY PLAYED":
		return models.PriceConditionMP
	case "HP", "HEAVILY PLAYED":
		return models.PriceConditionHP
	case "DMG", "DAMAGED":
		return models.PriceConditionDMG
	default:
		return ""
	}
}

func firstWord(s string) string {
	if fields := strings.Fields(s); len(fields) > 0 {
		return fields[0]
	}
	return s
}
