package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/codyseavey/cardprice/internal/models"
	"github.com/codyseavey/cardprice/internal/normalize"
	"github.com/codyseavey/cardprice/internal/ratelimit"
)

const (
	pokemonPriceTrackerBaseURL  = "https://www.pokemonpricetracker.com/api/v2"
	pokemonPriceTrackerProvider = "pokemonpricetracker"
	pptSearchLimit              = 5
)

// PokemonPriceTrackerService is the fuzzy tracker aggregator. It throttles
// aggressively, so every call first passes a minimum-spacing gate.
type PokemonPriceTrackerService struct {
	http       *providerClient
	baseURL    string
	configured bool
	gate       *ratelimit.SpacingGate
}

func NewPokemonPriceTrackerService(baseURL, apiKey string, minSpacing time.Duration, pacing Pacing) *PokemonPriceTrackerService {
	if baseURL == "" {
		baseURL = pokemonPriceTrackerBaseURL
	}
	s := &PokemonPriceTrackerService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		configured: apiKey != "",
		gate:       ratelimit.NewSpacingGate(minSpacing),
	}
	s.http = newProviderClient(pokemonPriceTrackerProvider, pacing, func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+apiKey)
		req.Header.Set("Accept", "application/json")
	})
	return s
}

func (s *PokemonPriceTrackerService) Name() string {
	return pokemonPriceTrackerProvider
}

func (s *PokemonPriceTrackerService) Configured() bool {
	return s.configured
}

type pptSearchResponse struct {
	Data     []pptCard   `json:"data"`
	Metadata pptMetadata `json:"metadata"`
}

type pptMetadata struct {
	Total   int  `json:"total"`
	HasMore bool `json:"hasMore"`
}

type pptCard struct {
	Prices      pptPrices `json:"prices"`
	ID          string    `json:"id"`
	TCGPlayerID string    `json:"tcgPlayerId"`
	Name        string    `json:"name"`
	SetName     string    `json:"setName"`
	SetID       string    `json:"setId"`
	CardNumber  string    `json:"cardNumber"`
}

type pptPrices struct {
	Market *float64 `json:"market"`
}

// FetchTrackedPrice searches by a short term derived from the card name,
// prefers an exact card-number match among the first results and reads the
// market price field.
func (s *PokemonPriceTrackerService) FetchTrackedPrice(ctx context.Context, title, cardNumber, setName string, lang models.Language) (models.PriceRecord, error) {
	if !s.configured {
		return models.PriceRecord{}, ErrNotConfigured
	}
	if err := s.gate.Wait(ctx); err != nil {
		return models.PriceRecord{}, err
	}

	params := url.Values{}
	params.Set("search", trackerSearchTerm(normalize.ExtractCardName(title)))
	if setName != "" && setName != normalize.UnknownSet {
		params.Set("set", setName)
	}
	if lang == models.LanguageJapanese {
		params.Set("language", "japanese")
	}
	params.Set("limit", fmt.Sprint(pptSearchLimit))

	var resp pptSearchResponse
	if err := s.http.getJSON(ctx, s.baseURL+"/cards?"+params.Encode(), &resp); err != nil {
		return models.PriceRecord{}, err
	}
	if len(resp.Data) == 0 {
		return models.PriceRecord{}, fmt.Errorf("%s has no results for %q: %w", pokemonPriceTrackerProvider, title, ErrNotFound)
	}

	card := pickTrackedCard(resp.Data, cardNumber)
	rec := models.PriceRecord{
		Source:     models.SourcePokemonPriceTracker,
		CardName:   card.Name,
		CardNumber: card.CardNumber,
		SetName:    card.SetName,
	}
	if card.Prices.Market == nil || !models.NewPrice(*card.Prices.Market).Available() {
		rec.AveragePrice = models.NotAvailable
		rec.Note = fmt.Sprintf("no market price listed for %s", card.Name)
		return rec, nil
	}
	rec.AveragePrice = models.NewPrice(*card.Prices.Market)
	return rec, nil
}

// pickTrackedCard prefers an exact card-number match within the first
// pptSearchLimit results and otherwise takes the first result.
func pickTrackedCard(cards []pptCard, cardNumber string) pptCard {
	if len(cards) > pptSearchLimit {
		cards = cards[:pptSearchLimit]
	}
	if target, ok := normalize.NumericCardNumber(cardNumber); ok {
		for _, c := range cards {
			if n, ok := normalize.NumericCardNumber(c.CardNumber); ok && n == target {
				return c
			}
		}
	}
	return cards[0]
}

// trackerSearchTerm uses the last word for team/tag style names ("Team
// Rocket's Mewtwo", "Pikachu & Zekrom") and the first two words otherwise.
func trackerSearchTerm(name string) string {
	words := strings.Fields(name)
	if len(words) == 0 {
		return name
	}
	first := strings.ToLower(words[0])
	for _, q := range normalize.TeamQualifierWords {
		if first == q {
			return words[len(words)-1]
		}
	}
	if strings.Contains(name, "&") {
		return words[len(words)-1]
	}
	if len(words) > 2 {
		words = words[:2]
	}
	return strings.Join(words, " ")
}
