package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codyseavey/cardprice/internal/models"
	"github.com/codyseavey/cardprice/internal/ratelimit"
)

func testPacing() Pacing {
	return Pacing{Limiter: ratelimit.NewLimiter()}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// tcgdexStub serves a tiny TCGdex catalog: Crown Zenith with its gallery
// subset, and Base Set.
func tcgdexStub(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/en/sets", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeJSON(w, []map[string]any{
			{"id": "base1", "name": "Base Set", "cardCount": map[string]int{"total": 102, "official": 102}},
			{"id": "swsh12.5", "name": "Crown Zenith", "cardCount": map[string]int{"total": 160, "official": 159}},
			{"id": "swsh12.5gg", "name": "Crown Zenith Galarian Gallery", "cardCount": map[string]int{"total": 70, "official": 70}},
		})
	})
	mux.HandleFunc("/en/cards/base1-4", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeJSON(w, map[string]any{
			"id": "base1-4", "localId": "4", "name": "Charizard",
			"set": map[string]string{"id": "base1", "name": "Base Set"},
			"pricing": map[string]any{"tcgplayer": map[string]any{
				"updated":  "2024-05-01",
				"unit":     "USD",
				"normal":   map[string]float64{"marketPrice": 250},
				"holofoil": map[string]float64{"marketPrice": 410.5},
			}},
		})
	})
	mux.HandleFunc("/en/cards/swsh12.5gg-GG70", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeJSON(w, map[string]any{
			"id": "swsh12.5gg-GG70", "localId": "GG70", "name": "Giratina VSTAR",
			"set": map[string]string{"id": "swsh12.5gg", "name": "Crown Zenith Galarian Gallery"},
			"pricing": map[string]any{"tcgplayer": map[string]any{
				"holofoil": map[string]float64{"marketPrice": 95},
			}},
		})
	})
	mux.HandleFunc("/en/cards", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "charizard", r.URL.Query().Get("name"))
		writeJSON(w, []map[string]string{
			{"id": "base1-4", "localId": "4", "name": "Charizard", "image": "https://assets.tcgdex.net/en/base/base1/4"},
			{"id": "swsh12.5-18", "localId": "18", "name": "Charizard"},
		})
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	})
	return httptest.NewServer(mux)
}

func TestTCGdexFetchStructuredPriceBySetAndNumber(t *testing.T) {
	var hits atomic.Int32
	srv := tcgdexStub(t, &hits)
	defer srv.Close()

	svc := NewTCGdexService(srv.URL, "", testPacing(), NewSetResolver())
	rec, err := svc.FetchStructuredPrice(context.Background(), models.CardQuery{
		Title: "Charizard", CardNumber: "004/102", SetName: "base set", Language: models.LanguageEnglish,
	})
	require.NoError(t, err)
	assert.Equal(t, models.Price(410.5), rec.AveragePrice, "holofoil is preferred over normal")
	assert.Equal(t, models.SourceTCGPlayer, rec.Source)
	assert.Equal(t, "Charizard", rec.CardName)
	assert.Equal(t, "Base Set", rec.SetName)
}

func TestTCGdexFallsBackToRelatedSubset(t *testing.T) {
	var hits atomic.Int32
	srv := tcgdexStub(t, &hits)
	defer srv.Close()

	svc := NewTCGdexService(srv.URL, "", testPacing(), NewSetResolver())
	rec, err := svc.FetchStructuredPrice(context.Background(), models.CardQuery{
		Title: "Giratina VSTAR", CardNumber: "GG70", SetName: "Crown Zenith",
	})
	require.NoError(t, err)
	assert.Equal(t, models.Price(95), rec.AveragePrice)
	assert.Equal(t, "Crown Zenith Galarian Gallery", rec.SetName)
}

func TestTCGdexUnknownSetIsNotFound(t *testing.T) {
	var hits atomic.Int32
	srv := tcgdexStub(t, &hits)
	defer srv.Close()

	svc := NewTCGdexService(srv.URL, "", testPacing(), NewSetResolver())
	_, err := svc.FetchStructuredPrice(context.Background(), models.CardQuery{
		Title: "Charizard", CardNumber: "4", SetName: "Expedition",
	})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.FetchStructuredPrice(context.Background(), models.CardQuery{Title: "Charizard"})
	assert.ErrorIs(t, err, ErrNotFound, "neither id nor set+number")
}

func TestTCGdexSearchCards(t *testing.T) {
	var hits atomic.Int32
	srv := tcgdexStub(t, &hits)
	defer srv.Close()

	svc := NewTCGdexService(srv.URL, "", testPacing(), NewSetResolver())
	cards, err := svc.SearchCards(context.Background(), models.CardSearchRequest{Query: "charizard"})
	require.NoError(t, err)
	require.Len(t, cards, 2)
	assert.Equal(t, "base1", cards[0].SetID)
	assert.Equal(t, "Base Set", cards[0].SetName)
	assert.Equal(t, "https://assets.tcgdex.net/en/base/base1/4/low.webp", cards[0].ImageURL)
	assert.Equal(t, "Crown Zenith", cards[1].SetName)

	cards, err = svc.SearchCards(context.Background(), models.CardSearchRequest{Query: "charizard", SetName: "Base Set"})
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, "base1-4", cards[0].ID)
}

func TestProviderClientRateLimitResponse(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Retry-After", "120")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	pacing := testPacing()
	svc := NewTCGdexService(srv.URL, "", pacing, NewSetResolver())
	_, err := svc.GetCard(context.Background(), "base1-4", models.LanguageEnglish)

	var rl *RateLimitError
	require.True(t, errors.As(err, &rl))
	assert.WithinDuration(t, time.Now().Add(2*time.Minute), rl.RetryAt, 5*time.Second)

	isBlocked, _ := pacing.Limiter.IsBlocked(tcgdexProvider)
	assert.True(t, isBlocked)

	// blocked calls fail fast without touching the network
	_, err = svc.GetCard(context.Background(), "base1-4", models.LanguageEnglish)
	assert.True(t, IsRateLimited(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestProviderClientServerErrorAndMalformedBody(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusBadGateway)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if code := int(status.Load()); code != http.StatusOK {
			w.WriteHeader(code)
			return
		}
		_, _ = w.Write([]byte("{not json"))
	}))
	defer srv.Close()

	svc := NewTCGdexService(srv.URL, "", testPacing(), NewSetResolver())
	_, err := svc.GetCard(context.Background(), "x", models.LanguageEnglish)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))

	status.Store(http.StatusOK)
	_, err = svc.GetCard(context.Background(), "x", models.LanguageEnglish)
	assert.Error(t, err)
}

func TestProviderClientLocalBudget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	pacing := Pacing{Limiter: ratelimit.NewLimiter(), MaxRequests: 1, Window: time.Minute}
	svc := NewTCGdexService(srv.URL, "", pacing, NewSetResolver())

	_, err := svc.GetCard(context.Background(), "a", models.LanguageEnglish)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.GetCard(context.Background(), "b", models.LanguageEnglish)
	var rl *RateLimitError
	require.True(t, errors.As(err, &rl))
	assert.True(t, rl.Local)
}

func TestPreferredMarketPrice(t *testing.T) {
	raw := func(v float64) json.RawMessage {
		b, _ := json.Marshal(map[string]float64{"marketPrice": v})
		return b
	}

	tests := []struct {
		name string
		tcg  map[string]json.RawMessage
		want models.Price
	}{
		{"holofoil first", map[string]json.RawMessage{"normal": raw(1), "reverse-holofoil": raw(2), "holofoil": raw(3)}, 3},
		{"reverse before normal", map[string]json.RawMessage{"normal": raw(1), "reverse-holofoil": raw(2)}, 2},
		{"normal", map[string]json.RawMessage{"normal": raw(1), "unit": json.RawMessage(`"USD"`)}, 1},
		{"zero holofoil skipped", map[string]json.RawMessage{"holofoil": raw(0), "normal": raw(4)}, 4},
		{"other finish", map[string]json.RawMessage{"1st-edition-holofoil": raw(900), "updated": json.RawMessage(`"2024"`)}, 900},
		{"nothing", map[string]json.RawMessage{"unit": json.RawMessage(`"USD"`)}, models.NotAvailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := preferredMarketPrice(&tcgdexPricing{TCGPlayer: tt.tcg})
			assert.Equal(t, tt.want, got)
		})
	}

	_, ok := preferredMarketPrice(nil)
	assert.False(t, ok)
}

func TestCardIDCandidates(t *testing.T) {
	assert.Equal(t, []string{"base1-004", "base1-4"}, cardIDCandidates("base1", "004/102"))
	assert.Equal(t, []string{"base1-4"}, cardIDCandidates("base1", "4"))
	assert.Equal(t, []string{"swsh12.5gg-GG70"}, cardIDCandidates("swsh12.5gg", "GG70"))
	assert.Nil(t, cardIDCandidates("base1", ""))
}
