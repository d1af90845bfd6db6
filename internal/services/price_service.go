package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/codyseavey/cardprice/internal/metrics"
	"github.com/codyseavey/cardprice/internal/models"
	"github.com/codyseavey/cardprice/internal/ratelimit"
)

// StructuredPriceProvider looks a card up by canonical ID or set + number.
type StructuredPriceProvider interface {
	FetchStructuredPrice(ctx context.Context, q models.CardQuery) (models.PriceRecord, error)
}

// VariantPriceProvider prices a card from an explicit condition variant.
type VariantPriceProvider interface {
	Configured() bool
	FetchVariantPrice(ctx context.Context, q models.CardQuery) (models.PriceRecord, error)
}

// SoldListingsProvider averages recent completed sales.
type SoldListingsProvider interface {
	Configured() bool
	FetchSoldListingsPrice(ctx context.Context, title, cardNumber, setName string) (models.PriceRecord, error)
}

// TrackedPriceProvider reads a tracked market price from a fuzzy search.
type TrackedPriceProvider interface {
	Configured() bool
	FetchTrackedPrice(ctx context.Context, title, cardNumber, setName string, lang models.Language) (models.PriceRecord, error)
}

// FallbackStep is one provider attempt in a FallbackChain.
type FallbackStep struct {
	Name string
	// Applies gates the step; a nil Applies always runs.
	Applies func(q models.CardQuery) bool
	Fetch   func(ctx context.Context, q models.CardQuery) (models.PriceRecord, error)
	// Source overrides the record's source when this step answers.
	Source string
}

// FallbackChain tries steps in order until one yields a usable price. Each
// step completes before the next starts; Delay is applied between them.
type FallbackChain struct {
	Steps  []FallbackStep
	Delay  DelayPolicy
	Source string
}

// Run returns the first usable price, or an N/A record whose note lists why
// each attempted step failed.
func (c FallbackChain) Run(ctx context.Context, q models.CardQuery) models.PriceRecord {
	var notes []string
	attempt := 0
	for _, step := range c.Steps {
		if step.Applies != nil && !step.Applies(q) {
			continue
		}
		if err := waitFor(ctx, c.Delay, attempt); err != nil {
			notes = append(notes, fmt.Sprintf("%s skipped: %v", step.Name, err))
			break
		}
		attempt++

		rec, err := step.Fetch(ctx, q)
		if err != nil {
			logProviderError(step.Name, q, err)
			notes = append(notes, failureNote(step.Name, err))
			continue
		}
		if !rec.Found() {
			if rec.Note != "" {
				notes = append(notes, rec.Note)
			} else {
				notes = append(notes, step.Name+" has no price")
			}
			continue
		}
		if step.Source != "" {
			rec.Source = step.Source
		}
		return rec
	}

	note := "no provider returned a price"
	if len(notes) > 0 {
		note = joinNotes(notes)
	}
	return models.Unavailable(c.Source, note)
}

func joinNotes(notes []string) string {
	out := notes[0]
	for _, n := range notes[1:] {
		out += "; " + n
	}
	return out
}

// logProviderError logs transient failures with the card identity.
// Not-found outcomes are expected and not logged.
func logProviderError(provider string, q models.CardQuery, err error) {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrNotConfigured) {
		return
	}
	log.Printf("Price service: %s %s for %q (set %q, number %q): %v", provider, outcomeLabel(err), q.Title, q.SetName, q.CardNumber, err)
}

// ProviderStatus is the availability report for one provider.
type ProviderStatus struct {
	Name       string    `json:"name"`
	Configured bool      `json:"configured"`
	Blocked    bool      `json:"blocked"`
	Used       int       `json:"used"`
	ResetAt    time.Time `json:"reset_at,omitempty"`
}

// PriceService is the price aggregation engine.
//
// Fallback order for the single best price: card database -> JustTCG (only
// with a set, a number and an API key). The detail view additionally asks
// eBay sold listings and PokemonPriceTracker and returns all three answers
// side by side without picking a winner.
type PriceService struct {
	cardDB  StructuredPriceProvider
	justTCG VariantPriceProvider
	ebay    SoldListingsProvider
	tracker TrackedPriceProvider
	limiter *ratelimit.Limiter
	chain   FallbackChain
}

// PriceServiceConfig wires the engine's collaborators.
type PriceServiceConfig struct {
	CardDB  StructuredPriceProvider
	JustTCG VariantPriceProvider
	Ebay    SoldListingsProvider
	Tracker TrackedPriceProvider
	Limiter *ratelimit.Limiter
	// FallbackDelay is applied between chain steps; nil means no delay.
	FallbackDelay DelayPolicy
}

func NewPriceService(cfg PriceServiceConfig) *PriceService {
	s := &PriceService{
		cardDB:  cfg.CardDB,
		justTCG: cfg.JustTCG,
		ebay:    cfg.Ebay,
		tracker: cfg.Tracker,
		limiter: cfg.Limiter,
	}

	var steps []FallbackStep
	if s.cardDB != nil {
		steps = append(steps, FallbackStep{
			Name:  tcgdexProvider,
			Fetch: s.cardDB.FetchStructuredPrice,
		})
	}
	if s.justTCG != nil {
		steps = append(steps, FallbackStep{
			Name: justTCGProvider,
			Applies: func(q models.CardQuery) bool {
				return q.HasNumberAndSet() && s.justTCG.Configured()
			},
			Fetch:  s.justTCG.FetchVariantPrice,
			Source: models.SourceTCGPlayerJustTCG,
		})
	}
	s.chain = FallbackChain{Steps: steps, Delay: cfg.FallbackDelay, Source: models.SourceTCGPlayer}
	return s
}

// ResolvePrice returns the best single price for q using strict fallback.
// It never panics and never returns a provider error.
func (s *PriceService) ResolvePrice(ctx context.Context, q models.CardQuery) (rec models.PriceRecord) {
	defer s.recoverInto(&rec, q)

	rec = s.chain.Run(ctx, q)
	metrics.PriceResolutionsTotal.WithLabelValues(rec.Source, strconv.FormatBool(rec.Found())).Inc()
	return rec
}

// ResolveAllPrices queries the sold-listings provider, the tracker and the
// fallback chain concurrently and returns every answer.
func (s *PriceService) ResolveAllPrices(ctx context.Context, q models.CardQuery) models.PriceBundle {
	var bundle models.PriceBundle
	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		bundle.Ebay = s.guard(q, func() models.PriceRecord {
			if s.ebay == nil || !s.ebay.Configured() {
				return models.Unavailable(models.SourceEbay, failureNote(ebayProvider, ErrNotConfigured))
			}
			rec, err := s.ebay.FetchSoldListingsPrice(ctx, q.Title, q.CardNumber, q.SetName)
			return providerRecord(ebayProvider, models.SourceEbay, q, rec, err)
		})
	}()
	go func() {
		defer wg.Done()
		bundle.PokemonPriceTracker = s.guard(q, func() models.PriceRecord {
			if s.tracker == nil || !s.tracker.Configured() {
				return models.Unavailable(models.SourcePokemonPriceTracker, failureNote(pokemonPriceTrackerProvider, ErrNotConfigured))
			}
			rec, err := s.tracker.FetchTrackedPrice(ctx, q.Title, q.CardNumber, q.SetName, q.Language)
			return providerRecord(pokemonPriceTrackerProvider, models.SourcePokemonPriceTracker, q, rec, err)
		})
	}()
	go func() {
		defer wg.Done()
		bundle.TCGPlayer = s.ResolvePrice(ctx, q)
	}()
	wg.Wait()

	return bundle
}

// providerRecord converts an adapter result into a record that is always valid.
func providerRecord(provider, source string, q models.CardQuery, rec models.PriceRecord, err error) models.PriceRecord {
	if err != nil {
		logProviderError(provider, q, err)
		return models.Unavailable(source, failureNote(provider, err))
	}
	if rec.Source == "" {
		rec.Source = source
	}
	if !rec.Found() {
		rec.AveragePrice = models.NotAvailable
	}
	metrics.PriceResolutionsTotal.WithLabelValues(rec.Source, strconv.FormatBool(rec.Found())).Inc()
	return rec
}

func (s *PriceService) guard(q models.CardQuery, fn func() models.PriceRecord) (rec models.PriceRecord) {
	defer s.recoverInto(&rec, q)
	return fn()
}

func (s *PriceService) recoverInto(rec *models.PriceRecord, q models.CardQuery) {
	if r := recover(); r != nil {
		metrics.EnginePanicsTotal.Inc()
		log.Printf("Price service: recovered panic resolving %q: %v", q.Title, r)
		*rec = models.Unavailable(models.SourceEngine, "price lookup failed unexpectedly")
	}
}

// Status reports configuration and rate-limit state for every provider.
func (s *PriceService) Status() []ProviderStatus {
	configured := map[string]bool{
		tcgdexProvider:              s.cardDB != nil,
		justTCGProvider:             s.justTCG != nil && s.justTCG.Configured(),
		ebayProvider:                s.ebay != nil && s.ebay.Configured(),
		pokemonPriceTrackerProvider: s.tracker != nil && s.tracker.Configured(),
	}

	var windows map[string]ratelimit.WindowState
	if s.limiter != nil {
		windows = s.limiter.Snapshot()
	}

	names := []string{tcgdexProvider, justTCGProvider, ebayProvider, pokemonPriceTrackerProvider}
	out := make([]ProviderStatus, 0, len(names))
	for _, name := range names {
		st := ProviderStatus{Name: name, Configured: configured[name]}
		if w, ok := windows[name]; ok {
			st.Blocked = w.Blocked
			st.Used = w.Used
			st.ResetAt = w.ResetAt
		}
		out = append(out, st)
	}
	return out
}
