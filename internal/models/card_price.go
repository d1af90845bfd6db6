package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// NotAvailable is the sentinel rendered as "N/A".
const NotAvailable Price = 0

const notAvailableText = "N/A"

// Price is a market price in USD. Any value that is not a positive finite
// number is treated as NotAvailable and serialized as the string "N/A".
type Price float64

// NewPrice returns v as a Price, collapsing zero, negative, NaN and Inf to NotAvailable.
func NewPrice(v float64) Price {
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return NotAvailable
	}
	return Price(v)
}

// Available reports whether p is a usable price.
func (p Price) Available() bool {
	v := float64(p)
	return v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}

func (p Price) String() string {
	if !p.Available() {
		return notAvailableText
	}
	return fmt.Sprintf("%.2f", float64(p))
}

func (p Price) MarshalJSON() ([]byte, error) {
	if !p.Available() {
		return json.Marshal(notAvailableText)
	}
	return json.Marshal(float64(p))
}

func (p *Price) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if !strings.EqualFold(s, notAvailableText) {
			return fmt.Errorf("invalid price %q", s)
		}
		*p = NotAvailable
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("invalid price: %w", err)
	}
	*p = NewPrice(v)
	return nil
}

// MarshalYAML keeps the CLI's YAML output in line with the JSON wire format.
func (p Price) MarshalYAML() (any, error) {
	if !p.Available() {
		return notAvailableText, nil
	}
	return float64(p), nil
}

// Price sources reported in PriceRecord.Source
const (
	SourceTCGPlayer           = "TCGplayer"
	SourceTCGPlayerJustTCG    = "TCGplayer (JustTCG)"
	SourceJustTCG             = "JustTCG"
	SourceEbay                = "eBay"
	SourcePokemonPriceTracker = "PokemonPriceTracker"
	SourceEngine              = "Price engine"
)

// PriceRecord is the single normalized price answer for a card identity.
type PriceRecord struct {
	AveragePrice Price             `json:"averagePrice" yaml:"averagePrice"`
	Source       string            `json:"source" yaml:"source"`
	CardName     string            `json:"cardName,omitempty" yaml:"cardName,omitempty"`
	CardNumber   string            `json:"cardNumber,omitempty" yaml:"cardNumber,omitempty"`
	SetName      string            `json:"setName,omitempty" yaml:"setName,omitempty"`
	Note         string            `json:"note,omitempty" yaml:"note,omitempty"`
	Listings     []ListingCitation `json:"listings,omitempty" yaml:"listings,omitempty"`
}

// Found reports whether the record carries a usable price.
func (r PriceRecord) Found() bool {
	return r.AveragePrice.Available()
}

// Unavailable builds an "N/A" record for source with an explanatory note.
func Unavailable(source, note string) PriceRecord {
	return PriceRecord{AveragePrice: NotAvailable, Source: source, Note: note}
}

// ListingCitation is a sold listing surfaced as evidence for an averaged price.
type ListingCitation struct {
	Title     string  `json:"title" yaml:"title"`
	Price     float64 `json:"price" yaml:"price"`
	Condition string  `json:"condition,omitempty" yaml:"condition,omitempty"`
	URL       string  `json:"url,omitempty" yaml:"url,omitempty"`
}

// PriceBundle is the labeled multi-provider answer used by detail views.
// No provider is preferred over another.
type PriceBundle struct {
	Ebay                PriceRecord `json:"ebay" yaml:"ebay"`
	PokemonPriceTracker PriceRecord `json:"pokemonPriceTracker" yaml:"pokemonPriceTracker"`
	TCGPlayer           PriceRecord `json:"tcgPlayer" yaml:"tcgPlayer"`
}

// PriceCondition represents the condition for pricing purposes
type PriceCondition string

const (
	PriceConditionNM  PriceCondition = "NM"  // Near Mint
	PriceConditionLP  PriceCondition = "LP"  // Lightly Played
	PriceConditionMP  PriceCondition = "MP"  // Moderately Played
	PriceConditionHP  PriceCondition = "HP"  // Heavily Played
	PriceConditionDMG PriceCondition = "DMG" // Damaged
)
