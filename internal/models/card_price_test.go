package models

import (
	"encoding/json"
	"math"
	"testing"
)

func TestNewPrice(t *testing.T) {
	tests := []struct {
		name     string
		input    float64
		expected Price
	}{
		{"positive stays", 12.5, Price(12.5)},
		{"zero is N/A", 0, NotAvailable},
		{"negative is N/A", -3, NotAvailable},
		{"NaN is N/A", math.NaN(), NotAvailable},
		{"Inf is N/A", math.Inf(1), NotAvailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NewPrice(tt.input)
			if result != tt.expected {
				t.Errorf("NewPrice(%v) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestPriceRecordJSON(t *testing.T) {
	rec := PriceRecord{AveragePrice: NewPrice(45), Source: SourceEbay}
	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if got := string(data); got != `{"averagePrice":45,"source":"eBay"}` {
		t.Errorf("unexpected JSON %s", got)
	}

	na := Unavailable(SourceTCGPlayer, "no set match")
	data, err = json.Marshal(na)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if got := string(data); got != `{"averagePrice":"N/A","source":"TCGplayer","note":"no set match"}` {
		t.Errorf("unexpected JSON %s", got)
	}

	var back PriceRecord
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if back.Found() {
		t.Error("N/A record should not be Found")
	}

	var bad Price
	if err := json.Unmarshal([]byte(`"cheap"`), &bad); err == nil {
		t.Error("expected error for non N/A string")
	}
}

func TestHasAnyPrice(t *testing.T) {
	na := Unavailable(SourceTCGPlayer, "")
	priced := PriceRecord{AveragePrice: NewPrice(2.5), Source: SourceTCGPlayer}

	allNA := &CardSearchResult{Cards: []CardSummary{{Price: &na}, {Price: &na}, {}}}
	if allNA.HasAnyPrice() {
		t.Error("all N/A result should report no price")
	}

	mixed := &CardSearchResult{Cards: []CardSummary{{Price: &na}, {Price: &priced}}}
	if !mixed.HasAnyPrice() {
		t.Error("mixed result should report a price")
	}
}

func TestCardQueryHasNumberAndSet(t *testing.T) {
	if (CardQuery{CardNumber: "4"}).HasNumberAndSet() {
		t.Error("number without set must not be a match key")
	}
	if !(CardQuery{CardNumber: "4", SetName: "Base Set"}).HasNumberAndSet() {
		t.Error("number with set should be a match key")
	}
}

func TestNormalizeLanguage(t *testing.T) {
	tests := []struct {
		in   string
		want Language
	}{
		{"English", LanguageEnglish},
		{"en", LanguageEnglish},
		{"", LanguageEnglish},
		{"Japanese", LanguageJapanese},
		{"JP", LanguageJapanese},
		{"ger", LanguageGerman},
		{"fr", LanguageFrench},
		{"Italian", LanguageItalian},
		{"es", LanguageSpanish},
		{"pt-BR", LanguagePortuguese},
		{"klingon", LanguageEnglish},
	}

	for _, tt := range tests {
		if got := NormalizeLanguage(tt.in); got != tt.want {
			t.Errorf("NormalizeLanguage(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
