package services

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codyseavey/cardprice/internal/models"
)

func listing(title string, price float64) SoldListing {
	return SoldListing{Title: title, Price: decimal.NewFromFloat(price)}
}

func titles(listings []SoldListing) []string {
	out := make([]string, len(listings))
	for i, l := range listings {
		out[i] = l.Title
	}
	return out
}

func TestFilterListingsPikachuBaseSet(t *testing.T) {
	target := ListingTarget{Name: "Pikachu", CardNumber: "58", SetName: "Base Set"}
	listings := []SoldListing{
		listing("Pikachu 58/102 Base Set Yellow Cheeks", 40),
		listing("PSA 10 Pikachu 58/102 Base Set", 500),
		listing("Pikachu 58/102 Base Set Holo", 50),
		listing("Pokemon card lot Pikachu Base Set", 30),
		listing("Pikachu 60/64 Jungle Base Set", 20),
	}

	kept := FilterListings(listings, target)
	assert.Equal(t, []string{
		"Pikachu 58/102 Base Set Yellow Cheeks",
		"Pikachu 58/102 Base Set Holo",
	}, titles(kept))

	rec := SummarizeListings(kept, target)
	assert.Equal(t, models.Price(45), rec.AveragePrice)
	assert.Equal(t, models.SourceEbay, rec.Source)
	assert.Len(t, rec.Listings, 2)
}

func TestFilterListingsDropsGradedCopy(t *testing.T) {
	target := ListingTarget{Name: "Pikachu", CardNumber: "58", SetName: "Jungle"}
	kept := FilterListings([]SoldListing{
		listing("PSA 10 Pikachu 58 Jungle", 500),
		listing("Pikachu 58/64 Jungle Holo", 45),
	}, target)
	assert.Equal(t, []string{"Pikachu 58/64 Jungle Holo"}, titles(kept))
	assert.Equal(t, models.Price(45), SummarizeListings(kept, target).AveragePrice)
}

func TestFilterListingsRules(t *testing.T) {
	tests := []struct {
		name    string
		target  ListingTarget
		listing SoldListing
		keep    bool
	}{
		{"graded keyword", ListingTarget{Name: "Umbreon"}, listing("Umbreon VMAX Graded gem", 90), false},
		{"grade score", ListingTarget{Name: "Umbreon"}, listing("Umbreon VMAX CGC 9.5", 90), false},
		{"bulk word", ListingTarget{Name: "Umbreon"}, listing("Umbreon booster pack art", 5), false},
		{"bulk is whole word", ListingTarget{Name: "Lotad"}, listing("Lotad reverse holo", 1), true},
		{"missing name word", ListingTarget{Name: "Umbreon VMAX"}, listing("Espeon VMAX", 90), false},
		{"no number in title", ListingTarget{Name: "Pikachu", CardNumber: "58"}, listing("Pikachu yellow cheeks", 12), true},
		{"one of several numbers matches", ListingTarget{Name: "Pikachu", CardNumber: "58"}, listing("Pikachu #12 58/102", 12), true},
		{"leading zeros", ListingTarget{Name: "Pikachu", CardNumber: "058"}, listing("Pikachu 058/102", 12), true},
		{"non-numeric target skips number check", ListingTarget{Name: "Giratina", CardNumber: "GG69"}, listing("Giratina 12/100", 12), true},
		{"set by ratio", ListingTarget{Name: "Giratina", SetName: "Crown Zenith Galarian Gallery"}, listing("Giratina VSTAR Crown Zenith Galarian GG69", 80), true},
		{"set below ratio", ListingTarget{Name: "Giratina", SetName: "Crown Zenith Galarian Gallery"}, listing("Giratina VSTAR Crown Zenith", 80), false},
		{"unknown set skips set check", ListingTarget{Name: "Giratina", SetName: "Unknown Set"}, listing("Giratina VSTAR", 80), true},
		{"zero price", ListingTarget{Name: "Pikachu"}, listing("Pikachu", 0), false},
		{"at ceiling", ListingTarget{Name: "Charizard"}, listing("Charizard 1st edition", 50000), true},
		{"above ceiling", ListingTarget{Name: "Charizard"}, listing("Charizard 1st edition", 50000.01), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kept := FilterListings([]SoldListing{tt.listing}, tt.target)
			assert.Equal(t, tt.keep, len(kept) == 1)
		})
	}
}

func TestSummarizeListings(t *testing.T) {
	target := ListingTarget{Name: "Eevee", CardNumber: "133", SetName: "151"}

	na := SummarizeListings(nil, target)
	assert.False(t, na.Found())
	assert.Contains(t, na.Note, `name "Eevee"`)
	assert.Contains(t, na.Note, "number 133")
	assert.Contains(t, na.Note, `set "151"`)

	var many []SoldListing
	for i := 1; i <= 7; i++ {
		many = append(many, listing(fmt.Sprintf("Eevee 133/165 #%d", i), 1))
	}
	many = append(many, listing("Eevee 133/165", 2.333))
	rec := SummarizeListings(many, target)
	assert.Equal(t, models.Price(1.17), rec.AveragePrice, "(7 + 2.333) / 8 rounded to cents")
	assert.Len(t, rec.Listings, 5)
	assert.Equal(t, "average of 8 sold listings", rec.Note)
}

func TestBuildSoldQuery(t *testing.T) {
	assert.Equal(t, "Pikachu 58 Base Set", BuildSoldQuery(ListingTarget{Name: "Pikachu", CardNumber: "58", SetName: "Base Set"}))
	assert.Equal(t, "Pikachu", BuildSoldQuery(ListingTarget{Name: "Pikachu", SetName: "Unknown Set"}))
}

const soldPage = `<html><body><ul class="srp-results">
<li class="s-item"><div class="s-item__title">Shop on eBay</div><span class="s-item__price">$20.00</span></li>
<li class="s-item">
  <a class="s-item__link" href="https://www.ebay.com/itm/1"><div class="s-item__title"><span>New Listing</span>Pikachu 58/102 Base Set</div></a>
  <div class="s-item__subtitle"><span class="SECONDARY_INFO">Pre-Owned</span></div>
  <span class="s-item__price">$40.00</span>
</li>
<li class="s-item">
  <a class="s-item__link" href="https://www.ebay.com/itm/2"><div class="s-item__title">Pikachu 58/102 Base Set Holo</div></a>
  <span class="s-item__price">$50.00 to $60.00</span>
</li>
<li class="s-item">
  <div class="s-item__title">Charizard 4/102 Base Set</div>
  <span class="s-item__price">$1,234.50</span>
</li>
<li class="s-item"><div class="s-item__title">No price here</div></li>
</ul></body></html>`

func TestParseSoldListings(t *testing.T) {
	listings, err := ParseSoldListings([]byte(soldPage))
	require.NoError(t, err)
	require.Len(t, listings, 3)

	assert.Equal(t, "Pikachu 58/102 Base Set", listings[0].Title)
	assert.Equal(t, "40", listings[0].Price.String())
	assert.Equal(t, "Pre-Owned", listings[0].Condition)
	assert.Equal(t, "https://www.ebay.com/itm/1", listings[0].URL)

	assert.Equal(t, "50", listings[1].Price.String(), "first amount of a range")
	assert.Equal(t, "1234.5", listings[2].Price.String())
}

func TestFetchSoldListingsPriceBrotli(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/sch/i.html", r.URL.Path)
		assert.Equal(t, "Pikachu 58 Base Set", q.Get("_nkw"))
		assert.Equal(t, "1", q.Get("LH_Sold"))
		assert.Equal(t, "1", q.Get("LH_Complete"))
		assert.True(t, strings.Contains(r.Header.Get("User-Agent"), "Mozilla"))

		w.Header().Set("Content-Encoding", "br")
		w.Header().Set("Content-Type", "text/html")
		bw := brotli.NewWriter(w)
		_, _ = bw.Write([]byte(soldPage))
		_ = bw.Close()
	}))
	defer srv.Close()

	svc := NewEbaySoldService(srv.URL, true, 0, 0, testPacing())
	rec, err := svc.FetchSoldListingsPrice(context.Background(), "Pikachu 58/102 Holo", "58", "Base Set")
	require.NoError(t, err)
	assert.Equal(t, models.Price(45), rec.AveragePrice)
	assert.Equal(t, "Pikachu", rec.CardName)
	require.Len(t, rec.Listings, 2)
	assert.Equal(t, "https://www.ebay.com/itm/1", rec.Listings[0].URL)
}

func TestFetchSoldListingsPriceDisabled(t *testing.T) {
	svc := NewEbaySoldService("http://127.0.0.1:0", false, 0, 0, testPacing())
	assert.False(t, svc.Configured())
	_, err := svc.FetchSoldListingsPrice(context.Background(), "Pikachu", "58", "Base Set")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
