package models

// CardQuery is the unit of work handed to the price aggregation engine.
// CardNumber and SetName are only used as a lookup key when both are present.
type CardQuery struct {
	Title      string   `json:"title"`
	CardID     string   `json:"card_id,omitempty"`
	CardNumber string   `json:"card_number,omitempty"`
	SetName    string   `json:"set_name,omitempty"`
	Language   Language `json:"language"`

	// IncludePricing is false for callers that only want identity data.
	IncludePricing bool `json:"include_pricing"`
}

// HasNumberAndSet reports whether the query can be matched by set + card number.
func (q CardQuery) HasNumberAndSet() bool {
	return q.CardNumber != "" && q.SetName != ""
}

// CardSummary is one row of a card listing search.
type CardSummary struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	CardNumber string       `json:"card_number"`
	SetID      string       `json:"set_id"`
	SetName    string       `json:"set_name"`
	Rarity     string       `json:"rarity,omitempty"`
	Types      []string     `json:"types,omitempty"`
	ImageURL   string       `json:"image_url,omitempty"`
	Language   Language     `json:"language"`
	Price      *PriceRecord `json:"price,omitempty"`
}

// CardSearchRequest describes a batch card listing search.
type CardSearchRequest struct {
	Query          string   `json:"q"`
	SetName        string   `json:"set,omitempty"`
	Rarity         string   `json:"rarity,omitempty"`
	Type           string   `json:"type,omitempty"`
	Language       Language `json:"language"`
	IncludePricing bool     `json:"pricing"`
	Refresh        bool     `json:"refresh"`
}

type CardSearchResult struct {
	Cards      []CardSummary `json:"cards"`
	TotalCount int           `json:"total_count"`
	Cached     bool          `json:"cached"`
}

// HasAnyPrice reports whether at least one card resolved to a real price.
func (r *CardSearchResult) HasAnyPrice() bool {
	for _, c := range r.Cards {
		if c.Price != nil && c.Price.AveragePrice.Available() {
			return true
		}
	}
	return false
}

// SetRecord is one entry of a provider's set catalog.
type SetRecord struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CardCount int    `json:"card_count,omitempty"`
}
