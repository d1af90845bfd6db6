package services

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"github.com/codyseavey/cardprice/internal/models"
	"github.com/codyseavey/cardprice/internal/normalize"
	"github.com/codyseavey/cardprice/internal/ratelimit"
)

const (
	ebayBaseURL        = "https://www.ebay.com"
	ebayProvider       = "ebay"
	ebayDefaultResults = 60
	ebayMaxCitations   = 5
	ebayUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
)

// MaxPlausiblePrice rejects sold prices above this many dollars as data errors.
var MaxPlausiblePrice = decimal.NewFromInt(50000)

var (
	gradedPatterns = normalize.WholeWordPatterns(normalize.GradingServiceTokens)
	bulkPatterns   = normalize.WholeWordPatterns(normalize.BulkTerms)
	priceAmount    = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)
)

// SoldListing is one completed sale scraped from the search results page.
type SoldListing struct {
	Title     string
	Price     decimal.Decimal
	Condition string
	URL       string
}

// ListingTarget is the identity a sold listing must match.
type ListingTarget struct {
	Name       string
	CardNumber string
	SetName    string
}

// EbaySoldService is the commerce sold-listings provider. It scrapes the
// completed-sales search page and averages the listings that survive
// FilterListings.
type EbaySoldService struct {
	http       *providerClient
	baseURL    string
	maxResults int
	enabled    bool
	polite     *ratelimit.Polite
}

func NewEbaySoldService(baseURL string, enabled bool, maxResults int, politeInterval time.Duration, pacing Pacing) *EbaySoldService {
	if baseURL == "" {
		baseURL = ebayBaseURL
	}
	if maxResults <= 0 {
		maxResults = ebayDefaultResults
	}
	s := &EbaySoldService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		maxResults: maxResults,
		enabled:    enabled,
		polite:     ratelimit.NewPolite(ebayProvider, politeInterval, 1),
	}
	s.http = newProviderClient(ebayProvider, pacing, setBrowserHeaders)
	return s
}

func (s *EbaySoldService) Name() string {
	return ebayProvider
}

func (s *EbaySoldService) Configured() bool {
	return s.enabled
}

func setBrowserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", ebayUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept-Encoding", "gzip, br")
}

// BuildSoldQuery is the normalized card name plus the card number and set
// name when present.
func BuildSoldQuery(t ListingTarget) string {
	parts := []string{t.Name}
	if t.CardNumber != "" {
		parts = append(parts, t.CardNumber)
	}
	if t.SetName != "" && t.SetName != normalize.UnknownSet {
		parts = append(parts, t.SetName)
	}
	return strings.Join(parts, " ")
}

// FetchSoldListingsPrice averages recent raw-copy sales that match the card.
func (s *EbaySoldService) FetchSoldListingsPrice(ctx context.Context, title, cardNumber, setName string) (models.PriceRecord, error) {
	if !s.enabled {
		return models.PriceRecord{}, ErrNotConfigured
	}

	target := ListingTarget{
		Name:       normalize.ExtractCardName(title),
		CardNumber: cardNumber,
		SetName:    setName,
	}

	params := url.Values{}
	params.Set("_nkw", BuildSoldQuery(target))
	params.Set("LH_Sold", "1")
	params.Set("LH_Complete", "1")
	params.Set("_ipg", strconv.Itoa(s.maxResults))

	if err := s.polite.Wait(ctx); err != nil {
		return models.PriceRecord{}, err
	}
	body, err := s.http.get(ctx, s.baseURL+"/sch/i.html?"+params.Encode())
	if err != nil {
		return models.PriceRecord{}, err
	}

	listings, err := ParseSoldListings(body)
	if err != nil {
		return models.PriceRecord{}, err
	}
	if len(listings) > s.maxResults {
		listings = listings[:s.maxResults]
	}

	return SummarizeListings(FilterListings(listings, target), target), nil
}

// ParseSoldListings extracts listings from a sold-search results page.
func ParseSoldListings(page []byte) ([]SoldListing, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("failed to parse sold listings page: %w", err)
	}

	var listings []SoldListing
	doc.Find("li.s-item").Each(func(i int, item *goquery.Selection) {
		title := normalize.CleanListingTitle(item.Find(".s-item__title").First().Text())
		if title == "" {
			return
		}
		price, ok := parseListingPrice(item.Find(".s-item__price").First().Text())
		if !ok {
			return
		}
		href, _ := item.Find("a.s-item__link").First().Attr("href")
		listings = append(listings, SoldListing{
			Title:     title,
			Price:     price,
			Condition: strings.TrimSpace(item.Find(".SECONDARY_INFO").First().Text()),
			URL:       href,
		})
	})
	return listings, nil
}

// parseListingPrice reads the first amount of "$45.00" or "$10.00 to $20.00".
func parseListingPrice(text string) (decimal.Decimal, bool) {
	m := priceAmount.FindString(text)
	if m == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(m, ",", ""))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// FilterListings keeps the listings that are plausibly a raw copy of target.
// The input order is preserved.
func FilterListings(listings []SoldListing, target ListingTarget) []SoldListing {
	nameWords := normalize.SignificantWords(target.Name)
	wantNumber, hasNumber := normalize.NumericCardNumber(target.CardNumber)
	checkSet := target.SetName != "" && target.SetName != normalize.UnknownSet

	var kept []SoldListing
	for _, l := range listings {
		title := strings.ToLower(l.Title)

		if isGraded(l.Title) || matchesAny(bulkPatterns, l.Title) {
			continue
		}
		if !containsAll(title, nameWords) {
			continue
		}
		if hasNumber && numberConflicts(l.Title, wantNumber) {
			continue
		}
		if checkSet && !setMentioned(title, target.SetName) {
			continue
		}
		if !l.Price.IsPositive() || l.Price.GreaterThan(MaxPlausiblePrice) {
			continue
		}
		kept = append(kept, l)
	}
	return kept
}

// SummarizeListings averages the surviving listings and cites the first few.
func SummarizeListings(listings []SoldListing, target ListingTarget) models.PriceRecord {
	if len(listings) == 0 {
		return models.Unavailable(models.SourceEbay, "no sold listings matched "+describeTarget(target))
	}

	sum := decimal.Zero
	for _, l := range listings {
		sum = sum.Add(l.Price)
	}
	avg, _ := sum.Div(decimal.NewFromInt(int64(len(listings)))).Round(2).Float64()

	citations := make([]models.ListingCitation, 0, ebayMaxCitations)
	for _, l := range listings {
		if len(citations) == ebayMaxCitations {
			break
		}
		price, _ := l.Price.Float64()
		citations = append(citations, models.ListingCitation{
			Title:     normalize.CleanListingTitle(l.Title),
			Price:     price,
			Condition: l.Condition,
			URL:       l.URL,
		})
	}

	return models.PriceRecord{
		AveragePrice: models.NewPrice(avg),
		Source:       models.SourceEbay,
		CardName:     target.Name,
		CardNumber:   target.CardNumber,
		SetName:      target.SetName,
		Note:         fmt.Sprintf("average of %d sold listings", len(listings)),
		Listings:     citations,
	}
}

func describeTarget(t ListingTarget) string {
	parts := []string{fmt.Sprintf("name %q", t.Name)}
	if t.CardNumber != "" {
		parts = append(parts, fmt.Sprintf("number %s", t.CardNumber))
	}
	if t.SetName != "" && t.SetName != normalize.UnknownSet {
		parts = append(parts, fmt.Sprintf("set %q", t.SetName))
	}
	return strings.Join(parts, ", ")
}

func isGraded(title string) bool {
	return matchesAny(gradedPatterns, title) || normalize.GradeScorePattern.MatchString(title)
}

func matchesAny(patterns []*regexp.Regexp, s string) bool {
	for _, re := range patterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

func containsAll(title string, words []string) bool {
	for _, w := range words {
		if !strings.Contains(title, w) {
			return false
		}
	}
	return true
}

// numberConflicts reports whether title names card numbers and none of them
// is want. A title with no number pattern never conflicts.
func numberConflicts(title, want string) bool {
	found := false
	for _, re := range normalize.CardNumberPatterns {
		for _, m := range re.FindAllStringSubmatch(title, -1) {
			found = true
			if m[1] == want {
				return false
			}
		}
	}
	return found
}

// setMentioned accepts the full set name or, failing that, at least
// SetNameMatchRatio of its significant words (rounded up).
func setMentioned(title, setName string) bool {
	if strings.Contains(title, strings.ToLower(setName)) {
		return true
	}
	words := normalize.SignificantWords(setName)
	if len(words) == 0 {
		return false
	}
	need := int(math.Ceil(float64(len(words)) * normalize.SetNameMatchRatio))
	have := 0
	for _, w := range words {
		if strings.Contains(title, w) {
			have++
		}
	}
	return have >= need
}
