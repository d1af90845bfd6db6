package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/codyseavey/cardprice/internal/models"
	"github.com/codyseavey/cardprice/internal/services"
)

// PriceEngine is the part of the price aggregation engine the HTTP API uses.
type PriceEngine interface {
	ResolvePrice(ctx context.Context, q models.CardQuery) models.PriceRecord
	ResolveAllPrices(ctx context.Context, q models.CardQuery) models.PriceBundle
	Status() []services.ProviderStatus
}

type PriceHandler struct {
	engine PriceEngine
}

func NewPriceHandler(engine PriceEngine) *PriceHandler {
	return &PriceHandler{
		engine: engine,
	}
}

// cardQuery reads the card identity from the query string.
func cardQuery(c *gin.Context) (models.CardQuery, bool) {
	title := strings.TrimSpace(c.Query("title"))
	if title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'title' is required"})
		return models.CardQuery{}, false
	}
	return models.CardQuery{
		Title:          title,
		CardID:         strings.TrimSpace(c.Query("id")),
		CardNumber:     strings.TrimSpace(c.Query("number")),
		SetName:        strings.TrimSpace(c.Query("set")),
		Language:       models.NormalizeLanguage(c.Query("language")),
		IncludePricing: true,
	}, true
}

// ResolvePrice returns the single best price using the fallback chain.
// An unpriced card is a normal 200 response carrying "N/A".
func (h *PriceHandler) ResolvePrice(c *gin.Context) {
	q, ok := cardQuery(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.engine.ResolvePrice(c.Request.Context(), q))
}

// ResolveAllPrices returns every provider's answer side by side.
func (h *PriceHandler) ResolveAllPrices(c *gin.Context) {
	q, ok := cardQuery(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.engine.ResolveAllPrices(c.Request.Context(), q))
}

// GetPriceStatus reports provider configuration and rate-limit windows.
func (h *PriceHandler) GetPriceStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"providers": h.engine.Status()})
}
