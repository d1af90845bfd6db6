package handlers

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codyseavey/cardprice/internal/services"
)

// RateSource returns USD conversion rates.
type RateSource interface {
	Rates(ctx context.Context, refresh bool) (services.CurrencyRates, error)
}

type CurrencyHandler struct {
	rates RateSource
}

func NewCurrencyHandler(rates RateSource) *CurrencyHandler {
	return &CurrencyHandler{rates: rates}
}

func (h *CurrencyHandler) GetRates(c *gin.Context) {
	rates, err := h.rates.Rates(c.Request.Context(), queryBool(c, "refresh"))
	if err != nil {
		log.Printf("Currency: rates fetch failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "currency rates are temporarily unavailable"})
		return
	}
	c.JSON(http.StatusOK, rates)
}
