package handlers

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/codyseavey/cardprice/internal/models"
)

// CardSearch runs (optionally priced) card listing searches.
type CardSearch interface {
	Search(ctx context.Context, req models.CardSearchRequest) (*models.CardSearchResult, error)
}

type CardHandler struct {
	search CardSearch
}

func NewCardHandler(search CardSearch) *CardHandler {
	return &CardHandler{
		search: search,
	}
}

func (h *CardHandler) SearchCards(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'q' is required"})
		return
	}

	req := models.CardSearchRequest{
		Query:          query,
		SetName:        strings.TrimSpace(c.Query("set")),
		Rarity:         strings.TrimSpace(c.Query("rarity")),
		Type:           strings.TrimSpace(c.Query("type")),
		Language:       models.NormalizeLanguage(c.Query("language")),
		IncludePricing: queryBool(c, "pricing"),
		Refresh:        queryBool(c, "refresh"),
	}

	result, err := h.search.Search(c.Request.Context(), req)
	if err != nil {
		log.Printf("Card search: %q failed: %v", query, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "card search is temporarily unavailable"})
		return
	}

	c.JSON(http.StatusOK, result)
}

func queryBool(c *gin.Context, name string) bool {
	v, err := strconv.ParseBool(c.Query(name))
	return err == nil && v
}
