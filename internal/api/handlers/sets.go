package handlers

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codyseavey/cardprice/internal/models"
)

// SetCatalog exposes the cached provider set catalogs.
type SetCatalog interface {
	Catalog(ctx context.Context, provider string, lang models.Language) ([]models.SetRecord, error)
	FindRelatedSubsets(ctx context.Context, provider, setID string, lang models.Language) ([]string, error)
}

type SetHandler struct {
	catalog  SetCatalog
	provider string
}

// NewSetHandler serves the catalog of provider (the card database by default).
func NewSetHandler(catalog SetCatalog, provider string) *SetHandler {
	return &SetHandler{
		catalog:  catalog,
		provider: provider,
	}
}

func (h *SetHandler) ListSets(c *gin.Context) {
	lang := models.NormalizeLanguage(c.Query("language"))
	sets, err := h.catalog.Catalog(c.Request.Context(), h.provider, lang)
	if err != nil {
		log.Printf("Set catalog: %s/%s failed: %v", h.provider, lang, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "set catalog is temporarily unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sets": sets, "total_count": len(sets)})
}

func (h *SetHandler) ListSubsets(c *gin.Context) {
	setID := c.Param("id")
	lang := models.NormalizeLanguage(c.Query("language"))
	related, err := h.catalog.FindRelatedSubsets(c.Request.Context(), h.provider, setID, lang)
	if err != nil {
		log.Printf("Set catalog: subsets of %s failed: %v", setID, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "set catalog is temporarily unavailable"})
		return
	}
	if related == nil {
		related = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"set_id": setID, "subsets": related})
}
