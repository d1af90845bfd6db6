package api

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codyseavey/cardprice/internal/api/handlers"
	"github.com/codyseavey/cardprice/internal/metrics"
)

// Deps are the services behind the HTTP API.
type Deps struct {
	Prices   handlers.PriceEngine
	Search   handlers.CardSearch
	Sets     handlers.SetCatalog
	Currency handlers.RateSource

	// SetProvider is the provider whose set catalog /api/sets serves.
	SetProvider        string
	CORSAllowedOrigins []string
}

func SetupRouter(deps Deps) *gin.Engine {
	router := gin.Default()
	router.Use(RequestID(), metrics.HTTPMetrics())

	// CORS configuration - allow configured origins, "*" allows any
	config := cors.DefaultConfig()
	if len(deps.CORSAllowedOrigins) == 0 || containsWildcard(deps.CORSAllowedOrigins) {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = deps.CORSAllowedOrigins
	}
	config.AllowMethods = []string{"GET", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", RequestIDHeader}
	config.ExposeHeaders = []string{RequestIDHeader}
	config.AllowCredentials = false
	router.Use(cors.New(config))

	priceHandler := handlers.NewPriceHandler(deps.Prices)
	cardHandler := handlers.NewCardHandler(deps.Search)
	setHandler := handlers.NewSetHandler(deps.Sets, deps.SetProvider)
	currencyHandler := handlers.NewCurrencyHandler(deps.Currency)

	api := router.Group("/api")
	{
		prices := api.Group("/prices")
		{
			prices.GET("/resolve", priceHandler.ResolvePrice)
			prices.GET("/all", priceHandler.ResolveAllPrices)
			prices.GET("/status", priceHandler.GetPriceStatus)
		}

		api.GET("/cards/search", cardHandler.SearchCards)

		sets := api.Group("/sets")
		{
			sets.GET("", setHandler.ListSets)
			sets.GET("/:id/subsets", setHandler.ListSubsets)
		}

		api.GET("/currency/rates", currencyHandler.GetRates)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return router
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
