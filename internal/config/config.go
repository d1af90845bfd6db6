// Package config loads service settings from an optional .env file and the
// environment.
package config

import (
	"errors"
	"io/fs"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the full set of runtime settings.
type Config struct {
	Port string

	DBPath          string
	CacheBackend    string
	CacheMemorySize int

	CardDBBaseURL string
	CardDBAPIKey  string

	JustTCGBaseURL string
	JustTCGAPIKey  string

	TrackerBaseURL    string
	TrackerAPIKey     string
	TrackerMinSpacing time.Duration

	EbayEnabled        bool
	EbayBaseURL        string
	EbayMaxResults     int
	EbayPoliteInterval time.Duration

	QueueDelay          time.Duration
	SearchStagger       time.Duration
	ProviderMaxRequests int
	ProviderWindow      time.Duration

	CurrencyBaseURL    string
	CORSAllowedOrigins []string
	CacheSweepSchedule string
}

const (
	CacheBackendSQLite = "sqlite"
	CacheBackendMemory = "memory"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("DB_PATH", "./pricing_cache.db")
	v.SetDefault("CACHE_BACKEND", CacheBackendSQLite)
	v.SetDefault("CACHE_MEMORY_SIZE", 2048)
	v.SetDefault("CARD_DB_BASE_URL", "https://api.tcgdex.net/v2")
	v.SetDefault("CARD_DB_API_KEY", "")
	v.SetDefault("JUSTTCG_BASE_URL", "https://api.justtcg.com/v1")
	v.SetDefault("JUSTTCG_API_KEY", "")
	v.SetDefault("POKEMON_PRICE_TRACKER_BASE_URL", "https://www.pokemonpricetracker.com/api/v2")
	v.SetDefault("POKEMON_PRICE_TRACKER_API_KEY", "")
	v.SetDefault("TRACKER_MIN_SPACING", "1s")
	v.SetDefault("EBAY_ENABLED", true)
	v.SetDefault("EBAY_BASE_URL", "https://www.ebay.com")
	v.SetDefault("EBAY_MAX_RESULTS", 60)
	v.SetDefault("EBAY_POLITE_INTERVAL", "2s")
	v.SetDefault("QUEUE_DELAY", "250ms")
	v.SetDefault("SEARCH_STAGGER", "150ms")
	v.SetDefault("PROVIDER_MAX_REQUESTS", 60)
	v.SetDefault("PROVIDER_WINDOW", "1m")
	v.SetDefault("CURRENCY_BASE_URL", "https://api.frankfurter.app")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("CACHE_SWEEP_SCHEDULE", "@every 30m")
}

// Load reads .env (when present) into the process environment and returns
// the resulting configuration.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	v := viper.New()
	v.AutomaticEnv()
	return FromViper(v), nil
}

// FromViper builds a Config from v after applying defaults.
func FromViper(v *viper.Viper) *Config {
	setDefaults(v)

	backend := strings.ToLower(v.GetString("CACHE_BACKEND"))
	if backend != CacheBackendMemory {
		backend = CacheBackendSQLite
	}

	return &Config{
		Port:                v.GetString("PORT"),
		DBPath:              v.GetString("DB_PATH"),
		CacheBackend:        backend,
		CacheMemorySize:     v.GetInt("CACHE_MEMORY_SIZE"),
		CardDBBaseURL:       v.GetString("CARD_DB_BASE_URL"),
		CardDBAPIKey:        v.GetString("CARD_DB_API_KEY"),
		JustTCGBaseURL:      v.GetString("JUSTTCG_BASE_URL"),
		JustTCGAPIKey:       v.GetString("JUSTTCG_API_KEY"),
		TrackerBaseURL:      v.GetString("POKEMON_PRICE_TRACKER_BASE_URL"),
		TrackerAPIKey:       v.GetString("POKEMON_PRICE_TRACKER_API_KEY"),
		TrackerMinSpacing:   v.GetDuration("TRACKER_MIN_SPACING"),
		EbayEnabled:         v.GetBool("EBAY_ENABLED"),
		EbayBaseURL:         v.GetString("EBAY_BASE_URL"),
		EbayMaxResults:      v.GetInt("EBAY_MAX_RESULTS"),
		EbayPoliteInterval:  v.GetDuration("EBAY_POLITE_INTERVAL"),
		QueueDelay:          v.GetDuration("QUEUE_DELAY"),
		SearchStagger:       v.GetDuration("SEARCH_STAGGER"),
		ProviderMaxRequests: v.GetInt("PROVIDER_MAX_REQUESTS"),
		ProviderWindow:      v.GetDuration("PROVIDER_WINDOW"),
		CurrencyBaseURL:     v.GetString("CURRENCY_BASE_URL"),
		CORSAllowedOrigins:  splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		CacheSweepSchedule:  v.GetString("CACHE_SWEEP_SCHEDULE"),
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// MissingProviderKeys names the optional providers that will report "N/A"
// for the life of the process because their credential is absent.
func (c *Config) MissingProviderKeys() []string {
	var missing []string
	if c.JustTCGAPIKey == "" {
		missing = append(missing, "JUSTTCG_API_KEY")
	}
	if c.TrackerAPIKey == "" {
		missing = append(missing, "POKEMON_PRICE_TRACKER_API_KEY")
	}
	return missing
}

// LogMissing reports absent provider credentials once at startup.
func (c *Config) LogMissing() {
	for _, key := range c.MissingProviderKeys() {
		log.Printf("Config: %s not set, provider disabled until restart", key)
	}
	if !c.EbayEnabled {
		log.Printf("Config: EBAY_ENABLED=false, sold listings disabled")
	}
}
