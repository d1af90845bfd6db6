package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/codyseavey/cardprice/internal/models"
)

const (
	currencyRefreshSchedule = "@hourly"
	maintenanceJobTimeout   = 2 * time.Minute
)

// Sweeper evicts expired entries from one cache namespace.
type Sweeper interface {
	Namespace() string
	Sweep(ctx context.Context) (int, error)
}

// MaintenanceService runs the scheduled background jobs: expired cache
// eviction, hourly currency refresh and a set catalog warm-up at startup.
type MaintenanceService struct {
	cron     *cron.Cron
	sweepers []Sweeper
	currency *CurrencyService
	resolver *SetResolver
	warm     []string
}

// NewMaintenanceService schedules the cache sweep on sweepSchedule (any
// robfig/cron spec such as "@every 30m"). currency and resolver may be nil.
func NewMaintenanceService(sweepSchedule string, currency *CurrencyService, resolver *SetResolver, warmProviders []string, sweepers ...Sweeper) (*MaintenanceService, error) {
	m := &MaintenanceService{
		cron: cron.New(cron.WithChain(
			cron.Recover(cron.DefaultLogger),
			cron.SkipIfStillRunning(cron.DefaultLogger),
		)),
		sweepers: sweepers,
		currency: currency,
		resolver: resolver,
		warm:     warmProviders,
	}

	if _, err := m.cron.AddFunc(sweepSchedule, func() { m.SweepCaches(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid cache sweep schedule %q: %w", sweepSchedule, err)
	}
	if currency != nil {
		if _, err := m.cron.AddFunc(currencyRefreshSchedule, func() { m.RefreshCurrency(context.Background()) }); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Start warms the set catalogs, then runs the schedule until ctx is done.
func (m *MaintenanceService) Start(ctx context.Context) {
	log.Printf("Maintenance: started with %d scheduled jobs", len(m.cron.Entries()))

	m.WarmCatalogs(ctx)
	m.cron.Start()

	<-ctx.Done()
	log.Println("Maintenance: stopping...")
	<-m.cron.Stop().Done()
}

// SweepCaches evicts expired entries from every cache and returns the total.
func (m *MaintenanceService) SweepCaches(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, maintenanceJobTimeout)
	defer cancel()

	total := 0
	for _, s := range m.sweepers {
		n, err := s.Sweep(ctx)
		if err != nil {
			log.Printf("Maintenance: sweep of %s failed: %v", s.Namespace(), err)
			continue
		}
		total += n
	}
	if total > 0 {
		log.Printf("Maintenance: swept %d expired cache entries", total)
	}
	return total
}

// RefreshCurrency replaces the cached exchange rates.
func (m *MaintenanceService) RefreshCurrency(ctx context.Context) {
	if m.currency == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, maintenanceJobTimeout)
	defer cancel()

	rates, err := m.currency.Rates(ctx, true)
	if err != nil {
		log.Printf("Maintenance: currency refresh failed: %v", err)
		return
	}
	log.Printf("Maintenance: refreshed %d currency rates (%s)", len(rates.Rates), rates.Date)
}

// WarmCatalogs loads the English set catalog of each warm provider so the
// first lookups do not pay for it. Failures are retried lazily on demand.
func (m *MaintenanceService) WarmCatalogs(ctx context.Context) {
	if m.resolver == nil {
		return
	}
	for _, provider := range m.warm {
		sets, err := m.resolver.Catalog(ctx, provider, models.LanguageEnglish)
		if err != nil {
			log.Printf("Maintenance: %s set catalog not loaded: %v", provider, err)
			continue
		}
		log.Printf("Maintenance: loaded %d %s sets", len(sets), provider)
	}
}
