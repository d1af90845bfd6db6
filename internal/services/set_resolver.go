package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/codyseavey/cardprice/internal/metrics"
	"github.com/codyseavey/cardprice/internal/models"
	"github.com/codyseavey/cardprice/internal/normalize"
)

// SetCatalogSource is a provider that can list its full set catalog.
type SetCatalogSource interface {
	Name() string
	FetchSets(ctx context.Context, lang models.Language) ([]models.SetRecord, error)
}

// SetResolver maps human set names onto provider set IDs. Each provider's
// catalog is fetched once per language and kept for the life of the process;
// a failed fetch is not cached and is retried on the next lookup.
type SetResolver struct {
	mu       sync.RWMutex
	sources  map[string]SetCatalogSource
	catalogs map[string][]models.SetRecord
	group    singleflight.Group
}

func NewSetResolver(sources ...SetCatalogSource) *SetResolver {
	r := &SetResolver{
		sources:  make(map[string]SetCatalogSource),
		catalogs: make(map[string][]models.SetRecord),
	}
	for _, s := range sources {
		r.Register(s)
	}
	return r
}

// Register adds a catalog source under its Name.
func (r *SetResolver) Register(src SetCatalogSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[src.Name()] = src
}

func catalogKey(provider string, lang models.Language) string {
	return provider + "|" + string(lang)
}

// Catalog returns the provider's set catalog for lang, fetching it on first use.
func (r *SetResolver) Catalog(ctx context.Context, provider string, lang models.Language) ([]models.SetRecord, error) {
	key := catalogKey(provider, lang)

	r.mu.RLock()
	sets, ok := r.catalogs[key]
	src := r.sources[provider]
	r.mu.RUnlock()
	if ok {
		return sets, nil
	}
	if src == nil {
		return nil, fmt.Errorf("no set catalog registered for %s", provider)
	}

	v, err, _ := r.group.Do(key, func() (any, error) {
		fetched, err := src.FetchSets(ctx, lang)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.catalogs[key] = fetched
		r.mu.Unlock()
		metrics.SetCatalogSize.WithLabelValues(provider, string(lang)).Set(float64(len(fetched)))
		log.Printf("Set resolver: cached %d %s sets for %s", len(fetched), provider, lang)
		return fetched, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load %s set catalog: %w", provider, err)
	}
	return v.([]models.SetRecord), nil
}

// ResolveSetID returns the provider set ID for setName. An exact
// case-insensitive name match wins; otherwise the first catalog entry whose
// name contains the query, or is contained by it, is used. Ties go to
// catalog order. ok is false when nothing matches; err is only set when the
// catalog could not be loaded.
func (r *SetResolver) ResolveSetID(ctx context.Context, provider, setName string, lang models.Language) (id string, ok bool, err error) {
	query := strings.ToLower(strings.TrimSpace(setName))
	if query == "" {
		return "", false, nil
	}

	sets, err := r.Catalog(ctx, provider, lang)
	if err != nil {
		return "", false, err
	}

	for _, s := range sets {
		if strings.ToLower(s.Name) == query {
			return s.ID, true, nil
		}
	}
	for _, s := range sets {
		name := strings.ToLower(s.Name)
		if name == "" {
			continue
		}
		if strings.Contains(name, query) || strings.Contains(query, name) {
			return s.ID, true, nil
		}
	}
	return "", false, nil
}

// FindRelatedSubsets lists the IDs of releases sharing a lineage with setID:
// entries whose name starts with the origin's name and is longer, or that
// contain the origin's base name (its name minus trailing descriptor words)
// without being identical to it. The origin is never included.
func (r *SetResolver) FindRelatedSubsets(ctx context.Context, provider, setID string, lang models.Language) ([]string, error) {
	sets, err := r.Catalog(ctx, provider, lang)
	if err != nil {
		return nil, err
	}

	var origin string
	for _, s := range sets {
		if s.ID == setID {
			origin = strings.ToLower(s.Name)
			break
		}
	}
	if origin == "" {
		return nil, nil
	}
	base := baseSetName(origin)

	var related []string
	for _, s := range sets {
		if s.ID == setID {
			continue
		}
		name := strings.ToLower(s.Name)
		longerPrefix := strings.HasPrefix(name, origin) && len(name) > len(origin)
		sharesBase := base != "" && strings.Contains(name, base) && name != base
		if longerPrefix || sharesBase {
			related = append(related, s.ID)
		}
	}
	return related, nil
}

// baseSetName strips trailing descriptor words from a lowercased set name.
func baseSetName(name string) string {
	for {
		stripped := false
		for _, suffix := range normalize.SetDescriptorSuffixes {
			s := " " + strings.ToLower(suffix)
			if strings.HasSuffix(name, s) {
				name = strings.TrimSpace(strings.TrimSuffix(name, s))
				stripped = true
				break
			}
		}
		if !stripped {
			return name
		}
	}
}
