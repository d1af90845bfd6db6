package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codyseavey/cardprice/internal/models"
)

type fakeCatalog struct {
	name  string
	sets  []models.SetRecord
	err   error
	calls atomic.Int32
}

func (f *fakeCatalog) Name() string { return f.name }

func (f *fakeCatalog) FetchSets(ctx context.Context, lang models.Language) ([]models.SetRecord, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.sets, nil
}

func sampleCatalog() *fakeCatalog {
	return &fakeCatalog{
		name: "tcgdex",
		sets: []models.SetRecord{
			{ID: "base1", Name: "Base Set"},
			{ID: "base4", Name: "Base Set 2"},
			{ID: "swsh12.5", Name: "Crown Zenith"},
			{ID: "swsh12.5gg", Name: "Crown Zenith Galarian Gallery"},
			{ID: "swsh7", Name: "Evolving Skies"},
			{ID: "sm115", Name: "Hidden Fates"},
			{ID: "sma", Name: "Hidden Fates Shiny Vault"},
		},
	}
}

func TestResolveSetIDExactMatchIsCaseInsensitive(t *testing.T) {
	r := NewSetResolver(sampleCatalog())
	ctx := context.Background()

	id, ok, err := r.ResolveSetID(ctx, "tcgdex", "Base Set", models.LanguageEnglish)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "base1", id)

	upper, ok, err := r.ResolveSetID(ctx, "tcgdex", "BASE SET", models.LanguageEnglish)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, id, upper)
}

func TestResolveSetIDContainment(t *testing.T) {
	r := NewSetResolver(sampleCatalog())
	ctx := context.Background()

	tests := []struct {
		query string
		want  string
	}{
		{"Evolving", "swsh7"},                           // catalog name contains query
		{"Sword & Shield Evolving Skies", "swsh7"},      // query contains catalog name
		{"Galarian Gallery", "swsh12.5gg"},              // only the subset contains it
		{"crown zenith galarian gallery", "swsh12.5gg"}, // exact beats containment
	}
	for _, tt := range tests {
		id, ok, err := r.ResolveSetID(ctx, "tcgdex", tt.query, models.LanguageEnglish)
		require.NoError(t, err)
		require.True(t, ok, tt.query)
		assert.Equal(t, tt.want, id, tt.query)
	}
}

func TestResolveSetIDNoMatchIsNotAnError(t *testing.T) {
	r := NewSetResolver(sampleCatalog())
	id, ok, err := r.ResolveSetID(context.Background(), "tcgdex", "Astral Radiance", models.LanguageEnglish)
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, id)
}

func TestCatalogFetchedOncePerProviderAndLanguage(t *testing.T) {
	src := sampleCatalog()
	r := NewSetResolver(src)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = r.ResolveSetID(ctx, "tcgdex", "Base Set", models.LanguageEnglish)
		}()
	}
	wg.Wait()
	_, _, _ = r.ResolveSetID(ctx, "tcgdex", "Base Set", models.LanguageEnglish)
	assert.Equal(t, int32(1), src.calls.Load())

	_, _, _ = r.ResolveSetID(ctx, "tcgdex", "Base Set", models.LanguageJapanese)
	assert.Equal(t, int32(2), src.calls.Load(), "each language has its own catalog")
}

func TestCatalogFailureIsNotCached(t *testing.T) {
	src := sampleCatalog()
	src.err = errors.New("upstream down")
	r := NewSetResolver(src)
	ctx := context.Background()

	_, _, err := r.ResolveSetID(ctx, "tcgdex", "Base Set", models.LanguageEnglish)
	assert.Error(t, err)

	src.err = nil
	id, ok, err := r.ResolveSetID(ctx, "tcgdex", "Base Set", models.LanguageEnglish)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "base1", id)
}

func TestUnknownProvider(t *testing.T) {
	r := NewSetResolver()
	_, _, err := r.ResolveSetID(context.Background(), "nope", "Base Set", models.LanguageEnglish)
	assert.Error(t, err)
}

func TestFindRelatedSubsets(t *testing.T) {
	r := NewSetResolver(sampleCatalog())
	ctx := context.Background()

	related, err := r.FindRelatedSubsets(ctx, "tcgdex", "swsh12.5", models.LanguageEnglish)
	require.NoError(t, err)
	assert.Equal(t, []string{"swsh12.5gg"}, related)

	// the parent's name equals the subset's base name, so it is not related
	related, err = r.FindRelatedSubsets(ctx, "tcgdex", "swsh12.5gg", models.LanguageEnglish)
	require.NoError(t, err)
	assert.Empty(t, related)

	related, err = r.FindRelatedSubsets(ctx, "tcgdex", "sm115", models.LanguageEnglish)
	require.NoError(t, err)
	assert.Equal(t, []string{"sma"}, related)

	related, err = r.FindRelatedSubsets(ctx, "tcgdex", "base1", models.LanguageEnglish)
	require.NoError(t, err)
	assert.Equal(t, []string{"base4"}, related, "prefix rule: Base Set 2 starts with Base Set")

	related, err = r.FindRelatedSubsets(ctx, "tcgdex", "missing", models.LanguageEnglish)
	require.NoError(t, err)
	assert.Empty(t, related)
}

func TestBaseSetName(t *testing.T) {
	assert.Equal(t, "crown zenith", baseSetName("crown zenith galarian gallery"))
	assert.Equal(t, "hidden fates", baseSetName("hidden fates shiny vault"))
	assert.Equal(t, "evolving skies", baseSetName("evolving skies"))
}
