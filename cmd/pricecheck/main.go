// Command pricecheck resolves card prices from the terminal using the same
// provider graph as the HTTP server, backed by an in-process cache.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"gopkg.in/yaml.v3"

	"github.com/codyseavey/cardprice/internal/cache"
	"github.com/codyseavey/cardprice/internal/config"
	"github.com/codyseavey/cardprice/internal/models"
	"github.com/codyseavey/cardprice/internal/normalize"
	"github.com/codyseavey/cardprice/internal/services"
)

const (
	appName        = "pricecheck"
	appDescription = "Look up Pokemon card prices across the card database, JustTCG, eBay sold listings and PokemonPriceTracker."
)

// CLI is the complete command tree.
type CLI struct {
	Format string `short:"F" help:"Output format" enum:"json,yaml" default:"json"`

	Resolve      ResolveCmd      `cmd:"" help:"Resolve the single best price for a card"`
	All          AllCmd          `cmd:"" help:"Query every price provider for a card"`
	Search       SearchCmd       `cmd:"" help:"Search the card database by name"`
	Sets         SetsCmd         `cmd:"" help:"List the card database's set catalog"`
	Rates        RatesCmd        `cmd:"" help:"Show USD exchange rates"`
	Name         NameCmd         `cmd:"" help:"Extract the canonical card name from a listing title"`
	SetFromTitle SetFromTitleCmd `cmd:"" name:"set-from-title" help:"Detect the set named in a listing title"`
}

// CardFlags identify one card.
type CardFlags struct {
	Title    string `arg:"" help:"Card name or listing title"`
	ID       string `help:"Provider card ID"`
	Number   string `short:"n" help:"Card number within its set (e.g. 4 or 4/102)"`
	Set      string `short:"s" help:"Set display name (e.g. \"Base Set\")"`
	Language string `short:"l" help:"Card language" default:"en"`
}

func (f CardFlags) query() models.CardQuery {
	return models.CardQuery{
		Title:          f.Title,
		CardID:         f.ID,
		CardNumber:     f.Number,
		SetName:        f.Set,
		Language:       models.NormalizeLanguage(f.Language),
		IncludePricing: true,
	}
}

type ResolveCmd struct {
	CardFlags
}

type AllCmd struct {
	CardFlags
}

type SearchCmd struct {
	Query    string `arg:"" help:"Card name to search for"`
	Set      string `short:"s" help:"Only cards from this set"`
	Rarity   string `help:"Only cards of this rarity"`
	Type     string `help:"Only cards of this energy type"`
	Language string `short:"l" help:"Card language" default:"en"`
	Pricing  bool   `short:"p" help:"Resolve a price for every result"`
}

type SetsCmd struct {
	Language string `short:"l" help:"Catalog language" default:"en"`
}

type RatesCmd struct{}

type NameCmd struct {
	Title string `arg:"" help:"Listing title"`
}

type SetFromTitleCmd struct {
	Title string `arg:"" help:"Listing title"`
}

// runtime carries what every command needs. The provider graph is only
// built for commands that talk to the network.
type runtime struct {
	ctx    context.Context
	out    io.Writer
	format string

	newApp func() (*services.App, error)
	app    *services.App
}

func (rt *runtime) services() (*services.App, error) {
	if rt.app == nil {
		app, err := rt.newApp()
		if err != nil {
			return nil, err
		}
		rt.app = app
	}
	return rt.app, nil
}

func (rt *runtime) close() {
	if rt.app != nil {
		rt.app.Close()
	}
}

func (rt *runtime) print(v any) error {
	if rt.format == "yaml" {
		enc := yaml.NewEncoder(rt.out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(rt.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (c *ResolveCmd) Run(rt *runtime) error {
	app, err := rt.services()
	if err != nil {
		return err
	}
	return rt.print(app.Prices.ResolvePrice(rt.ctx, c.query()))
}

func (c *AllCmd) Run(rt *runtime) error {
	app, err := rt.services()
	if err != nil {
		return err
	}
	return rt.print(app.Prices.ResolveAllPrices(rt.ctx, c.query()))
}

func (c *SearchCmd) Run(rt *runtime) error {
	app, err := rt.services()
	if err != nil {
		return err
	}
	result, err := app.Search.Search(rt.ctx, models.CardSearchRequest{
		Query:          c.Query,
		SetName:        c.Set,
		Rarity:         c.Rarity,
		Type:           c.Type,
		Language:       models.NormalizeLanguage(c.Language),
		IncludePricing: c.Pricing,
	})
	if err != nil {
		return fmt.Errorf("search %q: %w", c.Query, err)
	}
	return rt.print(result)
}

func (c *SetsCmd) Run(rt *runtime) error {
	app, err := rt.services()
	if err != nil {
		return err
	}
	sets, err := app.Resolver.Catalog(rt.ctx, app.CardDB.Name(), models.NormalizeLanguage(c.Language))
	if err != nil {
		return fmt.Errorf("load set catalog: %w", err)
	}
	return rt.print(sets)
}

func (c *RatesCmd) Run(rt *runtime) error {
	app, err := rt.services()
	if err != nil {
		return err
	}
	rates, err := app.Currency.Rates(rt.ctx, false)
	if err != nil {
		return fmt.Errorf("load exchange rates: %w", err)
	}
	return rt.print(rates)
}

type nameResult struct {
	Title string `json:"title" yaml:"title"`
	Name  string `json:"name" yaml:"name"`
}

func (c *NameCmd) Run(rt *runtime) error {
	return rt.print(nameResult{Title: c.Title, Name: normalize.ExtractCardName(c.Title)})
}

type setResult struct {
	Title string `json:"title" yaml:"title"`
	Set   string `json:"set" yaml:"set"`
	Known bool   `json:"known" yaml:"known"`
}

func (c *SetFromTitleCmd) Run(rt *runtime) error {
	set := normalize.ExtractSetFromTitle(c.Title)
	return rt.print(setResult{Title: c.Title, Set: set, Known: set != normalize.UnknownSet})
}

func newApp() (*services.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	store, err := cache.NewMemoryStore(cfg.CacheMemorySize)
	if err != nil {
		return nil, err
	}
	return services.NewApp(cfg, store), nil
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name(appName),
		kong.Description(appDescription),
		kong.UsageOnError(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt := &runtime{ctx: ctx, out: os.Stdout, format: cli.Format, newApp: newApp}
	err := kctx.Run(rt)
	rt.close()
	if err != nil {
		log.Printf("Command failed: %v", err)
		os.Exit(1)
	}
}
