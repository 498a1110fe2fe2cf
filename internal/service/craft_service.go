package service

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"

	"marketwatch/internal/crafting"
	"marketwatch/internal/domain"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// maxResourceLookups bounds the concurrent price lookups of one craft request.
const maxResourceLookups = 4

// PriceSource returns the price records of one item. MarketCache implements it.
type PriceSource interface {
	Get(ctx context.Context, itemID string, region domain.Region, quality domain.Quality) ([]domain.PriceRecord, error)
}

// CraftOptions holds the economy constants of the calculators.
type CraftOptions struct {
	Taxes             crafting.TaxRates
	DefaultReturnRate decimal.Decimal
	BonusReturnRate   decimal.Decimal
}

// DefaultCraftOptions returns the in-game taxes and return rates.
func DefaultCraftOptions() CraftOptions {
	return CraftOptions{
		Taxes:             crafting.DefaultTaxRates,
		DefaultReturnRate: crafting.DefaultReturnRate,
		BonusReturnRate:   crafting.BonusReturnRate,
	}
}

// CraftRequest describes one crafting session. Empty cities are picked from
// market data, a nil ReturnRate means the default (or bonus) rate and empty
// Resources means exactly one recipe's worth.
type CraftRequest struct {
	ItemID     string
	Region     domain.Region
	CraftCity  domain.City
	SellCity   domain.City
	Resources  map[string]int64
	ReturnRate *decimal.Decimal
	HasPremium bool
}

// CraftReport is the full answer to a CraftRequest.
type CraftReport struct {
	ItemID         string           `json:"item_id"`
	Region         string           `json:"region"`
	CraftCity      domain.City      `json:"craft_city"`
	SellCity       domain.City      `json:"sell_city"`
	Requirements   map[string]int64 `json:"requirements"`
	ResourcePrices map[string]int64 `json:"resource_prices"`
	Result         crafting.Result  `json:"result"`
}

// FlipRequest describes moving one item from a city to the black market.
type FlipRequest struct {
	ItemID    string
	Region    domain.Region
	Quality   domain.Quality
	StartCity domain.City
}

// CraftService runs the craft and flip calculations against live prices.
type CraftService struct {
	prices  PriceSource
	catalog domain.ItemCatalog
	opts    CraftOptions
	logger  *slog.Logger
}

// NewCraftService creates a CraftService.
func NewCraftService(prices PriceSource, catalog domain.ItemCatalog, opts CraftOptions) *CraftService {
	if opts.Taxes.Premium.IsZero() && opts.Taxes.NonPremium.IsZero() {
		opts.Taxes = crafting.DefaultTaxRates
	}
	if opts.DefaultReturnRate.IsZero() {
		opts.DefaultReturnRate = crafting.DefaultReturnRate
	}
	if opts.BonusReturnRate.IsZero() {
		opts.BonusReturnRate = crafting.BonusReturnRate
	}
	return &CraftService{
		prices:  prices,
		catalog: catalog,
		opts:    opts,
		logger:  slog.Default().With("module", "craft_service"),
	}
}

// Craft estimates the profit of crafting req.ItemID.
//
// Without a craft city the item's bonus city is used, which also raises the
// default return rate to the bonus rate; failing that the cheapest city wins.
// Without a sell city the most expensive market is used, the black market
// only when it buys the item.
func (s *CraftService) Craft(ctx context.Context, req CraftRequest) (*CraftReport, error) {
	for resource, count := range req.Resources {
		if count < 0 {
			return nil, fmt.Errorf("%w: negative count %d for %s", domain.ErrInvalidInput, count, resource)
		}
	}
	if req.ReturnRate != nil && req.ReturnRate.IsNegative() {
		return nil, fmt.Errorf("%w: negative return rate", domain.ErrInvalidInput)
	}

	requirements, err := crafting.ResolveRequirements(ctx, s.catalog, req.ItemID)
	if err != nil {
		return nil, err
	}

	records, err := s.prices.Get(ctx, req.ItemID, req.Region, domain.QualityNormal)
	if err != nil {
		return nil, err
	}

	rate := s.opts.DefaultReturnRate
	if req.ReturnRate != nil {
		rate = *req.ReturnRate
	}

	craftCity := req.CraftCity
	if craftCity == "" {
		if city, ok := crafting.FindCraftingBonusCity(ctx, s.catalog, req.ItemID); ok {
			craftCity = city
			if rate.Equal(s.opts.DefaultReturnRate) {
				rate = s.opts.BonusReturnRate
			}
		} else if city, ok := crafting.FindCheapestCity(records, false); ok {
			craftCity = city
		} else {
			return nil, fmt.Errorf("craft city for %s: %w", req.ItemID, domain.ErrNoPriceData)
		}
	}

	sellCity := req.SellCity
	if sellCity == "" {
		includeBM := crafting.IsSellableOnBlackMarket(ctx, s.catalog, crafting.BaseItemID(ctx, s.catalog, req.ItemID))
		city, ok := crafting.FindMostExpensiveCity(records, includeBM)
		if !ok {
			return nil, fmt.Errorf("sell city for %s: %w", req.ItemID, domain.ErrNoPriceData)
		}
		sellCity = city
	}

	target, ok := domain.RecordForCity(records, sellCity)
	if !ok {
		return nil, fmt.Errorf("%s in %s: %w", req.ItemID, sellCity, domain.ErrNoPriceData)
	}

	resourcePrices, err := s.resourcePrices(ctx, requirements, req.Region, craftCity)
	if err != nil {
		return nil, err
	}

	owned := req.Resources
	if len(owned) == 0 {
		owned = maps.Clone(requirements)
	}

	crafter := crafting.NewCrafter(crafting.Input{
		ResourcePrices:    resourcePrices,
		OwnedResources:    owned,
		Requirements:      requirements,
		ReturnRatePercent: rate,
		HasPremium:        req.HasPremium,
	}, crafting.CatalogReturnPolicy(ctx, s.catalog), s.opts.Taxes)

	result := crafter.Printable(target)

	s.logger.Debug("Craft calculated",
		slog.String("item", req.ItemID),
		slog.String("region", req.Region.String()),
		slog.String("craft_city", string(craftCity)),
		slog.String("sell_city", string(sellCity)),
		slog.Int64("profit", result.Profit))

	return &CraftReport{
		ItemID:         req.ItemID,
		Region:         req.Region.String(),
		CraftCity:      craftCity,
		SellCity:       sellCity,
		Requirements:   requirements,
		ResourcePrices: resourcePrices,
		Result:         result,
	}, nil
}

// resourcePrices looks up the unit price of every requirement in city.
// A resource the city has no price for counts as free.
func (s *CraftService) resourcePrices(ctx context.Context, requirements map[string]int64, region domain.Region, city domain.City) (map[string]int64, error) {
	var (
		mu     sync.Mutex
		prices = make(map[string]int64, len(requirements))
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxResourceLookups)
	for resource := range requirements {
		g.Go(func() error {
			records, err := s.prices.Get(ctx, resource, region, domain.QualityNormal)
			if err != nil {
				return fmt.Errorf("price of %s: %w", resource, err)
			}
			var price int64
			if r, ok := domain.RecordForCity(records, city); ok {
				price = r.SellPriceMin
			}
			mu.Lock()
			prices[resource] = price
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return prices, nil
}

// Flip compares buying req.ItemID in the start city with selling it on the
// black market. The start city defaults to the item's bonus city, then to the
// cheapest city.
func (s *CraftService) Flip(ctx context.Context, req FlipRequest) (*crafting.FlipResult, error) {
	base := crafting.BaseItemID(ctx, s.catalog, req.ItemID)
	if _, err := s.catalog.GetItem(ctx, base); err != nil {
		return nil, err
	}
	if !crafting.IsSellableOnBlackMarket(ctx, s.catalog, base) {
		return nil, fmt.Errorf("%s: %w", req.ItemID, domain.ErrNotSellable)
	}

	records, err := s.prices.Get(ctx, req.ItemID, req.Region, req.Quality)
	if err != nil {
		return nil, err
	}

	start := req.StartCity
	if start == "" {
		if city, ok := crafting.FindCraftingBonusCity(ctx, s.catalog, req.ItemID); ok {
			start = city
		} else if city, ok := crafting.FindCheapestCity(records, false); ok {
			start = city
		} else {
			return nil, fmt.Errorf("start city for %s: %w", req.ItemID, domain.ErrNoPriceData)
		}
	}
	if start.IsBlackMarket() {
		return nil, fmt.Errorf("%w: start city must not be the black market", domain.ErrInvalidInput)
	}

	from, ok := domain.RecordForCity(records, start)
	if !ok {
		return nil, fmt.Errorf("%s in %s: %w", req.ItemID, start, domain.ErrNoPriceData)
	}
	to, ok := domain.RecordForCity(records, domain.CityBlackMarket)
	if !ok {
		return nil, fmt.Errorf("%s on the black market: %w", req.ItemID, domain.ErrNoPriceData)
	}

	res, err := crafting.Flip(from, to)
	if err != nil {
		return nil, err
	}
	return &res, nil
}
