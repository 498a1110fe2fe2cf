package domain

import "context"

// ItemCatalog is the static item metadata store consumed by the cache and the
// crafting engine. Identifiers are case-sensitive and upper-case by convention.
type ItemCatalog interface {
	// GetItem returns ErrCatalogLookupMiss when the identifier is unknown.
	GetItem(ctx context.Context, id string) (*Item, error)
	// ItemsByCategory returns every item whose shop category is one of categories.
	ItemsByCategory(ctx context.Context, categories []string) ([]Item, error)
}

// PriceFetcher is the remote price feed as seen by the cache.
type PriceFetcher interface {
	FetchPrices(ctx context.Context, region Region, itemIDs []string, quality Quality, cities []City) ([]PriceRecord, error)
}

// GoldFetcher provides gold price samples for a region.
type GoldFetcher interface {
	FetchGold(ctx context.Context, region Region, count int) ([]GoldRecord, error)
}
