package crafting

import (
	"context"
	"fmt"
	"strings"

	"marketwatch/internal/domain"
)

var (
	nonCraftable          = []string{domain.CategoryArtefacts, domain.CategoryMounts, domain.CategoryLabourers}
	nonSellableOnBlackMkt = []string{
		domain.CategoryArtefacts, domain.CategoryMounts, domain.CategoryConsumable,
		domain.CategoryFood, domain.CategoryLabourers, domain.CategoryResources,
	}
)

func lookup(ctx context.Context, catalog domain.ItemCatalog, id string) *domain.Item {
	item, err := catalog.GetItem(ctx, id)
	if err != nil {
		return nil
	}
	return item
}

func hasAnyTag(item *domain.Item, tags []string) bool {
	for _, tag := range tags {
		if item.HasTag(tag) {
			return true
		}
	}
	return false
}

func trimEnchantment(id string) string {
	if domain.IsEnchanted(id) {
		return id[:len(id)-2]
	}
	return id
}

// IsResource reports whether the (possibly enchanted) item is a raw or refined resource.
func IsResource(ctx context.Context, catalog domain.ItemCatalog, id string) bool {
	item := lookup(ctx, catalog, trimEnchantment(id))
	return item != nil && item.HasTag(domain.CategoryResources)
}

// IsArtefact reports whether the item is an artefact. Enchanted items never are.
func IsArtefact(ctx context.Context, catalog domain.ItemCatalog, id string) bool {
	if domain.IsEnchanted(id) {
		return false
	}
	item := lookup(ctx, catalog, id)
	return item != nil && item.HasTag(domain.CategoryArtefacts)
}

// IsFractional reports whether the item is a city-bound resource.
func IsFractional(ctx context.Context, catalog domain.ItemCatalog, id string) bool {
	if domain.IsEnchanted(id) {
		return false
	}
	item := lookup(ctx, catalog, id)
	return item != nil && item.HasTag(domain.CategoryCityRes)
}

// IsConsumable reports whether the item is a consumable.
func IsConsumable(ctx context.Context, catalog domain.ItemCatalog, id string) bool {
	item := lookup(ctx, catalog, id)
	return item != nil && item.HasTag(domain.CategoryConsumable)
}

// IsReturnable reports whether crafting may give the resource back.
func IsReturnable(ctx context.Context, catalog domain.ItemCatalog, id string) bool {
	return !IsArtefact(ctx, catalog, id) && !IsFractional(ctx, catalog, id)
}

// IsSellableOnBlackMarket reports whether the black market buys the item.
func IsSellableOnBlackMarket(ctx context.Context, catalog domain.ItemCatalog, id string) bool {
	item := lookup(ctx, catalog, id)
	return item != nil && !hasAnyTag(item, nonSellableOnBlackMkt)
}

// BaseItemID strips the enchantment suffix. Enchanted resources also lose
// their "_LEVELn" part (T4_ORE_LEVEL2@2 -> T4_ORE).
func BaseItemID(ctx context.Context, catalog domain.ItemCatalog, id string) string {
	if !domain.IsEnchanted(id) {
		return id
	}
	base := id[:len(id)-2]
	if IsResource(ctx, catalog, id) {
		if i := strings.LastIndex(base, "_LEVEL"); i > 0 {
			return base[:i]
		}
	}
	return base
}

// ResolveRequirements returns the crafting requirements of itemID. For enchanted
// items, tier 4+ ingredients are rewritten to their enchanted variants.
// Returns ErrCatalogLookupMiss for unknown items and ErrMissingRecipe for
// items that cannot be crafted.
func ResolveRequirements(ctx context.Context, catalog domain.ItemCatalog, itemID string) (map[string]int64, error) {
	base := BaseItemID(ctx, catalog, itemID)
	item, err := catalog.GetItem(ctx, base)
	if err != nil {
		return nil, err
	}
	if hasAnyTag(item, nonCraftable) {
		return nil, fmt.Errorf("%s: %w", itemID, domain.ErrMissingRecipe)
	}

	reqs, err := item.Requirements()
	if err != nil {
		return nil, err
	}

	level := domain.EnchantmentLevel(itemID)
	if level == 0 {
		return reqs, nil
	}

	enchanted := make(map[string]int64, len(reqs))
	for id, count := range reqs {
		if domain.Tier(id) > 3 {
			switch {
			case IsResource(ctx, catalog, id):
				id = fmt.Sprintf("%s_LEVEL%d@%d", id, level, level)
			case !IsArtefact(ctx, catalog, id):
				id = fmt.Sprintf("%s@%d", id, level)
			}
		}
		enchanted[id] += count
	}
	return enchanted, nil
}

// IsCraftable reports whether the item has a usable recipe.
func IsCraftable(ctx context.Context, catalog domain.ItemCatalog, id string) bool {
	_, err := ResolveRequirements(ctx, catalog, id)
	return err == nil
}
