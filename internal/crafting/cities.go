package crafting

import (
	"context"

	"marketwatch/internal/domain"
)

// craftingBonuses maps each city to the categories it grants a return-rate
// bonus for. Order matters: the first matching city wins.
var craftingBonuses = []struct {
	City domain.City
	Tags []string
}{
	{domain.CityBrecilien, []string{"capes", "bags", "potions"}},
	{domain.CityBridgewatch, []string{"stoneblock", "crossbow", "dagger", "cursestaff", "plate_armor", "cloth_shoes"}},
	{domain.CityFortSterling, []string{"planks", "hammer", "spear", "holystaff", "plate_helmet", "cloth_armor"}},
	{domain.CityCaerleon, []string{"gatherergear", "tools", "knuckles", "shapeshifterstaff"}},
	{domain.CityLymhurst, []string{"cloth", "sword", "bow", "arcanestaff", "leather_helmet", "leather_shoes"}},
	{domain.CityMartlock, []string{"leather", "axe", "quarterstaff", "froststaff", "plate_shoes", "offhand"}},
	{domain.CityThetford, []string{"metalbar", "mace", "naturestaff", "firestaff", "leather_armor", "cloth_helmet"}},
}

// FindCraftingBonusCity returns the city granting a crafting bonus for the
// item's category, or false when no city does.
func FindCraftingBonusCity(ctx context.Context, catalog domain.ItemCatalog, itemID string) (domain.City, bool) {
	item := lookup(ctx, catalog, BaseItemID(ctx, catalog, itemID))
	if item == nil {
		return "", false
	}

	for _, bonus := range craftingBonuses {
		if hasAnyTag(item, bonus.Tags) {
			return bonus.City, true
		}
	}
	return "", false
}

// FindCheapestCity returns the city with the lowest minimum sell price.
// Records without a price are ignored; ties keep the first in feed order.
func FindCheapestCity(records []domain.PriceRecord, includeBlackMarket bool) (domain.City, bool) {
	return pickCity(records, includeBlackMarket, func(candidate, best int64) bool { return candidate < best })
}

// FindMostExpensiveCity returns the city with the highest minimum sell price.
func FindMostExpensiveCity(records []domain.PriceRecord, includeBlackMarket bool) (domain.City, bool) {
	return pickCity(records, includeBlackMarket, func(candidate, best int64) bool { return candidate > best })
}

func pickCity(records []domain.PriceRecord, includeBlackMarket bool, better func(candidate, best int64) bool) (domain.City, bool) {
	var (
		city  domain.City
		price int64
		found bool
	)
	for _, r := range records {
		c := domain.NormalizeCity(r.City)
		if c.IsBlackMarket() && !includeBlackMarket {
			continue
		}
		if r.SellPriceMin <= 0 {
			continue
		}
		if !found || better(r.SellPriceMin, price) {
			city, price, found = c, r.SellPriceMin, true
		}
	}
	return city, found
}
