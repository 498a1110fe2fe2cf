package crafting

import (
	"context"
	"slices"
	"testing"

	"marketwatch/internal/domain"
)

func records(prices map[string]int64, order ...string) []domain.PriceRecord {
	out := make([]domain.PriceRecord, 0, len(order))
	for _, city := range order {
		out = append(out, domain.PriceRecord{ItemID: "T4_MAIN_SWORD", City: city, SellPriceMin: prices[city]})
	}
	return out
}

func TestFindCheapestCity(t *testing.T) {
	recs := records(map[string]int64{
		"Black Market": 100,
		"Martlock":     300,
		"Thetford":     0,
		"Lymhurst":     250,
	}, "Black Market", "Martlock", "Thetford", "Lymhurst")

	city, ok := FindCheapestCity(recs, false)
	if !ok || city != domain.CityLymhurst {
		t.Errorf("Expected lymhurst, got %q (%v)", city, ok)
	}

	city, ok = FindCheapestCity(recs, true)
	if !ok || city != domain.CityBlackMarket {
		t.Errorf("Expected black market when included, got %q (%v)", city, ok)
	}
}

func TestFindMostExpensiveCity(t *testing.T) {
	recs := records(map[string]int64{
		"Black Market":  900,
		"Martlock":      300,
		"Fort Sterling": 400,
		"Caerleon":      400,
	}, "Black Market", "Martlock", "Fort Sterling", "Caerleon")

	city, ok := FindMostExpensiveCity(recs, false)
	if !ok || city != domain.CityFortSterling {
		t.Errorf("Expected fort sterling (first of the tie), got %q (%v)", city, ok)
	}

	city, ok = FindMostExpensiveCity(recs, true)
	if !ok || city != domain.CityBlackMarket {
		t.Errorf("Expected black market, got %q (%v)", city, ok)
	}
}

func TestFindCity_NoPrices(t *testing.T) {
	recs := records(map[string]int64{"Black Market": 500, "Martlock": 0}, "Black Market", "Martlock")

	if city, ok := FindCheapestCity(recs, false); ok {
		t.Errorf("Expected no city, got %q", city)
	}
	if _, ok := FindMostExpensiveCity(nil, true); ok {
		t.Error("Expected no city for empty records")
	}
}

func TestFindCity_Idempotent(t *testing.T) {
	recs := records(map[string]int64{
		"Black Market": 900,
		"Martlock":     200,
		"Bridgewatch":  200,
		"Caerleon":     700,
		"Lymhurst":     700,
	}, "Black Market", "Martlock", "Bridgewatch", "Caerleon", "Lymhurst")
	before := slices.Clone(recs)

	tests := []struct {
		name string
		find func() (domain.City, bool)
		want domain.City
	}{
		{"cheapest tie keeps first", func() (domain.City, bool) { return FindCheapestCity(recs, false) }, domain.CityMartlock},
		{"cheapest with black market", func() (domain.City, bool) { return FindCheapestCity(recs, true) }, domain.CityMartlock},
		{"most expensive tie keeps first", func() (domain.City, bool) { return FindMostExpensiveCity(recs, false) }, domain.CityCaerleon},
		{"most expensive with black market", func() (domain.City, bool) { return FindMostExpensiveCity(recs, true) }, domain.CityBlackMarket},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first, ok1 := tt.find()
			second, ok2 := tt.find()
			if !ok1 || !ok2 || first != second {
				t.Fatalf("Repeated calls disagree: %q/%v then %q/%v", first, ok1, second, ok2)
			}
			if first != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, first)
			}
		})
	}

	if !slices.Equal(recs, before) {
		t.Error("Records were modified")
	}
}

func TestFindCraftingBonusCity(t *testing.T) {
	ctx := context.Background()
	catalog := testCatalog()

	tests := []struct {
		id     string
		want   domain.City
		wantOK bool
	}{
		{"T4_MAIN_SWORD", domain.CityLymhurst, true},
		{"T4_MAIN_SWORD@2", domain.CityLymhurst, true},
		{"T4_METALBAR", domain.CityThetford, true},
		{"T3_CAPE", domain.CityBrecilien, true},
		{"T4_POTION_HEAL", domain.CityBrecilien, true},
		{"T4_ORE", "", false},
		{"T9_NOPE", "", false},
	}
	for _, tt := range tests {
		city, ok := FindCraftingBonusCity(ctx, catalog, tt.id)
		if city != tt.want || ok != tt.wantOK {
			t.Errorf("FindCraftingBonusCity(%q) = %q, %v; want %q, %v", tt.id, city, ok, tt.want, tt.wantOK)
		}
	}
}
