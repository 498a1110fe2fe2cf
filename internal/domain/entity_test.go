package domain

import (
	"errors"
	"testing"
)

func TestItem_Requirements(t *testing.T) {
	t.Run("single recipe with list of resources", func(t *testing.T) {
		item := Item{
			ID: "T4_MAIN_SWORD",
			CraftingRequirements: `{"@silver":"0","craftresource":[
				{"@uniquename":"T4_METALBAR","@count":"16"},
				{"@uniquename":"T4_LEATHER","@count":8}]}`,
		}
		reqs, err := item.Requirements()
		if err != nil {
			t.Fatalf("Requirements failed: %v", err)
		}
		if reqs["T4_METALBAR"] != 16 || reqs["T4_LEATHER"] != 8 || len(reqs) != 2 {
			t.Errorf("Unexpected requirements: %v", reqs)
		}
	})

	t.Run("recipe list uses first recipe and single resource object", func(t *testing.T) {
		item := Item{
			ID: "T4_PLANKS",
			CraftingRequirements: `[{"craftresource":{"@uniquename":"T4_WOOD","@count":"2"}},
				{"craftresource":{"@uniquename":"T3_WOOD","@count":"9"}}]`,
		}
		reqs, err := item.Requirements()
		if err != nil {
			t.Fatalf("Requirements failed: %v", err)
		}
		if len(reqs) != 1 || reqs["T4_WOOD"] != 2 {
			t.Errorf("Unexpected requirements: %v", reqs)
		}
	})

	t.Run("missing recipe", func(t *testing.T) {
		for _, raw := range []string{"", "null", `{"@silver":"10"}`, `[]`} {
			item := Item{ID: "T4_ORE", CraftingRequirements: raw}
			if _, err := item.Requirements(); !errors.Is(err, ErrMissingRecipe) {
				t.Errorf("raw %q: expected ErrMissingRecipe, got %v", raw, err)
			}
		}
	})
}

func TestIsEnchanted(t *testing.T) {
	tests := []struct {
		id    string
		want  bool
		level int
	}{
		{"T4_MAIN_SWORD", false, 0},
		{"T4_MAIN_SWORD@2", true, 2},
		{"T5_ORE_LEVEL4@4", true, 4},
		{"T4_BAG@5", false, 0},
		{"@", false, 0},
	}
	for _, tt := range tests {
		if got := IsEnchanted(tt.id); got != tt.want {
			t.Errorf("IsEnchanted(%q) = %v, want %v", tt.id, got, tt.want)
		}
		if got := EnchantmentLevel(tt.id); got != tt.level {
			t.Errorf("EnchantmentLevel(%q) = %d, want %d", tt.id, got, tt.level)
		}
	}
}

func TestParseRegionAndQuality(t *testing.T) {
	if r, ok := ParseRegion("Asia"); !ok || r != RegionEast || r.FeedPrefix() != "east" {
		t.Errorf("ParseRegion(Asia) = %v, %v", r, ok)
	}
	if _, ok := ParseRegion("mars"); ok {
		t.Error("Unknown region should not parse")
	}
	if q := ParseQuality("Masterpiece"); q != QualityMasterpiece {
		t.Errorf("ParseQuality(Masterpiece) = %v", q)
	}
	if q := ParseQuality("shiny"); q != QualityNormal {
		t.Errorf("Unknown quality should fall back to Normal, got %v", q)
	}
	if c, ok := ParseCity("Fort Sterling"); !ok || c != CityFortSterling || c.IsBlackMarket() {
		t.Errorf("ParseCity(Fort Sterling) = %v, %v", c, ok)
	}
	if !City("Black Market").IsBlackMarket() {
		t.Error("Black Market should be recognised regardless of case")
	}
}
