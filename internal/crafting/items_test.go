package crafting

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"marketwatch/internal/domain"
)

type fakeCatalog map[string]*domain.Item

func (c fakeCatalog) GetItem(_ context.Context, id string) (*domain.Item, error) {
	item, ok := c[id]
	if !ok {
		return nil, domain.ErrCatalogLookupMiss
	}
	return item, nil
}

func (c fakeCatalog) ItemsByCategory(_ context.Context, categories []string) ([]domain.Item, error) {
	var items []domain.Item
	for _, item := range c {
		for _, cat := range categories {
			if item.ShopCategory == cat {
				items = append(items, *item)
				break
			}
		}
	}
	return items, nil
}

func testCatalog() fakeCatalog {
	items := []*domain.Item{
		{ID: "T4_MAIN_SWORD", ShopCategory: "mainhand", ShopSubcategory: "sword",
			CraftingRequirements: `{"craftresource":[{"@uniquename":"T4_METALBAR","@count":"16"},{"@uniquename":"T4_LEATHER","@count":"8"}]}`},
		{ID: "T4_2H_CLAYMORE_AVALON", ShopCategory: "mainhand", ShopSubcategory: "sword",
			CraftingRequirements: `[{"craftresource":[{"@uniquename":"T4_METALBAR","@count":"20"},{"@uniquename":"T4_ARTEFACT_2H_CLAYMORE_AVALON","@count":"1"},{"@uniquename":"T3_CAPE","@count":1}]}]`},
		{ID: "T4_METALBAR", ShopCategory: "resources", ShopSubcategory: "metalbar",
			CraftingRequirements: `{"craftresource":{"@uniquename":"T4_ORE","@count":"2"}}`},
		{ID: "T4_LEATHER", ShopCategory: "resources", ShopSubcategory: "leather"},
		{ID: "T4_ORE", ShopCategory: "resources", ShopSubcategory: "ore"},
		{ID: "T4_ORE_LEVEL2", ShopCategory: "resources", ShopSubcategory: "ore"},
		{ID: "T4_ARTEFACT_2H_CLAYMORE_AVALON", ShopCategory: "artefacts", ShopSubcategory: "artefacts_mainhand"},
		{ID: "T3_CAPE", ShopCategory: "accessories", ShopSubcategory: "capes"},
		{ID: "T4_RUNE", ShopCategory: "cityresources", ShopSubcategory: "runes"},
		{ID: "T5_MOUNT_HORSE", ShopCategory: "mounts", ShopSubcategory: "ridinghorse"},
		{ID: "T4_POTION_HEAL", ShopCategory: "consumables", ShopSubcategory: "potions"},
	}
	c := make(fakeCatalog, len(items))
	for _, item := range items {
		c[item.ID] = item
	}
	return c
}

func TestItemPredicates(t *testing.T) {
	ctx := context.Background()
	catalog := testCatalog()

	tests := []struct {
		name string
		fn   func(context.Context, domain.ItemCatalog, string) bool
		id   string
		want bool
	}{
		{"resource", IsResource, "T4_ORE", true},
		{"enchanted resource", IsResource, "T4_ORE_LEVEL2@2", true},
		{"weapon is not resource", IsResource, "T4_MAIN_SWORD", false},
		{"unknown is not resource", IsResource, "T9_NOPE", false},
		{"artefact", IsArtefact, "T4_ARTEFACT_2H_CLAYMORE_AVALON", true},
		{"enchanted never artefact", IsArtefact, "T4_ARTEFACT_2H_CLAYMORE_AVALON@1", false},
		{"fractional", IsFractional, "T4_RUNE", true},
		{"consumable", IsConsumable, "T4_POTION_HEAL", true},
		{"artefact not returnable", IsReturnable, "T4_ARTEFACT_2H_CLAYMORE_AVALON", false},
		{"rune not returnable", IsReturnable, "T4_RUNE", false},
		{"bar returnable", IsReturnable, "T4_METALBAR", true},
		{"weapon sells on black market", IsSellableOnBlackMarket, "T4_MAIN_SWORD", true},
		{"resource not on black market", IsSellableOnBlackMarket, "T4_METALBAR", false},
		{"mount not on black market", IsSellableOnBlackMarket, "T5_MOUNT_HORSE", false},
		{"unknown not on black market", IsSellableOnBlackMarket, "T9_NOPE", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(ctx, catalog, tt.id); got != tt.want {
				t.Errorf("%s(%q) = %v, want %v", tt.name, tt.id, got, tt.want)
			}
		})
	}
}

func TestBaseItemID(t *testing.T) {
	ctx := context.Background()
	catalog := testCatalog()

	cases := map[string]string{
		"T4_MAIN_SWORD":   "T4_MAIN_SWORD",
		"T4_MAIN_SWORD@3": "T4_MAIN_SWORD",
		"T4_ORE_LEVEL2@2": "T4_ORE",
	}
	for in, want := range cases {
		if got := BaseItemID(ctx, catalog, in); got != want {
			t.Errorf("BaseItemID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestResolveRequirements(t *testing.T) {
	ctx := context.Background()
	catalog := testCatalog()

	reqs, err := ResolveRequirements(ctx, catalog, "T4_MAIN_SWORD")
	if err != nil {
		t.Fatalf("ResolveRequirements failed: %v", err)
	}
	want := map[string]int64{"T4_METALBAR": 16, "T4_LEATHER": 8}
	if !reflect.DeepEqual(reqs, want) {
		t.Errorf("Expected %v, got %v", want, reqs)
	}
}

func TestResolveRequirements_Enchanted(t *testing.T) {
	ctx := context.Background()
	catalog := testCatalog()

	reqs, err := ResolveRequirements(ctx, catalog, "T4_MAIN_SWORD@2")
	if err != nil {
		t.Fatalf("ResolveRequirements failed: %v", err)
	}
	want := map[string]int64{"T4_METALBAR_LEVEL2@2": 16, "T4_LEATHER_LEVEL2@2": 8}
	if !reflect.DeepEqual(reqs, want) {
		t.Errorf("Expected %v, got %v", want, reqs)
	}

	reqs, err = ResolveRequirements(ctx, catalog, "T4_2H_CLAYMORE_AVALON@1")
	if err != nil {
		t.Fatalf("ResolveRequirements failed: %v", err)
	}
	want = map[string]int64{
		"T4_METALBAR_LEVEL1@1":           20,
		"T4_ARTEFACT_2H_CLAYMORE_AVALON": 1,
		"T3_CAPE":                        1,
	}
	if !reflect.DeepEqual(reqs, want) {
		t.Errorf("Expected %v, got %v", want, reqs)
	}
}

func TestResolveRequirements_Idempotent(t *testing.T) {
	ctx := context.Background()
	catalog := testCatalog()

	first, err := ResolveRequirements(ctx, catalog, "T4_MAIN_SWORD@1")
	if err != nil {
		t.Fatal(err)
	}
	second, err := ResolveRequirements(ctx, catalog, "T4_MAIN_SWORD@1")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Resolution changed between calls: %v vs %v", first, second)
	}
}

func TestResolveRequirements_Errors(t *testing.T) {
	ctx := context.Background()
	catalog := testCatalog()

	if _, err := ResolveRequirements(ctx, catalog, "T9_NOPE"); !errors.Is(err, domain.ErrCatalogLookupMiss) {
		t.Errorf("Expected lookup miss, got %v", err)
	}
	if _, err := ResolveRequirements(ctx, catalog, "T5_MOUNT_HORSE"); !errors.Is(err, domain.ErrMissingRecipe) {
		t.Errorf("Expected missing recipe for mount, got %v", err)
	}
	if _, err := ResolveRequirements(ctx, catalog, "T4_LEATHER"); !errors.Is(err, domain.ErrMissingRecipe) {
		t.Errorf("Expected missing recipe for raw leather, got %v", err)
	}
	if IsCraftable(ctx, catalog, "T4_ARTEFACT_2H_CLAYMORE_AVALON") {
		t.Error("Artefacts must not be craftable")
	}
	if !IsCraftable(ctx, catalog, "T4_METALBAR") {
		t.Error("Metal bars should be craftable")
	}
}
