package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Shop categories used by the catalog
const (
	CategoryArmor      = "armor"
	CategoryMainhand   = "mainhand"
	CategoryOffhand    = "offhand"
	CategoryMounts     = "mounts"
	CategoryArtefacts  = "artefacts"
	CategoryResources  = "resources"
	CategoryCityRes    = "cityresources"
	CategoryConsumable = "consumables"
	CategoryFood       = "food"
	CategoryLabourers  = "labourers"
)

// Enchantments are the fixed identifier suffixes of enchanted items.
var Enchantments = []string{"@1", "@2", "@3", "@4"}

// Item is the static catalog metadata of one item identifier.
type Item struct {
	ID                   string    `gorm:"primaryKey" json:"id"` // e.g. T4_MAIN_SWORD
	ShopCategory         string    `gorm:"index" json:"shop_category"`
	ShopSubcategory      string    `json:"shop_subcategory"`
	CraftingRequirements string    `json:"crafting_requirements,omitempty"` // raw JSON from the game dump
	UpdatedAt            time.Time `json:"updated_at"`
}

// Tags returns the category tags of the item.
func (i *Item) Tags() []string {
	tags := make([]string, 0, 2)
	if i.ShopCategory != "" {
		tags = append(tags, i.ShopCategory)
	}
	if i.ShopSubcategory != "" {
		tags = append(tags, i.ShopSubcategory)
	}
	return tags
}

// HasTag reports whether the item carries the given category tag.
func (i *Item) HasTag(tag string) bool {
	return i.ShopCategory == tag || i.ShopSubcategory == tag
}

// craftCount accepts both "16" and 16.
type craftCount int64

func (c *craftCount) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("craft count %q: %w", s, err)
	}
	*c = craftCount(n)
	return nil
}

type craftResource struct {
	UniqueName string     `json:"@uniquename"`
	Count      craftCount `json:"@count"`
}

type craftRecipe struct {
	CraftResource json.RawMessage `json:"craftresource"`
}

// Requirements decodes the first crafting recipe into resource -> count.
// Returns ErrMissingRecipe when the item carries no craft resources.
func (i *Item) Requirements() (map[string]int64, error) {
	raw := strings.TrimSpace(i.CraftingRequirements)
	if raw == "" || raw == "null" {
		return nil, fmt.Errorf("%s: %w", i.ID, ErrMissingRecipe)
	}

	var recipe craftRecipe
	if strings.HasPrefix(raw, "[") {
		var recipes []craftRecipe
		if err := json.Unmarshal([]byte(raw), &recipes); err != nil {
			return nil, fmt.Errorf("decode recipes of %s: %w", i.ID, err)
		}
		if len(recipes) == 0 {
			return nil, fmt.Errorf("%s: %w", i.ID, ErrMissingRecipe)
		}
		recipe = recipes[0]
	} else if err := json.Unmarshal([]byte(raw), &recipe); err != nil {
		return nil, fmt.Errorf("decode recipe of %s: %w", i.ID, err)
	}

	var resources []craftResource
	res := strings.TrimSpace(string(recipe.CraftResource))
	switch {
	case res == "" || res == "null":
		return nil, fmt.Errorf("%s: %w", i.ID, ErrMissingRecipe)
	case strings.HasPrefix(res, "["):
		if err := json.Unmarshal(recipe.CraftResource, &resources); err != nil {
			return nil, fmt.Errorf("decode resources of %s: %w", i.ID, err)
		}
	default:
		var single craftResource
		if err := json.Unmarshal(recipe.CraftResource, &single); err != nil {
			return nil, fmt.Errorf("decode resource of %s: %w", i.ID, err)
		}
		resources = append(resources, single)
	}

	reqs := make(map[string]int64, len(resources))
	for _, r := range resources {
		if r.UniqueName == "" {
			continue
		}
		reqs[r.UniqueName] += int64(r.Count)
	}
	if len(reqs) == 0 {
		return nil, fmt.Errorf("%s: %w", i.ID, ErrMissingRecipe)
	}
	return reqs, nil
}

// IsEnchanted reports whether the identifier ends with an enchantment suffix.
func IsEnchanted(id string) bool {
	if len(id) < 2 {
		return false
	}
	suffix := id[len(id)-2:]
	for _, e := range Enchantments {
		if suffix == e {
			return true
		}
	}
	return false
}

// EnchantmentLevel returns the enchantment level encoded in id, 0 if none.
func EnchantmentLevel(id string) int {
	if !IsEnchanted(id) {
		return 0
	}
	return int(id[len(id)-1] - '0')
}

// Tier returns the tier digit of identifiers like "T4_ORE", 0 if absent.
func Tier(id string) int {
	if len(id) < 2 || id[0] != 'T' || id[1] < '0' || id[1] > '9' {
		return 0
	}
	return int(id[1] - '0')
}
