package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"marketwatch/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Storage is the SQLite-backed item catalog. It implements domain.ItemCatalog.
type Storage struct {
	db *gorm.DB
}

// NewStorage opens (or creates) the catalog database at dbPath.
func NewStorage(dbPath string) (*Storage, error) {
	// Ensure directory exists
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	// Connect to SQLite (Pure Go)
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&domain.Item{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Storage{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ======================================================================================
// Item Operations
// ======================================================================================

// UpsertItem creates or updates item metadata
func (s *Storage) UpsertItem(ctx context.Context, item *domain.Item) error {
	return s.db.WithContext(ctx).Save(item).Error
}

// GetItem retrieves item metadata by identifier.
// Unknown identifiers yield domain.ErrCatalogLookupMiss.
func (s *Storage) GetItem(ctx context.Context, id string) (*domain.Item, error) {
	var item domain.Item
	err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%s: %w", id, domain.ErrCatalogLookupMiss)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCatalogUnavailable, err)
	}
	return &item, nil
}

// ItemsByCategory retrieves every item whose shop category is in categories
func (s *Storage) ItemsByCategory(ctx context.Context, categories []string) ([]domain.Item, error) {
	var items []domain.Item
	err := s.db.WithContext(ctx).
		Where("shop_category IN ?", categories).
		Order("id").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCatalogUnavailable, err)
	}
	return items, nil
}

// DeleteItem deletes an item from the catalog
func (s *Storage) DeleteItem(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Item{}).Error
}

// Count returns the number of catalog entries
func (s *Storage) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&domain.Item{}).Count(&n).Error
	return n, err
}

// ======================================================================================
// Seeding
// ======================================================================================

// dumpSections are the items.json sections holding item definitions.
var dumpSections = []string{
	"hideoutitem", "trackingitem", "farmableitem", "simpleitem", "consumableitem",
	"consumablefrominventoryitem", "equipmentitem", "weapon", "mount", "furnitureitem",
	"mountskin", "journalitem", "labourercontract", "transformationweapon",
	"crystalleagueitem", "siegebanner", "killtrophy",
}

type dumpItem struct {
	UniqueName           string          `json:"@uniquename"`
	ShopCategory         string          `json:"@shopcategory"`
	ShopSubcategory      string          `json:"@shopsubcategory1"`
	CraftingRequirements json.RawMessage `json:"craftingrequirements"`
}

// SeedFromDump loads the game's items.json dump into the catalog and returns
// the number of items written. Non-object entries are skipped.
func (s *Storage) SeedFromDump(ctx context.Context, r io.Reader) (int, error) {
	var dump struct {
		Items map[string]json.RawMessage `json:"items"`
	}
	if err := json.NewDecoder(r).Decode(&dump); err != nil {
		return 0, fmt.Errorf("decode item dump: %w", err)
	}

	now := time.Now()
	items := make([]domain.Item, 0, 1024)
	for _, section := range dumpSections {
		raw, ok := dump.Items[section]
		if !ok {
			continue
		}
		var entries []json.RawMessage
		if err := json.Unmarshal(raw, &entries); err != nil {
			// A section with a single object is not a list of items
			continue
		}
		for _, entry := range entries {
			var it dumpItem
			if err := json.Unmarshal(entry, &it); err != nil || it.UniqueName == "" {
				continue
			}
			item := domain.Item{
				ID:              it.UniqueName,
				ShopCategory:    it.ShopCategory,
				ShopSubcategory: it.ShopSubcategory,
				UpdatedAt:       now,
			}
			if len(it.CraftingRequirements) > 0 {
				item.CraftingRequirements = string(it.CraftingRequirements)
			}
			items = append(items, item)
		}
	}

	if len(items) == 0 {
		return 0, nil
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		CreateInBatches(items, 200).Error
	if err != nil {
		return 0, fmt.Errorf("seed catalog: %w", err)
	}

	slog.Info("Catalog seeded", slog.Int("items", len(items)))
	return len(items), nil
}

// SeedFromFile seeds the catalog from a dump file when the catalog is empty.
func (s *Storage) SeedFromFile(ctx context.Context, path string) (int, error) {
	n, err := s.Count(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		slog.Info("Catalog already populated. Skipping seeding", slog.Int64("items", n))
		return 0, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	return s.SeedFromDump(ctx, f)
}
