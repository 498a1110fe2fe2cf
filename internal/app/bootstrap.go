package app

import (
	"context"
	"log/slog"
	"sync"

	"marketwatch/internal/crafting"
	"marketwatch/internal/domain"
	"marketwatch/internal/infra"
	"marketwatch/internal/infra/albion"
	"marketwatch/internal/infra/storage"
	"marketwatch/internal/service"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config     *infra.Config
	Storage    *storage.Storage
	Client     *albion.Client
	Cache      *service.MarketCache
	Crafter    *service.CraftService
	Gold       *infra.GoldWatcher
	Alerts     *infra.GoldAlerts
	Downloader *infra.IconDownloader
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize loads the configuration and wires every component. The cache is
// created but not started. On failure the catalog is closed again.
func (b *Bootstrap) Initialize(ctx context.Context, configPath string) (err error) {
	slog.Info("🚀 Bootstrapping Marketwatch...")

	// 1. Load Config
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	// 3. Item catalog
	store, err := storage.NewStorage(cfg.Catalog.Path)
	if err != nil {
		return err
	}
	b.Storage = store
	defer func() {
		if err != nil {
			if cerr := b.Close(); cerr != nil {
				slog.Warn("Failed to close catalog", slog.Any("error", cerr))
			}
			b.Storage = nil
		}
	}()

	if cfg.Catalog.SeedFile != "" {
		n, err := store.SeedFromFile(ctx, cfg.Catalog.SeedFile)
		if err != nil {
			return err
		}
		slog.Info("✅ Catalog seeded", slog.String("file", cfg.Catalog.SeedFile), slog.Int("items", n))
	}
	if n, err := store.Count(ctx); err == nil {
		slog.Info("✅ Catalog ready", slog.Int64("items", n))
	}

	// 4. Price feed and cache
	regions, err := cfg.RegionList()
	if err != nil {
		return err
	}
	b.Client = albion.NewClient(cfg)

	cache, err := service.NewMarketCache(ctx, b.Client, store, service.CacheOptions{
		Regions:           regions,
		Categories:        cfg.Cache.Categories,
		ChunkSize:         cfg.Feed.ChunkSize,
		RefreshInterval:   cfg.RefreshInterval(),
		MaxParallelChunks: cfg.Cache.MaxParallelChunks,
		Metrics:           infra.GlobalMetrics,
	})
	if err != nil {
		return err
	}
	b.Cache = cache
	slog.Info("✅ Market cache created", slog.Int("items", len(cache.CacheableIDs())))

	// 5. Calculators
	b.Crafter = service.NewCraftService(cache, store, service.CraftOptions{
		Taxes: crafting.TaxRates{
			Premium:    cfg.Crafting.PremiumTax,
			NonPremium: cfg.Crafting.NonPremiumTax,
		},
		DefaultReturnRate: cfg.Crafting.DefaultReturnRate,
		BonusReturnRate:   cfg.Crafting.BonusReturnRate,
	})

	// 6. Gold watcher
	b.Alerts = infra.NewGoldAlerts(cfg.Gold.Alerts)
	gold, err := infra.NewGoldWatcherWithConfig(b.Client, cfg, func(region domain.Region, quote infra.GoldQuote) {
		b.Alerts.OnUpdate(region, quote)
	})
	if err != nil {
		return err
	}
	b.Gold = gold

	// 7. Icon Downloader
	if cfg.Icons.Enabled {
		downloader, err := infra.NewIconDownloader(cfg)
		if err != nil {
			return err
		}
		b.Downloader = downloader
		slog.Info("✅ Icon downloader ready")
	}

	return nil
}

// Close releases the catalog database.
func (b *Bootstrap) Close() error {
	if b.Storage == nil {
		return nil
	}
	return b.Storage.Close()
}

// SyncIcons downloads the normal-quality icon of every item that is missing
// one. Runs in the background after startup.
func (b *Bootstrap) SyncIcons(ctx context.Context, itemIDs []string) {
	if b.Downloader == nil {
		return
	}
	slog.Info("🔄 Starting icon synchronization...", slog.Int("items", len(itemIDs)))

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed int
	)
	semaphore := make(chan struct{}, 5) // Limit concurrent downloads

	for _, id := range itemIDs {
		wg.Add(1)
		go func(itemID string) {
			defer wg.Done()
			select {
			case <-ctx.Done():
				return
			case semaphore <- struct{}{}: // Acquire
			}
			defer func() { <-semaphore }() // Release

			if _, err := b.Downloader.DownloadIcon(ctx, itemID, domain.QualityNormal); err != nil {
				slog.Debug("Failed to download icon", slog.String("item", itemID), slog.Any("error", err))
				mu.Lock()
				failed++
				mu.Unlock()
			}
		}(id)
	}

	wg.Wait()
	slog.Info("✨ Icon synchronization completed", slog.Int("failed", failed))
}
