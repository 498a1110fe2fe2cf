package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"marketwatch/internal/domain"
	"marketwatch/internal/infra"
	"marketwatch/internal/infra/albion"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// DefaultRefreshInterval is the pause between two background refreshes.
const DefaultRefreshInterval = 600 * time.Second

// DefaultCacheableCategories are the shop categories kept warm by the refresh.
var DefaultCacheableCategories = []string{
	domain.CategoryArmor,
	domain.CategoryMainhand,
	domain.CategoryOffhand,
	domain.CategoryMounts,
	domain.CategoryArtefacts,
	domain.CategoryResources,
}

// CacheState is the lifecycle state of one region partition.
type CacheState int32

const (
	StateUninitialized CacheState = iota
	StatePriming
	StateReady
)

func (s CacheState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StatePriming:
		return "priming"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// CacheOptions configures a MarketCache. Zero values fall back to defaults.
type CacheOptions struct {
	Regions           []domain.Region
	Categories        []string
	ChunkSize         int
	RefreshInterval   time.Duration
	MaxParallelChunks int // 0 means unbounded
	Metrics           *infra.Metrics
}

func (o *CacheOptions) applyDefaults() {
	if len(o.Regions) == 0 {
		o.Regions = domain.Regions
	}
	if len(o.Categories) == 0 {
		o.Categories = DefaultCacheableCategories
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = albion.ChunkSize
	}
	if o.RefreshInterval <= 0 {
		o.RefreshInterval = DefaultRefreshInterval
	}
	if o.Metrics == nil {
		o.Metrics = infra.GlobalMetrics
	}
}

// RefreshStats summarizes one RefreshAll call.
type RefreshStats struct {
	Chunks       int
	FailedChunks int
	Entries      int // entries held across all regions after the refresh
	Took         time.Duration
}

// MarketCache keeps one in-memory price table per region, refreshed in the
// background, and falls back to the feed for anything it does not hold.
//
// Only Normal quality prices of catalog-listed items are cached. RefreshAll is
// the only writer and holds the write lock for its whole duration, so a reader
// sees either the old or the new table of a region, never a mix.
type MarketCache struct {
	fetcher domain.PriceFetcher
	opts    CacheOptions

	cacheable    []string
	cacheableSet map[string]struct{}

	mu     sync.RWMutex
	tables map[domain.Region]map[string]*domain.CacheEntry
	states map[domain.Region]*atomic.Int32

	direct singleflight.Group
	logger *slog.Logger

	started atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewMarketCache builds the cacheable set from the catalog. It fails with
// ErrCatalogUnavailable when the catalog cannot be queried; the cache cannot
// serve without it.
func NewMarketCache(ctx context.Context, fetcher domain.PriceFetcher, catalog domain.ItemCatalog, opts CacheOptions) (*MarketCache, error) {
	if fetcher == nil {
		return nil, errors.New("market cache: nil price fetcher")
	}
	if catalog == nil {
		return nil, fmt.Errorf("market cache: %w", domain.ErrCatalogUnavailable)
	}
	opts.applyDefaults()

	ids, err := buildCacheableSet(ctx, catalog, opts.Categories)
	if err != nil {
		return nil, err
	}

	c := &MarketCache{
		fetcher:      fetcher,
		opts:         opts,
		cacheable:    ids,
		cacheableSet: make(map[string]struct{}, len(ids)),
		tables:       make(map[domain.Region]map[string]*domain.CacheEntry, len(opts.Regions)),
		states:       make(map[domain.Region]*atomic.Int32, len(opts.Regions)),
		logger:       slog.Default().With("module", "market_cache"),
	}
	for _, id := range ids {
		c.cacheableSet[id] = struct{}{}
	}
	for _, region := range opts.Regions {
		c.tables[region] = make(map[string]*domain.CacheEntry)
		c.states[region] = new(atomic.Int32)
	}

	c.logger.Info("Market cache created",
		slog.Int("cacheable_items", len(ids)),
		slog.Int("regions", len(opts.Regions)),
		slog.Duration("refresh_interval", opts.RefreshInterval))
	return c, nil
}

// buildCacheableSet lists the catalog items of the allowed categories.
// Resources ending in a tier-enchant digit (T4_ORE_LEVEL2) are stored under
// their enchanted identifier (T4_ORE_LEVEL2@2), which is what the feed knows.
func buildCacheableSet(ctx context.Context, catalog domain.ItemCatalog, categories []string) ([]string, error) {
	items, err := catalog.ItemsByCategory(ctx, categories)
	if err != nil {
		if errors.Is(err, domain.ErrCatalogUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("build cacheable set: %w: %v", domain.ErrCatalogUnavailable, err)
	}

	ids := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		id := item.ID
		if item.HasTag(domain.CategoryResources) && id != "" {
			if last := id[len(id)-1]; last >= '1' && last <= '4' {
				id = id + "@" + string(last)
			}
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

// CacheableIDs returns a copy of the identifiers the refresh keeps warm.
func (c *MarketCache) CacheableIDs() []string {
	out := make([]string, len(c.cacheable))
	copy(out, c.cacheable)
	return out
}

// IsCacheable reports whether itemID belongs to the cacheable set.
func (c *MarketCache) IsCacheable(itemID string) bool {
	_, ok := c.cacheableSet[itemID]
	return ok
}

// State returns the lifecycle state of a region partition.
func (c *MarketCache) State(region domain.Region) CacheState {
	s, ok := c.states[region]
	if !ok {
		return StateUninitialized
	}
	return CacheState(s.Load())
}

func (c *MarketCache) setState(region domain.Region, state CacheState) {
	c.states[region].Store(int32(state))
}

// Get returns the price records of itemID in region. Cached Normal quality
// entries are served from memory; everything else is fetched directly from the
// feed and not stored. Fetch failures surface as *domain.FetchError.
func (c *MarketCache) Get(ctx context.Context, itemID string, region domain.Region, quality domain.Quality) ([]domain.PriceRecord, error) {
	if _, ok := c.states[region]; !ok {
		return nil, fmt.Errorf("%w: %d", domain.ErrInvalidRegion, region)
	}
	if !quality.Valid() {
		quality = domain.QualityNormal
	}

	if quality == domain.QualityNormal && c.IsCacheable(itemID) {
		c.mu.RLock()
		entry, ok := c.tables[region][itemID]
		var records []domain.PriceRecord
		if ok {
			records = entry.Snapshot()
		}
		c.mu.RUnlock()

		if ok {
			c.opts.Metrics.RecordHit()
			return records, nil
		}
	}

	c.opts.Metrics.RecordMiss()
	return c.fetchDirect(ctx, itemID, region, quality)
}

// fetchDirect collapses concurrent identical misses into one feed call.
// The shared call is detached from every caller's cancellation and bounded by
// the feed timeout; each caller only stops waiting on its own ctx.
func (c *MarketCache) fetchDirect(ctx context.Context, itemID string, region domain.Region, quality domain.Quality) ([]domain.PriceRecord, error) {
	key := fmt.Sprintf("%d/%d/%s", region, quality, itemID)
	ch := c.direct.DoChan(key, func() (any, error) {
		return c.fetcher.FetchPrices(context.WithoutCancel(ctx), region, []string{itemID}, quality, nil)
	})

	var (
		v   any
		err error
	)
	select {
	case <-ctx.Done():
		reason := domain.FetchTransport
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			reason = domain.FetchTimeout
		}
		err = &domain.FetchError{Op: "prices", Region: region, Reason: reason, Err: ctx.Err()}
	case res := <-ch:
		v, err = res.Val, res.Err
	}
	if err != nil {
		c.opts.Metrics.RecordFetchError()
		c.logger.Warn("Direct fetch failed",
			slog.String("item", itemID),
			slog.String("region", region.String()),
			slog.Any("error", err))
		return nil, err
	}

	shared := v.([]domain.PriceRecord)
	if len(shared) == 0 {
		return nil, fmt.Errorf("%s on %s: %w", itemID, region, domain.ErrNoPriceData)
	}
	records := make([]domain.PriceRecord, len(shared))
	copy(records, shared)
	return records, nil
}

// RefreshAll refreshes every region in turn. Chunks of a region are fetched in
// parallel; a failed chunk is logged and its items keep their previous entries.
func (c *MarketCache) RefreshAll(ctx context.Context) RefreshStats {
	start := time.Now()
	c.logger.Info("Cache refresh started", slog.Int("items", len(c.cacheable)))

	c.mu.Lock()
	defer c.mu.Unlock()

	var stats RefreshStats
	for _, region := range c.opts.Regions {
		c.setState(region, StatePriming)
		chunks, failed := c.refreshRegion(ctx, region)
		c.setState(region, StateReady)

		stats.Chunks += chunks
		stats.FailedChunks += failed
		stats.Entries += len(c.tables[region])
	}
	stats.Took = time.Since(start)

	c.opts.Metrics.RecordRefresh(stats.Took, stats.Entries)
	c.logger.Info("Cache refresh finished",
		slog.Int("chunks", stats.Chunks),
		slog.Int("failed_chunks", stats.FailedChunks),
		slog.Int("entries", stats.Entries),
		slog.Duration("took", stats.Took))
	return stats
}

// refreshRegion must be called with the write lock held.
func (c *MarketCache) refreshRegion(ctx context.Context, region domain.Region) (int, int) {
	chunks := albion.Chunk(c.cacheable, c.opts.ChunkSize)
	results := make([][]domain.PriceRecord, len(chunks))
	var failed atomic.Int32

	var g errgroup.Group
	if c.opts.MaxParallelChunks > 0 {
		g.SetLimit(c.opts.MaxParallelChunks)
	}
	for i, ids := range chunks {
		g.Go(func() error {
			records, err := c.fetcher.FetchPrices(ctx, region, ids, domain.QualityNormal, nil)
			if err != nil {
				failed.Add(1)
				c.opts.Metrics.RecordFetchError()
				c.opts.Metrics.RecordChunkFailure()
				c.logger.Error("Couldn't cache chunk",
					slog.String("region", region.String()),
					slog.Int("chunk", i),
					slog.Int("items", len(ids)),
					slog.Any("error", err))
				return nil
			}
			results[i] = records
			return nil
		})
	}
	_ = g.Wait()

	grouped := make(map[string][]domain.PriceRecord)
	for _, records := range results {
		for _, r := range records {
			grouped[r.ItemID] = append(grouped[r.ItemID], r)
		}
	}

	now := time.Now()
	next := make(map[string]*domain.CacheEntry, len(c.tables[region])+len(grouped))
	maps.Copy(next, c.tables[region])
	for id, records := range grouped {
		next[id] = domain.NewCacheEntry(domain.ItemKey{ItemID: id, Quality: domain.QualityNormal}, records, now)
	}
	c.tables[region] = next

	return len(chunks), int(failed.Load())
}

// Start runs RefreshAll immediately and then every RefreshInterval until ctx
// is cancelled or Stop is called. Only the first call starts the loop.
func (c *MarketCache) Start(ctx context.Context) {
	if !c.started.CompareAndSwap(false, true) {
		c.logger.Warn("Market cache already started")
		return
	}
	ctx, c.cancel = context.WithCancel(ctx)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("Cache refresh panic recovered", slog.Any("panic", r))
			}
		}()

		c.RefreshAll(ctx)

		ticker := time.NewTicker(c.opts.RefreshInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				c.logger.Info("Cache refresh stopped")
				return
			case <-ticker.C:
				c.RefreshAll(ctx)
			}
		}
	}()
}

// Stop cancels the background refresh and waits for it to exit.
func (c *MarketCache) Stop() {
	if c.cancel != nil {
		c.cancel()
		c.wg.Wait()
	}
}
