package infra

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"marketwatch/internal/domain"

	"github.com/shopspring/decimal"
)

const goldFetchAttempts = 3

// GoldQuote is the latest gold price of one region.
type GoldQuote struct {
	Region    string          `json:"region"`
	Price     int64           `json:"price"`
	Previous  int64           `json:"previous"`
	ChangePct decimal.Decimal `json:"change_pct"` // vs the previous sample, 2 decimals
	At        time.Time       `json:"at"`
}

// premiumGold is the gold cost of each premium status duration.
var premiumGold = []struct {
	Days int
	Gold int64
}{
	{30, 3750},
	{90, 10500},
	{180, 19500},
	{360, 36000},
}

// PremiumPrice is the silver cost of one premium status duration.
type PremiumPrice struct {
	Days   int   `json:"days"`
	Gold   int64 `json:"gold"`
	Silver int64 `json:"silver"`
}

// PremiumPrices converts the premium gold costs to silver at the quoted price.
func (q GoldQuote) PremiumPrices() []PremiumPrice {
	out := make([]PremiumPrice, len(premiumGold))
	for i, p := range premiumGold {
		out[i] = PremiumPrice{Days: p.Days, Gold: p.Gold, Silver: p.Gold * q.Price}
	}
	return out
}

// GoldWatcher polls gold prices of every region and keeps the latest quote.
type GoldWatcher struct {
	fetcher      domain.GoldFetcher
	regions      []domain.Region
	count        int
	onUpdate     func(domain.Region, GoldQuote)
	quotes       map[domain.Region]GoldQuote
	mu           sync.RWMutex
	pollInterval time.Duration
	retryDelay   time.Duration
	started      atomic.Bool
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

// NewGoldWatcher creates a watcher. onUpdate, if set, is called whenever the
// price of a region changes.
func NewGoldWatcher(fetcher domain.GoldFetcher, regions []domain.Region, onUpdate func(domain.Region, GoldQuote)) *GoldWatcher {
	if len(regions) == 0 {
		regions = domain.Regions
	}
	return &GoldWatcher{
		fetcher:      fetcher,
		regions:      regions,
		count:        3,
		onUpdate:     onUpdate,
		quotes:       make(map[domain.Region]GoldQuote, len(regions)),
		pollInterval: 5 * time.Minute,
		retryDelay:   time.Second,
	}
}

// NewGoldWatcherWithConfig creates a watcher using the gold section of cfg.
func NewGoldWatcherWithConfig(fetcher domain.GoldFetcher, cfg *Config, onUpdate func(domain.Region, GoldQuote)) (*GoldWatcher, error) {
	regions, err := cfg.RegionList()
	if err != nil {
		return nil, err
	}
	w := NewGoldWatcher(fetcher, regions, onUpdate)
	if cfg.Gold.Count > 0 {
		w.count = cfg.Gold.Count
	}
	if d := cfg.GoldPollInterval(); d > 0 {
		w.pollInterval = d
	}
	return w, nil
}

// ErrWatcherStarted is returned by a second call to Start.
var ErrWatcherStarted = errors.New("gold watcher already started")

// Start fetches every region once and keeps polling in the background.
func (w *GoldWatcher) Start(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrWatcherStarted
	}
	ctx, w.cancel = context.WithCancel(ctx)

	w.pollAll(ctx)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Gold polling panic recovered", slog.Any("panic", r))
			}
		}()

		ticker := time.NewTicker(w.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				slog.Info("Gold polling stopped")
				return
			case <-ticker.C:
				w.pollAll(ctx)
			}
		}
	}()

	return nil
}

func (w *GoldWatcher) pollAll(ctx context.Context) {
	for _, region := range w.regions {
		if err := w.fetchRegion(ctx, region); err != nil {
			slog.Warn("Gold fetch failed", slog.String("region", region.String()), slog.Any("error", err))
		}
	}
}

// fetchRegion retries retriable feed errors with exponential backoff.
func (w *GoldWatcher) fetchRegion(ctx context.Context, region domain.Region) error {
	var lastErr error
	for i := 0; i < goldFetchAttempts; i++ {
		if i > 0 {
			// 1x, 2x, 4x the base delay
			delay := w.retryDelay * time.Duration(1<<uint(i-1))
			slog.Info("Retrying gold fetch", slog.String("region", region.String()), slog.Int("attempt", i), slog.Duration("delay", delay))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := w.doFetch(ctx, region)
		if err == nil {
			return nil
		}
		lastErr = err
		if !domain.IsRetriable(err) {
			return err
		}
	}
	return lastErr
}

func (w *GoldWatcher) doFetch(ctx context.Context, region domain.Region) error {
	records, err := w.fetcher.FetchGold(ctx, region, w.count)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return errors.New("empty gold response")
	}

	quote := quoteFrom(region, records)

	w.mu.Lock()
	old, seen := w.quotes[region]
	w.quotes[region] = quote
	w.mu.Unlock()

	if (!seen || old.Price != quote.Price) && w.onUpdate != nil {
		slog.Info("Gold price updated",
			slog.String("region", region.String()),
			slog.Int64("price", quote.Price),
			slog.String("change_pct", quote.ChangePct.String()))
		w.onUpdate(region, quote)
	}
	return nil
}

// quoteFrom builds a quote from samples in any order; the newest one wins.
func quoteFrom(region domain.Region, records []domain.GoldRecord) GoldQuote {
	sorted := make([]domain.GoldRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp.Time)
	})

	q := GoldQuote{
		Region:    region.String(),
		Price:     sorted[0].Price,
		ChangePct: decimal.Zero,
		At:        sorted[0].Timestamp.Time,
	}
	if len(sorted) > 1 && sorted[1].Price > 0 {
		q.Previous = sorted[1].Price
		q.ChangePct = decimal.NewFromInt(q.Price).
			Div(decimal.NewFromInt(q.Previous)).
			Sub(decimal.NewFromInt(1)).
			Mul(decimal.NewFromInt(100)).
			Round(2)
	}
	return q
}

// Latest returns the last known quote of region.
func (w *GoldWatcher) Latest(region domain.Region) (GoldQuote, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	q, ok := w.quotes[region]
	return q, ok
}

// Quote returns the cached quote of region or fetches it on a miss.
func (w *GoldWatcher) Quote(ctx context.Context, region domain.Region) (GoldQuote, error) {
	if q, ok := w.Latest(region); ok {
		return q, nil
	}
	if !region.Valid() {
		return GoldQuote{}, fmt.Errorf("%w: %d", domain.ErrInvalidRegion, region)
	}
	if err := w.doFetch(ctx, region); err != nil {
		return GoldQuote{}, err
	}
	q, _ := w.Latest(region)
	return q, nil
}

// Stop stops the polling
func (w *GoldWatcher) Stop() {
	if w.cancel != nil {
		w.cancel()
		w.wg.Wait()
	}
}
