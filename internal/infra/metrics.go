package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight cache and feed observability.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	cacheHits      atomic.Uint64
	cacheMisses    atomic.Uint64
	fetchErrors    atomic.Uint64
	refreshCycles  atomic.Uint64
	chunkFailures  atomic.Uint64
	entriesCached  atomic.Int64
	lastRefreshNs  atomic.Int64
	lastRefreshEnd atomic.Int64 // unix nanos
}

// GlobalMetrics is the default metrics instance.
var GlobalMetrics = &Metrics{}

// RecordHit records a read served from the cache.
func (m *Metrics) RecordHit() {
	m.cacheHits.Add(1)
}

// RecordMiss records a read that fell through to the feed.
func (m *Metrics) RecordMiss() {
	m.cacheMisses.Add(1)
}

// RecordFetchError records a failed feed call.
func (m *Metrics) RecordFetchError() {
	m.fetchErrors.Add(1)
}

// RecordChunkFailure records a refresh chunk that contributed no records.
func (m *Metrics) RecordChunkFailure() {
	m.chunkFailures.Add(1)
}

// RecordRefresh records one completed refresh cycle.
func (m *Metrics) RecordRefresh(took time.Duration, entries int) {
	m.refreshCycles.Add(1)
	m.lastRefreshNs.Store(int64(took))
	m.entriesCached.Store(int64(entries))
	m.lastRefreshEnd.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	CacheHits       uint64        `json:"cache_hits"`
	CacheMisses     uint64        `json:"cache_misses"`
	FetchErrors     uint64        `json:"fetch_errors"`
	RefreshCycles   uint64        `json:"refresh_cycles"`
	ChunkFailures   uint64        `json:"chunk_failures"`
	EntriesCached   int64         `json:"entries_cached"`
	LastRefreshTook time.Duration `json:"last_refresh_took_ns"`
	LastRefreshAt   time.Time     `json:"last_refresh_at"`
	Timestamp       time.Time     `json:"timestamp"`
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var lastAt time.Time
	if ns := m.lastRefreshEnd.Load(); ns > 0 {
		lastAt = time.Unix(0, ns)
	}

	return MetricsSnapshot{
		CacheHits:       m.cacheHits.Load(),
		CacheMisses:     m.cacheMisses.Load(),
		FetchErrors:     m.fetchErrors.Load(),
		RefreshCycles:   m.refreshCycles.Load(),
		ChunkFailures:   m.chunkFailures.Load(),
		EntriesCached:   m.entriesCached.Load(),
		LastRefreshTook: time.Duration(m.lastRefreshNs.Load()),
		LastRefreshAt:   lastAt,
		Timestamp:       time.Now(),
	}
}

// HitRatio returns hits / (hits + misses), 0 when nothing was read yet.
func (s MetricsSnapshot) HitRatio() float64 {
	total := s.CacheHits + s.CacheMisses
	if total == 0 {
		return 0
	}
	return float64(s.CacheHits) / float64(total)
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.cacheHits.Store(0)
	m.cacheMisses.Store(0)
	m.fetchErrors.Store(0)
	m.refreshCycles.Store(0)
	m.chunkFailures.Store(0)
	m.entriesCached.Store(0)
	m.lastRefreshNs.Store(0)
	m.lastRefreshEnd.Store(0)
}
