package domain

import (
	"strings"
	"time"
)

// feedTimeLayout is the zone-less timestamp the price feed emits (always UTC).
const feedTimeLayout = "2006-01-02T15:04:05"

// FeedTime wraps time.Time to accept the feed's timestamp format.
type FeedTime struct {
	time.Time
}

// UnmarshalJSON parses "2006-01-02T15:04:05" as UTC, falling back to RFC 3339.
func (t *FeedTime) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := time.ParseInLocation(feedTimeLayout, s, time.UTC)
	if err != nil {
		parsed, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return err
		}
	}
	t.Time = parsed
	return nil
}

// MarshalJSON emits the same layout the feed uses.
func (t FeedTime) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.UTC().Format(feedTimeLayout) + `"`), nil
}

// PriceRecord is a price snapshot for one item and quality in one city.
// Any other fields the feed sends are ignored.
type PriceRecord struct {
	ItemID           string   `json:"item_id"`
	City             string   `json:"city"`
	Quality          Quality  `json:"quality"`
	SellPriceMin     int64    `json:"sell_price_min"`
	SellPriceMinDate FeedTime `json:"sell_price_min_date"`
	BuyPriceMax      int64    `json:"buy_price_max"`
	BuyPriceMaxDate  FeedTime `json:"buy_price_max_date"`
}

// InCity reports whether the record belongs to the given city.
func (p PriceRecord) InCity(city City) bool {
	return NormalizeCity(p.City) == NormalizeCity(string(city))
}

// RecordForCity returns the first record of the given city.
func RecordForCity(records []PriceRecord, city City) (PriceRecord, bool) {
	for _, r := range records {
		if r.InCity(city) {
			return r, true
		}
	}
	return PriceRecord{}, false
}

// GoldRecord is one gold-to-silver price sample.
type GoldRecord struct {
	Price     int64    `json:"price"`
	Timestamp FeedTime `json:"timestamp"`
}

// ItemKey uniquely identifies one cacheable unit.
type ItemKey struct {
	ItemID  string
	Quality Quality
}

// CacheEntry holds the records of one item in one region.
// Records contains at most one record per city.
type CacheEntry struct {
	Key           ItemKey
	Records       []PriceRecord
	LastRefreshed time.Time
}

// NewCacheEntry builds an entry, keeping only the first record seen per city.
func NewCacheEntry(key ItemKey, records []PriceRecord, refreshedAt time.Time) *CacheEntry {
	seen := make(map[City]struct{}, len(records))
	deduped := make([]PriceRecord, 0, len(records))
	for _, r := range records {
		c := NormalizeCity(r.City)
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		deduped = append(deduped, r)
	}
	return &CacheEntry{Key: key, Records: deduped, LastRefreshed: refreshedAt}
}

// Snapshot returns a copy of the records safe to hand to callers.
func (e *CacheEntry) Snapshot() []PriceRecord {
	out := make([]PriceRecord, len(e.Records))
	copy(out, e.Records)
	return out
}
