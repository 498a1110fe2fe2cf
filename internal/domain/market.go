package domain

import "strings"

// Region is a game-server partition. It selects both the price feed endpoint
// and the cache partition.
type Region int

const (
	RegionWest Region = iota + 1
	RegionEurope
	RegionEast
)

// Regions lists every supported region in partition order.
var Regions = []Region{RegionWest, RegionEurope, RegionEast}

// String returns the human readable region name
func (r Region) String() string {
	switch r {
	case RegionWest:
		return "america"
	case RegionEurope:
		return "europe"
	case RegionEast:
		return "asia"
	default:
		return "unknown"
	}
}

// FeedPrefix returns the host prefix of the region's price feed.
func (r Region) FeedPrefix() string {
	switch r {
	case RegionWest:
		return "west"
	case RegionEurope:
		return "europe"
	case RegionEast:
		return "east"
	default:
		return ""
	}
}

// Valid reports whether r is one of the known regions.
func (r Region) Valid() bool {
	return r >= RegionWest && r <= RegionEast
}

// ParseRegion accepts both the display names and the feed prefixes.
func ParseRegion(s string) (Region, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "west", "america", "americas", "1":
		return RegionWest, true
	case "europe", "eu", "2":
		return RegionEurope, true
	case "east", "asia", "3":
		return RegionEast, true
	default:
		return 0, false
	}
}

// Quality is the ordinal item-condition tier.
type Quality int

const (
	QualityNormal Quality = iota + 1
	QualityGood
	QualityOutstanding
	QualityExcellent
	QualityMasterpiece
)

var qualityNames = [...]string{"normal", "good", "outstanding", "excellent", "masterpiece"}

func (q Quality) String() string {
	if !q.Valid() {
		return "unknown"
	}
	return qualityNames[q-1]
}

// Valid reports whether q is within Normal..Masterpiece.
func (q Quality) Valid() bool {
	return q >= QualityNormal && q <= QualityMasterpiece
}

// ParseQuality maps a quality name to its tier. Unknown names fall back to Normal.
func ParseQuality(s string) Quality {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range qualityNames {
		if s == name {
			return Quality(i + 1)
		}
	}
	return QualityNormal
}

// City is a market location known to the price feed. Values are the lower-case
// names the feed uses.
type City string

const (
	CityBlackMarket  City = "black market"
	CityBrecilien    City = "brecilien"
	CityBridgewatch  City = "bridgewatch"
	CityCaerleon     City = "caerleon"
	CityFortSterling City = "fort sterling"
	CityLymhurst     City = "lymhurst"
	CityMartlock     City = "martlock"
	CityThetford     City = "thetford"
)

// Cities is the fixed list of markets in feed order.
var Cities = []City{
	CityBlackMarket,
	CityBrecilien,
	CityBridgewatch,
	CityCaerleon,
	CityFortSterling,
	CityLymhurst,
	CityMartlock,
	CityThetford,
}

// NormalizeCity lower-cases a feed or user supplied city name.
func NormalizeCity(s string) City {
	return City(strings.ToLower(strings.TrimSpace(s)))
}

// IsBlackMarket reports whether the city is the black market.
func (c City) IsBlackMarket() bool {
	return NormalizeCity(string(c)) == CityBlackMarket
}

// ParseCity returns the known city matching s (case-insensitive).
func ParseCity(s string) (City, bool) {
	c := NormalizeCity(s)
	for _, known := range Cities {
		if c == known {
			return known, true
		}
	}
	return "", false
}
