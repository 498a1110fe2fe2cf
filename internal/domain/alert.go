package domain

// AlertDirection tells which way the price has to move to trigger an alert.
type AlertDirection string

const (
	AlertUp   AlertDirection = "UP"
	AlertDown AlertDirection = "DOWN"
)

// GoldAlert represents a gold price alert of one region
type GoldAlert struct {
	Region       Region         `json:"region"`
	TargetPrice  int64          `json:"target"`
	Direction    AlertDirection `json:"direction"`
	IsPersistent bool           `json:"is_persistent"`
	active       bool
}

// NewGoldAlert creates a new alert.
// Direction is automatically determined based on currentPrice:
// - UP: targetPrice >= currentPrice (waiting for price to rise)
// - DOWN: targetPrice < currentPrice (waiting for price to fall)
func NewGoldAlert(region Region, targetPrice, currentPrice int64, isPersistent bool) *GoldAlert {
	direction := AlertUp
	if targetPrice < currentPrice {
		direction = AlertDown
	}
	return &GoldAlert{
		Region:       region,
		TargetPrice:  targetPrice,
		Direction:    direction,
		IsPersistent: isPersistent,
		active:       true,
	}
}

// IsActive returns whether the alert is active
func (a *GoldAlert) IsActive() bool {
	return a.active
}

// SetActive sets the alert's active state
func (a *GoldAlert) SetActive(active bool) {
	a.active = active
}

// CheckCondition checks if alert condition is met.
// Returns true when:
// - Direction is UP and currentPrice >= targetPrice
// - Direction is DOWN and currentPrice <= targetPrice
func (a *GoldAlert) CheckCondition(currentPrice int64) bool {
	if !a.active {
		return false
	}
	switch a.Direction {
	case AlertUp:
		return currentPrice >= a.TargetPrice
	case AlertDown:
		return currentPrice <= a.TargetPrice
	default:
		return false
	}
}
